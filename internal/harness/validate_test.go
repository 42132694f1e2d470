package harness_test

import (
	"context"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/simcheck/internal/dynamo"
	"github.com/san-kum/simcheck/internal/harness"
	"github.com/san-kum/simcheck/internal/integrators"
	"github.com/san-kum/simcheck/internal/physics"
	"github.com/san-kum/simcheck/internal/reference"
	"github.com/san-kum/simcheck/internal/sim"
	"github.com/san-kum/simcheck/internal/statevec"
	"github.com/san-kum/simcheck/internal/units"
)

func runFixed(dyn dynamo.System, integ dynamo.Integrator, x0 dynamo.State, b dynamo.Bounds) *dynamo.Trajectory {
	res, err := sim.New(dyn, integ).RunFixed(context.Background(), x0, b)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	return res.Trajectory
}

func marsOrbit() physics.OrbitParams {
	r := 1.523679 * units.AstronomicalUnit
	v := reference.CircularSpeed(physics.GravitationalConstant, units.SolarMass, r)
	return physics.OrbitParams{
		G:           physics.GravitationalConstant,
		CentralMass: units.SolarMass,
		Bodies: []statevec.Body{
			{Name: "mars", Mass: 6.4171e23, Position: r3.Vec{X: r}, Velocity: r3.Vec{Y: v}},
		},
	}
}

var _ = Describe("Validate", func() {
	var (
		params physics.OscillatorParams
		osc    *physics.Oscillator
		bounds dynamo.Bounds
	)

	BeforeEach(func() {
		params = physics.OscillatorParams{Mass: 1, Stiffness: 1, Amplitude: 1}
		var err error
		osc, err = physics.NewOscillator(params)
		Expect(err).NotTo(HaveOccurred())
		bounds = dynamo.Bounds{Start: 0, End: 10, Dt: 0.001}
	})

	Context("leapfrog on the harmonic oscillator", func() {
		var report *harness.Report

		BeforeEach(func() {
			traj := runFixed(osc, integrators.NewLeapfrog(), osc.InitialState(), bounds)
			Expect(traj.Len()).To(Equal(10001))

			series := reference.Sample(reference.NewOscillator(params), traj.Times())
			var err error
			report, err = harness.New(osc).Validate(traj, series, harness.Policy{
				MaxAbsError:     1e-5,
				EnergyDrift:     1e-6,
				PeriodTolerance: 1e-3,
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("conserves energy to 1e-6", func() {
			c, ok := report.Get(harness.CheckEnergyDrift)
			Expect(ok).To(BeTrue())
			Expect(c.Passed).To(BeTrue())
			Expect(c.Measured).To(BeNumerically("<", 1e-6))
		})

		It("tracks the closed form within 1e-5", func() {
			c, _ := report.Get(harness.CheckMaxAbsError)
			Expect(c.Passed).To(BeTrue())
			Expect(c.Measured).To(BeNumerically("<", 1e-5))
		})

		It("reproduces the reference period", func() {
			c, _ := report.Get(harness.CheckPeriod)
			Expect(c.Passed).To(BeTrue(), c.Note)
		})

		It("passes overall and serializes", func() {
			Expect(report.Passed()).To(BeTrue())
			Expect(report.Len()).To(Equal(3))

			data, err := json.Marshal(report)
			Expect(err).NotTo(HaveOccurred())

			var back harness.Report
			Expect(json.Unmarshal(data, &back)).To(Succeed())
			Expect(back.Checks()).To(Equal(report.Checks()))
		})
	})

	It("reports Euler's secular drift as a failed check, not an error", func() {
		traj := runFixed(osc, integrators.NewEuler(), osc.InitialState(), dynamo.Bounds{End: 10, Dt: 0.01})
		series := reference.Sample(reference.NewOscillator(params), traj.Times())

		report, err := harness.New(osc).Validate(traj, series, harness.Policy{EnergyDrift: 1e-6})
		Expect(err).NotTo(HaveOccurred())

		c, _ := report.Get(harness.CheckEnergyDrift)
		Expect(c.Passed).To(BeFalse())
		Expect(c.Measured).To(BeNumerically(">", 0.05))
		Expect(report.Passed()).To(BeFalse())
	})

	It("fails the period check when the span is shorter than a period", func() {
		traj := runFixed(osc, integrators.NewRK4(), osc.InitialState(), dynamo.Bounds{End: 1, Dt: 0.01})
		series := reference.Sample(reference.NewOscillator(params), traj.Times())

		report, err := harness.New(osc).Validate(traj, series, harness.Policy{PeriodTolerance: 1e-3})
		Expect(err).NotTo(HaveOccurred())
		c, _ := report.Get(harness.CheckPeriod)
		Expect(c.Passed).To(BeFalse())
		Expect(c.Note).NotTo(BeEmpty())
	})

	Describe("input errors", func() {
		var traj *dynamo.Trajectory

		BeforeEach(func() {
			traj = runFixed(osc, integrators.NewRK4(), osc.InitialState(), dynamo.Bounds{End: 1, Dt: 0.1})
		})

		It("rejects a reference on a different grid", func() {
			series := reference.Sample(reference.NewOscillator(params), []float64{0, 1})
			_, err := harness.New(osc).Validate(traj, series, harness.Policy{MaxAbsError: 1})
			Expect(err).To(MatchError(harness.ErrMisaligned))
		})

		It("rejects shifted timestamps", func() {
			times := traj.Times()
			times[3] += 1e-3
			series := reference.Sample(reference.NewOscillator(params), times)
			_, err := harness.New(osc).Validate(traj, series, harness.Policy{MaxAbsError: 1})
			Expect(err).To(MatchError(harness.ErrMisaligned))
		})

		It("rejects an empty trajectory", func() {
			series := reference.Sample(reference.NewOscillator(params), nil)
			_, err := harness.New(osc).Validate(dynamo.NewTrajectory(0), series, harness.Policy{})
			Expect(err).To(MatchError(harness.ErrEmptyTrajectory))
		})

		It("needs an energy function for the drift check", func() {
			series := reference.Sample(reference.NewOscillator(params), traj.Times())
			_, err := harness.New(nil).Validate(traj, series, harness.Policy{EnergyDrift: 1})
			Expect(err).To(MatchError(harness.ErrNoEnergy))
		})

		It("needs an orbital layout for the return check", func() {
			series := reference.Sample(reference.NewOscillator(params), traj.Times())
			_, err := harness.New(osc).Validate(traj, series, harness.Policy{ReturnTolerance: 1})
			Expect(err).To(MatchError(harness.ErrNotOrbital))
		})
	})
})

var _ = Describe("Mars orbit", func() {
	var (
		params physics.OrbitParams
		cf     *physics.CentralForce
		ref    *reference.CircularOrbits
		bounds dynamo.Bounds
		policy harness.Policy
	)

	BeforeEach(func() {
		params = marsOrbit()
		var err error
		cf, err = physics.NewCentralForce(params)
		Expect(err).NotTo(HaveOccurred())
		ref, err = reference.NewCircularOrbits(params)
		Expect(err).NotTo(HaveOccurred())

		bounds = dynamo.Bounds{End: 687 * units.Day, Dt: 3600}
		policy = harness.Policy{
			ReturnTolerance: 1e-3,
			EnergyDrift:     1e-5,
			RelativeEnergy:  true,
			PeriodTolerance: 1e-3,
		}
	})

	validate := func(traj *dynamo.Trajectory) *harness.Report {
		report, err := harness.New(cf).Validate(traj, reference.Sample(ref, traj.Times()), policy)
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
		return report
	}

	It("returns to its start after 687 days with leapfrog", func() {
		traj := runFixed(cf, integrators.NewLeapfrog(), cf.InitialState(), bounds)
		report := validate(traj)

		c, _ := report.Get(harness.CheckReturn)
		Expect(c.Passed).To(BeTrue(), c.Note)
		Expect(c.Measured).To(BeNumerically("<", 1e-3))
		Expect(report.Passed()).To(BeTrue())
	})

	It("returns to its start after 687 days with adaptive RK45", func() {
		b := bounds
		b.Dt = units.Day
		res, err := sim.New(cf, integrators.NewDormandPrince(1e-10, 1e-6)).RunAdaptive(context.Background(), cf.InitialState(), b)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Trajectory.Len()).To(Equal(688))

		report := validate(res.Trajectory)
		c, _ := report.Get(harness.CheckReturn)
		Expect(c.Passed).To(BeTrue(), c.Note)
	})

	It("fails the return check after half an orbit", func() {
		b := bounds
		b.End = 343 * units.Day
		traj := runFixed(cf, integrators.NewLeapfrog(), cf.InitialState(), b)

		c, _ := validate(traj).Get(harness.CheckReturn)
		Expect(c.Passed).To(BeFalse())
		Expect(c.Measured).To(BeNumerically(">", 1.9))
	})
})
