// Package harness validates integrated trajectories against references
// and drives the Monte Carlo convergence study.
//
// Threshold breaches are reported as failed checks in the Report, never as
// errors. Validate returns an error only when its inputs cannot be compared.
package harness

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/simcheck/internal/dynamo"
	"github.com/san-kum/simcheck/internal/metrics"
	"github.com/san-kum/simcheck/internal/reference"
	"github.com/san-kum/simcheck/internal/statevec"
)

var (
	ErrMisaligned      = errors.New("harness: trajectory and reference are not aligned")
	ErrEmptyTrajectory = errors.New("harness: empty trajectory")
	ErrNoEnergy        = errors.New("harness: energy check requested without an energy function")
	ErrNotOrbital      = errors.New("harness: return check needs an orbital state layout")
	ErrInvalidPolicy   = errors.New("harness: invalid policy")
)

// Policy selects checks and their thresholds. A zero threshold disables the
// check.
type Policy struct {
	MaxAbsError float64 `yaml:"max_abs_error" json:"max_abs_error"`
	EnergyDrift float64 `yaml:"energy_drift" json:"energy_drift"`
	// RelativeEnergy divides the drift by |E(t0)|.
	RelativeEnergy  bool    `yaml:"relative_energy" json:"relative_energy"`
	PeriodTolerance float64 `yaml:"period_tolerance" json:"period_tolerance"`
	// PeriodComponent is the state index whose crossings measure the period.
	PeriodComponent int `yaml:"period_component" json:"period_component"`
	// ReturnTolerance bounds |r(end) - r(0)| / |r(0)| for every body.
	ReturnTolerance float64 `yaml:"return_tolerance" json:"return_tolerance"`
}

type Harness struct {
	energy dynamo.Hamiltonian
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Harness)

func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithClock replaces time.Now when timing the convergence loop.
func WithClock(now func() time.Time) Option {
	return func(h *Harness) { h.now = now }
}

// New builds a harness. energy may be nil when no energy check is needed.
func New(energy dynamo.Hamiltonian, opts ...Option) *Harness {
	h := &Harness{
		energy: energy,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Validate checks traj against ref under p.
func (h *Harness) Validate(traj *dynamo.Trajectory, ref *reference.Series, p Policy) (*Report, error) {
	if traj == nil || traj.Len() == 0 {
		return nil, ErrEmptyTrajectory
	}
	if err := aligned(traj, ref); err != nil {
		return nil, err
	}

	report := newReport()

	if p.MaxAbsError > 0 {
		var m metrics.MaxAbsError
		for i := 0; i < traj.Len(); i++ {
			m.Compare(traj.At(i).X, ref.At(i).X)
		}
		report.add(Check{
			Name:      CheckMaxAbsError,
			Measured:  m.Value(),
			Threshold: p.MaxAbsError,
			Passed:    m.Value() < p.MaxAbsError,
		})
	}

	if p.EnergyDrift > 0 {
		if h.energy == nil {
			return nil, ErrNoEnergy
		}
		drift := metrics.NewEnergyDrift(h.energy)
		if p.RelativeEnergy {
			drift = metrics.NewRelativeEnergyDrift(h.energy)
		}
		for i := 0; i < traj.Len(); i++ {
			s := traj.At(i)
			drift.OnStep(s.X, s.T)
		}
		c := Check{
			Name:      CheckEnergyDrift,
			Measured:  drift.Value(),
			Threshold: p.EnergyDrift,
			Passed:    drift.Value() < p.EnergyDrift,
		}
		if p.RelativeEnergy {
			c.Note = "relative to |E(t0)|"
		}
		report.add(c)
	}

	if p.PeriodTolerance > 0 {
		c, err := periodCheck(traj, ref, p)
		if err != nil {
			return nil, err
		}
		report.add(c)
	}

	if p.ReturnTolerance > 0 {
		c, err := returnCheck(traj, p)
		if err != nil {
			return nil, err
		}
		report.add(c)
	}

	h.logger.Debug("trajectory validated",
		"samples", traj.Len(), "checks", report.Len(), "passed", report.Passed())
	return report, nil
}

func aligned(traj *dynamo.Trajectory, ref *reference.Series) error {
	if ref == nil {
		return fmt.Errorf("%w: no reference", ErrMisaligned)
	}
	if ref.Len() != traj.Len() {
		return fmt.Errorf("%w: %d samples vs %d reference points", ErrMisaligned, traj.Len(), ref.Len())
	}
	times := traj.Times()
	if !floats.Equal(times, ref.Times()) {
		return fmt.Errorf("%w: sample times differ", ErrMisaligned)
	}
	for i := 0; i < traj.Len(); i++ {
		if len(traj.At(i).X) != len(ref.At(i).X) {
			return fmt.Errorf("%w: state length %d vs %d at t=%g",
				ErrMisaligned, len(traj.At(i).X), len(ref.At(i).X), times[i])
		}
	}
	return nil
}

func periodCheck(traj *dynamo.Trajectory, ref *reference.Series, p Policy) (Check, error) {
	c := Check{Name: CheckPeriod, Threshold: p.PeriodTolerance}
	k := p.PeriodComponent
	if k < 0 || k >= len(traj.At(0).X) {
		return c, fmt.Errorf("%w: period component %d out of range", ErrInvalidPolicy, k)
	}

	want := ref.Period()
	got, err := metrics.Period(traj.Times(), traj.Component(k))
	if err != nil {
		c.Note = "span shorter than one period"
		return c, nil
	}
	c.Measured = math.Abs(got-want) / want
	c.Passed = c.Measured < p.PeriodTolerance
	c.Note = fmt.Sprintf("measured %.6g, reference %.6g", got, want)
	return c, nil
}

func returnCheck(traj *dynamo.Trajectory, p Policy) (Check, error) {
	c := Check{Name: CheckReturn, Threshold: p.ReturnTolerance}
	first := traj.At(0).X
	last, _ := traj.Last()
	if len(first)%statevec.BodyStride != 0 {
		return c, fmt.Errorf("%w: state length %d", ErrNotOrbital, len(first))
	}

	worst := -1
	for i := 0; i < len(first)/statevec.BodyStride; i++ {
		r0, _, _ := statevec.Unpack(first, i)
		r1, _, _ := statevec.Unpack(last.X, i)
		rel := floats.Distance(vec(r0), vec(r1), 2) / floats.Norm(vec(r0), 2)
		if math.IsNaN(rel) {
			rel = math.Inf(1)
		}
		if worst < 0 || rel > c.Measured {
			c.Measured = rel
			worst = i
		}
	}
	c.Passed = c.Measured < p.ReturnTolerance
	c.Note = fmt.Sprintf("worst body %d after t=%.6g", worst, last.T-traj.At(0).T)
	return c, nil
}

func vec(v r3.Vec) []float64 { return []float64{v.X, v.Y, v.Z} }
