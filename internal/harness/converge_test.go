package harness_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/simcheck/internal/harness"
	"github.com/san-kum/simcheck/internal/montecarlo"
	"github.com/san-kum/simcheck/internal/reference"
)

// fakeClock advances only when a sampler charges it.
type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

// chargingSampler returns pi exactly and costs perSample of fake time per
// sample.
type chargingSampler struct {
	clock     *fakeClock
	perSample time.Duration
	calls     int
	onCall    func(call int)
}

func (s *chargingSampler) Estimate(ctx context.Context, n int) (montecarlo.Result, error) {
	s.calls++
	if s.onCall != nil {
		s.onCall(s.calls)
	}
	if err := ctx.Err(); err != nil {
		return montecarlo.Result{}, err
	}
	s.clock.now = s.clock.now.Add(time.Duration(n) * s.perSample)
	return montecarlo.Result{N: n, Value: reference.PiTarget, StdErr: reference.StandardError(n)}, nil
}

var _ = Describe("Converge", func() {
	var (
		clock   *fakeClock
		sampler *chargingSampler
		h       *harness.Harness
		ctx     context.Context
	)

	BeforeEach(func() {
		clock = &fakeClock{now: time.Unix(0, 0)}
		sampler = &chargingSampler{clock: clock, perSample: time.Microsecond}
		h = harness.New(nil, harness.WithClock(clock.Now))
		ctx = context.Background()
	})

	It("stops at the first size over budget", func() {
		out, err := h.Converge(ctx, sampler, harness.ConvergencePolicy{
			Start: 1000, Factor: 10, MaxN: 1e9, Budget: 50 * time.Millisecond,
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(out.StopReason).To(Equal(harness.StopBudget))
		Expect(out.StoppedAt).To(Equal(100_000))
		Expect(out.Rows).To(HaveLen(3))
		Expect(out.Rows[2].Elapsed).To(BeNumerically("~", 0.1, 1e-9))
	})

	It("stops at the maximum size when the budget holds", func() {
		out, err := h.Converge(ctx, sampler, harness.ConvergencePolicy{
			Start: 1000, Factor: 10, MaxN: 100_000, Budget: time.Hour,
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(out.StopReason).To(Equal(harness.StopMaxSize))
		Expect(out.StoppedAt).To(Equal(100_000))
		sizes := []int{}
		for _, r := range out.Rows {
			sizes = append(sizes, r.N)
		}
		Expect(sizes).To(Equal([]int{1000, 10_000, 100_000}))
	})

	It("records standard error and band for every row", func() {
		out, err := h.Converge(ctx, sampler, harness.ConvergencePolicy{
			Start: 100, Factor: 4, MaxN: 10_000, Budget: time.Hour,
		})
		Expect(err).NotTo(HaveOccurred())
		for _, r := range out.Rows {
			Expect(r.StdErr).To(Equal(reference.StandardError(r.N)))
			Expect(r.Band95).To(Equal(reference.Band95(r.N)))
			Expect(r.WithinBand).To(BeTrue())
			Expect(r.AbsError).To(BeZero())
		}
	})

	It("returns a partial result when canceled", func() {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		sampler.onCall = func(call int) {
			if call == 2 {
				cancel()
			}
		}

		out, err := h.Converge(ctx, sampler, harness.DefaultConvergencePolicy())
		Expect(err).NotTo(HaveOccurred())
		Expect(out.StopReason).To(Equal(harness.StopCanceled))
		Expect(out.Rows).To(HaveLen(1))
		Expect(out.StoppedAt).To(Equal(10_000))
	})

	It("propagates sampler failures", func() {
		boom := errors.New("boom")
		failing := samplerFunc(func(ctx context.Context, n int) (montecarlo.Result, error) {
			return montecarlo.Result{}, boom
		})
		_, err := h.Converge(ctx, failing, harness.DefaultConvergencePolicy())
		Expect(err).To(MatchError(boom))
	})

	DescribeTable("rejects invalid policies",
		func(p harness.ConvergencePolicy) {
			_, err := h.Converge(ctx, sampler, p)
			Expect(err).To(MatchError(harness.ErrInvalidPolicy))
		},
		Entry("zero start", harness.ConvergencePolicy{Start: 0, Factor: 10, MaxN: 10, Budget: time.Second}),
		Entry("factor one", harness.ConvergencePolicy{Start: 1, Factor: 1, MaxN: 10, Budget: time.Second}),
		Entry("max below start", harness.ConvergencePolicy{Start: 100, Factor: 2, MaxN: 10, Budget: time.Second}),
		Entry("no budget", harness.ConvergencePolicy{Start: 1, Factor: 2, MaxN: 10}),
	)

	It("measures a real estimator within 0.1 of pi at n=100000", func() {
		out, err := harness.New(nil).Converge(ctx, montecarlo.NewEstimator(2024), harness.ConvergencePolicy{
			Start: 1000, Factor: 10, MaxN: 100_000, Budget: time.Minute,
		})
		Expect(err).NotTo(HaveOccurred())
		last := out.Rows[len(out.Rows)-1]
		Expect(last.N).To(Equal(100_000))
		Expect(last.AbsError).To(BeNumerically("<", 0.1))
	})
})

type samplerFunc func(ctx context.Context, n int) (montecarlo.Result, error)

func (f samplerFunc) Estimate(ctx context.Context, n int) (montecarlo.Result, error) {
	return f(ctx, n)
}

var _ = Describe("Scaling", func() {
	It("shows 1/sqrt(n) error scaling over three decades", func() {
		newSampler := func(i int) montecarlo.Sampler {
			return &montecarlo.Estimator{Seed: uint64(1000 + i), BatchSize: 4096}
		}
		points, err := harness.Scaling(context.Background(), newSampler, []int{1_000, 10_000, 100_000, 1_000_000}, 16)
		Expect(err).NotTo(HaveOccurred())
		Expect(points).To(HaveLen(4))

		res, err := harness.ScalingCheck(points, 0.1, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Passed).To(BeTrue(), "scaled errors in [%g, %g]", res.MinScaled, res.MaxScaled)
		Expect(res.Decades).To(BeNumerically(">=", 3))
		Expect(res.Slope).To(BeNumerically("~", -0.5, 0.25))
	})

	It("flags errors that do not shrink", func() {
		points := []harness.ScalingPoint{
			{N: 100, RMSError: 0.1},
			{N: 10_000, RMSError: 0.1},
			{N: 1_000_000, RMSError: 0.1},
		}
		res, err := harness.ScalingCheck(points, 0.1, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Passed).To(BeFalse())
		Expect(res.Slope).To(BeNumerically("~", 0, 1e-12))
	})

	It("needs at least two sizes", func() {
		_, err := harness.ScalingCheck([]harness.ScalingPoint{{N: 10, RMSError: 1}}, 0.1, 10)
		Expect(err).To(MatchError(harness.ErrInvalidPolicy))
	})

	It("converts convergence rows to single replicates", func() {
		pts := harness.PointsFromRows([]harness.Row{{N: 10, AbsError: 0.5}})
		Expect(pts).To(Equal([]harness.ScalingPoint{{N: 10, RMSError: 0.5, Replicates: 1}}))
	})
})
