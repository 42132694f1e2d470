package montecarlo_test

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/simcheck/internal/montecarlo"
	"github.com/san-kum/simcheck/internal/reference"
)

var _ = Describe("InCircle", func() {
	DescribeTable("float and integer instantiations agree",
		func(x, y, r int, inside bool) {
			Expect(montecarlo.InCircle(x, y, r)).To(Equal(inside))
			Expect(montecarlo.InCircle(float64(x), float64(y), float64(r))).To(Equal(inside))
		},
		Entry("origin", 0, 0, 1, true),
		Entry("on the boundary", 3, 4, 5, true),
		Entry("just outside", 4, 4, 5, false),
		Entry("negative coordinates", -3, -4, 5, true),
	)
})

var _ = Describe("Estimator", func() {
	ctx := context.Background()

	It("is within 0.1 of pi for 100000 samples", func() {
		res, err := montecarlo.NewEstimator(42).Estimate(ctx, 100_000)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.N).To(Equal(100_000))
		Expect(res.AbsError()).To(BeNumerically("<", 0.1))
		Expect(res.StdErr).To(Equal(1 / math.Sqrt(100_000)))
	})

	It("does not depend on the worker count", func() {
		one := &montecarlo.Estimator{Seed: 7, BatchSize: 1000, Workers: 1}
		four := &montecarlo.Estimator{Seed: 7, BatchSize: 1000, Workers: 4}

		a, err := one.Estimate(ctx, 123_457)
		Expect(err).NotTo(HaveOccurred())
		b, err := four.Estimate(ctx, 123_457)
		Expect(err).NotTo(HaveOccurred())

		Expect(b.Hits).To(Equal(a.Hits))
		Expect(b.Value).To(Equal(a.Value))
	})

	It("changes with the seed", func() {
		a, _ := (&montecarlo.Estimator{Seed: 1, BatchSize: 1000}).Estimate(ctx, 50_000)
		b, _ := (&montecarlo.Estimator{Seed: 2, BatchSize: 1000}).Estimate(ctx, 50_000)
		Expect(a.Hits).NotTo(Equal(b.Hits))
	})

	It("falls inside the 95% band for most seeds", func() {
		n := 20_000
		inside := 0
		for seed := uint64(1); seed <= 20; seed++ {
			res, err := (&montecarlo.Estimator{Seed: seed, BatchSize: 4096}).Estimate(ctx, n)
			Expect(err).NotTo(HaveOccurred())
			if reference.WithinBand(res.Value, n) {
				inside++
			}
		}
		Expect(inside).To(BeNumerically(">=", 15))
	})

	It("rejects non-positive sizes", func() {
		_, err := montecarlo.NewEstimator(1).Estimate(ctx, 0)
		Expect(err).To(MatchError(montecarlo.ErrInvalidSize))
	})

	It("stops when the context is canceled", func() {
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := (&montecarlo.Estimator{Seed: 1, BatchSize: 10, Workers: 2}).Estimate(canceled, 1000)
		Expect(err).To(MatchError(context.Canceled))
	})
})

var _ = Describe("Lattice", func() {
	It("approaches pi as the radius grows", func() {
		coarse := math.Abs(montecarlo.Lattice(10) - math.Pi)
		fine := math.Abs(montecarlo.Lattice(1000) - math.Pi)
		Expect(fine).To(BeNumerically("<", coarse))
		Expect(fine).To(BeNumerically("<", 1e-2))
	})

	It("is zero for a degenerate radius", func() {
		Expect(montecarlo.Lattice(0)).To(BeZero())
	})
})
