// Package montecarlo estimates pi by sampling points in the unit square and
// counting those inside the quarter circle.
//
// Samples are split into fixed-size batches. Batch i draws from its own PCG
// stream seeded with (Seed, i), so the estimate depends only on Seed,
// BatchSize and n, never on how many workers ran the batches.
package montecarlo

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"

	"golang.org/x/exp/constraints"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/simcheck/internal/reference"
)

const DefaultBatchSize = 1 << 16

var ErrInvalidSize = errors.New("montecarlo: sample size must be positive")

// InCircle reports whether (x, y) lies within radius r of the origin.
func InCircle[T constraints.Integer | constraints.Float](x, y, r T) bool {
	return x*x+y*y <= r*r
}

// Sampler produces an estimate from n samples.
type Sampler interface {
	Estimate(ctx context.Context, n int) (Result, error)
}

type Result struct {
	N     int
	Hits  int
	Value float64
	// StdErr is the reference 1/sqrt(n) scaling for this size.
	StdErr float64
}

// AbsError is the distance of the estimate from pi.
func (r Result) AbsError() float64 {
	d := r.Value - reference.PiTarget
	if d < 0 {
		return -d
	}
	return d
}

type Estimator struct {
	Seed      uint64
	BatchSize int
	Workers   int
}

func NewEstimator(seed uint64) *Estimator {
	return &Estimator{Seed: seed, BatchSize: DefaultBatchSize}
}

func (e *Estimator) Estimate(ctx context.Context, n int) (Result, error) {
	if n <= 0 {
		return Result{}, fmt.Errorf("%w: %d", ErrInvalidSize, n)
	}
	bs := e.BatchSize
	if bs <= 0 {
		bs = DefaultBatchSize
	}
	workers := e.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	batches := (n + bs - 1) / bs
	counts := make([]int, batches)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for b := 0; b < batches; b++ {
		size := bs
		if rest := n - b*bs; rest < bs {
			size = rest
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			counts[b] = e.batch(uint64(b), size)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	hits := 0
	for _, c := range counts {
		hits += c
	}
	return Result{
		N:      n,
		Hits:   hits,
		Value:  4 * float64(hits) / float64(n),
		StdErr: reference.StandardError(n),
	}, nil
}

func (e *Estimator) batch(stream uint64, size int) int {
	rng := rand.New(rand.NewPCG(e.Seed, stream))
	hits := 0
	for i := 0; i < size; i++ {
		if InCircle(rng.Float64(), rng.Float64(), 1.0) {
			hits++
		}
	}
	return hits
}

// Lattice estimates pi from the integer points of a (2r+1)^2 grid that fall
// inside the circle of radius r.
func Lattice(r int) float64 {
	if r <= 0 {
		return 0
	}
	count := 0
	for x := -r; x <= r; x++ {
		for y := -r; y <= r; y++ {
			if InCircle(x, y, r) {
				count++
			}
		}
	}
	return float64(count) / float64(r*r)
}
