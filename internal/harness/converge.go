package harness

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/simcheck/internal/montecarlo"
	"github.com/san-kum/simcheck/internal/reference"
)

// StopReason records why the size escalation ended.
type StopReason string

const (
	StopBudget   StopReason = "budget"
	StopMaxSize  StopReason = "max_size"
	StopCanceled StopReason = "canceled"
)

// ConvergencePolicy drives sizes Start, Start*Factor, ... up to MaxN and
// stops after the first size whose wall-clock cost exceeds Budget.
type ConvergencePolicy struct {
	Start  int           `yaml:"start" json:"start" validate:"gt=0"`
	Factor int           `yaml:"factor" json:"factor" validate:"gte=2"`
	MaxN   int           `yaml:"max_n" json:"max_n" validate:"gtefield=Start"`
	Budget time.Duration `yaml:"budget" json:"budget" validate:"gt=0"`
}

func DefaultConvergencePolicy() ConvergencePolicy {
	return ConvergencePolicy{
		Start:  1_000,
		Factor: 10,
		MaxN:   100_000_000,
		Budget: 2 * time.Second,
	}
}

func (p ConvergencePolicy) validate() error {
	switch {
	case p.Start <= 0:
		return fmt.Errorf("%w: start size %d", ErrInvalidPolicy, p.Start)
	case p.Factor < 2:
		return fmt.Errorf("%w: growth factor %d", ErrInvalidPolicy, p.Factor)
	case p.MaxN < p.Start:
		return fmt.Errorf("%w: max size %d below start %d", ErrInvalidPolicy, p.MaxN, p.Start)
	case p.Budget <= 0:
		return fmt.Errorf("%w: budget %v", ErrInvalidPolicy, p.Budget)
	}
	return nil
}

// Row is one sample size of the convergence study.
type Row struct {
	N          int     `json:"n"`
	Estimate   float64 `json:"estimate"`
	AbsError   float64 `json:"abs_error"`
	Elapsed    float64 `json:"elapsed_seconds"`
	StdErr     float64 `json:"standard_error"`
	Band95     float64 `json:"band95"`
	WithinBand bool    `json:"within_band"`
}

// Convergence is the outcome of Converge. It is valid even when the loop
// was canceled.
type Convergence struct {
	Rows       []Row      `json:"rows"`
	StoppedAt  int        `json:"stopped_at"`
	StopReason StopReason `json:"stop_reason"`
}

// Converge runs the estimator at escalating sizes.
func (h *Harness) Converge(ctx context.Context, s montecarlo.Sampler, p ConvergencePolicy) (*Convergence, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	out := &Convergence{}
	n := p.Start
	for {
		if ctx.Err() != nil {
			out.StoppedAt, out.StopReason = n, StopCanceled
			break
		}

		start := h.now()
		res, err := s.Estimate(ctx, n)
		elapsed := h.now().Sub(start)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				out.StoppedAt, out.StopReason = n, StopCanceled
				break
			}
			return nil, fmt.Errorf("estimate n=%d: %w", n, err)
		}

		out.Rows = append(out.Rows, Row{
			N:          n,
			Estimate:   res.Value,
			AbsError:   res.AbsError(),
			Elapsed:    elapsed.Seconds(),
			StdErr:     reference.StandardError(n),
			Band95:     reference.Band95(n),
			WithinBand: reference.WithinBand(res.Value, n),
		})
		h.logger.Debug("convergence step",
			"n", n, "estimate", res.Value, "elapsed", elapsed)

		if elapsed > p.Budget {
			out.StoppedAt, out.StopReason = n, StopBudget
			break
		}
		if n > p.MaxN/p.Factor {
			out.StoppedAt, out.StopReason = n, StopMaxSize
			break
		}
		n *= p.Factor
	}

	h.logger.Info("convergence stopped",
		"reason", string(out.StopReason), "stopped_at", out.StoppedAt, "sizes", len(out.Rows))
	return out, nil
}

// ScalingPoint is the RMS error over replicates at one size.
type ScalingPoint struct {
	N          int     `json:"n"`
	RMSError   float64 `json:"rms_error"`
	Replicates int     `json:"replicates"`
}

// Scaling measures the RMS error at each size over replicates independent
// samplers; newSampler(i) must return a differently seeded sampler per i.
func Scaling(ctx context.Context, newSampler func(replicate int) montecarlo.Sampler, sizes []int, replicates int) ([]ScalingPoint, error) {
	if replicates < 1 {
		return nil, fmt.Errorf("%w: %d replicates", ErrInvalidPolicy, replicates)
	}
	points := make([]ScalingPoint, 0, len(sizes))
	for _, n := range sizes {
		sq := make([]float64, replicates)
		for r := 0; r < replicates; r++ {
			res, err := newSampler(r).Estimate(ctx, n)
			if err != nil {
				return points, fmt.Errorf("scaling n=%d replicate %d: %w", n, r, err)
			}
			sq[r] = res.AbsError() * res.AbsError()
		}
		points = append(points, ScalingPoint{N: n, RMSError: math.Sqrt(stat.Mean(sq, nil)), Replicates: replicates})
	}
	return points, nil
}

// PointsFromRows treats every convergence row as a single replicate.
func PointsFromRows(rows []Row) []ScalingPoint {
	out := make([]ScalingPoint, len(rows))
	for i, r := range rows {
		out[i] = ScalingPoint{N: r.N, RMSError: r.AbsError, Replicates: 1}
	}
	return out
}

// ScalingResult verifies that error*sqrt(n) stays bounded and that the
// log-log slope of error against n is near -1/2.
type ScalingResult struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	MinScaled float64 `json:"min_scaled"`
	MaxScaled float64 `json:"max_scaled"`
	Low       float64 `json:"low"`
	High      float64 `json:"high"`
	Decades   float64 `json:"decades"`
	Passed    bool    `json:"passed"`
}

// ScalingCheck fits log10(error) = a + b*log10(n) and checks
// error*sqrt(n) within [low, high] at every size.
func ScalingCheck(points []ScalingPoint, low, high float64) (ScalingResult, error) {
	res := ScalingResult{Low: low, High: high}
	if len(points) < 2 {
		return res, fmt.Errorf("%w: need at least two sizes, got %d", ErrInvalidPolicy, len(points))
	}

	xs := make([]float64, 0, len(points))
	ys := make([]float64, 0, len(points))
	res.MinScaled = math.Inf(1)
	res.MaxScaled = math.Inf(-1)
	for _, p := range points {
		scaled := p.RMSError * math.Sqrt(float64(p.N))
		res.MinScaled = math.Min(res.MinScaled, scaled)
		res.MaxScaled = math.Max(res.MaxScaled, scaled)
		// an exact hit has no logarithm; it still counts for the bound
		if p.RMSError > 0 {
			xs = append(xs, math.Log10(float64(p.N)))
			ys = append(ys, math.Log10(p.RMSError))
		}
	}
	if len(xs) >= 2 {
		res.Intercept, res.Slope = stat.LinearRegression(xs, ys, nil, false)
		res.Decades = xs[len(xs)-1] - xs[0]
	}

	res.Passed = res.MinScaled >= low && res.MaxScaled <= high
	return res, nil
}
