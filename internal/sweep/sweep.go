// Package sweep reruns one configuration over a range of step sizes and
// estimates the empirical order of accuracy of the integrator.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/simcheck/internal/config"
	"github.com/san-kum/simcheck/internal/experiment"
	"github.com/san-kum/simcheck/internal/harness"
)

var ErrTooFewPoints = errors.New("sweep: need at least two usable step sizes")

// DefaultCheck is the check a sweep fits when none is given.
const DefaultCheck = harness.CheckMaxAbsError

type Point struct {
	Dt       float64 `json:"dt"`
	Measured float64 `json:"measured"`
	Passed   bool    `json:"passed"`
	Steps    int     `json:"steps"`
	Err      string  `json:"error,omitempty"`
}

type Result struct {
	Check  string  `json:"check"`
	Points []Point `json:"points"`
	// Order is the slope of log10(measured) against log10(dt).
	Order     float64 `json:"order"`
	Intercept float64 `json:"intercept"`
	// Coarsest is the largest step whose report passed every check, 0 if none did.
	Coarsest float64 `json:"coarsest"`
}

type StepSweep struct {
	steps  []float64
	check  string
	logger *slog.Logger
}

// NewStepSweep sweeps the given step sizes and fits the order on check.
func NewStepSweep(steps []float64, check string) *StepSweep {
	s := append([]float64(nil), steps...)
	sort.Float64s(s)
	return &StepSweep{steps: s, check: check, logger: slog.New(slog.DiscardHandler)}
}

func (s *StepSweep) WithLogger(l *slog.Logger) *StepSweep {
	if l != nil {
		s.logger = l
	}
	return s
}

// Geometric returns n step sizes evenly spaced in log from finest to coarsest.
func Geometric(finest, coarsest float64, n int) []float64 {
	if n < 2 {
		return []float64{coarsest}
	}
	return floats.LogSpan(make([]float64, n), finest, coarsest)
}

// Run executes base once per step size. A step that fails to integrate is
// kept in the result with its error and left out of the fit.
func (s *StepSweep) Run(ctx context.Context, base *config.Config, opts ...experiment.Option) (*Result, error) {
	res := &Result{Check: s.check}
	var xs, ys []float64

	for _, dt := range s.steps {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		cfg := base.Clone()
		cfg.Dt = dt
		p := Point{Dt: dt}

		out, err := experiment.New(cfg, opts...).Run(ctx)
		switch {
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return res, err
		case err != nil:
			p.Err = err.Error()
			if out != nil && out.Result != nil {
				p.Steps = out.Result.Steps
			}
		default:
			p.Steps = out.Result.Steps
			p.Passed = out.Report.Passed()
			c, ok := out.Report.Get(s.check)
			if !ok {
				return res, fmt.Errorf("sweep: check %q not in report; enable it in the policy", s.check)
			}
			p.Measured = c.Measured
			if c.Measured > 0 && !math.IsInf(c.Measured, 0) {
				xs = append(xs, math.Log10(dt))
				ys = append(ys, math.Log10(c.Measured))
			}
			if p.Passed && dt > res.Coarsest {
				res.Coarsest = dt
			}
		}

		s.logger.Debug("sweep point", "dt", dt, "measured", p.Measured, "passed", p.Passed, "error", p.Err)
		res.Points = append(res.Points, p)
	}

	if len(xs) < 2 {
		return res, ErrTooFewPoints
	}
	res.Intercept, res.Order = stat.LinearRegression(xs, ys, nil, false)
	return res, nil
}
