package experiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/san-kum/simcheck/internal/config"
	"github.com/san-kum/simcheck/internal/dynamo"
	"github.com/san-kum/simcheck/internal/harness"
	"github.com/san-kum/simcheck/internal/montecarlo"
	"github.com/san-kum/simcheck/internal/reference"
	"github.com/san-kum/simcheck/internal/sim"
)

var ErrWrongSystem = errors.New("experiment: operation does not apply to this system")

// Experiment runs one configuration end to end: build, integrate, validate.
type Experiment struct {
	cfg       *config.Config
	registry  *Registry
	logger    *slog.Logger
	observers []dynamo.Observer
}

type Option func(*Experiment)

func WithLogger(l *slog.Logger) Option {
	return func(e *Experiment) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithObserver(o dynamo.Observer) Option {
	return func(e *Experiment) { e.observers = append(e.observers, o) }
}

func WithRegistry(r *Registry) Option {
	return func(e *Experiment) { e.registry = r }
}

func New(cfg *config.Config, opts ...Option) *Experiment {
	e := &Experiment{
		cfg:      cfg,
		registry: NewRegistry(),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Experiment) Config() *config.Config { return e.cfg }

// Outcome of a trajectory run. Report is nil when the run failed; Result
// then holds the partial trajectory.
type Outcome struct {
	Setup  *Setup
	Result *sim.Result
	Report *harness.Report
}

func (e *Experiment) Run(ctx context.Context) (*Outcome, error) {
	if e.cfg.System == config.SystemMonteCarlo {
		return nil, fmt.Errorf("%w: %s has no trajectory", ErrWrongSystem, e.cfg.System)
	}

	setup, err := e.registry.Build(e.cfg)
	if err != nil {
		return nil, err
	}
	integ, err := e.registry.GetIntegrator(e.cfg)
	if err != nil {
		return nil, err
	}

	opts := []sim.Option{sim.WithLogger(e.logger)}
	for _, o := range e.observers {
		opts = append(opts, sim.WithObserver(o))
	}
	s := sim.New(setup.System, integ, opts...)

	e.logger.Info("run started",
		"system", e.cfg.System, "integrator", e.cfg.Integrator,
		"dt", e.cfg.Dt, "duration", e.cfg.Duration, "adaptive", e.cfg.Adaptive)

	var res *sim.Result
	if e.cfg.Adaptive {
		res, err = s.RunAdaptive(ctx, setup.Initial, e.cfg.Bounds())
	} else {
		res, err = s.RunFixed(ctx, setup.Initial, e.cfg.Bounds())
	}
	out := &Outcome{Setup: setup, Result: res}
	if err != nil {
		if res == nil {
			return nil, err
		}
		return out, err
	}

	h := harness.New(setup.Energy, harness.WithLogger(e.logger))
	series := reference.Sample(setup.Reference, res.Trajectory.Times())
	out.Report, err = h.Validate(res.Trajectory, series, e.cfg.Policy)
	if err != nil {
		return out, fmt.Errorf("validate: %w", err)
	}

	e.logger.Info("run validated",
		"samples", res.Trajectory.Len(), "steps", res.Steps,
		"rejected", res.Rejected, "passed", out.Report.Passed())
	return out, nil
}

// PiOutcome is a Monte Carlo study: one estimate at the configured size,
// the convergence ladder and the error-scaling check over its sizes.
type PiOutcome struct {
	Estimate    montecarlo.Result      `json:"estimate"`
	Lattice     float64                `json:"lattice,omitempty"`
	Convergence *harness.Convergence   `json:"convergence"`
	Points      []harness.ScalingPoint `json:"points,omitempty"`
	Scaling     *harness.ScalingResult `json:"scaling,omitempty"`
}

func (e *Experiment) Pi(ctx context.Context) (*PiOutcome, error) {
	if e.cfg.System != config.SystemMonteCarlo {
		return nil, fmt.Errorf("%w: %s is not a Monte Carlo system", ErrWrongSystem, e.cfg.System)
	}
	mc := e.cfg.MonteCarlo
	estimator := e.estimator(mc.Seed)

	out := &PiOutcome{}
	if mc.Samples > 0 {
		res, err := estimator.Estimate(ctx, mc.Samples)
		if err != nil {
			return nil, err
		}
		out.Estimate = res
		e.logger.Info("pi estimated",
			"n", res.N, "value", res.Value, "abs_error", res.AbsError(),
			"within_band", reference.WithinBand(res.Value, res.N))
	}

	if mc.LatticeRadius > 0 {
		out.Lattice = montecarlo.Lattice(mc.LatticeRadius)
	}

	h := harness.New(nil, harness.WithLogger(e.logger))
	conv, err := h.Converge(ctx, estimator, mc.Convergence)
	if err != nil {
		return nil, err
	}
	out.Convergence = conv

	sizes := make([]int, len(conv.Rows))
	for i, r := range conv.Rows {
		sizes[i] = r.N
	}
	if len(sizes) < 2 || conv.StopReason == harness.StopCanceled {
		return out, nil
	}

	if mc.Replicates > 1 {
		out.Points, err = harness.Scaling(ctx, func(r int) montecarlo.Sampler {
			return e.estimator(mc.Seed + uint64(r) + 1)
		}, sizes, mc.Replicates)
		if err != nil {
			return out, err
		}
	} else {
		out.Points = harness.PointsFromRows(conv.Rows)
	}

	sc, err := harness.ScalingCheck(out.Points, mc.ScaledLow, mc.ScaledHigh)
	if err != nil {
		return out, err
	}
	out.Scaling = &sc
	return out, nil
}

func (e *Experiment) estimator(seed uint64) *montecarlo.Estimator {
	est := montecarlo.NewEstimator(seed)
	if e.cfg.MonteCarlo.BatchSize > 0 {
		est.BatchSize = e.cfg.MonteCarlo.BatchSize
	}
	est.Workers = e.cfg.MonteCarlo.Workers
	return est
}
