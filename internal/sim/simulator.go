package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/simcheck/internal/dynamo"
)

// Simulator advances a system with one integrator. A Simulator runs once;
// build a new one for every run.
type Simulator struct {
	dyn        dynamo.System
	integrator dynamo.Integrator
	observers  []dynamo.Observer
	logger     *slog.Logger
	now        func() time.Time

	status   Status
	steps    int
	rejected int
}

type Option func(*Simulator)

func WithLogger(l *slog.Logger) Option {
	return func(s *Simulator) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithObserver(o dynamo.Observer) Option {
	return func(s *Simulator) { s.observers = append(s.observers, o) }
}

// WithClock replaces time.Now for elapsed-time measurement.
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) { s.now = now }
}

func New(dyn dynamo.System, integrator dynamo.Integrator, opts ...Option) *Simulator {
	s := &Simulator{
		dyn:        dyn,
		integrator: integrator,
		logger:     slog.New(slog.DiscardHandler),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulator) Status() Status { return s.status }

// RunFixed integrates with constant step b.Dt and records a sample at every
// t0 + i*dt. Times are computed by multiplication so rounding does not
// accumulate over long runs. The last sample is the last grid point not
// after b.End; when the span is not a multiple of dt the run completes
// short of b.End rather than taking a partial step.
func (s *Simulator) RunFixed(ctx context.Context, x0 dynamo.State, b dynamo.Bounds) (*Result, error) {
	if err := s.begin(x0, b); err != nil {
		return nil, err
	}

	n := int(math.Floor((b.End-b.Start)/b.Dt + 1e-9))
	res := s.newResult(n + 1)
	start := s.now()
	defer func() { res.Elapsed = s.now().Sub(start) }()

	x := x0.Clone()
	s.record(res, b.Start, x)

	s.logger.Debug("fixed-step run started",
		"integrator", fmt.Sprintf("%T", s.integrator),
		"steps", n, "dt", b.Dt)

	for i := 0; i < n; i++ {
		t := b.Start + float64(i)*b.Dt

		if err := ctx.Err(); err != nil {
			return s.fail(res, i, t, x, err)
		}
		if b.MaxSteps > 0 && s.steps >= b.MaxSteps {
			return s.fail(res, i, t, x, dynamo.ErrStepBudget)
		}

		next, err := s.integrator.Step(s.dyn, x, t, b.Dt)
		if err != nil {
			return s.fail(res, i, t, x, err)
		}
		if !next.IsValid() {
			return s.fail(res, i, t, x, dynamo.ErrDiverged)
		}

		x = next
		s.steps++
		s.record(res, b.Start+float64(i+1)*b.Dt, x)
	}

	return s.complete(res), nil
}

// RunAdaptive integrates with error-controlled steps and reports the state
// at the save points, interpolated with the integrator's dense output.
// b.Dt is the initial step size. Without explicit save points the samples
// fall on a uniform grid with spacing b.Dt.
func (s *Simulator) RunAdaptive(ctx context.Context, x0 dynamo.State, b dynamo.Bounds) (*Result, error) {
	adaptive, ok := s.integrator.(dynamo.AdaptiveIntegrator)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrNotAdaptive, s.integrator)
	}
	if err := s.begin(x0, b); err != nil {
		return nil, err
	}

	save, err := savePoints(b)
	if err != nil {
		s.status = Initialized
		return nil, err
	}

	res := s.newResult(len(save) + 1)
	start := s.now()
	defer func() { res.Elapsed = s.now().Sub(start) }()

	x := x0.Clone()
	t := b.Start
	h := b.Dt
	s.record(res, t, x)

	last := save[len(save)-1]
	k := 0
	for k < len(save) && save[k] <= t {
		k++
	}

	s.logger.Debug("adaptive run started",
		"integrator", fmt.Sprintf("%T", s.integrator),
		"save_points", len(save), "dt0", h)

	for k < len(save) {
		if err := ctx.Err(); err != nil {
			return s.fail(res, s.steps, t, x, err)
		}
		if b.MaxSteps > 0 && s.steps+s.rejected >= b.MaxSteps {
			return s.fail(res, s.steps, t, x, dynamo.ErrStepBudget)
		}

		final := false
		if t+h >= last {
			h = last - t
			final = true
		}

		a, err := adaptive.Attempt(s.dyn, x, t, h)
		if err != nil {
			return s.fail(res, s.steps, t, x, err)
		}

		// a non-finite error estimate means a stage left the finite range
		if !a.Next.IsValid() || math.IsInf(a.ErrRatio, 1) {
			return s.fail(res, s.steps, t, x, dynamo.ErrDiverged)
		}
		if a.ErrRatio > 1 {
			s.rejected++
			h = a.SuggestedDt
			if h <= minStep(t) {
				return s.fail(res, s.steps, t, x, dynamo.ErrStepTooSmall)
			}
			continue
		}

		tNew := t + h
		if final {
			tNew = last
		}
		for k < len(save) && (final || save[k] <= tNew) {
			xs := a.Next
			if save[k] < tNew {
				xs = a.Interpolate((save[k] - t) / h)
			}
			s.record(res, save[k], xs)
			k++
		}

		x = a.Next
		t = tNew
		s.steps++
		h = a.SuggestedDt
	}

	return s.complete(res), nil
}

func (s *Simulator) begin(x0 dynamo.State, b dynamo.Bounds) error {
	if s.status != Initialized {
		return ErrAlreadyRun
	}
	if err := validateBounds(b); err != nil {
		return err
	}
	if len(x0) != s.dyn.StateDim() {
		return fmt.Errorf("%w: initial state has %d entries, system expects %d",
			dynamo.ErrDimensionMismatch, len(x0), s.dyn.StateDim())
	}
	if !x0.IsValid() {
		return fmt.Errorf("%w: initial state is not finite", ErrInvalidBounds)
	}
	s.status = Stepping
	return nil
}

func (s *Simulator) newResult(capacity int) *Result {
	return &Result{Trajectory: dynamo.NewTrajectory(capacity)}
}

func (s *Simulator) record(res *Result, t float64, x dynamo.State) {
	// validateBounds guarantees distinct grid times and savePoints checks
	// ordering, so Append cannot reject t here
	_ = res.Trajectory.Append(t, x)
	for _, obs := range s.observers {
		obs.OnStep(x, t)
	}
}

func (s *Simulator) fail(res *Result, step int, t float64, x dynamo.State, cause error) (*Result, error) {
	s.status = Failed
	res.Status = Failed
	res.Steps, res.Rejected = s.steps, s.rejected
	res.Err = &dynamo.SimulationError{Step: step, Time: t, State: x.Clone(), Wrapped: cause}

	s.logger.Warn("run failed",
		"step", step, "t", t, "samples", res.Trajectory.Len(), "error", cause)
	return res, res.Err
}

func (s *Simulator) complete(res *Result) *Result {
	s.status = Completed
	res.Status = Completed
	res.Steps, res.Rejected = s.steps, s.rejected

	s.logger.Debug("run completed",
		"steps", s.steps, "rejected", s.rejected, "samples", res.Trajectory.Len())
	return res
}

func validateBounds(b dynamo.Bounds) error {
	if b.Dt <= 0 || math.IsNaN(b.Dt) {
		return fmt.Errorf("%w: dt must be positive, got %g", ErrInvalidBounds, b.Dt)
	}
	if !(b.End > b.Start) {
		return fmt.Errorf("%w: end %g must be after start %g", ErrInvalidBounds, b.End, b.Start)
	}
	if ulp := gridSpacing(b); b.Dt <= 4*ulp {
		return fmt.Errorf("%w: dt %g is too close to the float spacing %g of the span", ErrInvalidBounds, b.Dt, ulp)
	}
	if b.MaxSteps < 0 {
		return fmt.Errorf("%w: negative step budget %d", ErrInvalidBounds, b.MaxSteps)
	}
	return nil
}

func savePoints(b dynamo.Bounds) ([]float64, error) {
	if len(b.SavePoints) == 0 {
		n := int(math.Floor((b.End-b.Start)/b.Dt + 1e-9))
		if n < 1 {
			return nil, fmt.Errorf("%w: span shorter than one step", ErrInvalidBounds)
		}
		return floats.Span(make([]float64, n+1), b.Start, b.Start+float64(n)*b.Dt), nil
	}

	prev := b.Start
	for i, p := range b.SavePoints {
		if p < b.Start || p > b.End {
			return nil, fmt.Errorf("%w: save point %g outside [%g, %g]", ErrInvalidBounds, p, b.Start, b.End)
		}
		if i > 0 && p <= prev {
			return nil, fmt.Errorf("%w: save points must be strictly increasing", ErrInvalidBounds)
		}
		prev = p
	}
	if b.SavePoints[len(b.SavePoints)-1] <= b.Start {
		return nil, fmt.Errorf("%w: no save point after start", ErrInvalidBounds)
	}
	return append([]float64(nil), b.SavePoints...), nil
}

// gridSpacing is the gap between adjacent float64 values at the far end of
// the span. Steps within a few of these cannot keep sample times distinct
// after rounding.
func gridSpacing(b dynamo.Bounds) float64 {
	m := math.Max(math.Abs(b.Start), math.Abs(b.End))
	return math.Nextafter(m, math.Inf(1)) - m
}

func minStep(t float64) float64 {
	return 1e-14 * math.Max(1, math.Abs(t))
}
