package sweep

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/san-kum/simcheck/internal/config"
	"github.com/san-kum/simcheck/internal/harness"
)

func oscillator(integrator string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Integrator = integrator
	cfg.Policy = harness.Policy{MaxAbsError: 1e-6}
	return cfg
}

func TestStepSweep_Order(t *testing.T) {
	tests := []struct {
		integrator string
		want       float64
	}{
		{"leapfrog", 2},
		{"verlet", 2},
		{"rk4", 4},
	}

	for _, tt := range tests {
		t.Run(tt.integrator, func(t *testing.T) {
			res, err := NewStepSweep([]float64{0.1, 0.05, 0.025}, DefaultCheck).
				Run(context.Background(), oscillator(tt.integrator))
			if err != nil {
				t.Fatal(err)
			}
			if len(res.Points) != 3 {
				t.Fatalf("got %d points", len(res.Points))
			}
			if math.Abs(res.Order-tt.want) > 0.2 {
				t.Errorf("order %.3f, want %g", res.Order, tt.want)
			}
			// sorted ascending
			if res.Points[0].Dt != 0.025 || res.Points[0].Steps != 400 {
				t.Errorf("first point %+v", res.Points[0])
			}
		})
	}
}

func TestStepSweep_Coarsest(t *testing.T) {
	res, err := NewStepSweep([]float64{0.1, 0.05, 0.025, 0.0125}, DefaultCheck).
		Run(context.Background(), oscillator("rk4"))
	if err != nil {
		t.Fatal(err)
	}

	// RK4 on [0, 10]: the error is about 1e-5 at dt=0.1 and falls 16x per halving
	for _, p := range res.Points {
		if p.Passed != (p.Dt <= res.Coarsest) {
			t.Errorf("dt=%g passed=%v with coarsest %g", p.Dt, p.Passed, res.Coarsest)
		}
	}
	if res.Coarsest == 0 || res.Coarsest == 0.1 {
		t.Errorf("coarsest passing step %g", res.Coarsest)
	}
}

func TestStepSweep_FailedPointsKept(t *testing.T) {
	cfg := oscillator("rk4")
	cfg.MaxSteps = 250

	res, err := NewStepSweep([]float64{0.1, 0.05, 0.02}, DefaultCheck).Run(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	last := res.Points[0]
	if last.Dt != 0.02 || last.Err == "" || last.Steps != 250 {
		t.Errorf("budget-limited point %+v", last)
	}
}

func TestStepSweep_Errors(t *testing.T) {
	cfg := oscillator("rk4")
	if _, err := NewStepSweep([]float64{0.1}, DefaultCheck).Run(context.Background(), cfg); !errors.Is(err, ErrTooFewPoints) {
		t.Errorf("expected ErrTooFewPoints, got %v", err)
	}

	if _, err := NewStepSweep([]float64{0.1, 0.05}, harness.CheckReturn).Run(context.Background(), cfg); err == nil {
		t.Error("expected an error for a check missing from the report")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewStepSweep([]float64{0.1, 0.05}, DefaultCheck).Run(ctx, cfg); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestGeometric(t *testing.T) {
	steps := Geometric(0.001, 0.1, 3)
	want := []float64{0.001, 0.01, 0.1}
	for i := range want {
		if math.Abs(steps[i]-want[i]) > 1e-12 {
			t.Errorf("steps = %v", steps)
		}
	}
	if got := Geometric(0.001, 0.1, 1); len(got) != 1 || got[0] != 0.1 {
		t.Errorf("single step = %v", got)
	}
}
