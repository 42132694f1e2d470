package integrators

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/simcheck/internal/dynamo"
)

// harmonicOscillator is x” = -x with state [q, v].
type harmonicOscillator struct{}

func (h *harmonicOscillator) StateDim() int { return 2 }

func (h *harmonicOscillator) Derive(x dynamo.State, t float64) (dynamo.State, error) {
	return dynamo.State{x[1], -x[0]}, nil
}

func (h *harmonicOscillator) Split(x dynamo.State) (q, p dynamo.State) { return x[:1], x[1:] }
func (h *harmonicOscillator) Join(q, p dynamo.State) dynamo.State      { return dynamo.State{q[0], p[0]} }

func (h *harmonicOscillator) Velocity(p dynamo.State, t float64) (dynamo.State, error) {
	return dynamo.State{p[0]}, nil
}

func (h *harmonicOscillator) Acceleration(q dynamo.State, t float64) (dynamo.State, error) {
	return dynamo.State{-q[0]}, nil
}

func (h *harmonicOscillator) Energy(x dynamo.State) float64 {
	return 0.5 * (x[0]*x[0] + x[1]*x[1])
}

// plainDynamics hides the Separable methods of the oscillator.
type plainDynamics struct{ h harmonicOscillator }

func (p *plainDynamics) StateDim() int { return 2 }
func (p *plainDynamics) Derive(x dynamo.State, t float64) (dynamo.State, error) {
	return p.h.Derive(x, t)
}

var errBoom = errors.New("boom")

type failingDynamics struct{ harmonicOscillator }

func (f *failingDynamics) Derive(x dynamo.State, t float64) (dynamo.State, error) {
	return nil, errBoom
}

func (f *failingDynamics) Acceleration(q dynamo.State, t float64) (dynamo.State, error) {
	return nil, errBoom
}

func integrate(t *testing.T, integ dynamo.Integrator, dyn dynamo.System, x0 dynamo.State, dt float64, steps int) dynamo.State {
	t.Helper()
	x := x0.Clone()
	for i := 0; i < steps; i++ {
		var err error
		x, err = integ.Step(dyn, x, float64(i)*dt, dt)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	return x
}

func TestRK4Accuracy(t *testing.T) {
	dt := 0.01
	steps := 100

	x := integrate(t, NewRK4(), &harmonicOscillator{}, dynamo.State{1.0, 0.0}, dt, steps)

	expectedX := math.Cos(float64(steps) * dt)
	expectedV := -math.Sin(float64(steps) * dt)

	if math.Abs(x[0]-expectedX) > 1e-8 {
		t.Errorf("position error too large: got %.10f, expected %.10f", x[0], expectedX)
	}
	if math.Abs(x[1]-expectedV) > 1e-8 {
		t.Errorf("velocity error too large: got %.10f, expected %.10f", x[1], expectedV)
	}
}

func TestFixedStep_Accuracy(t *testing.T) {
	tests := []struct {
		name  string
		integ dynamo.Integrator
		tol   float64
	}{
		{"euler", NewEuler(), 1e-2},
		{"verlet", NewVerlet(), 1e-5},
		{"leapfrog", NewLeapfrog(), 1e-5},
		{"rk4", NewRK4(), 1e-10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := integrate(t, tt.integ, &harmonicOscillator{}, dynamo.State{1, 0}, 0.001, 1000)
			if d := math.Abs(x[0] - math.Cos(1)); d > tt.tol {
				t.Errorf("position error %e exceeds %e", d, tt.tol)
			}
			if d := math.Abs(x[1] + math.Sin(1)); d > tt.tol {
				t.Errorf("velocity error %e exceeds %e", d, tt.tol)
			}
		})
	}
}

func TestSymplectic_EnergyBounded(t *testing.T) {
	dyn := &harmonicOscillator{}
	for _, integ := range []dynamo.Integrator{NewLeapfrog(), NewVerlet()} {
		x := dynamo.State{1, 0}
		maxDrift := 0.0
		for i := 0; i < 100000; i++ {
			var err error
			x, err = integ.Step(dyn, x, float64(i)*0.01, 0.01)
			if err != nil {
				t.Fatal(err)
			}
			maxDrift = math.Max(maxDrift, math.Abs(dyn.Energy(x)-0.5))
		}
		if maxDrift > 1e-4 {
			t.Errorf("%T: energy drift %e over 1000 time units", integ, maxDrift)
		}
	}
}

func TestEuler_SecularDrift(t *testing.T) {
	dyn := &harmonicOscillator{}
	x := integrate(t, NewEuler(), dyn, dynamo.State{1, 0}, 0.01, 1000)
	// each Euler step multiplies the energy by exactly 1 + dt^2
	want := 0.5 * math.Pow(1+1e-4, 1000)
	if math.Abs(dyn.Energy(x)-want) > 1e-9 {
		t.Errorf("energy = %.12f, want %.12f", dyn.Energy(x), want)
	}
}

func TestSymplectic_RequiresSeparable(t *testing.T) {
	for _, integ := range []dynamo.Integrator{NewLeapfrog(), NewVerlet()} {
		_, err := integ.Step(&plainDynamics{}, dynamo.State{1, 0}, 0, 0.1)
		if !errors.Is(err, dynamo.ErrNotSeparable) {
			t.Errorf("%T: expected ErrNotSeparable, got %v", integ, err)
		}
	}
}

func TestStep_PropagatesDynamicsError(t *testing.T) {
	dyn := &failingDynamics{}
	for _, integ := range []dynamo.Integrator{NewEuler(), NewRK4(), NewLeapfrog(), NewVerlet(), NewDormandPrince(0, 0)} {
		if _, err := integ.Step(dyn, dynamo.State{1, 0}, 0, 0.1); !errors.Is(err, errBoom) {
			t.Errorf("%T: expected errBoom, got %v", integ, err)
		}
	}
}
