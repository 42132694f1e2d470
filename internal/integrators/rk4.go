package integrators

import (
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/simcheck/internal/dynamo"
)

// RK4 is the classical fourth-order Runge-Kutta method. Scratch buffers are
// reused between steps, so an RK4 value must not be shared across goroutines.
type RK4 struct {
	k1, k2, k3, k4 dynamo.State
	scratch        dynamo.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) resize(n int) {
	if len(r.k1) == n {
		return
	}
	r.k1 = make(dynamo.State, n)
	r.k2 = make(dynamo.State, n)
	r.k3 = make(dynamo.State, n)
	r.k4 = make(dynamo.State, n)
	r.scratch = make(dynamo.State, n)
}

func (r *RK4) Step(dyn dynamo.System, x dynamo.State, t, dt float64) (dynamo.State, error) {
	r.resize(len(x))
	half := 0.5 * dt

	if err := derive(dyn, x, t, r.k1); err != nil {
		return nil, err
	}
	floats.AddScaledTo(r.scratch, x, half, r.k1)
	if err := derive(dyn, r.scratch, t+half, r.k2); err != nil {
		return nil, err
	}
	floats.AddScaledTo(r.scratch, x, half, r.k2)
	if err := derive(dyn, r.scratch, t+half, r.k3); err != nil {
		return nil, err
	}
	floats.AddScaledTo(r.scratch, x, dt, r.k3)
	if err := derive(dyn, r.scratch, t+dt, r.k4); err != nil {
		return nil, err
	}

	// x + dt/6 (k1 + 2 k2 + 2 k3 + k4)
	next := x.Clone()
	sixth := dt / 6
	floats.AddScaled(next, sixth, r.k1)
	floats.AddScaled(next, 2*sixth, r.k2)
	floats.AddScaled(next, 2*sixth, r.k3)
	floats.AddScaled(next, sixth, r.k4)
	return next, nil
}

// derive evaluates dyn at (x, t) into dst.
func derive(dyn dynamo.System, x dynamo.State, t float64, dst dynamo.State) error {
	dx, err := dyn.Derive(x, t)
	if err != nil {
		return err
	}
	if len(dx) != len(dst) {
		return dynamo.ErrDimensionMismatch
	}
	copy(dst, dx)
	return nil
}
