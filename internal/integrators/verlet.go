package integrators

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/simcheck/internal/dynamo"
)

func separable(dyn dynamo.System) (dynamo.Separable, error) {
	sep, ok := dyn.(dynamo.Separable)
	if !ok {
		return nil, fmt.Errorf("%w: %T", dynamo.ErrNotSeparable, dyn)
	}
	return sep, nil
}

// axpy returns x + a*y in a new state.
func axpy(x dynamo.State, a float64, y dynamo.State) dynamo.State {
	return floats.AddScaledTo(make(dynamo.State, len(x)), x, a, y)
}

// Verlet is position Verlet (drift-kick-drift). Second order, symplectic
// and time-reversible.
type Verlet struct{}

func NewVerlet() *Verlet {
	return &Verlet{}
}

func (v *Verlet) Step(dyn dynamo.System, x dynamo.State, t, dt float64) (dynamo.State, error) {
	sys, err := separable(dyn)
	if err != nil {
		return nil, err
	}
	halfDt := 0.5 * dt
	q, p := sys.Split(x)

	vel, err := sys.Velocity(p, t)
	if err != nil {
		return nil, err
	}
	qHalf := axpy(q, halfDt, vel)

	acc, err := sys.Acceleration(qHalf, t+halfDt)
	if err != nil {
		return nil, err
	}
	pNew := axpy(p, dt, acc)

	vel, err = sys.Velocity(pNew, t+dt)
	if err != nil {
		return nil, err
	}
	return sys.Join(axpy(qHalf, halfDt, vel), pNew), nil
}

// Leapfrog is the kick-drift-kick scheme. Velocities are reported at the
// same instants as positions.
type Leapfrog struct{}

func NewLeapfrog() *Leapfrog {
	return &Leapfrog{}
}

func (l *Leapfrog) Step(dyn dynamo.System, x dynamo.State, t, dt float64) (dynamo.State, error) {
	sys, err := separable(dyn)
	if err != nil {
		return nil, err
	}
	halfDt := dt * 0.5
	q, p := sys.Split(x)

	acc, err := sys.Acceleration(q, t)
	if err != nil {
		return nil, err
	}
	pHalf := axpy(p, halfDt, acc)

	vel, err := sys.Velocity(pHalf, t+halfDt)
	if err != nil {
		return nil, err
	}
	qNew := axpy(q, dt, vel)

	acc, err = sys.Acceleration(qNew, t+dt)
	if err != nil {
		return nil, err
	}
	return sys.Join(qNew, axpy(pHalf, halfDt, acc)), nil
}
