package integrators

import (
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/simcheck/internal/dynamo"
)

// Euler is the explicit first-order method. It is not symplectic and shows
// secular energy drift on conservative systems.
type Euler struct{}

func NewEuler() *Euler { return &Euler{} }

func (e *Euler) Step(dyn dynamo.System, x dynamo.State, t, dt float64) (dynamo.State, error) {
	dx, err := dyn.Derive(x, t)
	if err != nil {
		return nil, err
	}
	if len(dx) != len(x) {
		return nil, dynamo.ErrDimensionMismatch
	}
	return floats.AddScaledTo(make(dynamo.State, len(x)), x, dt, dx), nil
}
