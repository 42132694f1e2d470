package dynamo

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Norm is the Euclidean length of s.
func (s State) Norm() float64 { return floats.Norm(s, 2) }

func (s State) Scale(factor float64) State {
	return floats.ScaleTo(make(State, len(s)), factor, s)
}

// System is a first-order ODE dX/dt = f(X, t). Derive must not retain or
// modify x.
type System interface {
	Derive(x State, t float64) (State, error)
	StateDim() int
}

// Separable is a System whose state splits into positions q and velocities p
// with dq/dt depending only on p and dp/dt depending only on q.
type Separable interface {
	System
	Split(x State) (q, p State)
	Join(q, p State) State
	Velocity(p State, t float64) (State, error)
	Acceleration(q State, t float64) (State, error)
}

type Hamiltonian interface {
	Energy(x State) float64
}

type Integrator interface {
	Step(dyn System, x State, t float64, dt float64) (State, error)
}

// AdaptiveIntegrator attempts one step of size dt and reports the error
// ratio (accepted when <= 1) and the step size to try next.
type AdaptiveIntegrator interface {
	Integrator
	Attempt(dyn System, x State, t, dt float64) (Attempt, error)
	Order() int
}

// Attempt is the outcome of one adaptive trial step. Interpolate evaluates
// the method's dense output at t+theta*dt for theta in [0, 1].
type Attempt struct {
	Next        State
	ErrRatio    float64
	SuggestedDt float64
	Interpolate func(theta float64) State
}

type Observer interface {
	OnStep(x State, t float64)
}

// Bounds describe the time span of one run.
type Bounds struct {
	Start    float64
	End      float64
	Dt       float64
	MaxSteps int
	// SavePoints, if set, are the report instants for adaptive runs.
	SavePoints []float64
}

func DefaultBounds() Bounds {
	return Bounds{
		Start:    0,
		End:      10.0,
		Dt:       0.01,
		MaxSteps: 10_000_000,
	}
}
