package reference

import (
	"math"

	"github.com/san-kum/simcheck/internal/dynamo"
	"github.com/san-kum/simcheck/internal/physics"
)

// Oscillator is the closed-form solution q(t) = A cos(wt + phi).
type Oscillator struct {
	params physics.OscillatorParams
	omega  float64
}

func NewOscillator(p physics.OscillatorParams) Oscillator {
	return Oscillator{params: p, omega: p.Omega()}
}

func (o Oscillator) Omega() float64 { return o.omega }

func (o Oscillator) Period() float64 { return 2 * math.Pi / o.omega }

func (o Oscillator) Position(t float64) float64 {
	return o.params.Amplitude * math.Cos(o.omega*t+o.params.Phase)
}

func (o Oscillator) Velocity(t float64) float64 {
	return -o.params.Amplitude * o.omega * math.Sin(o.omega*t+o.params.Phase)
}

func (o Oscillator) At(t float64) dynamo.State {
	return dynamo.State{o.Position(t), o.Velocity(t)}
}

// Energy is constant along the exact solution.
func (o Oscillator) Energy() float64 {
	a := o.params.Amplitude
	return 0.5 * o.params.Stiffness * a * a
}
