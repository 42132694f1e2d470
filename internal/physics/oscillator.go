package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/simcheck/internal/dynamo"
	"github.com/san-kum/simcheck/internal/statevec"
)

const (
	DefaultMass      = 1.0
	DefaultStiffness = 1.0
	DefaultAmplitude = 1.0
)

// OscillatorParams is the single source of truth for k, m, A and phi.
type OscillatorParams struct {
	Mass      float64
	Stiffness float64
	Amplitude float64
	Phase     float64
}

func DefaultOscillatorParams() OscillatorParams {
	return OscillatorParams{
		Mass:      DefaultMass,
		Stiffness: DefaultStiffness,
		Amplitude: DefaultAmplitude,
	}
}

func (p OscillatorParams) Validate() error {
	if p.Mass <= 0 || math.IsNaN(p.Mass) {
		return fmt.Errorf("%w: mass must be positive, got %g", ErrParameterBounds, p.Mass)
	}
	if p.Stiffness <= 0 || math.IsNaN(p.Stiffness) {
		return fmt.Errorf("%w: stiffness must be positive, got %g", ErrParameterBounds, p.Stiffness)
	}
	return nil
}

// Omega is the angular frequency sqrt(k/m).
func (p OscillatorParams) Omega() float64 {
	return math.Sqrt(p.Stiffness / p.Mass)
}

// Oscillator is a one degree of freedom mass on a spring with state [q, v].
type Oscillator struct {
	params OscillatorParams
	ratio  float64
}

func NewOscillator(p OscillatorParams) (*Oscillator, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Oscillator{params: p, ratio: p.Stiffness / p.Mass}, nil
}

func (o *Oscillator) Params() OscillatorParams { return o.params }

func (o *Oscillator) StateDim() int { return 2 }

// InitialState is q0 = A cos(phi), v0 = -A omega sin(phi).
func (o *Oscillator) InitialState() dynamo.State {
	p := o.params
	x, _ := statevec.PackDOF(
		[]float64{p.Amplitude * math.Cos(p.Phase)},
		[]float64{-p.Amplitude * p.Omega() * math.Sin(p.Phase)},
	)
	return x
}

func (o *Oscillator) Derive(x dynamo.State, t float64) (dynamo.State, error) {
	if len(x) != 2 {
		return nil, fmt.Errorf("%w: oscillator expects 2 entries, got %d", dynamo.ErrDimensionMismatch, len(x))
	}
	return dynamo.State{x[1], -o.ratio * x[0]}, nil
}

func (o *Oscillator) Split(x dynamo.State) (q, p dynamo.State) {
	return x[:1], x[1:]
}

func (o *Oscillator) Join(q, p dynamo.State) dynamo.State {
	return dynamo.State{q[0], p[0]}
}

func (o *Oscillator) Velocity(p dynamo.State, t float64) (dynamo.State, error) {
	return dynamo.State{p[0]}, nil
}

func (o *Oscillator) Acceleration(q dynamo.State, t float64) (dynamo.State, error) {
	return dynamo.State{-o.ratio * q[0]}, nil
}

// Energy is the total mechanical energy m v^2 / 2 + k q^2 / 2.
func (o *Oscillator) Energy(x dynamo.State) float64 {
	q, v := x[0], x[1]
	return 0.5*o.params.Mass*v*v + 0.5*o.params.Stiffness*q*q
}
