// Package metrics holds streaming reducers over trajectory samples.
package metrics

import (
	"math"

	"github.com/san-kum/simcheck/internal/dynamo"
)

// Metric consumes samples in time order. Every Metric is also a
// dynamo.Observer, so it can watch a run as it happens.
type Metric interface {
	dynamo.Observer
	Name() string
	Value() float64
	Reset()
}

// EnergyDrift tracks max |E(t) - E(t0)| from the states alone.
type EnergyDrift struct {
	name          string
	energy        dynamo.Hamiltonian
	relative      bool
	initialEnergy float64
	currentEnergy float64
	maxDrift      float64
	samples       int
}

func NewEnergyDrift(energy dynamo.Hamiltonian) *EnergyDrift {
	return &EnergyDrift{
		name:   "energy_drift",
		energy: energy,
	}
}

// NewRelativeEnergyDrift divides the drift by |E(t0)|.
func NewRelativeEnergyDrift(energy dynamo.Hamiltonian) *EnergyDrift {
	e := NewEnergyDrift(energy)
	e.relative = true
	return e
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) OnStep(x dynamo.State, t float64) {
	energy := e.energy.Energy(x)

	if e.samples == 0 {
		e.initialEnergy = energy
	}
	e.currentEnergy = energy
	e.samples++

	drift := math.Abs(energy - e.initialEnergy)
	if e.relative && e.initialEnergy != 0 {
		drift /= math.Abs(e.initialEnergy)
	}
	if math.IsNaN(drift) {
		drift = math.Inf(1)
	}
	e.maxDrift = math.Max(e.maxDrift, drift)
}

func (e *EnergyDrift) Value() float64 {
	return e.maxDrift
}

func (e *EnergyDrift) Initial() float64 { return e.initialEnergy }
func (e *EnergyDrift) Current() float64 { return e.currentEnergy }
func (e *EnergyDrift) Samples() int     { return e.samples }

func (e *EnergyDrift) Reset() {
	e.initialEnergy = 0
	e.currentEnergy = 0
	e.maxDrift = 0
	e.samples = 0
}

// MaxAbsError tracks the largest componentwise deviation between paired
// states.
type MaxAbsError struct {
	max     float64
	samples int
}

func (m *MaxAbsError) Name() string { return "max_abs_error" }

// Compare records |got - want| over every component.
func (m *MaxAbsError) Compare(got, want dynamo.State) {
	for i := range got {
		d := math.Abs(got[i] - want[i])
		if math.IsNaN(d) {
			d = math.Inf(1)
		}
		m.max = math.Max(m.max, d)
	}
	m.samples++
}

func (m *MaxAbsError) Value() float64 { return m.max }

func (m *MaxAbsError) Reset() {
	m.max = 0
	m.samples = 0
}
