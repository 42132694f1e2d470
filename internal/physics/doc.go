// Package physics provides dynamical system models for simulation.
//
// Each model implements the [dynamo.Separable] interface, defining the
// differential equations governing the system's evolution split into a
// position update and a velocity update:
//
//   - [Oscillator]: undamped harmonic oscillator
//   - [CentralForce]: bodies orbiting a fixed central mass
//
// Both also implement [dynamo.Hamiltonian] for energy calculation.
//
// Parameters are immutable values. A model copies its parameters on
// construction and never mutates them.
//
// # Energy Conservation
//
// For Hamiltonian systems, use [dynamo.Hamiltonian] to monitor energy drift:
//
//	osc, err := physics.NewOscillator(params)
//	e0 := osc.Energy(osc.InitialState())
package physics
