// Package dynamo provides core simulation primitives for dynamical systems.
//
// The package defines the fundamental interfaces and types for numerical
// simulation of ordinary differential equations (ODEs):
//
//   - [State]: flat vector representing system state
//   - [System]: interface for ODE systems (dX/dt = f(X, t))
//   - [Separable]: partitioned systems for symplectic integrators
//   - [Integrator]: fixed-step numerical integrator
//   - [Trajectory]: ordered (t, state) samples produced by a run
//
// # Example
//
//	osc := physics.NewOscillator(params)
//	s := sim.New(osc, integrators.NewLeapfrog())
//	result := s.RunFixed(ctx, osc.InitialState(), bounds)
//
// # Thread Safety
//
// Systems are pure and may be shared. Integrators keep scratch buffers and
// must not be shared between concurrent runs.
package dynamo
