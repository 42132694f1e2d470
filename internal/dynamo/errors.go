package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrDiverged indicates a non-finite state was produced while stepping.
	ErrDiverged = errors.New("dynamo: integration diverged (NaN or Inf detected)")

	// ErrSingularity indicates the dynamics were evaluated at an undefined point.
	ErrSingularity = errors.New("dynamo: dynamics evaluated at a singularity")

	// ErrStepBudget indicates the internal step-count budget was exhausted.
	ErrStepBudget = errors.New("dynamo: internal step budget exceeded")

	// ErrStepTooSmall indicates adaptive timestep became too small.
	ErrStepTooSmall = errors.New("dynamo: adaptive timestep below minimum")

	// ErrDimensionMismatch indicates mismatched state/system dimensions.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and system")

	// ErrNotSeparable indicates a partitioned integrator was given a system
	// without separate position and velocity updates.
	ErrNotSeparable = errors.New("dynamo: system is not separable")

	// ErrNonIncreasingTime indicates a trajectory sample was not later than its predecessor.
	ErrNonIncreasingTime = errors.New("dynamo: trajectory timestamps must be strictly increasing")
)

// SingularityError reports which component hit the singular point.
type SingularityError struct {
	Body int
	Time float64
}

func (e *SingularityError) Error() string {
	return fmt.Sprintf("dynamo: body %d at origin (t=%g): acceleration undefined", e.Body, e.Time)
}

func (e *SingularityError) Unwrap() error {
	return ErrSingularity
}

// SimulationError wraps an error with simulation context. State is the last
// valid state before the failure.
type SimulationError struct {
	Step    int
	Time    float64
	State   State
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.6g): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
