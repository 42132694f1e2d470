package sim

import (
	"errors"
	"time"

	"github.com/san-kum/simcheck/internal/dynamo"
)

var (
	ErrInvalidBounds = errors.New("sim: invalid bounds")
	ErrNotAdaptive   = errors.New("sim: integrator has no error control")
	ErrAlreadyRun    = errors.New("sim: simulator already run")
)

// Status is the lifecycle state of a Simulator. A simulator moves from
// Initialized to Stepping and ends in Completed or Failed.
type Status int

const (
	Initialized Status = iota
	Stepping
	Completed
	Failed
)

func (s Status) String() string {
	switch s {
	case Initialized:
		return "initialized"
	case Stepping:
		return "stepping"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Result holds the trajectory of one run. On failure the trajectory keeps
// every sample produced before the error, and Err is a
// *dynamo.SimulationError.
type Result struct {
	Trajectory *dynamo.Trajectory
	Status     Status
	Err        error
	Steps      int
	Rejected   int
	Elapsed    time.Duration
}

// Final returns the last recorded sample.
func (r *Result) Final() dynamo.Sample {
	s, _ := r.Trajectory.Last()
	return s
}
