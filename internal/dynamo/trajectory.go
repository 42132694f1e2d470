package dynamo

import "fmt"

// Sample is one (time, state) pair of a trajectory.
type Sample struct {
	T float64
	X State
}

// Trajectory is an ordered sequence of samples with strictly increasing
// timestamps. It has a single writer: the run that produced it.
type Trajectory struct {
	samples []Sample
}

func NewTrajectory(capacity int) *Trajectory {
	if capacity < 0 {
		capacity = 0
	}
	return &Trajectory{samples: make([]Sample, 0, capacity)}
}

// Append stores a copy of x at time t.
func (tr *Trajectory) Append(t float64, x State) error {
	if n := len(tr.samples); n > 0 && t <= tr.samples[n-1].T {
		return fmt.Errorf("%w: %g after %g", ErrNonIncreasingTime, t, tr.samples[n-1].T)
	}
	tr.samples = append(tr.samples, Sample{T: t, X: x.Clone()})
	return nil
}

func (tr *Trajectory) Len() int { return len(tr.samples) }

func (tr *Trajectory) At(i int) Sample { return tr.samples[i] }

func (tr *Trajectory) Last() (Sample, bool) {
	if len(tr.samples) == 0 {
		return Sample{}, false
	}
	return tr.samples[len(tr.samples)-1], true
}

func (tr *Trajectory) Times() []float64 {
	times := make([]float64, len(tr.samples))
	for i, s := range tr.samples {
		times[i] = s.T
	}
	return times
}

// Component returns the time series of state index k.
func (tr *Trajectory) Component(k int) []float64 {
	out := make([]float64, len(tr.samples))
	for i, s := range tr.samples {
		out[i] = s.X[k]
	}
	return out
}

// States returns the stored states. Callers must treat them as read-only.
func (tr *Trajectory) States() []State {
	out := make([]State, len(tr.samples))
	for i, s := range tr.samples {
		out[i] = s.X
	}
	return out
}
