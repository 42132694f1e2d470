package reference

import (
	"github.com/san-kum/simcheck/internal/dynamo"
)

// Model is an analytic solution evaluable at arbitrary t.
type Model interface {
	At(t float64) dynamo.State
	// Period is the fundamental period of the motion.
	Period() float64
}

// Series is the reference evaluated on a trajectory's time grid.
type Series struct {
	times  []float64
	states []dynamo.State
	period float64
}

// Sample evaluates m at every instant in times.
func Sample(m Model, times []float64) *Series {
	s := &Series{
		times:  append([]float64(nil), times...),
		states: make([]dynamo.State, len(times)),
		period: m.Period(),
	}
	for i, t := range times {
		s.states[i] = m.At(t)
	}
	return s
}

func (s *Series) Len() int { return len(s.times) }

func (s *Series) At(i int) dynamo.Sample {
	return dynamo.Sample{T: s.times[i], X: s.states[i]}
}

func (s *Series) Times() []float64 { return append([]float64(nil), s.times...) }

// Period is the reference period of the sampled model.
func (s *Series) Period() float64 { return s.period }
