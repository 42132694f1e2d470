package metrics

import (
	"errors"

	"gonum.org/v1/gonum/floats"
)

var ErrTooFewCrossings = errors.New("metrics: fewer than two level crossings")

// Crossings returns the interpolated instants at which values crosses level
// in either direction.
func Crossings(times, values []float64, level float64) []float64 {
	var out []float64
	for i := 1; i < len(values) && i < len(times); i++ {
		a, b := values[i-1]-level, values[i]-level
		if (a < 0 && b >= 0) || (a > 0 && b <= 0) {
			frac := a / (a - b)
			out = append(out, times[i-1]+frac*(times[i]-times[i-1]))
		}
	}
	return out
}

// Period estimates the period of an oscillating series from crossings of
// its mid level. Consecutive crossings are half a period apart.
func Period(times, values []float64) (float64, error) {
	if len(values) < 3 {
		return 0, ErrTooFewCrossings
	}
	level := (floats.Min(values) + floats.Max(values)) / 2
	c := Crossings(times, values, level)
	if len(c) < 2 {
		return 0, ErrTooFewCrossings
	}
	return 2 * (c[len(c)-1] - c[0]) / float64(len(c)-1), nil
}
