package analysis

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrTooShort   = errors.New("analysis: series too short")
	ErrNonUniform = errors.New("analysis: samples are not uniformly spaced")
	ErrNoPeak     = errors.New("analysis: no spectral peak")
)

const minSamples = 8

// PowerSpectrum returns |X_k| for k = 0..n/2 of the Hann-windowed,
// mean-removed series.
func PowerSpectrum(data []float64) []float64 {
	x := make([]float64, len(data))
	copy(x, data)
	floats.AddConst(-stat.Mean(x, nil), x)
	window.Apply(x, window.Hann)

	spec := fft.FFTReal(x)
	ps := make([]float64, len(spec)/2+1)
	for i := range ps {
		ps[i] = cmplx.Abs(spec[i])
	}
	return ps
}

// DominantPeriod estimates the period of the strongest oscillation in a
// uniformly sampled series. The peak bin is refined by fitting a parabola
// through its neighbours.
func DominantPeriod(times, values []float64) (float64, error) {
	n := len(values)
	if n < minSamples || len(times) != n {
		return 0, fmt.Errorf("%w: %d samples", ErrTooShort, n)
	}
	dt, err := spacing(times)
	if err != nil {
		return 0, err
	}

	ps := PowerSpectrum(values)
	// bin 0 is the mean and bin 1 leaks into it through the window
	k := 2 + floats.MaxIdx(ps[2:])
	if ps[k] == 0 || k == len(ps)-1 {
		return 0, ErrNoPeak
	}

	a, b, c := ps[k-1], ps[k], ps[k+1]
	shift := 0.0
	if den := a - 2*b + c; den != 0 {
		shift = 0.5 * (a - c) / den
	}
	freq := (float64(k) + shift) / (float64(n) * dt)
	return 1 / freq, nil
}

func spacing(times []float64) (float64, error) {
	n := len(times)
	dt := (times[n-1] - times[0]) / float64(n-1)
	if !(dt > 0) {
		return 0, fmt.Errorf("%w: span %g", ErrNonUniform, times[n-1]-times[0])
	}
	for i := 1; i < n; i++ {
		if math.Abs(times[i]-times[i-1]-dt) > 1e-6*dt {
			return 0, fmt.Errorf("%w: gap %g at sample %d, expected %g", ErrNonUniform, times[i]-times[i-1], i, dt)
		}
	}
	return dt, nil
}
