package reference

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// PiTarget is the value the circle-sampling estimator converges to.
const PiTarget = math.Pi

// hitProbability is the chance a uniform point in the square lands in the
// inscribed quarter circle.
const hitProbability = math.Pi / 4

// SampleSigma is the standard deviation of one 4*hit sample.
var SampleSigma = 4 * math.Sqrt(hitProbability*(1-hitProbability))

// Z95 is the two-sided 95% normal quantile.
var Z95 = distuv.UnitNormal.Quantile(0.975)

// StandardError is the 1/sqrt(n) scaling of the estimator error.
func StandardError(n int) float64 {
	return 1 / math.Sqrt(float64(n))
}

// Band95 is the half-width of the 95% confidence band of an n-sample
// estimate around PiTarget.
func Band95(n int) float64 {
	return Z95 * SampleSigma * StandardError(n)
}

// WithinBand reports whether estimate lies inside the 95% band for n.
func WithinBand(estimate float64, n int) bool {
	return math.Abs(estimate-PiTarget) <= Band95(n)
}
