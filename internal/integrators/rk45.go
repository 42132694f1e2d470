package integrators

import (
	"math"

	"github.com/san-kum/simcheck/internal/dynamo"
)

// Dormand-Prince coefficients (RK45)
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0

	// dense output (Hairer, Norsett & Wanner, contd5)
	d1 = -12715105075.0 / 11282082432.0
	d3 = 87487479700.0 / 32700410799.0
	d4 = -10690763975.0 / 1880347072.0
	d5 = 701980252875.0 / 199316789632.0
	d6 = -1453857185.0 / 822651844.0
	d7 = 69997945.0 / 29380423.0
)

const (
	DefaultRelTol = 1e-9
	DefaultAbsTol = 1e-12
)

// DormandPrince is the embedded 5(4) pair with step-size control and
// fourth-order continuous extension.
type DormandPrince struct {
	RelTol float64
	AbsTol float64

	safety   float64
	minScale float64
	maxScale float64
}

func NewDormandPrince(relTol, absTol float64) *DormandPrince {
	if relTol <= 0 {
		relTol = DefaultRelTol
	}
	if absTol <= 0 {
		absTol = DefaultAbsTol
	}
	return &DormandPrince{
		RelTol:   relTol,
		AbsTol:   absTol,
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
	}
}

func (r *DormandPrince) Order() int { return 5 }

// Step takes one step of exactly dt without error control.
func (r *DormandPrince) Step(dyn dynamo.System, x dynamo.State, t, dt float64) (dynamo.State, error) {
	a, err := r.Attempt(dyn, x, t, dt)
	if err != nil {
		return nil, err
	}
	return a.Next, nil
}

func (r *DormandPrince) Attempt(dyn dynamo.System, x dynamo.State, t, dt float64) (dynamo.Attempt, error) {
	n := len(x)
	stage := func(tt float64, f func(i int) float64) (dynamo.State, error) {
		xs := make(dynamo.State, n)
		for i := 0; i < n; i++ {
			xs[i] = x[i] + dt*f(i)
		}
		return dyn.Derive(xs, tt)
	}

	k1, err := dyn.Derive(x, t)
	if err != nil {
		return dynamo.Attempt{}, err
	}
	k2, err := stage(t+a2*dt, func(i int) float64 { return b21 * k1[i] })
	if err != nil {
		return dynamo.Attempt{}, err
	}
	k3, err := stage(t+a3*dt, func(i int) float64 { return b31*k1[i] + b32*k2[i] })
	if err != nil {
		return dynamo.Attempt{}, err
	}
	k4, err := stage(t+a4*dt, func(i int) float64 { return b41*k1[i] + b42*k2[i] + b43*k3[i] })
	if err != nil {
		return dynamo.Attempt{}, err
	}
	k5, err := stage(t+a5*dt, func(i int) float64 {
		return b51*k1[i] + b52*k2[i] + b53*k3[i] + b54*k4[i]
	})
	if err != nil {
		return dynamo.Attempt{}, err
	}
	k6, err := stage(t+dt, func(i int) float64 {
		return b61*k1[i] + b62*k2[i] + b63*k3[i] + b64*k4[i] + b65*k5[i]
	})
	if err != nil {
		return dynamo.Attempt{}, err
	}

	xNew := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		xNew[i] = x[i] + dt*(c1*k1[i]+c3*k3[i]+c4*k4[i]+c5*k5[i]+c6*k6[i])
	}

	k7, err := dyn.Derive(xNew, t+dt)
	if err != nil {
		return dynamo.Attempt{}, err
	}

	// RMS of the scaled local error estimate.
	sum := 0.0
	for i := 0; i < n; i++ {
		errEst := dt * (dc1*k1[i] + dc3*k3[i] + dc4*k4[i] + dc5*k5[i] + dc6*k6[i] + dc7*k7[i])
		sc := r.AbsTol + r.RelTol*math.Max(math.Abs(x[i]), math.Abs(xNew[i]))
		sum += (errEst / sc) * (errEst / sc)
	}
	errRatio := 0.0
	if n > 0 {
		errRatio = math.Sqrt(sum / float64(n))
	}

	var dtNew float64
	switch {
	case math.IsNaN(errRatio) || math.IsInf(errRatio, 0):
		dtNew = dt * r.minScale
		errRatio = math.Inf(1)
	case errRatio > 1:
		dtNew = dt * math.Max(r.minScale, r.safety*math.Pow(errRatio, -0.2))
	case errRatio > 0:
		dtNew = dt * math.Min(r.maxScale, r.safety*math.Pow(errRatio, -0.2))
	default:
		dtNew = dt * r.maxScale
	}

	rc1 := x.Clone()
	rc2 := make(dynamo.State, n)
	rc3 := make(dynamo.State, n)
	rc4 := make(dynamo.State, n)
	rc5 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		diff := xNew[i] - x[i]
		rc2[i] = diff
		rc3[i] = dt*k1[i] - diff
		rc4[i] = diff - dt*k7[i] - rc3[i]
		rc5[i] = dt * (d1*k1[i] + d3*k3[i] + d4*k4[i] + d5*k5[i] + d6*k6[i] + d7*k7[i])
	}

	return dynamo.Attempt{
		Next:        xNew,
		ErrRatio:    errRatio,
		SuggestedDt: dtNew,
		Interpolate: func(theta float64) dynamo.State {
			out := make(dynamo.State, n)
			t1 := 1 - theta
			for i := 0; i < n; i++ {
				out[i] = rc1[i] + theta*(rc2[i]+t1*(rc3[i]+theta*(rc4[i]+t1*rc5[i])))
			}
			return out
		},
	}, nil
}
