package reference

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/simcheck/internal/dynamo"
	"github.com/san-kum/simcheck/internal/physics"
	"github.com/san-kum/simcheck/internal/statevec"
)

var ErrDegenerateOrbit = errors.New("reference: orbit has no angular momentum")

// CircularSpeed is the speed of a circular orbit of radius r.
func CircularSpeed(g, m, r float64) float64 {
	return math.Sqrt(g * m / r)
}

// OrbitalPeriod is the period of a circular orbit of radius r.
func OrbitalPeriod(g, m, r float64) float64 {
	return 2 * math.Pi * math.Sqrt(r*r*r/(g*m))
}

type circular struct {
	r0, v0 r3.Vec
	axis   r3.Vec
	omega  float64
}

// CircularOrbits treats every body as moving on a circle about the central
// mass, rigidly rotating its initial position and velocity about the
// angular-momentum axis at w = sqrt(GM/r^3). Bodies that do not start on a
// circular orbit diverge from the reference; that is what the check detects.
type CircularOrbits struct {
	orbits []circular
}

func NewCircularOrbits(p physics.OrbitParams) (*CircularOrbits, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	mu := p.Mu()
	c := &CircularOrbits{orbits: make([]circular, len(p.Bodies))}
	for i, b := range p.Bodies {
		h := r3.Cross(b.Position, b.Velocity)
		if r3.Norm(h) == 0 {
			return nil, fmt.Errorf("%w: body %q", ErrDegenerateOrbit, b.Name)
		}
		r := r3.Norm(b.Position)
		c.orbits[i] = circular{
			r0:    b.Position,
			v0:    b.Velocity,
			axis:  r3.Unit(h),
			omega: math.Sqrt(mu / (r * r * r)),
		}
	}
	return c, nil
}

func (c *CircularOrbits) At(t float64) dynamo.State {
	x := make(dynamo.State, len(c.orbits)*statevec.BodyStride)
	for i, o := range c.orbits {
		theta := o.omega * t
		pos := rotate(o.r0, o.axis, theta)
		vel := rotate(o.v0, o.axis, theta)
		off := i * statevec.BodyStride
		x[off], x[off+1], x[off+2] = pos.X, pos.Y, pos.Z
		x[off+3], x[off+4], x[off+5] = vel.X, vel.Y, vel.Z
	}
	return x
}

// Period of the first body.
func (c *CircularOrbits) Period() float64 { return c.PeriodOf(0) }

func (c *CircularOrbits) PeriodOf(i int) float64 {
	return 2 * math.Pi / c.orbits[i].omega
}

// rotate turns v by angle theta about the unit vector k (Rodrigues).
func rotate(v, k r3.Vec, theta float64) r3.Vec {
	sin, cos := math.Sincos(theta)
	out := r3.Scale(cos, v)
	out = r3.Add(out, r3.Scale(sin, r3.Cross(k, v)))
	return r3.Add(out, r3.Scale(r3.Dot(k, v)*(1-cos), k))
}
