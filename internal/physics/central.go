package physics

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/simcheck/internal/dynamo"
	"github.com/san-kum/simcheck/internal/statevec"
)

// GravitationalConstant in m^3 kg^-1 s^-2 (CODATA 2018).
const GravitationalConstant = 6.67430e-11

var ErrParameterBounds = errors.New("physics: parameter out of bounds")

// Interaction selects which forces act on the orbiting bodies.
type Interaction int

const (
	// Independent bodies feel only the central mass.
	Independent Interaction = iota
	// Mutual adds pairwise gravity between the orbiting bodies.
	Mutual
)

func (i Interaction) String() string {
	if i == Mutual {
		return "mutual"
	}
	return "independent"
}

func ParseInteraction(s string) (Interaction, error) {
	switch s {
	case "", "independent":
		return Independent, nil
	case "mutual":
		return Mutual, nil
	}
	return Independent, fmt.Errorf("physics: unknown interaction %q", s)
}

type OrbitParams struct {
	G           float64
	CentralMass float64
	Bodies      []statevec.Body
	Interaction Interaction
}

func (p OrbitParams) Validate() error {
	if p.G <= 0 {
		return fmt.Errorf("%w: G must be positive, got %g", ErrParameterBounds, p.G)
	}
	if p.CentralMass <= 0 {
		return fmt.Errorf("%w: central mass must be positive, got %g", ErrParameterBounds, p.CentralMass)
	}
	if len(p.Bodies) == 0 {
		return fmt.Errorf("%w: no bodies", ErrParameterBounds)
	}
	for _, b := range p.Bodies {
		if p.Interaction == Mutual && b.Mass <= 0 {
			return fmt.Errorf("%w: body %q needs a positive mass for mutual interaction", ErrParameterBounds, b.Name)
		}
	}
	return nil
}

// Mu is the central gravitational parameter G*M.
func (p OrbitParams) Mu() float64 { return p.G * p.CentralMass }

// CentralForce integrates bodies around a central mass fixed at the origin.
// The state is one (x, y, z, vx, vy, vz) tuple per body.
type CentralForce struct {
	params OrbitParams
	mu     float64
}

func NewCentralForce(p OrbitParams) (*CentralForce, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.Bodies = append([]statevec.Body(nil), p.Bodies...)
	return &CentralForce{params: p, mu: p.Mu()}, nil
}

// Params returns a copy; the body slice is not shared.
func (c *CentralForce) Params() OrbitParams {
	p := c.params
	p.Bodies = append([]statevec.Body(nil), c.params.Bodies...)
	return p
}

func (c *CentralForce) StateDim() int { return len(c.params.Bodies) * statevec.BodyStride }

func (c *CentralForce) InitialState() dynamo.State {
	return statevec.Pack(c.params.Bodies)
}

func (c *CentralForce) Derive(x dynamo.State, t float64) (dynamo.State, error) {
	if len(x) != c.StateDim() {
		return nil, fmt.Errorf("%w: expected %d entries, got %d", dynamo.ErrDimensionMismatch, c.StateDim(), len(x))
	}
	q, p := c.Split(x)
	acc, err := c.Acceleration(q, t)
	if err != nil {
		return nil, err
	}
	return c.Join(p, acc), nil
}

// Split gathers all positions into q and all velocities into p, each laid
// out as consecutive (x, y, z) triples.
func (c *CentralForce) Split(x dynamo.State) (q, p dynamo.State) {
	n := len(x) / statevec.BodyStride
	q = make(dynamo.State, 3*n)
	p = make(dynamo.State, 3*n)
	for i := 0; i < n; i++ {
		o := i * statevec.BodyStride
		copy(q[3*i:3*i+3], x[o:o+3])
		copy(p[3*i:3*i+3], x[o+3:o+6])
	}
	return q, p
}

func (c *CentralForce) Join(q, p dynamo.State) dynamo.State {
	n := len(q) / 3
	x := make(dynamo.State, n*statevec.BodyStride)
	for i := 0; i < n; i++ {
		o := i * statevec.BodyStride
		copy(x[o:o+3], q[3*i:3*i+3])
		copy(x[o+3:o+6], p[3*i:3*i+3])
	}
	return x
}

func (c *CentralForce) Velocity(p dynamo.State, t float64) (dynamo.State, error) {
	return p.Clone(), nil
}

// Acceleration is -mu r/|r|^3 per body, plus pairwise terms for Mutual.
func (c *CentralForce) Acceleration(q dynamo.State, t float64) (dynamo.State, error) {
	n := len(q) / 3
	acc := make(dynamo.State, len(q))

	for i := 0; i < n; i++ {
		r := triple(q, i)
		d := r3.Norm(r)
		if d == 0 {
			return nil, &dynamo.SingularityError{Body: i, Time: t}
		}
		a := r3.Scale(-c.mu/(d*d*d), r)
		acc[3*i] += a.X
		acc[3*i+1] += a.Y
		acc[3*i+2] += a.Z
	}

	if c.params.Interaction != Mutual {
		return acc, nil
	}

	for i := 0; i < n; i++ {
		ri := triple(q, i)
		for j := i + 1; j < n; j++ {
			rij := r3.Sub(triple(q, j), ri)
			d := r3.Norm(rij)
			if d == 0 {
				return nil, &dynamo.SingularityError{Body: j, Time: t}
			}
			inv3 := c.params.G / (d * d * d)

			ai := r3.Scale(inv3*c.params.Bodies[j].Mass, rij)
			acc[3*i] += ai.X
			acc[3*i+1] += ai.Y
			acc[3*i+2] += ai.Z

			aj := r3.Scale(inv3*c.params.Bodies[i].Mass, rij)
			acc[3*j] -= aj.X
			acc[3*j+1] -= aj.Y
			acc[3*j+2] -= aj.Z
		}
	}
	return acc, nil
}

// Energy is the total orbital energy. Massless bodies contribute their
// specific energy so test particles still show drift.
func (c *CentralForce) Energy(x dynamo.State) float64 {
	n := len(x) / statevec.BodyStride
	energy := 0.0

	for i := 0; i < n; i++ {
		pos, vel, err := statevec.Unpack(x, i)
		if err != nil {
			return math.NaN()
		}
		m := c.mass(i)
		energy += 0.5*m*r3.Dot(vel, vel) - c.mu*m/r3.Norm(pos)
	}

	if c.params.Interaction == Mutual {
		for i := 0; i < n; i++ {
			pi, _, _ := statevec.Unpack(x, i)
			for j := i + 1; j < n; j++ {
				pj, _, _ := statevec.Unpack(x, j)
				energy -= c.params.G * c.mass(i) * c.mass(j) / r3.Norm(r3.Sub(pj, pi))
			}
		}
	}
	return energy
}

func (c *CentralForce) mass(i int) float64 {
	if m := c.params.Bodies[i].Mass; m > 0 {
		return m
	}
	return 1
}

func triple(q dynamo.State, i int) r3.Vec {
	return r3.Vec{X: q[3*i], Y: q[3*i+1], Z: q[3*i+2]}
}
