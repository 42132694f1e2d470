// Package statevec packs physical quantities into flat state vectors and
// recovers them again.
//
// Orbital states are per-body 6-tuples (x, y, z, vx, vy, vz) in body order.
// Oscillator states are concatenated [q..., v...]. Packing and unpacking are
// plain copies, so a round trip is bit-exact.
package statevec

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/simcheck/internal/dynamo"
	"github.com/san-kum/simcheck/internal/units"
)

// BodyStride is the number of state entries per orbital body.
const BodyStride = 6

// Body is read-only after construction.
type Body struct {
	Name     string
	Mass     float64
	Position r3.Vec
	Velocity r3.Vec
}

// BodySpec is a body described with unit-bearing quantities.
type BodySpec struct {
	Name     string
	Mass     units.Quantity
	Position [3]units.Quantity
	Velocity [3]units.Quantity
}

// NewBody strips units from spec, failing with a units.MismatchError when a
// quantity does not fit its slot.
func NewBody(spec BodySpec) (Body, error) {
	b := Body{Name: spec.Name}

	m, err := spec.Mass.SI(units.Mass)
	if err != nil {
		return Body{}, fmt.Errorf("body %q mass: %w", spec.Name, err)
	}
	b.Mass = m

	pos, err := vecSI(spec.Position, units.Length)
	if err != nil {
		return Body{}, fmt.Errorf("body %q position: %w", spec.Name, err)
	}
	vel, err := vecSI(spec.Velocity, units.Velocity)
	if err != nil {
		return Body{}, fmt.Errorf("body %q velocity: %w", spec.Name, err)
	}
	b.Position, b.Velocity = pos, vel
	return b, nil
}

func vecSI(q [3]units.Quantity, dim units.Dimension) (r3.Vec, error) {
	var c [3]float64
	for i := range q {
		v, err := q[i].SI(dim)
		if err != nil {
			return r3.Vec{}, err
		}
		c[i] = v
	}
	return r3.Vec{X: c[0], Y: c[1], Z: c[2]}, nil
}

// Pack lays bodies out as consecutive 6-tuples.
func Pack(bodies []Body) dynamo.State {
	x := make(dynamo.State, len(bodies)*BodyStride)
	for i, b := range bodies {
		o := i * BodyStride
		x[o], x[o+1], x[o+2] = b.Position.X, b.Position.Y, b.Position.Z
		x[o+3], x[o+4], x[o+5] = b.Velocity.X, b.Velocity.Y, b.Velocity.Z
	}
	return x
}

// Unpack returns body i's position and velocity.
func Unpack(x dynamo.State, i int) (pos, vel r3.Vec, err error) {
	if len(x)%BodyStride != 0 {
		return r3.Vec{}, r3.Vec{}, fmt.Errorf("%w: length %d is not a multiple of %d", dynamo.ErrDimensionMismatch, len(x), BodyStride)
	}
	if i < 0 || i >= len(x)/BodyStride {
		return r3.Vec{}, r3.Vec{}, fmt.Errorf("statevec: body index %d out of range [0, %d)", i, len(x)/BodyStride)
	}
	o := i * BodyStride
	pos = r3.Vec{X: x[o], Y: x[o+1], Z: x[o+2]}
	vel = r3.Vec{X: x[o+3], Y: x[o+4], Z: x[o+5]}
	return pos, vel, nil
}

// Bodies rebuilds bodies from x, taking names and masses from template.
func Bodies(x dynamo.State, template []Body) ([]Body, error) {
	if len(x) != len(template)*BodyStride {
		return nil, fmt.Errorf("%w: state has %d entries for %d bodies", dynamo.ErrDimensionMismatch, len(x), len(template))
	}
	out := make([]Body, len(template))
	for i, b := range template {
		pos, vel, err := Unpack(x, i)
		if err != nil {
			return nil, err
		}
		out[i] = Body{Name: b.Name, Mass: b.Mass, Position: pos, Velocity: vel}
	}
	return out, nil
}

// Track extracts body i's positions from every trajectory sample.
func Track(tr *dynamo.Trajectory, i int) ([]r3.Vec, error) {
	out := make([]r3.Vec, tr.Len())
	for k := 0; k < tr.Len(); k++ {
		pos, _, err := Unpack(tr.At(k).X, i)
		if err != nil {
			return nil, err
		}
		out[k] = pos
	}
	return out, nil
}

// PackDOF concatenates positions and velocities of each degree of freedom.
func PackDOF(q, v []float64) (dynamo.State, error) {
	if len(q) != len(v) {
		return nil, fmt.Errorf("%w: %d positions, %d velocities", dynamo.ErrDimensionMismatch, len(q), len(v))
	}
	x := make(dynamo.State, 0, 2*len(q))
	x = append(x, q...)
	return append(x, v...), nil
}

// UnpackDOF returns position and velocity of degree of freedom i.
func UnpackDOF(x dynamo.State, i int) (q, v float64, err error) {
	if len(x)%2 != 0 {
		return 0, 0, fmt.Errorf("%w: odd state length %d", dynamo.ErrDimensionMismatch, len(x))
	}
	n := len(x) / 2
	if i < 0 || i >= n {
		return 0, 0, fmt.Errorf("statevec: dof index %d out of range [0, %d)", i, n)
	}
	return x[i], x[n+i], nil
}
