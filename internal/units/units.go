// Package units converts unit-bearing quantities to canonical SI values.
//
// A quantity is written as a number followed by an optional unit symbol,
// for example "1.523679 AU", "24.07 km/s" or "6.39e23 kg". A bare number is
// taken to be in SI units already.
package units

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Dimension identifies the physical dimension of a quantity slot.
type Dimension int

const (
	Dimensionless Dimension = iota
	Length
	Mass
	Velocity
	Angle
)

func (d Dimension) String() string {
	switch d {
	case Length:
		return "length"
	case Mass:
		return "mass"
	case Velocity:
		return "velocity"
	case Angle:
		return "angle"
	default:
		return "dimensionless"
	}
}

const (
	AstronomicalUnit = 1.495978707e11 // m
	Day              = 86400.0        // s
	SolarMass        = 1.98847e30     // kg
)

type unit struct {
	dim    Dimension
	factor float64
}

var table = map[string]unit{
	"":       {Dimensionless, 1},
	"m":      {Length, 1},
	"km":     {Length, 1e3},
	"AU":     {Length, AstronomicalUnit},
	"kg":     {Mass, 1},
	"g":      {Mass, 1e-3},
	"Msun":   {Mass, SolarMass},
	"m/s":    {Velocity, 1},
	"km/s":   {Velocity, 1e3},
	"AU/day": {Velocity, AstronomicalUnit / Day},
	"rad":    {Angle, 1},
	"deg":    {Angle, 0.017453292519943295},
}

// ErrUnitMismatch is matched by every *MismatchError.
var ErrUnitMismatch = errors.New("units: dimension mismatch")

// ErrUnknownUnit is returned for unit symbols not in the table.
var ErrUnknownUnit = errors.New("units: unknown unit")

// MismatchError reports a quantity supplied for a slot of another dimension.
type MismatchError struct {
	Slot Dimension
	Got  Dimension
	Unit string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("units: %q is a %s unit, expected %s", e.Unit, e.Got, e.Slot)
}

func (e *MismatchError) Unwrap() error { return ErrUnitMismatch }

// Quantity is a magnitude with its unit symbol.
type Quantity struct {
	Value float64
	Unit  string
}

func Q(value float64, unit string) Quantity {
	return Quantity{Value: value, Unit: unit}
}

// Parse reads "<number> [unit]".
func Parse(s string) (Quantity, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 || len(fields) > 2 {
		return Quantity{}, fmt.Errorf("units: cannot parse %q", s)
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return Quantity{}, fmt.Errorf("units: cannot parse %q: %w", s, err)
	}
	q := Quantity{Value: v}
	if len(fields) == 2 {
		q.Unit = fields[1]
	}
	if _, ok := table[q.Unit]; !ok {
		return Quantity{}, fmt.Errorf("%w: %q", ErrUnknownUnit, q.Unit)
	}
	return q, nil
}

// SI returns the value in SI units for a slot of dimension want. A unitless
// quantity is accepted for any slot as an SI value.
func (q Quantity) SI(want Dimension) (float64, error) {
	u, ok := table[q.Unit]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownUnit, q.Unit)
	}
	if q.Unit == "" {
		return q.Value, nil
	}
	if u.dim != want {
		return 0, &MismatchError{Slot: want, Got: u.dim, Unit: q.Unit}
	}
	return q.Value * u.factor, nil
}

func (q Quantity) String() string {
	if q.Unit == "" {
		return strconv.FormatFloat(q.Value, 'g', -1, 64)
	}
	return strconv.FormatFloat(q.Value, 'g', -1, 64) + " " + q.Unit
}

// ParseSI parses s and converts it for a slot of dimension want.
func ParseSI(s string, want Dimension) (float64, error) {
	q, err := Parse(s)
	if err != nil {
		return 0, err
	}
	return q.SI(want)
}
