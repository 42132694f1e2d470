package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/go-playground/validator/v10"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/simcheck/internal/dynamo"
	"github.com/san-kum/simcheck/internal/harness"
	"github.com/san-kum/simcheck/internal/physics"
	"github.com/san-kum/simcheck/internal/reference"
	"github.com/san-kum/simcheck/internal/statevec"
	"github.com/san-kum/simcheck/internal/units"
)

const (
	DefaultDt       = 0.001
	DefaultDuration = 10.0
	DefaultRelTol   = 1e-9
	DefaultAbsTol   = 1e-12
	DefaultSeed     = 1
)

const (
	SystemOscillator = "oscillator"
	SystemOrbit      = "orbit"
	SystemMonteCarlo = "montecarlo"
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

var validate = validator.New()

type Config struct {
	System     string  `yaml:"system" validate:"oneof=oscillator orbit montecarlo"`
	Integrator string  `yaml:"integrator" validate:"omitempty,oneof=leapfrog verlet rk4 euler rk45"`
	Start      float64 `yaml:"start"`
	Duration   float64 `yaml:"duration" validate:"gt=0"`
	Dt         float64 `yaml:"dt" validate:"gt=0"`
	MaxSteps   int     `yaml:"max_steps" validate:"gte=0"`
	// Adaptive selects error-controlled stepping; only rk45 supports it.
	Adaptive  bool            `yaml:"adaptive"`
	Tolerance ToleranceConfig `yaml:"tolerance"`

	Oscillator OscillatorConfig `yaml:"oscillator"`
	Orbit      OrbitConfig      `yaml:"orbit"`
	MonteCarlo MonteCarloConfig `yaml:"montecarlo"`
	Policy     harness.Policy   `yaml:"policy"`
}

type ToleranceConfig struct {
	Rel float64 `yaml:"rel" validate:"gte=0"`
	Abs float64 `yaml:"abs" validate:"gte=0"`
}

type OscillatorConfig struct {
	Mass      float64 `yaml:"mass" validate:"gt=0"`
	Stiffness float64 `yaml:"stiffness" validate:"gt=0"`
	Amplitude float64 `yaml:"amplitude"`
	Phase     float64 `yaml:"phase"`
}

// OrbitConfig carries unit-bearing quantities such as "1 Msun" or
// "24.07 km/s". Bare numbers are SI.
type OrbitConfig struct {
	G           float64      `yaml:"g" validate:"gte=0"`
	CentralMass string       `yaml:"central_mass"`
	Interaction string       `yaml:"interaction" validate:"omitempty,oneof=independent mutual"`
	Bodies      []BodyConfig `yaml:"bodies,omitempty" validate:"dive"`
}

type BodyConfig struct {
	Name     string    `yaml:"name" validate:"required"`
	Mass     string    `yaml:"mass"`
	Position [3]string `yaml:"position,flow"`
	Velocity [3]string `yaml:"velocity,flow"`
	// Radius places the body on a circular orbit in the xy plane,
	// replacing Position and Velocity.
	Radius string `yaml:"radius,omitempty"`
	Angle  string `yaml:"angle,omitempty"`
}

type MonteCarloConfig struct {
	Seed        uint64                    `yaml:"seed"`
	Samples     int                       `yaml:"samples" validate:"gte=0"`
	BatchSize   int                       `yaml:"batch_size" validate:"gte=0"`
	Workers     int                       `yaml:"workers" validate:"gte=0"`
	Convergence harness.ConvergencePolicy `yaml:"convergence"`
	Replicates  int                       `yaml:"replicates" validate:"gte=0"`
	ScaledLow   float64                   `yaml:"scaled_low" validate:"gte=0"`
	ScaledHigh  float64                   `yaml:"scaled_high" validate:"gtefield=ScaledLow"`
	// LatticeRadius sizes the deterministic lattice cross-check; 0 skips it.
	LatticeRadius int `yaml:"lattice_radius" validate:"gte=0"`
}

func DefaultConfig() *Config {
	return &Config{
		System:     SystemOscillator,
		Integrator: "leapfrog",
		Duration:   DefaultDuration,
		Dt:         DefaultDt,
		Tolerance:  ToleranceConfig{Rel: DefaultRelTol, Abs: DefaultAbsTol},
		Oscillator: OscillatorConfig{
			Mass:      physics.DefaultMass,
			Stiffness: physics.DefaultStiffness,
			Amplitude: physics.DefaultAmplitude,
		},
		Orbit: OrbitConfig{
			G:           physics.GravitationalConstant,
			CentralMass: "1 Msun",
		},
		MonteCarlo: MonteCarloConfig{
			Seed:        DefaultSeed,
			Samples:     100_000,
			Convergence: harness.DefaultConvergencePolicy(),
			Replicates:  8,
			ScaledLow:   0.1,
			ScaledHigh:  10,

			LatticeRadius: 1000,
		},
		Policy: harness.Policy{
			MaxAbsError:     1e-5,
			EnergyDrift:     1e-6,
			PeriodTolerance: 1e-3,
		},
	}
}

func Load(path string) (*Config, error) {
	return LoadInto(path, DefaultConfig())
}

// LoadInto reads path over base, so keys missing from the file keep the
// values of base. base is not modified.
func LoadInto(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := base.Clone()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	switch c.System {
	case SystemOrbit:
		if len(c.Orbit.Bodies) == 0 {
			return fmt.Errorf("%w: orbit system needs at least one body", ErrInvalidConfig)
		}
		if c.Orbit.G <= 0 {
			return fmt.Errorf("%w: orbit system needs a positive G", ErrInvalidConfig)
		}
	}
	if c.Adaptive && c.Integrator != "rk45" {
		return fmt.Errorf("%w: adaptive stepping needs rk45, not %q", ErrInvalidConfig, c.Integrator)
	}
	return nil
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Orbit.Bodies = append([]BodyConfig(nil), c.Orbit.Bodies...)
	return &out
}

func (c *Config) Bounds() dynamo.Bounds {
	return dynamo.Bounds{
		Start:    c.Start,
		End:      c.Start + c.Duration,
		Dt:       c.Dt,
		MaxSteps: c.MaxSteps,
	}
}

func (c *Config) OscillatorParams() physics.OscillatorParams {
	return physics.OscillatorParams{
		Mass:      c.Oscillator.Mass,
		Stiffness: c.Oscillator.Stiffness,
		Amplitude: c.Oscillator.Amplitude,
		Phase:     c.Oscillator.Phase,
	}
}

// OrbitParams strips units from the orbit section.
func (c *Config) OrbitParams() (physics.OrbitParams, error) {
	o := c.Orbit
	m, err := parseSI(o.CentralMass, units.Mass)
	if err != nil {
		return physics.OrbitParams{}, fmt.Errorf("central mass: %w", err)
	}
	interaction, err := physics.ParseInteraction(o.Interaction)
	if err != nil {
		return physics.OrbitParams{}, err
	}

	p := physics.OrbitParams{G: o.G, CentralMass: m, Interaction: interaction}
	for _, bc := range o.Bodies {
		b, err := bc.body(o.G, m)
		if err != nil {
			return physics.OrbitParams{}, err
		}
		p.Bodies = append(p.Bodies, b)
	}
	return p, nil
}

func (b BodyConfig) body(g, centralMass float64) (statevec.Body, error) {
	spec := statevec.BodySpec{Name: b.Name}
	var err error
	if spec.Mass, err = parseQuantity(b.Mass); err != nil {
		return statevec.Body{}, fmt.Errorf("body %q mass: %w", b.Name, err)
	}

	if b.Radius != "" {
		r, err := parseSI(b.Radius, units.Length)
		if err != nil {
			return statevec.Body{}, fmt.Errorf("body %q radius: %w", b.Name, err)
		}
		angle, err := parseSI(b.Angle, units.Angle)
		if err != nil {
			return statevec.Body{}, fmt.Errorf("body %q angle: %w", b.Name, err)
		}
		body, err := statevec.NewBody(spec)
		if err != nil {
			return statevec.Body{}, err
		}
		return circularBody(body, r, angle, reference.CircularSpeed(g, centralMass, r)), nil
	}

	for i := 0; i < 3; i++ {
		if spec.Position[i], err = parseQuantity(b.Position[i]); err != nil {
			return statevec.Body{}, fmt.Errorf("body %q position: %w", b.Name, err)
		}
		if spec.Velocity[i], err = parseQuantity(b.Velocity[i]); err != nil {
			return statevec.Body{}, fmt.Errorf("body %q velocity: %w", b.Name, err)
		}
	}
	return statevec.NewBody(spec)
}

func parseQuantity(s string) (units.Quantity, error) {
	if s == "" {
		return units.Quantity{}, nil
	}
	return units.Parse(s)
}

func parseSI(s string, dim units.Dimension) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return units.ParseSI(s, dim)
}

// circularBody puts b at distance r and polar angle a in the xy plane,
// moving counter-clockwise at speed v.
func circularBody(b statevec.Body, r, a, v float64) statevec.Body {
	sin, cos := math.Sincos(a)
	b.Position = r3.Vec{X: r * cos, Y: r * sin}
	b.Velocity = r3.Vec{X: -v * sin, Y: v * cos}
	return b
}
