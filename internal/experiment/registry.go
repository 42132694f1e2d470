package experiment

import (
	"errors"
	"fmt"
	"sort"

	"github.com/san-kum/simcheck/internal/config"
	"github.com/san-kum/simcheck/internal/dynamo"
	"github.com/san-kum/simcheck/internal/integrators"
	"github.com/san-kum/simcheck/internal/physics"
	"github.com/san-kum/simcheck/internal/reference"
	"github.com/san-kum/simcheck/internal/statevec"
)

var (
	ErrUnknownSystem     = errors.New("experiment: unknown system")
	ErrUnknownIntegrator = errors.New("experiment: unknown integrator")
)

// Setup is everything one validation run needs.
type Setup struct {
	System    dynamo.System
	Energy    dynamo.Hamiltonian
	Reference reference.Model
	Initial   dynamo.State
	// Bodies is the body order of an orbital state, nil for oscillators.
	Bodies []statevec.Body
}

type Registry struct {
	systems     map[string]func(*config.Config) (*Setup, error)
	integrators map[string]func(*config.Config) dynamo.Integrator
}

func NewRegistry() *Registry {
	r := &Registry{
		systems:     make(map[string]func(*config.Config) (*Setup, error)),
		integrators: make(map[string]func(*config.Config) dynamo.Integrator),
	}

	r.systems[config.SystemOscillator] = oscillatorSetup
	r.systems[config.SystemOrbit] = orbitSetup

	r.integrators["euler"] = func(*config.Config) dynamo.Integrator { return integrators.NewEuler() }
	r.integrators["rk4"] = func(*config.Config) dynamo.Integrator { return integrators.NewRK4() }
	r.integrators["verlet"] = func(*config.Config) dynamo.Integrator { return integrators.NewVerlet() }
	r.integrators["leapfrog"] = func(*config.Config) dynamo.Integrator { return integrators.NewLeapfrog() }
	r.integrators["rk45"] = func(c *config.Config) dynamo.Integrator {
		return integrators.NewDormandPrince(c.Tolerance.Rel, c.Tolerance.Abs)
	}

	return r
}

func oscillatorSetup(c *config.Config) (*Setup, error) {
	p := c.OscillatorParams()
	osc, err := physics.NewOscillator(p)
	if err != nil {
		return nil, err
	}
	return &Setup{
		System:    osc,
		Energy:    osc,
		Reference: reference.NewOscillator(p),
		Initial:   osc.InitialState(),
	}, nil
}

func orbitSetup(c *config.Config) (*Setup, error) {
	p, err := c.OrbitParams()
	if err != nil {
		return nil, err
	}
	cf, err := physics.NewCentralForce(p)
	if err != nil {
		return nil, err
	}
	ref, err := reference.NewCircularOrbits(p)
	if err != nil {
		return nil, err
	}
	return &Setup{
		System:    cf,
		Energy:    cf,
		Reference: ref,
		Initial:   cf.InitialState(),
		Bodies:    cf.Params().Bodies,
	}, nil
}

// Build constructs the system, its reference and the initial state.
func (r *Registry) Build(c *config.Config) (*Setup, error) {
	fn, ok := r.systems[c.System]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSystem, c.System)
	}
	return fn(c)
}

func (r *Registry) GetIntegrator(c *config.Config) (dynamo.Integrator, error) {
	name := c.Integrator
	if name == "" {
		name = "leapfrog"
	}
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIntegrator, name)
	}
	return fn(c), nil
}

func (r *Registry) ListSystems() []string {
	return sortedKeys(r.systems)
}

func (r *Registry) ListIntegrators() []string {
	return sortedKeys(r.integrators)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
