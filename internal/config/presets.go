package config

import (
	"sort"
	"time"

	"github.com/san-kum/simcheck/internal/harness"
	"github.com/san-kum/simcheck/internal/physics"
)

func marsBody() BodyConfig {
	return BodyConfig{Name: "mars", Mass: "6.4171e23 kg", Radius: "1.523679 AU"}
}

var Presets = map[string]map[string]*Config{
	SystemOscillator: {
		"reference": {
			System: SystemOscillator, Integrator: "leapfrog", Duration: 10, Dt: 0.001,
			Oscillator: OscillatorConfig{Mass: 1, Stiffness: 1, Amplitude: 1},
			Policy:     harness.Policy{MaxAbsError: 1e-5, EnergyDrift: 1e-6, PeriodTolerance: 1e-3},
		},
		"euler": {
			System: SystemOscillator, Integrator: "euler", Duration: 10, Dt: 0.01,
			Oscillator: OscillatorConfig{Mass: 1, Stiffness: 1, Amplitude: 1},
			Policy:     harness.Policy{EnergyDrift: 1e-6},
		},
		"adaptive": {
			System: SystemOscillator, Integrator: "rk45", Adaptive: true, Duration: 10, Dt: 0.01,
			Tolerance:  ToleranceConfig{Rel: 1e-10, Abs: 1e-12},
			Oscillator: OscillatorConfig{Mass: 1, Stiffness: 1, Amplitude: 1},
			Policy:     harness.Policy{MaxAbsError: 1e-7, EnergyDrift: 1e-8, PeriodTolerance: 1e-4},
		},
	},
	SystemOrbit: {
		"mars": {
			System: SystemOrbit, Integrator: "leapfrog", Duration: 687 * 86400, Dt: 3600,
			Orbit: OrbitConfig{
				G:           physics.GravitationalConstant,
				CentralMass: "1 Msun",
				Bodies:      []BodyConfig{marsBody()},
			},
			Policy: harness.Policy{ReturnTolerance: 1e-3, EnergyDrift: 1e-5, RelativeEnergy: true},
		},
		"inner": {
			System: SystemOrbit, Integrator: "leapfrog", Duration: 365.25 * 86400, Dt: 1800,
			Orbit: OrbitConfig{
				G:           physics.GravitationalConstant,
				CentralMass: "1 Msun",
				Bodies: []BodyConfig{
					{Name: "mercury", Mass: "3.3011e23 kg", Radius: "0.387098 AU"},
					{Name: "venus", Mass: "4.8675e24 kg", Radius: "0.723332 AU", Angle: "90 deg"},
					{Name: "earth", Mass: "5.97237e24 kg", Radius: "1 AU", Angle: "180 deg"},
					marsBody(),
				},
			},
			Policy: harness.Policy{EnergyDrift: 1e-5, RelativeEnergy: true, PeriodTolerance: 1e-3, PeriodComponent: 0},
		},
	},
	SystemMonteCarlo: {
		"pi": {
			System: SystemMonteCarlo, Duration: 1, Dt: 1,
			MonteCarlo: MonteCarloConfig{
				Seed:       DefaultSeed,
				Samples:    100_000,
				BatchSize:  1 << 16,
				Replicates: 8,
				ScaledLow:  0.1,
				ScaledHigh: 10,

				LatticeRadius: 1000,
				Convergence: harness.ConvergencePolicy{
					Start: 1_000, Factor: 10, MaxN: 100_000_000, Budget: 2 * time.Second,
				},
			},
		},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(system, preset string) *Config {
	systemPresets, ok := Presets[system]
	if !ok {
		return nil
	}
	cfg, ok := systemPresets[preset]
	if !ok {
		return nil
	}
	out := cfg.Clone()
	// sections a preset leaves empty come from the defaults
	def := DefaultConfig()
	if out.Tolerance == (ToleranceConfig{}) {
		out.Tolerance = def.Tolerance
	}
	if out.Oscillator == (OscillatorConfig{}) {
		out.Oscillator = def.Oscillator
	}
	if out.Orbit.G == 0 && out.Orbit.CentralMass == "" {
		out.Orbit = def.Orbit
	}
	if out.MonteCarlo == (MonteCarloConfig{}) {
		out.MonteCarlo = def.MonteCarlo
	}
	return out
}

func ListPresets(system string) []string {
	systemPresets, ok := Presets[system]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(systemPresets))
	for name := range systemPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Systems lists the systems that have presets.
func Systems() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
