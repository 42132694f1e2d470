package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Viper keys recognised by FromViper. Flags and SIMCHECK_* environment
// variables bound to these keys override the file or preset.
const (
	KeyConfigFile = "config"
	KeySystem     = "system"
	KeyPreset     = "preset"
	KeyIntegrator = "integrator"
	KeyStart      = "start"
	KeyDuration   = "duration"
	KeyDt         = "dt"
	KeyMaxSteps   = "max_steps"
	KeyAdaptive   = "adaptive"
	KeyRelTol     = "rtol"
	KeyAbsTol     = "atol"
	KeySeed       = "seed"
	KeySamples    = "samples"
	KeyWorkers    = "workers"
)

// FromViper builds a configuration from, in increasing precedence, the
// defaults, a preset, a YAML file and the individual keys set on v.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()

	if name := v.GetString(KeyPreset); name != "" {
		system := v.GetString(KeySystem)
		if system == "" {
			system = SystemOscillator
		}
		p := GetPreset(system, name)
		if p == nil {
			return nil, fmt.Errorf("%w: no preset %q for system %q", ErrInvalidConfig, name, system)
		}
		cfg = p
	}

	if path := v.GetString(KeyConfigFile); path != "" {
		loaded, err := LoadInto(path, cfg)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	override(v, KeySystem, func() { cfg.System = v.GetString(KeySystem) })
	override(v, KeyIntegrator, func() { cfg.Integrator = v.GetString(KeyIntegrator) })
	override(v, KeyStart, func() { cfg.Start = v.GetFloat64(KeyStart) })
	override(v, KeyDuration, func() { cfg.Duration = v.GetFloat64(KeyDuration) })
	override(v, KeyDt, func() { cfg.Dt = v.GetFloat64(KeyDt) })
	override(v, KeyMaxSteps, func() { cfg.MaxSteps = v.GetInt(KeyMaxSteps) })
	override(v, KeyAdaptive, func() { cfg.Adaptive = v.GetBool(KeyAdaptive) })
	override(v, KeyRelTol, func() { cfg.Tolerance.Rel = v.GetFloat64(KeyRelTol) })
	override(v, KeyAbsTol, func() { cfg.Tolerance.Abs = v.GetFloat64(KeyAbsTol) })
	override(v, KeySeed, func() { cfg.MonteCarlo.Seed = v.GetUint64(KeySeed) })
	override(v, KeySamples, func() { cfg.MonteCarlo.Samples = v.GetInt(KeySamples) })
	override(v, KeyWorkers, func() { cfg.MonteCarlo.Workers = v.GetInt(KeyWorkers) })

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func override(v *viper.Viper, key string, set func()) {
	if v.IsSet(key) {
		set()
	}
}
