// Package automation runs a scripted batch of validation runs described
// in YAML, the way a CI job would.
package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/simcheck/internal/config"
	"github.com/san-kum/simcheck/internal/experiment"
	"github.com/san-kum/simcheck/internal/harness"
)

var ErrInvalidScenario = errors.New("automation: invalid scenario")

var validate = validator.New()

// Scenario is a named list of runs.
type Scenario struct {
	Name        string         `yaml:"name" validate:"required"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps" validate:"min=1,dive"`

	dir string
}

// ScenarioStep selects a configuration by file or by preset and overrides
// a few of its fields. Zero fields keep the base value.
type ScenarioStep struct {
	Name       string  `yaml:"name" validate:"required"`
	Config     string  `yaml:"config"`
	System     string  `yaml:"system"`
	Preset     string  `yaml:"preset"`
	Integrator string  `yaml:"integrator"`
	Dt         float64 `yaml:"dt" validate:"gte=0"`
	Duration   float64 `yaml:"duration" validate:"gte=0"`
	Samples    int     `yaml:"samples" validate:"gte=0"`
}

// StepResult is the outcome of one step. Err is set when the step could
// not be configured or integrated; Passed is then false.
type StepResult struct {
	Name    string                 `json:"name"`
	System  string                 `json:"system"`
	Passed  bool                   `json:"passed"`
	Err     string                 `json:"error,omitempty"`
	Report  *harness.Report        `json:"report,omitempty"`
	Scaling *harness.ScalingResult `json:"scaling,omitempty"`

	Config  *config.Config        `json:"-"`
	Outcome *experiment.Outcome   `json:"-"`
	Pi      *experiment.PiOutcome `json:"-"`
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	if err := validate.Struct(&scenario); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	scenario.dir = filepath.Dir(path)
	return &scenario, nil
}

// Resolve builds the configuration of a step. Config paths are relative
// to the scenario file.
func (s *Scenario) Resolve(step ScenarioStep) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case step.Config != "":
		path := step.Config
		if !filepath.IsAbs(path) && s.dir != "" {
			path = filepath.Join(s.dir, path)
		}
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	case step.Preset != "":
		system := step.System
		if system == "" {
			system = config.SystemOscillator
		}
		cfg = config.GetPreset(system, step.Preset)
		if cfg == nil {
			return nil, fmt.Errorf("%w: no preset %q for system %q", config.ErrInvalidConfig, step.Preset, system)
		}
	default:
		cfg = config.DefaultConfig()
	}

	if step.System != "" {
		cfg.System = step.System
	}
	if step.Integrator != "" {
		cfg.Integrator = step.Integrator
	}
	if step.Dt > 0 {
		cfg.Dt = step.Dt
	}
	if step.Duration > 0 {
		cfg.Duration = step.Duration
	}
	if step.Samples > 0 {
		cfg.MonteCarlo.Samples = step.Samples
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RunScenario executes every step in order. A failing step is recorded and
// the scenario continues; only cancellation stops it early, returning the
// steps finished so far.
func RunScenario(ctx context.Context, scenario *Scenario, logger *slog.Logger, opts ...experiment.Option) ([]StepResult, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		logger.Info("scenario step", "scenario", scenario.Name, "step", i+1, "of", len(scenario.Steps), "name", step.Name)

		r := StepResult{Name: step.Name}
		cfg, err := scenario.Resolve(step)
		if err != nil {
			r.Err = err.Error()
			results = append(results, r)
			continue
		}
		r.Config, r.System = cfg, cfg.System

		exp := experiment.New(cfg, opts...)
		if cfg.System == config.SystemMonteCarlo {
			r.Pi, err = exp.Pi(ctx)
			if err == nil {
				r.Scaling = r.Pi.Scaling
				r.Passed = r.Scaling != nil && r.Scaling.Passed
			}
		} else {
			r.Outcome, err = exp.Run(ctx)
			if err == nil {
				r.Report = r.Outcome.Report
				r.Passed = r.Report.Passed()
			}
		}

		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return results, err
			}
			r.Err = err.Error()
		}
		logger.Info("scenario step finished", "name", step.Name, "passed", r.Passed, "error", r.Err)
		results = append(results, r)
	}

	return results, nil
}

// Passed reports whether every step passed.
func Passed(results []StepResult) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return len(results) > 0
}
