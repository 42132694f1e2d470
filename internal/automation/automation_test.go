package automation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/simcheck/internal/config"
	"github.com/san-kum/simcheck/internal/harness"
)

const scenarioYAML = `
name: nightly
description: integrator regression
steps:
  - name: leapfrog
    preset: reference
    duration: 7
  - name: euler
    preset: euler
  - name: missing
    preset: nope
  - name: from-file
    config: osc.yaml
`

func writeScenario(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	cfg := config.GetPreset(config.SystemOscillator, "reference")
	cfg.Integrator = "rk4"
	cfg.Duration = 7
	cfg.Dt = 0.01
	if err := config.Save(filepath.Join(dir, "osc.yaml"), cfg); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "scenario.yaml")
	if err := os.WriteFile(path, []byte(scenarioYAML), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadScenario(t *testing.T) {
	sc, err := LoadScenario(writeScenario(t))
	if err != nil {
		t.Fatal(err)
	}
	if sc.Name != "nightly" || len(sc.Steps) != 4 {
		t.Fatalf("got %q with %d steps", sc.Name, len(sc.Steps))
	}

	cfg, err := sc.Resolve(sc.Steps[0])
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Integrator != "leapfrog" || cfg.Duration != 7 || cfg.Dt != 0.001 {
		t.Errorf("resolved %+v", cfg)
	}

	cfg, err = sc.Resolve(sc.Steps[3])
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Integrator != "rk4" || cfg.Dt != 0.01 {
		t.Errorf("file step resolved to %s dt=%g", cfg.Integrator, cfg.Dt)
	}

	if _, err := sc.Resolve(sc.Steps[2]); !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestLoadScenario_Invalid(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]string{
		"no steps":     "name: empty\n",
		"unnamed step": "name: x\nsteps:\n  - preset: reference\n",
		"negative dt":  "name: x\nsteps:\n  - name: a\n    dt: -1\n",
		"not yaml":     "name: [\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".yaml")
			if err := os.WriteFile(path, []byte(body), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadScenario(path); !errors.Is(err, ErrInvalidScenario) {
				t.Errorf("expected ErrInvalidScenario, got %v", err)
			}
		})
	}

	if _, err := LoadScenario(filepath.Join(dir, "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestRunScenario(t *testing.T) {
	sc, err := LoadScenario(writeScenario(t))
	if err != nil {
		t.Fatal(err)
	}

	results, err := RunScenario(context.Background(), sc, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}

	if r := results[0]; !r.Passed || r.Err != "" || r.Report == nil {
		t.Errorf("leapfrog step: %+v", r)
	}
	if r := results[0]; r.Outcome.Result.Trajectory.Len() != 7001 {
		t.Errorf("leapfrog step recorded %d samples", r.Outcome.Result.Trajectory.Len())
	}

	euler := results[1]
	if euler.Passed || euler.Err != "" {
		t.Errorf("euler step should fail validation without error: %+v", euler)
	}
	if c, ok := euler.Report.Get(harness.CheckEnergyDrift); !ok || c.Passed {
		t.Errorf("euler energy check: %+v", c)
	}

	if r := results[2]; r.Passed || r.Err == "" {
		t.Errorf("missing preset should be recorded as an error: %+v", r)
	}
	if r := results[3]; r.System != config.SystemOscillator || r.Report == nil {
		t.Errorf("file step: %+v", r)
	}

	if Passed(results) {
		t.Error("scenario with failures reported as passed")
	}
	if !Passed(results[:1]) {
		t.Error("single passing step reported as failed")
	}
	if Passed(nil) {
		t.Error("empty result set reported as passed")
	}
}

func TestRunScenario_Canceled(t *testing.T) {
	sc, err := LoadScenario(writeScenario(t))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := RunScenario(ctx, sc, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}
