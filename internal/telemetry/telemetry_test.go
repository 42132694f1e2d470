package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/san-kum/simcheck/internal/dynamo"
	"github.com/san-kum/simcheck/internal/harness"
	"github.com/san-kum/simcheck/internal/integrators"
	"github.com/san-kum/simcheck/internal/physics"
	"github.com/san-kum/simcheck/internal/reference"
	"github.com/san-kum/simcheck/internal/sim"
)

func TestMetrics_Run(t *testing.T) {
	m := New()

	p := physics.DefaultOscillatorParams()
	osc, err := physics.NewOscillator(p)
	if err != nil {
		t.Fatal(err)
	}
	res, err := sim.New(osc, integrators.NewLeapfrog(), sim.WithObserver(m.Observer())).
		RunFixed(context.Background(), osc.InitialState(), dynamo.Bounds{End: 1, Dt: 0.1})
	if err != nil {
		t.Fatal(err)
	}
	m.RecordRun("oscillator", "leapfrog", res)

	if got := testutil.ToFloat64(m.samples); got != 11 {
		t.Errorf("samples = %g", got)
	}
	if got := testutil.ToFloat64(m.runs.WithLabelValues("oscillator", "leapfrog", "completed")); got != 1 {
		t.Errorf("runs = %g", got)
	}
	if got := testutil.ToFloat64(m.steps.WithLabelValues("leapfrog", "accepted")); got != 10 {
		t.Errorf("accepted steps = %g", got)
	}

	series := reference.Sample(reference.NewOscillator(p), res.Trajectory.Times())
	report, err := harness.New(osc).Validate(res.Trajectory, series, harness.Policy{MaxAbsError: 1e-12, EnergyDrift: 1})
	if err != nil {
		t.Fatal(err)
	}
	m.RecordReport(report)

	if got := testutil.ToFloat64(m.checkPassed.WithLabelValues(harness.CheckMaxAbsError)); got != 0 {
		t.Errorf("max_abs_error passed gauge = %g", got)
	}
	if got := testutil.ToFloat64(m.checkPassed.WithLabelValues(harness.CheckEnergyDrift)); got != 1 {
		t.Errorf("energy_drift passed gauge = %g", got)
	}
	if n := testutil.CollectAndCount(m.checkValue); n != 2 {
		t.Errorf("%d measured gauges", n)
	}
}

func TestMetrics_Convergence(t *testing.T) {
	m := New()
	m.RecordConvergence(&harness.Convergence{Rows: []harness.Row{{N: 1000, Elapsed: 0.01}, {N: 10000, Elapsed: 0.1}}})
	m.RecordConvergence(nil)
	m.RecordRun("orbit", "rk45", nil)
	m.RecordReport(nil)

	if got := testutil.ToFloat64(m.mcSamples); got != 11000 {
		t.Errorf("montecarlo samples = %g", got)
	}
	if n := testutil.CollectAndCount(m.runs); n != 0 {
		t.Errorf("nil result recorded %d runs", n)
	}
}

func TestWriteToTextfile(t *testing.T) {
	m := New()
	m.Observer().OnStep(dynamo.State{1}, 0)

	path := filepath.Join(t.TempDir(), "simcheck.prom")
	if err := m.WriteToTextfile(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "simcheck_sim_samples_total 1") {
		t.Errorf("textfile:\n%s", data)
	}
}
