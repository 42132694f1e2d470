// Package telemetry collects run metrics in a private prometheus registry
// and writes them in the node-exporter textfile format.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/san-kum/simcheck/internal/dynamo"
	"github.com/san-kum/simcheck/internal/harness"
	"github.com/san-kum/simcheck/internal/sim"
)

const namespace = "simcheck"

type Metrics struct {
	registry *prometheus.Registry

	samples     prometheus.Counter
	runs        *prometheus.CounterVec
	runSeconds  *prometheus.HistogramVec
	steps       *prometheus.CounterVec
	checkValue  *prometheus.GaugeVec
	checkPassed *prometheus.GaugeVec
	mcSamples   prometheus.Counter
	mcSeconds   prometheus.Histogram
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		samples: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sim",
			Name:      "samples_total",
			Help:      "Trajectory samples recorded",
		}),
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sim",
			Name:      "runs_total",
			Help:      "Finished runs by outcome",
		}, []string{"system", "integrator", "status"}),
		runSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sim",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock time of one integration",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"system", "integrator"}),
		steps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sim",
			Name:      "steps_total",
			Help:      "Integrator steps by kind (accepted, rejected)",
		}, []string{"integrator", "kind"}),
		checkValue: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "harness",
			Name:      "check_measured",
			Help:      "Measured value of the last validation check",
		}, []string{"check"}),
		checkPassed: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "harness",
			Name:      "check_passed",
			Help:      "1 if the last validation check passed",
		}, []string{"check"}),
		mcSamples: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "montecarlo",
			Name:      "samples_total",
			Help:      "Monte Carlo points drawn by the convergence loop",
		}),
		mcSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "montecarlo",
			Name:      "estimate_duration_seconds",
			Help:      "Wall-clock time of one convergence size",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 12),
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Observer counts every sample a simulator records.
func (m *Metrics) Observer() dynamo.Observer { return sampleCounter{m.samples} }

type sampleCounter struct{ c prometheus.Counter }

func (s sampleCounter) OnStep(dynamo.State, float64) { s.c.Inc() }

func (m *Metrics) RecordRun(system, integrator string, res *sim.Result) {
	if res == nil {
		return
	}
	m.runs.WithLabelValues(system, integrator, res.Status.String()).Inc()
	m.runSeconds.WithLabelValues(system, integrator).Observe(res.Elapsed.Seconds())
	m.steps.WithLabelValues(integrator, "accepted").Add(float64(res.Steps))
	m.steps.WithLabelValues(integrator, "rejected").Add(float64(res.Rejected))
}

func (m *Metrics) RecordReport(r *harness.Report) {
	if r == nil {
		return
	}
	for _, c := range r.Checks() {
		m.checkValue.WithLabelValues(c.Name).Set(c.Measured)
		passed := 0.0
		if c.Passed {
			passed = 1
		}
		m.checkPassed.WithLabelValues(c.Name).Set(passed)
	}
}

func (m *Metrics) RecordConvergence(c *harness.Convergence) {
	if c == nil {
		return
	}
	for _, row := range c.Rows {
		m.mcSamples.Add(float64(row.N))
		m.mcSeconds.Observe(row.Elapsed)
	}
}

// WriteToTextfile writes the current values atomically to path.
func (m *Metrics) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
