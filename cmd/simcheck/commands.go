package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/simcheck/internal/analysis"
	"github.com/san-kum/simcheck/internal/automation"
	"github.com/san-kum/simcheck/internal/config"
	"github.com/san-kum/simcheck/internal/experiment"
	"github.com/san-kum/simcheck/internal/export"
	"github.com/san-kum/simcheck/internal/metrics"
	"github.com/san-kum/simcheck/internal/statevec"
	"github.com/san-kum/simcheck/internal/storage"
	"github.com/san-kum/simcheck/internal/sweep"
	"github.com/san-kum/simcheck/internal/telemetry"
	"github.com/san-kum/simcheck/internal/viz"
)

const (
	plotWidth  = 80
	plotHeight = 12
)

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	if cfg.System == config.SystemMonteCarlo {
		return piStudy(cmd, cfg)
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	m := telemetry.New()

	exp := experiment.New(cfg,
		experiment.WithLogger(logger),
		experiment.WithObserver(m.Observer()))
	out, runErr := exp.Run(cmd.Context())

	var runID string
	if out != nil {
		m.RecordRun(cfg.System, cfg.Integrator, out.Result)
		m.RecordReport(out.Report)
		if !v.GetBool(keyNoSave) {
			st, err := newStore()
			if err != nil {
				return err
			}
			if runID, err = st.Save(cfg, out.Result, out.Report); err != nil {
				return fmt.Errorf("save run: %w", err)
			}
		}
	}
	if err := writeMetrics(m); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}

	fmt.Println(viz.HeaderStyle.Render(fmt.Sprintf("%s / %s", cfg.System, cfg.Integrator)))
	if runID != "" {
		fmt.Printf("%s %s\n", viz.MetricLabel.Render("run:"), runID)
	}
	if out != nil && out.Result != nil {
		res := out.Result
		fmt.Printf("%s %s  %s %d  %s %d  %s %v\n",
			viz.MetricLabel.Render("status:"), res.Status,
			viz.MetricLabel.Render("steps:"), res.Steps,
			viz.MetricLabel.Render("rejected:"), res.Rejected,
			viz.MetricLabel.Render("elapsed:"), res.Elapsed)
	}
	if runErr != nil {
		return runErr
	}

	fmt.Println()
	fmt.Println(viz.RenderReport(out.Report))

	labels := componentLabels(cfg, len(out.Result.Trajectory.At(0).X))
	first := out.Result.Trajectory.Component(0)
	fmt.Println()
	if plotsEnabled() {
		fmt.Println(viz.PlotSeries(first, labels[0], plotWidth, plotHeight))
	} else {
		fmt.Printf("%s %s\n", viz.MetricLabel.Render(labels[0]+":"), viz.Sparkline(first, plotWidth/2))
	}

	if !out.Report.Passed() {
		return errValidationFailed
	}
	return nil
}

func runPi(cmd *cobra.Command, args []string) error {
	v.Set(config.KeySystem, config.SystemMonteCarlo)
	if v.GetString(config.KeyPreset) == "" && v.GetString(config.KeyConfigFile) == "" {
		v.Set(config.KeyPreset, "pi")
	}
	cfg, err := config.FromViper(v)
	if err != nil {
		return err
	}
	return piStudy(cmd, cfg)
}

func piStudy(cmd *cobra.Command, cfg *config.Config) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	m := telemetry.New()

	out, err := experiment.New(cfg, experiment.WithLogger(logger)).Pi(cmd.Context())
	if out != nil {
		m.RecordConvergence(out.Convergence)
	}
	if err != nil {
		return err
	}
	if err := writeMetrics(m); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}

	var runID string
	if !v.GetBool(keyNoSave) {
		st, err := newStore()
		if err != nil {
			return err
		}
		if runID, err = st.SaveStudy(cfg, out); err != nil {
			return fmt.Errorf("save study: %w", err)
		}
	}

	fmt.Println(viz.HeaderStyle.Render("monte carlo pi"))
	if runID != "" {
		fmt.Printf("%s %s\n", viz.MetricLabel.Render("run:"), runID)
	}
	if est := out.Estimate; est.N > 0 {
		fmt.Printf("%s %.10f  %s %d  %s %.3e  %s %.3e\n",
			viz.MetricLabel.Render("estimate:"), est.Value,
			viz.MetricLabel.Render("n:"), est.N,
			viz.MetricLabel.Render("abs error:"), est.AbsError(),
			viz.MetricLabel.Render("std error:"), est.StdErr)
	}
	if out.Lattice > 0 {
		fmt.Printf("%s %.10f  %s %.3e\n",
			viz.MetricLabel.Render("lattice:"), out.Lattice,
			viz.MetricLabel.Render("abs error:"), math.Abs(out.Lattice-math.Pi))
	}
	fmt.Println()
	fmt.Println(viz.RenderConvergence(out.Convergence))
	fmt.Println(viz.RenderScaling(out.Scaling))

	errs := make([]float64, len(out.Convergence.Rows))
	for i, r := range out.Convergence.Rows {
		errs[i] = r.AbsError
	}
	fmt.Printf("%s %s\n", viz.MetricLabel.Render("abs error by size:"), viz.Sparkline(errs, len(errs)))

	if plotsEnabled() {
		if p := viz.PlotConvergence(out.Convergence, plotWidth, plotHeight); p != "" {
			fmt.Println()
			fmt.Println(p)
		}
	}

	if out.Scaling != nil && !out.Scaling.Passed {
		return errValidationFailed
	}
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}

	steps, err := cmd.Flags().GetFloat64Slice("steps")
	if err != nil {
		return err
	}
	if len(steps) == 0 {
		steps = sweep.Geometric(cfg.Dt/8, cfg.Dt, 4)
	}
	check, _ := cmd.Flags().GetString("check")
	if check == "" {
		check = sweep.DefaultCheck
	}

	res, err := sweep.NewStepSweep(steps, check).
		WithLogger(logger).
		Run(cmd.Context(), cfg, experiment.WithLogger(logger))
	if res != nil && len(res.Points) > 0 {
		fmt.Println(viz.HeaderStyle.Render(fmt.Sprintf("step sweep: %s / %s", cfg.System, cfg.Integrator)))
		fmt.Println(viz.RenderSweep(res))
	}
	return err
}

func listPresets(cmd *cobra.Command, args []string) error {
	systems := config.Systems()
	if len(args) > 0 {
		systems = args
	} else {
		reg := experiment.NewRegistry()
		fmt.Printf("%s %s\n", viz.MetricLabel.Render("trajectory systems:"), strings.Join(reg.ListSystems(), ", "))
		fmt.Printf("%s %s\n\n", viz.MetricLabel.Render("integrators:"), strings.Join(reg.ListIntegrators(), ", "))
	}
	for _, system := range systems {
		names := config.ListPresets(system)
		if len(names) == 0 {
			return fmt.Errorf("no presets for system %q", system)
		}
		fmt.Printf("presets for %s:\n", system)
		for _, name := range names {
			p := config.GetPreset(system, name)
			fmt.Printf("  %-12s %s, dt=%g, duration=%g\n", name, p.Integrator, p.Dt, p.Duration)
		}
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st, err := newStore()
	if err != nil {
		return err
	}
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSYSTEM\tTIME\tINTEGRATOR\tDT\tSTATUS\tPASSED")
	for _, r := range runs {
		passed := "-"
		if r.Passed != nil {
			passed = fmt.Sprint(*r.Passed)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%g\t%s\t%s\n",
			r.ID, r.System, r.Timestamp.Local().Format("2006-01-02 15:04:05"),
			r.Integrator, r.Dt, r.Status, passed)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st, err := newStore()
	if err != nil {
		return err
	}
	traj, err := st.LoadTrajectory(args[0])
	if err != nil {
		return err
	}
	if traj.Len() == 0 {
		return fmt.Errorf("run %s has an empty trajectory", args[0])
	}
	cfg, err := st.LoadConfig(args[0])
	if err != nil {
		return err
	}

	dim := len(traj.At(0).X)
	labels := componentLabels(cfg, dim)
	for k := 0; k < dim; k++ {
		if k > 0 {
			fmt.Println(viz.Separator(plotWidth))
		}
		fmt.Println(viz.PlotSeries(traj.Component(k), labels[k], plotWidth, plotHeight))
	}

	if cfg.System != config.SystemOrbit {
		return nil
	}
	for i, b := range cfg.Orbit.Bodies {
		track, err := statevec.Track(traj, i)
		if err != nil {
			return err
		}
		radius := make([]float64, len(track))
		for k, pos := range track {
			radius[k] = r3.Norm(pos)
		}
		fmt.Println(viz.Separator(plotWidth))
		fmt.Println(viz.PlotSeries(radius, b.Name+" |r|", plotWidth, plotHeight))
	}
	return nil
}

func phasePlot(cmd *cobra.Command, args []string) error {
	st, err := newStore()
	if err != nil {
		return err
	}
	traj, err := st.LoadTrajectory(args[0])
	if err != nil {
		return err
	}
	xIdx, _ := cmd.Flags().GetInt("x-axis")
	yIdx, _ := cmd.Flags().GetInt("y-axis")

	portrait, err := analysis.NewPhasePortrait(traj, xIdx, yIdx)
	if err != nil {
		return err
	}
	fmt.Printf("phase portrait: x[%d] vs x[%d]\n\n", xIdx, yIdx)
	fmt.Println(analysis.PhasePortraitToASCII(portrait, 60, 30))

	if path, _ := cmd.Flags().GetString("svg"); path != "" {
		svg, err := export.PhaseSVG(portrait, 600, 600, "")
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(svg), 0644); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", path)
	}

	section, err := analysis.NewPoincareSection(traj, yIdx, 0, xIdx, yIdx)
	if err == nil && len(section.Points) > 0 {
		lo, hi := section.Points[0].X, section.Points[0].X
		for _, p := range section.Points {
			lo, hi = min(lo, p.X), max(hi, p.X)
		}
		fmt.Printf("\nsection: %d upward crossings of x[%d] = 0, x[%d] in [%.6g, %.6g]\n",
			len(section.Points), yIdx, xIdx, lo, hi)
		if len(section.Points) > 1 {
			fmt.Println(analysis.PoincareSectionToASCII(section, 60, 15))
		}
	}
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	st, err := newStore()
	if err != nil {
		return err
	}
	traj, err := st.LoadTrajectory(args[0])
	if err != nil {
		return err
	}
	k, _ := cmd.Flags().GetInt("component")
	if traj.Len() == 0 || k < 0 || k >= len(traj.At(0).X) {
		return fmt.Errorf("component %d out of range", k)
	}

	times, values := traj.Times(), traj.Component(k)
	fmt.Printf("%s x[%d], %d samples\n", viz.HeaderStyle.Render("analysis:"), k, len(values))

	if p, err := metrics.Period(times, values); err == nil {
		fmt.Printf("  %s %.6g\n", viz.MetricLabel.Render("crossing period:"), p)
	} else {
		fmt.Printf("  %s %v\n", viz.MetricLabel.Render("crossing period:"), err)
	}
	if p, err := analysis.DominantPeriod(times, values); err == nil {
		fmt.Printf("  %s %.6g\n", viz.MetricLabel.Render("spectral period:"), p)
	} else {
		fmt.Printf("  %s %v\n", viz.MetricLabel.Render("spectral period:"), err)
	}

	if report, err := st.LoadReport(args[0]); err == nil {
		fmt.Println()
		fmt.Println(viz.RenderReport(report))
	}

	spectrum := analysis.PowerSpectrum(values)
	if len(spectrum) > 1 {
		fmt.Println()
		fmt.Println(viz.PlotSeries(spectrum[1:], "power spectrum", plotWidth, plotHeight))
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st, err := newStore()
	if err != nil {
		return err
	}
	if path, _ := cmd.Flags().GetString("svg"); path != "" {
		return exportSVG(cmd, st, args[0], path)
	}
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	doc := map[string]any{"metadata": meta}
	if final, err := finalState(st, args[0]); err == nil && final != nil {
		doc["final"] = final
	}
	if report, err := st.LoadReport(args[0]); err == nil {
		doc["report"] = report
	}
	var study json.RawMessage
	if err := st.LoadStudy(args[0], &study); err == nil {
		doc["study"] = study
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func exportSVG(cmd *cobra.Command, st *storage.Store, runID, path string) error {
	traj, err := st.LoadTrajectory(runID)
	if err != nil {
		return err
	}
	k, _ := cmd.Flags().GetInt("component")
	if traj.Len() == 0 || k < 0 || k >= len(traj.At(0).X) {
		return fmt.Errorf("component %d out of range", k)
	}
	svg, err := export.SeriesSVG(traj.Times(), traj.Component(k), 800, 300, "")
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(svg), 0644)
}

func runSuite(cmd *cobra.Command, args []string) error {
	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	m := telemetry.New()

	results, runErr := automation.RunScenario(cmd.Context(), scenario, logger,
		experiment.WithLogger(logger),
		experiment.WithObserver(m.Observer()))

	var st *storage.Store
	if !v.GetBool(keyNoSave) {
		if st, err = newStore(); err != nil {
			return err
		}
	}

	fmt.Println(viz.HeaderStyle.Render("suite: " + scenario.Name))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tSYSTEM\tRESULT\tRUN\tERROR")
	for _, r := range results {
		var runID string
		switch {
		case r.Outcome != nil:
			m.RecordRun(r.Config.System, r.Config.Integrator, r.Outcome.Result)
			m.RecordReport(r.Report)
			if st != nil {
				if runID, err = st.Save(r.Config, r.Outcome.Result, r.Report); err != nil {
					return fmt.Errorf("save %s: %w", r.Name, err)
				}
			}
		case r.Pi != nil:
			m.RecordConvergence(r.Pi.Convergence)
			if st != nil {
				if runID, err = st.SaveStudy(r.Config, r.Pi); err != nil {
					return fmt.Errorf("save %s: %w", r.Name, err)
				}
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.Name, r.System, viz.Verdict(r.Passed), runID, r.Err)
	}
	w.Flush()

	if err := writeMetrics(m); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	if runErr != nil {
		return runErr
	}
	if !automation.Passed(results) {
		return errValidationFailed
	}
	return nil
}

// finalState describes the last stored sample per degree of freedom or
// per body. Studies without a trajectory yield nil.
func finalState(st *storage.Store, runID string) (any, error) {
	cfg, err := st.LoadConfig(runID)
	if err != nil {
		return nil, err
	}
	traj, err := st.LoadTrajectory(runID)
	if err != nil || traj.Len() == 0 {
		return nil, err
	}
	last, _ := traj.Last()

	switch cfg.System {
	case config.SystemOrbit:
		params, err := cfg.OrbitParams()
		if err != nil {
			return nil, err
		}
		return statevec.Bodies(last.X, params.Bodies)
	case config.SystemOscillator:
		type dof struct {
			Q float64 `json:"q"`
			V float64 `json:"v"`
		}
		out := make([]dof, len(last.X)/2)
		for i := range out {
			q, v, err := statevec.UnpackDOF(last.X, i)
			if err != nil {
				return nil, err
			}
			out[i] = dof{Q: q, V: v}
		}
		return out, nil
	}
	return nil, nil
}

// componentLabels names state entries: position and velocity for the
// oscillator, body and axis for orbits.
func componentLabels(cfg *config.Config, dim int) []string {
	labels := make([]string, dim)
	for k := range labels {
		labels[k] = fmt.Sprintf("x[%d]", k)
	}
	switch cfg.System {
	case config.SystemOscillator:
		if dim == 2 {
			labels[0], labels[1] = "position", "velocity"
		}
	case config.SystemOrbit:
		axes := [statevec.BodyStride]string{"x", "y", "z", "vx", "vy", "vz"}
		for i, b := range cfg.Orbit.Bodies {
			for j, a := range axes {
				if k := i*statevec.BodyStride + j; k < dim {
					labels[k] = strings.TrimSpace(b.Name + " " + a)
				}
			}
		}
	}
	return labels
}
