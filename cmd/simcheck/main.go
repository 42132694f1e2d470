package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/san-kum/simcheck/internal/config"
	"github.com/san-kum/simcheck/internal/logging"
	"github.com/san-kum/simcheck/internal/storage"
	"github.com/san-kum/simcheck/internal/telemetry"
)

const (
	keyData        = "data"
	keyLogLevel    = "log_level"
	keyLogFormat   = "log_format"
	keyMetricsFile = "metrics_file"
	keyPlot        = "plot"
	keyNoSave      = "no_save"
)

// errValidationFailed makes the process exit non-zero after a report with
// failed checks has been printed.
var errValidationFailed = errors.New("validation failed")

var v = viper.New()

func main() {
	v.SetEnvPrefix("SIMCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:           "simcheck",
		Short:         "simulate physical systems and validate them against analytical references",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(cmd)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.String("data", ".simcheck", "data directory")
	pf.String("config", "", "config file path (yaml)")
	pf.String("preset", "", "use preset configuration")
	pf.String("log-level", "warn", "log level (debug, info, warn, error)")
	pf.String("log-format", "text", "log format (text, json)")
	pf.String("metrics-file", "", "write prometheus metrics to this textfile")
	pf.String("plot", "auto", "draw plots: auto (terminal only), always, never")

	runCmd := &cobra.Command{
		Use:   "run [system]",
		Short: "integrate a system and validate the trajectory",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	addRunFlags(runCmd.Flags())
	runCmd.Flags().Bool("no-save", false, "do not store the run")

	piCmd := &cobra.Command{
		Use:   "pi",
		Short: "estimate pi by Monte Carlo and check its convergence",
		Args:  cobra.NoArgs,
		RunE:  runPi,
	}
	piCmd.Flags().Uint64("seed", config.DefaultSeed, "random seed")
	piCmd.Flags().Int("samples", 0, "sample count of the single estimate")
	piCmd.Flags().Int("workers", 0, "parallel batches (0 = GOMAXPROCS)")
	piCmd.Flags().Bool("no-save", false, "do not store the study")

	sweepCmd := &cobra.Command{
		Use:   "sweep [system]",
		Short: "rerun over step sizes and fit the order of accuracy",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSweep,
	}
	addRunFlags(sweepCmd.Flags())
	sweepCmd.Flags().Float64Slice("steps", nil, "step sizes (default: dt, dt/2, dt/4, dt/8)")
	sweepCmd.Flags().String("check", "", "check whose measurement is fitted (default max_abs_error)")

	presetsCmd := &cobra.Command{
		Use:   "presets [system]",
		Short: "list available presets",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the components of a stored trajectory",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	phaseCmd := &cobra.Command{
		Use:   "phase [run_id]",
		Short: "phase space plot of a stored trajectory",
		Args:  cobra.ExactArgs(1),
		RunE:  phasePlot,
	}
	phaseCmd.Flags().Int("x-axis", 0, "state index for x-axis")
	phaseCmd.Flags().Int("y-axis", 1, "state index for y-axis")
	phaseCmd.Flags().String("svg", "", "also write the portrait to this SVG file")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "spectral and crossing period of a stored trajectory",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().Int("component", 0, "state index to analyze")

	suiteCmd := &cobra.Command{
		Use:   "suite [scenario.yaml]",
		Short: "run every step of a scenario file and summarize",
		Args:  cobra.ExactArgs(1),
		RunE:  runSuite,
	}
	suiteCmd.Flags().Bool("no-save", false, "do not store the runs")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "print run metadata and report as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().String("svg", "", "write component plots to this SVG file instead")
	exportCmd.Flags().Int("component", 0, "state index drawn with --svg")

	rootCmd.AddCommand(runCmd, piCmd, sweepCmd, presetsCmd, listCmd, plotCmd, phaseCmd, analyzeCmd, suiteCmd, exportCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errValidationFailed) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func addRunFlags(fs *pflag.FlagSet) {
	fs.String("integrator", "", "integrator (leapfrog, verlet, rk4, euler, rk45)")
	fs.Float64("start", 0, "start time")
	fs.Float64("duration", config.DefaultDuration, "duration in seconds")
	fs.Float64("dt", config.DefaultDt, "timestep, or initial step when adaptive")
	fs.Int("max-steps", 0, "step budget (0 = unlimited)")
	fs.Bool("adaptive", false, "error-controlled stepping (rk45 only)")
	fs.Float64("rtol", config.DefaultRelTol, "relative tolerance for adaptive stepping")
	fs.Float64("atol", config.DefaultAbsTol, "absolute tolerance for adaptive stepping")
}

// bindFlags maps every flag of the running command onto a viper key, so
// that a flag the user set wins over SIMCHECK_* variables and the file.
func bindFlags(cmd *cobra.Command) error {
	var err error
	bind := func(f *pflag.Flag) {
		if e := v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f); e != nil && err == nil {
			err = e
		}
	}
	cmd.Flags().VisitAll(bind)
	cmd.InheritedFlags().VisitAll(bind)
	return err
}

// loadConfig layers defaults, preset, file, environment and flags. A
// positional system argument selects the system.
func loadConfig(args []string) (*config.Config, error) {
	if len(args) > 0 {
		v.Set(config.KeySystem, args[0])
	}
	return config.FromViper(v)
}

func newLogger() (*slog.Logger, error) {
	return logging.New(logging.Config{
		Level:  v.GetString(keyLogLevel),
		Format: v.GetString(keyLogFormat),
	})
}

func newStore() (*storage.Store, error) {
	st := storage.New(v.GetString(keyData))
	return st, st.Init()
}

func writeMetrics(m *telemetry.Metrics) error {
	path := v.GetString(keyMetricsFile)
	if path == "" {
		return nil
	}
	return m.WriteToTextfile(path)
}

func plotsEnabled() bool {
	switch v.GetString(keyPlot) {
	case "always":
		return true
	case "never":
		return false
	}
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
