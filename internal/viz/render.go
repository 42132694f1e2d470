package viz

import (
	"fmt"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/simcheck/internal/harness"
	"github.com/san-kum/simcheck/internal/sweep"
)

// RenderReport lists every check with its verdict.
func RenderReport(r *harness.Report) string {
	if r == nil || r.Len() == 0 {
		return Subtle.Render("no checks")
	}

	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHECK\tMEASURED\tTHRESHOLD\tRESULT\tNOTE")
	for _, c := range r.Checks() {
		fmt.Fprintf(w, "%s\t%.4g\t%.4g\t%s\t%s\n", c.Name, c.Measured, c.Threshold, Verdict(c.Passed), c.Note)
	}
	w.Flush()

	return sb.String() + "\n" + MetricLabel.Render("overall: ") + Verdict(r.Passed())
}

// RenderConvergence tabulates the convergence study with its stop reason.
func RenderConvergence(c *harness.Convergence) string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "N\tESTIMATE\tABS ERROR\tSTD ERROR\tBAND95\tIN BAND\tSECONDS")
	for _, r := range c.Rows {
		fmt.Fprintf(w, "%d\t%.8f\t%.3e\t%.3e\t%.3e\t%t\t%.3f\n",
			r.N, r.Estimate, r.AbsError, r.StdErr, r.Band95, r.WithinBand, r.Elapsed)
	}
	w.Flush()

	fmt.Fprintf(&sb, "\n%s %s at n=%d", MetricLabel.Render("stopped:"), MetricValue.Render(string(c.StopReason)), c.StoppedAt)
	return sb.String()
}

func RenderScaling(s *harness.ScalingResult) string {
	if s == nil {
		return Subtle.Render("scaling: not enough sizes")
	}
	return fmt.Sprintf("%s slope %.3f over %.1f decades, error*sqrt(n) in [%.3f, %.3f] (bound [%g, %g]) %s",
		MetricLabel.Render("scaling:"), s.Slope, s.Decades, s.MinScaled, s.MaxScaled, s.Low, s.High, Verdict(s.Passed))
}

func RenderSweep(r *sweep.Result) string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "DT\tSTEPS\t%s\tRESULT\n", strings.ToUpper(r.Check))
	for _, p := range r.Points {
		verdict := Verdict(p.Passed)
		if p.Err != "" {
			verdict = FailStyle.Render(p.Err)
		}
		fmt.Fprintf(w, "%g\t%d\t%.4g\t%s\n", p.Dt, p.Steps, p.Measured, verdict)
	}
	w.Flush()

	fmt.Fprintf(&sb, "\n%s %s", MetricLabel.Render("empirical order:"), MetricValue.Render(fmt.Sprintf("%.2f", r.Order)))
	if r.Coarsest > 0 {
		fmt.Fprintf(&sb, "\n%s %g", MetricLabel.Render("coarsest passing dt:"), r.Coarsest)
	}
	return sb.String()
}

// PlotSeries draws values against sample index, thinned to width points.
func PlotSeries(values []float64, caption string, width, height int) string {
	if len(values) == 0 {
		return ""
	}
	return asciigraph.Plot(thin(values, width),
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	)
}

// PlotConvergence draws log10 |error| against the convergence sizes, with
// the 95% band for comparison.
func PlotConvergence(c *harness.Convergence, width, height int) string {
	if len(c.Rows) < 2 {
		return ""
	}
	errs := make([]float64, len(c.Rows))
	band := make([]float64, len(c.Rows))
	for i, r := range c.Rows {
		errs[i] = math.Log10(math.Max(r.AbsError, 1e-16))
		band[i] = math.Log10(r.Band95)
	}
	return asciigraph.PlotMany([][]float64{errs, band},
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.SeriesColors(asciigraph.Red, asciigraph.Green),
		asciigraph.Caption("log10 |error| (red) and 95% band (green) per size"),
	)
}

func thin(values []float64, width int) []float64 {
	if width <= 1 || len(values) <= width {
		return values
	}
	out := make([]float64, width)
	for i := range out {
		out[i] = values[i*(len(values)-1)/(width-1)]
	}
	return out
}
