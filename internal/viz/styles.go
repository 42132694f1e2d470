package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gonum.org/v1/gonum/floats"
)

const (
	colorText   = lipgloss.Color("#ffffff")
	colorBorder = lipgloss.Color("#444466")
	colorMuted  = lipgloss.Color("#666688")
	colorLabel  = lipgloss.Color("#888899")
	colorValue  = lipgloss.Color("#00ccff")
	colorGood   = lipgloss.Color("#00ff88")
	colorWarn   = lipgloss.Color("#ffcc00")
	colorBad    = lipgloss.Color("#ff4444")
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorText).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(colorBorder)

	Subtle      = lipgloss.NewStyle().Foreground(colorMuted)
	MetricLabel = lipgloss.NewStyle().Foreground(colorLabel)
	MetricValue = lipgloss.NewStyle().Foreground(colorValue).Bold(true)
	PassStyle   = lipgloss.NewStyle().Foreground(colorGood).Bold(true)
	FailStyle   = lipgloss.NewStyle().Foreground(colorBad).Bold(true)

	sparkStyles = [3]lipgloss.Style{
		lipgloss.NewStyle().Foreground(colorBad),
		lipgloss.NewStyle().Foreground(colorWarn),
		lipgloss.NewStyle().Foreground(colorGood),
	}
)

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// Verdict renders PASS or FAIL.
func Verdict(passed bool) string {
	if passed {
		return PassStyle.Render("PASS")
	}
	return FailStyle.Render("FAIL")
}

// Sparkline renders values as one line of block characters, thinned to
// width, colored by level.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return strings.Repeat("─", max(width, 0))
	}
	values = thin(values, width)

	lo, hi := floats.Min(values), floats.Max(values)
	span := hi - lo
	if span == 0 {
		span = 1
	}

	var sb strings.Builder
	for _, v := range values {
		level := (v - lo) / span
		idx := min(max(int(level*float64(len(sparkRunes)-1)), 0), len(sparkRunes)-1)
		style := sparkStyles[0]
		switch {
		case level > 0.7:
			style = sparkStyles[2]
		case level > 0.3:
			style = sparkStyles[1]
		}
		sb.WriteString(style.Render(string(sparkRunes[idx])))
	}
	return sb.String()
}

func Separator(width int) string {
	if width < 8 {
		return Subtle.Render(strings.Repeat("─", max(width, 0)))
	}
	mid := width / 2
	return Subtle.Render(strings.Repeat("─", mid-3) + " ◆ " + strings.Repeat("─", width-mid-3))
}
