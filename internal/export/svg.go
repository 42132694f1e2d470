// Package export writes plots of stored runs in formats other tools read.
package export

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/simcheck/internal/analysis"
)

var ErrTooFewPoints = errors.New("export: need at least two points")

const DefaultStroke = "#00ff00"

// PhaseSVG draws a phase portrait as one path.
func PhaseSVG(p *analysis.PhasePortrait2D, width, height int, stroke string) (string, error) {
	return pathSVG(p.Points, width, height, stroke)
}

// SeriesSVG draws values against times.
func SeriesSVG(times, values []float64, width, height int, stroke string) (string, error) {
	n := min(len(times), len(values))
	points := make([]analysis.Point, n)
	for i := range points {
		points[i] = analysis.Point{X: times[i], Y: values[i]}
	}
	return pathSVG(points, width, height, stroke)
}

func pathSVG(points []analysis.Point, width, height int, stroke string) (string, error) {
	if len(points) < 2 {
		return "", ErrTooFewPoints
	}
	if stroke == "" {
		stroke = DefaultStroke
	}

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i], ys[i] = p.X, p.Y
	}
	minX, rangeX := paddedRange(xs)
	minY, rangeY := paddedRange(ys)

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<path fill="none" stroke="%s" stroke-width="1.5" d="M`,
		width, height, width, height, stroke)

	for i, p := range points {
		x := (p.X - minX) / rangeX * float64(width)
		y := float64(height) - (p.Y-minY)/rangeY*float64(height)
		if i == 0 {
			fmt.Fprintf(&sb, "%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
		}
	}

	sb.WriteString(`"/>
</svg>
`)
	return sb.String(), nil
}

// paddedRange returns the lower edge and width of the data range widened
// by 10% on each side.
func paddedRange(v []float64) (lo, span float64) {
	lo, hi := floats.Min(v), floats.Max(v)
	span = hi - lo
	if span == 0 {
		span = 1
	}
	lo -= span * 0.1
	return lo, span * 1.2
}
