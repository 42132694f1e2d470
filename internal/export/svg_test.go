package export

import (
	"errors"
	"strings"
	"testing"

	"github.com/san-kum/simcheck/internal/analysis"
)

func TestSeriesSVG(t *testing.T) {
	svg, err := SeriesSVG([]float64{0, 1, 2}, []float64{0, 1, 0}, 100, 50, "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(svg, "<?xml") || !strings.Contains(svg, `stroke="#00ff00"`) {
		t.Errorf("unexpected document:\n%s", svg)
	}
	if n := strings.Count(svg, " L"); n != 2 {
		t.Errorf("expected 2 line segments, got %d", n)
	}
	// x spans 0..2 padded to -0.2..2.2, so the first point sits at 100*0.2/2.4
	if !strings.Contains(svg, `d="M8.3,`) {
		t.Errorf("first point misplaced:\n%s", svg)
	}
}

func TestPhaseSVG(t *testing.T) {
	p := &analysis.PhasePortrait2D{Points: []analysis.Point{{X: 1, Y: 0}, {X: 0, Y: 1}, {X: -1, Y: 0}, {X: 0, Y: -1}}}
	svg, err := PhaseSVG(p, 200, 200, "#ff0000")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(svg, `stroke="#ff0000"`) || strings.Count(svg, " L") != 3 {
		t.Errorf("unexpected document:\n%s", svg)
	}
}

func TestPathSVG_Degenerate(t *testing.T) {
	if _, err := SeriesSVG([]float64{1}, []float64{1}, 10, 10, ""); !errors.Is(err, ErrTooFewPoints) {
		t.Errorf("expected ErrTooFewPoints, got %v", err)
	}

	// flat series must not divide by zero
	svg, err := SeriesSVG([]float64{0, 1}, []float64{3, 3}, 10, 10, "")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(svg, "NaN") || strings.Contains(svg, "Inf") {
		t.Errorf("non-finite coordinates:\n%s", svg)
	}
}
