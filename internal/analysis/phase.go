package analysis

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/simcheck/internal/dynamo"
)

type Point struct{ X, Y float64 }

// PhasePortrait2D holds two state components of a trajectory plotted
// against each other, e.g. x against vx or an orbit's x against y.
type PhasePortrait2D struct {
	XIndex, YIndex int
	Points         []Point
}

func NewPhasePortrait(traj *dynamo.Trajectory, xIdx, yIdx int) (*PhasePortrait2D, error) {
	if err := checkIndex(traj, xIdx, yIdx); err != nil {
		return nil, err
	}
	xs, ys := traj.Component(xIdx), traj.Component(yIdx)
	portrait := &PhasePortrait2D{XIndex: xIdx, YIndex: yIdx, Points: make([]Point, len(xs))}
	for i := range xs {
		portrait.Points[i] = Point{X: xs[i], Y: ys[i]}
	}
	return portrait, nil
}

// PoincareSection records points when a trajectory crosses a level.
type PoincareSection struct {
	Times  []float64
	Points []Point
}

// NewPoincareSection records (recordX, recordY) linearly interpolated to
// every upward crossing of component crossIdx through threshold.
func NewPoincareSection(traj *dynamo.Trajectory, crossIdx int, threshold float64, recordX, recordY int) (*PoincareSection, error) {
	if err := checkIndex(traj, crossIdx, recordX, recordY); err != nil {
		return nil, err
	}

	section := &PoincareSection{}
	for i := 1; i < traj.Len(); i++ {
		prev, cur := traj.At(i-1), traj.At(i)
		a, b := prev.X[crossIdx], cur.X[crossIdx]
		if !(a < threshold && b >= threshold) {
			continue
		}
		frac := (threshold - a) / (b - a)
		lerp := func(k int) float64 { return prev.X[k] + frac*(cur.X[k]-prev.X[k]) }
		section.Times = append(section.Times, prev.T+frac*(cur.T-prev.T))
		section.Points = append(section.Points, Point{X: lerp(recordX), Y: lerp(recordY)})
	}
	return section, nil
}

func checkIndex(traj *dynamo.Trajectory, idx ...int) error {
	if traj == nil || traj.Len() == 0 {
		return fmt.Errorf("%w: empty trajectory", ErrTooShort)
	}
	dim := len(traj.At(0).X)
	for _, k := range idx {
		if k < 0 || k >= dim {
			return fmt.Errorf("analysis: component %d out of range [0, %d)", k, dim)
		}
	}
	return nil
}

// PhasePortraitToASCII converts phase portrait to ASCII art
func PhasePortraitToASCII(portrait *PhasePortrait2D, width, height int) string {
	if portrait == nil || len(portrait.Points) == 0 || width < 2 || height < 2 {
		return ""
	}

	xs := make([]float64, len(portrait.Points))
	ys := make([]float64, len(portrait.Points))
	for i, p := range portrait.Points {
		xs[i], ys[i] = p.X, p.Y
	}
	minX, maxX := padded(floats.Min(xs), floats.Max(xs))
	minY, maxY := padded(floats.Min(ys), floats.Max(ys))
	rangeX, rangeY := maxX-minX, maxY-minY

	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = []rune(strings.Repeat(" ", width))
	}

	for _, p := range portrait.Points {
		col := int((p.X - minX) / rangeX * float64(width-1))
		row := height - 1 - int((p.Y-minY)/rangeY*float64(height-1))
		if row >= 0 && row < height && col >= 0 && col < width {
			canvas[row][col] = '•'
		}
	}

	// axes, where they cross the visible area
	if minX <= 0 && maxX >= 0 {
		col := int((0 - minX) / rangeX * float64(width-1))
		for row := 0; row < height; row++ {
			if canvas[row][col] == ' ' {
				canvas[row][col] = '│'
			}
		}
	}
	if minY <= 0 && maxY >= 0 {
		row := height - 1 - int((0-minY)/rangeY*float64(height-1))
		for col := 0; col < width; col++ {
			if canvas[row][col] == ' ' {
				canvas[row][col] = '─'
			}
		}
	}

	var sb strings.Builder
	for _, row := range canvas {
		sb.WriteString(string(row))
		sb.WriteRune('\n')
	}
	return sb.String()
}

func PoincareSectionToASCII(section *PoincareSection, width, height int) string {
	if section == nil || len(section.Points) == 0 {
		return "No crossings detected"
	}
	return PhasePortraitToASCII(&PhasePortrait2D{Points: section.Points}, width, height)
}

func padded(lo, hi float64) (float64, float64) {
	r := hi - lo
	if r == 0 {
		r = 1
	}
	return lo - 0.1*r, hi + 0.1*r
}
