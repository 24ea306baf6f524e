// Package composer places the floating event-creation form next to the
// current selection.
package composer

import (
	"math"

	"tripcal/internal/model"
)

// DefaultEpsilon is the largest move treated as "unchanged" by a Placer.
const DefaultEpsilon = 0.5

// Rect is an axis-aligned box in the shell's coordinate space.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

func (r Rect) Right() float64  { return r.X + r.Width }
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Point is the top-left corner of the placed composer.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Input describes one placement.
type Input struct {
	// Anchor is the on-screen box of the selection: its vertical extent
	// spans the selected minutes, its horizontal extent the selected day
	// column(s).
	Anchor Rect
	// Bounds is the visible area of the scrollable grid.
	Bounds Rect
	// Width and Height are the measured composer size.
	Width  float64
	Height float64
	// Gutter keeps the composer off the grid edges and the selection.
	Gutter float64
}

// Position computes where the composer goes.
//
// Vertically it is centered on the selection midpoint and kept inside
// Bounds minus Gutter. Horizontally it goes right of the anchor column if
// it fits, else left of it if that fits, else it is clamped into Bounds.
func Position(in Input) Point {
	g := max(in.Gutter, 0)

	mid := in.Anchor.Y + in.Anchor.Height/2
	y := clampRange(mid-in.Height/2, in.Bounds.Y+g, in.Bounds.Bottom()-g-in.Height)

	var x float64
	right := in.Anchor.Right() + g
	left := in.Anchor.X - g - in.Width
	switch {
	case right+in.Width <= in.Bounds.Right()-g:
		x = right
	case left >= in.Bounds.X+g:
		x = left
	default:
		x = clampRange(right, in.Bounds.X+g, in.Bounds.Right()-g-in.Width)
	}
	return Point{X: x, Y: y}
}

// clampRange clamps v to [lo, hi]; when the range is empty lo wins so the
// composer's top-left corner stays visible.
func clampRange(v, lo, hi float64) float64 {
	if hi < lo {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}

// Geometry is the grid layout needed to turn a selection into an anchor box.
type Geometry struct {
	// Columns maps an ISO day to its rendered column box. Y is the top of
	// minute 0.
	Columns map[string]Rect
	// SlotHeight is the height of one hour.
	SlotHeight float64
}

// AnchorFor returns the on-screen box of a selection. Multi-day selections
// span from the start column to the end column.
func (g Geometry) AnchorFor(sel model.Selection) (Rect, bool) {
	startCol, ok := g.Columns[sel.StartDate]
	if !ok {
		return Rect{}, false
	}
	endCol, ok := g.Columns[sel.EndDate]
	if !ok {
		return Rect{}, false
	}
	top := startCol.Y + float64(sel.StartMinutes)/60*g.SlotHeight
	bottom := endCol.Y + float64(sel.EndMinutes)/60*g.SlotHeight
	if bottom < top {
		top, bottom = bottom, top
	}
	x := math.Min(startCol.X, endCol.X)
	r := math.Max(startCol.Right(), endCol.Right())
	return Rect{X: x, Y: top, Width: r - x, Height: bottom - top}, true
}

// Placer remembers the last placement and ignores sub-epsilon changes, so
// repeated layout passes with unchanged inputs leave the composer still.
type Placer struct {
	Epsilon float64

	last Point
	set  bool
}

// Update places the composer and reports whether its position moved.
func (p *Placer) Update(in Input) (Point, bool) {
	eps := p.Epsilon
	if eps <= 0 {
		eps = DefaultEpsilon
	}
	next := Position(in)
	if p.set && math.Abs(next.X-p.last.X) <= eps && math.Abs(next.Y-p.last.Y) <= eps {
		return p.last, false
	}
	p.last = next
	p.set = true
	return next, true
}

// Reset forgets the last placement, e.g. when the composer closes.
func (p *Placer) Reset() {
	p.set = false
	p.last = Point{}
}
