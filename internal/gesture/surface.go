package gesture

import "sync"

// Point is a pointer position in the shell's coordinate space.
type Point struct {
	X float64
	Y float64
}

// Surface maps pointer positions to the grid. A false ok means the target
// is not (or no longer) rendered.
type Surface interface {
	// DayAt reports which day column contains p.
	DayAt(p Point) (string, bool)
	// MinutesAt converts p to raw minutes inside the given day column.
	MinutesAt(day string, p Point) (float64, bool)
}

// PointerHandlers receives the window-wide signals of one gesture. OnEnd
// covers pointer-up and touch-end; OnCancel covers pointer-cancel and
// touch-cancel.
type PointerHandlers struct {
	OnMove   func(p Point)
	OnEnd    func(p Point)
	OnCancel func()
}

// PointerSource attaches global listeners for one gesture. The returned
// detach func is called exactly once when the gesture ends.
type PointerSource interface {
	Attach(h PointerHandlers) (detach func())
}

// Column is the rendered rectangle of one day.
type Column struct {
	Day   string
	Left  float64
	Top   float64
	Width float64
}

// Grid is a Surface over vertically stacked hour rows: each hour is
// SlotHeight units tall, starting at the column's Top.
type Grid struct {
	SlotHeight float64

	mu      sync.RWMutex
	columns []Column
}

// NewGrid returns an empty grid with the given hour height.
func NewGrid(slotHeight float64) *Grid {
	if slotHeight <= 0 {
		slotHeight = 48
	}
	return &Grid{SlotHeight: slotHeight}
}

// Mount registers (or replaces) a rendered day column.
func (g *Grid) Mount(c Column) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.columns {
		if g.columns[i].Day == c.Day {
			g.columns[i] = c
			return
		}
	}
	g.columns = append(g.columns, c)
}

// Unmount removes a day column; gestures bound to it are cancelled on
// their next pointer signal.
func (g *Grid) Unmount(day string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.columns {
		if g.columns[i].Day == day {
			g.columns = append(g.columns[:i], g.columns[i+1:]...)
			return
		}
	}
}

// Reset removes every column.
func (g *Grid) Reset() {
	g.mu.Lock()
	g.columns = nil
	g.mu.Unlock()
}

func (g *Grid) column(day string) (Column, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, c := range g.columns {
		if c.Day == day {
			return c, true
		}
	}
	return Column{}, false
}

func (g *Grid) DayAt(p Point) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, c := range g.columns {
		if p.X >= c.Left && p.X < c.Left+c.Width {
			return c.Day, true
		}
	}
	return "", false
}

func (g *Grid) MinutesAt(day string, p Point) (float64, bool) {
	c, ok := g.column(day)
	if !ok {
		return 0, false
	}
	return (p.Y - c.Top) / g.SlotHeight * 60, true
}
