package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"tripcal/internal/calendar"
	"tripcal/internal/gesture"
	"tripcal/internal/model"
	"tripcal/internal/timegrid"
)

type cellStyle int

const (
	styleBlank cellStyle = iota
	styleTitle
	styleHeader
	styleToday
	styleHour
	styleRule
	styleFocus
	styleSelect
	styleEvent
	styleContinued
	stylePreview
	styleComposer
	styleStatus
)

var styles = map[cellStyle]lipgloss.Style{
	styleBlank:     lipgloss.NewStyle(),
	styleTitle:     lipgloss.NewStyle().Bold(true),
	styleHeader:    lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
	styleToday:     lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true),
	styleHour:      lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
	styleRule:      lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
	styleFocus:     lipgloss.NewStyle().Background(lipgloss.Color("237")),
	styleSelect:    lipgloss.NewStyle().Background(lipgloss.Color("24")),
	styleEvent:     lipgloss.NewStyle().Background(lipgloss.Color("25")).Foreground(lipgloss.Color("231")),
	styleContinued: lipgloss.NewStyle().Background(lipgloss.Color("60")).Foreground(lipgloss.Color("231")),
	stylePreview:   lipgloss.NewStyle().Background(lipgloss.Color("172")).Foreground(lipgloss.Color("16")),
	styleComposer:  lipgloss.NewStyle().Background(lipgloss.Color("235")).Foreground(lipgloss.Color("255")),
	styleStatus:    lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
}

type cell struct {
	ch    rune
	style cellStyle
}

// canvas is a fixed-size character buffer.
type canvas struct {
	w, h  int
	cells [][]cell
}

func newCanvas(w, h int) *canvas {
	c := &canvas{w: w, h: h, cells: make([][]cell, h)}
	for y := range c.cells {
		c.cells[y] = make([]cell, w)
		for x := range c.cells[y] {
			c.cells[y][x] = cell{ch: ' '}
		}
	}
	return c
}

func (c *canvas) set(x, y int, ch rune, st cellStyle) {
	if x < 0 || y < 0 || x >= c.w || y >= c.h {
		return
	}
	c.cells[y][x] = cell{ch: ch, style: st}
}

func (c *canvas) fill(x0, y0, x1, y1 int, st cellStyle) {
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			c.set(x, y, ' ', st)
		}
	}
}

// text writes s from x, clipped at limit (exclusive).
func (c *canvas) text(x, y, limit int, s string, st cellStyle) {
	for _, r := range s {
		if x >= limit {
			return
		}
		c.set(x, y, r, st)
		x++
	}
}

func (c *canvas) String() string {
	var b strings.Builder
	for y, row := range c.cells {
		if y > 0 {
			b.WriteByte('\n')
		}
		start := 0
		for x := 1; x <= len(row); x++ {
			if x < len(row) && row[x].style == row[start].style {
				continue
			}
			run := make([]rune, 0, x-start)
			for _, cl := range row[start:x] {
				run = append(run, cl.ch)
			}
			b.WriteString(styles[row[start].style].Render(string(run)))
			start = x
		}
	}
	return b.String()
}

// block is a laid-out segment on screen; coordinates are inclusive.
type block struct {
	day            string
	seg            model.LayoutSegment
	x0, x1, y0, y1 int
}

func (b block) contains(x, y int) bool {
	return x >= b.x0 && x <= b.x1 && y >= b.y0 && y <= b.y1
}

// modeAt picks the gesture for a press: the first and last rows of a tall
// block are resize handles.
func (b block) modeAt(y int) gesture.Mode {
	if b.y1-b.y0 >= 2 {
		switch y {
		case b.y0:
			return gesture.ModeResizeStart
		case b.y1:
			return gesture.ModeResizeEnd
		}
	}
	return gesture.ModeMove
}

// rowSpan converts a minute range to grid rows, inclusive.
func (m *Model) rowSpan(start, end int) (int, int) {
	slot := m.slotMinutes()
	first := start / slot
	last := max((end+slot-1)/slot-1, first)
	return first, last
}

// columnBox returns the inner x range of a sub-column inside day column i.
func (m *Model) columnBox(i, colIndex, colCount int) (int, int) {
	w := m.colWidth()
	left := gutterCols + i*w + 1
	inner := max(w-1, 1)
	colCount = max(colCount, 1)
	x0 := left + colIndex*inner/colCount
	x1 := max(left+(colIndex+1)*inner/colCount-1, x0)
	return x0, x1
}

func (m *Model) blocks(rm calendar.RenderModel) []block {
	var out []block
	for i, col := range m.visibleColumns(rm) {
		for _, seg := range col.Segments {
			x0, x1 := m.columnBox(i, seg.ColumnIndex, seg.ColumnCount)
			r0, r1 := m.rowSpan(seg.StartMinutes, seg.EndMinutes)
			out = append(out, block{
				day: col.Day.ISO,
				seg: seg,
				x0:  x0,
				x1:  x1,
				y0:  headerRows + r0 - m.scrollRow,
				y1:  headerRows + r1 - m.scrollRow,
			})
		}
	}
	return out
}

func (m *Model) blockAt(x, y int) (block, bool) {
	bs := m.blocks(m.renderModel())
	// Later blocks are drawn on top.
	for i := len(bs) - 1; i >= 0; i-- {
		if bs[i].contains(x, y) {
			return bs[i], true
		}
	}
	return block{}, false
}

func (m *Model) visibleColumns(rm calendar.RenderModel) []calendar.Column {
	if m.firstDay >= len(rm.Columns) {
		return nil
	}
	n := len(m.visibleDays())
	end := min(m.firstDay+n, len(rm.Columns))
	return rm.Columns[m.firstDay:end]
}

func (m *Model) View() string {
	c := newCanvas(max(m.width, 1), max(m.height, 1))
	rm := m.renderModel()

	title := m.it.Title
	if m.it.StartDate != "" {
		title += "  " + m.it.StartDate + " → " + m.it.EndDate
	}
	c.text(0, 0, c.w, title, styleTitle)

	if len(rm.Days) == 0 {
		c.text(0, headerRows, c.w, "This trip has no dates yet.", styleStatus)
		m.drawFooter(c)
		return c.String()
	}

	w := m.colWidth()
	cols := m.visibleColumns(rm)
	idx := timegrid.IndexCalendar(m.visibleDays())
	var selStart, selEnd int
	hasSel := false
	if rm.Selection != nil {
		selStart, selEnd, hasSel = gesture.SelectionBounds(idx, *rm.Selection)
	}

	for i, col := range cols {
		left := gutterCols + i*w
		st := styleHeader
		if col.Day.IsToday {
			st = styleToday
		}
		c.text(left+1, 1, left+w, col.Day.Weekday+" "+col.Day.MonthDay, st)
	}

	slot := m.slotMinutes()
	for r := 0; r < m.gridRows(); r++ {
		row := m.scrollRow + r
		if row >= m.totalRows() {
			break
		}
		y := headerRows + r
		if row%m.rowsPerHour() == 0 {
			c.text(0, y, gutterCols, timegrid.FormatClock(row*slot), styleHour)
		}
		for i, col := range cols {
			left := gutterCols + i*w
			c.set(left, y, '│', styleRule)
			st := styleBlank
			if col.Day.ISO == m.focus.Day && row*slot == m.focus.Minutes {
				st = styleFocus
			}
			if hasSel {
				if di, ok := idx.IndexOf(col.Day.ISO); ok {
					abs := di*timegrid.MinutesPerDay + row*slot
					if abs < selEnd && abs+slot > selStart {
						st = styleSelect
					}
				}
			}
			if st != styleBlank {
				c.fill(left+1, y, left+w-1, y, st)
			}
		}
	}

	dragged := ""
	if rm.Preview != nil {
		dragged = rm.Preview.EventID
	}
	for _, b := range m.blocks(rm) {
		if b.seg.Event.ID == dragged {
			continue
		}
		st := styleEvent
		if !b.seg.IsStart || !b.seg.IsEnd {
			st = styleContinued
		}
		m.drawBlock(c, b, b.seg.Event.Title, b.seg.StartMinutes, b.seg.EndMinutes, st)
	}
	for i, col := range cols {
		if d := col.Dragging; d != nil {
			x0, x1 := m.columnBox(i, d.ColumnIndex, d.ColumnCount)
			r0, r1 := m.rowSpan(d.PreviewStart, d.PreviewEnd)
			b := block{x0: x0, x1: x1, y0: headerRows + r0 - m.scrollRow, y1: headerRows + r1 - m.scrollRow}
			m.drawBlock(c, b, d.Event.Title, d.PreviewStart, d.PreviewEnd, stylePreview)
		}
	}

	if rm.Composer != nil && rm.Composer.Visible {
		m.drawComposer(c, *rm.Composer)
	}
	m.drawFooter(c)
	return c.String()
}

func (m *Model) drawBlock(c *canvas, b block, title string, start, end int, st cellStyle) {
	top := max(b.y0, headerRows)
	bottom := min(b.y1, headerRows+m.gridRows()-1)
	if top > bottom {
		return
	}
	c.fill(b.x0, top, b.x1, bottom, st)
	if b.y0 >= headerRows {
		c.text(b.x0, b.y0, b.x1+1, title, st)
	}
	if y := b.y0 + 1; y >= headerRows && y <= bottom {
		c.text(b.x0, y, b.x1+1, timegrid.FormatClock(start)+"-"+timegrid.FormatClock(end), st)
	}
}

func (m *Model) drawComposer(c *canvas, cv calendar.ComposerView) {
	x0, y0 := int(cv.X), int(cv.Y)
	x1, y1 := x0+composerWidth-1, y0+composerHeight-1
	c.fill(x0, y0, x1, y1, styleComposer)
	limit := x1
	c.text(x0+1, y0, limit, "New event", styleComposer)
	if sel := cv.Selection; sel != nil {
		when := sel.StartDate + " " + timegrid.FormatClock(sel.StartMinutes) + " - " + timegrid.FormatClock(sel.EndMinutes)
		if sel.EndDate != sel.StartDate {
			when = sel.StartDate + " " + timegrid.FormatClock(sel.StartMinutes) + " - " + sel.EndDate[5:] + " " + timegrid.FormatClock(sel.EndMinutes)
		}
		c.text(x0+1, y0+1, limit, when, styleComposer)
	}
	c.text(x0+1, y0+3, limit, "Title: "+string(m.input)+"_", styleComposer)
	c.text(x0+1, y0+5, limit, "enter save · esc cancel", styleComposer)
}

func (m *Model) drawFooter(c *canvas) {
	line := m.status
	if line == "" {
		line = "drag to select · drag events to move · enter: new · [ ] days · q quit"
	}
	c.text(0, c.h-1, c.w, line, styleStatus)
}
