// Package tui is a terminal calendar for one itinerary. Each day is a
// column and each terminal row is one grid slot; mouse gestures select
// time ranges and move or resize events.
package tui

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"tripcal/internal/calendar"
	"tripcal/internal/composer"
	"tripcal/internal/config"
	"tripcal/internal/gesture"
	appLog "tripcal/internal/log"
	"tripcal/internal/model"
	"tripcal/internal/timegrid"
)

// Store is what the terminal calendar reads from and writes to.
type Store interface {
	gesture.Persister
	WatchEvents(ctx context.Context, itineraryID string) (<-chan []model.Event, error)
}

const (
	headerRows     = 2
	footerRows     = 1
	gutterCols     = 6
	minColWidth    = 14
	composerWidth  = 34
	composerHeight = 6
)

type eventsMsg []model.Event

type streamClosedMsg struct{}

type statusMsg gesture.Status

// Model is the bubbletea model.
type Model struct {
	ctx      context.Context
	it       model.Itinerary
	cal      config.CalendarConfig
	now      func() time.Time
	stream   <-chan []model.Event
	statusCh chan gesture.Status

	ctrl    *gesture.Controller
	grid    *gesture.Grid
	pointer *mousePointer
	placer  composer.Placer

	events     []model.Event
	days       []model.CalendarDay
	width      int
	height     int
	scrollRow  int
	firstDay   int
	focus      gesture.Slot
	input      []rune
	status     string
	composerAt composer.Point
}

// New subscribes to the itinerary's events and prepares an idle calendar.
func New(ctx context.Context, st Store, it model.Itinerary, cal config.CalendarConfig) (*Model, error) {
	stream, err := st.WatchEvents(ctx, it.ID)
	if err != nil {
		return nil, fmt.Errorf("tui: watch events: %w", err)
	}
	m := &Model{
		ctx:      ctx,
		it:       it,
		cal:      cal,
		now:      time.Now,
		stream:   stream,
		statusCh: make(chan gesture.Status, 16),
		pointer:  &mousePointer{},
		width:    80,
		height:   24,
	}
	m.grid = gesture.NewGrid(float64(m.rowsPerHour()))
	m.ctrl = gesture.NewController(ctx, gesture.Config{
		Options: gesture.Options{
			SlotMinutes: cal.SlotMinutes,
			SnapMinutes: cal.SnapMinutes,
			MinDuration: cal.MinEventMinutes,
		},
		Surface:     m.grid,
		Pointer:     m.pointer,
		Persister:   st,
		ItineraryID: it.ID,
		OnStatus:    m.pushStatus,
	})

	m.days = calendar.BuildDays(it.StartDate, it.EndDate, m.now())
	if len(m.days) > 0 {
		m.focus = gesture.Slot{Day: m.days[0].ISO, Minutes: 9 * 60}
	}
	m.scrollRow = 8 * m.rowsPerHour()
	m.layout()
	return m, nil
}

// pushStatus runs on the controller's write goroutine.
func (m *Model) pushStatus(s gesture.Status) {
	select {
	case m.statusCh <- s:
	default:
		appLog.Error("tui status dropped", errors.New("status buffer full"), "op", s.Op, "event_id", s.EventID)
	}
}

// Wait blocks until writes started from the calendar have finished.
func (m *Model) Wait() { m.ctrl.Wait() }

func (m *Model) slotMinutes() int {
	if m.cal.SlotMinutes <= 0 || m.cal.SlotMinutes > 60 {
		return 60
	}
	return m.cal.SlotMinutes
}

func (m *Model) rowsPerHour() int { return max(60/m.slotMinutes(), 1) }

func (m *Model) totalRows() int { return 24 * m.rowsPerHour() }

func (m *Model) gridRows() int { return max(m.height-headerRows-footerRows, 1) }

func (m *Model) visibleDays() []model.CalendarDay {
	if len(m.days) == 0 {
		return nil
	}
	n := max((m.width-gutterCols)/minColWidth, 1)
	end := min(m.firstDay+n, len(m.days))
	return m.days[m.firstDay:end]
}

func (m *Model) colWidth() int {
	n := max(len(m.visibleDays()), 1)
	return max((m.width-gutterCols)/n, 2)
}

// layout clamps scrolling and re-mounts the visible day columns.
func (m *Model) layout() {
	m.firstDay = timegrid.Clamp(m.firstDay, 0, max(len(m.days)-1, 0))
	m.scrollRow = timegrid.Clamp(m.scrollRow, 0, max(m.totalRows()-m.gridRows(), 0))

	visible := m.visibleDays()
	w := m.colWidth()
	m.grid.Reset()
	for i, d := range visible {
		m.grid.Mount(gesture.Column{
			Day:   d.ISO,
			Left:  float64(gutterCols + i*w),
			Top:   float64(headerRows - m.scrollRow),
			Width: float64(w),
		})
	}
	m.ctrl.SetDays(visible)
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(waitForEvents(m.stream), waitForStatus(m.ctx, m.statusCh))
}

func waitForEvents(ch <-chan []model.Event) tea.Cmd {
	return func() tea.Msg {
		events, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return eventsMsg(events)
	}
}

func waitForStatus(ctx context.Context, ch <-chan gesture.Status) tea.Cmd {
	return func() tea.Msg {
		select {
		case s := <-ch:
			return statusMsg(s)
		case <-ctx.Done():
			return nil
		}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
	case eventsMsg:
		m.events = msg
		cmd = waitForEvents(m.stream)
	case streamClosedMsg:
		m.status = "event stream closed"
	case statusMsg:
		m.status = describeStatus(gesture.Status(msg))
		cmd = waitForStatus(m.ctx, m.statusCh)
	case tea.MouseMsg:
		m.handleMouse(msg)
	case tea.KeyMsg:
		cmd = m.handleKey(msg)
	}
	m.placeComposer()
	return m, cmd
}

func describeStatus(s gesture.Status) string {
	verb := "saved"
	switch s.Op {
	case "create":
		verb = "created"
	case "update":
		verb = "moved"
	}
	if s.Err != nil {
		return fmt.Sprintf("%s failed: %v", s.Op, s.Err)
	}
	return "event " + verb
}

// pointAt converts a mouse cell to grid space. The bottom edge of an event
// is the row below its last cell, so resize-end gestures read one row down.
func (m *Model) pointAt(x, y int) gesture.Point {
	p := gesture.Point{X: float64(x), Y: float64(y)}
	if d, ok := m.ctrl.Drag(); ok && d.Mode == gesture.ModeResizeEnd {
		p.Y++
	}
	return p
}

func (m *Model) inGrid(y int) bool {
	return y >= headerRows && y < headerRows+m.gridRows()
}

func (m *Model) slotAt(x, y int) (gesture.Slot, bool) {
	if !m.inGrid(y) {
		return gesture.Slot{}, false
	}
	p := gesture.Point{X: float64(x), Y: float64(y)}
	day, ok := m.grid.DayAt(p)
	if !ok {
		return gesture.Slot{}, false
	}
	raw, ok := m.grid.MinutesAt(day, p)
	if !ok || raw < 0 || raw >= timegrid.MinutesPerDay {
		return gesture.Slot{}, false
	}
	return gesture.Slot{Day: day, Minutes: int(raw)}, true
}

func (m *Model) handleMouse(msg tea.MouseMsg) {
	switch msg.Action {
	case tea.MouseActionPress:
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			m.scroll(-1)
			return
		case tea.MouseButtonWheelDown:
			m.scroll(1)
			return
		case tea.MouseButtonLeft:
		default:
			return
		}
		if m.pointer.active() {
			m.pointer.cancel()
		}
		if !m.inGrid(msg.Y) {
			return
		}
		if b, ok := m.blockAt(msg.X, msg.Y); ok {
			mode := b.modeAt(msg.Y)
			p := gesture.Point{X: float64(msg.X), Y: float64(msg.Y)}
			if mode == gesture.ModeResizeEnd {
				p.Y++
			}
			if m.ctrl.BeginEventDrag(b.seg, b.day, mode, p) {
				m.input = nil
				return
			}
			if !b.seg.IsStart || !b.seg.IsEnd {
				m.status = "events spanning days cannot be dragged"
				return
			}
		}
		if slot, ok := m.slotAt(msg.X, msg.Y); ok && m.ctrl.PressSlot(slot) {
			m.focus = slot
			m.input = nil
		}
	case tea.MouseActionMotion:
		m.pointer.move(m.pointAt(msg.X, msg.Y))
	case tea.MouseActionRelease:
		m.pointer.end(m.pointAt(msg.X, msg.Y))
	}
}

func (m *Model) scroll(rows int) {
	m.scrollRow += rows
	m.layout()
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if _, open := m.ctrl.Composer(); open {
		switch msg.Type {
		case tea.KeyCtrlC:
			return tea.Quit
		case tea.KeyEsc:
			m.ctrl.CloseComposer()
			m.input = nil
		case tea.KeyEnter:
			if err := m.ctrl.Submit(string(m.input), ""); err != nil {
				m.status = err.Error()
				return nil
			}
			m.input = nil
			m.status = "saving…"
		case tea.KeyBackspace:
			if len(m.input) > 0 {
				m.input = m.input[:len(m.input)-1]
			}
		case tea.KeySpace:
			m.input = append(m.input, ' ')
		case tea.KeyRunes:
			m.input = append(m.input, msg.Runes...)
		}
		return nil
	}

	switch msg.String() {
	case "ctrl+c", "q":
		m.ctrl.Cancel()
		return tea.Quit
	case "esc":
		m.ctrl.Cancel()
	case "up", "k":
		m.moveFocus(0, -1)
	case "down", "j":
		m.moveFocus(0, 1)
	case "left", "h":
		m.moveFocus(-1, 0)
	case "right", "l":
		m.moveFocus(1, 0)
	case "pgup":
		m.scroll(-m.gridRows())
	case "pgdown":
		m.scroll(m.gridRows())
	case "[":
		m.firstDay--
		m.layout()
	case "]":
		m.firstDay++
		m.layout()
	case "enter", " ":
		if _, ok := m.ctrl.ActivateSlot(m.focus); ok {
			m.input = nil
		}
	}
	return nil
}

// moveFocus moves the keyboard cell and scrolls it into view.
func (m *Model) moveFocus(dDay, dRow int) {
	if len(m.days) == 0 {
		return
	}
	di := 0
	for i, d := range m.days {
		if d.ISO == m.focus.Day {
			di = i
			break
		}
	}
	di = timegrid.Clamp(di+dDay, 0, len(m.days)-1)
	row := timegrid.Clamp(m.focus.Minutes/m.slotMinutes()+dRow, 0, m.totalRows()-1)
	m.focus = gesture.Slot{Day: m.days[di].ISO, Minutes: row * m.slotMinutes()}

	visible := len(m.visibleDays())
	switch {
	case di < m.firstDay:
		m.firstDay = di
	case di >= m.firstDay+visible:
		m.firstDay = di - visible + 1
	}
	switch {
	case row < m.scrollRow:
		m.scrollRow = row
	case row >= m.scrollRow+m.gridRows():
		m.scrollRow = row - m.gridRows() + 1
	}
	m.layout()
}

// renderModel derives what is on screen now.
func (m *Model) renderModel() calendar.RenderModel {
	in := calendar.Input{
		StartDate: m.it.StartDate,
		EndDate:   m.it.EndDate,
		Events:    m.events,
		Now:       m.now(),
		Preview:   m.ctrl.Preview(),
	}
	if sel, ok := m.ctrl.DragSelection(); ok {
		in.Selection = &sel
	} else if sel, ok := m.ctrl.Composer(); ok {
		in.Selection = &sel
		in.Composer = &calendar.ComposerView{Visible: true, Selection: &sel, X: m.composerAt.X, Y: m.composerAt.Y}
	}
	return calendar.Build(in)
}

// geometry is the screen box of every visible day column.
func (m *Model) geometry() composer.Geometry {
	g := composer.Geometry{Columns: map[string]composer.Rect{}, SlotHeight: float64(m.rowsPerHour())}
	w := m.colWidth()
	for i, d := range m.visibleDays() {
		g.Columns[d.ISO] = composer.Rect{
			X:      float64(gutterCols + i*w),
			Y:      float64(headerRows - m.scrollRow),
			Width:  float64(w),
			Height: float64(m.totalRows()),
		}
	}
	return g
}

func (m *Model) gridBounds() composer.Rect {
	return composer.Rect{
		X:      gutterCols,
		Y:      headerRows,
		Width:  float64(max(m.width-gutterCols, 0)),
		Height: float64(m.gridRows()),
	}
}

// composerGutter converts the configured pixel gutter to rows at the same
// scale as SlotHeightPx.
func (m *Model) composerGutter() float64 {
	if m.cal.SlotHeightPx <= 0 || m.cal.ComposerGutterPx <= 0 {
		return 0
	}
	return math.Round(m.cal.ComposerGutterPx / m.cal.SlotHeightPx * float64(m.rowsPerHour()))
}

// placeComposer keeps the floating composer next to its selection.
func (m *Model) placeComposer() {
	sel, ok := m.ctrl.Composer()
	if !ok {
		m.placer.Reset()
		return
	}
	anchor, ok := m.geometry().AnchorFor(sel)
	if !ok {
		return
	}
	p, _ := m.placer.Update(composer.Input{
		Anchor: anchor,
		Bounds: m.gridBounds(),
		Width:  composerWidth,
		Height: composerHeight,
		Gutter: m.composerGutter(),
	})
	m.composerAt = p
}
