// Package gesture tracks pointer gestures on the calendar grid: drag-to-select
// for new events and move/resize of existing ones.
//
// A Controller is driven from a single UI loop. Only the persistence calls it
// issues at the end of a gesture run in their own goroutines; their outcome
// is reported through the status callback.
package gesture

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"

	appLog "tripcal/internal/log"

	"tripcal/internal/calendar"
	"tripcal/internal/model"
	"tripcal/internal/timegrid"
)

// Mode is the kind of existing-event drag.
type Mode string

const (
	ModeMove        Mode = "move"
	ModeResizeStart Mode = "resize-start"
	ModeResizeEnd   Mode = "resize-end"
)

// State is the controller's current gesture.
type State int

const (
	Idle State = iota
	Selecting
	Dragging
)

var (
	ErrNoComposer = errors.New("gesture: composer is not open")
	ErrEmptyTitle = errors.New("gesture: title is required")
)

// Persister is the subset of the store a gesture writes to.
type Persister interface {
	CreateEvent(ctx context.Context, itineraryID string, d model.EventDraft) (model.Event, error)
	UpdateEventTimes(ctx context.Context, itineraryID, eventID string, t model.EventTimes) error
}

// Status is the outcome of a write started by a gesture.
type Status struct {
	Op      string // "create" or "update"
	EventID string
	Err     error
}

// Options tunes the grid math. Zero values fall back to defaults.
type Options struct {
	// SlotMinutes is the length of one selectable grid cell.
	SlotMinutes int
	// SnapMinutes is the rounding step of event drags.
	SnapMinutes int
	// MinDuration is the shortest range a gesture can produce.
	MinDuration int
}

func (o *Options) normalize() {
	if o.SlotMinutes <= 0 || o.SlotMinutes > timegrid.MinutesPerDay {
		o.SlotMinutes = 60
	}
	if o.SnapMinutes <= 0 {
		o.SnapMinutes = timegrid.DefaultStep
	}
	if o.MinDuration <= 0 {
		o.MinDuration = timegrid.MinEventDuration
	}
}

// EventDrag is the working state of one move/resize gesture.
type EventDrag struct {
	EventID       string
	Day           string
	Mode          Mode
	OriginalStart int
	OriginalEnd   int
	PreviewStart  int
	PreviewEnd    int
	// AnchorOffset is how far below the event's top edge the pointer
	// grabbed it, in minutes; only used by ModeMove.
	AnchorOffset float64
}

// Changed reports whether the preview differs from where the event started.
func (d EventDrag) Changed() bool {
	return d.PreviewStart != d.OriginalStart || d.PreviewEnd != d.OriginalEnd
}

type selectionDrag struct {
	anchor Slot
	cursor Slot
}

// Controller is the selection/drag state machine.
type Controller struct {
	opts        Options
	surface     Surface
	pointer     PointerSource
	persist     Persister
	itineraryID string
	onStatus    func(Status)

	ctx context.Context
	wg  sync.WaitGroup

	idx       timegrid.DayIndex
	selection *selectionDrag
	drag      *EventDrag
	composer  *model.Selection

	// gen identifies the current pointer session; callbacks from an older
	// session are ignored.
	gen    uint64
	detach func()
}

// Config wires a Controller to its collaborators.
type Config struct {
	Options     Options
	Surface     Surface
	Pointer     PointerSource
	Persister   Persister
	ItineraryID string
	// OnStatus is called from the persistence goroutine.
	OnStatus func(Status)
}

// NewController creates an idle controller. ctx bounds persistence calls.
func NewController(ctx context.Context, cfg Config) *Controller {
	cfg.Options.normalize()
	if ctx == nil {
		ctx = context.Background()
	}
	return &Controller{
		opts:        cfg.Options,
		surface:     cfg.Surface,
		pointer:     cfg.Pointer,
		persist:     cfg.Persister,
		itineraryID: cfg.ItineraryID,
		onStatus:    cfg.OnStatus,
		ctx:         ctx,
	}
}

// SetDays updates the visible day range. A gesture or composer whose day
// disappeared is discarded.
func (c *Controller) SetDays(days []model.CalendarDay) {
	c.idx = timegrid.IndexCalendar(days)
	if c.selection != nil {
		if _, ok := c.idx.IndexOf(c.selection.anchor.Day); !ok {
			c.Cancel()
		}
	}
	if c.drag != nil {
		if _, ok := c.idx.IndexOf(c.drag.Day); !ok {
			c.Cancel()
		}
	}
	if c.composer != nil {
		if _, _, ok := SelectionBounds(c.idx, *c.composer); !ok {
			c.composer = nil
		}
	}
}

// State returns the active gesture kind.
func (c *Controller) State() State {
	switch {
	case c.selection != nil:
		return Selecting
	case c.drag != nil:
		return Dragging
	default:
		return Idle
	}
}

// Cancel aborts any gesture without side effects.
func (c *Controller) Cancel() {
	if c.selection != nil || c.drag != nil {
		appLog.Debug("gesture cancelled", "state", c.State())
	}
	c.selection = nil
	c.drag = nil
	c.endSession()
}

func (c *Controller) startSession() uint64 {
	c.endSession()
	c.gen++
	gen := c.gen
	if c.pointer == nil {
		return gen
	}
	c.detach = c.pointer.Attach(PointerHandlers{
		OnMove: func(p Point) {
			if gen == c.gen {
				c.pointerMove(p)
			}
		},
		OnEnd: func(p Point) {
			if gen == c.gen {
				c.pointerEnd(p)
			}
		},
		OnCancel: func() {
			if gen == c.gen {
				c.Cancel()
			}
		},
	})
	return gen
}

// endSession detaches the global listeners at most once per session.
func (c *Controller) endSession() {
	c.gen++
	if c.detach != nil {
		d := c.detach
		c.detach = nil
		d()
	}
}

func (c *Controller) pointerMove(p Point) {
	switch {
	case c.selection != nil:
		if c.anchorUnmounted(p) {
			c.Cancel()
			return
		}
		if slot, ok := c.slotAt(p); ok {
			c.HoverSlot(slot)
		}
	case c.drag != nil:
		c.dragTo(p)
	}
}

func (c *Controller) pointerEnd(p Point) {
	switch {
	case c.selection != nil:
		if c.anchorUnmounted(p) {
			c.Cancel()
			return
		}
		if slot, ok := c.slotAt(p); ok {
			c.HoverSlot(slot)
		}
		c.ReleaseSelection()
	case c.drag != nil:
		if !c.dragTo(p) {
			return
		}
		c.finishDrag()
	default:
		c.endSession()
	}
}

// anchorUnmounted reports whether the column the selection started in is
// no longer rendered. A release elsewhere still commits while it is.
func (c *Controller) anchorUnmounted(p Point) bool {
	if c.surface == nil {
		return false
	}
	_, ok := c.surface.MinutesAt(c.selection.anchor.Day, p)
	return !ok
}

// slotAt resolves the grid cell under p.
func (c *Controller) slotAt(p Point) (Slot, bool) {
	if c.surface == nil {
		return Slot{}, false
	}
	day, ok := c.surface.DayAt(p)
	if !ok {
		return Slot{}, false
	}
	raw, ok := c.surface.MinutesAt(day, p)
	if !ok {
		return Slot{}, false
	}
	return Slot{Day: day, Minutes: c.cellStart(int(math.Floor(raw)))}, true
}

func (c *Controller) cellStart(minutes int) int {
	step := c.opts.SlotMinutes
	minutes = timegrid.Clamp(minutes, 0, timegrid.MinutesPerDay-step)
	return minutes / step * step
}

// PressSlot starts a selection drag on a grid cell. Any other gesture and
// an open composer are discarded.
func (c *Controller) PressSlot(slot Slot) bool {
	if _, ok := c.idx.IndexOf(slot.Day); !ok {
		return false
	}
	c.Cancel()
	c.composer = nil

	start := c.cellStart(slot.Minutes)
	c.selection = &selectionDrag{
		anchor: Slot{Day: slot.Day, Minutes: start},
		cursor: Slot{Day: slot.Day, Minutes: start + c.opts.SlotMinutes},
	}
	c.startSession()
	return true
}

// HoverSlot moves the selection cursor onto another cell. Moving forward
// extends the selection to the end of the hovered cell; moving backward
// extends it to the start of the hovered cell.
func (c *Controller) HoverSlot(slot Slot) {
	if c.selection == nil {
		return
	}
	start := c.cellStart(slot.Minutes)
	a, ok := c.idx.Absolute(c.selection.anchor.Day, c.selection.anchor.Minutes)
	if !ok {
		c.Cancel()
		return
	}
	h, ok := c.idx.Absolute(slot.Day, start)
	if !ok {
		return
	}
	if h >= a {
		c.selection.cursor = Slot{Day: slot.Day, Minutes: start + c.opts.SlotMinutes}
	} else {
		c.selection.cursor = Slot{Day: slot.Day, Minutes: start}
	}
}

// DragSelection is the live, normalized selection while selecting.
func (c *Controller) DragSelection() (model.Selection, bool) {
	if c.selection == nil {
		return model.Selection{}, false
	}
	return c.normalized(*c.selection)
}

func (c *Controller) normalized(s selectionDrag) (model.Selection, bool) {
	anchor := s.anchor
	if a, ok := c.idx.Absolute(anchor.Day, anchor.Minutes); ok {
		if cur, ok := c.idx.Absolute(s.cursor.Day, s.cursor.Minutes); ok && cur < a {
			// Dragging upwards keeps the pressed cell selected.
			anchor.Minutes += c.opts.SlotMinutes
		}
	}
	return NormalizeSelection(c.idx, anchor, s.cursor, c.opts.MinDuration)
}

// ReleaseSelection commits the selection and opens the composer.
func (c *Controller) ReleaseSelection() (model.Selection, bool) {
	if c.selection == nil {
		return model.Selection{}, false
	}
	sel, ok := c.normalized(*c.selection)
	c.selection = nil
	c.endSession()
	if !ok {
		return model.Selection{}, false
	}
	c.composer = &sel
	return sel, true
}

// ActivateSlot is the keyboard path (Enter/Space on a focused cell): it
// opens the composer for that single cell.
func (c *Controller) ActivateSlot(slot Slot) (model.Selection, bool) {
	if !c.PressSlot(slot) {
		return model.Selection{}, false
	}
	return c.ReleaseSelection()
}

// Composer returns the selection the composer was opened for.
func (c *Controller) Composer() (model.Selection, bool) {
	if c.composer == nil {
		return model.Selection{}, false
	}
	return *c.composer, true
}

// CloseComposer dismisses the composer without creating anything.
func (c *Controller) CloseComposer() {
	c.composer = nil
}

// ComposerDraft is the create request pre-filled from the composer's
// selection. A selection ending at 24:00 is written as 00:00 of the next day.
func (c *Controller) ComposerDraft() (model.EventDraft, bool) {
	if c.composer == nil {
		return model.EventDraft{}, false
	}
	return DraftFromSelection(*c.composer)
}

// DraftFromSelection converts a selection to local date-time strings.
func DraftFromSelection(sel model.Selection) (model.EventDraft, bool) {
	start, ok := timegrid.FormatLocal(sel.StartDate, sel.StartMinutes)
	if !ok {
		return model.EventDraft{}, false
	}
	end, ok := timegrid.FormatLocal(sel.EndDate, sel.EndMinutes)
	if !ok {
		return model.EventDraft{}, false
	}
	return model.EventDraft{StartDateTime: start, EndDateTime: end}, true
}

// Submit closes the composer and creates the event in the background.
func (c *Controller) Submit(title, description string) error {
	draft, ok := c.ComposerDraft()
	if !ok {
		return ErrNoComposer
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}
	draft.Title = title
	draft.Description = strings.TrimSpace(description)
	c.composer = nil

	c.background("create", "", func(ctx context.Context) (string, error) {
		ev, err := c.persist.CreateEvent(ctx, c.itineraryID, draft)
		return ev.ID, err
	})
	return nil
}

// BeginEventDrag starts a move or resize of a laid-out segment. Segments
// that continue from or into another day cannot be dragged.
func (c *Controller) BeginEventDrag(seg model.LayoutSegment, day string, mode Mode, p Point) bool {
	if !seg.IsStart || !seg.IsEnd {
		return false
	}
	switch mode {
	case ModeMove, ModeResizeStart, ModeResizeEnd:
	default:
		return false
	}
	if _, ok := c.idx.IndexOf(day); !ok || c.surface == nil {
		return false
	}
	raw, ok := c.surface.MinutesAt(day, p)
	if !ok {
		return false
	}

	c.Cancel()
	c.composer = nil

	d := &EventDrag{
		EventID:       seg.Event.ID,
		Day:           day,
		Mode:          mode,
		OriginalStart: seg.StartMinutes,
		OriginalEnd:   seg.EndMinutes,
		PreviewStart:  seg.StartMinutes,
		PreviewEnd:    seg.EndMinutes,
	}
	if mode == ModeMove {
		d.AnchorOffset = raw - float64(seg.StartMinutes)
	}
	c.drag = d
	c.startSession()
	return true
}

// dragTo recomputes the preview from a pointer position. It cancels the
// gesture and returns false if the day column is gone.
func (c *Controller) dragTo(p Point) bool {
	d := c.drag
	if d == nil {
		return false
	}
	var raw float64
	ok := false
	if c.surface != nil {
		raw, ok = c.surface.MinutesAt(d.Day, p)
	}
	if !ok {
		appLog.Debug("drag target vanished", "event_id", d.EventID, "day", d.Day)
		c.Cancel()
		return false
	}
	c.applyCandidate(raw)
	return true
}

func (c *Controller) applyCandidate(raw float64) {
	d := c.drag
	minDur := c.opts.MinDuration
	switch d.Mode {
	case ModeMove:
		// The new top edge snaps to the grid; within half a step of the
		// original start the event stays put, even when it starts off-grid.
		top := raw - d.AnchorOffset
		if math.Abs(top-float64(d.OriginalStart)) < float64(c.opts.SnapMinutes)/2 {
			d.PreviewStart, d.PreviewEnd = d.OriginalStart, d.OriginalEnd
			return
		}
		snapped := timegrid.ClampMinutes(timegrid.RoundFloatToStep(top, c.opts.SnapMinutes))
		d.PreviewStart, d.PreviewEnd = ShiftRange(d.OriginalStart, d.OriginalEnd, snapped-d.OriginalStart)
	case ModeResizeStart:
		cand := timegrid.RoundFloatToStep(raw, c.opts.SnapMinutes)
		d.PreviewStart, d.PreviewEnd = ResizeStart(d.OriginalStart, d.OriginalEnd, cand, minDur)
	case ModeResizeEnd:
		cand := timegrid.RoundFloatToStep(raw, c.opts.SnapMinutes)
		d.PreviewStart, d.PreviewEnd = ResizeEnd(d.OriginalStart, d.OriginalEnd, cand, minDur)
	}
}

// Drag returns the working state of the current event drag.
func (c *Controller) Drag() (EventDrag, bool) {
	if c.drag == nil {
		return EventDrag{}, false
	}
	return *c.drag, true
}

// Preview is the drag state in render-model form.
func (c *Controller) Preview() *calendar.Preview {
	if c.drag == nil {
		return nil
	}
	return &calendar.Preview{
		EventID:      c.drag.EventID,
		Day:          c.drag.Day,
		Mode:         string(c.drag.Mode),
		StartMinutes: c.drag.PreviewStart,
		EndMinutes:   c.drag.PreviewEnd,
	}
}

// finishDrag ends the drag and, if the event moved, writes the new times.
func (c *Controller) finishDrag() {
	d := *c.drag
	c.drag = nil
	c.endSession()

	if !d.Changed() {
		return
	}
	start, ok := timegrid.FormatLocal(d.Day, d.PreviewStart)
	if !ok {
		return
	}
	end, ok := timegrid.FormatLocal(d.Day, d.PreviewEnd)
	if !ok {
		return
	}
	times := model.EventTimes{StartDateTime: start, EndDateTime: end}
	c.background("update", d.EventID, func(ctx context.Context) (string, error) {
		return d.EventID, c.persist.UpdateEventTimes(ctx, c.itineraryID, d.EventID, times)
	})
}

// background runs a write without blocking the UI loop.
func (c *Controller) background(op, eventID string, fn func(ctx context.Context) (string, error)) {
	if c.persist == nil {
		c.report(Status{Op: op, EventID: eventID, Err: errors.New("gesture: no persister configured")})
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		id, err := fn(c.ctx)
		if id == "" {
			id = eventID
		}
		if err != nil {
			appLog.Error("gesture write failed", err, "op", op, "event_id", id, "itinerary_id", c.itineraryID)
		} else {
			appLog.Info("gesture write done", "op", op, "event_id", id, "itinerary_id", c.itineraryID)
		}
		c.report(Status{Op: op, EventID: id, Err: err})
	}()
}

func (c *Controller) report(s Status) {
	if c.onStatus != nil {
		c.onStatus(s)
	}
}

// Wait blocks until every background write has reported.
func (c *Controller) Wait() {
	c.wg.Wait()
}
