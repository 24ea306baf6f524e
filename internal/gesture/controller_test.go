package gesture_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tripcal/internal/calendar"
	"tripcal/internal/gesture"
	"tripcal/internal/model"
)

type fakePointer struct {
	attached int
	detached int
	h        gesture.PointerHandlers
}

func (f *fakePointer) Attach(h gesture.PointerHandlers) func() {
	f.attached++
	f.h = h
	return func() { f.detached++ }
}

type fakePersister struct {
	mu      sync.Mutex
	created []model.EventDraft
	updated map[string]model.EventTimes
	err     error
}

func (f *fakePersister) CreateEvent(_ context.Context, itineraryID string, d model.EventDraft) (model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return model.Event{}, f.err
	}
	f.created = append(f.created, d)
	return model.Event{
		ID:            "ev-new",
		ItineraryID:   itineraryID,
		Title:         d.Title,
		StartDateTime: d.StartDateTime,
		EndDateTime:   d.EndDateTime,
	}, nil
}

func (f *fakePersister) UpdateEventTimes(_ context.Context, _, eventID string, t model.EventTimes) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.updated == nil {
		f.updated = map[string]model.EventTimes{}
	}
	f.updated[eventID] = t
	return nil
}

type harness struct {
	ctl     *gesture.Controller
	grid    *gesture.Grid
	pointer *fakePointer
	store   *fakePersister

	mu       sync.Mutex
	statuses []gesture.Status
}

// newHarness mounts three 100-unit wide day columns where one unit of height
// is one minute.
func newHarness(t *testing.T, slotMinutes int) *harness {
	t.Helper()
	h := &harness{
		grid:    gesture.NewGrid(60),
		pointer: &fakePointer{},
		store:   &fakePersister{},
	}
	h.ctl = gesture.NewController(context.Background(), gesture.Config{
		Options:     gesture.Options{SlotMinutes: slotMinutes},
		Surface:     h.grid,
		Pointer:     h.pointer,
		Persister:   h.store,
		ItineraryID: "trip-1",
		OnStatus: func(s gesture.Status) {
			h.mu.Lock()
			h.statuses = append(h.statuses, s)
			h.mu.Unlock()
		},
	})
	days := calendar.BuildDays("2024-06-01", "2024-06-03", time.Date(2024, 6, 1, 0, 0, 0, 0, time.Local))
	h.ctl.SetDays(days)
	for i, d := range days {
		h.grid.Mount(gesture.Column{Day: d.ISO, Left: float64(i * 100), Width: 100})
	}
	return h
}

func at(dayIndex int, minutes float64) gesture.Point {
	return gesture.Point{X: float64(dayIndex*100 + 50), Y: minutes}
}

func (h *harness) status(t *testing.T) []gesture.Status {
	t.Helper()
	h.ctl.Wait()
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]gesture.Status(nil), h.statuses...)
}

func TestSelectAndCreateMuseum(t *testing.T) {
	h := newHarness(t, 30)

	if !h.ctl.PressSlot(gesture.Slot{Day: "2024-06-02", Minutes: 600}) {
		t.Fatal("PressSlot rejected a visible cell")
	}
	if h.ctl.State() != gesture.Selecting {
		t.Fatalf("state = %v, want Selecting", h.ctl.State())
	}
	h.pointer.h.OnMove(at(1, 640))
	if sel, ok := h.ctl.DragSelection(); !ok || sel.EndMinutes != 660 {
		t.Errorf("live selection = %+v/%v, want end 660", sel, ok)
	}
	h.pointer.h.OnEnd(at(1, 665))

	sel, ok := h.ctl.Composer()
	want := model.Selection{StartDate: "2024-06-02", StartMinutes: 600, EndDate: "2024-06-02", EndMinutes: 690}
	if !ok || sel != want {
		t.Fatalf("composer selection = %+v/%v, want %+v", sel, ok, want)
	}
	if h.pointer.attached != 1 || h.pointer.detached != 1 {
		t.Errorf("attach/detach = %d/%d, want 1/1", h.pointer.attached, h.pointer.detached)
	}

	if err := h.ctl.Submit("  Museum ", ""); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, ok := h.ctl.Composer(); ok {
		t.Error("composer should close on submit")
	}
	statuses := h.status(t)
	if len(statuses) != 1 || statuses[0].Err != nil || statuses[0].EventID != "ev-new" {
		t.Fatalf("statuses = %+v", statuses)
	}
	if len(h.store.created) != 1 {
		t.Fatalf("created %d events, want 1", len(h.store.created))
	}
	d := h.store.created[0]
	if d.Title != "Museum" || d.StartDateTime != "2024-06-02T10:00" || d.EndDateTime != "2024-06-02T11:30" {
		t.Errorf("draft = %+v", d)
	}

	rm := calendar.Build(calendar.Input{
		StartDate: "2024-06-01",
		EndDate:   "2024-06-03",
		Events:    []model.Event{{ID: "ev-new", StartDateTime: d.StartDateTime, EndDateTime: d.EndDateTime}},
	})
	found := 0
	for _, c := range rm.Columns {
		for _, s := range c.Segments {
			found++
			if c.Day.ISO != "2024-06-02" || s.ColumnCount != 1 {
				t.Errorf("segment on %s with %d columns", c.Day.ISO, s.ColumnCount)
			}
		}
	}
	if found != 1 {
		t.Errorf("segments = %d, want 1", found)
	}
}

func TestSelectBackwardsKeepsPressedCell(t *testing.T) {
	h := newHarness(t, 60)

	h.ctl.PressSlot(gesture.Slot{Day: "2024-06-02", Minutes: 600})
	h.ctl.HoverSlot(gesture.Slot{Day: "2024-06-02", Minutes: 480})
	sel, ok := h.ctl.ReleaseSelection()
	if !ok || sel.StartMinutes != 480 || sel.EndMinutes != 660 {
		t.Errorf("selection = %+v/%v, want [480,660)", sel, ok)
	}
}

func TestSelectAcrossMidnight(t *testing.T) {
	h := newHarness(t, 60)

	h.ctl.PressSlot(gesture.Slot{Day: "2024-06-01", Minutes: 1320})
	h.ctl.HoverSlot(gesture.Slot{Day: "2024-06-02", Minutes: 60})
	h.ctl.ReleaseSelection()

	draft, ok := h.ctl.ComposerDraft()
	if !ok || draft.StartDateTime != "2024-06-01T22:00" || draft.EndDateTime != "2024-06-02T02:00" {
		t.Errorf("draft = %+v/%v", draft, ok)
	}
}

func TestSelectionEndingAtMidnightWritesNextDay(t *testing.T) {
	h := newHarness(t, 60)

	h.ctl.PressSlot(gesture.Slot{Day: "2024-06-03", Minutes: 1380})
	h.ctl.ReleaseSelection()

	sel, _ := h.ctl.Composer()
	if sel.EndDate != "2024-06-03" || sel.EndMinutes != 1440 {
		t.Errorf("selection = %+v, want end 2024-06-03/1440", sel)
	}
	draft, ok := h.ctl.ComposerDraft()
	if !ok || draft.EndDateTime != "2024-06-04T00:00" {
		t.Errorf("draft = %+v/%v", draft, ok)
	}
}

func TestReleaseOutsideGridCommitsLastSelection(t *testing.T) {
	h := newHarness(t, 60)

	h.ctl.PressSlot(gesture.Slot{Day: "2024-06-01", Minutes: 540})
	h.pointer.h.OnMove(at(0, 700))
	h.pointer.h.OnEnd(gesture.Point{X: -500, Y: 10})

	sel, ok := h.ctl.Composer()
	if !ok || sel.StartMinutes != 540 || sel.EndMinutes != 720 {
		t.Errorf("composer = %+v/%v, want [540,720)", sel, ok)
	}
}

func TestActivateSlotOpensSingleCell(t *testing.T) {
	h := newHarness(t, 60)

	sel, ok := h.ctl.ActivateSlot(gesture.Slot{Day: "2024-06-02", Minutes: 615})
	if !ok || sel.StartMinutes != 600 || sel.EndMinutes != 660 {
		t.Errorf("ActivateSlot = %+v/%v, want [600,660)", sel, ok)
	}
	if h.pointer.detached != h.pointer.attached {
		t.Errorf("listeners left attached: %d/%d", h.pointer.attached, h.pointer.detached)
	}
	if _, ok := h.ctl.ActivateSlot(gesture.Slot{Day: "2024-07-01", Minutes: 600}); ok {
		t.Error("ActivateSlot accepted a day outside the trip")
	}
}

func TestNewGestureClosesComposer(t *testing.T) {
	h := newHarness(t, 60)

	h.ctl.ActivateSlot(gesture.Slot{Day: "2024-06-02", Minutes: 600})
	h.ctl.PressSlot(gesture.Slot{Day: "2024-06-03", Minutes: 600})
	if _, ok := h.ctl.Composer(); ok {
		t.Error("composer should close when a new selection starts")
	}
	h.ctl.Cancel()
	if err := h.ctl.Submit("Dinner", ""); !errors.Is(err, gesture.ErrNoComposer) {
		t.Errorf("Submit without composer = %v, want ErrNoComposer", err)
	}
}

func TestSubmitRequiresTitle(t *testing.T) {
	h := newHarness(t, 60)

	h.ctl.ActivateSlot(gesture.Slot{Day: "2024-06-02", Minutes: 600})
	if err := h.ctl.Submit("   ", "notes"); !errors.Is(err, gesture.ErrEmptyTitle) {
		t.Errorf("Submit = %v, want ErrEmptyTitle", err)
	}
	if _, ok := h.ctl.Composer(); !ok {
		t.Error("composer should stay open after a rejected submit")
	}
}

func TestCancelSelectionDetachesOnce(t *testing.T) {
	h := newHarness(t, 60)

	h.ctl.PressSlot(gesture.Slot{Day: "2024-06-02", Minutes: 600})
	stale := h.pointer.h
	stale.OnCancel()
	stale.OnCancel()
	stale.OnEnd(at(1, 700))

	if h.ctl.State() != gesture.Idle {
		t.Errorf("state = %v, want Idle", h.ctl.State())
	}
	if _, ok := h.ctl.Composer(); ok {
		t.Error("cancelled selection opened the composer")
	}
	if h.pointer.detached != 1 {
		t.Errorf("detached %d times, want 1", h.pointer.detached)
	}
}

func museum() model.LayoutSegment {
	return model.LayoutSegment{
		Segment: model.Segment{
			Event:        model.Event{ID: "museum", StartDateTime: "2024-06-02T09:00", EndDateTime: "2024-06-02T10:30"},
			StartMinutes: 540,
			EndMinutes:   630,
			IsStart:      true,
			IsEnd:        true,
		},
		ColumnCount: 1,
	}
}

func TestMoveEventSnapsAndPersists(t *testing.T) {
	h := newHarness(t, 60)

	if !h.ctl.BeginEventDrag(museum(), "2024-06-02", gesture.ModeMove, at(1, 560)) {
		t.Fatal("BeginEventDrag refused a whole-event segment")
	}
	h.pointer.h.OnMove(at(1, 620))
	p := h.ctl.Preview()
	if p == nil || p.StartMinutes != 600 || p.EndMinutes != 690 {
		t.Fatalf("preview = %+v, want [600,690)", p)
	}
	h.pointer.h.OnEnd(at(1, 620))

	statuses := h.status(t)
	if len(statuses) != 1 || statuses[0].Op != "update" || statuses[0].Err != nil {
		t.Fatalf("statuses = %+v", statuses)
	}
	got := h.store.updated["museum"]
	if got.StartDateTime != "2024-06-02T10:00" || got.EndDateTime != "2024-06-02T11:30" {
		t.Errorf("update = %+v", got)
	}
	if h.ctl.Preview() != nil || h.pointer.detached != 1 {
		t.Errorf("drag not cleaned up: preview %v, detached %d", h.ctl.Preview(), h.pointer.detached)
	}
}

func TestMoveEventClampsAtMidnight(t *testing.T) {
	h := newHarness(t, 60)

	h.ctl.BeginEventDrag(museum(), "2024-06-02", gesture.ModeMove, at(1, 540))
	h.pointer.h.OnEnd(at(1, 1500))

	h.ctl.Wait()
	got := h.store.updated["museum"]
	if got.StartDateTime != "2024-06-02T22:30" || got.EndDateTime != "2024-06-03T00:00" {
		t.Errorf("update = %+v, want 22:30 to next-day 00:00", got)
	}
}

func TestResizeEvent(t *testing.T) {
	tests := []struct {
		name       string
		mode       gesture.Mode
		y          float64
		start, end int
	}{
		{"start toward end", gesture.ModeResizeStart, 620, 600, 630},
		{"start past end", gesture.ModeResizeStart, 700, 600, 630},
		{"start earlier", gesture.ModeResizeStart, 470, 480, 630},
		{"end later", gesture.ModeResizeEnd, 700, 540, 690},
		{"end before start", gesture.ModeResizeEnd, 500, 540, 570},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, 60)
			h.ctl.BeginEventDrag(museum(), "2024-06-02", tc.mode, at(1, 540))
			h.pointer.h.OnMove(at(1, tc.y))
			d, ok := h.ctl.Drag()
			if !ok || d.PreviewStart != tc.start || d.PreviewEnd != tc.end {
				t.Errorf("preview = [%d,%d), want [%d,%d)", d.PreviewStart, d.PreviewEnd, tc.start, tc.end)
			}
			h.ctl.Cancel()
		})
	}
}

func TestUnchangedDragWritesNothing(t *testing.T) {
	h := newHarness(t, 60)

	h.ctl.BeginEventDrag(museum(), "2024-06-02", gesture.ModeMove, at(1, 560))
	h.pointer.h.OnMove(at(1, 565))
	h.pointer.h.OnEnd(at(1, 565))

	if n := len(h.status(t)); n != 0 {
		t.Errorf("unchanged drag produced %d writes", n)
	}
}

func TestMoveOffGridEvent(t *testing.T) {
	offGrid := museum()
	offGrid.Event.StartDateTime = "2024-06-02T09:10"
	offGrid.Event.EndDateTime = "2024-06-02T10:10"
	offGrid.StartMinutes, offGrid.EndMinutes = 550, 610

	t.Run("click keeps original", func(t *testing.T) {
		h := newHarness(t, 60)
		h.ctl.BeginEventDrag(offGrid, "2024-06-02", gesture.ModeMove, at(1, 560))
		h.pointer.h.OnMove(at(1, 565))
		h.pointer.h.OnEnd(at(1, 565))
		if n := len(h.status(t)); n != 0 {
			t.Errorf("click on off-grid event produced %d writes", n)
		}
	})

	t.Run("move lands on grid", func(t *testing.T) {
		h := newHarness(t, 60)
		h.ctl.BeginEventDrag(offGrid, "2024-06-02", gesture.ModeMove, at(1, 560))
		h.pointer.h.OnMove(at(1, 590))
		d, ok := h.ctl.Drag()
		if !ok || d.PreviewStart != 570 || d.PreviewEnd != 630 {
			t.Errorf("preview = [%d,%d), want [570,630)", d.PreviewStart, d.PreviewEnd)
		}
		h.ctl.Cancel()
	})
}

func TestPartialSegmentIsNotDraggable(t *testing.T) {
	h := newHarness(t, 60)

	seg := museum()
	seg.IsEnd = false
	if h.ctl.BeginEventDrag(seg, "2024-06-02", gesture.ModeMove, at(1, 560)) {
		t.Error("segment continuing into the next day started a drag")
	}
	if h.pointer.attached != 0 {
		t.Errorf("attached %d listeners", h.pointer.attached)
	}
}

func TestDragCancelledWhenColumnDisappears(t *testing.T) {
	h := newHarness(t, 60)

	h.ctl.BeginEventDrag(museum(), "2024-06-02", gesture.ModeResizeEnd, at(1, 630))
	h.grid.Unmount("2024-06-02")
	h.pointer.h.OnMove(at(1, 700))

	if h.ctl.State() != gesture.Idle {
		t.Errorf("state = %v, want Idle", h.ctl.State())
	}
	if h.pointer.detached != 1 {
		t.Errorf("detached %d times, want 1", h.pointer.detached)
	}
	if n := len(h.status(t)); n != 0 {
		t.Errorf("vanished drag produced %d writes", n)
	}
}

func TestSelectionCancelledWhenColumnDisappears(t *testing.T) {
	h := newHarness(t, 60)

	h.ctl.PressSlot(gesture.Slot{Day: "2024-06-02", Minutes: 600})
	h.grid.Unmount("2024-06-02")
	h.pointer.h.OnMove(at(1, 700))
	h.pointer.h.OnEnd(at(1, 700))

	if h.ctl.State() != gesture.Idle {
		t.Errorf("state = %v, want Idle", h.ctl.State())
	}
	if sel, ok := h.ctl.Composer(); ok {
		t.Errorf("composer opened for %+v", sel)
	}
	if h.pointer.detached != 1 {
		t.Errorf("detached %d times, want 1", h.pointer.detached)
	}
}

func TestSelectionReleasedAfterColumnDisappearsWritesNothing(t *testing.T) {
	h := newHarness(t, 60)

	h.ctl.PressSlot(gesture.Slot{Day: "2024-06-02", Minutes: 600})
	h.pointer.h.OnMove(at(1, 700))
	h.grid.Unmount("2024-06-02")
	h.pointer.h.OnEnd(gesture.Point{X: -500, Y: 10})

	if _, ok := h.ctl.Composer(); ok {
		t.Error("composer opened after its column was unmounted")
	}
	if err := h.ctl.Submit("Museum", ""); err == nil {
		t.Error("Submit succeeded without an open composer")
	}
	if n := len(h.status(t)); n != 0 {
		t.Errorf("vanished selection produced %d writes", n)
	}
}

func TestFailedWriteReportsStatus(t *testing.T) {
	h := newHarness(t, 60)
	h.store.err = errors.New("backend down")

	h.ctl.BeginEventDrag(museum(), "2024-06-02", gesture.ModeMove, at(1, 540))
	h.pointer.h.OnEnd(at(1, 660))

	statuses := h.status(t)
	if len(statuses) != 1 || statuses[0].Err == nil || statuses[0].EventID != "museum" {
		t.Errorf("statuses = %+v", statuses)
	}
	if h.ctl.State() != gesture.Idle {
		t.Errorf("state = %v after failed write", h.ctl.State())
	}
}

func TestSetDaysDropsStaleGesture(t *testing.T) {
	h := newHarness(t, 60)

	h.ctl.PressSlot(gesture.Slot{Day: "2024-06-03", Minutes: 600})
	h.ctl.SetDays(calendar.BuildDays("2024-06-01", "2024-06-02", time.Now()))
	if h.ctl.State() != gesture.Idle || h.pointer.detached != 1 {
		t.Errorf("state = %v, detached = %d", h.ctl.State(), h.pointer.detached)
	}
}
