package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"tripcal/internal/model"
	"tripcal/internal/store"
)

func openStore(t *testing.T, opts ...store.Option) (*store.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db", "tripcal.db")
	s, err := store.Open(path, opts...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, path
}

func newTrip(t *testing.T, s *store.Store) model.Itinerary {
	t.Helper()
	it, err := s.CreateItinerary(context.Background(), "Lisbon", "2024-06-01", "2024-06-03")
	if err != nil {
		t.Fatalf("CreateItinerary: %v", err)
	}
	return it
}

func TestOpenIsIdempotent(t *testing.T) {
	s, path := openStore(t)
	it := newTrip(t, s)
	s.Close()

	again, err := store.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer again.Close()
	got, err := again.GetItinerary(context.Background(), it.ID)
	if err != nil || got.Title != "Lisbon" {
		t.Errorf("GetItinerary after reopen = %+v, %v", got, err)
	}
}

func TestItineraries(t *testing.T) {
	ctx := context.Background()
	s, _ := openStore(t)

	it := newTrip(t, s)
	if it.ID == "" || it.CreatedAt.IsZero() {
		t.Fatalf("created itinerary = %+v", it)
	}

	start, end, err := s.TripDateRange(ctx, it.ID)
	if err != nil || start != "2024-06-01" || end != "2024-06-03" {
		t.Errorf("TripDateRange = %q %q %v", start, end, err)
	}

	if err := s.UpdateItineraryDates(ctx, it.ID, "2024-06-02", "2024-06-05"); err != nil {
		t.Fatalf("UpdateItineraryDates: %v", err)
	}
	got, _ := s.GetItinerary(ctx, it.ID)
	if got.StartDate != "2024-06-02" || got.EndDate != "2024-06-05" {
		t.Errorf("dates after update = %s..%s", got.StartDate, got.EndDate)
	}

	if _, err := s.CreateItinerary(ctx, "Unscheduled", "", ""); err != nil {
		t.Errorf("trip without dates: %v", err)
	}
	list, err := s.ListItineraries(ctx)
	if err != nil || len(list) != 2 {
		t.Errorf("ListItineraries = %d, %v", len(list), err)
	}

	tests := []struct {
		name       string
		start, end string
	}{
		{"inverted", "2024-06-03", "2024-06-01"},
		{"half set", "2024-06-03", ""},
		{"garbage", "June 1st", "2024-06-03"},
	}
	for _, tc := range tests {
		if _, err := s.CreateItinerary(ctx, "bad", tc.start, tc.end); !errors.Is(err, store.ErrInvalidRange) {
			t.Errorf("%s: CreateItinerary err = %v, want ErrInvalidRange", tc.name, err)
		}
	}

	if _, err := s.GetItinerary(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetItinerary(missing) = %v", err)
	}
	if err := s.UpdateItineraryDates(ctx, "missing", "2024-01-01", "2024-01-02"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("UpdateItineraryDates(missing) = %v", err)
	}
}

func TestEventLifecycle(t *testing.T) {
	ctx := context.Background()
	s, _ := openStore(t)
	it := newTrip(t, s)

	museum, err := s.CreateEvent(ctx, it.ID, model.EventDraft{
		Title:         "Museum",
		StartDateTime: "2024-06-02T10:00",
		EndDateTime:   "2024-06-02T11:30",
	})
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if _, err := s.CreateEvent(ctx, it.ID, model.EventDraft{
		Title:         "Breakfast",
		StartDateTime: "2024-06-02T08:00",
		EndDateTime:   "2024-06-02T09:00",
	}); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	events, err := s.ListEvents(ctx, it.ID)
	if err != nil || len(events) != 2 || events[0].Title != "Breakfast" {
		t.Fatalf("ListEvents = %+v, %v", events, err)
	}

	times := model.EventTimes{StartDateTime: "2024-06-02T22:30", EndDateTime: "2024-06-03T00:00"}
	if err := s.UpdateEventTimes(ctx, it.ID, museum.ID, times); err != nil {
		t.Fatalf("UpdateEventTimes: %v", err)
	}
	events, _ = s.ListEvents(ctx, it.ID)
	if last := events[len(events)-1]; last.ID != museum.ID || last.EndDateTime != "2024-06-03T00:00" {
		t.Errorf("moved event = %+v", last)
	}

	if err := s.DeleteEvent(ctx, it.ID, museum.ID); err != nil {
		t.Fatalf("DeleteEvent: %v", err)
	}
	if err := s.DeleteEvent(ctx, it.ID, museum.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second DeleteEvent = %v, want ErrNotFound", err)
	}
}

func TestEventValidation(t *testing.T) {
	ctx := context.Background()
	s, _ := openStore(t)
	it := newTrip(t, s)

	tests := []struct {
		name       string
		start, end string
	}{
		{"empty range", "2024-06-02T10:00", "2024-06-02T10:00"},
		{"inverted", "2024-06-02T11:00", "2024-06-02T10:00"},
		{"hour 24", "2024-06-02T10:00", "2024-06-02T24:00"},
		{"seconds", "2024-06-02T10:00:00", "2024-06-02T11:00"},
	}
	for _, tc := range tests {
		_, err := s.CreateEvent(ctx, it.ID, model.EventDraft{Title: "x", StartDateTime: tc.start, EndDateTime: tc.end})
		if !errors.Is(err, store.ErrInvalidRange) {
			t.Errorf("%s: CreateEvent err = %v, want ErrInvalidRange", tc.name, err)
		}
	}

	draft := model.EventDraft{Title: "x", StartDateTime: "2024-06-02T10:00", EndDateTime: "2024-06-02T11:00"}
	if _, err := s.CreateEvent(ctx, "missing", draft); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("CreateEvent on unknown itinerary = %v", err)
	}
	if _, err := s.CreateEvent(ctx, it.ID, model.EventDraft{StartDateTime: draft.StartDateTime, EndDateTime: draft.EndDateTime}); err == nil {
		t.Error("CreateEvent accepted an empty title")
	}
	err := s.UpdateEventTimes(ctx, it.ID, "missing", model.EventTimes{StartDateTime: draft.StartDateTime, EndDateTime: draft.EndDateTime})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("UpdateEventTimes(missing) = %v", err)
	}
}

// next reads one snapshot or fails after a timeout.
func next(t *testing.T, ch <-chan []model.Event) []model.Event {
	t.Helper()
	select {
	case evs, ok := <-ch:
		if !ok {
			t.Fatal("watch channel closed")
		}
		return evs
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return nil
}

// waitFor reads snapshots until one has n events.
func waitFor(t *testing.T, ch <-chan []model.Event, n int) []model.Event {
	t.Helper()
	for {
		if evs := next(t, ch); len(evs) == n {
			return evs
		}
	}
}

func TestWatchEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, _ := openStore(t)
	it := newTrip(t, s)

	ch, err := s.WatchEvents(ctx, it.ID)
	if err != nil {
		t.Fatalf("WatchEvents: %v", err)
	}
	if first := next(t, ch); len(first) != 0 {
		t.Fatalf("initial snapshot = %+v", first)
	}

	for i, start := range []string{"08:00", "10:00", "12:00"} {
		_, err := s.CreateEvent(ctx, it.ID, model.EventDraft{
			Title:         "stop",
			StartDateTime: "2024-06-01T" + start,
			EndDateTime:   "2024-06-01T" + []string{"09:00", "11:00", "13:00"}[i],
		})
		if err != nil {
			t.Fatalf("CreateEvent: %v", err)
		}
	}
	if evs := waitFor(t, ch, 3); evs[0].StartDateTime != "2024-06-01T08:00" {
		t.Errorf("snapshot order = %+v", evs)
	}

	cancel()
	select {
	case _, ok := <-ch:
		for ok {
			_, ok = <-ch
		}
	case <-time.After(5 * time.Second):
		t.Fatal("channel not closed after cancel")
	}

	if _, err := s.WatchEvents(context.Background(), "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("WatchEvents(missing) = %v", err)
	}
}

func TestWatchEventsIgnoresOtherItineraries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, _ := openStore(t)
	a := newTrip(t, s)
	b := newTrip(t, s)

	ch, err := s.WatchEvents(ctx, a.ID)
	if err != nil {
		t.Fatalf("WatchEvents: %v", err)
	}
	next(t, ch)

	draft := model.EventDraft{Title: "x", StartDateTime: "2024-06-01T10:00", EndDateTime: "2024-06-01T11:00"}
	if _, err := s.CreateEvent(ctx, b.ID, draft); err != nil {
		t.Fatal(err)
	}
	select {
	case evs := <-ch:
		t.Errorf("unexpected snapshot for another itinerary: %+v", evs)
	case <-time.After(100 * time.Millisecond):
	}
}

type fakeNotifier struct {
	mu        sync.Mutex
	published []string
	deliver   func(string)
}

func (f *fakeNotifier) Publish(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, id)
	return nil
}

func (f *fakeNotifier) Subscribe(_ context.Context, fn func(string)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliver = fn
	return nil
}

func TestRemoteNotifications(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n := &fakeNotifier{}
	local, path := openStore(t, store.WithNotifier(n))
	it := newTrip(t, local)

	// A second process writing to the same file.
	other, err := store.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer other.Close()

	ch, err := local.WatchEvents(ctx, it.ID)
	if err != nil {
		t.Fatalf("WatchEvents: %v", err)
	}
	next(t, ch)

	draft := model.EventDraft{Title: "Ferry", StartDateTime: "2024-06-01T10:00", EndDateTime: "2024-06-01T11:00"}
	if _, err := other.CreateEvent(ctx, it.ID, draft); err != nil {
		t.Fatal(err)
	}
	n.mu.Lock()
	deliver := n.deliver
	n.mu.Unlock()
	deliver(it.ID)

	if evs := waitFor(t, ch, 1); evs[0].Title != "Ferry" {
		t.Errorf("remote snapshot = %+v", evs)
	}

	if _, err := local.CreateEvent(ctx, it.ID, draft); err != nil {
		t.Fatal(err)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.published) != 1 || n.published[0] != it.ID {
		t.Errorf("published = %v", n.published)
	}
}

func TestReplaceImported(t *testing.T) {
	ctx := context.Background()
	s, _ := openStore(t)
	it := newTrip(t, s)

	manual, err := s.CreateEvent(ctx, it.ID, model.EventDraft{Title: "Lunch", StartDateTime: "2024-06-01T12:00", EndDateTime: "2024-06-01T13:00"})
	if err != nil {
		t.Fatal(err)
	}

	first := []model.EventDraft{
		{Title: "Flight", StartDateTime: "2024-06-01T08:00", EndDateTime: "2024-06-01T10:00", SourceUID: "flight"},
		{Title: "Hotel", StartDateTime: "2024-06-01T15:00", EndDateTime: "2024-06-01T16:00", SourceUID: "hotel"},
		{Title: "Broken", StartDateTime: "2024-06-01T15:00", EndDateTime: "2024-06-01T14:00", SourceUID: "broken"},
	}
	res, err := s.ReplaceImported(ctx, it.ID, "feed", first)
	if err != nil {
		t.Fatalf("ReplaceImported: %v", err)
	}
	if res != (store.ImportResult{Created: 2, Skipped: 1}) {
		t.Errorf("first import = %+v", res)
	}
	before, _ := s.ListEvents(ctx, it.ID)
	flightID := ""
	for _, ev := range before {
		if ev.SourceUID == "flight" {
			flightID = ev.ID
		}
	}

	second := []model.EventDraft{
		{Title: "Flight (delayed)", StartDateTime: "2024-06-01T09:00", EndDateTime: "2024-06-01T11:00", SourceUID: "flight"},
	}
	res, err = s.ReplaceImported(ctx, it.ID, "feed", second)
	if err != nil {
		t.Fatalf("ReplaceImported: %v", err)
	}
	if res != (store.ImportResult{Updated: 1, Deleted: 1}) {
		t.Errorf("second import = %+v", res)
	}

	after, _ := s.ListEvents(ctx, it.ID)
	if len(after) != 2 {
		t.Fatalf("events after re-import = %+v", after)
	}
	for _, ev := range after {
		switch ev.ID {
		case flightID:
			if ev.Title != "Flight (delayed)" || ev.StartDateTime != "2024-06-01T09:00" {
				t.Errorf("re-imported flight = %+v", ev)
			}
		case manual.ID:
		default:
			t.Errorf("unexpected event %+v", ev)
		}
	}
}
