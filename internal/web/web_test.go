package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tripcal/internal/calendar"
	"tripcal/internal/config"
	"tripcal/internal/model"
	"tripcal/internal/store"
	"tripcal/internal/web"
)

type harness struct {
	t     *testing.T
	srv   *httptest.Server
	store *store.Store
}

func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "tripcal.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	now := time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)
	s := web.NewServer(cfg, st, web.WithClock(func() time.Time { return now }))
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &harness{t: t, srv: srv, store: st}
}

func (h *harness) do(method, path string, body any) *http.Response {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			h.t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, h.srv.URL+path, &buf)
	if err != nil {
		h.t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		h.t.Fatalf("%s %s: %v", method, path, err)
	}
	h.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestHealth(t *testing.T) {
	h := newHarness(t, nil)
	resp := h.do(http.MethodGet, "/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestItineraryAndEventLifecycle(t *testing.T) {
	h := newHarness(t, nil)

	resp := h.do(http.MethodPost, "/api/itineraries", map[string]string{
		"title": "Lisbon", "start_date": "2024-06-01", "end_date": "2024-06-03",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create itinerary status = %d", resp.StatusCode)
	}
	var it model.Itinerary
	decodeInto(t, resp, &it)

	resp = h.do(http.MethodPost, "/api/itineraries/"+it.ID+"/events", map[string]string{
		"title":           "Museum",
		"start_date_time": "2024-06-02T09:00",
		"end_date_time":   "2024-06-02T11:00",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create event status = %d", resp.StatusCode)
	}
	var ev model.Event
	decodeInto(t, resp, &ev)

	resp = h.do(http.MethodPatch, "/api/itineraries/"+it.ID+"/events/"+ev.ID, map[string]string{
		"start_date_time": "2024-06-02T10:00",
		"end_date_time":   "2024-06-02T11:30",
	})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("patch status = %d", resp.StatusCode)
	}

	resp = h.do(http.MethodGet, "/api/itineraries/"+it.ID+"/events", nil)
	var events []model.Event
	decodeInto(t, resp, &events)
	if len(events) != 1 || events[0].StartDateTime != "2024-06-02T10:00" || events[0].EndDateTime != "2024-06-02T11:30" {
		t.Fatalf("events = %+v", events)
	}

	resp = h.do(http.MethodDelete, "/api/itineraries/"+it.ID+"/events/"+ev.ID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp = h.do(http.MethodDelete, "/api/itineraries/"+it.ID+"/events/"+ev.ID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete status = %d", resp.StatusCode)
	}
}

func TestRequestValidation(t *testing.T) {
	h := newHarness(t, nil)
	it, err := h.store.CreateItinerary(testContext(t), "Lisbon", "2024-06-01", "2024-06-03")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		body any
		want int
	}{
		{"missing title", "/api/itineraries", map[string]string{"start_date": "2024-06-01"}, http.StatusBadRequest},
		{"blank title", "/api/itineraries", map[string]string{"title": "   "}, http.StatusBadRequest},
		{"bad date", "/api/itineraries", map[string]string{"title": "x", "start_date": "June 1"}, http.StatusBadRequest},
		{"inverted trip", "/api/itineraries", map[string]string{"title": "x", "start_date": "2024-06-03", "end_date": "2024-06-01"}, http.StatusBadRequest},
		{"unknown field", "/api/itineraries", map[string]string{"title": "x", "color": "red"}, http.StatusBadRequest},
		{"event without times", "/api/itineraries/" + it.ID + "/events", map[string]string{"title": "x"}, http.StatusBadRequest},
		{"inverted event", "/api/itineraries/" + it.ID + "/events", map[string]string{
			"title": "x", "start_date_time": "2024-06-02T11:00", "end_date_time": "2024-06-02T10:00",
		}, http.StatusBadRequest},
		{"unknown itinerary", "/api/itineraries/nope/events", map[string]string{
			"title": "x", "start_date_time": "2024-06-02T10:00", "end_date_time": "2024-06-02T11:00",
		}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := h.do(http.MethodPost, tt.path, tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestCalendarRenderModel(t *testing.T) {
	h := newHarness(t, nil)
	ctx := testContext(t)
	it, _ := h.store.CreateItinerary(ctx, "Lisbon", "2024-06-01", "2024-06-03")
	for _, d := range []model.EventDraft{
		{Title: "Museum", StartDateTime: "2024-06-02T09:00", EndDateTime: "2024-06-02T11:00"},
		{Title: "Lunch", StartDateTime: "2024-06-02T10:00", EndDateTime: "2024-06-02T12:00"},
		{Title: "Night train", StartDateTime: "2024-06-02T22:00", EndDateTime: "2024-06-03T06:00"},
	} {
		if _, err := h.store.CreateEvent(ctx, it.ID, d); err != nil {
			t.Fatal(err)
		}
	}

	resp := h.do(http.MethodGet, "/api/itineraries/"+it.ID+"/calendar?tz=UTC", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var rm calendar.RenderModel
	decodeInto(t, resp, &rm)

	if len(rm.Days) != 3 || !rm.Days[1].IsToday {
		t.Fatalf("days = %+v", rm.Days)
	}
	day2 := rm.Columns[1].Segments
	if len(day2) != 3 {
		t.Fatalf("2024-06-02 segments = %+v", day2)
	}
	if day2[0].ColumnCount != 2 || day2[1].ColumnCount != 2 || day2[1].ColumnIndex != 1 {
		t.Errorf("overlap columns = %+v", day2[:2])
	}
	day3 := rm.Columns[2].Segments
	if len(day3) != 1 || day3[0].StartMinutes != 0 || day3[0].EndMinutes != 360 || day3[0].IsStart {
		t.Errorf("2024-06-03 segments = %+v", day3)
	}

	resp = h.do(http.MethodGet, "/api/itineraries/missing/calendar", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing itinerary status = %d", resp.StatusCode)
	}
}

func TestCalendarPageAndExport(t *testing.T) {
	h := newHarness(t, nil)
	ctx := testContext(t)
	it, _ := h.store.CreateItinerary(ctx, "Lisbon <3", "2024-06-01", "2024-06-02")
	if _, err := h.store.CreateEvent(ctx, it.ID, model.EventDraft{
		Title: "Museum", StartDateTime: "2024-06-01T09:00", EndDateTime: "2024-06-01T10:30",
	}); err != nil {
		t.Fatal(err)
	}

	resp := h.do(http.MethodGet, "/itineraries/"+it.ID+"/calendar", nil)
	var page bytes.Buffer
	page.ReadFrom(resp.Body)
	html := page.String()
	for _, want := range []string{`data-ready="true"`, `data-day="2024-06-01"`, "Museum", "09:00–10:30", "Lisbon &lt;3"} {
		if !strings.Contains(html, want) {
			t.Errorf("page missing %q", want)
		}
	}

	resp = h.do(http.MethodGet, "/api/itineraries/"+it.ID+"/calendar.ics", nil)
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("content type = %q", ct)
	}
	var cal bytes.Buffer
	cal.ReadFrom(resp.Body)
	if !strings.Contains(cal.String(), "SUMMARY:Museum") {
		t.Errorf("export body:\n%s", cal.String())
	}
}

func TestBasicAuth(t *testing.T) {
	h := newHarness(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "ana", Password: "s3cret"}
	})

	if resp := h.do(http.MethodGet, "/health", nil); resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200 without credentials", resp.StatusCode)
	}
	if resp := h.do(http.MethodGet, "/api/itineraries", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, h.srv.URL+"/api/itineraries", nil)
	req.SetBasicAuth("ana", "s3cret")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("authorized status = %d", resp.StatusCode)
	}
}

// testContext mirrors testing.T.Context (Go 1.24+): the returned context is
// canceled just before cleanup functions registered by the test run.
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
