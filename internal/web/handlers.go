package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"tripcal/internal/calendar"
	"tripcal/internal/ics"
	"tripcal/internal/model"
)

type createItineraryRequest struct {
	Title     string `json:"title" validate:"required,max=200"`
	StartDate string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

type updateItineraryDatesRequest struct {
	StartDate string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

type createEventRequest struct {
	Title         string `json:"title" validate:"required,max=200"`
	Description   string `json:"description" validate:"max=4000"`
	StartDateTime string `json:"start_date_time" validate:"required,datetime=2006-01-02T15:04"`
	EndDateTime   string `json:"end_date_time" validate:"required,datetime=2006-01-02T15:04"`
}

type updateEventTimesRequest struct {
	StartDateTime string `json:"start_date_time" validate:"required,datetime=2006-01-02T15:04"`
	EndDateTime   string `json:"end_date_time" validate:"required,datetime=2006-01-02T15:04"`
}

// decode reads a JSON body into v and validates it. On failure the error
// response has already been written.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (s *Server) handleListItineraries(w http.ResponseWriter, r *http.Request) {
	its, err := s.store.ListItineraries(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if its == nil {
		its = []model.Itinerary{}
	}
	writeJSON(w, http.StatusOK, its)
}

func (s *Server) handleCreateItinerary(w http.ResponseWriter, r *http.Request) {
	var req createItineraryRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	it, err := s.store.CreateItinerary(r.Context(), req.Title, req.StartDate, req.EndDate)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, it)
}

func (s *Server) handleGetItinerary(w http.ResponseWriter, r *http.Request) {
	it, err := s.store.GetItinerary(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) handleUpdateItineraryDates(w http.ResponseWriter, r *http.Request) {
	var req updateItineraryDatesRequest
	if !s.decode(w, r, &req) {
		return
	}
	id := mux.Vars(r)["id"]
	if err := s.store.UpdateItineraryDates(r.Context(), id, req.StartDate, req.EndDate); err != nil {
		writeStoreError(w, err)
		return
	}
	it, err := s.store.GetItinerary(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := s.store.GetItinerary(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	events, err := s.store.ListEvents(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	ev, err := s.store.CreateEvent(r.Context(), mux.Vars(r)["id"], model.EventDraft{
		Title:         req.Title,
		Description:   req.Description,
		StartDateTime: req.StartDateTime,
		EndDateTime:   req.EndDateTime,
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (s *Server) handleUpdateEventTimes(w http.ResponseWriter, r *http.Request) {
	var req updateEventTimesRequest
	if !s.decode(w, r, &req) {
		return
	}
	vars := mux.Vars(r)
	err := s.store.UpdateEventTimes(r.Context(), vars["id"], vars["eventId"], model.EventTimes{
		StartDateTime: req.StartDateTime,
		EndDateTime:   req.EndDateTime,
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.store.DeleteEvent(r.Context(), vars["id"], vars["eventId"]); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// renderModel loads an itinerary and derives its calendar. The optional
// "tz" query parameter picks the zone that decides which day is today.
func (s *Server) renderModel(r *http.Request) (model.Itinerary, calendar.RenderModel, error) {
	id := mux.Vars(r)["id"]
	it, err := s.store.GetItinerary(r.Context(), id)
	if err != nil {
		return model.Itinerary{}, calendar.RenderModel{}, err
	}
	events, err := s.store.ListEvents(r.Context(), id)
	if err != nil {
		return model.Itinerary{}, calendar.RenderModel{}, err
	}
	loc := resolveLocationOrLocal(r.URL.Query().Get("tz"))
	rm := calendar.Build(calendar.Input{
		StartDate: it.StartDate,
		EndDate:   it.EndDate,
		Events:    events,
		Now:       s.now().In(loc),
	})
	return it, rm, nil
}

func (s *Server) handleCalendarJSON(w http.ResponseWriter, r *http.Request) {
	_, rm, err := s.renderModel(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rm)
}

func (s *Server) handleCalendarICS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	it, err := s.store.GetItinerary(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	events, err := s.store.ListEvents(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	body, err := ics.Export(it, events, s.now())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.ics"`, it.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
