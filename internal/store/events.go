package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	appLog "tripcal/internal/log"
	"tripcal/internal/model"
	"tripcal/internal/timegrid"
)

// validEventRange rejects unparseable timestamps and empty or inverted
// ranges. The fixed-width format makes string order equal time order.
func validEventRange(start, end string) bool {
	if _, ok := timegrid.ParseLocal(start); !ok {
		return false
	}
	if _, ok := timegrid.ParseLocal(end); !ok {
		return false
	}
	return start < end
}

const eventColumns = `id, itinerary_id, title, description, start_date_time, end_date_time, ics_uid`

// CreateEvent adds an event to an itinerary.
func (s *Store) CreateEvent(ctx context.Context, itineraryID string, d model.EventDraft) (model.Event, error) {
	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		return model.Event{}, fmt.Errorf("store: event title is required")
	}
	if !validEventRange(d.StartDateTime, d.EndDateTime) {
		return model.Event{}, ErrInvalidRange
	}
	if _, err := s.GetItinerary(ctx, itineraryID); err != nil {
		return model.Event{}, err
	}

	ev := model.Event{
		ID:            uuid.NewString(),
		ItineraryID:   itineraryID,
		Title:         d.Title,
		Description:   d.Description,
		StartDateTime: d.StartDateTime,
		EndDateTime:   d.EndDateTime,
		SourceUID:     d.SourceUID,
	}
	ts := s.timestamp()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, itinerary_id, title, description, start_date_time, end_date_time, ics_uid, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.ItineraryID, ev.Title, ev.Description, ev.StartDateTime, ev.EndDateTime, ev.SourceUID, ts, ts)
	if err != nil {
		return model.Event{}, fmt.Errorf("store: insert event: %w", err)
	}

	appLog.Debug("event created", "itinerary_id", itineraryID, "event_id", ev.ID)
	s.changed(ctx, itineraryID)
	return ev, nil
}

// UpdateEventTimes moves or resizes an event. Last write wins.
func (s *Store) UpdateEventTimes(ctx context.Context, itineraryID, eventID string, t model.EventTimes) error {
	if !validEventRange(t.StartDateTime, t.EndDateTime) {
		return ErrInvalidRange
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE events SET start_date_time = ?, end_date_time = ?, updated_at = ? WHERE id = ? AND itinerary_id = ?`,
		t.StartDateTime, t.EndDateTime, s.timestamp(), eventID, itineraryID)
	if err != nil {
		return fmt.Errorf("store: update event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	appLog.Debug("event times updated", "itinerary_id", itineraryID, "event_id", eventID,
		"start", t.StartDateTime, "end", t.EndDateTime)
	s.changed(ctx, itineraryID)
	return nil
}

// DeleteEvent removes an event.
func (s *Store) DeleteEvent(ctx context.Context, itineraryID, eventID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ? AND itinerary_id = ?`, eventID, itineraryID)
	if err != nil {
		return fmt.Errorf("store: delete event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.changed(ctx, itineraryID)
	return nil
}

// ListEvents returns the itinerary's events ordered by start time.
func (s *Store) ListEvents(ctx context.Context, itineraryID string) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE itinerary_id = ? ORDER BY start_date_time, end_date_time, id`,
		itineraryID)
	if err != nil {
		return nil, fmt.Errorf("store: list events: %w", err)
	}
	defer rows.Close()

	out := []model.Event{}
	for rows.Next() {
		var ev model.Event
		if err := rows.Scan(&ev.ID, &ev.ItineraryID, &ev.Title, &ev.Description,
			&ev.StartDateTime, &ev.EndDateTime, &ev.SourceUID); err != nil {
			return nil, fmt.Errorf("store: scan event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// ImportResult counts what ReplaceImported changed.
type ImportResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
	Skipped int `json:"skipped"`
}

// ReplaceImported makes the events imported from source match drafts.
//
// Drafts are keyed by SourceUID: an existing event with the same UID keeps
// its ID and is overwritten, new UIDs are inserted and events of the source
// whose UID is gone are deleted. Events created by hand are never touched.
// Drafts with an invalid range or without a UID are skipped.
func (s *Store) ReplaceImported(ctx context.Context, itineraryID, source string, drafts []model.EventDraft) (ImportResult, error) {
	var res ImportResult
	if source == "" {
		return res, fmt.Errorf("store: import source is required")
	}
	if _, err := s.GetItinerary(ctx, itineraryID); err != nil {
		return res, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("store: begin import: %w", err)
	}
	defer tx.Rollback()

	existing := map[string]string{}
	rows, err := tx.QueryContext(ctx,
		`SELECT id, ics_uid FROM events WHERE itinerary_id = ? AND source = ?`, itineraryID, source)
	if err != nil {
		return res, fmt.Errorf("store: load imported: %w", err)
	}
	for rows.Next() {
		var id, uid string
		if err := rows.Scan(&id, &uid); err != nil {
			rows.Close()
			return res, fmt.Errorf("store: scan imported: %w", err)
		}
		existing[uid] = id
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return res, fmt.Errorf("store: load imported: %w", err)
	}

	ts := s.timestamp()
	seen := map[string]bool{}
	for _, d := range drafts {
		title := strings.TrimSpace(d.Title)
		if d.SourceUID == "" || seen[d.SourceUID] || !validEventRange(d.StartDateTime, d.EndDateTime) {
			res.Skipped++
			continue
		}
		if title == "" {
			title = "(untitled)"
		}
		seen[d.SourceUID] = true

		if id, ok := existing[d.SourceUID]; ok {
			if _, err := tx.ExecContext(ctx,
				`UPDATE events SET title = ?, description = ?, start_date_time = ?, end_date_time = ?, updated_at = ? WHERE id = ?`,
				title, d.Description, d.StartDateTime, d.EndDateTime, ts, id); err != nil {
				return res, fmt.Errorf("store: update imported: %w", err)
			}
			res.Updated++
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO events (id, itinerary_id, title, description, start_date_time, end_date_time, source, ics_uid, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), itineraryID, title, d.Description, d.StartDateTime, d.EndDateTime, source, d.SourceUID, ts, ts); err != nil {
			return res, fmt.Errorf("store: insert imported: %w", err)
		}
		res.Created++
	}

	for uid, id := range existing {
		if seen[uid] {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id); err != nil {
			return res, fmt.Errorf("store: delete imported: %w", err)
		}
		res.Deleted++
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("store: commit import: %w", err)
	}
	if res.Created+res.Updated+res.Deleted > 0 {
		s.changed(ctx, itineraryID)
	}
	return res, nil
}
