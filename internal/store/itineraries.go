package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tripcal/internal/model"
	"tripcal/internal/timegrid"
)

// validTripDates accepts two empty dates (trip not scheduled yet) or two
// ISO dates with start <= end.
func validTripDates(start, end string) bool {
	if start == "" && end == "" {
		return true
	}
	s, ok := timegrid.ParseDate(start)
	if !ok {
		return false
	}
	e, ok := timegrid.ParseDate(end)
	if !ok {
		return false
	}
	return !e.Before(s)
}

// CreateItinerary stores a new trip.
func (s *Store) CreateItinerary(ctx context.Context, title, startDate, endDate string) (model.Itinerary, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.Itinerary{}, fmt.Errorf("store: itinerary title is required")
	}
	if !validTripDates(startDate, endDate) {
		return model.Itinerary{}, ErrInvalidRange
	}

	ts := s.timestamp()
	it := model.Itinerary{
		ID:        uuid.NewString(),
		Title:     title,
		StartDate: startDate,
		EndDate:   endDate,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO itineraries (id, title, start_date, end_date, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		it.ID, it.Title, it.StartDate, it.EndDate, ts, ts)
	if err != nil {
		return model.Itinerary{}, fmt.Errorf("store: insert itinerary: %w", err)
	}
	it.CreatedAt = parseTimestamp(ts)
	it.UpdatedAt = it.CreatedAt
	return it, nil
}

// GetItinerary loads one trip.
func (s *Store) GetItinerary(ctx context.Context, id string) (model.Itinerary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, start_date, end_date, created_at, updated_at FROM itineraries WHERE id = ?`, id)
	it, err := scanItinerary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Itinerary{}, ErrNotFound
	}
	if err != nil {
		return model.Itinerary{}, fmt.Errorf("store: get itinerary: %w", err)
	}
	return it, nil
}

// ListItineraries returns every trip, oldest first.
func (s *Store) ListItineraries(ctx context.Context) ([]model.Itinerary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, start_date, end_date, created_at, updated_at FROM itineraries ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("store: list itineraries: %w", err)
	}
	defer rows.Close()

	out := []model.Itinerary{}
	for rows.Next() {
		it, err := scanItinerary(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan itinerary: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// UpdateItineraryDates changes the trip range. Watchers are notified since
// the visible days change with it.
func (s *Store) UpdateItineraryDates(ctx context.Context, id, startDate, endDate string) error {
	if !validTripDates(startDate, endDate) {
		return ErrInvalidRange
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE itineraries SET start_date = ?, end_date = ?, updated_at = ? WHERE id = ?`,
		startDate, endDate, s.timestamp(), id)
	if err != nil {
		return fmt.Errorf("store: update itinerary: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.changed(ctx, id)
	return nil
}

// TripDateRange returns the itinerary's start and end dates.
func (s *Store) TripDateRange(ctx context.Context, id string) (string, string, error) {
	it, err := s.GetItinerary(ctx, id)
	if err != nil {
		return "", "", err
	}
	return it.StartDate, it.EndDate, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItinerary(r rowScanner) (model.Itinerary, error) {
	var (
		it               model.Itinerary
		created, updated string
	)
	if err := r.Scan(&it.ID, &it.Title, &it.StartDate, &it.EndDate, &created, &updated); err != nil {
		return model.Itinerary{}, err
	}
	it.CreatedAt = parseTimestamp(created)
	it.UpdatedAt = parseTimestamp(updated)
	return it, nil
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
