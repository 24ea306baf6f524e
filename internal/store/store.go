// Package store is the itinerary/event document store backing the calendar.
//
// Data lives in a single SQLite file. Every write to an itinerary's events
// notifies live WatchEvents streams in this process and, when a remote
// Notifier is configured, in every other process sharing it. Concurrent
// edits follow last-write-wins.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	appLog "tripcal/internal/log"
)

var (
	ErrNotFound     = errors.New("store: not found")
	ErrInvalidRange = errors.New("store: invalid date range")
)

// Store is safe for concurrent use.
type Store struct {
	db     *sql.DB
	hub    *hub
	remote Notifier
	now    func() time.Time

	cancel context.CancelFunc
}

// Option configures Open.
type Option func(*Store)

// WithNotifier fans change notifications out through n in addition to the
// in-process hub.
func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.remote = n }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens (creating if needed) the database at path and runs migrations.
func Open(path string, opts ...Option) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	// SQLite works best with a single writer connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable foreign keys: %w", err)
	}

	s := &Store{
		db:  db,
		hub: newHub(),
		now: time.Now,
	}
	for _, o := range opts {
		o(s)
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	if s.remote != nil {
		if err := s.remote.Subscribe(ctx, s.hub.broadcast); err != nil {
			cancel()
			db.Close()
			return nil, fmt.Errorf("store: subscribe notifier: %w", err)
		}
	}

	appLog.Info("store opened", "path", path, "remote_notify", s.remote != nil)
	return s, nil
}

// Close stops notification fan-out and closes the database.
func (s *Store) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.hub.closeAll()
	return s.db.Close()
}

// changed tells every watcher of itineraryID to refresh.
func (s *Store) changed(ctx context.Context, itineraryID string) {
	s.hub.broadcast(itineraryID)
	if s.remote == nil {
		return
	}
	if err := s.remote.Publish(ctx, itineraryID); err != nil {
		appLog.Error("publish change failed", err, "itinerary_id", itineraryID)
	}
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

type migration struct {
	name      string
	statement string
}

var migrations = []migration{
	{
		name: "001_create_itineraries",
		statement: `
			CREATE TABLE itineraries (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL,
				start_date TEXT NOT NULL DEFAULT '',
				end_date TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			);`,
	},
	{
		name: "002_create_events",
		statement: `
			CREATE TABLE events (
				id TEXT PRIMARY KEY,
				itinerary_id TEXT NOT NULL REFERENCES itineraries(id) ON DELETE CASCADE,
				title TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				start_date_time TEXT NOT NULL,
				end_date_time TEXT NOT NULL,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			);
			CREATE INDEX idx_events_itinerary ON events(itinerary_id, start_date_time);`,
	},
	{
		name: "003_add_event_source",
		statement: `
			ALTER TABLE events ADD COLUMN source TEXT NOT NULL DEFAULT '';
			ALTER TABLE events ADD COLUMN ics_uid TEXT NOT NULL DEFAULT '';
			CREATE INDEX idx_events_source ON events(itinerary_id, source, ics_uid);`,
	},
}

// migrate applies every migration that has not run yet, in order.
func (s *Store) migrate() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin migration: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS _migrations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			run_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);`); err != nil {
		return fmt.Errorf("store: create migrations table: %w", err)
	}

	for _, m := range migrations {
		var count int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM _migrations WHERE name = ?`, m.name).Scan(&count); err != nil {
			return fmt.Errorf("store: check migration %s: %w", m.name, err)
		}
		if count > 0 {
			continue
		}
		if _, err := tx.Exec(m.statement); err != nil {
			return fmt.Errorf("store: run migration %s: %w", m.name, err)
		}
		if _, err := tx.Exec(`INSERT INTO _migrations (name) VALUES (?)`, m.name); err != nil {
			return fmt.Errorf("store: record migration %s: %w", m.name, err)
		}
		appLog.Debug("migration applied", "name", m.name)
	}
	return tx.Commit()
}
