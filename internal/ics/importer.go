package ics

import (
	"context"
	"errors"
	"fmt"
	"time"

	appLog "tripcal/internal/log"
	"tripcal/internal/model"
	"tripcal/internal/store"
)

// ImportStore is the part of the store an import writes to.
type ImportStore interface {
	TripDateRange(ctx context.Context, itineraryID string) (string, string, error)
	ReplaceImported(ctx context.Context, itineraryID, source string, drafts []model.EventDraft) (store.ImportResult, error)
}

// Subscription binds a feed to the itinerary it fills.
type Subscription struct {
	Source      Source
	ItineraryID string
}

// Importer keeps imported events in sync with their feeds.
type Importer struct {
	Fetcher  *Fetcher
	Store    ImportStore
	Location *time.Location
	// MaxOccurrencesPerEvent is passed to Flatten.
	MaxOccurrencesPerEvent int
}

// Sync imports one feed into an itinerary, replacing what the same feed
// imported before. Only occurrences touching the trip's dates are kept.
func (im *Importer) Sync(ctx context.Context, itineraryID string, src Source) (store.ImportResult, error) {
	start, end, err := im.Store.TripDateRange(ctx, itineraryID)
	if err != nil {
		return store.ImportResult{}, err
	}
	if start == "" || end == "" {
		return store.ImportResult{}, errors.New("ics: itinerary has no trip dates")
	}
	from, to, err := TripWindow(start, end, im.Location)
	if err != nil {
		return store.ImportResult{}, err
	}

	fetched, err := im.Fetcher.Fetch(ctx, src)
	if err != nil {
		return store.ImportResult{}, err
	}
	parsed, err := ParseICS(src, fetched.Body)
	if err != nil {
		return store.ImportResult{}, err
	}
	flat, err := Flatten(parsed, ExpandConfig{
		Location:               im.Location,
		RangeStart:             from,
		RangeEnd:               to,
		MaxOccurrencesPerEvent: im.MaxOccurrencesPerEvent,
	})
	if err != nil {
		return store.ImportResult{}, err
	}

	res, err := im.Store.ReplaceImported(ctx, itineraryID, src.ID, flat.Drafts)
	if err != nil {
		return res, fmt.Errorf("ics: store import: %w", err)
	}
	appLog.Info("ics import done", "id", src.ID, "itinerary_id", itineraryID,
		"created", res.Created, "updated", res.Updated, "deleted", res.Deleted, "skipped", res.Skipped,
		"from_cache", fetched.FromCache)
	return res, nil
}

// SyncAll runs Sync for every subscription. Failures are logged and
// collected; one bad feed does not stop the others.
func (im *Importer) SyncAll(ctx context.Context, subs []Subscription) []error {
	var errs []error
	for _, sub := range subs {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if _, err := im.Sync(ctx, sub.ItineraryID, sub.Source); err != nil {
			appLog.Error("ics sync failed", err, "id", sub.Source.ID, "itinerary_id", sub.ItineraryID)
			errs = append(errs, fmt.Errorf("%s: %w", sub.Source.ID, err))
		}
	}
	return errs
}
