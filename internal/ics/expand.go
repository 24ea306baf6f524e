package ics

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "tripcal/internal/log"
	"tripcal/internal/model"
	"tripcal/internal/timegrid"
)

const defaultMaxOccurrencesPerEvent = 500

// ExpandConfig bounds recurrence flattening.
type ExpandConfig struct {
	// Location is the zone imported times are converted to before they
	// become local-naive strings. Nil means time.Local.
	Location *time.Location

	// RangeStart / RangeEnd is the half-open window occurrences must touch.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps a single RRULE. Zero means the default.
	MaxOccurrencesPerEvent int
}

// ExpandResult is the flattened import.
type ExpandResult struct {
	Drafts []model.EventDraft
	// TruncatedEvents lists UIDs whose recurrence hit the cap.
	TruncatedEvents []string
}

// TripWindow returns [start 00:00, end+1 00:00) in loc for ISO trip dates.
func TripWindow(startDate, endDate string, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	s, err := time.ParseInLocation(timegrid.DateLayout, startDate, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("ics: trip start: %w", err)
	}
	e, err := time.ParseInLocation(timegrid.DateLayout, endDate, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("ics: trip end: %w", err)
	}
	if e.Before(s) {
		return time.Time{}, time.Time{}, errors.New("ics: trip ends before it starts")
	}
	return s, e.AddDate(0, 0, 1), nil
}

// Flatten turns parsed VEVENTs into plain one-off event drafts inside the
// configured window. RRULEs are expanded with EXDATE and RECURRENCE-ID
// applied. Every draft carries a SourceUID that is stable across imports:
// the VEVENT UID, plus the instance start for recurring events.
func Flatten(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if !cfg.RangeEnd.After(cfg.RangeStart) {
		return result, errors.New("ics: empty flatten window")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	bases := map[string][]ParsedEvent{}
	overrides := map[string][]ParsedEvent{}
	var uids []string
	for _, ev := range events {
		if ev.IsOverride {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		if _, seen := bases[ev.UID]; !seen {
			uids = append(uids, ev.UID)
		}
		bases[ev.UID] = append(bases[ev.UID], ev)
	}
	sort.Strings(uids)

	for _, uid := range uids {
		for _, ev := range bases[uid] {
			if ev.RawRRule == "" {
				if d, ok := draftFor(ev, ev.Start, ev.End, ev.UID, cfg); ok {
					result.Drafts = append(result.Drafts, d)
				}
				continue
			}
			drafts, truncated := flattenRecurring(ev, overrides[uid], cfg)
			result.Drafts = append(result.Drafts, drafts...)
			if truncated {
				result.TruncatedEvents = append(result.TruncatedEvents, uid)
				appLog.Error("recurrence truncated", errors.New("max occurrences reached"),
					"uid", uid, "cap", cfg.MaxOccurrencesPerEvent)
			}
		}
	}

	sort.SliceStable(result.Drafts, func(i, j int) bool {
		a, b := result.Drafts[i], result.Drafts[j]
		if a.StartDateTime != b.StartDateTime {
			return a.StartDateTime < b.StartDateTime
		}
		return a.SourceUID < b.SourceUID
	})
	return result, nil
}

func flattenRecurring(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.EventDraft, bool) {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("invalid RRULE skipped", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	dur := ev.End.Sub(ev.Start)
	// Widen the lower bound by the duration so an occurrence that began
	// before the window but runs into it is kept.
	from := cfg.RangeStart.Add(-dur).In(ev.Start.Location())
	to := cfg.RangeEnd.In(ev.Start.Location())
	starts := set.Between(from, to, true)

	truncated := false
	if len(starts) > cfg.MaxOccurrencesPerEvent {
		starts = starts[:cfg.MaxOccurrencesPerEvent]
		truncated = true
	}

	var out []model.EventDraft
	for _, occStart := range starts {
		instance := ev
		start, end := occStart, occStart.Add(dur)
		if o, ok := findOverride(overrides, occStart); ok {
			instance = o
			start, end = o.Start, o.End
		}
		key := ev.UID + "/" + occStart.UTC().Format("20060102T150405Z")
		if d, ok := draftFor(instance, start, end, key, cfg); ok {
			out = append(out, d)
		}
	}
	return out, truncated
}

func findOverride(overrides []ParsedEvent, occStart time.Time) (ParsedEvent, bool) {
	for _, o := range overrides {
		if o.Recurrence != nil && o.Recurrence.Equal(occStart) {
			return o, true
		}
	}
	return ParsedEvent{}, false
}

// draftFor converts one occurrence to a local-naive draft. All-day entries
// keep their calendar dates and span 00:00 to 00:00; timed entries are
// converted to cfg.Location. Zero-length entries get the minimum event
// duration. Occurrences outside the window are dropped.
func draftFor(ev ParsedEvent, start, end time.Time, key string, cfg ExpandConfig) (model.EventDraft, bool) {
	if ev.AllDay {
		days := max(calendarDays(ev.Start, ev.End), 1)
		start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, cfg.Location)
		end = start.AddDate(0, 0, days)
	} else {
		start = start.In(cfg.Location)
		end = end.In(cfg.Location)
		if !end.After(start) {
			end = start.Add(timegrid.MinEventDuration * time.Minute)
		}
	}
	if !start.Before(cfg.RangeEnd) || !end.After(cfg.RangeStart) {
		return model.EventDraft{}, false
	}

	title := ev.Summary
	if title == "" {
		title = "(untitled)"
	}
	desc := ev.Description
	if ev.Location != "" {
		if desc != "" {
			desc = "Location: " + ev.Location + "\n\n" + desc
		} else {
			desc = "Location: " + ev.Location
		}
	}
	return model.EventDraft{
		Title:         title,
		Description:   desc,
		StartDateTime: start.Format(timegrid.LocalLayout),
		EndDateTime:   end.Format(timegrid.LocalLayout),
		SourceUID:     key,
	}, true
}

// calendarDays counts the date changes between a and b, each read in its
// own zone.
func calendarDays(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}
