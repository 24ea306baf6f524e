package calendar

import (
	"sort"

	"tripcal/internal/model"
	"tripcal/internal/timegrid"
)

// ProjectDay clips every event to the [0, 1440) window of one day.
//
// Events whose start or end cannot be mapped onto the visible range are
// dropped, as are events whose clipped interval is empty or inverted. The
// result is sorted by start minute.
func ProjectDay(idx timegrid.DayIndex, day string, events []model.Event) []model.Segment {
	segs := make([]model.Segment, 0)
	dayIndex, ok := idx.IndexOf(day)
	if !ok {
		return segs
	}
	dayStart := dayIndex * timegrid.MinutesPerDay
	dayEnd := dayStart + timegrid.MinutesPerDay

	for _, ev := range events {
		start, ok := idx.AbsoluteLocal(ev.StartDateTime, false)
		if !ok {
			continue
		}
		end, ok := idx.AbsoluteLocal(ev.EndDateTime, true)
		if !ok {
			continue
		}

		segStart := max(start, dayStart)
		segEnd := min(end, dayEnd)
		if segEnd <= segStart {
			continue
		}

		segs = append(segs, model.Segment{
			Event:        ev,
			StartMinutes: segStart - dayStart,
			EndMinutes:   segEnd - dayStart,
			IsStart:      start >= dayStart,
			IsEnd:        end <= dayEnd,
		})
	}

	sortSegments(segs)
	return segs
}

// ProjectAll projects the events onto every visible day, keyed by ISO day.
func ProjectAll(days []model.CalendarDay, events []model.Event) map[string][]model.Segment {
	idx := timegrid.IndexCalendar(days)
	out := make(map[string][]model.Segment, len(days))
	for _, d := range days {
		out[d.ISO] = ProjectDay(idx, d.ISO, events)
	}
	return out
}

// sortSegments orders by start, then longer first, then event ID so that
// projecting the same input always yields the same order.
func sortSegments(segs []model.Segment) {
	sort.SliceStable(segs, func(i, j int) bool {
		a, b := segs[i], segs[j]
		if a.StartMinutes != b.StartMinutes {
			return a.StartMinutes < b.StartMinutes
		}
		if a.EndMinutes != b.EndMinutes {
			return a.EndMinutes > b.EndMinutes
		}
		return a.Event.ID < b.Event.ID
	})
}
