package gesture

import (
	"tripcal/internal/model"
	"tripcal/internal/timegrid"
)

// Slot is a (day, minute-of-day) position on the grid.
type Slot struct {
	Day     string `json:"day"`
	Minutes int    `json:"minutes"`
}

// NormalizeSelection turns an anchor/cursor pair into an ascending selection.
//
// Both ends are clamped to the visible range and the range is widened
// downwards to at least minDuration. An end that lands on a day boundary is
// expressed as minute 1440 of the earlier day. ok is false when either
// position lies outside the visible days.
func NormalizeSelection(idx timegrid.DayIndex, anchor, cursor Slot, minDuration int) (model.Selection, bool) {
	if minDuration <= 0 {
		minDuration = timegrid.MinEventDuration
	}
	a, ok := idx.Absolute(anchor.Day, anchor.Minutes)
	if !ok {
		return model.Selection{}, false
	}
	c, ok := idx.Absolute(cursor.Day, cursor.Minutes)
	if !ok {
		return model.Selection{}, false
	}

	total := idx.TotalMinutes()
	start := timegrid.Clamp(min(a, c), 0, total)
	end := timegrid.Clamp(max(a, c), 0, total)
	if end-start < minDuration {
		start = end - minDuration
		if start < 0 {
			start = 0
			end = min(minDuration, total)
		}
	}

	startDay, startMin, ok := idx.SplitStart(start)
	if !ok {
		return model.Selection{}, false
	}
	endDay, endMin, ok := idx.SplitEnd(end)
	if !ok {
		return model.Selection{}, false
	}
	return model.Selection{
		StartDate:    startDay,
		StartMinutes: startMin,
		EndDate:      endDay,
		EndMinutes:   endMin,
	}, true
}

// SelectionBounds returns a selection in absolute minutes.
func SelectionBounds(idx timegrid.DayIndex, sel model.Selection) (start, end int, ok bool) {
	start, ok = idx.Absolute(sel.StartDate, sel.StartMinutes)
	if !ok {
		return 0, 0, false
	}
	end, ok = idx.Absolute(sel.EndDate, sel.EndMinutes)
	if !ok {
		return 0, 0, false
	}
	return start, end, true
}

// ShiftRange moves [start, end) by delta, keeping its duration. If the
// result would leave [0, 1440] the whole interval is pushed back inside.
func ShiftRange(start, end, delta int) (int, int) {
	dur := end - start
	start += delta
	end += delta
	if start < 0 {
		start = 0
		end = dur
	}
	if end > timegrid.MinutesPerDay {
		end = timegrid.MinutesPerDay
		start = end - dur
	}
	return start, end
}

// ResizeStart moves the start edge to candidate without getting closer
// than minDuration to end.
func ResizeStart(start, end, candidate, minDuration int) (int, int) {
	candidate = timegrid.ClampMinutes(candidate)
	return max(0, min(candidate, end-minDuration)), end
}

// ResizeEnd moves the end edge to candidate without getting closer than
// minDuration to start.
func ResizeEnd(start, end, candidate, minDuration int) (int, int) {
	candidate = timegrid.ClampMinutes(candidate)
	return start, min(timegrid.MinutesPerDay, max(candidate, start+minDuration))
}
