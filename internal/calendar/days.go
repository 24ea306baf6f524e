package calendar

import (
	"time"

	"tripcal/internal/model"
	"tripcal/internal/timegrid"
)

// BuildDays returns one CalendarDay per day from start to end inclusive.
//
// The result is empty if either date is missing or unparseable, or if start
// is after end. IsToday compares against now's local calendar date.
func BuildDays(start, end string, now time.Time) []model.CalendarDay {
	days := make([]model.CalendarDay, 0)
	if start == "" || end == "" {
		return days
	}
	from, ok := timegrid.ParseDate(start)
	if !ok {
		return days
	}
	to, ok := timegrid.ParseDate(end)
	if !ok || from.After(to) {
		return days
	}

	today := now.Format(timegrid.DateLayout)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		iso := d.Format(timegrid.DateLayout)
		days = append(days, model.CalendarDay{
			ISO:      iso,
			Weekday:  d.Format("Mon"),
			MonthDay: d.Format("Jan 2"),
			IsToday:  iso == today,
		})
	}
	return days
}
