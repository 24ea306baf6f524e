package ics

import (
	"bytes"
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"tripcal/internal/model"
	"tripcal/internal/timegrid"
)

// Export renders an itinerary as a VCALENDAR. Event times are written as
// floating local times, matching how they are stored.
func Export(it model.Itinerary, events []model.Event, now time.Time) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//tripcal//itinerary export//EN")
	cal.SetXWRCalName(it.Title)

	for _, ev := range events {
		start, ok := icsLocal(ev.StartDateTime)
		if !ok {
			continue
		}
		end, ok := icsLocal(ev.EndDateTime)
		if !ok {
			continue
		}

		uid := ev.SourceUID
		if uid == "" {
			uid = ev.ID + "@tripcal"
		}
		ve := cal.AddEvent(uid)
		ve.SetDtStampTime(now)
		ve.SetProperty(ical.ComponentPropertyDtStart, start)
		ve.SetProperty(ical.ComponentPropertyDtEnd, end)
		ve.SetSummary(ev.Title)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
	}

	var buf bytes.Buffer
	if err := cal.SerializeTo(&buf); err != nil {
		return nil, fmt.Errorf("ics: serialize: %w", err)
	}
	return buf.Bytes(), nil
}

// icsLocal converts "2006-01-02T15:04" to the floating form "20060102T150405".
func icsLocal(s string) (string, bool) {
	lt, ok := timegrid.ParseLocal(s)
	if !ok {
		return "", false
	}
	d, ok := timegrid.ParseDate(lt.Date)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%sT%02d%02d00", d.Format("20060102"), lt.Minutes/60, lt.Minutes%60), true
}
