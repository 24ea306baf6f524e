package ics

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "tripcal/internal/log"
)

// ParsedEvent is one VEVENT reduced to what the calendar needs.
// Recurrences are recorded here and flattened by Flatten.
type ParsedEvent struct {
	Source Source

	UID string
	Seq int

	Summary     string
	Description string
	Location    string

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID, when this VEVENT overrides one instance
	IsOverride bool
}

// ParseICS parses an ICS payload. VEVENTs that cannot be understood are
// logged and skipped; only an unreadable calendar is an error.
func ParseICS(src Source, body []byte) ([]ParsedEvent, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("ics: empty body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "url", redactURL(src.URL))
		return nil, fmt.Errorf("ics: parse calendar: %w", err)
	}

	events := make([]ParsedEvent, 0)
	for _, ve := range cal.Events() {
		ev, err := parseVEvent(src, ve)
		if err != nil {
			appLog.Error("ics vevent skipped", err, "id", src.ID, "uid", propValue(ve, ical.ComponentPropertyUniqueId))
			continue
		}
		events = append(events, ev)
	}

	appLog.Info("ics parse completed", "id", src.ID, "url", redactURL(src.URL), "event_count", len(events))
	return events, nil
}

func propValue(ve *ical.VEvent, p ical.ComponentProperty) string {
	if prop := ve.GetProperty(p); prop != nil {
		return prop.Value
	}
	return ""
}

func param(prop *ical.IANAProperty, name string) string {
	if prop == nil || prop.ICalParameters == nil {
		return ""
	}
	if vs := prop.ICalParameters[name]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

func parseVEvent(src Source, ve *ical.VEvent) (ParsedEvent, error) {
	out := ParsedEvent{
		Source:      src,
		UID:         strings.TrimSpace(propValue(ve, ical.ComponentPropertyUniqueId)),
		Summary:     strings.TrimSpace(propValue(ve, ical.ComponentPropertySummary)),
		Description: strings.TrimSpace(propValue(ve, ical.ComponentPropertyDescription)),
		Location:    strings.TrimSpace(propValue(ve, ical.ComponentPropertyLocation)),
		RawRRule:    propValue(ve, ical.ComponentPropertyRrule),
	}
	if out.UID == "" {
		return out, errors.New("missing UID")
	}
	if n, err := strconv.Atoi(strings.TrimSpace(propValue(ve, ical.ComponentPropertySequence))); err == nil {
		out.Seq = n
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}
	start, allDay, err := parseICSValue(dtStart.Value, param(dtStart, "TZID"), param(dtStart, "VALUE"))
	if err != nil {
		return out, fmt.Errorf("DTSTART: %w", err)
	}
	out.Start = start
	out.AllDay = allDay

	switch dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); {
	case dtEnd != nil:
		end, _, err := parseICSValue(dtEnd.Value, param(dtEnd, "TZID"), param(dtEnd, "VALUE"))
		if err != nil {
			return out, fmt.Errorf("DTEND: %w", err)
		}
		out.End = end
	case propValue(ve, ical.ComponentPropertyDuration) != "":
		d, err := parseDuration(propValue(ve, ical.ComponentPropertyDuration))
		if err != nil {
			return out, fmt.Errorf("DURATION: %w", err)
		}
		out.End = start.Add(d)
	case allDay:
		out.End = start.AddDate(0, 0, 1)
	default:
		out.End = start
	}
	if out.End.Before(out.Start) {
		return out, errors.New("DTEND before DTSTART")
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, _, err := parseICSValue(part, param(p, "TZID"), param(p, "VALUE")); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if rid := ve.GetProperty(ical.ComponentPropertyRecurrenceId); rid != nil {
		if t, _, err := parseICSValue(rid.Value, param(rid, "TZID"), param(rid, "VALUE")); err == nil {
			out.Recurrence = &t
			out.IsOverride = true
		}
	}

	return out, nil
}

// parseICSValue parses DATE and DATE-TIME values. UTC values end in Z,
// values with a TZID are read in that zone and floating values in
// time.Local. An unknown TZID falls back to time.Local.
func parseICSValue(v, tzid, valueType string) (time.Time, bool, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false, errors.New("empty time value")
	}

	if strings.EqualFold(valueType, "DATE") || !strings.Contains(v, "T") {
		t, err := time.ParseInLocation("20060102", v, time.Local)
		return t, true, err
	}
	if strings.HasSuffix(v, "Z") {
		t, err := time.Parse("20060102T150405Z", v)
		return t, false, err
	}

	loc := time.Local
	if tzid != "" {
		if l, err := time.LoadLocation(tzid); err == nil {
			loc = l
		} else {
			appLog.Debug("unknown TZID, using local time", "tzid", tzid)
		}
	}
	t, err := time.ParseInLocation("20060102T150405", v, loc)
	return t, false, err
}

var durationPattern = regexp.MustCompile(`^([+-])?P(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// parseDuration parses an RFC 5545 DURATION such as "PT1H30M" or "P1D".
func parseDuration(v string) (time.Duration, error) {
	m := durationPattern.FindStringSubmatch(strings.TrimSpace(v))
	if m == nil || v == "P" || v == "PT" {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	units := []time.Duration{7 * 24 * time.Hour, 24 * time.Hour, time.Hour, time.Minute, time.Second}
	var d time.Duration
	for i, unit := range units {
		if m[i+2] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+2])
		if err != nil {
			return 0, err
		}
		d += time.Duration(n) * unit
	}
	if m[1] == "-" {
		d = -d
	}
	return d, nil
}
