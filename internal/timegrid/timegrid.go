// Package timegrid converts between calendar days, minute-of-day offsets and
// absolute cross-day minute offsets.
//
// An absolute minute is dayIndex*1440 + minuteOfDay, where dayIndex is the
// zero-based position of the day inside the visible day list. All lookups
// report failure with a false ok value; callers treat that as "ignore".
package timegrid

import (
	"math"
	"regexp"
	"strconv"
	"time"

	"tripcal/internal/model"
)

const (
	MinutesPerDay = 24 * 60

	// DefaultStep is the snapping step used by drags.
	DefaultStep = 30

	// MinEventDuration is the shortest range a gesture may produce, in minutes.
	MinEventDuration = 30

	DateLayout  = "2006-01-02"
	LocalLayout = "2006-01-02T15:04"
)

// ClampMinutes clamps v to [0, 1440].
func ClampMinutes(v int) int {
	return Clamp(v, 0, MinutesPerDay)
}

// Clamp clamps v to [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RoundToStep rounds v to the nearest multiple of step; halves round up.
// A non-positive step falls back to DefaultStep.
func RoundToStep(v, step int) int {
	if step <= 0 {
		step = DefaultStep
	}
	return int(math.Floor(float64(v)/float64(step)+0.5)) * step
}

// RoundFloatToStep is RoundToStep for raw pointer-derived minutes.
func RoundFloatToStep(v float64, step int) int {
	if step <= 0 {
		step = DefaultStep
	}
	return int(math.Floor(v/float64(step)+0.5)) * step
}

// LocalTime is a parsed "YYYY-MM-DDTHH:MM" value.
type LocalTime struct {
	Date    string
	Minutes int
}

var localPattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})T(\d{2}):(\d{2})$`)

// ParseLocal parses the fixed "YYYY-MM-DDTHH:MM" pattern. Anything else,
// including hour > 23 or minute > 59, is rejected.
func ParseLocal(s string) (LocalTime, bool) {
	m := localPattern.FindStringSubmatch(s)
	if m == nil {
		return LocalTime{}, false
	}
	if _, ok := ParseDate(m[1]); !ok {
		return LocalTime{}, false
	}
	h, _ := strconv.Atoi(m[2])
	mm, _ := strconv.Atoi(m[3])
	if h > 23 || mm > 59 {
		return LocalTime{}, false
	}
	return LocalTime{Date: m[1], Minutes: h*60 + mm}, true
}

// FormatLocal renders a (date, minute-of-day) pair as "YYYY-MM-DDTHH:MM".
// Minute 1440 is written as 00:00 of the following day.
func FormatLocal(date string, minutes int) (string, bool) {
	if minutes < 0 || minutes > MinutesPerDay {
		return "", false
	}
	d, ok := ParseDate(date)
	if !ok {
		return "", false
	}
	if minutes == MinutesPerDay {
		d = d.AddDate(0, 0, 1)
		minutes = 0
	}
	return d.Format(DateLayout) + "T" + pad2(minutes/60) + ":" + pad2(minutes%60), true
}

// FormatClock renders a minute-of-day as "HH:MM"; 1440 renders as "24:00".
func FormatClock(minutes int) string {
	minutes = ClampMinutes(minutes)
	return pad2(minutes/60) + ":" + pad2(minutes%60)
}

// ParseDate parses an ISO date in UTC. Dates are compared as calendar days,
// so the location is irrelevant as long as it is consistent.
func ParseDate(iso string) (time.Time, bool) {
	t, err := time.Parse(DateLayout, iso)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// AddDays shifts an ISO date by n calendar days.
func AddDays(iso string, n int) (string, bool) {
	t, ok := ParseDate(iso)
	if !ok {
		return "", false
	}
	return t.AddDate(0, 0, n).Format(DateLayout), true
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// DayIndex maps ISO days of the visible range to their zero-based position.
type DayIndex struct {
	days []string
	pos  map[string]int
	// boundary is the day after the last visible day. It is accepted only as
	// the exclusive end of a range (minute 0), so an event ending at
	// midnight after the last day stays mappable.
	boundary string
}

// NewDayIndex builds an index over consecutive ISO days.
func NewDayIndex(days []string) DayIndex {
	x := DayIndex{
		days: append([]string(nil), days...),
		pos:  make(map[string]int, len(days)),
	}
	for i, d := range days {
		x.pos[d] = i
	}
	if n := len(days); n > 0 {
		x.boundary, _ = AddDays(days[n-1], 1)
	}
	return x
}

// IndexCalendar builds a DayIndex from calendar columns.
func IndexCalendar(days []model.CalendarDay) DayIndex {
	iso := make([]string, len(days))
	for i, d := range days {
		iso[i] = d.ISO
	}
	return NewDayIndex(iso)
}

// Len returns the number of visible days.
func (x DayIndex) Len() int { return len(x.days) }

// TotalMinutes is the absolute length of the visible range.
func (x DayIndex) TotalMinutes() int { return len(x.days) * MinutesPerDay }

// IndexOf returns the position of iso, or false if it is outside the range.
func (x DayIndex) IndexOf(iso string) (int, bool) {
	i, ok := x.pos[iso]
	return i, ok
}

// DayAt returns the ISO day at position i.
func (x DayIndex) DayAt(i int) (string, bool) {
	if i < 0 || i >= len(x.days) {
		return "", false
	}
	return x.days[i], true
}

// Absolute converts (day, minute-of-day) to absolute minutes.
func (x DayIndex) Absolute(iso string, minutes int) (int, bool) {
	i, ok := x.pos[iso]
	if !ok || minutes < 0 || minutes > MinutesPerDay {
		return 0, false
	}
	return i*MinutesPerDay + minutes, true
}

// AbsoluteEnd is Absolute for the exclusive end of a range; it also accepts
// 00:00 of the day right after the visible range.
func (x DayIndex) AbsoluteEnd(iso string, minutes int) (int, bool) {
	if iso == x.boundary && minutes == 0 && x.boundary != "" {
		return x.TotalMinutes(), true
	}
	return x.Absolute(iso, minutes)
}

// AbsoluteLocal parses a local date-time string and converts it.
func (x DayIndex) AbsoluteLocal(s string, isEnd bool) (int, bool) {
	lt, ok := ParseLocal(s)
	if !ok {
		return 0, false
	}
	if isEnd {
		return x.AbsoluteEnd(lt.Date, lt.Minutes)
	}
	return x.Absolute(lt.Date, lt.Minutes)
}

// SplitStart converts absolute minutes back to (day, minute-of-day), with
// day boundaries belonging to the later day.
func (x DayIndex) SplitStart(abs int) (string, int, bool) {
	if abs < 0 || abs >= x.TotalMinutes() {
		return "", 0, false
	}
	return x.days[abs/MinutesPerDay], abs % MinutesPerDay, true
}

// SplitEnd converts absolute minutes back to (day, minute-of-day), with day
// boundaries expressed as minute 1440 of the earlier day.
func (x DayIndex) SplitEnd(abs int) (string, int, bool) {
	if abs <= 0 || abs > x.TotalMinutes() {
		return "", 0, false
	}
	if abs%MinutesPerDay == 0 {
		return x.days[abs/MinutesPerDay-1], MinutesPerDay, true
	}
	return x.days[abs/MinutesPerDay], abs % MinutesPerDay, true
}
