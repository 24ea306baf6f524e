package model

import "time"

// Itinerary is a trip record. StartDate / EndDate are ISO dates
// ("2006-01-02") and may be empty while the trip is still being planned.
type Itinerary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Event is a time-bound itinerary entry. Both timestamps are local-naive
// "YYYY-MM-DDTHH:MM" strings; there is no timezone.
type Event struct {
	ID            string `json:"id"`
	ItineraryID   string `json:"itinerary_id"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	StartDateTime string `json:"start_date_time"`
	EndDateTime   string `json:"end_date_time"`

	// SourceUID is set for events imported from an ICS subscription.
	SourceUID string `json:"source_uid,omitempty"`
}

// EventDraft is a create request.
type EventDraft struct {
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	StartDateTime string `json:"start_date_time"`
	EndDateTime   string `json:"end_date_time"`
	SourceUID     string `json:"source_uid,omitempty"`
}

// EventTimes is an update request that only moves an event.
type EventTimes struct {
	StartDateTime string `json:"start_date_time"`
	EndDateTime   string `json:"end_date_time"`
}

// CalendarDay is one column of the calendar. Derived, never stored.
type CalendarDay struct {
	ISO      string `json:"iso"`
	Weekday  string `json:"weekday"`
	MonthDay string `json:"month_day"`
	IsToday  bool   `json:"is_today"`
}

// Selection is a half-open time range expressed as (day, minute-of-day)
// pairs. EndMinutes may be 1440 when the range stops at midnight.
type Selection struct {
	StartDate    string `json:"start_date"`
	StartMinutes int    `json:"start_minutes"`
	EndDate      string `json:"end_date"`
	EndMinutes   int    `json:"end_minutes"`
}

// Segment is the part of one event that falls within one calendar day,
// in that day's 0..1440 minute frame.
type Segment struct {
	Event        Event `json:"event"`
	StartMinutes int   `json:"start_minutes"`
	EndMinutes   int   `json:"end_minutes"`
	IsStart      bool  `json:"is_start"`
	IsEnd        bool  `json:"is_end"`
}

// LayoutSegment is a Segment placed into a column of its overlap group.
type LayoutSegment struct {
	Segment
	ColumnIndex int `json:"column_index"`
	ColumnCount int `json:"column_count"`
}

// WidthPercent is the share of the day column this segment occupies.
func (s LayoutSegment) WidthPercent() float64 {
	if s.ColumnCount <= 0 {
		return 100
	}
	return 100 / float64(s.ColumnCount)
}

// LeftPercent is the horizontal offset of this segment inside its day column.
func (s LayoutSegment) LeftPercent() float64 {
	return float64(s.ColumnIndex) * s.WidthPercent()
}
