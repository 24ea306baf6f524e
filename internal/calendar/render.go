package calendar

import (
	"time"

	"tripcal/internal/model"
	"tripcal/internal/timegrid"
)

// Preview is an in-progress drag of an existing event. It changes only how
// the event is drawn; the event itself is untouched.
type Preview struct {
	EventID      string `json:"event_id"`
	Day          string `json:"day"`
	Mode         string `json:"mode"`
	StartMinutes int    `json:"start_minutes"`
	EndMinutes   int    `json:"end_minutes"`
}

// ComposerView is the floating create form as placed by the shell.
type ComposerView struct {
	Visible   bool             `json:"visible"`
	Selection *model.Selection `json:"selection,omitempty"`
	X         float64          `json:"x"`
	Y         float64          `json:"y"`
}

// Input is everything the render model is derived from.
type Input struct {
	StartDate string
	EndDate   string
	Events    []model.Event
	Now       time.Time

	Selection *model.Selection
	Preview   *Preview
	Composer  *ComposerView
}

// Column is one rendered day.
type Column struct {
	Day      model.CalendarDay     `json:"day"`
	Segments []model.LayoutSegment `json:"segments"`
	Dragging *DraggedSegment       `json:"dragging,omitempty"`
}

// DraggedSegment is where a dragged event is drawn while the gesture runs.
type DraggedSegment struct {
	model.LayoutSegment
	PreviewStart int `json:"preview_start"`
	PreviewEnd   int `json:"preview_end"`
}

// RenderModel is the full calendar state handed to a UI shell.
type RenderModel struct {
	Days      []model.CalendarDay `json:"days"`
	Columns   []Column            `json:"columns"`
	Selection *model.Selection    `json:"selection,omitempty"`
	Preview   *Preview            `json:"preview,omitempty"`
	Composer  *ComposerView       `json:"composer,omitempty"`
}

// Build derives the render model. It is a pure function of in.
func Build(in Input) RenderModel {
	days := BuildDays(in.StartDate, in.EndDate, in.Now)
	idx := timegrid.IndexCalendar(days)

	rm := RenderModel{
		Days:      days,
		Columns:   make([]Column, 0, len(days)),
		Selection: in.Selection,
		Preview:   in.Preview,
		Composer:  in.Composer,
	}
	for _, d := range days {
		col := Column{
			Day:      d,
			Segments: LayoutColumns(ProjectDay(idx, d.ISO, in.Events)),
		}
		if p := in.Preview; p != nil && p.Day == d.ISO {
			for _, s := range col.Segments {
				if s.Event.ID == p.EventID {
					col.Dragging = &DraggedSegment{
						LayoutSegment: s,
						PreviewStart:  p.StartMinutes,
						PreviewEnd:    p.EndMinutes,
					}
					break
				}
			}
		}
		rm.Columns = append(rm.Columns, col)
	}
	return rm
}

// SegmentAt finds the laid-out segment of an event on a given day.
func (rm RenderModel) SegmentAt(day, eventID string) (model.LayoutSegment, bool) {
	for _, c := range rm.Columns {
		if c.Day.ISO != day {
			continue
		}
		for _, s := range c.Segments {
			if s.Event.ID == eventID {
				return s, true
			}
		}
	}
	return model.LayoutSegment{}, false
}
