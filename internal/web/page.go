package web

import (
	"embed"
	"html/template"
	"net/http"

	appLog "tripcal/internal/log"
	"tripcal/internal/model"
	"tripcal/internal/timegrid"
)

//go:embed templates/calendar.html
var templateFS embed.FS

var calendarTemplate = template.Must(template.ParseFS(templateFS, "templates/calendar.html"))

type pageBlock struct {
	Title  string
	Clock  string
	Top    float64
	Height float64
	Left   float64
	Width  float64
	Cont   bool
}

type pageColumn struct {
	Day    model.CalendarDay
	Blocks []pageBlock
}

type pageData struct {
	Itinerary  model.Itinerary
	Hours      []string
	HourHeight float64
	GridHeight float64
	Columns    []pageColumn
}

// handleCalendarPage renders the grid as static HTML. The root element
// carries data-ready="true" once the grid is in the document, which is
// what the snapshot capture waits for.
func (s *Server) handleCalendarPage(w http.ResponseWriter, r *http.Request) {
	it, rm, err := s.renderModel(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	hourHeight := s.cfg.Calendar.SlotHeightPx
	data := pageData{
		Itinerary:  it,
		HourHeight: hourHeight,
		GridHeight: 24 * hourHeight,
	}
	for h := 0; h < 24; h++ {
		data.Hours = append(data.Hours, timegrid.FormatClock(h*60))
	}
	for _, col := range rm.Columns {
		pc := pageColumn{Day: col.Day}
		for _, seg := range col.Segments {
			pc.Blocks = append(pc.Blocks, pageBlock{
				Title:  seg.Event.Title,
				Clock:  timegrid.FormatClock(seg.StartMinutes) + "–" + timegrid.FormatClock(seg.EndMinutes),
				Top:    float64(seg.StartMinutes) / 60 * hourHeight,
				Height: float64(seg.EndMinutes-seg.StartMinutes) / 60 * hourHeight,
				Left:   seg.LeftPercent(),
				Width:  seg.WidthPercent(),
				Cont:   !seg.IsStart || !seg.IsEnd,
			})
		}
		data.Columns = append(data.Columns, pc)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := calendarTemplate.Execute(w, data); err != nil {
		appLog.Error("failed to render calendar page", err, "itinerary_id", it.ID)
	}
}
