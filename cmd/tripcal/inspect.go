package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"tripcal/internal/calendar"
	"tripcal/internal/timegrid"
)

var inspectJSON bool

var daysCmd = &cobra.Command{
	Use:   "days <itinerary-id>",
	Short: "Print the calendar days of an itinerary",
	Args:  cobra.ExactArgs(1),
	RunE:  runDays,
}

var layoutCmd = &cobra.Command{
	Use:   "layout <itinerary-id>",
	Short: "Print the per-day event layout of an itinerary",
	Args:  cobra.ExactArgs(1),
	RunE:  runLayout,
}

func init() {
	daysCmd.Flags().BoolVar(&inspectJSON, "json", false, "Print JSON")
	layoutCmd.Flags().BoolVar(&inspectJSON, "json", false, "Print JSON")
}

func runDays(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, closeStore, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	it, err := st.GetItinerary(ctx, args[0])
	if err != nil {
		return err
	}
	days := calendar.BuildDays(it.StartDate, it.EndDate, time.Now())
	if inspectJSON {
		return printJSON(os.Stdout, days)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, d := range days {
		mark := ""
		if d.IsToday {
			mark = "today"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.ISO, d.Weekday, d.MonthDay, mark)
	}
	return w.Flush()
}

func runLayout(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, closeStore, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	it, err := st.GetItinerary(ctx, args[0])
	if err != nil {
		return err
	}
	events, err := st.ListEvents(ctx, it.ID)
	if err != nil {
		return err
	}
	rm := calendar.Build(calendar.Input{StartDate: it.StartDate, EndDate: it.EndDate, Events: events, Now: time.Now()})
	if inspectJSON {
		return printJSON(os.Stdout, rm)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, col := range rm.Columns {
		fmt.Fprintf(w, "%s %s\t\t\t\n", col.Day.ISO, col.Day.Weekday)
		for _, s := range col.Segments {
			var flags string
			if !s.IsStart {
				flags += "<"
			}
			if !s.IsEnd {
				flags += ">"
			}
			fmt.Fprintf(w, "  %s-%s\tcol %d/%d\t%s\t%s\n",
				timegrid.FormatClock(s.StartMinutes), timegrid.FormatClock(s.EndMinutes),
				s.ColumnIndex+1, s.ColumnCount, s.Event.Title, flags)
		}
	}
	return w.Flush()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
