package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	itineraryTitle string
	itineraryStart string
	itineraryEnd   string
)

var itineraryCmd = &cobra.Command{
	Use:   "itinerary",
	Short: "Manage itineraries",
}

var itineraryCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an itinerary",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		it, err := st.CreateItinerary(ctx, itineraryTitle, itineraryStart, itineraryEnd)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), it.ID)
		return nil
	},
}

var itineraryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List itineraries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		its, err := st.ListItineraries(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, it := range its {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", it.ID, it.Title, it.StartDate, it.EndDate)
		}
		return w.Flush()
	},
}

var itineraryDatesCmd = &cobra.Command{
	Use:   "dates <itinerary-id>",
	Short: "Change an itinerary's trip dates",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()
		return st.UpdateItineraryDates(ctx, args[0], itineraryStart, itineraryEnd)
	},
}

func init() {
	itineraryCreateCmd.Flags().StringVar(&itineraryTitle, "title", "", "Trip title")
	itineraryCreateCmd.MarkFlagRequired("title")
	for _, c := range []*cobra.Command{itineraryCreateCmd, itineraryDatesCmd} {
		c.Flags().StringVar(&itineraryStart, "start", "", "First day (YYYY-MM-DD)")
		c.Flags().StringVar(&itineraryEnd, "end", "", "Last day (YYYY-MM-DD)")
	}
	itineraryCmd.AddCommand(itineraryCreateCmd, itineraryListCmd, itineraryDatesCmd)
}
