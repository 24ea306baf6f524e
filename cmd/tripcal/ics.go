package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"tripcal/internal/ics"
)

var (
	importURL    string
	importSource string
	exportOut    string
)

var importCmd = &cobra.Command{
	Use:   "import <itinerary-id>",
	Short: "Import ICS events into an itinerary",
	Long: `Import fetches an ICS feed (URL or local file), expands recurring events
inside the trip's dates and replaces whatever the same source imported before.
Without --url every subscription configured for the itinerary is synced.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var exportCmd = &cobra.Command{
	Use:   "export <itinerary-id>",
	Short: "Export an itinerary as an ICS calendar",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	importCmd.Flags().StringVar(&importURL, "url", "", "ICS URL or file path")
	importCmd.Flags().StringVar(&importSource, "source", "cli", "Source ID the imported events are grouped under")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default stdout)")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, closeStore, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	itineraryID := args[0]
	im := newImporter(conf, st)

	if importURL != "" {
		res, err := im.Sync(ctx, itineraryID, ics.Source{ID: importSource, URL: importURL})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %d, updated %d, deleted %d, skipped %d\n",
			res.Created, res.Updated, res.Deleted, res.Skipped)
		return nil
	}

	subs := subscriptions(conf.SubscriptionsFor(itineraryID))
	if len(subs) == 0 {
		return fmt.Errorf("no --url given and no subscriptions configured for %s", itineraryID)
	}
	return errors.Join(im.SyncAll(ctx, subs)...)
}

func runExport(cmd *cobra.Command, args []string) error {
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
	body, err := ics.Export(it, events, time.Now())
	if err != nil {
		return err
	}
	if exportOut == "" {
		_, err = cmd.OutOrStdout().Write(body)
		return err
	}
	return os.WriteFile(exportOut, body, 0o644)
}
