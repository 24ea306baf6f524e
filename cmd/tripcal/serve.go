package main

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"tripcal/internal/config"
	"tripcal/internal/ics"
	appLog "tripcal/internal/log"
	"tripcal/internal/web"
)

var (
	serveListen    string
	serveNoRefresh bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and calendar pages",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "HTTP listen address (overrides config if set)")
	serveCmd.Flags().BoolVar(&serveNoRefresh, "no-refresh", false, "Do not refresh ICS subscriptions")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if serveListen != "" {
		conf.Listen = serveListen
	}

	st, closeStore, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if !serveNoRefresh && len(conf.Subscriptions) > 0 {
		im := newImporter(conf, st)
		subs := subscriptions(conf.Subscriptions)
		stopRefresh, err := startRefresh(ctx, conf.RefreshCron, im, subs)
		if err != nil {
			return err
		}
		defer stopRefresh()
	}

	appLog.Info("tripcal serving", "version", version, "listen", conf.Listen)
	return web.StartServer(ctx, conf, st)
}

func newImporter(cfg *config.Config, st ics.ImportStore) *ics.Importer {
	return &ics.Importer{
		Fetcher:  ics.NewFetcher(cfg.ICSCacheDir),
		Store:    st,
		Location: time.Local,
	}
}

func subscriptions(cfgs []config.SubscriptionConfig) []ics.Subscription {
	subs := make([]ics.Subscription, 0, len(cfgs))
	for _, s := range cfgs {
		subs = append(subs, ics.Subscription{
			Source:      ics.Source{ID: s.ID, URL: s.URL},
			ItineraryID: s.ItineraryID,
		})
	}
	return subs
}

// startRefresh syncs every subscription once in the background and then on
// the cron schedule. The returned func waits for a running sync to finish.
func startRefresh(ctx context.Context, spec string, im *ics.Importer, subs []ics.Subscription) (func(), error) {
	refresh := func() {
		if errs := im.SyncAll(ctx, subs); len(errs) > 0 {
			appLog.Error("subscription refresh incomplete", errs[0], "failed", len(errs), "total", len(subs))
		}
	}

	c := cron.New()
	if _, err := c.AddFunc(spec, refresh); err != nil {
		return nil, err
	}
	c.Start()
	go refresh()

	appLog.Info("subscription refresh scheduled", "spec", spec, "subscriptions", len(subs))
	return func() { <-c.Stop().Done() }, nil
}
