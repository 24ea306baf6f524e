package main

import (
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"tripcal/internal/capture"
)

var (
	snapshotOut  string
	snapshotBase string
	snapshotTZ   string
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <itinerary-id>",
	Short: "Capture a PNG of an itinerary's calendar page from a running server",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshot,
}

func init() {
	snapshotCmd.Flags().StringVarP(&snapshotOut, "out", "o", "calendar.png", "Output PNG path")
	snapshotCmd.Flags().StringVar(&snapshotBase, "base-url", "", "Server base URL (default http://<listen>)")
	snapshotCmd.Flags().StringVar(&snapshotTZ, "tz", "", "IANA zone that decides which day is today")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	base := snapshotBase
	if base == "" {
		base = "http://" + conf.Listen
	}
	if ba := conf.BasicAuth; ba != nil && ba.Username != "" && ba.Password != "" {
		u, err := url.Parse(base)
		if err != nil {
			return err
		}
		u.User = url.UserPassword(ba.Username, ba.Password)
		base = u.String()
	}

	return capture.CalendarPNG(cmd.Context(), capture.Options{
		URL:        capture.CalendarURL(base, args[0], snapshotTZ),
		OutputPath: snapshotOut,
		Width:      conf.Snapshot.Width,
		Height:     conf.Snapshot.Height,
		Timeout:    time.Duration(conf.Snapshot.TimeoutSec) * time.Second,
	})
}
