package main

import (
	"context"
	"testing"

	"tripcal/internal/config"
	"tripcal/internal/ics"
)

func TestSubscriptions(t *testing.T) {
	got := subscriptions([]config.SubscriptionConfig{
		{ID: "flights", URL: "https://example.com/f.ics", ItineraryID: "trip"},
		{ID: "local", URL: "/tmp/plan.ics", ItineraryID: "other"},
	})
	want := []ics.Subscription{
		{Source: ics.Source{ID: "flights", URL: "https://example.com/f.ics"}, ItineraryID: "trip"},
		{Source: ics.Source{ID: "local", URL: "/tmp/plan.ics"}, ItineraryID: "other"},
	}
	if len(got) != len(want) {
		t.Fatalf("subscriptions = %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("subscription %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestStartRefreshRejectsBadSchedule(t *testing.T) {
	im := &ics.Importer{}
	if _, err := startRefresh(context.Background(), "every now and then", im, nil); err == nil {
		t.Error("invalid cron spec accepted")
	}
}

func TestLoadConfigWritesDefaults(t *testing.T) {
	configPath = t.TempDir() + "/config.yaml"
	logLevel = "error"
	if err := loadConfig(rootCmd, nil); err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if conf == nil || conf.Listen == "" || conf.Calendar.SlotMinutes != 60 {
		t.Errorf("conf = %+v", conf)
	}
}
