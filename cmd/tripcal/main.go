package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"tripcal/internal/config"
	appLog "tripcal/internal/log"
	"tripcal/internal/store"
)

const version = "0.1.0"

// Global flag values shared by every subcommand.
var (
	configPath string
	logLevel   string

	conf *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "tripcal",
	Short: "tripcal – multi-day itinerary calendar",
	Long: `tripcal keeps trip itineraries in a local SQLite file and lays their
events out on a multi-day calendar in the browser or the terminal.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	defaultConfig := os.Getenv("TRIPCAL_CONFIG")
	if defaultConfig == "" {
		defaultConfig = "config.yaml"
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfig, "Path to config file (env TRIPCAL_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, error (overrides config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(daysCmd)
	rootCmd.AddCommand(layoutCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(itineraryCmd)
}

func main() {
	// A missing .env is normal; anything else is worth a warning.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		appLog.Error("failed to load .env", err)
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	c, err := config.Load(configPath)
	if err != nil {
		if c == nil {
			return fmt.Errorf("load config %s: %w", configPath, err)
		}
		appLog.Error("failed to write default config", err, "config_path", configPath)
	}
	conf = c

	level := conf.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	appLog.SetLevel(appLog.ParseLevel(level))

	appLog.Debug("effective config",
		"command", cmd.Name(),
		"version", version,
		"listen", conf.Listen,
		"database_path", conf.DatabasePath,
		"redis", conf.RedisURL != "",
		"refresh", conf.RefreshCron,
		"subscriptions", len(conf.Subscriptions),
		"slot_minutes", conf.Calendar.SlotMinutes,
	)
	return nil
}

// openStore opens the database, with Redis fan-out when configured. The
// returned func closes everything that was opened.
func openStore(ctx context.Context) (*store.Store, func(), error) {
	var opts []store.Option
	var notifier *store.RedisNotifier
	if conf.RedisURL != "" {
		n, err := store.NewRedisNotifier(ctx, conf.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		notifier = n
		opts = append(opts, store.WithNotifier(n))
	}

	st, err := store.Open(conf.DatabasePath, opts...)
	if err != nil {
		if notifier != nil {
			notifier.Close()
		}
		return nil, nil, err
	}
	closeAll := func() {
		if err := st.Close(); err != nil {
			appLog.Error("failed to close store", err)
		}
		if notifier != nil {
			if err := notifier.Close(); err != nil {
				appLog.Error("failed to close redis notifier", err)
			}
		}
	}
	return st, closeAll, nil
}
