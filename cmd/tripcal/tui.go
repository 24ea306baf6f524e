package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	appLog "tripcal/internal/log"
	"tripcal/internal/tui"
)

var tuiLogFile string

var tuiCmd = &cobra.Command{
	Use:   "tui <itinerary-id>",
	Short: "Open an itinerary's calendar in the terminal",
	Args:  cobra.ExactArgs(1),
	RunE:  runTUI,
}

func init() {
	tuiCmd.Flags().StringVar(&tuiLogFile, "log-file", "tripcal-tui.log", "Where log lines go while the terminal UI is open")
}

func runTUI(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Logging to stderr would tear the screen.
	f, err := os.OpenFile(tuiLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	appLog.SetOutput(f)
	defer appLog.SetOutput(os.Stderr)

	st, closeStore, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	it, err := st.GetItinerary(ctx, args[0])
	if err != nil {
		return fmt.Errorf("itinerary %s: %w", args[0], err)
	}
	return tui.Run(ctx, st, it, conf.Calendar)
}
