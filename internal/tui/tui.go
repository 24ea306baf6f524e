package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"tripcal/internal/config"
	appLog "tripcal/internal/log"
	"tripcal/internal/model"
)

// Run starts the terminal calendar and blocks until the user quits or ctx
// is cancelled. Pending writes are flushed before it returns.
func Run(ctx context.Context, st Store, it model.Itinerary, cal config.CalendarConfig) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m, err := New(ctx, st, it, cal)
	if err != nil {
		return err
	}
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	_, err = p.Run()
	m.Wait()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	if err != nil {
		appLog.Error("tui exited with error", err, "itinerary_id", it.ID)
	}
	return err
}
