package app

import (
	"context"
	"fmt"

	"github.com/dshills/evbus/internal/event"
	"github.com/dshills/evbus/internal/event/events"
)

// DemoUser is the user the demo scenario logs in and out.
const DemoUser = "user123"

// RunDemo emits the demo scenario: a login, a logout, a second logout that
// the once subscriber no longer sees, and a data update. Each emission is
// announced on the trace before it is sent. The first failing emission
// stops the scenario.
func (app *Application) RunDemo(ctx context.Context) error {
	app.mu.RLock()
	closed := app.closed
	app.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	now := app.opts.Clock()
	steps := []struct {
		name event.Name
		emit func() error
	}{
		{events.UserLogin.Name(), func() error {
			return event.Emit(ctx, app.bus, events.UserLogin, events.Login{UserID: DemoUser, Timestamp: now})
		}},
		{events.UserLogout.Name(), func() error {
			return event.Emit(ctx, app.bus, events.UserLogout, events.Logout{UserID: DemoUser, Timestamp: now})
		}},
		{events.UserLogout.Name(), func() error {
			return event.Emit(ctx, app.bus, events.UserLogout, events.Logout{UserID: DemoUser, Timestamp: now})
		}},
		{events.DataUpdate.Name(), func() error {
			return event.Emit(ctx, app.bus, events.DataUpdate, events.Update{
				ID:   "profile:" + DemoUser,
				Data: map[string]any{"status": "online", "visits": 1},
			})
		}},
	}

	for i, step := range steps {
		app.trace.Printf("> emit %s", step.name)
		if err := step.emit(); err != nil {
			app.logger.Error().Err(err).Int("step", i+1).Msg("demo emission failed")
			return fmt.Errorf("demo step %d (%s): %w", i+1, step.name, err)
		}
	}

	stats := app.bus.Stats()
	app.logger.Info().
		Uint64("emissions", stats.Emissions).
		Uint64("handlers", stats.HandlersExecuted).
		Msg("demo finished")
	return nil
}
