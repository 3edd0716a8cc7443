package app

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/dshills/evbus/internal/config"
	"github.com/dshills/evbus/internal/event"
	"github.com/dshills/evbus/internal/event/events"
	"github.com/dshills/evbus/internal/script"
)

// subscriptionManager registers the application's subscribers and removes
// them together on shutdown.
type subscriptionManager struct {
	app   *Application
	group *event.Group
}

func newSubscriptionManager(app *Application) *subscriptionManager {
	return &subscriptionManager{
		app:   app,
		group: event.NewGroup(app.bus),
	}
}

// setupSubscriptions registers all event subscriptions.
func (sm *subscriptionManager) setupSubscriptions(cfg *config.Config) error {
	// Login -> greeting first, then status update
	if err := sm.subscribeLogin(); err != nil {
		return err
	}

	// Logout -> reported once
	if err := sm.subscribeLogout(); err != nil {
		return err
	}

	// Data updates -> trace
	if err := sm.subscribeDataUpdates(); err != nil {
		return err
	}

	// Config reloads -> trace
	if err := sm.subscribeConfigReloads(); err != nil {
		return err
	}

	// Lua handlers
	return sm.subscribeScripts(cfg)
}

func (sm *subscriptionManager) subscribeLogin() error {
	if _, err := event.GroupOn(sm.group, events.UserLogin,
		sm.handleLoginHigh,
		event.WithPriority(event.PriorityHigh),
	); err != nil {
		return err
	}

	_, err := event.GroupOn(sm.group, events.UserLogin,
		sm.handleLoginNormal,
		event.WithPriority(event.PriorityNormal),
	)
	return err
}

func (sm *subscriptionManager) subscribeLogout() error {
	_, err := event.GroupOnce(sm.group, events.UserLogout, sm.handleLogout)
	return err
}

func (sm *subscriptionManager) subscribeDataUpdates() error {
	_, err := event.GroupOn(sm.group, events.DataUpdate,
		sm.handleDataUpdate,
		event.WithPriority(event.PriorityLow),
	)
	return err
}

func (sm *subscriptionManager) subscribeConfigReloads() error {
	_, err := event.GroupOn(sm.group, events.ConfigReloaded, sm.handleConfigReloaded)
	return err
}

// subscribeScripts registers every Lua handler from cfg.
func (sm *subscriptionManager) subscribeScripts(cfg *config.Config) error {
	for _, sc := range cfg.Scripts {
		if sc.Kind != config.ScriptHandler {
			continue
		}

		priority, err := config.ParsePriority(sc.Priority)
		if err != nil {
			return err
		}
		name := event.Name(sc.Event)
		h, err := script.Handler(sm.app.scripts, sc.Function, name)
		if err != nil {
			return fmt.Errorf("%s: %w", sc.File, err)
		}
		if _, err := sm.group.On(name, h, event.WithPriority(priority)); err != nil {
			return err
		}
	}
	return nil
}

func (sm *subscriptionManager) handleLoginHigh(_ context.Context, p events.Login) error {
	sm.app.trace.Printf("[HIGH] User %s logged in at %s", p.UserID, formatTime(p.Timestamp))
	return nil
}

func (sm *subscriptionManager) handleLoginNormal(_ context.Context, p events.Login) error {
	sm.app.trace.Printf("[NORMAL] Updating user status for %s", p.UserID)
	return nil
}

func (sm *subscriptionManager) handleLogout(_ context.Context, p events.Logout) error {
	sm.app.trace.Printf("User %s logged out at %s", p.UserID, formatTime(p.Timestamp))
	return nil
}

func (sm *subscriptionManager) handleDataUpdate(_ context.Context, p events.Update) error {
	fields := slices.Sorted(maps.Keys(p.Data))
	sm.app.trace.Printf("[DATA] Record %s updated (%s)", p.ID, strings.Join(fields, ", "))
	return nil
}

func (sm *subscriptionManager) handleConfigReloaded(_ context.Context, p events.Reloaded) error {
	if p.Err != "" {
		sm.app.trace.Printf("[CONFIG] Reload of %s rejected: %s", p.Path, p.Err)
		return nil
	}
	changed := "nothing"
	if len(p.Changed) > 0 {
		changed = strings.Join(p.Changed, ", ")
	}
	sm.app.trace.Printf("[CONFIG] Reloaded %s (changed: %s)", p.Path, changed)
	return nil
}

// cleanup unsubscribes all managed subscriptions.
func (sm *subscriptionManager) cleanup() error {
	return sm.group.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
