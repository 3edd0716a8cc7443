package app

import (
	"context"
	"errors"
	"slices"

	"github.com/dshills/evbus/internal/config"
	"github.com/dshills/evbus/internal/event"
	"github.com/dshills/evbus/internal/event/events"
	"github.com/dshills/evbus/internal/log"
)

// ErrNoConfigFile indicates a reload was requested without a config file.
var ErrNoConfigFile = errors.New("no config file")

// liveSections can be applied without rebuilding the bus.
var liveSections = []string{"log"}

// Watch reloads the configuration file whenever it changes until ctx is
// done. Without a config file it only waits for ctx.
func (app *Application) Watch(ctx context.Context) error {
	if app.holder.Path() == "" {
		app.logger.Info().Msg("config watching disabled (no config file)")
		<-ctx.Done()
		return nil
	}
	return app.holder.Watch(ctx)
}

// Reload re-reads the configuration file now.
func (app *Application) Reload() error {
	if app.holder.Path() == "" {
		return ErrNoConfigFile
	}
	return app.holder.Reload()
}

// handleReload applies what can change at runtime and announces the reload
// on the bus as config:reloaded.
func (app *Application) handleReload(cfg *config.Config, changed []string, err error) {
	app.collector.RecordReload(err == nil)

	payload := events.Reloaded{Path: app.holder.Path(), Changed: changed}
	if err != nil {
		payload.Err = err.Error()
	} else {
		app.applyLive(cfg, changed)
	}

	if emitErr := event.Emit(context.Background(), app.bus, events.ConfigReloaded, payload); emitErr != nil {
		app.logger.Error().Err(emitErr).Str(log.FieldEvent, events.ConfigReloaded.String()).Msg("reload notification failed")
	}
}

// applyLive applies the log level and warns about sections that only take
// effect after a restart.
func (app *Application) applyLive(cfg *config.Config, changed []string) {
	if slices.Contains(changed, "log") {
		level := log.SetLevel(cfg.Log.Level)
		app.logger.Info().Str("level", level.String()).Msg("log level applied")
	}

	var pending []string
	for _, section := range changed {
		if !slices.Contains(liveSections, section) {
			pending = append(pending, section)
		}
	}
	if len(pending) > 0 {
		app.logger.Warn().Strs(log.FieldChanged, pending).Msg("restart required to apply changes")
	}
}
