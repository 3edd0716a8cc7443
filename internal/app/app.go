// Package app wires the event bus to its configuration, middleware, Lua
// scripts, metrics and tracing, and runs the demo subscribers on top.
package app

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/dshills/evbus/internal/config"
	"github.com/dshills/evbus/internal/event"
	"github.com/dshills/evbus/internal/metrics"
	"github.com/dshills/evbus/internal/script"
	"github.com/dshills/evbus/internal/telemetry"
)

// Application owns one event bus and everything attached to it.
type Application struct {
	mu sync.RWMutex

	// Core infrastructure
	bus    *event.Bus
	holder *config.Holder
	logger zerolog.Logger

	// Observability
	registry  *prometheus.Registry
	collector *metrics.Collector
	tracing   *telemetry.Provider

	// Extensions
	scripts *script.State

	// Subscribers
	subs  *subscriptionManager
	trace *Trace

	closed bool
	opts   Options
}

// Options configures the application.
type Options struct {
	// Config is the configuration to run with. Nil means config.Default.
	Config *config.Config

	// ConfigPath is the file Config was loaded from. Watch reloads it.
	ConfigPath string

	// Version is reported as the service version in traces.
	Version string

	// Output receives the demo subscribers' trace lines. Nil discards them.
	Output io.Writer

	// Clock stamps demo payloads. Nil means time.Now.
	Clock func() time.Time

	// SpanExporter, when set, receives spans synchronously and enables
	// tracing regardless of the telemetry section.
	SpanExporter sdktrace.SpanExporter

	// Logger is the application logger. The zero value uses the base
	// logger with component "app".
	Logger *zerolog.Logger
}

// New creates an Application from opts. Every component is started before
// New returns; on failure the ones already started are shut down.
func New(ctx context.Context, opts Options) (*Application, error) {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Output == nil {
		opts.Output = io.Discard
	}

	app := &Application{
		opts:  opts,
		trace: NewTrace(opts.Output),
	}

	if err := newBootstrapper(app).bootstrap(ctx); err != nil {
		return nil, err
	}
	return app, nil
}

// Bus returns the application's event bus.
func (app *Application) Bus() *event.Bus {
	return app.bus
}

// Config returns the configuration in effect.
func (app *Application) Config() *config.Config {
	return app.holder.Get()
}

// Gatherer returns the registry holding the application's metrics.
func (app *Application) Gatherer() prometheus.Gatherer {
	return app.registry
}

// Collector returns the application's metrics collector.
func (app *Application) Collector() *metrics.Collector {
	return app.collector
}

// Trace returns the lines written by the demo subscribers.
func (app *Application) Trace() *Trace {
	return app.trace
}

// Logger returns the application logger.
func (app *Application) Logger() zerolog.Logger {
	return app.logger
}

// Emit publishes payload under name on the application's bus.
func (app *Application) Emit(ctx context.Context, name event.Name, payload any) error {
	app.mu.RLock()
	closed := app.closed
	app.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	return app.bus.Emit(ctx, name, payload)
}

// Shutdown removes every subscriber, closes the Lua state and flushes
// pending spans. It is safe to call more than once.
func (app *Application) Shutdown(ctx context.Context) error {
	app.mu.Lock()
	if app.closed {
		app.mu.Unlock()
		return nil
	}
	app.closed = true
	app.mu.Unlock()

	var errs []error
	if app.subs != nil {
		errs = append(errs, app.subs.cleanup())
	}
	if app.scripts != nil {
		errs = append(errs, app.scripts.Close())
	}
	if app.tracing != nil {
		errs = append(errs, app.tracing.Shutdown(ctx))
	}

	app.logger.Info().Msg("application stopped")
	return errors.Join(errs...)
}
