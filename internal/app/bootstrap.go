package app

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/dshills/evbus/internal/config"
	"github.com/dshills/evbus/internal/event"
	"github.com/dshills/evbus/internal/log"
	"github.com/dshills/evbus/internal/metrics"
	"github.com/dshills/evbus/internal/middleware"
	"github.com/dshills/evbus/internal/script"
	"github.com/dshills/evbus/internal/telemetry"
)

// traceField is the JSON path the stamp middleware writes trace IDs to.
const traceField = "_traceId"

// bootstrapper handles component initialization with proper cleanup on failure.
type bootstrapper struct {
	app       *Application
	cfg       *config.Config
	initOrder []string
}

func newBootstrapper(app *Application) *bootstrapper {
	return &bootstrapper{
		app:       app,
		cfg:       app.opts.Config,
		initOrder: make([]string, 0, 6),
	}
}

// bootstrap initializes all components in dependency order.
// On failure, it cleans up already-initialized components.
func (b *bootstrapper) bootstrap(ctx context.Context) error {
	steps := []struct {
		name string
		init func(context.Context) error
	}{
		{"logger", b.initLogger},
		{"telemetry", b.initTelemetry},
		{"metrics", b.initMetrics},
		{"bus", b.initBus},
		{"scripts", b.initScripts},
		{"middleware", b.initMiddleware},
		{"subscriptions", b.initSubscriptions},
		{"config", b.initConfig},
	}

	for _, step := range steps {
		if err := step.init(ctx); err != nil {
			b.cleanup()
			return &InitError{Component: step.name, Err: err}
		}
		b.initOrder = append(b.initOrder, step.name)
	}

	b.app.logger.Info().
		Int("middleware", b.app.bus.Middleware()).
		Int("events", len(b.app.bus.Names())).
		Msg("application started")
	return nil
}

func (b *bootstrapper) initLogger(context.Context) error {
	b.app.logger = b.component("app")
	return nil
}

// component returns a child of the application's root logger.
func (b *bootstrapper) component(name string) zerolog.Logger {
	return loggerOrBase(b.app.opts.Logger).With().Str(log.FieldComponent, name).Logger()
}

func (b *bootstrapper) initTelemetry(ctx context.Context) error {
	tc := b.cfg.Telemetry
	provider, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        tc.Enabled || b.app.opts.SpanExporter != nil,
		ServiceName:    b.cfg.Log.Service,
		ServiceVersion: b.app.opts.Version,
		ExporterType:   tc.Exporter,
		Endpoint:       tc.Endpoint,
		SamplingRate:   tc.SamplingRate,
		Exporter:       b.app.opts.SpanExporter,
	})
	if err != nil {
		return err
	}
	b.app.tracing = provider
	return nil
}

func (b *bootstrapper) initMetrics(context.Context) error {
	b.app.registry = prometheus.NewRegistry()
	b.app.collector = metrics.NewCollector(b.app.registry)
	return nil
}

func (b *bootstrapper) initBus(context.Context) error {
	var opts []event.BusOption
	if b.cfg.Bus.LogPanics {
		logger := b.app.logger
		opts = append(opts, event.WithPanicHandler(func(name event.Name, payload any, recovered any, stack []byte) {
			logger.Error().
				Str(log.FieldEvent, name.String()).
				Interface("panic", recovered).
				Bytes("stack", stack).
				Msg("handler panicked")
		}))
	}

	b.app.bus = event.NewBus(opts...)
	b.app.collector.ObserveBus(b.app.bus)
	return nil
}

func (b *bootstrapper) initScripts(context.Context) error {
	files := b.cfg.ScriptFiles()
	if len(files) == 0 {
		return nil
	}

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = b.scriptPath(f)
	}

	state, err := script.Load(paths, script.WithLogger(b.component("script")))
	if err != nil {
		return err
	}
	b.app.scripts = state
	return nil
}

// scriptPath resolves a relative script path against the config file's
// directory.
func (b *bootstrapper) scriptPath(file string) string {
	if filepath.IsAbs(file) || b.app.opts.ConfigPath == "" {
		return file
	}
	return filepath.Join(filepath.Dir(b.app.opts.ConfigPath), file)
}

func (b *bootstrapper) initMiddleware(context.Context) error {
	for _, name := range b.cfg.Middleware {
		mws, err := b.middlewareFor(name)
		if err != nil {
			return err
		}
		for _, mw := range mws {
			b.app.bus.Use(mw)
		}
	}
	return nil
}

// middlewareFor builds the middleware installed for one entry of the
// middleware list. The script entry expands to every Lua middleware in
// configuration order.
func (b *bootstrapper) middlewareFor(name string) ([]event.Middleware, error) {
	busLogger := b.component("bus")

	switch name {
	case config.MiddlewareRecover:
		return []event.Middleware{middleware.Recover()}, nil
	case config.MiddlewareMetrics:
		return []event.Middleware{middleware.Metrics(b.app.collector)}, nil
	case config.MiddlewareLogger:
		return []event.Middleware{middleware.Logger(busLogger)}, nil
	case config.MiddlewareErrors:
		return []event.Middleware{middleware.LogErrors(busLogger)}, nil
	case config.MiddlewareTracing:
		return []event.Middleware{middleware.Tracing(b.app.tracing.Tracer("github.com/dshills/evbus"))}, nil
	case config.MiddlewareStamp:
		return []event.Middleware{middleware.StampJSON(traceField)}, nil
	case config.MiddlewareFilter:
		return []event.Middleware{b.filter()}, nil
	case config.MiddlewareScript:
		return b.scriptMiddleware()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMiddleware, name)
	}
}

// filter drops emissions whose payload has a denied value at the
// configured path.
func (b *bootstrapper) filter() event.Middleware {
	fc := b.cfg.Filter
	deny := slices.Clone(fc.Deny)
	gate := middleware.MatchJSON(fc.Path, func(r gjson.Result) bool {
		return !slices.Contains(deny, r.String())
	})

	names := make([]event.Name, len(fc.Events))
	for i, n := range fc.Events {
		names[i] = event.Name(n)
	}
	return middleware.ForNames(gate, names...)
}

func (b *bootstrapper) scriptMiddleware() ([]event.Middleware, error) {
	var mws []event.Middleware
	for _, sc := range b.cfg.Scripts {
		if sc.Kind != config.ScriptMiddleware {
			continue
		}
		mw, err := script.Middleware(b.app.scripts, sc.Function)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", sc.File, err)
		}
		mws = append(mws, mw)
	}
	return mws, nil
}

func (b *bootstrapper) initSubscriptions(context.Context) error {
	b.app.subs = newSubscriptionManager(b.app)
	return b.app.subs.setupSubscriptions(b.cfg)
}

func (b *bootstrapper) initConfig(context.Context) error {
	b.app.holder = config.NewHolder(b.app.opts.ConfigPath, b.cfg,
		config.WithLogger(b.component("config")))
	b.app.holder.OnReload(b.app.handleReload)
	return nil
}

// cleanup shuts down initialized components in reverse order.
func (b *bootstrapper) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := len(b.initOrder) - 1; i >= 0; i-- {
		b.cleanupComponent(ctx, b.initOrder[i])
	}
}

func (b *bootstrapper) cleanupComponent(ctx context.Context, component string) {
	switch component {
	case "telemetry":
		if err := b.app.tracing.Shutdown(ctx); err != nil {
			b.app.logger.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	case "scripts":
		if b.app.scripts != nil {
			_ = b.app.scripts.Close()
		}
	case "subscriptions":
		_ = b.app.subs.cleanup()
	}
}

// loggerOrBase returns l when set and the base logger otherwise.
func loggerOrBase(l *zerolog.Logger) zerolog.Logger {
	if l != nil {
		return *l
	}
	return log.Base()
}
