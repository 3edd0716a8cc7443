package app

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/dshills/evbus/internal/config"
	"github.com/dshills/evbus/internal/event"
	"github.com/dshills/evbus/internal/event/events"
	"github.com/dshills/evbus/internal/log"
	"github.com/dshills/evbus/internal/metrics"
)

var fixedTime = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func newApp(t *testing.T, opts Options) *Application {
	t.Helper()
	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return fixedTime }
	}

	app, err := New(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Shutdown(context.Background()) })
	return app
}

// writeConfig writes files into a temp dir and loads evbus.toml from it.
func writeConfig(t *testing.T, files map[string]string) (*config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	path := filepath.Join(dir, "evbus.toml")
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg, path
}

func TestNew_Defaults(t *testing.T) {
	app := newApp(t, Options{})
	bus := app.Bus()

	assert.Equal(t, len(config.Default().Middleware), bus.Middleware())
	assert.Equal(t, 2, bus.Subscribers(events.UserLogin.Name()))
	assert.Equal(t, 1, bus.Subscribers(events.UserLogout.Name()))
	assert.Equal(t, 1, bus.Subscribers(events.DataUpdate.Name()))
	assert.Equal(t, 1, bus.Subscribers(events.ConfigReloaded.Name()))
	assert.Equal(t, config.Default(), app.Config())
	assert.NotNil(t, app.Gatherer())
}

func TestRunDemo_Golden(t *testing.T) {
	var out bytes.Buffer
	app := newApp(t, Options{Output: &out})

	require.NoError(t, app.RunDemo(context.Background()))

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "demo", out.Bytes())
	assert.Equal(t, strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n"), app.Trace().Lines())
}

func TestRunDemo_OnceSubscriberConsumed(t *testing.T) {
	app := newApp(t, Options{})
	require.NoError(t, app.RunDemo(context.Background()))

	assert.Zero(t, app.Bus().Subscribers(events.UserLogout.Name()))
	assert.Equal(t, 2, app.Bus().Subscribers(events.UserLogin.Name()))

	stats := app.Bus().Stats()
	assert.Equal(t, uint64(4), stats.Emissions)
	assert.Equal(t, uint64(4), stats.HandlersExecuted)
	assert.Zero(t, stats.FailedEmissions)
}

func TestRunDemo_Metrics(t *testing.T) {
	app := newApp(t, Options{})
	require.NoError(t, app.RunDemo(context.Background()))

	c := app.Collector()
	assert.Equal(t, 1.0, c.Emissions(events.UserLogin.Name(), metrics.OutcomeOK))
	assert.Equal(t, 2.0, c.Emissions(events.UserLogout.Name(), metrics.OutcomeOK))
	assert.Equal(t, 1.0, c.Emissions(events.DataUpdate.Name(), metrics.OutcomeOK))

	count, err := testutil.GatherAndCount(app.Gatherer(), "evbus_handlers_executed_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRunDemo_Spans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	app := newApp(t, Options{SpanExporter: exporter})

	require.NoError(t, app.RunDemo(context.Background()))

	var names []string
	for _, span := range exporter.GetSpans() {
		names = append(names, span.Name)
	}
	assert.Equal(t, []string{"emit user:login", "emit user:logout", "emit user:logout", "emit data:update"}, names)
}

func TestRunDemo_HandlerFailureStops(t *testing.T) {
	app := newApp(t, Options{})
	event.OnFunc(app.Bus(), events.UserLogout, func(ctx context.Context, p events.Logout) error {
		return assert.AnError
	}, event.WithPriority(event.PriorityHigh))

	err := app.RunDemo(context.Background())
	require.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "demo step 2 (user:logout)")

	var herr *event.HandlerError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, events.UserLogout.Name(), herr.Name)
}

func TestDefaultMiddleware_ErrorLogCarriesIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	app := newApp(t, Options{Logger: &logger})
	event.OnFunc(app.Bus(), events.UserLogout, func(ctx context.Context, p events.Logout) error {
		return assert.AnError
	}, event.WithPriority(event.PriorityHigh))

	err := event.Emit(context.Background(), app.Bus(), events.UserLogout, events.Logout{UserID: DemoUser})
	require.ErrorIs(t, err, assert.AnError)

	var failed map[string]any
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(raw), &entry))
		if entry["message"] == "emission failed" {
			failed = entry
		}
	}
	require.NotNil(t, failed, buf.String())
	assert.NotEmpty(t, failed[log.FieldTraceID])
	assert.NotEmpty(t, failed[log.FieldEmissionID])
}

func TestShutdown(t *testing.T) {
	app := newApp(t, Options{})

	require.NoError(t, app.Shutdown(context.Background()))
	require.NoError(t, app.Shutdown(context.Background()))

	assert.Zero(t, app.Bus().Subscribers(events.UserLogin.Name()))
	assert.ErrorIs(t, app.Emit(context.Background(), "x", nil), ErrClosed)
	assert.ErrorIs(t, app.RunDemo(context.Background()), ErrClosed)
}

const hooksLua = `
seen = {}

function audit(payload, name)
	table.insert(seen, name .. ":" .. payload.userId)
end

function guests(name, payload)
	if name == "user:login" and payload.userId == "guest" then
		return false
	end
	return nil
end
`

const hooksConfig = `
middleware = ["recover", "filter", "script"]

[filter]
path = "userId"
deny = ["banned"]
events = ["user:login"]

[[scripts]]
file = "hooks.lua"
function = "audit"
kind = "handler"
event = "user:login"
priority = "low"

[[scripts]]
file = "hooks.lua"
function = "guests"
kind = "middleware"
`

func TestNew_FilterAndScripts(t *testing.T) {
	cfg, path := writeConfig(t, map[string]string{
		"evbus.toml": hooksConfig,
		"hooks.lua":  hooksLua,
	})
	app := newApp(t, Options{Config: cfg, ConfigPath: path})

	assert.Equal(t, 3, app.Bus().Middleware())
	assert.Equal(t, 3, app.Bus().Subscribers(events.UserLogin.Name()))

	for _, id := range []string{"user123", "banned", "guest"} {
		require.NoError(t, event.Emit(context.Background(), app.Bus(), events.UserLogin,
			events.Login{UserID: id, Timestamp: fixedTime}))
	}

	assert.Equal(t, []string{
		"[HIGH] User user123 logged in at 2024-01-02T03:04:05Z",
		"[NORMAL] Updating user status for user123",
	}, app.Trace().Lines())
	assert.Equal(t, []any{"user:login:user123"}, app.scripts.GetGlobal("seen"))
	assert.Equal(t, uint64(2), app.Bus().Stats().ShortCircuits)
}

func TestNew_InitError(t *testing.T) {
	cfg, path := writeConfig(t, map[string]string{
		"evbus.toml": hooksConfig,
	})

	nop := zerolog.Nop()
	_, err := New(context.Background(), Options{Config: cfg, ConfigPath: path, Logger: &nop})

	var ierr *InitError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, "scripts", ierr.Component)
}

func TestReload(t *testing.T) {
	cfg, path := writeConfig(t, map[string]string{
		"evbus.toml": "[filter]\npath = \"userId\"\n",
	})
	app := newApp(t, Options{Config: cfg, ConfigPath: path})

	require.NoError(t, os.WriteFile(path, []byte("[filter]\npath = \"userId\"\ndeny = [\"x\"]\n"), 0o600))
	require.NoError(t, app.Reload())
	assert.Equal(t, []string{"x"}, app.Config().Filter.Deny)

	require.NoError(t, os.WriteFile(path, []byte("middleware = [\"nope\"]\n"), 0o600))
	require.Error(t, app.Reload())
	assert.Equal(t, []string{"x"}, app.Config().Filter.Deny)

	lines := app.Trace().Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "[CONFIG] Reloaded "+path+" (changed: filter)", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "[CONFIG] Reload of "+path+" rejected: "), lines[1])

	reloads := app.Collector().ConfigReloadsTotal
	assert.Equal(t, 1.0, testutil.ToFloat64(reloads.WithLabelValues(metrics.ReloadApplied)))
	assert.Equal(t, 1.0, testutil.ToFloat64(reloads.WithLabelValues(metrics.ReloadFailed)))
}

func TestReload_NoConfigFile(t *testing.T) {
	app := newApp(t, Options{})
	assert.ErrorIs(t, app.Reload(), ErrNoConfigFile)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, app.Watch(ctx))
}
