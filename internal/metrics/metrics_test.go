package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/evbus/internal/event"
)

func TestCollector_RecordEmission(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.RecordEmission("user:login", OutcomeOK, 0.001)
	c.RecordEmission("user:login", OutcomeOK, 0.002)
	c.RecordEmission("user:login", OutcomeError, 0.003)
	c.RecordEmission("", OutcomeShortCircuit, 0)

	assert.Equal(t, 2.0, c.Emissions("user:login", OutcomeOK))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.EmissionsTotal.WithLabelValues("user:login", OutcomeError)))
	assert.Equal(t, 1.0, c.Emissions("unknown", OutcomeShortCircuit))
	assert.Equal(t, 2, testutil.CollectAndCount(c.EmissionDuration))
}

func TestCollector_RecordReload(t *testing.T) {
	c := NewCollector(nil)

	c.RecordReload(true)
	c.RecordReload(false)
	c.RecordReload(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.ConfigReloadsTotal.WithLabelValues(ReloadApplied)))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.ConfigReloadsTotal.WithLabelValues(ReloadFailed)))
}

func TestCollector_ObserveBus(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	bus := event.NewBus()
	c.ObserveBus(bus)

	bus.On("x", event.HandlerFunc(func(ctx context.Context, payload any) error { return nil }))
	bus.On("y", event.HandlerFunc(func(ctx context.Context, payload any) error {
		return errors.New("fail")
	}))
	_ = bus.Emit(context.Background(), "x", nil)
	_ = bus.Emit(context.Background(), "y", nil)

	expected := `
# HELP evbus_handler_errors_total Total number of handler invocations that returned an error.
# TYPE evbus_handler_errors_total counter
evbus_handler_errors_total 1
# HELP evbus_handlers_executed_total Total number of handler invocations.
# TYPE evbus_handlers_executed_total counter
evbus_handlers_executed_total 2
# HELP evbus_subscribers Current number of registered subscribers across all events.
# TYPE evbus_subscribers gauge
evbus_subscribers 2
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"evbus_handler_errors_total", "evbus_handlers_executed_total", "evbus_subscribers")
	require.NoError(t, err)
}

func TestPromhttpExposure(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordEmission("data:update", OutcomeOK, 0.01)

	rec := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `evbus_emissions_total{event="data:update",outcome="ok"} 1`)
}
