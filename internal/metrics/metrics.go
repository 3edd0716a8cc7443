// Package metrics provides Prometheus metrics for the event bus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/dshills/evbus/internal/event"
)

// Emission outcomes used as the "outcome" label.
const (
	OutcomeOK           = "ok"
	OutcomeError        = "error"
	OutcomeShortCircuit = "short_circuit"
)

// Config reload results used as the "result" label.
const (
	ReloadApplied = "applied"
	ReloadFailed  = "failed"
)

// Collector holds the bus metrics registered on one Registerer.
// Labels are limited to event names; no payload data ends up in labels.
type Collector struct {
	reg prometheus.Registerer

	// EmissionsTotal counts emissions by event name and outcome.
	EmissionsTotal *prometheus.CounterVec

	// EmissionDuration observes how long an emission took end to end.
	EmissionDuration *prometheus.HistogramVec

	// ConfigReloadsTotal counts configuration reloads by result.
	ConfigReloadsTotal *prometheus.CounterVec
}

// NewCollector registers the bus metrics on reg. A nil reg uses a fresh
// private registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Collector{
		reg: reg,
		EmissionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "evbus_emissions_total",
			Help: "Total number of emissions, by event and outcome.",
		}, []string{"event", "outcome"}),
		EmissionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "evbus_emission_duration_seconds",
			Help:    "Time spent in one emission including middleware, by event.",
			Buckets: prometheus.ExponentialBuckets(0.00005, 4, 10),
		}, []string{"event"}),
		ConfigReloadsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "evbus_config_reloads_total",
			Help: "Total number of configuration reloads, by result.",
		}, []string{"result"}),
	}
}

// RecordEmission records one finished emission.
func (c *Collector) RecordEmission(name event.Name, outcome string, seconds float64) {
	if name == "" {
		name = "unknown"
	}
	c.EmissionsTotal.WithLabelValues(string(name), outcome).Inc()
	c.EmissionDuration.WithLabelValues(string(name)).Observe(seconds)
}

// RecordReload records a configuration reload.
func (c *Collector) RecordReload(applied bool) {
	result := ReloadApplied
	if !applied {
		result = ReloadFailed
	}
	c.ConfigReloadsTotal.WithLabelValues(result).Inc()
}

// ObserveBus exports the bus's own statistics as gauge and counter funcs
// that are read on every scrape.
func (c *Collector) ObserveBus(b *event.Bus) {
	f := promauto.With(c.reg)

	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "evbus_subscribers",
		Help: "Current number of registered subscribers across all events.",
	}, func() float64 {
		return float64(b.Stats().Subscribers)
	})
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "evbus_middleware",
		Help: "Number of middleware installed on the bus.",
	}, func() float64 {
		return float64(b.Middleware())
	})
	f.NewCounterFunc(prometheus.CounterOpts{
		Name: "evbus_handlers_executed_total",
		Help: "Total number of handler invocations.",
	}, func() float64 {
		return float64(b.Stats().HandlersExecuted)
	})
	f.NewCounterFunc(prometheus.CounterOpts{
		Name: "evbus_handler_errors_total",
		Help: "Total number of handler invocations that returned an error.",
	}, func() float64 {
		return float64(b.Stats().HandlerErrors)
	})
	f.NewCounterFunc(prometheus.CounterOpts{
		Name: "evbus_handler_panics_total",
		Help: "Total number of handler invocations that panicked.",
	}, func() float64 {
		return float64(b.Stats().HandlerPanics)
	})
}

// Emissions returns the current emission count for name and outcome.
func (c *Collector) Emissions(name event.Name, outcome string) float64 {
	var m dto.Metric
	if err := c.EmissionsTotal.WithLabelValues(string(name), outcome).Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}
