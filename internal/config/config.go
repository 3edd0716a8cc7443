// Package config loads, validates and watches the evbus configuration.
//
// Configuration files are TOML (.toml) or YAML (.yaml, .yml). Missing keys
// keep their defaults, and EVBUS_LOG_LEVEL overrides log.level.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strconv"

	"github.com/dshills/evbus/internal/event"
	"github.com/dshills/evbus/internal/log"
)

// Middleware names accepted in the middleware list.
const (
	MiddlewareRecover = "recover"
	MiddlewareMetrics = "metrics"
	MiddlewareLogger  = "logger"
	MiddlewareErrors  = "errors"
	MiddlewareTracing = "tracing"
	MiddlewareStamp   = "stamp"
	MiddlewareFilter  = "filter"
	MiddlewareScript  = "script"
)

// Script kinds.
const (
	ScriptHandler    = "handler"
	ScriptMiddleware = "middleware"
)

var knownMiddleware = []string{
	MiddlewareRecover, MiddlewareMetrics, MiddlewareLogger, MiddlewareErrors,
	MiddlewareTracing, MiddlewareStamp, MiddlewareFilter, MiddlewareScript,
}

// Config is the complete evbus configuration.
type Config struct {
	Log        LogConfig       `toml:"log" yaml:"log"`
	Bus        BusConfig       `toml:"bus" yaml:"bus"`
	Middleware []string        `toml:"middleware" yaml:"middleware"`
	Telemetry  TelemetryConfig `toml:"telemetry" yaml:"telemetry"`
	Metrics    MetricsConfig   `toml:"metrics" yaml:"metrics"`
	Filter     FilterConfig    `toml:"filter" yaml:"filter"`
	Scripts    []ScriptConfig  `toml:"scripts" yaml:"scripts"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level   string `toml:"level" yaml:"level"`
	Service string `toml:"service" yaml:"service"`
}

// BusConfig configures the event bus.
type BusConfig struct {
	// LogPanics logs recovered handler panics with their stack.
	LogPanics bool `toml:"log_panics" yaml:"log_panics"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `toml:"enabled" yaml:"enabled"`
	Exporter     string  `toml:"exporter" yaml:"exporter"`
	Endpoint     string  `toml:"endpoint" yaml:"endpoint"`
	SamplingRate float64 `toml:"sampling_rate" yaml:"sampling_rate"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the address /metrics is served on by the watch command.
	Listen string `toml:"listen" yaml:"listen"`
}

// FilterConfig configures the filter middleware. Emissions whose payload
// has one of Deny at Path are dropped.
type FilterConfig struct {
	Path string   `toml:"path" yaml:"path"`
	Deny []string `toml:"deny" yaml:"deny"`
	// Events limits the filter to these event names; empty means all.
	Events []string `toml:"events" yaml:"events"`
}

// ScriptConfig binds a Lua function to the bus.
type ScriptConfig struct {
	File     string `toml:"file" yaml:"file"`
	Function string `toml:"function" yaml:"function"`
	Kind     string `toml:"kind" yaml:"kind"`
	// Event and Priority apply to handlers only.
	Event    string `toml:"event" yaml:"event"`
	Priority string `toml:"priority" yaml:"priority"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:   "info",
			Service: "evbus",
		},
		Middleware: []string{
			MiddlewareRecover,
			MiddlewareMetrics,
			MiddlewareTracing,
			MiddlewareLogger,
			MiddlewareErrors,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
		Metrics: MetricsConfig{
			Listen: ":9464",
		},
	}
}

// Validate checks the configuration and returns every problem found,
// joined into one error.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(path, msg string, value any) {
		errs = append(errs, &ValidationError{Path: path, Message: msg, Value: value})
	}

	if err := log.ValidateLevel(c.Log.Level); err != nil {
		invalid("log.level", "unknown level", c.Log.Level)
	}

	seen := make(map[string]bool, len(c.Middleware))
	for i, name := range c.Middleware {
		path := fmt.Sprintf("middleware[%d]", i)
		switch {
		case !slices.Contains(knownMiddleware, name):
			invalid(path, "unknown middleware", name)
		case seen[name]:
			invalid(path, "duplicate middleware", name)
		}
		seen[name] = true
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Exporter != "grpc" && c.Telemetry.Exporter != "http" {
			invalid("telemetry.exporter", "must be grpc or http", c.Telemetry.Exporter)
		}
		if c.Telemetry.Endpoint == "" {
			invalid("telemetry.endpoint", "required when telemetry is enabled", c.Telemetry.Endpoint)
		}
	}
	if c.Telemetry.SamplingRate < 0 || c.Telemetry.SamplingRate > 1 {
		invalid("telemetry.sampling_rate", "must be between 0 and 1", c.Telemetry.SamplingRate)
	}

	if seen[MiddlewareFilter] && c.Filter.Path == "" {
		invalid("filter.path", "required when the filter middleware is enabled", c.Filter.Path)
	}

	for i, s := range c.Scripts {
		path := fmt.Sprintf("scripts[%d]", i)
		if s.File == "" {
			invalid(path+".file", "required", s.File)
		}
		if s.Function == "" {
			invalid(path+".function", "required", s.Function)
		}
		switch s.Kind {
		case ScriptHandler:
			if s.Event == "" {
				invalid(path+".event", "required for handlers", s.Event)
			}
			if _, err := ParsePriority(s.Priority); err != nil {
				invalid(path+".priority", err.Error(), s.Priority)
			}
		case ScriptMiddleware:
			if !seen[MiddlewareScript] {
				invalid(path+".kind", "middleware scripts need \"script\" in the middleware list", s.Kind)
			}
		default:
			invalid(path+".kind", "must be handler or middleware", s.Kind)
		}
	}

	return errors.Join(errs...)
}

// ParsePriority parses "low", "normal", "high" or an integer. An empty
// string is normal.
func ParsePriority(s string) (event.Priority, error) {
	switch s {
	case "", "normal":
		return event.PriorityNormal, nil
	case "low":
		return event.PriorityLow, nil
	case "high":
		return event.PriorityHigh, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid priority %q", s)
	}
	return event.Priority(n), nil
}

// ScriptFiles returns the distinct script files in configuration order.
func (c *Config) ScriptFiles() []string {
	var files []string
	for _, s := range c.Scripts {
		if !slices.Contains(files, s.File) {
			files = append(files, s.File)
		}
	}
	return files
}

// Diff returns the names of the top-level sections that differ between
// old and c, in declaration order.
func (c *Config) Diff(old *Config) []string {
	if old == nil {
		old = &Config{}
	}

	var changed []string
	cv, ov := reflect.ValueOf(*c), reflect.ValueOf(*old)
	ct := cv.Type()
	for i := 0; i < ct.NumField(); i++ {
		if !reflect.DeepEqual(cv.Field(i).Interface(), ov.Field(i).Interface()) {
			changed = append(changed, ct.Field(i).Tag.Get("toml"))
		}
	}
	return changed
}
