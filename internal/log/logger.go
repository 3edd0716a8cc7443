// Package log provides structured logging built on zerolog.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EnvLevel overrides the configured level when set.
const EnvLevel = "EVBUS_LOG_LEVEL"

// Config captures options for configuring the base logger.
type Config struct {
	Level   string    // optional log level ("debug", "info", etc.)
	Output  io.Writer // optional writer (defaults to os.Stderr)
	Service string    // optional service name attached to every log entry
}

var (
	mu   sync.RWMutex
	base = build(Config{})
)

func build(cfg Config) zerolog.Logger {
	writer := cfg.Output
	if writer == nil {
		writer = os.Stderr
	}

	service := cfg.Service
	if service == "" {
		service = "evbus"
	}

	return zerolog.New(writer).
		With().
		Timestamp().
		Str(FieldService, service).
		Logger()
}

// Configure replaces the base logger and sets the process-wide level. It
// may be called again, e.g. after a configuration reload.
func Configure(cfg Config) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	l := build(cfg)
	SetLevel(cfg.Level)

	mu.Lock()
	base = l
	mu.Unlock()
}

// SetLevel sets the process-wide minimum level and returns it. Loggers
// derived from Base follow it, including ones created before the call.
func SetLevel(level string) zerolog.Level {
	lvl := ParseLevel(level)
	zerolog.SetGlobalLevel(lvl)
	return lvl
}

// ParseLevel resolves the effective level: the EVBUS_LOG_LEVEL environment
// variable first, then level, then info.
func ParseLevel(level string) zerolog.Level {
	if env := os.Getenv(EnvLevel); env != "" {
		if parsed, err := zerolog.ParseLevel(env); err == nil {
			return parsed
		}
	}
	if level != "" {
		if parsed, err := zerolog.ParseLevel(level); err == nil {
			return parsed
		}
	}
	return zerolog.InfoLevel
}

// ValidateLevel reports whether level names a zerolog level.
func ValidateLevel(level string) error {
	if level == "" {
		return nil
	}
	if _, err := zerolog.ParseLevel(level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return nil
}

// Base returns the configured base logger instance.
func Base() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// WithComponent returns a child logger annotated with the given component name.
func WithComponent(component string) zerolog.Logger {
	return Base().With().Str(FieldComponent, component).Logger()
}
