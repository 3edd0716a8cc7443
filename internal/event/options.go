package event

import (
	"time"

	"github.com/google/uuid"
)

// BusOption configures an event Bus.
type BusOption func(*busConfig)

// busConfig contains configuration for the event bus.
type busConfig struct {
	// panicHandler is called when a handler panics.
	panicHandler PanicHandler

	// newID generates subscription IDs.
	newID func() string

	// now is the clock used to time handlers.
	now func() time.Time
}

// defaultBusConfig returns sensible default configuration.
func defaultBusConfig() busConfig {
	return busConfig{
		newID: uuid.NewString,
		now:   time.Now,
	}
}

// WithPanicHandler registers an observer for recovered handler panics.
func WithPanicHandler(h PanicHandler) BusOption {
	return func(c *busConfig) {
		c.panicHandler = h
	}
}

// WithIDGenerator replaces the subscription ID generator.
func WithIDGenerator(fn func() string) BusOption {
	return func(c *busConfig) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// WithClock replaces the clock used for handler timing.
func WithClock(now func() time.Time) BusOption {
	return func(c *busConfig) {
		if now != nil {
			c.now = now
		}
	}
}
