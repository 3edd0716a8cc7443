package event

import (
	"context"
	"strconv"
	"time"
)

// Name identifies an event channel. Every distinct name addresses its own
// independent subscriber list.
type Name string

// String returns the name as a string.
func (n Name) String() string {
	return string(n)
}

// Priority determines handler execution order.
// Higher values execute first; any integer is valid.
type Priority int

const (
	// PriorityLow is for handlers that should observe after everyone else.
	PriorityLow Priority = 0

	// PriorityNormal is the default priority.
	PriorityNormal Priority = 1

	// PriorityHigh is for handlers that must run before normal subscribers.
	PriorityHigh Priority = 2
)

// String returns a human-readable priority name.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	default:
		return strconv.Itoa(int(p))
	}
}

// Handler is the interface for event handlers.
type Handler interface {
	// Handle processes a payload.
	// The payload is type-erased; use Key and On for typed handlers.
	Handle(ctx context.Context, payload any) error
}

// HandlerFunc is a function adapter for Handler.
//
// Off matches a HandlerFunc by the closure it wraps. Keep the value passed
// to On and hand that same value to Off; closures created separately from
// one literal, or method values taken again, are different handlers.
type HandlerFunc func(ctx context.Context, payload any) error

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(ctx context.Context, payload any) error {
	return f(ctx, payload)
}

// Next continues an emission with a (possibly replaced) payload.
type Next func(ctx context.Context, payload any) error

// Middleware wraps the delivery of a payload to subscribers.
//
// A middleware may pass the payload on unchanged, pass a different payload,
// run code after next returns, inspect or replace the error next returns, or
// not call next at all. Not calling next is a short-circuit: the emission
// succeeds and no downstream middleware or subscriber runs.
type Middleware func(ctx context.Context, name Name, payload any, next Next) error

// FilterFunc is a predicate for filtering payloads.
// Return true to allow the payload, false to filter it out.
type FilterFunc func(payload any) bool

// Emitter is implemented by anything that can emit events. *Bus satisfies it.
type Emitter interface {
	Emit(ctx context.Context, name Name, payload any) error
}

// Stats contains event bus statistics.
type Stats struct {
	// Emissions is the total number of Emit calls.
	Emissions uint64

	// FailedEmissions is the number of Emit calls that returned an error.
	FailedEmissions uint64

	// ShortCircuits is the number of successful emissions in which a
	// middleware did not continue to the subscribers.
	ShortCircuits uint64

	// HandlersExecuted is the total number of handler invocations.
	HandlersExecuted uint64

	// HandlerErrors is the number of handlers that returned errors.
	HandlerErrors uint64

	// HandlerPanics is the number of handlers that panicked.
	HandlerPanics uint64

	// AvgHandlerTime is the average handler execution time.
	AvgHandlerTime time.Duration

	// Subscribers is the current number of registered subscribers.
	Subscribers int
}

// PanicHandler is called when a handler panics.
// The panic is still turned into a *PanicError that fails the emission.
type PanicHandler func(name Name, payload any, recovered any, stack []byte)
