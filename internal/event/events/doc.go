// Package events defines the typed event schema used by the evbus demo
// application.
//
// Each event has a Key declared with event.Define and a payload struct. Keys
// are grouped by their source:
//
//   - User events: login, logout
//   - Data events: record updates
//   - Config events: configuration reloads
//
// # Usage
//
//	import (
//	    "github.com/dshills/evbus/internal/event"
//	    "github.com/dshills/evbus/internal/event/events"
//	)
//
//	event.OnFunc(bus, events.UserLogin, func(ctx context.Context, p events.Login) error {
//	    fmt.Println(p.UserID, "logged in")
//	    return nil
//	}, event.WithPriority(event.PriorityHigh))
//
//	err := event.Emit(ctx, bus, events.UserLogin, events.Login{UserID: "user123"})
//
// # Naming Convention
//
// Names use a colon separator:
//
//	<source>:<action>
//
// Examples:
//   - user:login
//   - data:update
//   - config:reloaded
//
// Names are matched exactly; there are no wildcards.
//
// # Trace IDs
//
// Every payload carries a TraceID field and implements WithTraceID, which
// returns a copy with the field set. Tracing middleware uses it to stamp
// payloads on their way to subscribers.
package events
