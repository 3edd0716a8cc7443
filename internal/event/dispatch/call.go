package dispatch

import (
	"context"
	"fmt"
	"time"
)

// Handler is the subset of event.Handler the invoker needs. It is declared
// here so the event package can import dispatch.
type Handler interface {
	Handle(ctx context.Context, payload any) error
}

// Recovered holds a panic caught while a handler ran.
type Recovered struct {
	Value any
	Stack []byte
}

func (r *Recovered) String() string {
	return fmt.Sprintf("panic: %v", r.Value)
}

// Call describes one handler invocation.
type Call struct {
	// Err is what the handler returned. It is nil when the handler panicked.
	Err error

	// Panic is set when the handler panicked.
	Panic *Recovered

	Elapsed time.Duration
}

// OK reports whether the handler returned nil without panicking.
func (c Call) OK() bool {
	return c.Err == nil && c.Panic == nil
}
