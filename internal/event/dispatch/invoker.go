package dispatch

import (
	"context"
	"runtime/debug"
	"sync/atomic"
	"time"
)

// Invoker calls handlers in the caller's goroutine, converts panics into
// Calls and keeps running totals. The zero value is not usable; use
// NewInvoker.
type Invoker struct {
	now func() time.Time

	calls   atomic.Uint64
	errors  atomic.Uint64
	panics  atomic.Uint64
	elapsed atomic.Int64
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithClock replaces the time source used to measure handlers.
func WithClock(now func() time.Time) Option {
	return func(inv *Invoker) {
		if now != nil {
			inv.now = now
		}
	}
}

// NewInvoker returns an Invoker that measures with time.Now unless
// WithClock says otherwise.
func NewInvoker(opts ...Option) *Invoker {
	inv := &Invoker{now: time.Now}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Invoke runs handler with payload and reports how it went. The context is
// passed through untouched; a done context neither skips nor interrupts
// the handler.
func (inv *Invoker) Invoke(ctx context.Context, payload any, handler Handler) Call {
	start := inv.now()
	call := inv.invoke(ctx, payload, handler)
	call.Elapsed = inv.now().Sub(start)

	inv.calls.Add(1)
	inv.elapsed.Add(int64(call.Elapsed))
	switch {
	case call.Panic != nil:
		inv.panics.Add(1)
	case call.Err != nil:
		inv.errors.Add(1)
	}
	return call
}

func (inv *Invoker) invoke(ctx context.Context, payload any, handler Handler) (call Call) {
	defer func() {
		if r := recover(); r != nil {
			call = Call{Panic: &Recovered{Value: r, Stack: debug.Stack()}}
		}
	}()
	return Call{Err: handler.Handle(ctx, payload)}
}

// Totals are cumulative counts over every Invoke.
type Totals struct {
	Calls   uint64
	Errors  uint64
	Panics  uint64
	Elapsed time.Duration
}

// Average returns the mean time per call, or zero before the first call.
func (t Totals) Average() time.Duration {
	if t.Calls == 0 {
		return 0
	}
	return t.Elapsed / time.Duration(t.Calls)
}

// Totals returns the counts so far. The fields are loaded one at a time, so
// a snapshot taken during concurrent calls may be slightly uneven.
func (inv *Invoker) Totals() Totals {
	return Totals{
		Calls:   inv.calls.Load(),
		Errors:  inv.errors.Load(),
		Panics:  inv.panics.Load(),
		Elapsed: time.Duration(inv.elapsed.Load()),
	}
}
