package event

import (
	"context"
	"sync/atomic"

	"github.com/dshills/evbus/internal/event/dispatch"
)

// Bus delivers named events to registered handlers through a middleware
// chain. Every Bus is independent; there is no package-level bus.
//
// All methods are safe for concurrent use. Concurrent emissions are not
// serialized against each other.
type Bus struct {
	registry *Registry
	chain    *Chain
	invoker  *dispatch.Invoker
	config   busConfig

	emissions     atomic.Uint64
	failed        atomic.Uint64
	shortCircuits atomic.Uint64
}

// NewBus creates a new event bus with the given options.
func NewBus(opts ...BusOption) *Bus {
	config := defaultBusConfig()
	for _, opt := range opts {
		opt(&config)
	}

	b := &Bus{
		registry: NewRegistry(),
		chain:    NewChain(),
		config:   config,
		invoker:  dispatch.NewInvoker(dispatch.WithClock(config.now)),
	}
	return b
}

// On registers a persistent subscriber for name.
// A nil handler registers nothing and yields a cancelled Subscription.
func (b *Bus) On(name Name, h Handler, opts ...SubscriptionOption) Subscription {
	return b.subscribe(name, h, opts...)
}

// Once registers a subscriber that is removed after its first successful
// delivery. A delivery that fails leaves it registered.
func (b *Bus) Once(name Name, h Handler, opts ...SubscriptionOption) Subscription {
	return b.subscribe(name, h, append(opts, WithOnce())...)
}

func (b *Bus) subscribe(name Name, h Handler, opts ...SubscriptionOption) Subscription {
	sub := newSubscription(b.config.newID(), name, h, opts...)
	if h == nil {
		sub.markCancelled()
		return sub
	}

	b.registry.Add(sub)
	return sub
}

// Off removes the first subscriber for name registered with h.
// Unknown names and handlers are ignored.
func (b *Bus) Off(name Name, h Handler) {
	b.registry.RemoveHandler(name, h)
}

// Use appends a middleware. Middleware wrap delivery in the order they were
// added, the first one outermost.
func (b *Bus) Use(mw Middleware) {
	b.chain.Use(mw)
}

// Emit runs payload through the middleware chain and then delivers it to
// every subscriber of name, one after another, highest priority first.
//
// The subscriber list is copied when delivery starts, so handlers may
// subscribe and unsubscribe freely; that only affects later emissions.
// Delivery stops at the first failing handler and its error (a
// *HandlerError or *PanicError) is returned through the middleware.
// Emitting a name nobody subscribed to still runs the middleware.
//
// Only handler panics are recovered into a *PanicError. A panic raised by a
// middleware unwinds out of Emit to the caller; install middleware.Recover
// first in the chain to turn those into errors as well.
//
// The context is passed to middleware and handlers as is; Emit never
// abandons an emission because the context is done.
func (b *Bus) Emit(ctx context.Context, name Name, payload any) error {
	b.emissions.Add(1)

	var delivered atomic.Bool
	err := b.chain.Run(ctx, name, payload, func(ctx context.Context, payload any) error {
		delivered.Store(true)
		markDelivered(ctx)
		return b.deliver(ctx, name, payload)
	})

	switch {
	case err != nil:
		b.failed.Add(1)
	case !delivered.Load():
		b.shortCircuits.Add(1)
	}
	return err
}

// deliver invokes the snapshot of name's subscribers, stopping at the first failure.
func (b *Bus) deliver(ctx context.Context, name Name, payload any) error {
	for _, sub := range b.registry.Snapshot(name) {
		if !sub.accepts(payload) {
			continue
		}
		if sub.opts.once && !sub.claim() {
			continue
		}

		call := b.invoker.Invoke(ctx, payload, sub.handler)
		if !call.OK() {
			if sub.opts.once {
				sub.release()
			}
			return b.failure(name, payload, sub, call)
		}

		if sub.opts.once {
			b.registry.RemoveID(name, sub.id)
		}
	}
	return nil
}

// failure converts a failed call into the emission error.
func (b *Bus) failure(name Name, payload any, sub *subscription, call dispatch.Call) error {
	if p := call.Panic; p != nil {
		b.observePanic(name, payload, p)
		return &PanicError{
			Name:           name,
			SubscriptionID: sub.id,
			Value:          p.Value,
			Stack:          string(p.Stack),
		}
	}

	return &HandlerError{
		Name:           name,
		SubscriptionID: sub.id,
		Priority:       sub.opts.priority,
		Err:            call.Err,
	}
}

// observePanic reports p to the configured PanicHandler. A panic inside the
// observer is swallowed so the emitter still gets its PanicError.
func (b *Bus) observePanic(name Name, payload any, p *dispatch.Recovered) {
	if b.config.panicHandler == nil {
		return
	}
	defer func() { _ = recover() }()
	b.config.panicHandler(name, payload, p.Value, p.Stack)
}

// Subscribers returns the number of subscribers currently registered for name.
func (b *Bus) Subscribers(name Name) int {
	return b.registry.Count(name)
}

// Names returns every event name that has had a subscriber.
func (b *Bus) Names() []Name {
	return b.registry.Names()
}

// Middleware returns the number of middleware in the chain.
func (b *Bus) Middleware() int {
	return b.chain.Len()
}

// Stats returns current bus statistics.
func (b *Bus) Stats() Stats {
	totals := b.invoker.Totals()

	return Stats{
		Emissions:        b.emissions.Load(),
		FailedEmissions:  b.failed.Load(),
		ShortCircuits:    b.shortCircuits.Load(),
		HandlersExecuted: totals.Calls,
		HandlerErrors:    totals.Errors,
		HandlerPanics:    totals.Panics,
		AvgHandlerTime:   totals.Average(),
		Subscribers:      b.registry.Total(),
	}
}

type deliveryKey struct{}

// TrackDelivery returns a context that records whether an emission passed
// through every middleware and reached subscriber delivery, and a func that
// reports it. Middleware use it to tell a short-circuit further in from a
// completed emission.
func TrackDelivery(ctx context.Context) (context.Context, func() bool) {
	flag := new(atomic.Bool)
	return context.WithValue(ctx, deliveryKey{}, flag), flag.Load
}

func markDelivered(ctx context.Context) {
	if flag, ok := ctx.Value(deliveryKey{}).(*atomic.Bool); ok {
		flag.Store(true)
	}
}
