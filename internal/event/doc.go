// Package event provides an in-process, typed event bus.
//
// A Bus routes a payload emitted under a Name to every handler subscribed
// to that name. Handlers run one after another on the emitting goroutine,
// highest Priority first; handlers with equal priority run in the order
// they subscribed. Before any handler runs, the payload passes through the
// bus's middleware chain.
//
// # Subscribing
//
//	bus := event.NewBus()
//	bus.On("x", handlerA, event.WithPriority(event.PriorityHigh))
//	bus.On("x", handlerB, event.WithPriority(event.PriorityLow))
//	bus.Once("x", handlerC)
//	bus.Off("x", handlerB)
//
// Off removes the first subscriber registered with a handler that compares
// equal; it is a no-op for unknown names and handlers. Every On and Once
// also returns a Subscription whose Cancel removes exactly that entry.
//
// A Once subscriber is removed after its first successful delivery. It is
// claimed before it runs, so concurrent emissions never run it twice. If it
// fails it stays registered.
//
// # Typed keys
//
// Keys write an application's event schema down in the type system:
//
//	type Login struct{ UserID string }
//
//	var UserLogin = event.Define[Login]("user:login")
//
//	event.OnFunc(bus, UserLogin, func(ctx context.Context, l Login) error { ... })
//	event.Emit(ctx, bus, UserLogin, Login{UserID: "u1"})
//
// The typed adapter checks the payload type at delivery and fails the
// emission with ErrPayloadType if a middleware replaced the payload with
// something else.
//
// # Middleware
//
// Middleware compose as an onion. With bus.Use(m1) then bus.Use(m2), an
// emission runs m1 (before next), m2 (before next), the handlers, m2 (after
// next), m1 (after next). A middleware can replace the payload it passes to
// next; everything downstream only sees the replacement. A middleware that
// does not call next at all short-circuits the emission: it succeeds and no
// handler runs. Calling next twice gets ErrNextCalled on the second call.
//
// # Errors
//
// Emit returns the first failure. Delivery is fail-fast: when a handler
// returns an error (wrapped in *HandlerError) or panics (*PanicError),
// lower-priority handlers are not run and the error travels back out
// through each middleware, which may handle, replace or swallow it. The bus
// never logs or retries; that is left to middleware.
//
// # Snapshots
//
// The subscriber list is copied when delivery begins. Subscribing or
// unsubscribing from inside a handler only affects later emissions.
package event
