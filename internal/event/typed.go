package event

import (
	"context"
	"fmt"
	"reflect"
)

// Key ties an event name to its payload type. Declaring keys is how an
// application writes down its event schema:
//
//	var UserLogin = event.Define[Login]("user:login")
type Key[T any] struct {
	name Name
}

// Define declares a typed event key.
func Define[T any](name Name) Key[T] {
	return Key[T]{name: name}
}

// Name returns the key's event name.
func (k Key[T]) Name() Name {
	return k.name
}

// String returns the key's event name.
func (k Key[T]) String() string {
	return string(k.name)
}

// TypedHandler provides type-safe payload handling using generics.
type TypedHandler[T any] interface {
	Handle(ctx context.Context, payload T) error
}

// TypedHandlerFunc is a function adapter for TypedHandler.
type TypedHandlerFunc[T any] func(ctx context.Context, payload T) error

// Handle implements the TypedHandler interface.
func (f TypedHandlerFunc[T]) Handle(ctx context.Context, payload T) error {
	return f(ctx, payload)
}

// typedHandler adapts a TypedHandler to Handler with a checked downcast.
type typedHandler[T any] struct {
	name Name
	h    TypedHandler[T]
}

func (a typedHandler[T]) Handle(ctx context.Context, payload any) error {
	p, err := castPayload[T](a.name, payload)
	if err != nil {
		return err
	}
	return a.h.Handle(ctx, p)
}

func (a typedHandler[T]) handlerIdentity() any {
	return handlerIdentity(a.h)
}

// AsHandler converts a TypedHandler for key k to a generic Handler.
// Payloads of the wrong type fail with a *PayloadTypeError.
func AsHandler[T any](k Key[T], h TypedHandler[T]) Handler {
	if h == nil {
		return nil
	}
	return typedHandler[T]{name: k.name, h: h}
}

// On registers a typed persistent subscriber.
func On[T any](b *Bus, k Key[T], h TypedHandler[T], opts ...SubscriptionOption) Subscription {
	return b.On(k.name, AsHandler(k, h), opts...)
}

// OnFunc registers a typed persistent subscriber function.
func OnFunc[T any](b *Bus, k Key[T], fn func(ctx context.Context, payload T) error, opts ...SubscriptionOption) Subscription {
	if fn == nil {
		return On[T](b, k, nil, opts...)
	}
	return On[T](b, k, TypedHandlerFunc[T](fn), opts...)
}

// Once registers a typed one-shot subscriber.
func Once[T any](b *Bus, k Key[T], h TypedHandler[T], opts ...SubscriptionOption) Subscription {
	return b.Once(k.name, AsHandler(k, h), opts...)
}

// OnceFunc registers a typed one-shot subscriber function.
func OnceFunc[T any](b *Bus, k Key[T], fn func(ctx context.Context, payload T) error, opts ...SubscriptionOption) Subscription {
	if fn == nil {
		return Once[T](b, k, nil, opts...)
	}
	return Once[T](b, k, TypedHandlerFunc[T](fn), opts...)
}

// Off removes the first typed subscriber registered with h.
func Off[T any](b *Bus, k Key[T], h TypedHandler[T]) {
	if h == nil {
		return
	}
	b.Off(k.name, AsHandler(k, h))
}

// OffFunc removes the first typed subscriber registered with fn.
func OffFunc[T any](b *Bus, k Key[T], fn func(ctx context.Context, payload T) error) {
	if fn == nil {
		return
	}
	Off[T](b, k, TypedHandlerFunc[T](fn))
}

// Emit emits a typed payload.
func Emit[T any](ctx context.Context, e Emitter, k Key[T], payload T) error {
	return e.Emit(ctx, k.name, payload)
}

// castPayload asserts payload to T. A nil payload becomes the zero value
// when T can hold nil.
func castPayload[T any](name Name, payload any) (T, error) {
	if p, ok := payload.(T); ok {
		return p, nil
	}

	var zero T
	want := reflect.TypeFor[T]()
	if payload == nil && nilable(want.Kind()) {
		return zero, nil
	}

	return zero, &PayloadTypeError{
		Name: name,
		Want: want.String(),
		Got:  fmt.Sprintf("%T", payload),
	}
}

func nilable(k reflect.Kind) bool {
	switch k {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	default:
		return false
	}
}
