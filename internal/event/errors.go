package event

import (
	"errors"
	"fmt"
)

var (
	// ErrHandlerPanic matches every *PanicError.
	ErrHandlerPanic = errors.New("handler panicked")

	// ErrPayloadType matches every *PayloadTypeError. It usually means a
	// middleware replaced the payload with a value of another type.
	ErrPayloadType = errors.New("payload has unexpected type")

	// ErrNextCalled is returned by next when a middleware calls it twice in
	// one emission.
	ErrNextCalled = errors.New("next called more than once")

	ErrGroupClosed = errors.New("subscription group is closed")
)

// HandlerError is returned by Emit when a subscriber's handler fails. The
// remaining lower-priority subscribers were not called.
type HandlerError struct {
	Name           Name
	SubscriptionID string
	Priority       Priority
	Err            error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s: subscriber %s (%s): %v", e.Name, e.SubscriptionID, e.Priority, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// PanicError is returned by Emit when a handler panics. Stack is the
// goroutine stack captured at the recover.
type PanicError struct {
	Name           Name
	SubscriptionID string
	Value          any
	Stack          string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%s: subscriber %s panicked: %v", e.Name, e.SubscriptionID, e.Value)
}

func (e *PanicError) Is(target error) bool { return target == ErrHandlerPanic }

// Unwrap exposes the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// PayloadTypeError reports a payload that does not match its Key's type.
type PayloadTypeError struct {
	Name Name
	Want string
	Got  string
}

func (e *PayloadTypeError) Error() string {
	return fmt.Sprintf("%s: payload is %s, want %s", e.Name, e.Got, e.Want)
}

func (e *PayloadTypeError) Is(target error) bool { return target == ErrPayloadType }
