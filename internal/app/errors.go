package app

import "errors"

// Application errors.
var (
	// ErrClosed indicates the application has been shut down.
	ErrClosed = errors.New("application closed")

	// ErrUnknownMiddleware indicates a middleware name with no constructor.
	ErrUnknownMiddleware = errors.New("unknown middleware")
)

// InitError reports a component that failed to start.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return "init " + e.Component + ": " + e.Err.Error()
}

func (e *InitError) Unwrap() error {
	return e.Err
}
