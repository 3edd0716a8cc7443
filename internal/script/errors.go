package script

import (
	"errors"
	"fmt"
)

// Errors for script operations.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrFunctionNotFound is returned when a named global function does not exist.
	ErrFunctionNotFound = errors.New("lua function not found")

	// ErrScriptRejected is wrapped by the error built from a string a script
	// returned to signal failure.
	ErrScriptRejected = errors.New("script returned an error")
)

// CallError reports a Lua function that raised an error or returned one.
type CallError struct {
	Func string
	Err  error
}

// Error implements the error interface.
func (e *CallError) Error() string {
	return fmt.Sprintf("lua %s: %v", e.Func, e.Err)
}

// Unwrap returns the underlying error.
func (e *CallError) Unwrap() error {
	return e.Err
}
