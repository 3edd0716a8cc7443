package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrFileNotFound      = errors.New("config file not found")
	ErrUnsupportedFormat = errors.New("unsupported config format")

	// ErrValidationFailed matches any *ValidationError, including ones
	// joined by Validate.
	ErrValidationFailed = errors.New("invalid config")
)

// ParseError reports a file that could not be decoded. Line and Column are
// 1-based and zero when the decoder gave no position.
type ParseError struct {
	Path         string
	Line, Column int
	Message      string
	Err          error
}

// Error formats as path:line:column: message, leaving out unknown parts.
func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString(e.Path)
	if e.Line > 0 {
		fmt.Fprintf(&b, ":%d", e.Line)
		if e.Column > 0 {
			fmt.Fprintf(&b, ":%d", e.Column)
		}
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError rejects one setting, addressed by its dotted key such as
// "telemetry.sampling_rate" or "scripts[1].event".
type ValidationError struct {
	Path    string
	Message string
	Value   any
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got %#v)", e.Path, e.Message, e.Value)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}
