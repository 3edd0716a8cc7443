package events

import (
	"time"

	"github.com/dshills/evbus/internal/event"
)

// User event keys.
var (
	// UserLogin is emitted when a user logs in.
	UserLogin = event.Define[Login]("user:login")

	// UserLogout is emitted when a user logs out.
	UserLogout = event.Define[Logout]("user:logout")
)

// Login is the payload of UserLogin.
type Login struct {
	// UserID identifies the user.
	UserID string `json:"userId"`

	// Timestamp is when the login happened.
	Timestamp time.Time `json:"timestamp"`

	// TraceID is set by tracing middleware.
	TraceID string `json:"traceId,omitempty"`
}

// WithTraceID returns a copy of l carrying id.
func (l Login) WithTraceID(id string) any {
	l.TraceID = id
	return l
}

// Logout is the payload of UserLogout.
type Logout struct {
	// UserID identifies the user.
	UserID string `json:"userId"`

	// Timestamp is when the logout happened.
	Timestamp time.Time `json:"timestamp"`

	// TraceID is set by tracing middleware.
	TraceID string `json:"traceId,omitempty"`
}

// WithTraceID returns a copy of l carrying id.
func (l Logout) WithTraceID(id string) any {
	l.TraceID = id
	return l
}
