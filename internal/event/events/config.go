package events

import (
	"slices"

	"github.com/dshills/evbus/internal/event"
)

// ConfigReloaded is emitted after the configuration file was re-read.
var ConfigReloaded = event.Define[Reloaded]("config:reloaded")

// Reloaded is the payload of ConfigReloaded.
type Reloaded struct {
	// Path is the configuration file that was reloaded.
	Path string `json:"path"`

	// Changed lists the top-level sections whose values changed
	// (e.g., "log", "middleware").
	Changed []string `json:"changed,omitempty"`

	// Err is set when the new file could not be loaded and the previous
	// configuration stays in effect.
	Err string `json:"error,omitempty"`

	// TraceID is set by tracing middleware.
	TraceID string `json:"traceId,omitempty"`
}

// WithTraceID returns a copy of r carrying id.
func (r Reloaded) WithTraceID(id string) any {
	r.Changed = slices.Clone(r.Changed)
	r.TraceID = id
	return r
}

// Names returns the names of every event in the schema.
func Names() []event.Name {
	return []event.Name{
		UserLogin.Name(),
		UserLogout.Name(),
		DataUpdate.Name(),
		ConfigReloaded.Name(),
	}
}
