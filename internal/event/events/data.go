package events

import (
	"maps"

	"github.com/dshills/evbus/internal/event"
)

// DataUpdate is emitted when a record changes.
var DataUpdate = event.Define[Update]("data:update")

// Update is the payload of DataUpdate.
type Update struct {
	// ID identifies the record.
	ID string `json:"id"`

	// Data holds the changed fields.
	Data map[string]any `json:"data"`

	// TraceID is set by tracing middleware.
	TraceID string `json:"traceId,omitempty"`
}

// WithTraceID returns a copy of u carrying id. Data is cloned so the copy
// can be modified without touching the original.
func (u Update) WithTraceID(id string) any {
	u.Data = maps.Clone(u.Data)
	u.TraceID = id
	return u
}
