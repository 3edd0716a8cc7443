package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldService    = "service"
	FieldComponent  = "component"
	FieldTraceID    = "trace_id"
	FieldEmissionID = "emission_id"

	// Event fields
	FieldEvent    = "event"
	FieldPayload  = "payload"
	FieldDuration = "duration"
	FieldOutcome  = "outcome"

	// Config fields
	FieldPath    = "path"
	FieldChanged = "changed"
)
