package log

import (
	"context"

	"github.com/rs/zerolog"
)

type contextKey int

const (
	traceIDKey contextKey = iota
	emissionIDKey
)

// ContextWithTraceID returns ctx carrying id as the trace ID. Nested
// emissions started from a handler inherit it.
func ContextWithTraceID(ctx context.Context, id string) context.Context {
	return withID(ctx, traceIDKey, id)
}

// ContextWithEmissionID returns ctx carrying id as the ID of the current
// emission.
func ContextWithEmissionID(ctx context.Context, id string) context.Context {
	return withID(ctx, emissionIDKey, id)
}

func TraceIDFromContext(ctx context.Context) string    { return idFrom(ctx, traceIDKey) }
func EmissionIDFromContext(ctx context.Context) string { return idFrom(ctx, emissionIDKey) }

func withID(ctx context.Context, key contextKey, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, id)
}

func idFrom(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(key).(string)
	return id
}

// WithContext returns l with the trace and emission IDs found in ctx. l is
// returned as is when ctx carries neither.
func WithContext(ctx context.Context, l zerolog.Logger) zerolog.Logger {
	traceID, emissionID := TraceIDFromContext(ctx), EmissionIDFromContext(ctx)
	if traceID == "" && emissionID == "" {
		return l
	}

	c := l.With()
	if traceID != "" {
		c = c.Str(FieldTraceID, traceID)
	}
	if emissionID != "" {
		c = c.Str(FieldEmissionID, emissionID)
	}
	return c.Logger()
}
