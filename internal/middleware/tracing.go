package middleware

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/dshills/evbus/internal/event"
	"github.com/dshills/evbus/internal/log"
)

// TraceCarrier is implemented by payloads that can carry a trace ID.
// WithTraceID must return a copy; the emitter's value is left alone.
type TraceCarrier interface {
	WithTraceID(id string) any
}

// Tracing opens a span for each emission and makes sure the emission has a
// trace ID. An ID already in the context is kept; otherwise the span's trace
// ID is used, or a random UUID when the span is not sampled. Every emission
// also gets a fresh emission ID, so nested emissions sharing a trace stay
// apart. Both IDs are stored in the context for downstream loggers, and
// payloads implementing TraceCarrier are replaced by a stamped copy.
func Tracing(tracer trace.Tracer) event.Middleware {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("evbus")
	}

	return func(ctx context.Context, name event.Name, payload any, next event.Next) error {
		ctx, span := tracer.Start(ctx, "emit "+name.String(),
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(attribute.String("evbus.event", name.String())),
		)
		defer span.End()

		traceID := log.TraceIDFromContext(ctx)
		if traceID == "" {
			if sc := span.SpanContext(); sc.HasTraceID() {
				traceID = sc.TraceID().String()
			} else {
				traceID = uuid.NewString()
			}
			ctx = log.ContextWithTraceID(ctx, traceID)
		}
		emissionID := uuid.NewString()
		ctx = log.ContextWithEmissionID(ctx, emissionID)
		span.SetAttributes(
			attribute.String("evbus.trace_id", traceID),
			attribute.String("evbus.emission_id", emissionID),
		)

		if c, ok := payload.(TraceCarrier); ok {
			payload = c.WithTraceID(traceID)
		}

		err := next(ctx, payload)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return err
	}
}

// StampJSON writes the context's trace ID into JSON payloads at path
// (sjson syntax, e.g. "_traceId" or "meta.trace"). It handles []byte,
// json.RawMessage and string payloads holding a valid JSON document; other
// payloads, and emissions without a trace ID, pass through untouched.
func StampJSON(path string) event.Middleware {
	return func(ctx context.Context, name event.Name, payload any, next event.Next) error {
		id := log.TraceIDFromContext(ctx)
		if id == "" {
			return next(ctx, payload)
		}

		switch p := payload.(type) {
		case json.RawMessage:
			if gjson.ValidBytes(p) {
				out, err := sjson.SetBytes(p, path, id)
				if err != nil {
					return fmt.Errorf("stamp trace id at %q: %w", path, err)
				}
				payload = json.RawMessage(out)
			}
		case []byte:
			if gjson.ValidBytes(p) {
				out, err := sjson.SetBytes(p, path, id)
				if err != nil {
					return fmt.Errorf("stamp trace id at %q: %w", path, err)
				}
				payload = out
			}
		case string:
			if gjson.Valid(p) {
				out, err := sjson.Set(p, path, id)
				if err != nil {
					return fmt.Errorf("stamp trace id at %q: %w", path, err)
				}
				payload = out
			}
		}

		return next(ctx, payload)
	}
}
