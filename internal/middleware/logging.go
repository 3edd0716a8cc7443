package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/dshills/evbus/internal/event"
	"github.com/dshills/evbus/internal/log"
)

// Logger logs every emission's payload on the way in and its duration on
// the way out. Correlation IDs found in the context are attached.
func Logger(l zerolog.Logger) event.Middleware {
	return func(ctx context.Context, name event.Name, payload any, next event.Next) error {
		logger := log.WithContext(ctx, l)
		payloadField(logger.Debug().Str(log.FieldEvent, name.String()), payload).
			Msg("emission started")

		start := time.Now()
		err := next(ctx, payload)

		logger.Debug().
			Str(log.FieldEvent, name.String()).
			Dur(log.FieldDuration, time.Since(start)).
			Bool("failed", err != nil).
			Msg("emission completed")
		return err
	}
}

// LogErrors logs an error coming back from next and returns it unchanged.
func LogErrors(l zerolog.Logger) event.Middleware {
	return func(ctx context.Context, name event.Name, payload any, next event.Next) error {
		err := next(ctx, payload)
		if err != nil {
			logger := log.WithContext(ctx, l)
			logger.Error().
				Err(err).
				Str(log.FieldEvent, name.String()).
				Msg("emission failed")
		}
		return err
	}
}

// payloadField adds payload to e. JSON documents are embedded as is.
func payloadField(e *zerolog.Event, payload any) *zerolog.Event {
	switch p := payload.(type) {
	case json.RawMessage:
		if gjson.ValidBytes(p) {
			return e.RawJSON(log.FieldPayload, p)
		}
	case []byte:
		if gjson.ValidBytes(p) {
			return e.RawJSON(log.FieldPayload, p)
		}
		return e.Bytes(log.FieldPayload, p)
	}
	return e.Interface(log.FieldPayload, payload)
}
