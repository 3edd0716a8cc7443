package middleware

import (
	"context"
	"time"

	"github.com/dshills/evbus/internal/event"
	"github.com/dshills/evbus/internal/metrics"
)

// Metrics records every emission's outcome and duration on c. Install it
// outermost so short-circuits by inner gates are seen.
func Metrics(c *metrics.Collector) event.Middleware {
	return func(ctx context.Context, name event.Name, payload any, next event.Next) error {
		start := time.Now()
		ctx, delivered := event.TrackDelivery(ctx)

		err := next(ctx, payload)

		outcome := metrics.OutcomeOK
		switch {
		case err != nil:
			outcome = metrics.OutcomeError
		case !delivered():
			outcome = metrics.OutcomeShortCircuit
		}
		c.RecordEmission(name, outcome, time.Since(start).Seconds())
		return err
	}
}
