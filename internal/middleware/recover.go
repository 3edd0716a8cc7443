package middleware

import (
	"context"
	"runtime/debug"

	"github.com/dshills/evbus/internal/event"
)

// Recover turns a panic raised by a middleware further in into a
// *event.PanicError. Handler panics never reach it; the bus converts those
// itself.
func Recover() event.Middleware {
	return func(ctx context.Context, name event.Name, payload any, next event.Next) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &event.PanicError{
					Name:  name,
					Value: r,
					Stack: string(debug.Stack()),
				}
			}
		}()
		return next(ctx, payload)
	}
}
