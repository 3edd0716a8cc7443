// Package middleware provides stock event.Middleware for the bus.
//
// Install them with Bus.Use in the order they should wrap delivery; the
// first one installed is outermost:
//
//	bus.Use(middleware.Recover())
//	bus.Use(middleware.Metrics(collector))
//	bus.Use(middleware.Logger(logger))
//	bus.Use(middleware.LogErrors(logger))
//	bus.Use(middleware.Tracing(tracer))
//
// Gates (Filter and MatchJSON) end an emission early by not calling next.
// The bus counts that as a short-circuit, not a failure.
package middleware
