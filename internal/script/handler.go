package script

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/evbus/internal/event"
)

// luaHandler calls a global Lua function for every delivered payload.
type luaHandler struct {
	state *State
	fn    string
	name  event.Name
}

// Handler returns an event.Handler that calls the global Lua function fn
// as fn(payload, name). The function fails the delivery by returning a
// string (or nil followed by a string) or by raising an error.
func Handler(s *State, fn string, name event.Name) (event.Handler, error) {
	if !s.HasFunc(fn) {
		return nil, fmt.Errorf("%w: %q", ErrFunctionNotFound, fn)
	}
	return &luaHandler{state: s, fn: fn, name: name}, nil
}

func (h *luaHandler) Handle(ctx context.Context, payload any) error {
	results, err := h.state.Call(h.fn, payload, h.name.String())
	if err != nil {
		return err
	}
	return h.failure(results)
}

// failure extracts an error message from a handler's return values.
func (h *luaHandler) failure(results []any) error {
	if len(results) == 0 {
		return nil
	}

	msg, ok := results[0].(string)
	if !ok && results[0] == nil && len(results) > 1 {
		msg, ok = results[1].(string)
	}
	if !ok {
		return nil
	}
	return &CallError{Func: h.fn, Err: fmt.Errorf("%w: %s", ErrScriptRejected, msg)}
}

// Middleware returns an event.Middleware that calls the global Lua function
// fn as fn(name, payload) before the rest of the chain. The result decides
// what happens next:
//
//	nil or true   pass the payload on unchanged
//	false         end the emission here (short-circuit)
//	a table       pass it on, converted back to the payload's Go type
//	a string      fail the emission with that message
func Middleware(s *State, fn string) (event.Middleware, error) {
	if !s.HasFunc(fn) {
		return nil, fmt.Errorf("%w: %q", ErrFunctionNotFound, fn)
	}

	return func(ctx context.Context, name event.Name, payload any, next event.Next) error {
		results, err := s.Call(fn, name.String(), payload)
		if err != nil {
			return err
		}

		var result any
		if len(results) > 0 {
			result = results[0]
		}

		switch r := result.(type) {
		case nil:
			return next(ctx, payload)
		case bool:
			if !r {
				return nil
			}
			return next(ctx, payload)
		case string:
			return &CallError{Func: fn, Err: fmt.Errorf("%w: %s", ErrScriptRejected, r)}
		case map[string]any, []any:
			replaced, err := Decode(payload, r)
			if err != nil {
				return &CallError{Func: fn, Err: err}
			}
			return next(ctx, replaced)
		default:
			return &CallError{Func: fn, Err: errors.New("unsupported return value")}
		}
	}, nil
}
