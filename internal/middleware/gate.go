package middleware

import (
	"context"
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/dshills/evbus/internal/event"
)

// Filter ends the emission early when pred rejects the payload.
// A nil pred lets everything through.
func Filter(pred event.FilterFunc) event.Middleware {
	return func(ctx context.Context, name event.Name, payload any, next event.Next) error {
		if pred != nil && !pred(payload) {
			return nil
		}
		return next(ctx, payload)
	}
}

// FilterNames applies pred only to the listed event names, or to every
// emission when no names are given.
func FilterNames(pred event.FilterFunc, names ...event.Name) event.Middleware {
	return ForNames(Filter(pred), names...)
}

// ForNames runs mw only for the listed event names; other emissions skip
// it. With no names mw runs for every emission.
func ForNames(mw event.Middleware, names ...event.Name) event.Middleware {
	if len(names) == 0 {
		return mw
	}
	set := make(map[event.Name]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}

	return func(ctx context.Context, name event.Name, payload any, next event.Next) error {
		if _, ok := set[name]; !ok {
			return next(ctx, payload)
		}
		return mw(ctx, name, payload, next)
	}
}

// MatchJSON ends the emission early unless match accepts the value found at
// path (gjson syntax) in the payload's JSON form. []byte, json.RawMessage
// and string payloads are read as JSON documents; other payloads are read
// through their JSON encoding when that is an object or array. Anything
// else passes through.
func MatchJSON(path string, match func(gjson.Result) bool) event.Middleware {
	return func(ctx context.Context, name event.Name, payload any, next event.Next) error {
		res, ok := lookupJSON(payload, path)
		if ok && !match(res) {
			return nil
		}
		return next(ctx, payload)
	}
}

// lookupJSON returns the value at path and whether payload was JSON.
func lookupJSON(payload any, path string) (gjson.Result, bool) {
	switch p := payload.(type) {
	case json.RawMessage:
		if gjson.ValidBytes(p) {
			return gjson.GetBytes(p, path), true
		}
	case []byte:
		if gjson.ValidBytes(p) {
			return gjson.GetBytes(p, path), true
		}
	case string:
		if gjson.Valid(p) {
			return gjson.Get(p, path), true
		}
	case nil:
	default:
		data, err := json.Marshal(p)
		if err != nil || len(data) == 0 || (data[0] != '{' && data[0] != '[') {
			break
		}
		return gjson.GetBytes(data, path), true
	}
	return gjson.Result{}, false
}
