package script

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/evbus/internal/event"
	"github.com/dshills/evbus/internal/event/events"
)

func newState(t *testing.T, code string, opts ...StateOption) *State {
	t.Helper()
	s := NewState(opts...)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.DoString(code))
	return s
}

func TestState_Sandbox(t *testing.T) {
	s := newState(t, ``)

	for _, name := range []string{"io", "os", "debug", "package", "dofile", "loadfile", "load", "loadstring", "require"} {
		assert.Nil(t, s.GetGlobal(name), name)
	}
	assert.NotNil(t, s.GetGlobal("string"))
	assert.NotNil(t, s.GetGlobal("math"))
	assert.Error(t, s.DoString(`os.exit(1)`))
}

func TestState_Call(t *testing.T) {
	s := newState(t, `
		function add(a, b) return a + b end
		function nothing() end
		function fail() error("broken") end
		value = 3
	`)

	results, err := s.Call("add", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(3)}, results)

	results, err = s.Call("nothing")
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = s.Call("fail")
	var cerr *CallError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "fail", cerr.Func)
	assert.Contains(t, err.Error(), "broken")

	_, err = s.Call("missing")
	assert.ErrorIs(t, err, ErrFunctionNotFound)

	_, err = s.Call("value")
	assert.Error(t, err)
}

func TestState_Closed(t *testing.T) {
	s := NewState()
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.True(t, s.IsClosed())
	assert.ErrorIs(t, s.DoString(`x = 1`), ErrStateClosed)
	_, err := s.Call("anything")
	assert.ErrorIs(t, err, ErrStateClosed)
	assert.False(t, s.HasFunc("anything"))
}

func TestState_Log(t *testing.T) {
	var buf bytes.Buffer
	s := newState(t, `log.warn("careful")`, WithLogger(zerolog.New(&buf)))
	_ = s

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "careful", entry["message"])
	assert.Equal(t, "lua", entry["source"])
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.lua")
	b := filepath.Join(dir, "b.lua")
	require.NoError(t, os.WriteFile(a, []byte(`base = 10`), 0o600))
	require.NoError(t, os.WriteFile(b, []byte(`function get() return base + 1 end`), 0o600))

	s, err := Load([]string{a, b})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	results, err := s.Call("get")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(11)}, results)

	_, err = Load([]string{filepath.Join(dir, "missing.lua")})
	assert.Error(t, err)
}

func TestBridge_RoundTrip(t *testing.T) {
	s := NewState()
	t.Cleanup(func() { _ = s.Close() })
	b := s.bridge

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"bool", true, true},
		{"int", 42, int64(42)},
		{"float", 3.5, 3.5},
		{"string", "hello", "hello"},
		{"array", []any{"a", int64(1)}, []any{"a", int64(1)}},
		{"strings", []string{"x", "y"}, []any{"x", "y"}},
		{"map", map[string]any{"k": "v"}, map[string]any{"k": "v"}},
		{"json bytes", []byte(`{"n":2}`), map[string]any{"n": int64(2)}},
		{"plain bytes", []byte(`abc`), "abc"},
		{"struct", events.Login{UserID: "u1"}, map[string]any{"userId": "u1", "timestamp": "0001-01-01T00:00:00Z"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.ToGoValue(b.ToLuaValue(tt.in)))
		})
	}
}

func TestDecode(t *testing.T) {
	table := map[string]any{"userId": "u2", "timestamp": "2024-01-01T00:00:00Z"}

	got, err := Decode(events.Login{UserID: "u1"}, table)
	require.NoError(t, err)
	login, ok := got.(events.Login)
	require.True(t, ok)
	assert.Equal(t, "u2", login.UserID)
	assert.Equal(t, 2024, login.Timestamp.Year())

	got, err = Decode(&events.Login{}, table)
	require.NoError(t, err)
	assert.Equal(t, "u2", got.(*events.Login).UserID)

	got, err = Decode([]byte(`{}`), map[string]any{"a": int64(1)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(got.([]byte)))

	got, err = Decode(json.RawMessage(`{}`), map[string]any{"a": int64(1)})
	require.NoError(t, err)
	assert.IsType(t, json.RawMessage{}, got)

	got, err = Decode(map[string]any{}, table)
	require.NoError(t, err)
	assert.Equal(t, table, got)

	_, err = Decode(events.Login{}, map[string]any{"timestamp": "not a time"})
	assert.Error(t, err)
}

func TestHandler(t *testing.T) {
	s := newState(t, `
		seen = {}
		function on_login(payload, name)
			table.insert(seen, name .. ":" .. payload.userId)
		end
		function reject(payload)
			if payload.userId == "bad" then
				return "user is banned"
			end
		end
		function reject_pair(payload)
			return nil, "second value"
		end
		function explode(payload)
			error("exploded")
		end
	`)

	bus := event.NewBus()
	h, err := Handler(s, "on_login", events.UserLogin.Name())
	require.NoError(t, err)
	bus.On(events.UserLogin.Name(), h)

	require.NoError(t, event.Emit(context.Background(), bus, events.UserLogin, events.Login{UserID: "u1"}))
	assert.Equal(t, []any{"user:login:u1"}, s.GetGlobal("seen"))

	tests := []struct {
		fn      string
		payload events.Login
		wantErr bool
	}{
		{"reject", events.Login{UserID: "ok"}, false},
		{"reject", events.Login{UserID: "bad"}, true},
		{"reject_pair", events.Login{}, true},
		{"explode", events.Login{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.fn+"/"+tt.payload.UserID, func(t *testing.T) {
			h, err := Handler(s, tt.fn, "x")
			require.NoError(t, err)

			err = h.Handle(context.Background(), tt.payload)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var cerr *CallError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.fn, cerr.Func)
		})
	}

	_, err = Handler(s, "nope", "x")
	assert.ErrorIs(t, err, ErrFunctionNotFound)
}

func TestHandler_RejectMessage(t *testing.T) {
	s := newState(t, `function deny() return "no" end`)
	h, err := Handler(s, "deny", "x")
	require.NoError(t, err)

	err = h.Handle(context.Background(), nil)
	assert.ErrorIs(t, err, ErrScriptRejected)
	assert.True(t, strings.HasSuffix(err.Error(), ": no"))
}

func TestMiddleware(t *testing.T) {
	s := newState(t, `
		function gate(name, payload)
			if payload.userId == "blocked" then return false end
			if payload.userId == "error" then return "rejected by script" end
			if payload.userId == "rename" then
				payload.userId = "renamed"
				return payload
			end
			if payload.userId == "number" then return 5 end
			return nil
		end
	`)

	mw, err := Middleware(s, "gate")
	require.NoError(t, err)

	bus := event.NewBus()
	bus.Use(mw)
	var got []string
	event.OnFunc(bus, events.UserLogin, func(ctx context.Context, p events.Login) error {
		got = append(got, p.UserID)
		return nil
	})

	emit := func(id string) error {
		return event.Emit(context.Background(), bus, events.UserLogin, events.Login{UserID: id})
	}

	require.NoError(t, emit("u1"))
	require.NoError(t, emit("blocked"))
	require.NoError(t, emit("rename"))
	assert.ErrorIs(t, emit("error"), ErrScriptRejected)

	var cerr *CallError
	require.ErrorAs(t, emit("number"), &cerr)

	assert.Equal(t, []string{"u1", "renamed"}, got)
	assert.Equal(t, uint64(1), bus.Stats().ShortCircuits)

	_, err = Middleware(s, "nope")
	assert.True(t, errors.Is(err, ErrFunctionNotFound))
}

func TestMiddleware_UnlocksBeforeNext(t *testing.T) {
	s := newState(t, `
		function pass(name, payload) return true end
		function handle(payload) end
	`)

	mw, err := Middleware(s, "pass")
	require.NoError(t, err)
	h, err := Handler(s, "handle", "x")
	require.NoError(t, err)

	bus := event.NewBus()
	bus.Use(mw)
	bus.On("x", h)

	// Would deadlock if the middleware held the state lock across next.
	require.NoError(t, bus.Emit(context.Background(), "x", map[string]any{"a": 1}))
}
