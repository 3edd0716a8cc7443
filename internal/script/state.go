// Package script runs event handlers and middleware written in Lua.
//
// Scripts execute in a sandboxed gopher-lua state with only the base, table,
// string and math libraries. Payloads cross into Lua as tables built from
// their JSON form, so struct payloads are seen with their json field names.
package script

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"
)

// State wraps a gopher-lua state for script execution.
//
// gopher-lua's LState is not goroutine-safe. State serializes every call
// into Lua with a mutex, so one State may back handlers on a bus that is
// emitted from several goroutines. The lock is never held while Go code
// called from a script middleware's next runs.
type State struct {
	L      *lua.LState
	bridge *Bridge

	mu     sync.Mutex
	logger zerolog.Logger
	closed bool
}

// StateOption configures a State.
type StateOption func(*State)

// WithLogger routes the scripts' log.debug/info/warn/error calls to l.
func WithLogger(l zerolog.Logger) StateOption {
	return func(s *State) {
		s.logger = l
	}
}

// NewState creates a new sandboxed Lua state.
func NewState(opts ...StateOption) *State {
	s := &State{
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	L := lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})
	openSafeLibraries(L)
	removeLoaders(L)

	s.L = L
	s.bridge = NewBridge(L)
	s.installLog()
	return s
}

// openSafeLibraries opens only safe Lua standard libraries.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	// io, os, debug and package stay closed.
}

// removeLoaders drops the base functions that read or compile code.
func removeLoaders(L *lua.LState) {
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
}

// installLog exposes a log table backed by the state's zerolog logger.
func (s *State) installLog() {
	level := func(lvl zerolog.Level) lua.LGFunction {
		return func(L *lua.LState) int {
			msg := L.CheckString(1)
			s.logger.WithLevel(lvl).Str("source", "lua").Msg(msg)
			return 0
		}
	}

	mod := s.L.SetFuncs(s.L.NewTable(), map[string]lua.LGFunction{
		"debug": level(zerolog.DebugLevel),
		"info":  level(zerolog.InfoLevel),
		"warn":  level(zerolog.WarnLevel),
		"error": level(zerolog.ErrorLevel),
	})
	s.L.SetGlobal("log", mod)
}

// DoFile executes a Lua file.
func (s *State) DoFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}

	return s.doWithRecovery(func() error {
		return s.L.DoFile(path)
	})
}

// DoString executes a Lua string.
func (s *State) DoString(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}

	return s.doWithRecovery(func() error {
		return s.L.DoString(code)
	})
}

func (s *State) doWithRecovery(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// HasFunc reports whether a global function named fn exists.
func (s *State) HasFunc(fn string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	return s.L.GetGlobal(fn).Type() == lua.LTFunction
}

// Call calls the global Lua function fn with Go arguments and returns its
// results converted to Go values. An empty slice is returned when the
// function returns nothing.
func (s *State) Call(fn string, args ...any) ([]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStateClosed
	}

	fnVal := s.L.GetGlobal(fn)
	if fnVal == lua.LNil {
		return nil, fmt.Errorf("%w: %q", ErrFunctionNotFound, fn)
	}
	if fnVal.Type() != lua.LTFunction {
		return nil, fmt.Errorf("%q is not a function (got %s)", fn, fnVal.Type())
	}

	stackTop := s.L.GetTop()
	s.L.Push(fnVal)
	for _, arg := range args {
		s.L.Push(s.bridge.ToLuaValue(arg))
	}

	callErr := s.doWithRecovery(func() error {
		return s.L.PCall(len(args), lua.MultRet, nil)
	})
	if callErr != nil {
		return nil, &CallError{Func: fn, Err: callErr}
	}

	nRet := s.L.GetTop() - stackTop
	if nRet <= 0 {
		return []any{}, nil
	}
	results := make([]any, nRet)
	for i := 0; i < nRet; i++ {
		results[i] = s.bridge.ToGoValue(s.L.Get(stackTop + i + 1))
	}
	s.L.Pop(nRet)

	return results, nil
}

// GetGlobal returns a global variable converted to a Go value.
func (s *State) GetGlobal(name string) any {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	return s.bridge.ToGoValue(s.L.GetGlobal(name))
}

// IsClosed returns true if the state has been closed.
func (s *State) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases all resources associated with the Lua state.
// After Close is called, all other methods return ErrStateClosed.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.L.Close()
	s.closed = true
	return nil
}

// Load creates a state and runs every file in paths, in order.
func Load(paths []string, opts ...StateOption) (*State, error) {
	s := NewState(opts...)
	for _, p := range paths {
		if err := s.DoFile(p); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("load script %s: %w", p, err)
		}
	}
	return s, nil
}
