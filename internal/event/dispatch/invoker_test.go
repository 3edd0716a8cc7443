package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handlerFunc func(ctx context.Context, payload any) error

func (f handlerFunc) Handle(ctx context.Context, payload any) error { return f(ctx, payload) }

// stepClock advances by step on every call.
func stepClock(step time.Duration) func() time.Time {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

func TestCall_OK(t *testing.T) {
	assert.True(t, Call{}.OK())
	assert.False(t, Call{Err: errors.New("x")}.OK())
	assert.False(t, Call{Panic: &Recovered{Value: "boom"}}.OK())
}

func TestInvoke_Success(t *testing.T) {
	inv := NewInvoker(WithClock(stepClock(time.Millisecond)))

	var received any
	call := inv.Invoke(context.Background(), "payload", handlerFunc(func(ctx context.Context, payload any) error {
		received = payload
		return nil
	}))

	require.True(t, call.OK())
	assert.Equal(t, "payload", received)
	assert.Equal(t, time.Millisecond, call.Elapsed)
}

func TestInvoke_Error(t *testing.T) {
	inv := NewInvoker()
	want := errors.New("handler error")

	call := inv.Invoke(context.Background(), nil, handlerFunc(func(ctx context.Context, payload any) error {
		return want
	}))

	assert.False(t, call.OK())
	assert.Same(t, want, call.Err)
	assert.Nil(t, call.Panic)
}

func TestInvoke_Panic(t *testing.T) {
	inv := NewInvoker()

	call := inv.Invoke(context.Background(), nil, handlerFunc(func(ctx context.Context, payload any) error {
		panic("test panic")
	}))

	require.NotNil(t, call.Panic)
	assert.NoError(t, call.Err)
	assert.Equal(t, "test panic", call.Panic.Value)
	assert.NotEmpty(t, call.Panic.Stack)
	assert.Equal(t, "panic: test panic", call.Panic.String())
}

func TestInvoke_PanicWithNilError(t *testing.T) {
	inv := NewInvoker()

	call := inv.Invoke(context.Background(), nil, handlerFunc(func(ctx context.Context, payload any) error {
		var err error
		panic(err)
	}))

	// Since Go 1.21 panic(nil) surfaces as *runtime.PanicNilError.
	require.NotNil(t, call.Panic)
	assert.NotNil(t, call.Panic.Value)
}

func TestInvoke_IgnoresDoneContext(t *testing.T) {
	inv := NewInvoker()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	call := inv.Invoke(ctx, nil, handlerFunc(func(ctx context.Context, payload any) error {
		called = true
		return nil
	}))

	assert.True(t, called, "handler runs even when the context is done")
	assert.True(t, call.OK())
}

func TestInvoker_Totals(t *testing.T) {
	inv := NewInvoker(WithClock(stepClock(2 * time.Millisecond)))
	assert.Zero(t, inv.Totals().Average())

	ok := handlerFunc(func(ctx context.Context, payload any) error { return nil })
	fail := handlerFunc(func(ctx context.Context, payload any) error { return errors.New("fail") })
	boom := handlerFunc(func(ctx context.Context, payload any) error { panic("boom") })

	for _, h := range []Handler{ok, ok, fail, boom} {
		inv.Invoke(context.Background(), nil, h)
	}

	totals := inv.Totals()
	assert.Equal(t, uint64(4), totals.Calls)
	assert.Equal(t, uint64(1), totals.Errors)
	assert.Equal(t, uint64(1), totals.Panics)
	assert.Equal(t, 8*time.Millisecond, totals.Elapsed)
	assert.Equal(t, 2*time.Millisecond, totals.Average())
}
