package event

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loginPayload struct {
	UserID    string
	Timestamp int64
}

var testLogin = Define[loginPayload]("user:login")

type loginCounter struct {
	seen []string
}

func (c *loginCounter) Handle(ctx context.Context, p loginPayload) error {
	c.seen = append(c.seen, p.UserID)
	return nil
}

func TestKey(t *testing.T) {
	assert.Equal(t, Name("user:login"), testLogin.Name())
	assert.Equal(t, "user:login", testLogin.String())
}

func TestTyped_OnAndEmit(t *testing.T) {
	bus := NewBus()
	var got loginPayload

	OnFunc(bus, testLogin, func(ctx context.Context, p loginPayload) error {
		got = p
		return nil
	})

	require.NoError(t, Emit(context.Background(), bus, testLogin, loginPayload{UserID: "123", Timestamp: 42}))
	assert.Equal(t, loginPayload{UserID: "123", Timestamp: 42}, got)
}

func TestTyped_WrongPayloadFromMiddleware(t *testing.T) {
	bus := NewBus()
	bus.Use(func(ctx context.Context, name Name, payload any, next Next) error {
		return next(ctx, "not a login")
	})

	called := false
	OnFunc(bus, testLogin, func(ctx context.Context, p loginPayload) error {
		called = true
		return nil
	})

	err := Emit(context.Background(), bus, testLogin, loginPayload{UserID: "1"})

	require.ErrorIs(t, err, ErrPayloadType)
	var perr *PayloadTypeError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "string", perr.Got)
	assert.Contains(t, perr.Want, "loginPayload")
	assert.False(t, called)
}

func TestTyped_UntypedEmitOfWrongType(t *testing.T) {
	bus := NewBus()
	OnFunc(bus, testLogin, func(ctx context.Context, p loginPayload) error { return nil })

	err := bus.Emit(context.Background(), testLogin.Name(), 7)
	assert.True(t, errors.Is(err, ErrPayloadType))
}

func TestTyped_NilPayloadForPointerKey(t *testing.T) {
	key := Define[*loginPayload]("user:login:ptr")
	bus := NewBus()

	got := &loginPayload{}
	OnFunc(bus, key, func(ctx context.Context, p *loginPayload) error {
		got = p
		return nil
	})

	require.NoError(t, bus.Emit(context.Background(), key.Name(), nil))
	assert.Nil(t, got)
}

func TestTyped_OffPointerHandler(t *testing.T) {
	bus := NewBus()
	h := &loginCounter{}

	On(bus, testLogin, h)
	On(bus, testLogin, h)
	Off(bus, testLogin, h)

	require.NoError(t, Emit(context.Background(), bus, testLogin, loginPayload{UserID: "a"}))
	assert.Equal(t, []string{"a"}, h.seen)

	Off(bus, testLogin, h)
	Off[loginPayload](bus, testLogin, nil)
	require.NoError(t, Emit(context.Background(), bus, testLogin, loginPayload{UserID: "b"}))
	assert.Equal(t, []string{"a"}, h.seen)
}

func TestTyped_OffFunc(t *testing.T) {
	bus := NewBus()
	calls := 0
	fn := func(ctx context.Context, p loginPayload) error {
		calls++
		return nil
	}

	OnFunc(bus, testLogin, fn)
	OffFunc(bus, testLogin, fn)

	require.NoError(t, Emit(context.Background(), bus, testLogin, loginPayload{}))
	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, bus.Subscribers(testLogin.Name()))
}

func TestTyped_Once(t *testing.T) {
	bus := NewBus()
	calls := 0

	OnceFunc(bus, testLogin, func(ctx context.Context, p loginPayload) error {
		calls++
		return nil
	}, WithPriority(PriorityHigh))

	require.NoError(t, Emit(context.Background(), bus, testLogin, loginPayload{}))
	require.NoError(t, Emit(context.Background(), bus, testLogin, loginPayload{}))
	assert.Equal(t, 1, calls)
}

func TestTyped_NilHandlers(t *testing.T) {
	bus := NewBus()

	sub := OnFunc[loginPayload](bus, testLogin, nil)
	assert.False(t, sub.Active())

	sub = Once[loginPayload](bus, testLogin, nil)
	assert.False(t, sub.Active())

	assert.Nil(t, AsHandler[loginPayload](testLogin, nil))
	assert.Equal(t, 0, bus.Subscribers(testLogin.Name()))
}
