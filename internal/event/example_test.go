package event_test

import (
	"context"
	"fmt"

	"github.com/dshills/evbus/internal/event"
)

type Login struct {
	UserID string
}

var UserLogin = event.Define[Login]("user:login")

func Example() {
	bus := event.NewBus()
	ctx := context.Background()

	bus.Use(func(ctx context.Context, name event.Name, payload any, next event.Next) error {
		fmt.Println("before", name)
		err := next(ctx, payload)
		fmt.Println("after", name)
		return err
	})

	event.OnFunc(bus, UserLogin, func(ctx context.Context, p Login) error {
		fmt.Println("audit", p.UserID)
		return nil
	}, event.WithPriority(event.PriorityLow))

	event.OnFunc(bus, UserLogin, func(ctx context.Context, p Login) error {
		fmt.Println("welcome", p.UserID)
		return nil
	}, event.WithPriority(event.PriorityHigh))

	event.OnceFunc(bus, UserLogin, func(ctx context.Context, p Login) error {
		fmt.Println("first login", p.UserID)
		return nil
	})

	_ = event.Emit(ctx, bus, UserLogin, Login{UserID: "123"})
	_ = event.Emit(ctx, bus, UserLogin, Login{UserID: "456"})

	// Output:
	// before user:login
	// welcome 123
	// first login 123
	// audit 123
	// after user:login
	// before user:login
	// welcome 456
	// audit 456
	// after user:login
}

func ExampleBus_Use_shortCircuit() {
	bus := event.NewBus()

	bus.Use(func(ctx context.Context, name event.Name, payload any, next event.Next) error {
		if payload == nil {
			return nil
		}
		return next(ctx, payload)
	})
	bus.On("data:update", event.HandlerFunc(func(ctx context.Context, payload any) error {
		fmt.Println("update", payload)
		return nil
	}))

	_ = bus.Emit(context.Background(), "data:update", nil)
	_ = bus.Emit(context.Background(), "data:update", 42)
	fmt.Println("short circuits:", bus.Stats().ShortCircuits)

	// Output:
	// update 42
	// short circuits: 1
}
