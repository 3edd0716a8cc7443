package event

import (
	"context"
	"sync"
)

// Group collects the subscriptions one component makes so it can drop them
// all with a single Close.
type Group struct {
	bus *Bus

	mu     sync.Mutex
	subs   []Subscription
	closed bool
}

// NewGroup returns an empty group subscribing on bus.
func NewGroup(bus *Bus) *Group {
	return &Group{bus: bus}
}

// On is Bus.On, remembered by the group.
func (g *Group) On(name Name, h Handler, opts ...SubscriptionOption) (Subscription, error) {
	return g.add(func() Subscription { return g.bus.On(name, h, opts...) })
}

// Once is Bus.Once, remembered by the group.
func (g *Group) Once(name Name, h Handler, opts ...SubscriptionOption) (Subscription, error) {
	return g.add(func() Subscription { return g.bus.Once(name, h, opts...) })
}

// GroupOn is OnFunc through a group.
func GroupOn[T any](g *Group, k Key[T], fn func(ctx context.Context, payload T) error, opts ...SubscriptionOption) (Subscription, error) {
	return g.add(func() Subscription { return OnFunc(g.bus, k, fn, opts...) })
}

// GroupOnce is OnceFunc through a group.
func GroupOnce[T any](g *Group, k Key[T], fn func(ctx context.Context, payload T) error, opts ...SubscriptionOption) (Subscription, error) {
	return g.add(func() Subscription { return OnceFunc(g.bus, k, fn, opts...) })
}

// add subscribes under the lock so a concurrent Close cannot miss it.
func (g *Group) add(subscribe func() Subscription) (Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, ErrGroupClosed
	}
	sub := subscribe()
	g.subs = append(g.subs, sub)
	return sub, nil
}

// Close cancels every subscription in the group. Subscribing through a
// closed group fails with ErrGroupClosed.
func (g *Group) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	for _, sub := range g.subs {
		sub.Cancel()
	}
	g.subs = nil
	return nil
}

// Active counts the group's subscriptions that are still registered.
func (g *Group) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, sub := range g.subs {
		if sub.Active() {
			n++
		}
	}
	return n
}

func (g *Group) Closed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}
