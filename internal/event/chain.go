package event

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
)

// Chain is an append-only list of middleware composed in onion order: the
// first middleware added is the outermost, the last sits directly around
// subscriber delivery.
type Chain struct {
	mu     sync.RWMutex
	stages []Middleware
}

// NewChain creates an empty middleware chain.
func NewChain() *Chain {
	return &Chain{}
}

// Use appends a middleware. Nil middleware are ignored.
func (c *Chain) Use(mw Middleware) {
	if mw == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stages = append(c.stages, mw)
}

// Len returns the number of middleware in the chain.
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.stages)
}

// Run passes payload through every middleware and finally into final.
// The middleware list is captured when Run starts.
//
// An error from final or from any stage travels back out through each
// enclosing stage's next call. A stage whose next is called a second time
// gets ErrNextCalled and the downstream chain is not run again.
func (c *Chain) Run(ctx context.Context, name Name, payload any, final Next) error {
	c.mu.RLock()
	stages := slices.Clone(c.stages)
	c.mu.RUnlock()

	r := &chainRun{
		stages: stages,
		name:   name,
		final:  final,
		called: make([]atomic.Bool, len(stages)),
	}
	return r.invoke(ctx, 0, payload)
}

// chainRun is the state of one pass through the chain.
type chainRun struct {
	stages []Middleware
	name   Name
	final  Next
	called []atomic.Bool
}

// invoke runs stage i, handing it a continuation into stage i+1.
func (r *chainRun) invoke(ctx context.Context, i int, payload any) error {
	if i == len(r.stages) {
		if r.final == nil {
			return nil
		}
		return r.final(ctx, payload)
	}

	next := func(ctx context.Context, payload any) error {
		if r.called[i].Swap(true) {
			return ErrNextCalled
		}
		return r.invoke(ctx, i+1, payload)
	}
	return r.stages[i](ctx, r.name, payload, next)
}
