package event

import (
	"cmp"
	"slices"
	"sync"
)

// Registry manages subscriber lists keyed by event name.
// It is thread-safe for concurrent access.
//
// Lists are created lazily on first registration and are kept, even when
// emptied, for the lifetime of the registry.
type Registry struct {
	mu   sync.RWMutex
	subs map[Name][]*subscription
}

// NewRegistry creates a new subscription registry.
func NewRegistry() *Registry {
	return &Registry{
		subs: make(map[Name][]*subscription),
	}
}

// Add appends a subscription to its name's list and re-sorts the list by
// priority, highest first. Equal priorities keep registration order.
// The same handler may be added any number of times.
func (r *Registry) Add(sub *subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub.registry = r

	subs := append(r.subs[sub.name], sub)
	slices.SortStableFunc(subs, func(a, b *subscription) int {
		return cmp.Compare(b.opts.priority, a.opts.priority)
	})
	r.subs[sub.name] = subs
}

// RemoveHandler removes the first subscription for name whose handler has
// the same identity as h. It reports whether anything was removed.
func (r *Registry) RemoveHandler(name Name, h Handler) bool {
	id := handlerIdentity(h)
	if id == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.subs[name]
	if !ok {
		return false
	}

	for i, s := range subs {
		if s.identity == id {
			r.subs[name] = slices.Delete(subs, i, i+1)
			s.markCancelled()
			return true
		}
	}
	return false
}

// RemoveID removes the subscription with the given ID from name's list.
func (r *Registry) RemoveID(name Name, subID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.subs[name]
	if !ok {
		return false
	}

	for i, s := range subs {
		if s.id == subID {
			r.subs[name] = slices.Delete(subs, i, i+1)
			s.markCancelled()
			return true
		}
	}
	return false
}

// Snapshot returns a copy of name's subscriber list as it is right now.
// Later registry changes never affect a snapshot already taken.
func (r *Registry) Snapshot(name Name) []*subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := r.subs[name]
	if len(subs) == 0 {
		return nil
	}
	return slices.Clone(subs)
}

// Count returns the number of subscriptions for name.
func (r *Registry) Count(name Name) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.subs[name])
}

// Total returns the number of subscriptions across all names.
func (r *Registry) Total() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, subs := range r.subs {
		total += len(subs)
	}
	return total
}

// Names returns every name that has ever had a subscriber, sorted.
func (r *Registry) Names() []Name {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]Name, 0, len(r.subs))
	for n := range r.subs {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
