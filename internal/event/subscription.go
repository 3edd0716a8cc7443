package event

import (
	"reflect"
	"sync/atomic"
	"unsafe"
)

// Subscription is the handle returned by On and Once.
type Subscription interface {
	ID() string
	Name() Name
	Priority() Priority

	// Once reports whether the subscriber is removed after one successful
	// delivery.
	Once() bool

	// Active is true until the subscriber is cancelled, removed with Off or
	// consumed by its one delivery.
	Active() bool

	// Cancel removes the subscriber from the bus. Later calls do nothing.
	Cancel()
}

// SubscriptionOption adjusts a subscriber at registration.
type SubscriptionOption func(*subOptions)

type subOptions struct {
	priority Priority
	filter   FilterFunc
	once     bool
}

// WithPriority sets the delivery priority. The default is PriorityNormal.
func WithPriority(p Priority) SubscriptionOption {
	return func(o *subOptions) { o.priority = p }
}

// WithFilter skips the handler for payloads f rejects. A skipped
// once-subscriber stays registered.
func WithFilter(f FilterFunc) SubscriptionOption {
	return func(o *subOptions) { o.filter = f }
}

// WithOnce makes the subscriber one-shot, the same as registering with Once.
func WithOnce() SubscriptionOption {
	return func(o *subOptions) { o.once = true }
}

type subscription struct {
	id       string
	name     Name
	handler  Handler
	identity any
	opts     subOptions
	registry *Registry

	cancelled atomic.Bool
	// claimed is held by the emission delivering to a once-subscriber.
	claimed atomic.Bool
}

func newSubscription(id string, name Name, h Handler, opts ...SubscriptionOption) *subscription {
	o := subOptions{priority: PriorityNormal}
	for _, opt := range opts {
		opt(&o)
	}
	return &subscription{
		id:       id,
		name:     name,
		handler:  h,
		identity: handlerIdentity(h),
		opts:     o,
	}
}

func (s *subscription) ID() string         { return s.id }
func (s *subscription) Name() Name         { return s.name }
func (s *subscription) Priority() Priority { return s.opts.priority }
func (s *subscription) Once() bool         { return s.opts.once }
func (s *subscription) Active() bool       { return !s.cancelled.Load() }

func (s *subscription) Cancel() {
	if s.cancelled.Swap(true) {
		return
	}
	if s.registry != nil {
		s.registry.RemoveID(s.name, s.id)
	}
}

// markCancelled flips the handle without touching the registry; the
// registry calls it while it holds its own lock.
func (s *subscription) markCancelled() {
	s.cancelled.Store(true)
}

func (s *subscription) accepts(payload any) bool {
	return s.opts.filter == nil || s.opts.filter(payload)
}

// claim reserves a once-subscriber for one delivery. It fails while another
// emission holds the claim.
func (s *subscription) claim() bool {
	return s.claimed.CompareAndSwap(false, true)
}

// release gives the claim back after a failed delivery.
func (s *subscription) release() {
	s.claimed.Store(false)
}

// identifier lets adapters that wrap a handler be removed by the wrapped
// value.
type identifier interface {
	handlerIdentity() any
}

// refIdentity keys a handler that is not comparable by the object it refers
// to: the closure for funcs, the backing array or table for slices and maps.
type refIdentity struct {
	typ reflect.Type
	ptr unsafe.Pointer
}

// handlerIdentity returns the key Off compares. Comparable handlers are
// their own key. A func value is keyed by its closure, so two closures from
// the same literal, or method values on two receivers, are different
// handlers while copies of one func value match. Maps and slices are keyed
// by their data pointer. Anything else cannot be matched and yields nil.
func handlerIdentity(h any) any {
	if id, ok := h.(identifier); ok {
		return id.handlerIdentity()
	}
	if h == nil {
		return nil
	}

	v := reflect.ValueOf(h)
	if v.Comparable() {
		return h
	}
	switch v.Kind() {
	case reflect.Func:
		return refIdentity{typ: v.Type(), ptr: closurePointer(v)}
	case reflect.Map, reflect.Slice:
		return refIdentity{typ: v.Type(), ptr: v.UnsafePointer()}
	default:
		return nil
	}
}

// closurePointer returns the closure object behind a func value.
// reflect.Value.Pointer reports the code pointer instead, which every
// closure created from one literal shares.
func closurePointer(fn reflect.Value) unsafe.Pointer {
	if fn.IsNil() {
		return nil
	}
	slot := reflect.New(fn.Type()).Elem()
	slot.Set(fn)
	return *(*unsafe.Pointer)(slot.Addr().UnsafePointer())
}
