// Package dispatch invokes subscriber handlers for the event bus.
//
// An Invoker runs one handler at a time in the caller's goroutine. A panic
// inside the handler is recovered and reported in the returned Call along
// with its stack, so the bus can turn it into an error instead of unwinding
// through the emitter.
//
//	call := inv.Invoke(ctx, payload, h)
//	if !call.OK() {
//	    // call.Err or call.Panic
//	}
//
// The bus invokes subscribers one by one rather than handing over a batch,
// since one-shot subscriptions are settled between calls.
package dispatch
