package orchestrator

import "context"

// ctxKey namespaces the task-local values this package stashes in a
// context.Context. Each request carries its own copy when a child context is
// derived, so concurrent top-level calls never share state through a
// package-level variable.
type ctxKey struct{ name string }

var (
	depthKey    = ctxKey{"delegation_depth"}
	deliveryKey = ctxKey{"delivery_callback"}
)

// DeliveryFunc is invoked with a formatted completion or error message once
// a background delegation finishes.
type DeliveryFunc func(message string)

// depthFromContext returns the current delegation depth, 0 at the top
// level.
func depthFromContext(ctx context.Context) int {
	d, _ := ctx.Value(depthKey).(int)
	return d
}

// withIncrementedDepth returns a child context carrying depth+1. The
// returned context is used only for the duration of one delegated call; the
// parent's context (and any sibling call built from it) is unaffected.
func withIncrementedDepth(ctx context.Context) context.Context {
	return context.WithValue(ctx, depthKey, depthFromContext(ctx)+1)
}

// WithDeliveryCallback attaches the transport's delivery callback for a
// background task's completion notice. Only the first goroutine that reads
// it (the background task's own, detached context) observes it; it is never
// looked up by sibling requests sharing a parent context.
func WithDeliveryCallback(ctx context.Context, deliver DeliveryFunc) context.Context {
	if deliver == nil {
		return ctx
	}
	return context.WithValue(ctx, deliveryKey, deliver)
}

// deliveryFromContext returns the installed delivery callback, if any.
func deliveryFromContext(ctx context.Context) (DeliveryFunc, bool) {
	d, ok := ctx.Value(deliveryKey).(DeliveryFunc)
	return d, ok
}
