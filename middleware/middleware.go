// Package middleware provides composable middleware for handler
// invocation. Middleware wraps each handler attempt synchronously and
// can modify execution (recover from panics, log, time out, add
// tracing and metrics).
package middleware

import (
	"context"

	"github.com/xraph/herald/event"
	"github.com/xraph/herald/handler"
)

// Invoker is the terminal function that executes handler logic.
type Invoker func(ctx context.Context) error

// Middleware wraps an Invoker with cross-cutting logic. It receives the
// current context, the event being dispatched, the descriptor of the
// handler under execution, and the next invoker to call. Middleware
// MUST call next to continue the chain (unless short-circuiting on
// error).
type Middleware func(ctx context.Context, evt *event.Event, d handler.Descriptor, next Invoker) error

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(logging, recover, metrics) executes as:
//
//	logging → recover → metrics → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, evt *event.Event, d handler.Descriptor, next Invoker) error {
		// Build the chain from the end backwards.
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) error {
				return mw(ctx, evt, d, prev)
			}
		}
		return h(ctx)
	}
}
