package middleware

import (
	"context"
	"time"

	"github.com/xraph/herald/event"
	"github.com/xraph/herald/handler"
)

// Timeout returns middleware that bounds a single handler attempt to d.
// The attempt context carries the deadline, and the middleware returns
// context.DeadlineExceeded as soon as it passes even if the handler
// ignores its context — the invoker keeps running on its goroutine, but
// the attempt is treated as failed and becomes eligible for retry.
//
// A zero or negative duration disables the timeout.
func Timeout(d time.Duration) Middleware {
	return func(ctx context.Context, _ *event.Event, _ handler.Descriptor, next Invoker) error {
		if d <= 0 {
			return next(ctx)
		}

		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			done <- next(ctx)
		}()

		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
