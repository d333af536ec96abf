package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/xraph/herald/event"
	"github.com/xraph/herald/handler"
)

// Recover returns middleware that recovers from panics in the handler
// chain. Panics are converted to errors and logged with a stack trace,
// so one panicking handler cannot take down a worker goroutine.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, evt *event.Event, d handler.Descriptor, next Invoker) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("handler panicked",
					slog.String("handler", d.Name),
					slog.String("event_id", evt.ID.String()),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				retErr = fmt.Errorf("panic in handler %s: %v", d.Name, r)
			}
		}()
		return next(ctx)
	}
}
