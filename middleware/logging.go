package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/herald/event"
	"github.com/xraph/herald/handler"
)

// Logging returns middleware that logs handler start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, evt *event.Event, d handler.Descriptor, next Invoker) error {
		logger.Debug("handler started",
			slog.String("handler", d.Name),
			slog.String("event_id", evt.ID.String()),
			slog.String("event_type", evt.Type),
			slog.String("lane", d.Lane.String()),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("handler failed",
				slog.String("handler", d.Name),
				slog.String("event_id", evt.ID.String()),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Debug("handler completed",
				slog.String("handler", d.Name),
				slog.String("event_id", evt.ID.String()),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
