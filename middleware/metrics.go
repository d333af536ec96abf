package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/herald/event"
	"github.com/xraph/herald/handler"
)

// meterName is the instrumentation scope name for herald metrics.
const meterName = "github.com/xraph/herald"

// Metrics returns middleware that records per-handler execution metrics
// using the global OTel MeterProvider. If no MeterProvider is
// configured, noop instruments are used and this middleware becomes a
// pass-through.
//
// Instruments:
//   - herald.handler.duration (Float64Histogram): attempt time in
//     seconds, with attributes: handler, event_type, lane, status
//   - herald.handler.attempts (Int64Counter): total attempts,
//     with attributes: handler, event_type, lane, status
func Metrics() Middleware {
	meter := otel.Meter(meterName)
	return MetricsWithMeter(meter)
}

// MetricsWithMeter returns metrics middleware using the provided meter.
// This variant allows injecting a specific MeterProvider for testing.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// Create instruments once at middleware construction time.
	// OTel instruments are safe for concurrent use. On error, the API
	// returns noop instruments so the middleware degrades gracefully.
	duration, dErr := meter.Float64Histogram(
		"herald.handler.duration",
		metric.WithDescription("Duration of a handler attempt in seconds"),
		metric.WithUnit("s"),
	)
	_ = dErr // noop fallback guaranteed by OTel API contract

	attempts, aErr := meter.Int64Counter(
		"herald.handler.attempts",
		metric.WithDescription("Total number of handler attempts"),
		metric.WithUnit("{attempt}"),
	)
	_ = aErr // noop fallback guaranteed by OTel API contract

	return func(ctx context.Context, evt *event.Event, d handler.Descriptor, next Invoker) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start).Seconds()

		status := "ok"
		if err != nil {
			status = "error"
		}

		attrs := metric.WithAttributes(
			attribute.String("handler", d.Name),
			attribute.String("event_type", evt.Type),
			attribute.String("lane", d.Lane.String()),
			attribute.String("status", status),
		)

		duration.Record(ctx, elapsed, attrs)
		attempts.Add(ctx, 1, attrs)

		return err
	}
}
