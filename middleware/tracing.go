package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/herald/event"
	"github.com/xraph/herald/handler"
)

// tracerName is the instrumentation scope name for herald tracing.
const tracerName = "github.com/xraph/herald"

// Tracing returns middleware that wraps each handler attempt in an
// OpenTelemetry span. If no TracerProvider is configured globally, the
// default noop tracer is used and this middleware becomes a
// pass-through with zero overhead.
//
// Span attributes include: herald.event.id, herald.event.type,
// herald.handler, herald.lane. On error, the span status is set to
// codes.Error with the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided
// tracer. This variant allows injecting a specific TracerProvider for
// testing or when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, evt *event.Event, d handler.Descriptor, next Invoker) error {
		ctx, span := tracer.Start(ctx, "herald.handler.invoke",
			trace.WithAttributes(
				attribute.String("herald.event.id", evt.ID.String()),
				attribute.String("herald.event.type", evt.Type),
				attribute.String("herald.handler", d.Name),
				attribute.String("herald.lane", d.Lane.String()),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
