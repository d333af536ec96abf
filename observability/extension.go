// Package observability provides a hook extension recording dispatch
// lifecycle metrics via OpenTelemetry. Register it with the hook
// registry to track dispatch rates, handler completions, retries,
// terminal failures, and dead letter volume.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/herald/event"
	"github.com/xraph/herald/hook"
)

// meterName is the instrumentation scope name for the extension.
const meterName = "github.com/xraph/herald/observability"

// Compile-time interface checks.
var (
	_ hook.Extension         = (*MetricsExtension)(nil)
	_ hook.DispatchStarted   = (*MetricsExtension)(nil)
	_ hook.DispatchCompleted = (*MetricsExtension)(nil)
	_ hook.HandlerCompleted  = (*MetricsExtension)(nil)
	_ hook.HandlerRetrying   = (*MetricsExtension)(nil)
	_ hook.HandlerFailed     = (*MetricsExtension)(nil)
	_ hook.EventDeadLettered = (*MetricsExtension)(nil)
)

// MetricsExtension records lifecycle metrics. All instruments degrade
// to noops when no MeterProvider is configured.
type MetricsExtension struct {
	dispatches       metric.Int64Counter
	dispatchDuration metric.Float64Histogram
	handlerCompleted metric.Int64Counter
	handlerRetried   metric.Int64Counter
	handlerFailed    metric.Int64Counter
	deadLettered     metric.Int64Counter
}

// NewMetricsExtension creates the extension using the global OTel
// MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates the extension with the provided
// meter, for injecting a specific MeterProvider in tests.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	m := &MetricsExtension{}

	// On error the OTel API returns noop instruments, so the extension
	// degrades gracefully.
	m.dispatches, _ = meter.Int64Counter(
		"herald.dispatch.count",
		metric.WithDescription("Total event dispatches"),
		metric.WithUnit("{dispatch}"),
	)
	m.dispatchDuration, _ = meter.Float64Histogram(
		"herald.dispatch.duration",
		metric.WithDescription("Duration of a full event dispatch in seconds"),
		metric.WithUnit("s"),
	)
	m.handlerCompleted, _ = meter.Int64Counter(
		"herald.handler.completed",
		metric.WithDescription("Handlers completed successfully"),
		metric.WithUnit("{handler}"),
	)
	m.handlerRetried, _ = meter.Int64Counter(
		"herald.handler.retried",
		metric.WithDescription("Handler attempts that will be retried"),
		metric.WithUnit("{attempt}"),
	)
	m.handlerFailed, _ = meter.Int64Counter(
		"herald.handler.failed",
		metric.WithDescription("Handlers that failed terminally"),
		metric.WithUnit("{handler}"),
	)
	m.deadLettered, _ = meter.Int64Counter(
		"herald.events.deadlettered",
		metric.WithDescription("Events handed to the dead letter store"),
		metric.WithUnit("{event}"),
	)

	return m
}

// Name implements hook.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnDispatchStarted implements hook.DispatchStarted.
func (m *MetricsExtension) OnDispatchStarted(ctx context.Context, evt *event.Event, _ int) error {
	m.dispatches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", evt.Type),
	))
	return nil
}

// OnDispatchCompleted implements hook.DispatchCompleted.
func (m *MetricsExtension) OnDispatchCompleted(ctx context.Context, evt *event.Event, _, failed, _ int, elapsed time.Duration) error {
	status := "ok"
	if failed > 0 {
		status = "error"
	}
	m.dispatchDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("event_type", evt.Type),
		attribute.String("status", status),
	))
	return nil
}

// OnHandlerCompleted implements hook.HandlerCompleted.
func (m *MetricsExtension) OnHandlerCompleted(ctx context.Context, evt *event.Event, handlerName string, _ time.Duration) error {
	m.handlerCompleted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", evt.Type),
		attribute.String("handler", handlerName),
	))
	return nil
}

// OnHandlerRetrying implements hook.HandlerRetrying.
func (m *MetricsExtension) OnHandlerRetrying(ctx context.Context, evt *event.Event, handlerName string, _ int, _ time.Duration) error {
	m.handlerRetried.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", evt.Type),
		attribute.String("handler", handlerName),
	))
	return nil
}

// OnHandlerFailed implements hook.HandlerFailed.
func (m *MetricsExtension) OnHandlerFailed(ctx context.Context, evt *event.Event, handlerName string, _ int, _ error) error {
	m.handlerFailed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", evt.Type),
		attribute.String("handler", handlerName),
	))
	return nil
}

// OnEventDeadLettered implements hook.EventDeadLettered.
func (m *MetricsExtension) OnEventDeadLettered(ctx context.Context, evt *event.Event, handlerName string, _ error) error {
	m.deadLettered.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", evt.Type),
		attribute.String("handler", handlerName),
	))
	return nil
}
