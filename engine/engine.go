// Package engine wires all Herald subsystems together: the two lane
// registries and their worker pools, the dispatch executor, the hook
// registry, transport sources, the cron scheduler, and the dead letter
// service.
//
// This package sits above all subsystem packages and below the
// application layer. The root herald package defines sentinels and IDs
// imported by every subsystem and so cannot import them back.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/herald"
	"github.com/xraph/herald/backoff"
	"github.com/xraph/herald/cron"
	"github.com/xraph/herald/dispatch"
	"github.com/xraph/herald/dlq"
	"github.com/xraph/herald/event"
	"github.com/xraph/herald/handler"
	"github.com/xraph/herald/hook"
	mw "github.com/xraph/herald/middleware"
	"github.com/xraph/herald/notify"
	"github.com/xraph/herald/observability"
	"github.com/xraph/herald/source"
	"github.com/xraph/herald/store"
	"github.com/xraph/herald/worker"
)

// sourceSpec pairs a source with its runner options until Start.
type sourceSpec struct {
	src  source.Source
	opts []source.RunnerOption
}

// Engine is the top-level facade over the dispatch subsystems.
// Construct with New, register handlers, then Start.
type Engine struct {
	cfg    dispatch.Config
	logger *slog.Logger

	nonBlocking *handler.Registry
	blocking    *handler.Registry
	generalPool *worker.Pool
	ioPool      *worker.Pool
	executor    *dispatch.Executor
	hooks       *hook.Registry

	dlqService  *dlq.Service
	replayer    *dlq.Replayer
	replayPause backoff.Strategy
	journal     event.Journal
	notifier    notify.Notifier

	sourceSpecs []sourceSpec
	runners     []*source.Runner
	schedules   []cron.Schedule
	scheduler   *cron.Scheduler

	extensions []hook.Extension
	userMws    []mw.Middleware

	ioPoolSize     int
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	started atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used across all subsystems.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithDispatchConfig sets the executor configuration. Defaults to
// dispatch.DefaultConfig.
func WithDispatchConfig(cfg dispatch.Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithHook registers a lifecycle hook extension.
func WithHook(ext hook.Extension) Option {
	return func(e *Engine) { e.extensions = append(e.extensions, ext) }
}

// WithMiddleware appends middleware after the default chain.
func WithMiddleware(m mw.Middleware) Option {
	return func(e *Engine) { e.userMws = append(e.userMws, m) }
}

// WithStore wires a composite store as both the dead letter store and
// the event journal.
func WithStore(s store.Store) Option {
	return func(e *Engine) {
		e.dlqService = dlq.NewService(s)
		e.journal = s
	}
}

// WithDLQ wires a dead letter store. Overrides the DLQ side of
// WithStore.
func WithDLQ(s dlq.Store) Option {
	return func(e *Engine) { e.dlqService = dlq.NewService(s) }
}

// WithJournal wires an event journal recording every completed
// dispatch. Overrides the journal side of WithStore.
func WithJournal(j event.Journal) Option {
	return func(e *Engine) { e.journal = j }
}

// WithNotifier wires the terminal-failure notifier.
func WithNotifier(n notify.Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithReplayPause spaces consecutive DLQ replays. Defaults to no pause.
func WithReplayPause(b backoff.Strategy) Option {
	return func(e *Engine) { e.replayPause = b }
}

// WithSource adds a transport source, supervised from Start to Stop.
func WithSource(src source.Source, opts ...source.RunnerOption) Option {
	return func(e *Engine) {
		e.sourceSpecs = append(e.sourceSpecs, sourceSpec{src: src, opts: opts})
	}
}

// WithSchedule adds a cron schedule emitting synthetic events.
func WithSchedule(s cron.Schedule) Option {
	return func(e *Engine) { e.schedules = append(e.schedules, s) }
}

// WithBlockingPoolSize sets the blocking lane's worker count. Defaults
// to the dispatch MaxConcurrency.
func WithBlockingPoolSize(n int) Option {
	return func(e *Engine) { e.ioPoolSize = n }
}

// WithTracerProvider sets a custom OTel TracerProvider. The global
// provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracerProvider = tp }
}

// WithMeterProvider sets a custom OTel MeterProvider for both the
// metrics middleware and the observability extension. The global
// provider is used otherwise.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(e *Engine) { e.meterProvider = mp }
}

// New builds an engine. Register handlers on the result, then call
// Start.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:    dispatch.DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}

	e.nonBlocking = handler.NewRegistry(handler.WithLogger(e.logger))
	e.blocking = handler.NewRegistry(handler.WithLogger(e.logger))

	if e.ioPoolSize <= 0 {
		e.ioPoolSize = e.cfg.MaxConcurrency
	}
	e.generalPool = worker.NewPool("general", e.cfg.MaxConcurrency, worker.WithLogger(e.logger))
	e.ioPool = worker.NewPool("blocking", e.ioPoolSize, worker.WithLogger(e.logger))

	e.hooks = hook.NewRegistry(e.logger)
	e.registerBuiltinExtensions()
	for _, ext := range e.extensions {
		e.hooks.Register(ext)
	}

	execOpts := []dispatch.Option{
		dispatch.WithLogger(e.logger),
		dispatch.WithHooks(e.hooks),
		dispatch.WithMiddleware(e.buildMiddleware()...),
	}
	if e.dlqService != nil {
		execOpts = append(execOpts, dispatch.WithDLQ(e.dlqService))
	}
	if e.notifier != nil {
		execOpts = append(execOpts, dispatch.WithNotifier(e.notifier))
	}

	executor, err := dispatch.NewExecutor(e.cfg, e.nonBlocking, e.blocking, e.generalPool, e.ioPool, execOpts...)
	if err != nil {
		return nil, err
	}
	e.executor = executor

	if e.dlqService != nil {
		e.replayer = dlq.NewReplayer(e.dlqService, executor, e.replayPause, e.logger)
	}

	if len(e.schedules) > 0 {
		e.scheduler = cron.NewScheduler(executor.Execute, cron.WithLogger(e.logger))
		for _, s := range e.schedules {
			if addErr := e.scheduler.Add(s); addErr != nil {
				return nil, addErr
			}
		}
	}

	for _, spec := range e.sourceSpecs {
		runnerOpts := append([]source.RunnerOption{source.WithLogger(e.logger)}, spec.opts...)
		e.runners = append(e.runners, source.NewRunner(spec.src, executor.Execute, runnerOpts...))
	}

	return e, nil
}

// registerBuiltinExtensions wires the observability extension and,
// when a journal is configured, the journal extension.
func (e *Engine) registerBuiltinExtensions() {
	if e.cfg.EnableMetrics {
		var obs *observability.MetricsExtension
		if e.meterProvider != nil {
			obs = observability.NewMetricsExtensionWithMeter(e.meterProvider.Meter("github.com/xraph/herald/observability"))
		} else {
			obs = observability.NewMetricsExtension()
		}
		e.hooks.Register(obs)
	}

	if e.journal != nil {
		e.hooks.Register(&journalExtension{journal: e.journal})
	}
}

// buildMiddleware assembles the default chain, outermost first:
// recover, tracing, metrics, logging, then user middleware.
func (e *Engine) buildMiddleware() []mw.Middleware {
	chain := []mw.Middleware{mw.Recover(e.logger)}

	if e.tracerProvider != nil {
		chain = append(chain, mw.TracingWithTracer(e.tracerProvider.Tracer("github.com/xraph/herald")))
	} else {
		chain = append(chain, mw.Tracing())
	}

	if e.cfg.EnableMetrics {
		if e.meterProvider != nil {
			chain = append(chain, mw.MetricsWithMeter(e.meterProvider.Meter("github.com/xraph/herald")))
		} else {
			chain = append(chain, mw.Metrics())
		}
	}

	chain = append(chain, mw.Logging(e.logger))
	return append(chain, e.userMws...)
}

// RegisterOption adjusts a handler descriptor at registration.
type RegisterOption func(*handler.Descriptor)

// WithOrder sets the handler's dispatch order. Lower runs earlier;
// defaults to zero.
func WithOrder(n int) RegisterOption {
	return func(d *handler.Descriptor) { d.Order = n }
}

// RegisterNonBlocking registers a handler on the non-blocking lane.
func (e *Engine) RegisterNonBlocking(eventType, name string, fn handler.Func, opts ...RegisterOption) error {
	return registerOn(e.nonBlocking, eventType, name, handler.LaneNonBlocking, fn, opts)
}

// RegisterBlocking registers a handler on the blocking I/O lane.
func (e *Engine) RegisterBlocking(eventType, name string, fn handler.Func, opts ...RegisterOption) error {
	return registerOn(e.blocking, eventType, name, handler.LaneBlocking, fn, opts)
}

func registerOn(reg *handler.Registry, eventType, name string, lane handler.Lane, fn handler.Func, opts []RegisterOption) error {
	d := handler.Descriptor{
		EventType: eventType,
		Name:      name,
		Lane:      lane,
		Fn:        fn,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return reg.Register(d)
}

// Start seals both registries and starts the pools, sources, and
// scheduler. Handlers cannot be registered afterwards.
func (e *Engine) Start(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return nil
	}

	e.nonBlocking.Seal()
	e.blocking.Seal()

	if err := e.generalPool.Start(ctx); err != nil {
		return fmt.Errorf("start general pool: %w", err)
	}
	if err := e.ioPool.Start(ctx); err != nil {
		return fmt.Errorf("start blocking pool: %w", err)
	}

	for _, r := range e.runners {
		if err := r.Start(ctx); err != nil {
			return fmt.Errorf("start source: %w", err)
		}
	}
	if e.scheduler != nil {
		if err := e.scheduler.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	}

	e.logger.Info("engine started",
		slog.Int("non_blocking_handlers", e.nonBlocking.HandlerCount()),
		slog.Int("blocking_handlers", e.blocking.HandlerCount()),
		slog.Int("sources", len(e.runners)),
		slog.Int("max_concurrency", e.cfg.MaxConcurrency),
	)
	return nil
}

// Publish dispatches an event through the executor.
func (e *Engine) Publish(ctx context.Context, evt *event.Event) error {
	if !e.started.Load() {
		return herald.ErrDispatchDisabled
	}
	return e.executor.Execute(ctx, evt)
}

// PublishWithResult is Publish exposing per-handler outcomes.
func (e *Engine) PublishWithResult(ctx context.Context, evt *event.Event) (*dispatch.Result, error) {
	if !e.started.Load() {
		return nil, herald.ErrDispatchDisabled
	}
	return e.executor.ExecuteWithResult(ctx, evt)
}

// Stop shuts the engine down: sources and scheduler first so no new
// events arrive, then the pools drain in-flight handlers, then the
// Shutdown hook fires.
func (e *Engine) Stop(ctx context.Context) error {
	if !e.started.CompareAndSwap(true, false) {
		return nil
	}

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if e.scheduler != nil {
		record(e.scheduler.Stop(ctx))
	}
	for _, r := range e.runners {
		record(r.Stop(ctx))
	}
	record(e.generalPool.Stop(ctx))
	record(e.ioPool.Stop(ctx))

	e.hooks.EmitShutdown(ctx)
	e.logger.Info("engine stopped")
	return firstErr
}

// Executor returns the dispatch executor.
func (e *Engine) Executor() *dispatch.Executor { return e.executor }

// Hooks returns the hook registry.
func (e *Engine) Hooks() *hook.Registry { return e.hooks }

// DLQ returns the dead letter service, or nil when no store is wired.
func (e *Engine) DLQ() *dlq.Service { return e.dlqService }

// Replayer returns the DLQ replayer, or nil when no store is wired.
func (e *Engine) Replayer() *dlq.Replayer { return e.replayer }

// journalExtension appends every dispatched event to the journal after
// its dispatch completes.
type journalExtension struct {
	journal event.Journal
}

func (j *journalExtension) Name() string { return "journal" }

func (j *journalExtension) OnDispatchCompleted(ctx context.Context, evt *event.Event, _, _, _ int, _ time.Duration) error {
	return j.journal.AppendEvent(ctx, evt)
}
