package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/xraph/herald"
	"github.com/xraph/herald/dlq"
	"github.com/xraph/herald/event"
	"github.com/xraph/herald/handler"
	"github.com/xraph/herald/hook"
	"github.com/xraph/herald/middleware"
	"github.com/xraph/herald/notify"
	"github.com/xraph/herald/worker"
)

// Executor fans one event out to its registered handlers. Create with
// NewExecutor; safe for concurrent use once built.
type Executor struct {
	cfg         Config
	nonBlocking *handler.Registry
	blocking    *handler.Registry
	generalPool *worker.Pool
	ioPool      *worker.Pool

	// gate bounds in-flight handler executions across both lanes.
	gate *semaphore.Weighted

	mw       middleware.Middleware
	hooks    *hook.Registry
	dlqSvc   *dlq.Service
	notifier notify.Notifier
	logger   *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the executor's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithHooks sets the hook registry lifecycle events are emitted to.
func WithHooks(r *hook.Registry) Option {
	return func(e *Executor) { e.hooks = r }
}

// WithMiddleware sets the middleware chain wrapping each handler
// attempt. The first middleware is the outermost wrapper.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(e *Executor) { e.mw = middleware.Chain(mws...) }
}

// WithDLQ sets the dead letter service used by the terminal-failure
// funnel when ErrorHandling.EnableDeadLetter is on.
func WithDLQ(svc *dlq.Service) Option {
	return func(e *Executor) { e.dlqSvc = svc }
}

// WithNotifier sets the notifier used by the terminal-failure funnel
// when ErrorHandling.EnableNotification is on.
func WithNotifier(n notify.Notifier) Option {
	return func(e *Executor) { e.notifier = n }
}

// NewExecutor creates an executor over the two lane registries and
// their worker pools. The pools must be started by the caller before
// the first Execute and stopped after the last.
func NewExecutor(cfg Config, nonBlocking, blocking *handler.Registry, general, io *worker.Pool, opts ...Option) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if nonBlocking == nil || blocking == nil {
		return nil, fmt.Errorf("%w: both lane registries are required", herald.ErrInvalidConfig)
	}
	if general == nil || io == nil {
		return nil, fmt.Errorf("%w: both worker pools are required", herald.ErrInvalidConfig)
	}

	e := &Executor{
		cfg:         cfg,
		nonBlocking: nonBlocking,
		blocking:    blocking,
		generalPool: general,
		ioPool:      io,
		gate:        semaphore.NewWeighted(int64(cfg.MaxConcurrency)),
		mw:          middleware.Chain(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.hooks == nil {
		e.hooks = hook.NewRegistry(e.logger)
	}
	return e, nil
}

// Config returns the executor configuration.
func (e *Executor) Config() Config { return e.cfg }

// Execute dispatches the event to every registered handler for its
// type. See the package documentation for the error contract.
func (e *Executor) Execute(ctx context.Context, evt *event.Event) error {
	_, err := e.ExecuteWithResult(ctx, evt)
	return err
}

// ExecuteWithResult is Execute exposing per-handler outcomes.
func (e *Executor) ExecuteWithResult(ctx context.Context, evt *event.Event) (*Result, error) {
	if !e.cfg.Enabled {
		return nil, herald.ErrDispatchDisabled
	}

	handlers := e.lookup(evt.Type)
	res := &Result{EventID: evt.ID, EventType: evt.Type}
	if len(handlers) == 0 {
		return res, nil
	}

	e.hooks.EmitDispatchStarted(ctx, evt, len(handlers))
	e.debug(ctx, "dispatch started",
		slog.String("event_id", evt.ID.String()),
		slog.String("event_type", evt.Type),
		slog.Int("handlers", len(handlers)),
	)

	start := time.Now()
	if e.cfg.Parallel && len(handlers) > 1 {
		res.Outcomes = e.runParallel(ctx, evt, handlers)
	} else {
		res.Outcomes = e.runSequential(ctx, evt, handlers)
	}
	res.Elapsed = time.Since(start)

	succeeded, failed, skipped := res.Succeeded(), res.Failed(), res.Skipped()
	e.hooks.EmitDispatchCompleted(ctx, evt, succeeded, failed, skipped, res.Elapsed)

	if failed > 0 && !e.cfg.ContinueOnError {
		return res, fmt.Errorf("%w: %d of %d handlers failed for event type %s",
			herald.ErrDispatchFailed, failed, len(handlers), evt.Type)
	}
	return res, nil
}

// lookup merges both lane registries' handlers for the exact event
// type, ordered by ascending Order. Ties keep registration order, with
// non-blocking handlers ahead of blocking ones.
func (e *Executor) lookup(eventType string) []handler.Descriptor {
	nb := e.nonBlocking.Handlers(eventType)
	bl := e.blocking.Handlers(eventType)
	if len(bl) == 0 {
		return nb
	}

	merged := make([]handler.Descriptor, 0, len(nb)+len(bl))
	merged = append(merged, nb...)
	merged = append(merged, bl...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Order < merged[j].Order
	})
	return merged
}

// runSequential runs handlers strictly in order, one at a time. A
// terminal failure under fail-fast skips the remaining handlers.
func (e *Executor) runSequential(ctx context.Context, evt *event.Event, handlers []handler.Descriptor) []Outcome {
	outcomes := make([]Outcome, len(handlers))

	aborted := false
	for i, d := range handlers {
		if aborted {
			outcomes[i] = Outcome{HandlerName: d.Name, EventID: evt.ID, Skipped: true}
			continue
		}

		ch, err := e.submit(ctx, evt, d)
		if err != nil {
			outcomes[i] = e.submitFailure(ctx, evt, d, err)
		} else {
			outcomes[i] = <-ch
		}

		if outcomes[i].Err != nil && !e.cfg.ContinueOnError {
			aborted = true
		}
	}
	return outcomes
}

// runParallel submits all handlers in order, then waits for every
// started handler to finish. Fail-fast does not cancel in-flight
// handlers; it only affects the dispatch-level error.
func (e *Executor) runParallel(ctx context.Context, evt *event.Event, handlers []handler.Descriptor) []Outcome {
	outcomes := make([]Outcome, len(handlers))

	type pending struct {
		idx int
		ch  <-chan Outcome
	}
	pendings := make([]pending, 0, len(handlers))

	for i, d := range handlers {
		ch, err := e.submit(ctx, evt, d)
		if err != nil {
			outcomes[i] = e.submitFailure(ctx, evt, d, err)
			continue
		}
		pendings = append(pendings, pending{idx: i, ch: ch})
	}

	for _, p := range pendings {
		outcomes[p.idx] = <-p.ch
	}
	return outcomes
}

// submit schedules the handler on its lane's pool. The returned channel
// receives exactly one Outcome when the handler finishes.
func (e *Executor) submit(ctx context.Context, evt *event.Event, d handler.Descriptor) (<-chan Outcome, error) {
	out := make(chan Outcome, 1)

	task := func() {
		if err := e.gate.Acquire(ctx, 1); err != nil {
			wrapped := fmt.Errorf("acquire concurrency slot: %w", err)
			e.handleFinalError(ctx, evt, d.Name, 0, wrapped)
			out <- Outcome{HandlerName: d.Name, EventID: evt.ID, Err: wrapped}
			return
		}
		defer e.gate.Release(1)

		out <- e.runHandler(ctx, evt, d)
	}

	if err := e.poolFor(d.Lane).Submit(ctx, task); err != nil {
		return nil, err
	}
	return out, nil
}

// submitFailure records a handler that could not be scheduled at all.
func (e *Executor) submitFailure(ctx context.Context, evt *event.Event, d handler.Descriptor, err error) Outcome {
	wrapped := fmt.Errorf("submit handler %s: %w", d.Name, err)
	e.handleFinalError(ctx, evt, d.Name, 0, wrapped)
	return Outcome{HandlerName: d.Name, EventID: evt.ID, Err: wrapped}
}

func (e *Executor) poolFor(l handler.Lane) *worker.Pool {
	if l == handler.LaneBlocking {
		return e.ioPool
	}
	return e.generalPool
}

// runHandler drives one handler through its attempts: invoke, classify,
// back off, retry. It returns the terminal outcome and routes terminal
// failures through the funnel.
func (e *Executor) runHandler(ctx context.Context, evt *event.Event, d handler.Descriptor) Outcome {
	start := time.Now()

	maxAttempts := 1
	if e.cfg.EnableRetry {
		maxAttempts += e.cfg.Policy.MaxRetries
	}

	var lastErr error
	attempts := 0
	for attempts < maxAttempts {
		attempts++

		err := e.invoke(ctx, evt, d)
		if err == nil {
			elapsed := time.Since(start)
			e.hooks.EmitHandlerCompleted(ctx, evt, d.Name, elapsed)
			e.debug(ctx, "handler completed",
				slog.String("event_id", evt.ID.String()),
				slog.String("handler", d.Name),
				slog.Int("attempt", attempts),
				slog.Duration("elapsed", elapsed),
			)
			return Outcome{HandlerName: d.Name, EventID: evt.ID, Attempts: attempts, Elapsed: elapsed}
		}
		lastErr = err

		if attempts >= maxAttempts || !e.cfg.Policy.Retryable(err) {
			break
		}

		delay := e.cfg.Policy.Delay(attempts)
		e.hooks.EmitHandlerRetrying(ctx, evt, d.Name, attempts, delay)
		e.debug(ctx, "handler retrying",
			slog.String("event_id", evt.ID.String()),
			slog.String("handler", d.Name),
			slog.Int("attempt", attempts),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)

		if sleepErr := sleepContext(ctx, delay); sleepErr != nil {
			lastErr = fmt.Errorf("retry wait interrupted: %w", sleepErr)
			break
		}
	}

	elapsed := time.Since(start)
	e.handleFinalError(ctx, evt, d.Name, attempts, lastErr)
	return Outcome{HandlerName: d.Name, EventID: evt.ID, Attempts: attempts, Err: lastErr, Elapsed: elapsed}
}

// invoke runs one attempt through the middleware chain. With a timeout
// configured, a watchdog bounds the attempt even when the handler
// ignores context cancellation; the abandoned goroutine finishes in the
// background.
func (e *Executor) invoke(ctx context.Context, evt *event.Event, d handler.Descriptor) error {
	terminal := func(ctx context.Context) error {
		return d.Fn(ctx, evt)
	}

	if e.cfg.Timeout <= 0 {
		return e.mw(ctx, evt, d, terminal)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- e.mw(attemptCtx, evt, d, terminal)
	}()

	select {
	case err := <-done:
		return err
	case <-attemptCtx.Done():
		return fmt.Errorf("handler %s attempt timed out after %v: %w", d.Name, e.cfg.Timeout, attemptCtx.Err())
	}
}

// handleFinalError is the single funnel every exhausted failure passes
// through: configurable-level log, HandlerFailed hook, optional DLQ
// hand-off, optional notification. Funnel side effects never change
// dispatch control flow.
func (e *Executor) handleFinalError(ctx context.Context, evt *event.Event, handlerName string, attempts int, err error) {
	e.logger.Log(ctx, e.cfg.ErrorHandling.LogLevel, "handler failed terminally",
		slog.String("event_id", evt.ID.String()),
		slog.String("event_type", evt.Type),
		slog.String("handler", handlerName),
		slog.Int("attempts", attempts),
		slog.String("error", err.Error()),
	)

	e.hooks.EmitHandlerFailed(ctx, evt, handlerName, attempts, err)

	if e.cfg.ErrorHandling.EnableDeadLetter && e.dlqSvc != nil {
		maxRetries := 0
		if e.cfg.EnableRetry {
			maxRetries = e.cfg.Policy.MaxRetries
		}
		if dlqErr := e.dlqSvc.Push(ctx, evt, handlerName, attempts, maxRetries, err); dlqErr != nil {
			e.logger.Error("failed to push event to dead letter store",
				slog.String("event_id", evt.ID.String()),
				slog.String("handler", handlerName),
				slog.String("error", dlqErr.Error()),
			)
		} else {
			e.hooks.EmitEventDeadLettered(ctx, evt, handlerName, err)
		}
	}

	if e.cfg.ErrorHandling.EnableNotification && e.notifier != nil {
		failure := &notify.Failure{
			EventID:     evt.ID,
			EventType:   evt.Type,
			HandlerName: handlerName,
			Attempts:    attempts,
			Error:       err.Error(),
			FailedAt:    time.Now().UTC(),
		}
		if nErr := e.notifier.Notify(ctx, failure); nErr != nil {
			e.logger.Warn("failure notification error",
				slog.String("event_id", evt.ID.String()),
				slog.String("error", nErr.Error()),
			)
		}
	}
}

func (e *Executor) debug(ctx context.Context, msg string, args ...any) {
	if e.cfg.EnableDebugLogging {
		e.logger.DebugContext(ctx, msg, args...)
	}
}

// sleepContext waits out d or returns early with the context error.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
