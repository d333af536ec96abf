package source

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/xraph/herald/backoff"
	"github.com/xraph/herald/event"
)

// Runner supervises one Source: it runs the source, reconnects with
// backoff when it fails, and optionally rate-limits event delivery to
// the sink.
type Runner struct {
	source  Source
	sink    Sink
	bo      backoff.Strategy
	limiter *rate.Limiter
	logger  *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithBackoff sets the reconnect delay strategy. Defaults to
// backoff.DefaultReconnect.
func WithBackoff(b backoff.Strategy) RunnerOption {
	return func(r *Runner) { r.bo = b }
}

// WithRateLimit bounds event delivery to the sink. Zero limit means
// unlimited.
func WithRateLimit(eventsPerSecond float64, burst int) RunnerOption {
	return func(r *Runner) {
		if eventsPerSecond > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(eventsPerSecond), burst)
		}
	}
}

// WithLogger sets the runner's logger.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a supervisor for the given source and sink.
func NewRunner(src Source, sink Sink, opts ...RunnerOption) *Runner {
	r := &Runner{
		source: src,
		sink:   sink,
		bo:     backoff.DefaultReconnect(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start begins consuming in a background goroutine. It returns
// immediately; use Stop to shut the source down.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}
	r.started = true

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.cancel = cancel
	r.done = make(chan struct{})

	go r.supervise(runCtx)
	return nil
}

// Stop cancels the source and waits for it to exit or the context to
// expire.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// supervise runs the source in a reconnect loop. Consecutive quick
// failures back off with a growing attempt count; a run that outlives
// the delay it waited counts as healthy and resets the count, so a
// source that ran for hours does not resume backoff where a long-gone
// outage left it.
func (r *Runner) supervise(ctx context.Context) {
	defer close(r.done)

	sink := r.throttledSink()
	attempt := 0
	var lastDelay time.Duration
	for {
		start := time.Now()
		err := r.source.Run(ctx, sink)
		if err == nil || errors.Is(err, context.Canceled) || ctx.Err() != nil {
			r.logger.Info("source stopped", slog.String("source", r.source.Name()))
			return
		}

		if attempt > 0 && time.Since(start) > lastDelay {
			attempt = 0
		}
		attempt++
		lastDelay = r.bo.Delay(attempt)
		r.logger.Warn("source failed, reconnecting",
			slog.String("source", r.source.Name()),
			slog.Int("attempt", attempt),
			slog.Duration("delay", lastDelay),
			slog.String("error", err.Error()),
		)

		t := time.NewTimer(lastDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// throttledSink wraps the sink with the optional rate limiter.
func (r *Runner) throttledSink() Sink {
	if r.limiter == nil {
		return r.sink
	}
	return func(ctx context.Context, evt *event.Event) error {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
		return r.sink(ctx, evt)
	}
}
