package dispatch_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/herald"
	"github.com/xraph/herald/dispatch"
	"github.com/xraph/herald/dlq"
	"github.com/xraph/herald/event"
	"github.com/xraph/herald/handler"
	"github.com/xraph/herald/hook"
	"github.com/xraph/herald/notify"
	"github.com/xraph/herald/retry"
	"github.com/xraph/herald/store/memory"
	"github.com/xraph/herald/worker"
)

// fastPolicy keeps retry delays negligible so tests run quickly.
var fastPolicy = retry.MustPolicy(2, time.Millisecond, 5*time.Millisecond, 2.0)

// testConfig is a sequential, retry-off baseline tests override.
func testConfig() dispatch.Config {
	cfg := dispatch.DefaultConfig()
	cfg.Parallel = false
	cfg.Timeout = 0
	cfg.EnableRetry = false
	cfg.Policy = retry.NoRetryPolicy()
	cfg.ErrorHandling.EnableDeadLetter = false
	return cfg
}

type fixture struct {
	nonBlocking *handler.Registry
	blocking    *handler.Registry
	general     *worker.Pool
	io          *worker.Pool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		nonBlocking: handler.NewRegistry(),
		blocking:    handler.NewRegistry(),
		general:     worker.NewPool("general", 8),
		io:          worker.NewPool("blocking", 8),
	}

	ctx := context.Background()
	if err := f.general.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := f.io.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = f.general.Stop(stopCtx)
		_ = f.io.Stop(stopCtx)
	})

	return f
}

func (f *fixture) executor(t *testing.T, cfg dispatch.Config, opts ...dispatch.Option) *dispatch.Executor {
	t.Helper()

	e, err := dispatch.NewExecutor(cfg, f.nonBlocking, f.blocking, f.general, f.io, opts...)
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}
	return e
}

func (f *fixture) register(t *testing.T, reg *handler.Registry, name string, order int, lane handler.Lane, fn handler.Func) {
	t.Helper()

	err := reg.Register(handler.Descriptor{
		EventType: "test.event",
		Name:      name,
		Order:     order,
		Lane:      lane,
		Fn:        fn,
	})
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*dispatch.Config)
		wantErr bool
	}{
		{"default", func(*dispatch.Config) {}, false},
		{"zero concurrency", func(c *dispatch.Config) { c.MaxConcurrency = 0 }, true},
		{"negative concurrency", func(c *dispatch.Config) { c.MaxConcurrency = -1 }, true},
		{"negative timeout", func(c *dispatch.Config) { c.Timeout = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := dispatch.DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr && !errors.Is(err, herald.ErrInvalidConfig) {
				t.Errorf("err = %v, want ErrInvalidConfig", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestExecutor_Disabled(t *testing.T) {
	f := newFixture(t)
	cfg := testConfig()
	cfg.Enabled = false
	e := f.executor(t, cfg)

	err := e.Execute(context.Background(), event.New("test.event", nil))
	if !errors.Is(err, herald.ErrDispatchDisabled) {
		t.Errorf("err = %v, want ErrDispatchDisabled", err)
	}
}

func TestExecutor_NoHandlersIsNoOp(t *testing.T) {
	f := newFixture(t)
	e := f.executor(t, testConfig())

	res, err := e.ExecuteWithResult(context.Background(), event.New("test.event", nil))
	if err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
	if len(res.Outcomes) != 0 {
		t.Errorf("outcomes = %d, want 0", len(res.Outcomes))
	}
}

func TestExecutor_SequentialOrderAcrossLanes(t *testing.T) {
	f := newFixture(t)

	var mu sync.Mutex
	var ran []string
	record := func(name string) handler.Func {
		return func(context.Context, *event.Event) error {
			mu.Lock()
			ran = append(ran, name)
			mu.Unlock()
			return nil
		}
	}

	// Interleaved orders across the two registries. Merge must be by
	// ascending Order regardless of lane.
	f.register(t, f.nonBlocking, "nb-20", 20, handler.LaneNonBlocking, record("nb-20"))
	f.register(t, f.blocking, "bl-10", 10, handler.LaneBlocking, record("bl-10"))
	f.register(t, f.nonBlocking, "nb-5", 5, handler.LaneNonBlocking, record("nb-5"))
	f.register(t, f.blocking, "bl-15", 15, handler.LaneBlocking, record("bl-15"))

	e := f.executor(t, testConfig())
	if err := e.Execute(context.Background(), event.New("test.event", nil)); err != nil {
		t.Fatalf("execute: %v", err)
	}

	want := []string{"nb-5", "bl-10", "bl-15", "nb-20"}
	if len(ran) != len(want) {
		t.Fatalf("ran = %v, want %v", ran, want)
	}
	for i := range want {
		if ran[i] != want[i] {
			t.Errorf("ran = %v, want %v", ran, want)
			break
		}
	}
}

func TestExecutor_RetryExhaustion(t *testing.T) {
	f := newFixture(t)

	var attempts atomic.Int32
	f.register(t, f.nonBlocking, "always-fails", 0, handler.LaneNonBlocking,
		func(context.Context, *event.Event) error {
			attempts.Add(1)
			return errors.New("boom")
		})

	cfg := testConfig()
	cfg.EnableRetry = true
	cfg.Policy = fastPolicy // MaxRetries = 2
	e := f.executor(t, cfg)

	res, err := e.ExecuteWithResult(context.Background(), event.New("test.event", nil))
	if err != nil {
		t.Fatalf("execute: %v", err) // continue-on-error: failures do not propagate
	}

	if got := attempts.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3 (1 initial + 2 retries)", got)
	}
	if res.Outcomes[0].Attempts != 3 || res.Outcomes[0].Err == nil {
		t.Errorf("outcome = %+v, want 3 attempts with terminal error", res.Outcomes[0])
	}
}

func TestExecutor_NonRetryableFailsImmediately(t *testing.T) {
	f := newFixture(t)

	var attempts atomic.Int32
	f.register(t, f.nonBlocking, "rejects", 0, handler.LaneNonBlocking,
		func(context.Context, *event.Event) error {
			attempts.Add(1)
			return retry.NonRetryable(errors.New("bad payload"))
		})

	cfg := testConfig()
	cfg.EnableRetry = true
	cfg.Policy = fastPolicy
	e := f.executor(t, cfg)

	if err := e.Execute(context.Background(), event.New("test.event", nil)); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("attempts = %d, want 1 (non-retryable)", got)
	}
}

func TestExecutor_ContinueOnError(t *testing.T) {
	run := func(t *testing.T, continueOnError bool) (*dispatch.Result, error, *atomic.Bool) {
		t.Helper()
		f := newFixture(t)

		var secondRan atomic.Bool
		f.register(t, f.nonBlocking, "h1-fails", 1, handler.LaneNonBlocking,
			func(context.Context, *event.Event) error { return errors.New("boom") })
		f.register(t, f.nonBlocking, "h2-succeeds", 2, handler.LaneNonBlocking,
			func(context.Context, *event.Event) error {
				secondRan.Store(true)
				return nil
			})

		cfg := testConfig()
		cfg.ContinueOnError = continueOnError
		e := f.executor(t, cfg)

		res, err := e.ExecuteWithResult(context.Background(), event.New("test.event", nil))
		return res, err, &secondRan
	}

	t.Run("true runs remaining handlers", func(t *testing.T) {
		res, err, secondRan := run(t, true)
		if err != nil {
			t.Fatalf("err = %v, want nil", err)
		}
		if !secondRan.Load() {
			t.Error("second handler never ran")
		}
		if res.Succeeded() != 1 || res.Failed() != 1 {
			t.Errorf("succeeded=%d failed=%d, want 1/1", res.Succeeded(), res.Failed())
		}
	})

	t.Run("false aborts remaining handlers", func(t *testing.T) {
		res, err, secondRan := run(t, false)
		if !errors.Is(err, herald.ErrDispatchFailed) {
			t.Fatalf("err = %v, want ErrDispatchFailed", err)
		}
		if secondRan.Load() {
			t.Error("second handler ran despite fail-fast")
		}
		if res.Skipped() != 1 {
			t.Errorf("skipped = %d, want 1", res.Skipped())
		}
	})
}

func TestExecutor_ParallelFailFastLetsStartedHandlersFinish(t *testing.T) {
	f := newFixture(t)

	var slowFinished atomic.Bool
	f.register(t, f.nonBlocking, "fails-fast", 1, handler.LaneNonBlocking,
		func(context.Context, *event.Event) error { return errors.New("boom") })
	f.register(t, f.nonBlocking, "slow-succeeds", 2, handler.LaneNonBlocking,
		func(context.Context, *event.Event) error {
			time.Sleep(30 * time.Millisecond)
			slowFinished.Store(true)
			return nil
		})

	cfg := testConfig()
	cfg.Parallel = true
	cfg.ContinueOnError = false
	e := f.executor(t, cfg)

	res, err := e.ExecuteWithResult(context.Background(), event.New("test.event", nil))
	if !errors.Is(err, herald.ErrDispatchFailed) {
		t.Fatalf("err = %v, want ErrDispatchFailed", err)
	}
	if !slowFinished.Load() {
		t.Error("started handler did not run to completion")
	}
	if res.Succeeded() != 1 || res.Failed() != 1 || res.Skipped() != 0 {
		t.Errorf("succeeded=%d failed=%d skipped=%d, want 1/1/0",
			res.Succeeded(), res.Failed(), res.Skipped())
	}
}

func TestExecutor_ConcurrencyBound(t *testing.T) {
	f := newFixture(t)

	const maxConcurrency = 2

	var inflight, peak atomic.Int32
	probe := func(context.Context, *event.Event) error {
		cur := inflight.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inflight.Add(-1)
		return nil
	}

	// Both lanes share the gate: three handlers per lane.
	for i := range 3 {
		f.register(t, f.nonBlocking, "nb", i, handler.LaneNonBlocking, probe)
		f.register(t, f.blocking, "bl", i, handler.LaneBlocking, probe)
	}

	cfg := testConfig()
	cfg.Parallel = true
	cfg.MaxConcurrency = maxConcurrency
	e := f.executor(t, cfg)

	if err := e.Execute(context.Background(), event.New("test.event", nil)); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if p := peak.Load(); p > maxConcurrency {
		t.Errorf("peak concurrency = %d, want <= %d", p, maxConcurrency)
	}
}

func TestExecutor_TimeoutIsRetryableFailure(t *testing.T) {
	f := newFixture(t)

	// The handler ignores its context entirely; the watchdog must still
	// bound the attempt.
	var attempts atomic.Int32
	f.register(t, f.nonBlocking, "deaf", 0, handler.LaneNonBlocking,
		func(context.Context, *event.Event) error {
			attempts.Add(1)
			time.Sleep(150 * time.Millisecond)
			return nil
		})

	cfg := testConfig()
	cfg.Timeout = 20 * time.Millisecond
	cfg.EnableRetry = true
	cfg.Policy = retry.MustPolicy(1, time.Millisecond, time.Millisecond, 1.0)
	e := f.executor(t, cfg)

	res, err := e.ExecuteWithResult(context.Background(), event.New("test.event", nil))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	out := res.Outcomes[0]
	if out.Err == nil || !strings.Contains(out.Err.Error(), "timed out") {
		t.Errorf("outcome err = %v, want timeout", out.Err)
	}
	if out.Attempts != 2 {
		t.Errorf("attempts = %d, want 2 (timeout retried once)", out.Attempts)
	}
	if got := attempts.Load(); got != 2 {
		t.Errorf("handler invocations = %d, want 2", got)
	}
}

func TestExecutor_DeadLetterCapture(t *testing.T) {
	f := newFixture(t)

	f.register(t, f.nonBlocking, "doomed", 0, handler.LaneNonBlocking,
		func(context.Context, *event.Event) error {
			return retry.NonRetryable(errors.New("schema mismatch"))
		})

	store := memory.New()
	cfg := testConfig()
	cfg.ErrorHandling.EnableDeadLetter = true
	e := f.executor(t, cfg, dispatch.WithDLQ(dlq.NewService(store)))

	evt := event.New("test.event", []byte(`{"k":"v"}`))
	if err := e.Execute(context.Background(), evt); err != nil {
		t.Fatalf("execute: %v", err)
	}

	entries, err := store.ListDLQ(context.Background(), dlq.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("dlq entries = %d, want 1", len(entries))
	}

	entry := entries[0]
	if entry.EventID.String() != evt.ID.String() {
		t.Errorf("event id = %s, want %s", entry.EventID, evt.ID)
	}
	if entry.HandlerName != "doomed" || entry.EventType != "test.event" {
		t.Errorf("entry = %+v", entry)
	}
	if entry.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", entry.Attempts)
	}
	if string(entry.Payload) != `{"k":"v"}` {
		t.Errorf("payload = %q", entry.Payload)
	}
}

type recordingNotifier struct {
	mu       sync.Mutex
	failures []*notify.Failure
}

func (n *recordingNotifier) Notify(_ context.Context, f *notify.Failure) error {
	n.mu.Lock()
	n.failures = append(n.failures, f)
	n.mu.Unlock()
	return nil
}

func TestExecutor_NotificationHandOff(t *testing.T) {
	f := newFixture(t)

	f.register(t, f.nonBlocking, "doomed", 0, handler.LaneNonBlocking,
		func(context.Context, *event.Event) error {
			return retry.NonRetryable(errors.New("boom"))
		})

	notifier := &recordingNotifier{}
	cfg := testConfig()
	cfg.ErrorHandling.EnableNotification = true
	e := f.executor(t, cfg, dispatch.WithNotifier(notifier))

	if err := e.Execute(context.Background(), event.New("test.event", nil)); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if len(notifier.failures) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notifier.failures))
	}
	got := notifier.failures[0]
	if got.HandlerName != "doomed" || got.Attempts != 1 || got.EventType != "test.event" {
		t.Errorf("failure = %+v", got)
	}
}

// lifecycleRecorder captures hook emissions for assertions.
type lifecycleRecorder struct {
	mu            sync.Mutex
	retryAttempts []int
	failedAfter   int
	completed     []string
	dispatches    int
}

func (r *lifecycleRecorder) Name() string { return "lifecycle-recorder" }

func (r *lifecycleRecorder) OnDispatchCompleted(_ context.Context, _ *event.Event, _, _, _ int, _ time.Duration) error {
	r.mu.Lock()
	r.dispatches++
	r.mu.Unlock()
	return nil
}

func (r *lifecycleRecorder) OnHandlerCompleted(_ context.Context, _ *event.Event, handlerName string, _ time.Duration) error {
	r.mu.Lock()
	r.completed = append(r.completed, handlerName)
	r.mu.Unlock()
	return nil
}

func (r *lifecycleRecorder) OnHandlerRetrying(_ context.Context, _ *event.Event, _ string, attempt int, _ time.Duration) error {
	r.mu.Lock()
	r.retryAttempts = append(r.retryAttempts, attempt)
	r.mu.Unlock()
	return nil
}

func (r *lifecycleRecorder) OnHandlerFailed(_ context.Context, _ *event.Event, _ string, attempts int, _ error) error {
	r.mu.Lock()
	r.failedAfter = attempts
	r.mu.Unlock()
	return nil
}

func TestExecutor_LifecycleHooks(t *testing.T) {
	f := newFixture(t)

	f.register(t, f.nonBlocking, "flaky", 0, handler.LaneNonBlocking,
		func(context.Context, *event.Event) error { return errors.New("boom") })
	f.register(t, f.nonBlocking, "fine", 1, handler.LaneNonBlocking,
		func(context.Context, *event.Event) error { return nil })

	rec := &lifecycleRecorder{}
	hooks := hook.NewRegistry(nil)
	hooks.Register(rec)

	cfg := testConfig()
	cfg.EnableRetry = true
	cfg.Policy = fastPolicy
	e := f.executor(t, cfg, dispatch.WithHooks(hooks))

	if err := e.Execute(context.Background(), event.New("test.event", nil)); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if len(rec.retryAttempts) != 2 || rec.retryAttempts[0] != 1 || rec.retryAttempts[1] != 2 {
		t.Errorf("retry attempts = %v, want [1 2]", rec.retryAttempts)
	}
	if rec.failedAfter != 3 {
		t.Errorf("failed after = %d attempts, want 3", rec.failedAfter)
	}
	if len(rec.completed) != 1 || rec.completed[0] != "fine" {
		t.Errorf("completed = %v, want [fine]", rec.completed)
	}
	if rec.dispatches != 1 {
		t.Errorf("dispatch completions = %d, want 1", rec.dispatches)
	}
}
