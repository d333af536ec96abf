package dispatch

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/herald"
	"github.com/xraph/herald/retry"
)

// ErrorHandling configures what happens when a handler fails
// terminally.
type ErrorHandling struct {
	// EnableDeadLetter hands terminally failed events to the dead
	// letter store.
	EnableDeadLetter bool

	// LogLevel is the severity terminal failures are logged at.
	LogLevel slog.Level

	// EnableNotification forwards terminal failures to the configured
	// notifier.
	EnableNotification bool
}

// Config controls executor behavior. Construct with DefaultConfig and
// override fields as needed; Validate is called by NewExecutor.
type Config struct {
	// Enabled gates dispatching entirely. A disabled executor returns
	// herald.ErrDispatchDisabled so sources do not ack and lose events.
	Enabled bool

	// Parallel runs handlers concurrently when an event has more than
	// one. With a single handler, dispatch is always sequential.
	Parallel bool

	// MaxConcurrency bounds in-flight handler executions across both
	// lanes. Must be positive.
	MaxConcurrency int

	// Timeout bounds a single handler attempt. Zero disables the
	// timeout. A timed-out attempt is a retryable failure.
	Timeout time.Duration

	// EnableRetry turns failed-attempt retrying on.
	EnableRetry bool

	// Policy drives retry classification and backoff delays.
	Policy retry.Policy

	// ContinueOnError keeps dispatching remaining handlers after one
	// fails terminally. When false, a sequential dispatch aborts the
	// remaining handlers; a parallel dispatch lets started handlers
	// finish but reports the event failed.
	ContinueOnError bool

	// EnableDebugLogging emits per-attempt debug logs.
	EnableDebugLogging bool

	// EnableMetrics installs the metrics middleware when the engine
	// builds the default chain.
	EnableMetrics bool

	// ErrorHandling configures the terminal-failure funnel.
	ErrorHandling ErrorHandling
}

// DefaultConfig returns the canonical executor configuration: enabled,
// parallel, 10 concurrent handlers, 30s per-attempt timeout, retry on
// with the default policy, continue-on-error.
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		Parallel:        true,
		MaxConcurrency:  10,
		Timeout:         30 * time.Second,
		EnableRetry:     true,
		Policy:          retry.DefaultPolicy(),
		ContinueOnError: true,
		EnableMetrics:   true,
		ErrorHandling: ErrorHandling{
			EnableDeadLetter: true,
			LogLevel:         slog.LevelError,
		},
	}
}

// Validate fail-fasts on invalid configuration.
func (c Config) Validate() error {
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("%w: max concurrency must be positive, got %d",
			herald.ErrInvalidConfig, c.MaxConcurrency)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must be >= 0, got %v",
			herald.ErrInvalidConfig, c.Timeout)
	}
	if c.EnableRetry && c.Policy.MaxRetries < 0 {
		return fmt.Errorf("%w: retry policy max retries must be >= 0, got %d",
			herald.ErrInvalidConfig, c.Policy.MaxRetries)
	}
	return nil
}
