// Package retry provides the pure retry policy used by the dispatch
// executor: whether a failure is retryable and how long to back off
// before a given attempt.
//
// Policy is deliberately deterministic — no jitter, no clock reads — so
// callers can assert exact delays. Jittered strategies for transport
// reconnects live in the backoff package instead.
package retry

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Policy is a value object controlling retry behavior. Construct with
// NewPolicy, which validates invariants up front; a zero Policy retries
// nothing.
type Policy struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the computed delay.
	MaxDelay time.Duration

	// Multiplier grows the delay per attempt (exponential base).
	Multiplier float64
}

// NewPolicy creates a validated policy. It fails fast at construction:
// MaxRetries must be >= 0, InitialDelay > 0, MaxDelay >= InitialDelay,
// and Multiplier >= 1.0.
func NewPolicy(maxRetries int, initialDelay, maxDelay time.Duration, multiplier float64) (Policy, error) {
	switch {
	case maxRetries < 0:
		return Policy{}, fmt.Errorf("retry: max retries must be >= 0, got %d", maxRetries)
	case initialDelay <= 0:
		return Policy{}, fmt.Errorf("retry: initial delay must be > 0, got %v", initialDelay)
	case maxDelay < initialDelay:
		return Policy{}, fmt.Errorf("retry: max delay %v must be >= initial delay %v", maxDelay, initialDelay)
	case multiplier < 1.0:
		return Policy{}, fmt.Errorf("retry: multiplier must be >= 1.0, got %v", multiplier)
	}

	return Policy{
		MaxRetries:   maxRetries,
		InitialDelay: initialDelay,
		MaxDelay:     maxDelay,
		Multiplier:   multiplier,
	}, nil
}

// MustPolicy is like NewPolicy but panics on error. Use for hardcoded
// policy values.
func MustPolicy(maxRetries int, initialDelay, maxDelay time.Duration, multiplier float64) Policy {
	p, err := NewPolicy(maxRetries, initialDelay, maxDelay, multiplier)
	if err != nil {
		panic(err)
	}
	return p
}

// DefaultPolicy returns the canonical policy: 3 retries, 1s initial
// delay, 10s cap, x2 backoff.
func DefaultPolicy() Policy {
	return MustPolicy(3, time.Second, 10*time.Second, 2.0)
}

// NoRetryPolicy returns a validated policy that never retries. The
// delay fields carry the construction minimums; with MaxRetries 0 they
// are never consulted.
func NoRetryPolicy() Policy {
	return MustPolicy(0, time.Second, time.Second, 1.0)
}

// Delay returns the backoff before retry attempt n (1-indexed):
// min(InitialDelay * Multiplier^(n-1), MaxDelay). Attempts <= 0 return
// zero. Pure — no side effects, no randomness.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	// Compare in float64: converting first overflows time.Duration to a
	// negative value for large attempts, slipping past the cap.
	f := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if f > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(f)
}

// Retryable reports whether the error may be retried. Errors are
// retryable by default; only an explicit non-retryable marker in the
// chain (see NonRetryable) opts out.
func (p Policy) Retryable(err error) bool {
	var he *HandlerError
	if errors.As(err, &he) {
		return he.Retryable
	}
	return true
}

// HandlerError is a typed dispatch error carrying an explicit
// retryability flag. Handlers return it (directly or wrapped) to opt a
// failure out of — or explicitly into — retrying.
type HandlerError struct {
	Err       error
	Retryable bool
}

func (e *HandlerError) Error() string {
	if e.Err == nil {
		return "retry: handler error"
	}
	return e.Err.Error()
}

func (e *HandlerError) Unwrap() error { return e.Err }

// NonRetryable wraps err so that no policy will retry it.
func NonRetryable(err error) error {
	return &HandlerError{Err: err, Retryable: false}
}
