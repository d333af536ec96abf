package retry_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/xraph/herald/retry"
)

func TestNewPolicy_ValidatesAtConstruction(t *testing.T) {
	tests := []struct {
		name       string
		maxRetries int
		initial    time.Duration
		max        time.Duration
		multiplier float64
		wantErr    bool
	}{
		{"valid", 3, time.Second, 10 * time.Second, 2.0, false},
		{"zero retries valid", 0, time.Second, time.Second, 1.0, false},
		{"negative retries", -1, time.Second, 10 * time.Second, 2.0, true},
		{"zero initial delay", 3, 0, 10 * time.Second, 2.0, true},
		{"max below initial", 3, 10 * time.Second, time.Second, 2.0, true},
		{"multiplier below one", 3, time.Second, 10 * time.Second, 0.5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := retry.NewPolicy(tt.maxRetries, tt.initial, tt.max, tt.multiplier)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewPolicy() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDelay_ExponentialWithCap(t *testing.T) {
	p := retry.MustPolicy(10, 1000*time.Millisecond, 5000*time.Millisecond, 2.0)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{-1, 0},
		{1, 1000 * time.Millisecond},
		{2, 2000 * time.Millisecond},
		{3, 4000 * time.Millisecond},
		{4, 5000 * time.Millisecond}, // 8000ms capped to 5000ms
		{5, 5000 * time.Millisecond},
		// Attempts far past the cap must still return it; the raw
		// product overflows time.Duration long before attempt 100.
		{100, 5000 * time.Millisecond},
		{10000, 5000 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := p.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestDelay_IsPure(t *testing.T) {
	p := retry.DefaultPolicy()

	first := p.Delay(3)
	for range 10 {
		if got := p.Delay(3); got != first {
			t.Fatalf("Delay(3) not deterministic: %v != %v", got, first)
		}
	}
}

func TestDefaultPolicy_CanonicalValues(t *testing.T) {
	p := retry.DefaultPolicy()

	if p.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", p.MaxRetries)
	}
	if p.Delay(1) != time.Second {
		t.Errorf("Delay(1) = %v, want 1s", p.Delay(1))
	}
	if p.Delay(100) != 10*time.Second {
		t.Errorf("Delay(100) = %v, want 10s cap", p.Delay(100))
	}

	np := retry.NoRetryPolicy()
	if np.MaxRetries != 0 {
		t.Errorf("NoRetryPolicy MaxRetries = %d, want 0", np.MaxRetries)
	}
	// NoRetryPolicy must satisfy the same construction invariants
	// NewPolicy enforces, not sidestep them with a zero value.
	if _, err := retry.NewPolicy(np.MaxRetries, np.InitialDelay, np.MaxDelay, np.Multiplier); err != nil {
		t.Errorf("NoRetryPolicy fields fail validation: %v", err)
	}
}

func TestRetryable_DefaultAndMarker(t *testing.T) {
	p := retry.DefaultPolicy()

	if !p.Retryable(errors.New("connection reset")) {
		t.Error("generic error should be retryable by default")
	}

	nonRetryable := retry.NonRetryable(errors.New("validation failed"))
	if p.Retryable(nonRetryable) {
		t.Error("NonRetryable error must not be retryable")
	}

	// The marker survives wrapping.
	wrapped := fmt.Errorf("handler failed: %w", nonRetryable)
	if p.Retryable(wrapped) {
		t.Error("wrapped NonRetryable error must not be retryable")
	}

	// A NoRetryPolicy still classifies the same way — attempt budget and
	// retryability are independent.
	if !retry.NoRetryPolicy().Retryable(errors.New("x")) {
		t.Error("classification must not depend on policy settings")
	}
}

func TestHandlerError_UnwrapPreservesCause(t *testing.T) {
	cause := errors.New("root cause")
	err := retry.NonRetryable(cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should see through HandlerError")
	}
	if err.Error() != "root cause" {
		t.Errorf("Error() = %q, want cause message", err.Error())
	}
}
