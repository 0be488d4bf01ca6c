package faulttolerance

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

var errBoom = errors.New("boom")

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fakeClock lets tests move time without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(threshold int, coolDown time.Duration) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker(CircuitBreakerConfig{Threshold: threshold, CoolDown: coolDown, Name: "test"}, quietLogger())
	cb.now = clock.Now
	return cb, clock
}

func TestNewCircuitBreakerDefaults(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{}, quietLogger())

	if cb.config.Threshold != 5 {
		t.Errorf("Expected default threshold 5, got %d", cb.config.Threshold)
	}
	if cb.config.CoolDown != 30*time.Second {
		t.Errorf("Expected default cool-down 30s, got %v", cb.config.CoolDown)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("Expected CLOSED, got %s", cb.GetState())
	}
}

func TestCircuitBreakerOpensAtThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func() error { return errBoom })
	}
	if cb.GetState() != StateClosed {
		t.Fatalf("Expected CLOSED below threshold, got %s", cb.GetState())
	}

	_ = cb.Execute(ctx, func() error { return errBoom })
	if cb.GetState() != StateOpen {
		t.Fatalf("Expected OPEN at threshold, got %s", cb.GetState())
	}

	calls := 0
	err := cb.Execute(ctx, func() error { calls++; return nil })
	if !errors.Is(err, ErrCircuitBreakerOpen) {
		t.Errorf("Expected ErrCircuitBreakerOpen, got %v", err)
	}
	if calls != 0 {
		t.Errorf("Expected no call while open, got %d", calls)
	}

	snap := cb.Snapshot()
	if !snap.CircuitOpen || snap.FailureCount != 3 || snap.ConsecutiveFailures != 3 {
		t.Errorf("Unexpected snapshot %+v", snap)
	}
}

func TestCircuitBreakerSuccessResetsConsecutive(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute)
	ctx := context.Background()

	_ = cb.Execute(ctx, func() error { return errBoom })
	_ = cb.Execute(ctx, func() error { return errBoom })
	_ = cb.Execute(ctx, func() error { return nil })
	_ = cb.Execute(ctx, func() error { return errBoom })

	snap := cb.Snapshot()
	if snap.ConsecutiveFailures != 1 {
		t.Errorf("Expected 1 consecutive failure, got %d", snap.ConsecutiveFailures)
	}
	if snap.CircuitOpen {
		t.Error("Expected circuit to stay closed")
	}
	if snap.SuccessRate != 25 {
		t.Errorf("Expected success rate 25, got %v", snap.SuccessRate)
	}
}

func TestCircuitBreakerHalfOpenProbe(t *testing.T) {
	tests := []struct {
		name     string
		probeErr error
		expected CircuitBreakerState
	}{
		{"Probe success closes", nil, StateClosed},
		{"Probe failure reopens", errBoom, StateOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb, clock := newTestBreaker(1, 30*time.Second)
			_ = cb.Execute(context.Background(), func() error { return errBoom })

			clock.Advance(29 * time.Second)
			if _, err := cb.Allow(); !errors.Is(err, ErrCircuitBreakerOpen) {
				t.Fatalf("Expected open before cool-down, got %v", err)
			}

			clock.Advance(2 * time.Second)
			done, err := cb.Allow()
			if err != nil {
				t.Fatalf("Expected probe to be allowed, got %v", err)
			}
			if cb.GetState() != StateHalfOpen {
				t.Fatalf("Expected HALF_OPEN, got %s", cb.GetState())
			}

			if _, err := cb.Allow(); !errors.Is(err, ErrTooManyRequests) {
				t.Errorf("Expected a second caller to be rejected during the probe, got %v", err)
			}

			done(tt.probeErr)
			if cb.GetState() != tt.expected {
				t.Errorf("Expected %s after probe, got %s", tt.expected, cb.GetState())
			}
		})
	}
}

func TestCircuitBreakerIgnoresNonFailures(t *testing.T) {
	errNotFound := errors.New("not found")
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Threshold: 1,
		Name:      "test",
		IsFailure: func(err error) bool { return !errors.Is(err, errNotFound) },
	}, quietLogger())

	_ = cb.Execute(context.Background(), func() error { return errNotFound })
	_ = cb.Execute(context.Background(), func() error { return context.Canceled })

	snap := cb.Snapshot()
	if snap.FailureCount != 0 {
		t.Errorf("Expected no failures recorded, got %d", snap.FailureCount)
	}
	if snap.SuccessCount != 1 {
		t.Errorf("Expected not-found to count as success, got %d", snap.SuccessCount)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("Expected CLOSED, got %s", cb.GetState())
	}
}

func TestCircuitBreakerCanceledProbeReleasesSlot(t *testing.T) {
	cb, clock := newTestBreaker(1, time.Second)
	_ = cb.Execute(context.Background(), func() error { return errBoom })
	clock.Advance(2 * time.Second)

	done, err := cb.Allow()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	done(context.Canceled)

	if _, err := cb.Allow(); err != nil {
		t.Errorf("Expected a new probe after cancellation, got %v", err)
	}
}

func TestCircuitBreakerReset(t *testing.T) {
	cb, _ := newTestBreaker(1, time.Hour)
	_ = cb.Execute(context.Background(), func() error { return errBoom })

	cb.Reset()

	snap := cb.Snapshot()
	if snap.CircuitOpen || snap.FailureCount != 0 || snap.State != "CLOSED" {
		t.Errorf("Expected clean breaker after reset, got %+v", snap)
	}
}
