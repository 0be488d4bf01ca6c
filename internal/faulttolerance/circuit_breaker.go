package faulttolerance

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// CircuitBreakerState represents the current state of the circuit breaker
type CircuitBreakerState int

const (
	StateClosed CircuitBreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreakerConfig holds configuration for the circuit breaker
type CircuitBreakerConfig struct {
	Threshold int           // Consecutive failures before opening
	CoolDown  time.Duration // Time since the last failure before a half-open probe is allowed
	Name      string        // Name for logging

	// IsFailure decides which errors count against the circuit.
	// Errors it rejects are recorded as successes. Nil counts every error.
	IsFailure func(error) bool
}

// ProviderHealth is a point-in-time copy of a breaker's counters.
type ProviderHealth struct {
	Name                string    `json:"name"`
	State               string    `json:"state"`
	CircuitOpen         bool      `json:"circuit_open"`
	SuccessCount        int64     `json:"success_count"`
	FailureCount        int64     `json:"failure_count"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	SuccessRate         float64   `json:"success_rate"`
	LastFailureAt       time.Time `json:"last_failure_at"`
	LastSuccessAt       time.Time `json:"last_success_at"`
}

// CircuitBreaker implements the circuit breaker pattern with a single half-open probe.
type CircuitBreaker struct {
	config              CircuitBreakerConfig
	state               CircuitBreakerState
	successCount        int64
	failureCount        int64
	consecutiveFailures int
	lastFailureAt       time.Time
	lastSuccessAt       time.Time
	probeInFlight       bool
	mutex               sync.Mutex
	logger              *logrus.Logger
	now                 func() time.Time
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(config CircuitBreakerConfig, logger *logrus.Logger) *CircuitBreaker {
	if config.Threshold <= 0 {
		config.Threshold = 5
	}
	if config.CoolDown <= 0 {
		config.CoolDown = 30 * time.Second
	}
	if config.Name == "" {
		config.Name = "CircuitBreaker"
	}

	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
		logger: logger,
		now:    time.Now,
	}
}

var (
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
	ErrTooManyRequests    = errors.New("too many requests when circuit breaker is half-open")
)

// Name returns the breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.config.Name
}

// Execute runs the given function with circuit breaker protection
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	done, err := cb.Allow()
	if err != nil {
		return err
	}

	err = fn()
	done(err)
	return err
}

// Allow asks for permission to make one call. The returned func must be called
// exactly once with the call's outcome. A canceled context outcome records nothing.
func (cb *CircuitBreaker) Allow() (func(error), error) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastFailureAt) < cb.config.CoolDown {
			return nil, ErrCircuitBreakerOpen
		}
		cb.setState(StateHalfOpen)
		cb.probeInFlight = true
		return cb.doneFunc(true), nil
	case StateHalfOpen:
		if cb.probeInFlight {
			return nil, ErrTooManyRequests
		}
		cb.probeInFlight = true
		return cb.doneFunc(true), nil
	default:
		return cb.doneFunc(false), nil
	}
}

func (cb *CircuitBreaker) doneFunc(probe bool) func(error) {
	var once sync.Once
	return func(err error) {
		once.Do(func() { cb.recordResult(err, probe) })
	}
}

// recordResult records the result of an execution
func (cb *CircuitBreaker) recordResult(err error, probe bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if probe {
		cb.probeInFlight = false
	}

	if err != nil && errors.Is(err, context.Canceled) {
		return
	}

	if err != nil && (cb.config.IsFailure == nil || cb.config.IsFailure(err)) {
		cb.failureCount++
		cb.consecutiveFailures++
		cb.lastFailureAt = cb.now()

		switch cb.state {
		case StateClosed:
			if cb.consecutiveFailures >= cb.config.Threshold {
				cb.setState(StateOpen)
				cb.logger.Warnf("[%s] Circuit breaker OPENED after %d consecutive failures", cb.config.Name, cb.consecutiveFailures)
			}
		case StateHalfOpen:
			if probe {
				cb.setState(StateOpen)
				cb.logger.Warnf("[%s] Circuit breaker reopened from HALF_OPEN due to failure", cb.config.Name)
			}
		}
		return
	}

	cb.successCount++
	cb.lastSuccessAt = cb.now()

	switch cb.state {
	case StateClosed:
		cb.consecutiveFailures = 0
	case StateHalfOpen:
		if probe {
			cb.consecutiveFailures = 0
			cb.setState(StateClosed)
			cb.logger.Infof("[%s] Circuit breaker CLOSED after successful probe", cb.config.Name)
		}
	}
}

// setState changes the circuit breaker state
func (cb *CircuitBreaker) setState(state CircuitBreakerState) {
	if cb.state != state {
		oldState := cb.state
		cb.state = state
		cb.logger.Infof("[%s] Circuit breaker state changed: %s -> %s", cb.config.Name, oldState, state)
	}
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}

// IsClosed reports whether calls flow normally.
func (cb *CircuitBreaker) IsClosed() bool {
	return cb.GetState() == StateClosed
}

// Snapshot returns current statistics
func (cb *CircuitBreaker) Snapshot() ProviderHealth {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	var rate float64
	if total := cb.successCount + cb.failureCount; total > 0 {
		rate = float64(cb.successCount) / float64(total) * 100
	}

	return ProviderHealth{
		Name:                cb.config.Name,
		State:               cb.state.String(),
		CircuitOpen:         cb.state != StateClosed,
		SuccessCount:        cb.successCount,
		FailureCount:        cb.failureCount,
		ConsecutiveFailures: cb.consecutiveFailures,
		SuccessRate:         rate,
		LastFailureAt:       cb.lastFailureAt,
		LastSuccessAt:       cb.lastSuccessAt,
	}
}

// Reset clears all counters and closes the circuit.
func (cb *CircuitBreaker) Reset() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.setState(StateClosed)
	cb.successCount = 0
	cb.failureCount = 0
	cb.consecutiveFailures = 0
	cb.lastFailureAt = time.Time{}
	cb.lastSuccessAt = time.Time{}
	cb.probeInFlight = false
	cb.logger.Infof("[%s] Circuit breaker stats reset", cb.config.Name)
}
