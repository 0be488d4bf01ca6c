package faulttolerance

import (
	"context"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
)

// RetryConfig holds configuration for retry mechanisms
type RetryConfig struct {
	MaxRetries int           // Retries after the first attempt
	BaseDelay  time.Duration // Delay before retry n is BaseDelay * 2^n
	Timeout    time.Duration // Budget of each attempt; zero means no per-attempt timeout
	Name       string        // Name for logging

	// IsRetryable selects the errors worth another attempt. Nil retries every error.
	IsRetryable func(error) bool
}

// AttemptFunc is a single attempt. ctx carries the per-attempt deadline.
type AttemptFunc func(ctx context.Context) error

// Retryer handles retry logic with exponential backoff and a fresh timeout per attempt
type Retryer struct {
	config RetryConfig
	logger *logrus.Logger
}

// NewRetryer creates a new retryer
func NewRetryer(config RetryConfig, logger *logrus.Logger) *Retryer {
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = 1 * time.Second
	}
	if config.Name == "" {
		config.Name = "Retryer"
	}

	return &Retryer{
		config: config,
		logger: logger,
	}
}

// MaxAttempts is the upper bound of calls made by Execute.
func (r *Retryer) MaxAttempts() int {
	return r.config.MaxRetries + 1
}

// Execute executes the function with retry logic. It returns nil on the first
// success, the first non-retryable error, or the last error once retries run out.
func (r *Retryer) Execute(ctx context.Context, fn AttemptFunc) error {
	backoff := retry.WithMaxRetries(uint64(r.config.MaxRetries), retry.NewExponential(r.config.BaseDelay))

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++

		err := r.runAttempt(ctx, fn)
		if err == nil {
			if attempt > 1 {
				r.logger.Infof("[%s] Operation succeeded on attempt %d", r.config.Name, attempt)
			}
			return nil
		}

		// Parent cancellation is final.
		if ctx.Err() != nil {
			return err
		}

		if !r.isRetryable(err) {
			r.logger.Debugf("[%s] Non-retryable error: %v", r.config.Name, err)
			return err
		}

		if attempt > r.config.MaxRetries {
			r.logger.Errorf("[%s] All %d attempts failed, last error: %v", r.config.Name, attempt, err)
		} else {
			r.logger.Warnf("[%s] Attempt %d failed: %v. Retrying...", r.config.Name, attempt, err)
		}
		return retry.RetryableError(err)
	})
}

func (r *Retryer) runAttempt(ctx context.Context, fn AttemptFunc) error {
	if r.config.Timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	// The attempt loses the race once its deadline passes.
	errCh := make(chan error, 1)
	go func() {
		errCh <- fn(attemptCtx)
	}()

	select {
	case err := <-errCh:
		return err
	case <-attemptCtx.Done():
		return attemptCtx.Err()
	}
}

// isRetryable checks if an error should trigger a retry
func (r *Retryer) isRetryable(err error) bool {
	if r.config.IsRetryable == nil {
		return true
	}
	return r.config.IsRetryable(err)
}

// ExecuteWithCircuitBreaker runs the whole retry loop as one breaker call,
// so exhausting retries counts as a single failure.
func (r *Retryer) ExecuteWithCircuitBreaker(ctx context.Context, cb *CircuitBreaker, fn AttemptFunc) error {
	return cb.Execute(ctx, func() error {
		return r.Execute(ctx, fn)
	})
}

// Do runs fn through r and returns the value of the successful attempt.
// Values from attempts that already lost their deadline are discarded.
func Do[T any](ctx context.Context, r *Retryer, fn func(ctx context.Context) (T, error)) (T, error) {
	var (
		mu     sync.Mutex
		result T
	)
	err := r.Execute(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		mu.Lock()
		result = v
		mu.Unlock()
		return nil
	})

	mu.Lock()
	defer mu.Unlock()
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
