// Package limiter bounds the number of in-flight upstream calls.
// Waiters are released in FIFO order as slots free up.
package limiter

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Stats is a snapshot of limiter usage.
type Stats struct {
	Limit     int64 `json:"limit"`
	InFlight  int64 `json:"in_flight"`
	Waiting   int64 `json:"waiting"`
	Completed int64 `json:"completed"`
}

// Limiter is a FIFO counting semaphore.
type Limiter struct {
	sem       *semaphore.Weighted
	limit     int64
	inFlight  atomic.Int64
	waiting   atomic.Int64
	completed atomic.Int64
}

// New creates a limiter with the given number of slots. Values below 1 mean 1.
func New(limit int) *Limiter {
	if limit < 1 {
		limit = 1
	}
	return &Limiter{
		sem:   semaphore.NewWeighted(int64(limit)),
		limit: int64(limit),
	}
}

// Acquire blocks until a slot is free or ctx is done. The release func is idempotent.
func (l *Limiter) Acquire(ctx context.Context) (func(), error) {
	l.waiting.Add(1)
	err := l.sem.Acquire(ctx, 1)
	l.waiting.Add(-1)
	if err != nil {
		return nil, err
	}

	l.inFlight.Add(1)
	var released atomic.Bool
	return func() {
		if released.CompareAndSwap(false, true) {
			l.inFlight.Add(-1)
			l.completed.Add(1)
			l.sem.Release(1)
		}
	}, nil
}

// Do runs fn while holding a slot.
func (l *Limiter) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	release, err := l.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}

// Limit returns the slot count.
func (l *Limiter) Limit() int {
	return int(l.limit)
}

// Stats returns current usage.
func (l *Limiter) Stats() Stats {
	return Stats{
		Limit:     l.limit,
		InFlight:  l.inFlight.Load(),
		Waiting:   l.waiting.Load(),
		Completed: l.completed.Load(),
	}
}
