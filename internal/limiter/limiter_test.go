package limiter

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterBoundsInFlight(t *testing.T) {
	l := New(3)

	var current, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Do(context.Background(), func(ctx context.Context) error {
				n := atomic.AddInt32(&current, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&current, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak, int32(3))
	stats := l.Stats()
	assert.Equal(t, int64(20), stats.Completed)
	assert.Equal(t, int64(0), stats.InFlight)
	assert.Equal(t, int64(0), stats.Waiting)
}

func TestLimiterFIFO(t *testing.T) {
	l := New(1)
	hold, err := l.Acquire(context.Background())
	require.NoError(t, err)

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			release, err := l.Acquire(context.Background())
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			release()
		}(i)

		// Wait until the goroutine is queued before starting the next one.
		require.Eventually(t, func() bool { return l.Stats().Waiting == int64(i+1) }, time.Second, time.Millisecond)
		time.Sleep(5 * time.Millisecond)
	}

	hold()
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestLimiterAcquireCanceled(t *testing.T) {
	l := New(1)
	hold, err := l.Acquire(context.Background())
	require.NoError(t, err)
	defer hold()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = l.Acquire(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, int64(0), l.Stats().Waiting)
}

func TestLimiterReleaseIdempotent(t *testing.T) {
	l := New(1)
	release, err := l.Acquire(context.Background())
	require.NoError(t, err)

	release()
	release()

	assert.Equal(t, int64(1), l.Stats().Completed)
	assert.Equal(t, 1, l.Limit())
	assert.Equal(t, 1, New(0).Limit())
}
