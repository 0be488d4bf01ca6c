// Package cache is a TTL map with LRU size bounding and a background sweep.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Config holds cache limits.
type Config struct {
	// TTL is the lifetime of an entry.
	TTL time.Duration

	// MaxSize is the entry count that triggers LRU eviction. Zero disables it.
	MaxSize int

	// EvictRatio is the share of MaxSize dropped on each LRU eviction.
	EvictRatio float64

	// CleanupInterval is the period of the expired-entry sweep.
	CleanupInterval time.Duration
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits            int64   `json:"hits"`
	Misses          int64   `json:"misses"`
	HitRate         float64 `json:"hit_rate"`
	Size            int     `json:"size"`
	MaxSize         int     `json:"max_size"`
	ExpiredCleanups int64   `json:"expired_cleanups"`
	LRUCleanups     int64   `json:"lru_cleanups"`
}

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// Cache is safe for concurrent use.
type Cache[V any] struct {
	cfg   Config
	mu    sync.Mutex
	items map[string]*list.Element
	lru   *list.List // front is most recently used

	hits, misses                 int64
	expiredCleanups, lruCleanups int64

	now     func() time.Time
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// New creates a cache. A non-positive TTL defaults to 5 seconds.
func New[V any](cfg Config) *Cache[V] {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Second
	}
	if cfg.EvictRatio <= 0 || cfg.EvictRatio > 1 {
		cfg.EvictRatio = 0.2
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 30 * time.Second
	}

	return &Cache[V]{
		cfg:   cfg,
		items: make(map[string]*list.Element),
		lru:   list.New(),
		now:   time.Now,
	}
}

// Get returns a live entry. Expired entries are removed and reported absent.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		c.misses++
		return zero, false
	}

	e := el.Value.(*entry[V])
	if !c.now().Before(e.expiresAt) {
		c.removeElement(el)
		c.expiredCleanups++
		c.misses++
		return zero, false
	}

	c.lru.MoveToFront(el)
	c.hits++
	return e.value, true
}

// Set stores value with expiresAt = now + TTL, overwriting any existing entry.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(c.cfg.TTL)
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[V])
		e.value = value
		e.expiresAt = expiresAt
		c.lru.MoveToFront(el)
		return
	}

	c.items[key] = c.lru.PushFront(&entry[V]{key: key, value: value, expiresAt: expiresAt})

	if c.cfg.MaxSize > 0 && len(c.items) > c.cfg.MaxSize {
		c.evictLRU()
	}
}

// Delete removes key if present.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
}

// Clear drops every entry and resets counters.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.lru.Init()
	c.hits, c.misses = 0, 0
	c.expiredCleanups, c.lruCleanups = 0, 0
}

// Len returns the number of stored entries, expired or not.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Sweep removes expired entries and returns how many were dropped.
func (c *Cache[V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for el := c.lru.Back(); el != nil; {
		prev := el.Prev()
		if !now.Before(el.Value.(*entry[V]).expiresAt) {
			c.removeElement(el)
			removed++
		}
		el = prev
	}
	c.expiredCleanups += int64(removed)
	return removed
}

// Stats returns current counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var rate float64
	if total := c.hits + c.misses; total > 0 {
		rate = float64(c.hits) / float64(total) * 100
	}
	return Stats{
		Hits:            c.hits,
		Misses:          c.misses,
		HitRate:         rate,
		Size:            len(c.items),
		MaxSize:         c.cfg.MaxSize,
		ExpiredCleanups: c.expiredCleanups,
		LRUCleanups:     c.lruCleanups,
	}
}

// Start runs the sweep every CleanupInterval until ctx is done or Stop is called.
func (c *Cache[V]) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.cfg.CleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Sweep()
			}
		}
	}()
}

// Stop halts the background sweep.
func (c *Cache[V]) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
}

// evictLRU drops EvictRatio of MaxSize from the cold end, and at least the overflow.
func (c *Cache[V]) evictLRU() {
	n := int(float64(c.cfg.MaxSize) * c.cfg.EvictRatio)
	if overflow := len(c.items) - c.cfg.MaxSize; n < overflow {
		n = overflow
	}
	for i := 0; i < n; i++ {
		el := c.lru.Back()
		if el == nil {
			break
		}
		c.removeElement(el)
	}
	c.lruCleanups++
}

func (c *Cache[V]) removeElement(el *list.Element) {
	c.lru.Remove(el)
	delete(c.items, el.Value.(*entry[V]).key)
}
