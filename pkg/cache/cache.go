package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL keeps portfolio views fresh while absorbing re-renders and polling.
const DefaultTTL = 2 * time.Minute

// Metrics receives cache events. Implementations must be safe for concurrent use.
type Metrics interface {
	Hit(cache string)
	Miss(cache string)
	Expire(cache string, n int)
}

type noopMetrics struct{}

func (noopMetrics) Hit(string)         {}
func (noopMetrics) Miss(string)        {}
func (noopMetrics) Expire(string, int) {}

type Options struct {
	Name            string           // Used in stats and metrics
	DefaultTTL      time.Duration    // TTL for Set, default 2 minutes
	CleanupInterval time.Duration    // Background sweep period, <= 0 disables it
	Now             func() time.Time // Clock, defaults to time.Now
	Metrics         Metrics          // Optional
}

// Stats is a diagnostic snapshot; it never counts expired entries.
type Stats struct {
	Name string   `json:"name,omitempty"`
	Size int      `json:"size"`
	Keys []string `json:"keys"`
}

type entry[V any] struct {
	value    V
	storedAt time.Time
	ttl      time.Duration
}

func (e *entry[V]) expired(now time.Time) bool {
	return now.Sub(e.storedAt) > e.ttl
}

// Cache is a memory-resident key/value store with per-entry TTL. Stale entries
// are dropped when read; an optional sweeper also removes them in the background.
type Cache[V any] struct {
	name       string
	defaultTTL time.Duration
	now        func() time.Time
	metrics    Metrics

	mu    sync.Mutex
	items map[string]*entry[V]
	gen   uint64 // Bumped by Clear

	loads singleflight.Group

	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func New[V any](opts Options) *Cache[V] {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Metrics == nil {
		opts.Metrics = noopMetrics{}
	}

	c := &Cache[V]{
		name:       opts.Name,
		defaultTTL: opts.DefaultTTL,
		now:        opts.Now,
		metrics:    opts.Metrics,
		items:      make(map[string]*entry[V]),
		stop:       make(chan struct{}),
	}

	if opts.CleanupInterval > 0 {
		c.wg.Add(1)
		go c.sweepLoop(opts.CleanupInterval)
	}

	return c
}

func (c *Cache[V]) Name() string { return c.name }

// DefaultTTL returns the TTL applied by Set.
func (c *Cache[V]) DefaultTTL() time.Duration { return c.defaultTTL }

// Get returns the value for key if present and unexpired.
func (c *Cache[V]) Get(key string) (V, bool) {
	now := c.now()

	c.mu.Lock()
	e, ok := c.items[key]
	if ok && e.expired(now) {
		delete(c.items, key)
		c.mu.Unlock()
		c.metrics.Expire(c.name, 1)
		c.metrics.Miss(c.name)
		var zero V
		return zero, false
	}
	c.mu.Unlock()

	if !ok {
		c.metrics.Miss(c.name)
		var zero V
		return zero, false
	}

	c.metrics.Hit(c.name)
	return e.value, true
}

// Set stores value under key with the default TTL, resetting its age.
func (c *Cache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores value under key; a non-positive ttl means the default.
func (c *Cache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	c.items[key] = &entry[V]{value: value, storedAt: c.now(), ttl: ttl}
	c.mu.Unlock()
}

func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

func (c *Cache[V]) Clear() {
	c.mu.Lock()
	c.items = make(map[string]*entry[V])
	c.gen++
	c.mu.Unlock()
}

// Size returns the number of live entries.
func (c *Cache[V]) Size() int {
	return c.Stats().Size
}

// Keys returns the live keys in ascending order.
func (c *Cache[V]) Keys() []string {
	return c.Stats().Keys
}

func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	removed := c.purgeExpiredLocked(c.now())
	keys := make([]string, 0, len(c.items))
	for k := range c.items {
		keys = append(keys, k)
	}
	c.mu.Unlock()

	if removed > 0 {
		c.metrics.Expire(c.name, removed)
	}

	sort.Strings(keys)
	return Stats{Name: c.name, Size: len(keys), Keys: keys}
}

// LoadOptions tune GetOrLoadWith.
type LoadOptions struct {
	Refresh bool // Skip the lookup and always load
}

// GetOrLoad returns the cached value for key or calls load once for all
// concurrent callers asking for the same key. Only successful loads are stored.
// The load outlives a caller whose ctx ends; that caller just stops waiting.
func (c *Cache[V]) GetOrLoad(ctx context.Context, key string, load func(ctx context.Context) (V, error)) (V, error) {
	return c.GetOrLoadWith(ctx, key, LoadOptions{}, storeAlways(load))
}

// Refresh loads key unconditionally and stores the result. Callers refreshing
// or missing the same key concurrently share one load.
func (c *Cache[V]) Refresh(ctx context.Context, key string, load func(ctx context.Context) (V, error)) (V, error) {
	return c.GetOrLoadWith(ctx, key, LoadOptions{Refresh: true}, storeAlways(load))
}

// GetOrLoadWith is GetOrLoad where load also reports whether its value may be
// stored. A value that must not be stored is still handed to every waiting caller.
// A Clear issued while the load runs discards its result.
func (c *Cache[V]) GetOrLoadWith(ctx context.Context, key string, opts LoadOptions, load func(ctx context.Context) (V, bool, error)) (V, error) {
	if !opts.Refresh {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
	}

	ch := c.loads.DoChan(key, func() (any, error) {
		c.mu.Lock()
		gen := c.gen
		c.mu.Unlock()

		v, store, err := load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		if store {
			c.setIfGeneration(key, v, gen)
		}
		return v, nil
	})

	select {
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			var zero V
			return zero, res.Err
		}
		v, ok := res.Val.(V)
		if !ok {
			var zero V
			return zero, fmt.Errorf("cache %s: unexpected value type %T for key %s", c.name, res.Val, key)
		}
		return v, nil
	}
}

func storeAlways[V any](load func(ctx context.Context) (V, error)) func(ctx context.Context) (V, bool, error) {
	return func(ctx context.Context) (V, bool, error) {
		v, err := load(ctx)
		return v, true, err
	}
}

// setIfGeneration stores value unless the cache was cleared after gen was read.
func (c *Cache[V]) setIfGeneration(key string, value V, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	c.items[key] = &entry[V]{value: value, storedAt: c.now(), ttl: c.defaultTTL}
}

// Close stops the background sweeper. Safe to call multiple times.
func (c *Cache[V]) Close() error {
	c.closeOnce.Do(func() {
		close(c.stop)
	})
	c.wg.Wait()
	return nil
}

func (c *Cache[V]) sweepLoop(every time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			removed := c.purgeExpiredLocked(c.now())
			c.mu.Unlock()
			if removed > 0 {
				c.metrics.Expire(c.name, removed)
			}
		}
	}
}

func (c *Cache[V]) purgeExpiredLocked(now time.Time) int {
	removed := 0
	for key, e := range c.items {
		if e.expired(now) {
			delete(c.items, key)
			removed++
		}
	}
	return removed
}
