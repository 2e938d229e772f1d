// Package memory implements the in-process content cache: a TTL map with
// lazy expiry on read, a periodic sweep, exact and substring invalidation,
// and a memoizing wrapper that coalesces concurrent fetches of one key.
//
// A Cache is generic over its value type. Build one per logical kind of
// payload at process start and hand it to the components that need it.
package memory

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pipeaalzamora/el-blog-del-ceo/cache"
)

type entry[V any] struct {
	value    V
	storedAt time.Time
	ttl      time.Duration
}

func (e entry[V]) live(now time.Time) bool {
	return now.Sub(e.storedAt) <= e.ttl
}

// Cache is a mutex-guarded TTL map safe for concurrent use.
type Cache[V any] struct {
	opts  Options
	clone func(V) V

	mu      sync.Mutex
	entries map[string]entry[V]
	// gen counts invalidations. A fetch started under an older gen must
	// not store its result.
	gen uint64

	group singleflight.Group

	startOnce sync.Once
	stopOnce  sync.Once
	running   atomic.Bool
	stop      chan struct{}
	done      chan struct{}
}

// New builds an empty cache. The sweeper is not running until Start.
func New[V any](opts Options) *Cache[V] {
	return &Cache[V]{
		opts:    opts.withDefaults(),
		entries: make(map[string]entry[V]),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// WithClone installs a copy function applied to values on the way in and on
// the way out, so callers never share mutable state with the cache.
func (c *Cache[V]) WithClone(fn func(V) V) *Cache[V] {
	c.clone = fn
	return c
}

// Name returns the label the cache was built with.
func (c *Cache[V]) Name() string { return c.opts.Name }

// Get returns the live value stored under key. A dead entry found here is
// removed and reported as absent.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	now := c.opts.Now()

	c.mu.Lock()
	e, ok := c.entries[key]
	expired := ok && !e.live(now)
	if expired {
		delete(c.entries, key)
	}
	c.mu.Unlock()

	if !ok || expired {
		if expired {
			c.opts.Metrics.Expire(c.opts.Name, 1)
		}
		c.opts.Metrics.Miss(c.opts.Name)
		return zero, false
	}
	c.opts.Metrics.Hit(c.opts.Name)
	return c.copyOf(e.value), true
}

// Set stores value under key, replacing any previous entry. A non-positive
// ttl is clamped to Options.MinTTL.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	e := c.newEntry(key, value, ttl)

	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
}

// setIfCurrent stores value only while no invalidation happened since gen
// was read. It reports whether the value was stored.
func (c *Cache[V]) setIfCurrent(key string, value V, ttl time.Duration, gen uint64) bool {
	e := c.newEntry(key, value, ttl)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	c.entries[key] = e
	return true
}

func (c *Cache[V]) newEntry(key string, value V, ttl time.Duration) entry[V] {
	if ttl <= 0 {
		c.opts.Logger.Debug().
			Str("cache", c.opts.Name).
			Str("key", key).
			Dur("ttl", ttl).
			Msg("non-positive ttl clamped")
		ttl = c.opts.MinTTL
	}
	return entry[V]{value: c.copyOf(value), storedAt: c.opts.Now(), ttl: ttl}
}

// peek is Get without metrics or removal of dead entries.
func (c *Cache[V]) peek(key string) (V, bool) {
	now := c.opts.Now()
	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()
	if !ok || !e.live(now) {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *Cache[V]) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// SetDefault stores value with Options.DefaultTTL.
func (c *Cache[V]) SetDefault(key string, value V) {
	c.Set(key, value, c.opts.DefaultTTL)
}

// Invalidate removes key and reports whether it was present. Fetches
// already in flight will not store their result.
func (c *Cache[V]) Invalidate(key string) bool {
	c.mu.Lock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	c.gen++
	c.mu.Unlock()

	if ok {
		c.opts.Metrics.Invalidate(c.opts.Name, 1)
	}
	return ok
}

// InvalidatePattern removes every entry whose key contains substr and
// returns how many were dropped. Matching is plain substring containment.
// Like Invalidate, it stops in-flight fetches from storing their result.
func (c *Cache[V]) InvalidatePattern(substr string) int {
	c.mu.Lock()
	c.gen++
	removed := 0
	for key := range c.entries {
		if strings.Contains(key, substr) {
			delete(c.entries, key)
			removed++
		}
	}
	c.mu.Unlock()

	if removed > 0 {
		c.opts.Metrics.Invalidate(c.opts.Name, removed)
	}
	return removed
}

// Cleanup removes every dead entry and returns how many were dropped.
func (c *Cache[V]) Cleanup() int {
	now := c.opts.Now()

	c.mu.Lock()
	removed := 0
	for key, e := range c.entries {
		if !e.live(now) {
			delete(c.entries, key)
			removed++
		}
	}
	c.mu.Unlock()

	if removed > 0 {
		c.opts.Metrics.Expire(c.opts.Name, removed)
	}
	return removed
}

// Len reports the number of stored entries, live or not yet swept.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns the entry count and the sorted key list.
func (c *Cache[V]) Stats() cache.Stats {
	c.mu.Lock()
	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	c.mu.Unlock()

	sort.Strings(keys)
	return cache.Stats{Name: c.opts.Name, Size: len(keys), Keys: keys}
}

// Clear drops every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	n := len(c.entries)
	c.entries = make(map[string]entry[V])
	c.gen++
	c.mu.Unlock()

	if n > 0 {
		c.opts.Metrics.Invalidate(c.opts.Name, n)
	}
}

func (c *Cache[V]) copyOf(v V) V {
	if c.clone == nil {
		return v
	}
	return c.clone(v)
}

var _ cache.Invalidator = (*Cache[int])(nil)
