// Package cache provides a bounded, time-limited key/value store used to
// amortize remote tree fetches.
//
// Records expire when a read observes now > expiresAt, or when a sweep
// (Cleanup, usually driven by a Janitor) finds them stale. When the store is
// full and a new key arrives, the record with the oldest storedAt is evicted;
// reads never refresh storedAt, so eviction follows insertion order.
package cache

import (
	"regexp"
	"sort"
	"sync"
	"time"
)

// Observer receives hit/miss notifications and size changes, e.g. for metrics
type Observer interface {
	CacheHit(name string)
	CacheMiss(name string)
	CacheSize(name string, size int)
}

type record[T any] struct {
	value     T
	storedAt  time.Time
	expiresAt time.Time
	// seq orders records inserted within the same clock tick
	seq uint64
}

// Stats is a snapshot of a cache
type Stats struct {
	Name           string     `json:"name"`
	Size           int        `json:"size"`
	MaxSize        int        `json:"maxSize"`
	DefaultTTL     string     `json:"defaultTtl"`
	OldestStoredAt *time.Time `json:"oldestStoredAt,omitempty"`
	NewestStoredAt *time.Time `json:"newestStoredAt,omitempty"`
	Hits           uint64     `json:"hits"`
	Misses         uint64     `json:"misses"`
	Evictions      uint64     `json:"evictions"`
	HitRate        float64    `json:"hitRate"`
}

type options struct {
	name     string
	now      func() time.Time
	observer Observer
}

// Option customizes a Cache
type Option func(*options)

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithName labels the cache in stats, logs and metrics
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithObserver attaches an Observer
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// Cache is a TTL cache with insertion-order eviction. It is safe for
// concurrent use; one mutex guards the map since no operation does I/O.
type Cache[T any] struct {
	mu         sync.Mutex
	name       string
	entries    map[string]*record[T]
	maxSize    int
	defaultTTL time.Duration
	now        func() time.Time
	observer   Observer
	seq        uint64
	hits       uint64
	misses     uint64
	evictions  uint64
}

// New creates a cache holding at most maxSize records (minimum 1)
func New[T any](maxSize int, defaultTTL time.Duration, opts ...Option) *Cache[T] {
	o := options{name: "cache", now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if maxSize < 1 {
		maxSize = 1
	}
	return &Cache[T]{
		name:       o.name,
		entries:    make(map[string]*record[T]),
		maxSize:    maxSize,
		defaultTTL: defaultTTL,
		now:        o.now,
		observer:   o.observer,
	}
}

// Name returns the cache label
func (c *Cache[T]) Name() string {
	return c.name
}

// Set inserts or overwrites key with the default TTL
func (c *Cache[T]) Set(key string, value T) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL inserts or overwrites key, expiring it ttl from now
func (c *Cache[T]) SetWithTTL(key string, value T, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}

	now := c.now()
	c.seq++
	c.entries[key] = &record[T]{
		value:     value,
		storedAt:  now,
		expiresAt: now.Add(ttl),
		seq:       c.seq,
	}
	c.reportSizeLocked()
}

// Get returns the value for key if it has not expired. An expired record is
// removed on the way out.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	rec, ok := c.entries[key]
	if !ok {
		c.missLocked()
		return zero, false
	}
	if c.now().After(rec.expiresAt) {
		delete(c.entries, key)
		c.missLocked()
		c.reportSizeLocked()
		return zero, false
	}

	c.hits++
	if c.observer != nil {
		c.observer.CacheHit(c.name)
	}
	return rec.value, true
}

// Has reports whether key holds a live record without counting a hit or miss
func (c *Cache[T]) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.entries[key]
	return ok && !c.now().After(rec.expiresAt)
}

// Delete removes key and reports whether it was present
func (c *Cache[T]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return false
	}
	delete(c.entries, key)
	c.reportSizeLocked()
	return true
}

// DeletePattern removes every key for which match returns true
func (c *Cache[T]) DeletePattern(match func(key string) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if match(key) {
			delete(c.entries, key)
			removed++
		}
	}
	if removed > 0 {
		c.reportSizeLocked()
	}
	return removed
}

// DeleteRegexp removes every key matching re
func (c *Cache[T]) DeleteRegexp(re *regexp.Regexp) int {
	return c.DeletePattern(re.MatchString)
}

// Clear removes all records. Counters are kept.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*record[T])
	c.reportSizeLocked()
}

// Cleanup removes every expired record and returns how many were removed
func (c *Cache[T]) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, rec := range c.entries {
		if now.After(rec.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	if removed > 0 {
		c.reportSizeLocked()
	}
	return removed
}

// Len returns the number of stored records, expired or not
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Keys returns the stored keys in insertion order
func (c *Cache[T]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return c.entries[keys[i]].seq < c.entries[keys[j]].seq
	})
	return keys
}

// Stats returns a snapshot of size, bounds, age range and counters
func (c *Cache[T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Name:       c.name,
		Size:       len(c.entries),
		MaxSize:    c.maxSize,
		DefaultTTL: c.defaultTTL.String(),
		Hits:       c.hits,
		Misses:     c.misses,
		Evictions:  c.evictions,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}

	var oldest, newest *record[T]
	for _, rec := range c.entries {
		if oldest == nil || older(rec, oldest) {
			oldest = rec
		}
		if newest == nil || older(newest, rec) {
			newest = rec
		}
	}
	if oldest != nil {
		o, n := oldest.storedAt, newest.storedAt
		s.OldestStoredAt = &o
		s.NewestStoredAt = &n
	}
	return s
}

func (c *Cache[T]) evictOldestLocked() {
	var oldestKey string
	var oldest *record[T]
	for key, rec := range c.entries {
		if oldest == nil || older(rec, oldest) {
			oldestKey, oldest = key, rec
		}
	}
	if oldest != nil {
		delete(c.entries, oldestKey)
		c.evictions++
	}
}

func (c *Cache[T]) missLocked() {
	c.misses++
	if c.observer != nil {
		c.observer.CacheMiss(c.name)
	}
}

func (c *Cache[T]) reportSizeLocked() {
	if c.observer != nil {
		c.observer.CacheSize(c.name, len(c.entries))
	}
}

func older[T any](a, b *record[T]) bool {
	if a.storedAt.Equal(b.storedAt) {
		return a.seq < b.seq
	}
	return a.storedAt.Before(b.storedAt)
}
