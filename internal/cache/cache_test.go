package cache

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestCache_TTLBoundary(t *testing.T) {
	clock := newFakeClock()
	c := New[string](10, time.Minute, WithClock(clock.Now))

	c.SetWithTTL("k", "v", 10*time.Second)

	clock.Advance(10*time.Second - time.Millisecond)
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	// exactly at expiresAt is still fresh
	clock.Advance(time.Millisecond)
	_, ok = c.Get("k")
	assert.True(t, ok)

	clock.Advance(time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired record is dropped on read")
}

func TestCache_DefaultTTL(t *testing.T) {
	clock := newFakeClock()
	c := New[int](10, 5*time.Second, WithClock(clock.Now))

	c.Set("k", 1)
	clock.Advance(5 * time.Second)
	assert.True(t, c.Has("k"))
	clock.Advance(time.Nanosecond)
	assert.False(t, c.Has("k"))
}

func TestCache_CapacityEvictsOldestStored(t *testing.T) {
	clock := newFakeClock()
	c := New[int](3, time.Hour, WithClock(clock.Now))

	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
		clock.Advance(time.Second)
	}

	// reads do not protect k0: eviction is by insertion, not access
	_, ok := c.Get("k0")
	require.True(t, ok)

	c.Set("k3", 3)

	assert.Equal(t, 3, c.Len())
	assert.False(t, c.Has("k0"))
	assert.Equal(t, []string{"k1", "k2", "k3"}, c.Keys())
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestCache_CapacitySameTick(t *testing.T) {
	clock := newFakeClock()
	c := New[int](2, time.Hour, WithClock(clock.Now))

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	assert.Equal(t, []string{"b", "c"}, c.Keys())
}

func TestCache_OverwriteAtCapacityDoesNotEvict(t *testing.T) {
	clock := newFakeClock()
	c := New[int](2, time.Hour, WithClock(clock.Now))

	c.Set("a", 1)
	clock.Advance(time.Second)
	c.Set("b", 2)
	clock.Advance(time.Second)
	c.Set("a", 10)

	assert.Equal(t, 2, c.Len())
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 10, v)
	assert.True(t, c.Has("b"))
	// overwrite refreshes storedAt so b is now the oldest
	assert.Equal(t, []string{"b", "a"}, c.Keys())
}

func TestCache_CapacityProperty(t *testing.T) {
	for maxSize := 1; maxSize <= 20; maxSize++ {
		clock := newFakeClock()
		c := New[int](maxSize, time.Hour, WithClock(clock.Now))
		for i := 0; i <= maxSize; i++ {
			c.Set(fmt.Sprintf("k%d", i), i)
			clock.Advance(time.Millisecond)
		}
		assert.Equal(t, maxSize, c.Len())
		assert.False(t, c.Has("k0"), "maxSize=%d", maxSize)
	}
}

func TestCache_CleanupIdempotent(t *testing.T) {
	clock := newFakeClock()
	c := New[int](10, time.Hour, WithClock(clock.Now))

	c.SetWithTTL("short1", 1, time.Second)
	c.SetWithTTL("short2", 2, time.Second)
	c.SetWithTTL("long", 3, time.Minute)

	clock.Advance(2 * time.Second)
	assert.Equal(t, 2, c.Cleanup())
	assert.Equal(t, 0, c.Cleanup())
	assert.Equal(t, []string{"long"}, c.Keys())
}

func TestCache_DeleteAndPatterns(t *testing.T) {
	c := New[int](10, time.Hour)

	c.Set("listing:/a", 1)
	c.Set("listing:/a/b", 2)
	c.Set("search:xyz", 3)
	c.Set("other", 4)

	assert.True(t, c.Delete("other"))
	assert.False(t, c.Delete("other"))

	n := c.DeletePattern(func(k string) bool { return strings.HasPrefix(k, "listing:") })
	assert.Equal(t, 2, n)

	n = c.DeleteRegexp(regexp.MustCompile(`^search:`))
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, c.Len())

	c.Set("x", 1)
	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestCache_Stats(t *testing.T) {
	clock := newFakeClock()
	c := New[int](5, time.Minute, WithClock(clock.Now), WithName("listings"))

	empty := c.Stats()
	assert.Equal(t, "listings", empty.Name)
	assert.Nil(t, empty.OldestStoredAt)
	assert.Nil(t, empty.NewestStoredAt)
	assert.Zero(t, empty.HitRate)

	first := clock.Now()
	c.Set("a", 1)
	clock.Advance(time.Second)
	last := clock.Now()
	c.Set("b", 2)

	c.Get("a")
	c.Get("a")
	c.Get("b")
	c.Get("missing")

	s := c.Stats()
	assert.Equal(t, 2, s.Size)
	assert.Equal(t, 5, s.MaxSize)
	require.NotNil(t, s.OldestStoredAt)
	require.NotNil(t, s.NewestStoredAt)
	assert.Equal(t, first, *s.OldestStoredAt)
	assert.Equal(t, last, *s.NewestStoredAt)
	assert.Equal(t, uint64(3), s.Hits)
	assert.Equal(t, uint64(1), s.Misses)
	assert.InDelta(t, 0.75, s.HitRate, 1e-9)
}

type countingObserver struct {
	mu     sync.Mutex
	hits   int
	misses int
	sizes  []int
}

func (o *countingObserver) CacheHit(string)  { o.mu.Lock(); o.hits++; o.mu.Unlock() }
func (o *countingObserver) CacheMiss(string) { o.mu.Lock(); o.misses++; o.mu.Unlock() }
func (o *countingObserver) CacheSize(_ string, n int) {
	o.mu.Lock()
	o.sizes = append(o.sizes, n)
	o.mu.Unlock()
}

func TestCache_Observer(t *testing.T) {
	obs := &countingObserver{}
	c := New[int](5, time.Minute, WithObserver(obs))

	c.Set("a", 1)
	c.Get("a")
	c.Get("b")
	c.Delete("a")

	assert.Equal(t, 1, obs.hits)
	assert.Equal(t, 1, obs.misses)
	assert.Equal(t, []int{1, 0}, obs.sizes)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New[int](50, time.Minute)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (g*200+i)%75)
				c.Set(key, i)
				c.Get(key)
				if i%50 == 0 {
					c.Cleanup()
					c.Stats()
				}
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 50)
}

func TestNew_MinimumSize(t *testing.T) {
	c := New[int](0, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Has("b"))
}
