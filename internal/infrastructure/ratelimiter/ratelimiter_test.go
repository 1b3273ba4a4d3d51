package ratelimiter

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestRateLimiter_BurstThenRefill(t *testing.T) {
	clock := newFakeClock()
	cache := NewInMemory()
	defer cache.Close()

	rl := New(Options{MaxRatePerSecond: 2, MaxBurst: 3, Cache: cache, Now: clock.Now})

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("client"), "request %d", i)
	}
	assert.False(t, rl.Allow("client"))
	assert.Equal(t, 0, rl.Remaining("client"))

	// 2 tokens per second: one token every 500ms, accumulated across calls
	for i := 0; i < 4; i++ {
		clock.Advance(100 * time.Millisecond)
		assert.False(t, rl.Allow("client"))
	}
	clock.Advance(100 * time.Millisecond)
	assert.True(t, rl.Allow("client"))
	assert.False(t, rl.Allow("client"))

	clock.Advance(time.Hour)
	assert.Equal(t, 3, rl.Remaining("client"))
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	clock := newFakeClock()
	rl := New(Options{MaxRatePerSecond: 1, MaxBurst: 1, Now: clock.Now})

	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))
	assert.Equal(t, 1, rl.GetMaxBurst())
}

func TestRateLimiter_RedisSharedAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	clock := newFakeClock()
	opts := Options{MaxRatePerSecond: 1, MaxBurst: 2, Cache: NewRedis(client, "test:"), CacheTTL: time.Minute, Now: clock.Now}
	first := New(opts)
	second := New(opts)

	assert.True(t, first.Allow("10.0.0.1"))
	assert.True(t, second.Allow("10.0.0.1"))
	assert.False(t, first.Allow("10.0.0.1"))

	assert.True(t, mr.Exists("test:"+bucketKeyPrefix+"10.0.0.1"))
}

func TestRateLimiter_RedisDownFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	rl := New(Options{MaxRatePerSecond: 1, MaxBurst: 1, Cache: NewRedis(client, "")})
	assert.True(t, rl.Allow("x"))
	assert.True(t, rl.Allow("x"))
}

func TestRedisCache_Miss(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cache := NewRedis(client, "")
	_, err := cache.Get("missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, cache.Set("k", 5))
	v, err := cache.Get("k")
	require.NoError(t, err)
	assert.Equal(t, 5, v)
}

func TestInMemory_Expiration(t *testing.T) {
	clock := newFakeClock()
	cache := newInMemory(clock.Now, time.Hour)
	defer cache.Close()

	require.NoError(t, cache.SetWithExpiration("short", 1, time.Second))
	require.NoError(t, cache.Set("forever", 2))

	v, err := cache.Get("short")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	clock.Advance(2 * time.Second)

	_, err = cache.Get("short")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Equal(t, 2, cache.Len())

	cache.sweep()
	assert.Equal(t, 1, cache.Len())

	v, err = cache.Get("forever")
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestSourceKey(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", SourceKey(r, "X-Forwarded-For"))

	r.Header.Set("X-Forwarded-For", " 203.0.113.9 , 10.0.0.1")
	assert.Equal(t, "203.0.113.9", SourceKey(r, "X-Forwarded-For"))
}

func TestFixedWindow(t *testing.T) {
	clock := newFakeClock()
	rl := newFixedWindow(2, time.Minute, clock.Now)
	defer rl.Close()

	ok, _ := rl.Allow("ip")
	assert.True(t, ok)
	ok, _ = rl.Allow("ip")
	assert.True(t, ok)

	ok, retry := rl.Allow("ip")
	assert.False(t, ok)
	assert.Equal(t, time.Minute, retry)

	ok, _ = rl.Allow("other")
	assert.True(t, ok)

	clock.Advance(time.Minute)
	ok, _ = rl.Allow("ip")
	assert.True(t, ok)

	clock.Advance(2 * time.Minute)
	rl.cleanup()
	rl.mu.Lock()
	assert.Empty(t, rl.windows)
	rl.mu.Unlock()
	rl.Close()
}
