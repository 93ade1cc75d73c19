package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Model    string    `json:"model"`
	Forecast []float64 `json:"forecast"`
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisCacheFromClient(client, "test")
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "k", payload{Model: "rf", Forecast: []float64{1, 2}}, time.Minute))

	var got payload
	require.NoError(t, mc.Get(ctx, "k", &got))
	assert.Equal(t, payload{Model: "rf", Forecast: []float64{1, 2}}, got)

	require.NoError(t, mc.Delete(ctx, "k", "unknown"))
	assert.ErrorIs(t, mc.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	now := time.Unix(1_700_000_000, 0)
	mc.now = func() time.Time { return now }

	require.NoError(t, mc.Set(ctx, "short", "v", time.Second))
	require.NoError(t, mc.Set(ctx, "default", "v", 0))

	now = now.Add(2 * time.Second)
	var s string
	assert.ErrorIs(t, mc.Get(ctx, "short", &s), ErrCacheMiss)
	require.NoError(t, mc.Get(ctx, "default", &s))
	assert.Equal(t, "v", s)
	assert.Equal(t, 1, mc.Len())
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "a", 1, time.Minute))
	require.NoError(t, mc.Set(ctx, "b", 2, time.Minute))

	var n int
	require.NoError(t, mc.Get(ctx, "a", &n))
	require.NoError(t, mc.Set(ctx, "c", 3, time.Minute))

	assert.Equal(t, 2, mc.Len())
	assert.ErrorIs(t, mc.Get(ctx, "b", &n), ErrCacheMiss)
	require.NoError(t, mc.Get(ctx, "a", &n))
	assert.Equal(t, 1, n)

	// Overwriting refreshes recency without growing the cache.
	require.NoError(t, mc.Set(ctx, "c", 30, time.Minute))
	assert.Equal(t, 2, mc.Len())
	require.NoError(t, mc.Get(ctx, "c", &n))
	assert.Equal(t, 30, n)
}

func TestMemoryCacheRejectsUnencodable(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	assert.Error(t, mc.Set(context.Background(), "ch", make(chan int), time.Minute))
	assert.Equal(t, 0, mc.Len())
}

func TestRedisCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, rc := newRedis(t)

	require.NoError(t, rc.Set(ctx, "k", payload{Model: "arima"}, time.Minute))
	assert.True(t, mr.Exists("test:k"))

	var got payload
	require.NoError(t, rc.Get(ctx, "k", &got))
	assert.Equal(t, "arima", got.Model)

	assert.ErrorIs(t, rc.Get(ctx, "missing", &got), ErrCacheMiss)

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, rc.Get(ctx, "k", &got), ErrCacheMiss)

	require.NoError(t, rc.Set(ctx, "d", payload{}, time.Minute))
	require.NoError(t, rc.Delete(ctx, "d"))
	assert.False(t, mr.Exists("test:d"))
}

func TestLayeredCacheReadsThroughRedis(t *testing.T) {
	ctx := context.Background()
	_, rc := newRedis(t)
	lc := NewLayeredCache(rc)
	defer lc.mem.Close()

	require.NoError(t, rc.Set(ctx, "k", payload{Model: "XGBoost", Forecast: []float64{3}}, time.Minute))

	var got payload
	require.NoError(t, lc.Get(ctx, "k", &got))
	assert.Equal(t, "XGBoost", got.Model)
	assert.Equal(t, 1, lc.mem.Len())

	var again payload
	require.NoError(t, lc.mem.Get(ctx, "k", &again))
	assert.Equal(t, got, again)
	assert.NoError(t, lc.Health(ctx))
	assert.True(t, lc.HasRedis())
}

func TestLayeredCacheWritesThrough(t *testing.T) {
	ctx := context.Background()
	mr, rc := newRedis(t)
	lc := NewLayeredCache(rc)
	defer lc.mem.Close()

	require.NoError(t, lc.Set(ctx, "k", payload{Model: "rf"}, time.Minute))
	assert.True(t, mr.Exists("test:k"))
	assert.Equal(t, 1, lc.mem.Len())

	require.NoError(t, lc.Delete(ctx, "k"))
	assert.False(t, mr.Exists("test:k"))
	var got payload
	assert.ErrorIs(t, lc.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestLayeredCacheWithoutRedis(t *testing.T) {
	ctx := context.Background()
	lc := NewLayeredCache(nil)
	defer lc.Close()

	assert.False(t, lc.HasRedis())
	require.NoError(t, lc.Set(ctx, "k", payload{Model: "rf"}, time.Minute))

	var got payload
	require.NoError(t, lc.Get(ctx, "k", &got))
	assert.Equal(t, "rf", got.Model)
	assert.ErrorIs(t, lc.Get(ctx, "nope", &got), ErrCacheMiss)
	assert.NoError(t, lc.Health(ctx))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "forecast:rf:3", Key("forecast", "rf", 3))

	a := Fingerprint("y", []float64{1, 2, 3})
	assert.Len(t, a, 32)
	assert.Equal(t, a, Fingerprint("y", []float64{1, 2, 3}))
	assert.NotEqual(t, a, Fingerprint("z", []float64{1, 2, 3}))
	assert.NotEqual(t, a, Fingerprint("y", []float64{1, 2, 3.0000001}))
	assert.NotEqual(t, Fingerprint("y1", nil), Fingerprint("y", []float64{0}))
}
