package cache

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaxtrack/vaxtrack/internal/platform/metrics"
)

func TestMemory_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(4, time.Minute)

	_, ok, err := m.Get(ctx, "catalog")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "catalog", []byte("v1"), 0))
	v, ok, err := m.Get(ctx, "catalog")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v1"), v)

	require.NoError(t, m.Delete(ctx, "catalog"))
	_, ok, _ = m.Get(ctx, "catalog")
	assert.False(t, ok)
}

func TestMemory_Expires(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(4, 20*time.Millisecond)
	require.NoError(t, m.Set(ctx, "k", []byte("v"), 0))

	time.Sleep(60 * time.Millisecond)
	_, ok, _ := m.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemory_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2, time.Minute)
	m.Set(ctx, "a", []byte("1"), 0)
	m.Set(ctx, "b", []byte("2"), 0)
	m.Get(ctx, "a")
	m.Set(ctx, "c", []byte("3"), 0)

	_, okA, _ := m.Get(ctx, "a")
	_, okB, _ := m.Get(ctx, "b")
	assert.True(t, okA)
	assert.False(t, okB)
	assert.Equal(t, 2, m.Len())
}

func TestTiered_RefillsLocalFromShared(t *testing.T) {
	ctx := context.Background()
	local := NewMemory(4, time.Minute)
	shared := NewMemory(4, time.Minute)
	m := metrics.New(prometheus.NewRegistry())
	tiered := NewTiered(local, shared, m)

	require.NoError(t, shared.Set(ctx, "k", []byte("v"), 0))

	v, ok, err := tiered.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	_, ok, _ = local.Get(ctx, "k")
	assert.True(t, ok, "shared hit should populate the local tier")

	_, ok, _ = tiered.Get(ctx, "k")
	assert.True(t, ok)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheLookups.WithLabelValues("memory", "hit")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheLookups.WithLabelValues("memory", "miss")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheLookups.WithLabelValues("redis", "hit")))
}

func TestTiered_DeleteClearsBothTiers(t *testing.T) {
	ctx := context.Background()
	local := NewMemory(4, time.Minute)
	shared := NewMemory(4, time.Minute)
	tiered := NewTiered(local, shared, nil)

	require.NoError(t, tiered.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, tiered.Delete(ctx, "k"))

	_, ok, _ := local.Get(ctx, "k")
	assert.False(t, ok)
	_, ok, _ = shared.Get(ctx, "k")
	assert.False(t, ok)
}

func TestTiered_NoSharedTier(t *testing.T) {
	ctx := context.Background()
	tiered := NewTiered(NewMemory(4, time.Minute), nil, nil)

	_, ok, err := tiered.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, tiered.Set(ctx, "k", []byte("v"), 0))
	_, ok, _ = tiered.Get(ctx, "k")
	assert.True(t, ok)
}

func TestJSONHelpers(t *testing.T) {
	type snapshot struct {
		Codes []string `json:"codes"`
	}
	ctx := context.Background()
	s := NewMemory(4, time.Minute)

	require.NoError(t, SetJSON(ctx, s, "snap", snapshot{Codes: []string{"BCG", "OPV0"}}, 0))
	got, ok, err := GetJSON[snapshot](ctx, s, "snap")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"BCG", "OPV0"}, got.Codes)

	require.NoError(t, s.Set(ctx, "bad", []byte("{not json"), 0))
	_, ok, err = GetJSON[snapshot](ctx, s, "bad")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestRedis_UnreachableDegradesToMiss(t *testing.T) {
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	r := NewRedis(client, "vaxtrack:", zerolog.Nop())

	for i := 0; i < 6; i++ {
		_, ok, err := r.Get(ctx, "catalog")
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.NoError(t, r.Set(ctx, "catalog", []byte("v"), time.Minute))
	assert.NoError(t, r.Delete(ctx, "catalog"))
	assert.Equal(t, gobreaker.StateOpen, r.State())
}

func TestNewRedisClient_EmptyURL(t *testing.T) {
	client, err := NewRedisClient(context.Background(), RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, client)
}
