package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func localBackends(t *testing.T) map[string]Cache {
	t.Helper()
	local := LocalConfig{MaxSize: 100, DefaultExpiration: time.Minute, CleanupInterval: time.Minute}
	return map[string]Cache{
		TypeGoCache: NewGoCache(local),
		TypeLRU:     NewLRUCache(local),
	}
}

func TestCacheBackends(t *testing.T) {
	ctx := context.Background()
	for name, c := range localBackends(t) {
		c := c
		t.Run(name, func(t *testing.T) {
			defer c.Close()

			_, ok := c.Get(ctx, "missing")
			assert.False(t, ok)

			require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
			got, ok := c.Get(ctx, "k")
			require.True(t, ok)
			assert.Equal(t, []byte("v"), got)
			assert.True(t, c.Exists(ctx, "k"))

			set, err := c.SetNX(ctx, "k", []byte("other"), time.Minute)
			require.NoError(t, err)
			assert.False(t, set)
			got, _ = c.Get(ctx, "k")
			assert.Equal(t, []byte("v"), got)

			require.NoError(t, c.Delete(ctx, "k"))
			assert.False(t, c.Exists(ctx, "k"))

			set, err = c.SetNX(ctx, "k", []byte("fresh"), time.Minute)
			require.NoError(t, err)
			assert.True(t, set)
		})
	}
}

func TestGoCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewGoCache(LocalConfig{DefaultExpiration: time.Minute, CleanupInterval: time.Minute})
	require.NoError(t, c.Set(ctx, "k", []byte("v"), 20*time.Millisecond))
	time.Sleep(40 * time.Millisecond)
	assert.False(t, c.Exists(ctx, "k"))

	set, err := c.SetNX(ctx, "k", []byte("again"), time.Minute)
	require.NoError(t, err)
	assert.True(t, set)
}

func TestLRUEvictsOldest(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache(LocalConfig{MaxSize: 2, DefaultExpiration: time.Minute})
	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))
	require.NoError(t, c.Set(ctx, "c", []byte("3"), 0))
	assert.False(t, c.Exists(ctx, "a"))
	assert.True(t, c.Exists(ctx, "c"))
}

func TestNewCache(t *testing.T) {
	c, err := NewCache(Config{})
	require.NoError(t, err)
	assert.IsType(t, &goCacheWrapper{}, c)

	c, err = NewCache(Config{Type: "LRU", Local: LocalConfig{MaxSize: 10}})
	require.NoError(t, err)
	assert.IsType(t, &lruCache{}, c)

	_, err = NewCache(Config{Type: "memcached"})
	assert.Error(t, err)
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	ctx := context.Background()
	cfg := DefaultConfig().Redis
	cfg.Addr = addr
	cfg.KeyPrefix = "sosrelay-test:"
	c, err := NewRedisCache(cfg)
	require.NoError(t, err)
	defer c.Close()
	defer c.Delete(ctx, "nx")

	set, err := c.SetNX(ctx, "nx", []byte("1"), time.Minute)
	require.NoError(t, err)
	assert.True(t, set)
	set, err = c.SetNX(ctx, "nx", []byte("2"), time.Minute)
	require.NoError(t, err)
	assert.False(t, set)
	got, ok := c.Get(ctx, "nx")
	require.True(t, ok)
	assert.Equal(t, []byte("1"), got)
}
