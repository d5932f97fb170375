package redis

import (
	"context"
	"testing"
	"time"

	"shenanigigs/common/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := New(cache.Options{RedisURL: mr.Addr(), DefaultTTL: time.Minute})
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestCache_SetGet(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))

	var out string
	require.NoError(t, c.Get(ctx, "k", &out))
	assert.Equal(t, "v", out)
}

func TestCache_Miss(t *testing.T) {
	c, _ := newTestCache(t)

	var out string
	err := c.Get(context.Background(), "missing", &out)
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestCache_TTL(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", 7, time.Second))
	require.NoError(t, c.Set(ctx, "default", 8, 0))

	assert.Equal(t, time.Second, mr.TTL("short"))
	assert.Equal(t, time.Minute, mr.TTL("default"))

	mr.FastForward(2 * time.Second)

	var n int
	assert.ErrorIs(t, c.Get(ctx, "short", &n), cache.ErrNotFound)
	require.NoError(t, c.Get(ctx, "default", &n))
	assert.Equal(t, 8, n)
}

func TestCache_Delete(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	require.NoError(t, c.Delete(ctx, "k"))

	var out string
	assert.ErrorIs(t, c.Get(ctx, "k", &out), cache.ErrNotFound)
}

func TestCache_InvalidKey(t *testing.T) {
	c, _ := newTestCache(t)
	assert.ErrorIs(t, c.Set(context.Background(), "", "v", time.Minute), cache.ErrInvalidKey)
}

func TestCache_Unreachable(t *testing.T) {
	c := New(cache.Options{RedisURL: "127.0.0.1:1", OpTimeout: 50 * time.Millisecond})
	defer c.Close()

	err := c.Set(context.Background(), "k", "v", time.Minute)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, cache.ErrNotFound)
}
