package tiered

import (
	"context"
	"testing"
	"time"

	"shenanigigs/common/cache"
	"shenanigigs/common/cache/memory"
	"shenanigigs/common/cache/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTiered(t *testing.T, addr string) *Cache {
	t.Helper()
	opts := cache.Options{
		RedisURL:        addr,
		DefaultTTL:      time.Minute,
		OpTimeout:       100 * time.Millisecond,
		FailureCooldown: time.Minute,
	}
	c := New(redis.New(opts), memory.New(opts), opts, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestTiered_RemoteHit(t *testing.T) {
	mr := miniredis.RunT(t)
	c := newTiered(t, mr.Addr())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	assert.True(t, mr.Exists("k"))

	var out string
	require.NoError(t, c.Get(ctx, "k", &out))
	assert.Equal(t, "v", out)
}

func TestTiered_RemoteUnreachable(t *testing.T) {
	c := newTiered(t, "127.0.0.1:1")
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	assert.False(t, c.RemoteAvailable())

	var out string
	require.NoError(t, c.Get(ctx, "k", &out))
	assert.Equal(t, "v", out)

	var missing string
	assert.ErrorIs(t, c.Get(ctx, "other", &missing), cache.ErrNotFound)
}

func TestTiered_RemoteFailsAfterWrite(t *testing.T) {
	mr := miniredis.RunT(t)
	c := newTiered(t, mr.Addr())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	mr.SetError("LOADING redis is loading")

	var out string
	require.NoError(t, c.Get(ctx, "k", &out))
	assert.Equal(t, "v", out)
	assert.False(t, c.RemoteAvailable())
}

func TestTiered_RemoteWriteFailedThenRecovered(t *testing.T) {
	mr := miniredis.RunT(t)
	c := newTiered(t, mr.Addr())
	ctx := context.Background()

	mr.SetError("READONLY")
	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	mr.SetError("")

	// cooldown elapsed: remote is consulted again, misses, mirror answers
	c.remoteDownUntil.Store(0)

	var out string
	require.NoError(t, c.Get(ctx, "k", &out))
	assert.Equal(t, "v", out)
}

func TestTiered_DeleteSeenByOtherInstance(t *testing.T) {
	mr := miniredis.RunT(t)
	a := newTiered(t, mr.Addr())
	b := newTiered(t, mr.Addr())
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, "ref:companies:v1", "old", time.Hour))
	require.NoError(t, a.Delete(ctx, "ref:companies:v1"))
	assert.False(t, mr.Exists("ref:companies:v1"))

	var out string
	assert.ErrorIs(t, b.Get(ctx, "ref:companies:v1", &out), cache.ErrNotFound)
	assert.True(t, b.RemoteAvailable())

	// the stale mirror copy is gone too, so a later outage cannot revive it
	mr.SetError("LOADING redis is loading")
	assert.ErrorIs(t, b.Get(ctx, "ref:companies:v1", &out), cache.ErrNotFound)
}

func TestTiered_RemoteExpiryIsAMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	c := newTiered(t, mr.Addr())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Hour))
	mr.Del("k")

	var out string
	assert.ErrorIs(t, c.Get(ctx, "k", &out), cache.ErrNotFound)
}

func TestTiered_CancelledCallerStillWrites(t *testing.T) {
	mr := miniredis.RunT(t)
	c := newTiered(t, mr.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	assert.True(t, mr.Exists("k"))
}

func TestTiered_Delete(t *testing.T) {
	mr := miniredis.RunT(t)
	c := newTiered(t, mr.Addr())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	require.NoError(t, c.Delete(ctx, "k"))

	assert.False(t, mr.Exists("k"))
	var out string
	assert.ErrorIs(t, c.Get(ctx, "k", &out), cache.ErrNotFound)
}

func TestTiered_InvalidValue(t *testing.T) {
	mr := miniredis.RunT(t)
	c := newTiered(t, mr.Addr())

	err := c.Set(context.Background(), "k", struct{}{}, time.Minute)
	assert.ErrorIs(t, err, cache.ErrInvalidValue)
}
