package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"shenanigigs/common/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SetGet(t *testing.T) {
	c := New(cache.Options{})
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))

	var out string
	require.NoError(t, c.Get(ctx, "k", &out))
	assert.Equal(t, "v", out)
}

func TestCache_Expiry(t *testing.T) {
	c := New(cache.Options{})
	defer c.Close()
	ctx := context.Background()

	now := time.Now()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))

	now = now.Add(time.Minute)
	var out string
	assert.ErrorIs(t, c.Get(ctx, "k", &out), cache.ErrNotFound)

	c.deleteExpired()
	assert.Equal(t, 0, c.Len())
}

func TestCache_ReplaceNotMutate(t *testing.T) {
	c := New(cache.Options{})
	defer c.Close()
	ctx := context.Background()

	buf := []byte("first")
	require.NoError(t, c.Set(ctx, "k", buf, time.Minute))
	buf[0] = 'F'

	var out string
	require.NoError(t, c.Get(ctx, "k", &out))
	assert.Equal(t, "first", out)

	require.NoError(t, c.Set(ctx, "k", "second", time.Minute))
	require.NoError(t, c.Get(ctx, "k", &out))
	assert.Equal(t, "second", out)
}

func TestCache_DeleteAndClear(t *testing.T) {
	c := New(cache.Options{})
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", "1", time.Minute))
	require.NoError(t, c.Set(ctx, "b", "2", time.Minute))

	require.NoError(t, c.Delete(ctx, "a"))
	var out string
	assert.ErrorIs(t, c.Get(ctx, "a", &out), cache.ErrNotFound)

	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, 0, c.Len())
}

func TestCache_Closed(t *testing.T) {
	c := New(cache.Options{CleanupInterval: time.Millisecond})
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.ErrorIs(t, c.Set(context.Background(), "k", "v", time.Minute), cache.ErrClosed)
}

func TestCache_ConcurrentWriters(t *testing.T) {
	c := New(cache.Options{})
	defer c.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%4)
			_ = c.Set(ctx, key, i, time.Minute)
			var n int
			_ = c.Get(ctx, key, &n)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 4, c.Len())
}
