// Package tiered combines a remote shared cache with a process-local mirror.
//
// Reads try the remote tier first and fall back to the mirror when the remote
// fails or is cooling down. A clean remote miss is a miss, unless this
// process wrote the key while the remote was failing. Writes go to both
// tiers. Remote errors are logged and never returned. Remote calls run
// detached from the caller's cancellation, bounded by OpTimeout.
package tiered

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"shenanigigs/common/cache"

	"go.uber.org/zap"
)

type Cache struct {
	remote cache.Cache
	local  cache.Cache
	logger *zap.Logger

	opTimeout time.Duration
	cooldown  time.Duration
	now       func() time.Time

	// unix nanos until which the remote tier is skipped
	remoteDownUntil atomic.Int64

	// keys whose last Set reached only the mirror
	dirty sync.Map
}

func New(remote, local cache.Cache, opts cache.Options, logger *zap.Logger) *Cache {
	defaults := cache.DefaultOptions()
	if opts.OpTimeout == 0 {
		opts.OpTimeout = defaults.OpTimeout
	}
	if opts.FailureCooldown == 0 {
		opts.FailureCooldown = defaults.FailureCooldown
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Cache{
		remote:    remote,
		local:     local,
		logger:    logger,
		opTimeout: opts.OpTimeout,
		cooldown:  opts.FailureCooldown,
		now:       time.Now,
	}
}

func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := cache.ValidateKey(key); err != nil {
		return err
	}
	if _, err := cache.Encode(value); err != nil {
		return err
	}

	if c.withRemote(ctx, "set", key, func(rctx context.Context) error {
		return c.remote.Set(rctx, key, value, ttl)
	}) {
		c.dirty.Delete(key)
	} else {
		c.dirty.Store(key, struct{}{})
	}

	if err := c.local.Set(ctx, key, value, ttl); err != nil {
		c.logger.Warn("local cache set failed", zap.String("key", key), zap.Error(err))
	}
	return nil
}

func (c *Cache) Get(ctx context.Context, key string, value interface{}) error {
	if err := cache.ValidateKey(key); err != nil {
		return err
	}

	var remoteErr error
	ok := c.withRemote(ctx, "get", key, func(rctx context.Context) error {
		remoteErr = c.remote.Get(rctx, key, value)
		if errors.Is(remoteErr, cache.ErrNotFound) || errors.Is(remoteErr, cache.ErrInvalidValue) {
			return nil
		}
		return remoteErr
	})
	if ok && remoteErr == nil {
		return nil
	}
	if errors.Is(remoteErr, cache.ErrInvalidValue) {
		return remoteErr
	}
	if ok {
		if _, dirty := c.dirty.Load(key); !dirty {
			// deleted or expired remotely; the mirror copy is stale
			_ = c.local.Delete(ctx, key)
			return cache.ErrNotFound
		}
	}

	err := c.local.Get(ctx, key, value)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, cache.ErrNotFound), errors.Is(err, cache.ErrInvalidValue):
		return err
	default:
		c.logger.Warn("local cache get failed", zap.String("key", key), zap.Error(err))
		return cache.ErrNotFound
	}
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	c.dirty.Delete(key)
	c.withRemote(ctx, "delete", key, func(rctx context.Context) error {
		return c.remote.Delete(rctx, key)
	})
	if err := c.local.Delete(ctx, key); err != nil {
		c.logger.Warn("local cache delete failed", zap.String("key", key), zap.Error(err))
	}
	return nil
}

func (c *Cache) Clear(ctx context.Context) error {
	c.dirty.Range(func(k, _ any) bool {
		c.dirty.Delete(k)
		return true
	})
	c.withRemote(ctx, "clear", "", func(rctx context.Context) error {
		return c.remote.Clear(rctx)
	})
	return c.local.Clear(ctx)
}

func (c *Cache) Close() error {
	return errors.Join(c.remote.Close(), c.local.Close())
}

// RemoteAvailable reports whether the remote tier is currently being used.
func (c *Cache) RemoteAvailable() bool {
	return c.now().UnixNano() >= c.remoteDownUntil.Load()
}

// withRemote runs op against the remote tier unless it is cooling down.
// It reports whether op ran and succeeded.
func (c *Cache) withRemote(ctx context.Context, op, key string, fn func(context.Context) error) bool {
	if !c.RemoteAvailable() {
		return false
	}

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opTimeout)
	defer cancel()

	if err := fn(rctx); err != nil {
		c.remoteDownUntil.Store(c.now().Add(c.cooldown).UnixNano())
		c.logger.Warn("remote cache unavailable, using local mirror",
			zap.String("op", op),
			zap.String("key", key),
			zap.Duration("cooldown", c.cooldown),
			zap.Error(err))
		return false
	}
	return true
}
