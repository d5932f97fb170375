package redis

import (
	"context"
	"errors"
	"time"

	"shenanigigs/common/cache"

	"github.com/redis/go-redis/v9"
)

type Cache struct {
	client     *redis.Client
	defaultTTL time.Duration
}

func New(opts cache.Options) *Cache {
	defaults := cache.DefaultOptions()
	if opts.DefaultTTL == 0 {
		opts.DefaultTTL = defaults.DefaultTTL
	}
	if opts.OpTimeout == 0 {
		opts.OpTimeout = defaults.OpTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.RedisURL,
		Password:     opts.RedisPassword,
		DB:           opts.RedisDB,
		DialTimeout:  opts.OpTimeout,
		ReadTimeout:  opts.OpTimeout,
		WriteTimeout: opts.OpTimeout,
		// a failing remote tier is handled by the caller, not retried here
		MaxRetries: -1,
	})

	return &Cache{client: client, defaultTTL: opts.DefaultTTL}
}

func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := cache.ValidateKey(key); err != nil {
		return err
	}
	data, err := cache.Encode(value)
	if err != nil {
		return err
	}
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

func (c *Cache) Get(ctx context.Context, key string, value interface{}) error {
	if err := cache.ValidateKey(key); err != nil {
		return err
	}
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return cache.ErrNotFound
	}
	if err != nil {
		return err
	}
	return cache.Decode(val, value)
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func (c *Cache) Clear(ctx context.Context) error {
	return c.client.FlushDB(ctx).Err()
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	err := c.client.Close()
	if errors.Is(err, redis.ErrClosed) {
		return cache.ErrClosed
	}
	return err
}
