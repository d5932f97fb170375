package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("key not found in cache")
	ErrInvalidValue = errors.New("invalid value for cache")
	ErrClosed       = errors.New("cache is closed")
	ErrInvalidKey   = errors.New("invalid cache key")
)

// Cache is a key/value store with per-entry TTL. Values are written with
// Encode and read back with Decode, so every tier stores the same bytes.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Get decodes the stored value into value, which must be a *string,
	// *[]byte or an encoding.BinaryUnmarshaler. A miss returns ErrNotFound.
	Get(ctx context.Context, key string, value interface{}) error

	Delete(ctx context.Context, key string) error

	Clear(ctx context.Context) error

	Close() error
}

type Options struct {
	DefaultTTL time.Duration

	CleanupInterval time.Duration

	RedisURL string

	RedisPassword string

	RedisDB int

	// OpTimeout bounds a single remote round trip.
	OpTimeout time.Duration

	// FailureCooldown is how long the remote tier is skipped after it fails.
	FailureCooldown time.Duration
}

func DefaultOptions() Options {
	return Options{
		DefaultTTL:      time.Hour,
		CleanupInterval: time.Minute * 5,
		OpTimeout:       250 * time.Millisecond,
		FailureCooldown: 5 * time.Second,
	}
}

func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	return nil
}
