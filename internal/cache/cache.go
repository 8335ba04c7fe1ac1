// Package cache is the key-value store behind the auto-contact attempt flags
// and the profile cache. Redis backs it in production; Memory serves tests
// and single-instance deployments without Redis.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss signals that a key is absent.
var ErrMiss = errors.New("cache: miss")

// Cache is a string key-value store. Implementations are safe for concurrent
// use. A zero or negative TTL means no expiration.
type Cache interface {
	// Get returns ErrMiss for absent keys.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX stores value only when key is absent and reports whether it did.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// Del removes keys and returns how many existed.
	Del(ctx context.Context, keys ...string) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}
