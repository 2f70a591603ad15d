package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Store defines the key/value operations the service relies on.
// MemoryStore (single instance) and RedisStore (shared) implement it;
// one is picked at startup from configuration.
type Store interface {
	// Get retrieves a value by key. Returns ErrCacheMiss if not found or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value. A zero ttl stores the value without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value by key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Incr atomically increments the integer stored at key and returns the
	// new value. A missing key counts from zero.
	Incr(ctx context.Context, key string) (int64, error)

	// Expire sets a TTL on an existing key. Missing keys are ignored.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}

// Common cache errors
type CacheError string

func (e CacheError) Error() string { return string(e) }

const (
	// ErrCacheMiss indicates the key was not found in cache.
	ErrCacheMiss CacheError = "cache miss"
)

// GetJSON reads key and decodes it into v. ErrCacheMiss is returned unwrapped.
func GetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode cached %s: %w", key, err)
	}
	return nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, data, ttl)
}
