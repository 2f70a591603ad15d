package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// cacheEntry represents a cached value with optional expiration.
type cacheEntry struct {
	value     []byte
	expiresAt time.Time // zero => no TTL
}

// isExpired checks if the entry has expired.
func (e *cacheEntry) isExpired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore is an in-memory implementation of Store.
// Use this for development/testing or single-instance deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

// NewMemoryStore creates a new in-memory store with automatic cleanup.
func NewMemoryStore() *MemoryStore {
	c := &MemoryStore{
		entries:         make(map[string]*cacheEntry),
		cleanupInterval: time.Minute,
		stopCleanup:     make(chan struct{}),
	}

	go c.cleanup()

	return c
}

// Get retrieves a value by key.
func (c *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists || entry.isExpired(time.Now()) {
		return nil, ErrCacheMiss
	}

	result := make([]byte, len(entry.value))
	copy(result, entry.value)
	return result, nil
}

// Set stores a value with the given TTL.
func (c *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	entry := &cacheEntry{value: valueCopy}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	c.entries[key] = entry

	return nil
}

// Delete removes a value by key.
func (c *MemoryStore) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	return nil
}

// Incr increments the counter at key, keeping any expiry already set on it.
func (c *MemoryStore) Incr(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if !exists || entry.isExpired(time.Now()) {
		entry = &cacheEntry{}
		c.entries[key] = entry
	}

	var current int64
	if len(entry.value) > 0 {
		n, err := strconv.ParseInt(string(entry.value), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("value at %s is not an integer", key)
		}
		current = n
	}

	current++
	entry.value = []byte(strconv.FormatInt(current, 10))
	return current, nil
}

// Expire sets the expiry of an existing key.
func (c *MemoryStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if !exists || entry.isExpired(time.Now()) {
		return nil
	}
	entry.expiresAt = time.Now().Add(ttl)
	return nil
}

// Ping always succeeds for the in-memory store.
func (c *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close stops the background cleanup goroutine.
func (c *MemoryStore) Close() error {
	c.stopOnce.Do(func() {
		close(c.stopCleanup)
	})
	return nil
}

// Len returns the number of live entries.
func (c *MemoryStore) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	n := 0
	for _, entry := range c.entries {
		if !entry.isExpired(now) {
			n++
		}
	}
	return n
}

// cleanup periodically removes expired entries.
func (c *MemoryStore) cleanup() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stopCleanup:
			return
		}
	}
}

// removeExpired removes all expired entries.
func (c *MemoryStore) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.entries {
		if entry.isExpired(now) {
			delete(c.entries, key)
		}
	}
}

var _ Store = (*MemoryStore)(nil)
