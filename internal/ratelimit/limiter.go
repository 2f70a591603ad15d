// Package ratelimit bounds requests per caller per calendar minute.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hardwarelens-api/internal/cache"
)

// ErrLimited is returned when a caller has exhausted its bucket.
var ErrLimited = errors.New("rate limit exceeded")

const (
	// DefaultLimit is the number of calls allowed per bucket.
	DefaultLimit = 30

	bucketTTL    = 60 * time.Second
	bucketLayout = "2006-01-02T15:04"
)

// Limiter counts calls per identity in fixed one-minute buckets stored in a
// cache.Store. Store failures are returned to the caller and never treated
// as permission to proceed.
type Limiter struct {
	store cache.Store
	limit int64
	now   func() time.Time
}

// New creates a limiter. A non-positive limit falls back to DefaultLimit.
func New(store cache.Store, limit int64) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Limiter{store: store, limit: limit, now: time.Now}
}

// WithClock overrides the time source. Used by tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Limit returns the per-bucket call allowance.
func (l *Limiter) Limit() int64 {
	return l.limit
}

// BucketKey returns the counter key for identity at t.
func BucketKey(identity string, t time.Time) string {
	return "rate:" + identity + ":" + t.UTC().Format(bucketLayout)
}

// Allow records one call for identity and reports whether it is within the limit.
func (l *Limiter) Allow(ctx context.Context, identity string) (bool, error) {
	key := BucketKey(identity, l.now())

	count, err := l.store.Incr(ctx, key)
	if err != nil {
		return false, fmt.Errorf("rate limit counter: %w", err)
	}
	if count == 1 {
		if err := l.store.Expire(ctx, key, bucketTTL); err != nil {
			return false, fmt.Errorf("rate limit expiry: %w", err)
		}
	}

	return count <= l.limit, nil
}

// Check is Allow folded into a single error: ErrLimited when the bucket is
// exhausted, or the store error.
func (l *Limiter) Check(ctx context.Context, identity string) error {
	ok, err := l.Allow(ctx, identity)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLimited
	}
	return nil
}
