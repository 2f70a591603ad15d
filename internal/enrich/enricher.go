package enrich

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"hardwarelens-api/internal/cache"
	"hardwarelens-api/internal/model"
	"hardwarelens-api/internal/resolver"
)

const (
	// DefaultTTL is how long a merged record stays cached.
	DefaultTTL = 24 * time.Hour

	// ResolveTimeout bounds one shared resolution. It runs detached from the
	// callers waiting on it, so one caller leaving does not fail the others.
	ResolveTimeout = 15 * time.Second
)

// CacheKey returns the cache key for a barcode's merged record.
func CacheKey(barcode string) string {
	return "scrape:" + barcode
}

// Enricher resolves barcodes through the providers and caches the merged
// result. Resolvers are merged in the order given, so the last one has the
// highest precedence.
type Enricher struct {
	store     cache.Store
	resolvers []resolver.Resolver
	ttl       time.Duration
	group     singleflight.Group
	logger    *zap.Logger
}

// NewEnricher creates an enricher. A non-positive ttl uses DefaultTTL.
func NewEnricher(store cache.Store, ttl time.Duration, logger *zap.Logger, resolvers ...resolver.Resolver) *Enricher {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{
		store:     store,
		resolvers: resolvers,
		ttl:       ttl,
		logger:    logger.Named("enrich"),
	}
}

// Resolve returns the cached record for barcode, or queries every resolver
// concurrently, merges and caches the result. Provider failures are absorbed
// by the resolvers, so a record is always produced.
func (e *Enricher) Resolve(ctx context.Context, barcode string) (model.EnrichmentRecord, error) {
	key := CacheKey(barcode)

	var cached model.EnrichmentRecord
	err := cache.GetJSON(ctx, e.store, key, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		e.logger.Warn("enrichment cache read failed", zap.String("key", key), zap.Error(err))
	}

	if err := ctx.Err(); err != nil {
		return model.EnrichmentRecord{}, err
	}

	ch := e.group.DoChan(barcode, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ResolveTimeout)
		defer cancel()
		return e.resolve(rctx, barcode)
	})

	select {
	case <-ctx.Done():
		return model.EnrichmentRecord{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return model.EnrichmentRecord{}, res.Err
		}
		if res.Shared {
			e.logger.Debug("joined in-flight resolution", zap.String("barcode", barcode))
		}
		return res.Val.(model.EnrichmentRecord), nil
	}
}

func (e *Enricher) resolve(ctx context.Context, barcode string) (model.EnrichmentRecord, error) {
	contributions := make([]model.PartialRecord, len(e.resolvers))

	g, gctx := errgroup.WithContext(ctx)
	for i, r := range e.resolvers {
		i, r := i, r
		g.Go(func() error {
			contributions[i] = r.Resolve(gctx, barcode)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.EnrichmentRecord{}, err
	}
	if err := ctx.Err(); err != nil {
		return model.EnrichmentRecord{}, err
	}

	rec := Merge(contributions...)
	rec.Barcode = barcode

	if err := cache.SetJSON(ctx, e.store, CacheKey(barcode), rec, e.ttl); err != nil {
		e.logger.Warn("enrichment cache write failed", zap.String("barcode", barcode), zap.Error(err))
	}

	e.logger.Info("barcode resolved",
		zap.String("barcode", barcode),
		zap.Bool("brand", rec.Brand != nil),
		zap.Bool("model", rec.Model != nil),
	)
	return rec, nil
}
