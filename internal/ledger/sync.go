package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"hardwarelens-api/internal/cache"
	"hardwarelens-api/internal/model"
)

const (
	// RecentKey caches the most recent submissions.
	RecentKey = "last-scans"

	DefaultRecentTTL   = 60 * time.Second
	DefaultRecentLimit = 10
)

// SyncConfig tunes the recent-scans cache.
type SyncConfig struct {
	RecentTTL   time.Duration
	RecentLimit int
}

// Sync writes records to the ledger and keeps the recent-scans cache from
// going stale after an append.
type Sync struct {
	sheet  Sheet
	store  cache.Store
	cfg    SyncConfig
	logger *zap.Logger
}

// NewSync creates a Sync. Zero config values use the defaults.
func NewSync(sheet Sheet, store cache.Store, cfg SyncConfig, logger *zap.Logger) *Sync {
	if cfg.RecentTTL <= 0 {
		cfg.RecentTTL = DefaultRecentTTL
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = DefaultRecentLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sync{sheet: sheet, store: store, cfg: cfg, logger: logger.Named("ledger")}
}

// Sheet returns the backend.
func (s *Sync) Sheet() Sheet { return s.sheet }

// EnsureHeader writes model.Header as the first row unless it is already
// there, compared as pipe-joined strings.
func (s *Sync) EnsureHeader(ctx context.Context) error {
	existing, err := s.sheet.ReadHeader(ctx)
	if err != nil {
		return err
	}
	if strings.Join(existing, "|") == strings.Join(model.Header, "|") {
		return nil
	}
	s.logger.Info("writing ledger header", zap.Strings("previous", existing))
	return s.sheet.WriteHeader(ctx, model.Header)
}

// Append writes rec as a new row and drops the recent-scans cache. Failing
// to drop the cache is logged; the row is already committed.
func (s *Sync) Append(ctx context.Context, rec model.EnrichmentRecord) error {
	if err := s.sheet.AppendRow(ctx, rec.Row()); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, RecentKey); err != nil {
		s.logger.Warn("failed to invalidate recent scans", zap.Error(err))
	}
	return nil
}

// Recent returns the latest submissions, newest first.
func (s *Sync) Recent(ctx context.Context) ([]model.EnrichmentRecord, error) {
	var cached []model.EnrichmentRecord
	err := cache.GetJSON(ctx, s.store, RecentKey, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("recent scans cache read failed", zap.Error(err))
	}

	rows, err := s.sheet.ReadRows(ctx)
	if err != nil {
		return nil, err
	}

	start := len(rows) - s.cfg.RecentLimit
	if start < 0 {
		start = 0
	}
	tail := rows[start:]

	recent := make([]model.EnrichmentRecord, 0, len(tail))
	for i := len(tail) - 1; i >= 0; i-- {
		recent = append(recent, model.RecordFromRow(tail[i]))
	}

	if err := cache.SetJSON(ctx, s.store, RecentKey, recent, s.cfg.RecentTTL); err != nil {
		s.logger.Warn("recent scans cache write failed", zap.Error(err))
	}
	return recent, nil
}
