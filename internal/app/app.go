// Package app assembles the service from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"hardwarelens-api/internal/cache"
	"hardwarelens-api/internal/config"
	"hardwarelens-api/internal/credential"
	"hardwarelens-api/internal/enrich"
	"hardwarelens-api/internal/handler"
	"hardwarelens-api/internal/ledger"
	"hardwarelens-api/internal/ratelimit"
	"hardwarelens-api/internal/resolver"
	"hardwarelens-api/internal/router"
	"hardwarelens-api/internal/service"
)

// App holds the wired components.
type App struct {
	Config      *config.Config
	Logger      *zap.Logger
	Store       cache.Store
	Issuer      *credential.Issuer
	Sheet       ledger.Sheet
	Ledger      *ledger.Sync
	Enricher    *enrich.Enricher
	Limiter     *ratelimit.Limiter
	Submissions *service.SubmissionService
	Router      http.Handler
}

// NewLogger returns a console development logger in development or when
// debug is on, and a JSON production logger otherwise.
func NewLogger(cfg config.AppConfig) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Debug || cfg.IsDevelopment() {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", cfg.Name), zap.String("env", cfg.Environment)), nil
}

// NewStore opens the cache store selected by cfg.Type.
func NewStore(cfg config.CacheConfig) (cache.Store, error) {
	switch cfg.Type {
	case "redis":
		return cache.NewRedisStore(cache.RedisConfig{
			Addr:     cfg.RedisAddress(),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	case "memory", "":
		return cache.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown CACHE_TYPE %q", cfg.Type)
	}
}

// NewSheet opens the ledger backend selected by cfg.Ledger.Type.
func NewSheet(ctx context.Context, cfg *config.Config, tokens ledger.TokenSource) (ledger.Sheet, error) {
	switch cfg.Ledger.Type {
	case "sheets", "":
		if cfg.Ledger.SheetID == "" {
			return nil, errors.New("GOOGLE_SHEET_ID is required for the sheets ledger")
		}
		return ledger.NewGoogleSheet(ledger.GoogleSheetConfig{
			BaseURL:       cfg.Ledger.SheetsBaseURL,
			SpreadsheetID: cfg.Ledger.SheetID,
			SheetName:     cfg.Ledger.SheetName,
			Scope:         cfg.Google.Scope,
		}, tokens)
	case "sqlite":
		if dir := filepath.Dir(cfg.Ledger.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create ledger directory: %w", err)
			}
		}
		return ledger.NewSQLiteSheet(ctx, cfg.Ledger.Path)
	case "mysql":
		return ledger.NewMySQLSheet(ctx, cfg.Ledger.MySQLDSN())
	case "postgres", "postgresql":
		return ledger.NewPostgresSheet(ctx, cfg.Ledger.PostgresDSN())
	default:
		return nil, fmt.Errorf("unknown LEDGER_TYPE %q", cfg.Ledger.Type)
	}
}

// Build wires every component from cfg. The caller owns the returned App and
// must Close it.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := NewStore(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("cache store: %w", err)
	}
	logger.Info("cache store initialized", zap.String("type", cfg.Cache.Type))

	issuer := credential.NewIssuer(cfg.Google.ServiceAccountJSON, credential.NewTokenCache(),
		credential.WithLogger(logger))

	sheet, err := NewSheet(ctx, cfg, issuer)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("ledger: %w", err)
	}
	logger.Info("ledger initialized", zap.String("type", cfg.Ledger.Type))

	sync := ledger.NewSync(sheet, store, ledger.SyncConfig{
		RecentTTL:   cfg.Enrich.RecentTTL,
		RecentLimit: cfg.Enrich.RecentLimit,
	}, logger)

	fetcher := resolver.NewFetcher(cfg.Resolver.FetchTimeout, cfg.Resolver.UserAgent, logger)
	enricher := enrich.NewEnricher(store, cfg.Enrich.ScrapeTTL, logger,
		resolver.NewScraper(fetcher, cfg.Resolver.GS1URL, cfg.Resolver.ShoppingURL, cfg.Resolver.ManufacturerURL),
		resolver.NewUPCItemDB(fetcher, cfg.Resolver.UPCItemDBURL),
		resolver.NewOpenFoodFacts(fetcher, cfg.Resolver.OpenFoodFactsURL),
	)

	limiter := ratelimit.New(store, cfg.RateLimit.PerMinute)
	submissions := service.NewSubmissionService(enricher, sync, logger)

	r := router.New(router.Config{
		Handler:       handler.New(cfg.App.Name, cfg.App.Version, store),
		EnrichHandler: handler.NewEnrichHandler(submissions, cfg.Enrich.RecentLimit, logger),
		AdminHandler: handler.NewAdminHandler(handler.AdminConfig{
			Cache:      store,
			CacheType:  cfg.Cache.Type,
			Ledger:     sheet,
			LedgerType: cfg.Ledger.Type,
			Tokens:     issuer.Cache(),
			RateLimit:  limiter.Limit(),
		}),
		RateLimiter:    limiter,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AdminKeys:      cfg.Admin.APIKeys,
		Logger:         logger,
	})

	return &App{
		Config:      cfg,
		Logger:      logger,
		Store:       store,
		Issuer:      issuer,
		Sheet:       sheet,
		Ledger:      sync,
		Enricher:    enricher,
		Limiter:     limiter,
		Submissions: submissions,
		Router:      r,
	}, nil
}

// Close releases the ledger and the cache store.
func (a *App) Close() error {
	return errors.Join(a.Sheet.Close(), a.Store.Close())
}
