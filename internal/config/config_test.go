package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Cache.Type)
	assert.Equal(t, "sheets", cfg.Ledger.Type)
	assert.Equal(t, "Sheet1", cfg.Ledger.SheetName)
	assert.Equal(t, 5*time.Second, cfg.Resolver.FetchTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Enrich.ScrapeTTL)
	assert.Equal(t, 60*time.Second, cfg.Enrich.RecentTTL)
	assert.Equal(t, 10, cfg.Enrich.RecentLimit)
	assert.Equal(t, int64(30), cfg.RateLimit.PerMinute)
	assert.Empty(t, cfg.CORS.AllowedOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CACHE_TYPE", "redis")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("LEDGER_TYPE", "postgres")
	t.Setenv("LEDGER_DB_HOST", "db")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost:6380", cfg.Cache.RedisAddress())
	assert.Equal(t, "postgres://root:@db:5432/hardwarelens?sslmode=disable", cfg.Ledger.PostgresDSN())
	assert.Equal(t, "root:@tcp(db:3306)/hardwarelens?parseTime=true", cfg.Ledger.MySQLDSN())
	assert.Equal(t, int64(5), cfg.RateLimit.PerMinute)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("RESOLVER_FETCH_TIMEOUT", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestAppConfig_IsDevelopment(t *testing.T) {
	assert.True(t, (&AppConfig{Environment: "development"}).IsDevelopment())
	assert.False(t, (&AppConfig{Environment: "production"}).IsDevelopment())
}
