package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server    ServerConfig
	App       AppConfig
	Cache     CacheConfig
	Ledger    LedgerConfig
	Google    GoogleConfig
	Resolver  ResolverConfig
	Enrich    EnrichConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Admin     AdminConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"hardwarelens-api"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Debug       bool   `envconfig:"APP_DEBUG" default:"false"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
}

// CacheConfig holds cache store settings.
type CacheConfig struct {
	Type string `envconfig:"CACHE_TYPE" default:"memory"` // memory or redis

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// LedgerConfig holds settings for the submission ledger.
type LedgerConfig struct {
	Type string `envconfig:"LEDGER_TYPE" default:"sheets"` // sheets, sqlite, mysql or postgres

	// Google Sheets settings
	SheetID       string `envconfig:"GOOGLE_SHEET_ID" default:""`
	SheetName     string `envconfig:"LEDGER_SHEET_NAME" default:"Sheet1"`
	SheetsBaseURL string `envconfig:"SHEETS_BASE_URL" default:"https://sheets.googleapis.com"`

	// SQLite settings
	Path string `envconfig:"LEDGER_DB_PATH" default:"./data/ledger.db"`

	// MySQL / PostgreSQL settings
	Host     string `envconfig:"LEDGER_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"LEDGER_DB_PORT" default:"0"`
	Name     string `envconfig:"LEDGER_DB_NAME" default:"hardwarelens"`
	User     string `envconfig:"LEDGER_DB_USER" default:"root"`
	Password string `envconfig:"LEDGER_DB_PASS" default:""`
	SSLMode  string `envconfig:"LEDGER_DB_SSLMODE" default:"disable"`
}

// GoogleConfig holds the service identity used to mint ledger tokens.
type GoogleConfig struct {
	ServiceAccountJSON string `envconfig:"GOOGLE_SERVICE_ACCOUNT_JSON" default:""`
	Scope              string `envconfig:"GOOGLE_SCOPE" default:"https://www.googleapis.com/auth/spreadsheets"`
}

// ResolverConfig holds outbound provider settings.
type ResolverConfig struct {
	UserAgent    string        `envconfig:"RESOLVER_USER_AGENT" default:"Mozilla/5.0 (compatible; HardwareLens/1.0)"`
	FetchTimeout time.Duration `envconfig:"RESOLVER_FETCH_TIMEOUT" default:"5s"`

	OpenFoodFactsURL string `envconfig:"OPENFOODFACTS_URL" default:"https://world.openfoodfacts.org"`
	UPCItemDBURL     string `envconfig:"UPCITEMDB_URL" default:"https://api.upcitemdb.com"`

	// Page templates take the barcode as their single %s verb.
	GS1URL          string `envconfig:"SCRAPE_GS1_URL" default:"https://www.gs1.org/services/verified-by-gs1/results?gtin=%s"`
	ShoppingURL     string `envconfig:"SCRAPE_SHOPPING_URL" default:"https://www.google.com/search?tbm=shop&q=%s"`
	ManufacturerURL string `envconfig:"SCRAPE_MANUFACTURER_URL" default:"https://www.google.com/search?q=%s+manufacturer"`
}

// EnrichConfig holds cache lifetimes for enrichment and recent submissions.
type EnrichConfig struct {
	ScrapeTTL   time.Duration `envconfig:"ENRICH_CACHE_TTL" default:"24h"`
	RecentTTL   time.Duration `envconfig:"RECENT_CACHE_TTL" default:"60s"`
	RecentLimit int           `envconfig:"RECENT_LIMIT" default:"10"`
}

// RateLimitConfig holds per-caller request limits.
type RateLimitConfig struct {
	PerMinute int64 `envconfig:"RATE_LIMIT_PER_MINUTE" default:"30"`
}

// CORSConfig holds cross-origin settings. An empty list means same-origin only.
type CORSConfig struct {
	AllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`
}

// AdminConfig holds credentials for the admin endpoints. With no keys the
// admin routes are not mounted.
type AdminConfig struct {
	APIKeys []string `envconfig:"ADMIN_API_KEYS" default:""`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// MySQLDSN returns the MySQL data source name.
func (l *LedgerConfig) MySQLDSN() string {
	port := l.Port
	if port == 0 {
		port = 3306
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		l.User, l.Password, l.Host, port, l.Name)
}

// PostgresDSN returns the PostgreSQL connection string.
func (l *LedgerConfig) PostgresDSN() string {
	port := l.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		l.User, l.Password, l.Host, port, l.Name, l.SSLMode)
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
