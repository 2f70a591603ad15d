// Package resolver queries external product data providers. Every resolver
// absorbs its own failures and returns an empty contribution instead.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"hardwarelens-api/internal/model"
)

const (
	// DefaultUserAgent identifies outbound provider requests.
	DefaultUserAgent = "Mozilla/5.0 (compatible; HardwareLens/1.0)"

	// DefaultTimeout bounds each outbound fetch.
	DefaultTimeout = 5 * time.Second

	maxBodySize = 4 << 20
)

// Resolver produces a partial record for a barcode from one provider.
type Resolver interface {
	Name() string
	Resolve(ctx context.Context, barcode string) model.PartialRecord
}

// StatusError is returned by Fetcher for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.StatusCode)
}

// Fetcher performs GET requests with a fixed user agent and a bounded timeout.
type Fetcher struct {
	client    *http.Client
	userAgent string
	logger    *zap.Logger
}

// NewFetcher creates a fetcher. Zero values fall back to the defaults.
func NewFetcher(timeout time.Duration, userAgent string, logger *zap.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		logger:    logger.Named("resolver"),
	}
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
}

// GetJSON fetches url and decodes the JSON body into v.
func (f *Fetcher) GetJSON(ctx context.Context, url string, v any) error {
	body, err := f.get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// GetHTML fetches url and returns the body as text.
func (f *Fetcher) GetHTML(ctx context.Context, url string) (string, error) {
	body, err := f.get(ctx, url)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// miss logs a provider failure. Failures are expected and never fatal.
func (f *Fetcher) miss(source, barcode string, err error) {
	f.logger.Debug("provider lookup failed",
		zap.String("source", source),
		zap.String("barcode", barcode),
		zap.Error(err),
	)
}
