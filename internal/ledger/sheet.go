// Package ledger appends enrichment records to an append-only row store and
// keeps the recent-scans read cache consistent with it.
package ledger

import (
	"context"
	"fmt"
)

// Sheet is a row-oriented ledger backend. Rows are returned in ledger order
// and may be shorter than the header when trailing cells are empty.
type Sheet interface {
	// ReadHeader returns the first row, or nil when the ledger is empty.
	ReadHeader(ctx context.Context) ([]string, error)

	// WriteHeader overwrites the first row.
	WriteHeader(ctx context.Context, header []string) error

	// AppendRow adds a data row after the last one.
	AppendRow(ctx context.Context, row []string) error

	// ReadRows returns every data row, header excluded.
	ReadRows(ctx context.Context) ([][]string, error)

	// Close releases the backend.
	Close() error
}

// StatsProvider is implemented by backends that can describe themselves.
type StatsProvider interface {
	GetStats(ctx context.Context) (map[string]interface{}, error)
}

// APIError reports a non-success response from the ledger backend.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ledger %s failed: %d %s", e.Op, e.StatusCode, e.Body)
}
