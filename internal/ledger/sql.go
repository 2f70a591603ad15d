package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// dialect captures the differences between the SQL ledger backends.
type dialect struct {
	name string
	// numbered placeholders ($1, $2) instead of ?
	numbered bool
	ddl      []string
	// serialize guards writers on engines with a single writer.
	serialize bool
}

// SQLSheet is a Sheet stored in two tables: ledger_header holds the column
// names by index, ledger_rows holds each data row as a JSON array.
type SQLSheet struct {
	db      *sql.DB
	dialect dialect
	mu      sync.RWMutex
}

func newSQLSheet(ctx context.Context, db *sql.DB, d dialect) (*SQLSheet, error) {
	for _, stmt := range d.ddl {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
	}
	return &SQLSheet{db: db, dialect: d}, nil
}

// rebind rewrites ? placeholders for dialects that number them.
func (s *SQLSheet) rebind(query string) string {
	if !s.dialect.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLSheet) lock() func() {
	if !s.dialect.serialize {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *SQLSheet) rlock() func() {
	if !s.dialect.serialize {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

// ReadHeader implements Sheet.
func (s *SQLSheet) ReadHeader(ctx context.Context) ([]string, error) {
	defer s.rlock()()

	rows, err := s.db.QueryContext(ctx, `SELECT name FROM ledger_header ORDER BY col_index`)
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	defer rows.Close()

	var header []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan header: %w", err)
		}
		header = append(header, name)
	}
	return header, rows.Err()
}

// WriteHeader implements Sheet.
func (s *SQLSheet) WriteHeader(ctx context.Context, header []string) error {
	defer s.lock()()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM ledger_header`); err != nil {
		return fmt.Errorf("failed to clear header: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, s.rebind(`INSERT INTO ledger_header (col_index, name) VALUES (?, ?)`))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, name := range header {
		if _, err := stmt.ExecContext(ctx, i, name); err != nil {
			return fmt.Errorf("failed to write header column %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// AppendRow implements Sheet.
func (s *SQLSheet) AppendRow(ctx context.Context, row []string) error {
	cells, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to encode row: %w", err)
	}

	defer s.lock()()

	if _, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO ledger_rows (cells) VALUES (?)`), string(cells)); err != nil {
		return fmt.Errorf("failed to append row: %w", err)
	}
	return nil
}

// ReadRows implements Sheet.
func (s *SQLSheet) ReadRows(ctx context.Context) ([][]string, error) {
	defer s.rlock()()

	rows, err := s.db.QueryContext(ctx, `SELECT cells FROM ledger_rows ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		var cells []string
		if err := json.Unmarshal(raw, &cells); err != nil {
			return nil, fmt.Errorf("failed to decode row: %w", err)
		}
		out = append(out, cells)
	}
	return out, rows.Err()
}

// GetStats implements StatsProvider.
func (s *SQLSheet) GetStats(ctx context.Context) (map[string]interface{}, error) {
	defer s.rlock()()

	stats := map[string]interface{}{"backend": s.dialect.name}

	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_rows`).Scan(&count); err != nil {
		return nil, err
	}
	stats["total_rows"] = count

	dbStats := s.db.Stats()
	stats["connections"] = map[string]interface{}{
		"open":     dbStats.OpenConnections,
		"in_use":   dbStats.InUse,
		"idle":     dbStats.Idle,
		"max_open": dbStats.MaxOpenConnections,
	}
	return stats, nil
}

// Close implements Sheet.
func (s *SQLSheet) Close() error {
	return s.db.Close()
}

var (
	_ Sheet         = (*SQLSheet)(nil)
	_ StatsProvider = (*SQLSheet)(nil)
)
