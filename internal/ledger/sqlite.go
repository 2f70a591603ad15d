package ledger

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

var sqliteDialect = dialect{
	name: "sqlite",
	ddl: []string{
		`CREATE TABLE IF NOT EXISTS ledger_header (
			col_index INTEGER PRIMARY KEY,
			name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ledger_rows (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			cells TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	},
	serialize: true,
}

// NewSQLiteSheet opens (or creates) a SQLite ledger at path.
func NewSQLiteSheet(ctx context.Context, path string) (*SQLSheet, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s, err := newSQLSheet(ctx, db, sqliteDialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}
