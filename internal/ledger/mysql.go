package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

var mysqlDialect = dialect{
	name: "mysql",
	ddl: []string{
		`CREATE TABLE IF NOT EXISTS ledger_header (
			col_index INT NOT NULL PRIMARY KEY,
			name VARCHAR(64) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ledger_rows (
			id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			cells JSON NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	},
}

// NewMySQLSheet connects to a MySQL ledger.
// dsn format: "user:password@tcp(host:port)/dbname?parseTime=true"
func NewMySQLSheet(ctx context.Context, dsn string) (*SQLSheet, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	s, err := newSQLSheet(ctx, db, mysqlDialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}
