package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore writes to a local SQLite file through the modernc driver. It is
// used for local runs and for exercising the writer without a Postgres server.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway and this keeps
	// in-memory databases on a single connection.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 10000;"); err != nil {
		log.Printf("WARN: sqlite: could not set busy_timeout: %v", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Dialect() Dialect {
	return DialectSQLite
}

func (s *SQLiteStore) InsertBatch(ctx context.Context, table string, columns []string, rows [][]any) error {
	query, err := BuildInsertStatement(DialectSQLite, table, columns, len(rows))
	if err != nil {
		return err
	}

	args := make([]any, 0, len(columns)*len(rows))
	for _, row := range rows {
		args = append(args, row...)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if rx := tx.Rollback(); rx != nil {
			log.Printf("Error rolling back transaction: %v", rx)
		}
		return fmt.Errorf("sqlite: insert %d rows into %s: %w", len(rows), table, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Exec(ctx context.Context, query string) error {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("sqlite: exec: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("sqlite: health check query failed: %w", err)
	}
	return nil
}

// DB exposes the handle for read-back in tests and tools.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) Close() {
	if err := s.db.Close(); err != nil {
		log.Printf("WARN: sqlite: close: %v", err)
	}
}
