package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PoolOptions struct {
	MaxConns       int32
	IdleTimeout    time.Duration
	ConnectTimeout time.Duration
}

func ConnectDB(ctx context.Context, connStr string, opts PoolOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database url: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.IdleTimeout > 0 {
		cfg.MaxConnIdleTime = opts.IdleTimeout
	}
	if opts.ConnectTimeout > 0 {
		cfg.ConnConfig.ConnectTimeout = opts.ConnectTimeout
	}

	dbpool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	return dbpool, nil
}

type PostgresStore struct {
	dbpool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{dbpool: pool}
}

func (s *PostgresStore) Dialect() Dialect {
	return DialectPostgres
}

func (s *PostgresStore) InsertBatch(ctx context.Context, table string, columns []string, rows [][]any) error {
	query, err := BuildInsertStatement(DialectPostgres, table, columns, len(rows))
	if err != nil {
		return err
	}

	args := make([]any, 0, len(columns)*len(rows))
	for _, row := range rows {
		args = append(args, row...)
	}

	tx, err := s.dbpool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		if rx := tx.Rollback(ctx); rx != nil {
			log.Printf("Error rolling back transaction: %v", rx)
		}
		return fmt.Errorf("error inserting %d rows into %s: %w", len(rows), table, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}

	return nil
}

func (s *PostgresStore) Exec(ctx context.Context, query string) error {
	if _, err := s.dbpool.Exec(ctx, query); err != nil {
		return fmt.Errorf("error executing statement: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	var one int
	if err := s.dbpool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("health check query failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.dbpool.Close()
}

// Open connects the store selected by driver: "postgres" (the default) or
// "sqlite", where dsn is the database file.
func Open(ctx context.Context, driver, dsn string, opts PoolOptions) (Store, error) {
	switch Dialect(driver) {
	case DialectSQLite:
		return OpenSQLite(ctx, dsn)
	case DialectPostgres, "":
		pool, err := ConnectDB(ctx, dsn, opts)
		if err != nil {
			return nil, err
		}
		return NewPostgresStore(pool), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}
