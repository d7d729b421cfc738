// Package postgres registers the pgx-backed PostgreSQL driver.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/portal/internal/shared/infrastructure/database"
)

func init() {
	database.RegisterDriver(database.DriverPostgres, NewConnection)
}

// errNoLastInsertID is returned by Result.LastInsertId; use RETURNING.
var errNoLastInsertID = errors.New("postgres: LastInsertId is not supported, use RETURNING")

// pgxQuerier is the statement surface shared by *pgxpool.Pool and pgx.Tx.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// executor adapts a pgxQuerier to database.Executor.
type executor struct {
	q pgxQuerier
}

func (e executor) Exec(ctx context.Context, query string, args ...any) (database.Result, error) {
	tag, err := e.q.Exec(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return result(tag), nil
}

func (e executor) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	return e.q.QueryRow(ctx, query, args...)
}

func (e executor) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	r, err := e.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows{r}, nil
}

// Connection is a pgx pool.
type Connection struct {
	executor
	pool *pgxpool.Pool
}

// NewConnection parses cfg.URL, opens a pool and pings it.
func NewConnection(ctx context.Context, cfg database.Config) (database.Connection, error) {
	if cfg.URL == "" {
		return nil, errors.New("postgres: DATABASE_URL is required")
	}
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return NewConnectionFromPool(pool), nil
}

// NewConnectionFromPool wraps an open pool.
func NewConnectionFromPool(pool *pgxpool.Pool) *Connection {
	return &Connection{executor: executor{q: pool}, pool: pool}
}

// Pool exposes the pgx pool.
func (c *Connection) Pool() *pgxpool.Pool { return c.pool }

func (c *Connection) Driver() database.Driver { return database.DriverPostgres }

func (c *Connection) Ping(ctx context.Context) error { return c.pool.Ping(ctx) }

func (c *Connection) Close() error {
	c.pool.Close()
	return nil
}

func (c *Connection) BeginTx(ctx context.Context) (database.Transaction, error) {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &transaction{executor: executor{q: tx}, tx: tx}, nil
}

type transaction struct {
	executor
	tx pgx.Tx
}

func (t *transaction) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *transaction) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

type result pgconn.CommandTag

func (r result) RowsAffected() (int64, error) { return pgconn.CommandTag(r).RowsAffected(), nil }
func (r result) LastInsertId() (int64, error) { return 0, errNoLastInsertID }

type rows struct {
	pgx.Rows
}

// Close satisfies database.Rows; pgx reports close errors through Err.
func (r rows) Close() error {
	r.Rows.Close()
	return nil
}
