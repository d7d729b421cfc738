package database

import (
	"context"
	"database/sql"
)

// SQLConnection adapts a database/sql pool to Connection. It backs the SQLite
// driver and lets the PostgreSQL repositories run on sqlmock in tests.
type SQLConnection struct {
	sqlExecutor
	db     *sql.DB
	driver Driver
}

// NewSQLConnection wraps db, reporting the given dialect.
func NewSQLConnection(db *sql.DB, driver Driver) *SQLConnection {
	return &SQLConnection{sqlExecutor: sqlExecutor{q: db}, db: db, driver: driver}
}

// DB returns the wrapped pool.
func (c *SQLConnection) DB() *sql.DB { return c.db }

func (c *SQLConnection) Driver() Driver { return c.driver }

func (c *SQLConnection) Close() error { return c.db.Close() }

func (c *SQLConnection) Ping(ctx context.Context) error { return c.db.PingContext(ctx) }

func (c *SQLConnection) BeginTx(ctx context.Context) (Transaction, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqlTx{sqlExecutor: sqlExecutor{q: tx}, tx: tx}, nil
}

type sqlTx struct {
	sqlExecutor
	tx *sql.Tx
}

func (t *sqlTx) Commit(context.Context) error   { return t.tx.Commit() }
func (t *sqlTx) Rollback(context.Context) error { return t.tx.Rollback() }

// sqlQueryer is the part of *sql.DB and *sql.Tx the executor needs.
type sqlQueryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// sqlExecutor returns database/sql values directly: sql.Result and *sql.Rows
// already satisfy Result and Rows.
type sqlExecutor struct {
	q sqlQueryer
}

func (e sqlExecutor) Exec(ctx context.Context, query string, args ...any) (Result, error) {
	return e.q.ExecContext(ctx, query, args...)
}

func (e sqlExecutor) QueryRow(ctx context.Context, query string, args ...any) Row {
	return e.q.QueryRowContext(ctx, query, args...)
}

func (e sqlExecutor) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := e.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
