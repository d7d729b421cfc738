package database

import "context"

// Row is satisfied by pgx.Row and *sql.Row.
type Row interface {
	Scan(dest ...any) error
}

// Rows is satisfied by *sql.Rows and by the pgx adapter.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
	Err() error
}

// Result is satisfied by sql.Result and by the pgx adapter.
type Result interface {
	RowsAffected() (int64, error)
	LastInsertId() (int64, error)
}

// Executor runs statements. Repositories obtain one with ExecutorFromContext
// so the same code runs inside or outside a unit of work.
type Executor interface {
	Exec(ctx context.Context, query string, args ...any) (Result, error)
	QueryRow(ctx context.Context, query string, args ...any) Row
	Query(ctx context.Context, query string, args ...any) (Rows, error)
}

// Transaction is an Executor that can be finished.
type Transaction interface {
	Executor
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Connection is a pool that can begin transactions.
type Connection interface {
	Executor
	BeginTx(ctx context.Context) (Transaction, error)
	Ping(ctx context.Context) error
	Close() error
	Driver() Driver
}
