package database

import (
	"context"
	"errors"
)

// ErrNoTransaction is returned by Commit and Rollback on a context that did
// not come from Begin.
var ErrNoTransaction = errors.New("no transaction in context")

type txKey struct{}

// txScope is what Begin stores in the context. A nested Begin joins the
// outer transaction with owner unset, so only the outermost scope finishes
// it.
type txScope struct {
	tx    Transaction
	owner bool
}

func scopeFrom(ctx context.Context) (txScope, bool) {
	scope, ok := ctx.Value(txKey{}).(txScope)
	return scope, ok && scope.tx != nil
}

// TxFromContext returns the transaction opened by Begin, or nil.
func TxFromContext(ctx context.Context) Transaction {
	scope, _ := scopeFrom(ctx)
	return scope.tx
}

// ExecutorFromContext returns the open transaction, falling back to conn.
func ExecutorFromContext(ctx context.Context, conn Connection) Executor {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return conn
}

// UnitOfWork implements the application unit of work on a Connection.
type UnitOfWork struct {
	conn Connection
}

// NewUnitOfWork creates a unit of work over conn.
func NewUnitOfWork(conn Connection) *UnitOfWork {
	return &UnitOfWork{conn: conn}
}

// Begin opens a transaction, or joins the one already in ctx.
func (u *UnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	if outer, ok := scopeFrom(ctx); ok {
		return context.WithValue(ctx, txKey{}, txScope{tx: outer.tx}), nil
	}
	tx, err := u.conn.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return context.WithValue(ctx, txKey{}, txScope{tx: tx, owner: true}), nil
}

// Commit commits when ctx owns the transaction and is a no-op for a joined
// scope.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	return finish(ctx, Transaction.Commit)
}

// Rollback rolls back when ctx owns the transaction and is a no-op for a
// joined scope.
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	return finish(ctx, Transaction.Rollback)
}

func finish(ctx context.Context, end func(Transaction, context.Context) error) error {
	scope, ok := scopeFrom(ctx)
	if !ok {
		return ErrNoTransaction
	}
	if !scope.owner {
		return nil
	}
	return end(scope.tx, ctx)
}
