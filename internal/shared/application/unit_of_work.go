// Package application holds the use-case plumbing shared by bounded
// contexts: transactions, locking and event metadata.
package application

import "context"

// UnitOfWork scopes a transaction to the context returned by Begin.
// Repositories find the transaction in that context.
type UnitOfWork interface {
	Begin(ctx context.Context) (context.Context, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// WithUnitOfWork runs fn in a unit of work; see InUnitOfWork.
func WithUnitOfWork(ctx context.Context, uow UnitOfWork, fn func(ctx context.Context) error) error {
	_, err := InUnitOfWork(ctx, uow, func(txCtx context.Context) (struct{}, error) {
		return struct{}{}, fn(txCtx)
	})
	return err
}

// InUnitOfWork runs fn in a unit of work and returns its result once
// committed. An error or panic from fn rolls back; the rollback error is
// dropped so fn's error reaches the caller. A failed Commit is not followed
// by Rollback.
func InUnitOfWork[T any](ctx context.Context, uow UnitOfWork, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	txCtx, err := uow.Begin(ctx)
	if err != nil {
		return zero, err
	}

	settled := false
	defer func() {
		if !settled {
			_ = uow.Rollback(txCtx)
		}
	}()

	result, err := fn(txCtx)
	if err != nil {
		return zero, err
	}
	settled = true
	if err := uow.Commit(txCtx); err != nil {
		return zero, err
	}
	return result, nil
}
