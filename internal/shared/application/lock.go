package application

import (
	"context"
	"errors"
)

// ErrLockTimeout is returned when a lock could not be obtained before the
// locker's wait budget or the context ran out.
var ErrLockTimeout = errors.New("timed out waiting for lock")

// Locker serializes work on a key across concurrent callers.
type Locker interface {
	// Acquire blocks until the key is held or the wait budget is exhausted.
	// The returned release func is safe to call more than once.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// WithLock runs fn while holding key.
func WithLock(ctx context.Context, locker Locker, key string, fn func(ctx context.Context) error) error {
	release, err := locker.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}
