// Package locking implements application.Locker for a single process and
// for a fleet sharing Redis.
package locking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/felixgeelhaar/portal/internal/shared/application"
)

// MemoryLocker serializes callers within one process.
type MemoryLocker struct {
	wait time.Duration

	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	sem  chan struct{}
	refs int
}

// NewMemoryLocker creates a locker whose callers give up after wait.
// A non-positive wait only bounds the attempt by the context.
func NewMemoryLocker(wait time.Duration) *MemoryLocker {
	return &MemoryLocker{wait: wait, slots: make(map[string]*slot)}
}

// Acquire implements application.Locker.
func (l *MemoryLocker) Acquire(ctx context.Context, key string) (func(), error) {
	s := l.ref(key)

	var timeout <-chan time.Time
	if l.wait > 0 {
		timer := time.NewTimer(l.wait)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case s.sem <- struct{}{}:
	case <-timeout:
		l.unref(key)
		return nil, fmt.Errorf("%w: %s", application.ErrLockTimeout, key)
	case <-ctx.Done():
		l.unref(key)
		return nil, fmt.Errorf("%w: %s: %w", application.ErrLockTimeout, key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.sem
			l.unref(key)
		})
	}, nil
}

// Held reports the number of keys with holders or waiters.
func (l *MemoryLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

func (l *MemoryLocker) ref(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{sem: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *MemoryLocker) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.slots[key]
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
