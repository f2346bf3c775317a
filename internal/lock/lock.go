// Package lock serializes matching runs per share.
package lock

import (
	"context"
	"sync"
)

// Locker grants exclusive access to a key. The returned unlock function
// releases it and is safe to call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string) (unlock func(), err error)
}

// Local is an in-process keyed mutex. Acquire blocks until the key is free
// or ctx is done.
type Local struct {
	mu    sync.RWMutex
	slots map[string]chan struct{}
}

// NewLocal creates an empty Local locker.
func NewLocal() *Local {
	return &Local{slots: make(map[string]chan struct{})}
}

func (l *Local) slot(key string) chan struct{} {
	l.mu.RLock()
	ch, ok := l.slots[key]
	l.mu.RUnlock()
	if ok {
		return ch
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	// Double-check after acquiring write lock.
	if ch, ok = l.slots[key]; ok {
		return ch
	}
	ch = make(chan struct{}, 1)
	l.slots[key] = ch
	return ch
}

// Acquire implements Locker.
func (l *Local) Acquire(ctx context.Context, key string) (func(), error) {
	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-ch })
	}, nil
}

var _ Locker = (*Local)(nil)
