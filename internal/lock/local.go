// Package lock provides named mutual exclusion, in-process or across instances.
package lock

import (
	"context"
	"fmt"
	"sync"

	"stockledger/internal/domain"
	"stockledger/internal/port"
)

// Local is an in-process keyed mutex.
type Local struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewLocal creates an in-process Locker.
func NewLocal() *Local {
	return &Local{slots: make(map[string]chan struct{})}
}

var _ port.Locker = (*Local)(nil)

// Acquire blocks until key is free or ctx is done.
func (l *Local) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[key] = slot
	}
	l.mu.Unlock()

	select {
	case slot <- struct{}{}:
	default:
		select {
		case slot <- struct{}{}:
		case <-ctx.Done():
			return nil, fmt.Errorf("lock %q: %w: %v", key, domain.ErrLockNotObtained, ctx.Err())
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-slot })
	}, nil
}
