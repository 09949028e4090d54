// Package tablock serializes work per key inside one process.
//
// Each key owns a weighted semaphore of size one. Waiters give up after the
// configured bound and get ErrBusy, so a stuck holder never blocks callers
// forever. Entries are reference counted and dropped once nobody holds or
// waits for them.
package tablock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// ErrBusy is returned when the lock could not be acquired within the wait bound.
var ErrBusy = errors.New("resource busy, retry")

// DefaultWait bounds lock acquisition when no wait is configured.
const DefaultWait = 2 * time.Second

type entry struct {
	sem  *semaphore.Weighted
	refs int
}

// Locker hands out per-key critical sections.
type Locker struct {
	mu      sync.Mutex
	entries map[string]*entry
	wait    time.Duration
}

// New creates a Locker. A non-positive wait falls back to DefaultWait.
func New(wait time.Duration) *Locker {
	if wait <= 0 {
		wait = DefaultWait
	}
	return &Locker{entries: make(map[string]*entry), wait: wait}
}

// TabKey and TableKey build the keys used across the service.
func TabKey(id uuid.UUID) string { return "tab:" + id.String() }
func TableKey(id uuid.UUID) string { return "table:" + id.String() }

// Lock acquires key and returns the release func. Calling release more than
// once is a no-op.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	e := l.acquire(key)

	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	if err := e.sem.Acquire(waitCtx, 1); err != nil {
		l.release(key)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%s: %w", key, ErrBusy)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			l.release(key)
		})
	}, nil
}

func (l *Locker) acquire(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *Locker) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(l.entries, key)
	}
}

// Len reports how many keys are currently held or awaited.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
