package state

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
)

// Locker serializes turns per caller id. Idle entries are dropped so the map
// only holds callers with a turn in flight or waiting.
type Locker struct {
	entries *xsync.MapOf[string, *lockEntry]
}

type lockEntry struct {
	sem  chan struct{}
	refs int
}

func NewLocker() *Locker {
	return &Locker{entries: xsync.NewMapOf[string, *lockEntry]()}
}

// Lock blocks until the caller's lock is held or ctx is done.
// The returned func releases the lock and must be called exactly once.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	entry, _ := l.entries.Compute(key, func(old *lockEntry, loaded bool) (*lockEntry, bool) {
		if !loaded {
			old = &lockEntry{sem: make(chan struct{}, 1)}
		}
		old.refs++
		return old, false
	})

	select {
	case entry.sem <- struct{}{}:
		return func() {
			<-entry.sem
			l.release(key)
		}, nil
	case <-ctx.Done():
		l.release(key)
		return nil, ctx.Err()
	}
}

func (l *Locker) release(key string) {
	l.entries.Compute(key, func(old *lockEntry, loaded bool) (*lockEntry, bool) {
		if !loaded {
			return nil, true
		}
		old.refs--
		return old, old.refs <= 0
	})
}

// Active is the number of callers currently holding or waiting on a lock.
func (l *Locker) Active() int {
	return l.entries.Size()
}
