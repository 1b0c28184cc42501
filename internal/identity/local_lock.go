package identity

import (
	"context"
	"sync"
)

// LocalLocker is an in-process Locker keyed by hash. Backends without a
// database-level lock (SQLite) use it; it only serializes workers that share
// the same process.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*hashLock
}

type hashLock struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*hashLock)}
}

// LockHash blocks until the hash is free or ctx is done.
func (l *LocalLocker) LockHash(ctx context.Context, hash string) (func(), error) {
	l.mu.Lock()
	hl := l.locks[hash]
	if hl == nil {
		hl = &hashLock{ch: make(chan struct{}, 1)}
		l.locks[hash] = hl
	}
	hl.refs++
	l.mu.Unlock()

	select {
	case hl.ch <- struct{}{}:
	case <-ctx.Done():
		l.drop(hash, hl)
		return nil, ctx.Err()
	}

	return func() {
		<-hl.ch
		l.drop(hash, hl)
	}, nil
}

func (l *LocalLocker) drop(hash string, hl *hashLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	hl.refs--
	if hl.refs == 0 {
		delete(l.locks, hash)
	}
}
