package auctions

import (
	"context"
	"sync"
)

// keyedLocker hands out one lock per auction id. The map mutex only guards
// bookkeeping and is never held while a caller waits or does I/O, so
// different ids never block each other.
type keyedLocker struct {
	mu    sync.Mutex
	locks map[string]*idLock
}

type idLock struct {
	sem  chan struct{}
	refs int
}

func newKeyedLocker() *keyedLocker {
	return &keyedLocker{locks: make(map[string]*idLock)}
}

// Lock blocks until the lock for id is held or ctx is done.
// The returned func releases the lock and must be called exactly once.
func (l *keyedLocker) Lock(ctx context.Context, id string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	lock, ok := l.locks[id]
	if !ok {
		lock = &idLock{sem: make(chan struct{}, 1)}
		l.locks[id] = lock
	}
	lock.refs++
	l.mu.Unlock()

	select {
	case lock.sem <- struct{}{}:
		return func() {
			<-lock.sem
			l.release(id, lock)
		}, nil
	case <-ctx.Done():
		l.release(id, lock)
		return nil, ctx.Err()
	}
}

func (l *keyedLocker) release(id string, lock *idLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, id)
	}
}

// size is the number of ids with holders or waiters
func (l *keyedLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
