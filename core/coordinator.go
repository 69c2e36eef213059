package core

import (
	"sync"
	"sync/atomic"
)

// StateCoordinator serializes access to the trie state. A caller acquires a
// StateLock, passes it to every engine operation touching state, and
// releases it when done. Operations given any other token fail with
// ErrStateLockNotHeld.
type StateCoordinator struct {
	mu   sync.Mutex
	live atomic.Pointer[StateLock]
}

// StateLock is the token handed out by a StateCoordinator.
type StateLock struct {
	c *StateCoordinator
}

// NewStateCoordinator creates an unlocked coordinator.
func NewStateCoordinator() *StateCoordinator {
	return new(StateCoordinator)
}

// Acquire blocks until the state is free and returns the live token.
func (c *StateCoordinator) Acquire() *StateLock {
	c.mu.Lock()
	l := &StateLock{c: c}
	c.live.Store(l)
	return l
}

// TryAcquire returns the live token if the state is free, nil otherwise.
func (c *StateCoordinator) TryAcquire() *StateLock {
	if !c.mu.TryLock() {
		return nil
	}
	l := &StateLock{c: c}
	c.live.Store(l)
	return l
}

// Release gives the state back. Releasing a stale token is a no-op.
func (l *StateLock) Release() {
	if l == nil {
		return
	}
	if l.c.live.CompareAndSwap(l, nil) {
		l.c.mu.Unlock()
	}
}

// Holds reports whether l is the coordinator's live token.
func (c *StateCoordinator) Holds(l *StateLock) bool {
	return l != nil && l.c == c && c.live.Load() == l
}

// WithLock runs fn under a freshly acquired token.
func (c *StateCoordinator) WithLock(fn func(*StateLock) error) error {
	l := c.Acquire()
	defer l.Release()
	return fn(l)
}
