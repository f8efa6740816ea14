package scripting

import "sync"

// Lock serializes every entry into the interpreter. Callers take a Guard
// and release it with defer so the lock is freed on every exit path,
// including interpreter faults and panics.
type Lock struct {
	mu sync.Mutex
}

// Guard is a held Lock
type Guard struct {
	lock     *Lock
	released bool
}

// Acquire blocks until the lock is free and returns the held guard
func (l *Lock) Acquire() *Guard {
	l.mu.Lock()
	return &Guard{lock: l}
}

// Release frees the lock. Releasing twice is a no-op.
func (g *Guard) Release() {
	if g.released {
		return
	}
	g.released = true
	g.lock.mu.Unlock()
}

// Held reports whether some caller currently holds the lock
func (l *Lock) Held() bool {
	if l.mu.TryLock() {
		l.mu.Unlock()
		return false
	}
	return true
}
