package structures

import "sync"

// Latch is a non-blocking shared/exclusive latch. Unlike sync.RWMutex the
// request methods never block; they report whether the grant succeeded so the
// caller can decide to retry, back off, or fail.
type Latch struct {
	mu        sync.Mutex
	shared    int
	exclusive bool
}

// RequestExclusive tries to take the latch exclusively. It fails if any
// holder (shared or exclusive) exists.
func (l *Latch) RequestExclusive() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.exclusive || l.shared > 0 {
		return false
	}
	l.exclusive = true
	return true
}

// RequestShared tries to take the latch in shared mode. It fails only if an
// exclusive holder exists.
func (l *Latch) RequestShared() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.exclusive {
		return false
	}
	l.shared++
	return true
}

// Release drops one grant. Releasing a latch that is not held is a caller
// bug and panics.
func (l *Latch) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch {
	case l.exclusive:
		l.exclusive = false
	case l.shared > 0:
		l.shared--
	default:
		panic("structures: Latch.Release called without an active grant")
	}
}
