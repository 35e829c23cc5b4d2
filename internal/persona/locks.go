package persona

import "sync"

// userLocks serializes writes to a single user's persona rows. Two
// concurrent sessions for the same user must not interleave their
// trait/mood commits, or one delta is silently lost. Locks are held
// only for the duration of a single read-modify-write, never across
// model or tool calls.
type userLocks struct {
	mu    sync.Mutex
	users map[string]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{users: make(map[string]*sync.Mutex)}
}

// acquire returns the mutex for a user, creating it on first use, and
// locks it. The caller must call the returned unlock function.
func (l *userLocks) acquire(userID string) func() {
	l.mu.Lock()
	m, ok := l.users[userID]
	if !ok {
		m = &sync.Mutex{}
		l.users[userID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
