package shared

import "sync"

// KeyMutex serialises work per logical key. Movements against the same
// stock key must not interleave their read-modify-write sequence; movements
// against different keys proceed in parallel.
type KeyMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewKeyMutex constructs a KeyMutex.
func NewKeyMutex() *KeyMutex {
	return &KeyMutex{locks: make(map[string]*keyLock)}
}

// Lock acquires the mutex for key, blocking until it is available.
func (m *KeyMutex) Lock(key string) {
	m.mu.Lock()
	lock, ok := m.locks[key]
	if !ok {
		lock = &keyLock{}
		m.locks[key] = lock
	}
	lock.refs++
	m.mu.Unlock()

	lock.mu.Lock()
}

// Unlock releases the mutex for key. The per-key entry is dropped once the
// last waiter is gone so the map does not grow with the key space.
func (m *KeyMutex) Unlock(key string) {
	m.mu.Lock()
	lock, ok := m.locks[key]
	if ok {
		lock.refs--
		if lock.refs == 0 {
			delete(m.locks, key)
		}
	}
	m.mu.Unlock()

	if ok {
		lock.mu.Unlock()
	}
}
