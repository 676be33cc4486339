package mastery

import "sync"

type progressKey struct {
	userID int64
	wordID int64
}

// keyedMutex hands out one mutex per (user, word) and frees it when unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[progressKey]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key progressKey) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[progressKey]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
