package ingest

import "sync"

// keyLock serializes work per string key. Reconcile holds the key for one
// (project, type, normalized title) so two goroutines in the same process
// cannot race the find-or-create window; the store's unique index covers
// writers in other processes.
type keyLock struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[string]*lockEntry)}
}

// lock acquires the lock for key and returns its release func. Entries are
// reference counted and removed when the last holder releases, so the table
// does not grow with the set of titles ever seen.
func (k *keyLock) lock(key string) func() {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &lockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
