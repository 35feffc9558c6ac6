package syncer

import (
	"sync"
)

// lockTable enforces at most one in-flight sync per (villa, platform) pair.
// A second trigger while one is running fails fast with ErrAlreadySyncing
// rather than queueing, so two runs can never race on the same external
// booking refs.
type lockTable struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newLockTable() *lockTable {
	return &lockTable{held: make(map[string]struct{})}
}

func lockKey(villaID, platform string) string {
	return villaID + "/" + platform
}

// tryAcquire returns false if the key is already held.
func (t *lockTable) tryAcquire(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, taken := t.held[key]; taken {
		return false
	}
	t.held[key] = struct{}{}
	return true
}

// release frees the key. Safe to call for a key that is not held.
func (t *lockTable) release(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.held, key)
}
