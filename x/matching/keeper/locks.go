package keeper

import "sync"

const (
	lockKindRequest byte = iota + 1
	lockKindResource
)

type lockKey struct {
	kind byte
	id   uint64
}

// lockTable hands out one mutex per record. Entries are never removed, so a
// mutex obtained for a record stays the only one for it.
type lockTable struct {
	mu    sync.Mutex
	locks map[lockKey]*sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[lockKey]*sync.Mutex)}
}

func (t *lockTable) get(kind byte, id uint64) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := lockKey{kind: kind, id: id}
	m, ok := t.locks[key]
	if !ok {
		m = &sync.Mutex{}
		t.locks[key] = m
	}
	return m
}

// lockRequest locks a request record and returns its unlock func.
func (k *Keeper) lockRequest(requestID uint64) func() {
	m := k.locks.get(lockKindRequest, requestID)
	m.Lock()
	return m.Unlock
}

// lockResource locks a resource record and returns its unlock func.
// Callers holding a request lock must take it first.
func (k *Keeper) lockResource(resourceID uint64) func() {
	m := k.locks.get(lockKindResource, resourceID)
	m.Lock()
	return m.Unlock
}
