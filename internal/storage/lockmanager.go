package storage

import (
	"sync"

	"github.com/google/uuid"
)

// LockMode distinguishes shared from exclusive grants.
type LockMode int

const (
	// SharedLock permits concurrent readers.
	SharedLock LockMode = iota
	// ExclusiveLock permits a single owner.
	ExclusiveLock
)

// Resource names one lockable unit: either the table-wide index resource or
// a (primary key, physical column) pair.
type Resource struct {
	Index  bool
	Key    int64
	Column int
}

// IndexResource returns the table-wide resource guarding index maintenance.
func IndexResource() Resource {
	return Resource{Index: true}
}

// RowResource returns the resource for one column of the record keyed by the
// given primary key.
func RowResource(key int64, column int) Resource {
	return Resource{Key: key, Column: column}
}

// lockKey is the granted-lock identity: mode plus resource.
type lockKey struct {
	mode LockMode
	res  Resource
}

// LockManager hands out shared and exclusive locks on resources without
// blocking: a refused request returns false and the caller decides whether
// to abort and retry. An S lock held only by the requester upgrades in place
// to X; any other shared holder blocks the upgrade, which closes the
// lost-update window a looser membership check would leave open.
type LockManager struct {
	mu     sync.Mutex
	xLocks map[Resource]uuid.UUID
	sLocks map[Resource]map[uuid.UUID]struct{}
	// held is the reverse map for O(1) release-all at commit or abort.
	held map[uuid.UUID]map[lockKey]struct{}
}

// NewLockManager creates an empty lock manager.
func NewLockManager() *LockManager {
	return &LockManager{
		xLocks: make(map[Resource]uuid.UUID),
		sLocks: make(map[Resource]map[uuid.UUID]struct{}),
		held:   make(map[uuid.UUID]map[lockKey]struct{}),
	}
}

// Request asks for a lock on behalf of owner. It returns true when granted
// (idempotently for re-requests) and false when the lock cannot be granted
// right now.
func (lm *LockManager) Request(mode LockMode, res Resource, owner uuid.UUID) bool {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if holder, ok := lm.xLocks[res]; ok {
		// An exclusive holder subsumes both modes for itself and refuses
		// everyone else.
		return holder == owner
	}

	if mode == ExclusiveLock {
		if holders := lm.sLocks[res]; len(holders) > 0 {
			if _, self := holders[owner]; !self || len(holders) != 1 {
				return false
			}
			// Upgrade: drop the shared grant, take the exclusive one.
			delete(lm.sLocks, res)
			delete(lm.held[owner], lockKey{mode: SharedLock, res: res})
		}
		lm.xLocks[res] = owner
		lm.remember(owner, lockKey{mode: ExclusiveLock, res: res})
		return true
	}

	if lm.sLocks[res] == nil {
		lm.sLocks[res] = make(map[uuid.UUID]struct{})
	}
	lm.sLocks[res][owner] = struct{}{}
	lm.remember(owner, lockKey{mode: SharedLock, res: res})
	return true
}

// Release drops exactly one grant. It is safe against missing state and
// reports whether anything was released.
func (lm *LockManager) Release(mode LockMode, res Resource, owner uuid.UUID) bool {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.releaseLocked(mode, res, owner)
}

// ReleaseAll drops every grant the owner holds.
func (lm *LockManager) ReleaseAll(owner uuid.UUID) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	for key := range lm.held[owner] {
		lm.releaseLocked(key.mode, key.res, owner)
	}
	delete(lm.held, owner)
}

func (lm *LockManager) releaseLocked(mode LockMode, res Resource, owner uuid.UUID) bool {
	released := false
	switch mode {
	case ExclusiveLock:
		if holder, ok := lm.xLocks[res]; ok && holder == owner {
			delete(lm.xLocks, res)
			released = true
		}
	case SharedLock:
		if holders, ok := lm.sLocks[res]; ok {
			if _, self := holders[owner]; self {
				delete(holders, owner)
				if len(holders) == 0 {
					delete(lm.sLocks, res)
				}
				released = true
			}
		}
	}
	if released {
		if keys, ok := lm.held[owner]; ok {
			delete(keys, lockKey{mode: mode, res: res})
			if len(keys) == 0 {
				delete(lm.held, owner)
			}
		}
	}
	return released
}

func (lm *LockManager) remember(owner uuid.UUID, key lockKey) {
	if lm.held[owner] == nil {
		lm.held[owner] = make(map[lockKey]struct{})
	}
	lm.held[owner][key] = struct{}{}
}
