package tile

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

const lockShards = 64

// LockTable serialises access to tile files by path. Paths hash onto a fixed set of read-write
// locks, so unrelated paths may share one; callers must never hold two at once.
type LockTable struct {
	shards [lockShards]sync.RWMutex
}

func NewLockTable() *LockTable {
	return &LockTable{}
}

func (t *LockTable) shard(path string) *sync.RWMutex {
	return &t.shards[xxhash.Sum64String(path)%lockShards]
}

// Lock takes the write lock for path and returns its release func.
func (t *LockTable) Lock(path string) func() {
	mu := t.shard(path)
	mu.Lock()
	return mu.Unlock
}

func (t *LockTable) RLock(path string) func() {
	mu := t.shard(path)
	mu.RLock()
	return mu.RUnlock
}
