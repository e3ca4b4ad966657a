package store

import (
	"fmt"
	"sync"

	"github.com/b1naryth1ef/tessera/coord"
	"github.com/df-mc/goleveldb/leveldb"
	"github.com/df-mc/goleveldb/leveldb/util"
)

// DirtySet is the queue of changed chunks waiting for a background render. It lives in memory and
// is written out by Flush.
type DirtySet struct {
	mu     sync.Mutex
	db     *leveldb.DB
	chunks map[coord.Chunk]struct{}
}

func dirtyKey(c coord.Chunk) []byte {
	key := make([]byte, len(dirtyPrefix)+8)
	copy(key, dirtyPrefix)
	putInt32(key[len(dirtyPrefix):], c.X)
	putInt32(key[len(dirtyPrefix)+4:], c.Z)
	return key
}

func (d *DirtySet) load() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.chunks = make(map[coord.Chunk]struct{})
	iter := d.db.NewIterator(util.BytesPrefix(dirtyPrefix), nil)
	defer iter.Release()
	for iter.Next() {
		key := iter.Key()
		if len(key) != len(dirtyPrefix)+8 {
			return fmt.Errorf("corrupt dirty chunk key %x", key)
		}
		raw := key[len(dirtyPrefix):]
		d.chunks[coord.Chunk{X: getInt32(raw[0:]), Z: getInt32(raw[4:])}] = struct{}{}
	}
	return iter.Error()
}

func (d *DirtySet) Add(chunks ...coord.Chunk) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range chunks {
		d.chunks[c] = struct{}{}
	}
}

// Pop removes and returns up to max chunks in no particular order.
func (d *DirtySet) Pop(max int) []coord.Chunk {
	d.mu.Lock()
	defer d.mu.Unlock()

	result := make([]coord.Chunk, 0, min(max, len(d.chunks)))
	for c := range d.chunks {
		if len(result) >= max {
			break
		}
		result = append(result, c)
		delete(d.chunks, c)
	}
	return result
}

func (d *DirtySet) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.chunks)
}

// Flush replaces the persisted set with the in-memory one.
func (d *DirtySet) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	batch := new(leveldb.Batch)
	if err := deletePrefix(d.db, batch, dirtyPrefix); err != nil {
		return err
	}
	for c := range d.chunks {
		batch.Put(dirtyKey(c), nil)
	}
	if err := d.db.Write(batch, syncWrite); err != nil {
		return fmt.Errorf("failed to write dirty chunks: %w", err)
	}
	return nil
}
