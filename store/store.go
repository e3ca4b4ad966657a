// Package store persists the render checkpoints of a world: the full-render ledger, the dirty
// chunk set, and the time of the last change scan. Everything lives in one leveldb database per
// world under simple prefixed keys.
package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/b1naryth1ef/tessera/coord"
	"github.com/df-mc/goleveldb/leveldb"
	"github.com/df-mc/goleveldb/leveldb/opt"
	"github.com/df-mc/goleveldb/leveldb/storage"
	"github.com/df-mc/goleveldb/leveldb/util"
)

var (
	ledgerPrefix = []byte("ledger/")
	dirtyPrefix  = []byte("dirty/")
	lastCheckKey = []byte("meta/lastcheck")

	syncWrite = &opt.WriteOptions{Sync: true}
)

type Checkpoints struct {
	db *leveldb.DB

	Ledger *Ledger
	Dirty  *DirtySet
}

// Open opens (or creates) the checkpoint database at path.
func Open(path string) (*Checkpoints, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoints %s: %w", path, err)
	}
	return newCheckpoints(db)
}

// OpenMemory opens a checkpoint database that is never written to disk.
func OpenMemory() (*Checkpoints, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return newCheckpoints(db)
}

func newCheckpoints(db *leveldb.DB) (*Checkpoints, error) {
	c := &Checkpoints{
		db:     db,
		Ledger: &Ledger{db: db, index: make(map[coord.Region]int)},
		Dirty:  &DirtySet{db: db},
	}
	if err := c.Ledger.load(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	if err := c.Dirty.load(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load dirty chunks: %w", err)
	}
	return c, nil
}

// LastCheck returns when changed chunks were last collected, or the zero time.
func (c *Checkpoints) LastCheck() (time.Time, error) {
	data, err := c.db.Get(lastCheckKey, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	if len(data) != 8 {
		return time.Time{}, fmt.Errorf("corrupt last check value")
	}
	return time.Unix(0, int64(binary.BigEndian.Uint64(data))), nil
}

func (c *Checkpoints) SetLastCheck(t time.Time) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(t.UnixNano()))
	return c.db.Put(lastCheckKey, buf[:], nil)
}

// Flush rewrites the dirty set. The ledger is written through on every change.
func (c *Checkpoints) Flush() error {
	return c.Dirty.Flush()
}

func (c *Checkpoints) Close() error {
	flushErr := c.Flush()
	closeErr := c.db.Close()
	return errors.Join(flushErr, closeErr)
}

func deletePrefix(db *leveldb.DB, batch *leveldb.Batch, prefix []byte) error {
	iter := db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	for iter.Next() {
		batch.Delete(append([]byte(nil), iter.Key()...))
	}
	return iter.Error()
}

func putInt32(buf []byte, v int) {
	binary.BigEndian.PutUint32(buf, uint32(int32(v)))
}

func getInt32(buf []byte) int {
	return int(int32(binary.BigEndian.Uint32(buf)))
}
