package store

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/b1naryth1ef/tessera/coord"
	"github.com/df-mc/goleveldb/leveldb"
	"github.com/df-mc/goleveldb/leveldb/util"
)

// LedgerEntry is one region of a full render and whether it finished.
type LedgerEntry struct {
	Region coord.Region
	Done   bool
}

// Ledger is the ordered region -> done record of a full render. It is the only source of truth for
// resuming one: entries keep the order they were scheduled in and every change is written through.
type Ledger struct {
	mu      sync.Mutex
	db      *leveldb.DB
	entries []LedgerEntry
	index   map[coord.Region]int
	done    int
}

func ledgerKey(seq int) []byte {
	key := make([]byte, len(ledgerPrefix)+8)
	copy(key, ledgerPrefix)
	binary.BigEndian.PutUint64(key[len(ledgerPrefix):], uint64(seq))
	return key
}

func ledgerValue(e LedgerEntry) []byte {
	value := make([]byte, 9)
	putInt32(value[0:], e.Region.X)
	putInt32(value[4:], e.Region.Z)
	if e.Done {
		value[8] = 1
	}
	return value
}

func (l *Ledger) load() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	iter := l.db.NewIterator(util.BytesPrefix(ledgerPrefix), nil)
	defer iter.Release()
	for iter.Next() {
		value := iter.Value()
		if len(value) != 9 {
			return fmt.Errorf("corrupt ledger entry %x", iter.Key())
		}
		e := LedgerEntry{
			Region: coord.Region{X: getInt32(value[0:]), Z: getInt32(value[4:])},
			Done:   value[8] == 1,
		}
		l.index[e.Region] = len(l.entries)
		l.entries = append(l.entries, e)
		if e.Done {
			l.done++
		}
	}
	return iter.Error()
}

// Reset replaces the ledger with regions, all pending, in the given order. The write is synced
// before Reset returns.
func (l *Ledger) Reset(regions []coord.Region) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	batch := new(leveldb.Batch)
	if err := deletePrefix(l.db, batch, ledgerPrefix); err != nil {
		return err
	}

	entries := make([]LedgerEntry, 0, len(regions))
	index := make(map[coord.Region]int, len(regions))
	for _, r := range regions {
		if _, ok := index[r]; ok {
			continue
		}
		e := LedgerEntry{Region: r}
		index[r] = len(entries)
		batch.Put(ledgerKey(len(entries)), ledgerValue(e))
		entries = append(entries, e)
	}

	if err := l.db.Write(batch, syncWrite); err != nil {
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	l.entries = entries
	l.index = index
	l.done = 0
	return nil
}

// MarkDone flags a region as finished. Regions not in the ledger are ignored.
func (l *Ledger) MarkDone(r coord.Region) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	seq, ok := l.index[r]
	if !ok || l.entries[seq].Done {
		return nil
	}
	e := LedgerEntry{Region: r, Done: true}
	if err := l.db.Put(ledgerKey(seq), ledgerValue(e), nil); err != nil {
		return fmt.Errorf("failed to mark region %s done: %w", r, err)
	}
	l.entries[seq] = e
	l.done++
	return nil
}

// Clear drops every entry.
func (l *Ledger) Clear() error {
	return l.Reset(nil)
}

// Pending returns the regions not yet done, in ledger order.
func (l *Ledger) Pending() []coord.Region {
	l.mu.Lock()
	defer l.mu.Unlock()
	var result []coord.Region
	for _, e := range l.entries {
		if !e.Done {
			result = append(result, e.Region)
		}
	}
	return result
}

func (l *Ledger) Entries() []LedgerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]LedgerEntry(nil), l.entries...)
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Ledger) Done() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}

// Unfinished reports whether a full render was interrupted.
func (l *Ledger) Unfinished() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries) > 0 && l.done < len(l.entries)
}
