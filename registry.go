package tessera

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"

	"github.com/b1naryth1ef/tessera/tile"
)

// IndexRegistry hands out stable palette indices for block and biome names. Indices are only
// ever appended, and the table is stored as a gzip'd JSON array so the viewer can decode tiles.
type IndexRegistry struct {
	path string
	log  logrus.FieldLogger

	// saveMu orders snapshots and writes so an older table never replaces a newer one.
	saveMu sync.Mutex

	mu      sync.Mutex
	names   []string
	indices map[string]uint16
	dirty   bool
	warned  bool
}

// NewIndexRegistry loads the table at path, if there is one.
func NewIndexRegistry(path string, log logrus.FieldLogger) (*IndexRegistry, error) {
	r := &IndexRegistry{
		path:    path,
		log:     log,
		indices: make(map[string]uint16),
	}
	if path == "" {
		return r, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return r, nil
	} else if err != nil {
		return nil, err
	}

	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress palette %s: %w", path, err)
	}
	defer zr.Close()

	var names []string
	if err := json.NewDecoder(zr).Decode(&names); err != nil {
		return nil, fmt.Errorf("failed to decode palette %s: %w", path, err)
	}
	for _, name := range names {
		r.add(name)
	}
	return r, nil
}

func (r *IndexRegistry) add(name string) uint16 {
	idx := len(r.names)
	r.names = append(r.names, name)
	r.indices[name] = uint16(idx)
	return uint16(idx)
}

// IndexOf returns the index of name, assigning the next one on first use. Indices beyond what a
// packed word holds wrap.
func (r *IndexRegistry) IndexOf(name string) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.indices[name]
	if !ok {
		idx = r.add(name)
		r.dirty = true
	}
	if int(idx) > tile.MaxPaletteIndex {
		if !r.warned {
			r.warned = true
			r.log.WithField("palette", r.path).Warnf("palette exceeds %d entries, indices will wrap", tile.MaxPaletteIndex+1)
		}
		return idx & tile.MaxPaletteIndex
	}
	return idx
}

// Names returns the table in index order.
func (r *IndexRegistry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

// Save writes the table when it grew since the last save.
func (r *IndexRegistry) Save() error {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	r.mu.Lock()
	if !r.dirty || r.path == "" {
		r.mu.Unlock()
		return nil
	}
	names := append([]string(nil), r.names...)
	r.dirty = false
	r.mu.Unlock()

	raw, err := json.Marshal(names)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	if err := tile.WriteAtomic(r.path, buf.Bytes()); err != nil {
		r.mu.Lock()
		r.dirty = true
		r.mu.Unlock()
		return fmt.Errorf("failed to write palette %s: %w", r.path, err)
	}
	return nil
}
