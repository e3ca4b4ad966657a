// Package anvil reads Java edition worlds stored in the Anvil region format.
package anvil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Tnze/go-mc/save"
	"github.com/Tnze/go-mc/save/region"
	"github.com/sirupsen/logrus"

	"github.com/b1naryth1ef/tessera/area"
	"github.com/b1naryth1ef/tessera/coord"
	"github.com/b1naryth1ef/tessera/terrain"
)

const (
	defaultBorderSize = 60_000_000
	defaultMinY       = -64
	maxOpenRegions    = 256
)

type Options struct {
	// MinY is the lowest build height of the dimension, -64 when nil.
	MinY *int
	// RegionDir overrides <path>/region, for other dimensions.
	RegionDir string
	Log       logrus.FieldLogger
}

// World is a terrain.Source over a world directory holding level.dat and region files.
type World struct {
	name      string
	path      string
	regionDir string
	minY      int
	log       logrus.FieldLogger

	levelMu  sync.Mutex
	level    levelData
	levelMod time.Time

	mu    sync.Mutex
	files map[coord.Region]*regionFile
	order []coord.Region
}

type regionFile struct {
	sync.Mutex
	reg     *region.Region
	modTime time.Time
}

var _ terrain.Source = (*World)(nil)

func Open(name, path string, opts Options) (*World, error) {
	minY := defaultMinY
	if opts.MinY != nil {
		minY = *opts.MinY
	}
	if opts.RegionDir == "" {
		opts.RegionDir = filepath.Join(path, "region")
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}

	if _, err := os.Stat(opts.RegionDir); err != nil {
		return nil, fmt.Errorf("world %s has no region directory: %w", name, err)
	}

	w := &World{
		name:      name,
		path:      path,
		regionDir: opts.RegionDir,
		minY:      minY,
		log:       opts.Log.WithField("world", name),
		level:     levelData{BorderSize: defaultBorderSize},
		files:     make(map[coord.Region]*regionFile),
	}
	if err := w.reloadLevel(); err != nil {
		w.log.WithError(err).Warn("level.dat not readable, using default spawn and border")
	}
	return w, nil
}

func (w *World) Name() string {
	return w.name
}

func (w *World) MinBuildHeight() int {
	return w.minY
}

// reloadLevel rereads level.dat when it changed on disk.
func (w *World) reloadLevel() error {
	path := filepath.Join(w.path, "level.dat")
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	w.levelMu.Lock()
	defer w.levelMu.Unlock()
	if info.ModTime().Equal(w.levelMod) {
		return nil
	}
	level, err := readLevel(path)
	if err != nil {
		return err
	}
	w.level = level
	w.levelMod = info.ModTime()
	return nil
}

func (w *World) levelInfo() levelData {
	_ = w.reloadLevel()
	w.levelMu.Lock()
	defer w.levelMu.Unlock()
	return w.level
}

func (w *World) Spawn() coord.Block {
	level := w.levelInfo()
	return coord.Block{X: int(level.SpawnX), Z: int(level.SpawnZ)}
}

// Version is the game version that last saved the world, empty when level.dat is unreadable.
func (w *World) Version() string {
	return w.levelInfo().Version.Name
}

// Border follows the world border stored in level.dat.
func (w *World) Border() area.Area {
	return area.NewBorder(func() (float64, float64, float64) {
		level := w.levelInfo()
		return level.BorderCenterX, level.BorderCenterZ, level.BorderSize
	})
}

func regionFileName(r coord.Region) string {
	return fmt.Sprintf("r.%d.%d.mca", r.X, r.Z)
}

func parseRegionFileName(name string) (coord.Region, bool) {
	if !strings.HasPrefix(name, "r.") || !strings.HasSuffix(name, ".mca") {
		return coord.Region{}, false
	}
	var r coord.Region
	if _, err := fmt.Sscanf(name, "r.%d.%d.mca", &r.X, &r.Z); err != nil {
		return coord.Region{}, false
	}
	return r, regionFileName(r) == name
}

func (w *World) Regions() ([]coord.Region, error) {
	entries, err := os.ReadDir(w.regionDir)
	if err != nil {
		return nil, err
	}

	var regions []coord.Region
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		r, ok := parseRegionFileName(e.Name())
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil || info.Size() == 0 {
			continue
		}
		regions = append(regions, r)
	}
	return regions, nil
}

// regionFile returns an open handle for the region, reopening it when the file changed since it
// was opened. Missing region files yield nil.
func (w *World) regionFile(r coord.Region) (*regionFile, error) {
	path := filepath.Join(w.regionDir, regionFileName(r))
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if rf, ok := w.files[r]; ok {
		if rf.modTime.Equal(info.ModTime()) {
			return rf, nil
		}
		w.closeLocked(r)
	}

	reg, err := region.Open(path)
	if errors.Is(err, io.EOF) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to open region file %s: %w", path, err)
	}

	rf := &regionFile{reg: reg, modTime: info.ModTime()}
	w.files[r] = rf
	w.order = append(w.order, r)
	for len(w.order) > maxOpenRegions {
		w.closeLocked(w.order[0])
	}
	return rf, nil
}

func (w *World) closeLocked(r coord.Region) {
	rf, ok := w.files[r]
	if !ok {
		return
	}
	delete(w.files, r)
	for i, o := range w.order {
		if o == r {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	rf.Lock()
	defer rf.Unlock()
	reg := rf.reg
	rf.reg = nil
	if err := reg.Close(); err != nil {
		w.log.WithError(err).WithField("region", r.String()).Warn("failed to close region file")
	}
}

func (w *World) readSector(c coord.Chunk) ([]byte, error) {
	x, z := coord.FloorMod(c.X, coord.RegionChunks), coord.FloorMod(c.Z, coord.RegionChunks)

	// a handle can be evicted between lookup and read, in which case it is opened again
	for attempt := 0; attempt < 2; attempt++ {
		rf, err := w.regionFile(c.Region())
		if err != nil || rf == nil {
			return nil, err
		}

		rf.Lock()
		if rf.reg == nil {
			rf.Unlock()
			continue
		}
		sector, err := rf.reg.ReadSector(x, z)
		rf.Unlock()

		if errors.Is(err, region.ErrNoSector) {
			return nil, nil
		} else if err != nil {
			return nil, err
		}
		if len(sector) == 0 {
			return nil, fmt.Errorf("sector %s is out of bounds", c)
		}
		return sector, nil
	}
	return nil, fmt.Errorf("region file for %s closed while reading", c)
}

func (w *World) Chunk(c coord.Chunk) (terrain.Chunk, error) {
	sector, err := w.readSector(c)
	if err != nil || sector == nil {
		return nil, err
	}

	var raw save.Chunk
	if err := raw.Load(sector); err != nil {
		return nil, fmt.Errorf("failed to decode chunk %s: %w", c, err)
	}
	if !isFull(&raw) {
		return nil, nil
	}
	return newChunk(&raw, w.minY), nil
}

func (w *World) ChunkExists(c coord.Chunk) bool {
	rf, err := w.regionFile(c.Region())
	if err != nil || rf == nil {
		return false
	}
	x, z := coord.FloorMod(c.X, coord.RegionChunks), coord.FloorMod(c.Z, coord.RegionChunks)
	rf.Lock()
	defer rf.Unlock()
	return rf.reg != nil && rf.reg.ExistSector(x, z)
}

// ChangedChunksSince reads the chunk timestamps of every region file modified after since.
func (w *World) ChangedChunksSince(since time.Time) ([]coord.Chunk, error) {
	regions, err := w.Regions()
	if err != nil {
		return nil, err
	}

	var changed []coord.Chunk
	for _, r := range regions {
		path := filepath.Join(w.regionDir, regionFileName(r))
		info, err := os.Stat(path)
		if err != nil || !info.ModTime().After(since) {
			continue
		}

		reg, err := region.Open(path)
		if err != nil {
			w.log.WithError(err).WithField("region", r.String()).Warn("failed to read region timestamps")
			continue
		}
		minChunk := r.MinChunk()
		for z := 0; z < coord.RegionChunks; z++ {
			for x := 0; x < coord.RegionChunks; x++ {
				ts := reg.Timestamps[z][x]
				if ts == 0 || int64(ts) < since.Unix() {
					continue
				}
				changed = append(changed, coord.Chunk{X: minChunk.X + x, Z: minChunk.Z + z})
			}
		}
		reg.Close()
	}
	return changed, nil
}

// Close releases all open region files.
func (w *World) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for len(w.order) > 0 {
		w.closeLocked(w.order[0])
	}
	return nil
}
