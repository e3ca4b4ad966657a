// Package terraintest provides an in-memory terrain.Source for tests.
package terraintest

import (
	"sync"
	"time"

	"github.com/b1naryth1ef/tessera/area"
	"github.com/b1naryth1ef/tessera/block"
	"github.com/b1naryth1ef/tessera/coord"
	"github.com/b1naryth1ef/tessera/terrain"
)

// Column is the content of one world column, bottom up starting at the world's MinY.
type Column struct {
	Blocks []block.State
	Biome  string
	Light  int
}

// ColumnFunc generates the column at a block position.
type ColumnFunc func(x, z int) Column

// World is a generated world whose chunks exist only inside its regions.
type World struct {
	name  string
	minY  int
	spawn coord.Block

	mu       sync.Mutex
	regions  map[coord.Region]struct{}
	missing  map[coord.Chunk]struct{}
	changed  map[coord.Chunk]time.Time
	border   float64
	generate ColumnFunc
	onChunk  func(coord.Chunk)
	loads    map[coord.Chunk]int
}

// Flat is bedrock, two stone, dirt and grass in the plains biome.
func Flat(x, z int) Column {
	return Column{
		Blocks: []block.State{
			{Name: "minecraft:bedrock"},
			{Name: "minecraft:stone"},
			{Name: "minecraft:stone"},
			{Name: "minecraft:dirt"},
			{Name: "minecraft:grass_block", Properties: "snowy=false"},
		},
		Biome: "minecraft:plains",
	}
}

// NewWorld creates a world with chunks in every given region.
func NewWorld(name string, minY int, generate ColumnFunc, regions ...coord.Region) *World {
	if generate == nil {
		generate = Flat
	}
	w := &World{
		name:     name,
		minY:     minY,
		regions:  make(map[coord.Region]struct{}),
		missing:  make(map[coord.Chunk]struct{}),
		changed:  make(map[coord.Chunk]time.Time),
		border:   60_000_000,
		generate: generate,
		loads:    make(map[coord.Chunk]int),
	}
	for _, r := range regions {
		w.regions[r] = struct{}{}
	}
	return w
}

// NewFlatGrid creates a flat world with a (2*radius+1)^2 grid of regions around the origin.
func NewFlatGrid(name string, radius int) *World {
	var regions []coord.Region
	for x := -radius; x <= radius; x++ {
		for z := -radius; z <= radius; z++ {
			regions = append(regions, coord.Region{X: x, Z: z})
		}
	}
	return NewWorld(name, -64, Flat, regions...)
}

func (w *World) Name() string {
	return w.name
}

func (w *World) MinBuildHeight() int {
	return w.minY
}

func (w *World) Spawn() coord.Block {
	return w.spawn
}

func (w *World) SetSpawn(b coord.Block) {
	w.spawn = b
}

// SetBorderSize changes the live border side length, centred on the origin.
func (w *World) SetBorderSize(size float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.border = size
}

func (w *World) Border() area.Area {
	return area.NewBorder(func() (float64, float64, float64) {
		w.mu.Lock()
		defer w.mu.Unlock()
		return 0, 0, w.border
	})
}

// OnChunk registers a hook called every time a chunk is loaded.
func (w *World) OnChunk(fn func(coord.Chunk)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChunk = fn
}

// RemoveChunk makes a chunk ungenerated.
func (w *World) RemoveChunk(c coord.Chunk) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.missing[c] = struct{}{}
}

// Touch marks chunks as modified now.
func (w *World) Touch(at time.Time, chunks ...coord.Chunk) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, c := range chunks {
		w.changed[c] = at
	}
}

// Loads reports how many times a chunk has been loaded.
func (w *World) Loads(c coord.Chunk) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loads[c]
}

func (w *World) ChunkExists(c coord.Chunk) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.existsLocked(c)
}

func (w *World) existsLocked(c coord.Chunk) bool {
	if _, ok := w.missing[c]; ok {
		return false
	}
	_, ok := w.regions[c.Region()]
	return ok
}

func (w *World) Chunk(c coord.Chunk) (terrain.Chunk, error) {
	w.mu.Lock()
	exists := w.existsLocked(c)
	hook := w.onChunk
	w.loads[c]++
	w.mu.Unlock()

	if hook != nil {
		hook(c)
	}
	if !exists {
		return nil, nil
	}

	ch := &chunk{minY: w.minY}
	base := c.MinBlock()
	for z := 0; z < coord.ChunkSize; z++ {
		for x := 0; x < coord.ChunkSize; x++ {
			ch.columns[z*coord.ChunkSize+x] = w.generate(base.X+x, base.Z+z)
		}
	}
	return ch, nil
}

func (w *World) Regions() ([]coord.Region, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	result := make([]coord.Region, 0, len(w.regions))
	for r := range w.regions {
		result = append(result, r)
	}
	return result, nil
}

func (w *World) ChangedChunksSince(since time.Time) ([]coord.Chunk, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var result []coord.Chunk
	for c, at := range w.changed {
		if at.After(since) {
			result = append(result, c)
		}
	}
	return result, nil
}

type chunk struct {
	minY    int
	columns [coord.ChunkSize * coord.ChunkSize]Column
}

func (c *chunk) column(x, z int) *Column {
	return &c.columns[z*coord.ChunkSize+x]
}

func (c *chunk) SurfaceY(x, z int) int {
	col := c.column(x, z)
	for i := len(col.Blocks) - 1; i >= 0; i-- {
		if col.Blocks[i].Name != "minecraft:air" && col.Blocks[i].Name != "" {
			return c.minY + i
		}
	}
	return c.minY - 1
}

func (c *chunk) Block(x, y, z int) block.State {
	col := c.column(x, z)
	i := y - c.minY
	if i < 0 || i >= len(col.Blocks) {
		return block.Air
	}
	return col.Blocks[i]
}

func (c *chunk) Biome(x, y, z int) string {
	return c.column(x, z).Biome
}

func (c *chunk) BlockLight(x, y, z int) int {
	return c.column(x, z).Light
}
