package tessera

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/b1naryth1ef/tessera/block"
	"github.com/b1naryth1ef/tessera/coord"
	"github.com/b1naryth1ef/tessera/terrain"
	"github.com/b1naryth1ef/tessera/terraintest"
)

var (
	bedrock = block.State{Name: "minecraft:bedrock"}
	stone   = block.State{Name: "minecraft:stone"}
	water   = block.State{Name: "minecraft:water", Properties: "level=0"}
	glass   = block.State{Name: "minecraft:glass"}
	torch   = block.State{Name: "minecraft:torch"}
)

func columnChunk(t *testing.T, col terraintest.Column) terrain.Chunk {
	w := terraintest.NewWorld("scan", -64, func(x, z int) terraintest.Column {
		return col
	}, coord.Region{})
	chunk, err := w.Chunk(coord.Chunk{})
	require.NoError(t, err)
	require.NotNil(t, chunk)
	return chunk
}

func TestScanColumnSolid(t *testing.T) {
	chunk := columnChunk(t, terraintest.Column{
		Blocks: []block.State{bedrock, stone, stone, torch},
		Biome:  "minecraft:plains",
		Light:  14,
	})

	d := ScanColumn(chunk, 3, 7, ScanOptions{MinY: -64})
	require.NotNil(t, d)
	assert.Equal(t, stone, d.Block)
	assert.Equal(t, -62, d.BlockY)
	assert.Equal(t, -62, d.Height())
	assert.Equal(t, "minecraft:plains", d.Biome)
	assert.Equal(t, 14, d.Light)
	assert.False(t, d.HasFluid())
	assert.True(t, d.Found())
}

func TestScanColumnTranslucentFluid(t *testing.T) {
	chunk := columnChunk(t, terraintest.Column{
		Blocks: []block.State{bedrock, stone, water, water, water},
		Biome:  "minecraft:river",
	})

	d := ScanColumn(chunk, 0, 0, ScanOptions{MinY: -64, TranslucentFluids: true})
	assert.Equal(t, stone, d.Block)
	assert.Equal(t, -63, d.BlockY)
	assert.Equal(t, water, d.Fluid)
	assert.Equal(t, -60, d.FluidY)
	assert.Equal(t, 3, d.FluidDepth)
	assert.Equal(t, "minecraft:river", d.FluidBiome)
	assert.Equal(t, -60, d.Height())

	opaque := ScanColumn(chunk, 0, 0, ScanOptions{MinY: -64})
	assert.Equal(t, water, opaque.Block)
	assert.Equal(t, -60, opaque.BlockY)
	assert.False(t, opaque.HasFluid())
}

func TestScanColumnGlass(t *testing.T) {
	chunk := columnChunk(t, terraintest.Column{
		Blocks: []block.State{bedrock, stone, glass},
	})

	d := ScanColumn(chunk, 0, 0, ScanOptions{MinY: -64, TranslucentGlass: true})
	assert.Equal(t, stone, d.Block)
	assert.Equal(t, []block.State{glass}, d.Glass)

	d = ScanColumn(chunk, 0, 0, ScanOptions{MinY: -64})
	assert.Equal(t, glass, d.Block)
	assert.Empty(t, d.Glass)
}

func TestScanColumnEmpty(t *testing.T) {
	chunk := columnChunk(t, terraintest.Column{Biome: "minecraft:the_void"})

	d := ScanColumn(chunk, 0, 0, ScanOptions{MinY: -64})
	require.NotNil(t, d)
	assert.False(t, d.Found())
	assert.Equal(t, block.Air, d.Block)
	assert.Equal(t, -64, d.BlockY)

	assert.Nil(t, ScanColumn(nil, 0, 0, ScanOptions{MinY: -64}))
}

func TestScanCacheNeighbours(t *testing.T) {
	cache := NewScanCache(coord.Region{X: 1, Z: -1})
	cache.Set(-1, 0, &ScanData{BlockY: 70}, true)
	cache.Set(0, -1, &ScanData{BlockY: 60}, true)
	cache.Set(0, 0, &ScanData{BlockY: 64}, true)
	cache.Set(1, 0, &ScanData{BlockY: 65}, true)

	height, west, north := cache.Neighbours(0, 0)
	assert.Equal(t, 64, height)
	assert.Equal(t, 70, west)
	assert.Equal(t, 60, north)

	// unscanned neighbours count as level
	height, west, north = cache.Neighbours(1, 0)
	assert.Equal(t, 65, height)
	assert.Equal(t, 64, west)
	assert.Equal(t, 65, north)

	assert.True(t, cache.Target(0, 0))
	assert.False(t, cache.Target(-1, 0), "halo columns are never painted")
	assert.Nil(t, cache.Get(600, 0))
	assert.Equal(t, coord.Block{X: 512, Z: -512}, cache.Block(0, 0))
}
