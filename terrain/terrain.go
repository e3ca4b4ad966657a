// Package terrain is the read-only view of a world that the renderer samples.
package terrain

import (
	"time"

	"github.com/b1naryth1ef/tessera/area"
	"github.com/b1naryth1ef/tessera/block"
	"github.com/b1naryth1ef/tessera/coord"
)

// Source is a world that can be rendered.
type Source interface {
	Name() string

	// MinBuildHeight is the lowest Y a block can exist at.
	MinBuildHeight() int

	// Spawn is the default centre for full renders.
	Spawn() coord.Block

	// Chunk loads a chunk. Chunks that have not been generated yet return nil without an error.
	Chunk(c coord.Chunk) (Chunk, error)

	ChunkExists(c coord.Chunk) bool

	// Regions lists every region that has data on disk.
	Regions() ([]coord.Region, error)

	// Border is the live world border.
	Border() area.Area

	// ChangedChunksSince lists chunks modified after since.
	ChangedChunksSince(since time.Time) ([]coord.Chunk, error)
}

// Chunk is one loaded chunk. x and z are local to the chunk (0-15), y is a world height.
type Chunk interface {
	// SurfaceY is the Y of the highest non-air block in the column, or MinBuildHeight-1 when the
	// column is empty.
	SurfaceY(x, z int) int
	Block(x, y, z int) block.State
	Biome(x, y, z int) string
	BlockLight(x, y, z int) int
}
