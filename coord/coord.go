// Package coord holds the block, chunk and region address spaces of a world and the conversions
// between them. A chunk is 16x16 columns and a region is 32x32 chunks (512x512 columns).
package coord

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	ChunkShift  = 4
	RegionShift = 9

	// ChunkSize is the width of a chunk in blocks.
	ChunkSize = 1 << ChunkShift
	// RegionSize is the width of a region in blocks.
	RegionSize = 1 << RegionShift
	// RegionChunks is the width of a region in chunks.
	RegionChunks = RegionSize / ChunkSize
)

// Block is the position of a single world column.
type Block struct {
	X int
	Z int
}

// Chunk returns the chunk holding the column. Shifts on negative values floor.
func (b Block) Chunk() Chunk {
	return Chunk{X: b.X >> ChunkShift, Z: b.Z >> ChunkShift}
}

// Region returns the region holding the column.
func (b Block) Region() Region {
	return Region{X: b.X >> RegionShift, Z: b.Z >> RegionShift}
}

// Local returns the position of the column inside its chunk.
func (b Block) Local() (int, int) {
	return b.X & (ChunkSize - 1), b.Z & (ChunkSize - 1)
}

func (b Block) String() string {
	return fmt.Sprintf("%d,%d", b.X, b.Z)
}

type Chunk struct {
	X int
	Z int
}

func (c Chunk) Region() Region {
	return Region{X: c.X >> (RegionShift - ChunkShift), Z: c.Z >> (RegionShift - ChunkShift)}
}

// MinBlock returns the north-west column of the chunk.
func (c Chunk) MinBlock() Block {
	return Block{X: c.X << ChunkShift, Z: c.Z << ChunkShift}
}

// MaxBlock returns the south-east column of the chunk.
func (c Chunk) MaxBlock() Block {
	return Block{X: c.X<<ChunkShift + ChunkSize - 1, Z: c.Z<<ChunkShift + ChunkSize - 1}
}

func (c Chunk) String() string {
	return fmt.Sprintf("%d,%d", c.X, c.Z)
}

type Region struct {
	X int
	Z int
}

// MinChunk returns the north-west chunk of the region.
func (r Region) MinChunk() Chunk {
	return Chunk{X: r.X << (RegionShift - ChunkShift), Z: r.Z << (RegionShift - ChunkShift)}
}

func (r Region) MaxChunk() Chunk {
	return Chunk{X: r.X<<(RegionShift-ChunkShift) + RegionChunks - 1, Z: r.Z<<(RegionShift-ChunkShift) + RegionChunks - 1}
}

func (r Region) MinBlock() Block {
	return Block{X: r.X << RegionShift, Z: r.Z << RegionShift}
}

func (r Region) MaxBlock() Block {
	return Block{X: r.X<<RegionShift + RegionSize - 1, Z: r.Z<<RegionShift + RegionSize - 1}
}

// Contains reports whether the chunk lies inside the region.
func (r Region) Contains(c Chunk) bool {
	return c.Region() == r
}

// String formats the region the way tiles and region files name it ("x_z").
func (r Region) String() string {
	return fmt.Sprintf("%d_%d", r.X, r.Z)
}

// ParseRegion parses the "x_z" form produced by Region.String.
func ParseRegion(s string) (Region, error) {
	xs, zs, ok := strings.Cut(s, "_")
	if !ok {
		return Region{}, fmt.Errorf("invalid region %q", s)
	}
	x, err := strconv.Atoi(xs)
	if err != nil {
		return Region{}, fmt.Errorf("invalid region x in %q: %w", s, err)
	}
	z, err := strconv.Atoi(zs)
	if err != nil {
		return Region{}, fmt.Errorf("invalid region z in %q: %w", s, err)
	}
	return Region{X: x, Z: z}, nil
}

// FloorDiv divides rounding towards negative infinity.
func FloorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// FloorMod is the remainder matching FloorDiv, always in [0, b) for positive b.
func FloorMod(a, b int) int {
	m := a % b
	if m != 0 && ((m < 0) != (b < 0)) {
		m += b
	}
	return m
}
