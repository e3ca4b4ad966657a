package tessera

import (
	"github.com/b1naryth1ef/tessera/coord"
	"github.com/b1naryth1ef/tessera/tile"
)

const cacheSize = tile.Size + 2

// ScanCache holds the column scans of one region plus a one column halo on every side. Columns
// are addressed by their offset from the region's minimum block, -1 through tile.Size.
type ScanCache struct {
	region  coord.Region
	origin  coord.Block
	columns []*ScanData
	target  []bool
}

func NewScanCache(r coord.Region) *ScanCache {
	return &ScanCache{
		region:  r,
		origin:  r.MinBlock(),
		columns: make([]*ScanData, cacheSize*cacheSize),
		target:  make([]bool, cacheSize*cacheSize),
	}
}

func (c *ScanCache) Region() coord.Region {
	return c.region
}

func (c *ScanCache) index(x, z int) (int, bool) {
	if x < -1 || z < -1 || x > tile.Size || z > tile.Size {
		return 0, false
	}
	return (z+1)*cacheSize + x + 1, true
}

// Set stores a scan. Target columns are the ones layers paint, the rest only feed neighbours.
func (c *ScanCache) Set(x, z int, data *ScanData, target bool) {
	idx, ok := c.index(x, z)
	if !ok {
		return
	}
	c.columns[idx] = data
	c.target[idx] = target && x >= 0 && z >= 0 && x < tile.Size && z < tile.Size
}

func (c *ScanCache) Get(x, z int) *ScanData {
	idx, ok := c.index(x, z)
	if !ok {
		return nil
	}
	return c.columns[idx]
}

// Target reports whether the column was scanned for painting.
func (c *ScanCache) Target(x, z int) bool {
	idx, ok := c.index(x, z)
	return ok && c.target[idx] && c.columns[idx] != nil
}

// Block returns the world position of a column.
func (c *ScanCache) Block(x, z int) coord.Block {
	return coord.Block{X: c.origin.X + x, Z: c.origin.Z + z}
}

// Height is the surface height of a column, falling back to the given value when it was not
// scanned.
func (c *ScanCache) Height(x, z, fallback int) int {
	if d := c.Get(x, z); d != nil {
		return d.Height()
	}
	return fallback
}

// Neighbours returns the surface heights west and north of a column.
func (c *ScanCache) Neighbours(x, z int) (height, west, north int) {
	d := c.Get(x, z)
	if d == nil {
		return 0, 0, 0
	}
	height = d.Height()
	return height, c.Height(x-1, z, height), c.Height(x, z-1, height)
}
