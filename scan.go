package tessera

import (
	"github.com/b1naryth1ef/tessera/block"
	"github.com/b1naryth1ef/tessera/terrain"
)

// ScanOptions controls what a column scan looks through.
type ScanOptions struct {
	MinY              int
	TranslucentFluids bool
	TranslucentGlass  bool
}

// ScanData is the top-down view of one world column.
type ScanData struct {
	Block  block.State
	BlockY int
	Biome  string

	// Fluid is zero unless translucent fluids are enabled and the column has fluid above Block.
	Fluid      block.State
	FluidY     int
	FluidDepth int
	FluidBiome string

	// Glass holds the glass blocks passed through, top first.
	Glass []block.State

	Light int
}

// HasFluid reports whether a translucent fluid covers the block.
func (d *ScanData) HasFluid() bool {
	return !d.Fluid.IsZero()
}

// Height is the Y of the topmost rendered surface.
func (d *ScanData) Height() int {
	if d.HasFluid() {
		return d.FluidY
	}
	return d.BlockY
}

// Found reports whether the scan reached a renderable block above the world bottom.
func (d *ScanData) Found() bool {
	return d.Block != block.Air
}

// ScanColumn walks down the column at the chunk local x, z from the chunk's surface height. A nil
// chunk yields nil.
func ScanColumn(chunk terrain.Chunk, x, z int, opts ScanOptions) *ScanData {
	if chunk == nil {
		return nil
	}

	data := &ScanData{}
	top := chunk.SurfaceY(x, z)
	for y := top; y >= opts.MinY; y-- {
		state := chunk.Block(x, y, z)
		if block.IsPassThrough(state.Name) {
			continue
		}

		if block.IsFluid(state.Name) && opts.TranslucentFluids {
			if !data.HasFluid() {
				data.Fluid = state
				data.FluidY = y
				data.FluidBiome = chunk.Biome(x, y, z)
				data.Light = chunk.BlockLight(x, y+1, z)
			}
			data.FluidDepth++
			continue
		}

		if block.IsGlass(state.Name) && opts.TranslucentGlass {
			data.Glass = append(data.Glass, state)
			continue
		}

		data.Block = state
		data.BlockY = y
		data.Biome = chunk.Biome(x, y, z)
		if !data.HasFluid() {
			data.Light = chunk.BlockLight(x, y+1, z)
		}
		return data
	}

	data.Block = block.Air
	data.BlockY = opts.MinY
	data.Biome = chunk.Biome(x, opts.MinY, z)
	return data
}
