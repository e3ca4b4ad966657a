package tessera

import (
	"context"
	"errors"

	"github.com/b1naryth1ef/tessera/area"
	"github.com/b1naryth1ef/tessera/coord"
	"github.com/b1naryth1ef/tessera/tile"
)

const blockInfoLayer = "blockinfo"

// blockInfoRenderer writes the packed block, biome and height of the top surface.
type blockInfoRenderer struct {
	rc     *RenderContext
	region coord.Region
	packed *tile.Packed
}

func newBlockInfoLayer(rc *RenderContext, r coord.Region) LayerRenderer {
	return &blockInfoRenderer{rc: rc, region: r}
}

func (l *blockInfoRenderer) Allocate() {
	l.packed = tile.NewPacked(l.rc.Scan.MinY)
}

func (l *blockInfoRenderer) Scan(a area.Area, cache *ScanCache) {
	eachTarget(a, cache, func(x, z int, d *ScanData) {
		name, biome := d.Block.Name, d.Biome
		if d.HasFluid() {
			name, biome = d.Fluid.Name, d.FluidBiome
		}
		l.packed.Set(x, z, tile.Pack(
			int(l.rc.Blocks.IndexOf(name)),
			int(l.rc.Biomes.IndexOf(biome)),
			d.Height()-l.rc.Scan.MinY,
		))
	})
}

func (l *blockInfoRenderer) Save(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l.packed == nil || l.packed.Empty() {
		return nil
	}
	// tiles may only reference indices the side files already hold
	if err := errors.Join(l.rc.Blocks.Save(), l.rc.Biomes.Save()); err != nil {
		return err
	}
	if err := l.rc.Tiles.SavePacked(l.rc.World.Name(), blockInfoLayer, l.region, l.packed, l.rc.Options.ZoomLevels); err != nil {
		return err
	}
	l.rc.Metrics.TileWrites.WithLabelValues(l.rc.World.Name(), blockInfoLayer).Inc()
	return nil
}
