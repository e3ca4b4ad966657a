package tessera

import (
	"context"

	"github.com/b1naryth1ef/tessera/area"
	"github.com/b1naryth1ef/tessera/coord"
	"github.com/b1naryth1ef/tessera/tile"
)

const biomeLayer = "biomes"

type biomeRenderer struct {
	rc     *RenderContext
	region coord.Region
	img    *tile.Image
}

func newBiomeLayer(rc *RenderContext, r coord.Region) LayerRenderer {
	return &biomeRenderer{rc: rc, region: r}
}

func (l *biomeRenderer) Allocate() {
	l.img = tile.NewImage()
}

func (l *biomeRenderer) Scan(a area.Area, cache *ScanCache) {
	eachTarget(a, cache, func(x, z int, d *ScanData) {
		biome := d.Biome
		if d.HasFluid() {
			biome = d.FluidBiome
		}
		clr := l.rc.Colors.BiomeColor(biome)
		clr.A = 255
		height, west, north := cache.Neighbours(x, z)
		l.img.Set(x, z, tile.FromColor(over(clr, l.rc.Shader.Shade(height, west, north))))
	})
}

func (l *biomeRenderer) Save(ctx context.Context) error {
	return saveImage(ctx, l.rc, biomeLayer, l.region, l.img)
}
