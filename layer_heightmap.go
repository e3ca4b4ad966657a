package tessera

import (
	"context"
	"image/color"

	"github.com/b1naryth1ef/tessera/area"
	"github.com/b1naryth1ef/tessera/coord"
	"github.com/b1naryth1ef/tessera/tile"
)

const (
	heightmapLayer = "heightmap"

	// heightSpan is the Y range mapped onto the grey ramp.
	heightSpan = 384
)

type heightmapRenderer struct {
	rc     *RenderContext
	region coord.Region
	img    *tile.Image
}

func newHeightmapLayer(rc *RenderContext, r coord.Region) LayerRenderer {
	return &heightmapRenderer{rc: rc, region: r}
}

func (l *heightmapRenderer) Allocate() {
	l.img = tile.NewImage()
}

func (l *heightmapRenderer) Scan(a area.Area, cache *ScanCache) {
	eachTarget(a, cache, func(x, z int, d *ScanData) {
		height, west, north := cache.Neighbours(x, z)
		l.img.Set(x, z, tile.FromColor(over(heightGrey(height-l.rc.Scan.MinY), l.rc.Shader.Shade(height, west, north))))
	})
}

func (l *heightmapRenderer) Save(ctx context.Context) error {
	return saveImage(ctx, l.rc, heightmapLayer, l.region, l.img)
}

func heightGrey(above int) color.NRGBA {
	v := uint8(capAlpha(above*255/heightSpan, 255))
	return color.NRGBA{R: v, G: v, B: v, A: 255}
}
