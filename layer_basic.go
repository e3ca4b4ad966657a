package tessera

import (
	"context"
	"image/color"

	"github.com/b1naryth1ef/tessera/area"
	"github.com/b1naryth1ef/tessera/block"
	"github.com/b1naryth1ef/tessera/coord"
	"github.com/b1naryth1ef/tessera/tile"
)

const (
	basicLayer = "basic"
	nightLayer = "night"

	// depths at which a fluid reaches its full colour
	waterDepth = 24
	lavaDepth  = 4
)

type basicRenderer struct {
	rc     *RenderContext
	region coord.Region
	color  *tile.Image
	night  *tile.Image
}

func newBasicLayer(rc *RenderContext, r coord.Region) LayerRenderer {
	return &basicRenderer{rc: rc, region: r}
}

func (l *basicRenderer) Allocate() {
	l.color = tile.NewImage()
	l.night = tile.NewImage()
}

func (l *basicRenderer) Scan(a area.Area, cache *ScanCache) {
	eachTarget(a, cache, func(x, z int, d *ScanData) {
		height, west, north := cache.Neighbours(x, z)
		l.color.Set(x, z, tile.FromColor(columnColor(l.rc, d, l.rc.Shader.Shade(height, west, north))))
		l.night.Set(x, z, tile.FromColor(nightOverlay(d.Light)))
	})
}

func (l *basicRenderer) Save(ctx context.Context) error {
	if err := saveImage(ctx, l.rc, basicLayer, l.region, l.color); err != nil {
		return err
	}
	return saveImage(ctx, l.rc, nightLayer, l.region, l.night)
}

// columnColor composites block colour, shading, translucent fluid and glass.
func columnColor(rc *RenderContext, d *ScanData, shade color.NRGBA) color.NRGBA {
	var clr color.NRGBA
	if d.Found() {
		if c, ok := rc.Colors.BlockColor(d.Block, d.Biome); ok {
			clr = c
			clr.A = 255
			clr = over(clr, shade)
		}
	}

	if d.HasFluid() {
		if fluid, ok := rc.Colors.BlockColor(d.Fluid, d.FluidBiome); ok {
			clr = blendFluid(clr, fluid, d.Fluid.Name, d.FluidDepth)
		}
	}

	for i := len(d.Glass) - 1; i >= 0; i-- {
		glass, ok := rc.Colors.BlockColor(d.Glass[i], d.Biome)
		if !ok {
			continue
		}
		strength := float64(glass.A) / 255
		if strength < 0.25 {
			strength = 0.25
		}
		glass.A = 255
		if clr.A == 0 {
			clr = color.NRGBA{R: glass.R, G: glass.G, B: glass.B, A: uint8(strength * 255)}
			continue
		}
		clr = mix(clr, glass, strength)
	}
	return clr
}

// blendFluid mixes the fluid over what lies below, the deeper the more opaque.
func blendFluid(below, fluid color.NRGBA, name string, depth int) color.NRGBA {
	fluid.A = 255
	if below.A == 0 {
		below = fluid
	}
	if block.IsLava(name) {
		t := easeInQuad(float64(depth) / lavaDepth)
		return mix(below, fluid, 0.6+0.4*t)
	}
	t := easeOutCubic(float64(depth) / waterDepth)
	return darken(mix(below, fluid, 0.45+0.55*t), 0.3*t)
}

// nightOverlay is black, fading out as block light rises.
func nightOverlay(light int) color.NRGBA {
	if light < 0 {
		light = 0
	} else if light > 15 {
		light = 15
	}
	return color.NRGBA{A: uint8(192 - (light+1)*12)}
}

func saveImage(ctx context.Context, rc *RenderContext, layer string, r coord.Region, img *tile.Image) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if img == nil || img.Empty() {
		return nil
	}
	if err := rc.Tiles.SaveImage(rc.World.Name(), layer, r, img, rc.Options.ZoomLevels); err != nil {
		return err
	}
	rc.Metrics.TileWrites.WithLabelValues(rc.World.Name(), layer).Inc()
	return nil
}
