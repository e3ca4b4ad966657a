package tessera

import (
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/b1naryth1ef/tessera/colors"
	"github.com/b1naryth1ef/tessera/coord"
	"github.com/b1naryth1ef/tessera/terrain"
	"github.com/b1naryth1ef/tessera/tile"
)

// WorldOptions is the per world render configuration.
type WorldOptions struct {
	Layers              []string
	ZoomLevels          int
	Heightmap           string
	TranslucentFluids   bool
	TranslucentGlass    bool
	BackgroundInterval  time.Duration
	BackgroundMaxChunks int
}

func (o *WorldOptions) applyDefaults() {
	if len(o.Layers) == 0 {
		o.Layers = []string{"basic"}
	}
	if o.ZoomLevels < 0 {
		o.ZoomLevels = 0
	} else if o.ZoomLevels > tile.MaxZoom {
		o.ZoomLevels = tile.MaxZoom
	}
	if o.Heightmap == "" {
		o.Heightmap = "modern"
	}
	if o.BackgroundInterval <= 0 {
		o.BackgroundInterval = 5 * time.Second
	}
	if o.BackgroundMaxChunks <= 0 {
		o.BackgroundMaxChunks = 1024
	}
}

// RenderContext carries everything a scan task of one world needs.
type RenderContext struct {
	World   terrain.Source
	Tiles   *tile.Store
	Colors  colors.Source
	Blocks  *IndexRegistry
	Biomes  *IndexRegistry
	Shader  Shader
	Scan    ScanOptions
	Options WorldOptions
	Log     logrus.FieldLogger
	Metrics *Metrics

	layers []LayerFactory
}

// NewRenderContext resolves the configured layers and shader.
func NewRenderContext(world terrain.Source, tiles *tile.Store, src colors.Source, opts WorldOptions, log logrus.FieldLogger, metrics *Metrics) (*RenderContext, error) {
	opts.applyDefaults()

	shader, err := LookupShader(opts.Heightmap)
	if err != nil {
		return nil, err
	}

	layers := make([]LayerFactory, 0, len(opts.Layers))
	for _, name := range opts.Layers {
		factory, err := LookupLayer(name)
		if err != nil {
			return nil, err
		}
		layers = append(layers, factory)
	}

	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	log = log.WithField("world", world.Name())

	blocks, err := NewIndexRegistry(palettePath(tiles, world.Name(), "blocks"), log)
	if err != nil {
		return nil, err
	}
	biomes, err := NewIndexRegistry(palettePath(tiles, world.Name(), "biomes"), log)
	if err != nil {
		return nil, err
	}

	return &RenderContext{
		World:  world,
		Tiles:  tiles,
		Colors: src,
		Blocks: blocks,
		Biomes: biomes,
		Shader: shader,
		Scan: ScanOptions{
			MinY:              world.MinBuildHeight(),
			TranslucentFluids: opts.TranslucentFluids,
			TranslucentGlass:  opts.TranslucentGlass,
		},
		Options: opts,
		Log:     log,
		Metrics: metrics,
		layers:  layers,
	}, nil
}

// palettePath is <tiles>/<world>/<name>.gz, next to the zoom level directories.
func palettePath(tiles *tile.Store, world, name string) string {
	return filepath.Join(tiles.Root(), world, name+"."+tile.PackedExt)
}

// newLayers builds one renderer per configured layer for a region.
func (rc *RenderContext) newLayers(r coord.Region) []LayerRenderer {
	result := make([]LayerRenderer, 0, len(rc.layers))
	for _, factory := range rc.layers {
		result = append(result, factory(rc, r))
	}
	return result
}
