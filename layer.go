package tessera

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/b1naryth1ef/tessera/area"
	"github.com/b1naryth1ef/tessera/coord"
	"github.com/b1naryth1ef/tessera/tile"
)

var ErrUnknownLayer = errors.New("unknown layer")

// LayerRenderer paints one region of one or more tile layers from a shared ScanCache.
type LayerRenderer interface {
	// Allocate creates the region buffers.
	Allocate()
	// Scan paints every target column of the cache inside the area.
	Scan(a area.Area, cache *ScanCache)
	// Save writes the buffers and their zoom levels.
	Save(ctx context.Context) error
}

// LayerFactory creates the renderer of a layer for one region.
type LayerFactory func(rc *RenderContext, r coord.Region) LayerRenderer

var (
	layerMu  sync.RWMutex
	layerReg = map[string]LayerFactory{
		"basic":     newBasicLayer,
		"biomes":    newBiomeLayer,
		"heightmap": newHeightmapLayer,
		"blockinfo": newBlockInfoLayer,
	}
)

// RegisterLayer adds or replaces a layer.
func RegisterLayer(name string, factory LayerFactory) {
	layerMu.Lock()
	defer layerMu.Unlock()
	layerReg[name] = factory
}

func LookupLayer(name string) (LayerFactory, error) {
	layerMu.RLock()
	defer layerMu.RUnlock()
	factory, ok := layerReg[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownLayer, name)
	}
	return factory, nil
}

// LayerNames lists the registered layers.
func LayerNames() []string {
	layerMu.RLock()
	defer layerMu.RUnlock()
	names := make([]string, 0, len(layerReg))
	for name := range layerReg {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TileLayers maps configured layer names to the tile directories they produce.
func TileLayers(layers []string) []string {
	var result []string
	for _, name := range layers {
		result = append(result, name)
		if name == "basic" {
			result = append(result, nightLayer)
		}
	}
	return result
}

// eachTarget calls fn for every painted column of cache inside a.
func eachTarget(a area.Area, cache *ScanCache, fn func(x, z int, d *ScanData)) {
	for z := 0; z < tile.Size; z++ {
		for x := 0; x < tile.Size; x++ {
			if !cache.Target(x, z) || !a.ContainsBlock(cache.Block(x, z)) {
				continue
			}
			fn(x, z, cache.Get(x, z))
		}
	}
}
