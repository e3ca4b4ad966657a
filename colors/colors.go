// Package colors resolves the map colour of block states and biomes.
package colors

import (
	"image/color"
	"sync"

	"github.com/b1naryth1ef/tessera/block"
)

// Source resolves map colours. BlockColor reports false for states it cannot colour.
type Source interface {
	BlockColor(state block.State, biome string) (color.NRGBA, bool)
	BiomeColor(biome string) color.NRGBA
}

// Static is a Source backed by a fixed table keyed by block name. It is used when no client jar
// is available.
type Static struct {
	blocks map[string]color.NRGBA
	biomes *BiomePalette

	mu      sync.Mutex
	missing map[string]struct{}
}

var defaultBlocks = map[string]color.NRGBA{
	"minecraft:stone":        {R: 0x7d, G: 0x7d, B: 0x7d, A: 0xff},
	"minecraft:deepslate":    {R: 0x50, G: 0x50, B: 0x52, A: 0xff},
	"minecraft:bedrock":      {R: 0x55, G: 0x55, B: 0x55, A: 0xff},
	"minecraft:dirt":         {R: 0x86, G: 0x60, B: 0x43, A: 0xff},
	"minecraft:grass_block":  {R: 0x7f, G: 0xb2, B: 0x38, A: 0xff},
	"minecraft:sand":         {R: 0xdb, G: 0xcf, B: 0xa3, A: 0xff},
	"minecraft:gravel":       {R: 0x84, G: 0x7f, B: 0x7f, A: 0xff},
	"minecraft:snow":         {R: 0xf9, G: 0xfe, B: 0xfe, A: 0xff},
	"minecraft:snow_block":   {R: 0xf9, G: 0xfe, B: 0xfe, A: 0xff},
	"minecraft:ice":          {R: 0x91, G: 0xb7, B: 0xfd, A: 0xff},
	"minecraft:water":        {R: 0x3f, G: 0x76, B: 0xe4, A: 0xff},
	"minecraft:lava":         {R: 0xcf, G: 0x5b, B: 0x14, A: 0xff},
	"minecraft:oak_log":      {R: 0x6d, G: 0x55, B: 0x32, A: 0xff},
	"minecraft:oak_planks":   {R: 0xa2, G: 0x82, B: 0x4e, A: 0xff},
	"minecraft:oak_leaves":   {R: 0x48, G: 0x77, B: 0x28, A: 0xff},
	"minecraft:birch_leaves": {R: 0x80, G: 0xa7, B: 0x55, A: 0xff},
	"minecraft:glass":        {R: 0xaf, G: 0xd5, B: 0xdb, A: 0x40},
	"minecraft:netherrack":   {R: 0x61, G: 0x26, B: 0x26, A: 0xff},
	"minecraft:end_stone":    {R: 0xdb, G: 0xde, B: 0x9e, A: 0xff},
}

var defaultBiomes = []string{
	"minecraft:plains",
	"minecraft:forest",
	"minecraft:desert",
	"minecraft:ocean",
	"minecraft:river",
	"minecraft:swamp",
	"minecraft:taiga",
	"minecraft:snowy_plains",
	"minecraft:jungle",
	"minecraft:savanna",
	"minecraft:badlands",
	"minecraft:nether_wastes",
	"minecraft:the_end",
}

// NewStatic builds a Static source. Entries in blocks override the built-in table.
func NewStatic(blocks map[string]color.NRGBA) (*Static, error) {
	biomes, err := NewBiomePalette(defaultBiomes)
	if err != nil {
		return nil, err
	}
	s := &Static{
		blocks:  make(map[string]color.NRGBA, len(defaultBlocks)+len(blocks)),
		biomes:  biomes,
		missing: make(map[string]struct{}),
	}
	for k, v := range defaultBlocks {
		s.blocks[k] = v
	}
	for k, v := range blocks {
		s.blocks[k] = v
	}
	return s, nil
}

func (s *Static) BlockColor(state block.State, biome string) (color.NRGBA, bool) {
	clr, ok := s.blocks[state.Name]
	if !ok {
		s.mu.Lock()
		s.missing[state.Name] = struct{}{}
		s.mu.Unlock()
		return color.NRGBA{}, false
	}
	if block.IsWater(state.Name) {
		return WaterColor(biome), true
	}
	return clr, true
}

func (s *Static) BiomeColor(biome string) color.NRGBA {
	c, _ := s.biomes.Color(biome)
	return c
}

// Missing lists block names that had no colour.
func (s *Static) Missing() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.missing))
	for k := range s.missing {
		names = append(names, k)
	}
	return names
}
