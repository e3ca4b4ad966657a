package colors

import (
	"fmt"
	"image/color"
	"math"
	"path"
	"sort"
	"strings"

	"github.com/muesli/gamut"
)

// Climate is the part of a worldgen biome definition that drives grass and foliage tinting.
type Climate struct {
	Temperature float64 `json:"temperature"`
	Downfall    float64 `json:"downfall"`
}

// ColorMapCoords returns the pixel of the 256x256 grass/foliage colour maps for the climate.
func (c Climate) ColorMapCoords() (int, int) {
	r := clamp(c.Downfall, 0, 1) * clamp(c.Temperature, 0, 1)
	x := int(math.Ceil(255 - (clamp(c.Temperature, 0, 1) * 255)))
	y := int(math.Ceil(255 - (r * 255)))
	return x, y
}

// BiomePalette assigns every known biome a distinct pastel colour.
type BiomePalette struct {
	colors   map[string]color.NRGBA
	fallback color.NRGBA
}

// NewBiomePalette generates one pastel colour per biome, assigned in name order.
func NewBiomePalette(biomes []string) (*BiomePalette, error) {
	names := append([]string(nil), biomes...)
	sort.Strings(names)

	p := &BiomePalette{
		colors:   make(map[string]color.NRGBA, len(names)),
		fallback: color.NRGBA{R: 0x7f, G: 0x7f, B: 0x7f, A: 0xff},
	}
	if len(names) == 0 {
		return p, nil
	}

	generated, err := gamut.Generate(len(names), gamut.PastelGenerator{})
	if err != nil {
		return nil, fmt.Errorf("failed to generate color palette for biomes: %w", err)
	}
	for idx, biome := range names {
		p.colors[biome] = color.NRGBAModel.Convert(generated[idx]).(color.NRGBA)
	}
	return p, nil
}

// BiomesFromAssets lists the worldgen biomes shipped in the client jar.
func BiomesFromAssets(assets *Assets) []string {
	var biomes []string
	for _, name := range assets.List("data/minecraft/worldgen/biome/") {
		biomes = append(biomes, "minecraft:"+strings.TrimSuffix(path.Base(name), ".json"))
	}
	return biomes
}

func (p *BiomePalette) Color(biome string) (color.NRGBA, bool) {
	c, ok := p.colors[biome]
	if !ok {
		return p.fallback, false
	}
	return c, true
}

var waterColors = map[string]color.NRGBA{
	"minecraft:swamp":          {R: 0x61, G: 0x7B, B: 0x64, A: 255},
	"minecraft:mangrove_swamp": {R: 0x3A, G: 0x7A, B: 0x6A, A: 255},
	"minecraft:river":          {R: 0x3F, G: 0x76, B: 0xE4, A: 255},
	"minecraft:ocean":          {R: 0x3F, G: 0x76, B: 0xE4, A: 255},
	"minecraft:lukewarm_ocean": {R: 0x45, G: 0xAD, B: 0xF2, A: 255},
	"minecraft:warm_ocean":     {R: 0x43, G: 0xD5, B: 0xEE, A: 255},
	"minecraft:cold_ocean":     {R: 0x3D, G: 0x57, B: 0xD6, A: 255},
	"minecraft:frozen_river":   {R: 0x39, G: 0x38, B: 0xC9, A: 255},
	"minecraft:frozen_ocean":   {R: 0x39, G: 0x38, B: 0xC9, A: 255},
}

var defaultWater = color.NRGBA{R: 0x3f, G: 0x76, B: 0xe4, A: 255}

// WaterColor is the water tint of a biome.
func WaterColor(biome string) color.NRGBA {
	if c, ok := waterColors[biome]; ok {
		return c
	}
	return defaultWater
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	} else if v > hi {
		return hi
	}
	return v
}
