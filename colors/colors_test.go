package colors

import (
	"archive/zip"
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/b1naryth1ef/tessera/block"
)

func solidPNG(t *testing.T, w, h int, c color.NRGBA) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func writeJar(t *testing.T, files map[string][]byte) string {
	path := filepath.Join(t.TempDir(), "client.jar")
	fd, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(fd)
	for name, data := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, fd.Close())
	return path
}

var grassMapColor = color.NRGBA{R: 0x10, G: 0xa0, B: 0x20, A: 0xff}

func testAssets(t *testing.T) *Assets {
	files := map[string][]byte{
		"assets/minecraft/textures/colormap/grass.png":   solidPNG(t, 256, 256, grassMapColor),
		"assets/minecraft/textures/colormap/foliage.png": solidPNG(t, 256, 256, color.NRGBA{G: 0x80, A: 0xff}),

		"data/minecraft/worldgen/biome/plains.json": []byte(`{"temperature": 0.8, "downfall": 0.4}`),
		"data/minecraft/worldgen/biome/desert.json": []byte(`{"temperature": 2.0, "downfall": 0.0}`),

		"assets/minecraft/blockstates/stone.json":       []byte(`{"variants": {"": {"model": "minecraft:block/stone"}}}`),
		"assets/minecraft/models/block/stone.json":      []byte(`{"parent": "minecraft:block/cube_all", "textures": {"all": "minecraft:block/stone"}}`),
		"assets/minecraft/models/block/cube_all.json":   []byte(`{"parent": "block/cube", "textures": {"particle": "#all"}}`),
		"assets/minecraft/models/block/cube.json":       []byte(`{}`),
		"assets/minecraft/textures/block/stone.png":     solidPNG(t, 16, 16, color.NRGBA{R: 100, G: 100, B: 100, A: 255}),
		"assets/minecraft/blockstates/grass_block.json": []byte(`{"variants": {"snowy=false": {"model": "minecraft:block/grass_block"}, "snowy=true": [{"model": "minecraft:block/grass_block_snow"}]}}`),
		"assets/minecraft/models/block/grass_block.json": []byte(
			`{"textures": {"top": "minecraft:block/grass_block_top", "side": "minecraft:block/grass_block_side"}}`),
		"assets/minecraft/models/block/grass_block_snow.json": []byte(`{"textures": {"top": "minecraft:block/snow"}}`),
		"assets/minecraft/textures/block/grass_block_top.png": solidPNG(t, 16, 16, color.NRGBA{R: 200, G: 200, B: 200, A: 255}),
		"assets/minecraft/textures/block/snow.png":            solidPNG(t, 16, 16, color.NRGBA{R: 250, G: 250, B: 250, A: 255}),
		"assets/minecraft/blockstates/oak_fence.json": []byte(`{"multipart": [
			{"when": {"OR": [{"north": "true"}, {"south": "true"}]}, "apply": {"model": "minecraft:block/oak_fence_side"}},
			{"apply": [{"model": "minecraft:block/oak_fence_post"}]}
		]}`),
		"assets/minecraft/models/block/oak_fence_post.json": []byte(`{"textures": {"texture": "minecraft:block/oak_planks"}}`),
		"assets/minecraft/models/block/oak_fence_side.json": []byte(`{"textures": {"texture": "minecraft:block/oak_log"}}`),
		"assets/minecraft/textures/block/oak_planks.png":    solidPNG(t, 16, 16, color.NRGBA{R: 160, G: 130, B: 80, A: 255}),
		"assets/minecraft/textures/block/oak_log.png":       solidPNG(t, 16, 16, color.NRGBA{R: 100, G: 80, B: 50, A: 255}),
	}
	assets, err := OpenClientJar(writeJar(t, files))
	require.NoError(t, err)
	t.Cleanup(func() { assets.Close() })
	return assets
}

func TestPaletteResolvesThroughParents(t *testing.T) {
	p, err := NewPalette(testAssets(t))
	require.NoError(t, err)

	c, ok := p.BlockColor(block.State{Name: "minecraft:stone"}, "minecraft:plains")
	require.True(t, ok)
	assert.Equal(t, color.NRGBA{R: 100, G: 100, B: 100, A: 255}, c)
}

func TestPaletteTintsGrass(t *testing.T) {
	p, err := NewPalette(testAssets(t))
	require.NoError(t, err)

	c, ok := p.BlockColor(block.State{Name: "minecraft:grass_block", Properties: "snowy=false"}, "minecraft:plains")
	require.True(t, ok)
	assert.Equal(t, grassMapColor, c)
}

func TestPaletteVariantAndMultipart(t *testing.T) {
	p, err := NewPalette(testAssets(t))
	require.NoError(t, err)

	clr, err := p.resolve(block.State{Name: "minecraft:grass_block", Properties: "snowy=true"})
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 250, G: 250, B: 250, A: 255}, clr)

	clr, err = p.resolve(block.State{Name: "minecraft:oak_fence", Properties: "north=true,south=false"})
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 100, G: 80, B: 50, A: 255}, clr)

	clr, err = p.resolve(block.State{Name: "minecraft:oak_fence", Properties: "north=false,south=false"})
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 160, G: 130, B: 80, A: 255}, clr)
}

func TestPaletteMissing(t *testing.T) {
	p, err := NewPalette(testAssets(t))
	require.NoError(t, err)

	_, ok := p.BlockColor(block.State{Name: "minecraft:mystery"}, "minecraft:plains")
	assert.False(t, ok)
	_, ok = p.BlockColor(block.State{Name: "minecraft:mystery"}, "minecraft:plains")
	assert.False(t, ok)
	assert.Contains(t, p.Missing(), "minecraft:mystery/")
}

func TestPaletteWaterTint(t *testing.T) {
	p, err := NewPalette(testAssets(t))
	require.NoError(t, err)

	assert.Equal(t, WaterColor("minecraft:swamp"), fixedTint(block.State{Name: "minecraft:water"}, color.NRGBA{}, "minecraft:swamp"))
	assert.Equal(t, defaultWater, WaterColor("minecraft:plains"))
	assert.Len(t, p.biomes.colors, 2)
}

func TestBiomePalette(t *testing.T) {
	p, err := NewBiomePalette([]string{"minecraft:plains", "minecraft:desert", "minecraft:ocean"})
	require.NoError(t, err)

	plains, ok := p.Color("minecraft:plains")
	assert.True(t, ok)
	assert.Equal(t, uint8(0xff), plains.A)

	_, ok = p.Color("minecraft:unknown")
	assert.False(t, ok)
}

func TestClimateColorMapCoords(t *testing.T) {
	x, y := Climate{Temperature: 0.8, Downfall: 0.4}.ColorMapCoords()
	assert.Equal(t, 51, x)
	assert.Equal(t, 174, y)

	x, y = Climate{Temperature: 2, Downfall: 0}.ColorMapCoords()
	assert.Equal(t, 0, x)
	assert.Equal(t, 255, y)
}

func TestStatic(t *testing.T) {
	s, err := NewStatic(map[string]color.NRGBA{"minecraft:stone": {R: 1, G: 2, B: 3, A: 255}})
	require.NoError(t, err)

	c, ok := s.BlockColor(block.State{Name: "minecraft:stone"}, "minecraft:plains")
	assert.True(t, ok)
	assert.Equal(t, color.NRGBA{R: 1, G: 2, B: 3, A: 255}, c)

	c, ok = s.BlockColor(block.State{Name: "minecraft:water"}, "minecraft:warm_ocean")
	assert.True(t, ok)
	assert.Equal(t, WaterColor("minecraft:warm_ocean"), c)

	_, ok = s.BlockColor(block.State{Name: "minecraft:nope"}, "")
	assert.False(t, ok)
	assert.Equal(t, []string{"minecraft:nope"}, s.Missing())
}
