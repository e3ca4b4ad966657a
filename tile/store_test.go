package tile

import (
	"image"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/b1naryth1ef/tessera/coord"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filledImage(argb uint32) *Image {
	img := NewImage()
	for z := 0; z < Size; z++ {
		for x := 0; x < Size; x++ {
			img.Set(x, z, argb)
		}
	}
	return img
}

func gradientPacked(minY int) *Packed {
	p := NewPacked(minY)
	for z := 0; z < Size; z++ {
		for x := 0; x < Size; x++ {
			p.Set(x, z, Pack(x&1023, z&1023, (x+z)&4095))
		}
	}
	return p
}

func nrgbaAt(t *testing.T, img image.Image, x, z int) uint32 {
	t.Helper()
	return FromColor(img.At(x, z))
}

func TestZoomTarget(t *testing.T) {
	coarse, off, cell := zoomTarget(coord.Region{X: -1, Z: 3}, 1)
	assert.Equal(t, coord.Region{X: -1, Z: 1}, coarse)
	assert.Equal(t, image.Point{X: 256, Y: 256}, off)
	assert.Equal(t, 256, cell)

	coarse, off, cell = zoomTarget(coord.Region{X: 5, Z: -4}, 2)
	assert.Equal(t, coord.Region{X: 1, Z: -1}, coarse)
	assert.Equal(t, image.Point{X: 128, Y: 0}, off)
	assert.Equal(t, 128, cell)
}

func TestSaveImageWritesPyramid(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	r := coord.Region{X: 1, Z: 0}

	require.NoError(t, store.SaveImage("w", "basic", r, filledImage(0xff112233), 2))

	native, err := store.ReadImage(store.Path("w", 0, "basic", r, ImageExt))
	require.NoError(t, err)
	require.NotNil(t, native)
	assert.Equal(t, image.Rect(0, 0, Size, Size), native.Bounds())
	assert.Equal(t, uint32(0xff112233), nrgbaAt(t, native, 100, 100))

	z1, err := store.ReadImage(store.Path("w", 1, "basic", coord.Region{X: 0, Z: 0}, ImageExt))
	require.NoError(t, err)
	require.NotNil(t, z1)
	assert.Equal(t, uint32(0xff112233), nrgbaAt(t, z1, 256, 0))
	assert.Equal(t, uint32(0xff112233), nrgbaAt(t, z1, 511, 255))
	assert.Equal(t, uint32(0), nrgbaAt(t, z1, 255, 0))
	assert.Equal(t, uint32(0), nrgbaAt(t, z1, 256, 256))

	z2, err := store.ReadImage(store.Path("w", 2, "basic", coord.Region{X: 0, Z: 0}, ImageExt))
	require.NoError(t, err)
	assert.Equal(t, uint32(0xff112233), nrgbaAt(t, z2, 128, 0))
	assert.Equal(t, uint32(0), nrgbaAt(t, z2, 127, 0))
}

func TestSaveImageKeepsUnsetPixels(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	r := coord.Region{}
	require.NoError(t, store.SaveImage("w", "basic", r, filledImage(0xff0000ff), 0))

	partial := NewImage()
	partial.Set(0, 0, 0xffff0000)
	require.NoError(t, store.SaveImage("w", "basic", r, partial, 0))

	img, err := store.ReadImage(store.Path("w", 0, "basic", r, ImageExt))
	require.NoError(t, err)
	assert.Equal(t, uint32(0xffff0000), nrgbaAt(t, img, 0, 0))
	assert.Equal(t, uint32(0xff0000ff), nrgbaAt(t, img, 1, 0))
}

func TestImageZoomMergeIdempotent(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	img := NewImage()
	for z := 0; z < Size; z++ {
		for x := 0; x < Size; x++ {
			img.Set(x, z, uint32(x*z)&0x7fffffff|0x40000000)
		}
	}
	r := coord.Region{X: -1, Z: -1}
	require.NoError(t, store.SaveImage("w", "basic", r, img, 3))
	first := readAll(t, store.Root())

	require.NoError(t, store.SaveImage("w", "basic", r, img, 3))
	assert.Equal(t, first, readAll(t, store.Root()))
}

func TestSavePackedDecimates(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	r := coord.Region{X: 1, Z: 1}
	native := gradientPacked(-64)
	require.NoError(t, store.SavePacked("w", "blockinfo", r, native, 1))

	got, err := store.ReadPacked(store.Path("w", 0, "blockinfo", r, PackedExt))
	require.NoError(t, err)
	assert.Equal(t, native.Bytes(), got.Bytes())

	coarse, err := store.ReadPacked(store.Path("w", 1, "blockinfo", coord.Region{X: 0, Z: 0}, PackedExt))
	require.NoError(t, err)
	require.NotNil(t, coarse)
	assert.Equal(t, -64, coarse.MinY())
	for _, p := range [][2]int{{0, 0}, {3, 7}, {255, 255}, {100, 17}} {
		assert.Equal(t, native.Word(p[0]*2, p[1]*2), coarse.Word(256+p[0], 256+p[1]), "sample %v", p)
	}
	assert.Equal(t, uint32(0), coarse.Word(0, 0))
	assert.Equal(t, uint32(0), coarse.Word(255, 300))
}

func TestPackedZoomMergeIdempotent(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	r := coord.Region{X: 2, Z: -3}
	native := gradientPacked(0)
	require.NoError(t, store.SavePacked("w", "blockinfo", r, native, 3))
	first := readAll(t, store.Root())

	require.NoError(t, store.SavePacked("w", "blockinfo", r, native, 3))
	assert.Equal(t, first, readAll(t, store.Root()))
}

func TestConcurrentMergesIntoSharedTile(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	colors := map[coord.Region]uint32{
		{X: 0, Z: 0}: 0xff000001,
		{X: 1, Z: 0}: 0xff000002,
		{X: 0, Z: 1}: 0xff000003,
		{X: 1, Z: 1}: 0xff000004,
	}

	var wg sync.WaitGroup
	for r, c := range colors {
		wg.Add(1)
		go func(r coord.Region, c uint32) {
			defer wg.Done()
			assert.NoError(t, store.SaveImage("w", "basic", r, filledImage(c), 1))
		}(r, c)
	}
	wg.Wait()

	img, err := store.ReadImage(store.Path("w", 1, "basic", coord.Region{}, ImageExt))
	require.NoError(t, err)
	assert.Equal(t, uint32(0xff000001), nrgbaAt(t, img, 10, 10))
	assert.Equal(t, uint32(0xff000002), nrgbaAt(t, img, 300, 10))
	assert.Equal(t, uint32(0xff000003), nrgbaAt(t, img, 10, 300))
	assert.Equal(t, uint32(0xff000004), nrgbaAt(t, img, 300, 300))
}

func TestWriteAtomicLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a", "b.json")
	require.NoError(t, WriteAtomic(path, []byte("one")))
	require.NoError(t, WriteAtomic(path, []byte("two")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func readAll(t *testing.T, root string) map[string][]byte {
	t.Helper()
	files := map[string][]byte{}
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files[path] = data
		return nil
	})
	require.NoError(t, err)
	return files
}
