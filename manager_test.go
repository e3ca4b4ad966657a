package tessera

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/b1naryth1ef/tessera/block"
	"github.com/b1naryth1ef/tessera/coord"
	"github.com/b1naryth1ef/tessera/store"
	"github.com/b1naryth1ef/tessera/terraintest"
	"github.com/b1naryth1ef/tessera/tile"
)

func newTestManager(t *testing.T) *Manager {
	log, _ := test.NewNullLogger()
	mgr, err := NewManager(Options{
		TilesDir:         t.TempDir(),
		RenderThreads:    1,
		IOThreads:        1,
		Log:              log,
		ProgressInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })
	return mgr
}

func testWorldOptions() WorldOptions {
	return WorldOptions{
		Layers:            []string{basicLayer, biomeLayer, heightmapLayer, blockInfoLayer},
		ZoomLevels:        1,
		TranslucentFluids: true,
		TranslucentGlass:  true,
	}
}

func waitJob(t *testing.T, mgr *Manager, world string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	require.NoError(t, mgr.Wait(ctx, world))
}

func centreChunk(r coord.Region) coord.Chunk {
	lo := r.MinChunk()
	return coord.Chunk{X: lo.X + coord.RegionChunks/2, Z: lo.Z + coord.RegionChunks/2}
}

func fileExists(t *testing.T, mgr *Manager, path string) bool {
	img, err := mgr.Tiles().ReadImage(path)
	require.NoError(t, err)
	return img != nil
}

func TestManagerFullRender(t *testing.T) {
	mgr := newTestManager(t)
	world := terraintest.NewFlatGrid("flat", 1)
	require.NoError(t, mgr.AddWorld(world, testWorldOptions()))

	j, err := mgr.StartFull("flat", "test")
	require.NoError(t, err)
	assert.Equal(t, KindFull, j.Kind)
	waitJob(t, mgr, "flat")
	require.NoError(t, j.Err())

	ws, err := mgr.world("flat")
	require.NoError(t, err)
	entries := ws.cp.Ledger.Entries()
	require.Len(t, entries, 9)
	assert.Equal(t, coord.Region{}, entries[0].Region, "the spiral starts at the spawn region")
	for _, e := range entries {
		assert.True(t, e.Done, e.Region.String())
	}
	assert.False(t, ws.cp.Ledger.Unfinished())
	assert.Equal(t, int64(9), j.progress.Regions())
	assert.Equal(t, int64(9*coord.RegionChunks*coord.RegionChunks), j.Status().ProcessedChunks)

	tiles := mgr.Tiles()
	for _, e := range entries {
		for _, layer := range []string{basicLayer, nightLayer, biomeLayer, heightmapLayer} {
			img, err := tiles.ReadImage(tiles.Path("flat", 0, layer, e.Region, tile.ImageExt))
			require.NoError(t, err)
			require.NotNil(t, img, "%s %s", layer, e.Region)
			assert.Equal(t, tile.Size, img.Bounds().Dx())
		}
		packed, err := tiles.ReadPacked(tiles.Path("flat", 0, blockInfoLayer, e.Region, tile.PackedExt))
		require.NoError(t, err)
		require.NotNil(t, packed)
		assert.Len(t, packed.Bytes(), tile.PackedLen)
		assert.Equal(t, -64, packed.MinY())

		blockIdx, _, y := tile.Unpack(packed.Word(100, 200))
		assert.Equal(t, "minecraft:grass_block", ws.rc.Blocks.Names()[blockIdx])
		assert.Equal(t, 4, y)
	}

	for _, coarse := range []coord.Region{{X: -1, Z: -1}, {X: 0, Z: -1}, {X: -1, Z: 0}, {X: 0, Z: 0}} {
		assert.True(t, fileExists(t, mgr, tiles.Path("flat", 1, basicLayer, coarse, tile.ImageExt)), coarse.String())
	}
	assert.False(t, fileExists(t, mgr, tiles.Path("flat", 2, basicLayer, coord.Region{}, tile.ImageExt)))

	_, err = mgr.Status("flat")
	assert.ErrorIs(t, err, ErrNoRender)
}

func TestManagerCancelAndResume(t *testing.T) {
	mgr := newTestManager(t)
	world := terraintest.NewFlatGrid("flat", 1)
	opts := testWorldOptions()
	opts.Layers = []string{basicLayer}
	require.NoError(t, mgr.AddWorld(world, opts))

	fifth := coord.Region{X: -1, Z: 1}
	world.OnChunk(func(c coord.Chunk) {
		if c == centreChunk(fifth) {
			mgr.Cancel("flat")
		}
	})

	j, err := mgr.StartFull("flat", "test")
	require.NoError(t, err)
	waitJob(t, mgr, "flat")
	assert.True(t, j.Cancelled())
	assert.NoError(t, j.Err())

	ws, err := mgr.world("flat")
	require.NoError(t, err)
	require.True(t, ws.cp.Ledger.Unfinished())
	assert.Equal(t, 4, ws.cp.Ledger.Done())
	pending := ws.cp.Ledger.Pending()
	require.Len(t, pending, 5)
	assert.Equal(t, fifth, pending[0])

	tiles := mgr.Tiles()
	assert.False(t, fileExists(t, mgr, tiles.Path("flat", 0, basicLayer, fifth, tile.ImageExt)))

	before := make(map[coord.Region]int)
	regions, err := world.Regions()
	require.NoError(t, err)
	for _, r := range regions {
		before[r] = world.Loads(centreChunk(r))
	}

	world.OnChunk(nil)
	_, err = mgr.StartFull("flat", "test")
	require.NoError(t, err)
	waitJob(t, mgr, "flat")

	var rescanned []coord.Region
	for _, r := range regions {
		if world.Loads(centreChunk(r)) > before[r] {
			rescanned = append(rescanned, r)
		}
	}
	assert.ElementsMatch(t, pending, rescanned)
	assert.False(t, ws.cp.Ledger.Unfinished())
	assert.Equal(t, 9, ws.cp.Ledger.Done())
	assert.True(t, fileExists(t, mgr, tiles.Path("flat", 0, basicLayer, fifth, tile.ImageExt)))
}

func TestManagerResumesOnAdd(t *testing.T) {
	log, _ := test.NewNullLogger()
	dataDir := t.TempDir()
	tilesDir := t.TempDir()

	cp, err := store.Open(filepath.Join(dataDir, "flat", "checkpoints"))
	require.NoError(t, err)
	require.NoError(t, cp.Ledger.Reset([]coord.Region{{X: 0, Z: 0}, {X: 1, Z: 0}}))
	require.NoError(t, cp.Ledger.MarkDone(coord.Region{X: 0, Z: 0}))
	require.NoError(t, cp.Close())

	mgr, err := NewManager(Options{TilesDir: tilesDir, DataDir: dataDir, RenderThreads: 1, IOThreads: 1, Log: log})
	require.NoError(t, err)
	defer mgr.Close()

	world := terraintest.NewFlatGrid("flat", 1)
	release := make(chan struct{})
	world.OnChunk(func(coord.Chunk) { <-release })
	opts := testWorldOptions()
	opts.Layers = []string{basicLayer}
	require.NoError(t, mgr.AddWorld(world, opts))

	_, err = mgr.StartFull("flat", "test")
	assert.ErrorIs(t, err, ErrRenderActive)
	close(release)
	waitJob(t, mgr, "flat")

	assert.Equal(t, 0, world.Loads(centreChunk(coord.Region{X: 0, Z: 0})))
	assert.Equal(t, 1, world.Loads(centreChunk(coord.Region{X: 1, Z: 0})))
	assert.Equal(t, 0, world.Loads(centreChunk(coord.Region{X: -1, Z: -1})))
}

func TestManagerPause(t *testing.T) {
	mgr := newTestManager(t)
	world := terraintest.NewFlatGrid("flat", 1)
	opts := testWorldOptions()
	opts.Layers = []string{basicLayer}
	require.NoError(t, mgr.AddWorld(world, opts))

	started := make(chan struct{})
	world.OnChunk(func(c coord.Chunk) {
		if c == (coord.Chunk{}) {
			select {
			case <-started:
			default:
				close(started)
			}
		}
	})

	j, err := mgr.StartFull("flat", "test")
	require.NoError(t, err)
	<-started
	require.NoError(t, mgr.Pause("flat"))
	assert.True(t, j.Paused())

	// a row that passed the gate may still finish
	time.Sleep(100 * time.Millisecond)
	paused := j.Status().ProcessedChunks
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, paused, j.Status().ProcessedChunks)
	assert.Less(t, paused, int64(9*coord.RegionChunks*coord.RegionChunks))

	status, err := mgr.Status("flat")
	require.NoError(t, err)
	assert.Equal(t, int64(9*coord.RegionChunks*coord.RegionChunks), status.TotalChunks)

	require.NoError(t, mgr.Resume("flat"))
	waitJob(t, mgr, "flat")
	assert.Equal(t, int64(9*coord.RegionChunks*coord.RegionChunks), j.Status().ProcessedChunks)
}

func TestManagerRadius(t *testing.T) {
	mgr := newTestManager(t)
	world := terraintest.NewFlatGrid("flat", 1)
	opts := testWorldOptions()
	opts.Layers = []string{basicLayer}
	require.NoError(t, mgr.AddWorld(world, opts))

	_, err := mgr.StartRadius("flat", "test", coord.Block{}, 0)
	assert.Error(t, err)

	j, err := mgr.StartRadius("flat", "test", coord.Block{X: 0, Z: 0}, 100)
	require.NoError(t, err)
	assert.Equal(t, KindRadius, j.Kind)
	waitJob(t, mgr, "flat")

	tiles := mgr.Tiles()
	for _, r := range []coord.Region{{X: 0, Z: 0}, {X: -1, Z: 0}, {X: 0, Z: -1}, {X: -1, Z: -1}} {
		assert.True(t, fileExists(t, mgr, tiles.Path("flat", 0, basicLayer, r, tile.ImageExt)), r.String())
	}
	assert.False(t, fileExists(t, mgr, tiles.Path("flat", 0, basicLayer, coord.Region{X: 1, Z: 1}, tile.ImageExt)))

	assert.Positive(t, world.Loads(coord.Chunk{X: 0, Z: 0}))
	assert.Zero(t, world.Loads(coord.Chunk{X: 10, Z: 10}))

	img, err := tiles.ReadImage(tiles.Path("flat", 0, basicLayer, coord.Region{}, tile.ImageExt))
	require.NoError(t, err)
	_, _, _, inside := img.At(10, 10).RGBA()
	_, _, _, outside := img.At(300, 300).RGBA()
	assert.NotZero(t, inside)
	assert.Zero(t, outside)

	ws, err := mgr.world("flat")
	require.NoError(t, err)
	assert.Zero(t, ws.cp.Ledger.Len(), "radius renders leave the ledger alone")
}

func TestManagerBackground(t *testing.T) {
	mgr := newTestManager(t)
	world := terraintest.NewFlatGrid("flat", 1)
	opts := testWorldOptions()
	opts.Layers = []string{basicLayer}
	opts.BackgroundInterval = 10 * time.Millisecond
	require.NoError(t, mgr.AddWorld(world, opts))

	j, err := mgr.StartBackground("flat")
	require.NoError(t, err)
	require.NotNil(t, j)
	assert.Equal(t, KindBackground, j.Kind)

	_, err = mgr.StartBackground("flat")
	assert.ErrorIs(t, err, ErrRenderActive)

	changed := coord.Chunk{X: 5, Z: 5}
	world.Touch(time.Now().Add(time.Second), changed)

	tiles := mgr.Tiles()
	path := tiles.Path("flat", 0, basicLayer, coord.Region{}, tile.ImageExt)
	assert.Eventually(t, func() bool {
		img, err := tiles.ReadImage(path)
		return err == nil && img != nil
	}, 10*time.Second, 10*time.Millisecond)

	assert.Positive(t, world.Loads(changed))
	assert.Zero(t, world.Loads(coord.Chunk{X: 20, Z: 20}))

	require.NoError(t, mgr.StopBackground("flat"))
	assert.ErrorIs(t, mgr.StopBackground("flat"), ErrNoRender)
}

func TestManagerBackgroundYieldsToForeground(t *testing.T) {
	mgr := newTestManager(t)
	world := terraintest.NewFlatGrid("flat", 0)
	opts := testWorldOptions()
	opts.Layers = []string{basicLayer}
	opts.BackgroundInterval = 10 * time.Millisecond
	require.NoError(t, mgr.AddWorld(world, opts))

	bg, err := mgr.StartBackground("flat")
	require.NoError(t, err)

	_, err = mgr.StartFull("flat", "test")
	require.NoError(t, err)
	<-bg.Done()
	waitJob(t, mgr, "flat")

	assert.Eventually(t, func() bool {
		_, fg, restarted, err := mgr.jobs("flat")
		return err == nil && fg == nil && restarted != nil && restarted != bg
	}, 5*time.Second, 10*time.Millisecond)
}

func TestManagerErrors(t *testing.T) {
	mgr := newTestManager(t)

	_, err := mgr.StartFull("missing", "test")
	assert.ErrorIs(t, err, ErrUnknownWorld)
	assert.ErrorIs(t, mgr.Cancel("missing"), ErrUnknownWorld)

	world := terraintest.NewFlatGrid("flat", 0)
	require.NoError(t, mgr.AddWorld(world, testWorldOptions()))
	assert.ErrorIs(t, mgr.AddWorld(world, testWorldOptions()), ErrWorldExists)
	assert.ErrorIs(t, mgr.AddWorld(terraintest.NewFlatGrid("other", 0), WorldOptions{Layers: []string{"thermal"}}), ErrUnknownLayer)

	assert.ErrorIs(t, mgr.Cancel("flat"), ErrNoRender)
	assert.ErrorIs(t, mgr.Pause("flat"), ErrNoRender)
	assert.ErrorIs(t, mgr.Resume("flat"), ErrNoRender)
	assert.ErrorIs(t, mgr.StopBackground("flat"), ErrNoRender)

	release := make(chan struct{})
	world.OnChunk(func(coord.Chunk) { <-release })
	j, err := mgr.StartFull("flat", "test")
	require.NoError(t, err)
	require.NoError(t, mgr.Pause("flat"))
	_, err = mgr.StartFull("flat", "test")
	assert.ErrorIs(t, err, ErrRenderActive)
	_, err = mgr.StartRadius("flat", "test", coord.Block{}, 10)
	assert.ErrorIs(t, err, ErrRenderActive)

	require.NoError(t, mgr.Cancel("flat"))
	require.NoError(t, mgr.Resume("flat"))
	close(release)
	<-j.Done()
	assert.True(t, j.Cancelled())

	assert.Equal(t, []string{"flat"}, mgr.Worlds())
	require.NoError(t, mgr.RemoveWorld("flat"))
	assert.Empty(t, mgr.Worlds())
	assert.ErrorIs(t, mgr.RemoveWorld("flat"), ErrUnknownWorld)
}

func TestManagerFullRenderInsideBorder(t *testing.T) {
	mgr := newTestManager(t)
	world := terraintest.NewFlatGrid("flat", 1)
	world.SetBorderSize(1024)
	opts := testWorldOptions()
	opts.Layers = []string{basicLayer}
	require.NoError(t, mgr.AddWorld(world, opts))

	_, err := mgr.StartFull("flat", "test")
	require.NoError(t, err)
	waitJob(t, mgr, "flat")

	ws, err := mgr.world("flat")
	require.NoError(t, err)
	var rendered []coord.Region
	for _, e := range ws.cp.Ledger.Entries() {
		rendered = append(rendered, e.Region)
	}
	inside := []coord.Region{{X: -1, Z: -1}, {X: 0, Z: -1}, {X: -1, Z: 0}, {X: 0, Z: 0}}
	assert.ElementsMatch(t, inside, rendered)

	tiles := mgr.Tiles()
	for _, r := range []coord.Region{{X: 1, Z: 1}, {X: 1, Z: -1}, {X: -1, Z: 1}} {
		assert.False(t, fileExists(t, mgr, tiles.Path("flat", 0, basicLayer, r, tile.ImageExt)), r.String())
		assert.Zero(t, world.Loads(centreChunk(r)), r.String())
	}
}

func TestManagerFullRenderStartsAtSpawn(t *testing.T) {
	mgr := newTestManager(t)
	world := terraintest.NewFlatGrid("flat", 1)
	world.SetSpawn(coord.Block{X: 600, Z: 600})
	opts := testWorldOptions()
	opts.Layers = []string{basicLayer}
	require.NoError(t, mgr.AddWorld(world, opts))

	_, err := mgr.StartFull("flat", "test")
	require.NoError(t, err)
	waitJob(t, mgr, "flat")

	ws, err := mgr.world("flat")
	require.NoError(t, err)
	entries := ws.cp.Ledger.Entries()
	require.Len(t, entries, 9)
	assert.Equal(t, coord.Region{X: 1, Z: 1}, entries[0].Region)
	var ring []coord.Region
	for _, e := range entries[1:4] {
		ring = append(ring, e.Region)
	}
	assert.ElementsMatch(t, []coord.Region{{X: 1, Z: 0}, {X: 0, Z: 0}, {X: 0, Z: 1}}, ring, "neighbours of the spawn region come next")
}

func TestManagerBackgroundSkipsOutsideBorder(t *testing.T) {
	mgr := newTestManager(t)
	world := terraintest.NewFlatGrid("flat", 1)
	world.SetBorderSize(1024)
	opts := testWorldOptions()
	opts.Layers = []string{basicLayer}
	opts.BackgroundInterval = 10 * time.Millisecond
	require.NoError(t, mgr.AddWorld(world, opts))

	_, err := mgr.StartBackground("flat")
	require.NoError(t, err)

	outside := coord.Chunk{X: 40, Z: 40}
	inside := coord.Chunk{X: 5, Z: 5}
	world.Touch(time.Now().Add(time.Second), outside, inside)

	tiles := mgr.Tiles()
	assert.Eventually(t, func() bool {
		img, err := tiles.ReadImage(tiles.Path("flat", 0, basicLayer, coord.Region{}, tile.ImageExt))
		return err == nil && img != nil
	}, 10*time.Second, 10*time.Millisecond)
	require.NoError(t, mgr.StopBackground("flat"))

	assert.Positive(t, world.Loads(inside))
	assert.Zero(t, world.Loads(outside))
	assert.False(t, fileExists(t, mgr, tiles.Path("flat", 0, basicLayer, outside.Region(), tile.ImageExt)))
}

func TestManagerKeepsPixelsOfUngeneratedChunks(t *testing.T) {
	var sand atomic.Bool
	world := terraintest.NewWorld("flat", -64, func(x, z int) terraintest.Column {
		col := terraintest.Flat(x, z)
		if sand.Load() {
			col.Blocks[len(col.Blocks)-1] = block.State{Name: "minecraft:sand"}
		}
		return col
	}, coord.Region{})

	mgr := newTestManager(t)
	opts := testWorldOptions()
	opts.Layers = []string{basicLayer}
	require.NoError(t, mgr.AddWorld(world, opts))

	_, err := mgr.StartFull("flat", "test")
	require.NoError(t, err)
	waitJob(t, mgr, "flat")

	tiles := mgr.Tiles()
	path := tiles.Path("flat", 0, basicLayer, coord.Region{}, tile.ImageExt)
	before, err := tiles.ReadImage(path)
	require.NoError(t, err)
	require.NotNil(t, before)

	world.RemoveChunk(coord.Chunk{X: 1, Z: 1})
	sand.Store(true)
	_, err = mgr.StartFull("flat", "test")
	require.NoError(t, err)
	waitJob(t, mgr, "flat")

	after, err := tiles.ReadImage(path)
	require.NoError(t, err)
	require.NotNil(t, after)
	assert.Equal(t, before.At(20, 20), after.At(20, 20), "the removed chunk keeps its pixels")
	assert.NotEqual(t, before.At(100, 100), after.At(100, 100), "generated chunks are repainted")
}

func TestManagerProgressGaugesPerKind(t *testing.T) {
	mgr := newTestManager(t)
	world := terraintest.NewFlatGrid("flat", 0)
	opts := testWorldOptions()
	opts.Layers = []string{basicLayer}
	opts.BackgroundInterval = time.Hour
	require.NoError(t, mgr.AddWorld(world, opts))

	bg, err := mgr.StartBackground("flat")
	require.NoError(t, err)

	full := KindFull.String()
	mgr.metrics.Rate.WithLabelValues("flat", full).Set(42)
	mgr.metrics.ETA.WithLabelValues("flat", full).Set(7)

	require.NoError(t, mgr.StopBackground("flat"))
	<-bg.Done()

	assert.Equal(t, 42.0, testutil.ToFloat64(mgr.metrics.Rate.WithLabelValues("flat", full)))
	assert.Equal(t, 7.0, testutil.ToFloat64(mgr.metrics.ETA.WithLabelValues("flat", full)))
	background := KindBackground.String()
	assert.Zero(t, testutil.ToFloat64(mgr.metrics.Rate.WithLabelValues("flat", background)))
	assert.Zero(t, testutil.ToFloat64(mgr.metrics.ETA.WithLabelValues("flat", background)))
}
