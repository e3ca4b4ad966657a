package tessera

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/b1naryth1ef/tessera/area"
	"github.com/b1naryth1ef/tessera/coord"
	"github.com/b1naryth1ef/tessera/terrain"
)

// scanTask renders one region: it scans the region's columns plus a halo, runs every layer on the
// shared cache and hands the saves to the job's I/O pool.
type scanTask struct {
	rc     *RenderContext
	job    *Job
	region coord.Region
	area   area.Area
	// filter restricts the scan to these chunks when not nil.
	filter map[coord.Chunk]struct{}
	// onSaved runs once every layer of the region was saved.
	onSaved func(coord.Region)
	// onFinish runs exactly once when the task and its saves are over, whatever the outcome.
	onFinish func()
}

func (t *scanTask) wanted(c coord.Chunk) bool {
	if t.filter != nil {
		if _, ok := t.filter[c]; !ok {
			return false
		}
	}
	return t.area.ContainsChunk(c)
}

// chunkCount is the number of chunks the task will scan.
func (t *scanTask) chunkCount() int {
	var count int
	minChunk := t.region.MinChunk()
	for cz := minChunk.Z; cz < minChunk.Z+coord.RegionChunks; cz++ {
		for cx := minChunk.X; cx < minChunk.X+coord.RegionChunks; cx++ {
			if t.wanted(coord.Chunk{X: cx, Z: cz}) {
				count++
			}
		}
	}
	return count
}

func (t *scanTask) run() {
	log := t.rc.Log.WithFields(logrus.Fields{"job": t.job.ID.String(), "region": t.region.String()})
	submitted := false

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("scan task panicked")
			t.rc.Metrics.TaskFailures.WithLabelValues(t.rc.World.Name()).Inc()
		}
		if !submitted && t.onFinish != nil {
			t.onFinish()
		}
	}()

	layers, err := t.scan(t.job.ctx, log)
	if errors.Is(err, context.Canceled) {
		log.Debug("scan task cancelled")
		return
	} else if err != nil {
		log.WithError(err).Error("scan task failed")
		t.rc.Metrics.TaskFailures.WithLabelValues(t.rc.World.Name()).Inc()
		return
	}

	if err := t.job.ctx.Err(); err != nil {
		return
	}

	// saves that were handed over finish even when the job is cancelled meanwhile
	saveCtx := context.WithoutCancel(t.job.ctx)
	err = t.job.io.Submit(func() {
		t.save(saveCtx, layers, log)
	})
	if err != nil {
		log.WithError(err).Warn("could not queue tile save")
		return
	}
	submitted = true
}

func (t *scanTask) scan(ctx context.Context, log logrus.FieldLogger) ([]LayerRenderer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cache := NewScanCache(t.region)
	layers := t.rc.newLayers(t.region)
	for _, layer := range layers {
		layer.Allocate()
	}

	scanned := make(map[coord.Chunk]bool)
	minChunk := t.region.MinChunk()
	for cz := minChunk.Z; cz < minChunk.Z+coord.RegionChunks; cz++ {
		if err := t.job.gate.Wait(ctx); err != nil {
			return nil, err
		}

		var processed int
		for cx := minChunk.X; cx < minChunk.X+coord.RegionChunks; cx++ {
			c := coord.Chunk{X: cx, Z: cz}
			if !t.wanted(c) {
				continue
			}
			processed++

			chunk, err := t.rc.World.Chunk(c)
			if err != nil {
				log.WithError(err).WithField("chunk", c.String()).Warn("failed to load chunk")
				continue
			}
			if chunk == nil {
				continue
			}
			t.scanChunk(cache, c, chunk, func(x, z int) bool { return true }, true)
			scanned[c] = true
		}
		t.job.progress.AddChunks(processed)
		t.rc.Metrics.ChunksProcessed.WithLabelValues(t.rc.World.Name()).Add(float64(processed))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := t.scanHalo(cache, scanned, log); err != nil {
		return nil, err
	}

	for _, layer := range layers {
		layer.Scan(t.area, cache)
	}
	return layers, nil
}

// scanHalo scans the edge columns of unscanned chunks bordering scanned ones, so shading at the
// edge of the scanned area sees its neighbours.
func (t *scanTask) scanHalo(cache *ScanCache, scanned map[coord.Chunk]bool, log logrus.FieldLogger) error {
	edges := make(map[coord.Chunk][4]bool)
	for c := range scanned {
		for side, n := range [4]coord.Chunk{
			{X: c.X - 1, Z: c.Z}, // west neighbour, its east edge
			{X: c.X + 1, Z: c.Z},
			{X: c.X, Z: c.Z - 1},
			{X: c.X, Z: c.Z + 1},
		} {
			if scanned[n] {
				continue
			}
			e := edges[n]
			e[side] = true
			edges[n] = e
		}
	}

	for n, sides := range edges {
		if err := t.job.ctx.Err(); err != nil {
			return err
		}
		chunk, err := t.rc.World.Chunk(n)
		if err != nil {
			log.WithError(err).WithField("chunk", n.String()).Debug("failed to load halo chunk")
			continue
		}
		if chunk == nil {
			continue
		}
		t.scanChunk(cache, n, chunk, func(x, z int) bool {
			return (sides[0] && x == 15) || (sides[1] && x == 0) || (sides[2] && z == 15) || (sides[3] && z == 0)
		}, false)
	}
	return nil
}

func (t *scanTask) scanChunk(cache *ScanCache, c coord.Chunk, chunk terrain.Chunk, keep func(x, z int) bool, target bool) {
	origin := t.region.MinBlock()
	base := c.MinBlock()
	for z := 0; z < coord.ChunkSize; z++ {
		for x := 0; x < coord.ChunkSize; x++ {
			if !keep(x, z) {
				continue
			}
			cache.Set(base.X+x-origin.X, base.Z+z-origin.Z, ScanColumn(chunk, x, z, t.rc.Scan), target)
		}
	}
}

func (t *scanTask) save(ctx context.Context, layers []LayerRenderer, log logrus.FieldLogger) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("tile save panicked")
			t.rc.Metrics.TaskFailures.WithLabelValues(t.rc.World.Name()).Inc()
		}
		if t.onFinish != nil {
			t.onFinish()
		}
	}()

	var errs []error
	for _, layer := range layers {
		if err := layer.Save(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		log.WithError(fmt.Errorf("failed to save region tiles: %w", err)).Warn("tile save failed")
		t.rc.Metrics.TaskFailures.WithLabelValues(t.rc.World.Name()).Inc()
		return
	}

	t.job.progress.AddRegion()
	t.rc.Metrics.RegionsRendered.WithLabelValues(t.rc.World.Name()).Inc()
	if t.onSaved != nil {
		t.onSaved(t.region)
	}
}
