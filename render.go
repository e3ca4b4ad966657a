package tessera

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/b1naryth1ef/tessera/area"
	"github.com/b1naryth1ef/tessera/coord"
)

func (m *Manager) newTask(ws *worldState, j *Job, r coord.Region, a area.Area) *scanTask {
	return &scanTask{rc: ws.rc, job: j, region: r, area: a}
}

// submit counts the tasks into the job's total and hands them to the render pool in order. It
// stops early, without error, when the job is cancelled. Tasks that never reach the pool are
// finished right away.
func submit(j *Job, tasks []*scanTask) error {
	for _, task := range tasks {
		j.progress.AddTotal(int64(task.chunkCount()))
	}

	finish := func(rest []*scanTask) {
		for _, task := range rest {
			if task.onFinish != nil {
				task.onFinish()
			}
		}
	}
	for i, task := range tasks {
		if j.Cancelled() {
			finish(tasks[i:])
			return nil
		}
		if err := j.render.Submit(task.run); err != nil {
			finish(tasks[i:])
			return err
		}
	}
	return nil
}

// runFull renders the world inside its border, region by region in a spiral around the spawn.
// The order is stored in the ledger first, so an interrupted render continues where it stopped.
func (m *Manager) runFull(ws *worldState, j *Job) error {
	world := ws.rc.World
	ledger := ws.cp.Ledger
	border := world.Border()

	var regions []coord.Region
	if ledger.Unfinished() {
		regions = ledger.Pending()
		ws.rc.Log.WithFields(logrus.Fields{
			"pending": len(regions),
			"done":    ledger.Done(),
		}).Info("continuing full render from ledger")
	} else {
		all, err := world.Regions()
		if err != nil {
			return fmt.Errorf("failed to list regions: %w", err)
		}
		inside := make([]coord.Region, 0, len(all))
		for _, r := range all {
			if border.ContainsRegion(r) {
				inside = append(inside, r)
			}
		}
		regions = coord.RegionSpiral(world.Spawn().Region(), inside)
		if err := ledger.Reset(regions); err != nil {
			return fmt.Errorf("failed to write ledger: %w", err)
		}
	}

	tasks := make([]*scanTask, 0, len(regions))
	for _, r := range regions {
		task := m.newTask(ws, j, r, border)
		task.onSaved = func(r coord.Region) {
			if err := ledger.MarkDone(r); err != nil {
				ws.rc.Log.WithError(err).WithField("region", r.String()).Warn("failed to update ledger")
			}
		}
		tasks = append(tasks, task)
	}
	return submit(j, tasks)
}

// runRadius renders the existing regions touched by a circle, nearest chunks first.
func (m *Manager) runRadius(ws *worldState, j *Job, center coord.Block, radius int) error {
	world := ws.rc.World
	all, err := world.Regions()
	if err != nil {
		return fmt.Errorf("failed to list regions: %w", err)
	}
	existing := make(map[coord.Region]struct{}, len(all))
	for _, r := range all {
		existing[r] = struct{}{}
	}

	a := area.Intersection{area.NewCircle(center.X, center.Z, radius), world.Border()}
	chunkRadius := radius>>coord.ChunkShift + 1
	regions := coord.ChunkSpiral(center.Chunk(), chunkRadius, func(r coord.Region) bool {
		_, ok := existing[r]
		return ok && a.ContainsRegion(r)
	})

	tasks := make([]*scanTask, 0, len(regions))
	for _, r := range regions {
		tasks = append(tasks, m.newTask(ws, j, r, a))
	}
	return submit(j, tasks)
}

// runBackground polls the world for changed chunks every interval until the job is cancelled.
func (m *Manager) runBackground(ws *worldState, j *Job) error {
	ticker := time.NewTicker(ws.rc.Options.BackgroundInterval)
	defer ticker.Stop()
	for {
		select {
		case <-j.ctx.Done():
			return nil
		case <-ticker.C:
		}
		if err := m.backgroundPass(ws, j); err != nil {
			ws.rc.Log.WithError(err).Warn("background render pass failed")
		}
	}
}

// backgroundPass moves changed chunks into the dirty set and renders up to the configured number
// of them. Chunks of regions that were not saved go back into the set.
func (m *Manager) backgroundPass(ws *worldState, j *Job) error {
	world := ws.rc.World
	cp := ws.cp

	last, err := cp.LastCheck()
	if err != nil {
		return err
	}
	now := time.Now()
	changed, err := world.ChangedChunksSince(last)
	if err != nil {
		return fmt.Errorf("failed to collect changed chunks: %w", err)
	}
	cp.Dirty.Add(changed...)
	if err := cp.SetLastCheck(now); err != nil {
		return err
	}

	chunks := cp.Dirty.Pop(ws.rc.Options.BackgroundMaxChunks)
	if len(chunks) == 0 {
		return cp.Flush()
	}

	border := world.Border()
	byRegion := make(map[coord.Region]map[coord.Chunk]struct{})
	for _, c := range chunks {
		r := c.Region()
		if !border.ContainsRegion(r) {
			continue
		}
		if byRegion[r] == nil {
			byRegion[r] = make(map[coord.Chunk]struct{})
		}
		byRegion[r][c] = struct{}{}
	}

	regions := make([]coord.Region, 0, len(byRegion))
	for r := range byRegion {
		regions = append(regions, r)
	}
	sort.Slice(regions, func(a, b int) bool {
		if regions[a].Z != regions[b].Z {
			return regions[a].Z < regions[b].Z
		}
		return regions[a].X < regions[b].X
	})

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		saved = make(map[coord.Region]bool)
	)
	tasks := make([]*scanTask, 0, len(regions))
	for _, r := range regions {
		task := m.newTask(ws, j, r, border)
		task.filter = byRegion[r]
		task.onSaved = func(r coord.Region) {
			mu.Lock()
			saved[r] = true
			mu.Unlock()
		}
		task.onFinish = wg.Done
		wg.Add(1)
		tasks = append(tasks, task)
	}

	ws.rc.Log.WithFields(logrus.Fields{
		"chunks":  len(chunks),
		"regions": len(regions),
	}).Debug("rendering changed chunks")

	submitErr := submit(j, tasks)
	wg.Wait()

	for r, set := range byRegion {
		if saved[r] {
			continue
		}
		for c := range set {
			cp.Dirty.Add(c)
		}
	}
	if err := cp.Flush(); err != nil {
		return err
	}
	return submitErr
}
