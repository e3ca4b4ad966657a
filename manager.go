package tessera

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/b1naryth1ef/tessera/colors"
	"github.com/b1naryth1ef/tessera/coord"
	"github.com/b1naryth1ef/tessera/store"
	"github.com/b1naryth1ef/tessera/terrain"
	"github.com/b1naryth1ef/tessera/tile"
)

var (
	ErrRenderActive = errors.New("a render is already running for this world")
	ErrNoRender     = errors.New("no render is running for this world")
	ErrUnknownWorld = errors.New("unknown world")
	ErrWorldExists  = errors.New("world already added")
)

// Options configures a Manager.
type Options struct {
	// TilesDir is the root of the tile tree.
	TilesDir string
	// DataDir holds the per world checkpoints. Checkpoints are kept in memory when empty.
	DataDir string

	RenderThreads int
	IOThreads     int

	// Colors defaults to the built-in static palette.
	Colors     colors.Source
	Log        logrus.FieldLogger
	Registerer prometheus.Registerer

	ProgressInterval time.Duration
}

type worldState struct {
	rc *RenderContext
	cp *store.Checkpoints

	mu                sync.Mutex
	job               *Job
	background        *Job
	restartBackground bool
	removed           bool
}

// Manager owns the worlds and starts, pauses and cancels their render jobs. A world runs at most
// one foreground job (full or radius) and one background job, the latter stepping aside while a
// foreground job runs.
type Manager struct {
	opts    Options
	tiles   *tile.Store
	metrics *Metrics
	log     logrus.FieldLogger

	mu     sync.Mutex
	worlds map[string]*worldState
}

func NewManager(opts Options) (*Manager, error) {
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = time.Second
	}
	if opts.Colors == nil {
		static, err := colors.NewStatic(nil)
		if err != nil {
			return nil, err
		}
		opts.Colors = static
	}
	return &Manager{
		opts:    opts,
		tiles:   tile.NewStore(opts.TilesDir, nil),
		metrics: NewMetrics(opts.Registerer),
		log:     opts.Log,
		worlds:  make(map[string]*worldState),
	}, nil
}

func (m *Manager) Tiles() *tile.Store {
	return m.tiles
}

func (m *Manager) openCheckpoints(world string) (*store.Checkpoints, error) {
	if m.opts.DataDir == "" {
		return store.OpenMemory()
	}
	return store.Open(filepath.Join(m.opts.DataDir, world, "checkpoints"))
}

// AddWorld registers a world. A full render that was interrupted is resumed right away.
func (m *Manager) AddWorld(src terrain.Source, opts WorldOptions) error {
	name := src.Name()

	m.mu.Lock()
	if _, ok := m.worlds[name]; ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrWorldExists, name)
	}

	rc, err := NewRenderContext(src, m.tiles, m.opts.Colors, opts, m.log, m.metrics)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	cp, err := m.openCheckpoints(name)
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("failed to open checkpoints of %s: %w", name, err)
	}
	m.worlds[name] = &worldState{rc: rc, cp: cp}
	m.mu.Unlock()

	if cp.Ledger.Unfinished() {
		rc.Log.WithFields(logrus.Fields{
			"done":    cp.Ledger.Done(),
			"regions": cp.Ledger.Len(),
		}).Info("resuming interrupted full render")
		if _, err := m.StartFull(name, "resume"); err != nil {
			rc.Log.WithError(err).Warn("failed to resume full render")
		}
	}
	return nil
}

// RemoveWorld cancels the world's jobs, waits for them and persists its checkpoints.
func (m *Manager) RemoveWorld(name string) error {
	m.mu.Lock()
	ws, ok := m.worlds[name]
	delete(m.worlds, name)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownWorld, name)
	}

	ws.mu.Lock()
	ws.removed = true
	ws.restartBackground = false
	jobs := []*Job{ws.job, ws.background}
	ws.mu.Unlock()

	for _, j := range jobs {
		if j != nil {
			j.Cancel()
			<-j.Done()
		}
	}

	return errors.Join(ws.rc.Blocks.Save(), ws.rc.Biomes.Save(), ws.cp.Close())
}

// Worlds lists the registered worlds.
func (m *Manager) Worlds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.worlds))
	for name := range m.worlds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) world(name string) (*worldState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.worlds[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWorld, name)
	}
	return ws, nil
}

// StartFull renders every region of the world inside its border, resuming an unfinished one.
func (m *Manager) StartFull(world, starter string) (*Job, error) {
	ws, err := m.world(world)
	if err != nil {
		return nil, err
	}
	return m.start(ws, KindFull, starter, func(j *Job) error {
		return m.runFull(ws, j)
	})
}

// StartRadius renders the existing regions within radius blocks of center.
func (m *Manager) StartRadius(world, starter string, center coord.Block, radius int) (*Job, error) {
	ws, err := m.world(world)
	if err != nil {
		return nil, err
	}
	if radius <= 0 {
		return nil, fmt.Errorf("radius must be positive, got %d", radius)
	}
	return m.start(ws, KindRadius, starter, func(j *Job) error {
		return m.runRadius(ws, j, center, radius)
	})
}

// StartBackground keeps re-rendering changed chunks until stopped. While a foreground job runs
// the background job is deferred and nil is returned; it starts once the foreground job ends.
func (m *Manager) StartBackground(world string) (*Job, error) {
	ws, err := m.world(world)
	if err != nil {
		return nil, err
	}

	last, err := ws.cp.LastCheck()
	if err != nil {
		return nil, err
	}
	if last.IsZero() {
		if err := ws.cp.SetLastCheck(time.Now()); err != nil {
			return nil, err
		}
	}

	ws.mu.Lock()
	if ws.job != nil {
		ws.restartBackground = true
		ws.mu.Unlock()
		return nil, nil
	}
	ws.mu.Unlock()

	return m.start(ws, KindBackground, "background", func(j *Job) error {
		return m.runBackground(ws, j)
	})
}

// StopBackground stops background rendering for the world.
func (m *Manager) StopBackground(world string) error {
	ws, err := m.world(world)
	if err != nil {
		return err
	}
	ws.mu.Lock()
	ws.restartBackground = false
	j := ws.background
	ws.mu.Unlock()
	if j == nil {
		return ErrNoRender
	}
	j.Cancel()
	<-j.Done()
	return nil
}

func (m *Manager) start(ws *worldState, kind JobKind, starter string, run func(*Job) error) (*Job, error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if ws.removed {
		return nil, ErrUnknownWorld
	}
	if kind == KindBackground {
		if ws.background != nil {
			return nil, ErrRenderActive
		}
	} else {
		if ws.job != nil {
			return nil, ErrRenderActive
		}
		if ws.background != nil {
			ws.restartBackground = true
			ws.background.Cancel()
		}
	}

	j := newJob(kind, ws.rc.World.Name(), starter, renderThreads(m.opts.RenderThreads), ioThreads(m.opts.IOThreads))
	if kind == KindBackground {
		ws.background = j
	} else {
		ws.job = j
	}
	go m.execute(ws, j, run)
	return j, nil
}

func (m *Manager) execute(ws *worldState, j *Job, run func(*Job) error) {
	name, kind := ws.rc.World.Name(), j.Kind.String()
	log := ws.rc.Log.WithFields(logrus.Fields{
		"job":     j.ID.String(),
		"kind":    kind,
		"starter": j.Starter,
	})

	m.metrics.ActiveJobs.WithLabelValues(name, kind).Inc()
	j.progress.Start(m.opts.ProgressInterval, func(s Status) {
		m.metrics.Rate.WithLabelValues(name, kind).Set(s.Rate)
		m.metrics.ETA.WithLabelValues(name, kind).Set(s.ETA.Seconds())
		log.WithFields(logrus.Fields{
			"chunks": s.ProcessedChunks,
			"total":  s.TotalChunks,
			"rate":   fmt.Sprintf("%.1f", s.Rate),
			"eta":    s.ETA.Round(time.Second).String(),
		}).Debug("render progress")
	})
	log.Info("render started")

	func() {
		defer func() {
			if r := recover(); r != nil {
				j.fail(fmt.Errorf("render panicked: %v", r))
			}
		}()
		if err := run(j); err != nil {
			j.fail(err)
		}
	}()

	j.render.Shutdown()
	j.io.Shutdown()
	j.progress.Stop()

	if err := errors.Join(ws.cp.Flush(), ws.rc.Blocks.Save(), ws.rc.Biomes.Save()); err != nil {
		log.WithError(err).Warn("failed to persist checkpoints")
	}

	status := j.progress.Status()
	fields := logrus.Fields{
		"chunks":   status.ProcessedChunks,
		"regions":  j.progress.Regions(),
		"duration": time.Since(j.Started).Round(time.Millisecond).String(),
	}
	switch {
	case j.err != nil:
		log.WithFields(fields).WithError(j.err).Error("render failed")
	case j.Cancelled():
		log.WithFields(fields).Info("render cancelled")
	default:
		log.WithFields(fields).Info("render finished")
	}
	m.metrics.ActiveJobs.WithLabelValues(name, kind).Dec()
	m.metrics.Rate.WithLabelValues(name, kind).Set(0)
	m.metrics.ETA.WithLabelValues(name, kind).Set(0)

	ws.mu.Lock()
	if ws.job == j {
		ws.job = nil
	}
	if ws.background == j {
		ws.background = nil
	}
	restart := ws.restartBackground && ws.job == nil && ws.background == nil && !ws.removed
	if restart {
		ws.restartBackground = false
	}
	ws.mu.Unlock()
	close(j.done)

	if restart {
		if _, err := m.StartBackground(name); err != nil {
			log.WithError(err).Warn("failed to restart background render")
		}
	}
}

// jobs returns the foreground and background job of a world.
func (m *Manager) jobs(world string) (*worldState, *Job, *Job, error) {
	ws, err := m.world(world)
	if err != nil {
		return nil, nil, nil, err
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws, ws.job, ws.background, nil
}

// Cancel stops the world's foreground job, or its background job when no foreground job runs.
func (m *Manager) Cancel(world string) error {
	ws, fg, bg, err := m.jobs(world)
	if err != nil {
		return err
	}
	switch {
	case fg != nil:
		fg.Cancel()
	case bg != nil:
		ws.mu.Lock()
		ws.restartBackground = false
		ws.mu.Unlock()
		bg.Cancel()
	default:
		return ErrNoRender
	}
	return nil
}

func (m *Manager) Pause(world string) error {
	_, fg, bg, err := m.jobs(world)
	if err != nil {
		return err
	}
	if fg == nil && bg == nil {
		return ErrNoRender
	}
	for _, j := range []*Job{fg, bg} {
		if j != nil {
			j.Pause()
		}
	}
	return nil
}

func (m *Manager) Resume(world string) error {
	_, fg, bg, err := m.jobs(world)
	if err != nil {
		return err
	}
	if fg == nil && bg == nil {
		return ErrNoRender
	}
	for _, j := range []*Job{fg, bg} {
		if j != nil {
			j.Resume()
		}
	}
	return nil
}

// Status reports the progress of the foreground job, or of the background job.
func (m *Manager) Status(world string) (Status, error) {
	_, fg, bg, err := m.jobs(world)
	if err != nil {
		return Status{}, err
	}
	switch {
	case fg != nil:
		return fg.Status(), nil
	case bg != nil:
		return bg.Status(), nil
	}
	return Status{}, ErrNoRender
}

// Wait blocks until the world's foreground job ended and returns its error.
func (m *Manager) Wait(ctx context.Context, world string) error {
	_, fg, _, err := m.jobs(world)
	if err != nil {
		return err
	}
	if fg == nil {
		return nil
	}
	select {
	case <-fg.Done():
		return fg.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close removes every world.
func (m *Manager) Close() error {
	var errs []error
	for _, name := range m.Worlds() {
		errs = append(errs, m.RemoveWorld(name))
	}
	return errors.Join(errs...)
}
