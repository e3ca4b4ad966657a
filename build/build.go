// Package build wires a configuration file into a running tessera.Manager.
package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/b1naryth1ef/tessera"
	"github.com/b1naryth1ef/tessera/anvil"
	"github.com/b1naryth1ef/tessera/colors"
	"github.com/b1naryth1ef/tessera/coord"
	"github.com/b1naryth1ef/tessera/dl"
	"github.com/b1naryth1ef/tessera/tile"
	"github.com/b1naryth1ef/tessera/web"
)

type Builder struct {
	cfg     *tessera.Config
	log     logrus.FieldLogger
	dl      *dl.Client
	worlds  map[string]*anvil.World
	assets  *colors.Assets
	colors  colors.Source
	manager *tessera.Manager

	settings web.Settings
}

func ensureDirectory(path string) error {
	return os.MkdirAll(path, os.ModePerm)
}

// New opens the configured worlds and loads the block colours, downloading the client jar when
// needed. Worlds are not rendered until Open adds them.
func New(ctx context.Context, cfg *tessera.Config, log logrus.FieldLogger, reg prometheus.Registerer) (*Builder, error) {
	for _, dir := range []string{cfg.Output, filepath.Join(cfg.Output, "tiles"), filepath.Join(cfg.Output, "res"), cfg.Data} {
		if err := ensureDirectory(dir); err != nil {
			return nil, err
		}
	}

	b := &Builder{
		cfg:    cfg,
		log:    log,
		dl:     dl.NewClient(),
		worlds: make(map[string]*anvil.World),
	}

	for _, wc := range cfg.Worlds {
		opts := anvil.Options{MinY: wc.MinY, RegionDir: wc.RegionDir, Log: log}
		w, err := anvil.Open(wc.Name, wc.Path, opts)
		if err != nil {
			b.closeWorlds()
			return nil, err
		}
		b.worlds[wc.Name] = w
	}

	src, err := b.loadColors(ctx)
	if err != nil {
		b.closeWorlds()
		return nil, err
	}
	b.colors = src

	manager, err := tessera.NewManager(tessera.Options{
		TilesDir:      filepath.Join(cfg.Output, "tiles"),
		DataDir:       cfg.Data,
		RenderThreads: cfg.RenderThreads,
		IOThreads:     cfg.IOThreads,
		Colors:        src,
		Log:           log,
		Registerer:    reg,
	})
	if err != nil {
		b.closeWorlds()
		return nil, err
	}
	b.manager = manager
	return b, nil
}

// version picks the configured game version, else the version that last saved a world.
func (b *Builder) version() string {
	if b.cfg.Version != "" {
		return b.cfg.Version
	}
	for _, wc := range b.cfg.Worlds {
		if v := b.worlds[wc.Name].Version(); v != "" {
			return v
		}
	}
	return ""
}

func (b *Builder) clientJarPath(ctx context.Context) (string, error) {
	if b.cfg.ClientJar != "" {
		return b.cfg.ClientJar, nil
	}

	version := b.version()
	name := version
	if name == "" {
		name = "latest"
	}
	path := filepath.Join(b.cfg.Output, "res", fmt.Sprintf("client-%s.jar", name))
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	b.log.WithFields(logrus.Fields{"version": name, "path": path}).Info("downloading client jar")
	if err := b.dl.DownloadClientJar(ctx, version, path); err != nil {
		return "", err
	}
	return path, nil
}

func (b *Builder) loadColors(ctx context.Context) (colors.Source, error) {
	path, err := b.clientJarPath(ctx)
	if err == nil {
		b.assets, err = colors.OpenClientJar(path)
	}
	if err == nil {
		var palette *colors.Palette
		palette, err = colors.NewPalette(b.assets)
		if err == nil {
			return palette, nil
		}
		b.assets.Close()
		b.assets = nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	b.log.WithError(err).Warn("client assets unavailable, using built-in block colours")
	return colors.NewStatic(nil)
}

func (b *Builder) Manager() *tessera.Manager {
	return b.manager
}

// Open adds the named worlds, or every configured world when none are named, to the manager and
// rewrites the viewer settings.
func (b *Builder) Open(names ...string) error {
	if len(names) == 0 {
		for _, wc := range b.cfg.Worlds {
			names = append(names, wc.Name)
		}
	}

	for _, name := range names {
		wc, ok := b.cfg.World(name)
		if !ok {
			return fmt.Errorf("%w: %s", tessera.ErrUnknownWorld, name)
		}
		opts := wc.Options()
		if err := b.manager.AddWorld(b.worlds[name], opts); err != nil {
			return err
		}
		b.settings.Worlds = append(b.settings.Worlds, b.worldData(wc, opts))
	}

	sort.Slice(b.settings.Worlds, func(i, j int) bool {
		return b.settings.Worlds[i].Name < b.settings.Worlds[j].Name
	})
	return web.WriteSettings(b.manager.Tiles().Root(), b.settings)
}

func (b *Builder) worldData(wc *tessera.WorldConfigBlock, opts tessera.WorldOptions) web.WorldData {
	w := b.worlds[wc.Name]
	spawn := w.Spawn()
	data := web.WorldData{
		Name:       wc.Name,
		ZoomLevels: min(max(opts.ZoomLevels, 0), tile.MaxZoom),
		MinY:       w.MinBuildHeight(),
		SpawnX:     spawn.X,
		SpawnZ:     spawn.Z,
	}
	for _, layer := range tessera.TileLayers(opts.Layers) {
		data.Layers = append(data.Layers, web.NewLayerData(layer))
		if layer == "blockinfo" {
			data.Palettes = map[string]string{
				"blocks": wc.Name + "/blocks." + tile.PackedExt,
				"biomes": wc.Name + "/biomes." + tile.PackedExt,
			}
		}
	}
	return data
}

// RenderFull renders a world completely. When ctx ends the render is cancelled, its queued tiles
// are still written, and it can be resumed later.
func (b *Builder) RenderFull(ctx context.Context, world string) error {
	_, err := b.manager.StartFull(world, "cli")
	if err != nil && !errors.Is(err, tessera.ErrRenderActive) {
		return err
	}
	// an interrupted render resumed by Open is waited for instead
	return b.wait(ctx, world)
}

func (b *Builder) RenderRadius(ctx context.Context, world string, center coord.Block, radius int) error {
	if _, err := b.manager.StartRadius(world, "cli", center, radius); err != nil {
		return err
	}
	return b.wait(ctx, world)
}

func (b *Builder) wait(ctx context.Context, world string) error {
	err := b.manager.Wait(ctx, world)
	if ctx.Err() == nil {
		return err
	}
	if err := b.manager.Cancel(world); err != nil && !errors.Is(err, tessera.ErrNoRender) {
		return err
	}
	if err := b.manager.Wait(context.Background(), world); err != nil {
		return err
	}
	return ctx.Err()
}

// Watch re-renders changed chunks of every opened world until ctx ends.
func (b *Builder) Watch(ctx context.Context) error {
	worlds := b.manager.Worlds()
	for _, name := range worlds {
		if _, err := b.manager.StartBackground(name); err != nil && !errors.Is(err, tessera.ErrRenderActive) {
			return err
		}
		b.log.WithField("world", name).Info("watching for changes")
	}

	<-ctx.Done()

	var errs []error
	for _, name := range worlds {
		if err := b.manager.StopBackground(name); err != nil && !errors.Is(err, tessera.ErrNoRender) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *Builder) logMissing() {
	var missing []string
	switch src := b.colors.(type) {
	case *colors.Palette:
		for state, err := range src.Missing() {
			b.log.WithError(err).WithField("state", state).Debug("no colour for block state")
			missing = append(missing, state)
		}
	case *colors.Static:
		missing = src.Missing()
	}
	if len(missing) > 0 {
		b.log.WithField("count", len(missing)).Warn("some block states had no colour and were skipped")
	}
}

func (b *Builder) closeWorlds() {
	for _, w := range b.worlds {
		w.Close()
	}
	if b.assets != nil {
		b.assets.Close()
	}
}

// Close stops every render and releases the worlds.
func (b *Builder) Close() error {
	err := b.manager.Close()
	b.logMissing()
	b.closeWorlds()
	return err
}
