// Package web describes the tile tree to map viewers.
package web

import (
	"encoding/json"
	"path/filepath"

	"github.com/b1naryth1ef/tessera/tile"
)

// SettingsFile is written at the root of the tile tree.
const SettingsFile = "settings.json"

type Settings struct {
	Worlds []WorldData `json:"worlds"`
}

type WorldData struct {
	Name       string      `json:"name"`
	ZoomLevels int         `json:"zoomLevels"`
	MinY       int         `json:"minY"`
	SpawnX     int         `json:"spawnX"`
	SpawnZ     int         `json:"spawnZ"`
	Layers     []LayerData `json:"layers"`
	// Palettes name the files mapping blockinfo indices to block and biome names.
	Palettes map[string]string `json:"palettes,omitempty"`
}

type LayerData struct {
	Name     string  `json:"name"`
	TileSize int     `json:"tileSize"`
	Opacity  float64 `json:"opacity"`
	Format   string  `json:"format"`
}

// NewLayerData describes a tile layer. Overlay layers are drawn translucent on top of the others.
func NewLayerData(name string) LayerData {
	layer := LayerData{
		Name:     name,
		TileSize: tile.Size,
		Opacity:  1,
		Format:   tile.ImageExt,
	}
	switch name {
	case "night":
		layer.Opacity = 0.8
	case "blockinfo":
		layer.Opacity = 0
		layer.Format = "blockinfo"
	}
	return layer
}

// WriteSettings writes the settings next to the world directories of the tile tree.
func WriteSettings(tilesDir string, settings Settings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return tile.WriteAtomic(filepath.Join(tilesDir, SettingsFile), data)
}
