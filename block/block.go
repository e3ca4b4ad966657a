// Package block describes block states and how the renderer treats them.
package block

import (
	"sort"
	"strings"
)

// State is a namespaced block id plus its properties in canonical "k=v,k=v" form (sorted by key).
type State struct {
	Name       string
	Properties string
}

// Air is returned when nothing renderable was found in a column.
var Air = State{Name: "minecraft:air"}

func (s State) String() string {
	if s.Properties == "" {
		return s.Name
	}
	return s.Name + "[" + s.Properties + "]"
}

// Key identifies the state for colour caches.
func (s State) Key() string {
	return s.Name + "/" + s.Properties
}

func (s State) IsZero() bool {
	return s.Name == ""
}

// Property returns a single property value.
func (s State) Property(key string) (string, bool) {
	for _, kv := range strings.Split(s.Properties, ",") {
		k, v, ok := strings.Cut(kv, "=")
		if ok && k == key {
			return v, true
		}
	}
	return "", false
}

// FormatProperties canonicalises a property map into the State.Properties form.
func FormatProperties(props map[string]string) string {
	if len(props) == 0 {
		return ""
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+props[k])
	}
	return strings.Join(parts, ",")
}

// ParseProperties is the inverse of FormatProperties.
func ParseProperties(raw string) map[string]string {
	result := make(map[string]string)
	if raw == "" {
		return result
	}
	for _, part := range strings.Split(raw, ",") {
		k, v, _ := strings.Cut(part, "=")
		result[k] = v
	}
	return result
}

// pass-through blocks never stop a column scan
var passThrough = map[string]struct{}{
	"minecraft:air":            {},
	"minecraft:cave_air":       {},
	"minecraft:void_air":       {},
	"minecraft:barrier":        {},
	"minecraft:light":          {},
	"minecraft:structure_void": {},
	"minecraft:dead_bush":      {},
	"minecraft:short_grass":    {},
	"minecraft:lily_pad":       {},
	"minecraft:torch":          {},
	"minecraft:wall_torch":     {},
}

func IsPassThrough(name string) bool {
	if name == "" {
		return true
	}
	_, ok := passThrough[name]
	return ok
}

func IsWater(name string) bool {
	return name == "minecraft:water" || name == "minecraft:bubble_column"
}

func IsLava(name string) bool {
	return name == "minecraft:lava"
}

func IsFluid(name string) bool {
	return IsWater(name) || IsLava(name)
}

// IsGlass reports whether the block is see-through glass, including stained variants and panes.
func IsGlass(name string) bool {
	if name == "minecraft:tinted_glass" {
		return false
	}
	return strings.HasSuffix(name, "glass") || strings.HasSuffix(name, "glass_pane")
}

var grassBlocks = map[string]struct{}{
	"minecraft:grass":       {},
	"minecraft:grass_block": {},
	"minecraft:tall_grass":  {},
	"minecraft:vine":        {},
	"minecraft:fern":        {},
	"minecraft:large_fern":  {},
}

// IsGrass reports whether the block is tinted by the biome grass colour map.
func IsGrass(name string) bool {
	_, ok := grassBlocks[name]
	return ok
}

var foliageBlocks = map[string]struct{}{
	"minecraft:oak_leaves":      {},
	"minecraft:jungle_leaves":   {},
	"minecraft:acacia_leaves":   {},
	"minecraft:dark_oak_leaves": {},
	"minecraft:mangrove_leaves": {},
	"minecraft:azalea_leaves":   {},
	"minecraft:cherry_leaves":   {},
}

// IsFoliage reports whether the block is tinted by the biome foliage colour map.
func IsFoliage(name string) bool {
	_, ok := foliageBlocks[name]
	return ok
}
