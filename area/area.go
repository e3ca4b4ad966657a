// Package area bounds a render. Every Area answers containment at block, chunk and region
// granularity, and the coarser answers always include the finer ones: a block inside the area
// implies its chunk and region are inside too.
package area

import (
	"math"

	"github.com/b1naryth1ef/tessera/coord"
	"github.com/go-gl/mathgl/mgl64"
)

type Area interface {
	ContainsBlock(b coord.Block) bool
	ContainsChunk(c coord.Chunk) bool
	ContainsRegion(r coord.Region) bool
}

// Rect is an axis-aligned rectangle with inclusive block bounds.
type Rect struct {
	MinX, MinZ int
	MaxX, MaxZ int
}

func NewRect(x1, z1, x2, z2 int) Rect {
	return Rect{
		MinX: min(x1, x2),
		MinZ: min(z1, z2),
		MaxX: max(x1, x2),
		MaxZ: max(z1, z2),
	}
}

func (r Rect) ContainsBlock(b coord.Block) bool {
	return b.X >= r.MinX && b.X <= r.MaxX && b.Z >= r.MinZ && b.Z <= r.MaxZ
}

func (r Rect) ContainsChunk(c coord.Chunk) bool {
	return c.X >= r.MinX>>coord.ChunkShift && c.X <= r.MaxX>>coord.ChunkShift &&
		c.Z >= r.MinZ>>coord.ChunkShift && c.Z <= r.MaxZ>>coord.ChunkShift
}

// ContainsRegion compares against region-aligned bounds, so a region that only partially
// overlaps the rectangle is still inside.
func (r Rect) ContainsRegion(reg coord.Region) bool {
	return reg.X >= r.MinX>>coord.RegionShift && reg.X <= r.MaxX>>coord.RegionShift &&
		reg.Z >= r.MinZ>>coord.RegionShift && reg.Z <= r.MaxZ>>coord.RegionShift
}

// Circle contains the blocks within Radius of the centre. A chunk or region is inside when any
// point of its square lies within Radius, which over-includes partially covered chunks and
// regions on purpose: an incomplete render is worse than a few extra columns.
type Circle struct {
	Center mgl64.Vec2
	Radius float64
}

func NewCircle(centerX, centerZ, radius int) Circle {
	return Circle{
		Center: mgl64.Vec2{float64(centerX), float64(centerZ)},
		Radius: float64(radius),
	}
}

func (c Circle) ContainsBlock(b coord.Block) bool {
	return mgl64.Vec2{float64(b.X), float64(b.Z)}.Sub(c.Center).Len() <= c.Radius
}

func (c Circle) ContainsChunk(ch coord.Chunk) bool {
	lo, hi := ch.MinBlock(), ch.MaxBlock()
	return c.touches(lo, hi)
}

func (c Circle) ContainsRegion(r coord.Region) bool {
	lo, hi := r.MinBlock(), r.MaxBlock()
	return c.touches(lo, hi)
}

// touches reports whether the closest point of the block square [lo, hi] to the centre is within
// the radius.
func (c Circle) touches(lo, hi coord.Block) bool {
	nearest := mgl64.Vec2{
		clamp(c.Center.X(), float64(lo.X), float64(hi.X)),
		clamp(c.Center.Y(), float64(lo.Z), float64(hi.Z)),
	}
	return nearest.Sub(c.Center).Len() <= c.Radius
}

// BorderFunc reports the live world border as a centre and a side length in blocks.
type BorderFunc func() (centerX, centerZ, size float64)

// Border is the world border. The border may move or resize between calls, so the rectangle is
// derived again on every query.
type Border struct {
	get BorderFunc
}

func NewBorder(get BorderFunc) *Border {
	return &Border{get: get}
}

// Rect returns the border's current bounds.
func (b *Border) Rect() Rect {
	cx, cz, size := b.get()
	half := size / 2
	return Rect{
		MinX: int(math.Floor(cx - half)),
		MinZ: int(math.Floor(cz - half)),
		MaxX: int(math.Ceil(cx+half)) - 1,
		MaxZ: int(math.Ceil(cz+half)) - 1,
	}
}

func (b *Border) ContainsBlock(c coord.Block) bool {
	return b.Rect().ContainsBlock(c)
}

func (b *Border) ContainsChunk(c coord.Chunk) bool {
	return b.Rect().ContainsChunk(c)
}

func (b *Border) ContainsRegion(r coord.Region) bool {
	return b.Rect().ContainsRegion(r)
}

// Everything contains every position.
type Everything struct{}

func (Everything) ContainsBlock(coord.Block) bool   { return true }
func (Everything) ContainsChunk(coord.Chunk) bool   { return true }
func (Everything) ContainsRegion(coord.Region) bool { return true }

// Intersection contains what every one of its areas contains.
type Intersection []Area

func (in Intersection) ContainsBlock(b coord.Block) bool {
	for _, a := range in {
		if !a.ContainsBlock(b) {
			return false
		}
	}
	return true
}

func (in Intersection) ContainsChunk(c coord.Chunk) bool {
	for _, a := range in {
		if !a.ContainsChunk(c) {
			return false
		}
	}
	return true
}

func (in Intersection) ContainsRegion(r coord.Region) bool {
	for _, a := range in {
		if !a.ContainsRegion(r) {
			return false
		}
	}
	return true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	} else if v > hi {
		return hi
	}
	return v
}
