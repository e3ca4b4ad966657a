// Package tile holds the per-region output buffers and writes them, together with their coarser
// zoom levels, to the tile tree.
package tile

import (
	"image"
	"image/color"
)

// Size is the width and height of every tile in pixels.
const Size = 512

// Image is a tile worth of packed ARGB pixels. Pixels that were never set keep whatever the tile
// on disk has when the image is saved.
type Image struct {
	pixels  []uint32
	written []bool
	count   int
}

func NewImage() *Image {
	return &Image{
		pixels:  make([]uint32, Size*Size),
		written: make([]bool, Size*Size),
	}
}

func (i *Image) Set(x, z int, argb uint32) {
	idx := z*Size + x
	i.pixels[idx] = argb
	if !i.written[idx] {
		i.written[idx] = true
		i.count++
	}
}

func (i *Image) At(x, z int) uint32 {
	return i.pixels[z*Size+x]
}

func (i *Image) Written(x, z int) bool {
	return i.written[z*Size+x]
}

// Complete reports whether every pixel was set.
func (i *Image) Complete() bool {
	return i.count == Size*Size
}

// Empty reports whether no pixel was set.
func (i *Image) Empty() bool {
	return i.count == 0
}

// NRGBA converts the pixels, taking unset ones from base when base is not nil.
func (i *Image) NRGBA(base image.Image) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, Size, Size))
	for z := 0; z < Size; z++ {
		for x := 0; x < Size; x++ {
			idx := z*Size + x
			if i.written[idx] {
				img.SetNRGBA(x, z, ToNRGBA(i.pixels[idx]))
			} else if base != nil {
				img.Set(x, z, base.At(x, z))
			}
		}
	}
	return img
}

// ToNRGBA unpacks an ARGB word.
func ToNRGBA(argb uint32) color.NRGBA {
	return color.NRGBA{
		A: uint8(argb >> 24),
		R: uint8(argb >> 16),
		G: uint8(argb >> 8),
		B: uint8(argb),
	}
}

// FromColor packs any colour into a non-premultiplied ARGB word.
func FromColor(c color.Color) uint32 {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return uint32(n.A)<<24 | uint32(n.R)<<16 | uint32(n.G)<<8 | uint32(n.B)
}
