package tessera

import (
	"image/color"
	"math"
)

// over composites src on top of dst.
func over(dst, src color.NRGBA) color.NRGBA {
	if src.A == 0 {
		return dst
	}
	if src.A == 255 || dst.A == 0 {
		return src
	}

	sa := float64(src.A) / 255
	da := float64(dst.A) / 255
	oa := sa + da*(1-sa)
	channel := func(s, d uint8) uint8 {
		return uint8(math.Round((float64(s)*sa + float64(d)*da*(1-sa)) / oa))
	}
	return color.NRGBA{
		R: channel(src.R, dst.R),
		G: channel(src.G, dst.G),
		B: channel(src.B, dst.B),
		A: uint8(math.Round(oa * 255)),
	}
}

// mix linearly interpolates from a to b, t in [0, 1].
func mix(a, b color.NRGBA, t float64) color.NRGBA {
	t = clamp01(t)
	lerp := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*t))
	}
	return color.NRGBA{R: lerp(a.R, b.R), G: lerp(a.G, b.G), B: lerp(a.B, b.B), A: lerp(a.A, b.A)}
}

func darken(c color.NRGBA, amount float64) color.NRGBA {
	return mix(c, color.NRGBA{A: c.A}, amount)
}

func easeOutCubic(t float64) float64 {
	t = clamp01(t)
	return 1 - math.Pow(1-t, 3)
}

func easeInQuad(t float64) float64 {
	t = clamp01(t)
	return t * t
}

func clamp01(t float64) float64 {
	if t < 0 {
		return 0
	} else if t > 1 {
		return 1
	}
	return t
}
