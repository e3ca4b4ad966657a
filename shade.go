package tessera

import (
	"fmt"
	"image/color"
	"sort"
)

// Shader turns the height of a column and its western and northern neighbours into an overlay
// that is composited over the column colour.
type Shader interface {
	Shade(height, west, north int) color.NRGBA
}

type ShaderFunc func(height, west, north int) color.NRGBA

func (f ShaderFunc) Shade(height, west, north int) color.NRGBA {
	return f(height, west, north)
}

var shaders = map[string]func() Shader{
	"none":          func() Shader { return ShaderFunc(noShade) },
	"classic":       func() Shader { return slopeShader{step: 16, maxDark: 64} },
	"modern":        func() Shader { return slopeShader{step: 12, maxDark: 96, lightStep: 8, maxLight: 48} },
	"old_school":    func() Shader { return ShaderFunc(oldSchool) },
	"vanilla":       func() Shader { return ShaderFunc(vanilla) },
	"even_odd":      func() Shader { return ShaderFunc(evenOdd) },
	"high_contrast": func() Shader { return slopeShader{step: 32, maxDark: 128, lightStep: 32, maxLight: 96} },
	"low_contrast":  func() Shader { return slopeShader{step: 8, maxDark: 32} },
}

// LookupShader returns the heightmap shading strategy registered under name.
func LookupShader(name string) (Shader, error) {
	factory, ok := shaders[name]
	if !ok {
		return nil, fmt.Errorf("unknown heightmap shader %q", name)
	}
	return factory(), nil
}

// Shaders lists the registered shader names.
func Shaders() []string {
	names := make([]string, 0, len(shaders))
	for name := range shaders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func black(alpha int) color.NRGBA {
	return color.NRGBA{A: uint8(capAlpha(alpha, 255))}
}

func white(alpha int) color.NRGBA {
	return color.NRGBA{R: 255, G: 255, B: 255, A: uint8(capAlpha(alpha, 255))}
}

func capAlpha(v, max int) int {
	if v < 0 {
		return 0
	} else if v > max {
		return max
	}
	return v
}

func noShade(int, int, int) color.NRGBA {
	return color.NRGBA{}
}

// slopeShader darkens a column by how far its western and northern neighbours rise above it, and
// lightens it by how far they fall away when lightStep is set.
type slopeShader struct {
	step      int
	maxDark   int
	lightStep int
	maxLight  int
}

func (s slopeShader) Shade(height, west, north int) color.NRGBA {
	var dark, light int
	for _, n := range [2]int{west, north} {
		if n > height {
			dark += (n - height) * s.step
		} else if n < height {
			light += (height - n) * s.lightStep
		}
	}
	if dark > 0 {
		return black(capAlpha(dark, s.maxDark))
	}
	if light > 0 {
		return white(capAlpha(light, s.maxLight))
	}
	return color.NRGBA{}
}

// oldSchool only looks north with fixed strengths.
func oldSchool(height, _, north int) color.NRGBA {
	switch {
	case north > height:
		return black(48)
	case north < height:
		return white(32)
	}
	return color.NRGBA{}
}

// vanilla mimics the in game map, where a column is brightest when above its northern neighbour.
func vanilla(height, _, north int) color.NRGBA {
	switch {
	case height < north:
		return black(75)
	case height == north:
		return black(35)
	}
	return color.NRGBA{}
}

// evenOdd draws contour bands by alternating on height parity.
func evenOdd(height, _, _ int) color.NRGBA {
	if height&1 == 0 {
		return black(24)
	}
	return color.NRGBA{}
}
