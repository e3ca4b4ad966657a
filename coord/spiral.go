package coord

// Spiral walks a square spiral outward from a centre: the centre first, then one step east, one
// south, two west, two north, three east and so on. Every position within Chebyshev distance
// radius of the centre is visited exactly once.
type Spiral struct {
	x, z   int
	dx, dz int
	leg    int
	step   int
	legs   int
	count  int
	total  int
}

func NewSpiral(centerX, centerZ, radius int) *Spiral {
	if radius < 0 {
		radius = 0
	}
	side := 2*radius + 1
	return &Spiral{
		x:     centerX,
		z:     centerZ,
		dx:    1,
		dz:    0,
		leg:   1,
		total: side * side,
	}
}

// Next returns the next position, or false once the square is exhausted.
func (s *Spiral) Next() (int, int, bool) {
	if s.count >= s.total {
		return 0, 0, false
	}
	x, z := s.x, s.z
	s.count++

	s.x += s.dx
	s.z += s.dz
	s.step++
	if s.step == s.leg {
		s.step = 0
		// east -> south -> west -> north
		s.dx, s.dz = -s.dz, s.dx
		s.legs++
		if s.legs%2 == 0 {
			s.leg++
		}
	}
	return x, z, true
}

// RegionSpiral orders regions by a region-level spiral around center. Only regions present in
// regions are returned.
func RegionSpiral(center Region, regions []Region) []Region {
	if len(regions) == 0 {
		return nil
	}

	want := make(map[Region]struct{}, len(regions))
	radius := 0
	for _, r := range regions {
		want[r] = struct{}{}
		radius = max(radius, chebyshev(center.X, center.Z, r.X, r.Z))
	}

	result := make([]Region, 0, len(want))
	sp := NewSpiral(center.X, center.Z, radius)
	for len(result) < len(want) {
		x, z, ok := sp.Next()
		if !ok {
			break
		}
		r := Region{X: x, Z: z}
		if _, ok := want[r]; ok {
			result = append(result, r)
		}
	}
	return result
}

// ChunkSpiral walks chunks in a spiral of chunkRadius around center and returns the regions of
// the walked chunks in first-visit order, limited to the ones accepted by keep.
func ChunkSpiral(center Chunk, chunkRadius int, keep func(Region) bool) []Region {
	seen := make(map[Region]struct{})
	var result []Region
	sp := NewSpiral(center.X, center.Z, chunkRadius)
	for {
		x, z, ok := sp.Next()
		if !ok {
			break
		}
		r := Chunk{X: x, Z: z}.Region()
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		if keep == nil || keep(r) {
			result = append(result, r)
		}
	}
	return result
}

func chebyshev(ax, az, bx, bz int) int {
	return max(abs(ax-bx), abs(az-bz))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
