package anvil

import (
	"github.com/Tnze/go-mc/level"
	"github.com/Tnze/go-mc/nbt"
	"github.com/Tnze/go-mc/save"

	"github.com/b1naryth1ef/tessera/block"
)

var fullStatus = map[string]struct{}{
	"minecraft:full":          {},
	"minecraft:spawn":         {},
	"minecraft:postprocessed": {},
	"minecraft:fullchunk":     {},
	"full":                    {},
}

func isFull(chunk *save.Chunk) bool {
	_, ok := fullStatus[chunk.Status]
	return ok
}

// chunk adapts a decoded anvil chunk. Sections are decoded lazily and the value is meant to be used
// by a single goroutine.
type chunk struct {
	minY    int
	raw     *save.Chunk
	surface *level.BitStorage
	decoded map[int]*section
}

type section struct {
	states  []block.State
	storage *level.BitStorage
	biomes  []string
	biomeAt *level.BitStorage
	light   []byte
}

func newChunk(raw *save.Chunk, minY int) *chunk {
	c := &chunk{
		minY:    minY,
		raw:     raw,
		decoded: make(map[int]*section),
	}
	if data := raw.Heightmaps["MOTION_BLOCKING"]; len(data) > 0 {
		c.surface = level.NewBitStorage(calcBitsPerValue(16*16, len(data)), 16*16, data)
	}
	return c
}

func (c *chunk) section(y int) *section {
	sy := y >> 4
	if s, ok := c.decoded[sy]; ok {
		return s
	}

	var s *section
	for i := range c.raw.Sections {
		raw := &c.raw.Sections[i]
		if int(raw.Y) != sy {
			continue
		}
		if len(raw.BlockStates.Palette) == 0 {
			break
		}
		s = &section{
			states: make([]block.State, len(raw.BlockStates.Palette)),
			biomes: make([]string, len(raw.Biomes.Palette)),
			light:  raw.BlockLight,
		}
		for idx, state := range raw.BlockStates.Palette {
			s.states[idx] = block.State{Name: state.Name, Properties: formatProperties(state.Properties)}
		}
		for idx, biome := range raw.Biomes.Palette {
			s.biomes[idx] = string(biome)
		}
		if len(raw.BlockStates.Data) > 0 {
			s.storage = level.NewBitStorage(calcBitsPerValue(16*16*16, len(raw.BlockStates.Data)), 16*16*16, raw.BlockStates.Data)
		}
		if len(raw.Biomes.Data) > 0 {
			s.biomeAt = level.NewBitStorage(calcBitsPerValue(4*4*4, len(raw.Biomes.Data)), 4*4*4, raw.Biomes.Data)
		}
		break
	}
	c.decoded[sy] = s
	return s
}

// SurfaceY is the highest motion blocking block, or the top of the highest section when the
// chunk carries no heightmap.
func (c *chunk) SurfaceY(x, z int) int {
	if c.surface != nil {
		return c.minY + c.surface.Get(z*16+x) - 1
	}
	top := c.minY
	for _, s := range c.raw.Sections {
		if len(s.BlockStates.Palette) == 0 {
			continue
		}
		if y := int(s.Y)*16 + 15; y > top {
			top = y
		}
	}
	return top
}

func (c *chunk) Block(x, y, z int) block.State {
	s := c.section(y)
	if s == nil {
		return block.Air
	}
	if s.storage == nil {
		return s.states[0]
	}
	idx := s.storage.Get(((y&15)*16+z)*16 + x)
	if idx >= len(s.states) {
		return block.Air
	}
	return s.states[idx]
}

func (c *chunk) Biome(x, y, z int) string {
	s := c.section(y)
	if s == nil || len(s.biomes) == 0 {
		return ""
	}
	if s.biomeAt == nil {
		return s.biomes[0]
	}
	idx := s.biomeAt.Get(((y&15)>>2)<<4 | (z>>2)<<2 | x>>2)
	if idx >= len(s.biomes) {
		return ""
	}
	return s.biomes[idx]
}

func (c *chunk) BlockLight(x, y, z int) int {
	s := c.section(y)
	if s == nil || len(s.light) < 2048 {
		return 0
	}
	idx := (y&15)<<8 | z<<4 | x
	raw := s.light[idx/2]
	if idx&1 > 0 {
		return int(raw>>4) & 0x0f
	}
	return int(raw) & 0x0f
}

func formatProperties(msg nbt.RawMessage) string {
	if msg.Type == nbt.TagEnd || len(msg.Data) == 0 {
		return ""
	}
	props := map[string]string{}
	if err := msg.Unmarshal(&props); err != nil {
		return ""
	}
	return block.FormatProperties(props)
}

func calcBitsPerValue(length, longs int) int {
	if longs == 0 || length == 0 {
		return 0
	}
	valuePerLong := (length + longs - 1) / longs
	return 64 / valuePerLong
}
