package tile

import (
	"encoding/binary"
	"fmt"
)

const (
	// PackedMagic is "TSBI".
	PackedMagic   = 0x54534249
	PackedVersion = 1

	HeaderSize = 12
	// PackedLen is the byte length of a packed tile.
	PackedLen = HeaderSize + Size*Size*4

	// MaxPaletteIndex is the largest block or biome index a word can hold.
	MaxPaletteIndex = 1<<10 - 1
	// MaxHeight is the largest biased Y a word can hold.
	MaxHeight = 1<<12 - 1
)

// Pack builds a column word: 10 bits block index, 10 bits biome index, 12 bits Y above the world
// minimum. Values out of range wrap.
func Pack(blockIndex, biomeIndex, y int) uint32 {
	return uint32(blockIndex&MaxPaletteIndex)<<22 |
		uint32(biomeIndex&MaxPaletteIndex)<<12 |
		uint32(y&MaxHeight)
}

func Unpack(word uint32) (blockIndex, biomeIndex, y int) {
	return int(word >> 22 & MaxPaletteIndex), int(word >> 12 & MaxPaletteIndex), int(word & MaxHeight)
}

// Packed is the binary block-info tile: a 12 byte header (magic, version, minimum Y) followed by one
// big-endian word per column in row-major order.
type Packed struct {
	buf     []byte
	written []bool
	count   int
}

func NewPacked(minY int) *Packed {
	p := &Packed{
		buf:     make([]byte, PackedLen),
		written: make([]bool, Size*Size),
	}
	p.writeHeader(minY)
	return p
}

// DecodePacked wraps raw tile bytes.
func DecodePacked(data []byte) (*Packed, error) {
	if len(data) != PackedLen {
		return nil, fmt.Errorf("packed tile has %d bytes, expected %d", len(data), PackedLen)
	}
	if magic := binary.BigEndian.Uint32(data); magic != PackedMagic {
		return nil, fmt.Errorf("packed tile has bad magic %#x", magic)
	}
	return &Packed{buf: data, written: make([]bool, Size*Size)}, nil
}

func (p *Packed) writeHeader(minY int) {
	binary.BigEndian.PutUint32(p.buf[0:], PackedMagic)
	binary.BigEndian.PutUint32(p.buf[4:], PackedVersion)
	binary.BigEndian.PutUint32(p.buf[8:], uint32(int32(minY)))
}

func (p *Packed) MinY() int {
	return int(int32(binary.BigEndian.Uint32(p.buf[8:])))
}

func (p *Packed) Set(x, z int, word uint32) {
	idx := z*Size + x
	binary.BigEndian.PutUint32(p.buf[HeaderSize+idx*4:], word)
	if !p.written[idx] {
		p.written[idx] = true
		p.count++
	}
}

func (p *Packed) Word(x, z int) uint32 {
	return binary.BigEndian.Uint32(p.buf[HeaderSize+(z*Size+x)*4:])
}

func (p *Packed) Complete() bool {
	return p.count == Size*Size
}

func (p *Packed) Empty() bool {
	return p.count == 0
}

// Bytes returns the encoded tile. The slice aliases the buffer.
func (p *Packed) Bytes() []byte {
	return p.buf
}

// mergeInto fills the columns this buffer never set from base and copies this buffer's header over
// base's.
func (p *Packed) mergeInto(base *Packed) *Packed {
	if base == nil {
		return p
	}
	copy(base.buf[:HeaderSize], p.buf[:HeaderSize])
	for idx, ok := range p.written {
		if ok {
			off := HeaderSize + idx*4
			copy(base.buf[off:off+4], p.buf[off:off+4])
		}
	}
	return base
}
