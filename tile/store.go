package tile

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/b1naryth1ef/tessera/coord"
	"github.com/klauspost/compress/gzip"
	"github.com/nfnt/resize"
)

const (
	ImageExt  = "png"
	PackedExt = "gz"

	// MaxZoom is the coarsest zoom level; at 2^MaxZoom regions per tile side a region still gets
	// at least one pixel.
	MaxZoom = 9
)

// Store writes tiles below root as <root>/<world>/<zoom>/<layer>/<x>_<z>.<ext>.
type Store struct {
	root  string
	locks *LockTable
}

func NewStore(root string, locks *LockTable) *Store {
	if locks == nil {
		locks = NewLockTable()
	}
	return &Store{root: root, locks: locks}
}

func (s *Store) Root() string {
	return s.root
}

func (s *Store) Path(world string, zoom int, layer string, r coord.Region, ext string) string {
	return filepath.Join(s.root, world, strconv.Itoa(zoom), layer, r.String()+"."+ext)
}

// zoomTarget returns the coarse tile a region lands in at zoom, the offset of the region's cell in
// it and the cell width in pixels.
func zoomTarget(r coord.Region, zoom int) (coord.Region, image.Point, int) {
	scale := 1 << zoom
	cell := Size >> zoom
	coarse := coord.Region{X: coord.FloorDiv(r.X, scale), Z: coord.FloorDiv(r.Z, scale)}
	off := image.Point{
		X: coord.FloorMod(r.X, scale) * cell,
		Y: coord.FloorMod(r.Z, scale) * cell,
	}
	return coarse, off, cell
}

// SaveImage writes img as the zoom 0 tile of region r and merges it into every zoom level up to
// maxZoom. Pixels img never set keep their value from the existing tile.
func (s *Store) SaveImage(world, layer string, r coord.Region, img *Image, maxZoom int) error {
	path := s.Path(world, 0, layer, r, ImageExt)

	var native *image.NRGBA
	err := s.withLock(path, func() error {
		var base image.Image
		if !img.Complete() {
			existing, err := readPNG(path)
			if err != nil {
				return err
			}
			if existing != nil {
				base = existing
			}
		}
		native = img.NRGBA(base)
		return writeAtomic(path, func(w io.Writer) error {
			return png.Encode(w, native)
		})
	})
	if err != nil {
		return fmt.Errorf("failed to save tile %s: %w", path, err)
	}

	for zoom := 1; zoom <= min(maxZoom, MaxZoom); zoom++ {
		if err := s.mergeImage(world, layer, r, native, zoom); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) mergeImage(world, layer string, r coord.Region, native image.Image, zoom int) error {
	coarse, off, cell := zoomTarget(r, zoom)
	path := s.Path(world, zoom, layer, coarse, ImageExt)

	err := s.withLock(path, func() error {
		dst := image.NewNRGBA(image.Rect(0, 0, Size, Size))
		existing, err := readPNG(path)
		if err != nil {
			return err
		}
		if existing != nil {
			copyImage(dst, existing)
		}

		scaled := resize.Resize(uint(cell), uint(cell), native, resize.NearestNeighbor)
		draw.Draw(dst, image.Rect(off.X, off.Y, off.X+cell, off.Y+cell), scaled, scaled.Bounds().Min, draw.Src)

		return writeAtomic(path, func(w io.Writer) error {
			return png.Encode(w, dst)
		})
	})
	if err != nil {
		return fmt.Errorf("failed to merge zoom %d tile %s: %w", zoom, path, err)
	}
	return nil
}

// SavePacked writes the block-info tile of region r and regenerates the coarser levels by
// nearest-neighbour decimation.
func (s *Store) SavePacked(world, layer string, r coord.Region, p *Packed, maxZoom int) error {
	path := s.Path(world, 0, layer, r, PackedExt)

	var native *Packed
	err := s.withLock(path, func() error {
		native = p
		if !p.Complete() {
			existing, err := readPacked(path)
			if err != nil {
				return err
			}
			native = p.mergeInto(existing)
		}
		return writeAtomic(path, func(w io.Writer) error {
			return writeGzip(w, native.Bytes())
		})
	})
	if err != nil {
		return fmt.Errorf("failed to save tile %s: %w", path, err)
	}

	for zoom := 1; zoom <= min(maxZoom, MaxZoom); zoom++ {
		if err := s.mergePacked(world, layer, r, native, zoom); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) mergePacked(world, layer string, r coord.Region, native *Packed, zoom int) error {
	coarse, off, cell := zoomTarget(r, zoom)
	path := s.Path(world, zoom, layer, coarse, PackedExt)
	step := 1 << zoom

	err := s.withLock(path, func() error {
		dst, err := readPacked(path)
		if err != nil {
			return err
		}
		if dst == nil {
			dst = &Packed{buf: make([]byte, PackedLen), written: make([]bool, Size*Size)}
		}
		copy(dst.buf[:HeaderSize], native.buf[:HeaderSize])

		for j := 0; j < cell; j++ {
			for i := 0; i < cell; i++ {
				dst.Set(off.X+i, off.Y+j, native.Word(i*step, j*step))
			}
		}

		return writeAtomic(path, func(w io.Writer) error {
			return writeGzip(w, dst.Bytes())
		})
	})
	if err != nil {
		return fmt.Errorf("failed to merge zoom %d tile %s: %w", zoom, path, err)
	}
	return nil
}

// ReadImage loads a tile image, returning nil when it does not exist.
func (s *Store) ReadImage(path string) (image.Image, error) {
	unlock := s.locks.RLock(path)
	defer unlock()
	return readPNG(path)
}

// ReadPacked loads a block-info tile, returning nil when it does not exist.
func (s *Store) ReadPacked(path string) (*Packed, error) {
	unlock := s.locks.RLock(path)
	defer unlock()
	return readPacked(path)
}

func (s *Store) withLock(path string, fn func() error) error {
	unlock := s.locks.Lock(path)
	defer unlock()
	return fn()
}

// copyImage copies src into dst, byte for byte when src is already NRGBA so that repeated merges
// never drift translucent pixels through premultiplication.
func copyImage(dst *image.NRGBA, src image.Image) {
	if n, ok := src.(*image.NRGBA); ok && n.Stride == dst.Stride && n.Rect == dst.Rect {
		copy(dst.Pix, n.Pix)
		return
	}
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
}

func readPNG(path string) (image.Image, error) {
	fd, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	img, err := png.Decode(fd)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if b := img.Bounds(); b.Dx() != Size || b.Dy() != Size {
		return nil, fmt.Errorf("tile %s is %dx%d", path, b.Dx(), b.Dy())
	}
	return img, nil
}

func readPacked(path string) (*Packed, error) {
	fd, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	zr, err := gzip.NewReader(fd)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return DecodePacked(data)
}

func writeGzip(w io.Writer, data []byte) error {
	zw := gzip.NewWriter(w)
	if _, err := zw.Write(data); err != nil {
		return err
	}
	return zw.Close()
}

// WriteAtomic writes a file through a temp file in the same directory and renames it over path,
// so readers never observe a partially written file.
func WriteAtomic(path string, data []byte) error {
	return writeAtomic(path, func(w io.Writer) error {
		_, err := io.Copy(w, bytes.NewReader(data))
		return err
	})
}

func writeAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
