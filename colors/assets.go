package colors

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"sort"
	"strings"
)

// Assets reads textures, models and worldgen data out of a Minecraft client jar.
type Assets struct {
	files  map[string]*zip.File
	reader *zip.ReadCloser
}

func OpenClientJar(path string) (*Assets, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open client jar %s: %w", path, err)
	}

	files := make(map[string]*zip.File)
	for _, f := range r.File {
		if !strings.HasPrefix(f.Name, "assets/") && !strings.HasPrefix(f.Name, "data/") {
			continue
		}
		files[f.Name] = f
	}

	return &Assets{
		files:  files,
		reader: r,
	}, nil
}

func (a *Assets) open(name string) (io.ReadCloser, error) {
	file, ok := a.files[name]
	if !ok {
		return nil, fmt.Errorf("file %s does not exist", name)
	}
	return file.Open()
}

func (a *Assets) LoadPNG(name string) (image.Image, error) {
	fd, err := a.open(name)
	if err != nil {
		return nil, err
	}
	defer fd.Close()
	return png.Decode(fd)
}

func (a *Assets) LoadJSON(name string, v any) error {
	fd, err := a.open(name)
	if err != nil {
		return err
	}
	defer fd.Close()
	if err := json.NewDecoder(fd).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return nil
}

// List returns the sorted names of every file below prefix.
func (a *Assets) List(prefix string) []string {
	var names []string
	for name := range a.files {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (a *Assets) Close() error {
	return a.reader.Close()
}
