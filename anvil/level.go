package anvil

import (
	"fmt"
	"os"

	"github.com/Tnze/go-mc/nbt"
	"github.com/klauspost/compress/gzip"
)

type levelData struct {
	BorderCenterX float64 `nbt:"BorderCenterX"`
	BorderCenterZ float64 `nbt:"BorderCenterZ"`
	BorderSize    float64 `nbt:"BorderSize"`
	SpawnX        int32   `nbt:"SpawnX"`
	SpawnZ        int32   `nbt:"SpawnZ"`
	LevelName     string  `nbt:"LevelName"`
	Version       struct {
		Name string `nbt:"Name"`
	} `nbt:"Version"`
}

type levelFile struct {
	Data levelData `nbt:"Data"`
}

func readLevel(path string) (levelData, error) {
	fd, err := os.Open(path)
	if err != nil {
		return levelData{}, err
	}
	defer fd.Close()

	r, err := gzip.NewReader(fd)
	if err != nil {
		return levelData{}, fmt.Errorf("failed to decompress %s: %w", path, err)
	}
	defer r.Close()

	var level levelFile
	if _, err := nbt.NewDecoder(r).Decode(&level); err != nil {
		return levelData{}, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if level.Data.BorderSize <= 0 {
		level.Data.BorderSize = defaultBorderSize
	}
	return level.Data, nil
}
