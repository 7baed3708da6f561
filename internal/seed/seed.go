// Package seed provides the initial catalog database.
package seed

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/atinyakov/moviecatalog/internal/models"
	"github.com/spf13/afero"
)

//go:embed db.seed.json
var embedded []byte

// Load returns the embedded seed database.
func Load() (models.Snapshot, error) {
	return parse(embedded)
}

// LoadFile reads a seed database from path.
func LoadFile(fs afero.Fs, path string) (models.Snapshot, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (models.Snapshot, error) {
	var snapshot models.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	for _, collection := range models.Collections {
		if snapshot[collection] == nil {
			snapshot[collection] = make([]models.Record, 0)
		}
	}
	return snapshot, nil
}
