package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bft-labs/seedstream/internal/domain"
)

const markerFileName = "session.json"

// MarkerFileRepository implements ports.MarkerRepository with a JSON file
// in a directory.
type MarkerFileRepository struct {
	dir string
}

// NewMarkerFileRepository creates a repository storing its marker in dir.
func NewMarkerFileRepository(dir string) *MarkerFileRepository {
	return &MarkerFileRepository{dir: dir}
}

// Load reads the marker. A missing file yields a zero marker.
func (r *MarkerFileRepository) Load(ctx context.Context) (domain.SessionMarker, error) {
	data, err := os.ReadFile(r.Path())
	if errors.Is(err, os.ErrNotExist) {
		return domain.SessionMarker{}, nil
	}
	if err != nil {
		return domain.SessionMarker{}, err
	}

	var marker domain.SessionMarker
	if err := json.Unmarshal(data, &marker); err != nil {
		return domain.SessionMarker{}, fmt.Errorf("parse %s: %w", r.Path(), err)
	}
	return marker, nil
}

// Save writes the marker to a temp file and renames it into place.
func (r *MarkerFileRepository) Save(ctx context.Context, marker domain.SessionMarker) error {
	if err := os.MkdirAll(r.dir, 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(marker, "", "  ")
	if err != nil {
		return err
	}

	path := r.Path()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Path returns the marker file path.
func (r *MarkerFileRepository) Path() string {
	return filepath.Join(r.dir, markerFileName)
}
