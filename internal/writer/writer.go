// Package writer implements the Streaming Writer (§4.7): append-only,
// per-tile intermediate files that multiple parallel region workers can
// write to concurrently without locking.
package writer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/MeKo-Tech/tilegen/internal/geojson"
	"github.com/MeKo-Tech/tilegen/internal/types"
)

// Writer appends IntermediateRecord lines to per-tile files under an
// output root, creating tileset/x directories lazily and caching which
// directories already exist so repeated writes to the same tile don't
// re-stat the filesystem.
type Writer struct {
	root string

	mu      sync.Mutex
	dirsMade map[string]struct{}
}

// New builds a Writer rooted at outputRoot. outputRoot is created if it
// doesn't already exist.
func New(outputRoot string) (*Writer, error) {
	if err := os.MkdirAll(outputRoot, 0o755); err != nil {
		return nil, fmt.Errorf("creating output root %q: %w", outputRoot, err)
	}
	return &Writer{root: outputRoot, dirsMade: make(map[string]struct{})}, nil
}

// WriteFeature serializes f's geometry/tags/render block and appends one
// line to id's intermediate file, formatted `{importance}\t{feature_json}\n`.
// Safe for concurrent use by multiple goroutines/processes targeting
// different or the same tile, relying on the platform's atomic small
// O_APPEND write guarantee.
func (w *Writer) WriteFeature(id types.TileID, f *types.Feature) error {
	payload, err := encodeFeature(f)
	if err != nil {
		return fmt.Errorf("encoding feature %q for tile %s: %w", f.ID, id, err)
	}

	path := filepath.Join(w.root, filepath.FromSlash(id.IntermediatePath()))
	if err := w.ensureDir(filepath.Dir(path)); err != nil {
		return err
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening intermediate file %q: %w", path, err)
	}
	defer file.Close()

	line := fmt.Sprintf("%d\t%s\n", f.Importance, payload)
	if _, err := file.WriteString(line); err != nil {
		return fmt.Errorf("appending to intermediate file %q: %w", path, err)
	}
	return nil
}

func (w *Writer) ensureDir(dir string) error {
	w.mu.Lock()
	_, ok := w.dirsMade[dir]
	w.mu.Unlock()
	if ok {
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating tile directory %q: %w", dir, err)
	}

	w.mu.Lock()
	w.dirsMade[dir] = struct{}{}
	w.mu.Unlock()
	return nil
}

// encodedFeature is the minimal, stable JSON shape written per feature
// line: a GeoJSON-ish geometry plus tags and the resolved render block.
type encodedFeature struct {
	ID       string                 `json:"id"`
	Geometry map[string]interface{} `json:"geometry"`
	Tags     map[string]string      `json:"tags"`
	Render   types.RenderBlock      `json:"render"`
}

func encodeFeature(f *types.Feature) (string, error) {
	geomJSON, err := geojson.GeometryToMap(f.Geometry)
	if err != nil {
		return "", err
	}
	enc := encodedFeature{
		ID:       f.ID,
		Geometry: geomJSON,
		Tags:     f.Tags,
		Render:   f.Render,
	}
	raw, err := json.Marshal(enc)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
