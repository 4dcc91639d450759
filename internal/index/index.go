// Package index builds the `out/index.json` manifest (§6 Outputs): a
// summary of bounds, tilesets, tile count, center and source file
// fingerprints, used both as a human-readable manifest and as the
// incremental-rebuild skip decision's previous-run record (§11).
package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/tilegen/internal/types"
)

// SourceFile fingerprints one processed source for incremental-rebuild
// skip decisions (§11 "Source fingerprinting for incremental rebuild
// skip").
type SourceFile struct {
	Name        string `json:"name"`
	Fingerprint string `json:"fingerprint"`
	Size        int64  `json:"size"`
	Modified    int64  `json:"modified"`
}

// Center is the manifest's representative point.
type Center struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Manifest is the `out/index.json` document.
type Manifest struct {
	Bounds      types.Bounds `json:"bounds"`
	Tilesets    []string     `json:"tilesets"`
	TileCount   int          `json:"tile_count"`
	Center      Center       `json:"center"`
	Generated   int64        `json:"generated"`
	SourceFiles []SourceFile `json:"source_files"`
}

// Build assembles a Manifest from the orchestrator's summary inputs.
// tileCount is an estimate based on successfully finalized files only
// (§7 "the index still records an estimate of tile count based on
// successfully finalized files").
func Build(bounds types.Bounds, tilesetIDs []string, tileCount int, generatedMillis int64, sources []SourceFile) Manifest {
	lon, lat := bounds.Center()
	return Manifest{
		Bounds:      bounds,
		Tilesets:    tilesetIDs,
		TileCount:   tileCount,
		Center:      Center{Lon: lon, Lat: lat},
		Generated:   generatedMillis,
		SourceFiles: sources,
	}
}

// Write serializes the manifest to path as compact JSON (no trailing
// whitespace, no pretty-printing, matching the tile document convention).
func Write(path string, m Manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling index manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating index manifest directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing index manifest %q: %w", path, err)
	}
	return nil
}

// Load reads a previously written manifest, returning (Manifest{}, false,
// nil) if the file does not exist yet (first run, nothing to compare
// fingerprints against).
func Load(path string) (Manifest, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, false, nil
		}
		return Manifest{}, false, fmt.Errorf("reading index manifest %q: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, false, fmt.Errorf("parsing index manifest %q: %w", path, err)
	}
	return m, true, nil
}

// Fingerprint computes a `{size}:{mtime}` fingerprint for a source file,
// the same scheme the original's check_tiles_need_rebuild compares
// against the previous manifest's source_files list (§11).
func Fingerprint(path string) (SourceFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return SourceFile{}, fmt.Errorf("stat source file %q: %w", path, err)
	}
	mtime := info.ModTime().Unix()
	return SourceFile{
		Name:        path,
		Fingerprint: fmt.Sprintf("%d:%d", info.Size(), mtime),
		Size:        info.Size(),
		Modified:    mtime,
	}, nil
}

// NeedsRebuild reports whether src has changed since the previous
// manifest's matching source_files entry (by Name), or has no prior
// entry at all — in which case it must be (re)processed.
func NeedsRebuild(prev Manifest, src SourceFile) bool {
	for _, p := range prev.SourceFiles {
		if p.Name == src.Name {
			return p.Fingerprint != src.Fingerprint
		}
	}
	return true
}
