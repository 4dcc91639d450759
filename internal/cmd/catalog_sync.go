package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/tilegen/internal/types"
)

type finalTile struct {
	id  types.TileID
	doc types.TileDocument
}

// walkFinalTiles reads every finalized tile document for a tileset so the
// catalog sink can mirror the directory tree (§6 Outputs, optional
// catalog database).
func walkFinalTiles(outDir, tilesetID string) ([]finalTile, error) {
	pattern := filepath.Join(outDir, tilesetID, "*", "*.json")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("globbing finalized tiles for %q: %w", tilesetID, err)
	}

	tiles := make([]finalTile, 0, len(matches))
	for _, path := range matches {
		var x, y int
		yFile := filepath.Base(path)
		xDir := filepath.Base(filepath.Dir(path))
		if _, err := fmt.Sscanf(xDir, "%d", &x); err != nil {
			continue
		}
		if _, err := fmt.Sscanf(yFile, "%d.json", &y); err != nil {
			continue
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading finalized tile %q: %w", path, err)
		}
		var doc types.TileDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("parsing finalized tile %q: %w", path, err)
		}

		tiles = append(tiles, finalTile{
			id:  types.TileID{TilesetID: tilesetID, X: x, Y: y},
			doc: doc,
		})
	}
	return tiles, nil
}
