package catalog

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/tilegen/internal/types"
)

func TestWriteTileAndFlushPersistsRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.sqlite")

	w, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	doc := types.TileDocument{
		Type: "FeatureCollection",
		Meta: types.TileMeta{HasCoastline: true, HasLandFeatures: true},
		Features: []types.DocFeature{
			{
				Type:       "Feature",
				Geometry:   map[string]interface{}{"type": "Point", "coordinates": []float64{1, 2}},
				Properties: map[string]interface{}{"place": "city", "importance": float64(7)},
			},
		},
	}

	id := types.TileID{TilesetID: "overview", X: 3, Y: 4}
	if err := w.WriteTile(id, doc); err != nil {
		t.Fatalf("WriteTile: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("reopening catalog: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow(`SELECT feature_count FROM tiles WHERE tileset_id = ? AND tile_x = ? AND tile_y = ?`,
		"overview", 3, 4).Scan(&count); err != nil {
		t.Fatalf("querying tiles: %v", err)
	}
	if count != 1 {
		t.Errorf("expected feature_count 1, got %d", count)
	}

	var importance int
	if err := db.QueryRow(`SELECT importance FROM features WHERE tileset_id = ? AND tile_x = ? AND tile_y = ?`,
		"overview", 3, 4).Scan(&importance); err != nil {
		t.Fatalf("querying features: %v", err)
	}
	if importance != 7 {
		t.Errorf("expected importance 7, got %d", importance)
	}
}

func TestWriteIndexMetadataReplacesPriorRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.sqlite")

	w, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	if err := w.WriteIndexMetadata(map[string]string{"tile_count": "5"}); err != nil {
		t.Fatalf("WriteIndexMetadata: %v", err)
	}
	if err := w.WriteIndexMetadata(map[string]string{"tile_count": "9"}); err != nil {
		t.Fatalf("WriteIndexMetadata (second): %v", err)
	}

	var value string
	if err := w.db.QueryRow(`SELECT value FROM index_metadata WHERE name = 'tile_count'`).Scan(&value); err != nil {
		t.Fatalf("querying index_metadata: %v", err)
	}
	if value != "9" {
		t.Errorf("expected tile_count=9 after replace, got %q", value)
	}
}
