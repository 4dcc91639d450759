// Package catalog implements the optional SQLite catalog sink (§6
// Outputs): a single database file holding the same tile documents and
// index metadata the directory tree carries, for tools that prefer
// random-access lookup over directory scanning. Writing the catalog is
// an independent sink driven off the same finalized tile documents;
// disabling it changes no other output.
package catalog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/MeKo-Tech/tilegen/internal/types"
)

// DefaultBatchSize mirrors the teacher's MBTiles writer batching: buffer
// this many tile documents before flushing a transaction.
const DefaultBatchSize = 100

// entry is one buffered tile document awaiting a batched insert.
type entry struct {
	tilesetID string
	x, y      int
	doc       types.TileDocument
}

// Writer writes finalized tile documents into a tile/feature-oriented
// SQLite schema, batching inserts the same way the teacher's MBTiles
// writer batches PNG blobs.
type Writer struct {
	db        *sql.DB
	batch     []entry
	batchSize int
	mu        sync.Mutex
}

// New opens (creating if needed) a catalog database at path and ensures
// its schema exists.
func New(path string) (*Writer, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog database %q: %w", path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = 50000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Writer{db: db, batchSize: DefaultBatchSize}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS index_metadata (
			name TEXT NOT NULL,
			value TEXT
		);

		CREATE TABLE IF NOT EXISTS tiles (
			tileset_id TEXT NOT NULL,
			tile_x INTEGER NOT NULL,
			tile_y INTEGER NOT NULL,
			has_coastline INTEGER NOT NULL,
			has_land_features INTEGER NOT NULL,
			feature_count INTEGER NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS tile_index
			ON tiles (tileset_id, tile_x, tile_y);

		CREATE TABLE IF NOT EXISTS features (
			tileset_id TEXT NOT NULL,
			tile_x INTEGER NOT NULL,
			tile_y INTEGER NOT NULL,
			importance INTEGER NOT NULL,
			geometry_json TEXT NOT NULL,
			properties_json TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS feature_tile_index
			ON features (tileset_id, tile_x, tile_y);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating catalog schema: %w", err)
	}
	return nil
}

// WriteTile adds a finalized tile document to the batch. When the batch
// is full, it is flushed automatically.
func (w *Writer) WriteTile(id types.TileID, doc types.TileDocument) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.batch = append(w.batch, entry{tilesetID: id.TilesetID, x: id.X, y: id.Y, doc: doc})
	if len(w.batch) >= w.batchSize {
		return w.flushLocked()
	}
	return nil
}

// Flush writes any buffered tile documents to the database.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

func (w *Writer) flushLocked() error {
	if len(w.batch) == 0 {
		return nil
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning catalog transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	tileStmt, err := tx.Prepare(`INSERT OR REPLACE INTO tiles
		(tileset_id, tile_x, tile_y, has_coastline, has_land_features, feature_count)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing tile insert: %w", err)
	}
	defer tileStmt.Close()

	deleteStmt, err := tx.Prepare(`DELETE FROM features WHERE tileset_id = ? AND tile_x = ? AND tile_y = ?`)
	if err != nil {
		return fmt.Errorf("preparing feature delete: %w", err)
	}
	defer deleteStmt.Close()

	featureStmt, err := tx.Prepare(`INSERT INTO features
		(tileset_id, tile_x, tile_y, importance, geometry_json, properties_json)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing feature insert: %w", err)
	}
	defer featureStmt.Close()

	for _, e := range w.batch {
		hasCoastline := 0
		if e.doc.Meta.HasCoastline {
			hasCoastline = 1
		}
		hasLand := 0
		if e.doc.Meta.HasLandFeatures {
			hasLand = 1
		}

		if _, err := tileStmt.Exec(e.tilesetID, e.x, e.y, hasCoastline, hasLand, len(e.doc.Features)); err != nil {
			return fmt.Errorf("inserting tile %s/%d/%d: %w", e.tilesetID, e.x, e.y, err)
		}
		if _, err := deleteStmt.Exec(e.tilesetID, e.x, e.y); err != nil {
			return fmt.Errorf("clearing prior features for %s/%d/%d: %w", e.tilesetID, e.x, e.y, err)
		}

		for _, f := range e.doc.Features {
			geomJSON, err := json.Marshal(f.Geometry)
			if err != nil {
				return fmt.Errorf("marshaling feature geometry: %w", err)
			}
			propsJSON, err := json.Marshal(f.Properties)
			if err != nil {
				return fmt.Errorf("marshaling feature properties: %w", err)
			}
			if _, err := featureStmt.Exec(e.tilesetID, e.x, e.y, importanceOf(f), string(geomJSON), string(propsJSON)); err != nil {
				return fmt.Errorf("inserting feature for %s/%d/%d: %w", e.tilesetID, e.x, e.y, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing catalog transaction: %w", err)
	}
	w.batch = w.batch[:0]
	return nil
}

// WriteIndexMetadata records the same summary fields the index manifest
// carries (§6 Outputs), so a catalog-only consumer doesn't need the
// separate index.json file.
func (w *Writer) WriteIndexMetadata(meta map[string]string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning metadata transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec("DELETE FROM index_metadata"); err != nil {
		return fmt.Errorf("clearing index metadata: %w", err)
	}
	stmt, err := tx.Prepare("INSERT INTO index_metadata (name, value) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("preparing metadata insert: %w", err)
	}
	defer stmt.Close()

	for k, v := range meta {
		if _, err := stmt.Exec(k, v); err != nil {
			return fmt.Errorf("inserting index metadata %q: %w", k, err)
		}
	}
	return tx.Commit()
}

// Close flushes any remaining tile documents and closes the database.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		w.db.Close()
		return err
	}
	if err := w.db.Close(); err != nil {
		return fmt.Errorf("closing catalog database: %w", err)
	}
	return nil
}

func importanceOf(f types.DocFeature) int {
	raw, ok := f.Properties["importance"]
	if !ok {
		return 0
	}
	switch v := raw.(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}
