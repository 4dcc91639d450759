package types

import "fmt"

// TileID identifies a tile within a tileset's equal-metric grid. Unlike a
// Web Mercator z/x/y address, a TileID has no zoom level: x and y are
// signed integers indexing a single grid whose cell size is the tileset's
// own tile_size_meters, with origin at (lon=0, lat=0).
type TileID struct {
	TilesetID string
	X, Y      int
}

// String returns "tileset/x/y", matching the on-disk path layout.
func (t TileID) String() string {
	return fmt.Sprintf("%s/%d/%d", t.TilesetID, t.X, t.Y)
}

// IntermediatePath returns the append-only intermediate file path relative
// to the output root.
func (t TileID) IntermediatePath() string {
	return fmt.Sprintf("%s/%d/%d.jsonl", t.TilesetID, t.X, t.Y)
}

// FinalPath returns the finalized tile document path relative to the
// output root.
func (t TileID) FinalPath() string {
	return fmt.Sprintf("%s/%d/%d.json", t.TilesetID, t.X, t.Y)
}

// MatchRule is the declarative predicate a FeatureDefinition evaluates
// against a candidate feature (§4.1 osm_match).
type MatchRule struct {
	Geometry      map[GeometryKind]struct{}
	Tags          map[string]map[string]struct{} // key -> set of allowed values; "*" sentinel means any value
	MatchAll      bool
	TagsExclude   map[string]map[string]struct{}
	MinAreaKM2    *float64
	MaxAreaKM2    *float64
	PopulationMin *int
	PopulationMax *int
	RequiresName  bool
}

// SimplificationSpec configures the Geometry Transformer for one
// FeatureDefinition (§4.3).
type SimplificationSpec struct {
	Disabled bool
	EpsilonM float64
}

// FeatureDefinition is one entry in a tileset's ordered feature list. The
// first definition whose MatchRule accepts a feature wins (§4.2).
type FeatureDefinition struct {
	Name           string
	Match          MatchRule
	Simplification SimplificationSpec
	Render         RenderBlock
	// NeverClip marks small structure polygons (buildings, transit
	// platforms) that the Clipper always writes whole (§4.5).
	NeverClip bool
}

// Tileset is a named collection of tiles sharing a tile size and a set of
// feature-selection rules, read-only after config load.
type Tileset struct {
	ID             string
	TileSizeMeters float64
	Features       []FeatureDefinition
}

// IntermediateRecord is one line of a per-tile append-only intermediate
// file: an importance prefix plus the serialized feature (§4.7).
type IntermediateRecord struct {
	Importance  int
	FeatureJSON string
}

// TileMeta is the `_meta` block carried by every finalized tile document.
type TileMeta struct {
	HasCoastline    bool `json:"hasCoastline"`
	HasLandFeatures bool `json:"hasLandFeatures"`
}

// TileDocument is the final output artifact for one tile: a feature
// collection plus metadata flags, features ordered by importance
// descending (§4.8).
type TileDocument struct {
	Type     string         `json:"type"`
	Meta     TileMeta       `json:"_meta"`
	Features []DocFeature   `json:"features"`
}

// DocFeature is the minimal GeoJSON-shaped feature written into a
// TileDocument: geometry, plus properties holding the tags, the
// importance score and the resolved render block. The memoized area is
// not carried.
type DocFeature struct {
	Type       string                 `json:"type"`
	Geometry   map[string]interface{} `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}
