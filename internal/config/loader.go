// Package config loads the declarative tileset specification (§4.1) from a
// YAML document, validating it and interning its tag-value sets for fast
// classification lookups.
package config

import (
	"fmt"
	"os"

	"github.com/MeKo-Tech/tilegen/internal/types"
	"gopkg.in/yaml.v3"
)

var (
	// ErrDuplicateTilesetID is returned when two tilesets share an id.
	ErrDuplicateTilesetID = fmt.Errorf("duplicate tileset id")
	// ErrNonPositiveTileSize is returned when a tileset's tile size isn't > 0.
	ErrNonPositiveTileSize = fmt.Errorf("tile_size_meters must be positive")
)

// Document is the raw YAML shape of the tileset configuration file.
type Document struct {
	Tilesets []tilesetYAML `yaml:"tilesets"`
}

type tilesetYAML struct {
	ID             string        `yaml:"id"`
	TileSizeMeters float64       `yaml:"tile_size_meters"`
	Features       []featureYAML `yaml:"features"`
}

type featureYAML struct {
	Name           string        `yaml:"name"`
	OSMMatch       matchYAML     `yaml:"osm_match"`
	Simplification *simplifyYAML `yaml:"simplification"`
	Render         renderYAML    `yaml:"render"`
	NeverClip      bool          `yaml:"never_clip"`
}

type matchYAML struct {
	Geometry      []string            `yaml:"geometry"`
	Tags          map[string][]string `yaml:"tags"`
	MatchAll      bool                `yaml:"match_all"`
	TagsExclude   map[string][]string `yaml:"tags_exclude"`
	MinAreaKM2    *float64            `yaml:"min_area_km2"`
	MaxAreaKM2    *float64            `yaml:"max_area_km2"`
	PopulationMin *int                `yaml:"population_min"`
	PopulationMax *int                `yaml:"population_max"`
	RequiresName  bool                `yaml:"requires_name"`
}

type simplifyYAML struct {
	Disabled bool    `yaml:"disabled"`
	EpsilonM float64 `yaml:"epsilon_m"`
}

type renderYAML struct {
	Layer  string `yaml:"layer"`
	Color  string `yaml:"color"`
	MinLOD int    `yaml:"min_lod"`
}

// Config is the in-memory, validated, interned schema the rest of the
// engine consumes.
type Config struct {
	Tilesets []types.Tileset
}

// Load reads and validates a tileset configuration document from path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tileset config %q: %w", path, err)
	}
	return Parse(raw)
}

// Parse validates and interns a tileset configuration document already in
// memory. Exposed separately from Load so tests and embedded callers don't
// need a file on disk.
func Parse(raw []byte) (*Config, error) {
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing tileset config: %w", err)
	}

	seen := make(map[string]struct{}, len(doc.Tilesets))
	cfg := &Config{Tilesets: make([]types.Tileset, 0, len(doc.Tilesets))}

	for _, ts := range doc.Tilesets {
		if _, dup := seen[ts.ID]; dup {
			return nil, fmt.Errorf("tileset %q: %w", ts.ID, ErrDuplicateTilesetID)
		}
		seen[ts.ID] = struct{}{}

		if ts.TileSizeMeters <= 0 {
			return nil, fmt.Errorf("tileset %q: %w", ts.ID, ErrNonPositiveTileSize)
		}

		defs := make([]types.FeatureDefinition, 0, len(ts.Features))
		for _, f := range ts.Features {
			def, err := buildDefinition(f)
			if err != nil {
				return nil, fmt.Errorf("tileset %q, feature %q: %w", ts.ID, f.Name, err)
			}
			defs = append(defs, def)
		}

		cfg.Tilesets = append(cfg.Tilesets, types.Tileset{
			ID:             ts.ID,
			TileSizeMeters: ts.TileSizeMeters,
			Features:       defs,
		})
	}

	return cfg, nil
}

func buildDefinition(f featureYAML) (types.FeatureDefinition, error) {
	geomSet := make(map[types.GeometryKind]struct{}, len(f.OSMMatch.Geometry))
	for _, g := range f.OSMMatch.Geometry {
		kind, ok := geometryKindByName(g)
		if !ok {
			return types.FeatureDefinition{}, fmt.Errorf("unknown geometry kind %q", g)
		}
		geomSet[kind] = struct{}{}
	}

	def := types.FeatureDefinition{
		Name: f.Name,
		Match: types.MatchRule{
			Geometry:      geomSet,
			Tags:          internTagSets(f.OSMMatch.Tags),
			MatchAll:      f.OSMMatch.MatchAll,
			TagsExclude:   internTagSets(f.OSMMatch.TagsExclude),
			MinAreaKM2:    f.OSMMatch.MinAreaKM2,
			MaxAreaKM2:    f.OSMMatch.MaxAreaKM2,
			PopulationMin: f.OSMMatch.PopulationMin,
			PopulationMax: f.OSMMatch.PopulationMax,
			RequiresName:  f.OSMMatch.RequiresName,
		},
		Render: types.RenderBlock{
			Layer:  f.Render.Layer,
			Color:  f.Render.Color,
			MinLOD: f.Render.MinLOD,
		},
		NeverClip: f.NeverClip,
	}

	if f.Simplification != nil {
		def.Simplification = types.SimplificationSpec{
			Disabled: f.Simplification.Disabled,
			EpsilonM: f.Simplification.EpsilonM,
		}
	}

	return def, nil
}

// internTagSets converts the YAML key->list shape into key->set, so
// classification membership checks are O(1) instead of scanning a slice
// per feature (§9 "Dynamic tag access").
func internTagSets(raw map[string][]string) map[string]map[string]struct{} {
	if raw == nil {
		return nil
	}
	out := make(map[string]map[string]struct{}, len(raw))
	for key, values := range raw {
		set := make(map[string]struct{}, len(values))
		for _, v := range values {
			set[v] = struct{}{}
		}
		out[key] = set
	}
	return out
}

func geometryKindByName(name string) (types.GeometryKind, bool) {
	switch name {
	case "Point":
		return types.KindPoint, true
	case "LineString":
		return types.KindLineString, true
	case "Polygon":
		return types.KindPolygon, true
	case "MultiLineString":
		return types.KindMultiLineString, true
	case "MultiPolygon":
		return types.KindMultiPolygon, true
	default:
		return 0, false
	}
}
