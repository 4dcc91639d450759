package orchestrator

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/tilegen/internal/clip"
	"github.com/MeKo-Tech/tilegen/internal/config"
	"github.com/MeKo-Tech/tilegen/internal/source"
	"github.com/MeKo-Tech/tilegen/internal/types"
	"github.com/paulmach/orb"
)

func testTilesets(t *testing.T) []types.Tileset {
	t.Helper()
	doc := `
tilesets:
  - id: overview
    tile_size_meters: 50000
    features:
      - name: cities
        osm_match:
          geometry: [Point]
          tags:
            place: [city, town]
        render:
          layer: points
          min_lod: 0
`
	cfg, err := config.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parsing test tileset config: %v", err)
	}
	return cfg.Tilesets
}

type memStream struct {
	features []types.Feature
	pos      int
	closed   bool
}

func (s *memStream) Next() (*types.Feature, error) {
	if s.pos >= len(s.features) {
		return nil, io.EOF
	}
	f := s.features[s.pos]
	s.pos++
	return &f, nil
}

func (s *memStream) Close() error {
	s.closed = true
	return nil
}

func TestRunOrdersRegionsLargestFirstAndFinalizes(t *testing.T) {
	dir := t.TempDir()

	small := source.Region{
		ID: "small",
		Stream: &memStream{features: []types.Feature{
			types.NewFeature("n1", orb.Point{10, 50}, map[string]string{"place": "city", "name": "Smallville"}),
		}},
		Oracle: source.ExplicitBounds(types.Bounds{MinLon: 0, MinLat: 0, MaxLon: 1, MaxLat: 1}),
	}
	large := source.Region{
		ID: "large",
		Stream: &memStream{features: []types.Feature{
			types.NewFeature("n2", orb.Point{20, 50}, map[string]string{"place": "city", "name": "Bigburg"}),
		}},
		Oracle: source.ExplicitBounds(types.Bounds{MinLon: 0, MinLat: 0, MaxLon: 10, MaxLat: 10}),
	}

	result, err := Run(context.Background(), []source.Region{small, large}, Options{
		Tilesets:            testTilesets(t),
		OutputRoot:          dir,
		Workers:             2,
		Clip:                clip.Options{Enabled: false},
		CoastlineEpsilonDeg: 0.0001,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.RegionsProcessed != 2 {
		t.Errorf("expected 2 regions processed, got %d", result.RegionsProcessed)
	}
	if result.RegionsFailed != 0 {
		t.Errorf("expected 0 regions failed, got %d", result.RegionsFailed)
	}
	if result.FeaturesWritten != 2 {
		t.Errorf("expected 2 features written, got %d", result.FeaturesWritten)
	}
	if result.FeaturesSkipped != 0 {
		t.Errorf("expected 0 features skipped (memStream doesn't track skips), got %d", result.FeaturesSkipped)
	}
	if result.TilesFinalized == 0 {
		t.Error("expected at least one tile finalized")
	}

	finals, err := filepath.Glob(filepath.Join(dir, "overview", "*", "*.json"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(finals) == 0 {
		t.Fatal("expected at least one finalized tile document")
	}

	raw, err := os.ReadFile(finals[0])
	if err != nil {
		t.Fatalf("reading finalized tile: %v", err)
	}
	var doc types.TileDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal finalized tile: %v", err)
	}
	if len(doc.Features) == 0 {
		t.Error("expected the finalized tile document to carry at least one feature")
	}
}

func TestOrderLargestFirstSortsByArea(t *testing.T) {
	regions := []source.Region{
		{ID: "tiny", Oracle: source.ExplicitBounds(types.Bounds{MinLon: 0, MinLat: 0, MaxLon: 0.1, MaxLat: 0.1})},
		{ID: "huge", Oracle: source.ExplicitBounds(types.Bounds{MinLon: 0, MinLat: 0, MaxLon: 20, MaxLat: 20})},
		{ID: "mid", Oracle: source.ExplicitBounds(types.Bounds{MinLon: 0, MinLat: 0, MaxLon: 5, MaxLat: 5})},
	}

	ordered, err := orderLargestFirst(regions)
	if err != nil {
		t.Fatalf("orderLargestFirst: %v", err)
	}
	if len(ordered) != 3 || ordered[0].ID != "huge" || ordered[1].ID != "mid" || ordered[2].ID != "tiny" {
		ids := make([]string, len(ordered))
		for i, r := range ordered {
			ids[i] = r.ID
		}
		t.Errorf("expected [huge mid tiny], got %v", ids)
	}
}
