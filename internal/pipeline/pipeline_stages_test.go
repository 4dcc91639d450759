package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/tilegen/internal/clip"
	"github.com/MeKo-Tech/tilegen/internal/config"
	"github.com/MeKo-Tech/tilegen/internal/types"
	"github.com/MeKo-Tech/tilegen/internal/writer"
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

func pointGeom(lon, lat float64) orb.Geometry {
	return orb.Point{lon, lat}
}

// sliceStream adapts an in-memory feature slice to source.FeatureStream
// for testing without a file or network round trip.
type sliceStream struct {
	features []types.Feature
	pos      int
}

func (s *sliceStream) Next() (*types.Feature, error) {
	if s.pos >= len(s.features) {
		return nil, io.EOF
	}
	f := s.features[s.pos]
	s.pos++
	return &f, nil
}

func (s *sliceStream) Close() error { return nil }

func TestPipelineProcessRegionWritesMatchedFeature(t *testing.T) {
	dir := t.TempDir()
	w, err := writer.New(dir)
	if err != nil {
		t.Fatalf("writer.New: %v", err)
	}

	p := New(Options{
		Tilesets: testTilesets(t),
		Clip:     clip.Options{Enabled: false},
	}, w)

	features := []types.Feature{
		types.NewFeature("n1", pointGeom(10, 50), map[string]string{"place": "city", "name": "Testburg"}),
	}

	count, skipped, err := p.ProcessRegion(context.Background(), &sliceStream{features: features})
	if err != nil {
		t.Fatalf("ProcessRegion: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 feature consumed, got %d", count)
	}
	if skipped != 0 {
		t.Errorf("expected 0 skipped, got %d", skipped)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "overview", "*", "*.jsonl"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected exactly one intermediate tile file, got %d: %v", len(matches), matches)
	}

	content, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("reading intermediate file: %v", err)
	}
	if len(content) == 0 {
		t.Error("expected non-empty intermediate file")
	}
}

func TestPipelineProcessRegionSkipsUnmatchedFeature(t *testing.T) {
	dir := t.TempDir()
	w, err := writer.New(dir)
	if err != nil {
		t.Fatalf("writer.New: %v", err)
	}

	p := New(Options{
		Tilesets: testTilesets(t),
		Clip:     clip.Options{Enabled: false},
	}, w)

	features := []types.Feature{
		types.NewFeature("n2", pointGeom(10, 50), map[string]string{"shop": "bakery"}),
	}

	count, _, err := p.ProcessRegion(context.Background(), &sliceStream{features: features})
	if err != nil {
		t.Fatalf("ProcessRegion: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 feature consumed, got %d", count)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "overview", "*", "*.jsonl"))
	if len(matches) != 0 {
		t.Errorf("expected no tile files for an unmatched feature, got %v", matches)
	}
}
