package geojson

import (
	"testing"

	"github.com/MeKo-Tech/tilegen/internal/types"
	"github.com/paulmach/orb"
)

func TestGeometryToMapRoundTrips(t *testing.T) {
	orig := orb.Polygon{{{9.73, 52.37}, {9.74, 52.37}, {9.74, 52.38}, {9.73, 52.37}}}
	m, err := GeometryToMap(orig)
	if err != nil {
		t.Fatalf("GeometryToMap: %v", err)
	}
	if m["type"] != "Polygon" {
		t.Errorf("expected type Polygon, got %v", m["type"])
	}

	back, err := MapToGeometry(m)
	if err != nil {
		t.Fatalf("MapToGeometry: %v", err)
	}
	if back.GeoJSONType() != "Polygon" {
		t.Errorf("round trip type mismatch: %s", back.GeoJSONType())
	}
}

func TestGeometryToMapRejectsNil(t *testing.T) {
	if _, err := GeometryToMap(nil); err == nil {
		t.Error("expected error for nil geometry")
	}
}

func TestToFeatureCollectionSkipsNilGeometry(t *testing.T) {
	valid := types.NewFeature("valid1", orb.Point{9.73, 52.37}, map[string]string{"natural": "spring"})
	features := []types.Feature{valid, {ID: "nil-geom"}}

	fc, err := ToFeatureCollection(features)
	if err != nil {
		t.Fatalf("ToFeatureCollection: %v", err)
	}
	if len(fc.Features) != 1 {
		t.Fatalf("expected 1 feature, got %d", len(fc.Features))
	}
	if fc.Features[0].Properties["osm_id"] != "valid1" {
		t.Errorf("expected osm_id=valid1, got %v", fc.Features[0].Properties["osm_id"])
	}
}

func TestToFeatureCollectionEmpty(t *testing.T) {
	fc, err := ToFeatureCollection(nil)
	if err != nil {
		t.Fatalf("ToFeatureCollection: %v", err)
	}
	if len(fc.Features) != 0 {
		t.Errorf("expected 0 features, got %d", len(fc.Features))
	}
}
