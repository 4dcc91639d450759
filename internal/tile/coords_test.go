package tile

import (
	"testing"

	"github.com/MeKo-Tech/tilegen/internal/types"
)

func TestRouteBoundsSingleTile(t *testing.T) {
	g := Grid{TilesetID: "overview", TileSizeMeters: 50000}
	b := types.Bounds{MinLon: 9.99, MinLat: 53.55, MaxLon: 10.0, MaxLat: 53.56}
	ids := g.RouteBounds(b)
	if len(ids) != 1 {
		t.Fatalf("expected a point-like bounds to land in exactly one tile, got %d: %+v", len(ids), ids)
	}
}

func TestRouteBoundsSpansMultipleTiles(t *testing.T) {
	g := Grid{TilesetID: "detail", TileSizeMeters: 1000}
	// 3km-ish span should cross several 1km tiles.
	b := types.Bounds{MinLon: 9.0, MinLat: 53.0, MaxLon: 9.04, MaxLat: 53.0}
	ids := g.RouteBounds(b)
	if len(ids) < 2 {
		t.Fatalf("expected multiple tiles for a wide bounds, got %d", len(ids))
	}
}

func TestRouteBoundsNegativeCoordinates(t *testing.T) {
	g := Grid{TilesetID: "overview", TileSizeMeters: 50000}
	b := types.Bounds{MinLon: -0.001, MinLat: -0.001, MaxLon: 0.001, MaxLat: 0.001}
	ids := g.RouteBounds(b)
	if len(ids) == 0 {
		t.Fatal("expected at least one tile straddling the origin")
	}
	foundNegative := false
	for _, id := range ids {
		if id.X < 0 || id.Y < 0 {
			foundNegative = true
		}
	}
	if !foundNegative {
		t.Error("expected at least one tile with a negative index near the origin")
	}
}

func TestTileRectangleContainsRoutedBounds(t *testing.T) {
	g := Grid{TilesetID: "overview", TileSizeMeters: 50000}
	b := types.Bounds{MinLon: 9.995, MinLat: 53.555, MaxLon: 9.996, MaxLat: 53.556}
	ids := g.RouteBounds(b)
	if len(ids) != 1 {
		t.Fatalf("expected single tile, got %d", len(ids))
	}
	rect := g.TileRectangle(ids[0])
	if b.MinLon < rect.MinLon || b.MaxLon > rect.MaxLon || b.MinLat < rect.MinLat || b.MaxLat > rect.MaxLat {
		t.Errorf("routed bounds %+v not contained in its own tile rectangle %+v", b, rect)
	}
}
