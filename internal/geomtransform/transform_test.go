package geomtransform

import (
	"testing"

	"github.com/MeKo-Tech/tilegen/internal/types"
	"github.com/paulmach/orb"
)

func TestSimplifyLeavesPointsUnchanged(t *testing.T) {
	p := orb.Point{9.5, 53.5}
	got := Simplify(p, 0.01)
	if got.(orb.Point) != p {
		t.Errorf("expected point unchanged, got %v", got)
	}
}

func TestSimplifyReducesVertices(t *testing.T) {
	// A nearly-straight line with one point that should be dropped at a
	// generous epsilon: (0,0) -> (1, 0.0001) -> (2,0).
	line := orb.LineString{{0, 0}, {1, 0.0001}, {2, 0}}
	got := Simplify(line, 0.01).(orb.LineString)
	if len(got) != 2 {
		t.Errorf("expected simplification to drop the near-collinear vertex, got %d points", len(got))
	}
}

func TestTransformRevertsOnEmptyResult(t *testing.T) {
	// A degenerate 2-point line simplified at a huge epsilon could in
	// principle collapse; Transform must never return an empty geometry.
	line := orb.LineString{{0, 0}, {0.00001, 0.00001}}
	def := types.SimplificationSpec{EpsilonM: 100000}
	got := Transform(line, types.KindLineString, def, Options{})
	ls, ok := got.(orb.LineString)
	if !ok || len(ls) < 2 {
		t.Errorf("expected Transform to revert to a valid line, got %#v", got)
	}
}

func TestTransformSkipsDisabledSimplification(t *testing.T) {
	line := orb.LineString{{0, 0}, {1, 0.0001}, {2, 0}}
	def := types.SimplificationSpec{Disabled: true, EpsilonM: 100000}
	got := Transform(line, types.KindLineString, def, Options{}).(orb.LineString)
	if len(got) != len(line) {
		t.Errorf("expected disabled simplification to pass geometry through unchanged, got %d points, want %d", len(got), len(line))
	}
}

func TestGridSnapIdempotent(t *testing.T) {
	line := orb.LineString{{9.123456, 53.987654}, {9.654321, 53.123456}}
	cellSizeDeg := 0.0001
	once := GridSnap(line, cellSizeDeg)
	twice := GridSnap(once, cellSizeDeg)

	onceLS := once.(orb.LineString)
	twiceLS := twice.(orb.LineString)
	for i := range onceLS {
		if onceLS[i] != twiceLS[i] {
			t.Errorf("grid-snap not idempotent at index %d: %v != %v", i, onceLS[i], twiceLS[i])
		}
	}
}

func TestGridSnapPolygon(t *testing.T) {
	poly := orb.Polygon{orb.Ring{
		{0.00001, 0.00001}, {1.00002, 0.00001}, {1.00002, 1.00002}, {0.00001, 1.00002}, {0.00001, 0.00001},
	}}
	got := GridSnap(poly, 0.001).(orb.Polygon)
	if len(got) != len(poly) || len(got[0]) != len(poly[0]) {
		t.Fatalf("expected ring shape preserved")
	}
}
