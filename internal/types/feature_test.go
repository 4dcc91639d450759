package types

import (
	"testing"

	"github.com/paulmach/orb"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		geom orb.Geometry
		want GeometryKind
	}{
		{orb.Point{9, 52}, KindPoint},
		{orb.LineString{{9, 52}, {9.1, 52.1}}, KindLineString},
		{orb.Polygon{orb.Ring{{9, 52}, {9.1, 52}, {9.1, 52.1}, {9, 52}}}, KindPolygon},
		{orb.MultiLineString{{{9, 52}, {9.1, 52.1}}}, KindMultiLineString},
		{orb.MultiPolygon{{orb.Ring{{9, 52}, {9.1, 52}, {9.1, 52.1}, {9, 52}}}}, KindMultiPolygon},
	}
	for _, c := range cases {
		kind, ok := KindOf(c.geom)
		if !ok {
			t.Fatalf("KindOf(%T) returned ok=false", c.geom)
		}
		if kind != c.want {
			t.Errorf("KindOf(%T) = %v, want %v", c.geom, kind, c.want)
		}
	}
}

func TestKindOfRejectsUnsupportedGeometry(t *testing.T) {
	if _, ok := KindOf(orb.MultiPoint{{9, 52}}); ok {
		t.Error("expected MultiPoint to be rejected, it is outside the closed set")
	}
}

func TestFeatureAreaKM2Memoizes(t *testing.T) {
	f := NewFeature("way/1", orb.Polygon{orb.Ring{
		{9.0, 52.0}, {9.1, 52.0}, {9.1, 52.1}, {9.0, 52.1}, {9.0, 52.0},
	}}, map[string]string{"natural": "water"})

	first := f.AreaKM2()
	if first <= 0 {
		t.Fatalf("expected positive area, got %f", first)
	}

	// Mutate geometry directly without going through NewFeature; AreaKM2
	// must keep returning the memoized value rather than recomputing.
	f.Geometry = orb.Point{0, 0}
	if got := f.AreaKM2(); got != first {
		t.Errorf("AreaKM2 recomputed after mutation: got %f, want memoized %f", got, first)
	}
}

func TestFeatureHasName(t *testing.T) {
	withName := NewFeature("n1", orb.Point{0, 0}, map[string]string{"name": "Hamburg"})
	if !withName.HasName() {
		t.Error("expected HasName true")
	}

	withoutName := NewFeature("n2", orb.Point{0, 0}, map[string]string{"amenity": "cafe"})
	if withoutName.HasName() {
		t.Error("expected HasName false")
	}

	emptyName := NewFeature("n3", orb.Point{0, 0}, map[string]string{"name": ""})
	if emptyName.HasName() {
		t.Error("expected HasName false for empty name tag")
	}
}

func TestBoundsAreaKM2(t *testing.T) {
	b := Bounds{MinLon: 9.0, MinLat: 52.0, MaxLon: 9.1, MaxLat: 52.1}
	if b.AreaKM2() <= 0 {
		t.Error("expected positive area")
	}
}

func TestBoundsUnion(t *testing.T) {
	a := Bounds{MinLon: 0, MinLat: 0, MaxLon: 1, MaxLat: 1}
	b := Bounds{MinLon: -1, MinLat: 0.5, MaxLon: 0.5, MaxLat: 2}
	u := a.Union(b)
	want := Bounds{MinLon: -1, MinLat: 0, MaxLon: 1, MaxLat: 2}
	if u != want {
		t.Errorf("Union = %+v, want %+v", u, want)
	}
}
