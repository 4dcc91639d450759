package types

import (
	"math"

	"github.com/paulmach/orb"
)

// GeometryKind is the closed set of geometry variants the engine
// understands. Every feature is dispatched on this tag rather than a type
// switch at every call site.
type GeometryKind int

const (
	KindPoint GeometryKind = iota
	KindLineString
	KindPolygon
	KindMultiLineString
	KindMultiPolygon
)

func (k GeometryKind) String() string {
	switch k {
	case KindPoint:
		return "Point"
	case KindLineString:
		return "LineString"
	case KindPolygon:
		return "Polygon"
	case KindMultiLineString:
		return "MultiLineString"
	case KindMultiPolygon:
		return "MultiPolygon"
	default:
		return "Unknown"
	}
}

// KindOf returns the GeometryKind for an orb.Geometry, or false if the
// geometry is outside the closed set this engine supports (e.g. MultiPoint).
func KindOf(g orb.Geometry) (GeometryKind, bool) {
	switch g.(type) {
	case orb.Point:
		return KindPoint, true
	case orb.LineString:
		return KindLineString, true
	case orb.Polygon:
		return KindPolygon, true
	case orb.MultiLineString:
		return KindMultiLineString, true
	case orb.MultiPolygon:
		return KindMultiPolygon, true
	default:
		return 0, false
	}
}

// RenderBlock is the small attached record telling the (external) renderer
// which visual layer, color and level-of-detail applies. Produced by
// classification, never inspected by the engine itself after that.
type RenderBlock struct {
	Layer       string `json:"layer"`
	Color       string `json:"color,omitempty"`
	MinLOD      int    `json:"min_lod"`
	PoiCategory string `json:"poi_category,omitempty"`
}

// Feature is a single classified, geometry-bearing unit of OSM data flowing
// through the pipeline. Coordinates are always WGS84 lon/lat.
type Feature struct {
	ID         string
	Geometry   orb.Geometry
	Kind       GeometryKind
	Tags       map[string]string
	Importance int
	Render     RenderBlock

	// areaKM2 memoizes the bounding-box area computation requested by the
	// classifier; -1 until first computed.
	areaKM2 float64
}

// NewFeature builds a Feature, deriving Kind from Geometry. Geometries
// outside the closed set default to KindPoint; callers at the stream
// boundary are expected to reject those earlier via KindOf.
func NewFeature(id string, geom orb.Geometry, tags map[string]string) Feature {
	kind, ok := KindOf(geom)
	if !ok {
		kind = KindPoint
	}
	return Feature{
		ID:       id,
		Geometry: geom,
		Kind:     kind,
		Tags:     tags,
		areaKM2:  -1,
	}
}

const metersPerDegreeLat = 111320.0

// AreaKM2 returns the feature's bounding-box area in square kilometers,
// using a fixed meridian factor, memoizing the result on the feature.
func (f *Feature) AreaKM2() float64 {
	if f.areaKM2 >= 0 {
		return f.areaKM2
	}
	bound := f.Geometry.Bound()
	latAvg := (bound.Min.Lat() + bound.Max.Lat()) / 2.0
	metersPerDegLon := metersPerDegreeLat * math.Cos(latAvg*math.Pi/180.0)
	widthKM := (bound.Max.Lon() - bound.Min.Lon()) * metersPerDegLon / 1000.0
	heightKM := (bound.Max.Lat() - bound.Min.Lat()) * metersPerDegreeLat / 1000.0
	f.areaKM2 = math.Abs(widthKM * heightKM)
	return f.areaKM2
}

// HasName reports whether the feature carries a non-empty "name" tag.
func (f *Feature) HasName() bool {
	name, ok := f.Tags["name"]
	return ok && name != ""
}

// Bound returns the feature's geographic bounding box.
func (f *Feature) Bound() orb.Bound {
	return f.Geometry.Bound()
}

// Bounds is a geographic bounding box, extracted once per source region and
// carried through to the index manifest.
type Bounds struct {
	MinLon, MinLat, MaxLon, MaxLat float64
}

// Valid reports whether min <= max on both axes.
func (b Bounds) Valid() bool {
	return b.MinLon <= b.MaxLon && b.MinLat <= b.MaxLat
}

// AreaKM2 returns the bounding box's area using the same meridian-corrected
// approximation as Feature.AreaKM2, used by the orchestrator to order
// regions largest-first.
func (b Bounds) AreaKM2() float64 {
	latAvg := (b.MinLat + b.MaxLat) / 2.0
	metersPerDegLon := metersPerDegreeLat * math.Cos(latAvg*math.Pi/180.0)
	widthKM := (b.MaxLon - b.MinLon) * metersPerDegLon / 1000.0
	heightKM := (b.MaxLat - b.MinLat) * metersPerDegreeLat / 1000.0
	return math.Abs(widthKM * heightKM)
}

// Bound converts Bounds to an orb.Bound for use with orb's geometry helpers.
func (b Bounds) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinLon, b.MinLat},
		Max: orb.Point{b.MaxLon, b.MaxLat},
	}
}

// BoundsFromOrb converts an orb.Bound to Bounds, the inverse of Bound.
func BoundsFromOrb(b orb.Bound) Bounds {
	return Bounds{
		MinLon: b.Min.Lon(),
		MinLat: b.Min.Lat(),
		MaxLon: b.Max.Lon(),
		MaxLat: b.Max.Lat(),
	}
}

// Union returns the smallest Bounds covering both b and other.
func (b Bounds) Union(other Bounds) Bounds {
	return Bounds{
		MinLon: math.Min(b.MinLon, other.MinLon),
		MinLat: math.Min(b.MinLat, other.MinLat),
		MaxLon: math.Max(b.MaxLon, other.MaxLon),
		MaxLat: math.Max(b.MaxLat, other.MaxLat),
	}
}

// Center returns the midpoint of the bounds.
func (b Bounds) Center() (lon, lat float64) {
	return (b.MinLon + b.MaxLon) / 2.0, (b.MinLat + b.MaxLat) / 2.0
}
