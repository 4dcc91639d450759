// Package clip implements the Clipper (§4.5): refining the Tile Router's
// loose bounding-box assignment by intersecting polygons (other than small
// structures) with a buffered tile rectangle.
package clip

import (
	"github.com/MeKo-Tech/tilegen/internal/types"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
)

// Options configures clipping for one pipeline run.
type Options struct {
	Enabled      bool
	BufferFraction float64 // fraction of tile size, default ~0.02 (2%)
}

// DefaultBufferFraction is the spec's default clip buffer (§4.5).
const DefaultBufferFraction = 0.02

// Clip applies the Clipper's rules for one (feature, tile) pair and
// returns the geometry to write for that tile. The returned bool reports
// whether the feature should be written to this tile at all — false means
// "drop for this tile" (an empty intersection), never an error.
func Clip(geom orb.Geometry, kind types.GeometryKind, def types.FeatureDefinition, tileRect types.Bounds, opts Options) (orb.Geometry, bool) {
	if !opts.Enabled {
		return geom, true
	}

	switch kind {
	case types.KindPoint:
		return geom, true
	case types.KindLineString, types.KindMultiLineString:
		// Lines are never clipped: clipping would create gaps at tile
		// boundaries that break road/rail continuity for the renderer.
		return geom, true
	}

	if def.NeverClip {
		return geom, true
	}

	buffered := bufferBound(tileRect, opts.BufferFraction)

	// If the feature lies entirely inside the buffered box, skip the
	// intersection — it is a no-op that would only risk introducing
	// clipping artifacts for no benefit.
	if boundContains(buffered, geom.Bound()) {
		return geom, true
	}

	clipped := safeClip(geom, buffered)
	if clipped == nil {
		// Intersection failed (invalid geometry, self-intersection):
		// keep the original geometry for this tile rather than dropping it.
		return geom, true
	}
	if geometryIsEmpty(clipped) {
		return nil, false
	}
	return clipped, true
}

func bufferBound(b types.Bounds, fraction float64) orb.Bound {
	width := b.MaxLon - b.MinLon
	height := b.MaxLat - b.MinLat
	dx := width * fraction
	dy := height * fraction
	return orb.Bound{
		Min: orb.Point{b.MinLon - dx, b.MinLat - dy},
		Max: orb.Point{b.MaxLon + dx, b.MaxLat + dy},
	}
}

func boundContains(outer orb.Bound, inner orb.Bound) bool {
	return inner.Min.Lon() >= outer.Min.Lon() && inner.Max.Lon() <= outer.Max.Lon() &&
		inner.Min.Lat() >= outer.Min.Lat() && inner.Max.Lat() <= outer.Max.Lat()
}

// safeClip wraps orb/clip, recovering from any panic the library might
// raise on pathological input — the spec treats intersection failures as
// recoverable (§4.5, §7 "Simplification / clipping error").
func safeClip(geom orb.Geometry, bound orb.Bound) (result orb.Geometry) {
	defer func() {
		if recover() != nil {
			result = nil
		}
	}()

	switch g := geom.(type) {
	case orb.Polygon:
		clipped := clip.Polygon(bound, g)
		if clipped == nil {
			return nil
		}
		return clipped
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, 0, len(g))
		for _, p := range g {
			c := clip.Polygon(bound, p)
			if c != nil {
				out = append(out, c)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	default:
		return geom
	}
}

func geometryIsEmpty(geom orb.Geometry) bool {
	switch g := geom.(type) {
	case orb.Polygon:
		return len(g) == 0
	case orb.MultiPolygon:
		return len(g) == 0
	default:
		return geom == nil
	}
}
