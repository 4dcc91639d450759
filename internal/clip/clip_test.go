package clip

import (
	"testing"

	"github.com/MeKo-Tech/tilegen/internal/types"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tileRect() types.Bounds {
	return types.Bounds{MinLon: 0, MinLat: 0, MaxLon: 1, MaxLat: 1}
}

func TestClipDisabledPassesThrough(t *testing.T) {
	geom := orb.Point{5, 5}
	out, keep := Clip(geom, types.KindPoint, types.FeatureDefinition{}, tileRect(), Options{Enabled: false})
	require.True(t, keep)
	assert.Equal(t, geom, out)
}

func TestClipNeverClipsPoints(t *testing.T) {
	geom := orb.Point{5, 5}
	out, keep := Clip(geom, types.KindPoint, types.FeatureDefinition{}, tileRect(), Options{Enabled: true, BufferFraction: 0.02})
	require.True(t, keep)
	assert.Equal(t, geom, out)
}

func TestClipNeverClipsLines(t *testing.T) {
	geom := orb.LineString{{-5, -5}, {5, 5}}
	out, keep := Clip(geom, types.KindLineString, types.FeatureDefinition{}, tileRect(), Options{Enabled: true, BufferFraction: 0.02})
	require.True(t, keep)
	assert.Equal(t, geom, out)
}

func TestClipRespectsNeverClipFlag(t *testing.T) {
	geom := orb.Polygon{{{-5, -5}, {5, -5}, {5, 5}, {-5, 5}, {-5, -5}}}
	def := types.FeatureDefinition{NeverClip: true}
	out, keep := Clip(geom, types.KindPolygon, def, tileRect(), Options{Enabled: true, BufferFraction: 0.02})
	require.True(t, keep)
	assert.Equal(t, geom, out)
}

func TestClipSkipsWhenFullyInsideBufferedBox(t *testing.T) {
	geom := orb.Polygon{{{0.4, 0.4}, {0.6, 0.4}, {0.6, 0.6}, {0.4, 0.6}, {0.4, 0.4}}}
	out, keep := Clip(geom, types.KindPolygon, types.FeatureDefinition{}, tileRect(), Options{Enabled: true, BufferFraction: 0.02})
	require.True(t, keep)
	assert.Equal(t, geom, out)
}

func TestClipIntersectsPolygonCrossingBoundary(t *testing.T) {
	geom := orb.Polygon{{{-0.5, 0.2}, {0.5, 0.2}, {0.5, 0.8}, {-0.5, 0.8}, {-0.5, 0.2}}}
	out, keep := Clip(geom, types.KindPolygon, types.FeatureDefinition{}, tileRect(), Options{Enabled: true, BufferFraction: 0.02})
	require.True(t, keep)
	require.NotNil(t, out)
	b := out.Bound()
	assert.GreaterOrEqual(t, b.Min.Lon(), -0.02)
}

func TestClipDropsPolygonEntirelyOutside(t *testing.T) {
	geom := orb.Polygon{{{10, 10}, {11, 10}, {11, 11}, {10, 11}, {10, 10}}}
	_, keep := Clip(geom, types.KindPolygon, types.FeatureDefinition{}, tileRect(), Options{Enabled: true, BufferFraction: 0.02})
	assert.False(t, keep)
}

func TestBufferBoundExpandsBySpecifiedFraction(t *testing.T) {
	b := bufferBound(types.Bounds{MinLon: 0, MinLat: 0, MaxLon: 1, MaxLat: 1}, 0.1)
	assert.InDelta(t, -0.1, b.Min.Lon(), 1e-9)
	assert.InDelta(t, 1.1, b.Max.Lon(), 1e-9)
}
