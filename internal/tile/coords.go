// Package tile implements the Tile Router (§4.4): routing a feature's
// bounding box to the set of TileIds it touches under a tileset's
// equal-metric grid. Unlike the Web Mercator z/x/y scheme this package's
// teacher counterpart used, there is no zoom level here — one grid per
// tileset, signed x/y, origin at (lon=0, lat=0).
package tile

import (
	"math"

	"github.com/MeKo-Tech/tilegen/internal/types"
)

// metersPerDegreeLat is latitude-independent: one degree of latitude is
// always about 111.32km regardless of where on the globe you are.
const metersPerDegreeLat = 111320.0

// Grid holds a tileset's tile size; cell dimensions in degrees are
// latitude-dependent for longitude and so are computed per call, not
// precomputed here.
type Grid struct {
	TilesetID      string
	TileSizeMeters float64
}

// NewGrid builds a Grid for a tileset.
func NewGrid(ts types.Tileset) Grid {
	return Grid{TilesetID: ts.ID, TileSizeMeters: ts.TileSizeMeters}
}

// heightDeg is the grid's tile height in degrees; it does not depend on
// latitude, since degrees of latitude are a constant arc length.
func (g Grid) heightDeg() float64 {
	return g.TileSizeMeters / metersPerDegreeLat
}

// widthDeg returns the grid's tile width in degrees at latAvg (§4.4).
func (g Grid) widthDeg(latAvg float64) float64 {
	metersPerDegLon := metersPerDegreeLat * math.Cos(latAvg*math.Pi/180.0)
	if metersPerDegLon <= 0 {
		metersPerDegLon = metersPerDegreeLat // guards the poles
	}
	return g.TileSizeMeters / metersPerDegLon
}

// RouteBounds returns every TileId whose grid cell's bounding-box range
// overlaps b — the Cartesian product of the tile-x and tile-y ranges
// touched by b, per §4.4. This is intentionally a loose, bounding-box-only
// assignment; the Clipper refines it per tile.
func (g Grid) RouteBounds(b types.Bounds) []types.TileID {
	latAvg := (b.MinLat + b.MaxLat) / 2.0
	widthDeg := g.widthDeg(latAvg)
	heightDeg := g.heightDeg()

	minX := int(math.Floor(b.MinLon / widthDeg))
	maxX := int(math.Floor(b.MaxLon / widthDeg))
	minY := int(math.Floor(b.MinLat / heightDeg))
	maxY := int(math.Floor(b.MaxLat / heightDeg))

	ids := make([]types.TileID, 0, (maxX-minX+1)*(maxY-minY+1))
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			ids = append(ids, types.TileID{TilesetID: g.TilesetID, X: x, Y: y})
		}
	}
	return ids
}

// TileRectangle returns the geographic bounding box of a single tile cell,
// approximating the width at the tile's own vertical center (width varies
// slightly with latitude within a tall tile; the spec accepts this, the
// same way it accepts the epsilon meters-to-degrees approximation — see
// §9 "Unit of epsilon").
func (g Grid) TileRectangle(id types.TileID) types.Bounds {
	heightDeg := g.heightDeg()
	latCenter := (float64(id.Y) + 0.5) * heightDeg
	widthDeg := g.widthDeg(latCenter)

	minLon := float64(id.X) * widthDeg
	minLat := float64(id.Y) * heightDeg
	return types.Bounds{
		MinLon: minLon,
		MinLat: minLat,
		MaxLon: minLon + widthDeg,
		MaxLat: minLat + heightDeg,
	}
}
