// Package geojson converts between orb geometries and the plain
// map[string]interface{} shape used in tile documents and intermediate
// records, and builds debug/export GeoJSON feature collections.
package geojson

import (
	"encoding/json"
	"fmt"

	"github.com/MeKo-Tech/tilegen/internal/types"
	"github.com/paulmach/orb"
	pgeojson "github.com/paulmach/orb/geojson"
)

// GeometryToMap renders an orb.Geometry as the GeoJSON geometry object
// shape (type + coordinates), suitable for embedding directly in a
// TileDocument or intermediate record without a nested marshal step.
func GeometryToMap(geom orb.Geometry) (map[string]interface{}, error) {
	if geom == nil {
		return nil, fmt.Errorf("nil geometry")
	}
	raw, err := pgeojson.NewGeometry(geom).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshaling geometry: %w", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decoding geometry to map: %w", err)
	}
	return out, nil
}

// MapToGeometry parses a GeoJSON geometry object previously produced by
// GeometryToMap back into an orb.Geometry, used by finalization to decode
// coastline segment geometries from the intermediate records before
// coastline synthesis.
func MapToGeometry(m map[string]interface{}) (orb.Geometry, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("re-encoding geometry map: %w", err)
	}
	g := &pgeojson.Geometry{}
	if err := g.UnmarshalJSON(raw); err != nil {
		return nil, fmt.Errorf("parsing geometry: %w", err)
	}
	return g.Geometry(), nil
}

// ToFeatureCollection builds a standard GeoJSON FeatureCollection from
// engine features, for callers that want standard GeoJSON. Neither the
// core tile-write path nor the catalog export calls it; both use the
// leaner DocFeature shape instead.
func ToFeatureCollection(features []types.Feature) (*pgeojson.FeatureCollection, error) {
	fc := pgeojson.NewFeatureCollection()
	for _, f := range features {
		if f.Geometry == nil {
			continue
		}
		gf := pgeojson.NewFeature(f.Geometry)
		gf.Properties = make(map[string]interface{}, len(f.Tags)+2)
		for k, v := range f.Tags {
			gf.Properties[k] = v
		}
		gf.Properties["osm_id"] = f.ID
		gf.Properties["importance"] = f.Importance
		fc.Append(gf)
	}
	return fc, nil
}
