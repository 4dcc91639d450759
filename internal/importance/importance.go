// Package importance implements the Importance Scorer (§4.6): a pure
// function of a feature's tags and geometry kind that assigns a small
// integer used for deterministic intra-tile ordering, plus the POI
// sub-categorization supplement.
package importance

import "github.com/MeKo-Tech/tilegen/internal/types"

// Score returns the importance value for a feature. Ties within a tile
// are broken by source order, not by anything computed here.
func Score(f *types.Feature) int {
	tags := f.Tags
	highway := effectiveHighway(tags)

	switch {
	case tags["natural"] == "coastline":
		return 110
	case tags["natural"] == "water" || tags["water"] != "" || tags["waterway"] == "riverbank":
		return 100
	case f.Kind == types.KindPoint && tags["place"] == "city":
		return 95
	case tags["landuse"] == "forest" || tags["natural"] == "wood":
		return 90
	case f.Kind == types.KindPoint && tags["place"] == "town":
		return 85
	case highway == "motorway" || highway == "trunk" || highway == "primary":
		return 80
	case tags["aeroway"] == "runway":
		return 75
	case f.Kind != types.KindPoint && isMajorRailway(tags["railway"]):
		return 70
	case tags["waterway"] == "river" || tags["waterway"] == "canal":
		return 60
	case f.Kind == types.KindPoint && tags["place"] == "village":
		return 55
	case highway == "secondary":
		return 50
	case tags["leisure"] == "park" || tags["landuse"] == "grass" || tags["landuse"] == "meadow" || tags["landuse"] == "farmland":
		return 40
	case tags["aeroway"] == "taxiway":
		return 35
	case tags["aeroway"] == "apron":
		return 30
	case highway == "tertiary" || highway == "residential" || highway == "unclassified":
		return 30
	case f.Kind == types.KindPoint && (tags["place"] == "suburb" || tags["place"] == "borough" || tags["place"] == "quarter"):
		return 25
	case tags["building"] != "":
		return 20
	case highway != "":
		return 10
	case f.Kind == types.KindPoint && (tags["place"] == "hamlet" || tags["place"] == "locality"):
		return 8
	case f.Kind == types.KindPoint && f.HasName() && (tags["amenity"] != "" || tags["shop"] != "" || tags["tourism"] != ""):
		return 5
	default:
		return 0
	}
}

// effectiveHighway remaps a `highway=construction` feature to its target
// class via the `construction` tag, so a road under construction scores
// the same as its eventual type (§4.6).
func effectiveHighway(tags map[string]string) string {
	hw := tags["highway"]
	if hw == "construction" && tags["construction"] != "" {
		return tags["construction"]
	}
	return hw
}

func isMajorRailway(railway string) bool {
	switch railway {
	case "rail", "light_rail", "subway", "tram", "monorail", "narrow_gauge", "preserved":
		return true
	default:
		return false
	}
}

// namedPOIImportance is the fixed score for the Named POI class (§4.6);
// ClassifyPOI attaches a poi_category for this score only.
const namedPOIImportance = 5

// Apply scores f and, for the Named POI class, attaches the feature's POI
// sub-category to its render block. Called once per feature after
// classification resolves its render block.
func Apply(f *types.Feature) {
	f.Importance = Score(f)
	if f.Importance == namedPOIImportance {
		if cat := ClassifyPOI(f.Tags); cat != "" {
			f.Render.PoiCategory = cat
		}
	}
}
