package importance

// poiCategories mirrors the original preprocessing's POI_CATEGORIES: a set
// of OSM tag values per (key, category) pair, keyed by the tag that
// qualifies the category.
var poiCategories = map[string]struct {
	amenity map[string]struct{}
	shop    map[string]struct{}
	tourism map[string]struct{}
	historic map[string]struct{}
}{
	"food_drink": {
		amenity: toSet("restaurant", "fast_food", "cafe", "ice_cream", "food_court", "bbq"),
		shop:    toSet("bakery", "pastry", "deli", "confectionery", "butcher", "cheese", "seafood", "coffee", "tea", "wine", "beverages", "alcohol"),
	},
	"shopping": {
		shop: toSet(
			"hairdresser", "clothes", "kiosk", "supermarket", "convenience", "beauty",
			"jewelry", "florist", "chemist", "mobile_phone", "optician", "shoes",
			"furniture", "books", "bicycle", "car_repair", "tailor", "tattoo",
			"massage", "interior_decoration", "electronics", "hardware", "sports",
			"toys", "gift", "stationery", "pet", "photo", "music", "art", "bag",
			"fabric", "garden_centre", "hearing_aids", "travel_agency",
			"dry_cleaning", "laundry", "car", "car_parts", "tyres", "motorcycle",
		),
		amenity: toSet("marketplace", "vending_machine"),
	},
	"health": {
		amenity: toSet("doctors", "dentist", "pharmacy", "hospital", "clinic", "veterinary", "nursing_home"),
	},
	"tourism": {
		tourism: toSet(
			"artwork", "hotel", "museum", "viewpoint", "information", "attraction",
			"guest_house", "hostel", "gallery", "camp_site", "picnic_site", "zoo",
			"theme_park", "motel", "apartment",
		),
	},
	"historic": {
		historic: toSet(
			"memorial", "boundary_stone", "monument", "castle", "ruins",
			"archaeological_site", "building", "church", "manor", "city_gate",
			"wayside_cross", "wayside_shrine", "heritage", "milestone", "tomb",
			"technical_monument", "highwater_mark",
		),
	},
	"services": {
		amenity: toSet(
			"bank", "post_office", "library", "police", "fire_station", "townhall",
			"courthouse", "embassy", "community_centre", "social_facility",
			"place_of_worship", "cinema", "theatre", "arts_centre", "driving_school",
			"recycling", "post_box", "atm", "bureau_de_change", "toilets",
			"events_venue", "childcare",
		),
	},
	"transport": {
		amenity: toSet(
			"bicycle_rental", "parking", "parking_entrance", "fuel",
			"charging_station", "car_sharing", "taxi", "bus_station",
			"ferry_terminal", "car_rental", "boat_rental",
		),
	},
	"education": {
		amenity: toSet("kindergarten", "school", "university", "college", "music_school", "language_school", "training"),
	},
	"nightlife": {
		amenity: toSet("bar", "pub", "nightclub", "biergarten", "casino", "gambling", "hookah_lounge"),
	},
}

// poiAmenityPriority is the order `amenity`-keyed categories are tried in
// before falling back to "services" for any other amenity value.
var poiAmenityPriority = []string{
	"food_drink", "nightlife", "health", "education", "transport", "services",
}

func toSet(values ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// ClassifyPOI returns the POI category for a Named POI feature's tags, or
// "" if none apply. Matched in priority order against amenity, shop,
// tourism, and historic, mirroring classify_poi (§4.6 supplement).
func ClassifyPOI(tags map[string]string) string {
	amenity := tags["amenity"]
	shop := tags["shop"]
	tourism := tags["tourism"]
	historic := tags["historic"]

	if amenity != "" {
		for _, catID := range poiAmenityPriority {
			if _, ok := poiCategories[catID].amenity[amenity]; ok {
				return catID
			}
		}
		if _, ok := poiCategories["shopping"].amenity[amenity]; ok {
			return "shopping"
		}
	}
	if shop != "" {
		for catID, cat := range poiCategories {
			if _, ok := cat.shop[shop]; ok {
				return catID
			}
		}
		return "shopping"
	}
	if tourism != "" {
		return "tourism"
	}
	if historic != "" {
		return "historic"
	}
	if amenity != "" {
		return "services"
	}
	return ""
}
