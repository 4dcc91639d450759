// Package finalize implements the Tile Finalizer (§4.8): turning one
// tile's append-only intermediate file into its final feature-collection
// document, invoking the Coastline-to-Water Synthesizer where needed.
package finalize

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/tilegen/internal/coastline"
	"github.com/MeKo-Tech/tilegen/internal/geojson"
	"github.com/MeKo-Tech/tilegen/internal/types"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"
)

// landTagKeys is the fixed allow-list used to compute hasLandFeatures
// (§4.8 step 4): any feature carrying one of these keys (with a
// non-water value, for "natural") counts as a land feature. "place" is
// not in the list, so a tile holding only settlement points reports no
// land features.
var landTagKeys = []string{"building", "highway", "landuse", "leisure", "railway", "aeroway"}

func isLandTagged(tags map[string]string) bool {
	if natural, ok := tags["natural"]; ok && natural != "water" && natural != "coastline" {
		return true
	}
	for _, key := range landTagKeys {
		if _, ok := tags[key]; ok {
			return true
		}
	}
	return false
}

// record is a decoded intermediate line, keeping its tags available for
// the hasCoastline/hasLandFeatures scan without a second JSON pass.
type record struct {
	importance int
	rawJSON    string
	feature    encodedFeature
}

type encodedFeature struct {
	ID       string                 `json:"id"`
	Geometry map[string]interface{} `json:"geometry"`
	Tags     map[string]string      `json:"tags"`
	Render   types.RenderBlock      `json:"render"`
}

// mergedImportance is the importance assigned to features unioned in from
// a prior finalized document in a multi-source run (§4.8 step 3).
const mergedImportance = 5

// Options configures finalization for one tileset.
type Options struct {
	CoastlineEpsilonDeg float64
}

// Finalize reads intermediatePath, merges it with any prior finalized
// document at finalPath, synthesizes coastline water polygons if needed,
// and writes the result to finalPath. It deletes intermediatePath on
// success.
func Finalize(intermediatePath, finalPath string, tileRect types.Bounds, opts Options) error {
	records, err := readIntermediate(intermediatePath)
	if err != nil {
		return fmt.Errorf("reading intermediate file %q: %w", intermediatePath, err)
	}

	seen := make(map[string]struct{}, len(records))
	ordered := make([]record, 0, len(records))
	for _, r := range records {
		if _, dup := seen[r.rawJSON]; dup {
			continue
		}
		seen[r.rawJSON] = struct{}{}
		ordered = append(ordered, r)
	}

	if prior, err := readFinalDocument(finalPath); err == nil {
		for _, df := range prior.Features {
			raw, err := json.Marshal(df)
			if err != nil {
				continue
			}
			key := string(raw)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			ordered = append(ordered, record{
				importance: mergedImportance,
				rawJSON:    key,
				feature: encodedFeature{
					Geometry: df.Geometry,
					Tags:     propertiesToTags(df.Properties),
					Render:   renderFromProperties(df.Properties),
				},
			})
		}
	}

	meta := types.TileMeta{}
	var coastlineLines []record
	var others []record
	for _, r := range ordered {
		if r.feature.Tags["natural"] == "coastline" {
			meta.HasCoastline = true
			coastlineLines = append(coastlineLines, r)
			continue
		}
		if isLandTagged(r.feature.Tags) {
			meta.HasLandFeatures = true
		}
		others = append(others, r)
	}

	docFeatures := make([]types.DocFeature, 0, len(ordered))
	for _, r := range others {
		docFeatures = append(docFeatures, toDocFeature(r))
	}

	if meta.HasCoastline {
		segments := make([]orb.LineString, 0, len(coastlineLines))
		for _, r := range coastlineLines {
			geom, err := geojson.MapToGeometry(r.feature.Geometry)
			if err != nil {
				continue
			}
			if ls, ok := geom.(orb.LineString); ok {
				segments = append(segments, ls)
			}
		}

		polys, err := coastline.Synthesize(segments, tileRect)
		if err != nil {
			return fmt.Errorf("synthesizing coastline for %q: %w", finalPath, err)
		}
		if len(polys) == 0 {
			meta.HasCoastline = false
			for _, r := range coastlineLines {
				docFeatures = append(docFeatures, toDocFeature(r))
			}
		} else {
			for i, poly := range polys {
				simplified := simplify.DouglasPeucker(opts.CoastlineEpsilonDeg).Simplify(poly)
				geomMap, err := geojson.GeometryToMap(simplified)
				if err != nil {
					return fmt.Errorf("encoding synthesized water polygon: %w", err)
				}
				docFeatures = append(docFeatures, types.DocFeature{
					Type:     "Feature",
					Geometry: geomMap,
					Properties: map[string]interface{}{
						"natural":    "water",
						"water":      "ocean",
						"render":     types.RenderBlock{Layer: "ocean"},
						"synthetic":  true,
						"importance": 100,
						"id":         fmt.Sprintf("synthetic-water-%d", i),
					},
				})
			}
		}
	}

	sortByImportanceDescending(docFeatures)

	doc := types.TileDocument{
		Type:     "FeatureCollection",
		Meta:     meta,
		Features: docFeatures,
	}

	if err := writeDocument(finalPath, doc); err != nil {
		return err
	}

	if err := os.Remove(intermediatePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing intermediate file %q: %w", intermediatePath, err)
	}
	return nil
}

func toDocFeature(r record) types.DocFeature {
	props := make(map[string]interface{}, len(r.feature.Tags)+2)
	for k, v := range r.feature.Tags {
		props[k] = v
	}
	props["importance"] = r.importance
	props["render"] = r.feature.Render
	return types.DocFeature{
		Type:       "Feature",
		Geometry:   r.feature.Geometry,
		Properties: props,
	}
}

func propertiesToTags(props map[string]interface{}) map[string]string {
	tags := make(map[string]string, len(props))
	for k, v := range props {
		if s, ok := v.(string); ok {
			tags[k] = s
		}
	}
	return tags
}

func renderFromProperties(props map[string]interface{}) types.RenderBlock {
	raw, ok := props["render"]
	if !ok {
		return types.RenderBlock{}
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return types.RenderBlock{}
	}
	var rb types.RenderBlock
	_ = json.Unmarshal(data, &rb)
	return rb
}

// sortByImportanceDescending sorts features by importance descending,
// preserving insertion order within equal importance (stable sort, per
// the spec's Open Question decision to match the original exactly).
func sortByImportanceDescending(features []types.DocFeature) {
	sort.SliceStable(features, func(i, j int) bool {
		return importanceOf(features[i]) > importanceOf(features[j])
	})
}

func importanceOf(f types.DocFeature) int {
	raw, ok := f.Properties["importance"]
	if !ok {
		return 0
	}
	switch v := raw.(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func readIntermediate(path string) ([]record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var records []record
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		tab := strings.IndexByte(line, '\t')
		if tab < 0 {
			continue
		}
		importance, err := strconv.Atoi(line[:tab])
		if err != nil {
			continue
		}
		payload := line[tab+1:]
		var ef encodedFeature
		if err := json.Unmarshal([]byte(payload), &ef); err != nil {
			continue
		}
		records = append(records, record{importance: importance, rawJSON: payload, feature: ef})
	}
	return records, scanner.Err()
}

func readFinalDocument(path string) (*types.TileDocument, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc types.TileDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func writeDocument(path string, doc types.TileDocument) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating tile directory for %q: %w", path, err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling tile document %q: %w", path, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("writing temp tile document %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("promoting tile document %q: %w", path, err)
	}
	return nil
}
