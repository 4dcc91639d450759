// Package source provides the two concrete feature-stream adapters the
// engine's process interface assumes (§6 Inputs): a newline-delimited
// GeoJSON file reader for output already produced by an external PBF
// converter, and a live Overpass API adapter for ad-hoc single-region
// runs against a bounding box. Both satisfy FeatureStream; the Overpass
// adapter is also its own BoundsOracle, while an NDGeoJSON file's bounds
// come from ScanBounds wrapped in ExplicitBounds.
package source

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/MeKo-Tech/tilegen/internal/types"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ErrSourceUnavailable is returned when a region's feature stream or
// bounds oracle cannot be opened at all.
var ErrSourceUnavailable = errors.New("source unavailable")

// FeatureStream is a lazy, finite sequence of features. Next returns
// io.EOF once exhausted; implementations are expected to be consumed
// once, single-threadedly, by one orchestrator worker.
type FeatureStream interface {
	Next() (*types.Feature, error)
	Close() error
}

// BoundsOracle reports the geographic footprint of a source region,
// required before dispatch so the orchestrator can order regions
// largest-first without reading the feature stream itself.
type BoundsOracle interface {
	Bounds() (types.Bounds, error)
}

// SkippedCounter is implemented by streams that silently drop malformed
// or unclassifiable records while iterating, tracking how many (§7
// Feature error: "skip the feature, increment a skipped counter,
// continue... All counters are best-effort and reported at the end of a
// run").
type SkippedCounter interface {
	Skipped() int
}

// Region pairs one feature stream with its bounds oracle: the unit of
// work the Multi-region Orchestrator schedules.
type Region struct {
	ID     string
	Stream FeatureStream
	Oracle BoundsOracle
}

// ndjsonRecord is the on-disk shape one line of the NDGeoJSON file takes:
// a GeoJSON Feature with an optional "id" in its top-level object (the
// standard GeoJSON Feature "id" member, not inside properties).
type ndjsonRecord struct {
	ID         interface{}            `json:"id"`
	Type       string                 `json:"type"`
	Geometry   json.RawMessage        `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

// NDGeoJSONStream reads one GeoJSON Feature per line from a file produced
// by an external PBF-to-feature converter.
type NDGeoJSONStream struct {
	file    *os.File
	scanner *bufio.Scanner
	seq     int
	skipped int
}

// OpenNDGeoJSON opens path for streaming. The returned stream has no
// Bounds method; ScanBounds derives the file's bounds in a separate pass.
func OpenNDGeoJSON(path string) (*NDGeoJSONStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %q: %v", ErrSourceUnavailable, path, err)
	}
	return newNDGeoJSONStream(f), nil
}

func newNDGeoJSONStream(f *os.File) *NDGeoJSONStream {
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &NDGeoJSONStream{file: f, scanner: scanner}
}

// Next decodes and returns the next feature, or io.EOF when the file is
// exhausted. Blank lines are skipped. A line with malformed JSON, an
// undecodable geometry, or an unsupported geometry kind is itself
// skipped rather than treated as fatal: one bad record must not discard
// every remaining valid feature in the source (§7 Feature error).
func (s *NDGeoJSONStream) Next() (*types.Feature, error) {
	for s.scanner.Scan() {
		line := s.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec ndjsonRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			s.skipped++
			continue
		}
		geom, err := decodeGeometry(rec.Geometry)
		if err != nil {
			s.skipped++
			continue
		}
		if _, ok := types.KindOf(geom); !ok {
			s.skipped++
			continue
		}
		id := recordID(rec, &s.seq)
		tags := stringifyProperties(rec.Properties)
		feature := types.NewFeature(id, geom, tags)
		return &feature, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Skipped reports how many lines were dropped as malformed,
// undecodable, or unsupported-geometry records.
func (s *NDGeoJSONStream) Skipped() int {
	return s.skipped
}

// Close releases the underlying file handle.
func (s *NDGeoJSONStream) Close() error {
	return s.file.Close()
}

// ExplicitBounds wraps an already known bounds value as a BoundsOracle,
// such as the bounds ScanBounds derives for an NDGeoJSON file.
type ExplicitBounds types.Bounds

// Bounds returns the wrapped value unchanged.
func (b ExplicitBounds) Bounds() (types.Bounds, error) {
	return types.Bounds(b), nil
}

// ScanBounds derives the bounds of an NDGeoJSON file by streaming it
// once end-to-end and accumulating a bounding box over every feature's
// geometry, used when the source has no header-metadata bounds to read
// directly.
func ScanBounds(path string) (types.Bounds, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.Bounds{}, fmt.Errorf("%w: opening %q for bounds scan: %v", ErrSourceUnavailable, path, err)
	}
	defer f.Close()

	stream := newNDGeoJSONStream(f)
	var (
		bounds types.Bounds
		first  = true
	)
	for {
		feat, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return types.Bounds{}, err
		}
		fb := types.BoundsFromOrb(feat.Bound())
		if first {
			bounds = fb
			first = false
			continue
		}
		bounds = bounds.Union(fb)
	}
	if first {
		return types.Bounds{}, fmt.Errorf("%w: %q contains no features to derive bounds from", ErrSourceUnavailable, path)
	}
	return bounds, nil
}

func decodeGeometry(raw json.RawMessage) (orb.Geometry, error) {
	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, err
	}
	return g.Geometry(), nil
}

func recordID(rec ndjsonRecord, seq *int) string {
	if rec.ID != nil {
		return fmt.Sprintf("%v", rec.ID)
	}
	*seq++
	return fmt.Sprintf("ndgeojson-%d", *seq)
}

func stringifyProperties(props map[string]interface{}) map[string]string {
	tags := make(map[string]string, len(props))
	for k, v := range props {
		switch val := v.(type) {
		case string:
			tags[k] = val
		case nil:
			// skip: an explicit null tag carries no value worth matching
		default:
			tags[k] = fmt.Sprintf("%v", val)
		}
	}
	return tags
}
