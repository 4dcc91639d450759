package source

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeNDGeoJSON(t *testing.T, lines []string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "region.geojsonl")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func drain(t *testing.T, s *NDGeoJSONStream) []string {
	t.Helper()
	var ids []string
	for {
		f, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		ids = append(ids, f.ID)
	}
	return ids
}

func TestNDGeoJSONStreamSkipsMalformedLinesAndContinues(t *testing.T) {
	path := writeNDGeoJSON(t, []string{
		`{"id":"n1","type":"Feature","geometry":{"type":"Point","coordinates":[10,50]},"properties":{"place":"city"}}`,
		`{this is not valid json`,
		`{"id":"n2","type":"Feature","geometry":{"type":"Point","coordinates":[11,51]},"properties":{"place":"town"}}`,
	})

	s, err := OpenNDGeoJSON(path)
	if err != nil {
		t.Fatalf("OpenNDGeoJSON: %v", err)
	}
	defer s.Close()

	ids := drain(t, s)
	if len(ids) != 2 {
		t.Fatalf("expected 2 valid features despite the malformed line, got %d: %v", len(ids), ids)
	}
	if ids[0] != "n1" || ids[1] != "n2" {
		t.Errorf("unexpected feature order: %v", ids)
	}
	if s.Skipped() != 1 {
		t.Errorf("expected Skipped()==1, got %d", s.Skipped())
	}
}

func TestNDGeoJSONStreamSkipsUndecodableGeometryAndContinues(t *testing.T) {
	path := writeNDGeoJSON(t, []string{
		`{"id":"n1","type":"Feature","geometry":{"type":"NotAGeometry"},"properties":{}}`,
		`{"id":"n2","type":"Feature","geometry":{"type":"Point","coordinates":[11,51]},"properties":{"place":"town"}}`,
	})

	s, err := OpenNDGeoJSON(path)
	if err != nil {
		t.Fatalf("OpenNDGeoJSON: %v", err)
	}
	defer s.Close()

	ids := drain(t, s)
	if len(ids) != 1 || ids[0] != "n2" {
		t.Fatalf("expected only the valid feature to survive, got %v", ids)
	}
	if s.Skipped() != 1 {
		t.Errorf("expected Skipped()==1, got %d", s.Skipped())
	}
}

func TestNDGeoJSONStreamSkipsUnsupportedGeometryKind(t *testing.T) {
	path := writeNDGeoJSON(t, []string{
		`{"id":"n1","type":"Feature","geometry":{"type":"GeometryCollection","geometries":[]},"properties":{}}`,
		`{"id":"n2","type":"Feature","geometry":{"type":"Point","coordinates":[11,51]},"properties":{"place":"town"}}`,
	})

	s, err := OpenNDGeoJSON(path)
	if err != nil {
		t.Fatalf("OpenNDGeoJSON: %v", err)
	}
	defer s.Close()

	ids := drain(t, s)
	if len(ids) != 1 || ids[0] != "n2" {
		t.Fatalf("expected only the supported-geometry feature to survive, got %v", ids)
	}
	if s.Skipped() != 1 {
		t.Errorf("expected Skipped()==1, got %d", s.Skipped())
	}
}
