package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/tilegen/internal/types"
)

func TestBuildComputesCenter(t *testing.T) {
	bounds := types.Bounds{MinLon: 0, MinLat: 0, MaxLon: 10, MaxLat: 20}
	m := Build(bounds, []string{"overview"}, 5, 1700000000000, nil)

	if m.Center.Lon != 5 || m.Center.Lat != 10 {
		t.Errorf("expected center (5,10), got (%v,%v)", m.Center.Lon, m.Center.Lat)
	}
	if m.TileCount != 5 {
		t.Errorf("expected tile count 5, got %d", m.TileCount)
	}
}

func TestWriteAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.json")

	m := Build(types.Bounds{MinLon: 0, MinLat: 0, MaxLon: 1, MaxLat: 1}, []string{"overview"}, 3, 42, []SourceFile{
		{Name: "region.geojsonl", Fingerprint: "100:1000", Size: 100, Modified: 1000},
	})

	if err := Write(path, m); err != nil {
		t.Fatalf("Write: %v", err)
	}

	loaded, ok, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok {
		t.Fatal("expected manifest to be found")
	}
	if loaded.TileCount != 3 || len(loaded.SourceFiles) != 1 {
		t.Errorf("unexpected loaded manifest: %+v", loaded)
	}
}

func TestLoadMissingFileReturnsNotFound(t *testing.T) {
	_, ok, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if ok {
		t.Error("expected ok=false for missing file")
	}
}

func TestNeedsRebuildDetectsChangeAndNewFile(t *testing.T) {
	prev := Manifest{SourceFiles: []SourceFile{
		{Name: "a.geojsonl", Fingerprint: "100:1000"},
	}}

	if NeedsRebuild(prev, SourceFile{Name: "a.geojsonl", Fingerprint: "100:1000"}) {
		t.Error("expected no rebuild needed for unchanged fingerprint")
	}
	if !NeedsRebuild(prev, SourceFile{Name: "a.geojsonl", Fingerprint: "200:2000"}) {
		t.Error("expected rebuild needed for changed fingerprint")
	}
	if !NeedsRebuild(prev, SourceFile{Name: "b.geojsonl", Fingerprint: "1:1"}) {
		t.Error("expected rebuild needed for a file with no prior entry")
	}
}

func TestFingerprintReflectsSizeAndMtime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "source.geojsonl")
	if err := os.WriteFile(path, []byte(`{"id":"n1"}`), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	fp, err := Fingerprint(path)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if fp.Name != path || fp.Size == 0 || fp.Fingerprint == "" {
		t.Errorf("unexpected fingerprint: %+v", fp)
	}
}
