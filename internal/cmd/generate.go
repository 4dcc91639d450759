package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/MeKo-Tech/tilegen/internal/catalog"
	"github.com/MeKo-Tech/tilegen/internal/clip"
	"github.com/MeKo-Tech/tilegen/internal/config"
	"github.com/MeKo-Tech/tilegen/internal/index"
	"github.com/MeKo-Tech/tilegen/internal/orchestrator"
	"github.com/MeKo-Tech/tilegen/internal/source"
	"github.com/MeKo-Tech/tilegen/internal/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate vector map tiles",
	Long: `Generate reads one or more OSM source regions (NDGeoJSON files or
Overpass bounding boxes), classifies, transforms, routes, clips and scores
their features into per-tile documents, and writes the finalized tile
tree plus an index manifest.`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringArray("source", nil, "Source descriptor: a NDGeoJSON file path, or \"overpass:minLon,minLat,maxLon,maxLat\"")
	generateCmd.Flags().String("out", "./out", "Output directory for the tile tree")
	generateCmd.Flags().IntP("workers", "w", 0, "Number of parallel region workers (default: number of CPUs)")
	generateCmd.Flags().Bool("progress", true, "Show progress during generation")
	generateCmd.Flags().Bool("clip", true, "Enable tile-boundary clipping")
	generateCmd.Flags().Float64("clip-buffer", clip.DefaultBufferFraction, "Clip buffer as a fraction of tile size")
	generateCmd.Flags().Bool("incremental", false, "Skip sources whose fingerprint is unchanged since the previous index.json")
	generateCmd.Flags().String("catalog", "", "Optional path for a SQLite catalog database; empty disables it")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"generate.source", "source"},
		{"generate.out", "out"},
		{"generate.workers", "workers"},
		{"generate.progress", "progress"},
		{"generate.clip", "clip"},
		{"generate.clip_buffer", "clip-buffer"},
		{"generate.incremental", "incremental"},
		{"generate.catalog", "catalog"},
	}
	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, generateCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runGenerate(cmd *cobra.Command, args []string) error {
	sources := viper.GetStringSlice("generate.source")
	outDir := viper.GetString("generate.out")
	workers := viper.GetInt("generate.workers")
	showProgress := viper.GetBool("generate.progress")
	clipEnabled := viper.GetBool("generate.clip")
	clipBuffer := viper.GetFloat64("generate.clip_buffer")
	incremental := viper.GetBool("generate.incremental")
	catalogPath := viper.GetString("generate.catalog")

	if logger == nil {
		initLogging()
	}

	if len(sources) == 0 {
		return fmt.Errorf("at least one --source is required")
	}

	configPath := cfgFile
	if configPath == "" {
		configPath = "tilesets.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading tileset config: %w", err)
	}

	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	indexPath := outDir + "/index.json"
	prevManifest, hadPrev, err := index.Load(indexPath)
	if err != nil {
		return fmt.Errorf("loading previous index manifest: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received interrupt signal, cancelling")
		cancel()
	}()

	regions, fingerprints, err := resolveRegions(ctx, sources, incremental, hadPrev, prevManifest)
	if err != nil {
		return fmt.Errorf("resolving source regions: %w", err)
	}
	if len(regions) == 0 {
		logger.Info("no regions require processing (all sources unchanged)")
		return nil
	}

	logger.Info("starting tile generation",
		"regions", len(regions),
		"out", outDir,
		"workers", workers,
		"clip", clipEnabled,
	)

	result, runErr := orchestrator.Run(ctx, regions, orchestrator.Options{
		Tilesets:            cfg.Tilesets,
		OutputRoot:          outDir,
		Workers:             workers,
		Clip:                clip.Options{Enabled: clipEnabled, BufferFraction: clipBuffer},
		CoastlineEpsilonDeg: 0.0001,
		ProgressEnabled:     showProgress,
		Logger:              logger,
	})
	if runErr != nil && result.RegionsProcessed == 0 {
		return fmt.Errorf("generation failed: %w", runErr)
	}

	tilesetIDs := make([]string, len(cfg.Tilesets))
	for i, ts := range cfg.Tilesets {
		tilesetIDs[i] = ts.ID
	}

	bounds := unionBounds(regions)
	manifest := index.Build(bounds, tilesetIDs, result.TilesFinalized, time.Now().UnixMilli(), fingerprints)
	if err := index.Write(indexPath, manifest); err != nil {
		return fmt.Errorf("writing index manifest: %w", err)
	}

	if catalogPath != "" {
		if err := writeCatalog(catalogPath, outDir, cfg.Tilesets, manifest); err != nil {
			return fmt.Errorf("writing catalog database: %w", err)
		}
	}

	logger.Info("tile generation complete",
		"regions_processed", result.RegionsProcessed,
		"regions_failed", result.RegionsFailed,
		"features_written", result.FeaturesWritten,
		"features_skipped", result.FeaturesSkipped,
		"tiles_finalized", result.TilesFinalized,
	)

	if runErr != nil {
		return fmt.Errorf("%d region(s) failed to process to completion", result.RegionsFailed)
	}
	return nil
}

// resolveRegions builds one source.Region per --source descriptor,
// skipping sources whose fingerprint is unchanged since the previous
// manifest when incremental is set (§11 incremental-rebuild supplement).
func resolveRegions(ctx context.Context, descriptors []string, incremental, hadPrev bool, prev index.Manifest) ([]source.Region, []index.SourceFile, error) {
	var regions []source.Region
	var fingerprints []index.SourceFile

	for i, desc := range descriptors {
		if strings.HasPrefix(desc, "overpass:") {
			bbox, err := parseBBox(strings.TrimPrefix(desc, "overpass:"))
			if err != nil {
				return nil, nil, fmt.Errorf("source %d: %w", i, err)
			}
			bounds := types.Bounds{MinLon: bbox[0], MinLat: bbox[1], MaxLon: bbox[2], MaxLat: bbox[3]}
			stream, err := source.NewOverpassStream(ctx, source.DefaultOverpassConfig(), bounds)
			if err != nil {
				return nil, nil, fmt.Errorf("source %d (overpass): %w", i, err)
			}
			regions = append(regions, source.Region{
				ID:     desc,
				Stream: stream,
				Oracle: stream,
			})
			continue
		}

		fp, err := index.Fingerprint(desc)
		if err != nil {
			return nil, nil, fmt.Errorf("source %d (%s): %w", i, desc, err)
		}
		fingerprints = append(fingerprints, fp)

		if incremental && hadPrev && !index.NeedsRebuild(prev, fp) {
			continue
		}

		bounds, err := source.ScanBounds(desc)
		if err != nil {
			return nil, nil, fmt.Errorf("source %d (%s): scanning bounds: %w", i, desc, err)
		}
		stream, err := source.OpenNDGeoJSON(desc)
		if err != nil {
			return nil, nil, fmt.Errorf("source %d (%s): %w", i, desc, err)
		}
		regions = append(regions, source.Region{
			ID:     desc,
			Stream: stream,
			Oracle: source.ExplicitBounds(bounds),
		})
	}

	return regions, fingerprints, nil
}

func unionBounds(regions []source.Region) types.Bounds {
	var result types.Bounds
	first := true
	for _, r := range regions {
		b, err := r.Oracle.Bounds()
		if err != nil {
			continue
		}
		if first {
			result = b
			first = false
			continue
		}
		result = result.Union(b)
	}
	return result
}

func writeCatalog(catalogPath, outDir string, tilesets []types.Tileset, manifest index.Manifest) error {
	w, err := catalog.New(catalogPath)
	if err != nil {
		return err
	}
	defer w.Close()

	meta := map[string]string{
		"tile_count": strconv.Itoa(manifest.TileCount),
		"generated":  strconv.FormatInt(manifest.Generated, 10),
	}
	for key, value := range map[string]interface{}{
		"bounds":       manifest.Bounds,
		"tilesets":     manifest.Tilesets,
		"center":       manifest.Center,
		"source_files": manifest.SourceFiles,
	} {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encoding index metadata %q: %w", key, err)
		}
		meta[key] = string(raw)
	}
	if err := w.WriteIndexMetadata(meta); err != nil {
		return err
	}

	for _, ts := range tilesets {
		matches, err := walkFinalTiles(outDir, ts.ID)
		if err != nil {
			return err
		}
		for _, m := range matches {
			if err := w.WriteTile(m.id, m.doc); err != nil {
				return err
			}
		}
	}
	return nil
}

// parseBBox parses "minLon,minLat,maxLon,maxLat" into [4]float64.
func parseBBox(s string) ([4]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return [4]float64{}, fmt.Errorf("expected 4 comma-separated values, got %d", len(parts))
	}

	var bbox [4]float64
	for i, part := range parts {
		val, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return [4]float64{}, fmt.Errorf("invalid number at position %d: %w", i, err)
		}
		bbox[i] = val
	}

	if bbox[0] >= bbox[2] {
		return [4]float64{}, fmt.Errorf("minLon (%.4f) must be < maxLon (%.4f)", bbox[0], bbox[2])
	}
	if bbox[1] >= bbox[3] {
		return [4]float64{}, fmt.Errorf("minLat (%.4f) must be < maxLat (%.4f)", bbox[1], bbox[3])
	}

	return bbox, nil
}
