// Package orchestrator implements the Multi-region Orchestrator (§4.10):
// dispatching one pipeline worker per source region, largest-region-first,
// then running the Tile Finalizer as a single serial sweep once every
// region has finished streaming.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync/atomic"

	"github.com/MeKo-Tech/tilegen/internal/clip"
	"github.com/MeKo-Tech/tilegen/internal/finalize"
	"github.com/MeKo-Tech/tilegen/internal/geomtransform"
	"github.com/MeKo-Tech/tilegen/internal/pipeline"
	"github.com/MeKo-Tech/tilegen/internal/source"
	"github.com/MeKo-Tech/tilegen/internal/tile"
	"github.com/MeKo-Tech/tilegen/internal/types"
	"github.com/MeKo-Tech/tilegen/internal/worker"
	"github.com/MeKo-Tech/tilegen/internal/writer"
)

// ErrSourceFailed reports that at least one region failed to process to
// completion; the orchestrator still attempts every other region and
// still runs finalization over whatever was written (§6 Process interface,
// §7 Source error).
var ErrSourceFailed = errors.New("one or more source regions failed")

// Options configures one end-to-end orchestrator run.
type Options struct {
	Tilesets            []types.Tileset
	OutputRoot          string
	Workers             int
	Clip                clip.Options
	Transform           geomtransform.Options
	CoastlineEpsilonDeg float64
	ProgressEnabled     bool
	Logger              *slog.Logger
}

// Result summarizes one orchestrator run.
type Result struct {
	RegionsProcessed int
	RegionsFailed    int
	FeaturesWritten  int
	FeaturesSkipped  int
	TilesFinalized   int
}

// Run processes every region in regions in parallel (ordered
// largest-first before dispatch, per §4.10), writes through a shared
// Writer rooted at opts.OutputRoot, then runs a single serial finalize
// sweep over every tile any region touched.
func Run(ctx context.Context, regions []source.Region, opts Options) (Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ordered, err := orderLargestFirst(regions)
	if err != nil {
		return Result{}, err
	}

	w, err := writer.New(opts.OutputRoot)
	if err != nil {
		return Result{}, fmt.Errorf("initializing output root %q: %w", opts.OutputRoot, err)
	}

	p := pipeline.New(pipeline.Options{
		Tilesets:  opts.Tilesets,
		Clip:      opts.Clip,
		Transform: opts.Transform,
		Logger:    logger,
	}, w)

	gen := &regionGenerator{pipeline: p, regions: ordered, logger: logger}

	progress := worker.NewProgress(len(ordered), opts.ProgressEnabled)
	pool := worker.New(worker.Config{
		Workers:    workersOrDefault(opts.Workers),
		Generator:  gen,
		OnProgress: progress.Callback(),
	})

	tasks := make([]worker.Task, len(ordered))
	for i, r := range ordered {
		tasks[i] = worker.Task{RegionID: r.ID, Index: i}
	}

	results := pool.Run(ctx, tasks)
	progress.Done()

	var failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
			logger.Error("region failed", "region", r.Task.RegionID, "error", r.Err)
		}
	}

	finalized, err := finalizeAll(opts.OutputRoot, opts.Tilesets, opts)
	if err != nil {
		return Result{}, fmt.Errorf("finalizing tiles: %w", err)
	}

	summary := Result{
		RegionsProcessed: len(ordered) - failed,
		RegionsFailed:    failed,
		FeaturesWritten:  gen.totalFeatures(),
		FeaturesSkipped:  gen.totalSkipped(),
		TilesFinalized:   finalized,
	}

	if failed > 0 {
		return summary, ErrSourceFailed
	}
	return summary, nil
}

// orderLargestFirst sorts regions by their bounds oracle's area
// descending, computed once up front, before any feature stream is read
// (§4.10 "it does not require reading the feature stream").
func orderLargestFirst(regions []source.Region) ([]source.Region, error) {
	type withArea struct {
		region source.Region
		area   float64
	}
	withAreas := make([]withArea, len(regions))
	for i, r := range regions {
		bounds, err := r.Oracle.Bounds()
		if err != nil {
			return nil, fmt.Errorf("%w: region %q: %v", source.ErrSourceUnavailable, r.ID, err)
		}
		withAreas[i] = withArea{region: r, area: bounds.AreaKM2()}
	}
	sort.SliceStable(withAreas, func(i, j int) bool {
		return withAreas[i].area > withAreas[j].area
	})
	ordered := make([]source.Region, len(withAreas))
	for i, wa := range withAreas {
		ordered[i] = wa.region
	}
	return ordered, nil
}

func workersOrDefault(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

// regionGenerator adapts the pipeline to worker.Generator, running each
// region single-threadedly (§4.10 Scheduling model). Multiple workers
// call Generate concurrently across different regions, so featureCount
// and skippedCount are accumulated atomically.
type regionGenerator struct {
	pipeline *pipeline.Pipeline
	regions  []source.Region
	logger   *slog.Logger

	featureCount atomic.Int64
	skippedCount atomic.Int64
}

func (g *regionGenerator) Generate(ctx context.Context, task worker.Task) error {
	region := g.regions[task.Index]
	defer region.Stream.Close()

	count, skipped, err := g.pipeline.ProcessRegion(ctx, region.Stream)
	g.featureCount.Add(int64(count))
	g.skippedCount.Add(int64(skipped))
	if err != nil {
		return fmt.Errorf("region %q: %w", region.ID, err)
	}
	g.logger.Info("region processed", "region", region.ID, "features", count, "skipped", skipped)
	return nil
}

func (g *regionGenerator) totalFeatures() int {
	return int(g.featureCount.Load())
}

func (g *regionGenerator) totalSkipped() int {
	return int(g.skippedCount.Load())
}

// finalizeAll runs the Tile Finalizer over every intermediate file under
// every tileset directory, as a single serial sweep (§4.10: "After all
// regions complete, the finalizer runs as a serial sweep over the union
// of all intermediate files").
func finalizeAll(outputRoot string, tilesets []types.Tileset, opts Options) (int, error) {
	count := 0
	for _, ts := range tilesets {
		pattern := filepath.Join(outputRoot, ts.ID, "*", "*.jsonl")
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return count, fmt.Errorf("globbing intermediate files for tileset %q: %w", ts.ID, err)
		}
		for _, inter := range matches {
			finalPath := inter[:len(inter)-len(filepath.Ext(inter))] + ".json"
			tileRect, ok := tileRectFromPath(outputRoot, tilesets, inter)
			if !ok {
				continue
			}
			if err := finalize.Finalize(inter, finalPath, tileRect, finalize.Options{
				CoastlineEpsilonDeg: opts.CoastlineEpsilonDeg,
			}); err != nil {
				return count, fmt.Errorf("finalizing %q: %w", inter, err)
			}
			count++
		}
	}
	return count, nil
}

// tileRectFromPath recovers the TileID a given intermediate file path
// encodes (outputRoot/tilesetID/x/y.jsonl, per TileID.IntermediatePath)
// and returns that tile's geographic rectangle under its tileset's grid.
func tileRectFromPath(outputRoot string, tilesets []types.Tileset, path string) (types.Bounds, bool) {
	rel, err := filepath.Rel(outputRoot, path)
	if err != nil {
		return types.Bounds{}, false
	}
	rel = filepath.ToSlash(rel)

	yFile := filepath.Base(rel)
	xDir := filepath.Base(filepath.Dir(rel))
	tilesetID := filepath.Base(filepath.Dir(filepath.Dir(rel)))

	var x, y int
	if _, err := fmt.Sscanf(xDir, "%d", &x); err != nil {
		return types.Bounds{}, false
	}
	if _, err := fmt.Sscanf(yFile, "%d.jsonl", &y); err != nil {
		return types.Bounds{}, false
	}

	for _, ts := range tilesets {
		if ts.ID != tilesetID {
			continue
		}
		grid := tile.NewGrid(ts)
		id := types.TileID{TilesetID: tilesetID, X: x, Y: y}
		return grid.TileRectangle(id), true
	}
	return types.Bounds{}, false
}
