// Package pipeline wires the per-feature stages — classify, transform,
// route, clip, score, write — into the single-threaded per-region
// pipeline the Multi-region Orchestrator runs one instance of per worker
// (§4 OVERVIEW, §4.10).
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/MeKo-Tech/tilegen/internal/classify"
	"github.com/MeKo-Tech/tilegen/internal/clip"
	"github.com/MeKo-Tech/tilegen/internal/geomtransform"
	"github.com/MeKo-Tech/tilegen/internal/importance"
	"github.com/MeKo-Tech/tilegen/internal/source"
	"github.com/MeKo-Tech/tilegen/internal/tile"
	"github.com/MeKo-Tech/tilegen/internal/types"
	"github.com/MeKo-Tech/tilegen/internal/writer"
)

// Options configures one Pipeline instance, shared read-only across all
// region workers (the grids and rules they wrap are immutable after
// config load).
type Options struct {
	Tilesets  []types.Tileset
	Clip      clip.Options
	Transform geomtransform.Options
	Logger    *slog.Logger
}

// Pipeline runs the classify -> transform -> route -> clip -> score ->
// write chain for one region's feature stream. A Pipeline has no mutable
// state of its own beyond the shared Writer, so one value can be reused
// concurrently by multiple region workers as long as the Writer is safe
// for concurrent use (it is, per §4.7).
type Pipeline struct {
	tilesets []types.Tileset
	grids    map[string]tile.Grid
	clipOpts clip.Options
	xform    geomtransform.Options
	writer   *writer.Writer
	log      *slog.Logger
}

// New builds a Pipeline for a fixed set of tilesets, writing through w.
func New(opts Options, w *writer.Writer) *Pipeline {
	grids := make(map[string]tile.Grid, len(opts.Tilesets))
	for _, ts := range opts.Tilesets {
		grids[ts.ID] = tile.NewGrid(ts)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		tilesets: opts.Tilesets,
		grids:    grids,
		clipOpts: opts.Clip,
		xform:    opts.Transform,
		writer:   w,
		log:      logger,
	}
}

// ProcessRegion drains stream feature-by-feature, running every feature
// through every tileset's classify/transform/route/clip/score/write
// chain, until the stream is exhausted or ctx is cancelled. It returns
// the number of features consumed from the stream (whether or not any
// tileset matched them) and the number of records the stream itself
// dropped as malformed or unclassifiable (§7 Feature error) — the
// stream, not the pipeline, decides what counts as a skip, since that
// judgment depends on the source's own record shape.
func (p *Pipeline) ProcessRegion(ctx context.Context, stream source.FeatureStream) (int, int, error) {
	count := 0
	for {
		select {
		case <-ctx.Done():
			return count, skippedCount(stream), ctx.Err()
		default:
		}

		feat, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return count, skippedCount(stream), nil
		}
		if err != nil {
			return count, skippedCount(stream), fmt.Errorf("reading feature %d: %w", count, err)
		}

		if err := p.processFeature(feat); err != nil {
			return count, skippedCount(stream), fmt.Errorf("processing feature %q: %w", feat.ID, err)
		}
		count++
	}
}

// skippedCount reads a stream's best-effort skipped-record counter, or 0
// if the stream doesn't track one.
func skippedCount(stream source.FeatureStream) int {
	if sc, ok := stream.(source.SkippedCounter); ok {
		return sc.Skipped()
	}
	return 0
}

// processFeature runs one feature against every tileset independently: a
// feature can belong to several tilesets at once, each with its own
// simplification, render block and tile assignment (§4 OVERVIEW).
func (p *Pipeline) processFeature(f *types.Feature) error {
	for _, ts := range p.tilesets {
		def, ok := classify.Match(f, ts)
		if !ok {
			continue
		}

		matched := *f
		matched.Render = def.Render
		matched.Geometry = geomtransform.Transform(f.Geometry, f.Kind, def.Simplification, p.xform)
		importance.Apply(&matched)

		grid := p.grids[ts.ID]
		bounds := types.BoundsFromOrb(matched.Geometry.Bound())
		tileIDs := grid.RouteBounds(bounds)

		for _, id := range tileIDs {
			rect := grid.TileRectangle(id)
			geom, keep := clip.Clip(matched.Geometry, matched.Kind, def, rect, p.clipOpts)
			if !keep {
				continue
			}
			out := matched
			out.Geometry = geom
			if err := p.writer.WriteFeature(id, &out); err != nil {
				p.log.Error("writing feature to tile", "tile", id.String(), "feature", f.ID, "error", err)
				return err
			}
		}
	}
	return nil
}
