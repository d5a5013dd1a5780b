package viewshed

import (
	"math"
	"time"

	"github.com/veduta-gis/veduta/internal/monitoring"
	"github.com/veduta-gis/veduta/internal/raster"
)

// DirectEngine computes the visible target height independently for every
// grid cell within MaxDistanceM of the target: one full sight-line profile
// per cell. It is the simple reference engine; the radial sweep covers the
// same ground with amortised profiles.
type DirectEngine struct {
	Grid   *raster.Grid
	Target Target
	Opts   Options

	MaxDistanceM float64 // 0 means unlimited
	SampleStepM  float64 // floored at one pixel
	Sampler      Sampler // nil means StepSampler
}

// Run executes the engine and returns the visibility grid. Output cells:
// observer on nodata terrain or a strict-nodata sight line -> OutputNoData;
// beyond MaxDistanceM -> 0 (domain truncation, not an error); the target's
// own pixel -> full height.
func (e *DirectEngine) Run() (*raster.Grid, error) {
	g := e.Grid
	if err := g.Validate(); err != nil {
		return nil, err
	}
	tgt, err := resolveTarget(g, e.Target)
	if err != nil {
		return nil, err
	}

	step, clamped := ClampStep(e.SampleStepM, g.Transform.PixelSize())
	if clamped {
		monitoring.Logf("sample step below one pixel, clamped to %.3f m", step)
	}
	sampler := e.Sampler
	if sampler == nil {
		sampler = StepSampler{}
	}
	kernel := e.Opts.kernel()

	out := raster.NewGrid(g, OutputNoData)
	nd := OutputNoData
	out.NoData = &nd

	start := time.Now()
	progress := monitoring.NewProgress("direct pass", g.Rows, 10)

	spans := PartitionSpans(g.Rows, ChunkSize(g.Rows, normWorkers(e.Opts.Workers)))
	err = RunSpans(spans, e.Opts.Workers, func(span Span) error {
		e.computeRows(out, tgt, sampler, kernel, step, span)
		progress.Add(span.End - span.Start)
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.Logf("direct pass done: %dx%d cells in %s", g.Rows, g.Cols, time.Since(start).Round(time.Millisecond))
	return out, nil
}

// computeRows fills the rows of span in out. The span rows belong to this
// call alone, so no synchronisation is needed on the writes.
func (e *DirectEngine) computeRows(out *raster.Grid, tgt resolvedTarget, sampler Sampler, kernel Kernel, step float64, span Span) {
	g := e.Grid
	height := e.Target.Height

	for row := span.Start; row < span.End; row++ {
		for col := 0; col < g.Cols; col++ {
			zCell := g.Z(row, col)
			if g.IsNoData(zCell) {
				out.SetZ(row, col, OutputNoData)
				continue
			}

			xo, yo := g.Transform.CellCenter(row, col)
			dist := math.Hypot(tgt.x-xo, tgt.y-yo)

			// Observer in the target cell: full height by definition.
			if dist == 0 {
				out.SetZ(row, col, height)
				continue
			}
			if e.MaxDistanceM > 0 && dist > e.MaxDistanceM {
				out.SetZ(row, col, 0)
				continue
			}

			zObs := zCell + e.Opts.ObserverHeight
			maxAlpha := NoOcclusion
			blocked := false
			for _, s := range sampler.Profile(g, row, col, tgt.row, tgt.col, step) {
				if g.IsNoData(s.Z) {
					if e.Opts.StrictNoData {
						blocked = true
						break
					}
					continue
				}
				if alpha := (s.Z - zObs) / s.Dist; alpha > maxAlpha {
					maxAlpha = alpha
				}
			}
			if blocked {
				out.SetZ(row, col, OutputNoData)
				continue
			}

			out.SetZ(row, col, kernel(zObs, tgt.zBase, tgt.zTop, dist, maxAlpha))
		}
	}
}
