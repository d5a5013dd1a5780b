package viewshed

import (
	"fmt"
	"math"
	"time"

	"github.com/veduta-gis/veduta/internal/monitoring"
	"github.com/veduta-gis/veduta/internal/raster"
)

// RadialEngine computes the visibility grid by sweeping K rays outward from
// the target. Walking a ray outward, the profile from the target to a far
// cell is a strict superset of the profile to every closer cell on the same
// ray, so occlusion state is folded forward instead of re-walking the
// profile per cell: O(K*R/s) total work instead of O((R/s)^2) per ray.
type RadialEngine struct {
	Grid   *raster.Grid
	Target Target
	Opts   Options
	Cfg    RadialConfig

	// Mask, when non-nil, enables only the marked directions (len == ray
	// count). Used by the refinement pass to skip rays that cannot reach
	// the bounding box.
	Mask []bool
	// Clip, when non-nil, suppresses writes for cells whose centre falls
	// outside the box.
	Clip *raster.BBox
	// DomainFill is the value for cells never touched by any ray: 0 for
	// the primary raster (domain truncation), OutputNoData for the
	// refinement raster.
	DomainFill float64
}

// sweepState is the per-ray occlusion accumulator: the upper convex hull of
// the (distance, elevation) samples folded so far, in increasing distance.
// Any sample not on the hull lies strictly below it, so the observer-frame
// occlusion slope max_i (z_i - zObs)/(dist - d_i) is always attained at a
// hull vertex, for every observer position and eye elevation. Hull
// maintenance is amortised O(1) per sample.
type sweepState struct {
	hull    []hullPoint
	aborted bool
}

// hullPoint is a terrain sample on the occlusion hull: distance from the
// target along the ray and terrain elevation.
type hullPoint struct {
	d, z float64
}

// maxAlpha converts the folded state into the observer-frame occlusion slope
// for an observer at distance dist with eye elevation zObs. The slope from
// the observer to successive hull vertices is unimodal over the convex
// chain, so the maximising vertex is found by binary search.
func (s *sweepState) maxAlpha(zObs, dist float64) float64 {
	n := len(s.hull)
	if n == 0 {
		return NoOcclusion
	}
	slope := func(i int) float64 {
		p := s.hull[i]
		return (p.z - zObs) / (dist - p.d)
	}
	lo, hi := 0, n-1
	for lo < hi {
		mid := (lo + hi) / 2
		if slope(mid) < slope(mid+1) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return slope(lo)
}

// fold accounts a valid sample at (dist, z) for all farther observers.
// Samples arrive in strictly increasing distance; a vertex that ends up on
// or below the chord from its predecessor to the new sample can never attain
// the maximum slope again and is dropped.
func (s *sweepState) fold(dist, z float64) {
	for len(s.hull) >= 2 {
		a := s.hull[len(s.hull)-2]
		b := s.hull[len(s.hull)-1]
		if (b.d-a.d)*(z-a.z) >= (dist-a.d)*(b.z-a.z) {
			s.hull = s.hull[:len(s.hull)-1]
			continue
		}
		break
	}
	s.hull = append(s.hull, hullPoint{d: dist, z: z})
}

// Run executes the sweep and returns the visibility grid.
func (e *RadialEngine) Run() (*raster.Grid, error) {
	g := e.Grid
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if e.Cfg.RadiusM <= 0 {
		return nil, fmt.Errorf("radius must be > 0, got %g", e.Cfg.RadiusM)
	}
	tgt, err := resolveTarget(g, e.Target)
	if err != nil {
		return nil, err
	}

	step, clamped := ClampStep(e.Cfg.StepM, g.Transform.PixelSize())
	if clamped {
		monitoring.Logf("radial step below one pixel, clamped to %.3f m", step)
	}

	rays := e.Cfg.Rays
	if rays == 0 {
		if rays, err = SuggestRays(e.Cfg.RadiusM, step); err != nil {
			return nil, err
		}
		monitoring.Logf("derived %d rays for radius %.0f m, step %.1f m", rays, e.Cfg.RadiusM, step)
	}
	if rays < 1 {
		return nil, fmt.Errorf("ray count must be >= 1, got %d", rays)
	}
	if e.Mask != nil && len(e.Mask) != rays {
		return nil, fmt.Errorf("direction mask length %d does not match %d rays", len(e.Mask), rays)
	}

	workers := normWorkers(e.Opts.Workers)
	start := time.Now()
	progress := monitoring.NewProgress("radial sweep", rays, 10)

	// Each worker folds its rays into a private buffer; buffers merge by
	// per-cell maximum afterwards. Max-merge is commutative, so the result
	// is identical for any direction partitioning and worker count, and
	// adjacent rays aliasing onto one pixel resolve to the larger value
	// exactly as a sequential sweep would.
	buffers := make([][]float64, 0, workers)
	pool := make(chan []float64, workers)
	for i := 0; i < workers; i++ {
		buf := make([]float64, len(g.Data))
		for j := range buf {
			buf[j] = math.Inf(-1)
		}
		buffers = append(buffers, buf)
		pool <- buf
	}

	spans := PartitionSpans(rays, ChunkSize(rays, workers))
	err = RunSpans(spans, workers, func(span Span) error {
		buf := <-pool
		for k := span.Start; k < span.End; k++ {
			e.sweepRay(buf, tgt, step, rays, k)
		}
		pool <- buf
		progress.Add(span.End - span.Start)
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := e.mergeBuffers(g, tgt, buffers)
	monitoring.Logf("radial sweep done: %d rays to %.0f m in %s", rays, e.Cfg.RadiusM, time.Since(start).Round(time.Millisecond))
	return out, nil
}

// sweepRay walks direction k outward from the target, evaluating each newly
// reached cell against the folded occlusion state and then folding the cell
// itself for the points beyond it.
func (e *RadialEngine) sweepRay(buf []float64, tgt resolvedTarget, step float64, rays, k int) {
	if e.Mask != nil && !e.Mask[k] {
		return
	}
	g := e.Grid
	kernel := e.Opts.kernel()
	theta := 2 * math.Pi * float64(k) / float64(rays)
	sinT, cosT := math.Sincos(theta)

	var state sweepState
	// Nearest-cell snapping can land consecutive steps on one cell; each
	// cell is sampled at most once per ray.
	seen := make(map[int]struct{}, int(e.Cfg.RadiusM/step)+1)

	for s := 1; ; s++ {
		d := float64(s) * step
		if d > e.Cfg.RadiusM+1e-9 {
			break
		}
		x := tgt.x + d*cosT
		y := tgt.y + d*sinT
		row, col := g.Transform.RowCol(x, y)
		if !g.InBounds(row, col) {
			break
		}
		if row == tgt.row && col == tgt.col {
			continue
		}
		idx := row*g.Cols + col
		if _, dup := seen[idx]; dup {
			continue
		}

		if state.aborted {
			// Strict nodata upstream: everything farther on this ray
			// is unreadable.
			seen[idx] = struct{}{}
			e.write(buf, row, col, idx, OutputNoData)
			continue
		}

		z := g.Z(row, col)
		if g.IsNoData(z) {
			if e.Opts.StrictNoData {
				state.aborted = true
				seen[idx] = struct{}{}
				e.write(buf, row, col, idx, OutputNoData)
			}
			// Non-strict: the sample is skipped, never folded, and
			// the walk continues.
			continue
		}
		seen[idx] = struct{}{}

		zObs := z + e.Opts.ObserverHeight
		visible := kernel(zObs, tgt.zBase, tgt.zTop, d, state.maxAlpha(zObs, d))
		e.write(buf, row, col, idx, visible)

		state.fold(d, z)
	}
}

// write records a value for a cell, honouring the clip box and keeping the
// per-cell maximum. The OutputNoData sentinel is below every real value, so
// a valid result from an adjacent ray always wins over an abort marker.
func (e *RadialEngine) write(buf []float64, row, col, idx int, v float64) {
	if e.Clip != nil {
		cx, cy := e.Grid.Transform.CellCenter(row, col)
		if !e.Clip.Contains(cx, cy) {
			return
		}
	}
	if v > buf[idx] {
		buf[idx] = v
	}
}

// mergeBuffers folds the worker buffers into the final grid and applies the
// domain conventions: untouched cells take DomainFill, DEM nodata cells stay
// nodata, and the target's own pixel reports the full height.
func (e *RadialEngine) mergeBuffers(g *raster.Grid, tgt resolvedTarget, buffers [][]float64) *raster.Grid {
	out := raster.NewGrid(g, 0)
	nd := OutputNoData
	out.NoData = &nd

	for i := range out.Data {
		v := math.Inf(-1)
		for _, buf := range buffers {
			if buf[i] > v {
				v = buf[i]
			}
		}
		if math.IsInf(v, -1) {
			v = e.DomainFill
		}
		out.Data[i] = v
	}
	for i, z := range g.Data {
		if g.IsNoData(z) {
			out.Data[i] = OutputNoData
		}
	}
	if e.Clip == nil || e.Clip.Contains(tgt.x, tgt.y) {
		out.SetZ(tgt.row, tgt.col, e.Target.Height)
	}
	return out
}
