package viewshed

import (
	"fmt"
	"math"

	"github.com/veduta-gis/veduta/internal/monitoring"
	"github.com/veduta-gis/veduta/internal/raster"
)

// Refine runs a second, finer radial sweep restricted to a bounding box,
// typically at a smaller step and a higher direction count than the primary
// pass. Cells outside the box are true nodata, not 0: the refinement raster
// marks "not recomputed" differently from the primary raster's "outside the
// radius" truncation, and downstream tooling depends on the distinction.
//
// With FullExtent the output covers the whole parent grid; otherwise it is
// cropped to the pixel-aligned window of the box.
func Refine(g *raster.Grid, target Target, opts Options, cfg FineConfig) (*raster.Grid, error) {
	if err := cfg.BBox.Validate(); err != nil {
		return nil, err
	}
	window := raster.AlignedWindow(g.Transform, g.Rows, g.Cols, cfg.BBox)
	if window.Empty() {
		return nil, fmt.Errorf("bounding box does not intersect the grid")
	}

	tgt, err := resolveTarget(g, target)
	if err != nil {
		return nil, err
	}

	step, clamped := ClampStep(cfg.StepM, g.Transform.PixelSize())
	if clamped {
		monitoring.Logf("refinement step below one pixel, clamped to %.3f m", step)
	}

	// The sweep must reach the far corner of the box from the target.
	radius := coveringRadius(tgt.x, tgt.y, cfg.BBox)
	rays := cfg.Rays
	if rays == 0 {
		if rays, err = SuggestRays(radius, step); err != nil {
			return nil, err
		}
		monitoring.Logf("refinement: derived %d rays for covering radius %.0f m", rays, radius)
	}

	engine := &RadialEngine{
		Grid:       g,
		Target:     target,
		Opts:       opts,
		Cfg:        RadialConfig{RadiusM: radius, StepM: step, Rays: rays},
		Mask:       DirectionMask(tgt.x, tgt.y, cfg.BBox, rays),
		Clip:       &cfg.BBox,
		DomainFill: OutputNoData,
	}
	out, err := engine.Run()
	if err != nil {
		return nil, err
	}

	if cfg.FullExtent {
		return out, nil
	}
	return out.Crop(window), nil
}

// coveringRadius is the distance from the target to the farthest corner of
// the box, the smallest sweep radius that can reach every cell inside it.
func coveringRadius(x, y float64, b raster.BBox) float64 {
	r := 0.0
	for _, cx := range [2]float64{b.MinX, b.MaxX} {
		for _, cy := range [2]float64{b.MinY, b.MaxY} {
			if d := math.Hypot(cx-x, cy-y); d > r {
				r = d
			}
		}
	}
	return r
}
