package viewshed

import (
	"fmt"

	"github.com/veduta-gis/veduta/internal/raster"
)

// OutputNoData is the sentinel written for unreadable or policy-invalidated
// cells in every output raster.
const OutputNoData = -9999.0

// Target is the vertical structure whose visible height is computed: a mast
// of the given height standing at a world position. The base elevation is
// sampled from the DEM at the nearest pixel when the computation starts.
type Target struct {
	X, Y   float64 // world coordinates, grid CRS
	Height float64 // meters above the base elevation
}

// Options carries the knobs shared by both engines.
type Options struct {
	ObserverHeight float64 // observer eye height above terrain, meters
	StrictNoData   bool    // abort a sight line at the first nodata sample
	Workers        int     // parallel workers; <=0 means runtime.NumCPU()
	Kernel         Kernel  // occlusion kernel; nil means VisibleHeight
}

func (o Options) kernel() Kernel {
	if o.Kernel == nil {
		return VisibleHeight
	}
	return o.Kernel
}

// RadialConfig parameterises a radial sweep pass.
type RadialConfig struct {
	RadiusM float64 // maximum radius around the target
	StepM   float64 // radial sample step; floored at one pixel
	Rays    int     // direction count; 0 derives from radius and step
}

// FineConfig parameterises the bounding-box refinement pass.
type FineConfig struct {
	BBox       raster.BBox
	StepM      float64
	Rays       int  // 0 derives from the bbox-covering radius and step
	FullExtent bool // emit the full parent extent instead of the cropped window
}

// resolvedTarget is the per-run immutable target state both engines share.
type resolvedTarget struct {
	row, col int
	x, y     float64 // cell-centre world coordinates of the target pixel
	zBase    float64
	zTop     float64
}

// resolveTarget locates the target pixel and samples its base elevation.
// A target outside the grid or on a nodata cell is a fatal input error:
// nothing can be computed without a base elevation.
func resolveTarget(g *raster.Grid, t Target) (resolvedTarget, error) {
	if t.Height <= 0 {
		return resolvedTarget{}, fmt.Errorf("target height must be > 0, got %g", t.Height)
	}
	row, col := g.Transform.RowCol(t.X, t.Y)
	if !g.InBounds(row, col) {
		return resolvedTarget{}, fmt.Errorf("target (%g, %g) falls outside the grid extent", t.X, t.Y)
	}
	zBase := g.Z(row, col)
	if g.IsNoData(zBase) {
		return resolvedTarget{}, fmt.Errorf("target pixel (%d, %d) is nodata", row, col)
	}
	x, y := g.Transform.CellCenter(row, col)
	return resolvedTarget{
		row: row, col: col,
		x: x, y: y,
		zBase: zBase,
		zTop:  zBase + t.Height,
	}, nil
}
