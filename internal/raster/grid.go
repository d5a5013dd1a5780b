package raster

import (
	"fmt"
	"math"
)

// nodataEps is the absolute tolerance when comparing a sample against the
// grid's nodata marker. Elevation rasters routinely round-trip through
// float32, so exact comparison is not safe.
const nodataEps = 1e-6

// Grid is an in-memory single-band raster: a row-major matrix of float64
// samples plus the georeferencing needed to place it in the world. The
// engines treat an input Grid as read-only; output grids are written exactly
// once per cell per pass.
type Grid struct {
	Rows, Cols int
	Data       []float64 // row-major, len = Rows*Cols
	Transform  GeoTransform
	CRS        string   // WKT from the .prj sidecar, empty if absent
	NoData     *float64 // nil when the raster declares no nodata marker
}

// NewGrid allocates a grid of the given shape with every cell set to fill.
// Transform, CRS and NoData start from the parent grid so outputs share the
// input's georeferencing by construction.
func NewGrid(parent *Grid, fill float64) *Grid {
	g := &Grid{
		Rows:      parent.Rows,
		Cols:      parent.Cols,
		Data:      make([]float64, parent.Rows*parent.Cols),
		Transform: parent.Transform,
		CRS:       parent.CRS,
		NoData:    parent.NoData,
	}
	if fill != 0 {
		for i := range g.Data {
			g.Data[i] = fill
		}
	}
	return g
}

// InBounds reports whether (row, col) addresses a cell of the grid.
func (g *Grid) InBounds(row, col int) bool {
	return row >= 0 && row < g.Rows && col >= 0 && col < g.Cols
}

// Z returns the sample at (row, col). Callers bound-check first.
func (g *Grid) Z(row, col int) float64 {
	return g.Data[row*g.Cols+col]
}

// SetZ stores a sample at (row, col).
func (g *Grid) SetZ(row, col int, v float64) {
	g.Data[row*g.Cols+col] = v
}

// IsNoData reports whether v counts as missing data for this grid. NaN is
// always missing; otherwise v is compared against the declared marker.
func (g *Grid) IsNoData(v float64) bool {
	if math.IsNaN(v) {
		return true
	}
	if g.NoData == nil {
		return false
	}
	return math.Abs(v-*g.NoData) <= nodataEps
}

// Validate checks the structural invariants a freshly loaded grid must hold
// before any engine touches it.
func (g *Grid) Validate() error {
	if g.Rows <= 0 || g.Cols <= 0 {
		return fmt.Errorf("empty grid: %dx%d", g.Rows, g.Cols)
	}
	if len(g.Data) != g.Rows*g.Cols {
		return fmt.Errorf("grid data length %d does not match shape %dx%d", len(g.Data), g.Rows, g.Cols)
	}
	if g.Transform.A == 0 || g.Transform.E == 0 {
		return fmt.Errorf("degenerate geotransform: zero pixel size")
	}
	if g.Transform.IsRotated() {
		return fmt.Errorf("rotated or skewed geotransform is not supported")
	}
	return nil
}

// SameShape reports whether two grids share shape and georeferencing, the
// precondition for combining them cell by cell.
func (g *Grid) SameShape(o *Grid) bool {
	return g.Rows == o.Rows && g.Cols == o.Cols && g.Transform == o.Transform
}
