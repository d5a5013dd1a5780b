package viewshed

import (
	"math"

	"github.com/veduta-gis/veduta/internal/raster"
)

// Sample is one intermediate point on the sight line between an observer and
// the target, excluding both endpoints. Z is the raw grid elevation (nodata
// markers included; the engines apply the nodata policy), Dist the horizontal
// distance from the observer in world units.
type Sample struct {
	Row, Col int
	Z        float64
	Dist     float64
}

// Sampler produces the ordered profile of intermediate samples between the
// observer cell and the target cell. Implementations must exclude both
// endpoint cells and emit samples in increasing distance from the observer.
type Sampler interface {
	Profile(g *raster.Grid, obsRow, obsCol, tgtRow, tgtCol int, stepM float64) []Sample
}

// StepSampler walks the metric segment from observer to target at a fixed
// step, snapping each intermediate position to the nearest grid cell. A step
// below one pixel must be clamped by the caller before use; ClampStep does
// this uniformly for both engines.
type StepSampler struct{}

// Profile implements Sampler by fixed-distance stepping, stopping one step
// short of the target. Positions that snap outside the grid are skipped, as
// are positions that snap onto either endpoint cell.
func (StepSampler) Profile(g *raster.Grid, obsRow, obsCol, tgtRow, tgtCol int, stepM float64) []Sample {
	xo, yo := g.Transform.CellCenter(obsRow, obsCol)
	xt, yt := g.Transform.CellCenter(tgtRow, tgtCol)
	dx, dy := xt-xo, yt-yo
	dist := math.Hypot(dx, dy)
	if dist == 0 || stepM <= 0 {
		return nil
	}

	var out []Sample
	for s := 1; ; s++ {
		t := float64(s) * stepM
		if t >= dist {
			break
		}
		ratio := t / dist
		row, col := g.Transform.RowCol(xo+dx*ratio, yo+dy*ratio)
		if !g.InBounds(row, col) {
			continue
		}
		if (row == obsRow && col == obsCol) || (row == tgtRow && col == tgtCol) {
			continue
		}
		out = append(out, Sample{Row: row, Col: col, Z: g.Z(row, col), Dist: t})
	}
	return out
}

// LineSampler traverses every intermediate cell on the discrete grid line
// between observer and target (Bresenham), ignoring the metric step. Distances
// are measured between cell centres.
type LineSampler struct{}

// Profile implements Sampler by discrete cell traversal.
func (LineSampler) Profile(g *raster.Grid, obsRow, obsCol, tgtRow, tgtCol int, _ float64) []Sample {
	cells := bresenham(obsRow, obsCol, tgtRow, tgtCol)
	if len(cells) <= 2 {
		return nil
	}
	xo, yo := g.Transform.CellCenter(obsRow, obsCol)

	out := make([]Sample, 0, len(cells)-2)
	for _, rc := range cells[1 : len(cells)-1] {
		x, y := g.Transform.CellCenter(rc[0], rc[1])
		d := math.Hypot(x-xo, y-yo)
		if d <= 0 {
			continue
		}
		out = append(out, Sample{Row: rc[0], Col: rc[1], Z: g.Z(rc[0], rc[1]), Dist: d})
	}
	return out
}

// bresenham returns the grid cells on the line from (r0,c0) to (r1,c1),
// endpoints included.
func bresenham(r0, c0, r1, c1 int) [][2]int {
	dr := abs(r1 - r0)
	dc := abs(c1 - c0)
	sr, sc := 1, 1
	if r0 > r1 {
		sr = -1
	}
	if c0 > c1 {
		sc = -1
	}

	var cells [][2]int
	r, c := r0, c0
	if dc > dr {
		err := dc / 2
		for c != c1 {
			cells = append(cells, [2]int{r, c})
			err -= dr
			if err < 0 {
				r += sr
				err += dc
			}
			c += sc
		}
	} else {
		err := dr / 2
		for r != r1 {
			cells = append(cells, [2]int{r, c})
			err -= dc
			if err < 0 {
				c += sc
				err += dr
			}
			r += sr
		}
	}
	cells = append(cells, [2]int{r1, c1})
	return cells
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// ClampStep floors a metric sample step at one pixel so consecutive samples
// cannot land on the same cell purely from over-sampling. Returns the
// effective step and whether clamping happened.
func ClampStep(stepM, pixelM float64) (float64, bool) {
	if stepM < pixelM {
		return pixelM, true
	}
	return stepM, false
}
