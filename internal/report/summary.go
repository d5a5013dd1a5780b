package report

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/veduta-gis/veduta/internal/raster"
)

// Summary aggregates a visibility raster over its computed domain (all cells
// that are not nodata).
type Summary struct {
	ComputedCells   int64   // cells carrying a value
	NoDataCells     int64   // unreadable or policy-invalidated cells
	VisibleMean     float64 // mean visible height over computed cells
	VisibleStddev   float64
	VisibleMax      float64
	VisibleFraction float64 // share of computed cells with any visibility
}

// Summarize computes the output summary recorded alongside each run.
func Summarize(g *raster.Grid) Summary {
	vals := make([]float64, 0, len(g.Data))
	var nodata int64
	var visible int64
	maxV := math.Inf(-1)

	for _, v := range g.Data {
		if g.IsNoData(v) {
			nodata++
			continue
		}
		vals = append(vals, v)
		if v > 0 {
			visible++
		}
		if v > maxV {
			maxV = v
		}
	}

	s := Summary{
		ComputedCells: int64(len(vals)),
		NoDataCells:   nodata,
	}
	if len(vals) == 0 {
		return s
	}
	mean, std := stat.MeanStdDev(vals, nil)
	if math.IsNaN(std) { // single sample
		std = 0
	}
	s.VisibleMean = mean
	s.VisibleStddev = std
	s.VisibleMax = maxV
	s.VisibleFraction = float64(visible) / float64(len(vals))
	return s
}
