package report

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veduta-gis/veduta/internal/raster"
)

func visGrid(data []float64, cols int) *raster.Grid {
	nd := -9999.0
	rows := len(data) / cols
	return &raster.Grid{
		Rows:      rows,
		Cols:      cols,
		Data:      data,
		Transform: raster.GeoTransform{A: 10, E: -10, F: float64(rows) * 10},
		NoData:    &nd,
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()
	g := visGrid([]float64{
		0, 10, 20,
		-9999, 30, 0,
	}, 3)

	s := Summarize(g)
	assert.Equal(t, int64(5), s.ComputedCells)
	assert.Equal(t, int64(1), s.NoDataCells)
	assert.InDelta(t, 12.0, s.VisibleMean, 1e-9)
	assert.Equal(t, 30.0, s.VisibleMax)
	// 3 of 5 computed cells see something.
	assert.InDelta(t, 0.6, s.VisibleFraction, 1e-9)
	assert.Greater(t, s.VisibleStddev, 0.0)
}

func TestSummarize_NaNCountsAsNoData(t *testing.T) {
	t.Parallel()
	g := visGrid([]float64{math.NaN(), 50, 50, 50}, 2)
	s := Summarize(g)
	assert.Equal(t, int64(3), s.ComputedCells)
	assert.Equal(t, int64(1), s.NoDataCells)
	assert.Equal(t, 50.0, s.VisibleMean)
	assert.Equal(t, 0.0, s.VisibleStddev)
	assert.Equal(t, 1.0, s.VisibleFraction)
}

func TestSummarize_AllNoData(t *testing.T) {
	t.Parallel()
	g := visGrid([]float64{-9999, -9999}, 2)
	s := Summarize(g)
	assert.Equal(t, int64(0), s.ComputedCells)
	assert.Equal(t, int64(2), s.NoDataCells)
	assert.Zero(t, s.VisibleMean)
	assert.Zero(t, s.VisibleFraction)
}

func TestSummarize_SingleCell(t *testing.T) {
	t.Parallel()
	s := Summarize(visGrid([]float64{42}, 1))
	require.Equal(t, int64(1), s.ComputedCells)
	assert.Equal(t, 42.0, s.VisibleMean)
	assert.Equal(t, 0.0, s.VisibleStddev, "stddev of one sample is reported as 0")
}
