package viewshed

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectEngine_FlatTerrainFullyVisible(t *testing.T) {
	t.Parallel()
	g := flatGrid(41, 41, 10, 100)
	engine := &DirectEngine{
		Grid:        g,
		Target:      Target{X: 205, Y: 205, Height: 200},
		Opts:        Options{ObserverHeight: 1.6, StrictNoData: true, Workers: 4},
		SampleStepM: 10,
	}
	out, err := engine.Run()
	require.NoError(t, err)
	require.Equal(t, g.Rows, out.Rows)
	require.Equal(t, g.Cols, out.Cols)
	require.NotNil(t, out.NoData)
	assert.Equal(t, OutputNoData, *out.NoData)
	assert.Equal(t, g.Transform, out.Transform)

	// On flat terrain every sight line clears the eye-to-base line, so the
	// whole mast is visible everywhere.
	for r := 0; r < out.Rows; r++ {
		for c := 0; c < out.Cols; c++ {
			require.Equal(t, 200.0, out.Z(r, c), "cell (%d,%d)", r, c)
		}
	}
}

func TestDirectEngine_MaxDistanceTruncation(t *testing.T) {
	t.Parallel()
	g := flatGrid(41, 41, 10, 100)
	engine := &DirectEngine{
		Grid:         g,
		Target:       Target{X: 205, Y: 205, Height: 200},
		Opts:         Options{ObserverHeight: 1.6, Workers: 2},
		MaxDistanceM: 100,
		SampleStepM:  10,
	}
	out, err := engine.Run()
	require.NoError(t, err)

	// Inside the cutoff: full height. 100 m out exactly is still inside.
	assert.Equal(t, 200.0, out.Z(20, 25))
	assert.Equal(t, 200.0, out.Z(20, 30))
	// Beyond the cutoff: zero visible meters, not nodata.
	assert.Equal(t, 0.0, out.Z(20, 31))
	assert.Equal(t, 0.0, out.Z(0, 0))
}

func TestDirectEngine_TargetPixelReportsFullHeight(t *testing.T) {
	t.Parallel()
	g := flatGrid(11, 11, 10, 250)
	engine := &DirectEngine{
		Grid:        g,
		Target:      Target{X: 55, Y: 55, Height: 120},
		Opts:        Options{ObserverHeight: 1.6},
		SampleStepM: 10,
	}
	out, err := engine.Run()
	require.NoError(t, err)
	assert.Equal(t, 120.0, out.Z(5, 5))
}

func TestDirectEngine_WallOcclusion(t *testing.T) {
	t.Parallel()
	// Single-row strip: target in cell 0, a 10 m wall in cell 10, observers
	// east of it. zObs = 1.6, wall alpha from 200 m = (10-1.6)/100 = 0.084,
	// occluding ray height at the target = 1.6 + 0.084*200 = 18.4 m.
	g := flatGrid(1, 21, 10, 0)
	g.SetZ(0, 10, 10)

	engine := &DirectEngine{
		Grid:        g,
		Target:      Target{X: 5, Y: 5, Height: 50},
		Opts:        Options{ObserverHeight: 1.6, StrictNoData: true},
		SampleStepM: 10,
	}
	out, err := engine.Run()
	require.NoError(t, err)

	assert.InDelta(t, 31.6, out.Z(0, 20), 1e-9, "partially hidden behind the wall")
	assert.Equal(t, 50.0, out.Z(0, 5), "clear line in front of the wall")
}

func TestDirectEngine_TallWallHidesTarget(t *testing.T) {
	t.Parallel()
	g := flatGrid(1, 21, 10, 0)
	g.SetZ(0, 10, 60)

	engine := &DirectEngine{
		Grid:        g,
		Target:      Target{X: 5, Y: 5, Height: 50},
		Opts:        Options{ObserverHeight: 1.6},
		SampleStepM: 10,
	}
	out, err := engine.Run()
	require.NoError(t, err)
	assert.Equal(t, 0.0, out.Z(0, 20))
}

func TestDirectEngine_NoDataPolicy(t *testing.T) {
	t.Parallel()

	t.Run("strict aborts the sight line", func(t *testing.T) {
		t.Parallel()
		g := flatGrid(1, 21, 10, 0)
		g.SetZ(0, 10, -9999)
		engine := &DirectEngine{
			Grid:        g,
			Target:      Target{X: 5, Y: 5, Height: 50},
			Opts:        Options{ObserverHeight: 1.6, StrictNoData: true},
			SampleStepM: 10,
		}
		out, err := engine.Run()
		require.NoError(t, err)
		assert.Equal(t, OutputNoData, out.Z(0, 20))
		assert.Equal(t, 50.0, out.Z(0, 5), "cells before the gap stay computable")
	})

	t.Run("non-strict skips the sample", func(t *testing.T) {
		t.Parallel()
		g := flatGrid(1, 21, 10, 0)
		g.SetZ(0, 10, -9999)
		engine := &DirectEngine{
			Grid:        g,
			Target:      Target{X: 5, Y: 5, Height: 50},
			Opts:        Options{ObserverHeight: 1.6, StrictNoData: false},
			SampleStepM: 10,
		}
		out, err := engine.Run()
		require.NoError(t, err)
		assert.Equal(t, 50.0, out.Z(0, 20))
	})

	t.Run("observer on nodata terrain", func(t *testing.T) {
		t.Parallel()
		g := flatGrid(1, 21, 10, 0)
		g.SetZ(0, 20, -9999)
		engine := &DirectEngine{
			Grid:        g,
			Target:      Target{X: 5, Y: 5, Height: 50},
			Opts:        Options{ObserverHeight: 1.6, StrictNoData: true},
			SampleStepM: 10,
		}
		out, err := engine.Run()
		require.NoError(t, err)
		assert.Equal(t, OutputNoData, out.Z(0, 20))
	})
}

func TestDirectEngine_InvalidTarget(t *testing.T) {
	t.Parallel()

	t.Run("non-positive height", func(t *testing.T) {
		t.Parallel()
		engine := &DirectEngine{
			Grid:   flatGrid(5, 5, 10, 0),
			Target: Target{X: 25, Y: 25, Height: 0},
		}
		_, err := engine.Run()
		assert.Error(t, err)
	})

	t.Run("outside the grid", func(t *testing.T) {
		t.Parallel()
		engine := &DirectEngine{
			Grid:   flatGrid(5, 5, 10, 0),
			Target: Target{X: 5000, Y: 5000, Height: 100},
		}
		_, err := engine.Run()
		assert.Error(t, err)
	})

	t.Run("on a nodata pixel", func(t *testing.T) {
		t.Parallel()
		g := flatGrid(5, 5, 10, 0)
		g.SetZ(2, 2, math.NaN())
		engine := &DirectEngine{
			Grid:   g,
			Target: Target{X: 25, Y: 25, Height: 100},
		}
		_, err := engine.Run()
		assert.Error(t, err)
	})
}
