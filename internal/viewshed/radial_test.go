package viewshed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veduta-gis/veduta/internal/raster"
)

func TestRadialEngine_FlatTerrain(t *testing.T) {
	t.Parallel()
	g := flatGrid(41, 41, 10, 100)
	engine := &RadialEngine{
		Grid:   g,
		Target: Target{X: 205, Y: 205, Height: 200},
		Opts:   Options{ObserverHeight: 1.6, StrictNoData: true, Workers: 4},
		Cfg:    RadialConfig{RadiusM: 150, StepM: 10, Rays: 720},
	}
	out, err := engine.Run()
	require.NoError(t, err)
	require.NotNil(t, out.NoData)
	assert.Equal(t, OutputNoData, *out.NoData)

	// Flat terrain: every swept cell carries the full height, everything
	// outside the radius carries the domain fill of zero.
	for r := 0; r < out.Rows; r++ {
		for c := 0; c < out.Cols; c++ {
			v := out.Z(r, c)
			require.True(t, v == 0 || v == 200, "cell (%d,%d) = %g", r, c, v)
		}
	}
	assert.Equal(t, 200.0, out.Z(20, 20), "target pixel reports the full height")
	for col := 21; col <= 35; col++ {
		assert.Equal(t, 200.0, out.Z(20, col), "on-axis cell at %d m", (col-20)*10)
	}
	assert.Equal(t, 0.0, out.Z(20, 36), "first cell beyond the radius")
	assert.Equal(t, 0.0, out.Z(0, 0), "corner far outside the radius")
}

func TestRadialEngine_DeterministicAcrossWorkerCounts(t *testing.T) {
	t.Parallel()
	g := flatGrid(41, 41, 10, 100)
	// A diagonal ridge so the outputs carry non-trivial structure.
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			if r+c == 50 {
				g.SetZ(r, c, 140)
			}
		}
	}

	var outputs [][]float64
	for _, workers := range []int{1, 3, 8} {
		engine := &RadialEngine{
			Grid:   g,
			Target: Target{X: 205, Y: 205, Height: 200},
			Opts:   Options{ObserverHeight: 1.6, StrictNoData: true, Workers: workers},
			Cfg:    RadialConfig{RadiusM: 200, StepM: 10, Rays: 1024},
		}
		out, err := engine.Run()
		require.NoError(t, err)
		outputs = append(outputs, out.Data)
	}
	assert.Equal(t, outputs[0], outputs[1], "1 vs 3 workers")
	assert.Equal(t, outputs[0], outputs[2], "1 vs 8 workers")
}

func TestRadialEngine_StrictNoDataMarksDownstream(t *testing.T) {
	t.Parallel()
	g := flatGrid(41, 41, 10, 100)
	g.SetZ(20, 25, -9999) // 50 m due east of the target

	engine := &RadialEngine{
		Grid:   g,
		Target: Target{X: 205, Y: 205, Height: 200},
		Opts:   Options{ObserverHeight: 1.6, StrictNoData: true, Workers: 2},
		Cfg:    RadialConfig{RadiusM: 150, StepM: 10, Rays: 720},
	}
	out, err := engine.Run()
	require.NoError(t, err)

	assert.Equal(t, OutputNoData, out.Z(20, 25), "the nodata cell itself")
	assert.Equal(t, OutputNoData, out.Z(20, 26), "first cell behind the gap")
	assert.Equal(t, OutputNoData, out.Z(20, 30), "cell well behind the gap")
	assert.Equal(t, 200.0, out.Z(20, 22), "cell in front of the gap")
	assert.Equal(t, 200.0, out.Z(15, 20), "unrelated direction unaffected")
}

func TestRadialEngine_NonStrictSkipsNoData(t *testing.T) {
	t.Parallel()
	g := flatGrid(41, 41, 10, 100)
	g.SetZ(20, 25, -9999)

	engine := &RadialEngine{
		Grid:   g,
		Target: Target{X: 205, Y: 205, Height: 200},
		Opts:   Options{ObserverHeight: 1.6, StrictNoData: false, Workers: 2},
		Cfg:    RadialConfig{RadiusM: 150, StepM: 10, Rays: 720},
	}
	out, err := engine.Run()
	require.NoError(t, err)

	assert.Equal(t, OutputNoData, out.Z(20, 25), "DEM nodata stays nodata in the output")
	assert.Equal(t, 200.0, out.Z(20, 26), "gap is skipped, not folded")
	assert.Equal(t, 200.0, out.Z(20, 30))
}

// ridgeStrip is a 1x40 row grid with the target at col 0 and three ridges
// east of it: neither the steepest ridge seen from the target base (col 5)
// nor the one seen from the target top (col 28) is the ridge that actually
// sets the cut for far observers (col 15).
func ridgeStrip() *raster.Grid {
	g := flatGrid(1, 40, 10, 0)
	g.SetZ(0, 5, 30)
	g.SetZ(0, 15, 45)
	g.SetZ(0, 28, 5)
	return g
}

func TestRadialEngine_AgreesWithDirectEngine(t *testing.T) {
	t.Parallel()
	// On a single row with the target at a cell centre, step = pixel size
	// and an east-pointing ray, both engines evaluate the same samples at
	// the same distances, so they must agree to float round-off per cell.
	g := ridgeStrip()
	target := Target{X: 5, Y: 5, Height: 100}
	opts := Options{ObserverHeight: 1.6, StrictNoData: true, Workers: 2}

	direct, err := (&DirectEngine{Grid: g, Target: target, Opts: opts, SampleStepM: 10}).Run()
	require.NoError(t, err)
	radial, err := (&RadialEngine{
		Grid: g, Target: target, Opts: opts,
		Cfg: RadialConfig{RadiusM: 400, StepM: 10, Rays: 4},
	}).Run()
	require.NoError(t, err)

	for c := 0; c < g.Cols; c++ {
		dv, rv := direct.Z(0, c), radial.Z(0, c)
		require.InDelta(t, dv, rv, 1e-9, "col %d: direct %g radial %g", c, dv, rv)
	}

	// No occluder in front of col 2: both exact.
	assert.Equal(t, 100.0, direct.Z(0, 2))
	assert.Equal(t, 100.0, radial.Z(0, 2))
}

func TestRadialEngine_MiddleRidgeSetsTheCut(t *testing.T) {
	t.Parallel()
	// From the observer at 300 m the middle ridge dominates:
	// (45-1.6)/150 > (30-1.6)/250 and > (5-1.6)/20, even though it is
	// neither the steepest sample from the target base nor from the top.
	// Visible height = 100 - (1.6 + (43.4/150)*300) = 11.6.
	g := ridgeStrip()
	radial, err := (&RadialEngine{
		Grid:   g,
		Target: Target{X: 5, Y: 5, Height: 100},
		Opts:   Options{ObserverHeight: 1.6, StrictNoData: true, Workers: 1},
		Cfg:    RadialConfig{RadiusM: 400, StepM: 10, Rays: 4},
	}).Run()
	require.NoError(t, err)
	assert.InDelta(t, 11.6, radial.Z(0, 30), 1e-9)
}

func TestRadialEngine_Validation(t *testing.T) {
	t.Parallel()

	t.Run("radius required", func(t *testing.T) {
		t.Parallel()
		engine := &RadialEngine{
			Grid:   flatGrid(5, 5, 10, 0),
			Target: Target{X: 25, Y: 25, Height: 100},
		}
		_, err := engine.Run()
		assert.Error(t, err)
	})

	t.Run("mask length must match rays", func(t *testing.T) {
		t.Parallel()
		engine := &RadialEngine{
			Grid:   flatGrid(5, 5, 10, 0),
			Target: Target{X: 25, Y: 25, Height: 100},
			Cfg:    RadialConfig{RadiusM: 100, StepM: 10, Rays: 64},
			Mask:   make([]bool, 8),
		}
		_, err := engine.Run()
		assert.Error(t, err)
	})
}
