package viewshed

import (
	"fmt"
	"math"
	"sort"

	"github.com/veduta-gis/veduta/internal/raster"
)

// AzimuthDeg returns the cartographic azimuth from (x0,y0) to (x1,y1) in
// degrees, north = 0, clockwise, in [0, 360).
func AzimuthDeg(x0, y0, x1, y1 float64) float64 {
	az := math.Atan2(x1-x0, y1-y0) * 180 / math.Pi
	return math.Mod(az+360, 360)
}

// MinimalCoveringArc returns (azMin, azMax, fov) for the smallest circular arc
// in degrees covering all the given azimuths. azMin and azMax are oriented
// along the chosen arc and may straddle the 0/360 boundary; fov is the arc
// width.
func MinimalCoveringArc(angles []float64) (azMin, azMax, fov float64, err error) {
	if len(angles) == 0 {
		return 0, 0, 0, fmt.Errorf("at least one angle is required")
	}
	// math.Mod returns angles already in [0, 360) unchanged, so in-range
	// input is never perturbed by the normalisation.
	norm := make([]float64, len(angles))
	for i, a := range angles {
		norm[i] = normDeg(a)
	}
	sort.Float64s(norm)
	if len(norm) == 1 {
		return norm[0], norm[0], 0, nil
	}

	// The covering arc is the complement of the largest gap between
	// consecutive angles on the circle.
	bestGap := -1.0
	bestIdx := -1
	for i := 0; i < len(norm)-1; i++ {
		if gap := norm[i+1] - norm[i]; gap > bestGap {
			bestGap = gap
			bestIdx = i
		}
	}
	if wrapGap := norm[0] + 360 - norm[len(norm)-1]; wrapGap > bestGap {
		bestGap = wrapGap
		bestIdx = len(norm) - 1
	}

	azMin = norm[(bestIdx+1)%len(norm)]
	azMax = norm[bestIdx]
	fov = 360 - bestGap
	if fov < 0 {
		fov = 0
	}
	return azMin, azMax, fov, nil
}

// DirectionMask marks the ray directions (math angle theta_k = 2*pi*k/K,
// counter-clockwise from east) that can intersect the bounding box as seen
// from the target. Directions outside the box's angular span are skipped by
// the refinement sweep.
func DirectionMask(targetX, targetY float64, bbox raster.BBox, kRays int) []bool {
	mask := make([]bool, kRays)

	// A target inside the box sees it in every direction; the corner arc
	// logic only applies from outside.
	if bbox.Contains(targetX, targetY) {
		for k := range mask {
			mask[k] = true
		}
		return mask
	}

	// The box is convex, so every direction into it lies on the minimal arc
	// covering the four corner directions. Min/max of the normalised angles
	// picks the wrong endpoint pair whenever the box straddles theta = 0;
	// the largest-gap arc does not.
	corners := [4][2]float64{
		{bbox.MinX, bbox.MinY},
		{bbox.MinX, bbox.MaxY},
		{bbox.MaxX, bbox.MinY},
		{bbox.MaxX, bbox.MaxY},
	}
	angles := make([]float64, 0, 4)
	for _, c := range corners {
		angles = append(angles, math.Atan2(c[1]-targetY, c[0]-targetX)*180/math.Pi)
	}
	aMin, aMax, fov, _ := MinimalCoveringArc(angles)

	// Pad by one ray spacing so a cell whose direction sits exactly on an
	// arc endpoint keeps its nearest quantised ray.
	spacing := 360 / float64(kRays)
	if fov+2*spacing >= 360 {
		for k := range mask {
			mask[k] = true
		}
		return mask
	}
	aMin = normDeg(aMin - spacing)
	aMax = normDeg(aMax + spacing)

	for k := 0; k < kRays; k++ {
		theta := spacing * float64(k)
		if aMin <= aMax {
			mask[k] = theta >= aMin && theta <= aMax
		} else {
			mask[k] = theta >= aMin || theta <= aMax
		}
	}
	return mask
}

// normDeg wraps a degree angle into [0, 360).
func normDeg(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	return a
}
