package viewshed

import (
	"fmt"
	"math"
)

// RayQualityPresets are the supported direction counts for the radial sweep,
// ascending. Snapping a derived K upward to a preset bounds the worst-case
// angular gap at the radius and keeps runtime in predictable tiers.
var RayQualityPresets = [...]int{4096, 8192, 12288, 16384}

// SuggestRays derives a direction count from K ~= 2*pi*R/s and snaps it up to
// the nearest quality preset. Beyond the largest preset it returns the
// smallest multiple of that preset that still covers the raw K.
func SuggestRays(radiusM, stepM float64) (int, error) {
	if radiusM <= 0 || stepM <= 0 {
		return 0, fmt.Errorf("radius and step must be > 0, got radius %g step %g", radiusM, stepM)
	}
	rawK := int(math.Ceil(2 * math.Pi * radiusM / stepM))
	for _, preset := range RayQualityPresets {
		if preset >= rawK {
			return preset, nil
		}
	}
	top := RayQualityPresets[len(RayQualityPresets)-1]
	mul := (rawK + top - 1) / top
	return top * mul, nil
}

// DefaultRadialStep suggests a radial sample step for a given pixel size:
// three pixels, never less than one.
func DefaultRadialStep(pixelM float64) (float64, error) {
	if pixelM <= 0 {
		return 0, fmt.Errorf("pixel size must be > 0, got %g", pixelM)
	}
	return math.Max(pixelM, 3*pixelM), nil
}
