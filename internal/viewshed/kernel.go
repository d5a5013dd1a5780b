package viewshed

import "math"

// NoOcclusion is the max-alpha value meaning no valid intervening sample was
// seen: every comparison treats the sight line as clear.
var NoOcclusion = math.Inf(-1)

// Kernel computes the visible height of the target from one observer given
// the folded occlusion state. It is the single pluggable inner function of
// both engines; alternative kernels must satisfy the same contract and the
// same property tests as VisibleHeight.
type Kernel func(zObs, zBase, zTop, dist, maxAlpha float64) float64

// VisibleHeight is the reference occlusion kernel.
//
// zObs is the observer eye elevation, zBase/zTop the target base and top
// elevations, dist the horizontal observer-target distance (must be > 0),
// and maxAlpha the maximum slope (rise/run) from the eye to any intervening
// terrain sample, or NoOcclusion when there is none.
//
// Ties favour visibility: a ridge exactly on the eye-to-base line leaves the
// target fully visible, one exactly on the eye-to-top line hides it fully.
// The result is clamped to [0, zTop-zBase] to absorb float round-off from
// the interpolated cut.
func VisibleHeight(zObs, zBase, zTop, dist, maxAlpha float64) float64 {
	height := zTop - zBase
	betaBase := (zBase - zObs) / dist
	betaTop := (zTop - zObs) / dist

	var visible float64
	switch {
	case maxAlpha <= betaBase:
		visible = height
	case maxAlpha >= betaTop:
		visible = 0
	default:
		hBlock := (zObs + maxAlpha*dist) - zBase
		visible = height - hBlock
	}

	if visible < 0 {
		return 0
	}
	if visible > height {
		return height
	}
	return visible
}
