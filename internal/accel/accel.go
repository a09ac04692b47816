// Package accel holds the speed-dependent acceleration-limit tables and the
// lateral-envelope/turn-deceleration math that bounds the cruise smoother.
package accel

import (
	"math"

	"github.com/doublecapcrimpin/openpilot/internal/planmath"
)

// ForceSlowDecel is the deceleration ceiling applied when the driver is
// judged distracted.
const ForceSlowDecel = -0.2

var (
	bpV               = []float64{0, 5, 10, 20, 40}
	aCruiseMinV       = []float64{-1.0, -0.8, -0.67, -0.5, -0.30}
	aCruiseMaxFreeV   = []float64{1.1, 1.1, 0.8, 0.5, 0.3}
	aCruiseMaxFollowV = []float64{1.6, 1.6, 1.2, 0.7, 0.3}

	bpLat      = []float64{0, 25, 40}
	aTotalMaxV = []float64{3.0, 3.5, 4.0}
)

func init() {
	planmath.MustBeIncreasing("accel.bpV", bpV)
	planmath.MustBeIncreasing("accel.bpLat", bpLat)
}

// CruiseLimits returns the (a_min, a_max) envelope for the free-cruise or
// lead-follow profile at the given ego speed.
func CruiseLimits(vEgo float64, following bool) (aMin, aMax float64) {
	aMin = planmath.Interp(vEgo, bpV, aCruiseMinV)
	if following {
		aMax = planmath.Interp(vEgo, bpV, aCruiseMaxFollowV)
	} else {
		aMax = planmath.Interp(vEgo, bpV, aCruiseMaxFreeV)
	}
	return aMin, aMax
}

// JerkLimits derives the jerk envelope used by the speed smoother from a
// given accel envelope: never tighter than +-jerkFloor m/s^3.
func JerkLimits(aMin, aMax, jerkFloor float64) (jMin, jMax float64) {
	jMin = math.Min(-jerkFloor, aMin)
	jMax = math.Max(jerkFloor, aMax)
	return jMin, jMax
}

// LimitForTurns tightens (aMin, aMax) so that the combined longitudinal and
// lateral acceleration stays inside the total lateral envelope at vEgo,
// given the measured steering angle and an optional forward-looking
// lateral-controller hint angle (both in degrees).
func LimitForTurns(vEgo, aMin, aMax, steerAngleDeg, steerAngleLaterDeg, steerRatio, wheelbase float64) (float64, float64) {
	if steerRatio <= 0 || wheelbase <= 0 {
		return aMin, aMax
	}
	const degToRad = math.Pi / 180

	aTotalMax := planmath.Interp(vEgo, bpLat, aTotalMaxV)
	ay := vEgo * vEgo * math.Abs(steerAngleDeg*degToRad) / (steerRatio * wheelbase)
	ayLater := vEgo * vEgo * math.Abs(steerAngleLaterDeg*degToRad) / (steerRatio * wheelbase)

	allowedMax := math.Min(aMax, math.Min(aTotalMax-ay, aTotalMax-ayLater))
	allowedMin := math.Min(aMin, allowedMax)
	return allowedMin, allowedMax
}

// CurvatureSpeed converts a signed road curvature into the fastest speed
// that keeps lateral accel within ayMax, capped at cap.
func CurvatureSpeed(curvature, ayMax, cap float64) float64 {
	curvature = math.Abs(curvature)
	v := math.Sqrt(ayMax / math.Max(1e-4, curvature))
	return math.Min(v, cap)
}
