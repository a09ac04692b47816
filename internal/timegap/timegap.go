// Package timegap implements the frozen two-weight logistic model that
// maps (v_ego, v_rel) onto a desired follow time (TR), and the matching
// cost curve the MPC wrapper uses when that follow time is in effect.
package timegap

import (
	"math"

	"github.com/doublecapcrimpin/openpilot/internal/planmath"
)

func init() {
	planmath.MustBeIncreasing("timegap.costBP", costBP)
}

// Fixed input ranges the model was trained on. Values outside these
// ranges are clamped before remapping.
const (
	vEgoMin, vEgoMax = 0.0, 53.6448 // m/s, 0-120mph
	vRelMin, vRelMax = -8.9408, 3.12928
)

// Frozen logistic-regression weights.
const (
	wVEgo = 3.0327508
	wVRel = -2.07414288
)

// Output follow-time range.
const (
	trMin, trMax = 0.67, 2.7
)

// costBP/costV are the (distance -> cost) breakpoints used by the MPC
// wrapper's dynamic distance_lines profile.
var (
	costBP = []float64{0.9, 1.8, 2.7}
	costV  = []float64{1.0, 0.1, 0.05}
)

// Generate returns the desired follow time TR for the given ego speed and
// relative lead speed (v_lead - v_ego), rounded to hundredths.
func Generate(vEgo, vRel float64) float64 {
	x0 := planmath.Remap(vEgo, vEgoMin, vEgoMax, 0, 1)
	x1 := planmath.Remap(vRel, vRelMin, vRelMax, 0, 1)

	z := wVEgo*x0 + wVRel*x1
	sigmoid := 1 / (1 + math.Exp(-z))

	tr := trMin + sigmoid*(trMax-trMin)
	return math.Round(tr*100) / 100
}

// Cost returns the MPC distance-cost weight for a given follow time. It is
// monotonically non-increasing in distance: a larger gap costs less.
func Cost(distance float64) float64 {
	return planmath.Interp(distance, costBP, costV)
}
