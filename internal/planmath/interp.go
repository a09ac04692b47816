// Package planmath holds the small numeric primitives (piecewise-linear
// interpolation and range remapping) shared by the time-gap model, the
// accel-limit tables, and the FCW detector.
package planmath

import "gonum.org/v1/gonum/floats"

// Interp returns the piecewise-linear interpolation of x over the
// breakpoints bp with values v, clamped to v[0]/v[len(v)-1] outside the
// table's range. bp must be strictly increasing; use MustBeIncreasing at
// package init to catch a mistyped constant table early.
func Interp(x float64, bp, v []float64) float64 {
	n := len(bp)
	if n == 0 {
		return 0
	}
	if x <= bp[0] {
		return v[0]
	}
	if x >= bp[n-1] {
		return v[n-1]
	}
	for i := 0; i < n-1; i++ {
		if x < bp[i+1] {
			span := bp[i+1] - bp[i]
			if span <= 0 {
				return v[i]
			}
			frac := (x - bp[i]) / span
			return v[i] + frac*(v[i+1]-v[i])
		}
	}
	return v[n-1]
}

// MustBeIncreasing panics if bp is not strictly increasing. Called once
// from package init in internal/accel and internal/timegap against their
// fixed breakpoint tables.
func MustBeIncreasing(name string, bp []float64) {
	if !floats.IsIncreasing(bp) {
		panic(name + ": breakpoints must be strictly increasing")
	}
}

// Remap affinely maps value from [x0,x1] onto [y0,y1] and clamps the
// result to that output range (in either orientation).
func Remap(value, x0, x1, y0, y1 float64) float64 {
	var t float64
	if x1 != x0 {
		t = (value - x0) / (x1 - x0)
	}
	out := y0 + t*(y1-y0)
	lo, hi := y0, y1
	if lo > hi {
		lo, hi = hi, lo
	}
	if out < lo {
		return lo
	}
	if out > hi {
		return hi
	}
	return out
}
