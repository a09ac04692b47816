// Package smoother implements the accel/jerk-limited speed profile used by
// the cruise branch of the planner: each tick it advances (v, a) one step
// toward a target speed by as much as the current accel/jerk envelope
// allows.
package smoother

// Step advances (v0, a0) by dt seconds toward vTarget, choosing the
// feasible acceleration a1 that gets closest to vTarget in one trapezoidal
// step while respecting the accel envelope [aMin, aMax] and the jerk
// envelope [jMin, jMax] relative to a0.
func Step(v0, a0, vTarget, aMin, aMax, jMin, jMax, dt float64) (v1, a1 float64) {
	if dt <= 0 {
		return v0, a0
	}

	// Exact acceleration that would hit vTarget on this step under
	// trapezoidal integration v1 = v0 + dt*(a0+a1)/2.
	aNeeded := 2*(vTarget-v0)/dt - a0

	lo := aMin
	if v := a0 + jMin*dt; v > lo {
		lo = v
	}
	hi := aMax
	if v := a0 + jMax*dt; v < hi {
		hi = v
	}
	if lo > hi {
		lo, hi = hi, lo
	}

	a1 = aNeeded
	if a1 < lo {
		a1 = lo
	} else if a1 > hi {
		a1 = hi
	}

	v1 = v0 + dt*(a0+a1)/2
	return v1, a1
}
