// Package arbiter selects the winning longitudinal solution among the
// cruise smoother and the two lead-following MPCs, and extrapolates that
// choice forward between radar ticks.
package arbiter

import (
	"math"
	"time"
)

// MPCView is the minimal slice of an longmpc.MPC the arbiter needs; kept
// as its own small struct so this package doesn't import longmpc.
type MPCView struct {
	PrevLeadStatus bool
	VMPC, AMPC     float64
	VMPCFuture     float64
}

// Result is the arbiter's chosen solution for this tick.
type Result struct {
	V, A   float64
	Source string
}

// Select returns the candidate with the lowest target velocity among the
// cruise solution and any tracked MPC leads, preferring cruise and then
// mpc1 on an exact tie (a deterministic, documented tie-break).
func Select(vCruise, aCruise float64, mpc1, mpc2 MPCView) Result {
	best := Result{V: vCruise, A: aCruise, Source: "cruise"}
	if mpc1.PrevLeadStatus && mpc1.VMPC < best.V {
		best = Result{V: mpc1.VMPC, A: mpc1.AMPC, Source: "mpc1"}
	}
	if mpc2.PrevLeadStatus && mpc2.VMPC < best.V {
		best = Result{V: mpc2.VMPC, A: mpc2.AMPC, Source: "mpc2"}
	}
	return best
}

// FutureSpeed is the slowest of the two MPCs' 2s-ahead speed forecast and
// the driver's cruise setpoint, used as a conservative look-ahead target.
func FutureSpeed(mpc1Future, mpc2Future, vCruiseSetpoint float64) float64 {
	return math.Min(mpc1Future, math.Min(mpc2Future, vCruiseSetpoint))
}

// Extrapolate advances the chosen (vAcc, aAcc) solution from the last
// radar-tick anchor (vAccStart, aAccStart, accStartTime) to now, smoothing
// over the gap between the ~20Hz radar cadence and a faster control loop.
func Extrapolate(vAccStart, aAccStart, vAcc, aAcc float64, now, accStartTime time.Time) (vAccSol, aAccSol float64) {
	const dtMPC = 0.2
	dt := now.Sub(accStartTime).Seconds()
	if dt < 0 {
		dt = 0
	}
	if dt > dtMPC+0.01 {
		dt = dtMPC + 0.01
	}
	dt += 0.01

	aAccSol = aAccStart + (dt/dtMPC)*(aAcc-aAccStart)
	vAccSol = vAccStart + dt*(aAccSol+aAccStart)/2
	return vAccSol, aAccSol
}
