package longmpc

import "math"

// SimSolver is a pure-Go stand-in for the native MPC solver. It satisfies
// Solver by forward-simulating a simple proportional gap-closing
// controller over the horizon instead of solving a real cost-minimization
// problem, which is enough to exercise the wrapper, arbiter, and
// orchestrator end to end without any native/FFI dependency.
type SimSolver struct {
	Kp, Kd       float64
	MinGap       float64
	AccelMin     float64
	AccelMax     float64
	InitCalls    int
	LastCosts    Costs
	SimInitCalls int
}

// NewSimSolver returns a SimSolver with reasonable default gains.
func NewSimSolver() *SimSolver {
	return &SimSolver{
		Kp:       0.6,
		Kd:       1.2,
		MinGap:   4.0,
		AccelMin: -4.0,
		AccelMax: 2.0,
	}
}

func (s *SimSolver) Init(ttcCost, distanceCost, accelCost, jerkCost float64) {
	s.InitCalls++
	s.LastCosts = Costs{TTC: ttcCost, Distance: distanceCost, Accel: accelCost, Jerk: jerkCost}
}

func (s *SimSolver) InitWithSimulation(vEgo, xLead, vLead, aLead, aLeadTau float64) {
	s.SimInitCalls++
}

func (s *SimSolver) RunMPC(state *State, sol *Solution, aLeadTau, aLead, tr float64) int {
	xEgo, vEgo, aEgo := state.XEgo, state.VEgo, state.AEgo
	xLead, vLead := state.XLead, state.VLead
	aLeadCur := aLead

	sol.XEgo[0], sol.VEgo[0], sol.AEgo[0] = xEgo, vEgo, aEgo
	sol.XLead[0], sol.VLead[0] = xLead, vLead

	for i := 1; i < HorizonNodes; i++ {
		gapError := (xLead - xEgo) - (s.MinGap + tr*vEgo)
		closingRate := vLead - vEgo
		accelCmd := s.Kp*gapError + s.Kd*closingRate
		if accelCmd > s.AccelMax {
			accelCmd = s.AccelMax
		} else if accelCmd < s.AccelMin {
			accelCmd = s.AccelMin
		}
		aEgo = accelCmd
		vEgo += aEgo * DtMPC
		if vEgo < 0 {
			vEgo = 0
		}
		xEgo += vEgo * DtMPC

		if aLeadTau > 0 {
			aLeadCur *= math.Exp(-DtMPC / aLeadTau)
		}
		vLead += aLeadCur * DtMPC
		if vLead < 0 {
			vLead = 0
		}
		xLead += vLead * DtMPC

		sol.XEgo[i], sol.VEgo[i], sol.AEgo[i] = xEgo, vEgo, aEgo
		sol.XLead[i], sol.VLead[i] = xLead, vLead
	}
	return HorizonNodes
}
