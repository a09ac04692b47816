package longmpc

import (
	"math"
	"time"

	"github.com/doublecapcrimpin/openpilot/internal/ptypes"
	"github.com/doublecapcrimpin/openpilot/internal/telemetry"
	"github.com/doublecapcrimpin/openpilot/internal/timegap"
)

const resetLogInterval = 5 * time.Second

// DefaultDistanceLinesCostEpsilon gates re-init on the dynamic
// (distance_lines==2) profile: the solver is only re-initialized when the
// cost weight implied by the new TR has drifted enough to matter. Callers
// normally pass config.TuningConfig.GetDistanceLinesCostEpsilon() instead.
const DefaultDistanceLinesCostEpsilon = 0.2

// MPC wraps a Solver with per-lead state tracking, follow-profile
// selection, and divergence recovery. Two of these run side by side in the
// planner, one per lead slot, sharing the same VehicleParams.
type MPC struct {
	ID     int
	Solver Solver
	Params ptypes.VehicleParams

	curState State
	solution Solution

	VMPC, AMPC, VMPCFuture float64

	prevLeadStatus bool
	prevLeadX      float64
	newLead        bool

	aLeadTau float64
	relVel   float64

	lastCost          float64
	lastDistanceLines int

	LastIterations    int
	LastSolveDuration time.Duration

	distanceLinesCostEpsilon float64

	lastResetLog time.Time
	now          func() time.Time
}

// New builds an MPC wrapper around solver and performs its initial Init.
// costEpsilon gates re-init on the dynamic (distance_lines==2) profile; pass
// config.TuningConfig.GetDistanceLinesCostEpsilon() in production.
func New(id int, solver Solver, params ptypes.VehicleParams, costEpsilon float64) *MPC {
	m := &MPC{
		ID:                       id,
		Solver:                   solver,
		Params:                   params,
		aLeadTau:                 DefaultLeadTau,
		distanceLinesCostEpsilon: costEpsilon,
		now:                      time.Now,
	}
	m.Solver.Init(DefaultCosts.TTC, DefaultCosts.Distance, DefaultCosts.Accel, DefaultCosts.Jerk)
	return m
}

// SetCurState anchors the solver's current-state velocity/accel ahead of
// the next Update call.
func (m *MPC) SetCurState(v, a float64) {
	m.curState.VEgo = v
	m.curState.AEgo = a
}

// SetRelativeVelocity records the lead's relative velocity for the dynamic
// distance_lines profile; callers fall back to 0 when no lead is present.
func (m *MPC) SetRelativeVelocity(v float64) { m.relVel = v }

// PrevLeadStatus reports whether a lead was tracked as of the last Update.
func (m *MPC) PrevLeadStatus() bool { return m.prevLeadStatus }

// NewLead reports whether the last Update acquired a lead that wasn't
// present (or had jumped) on the previous tick.
func (m *MPC) NewLead() bool { return m.newLead }

// Solution exposes the last solved trajectory, e.g. for the FCW detector.
func (m *MPC) Solution() *Solution { return &m.solution }

// Update advances the wrapped solver by one radar tick given the current
// ego state, an optional lead track, and the driver's cruise setpoint.
func (m *MPC) Update(ego ptypes.EgoState, lead *ptypes.LeadTrack, vCruiseSetpoint float64) {
	m.curState.XEgo = 0
	m.newLead = false

	var aLead float64
	if lead != nil && lead.Status {
		xLead := math.Max(0, lead.DRel-1)
		vLead := math.Max(0, lead.VLead)
		aLead = lead.ALeadK
		if vLead < 0.1 || -aLead/2 > vLead {
			vLead = 0
			aLead = 0
		}
		m.aLeadTau = math.Max(lead.ALeadTau, (aLead*aLead*math.Pi)/(2*(vLead+0.01)*(vLead+0.01)))

		if !m.prevLeadStatus || math.Abs(xLead-m.prevLeadX) > 2.5 {
			m.Solver.InitWithSimulation(m.VMPC, xLead, vLead, aLead, m.aLeadTau)
			m.newLead = true
		}

		m.prevLeadStatus = true
		m.prevLeadX = xLead
		m.curState.XLead = xLead
		m.curState.VLead = vLead
	} else {
		m.prevLeadStatus = false
		m.curState.XLead = 50
		m.curState.VLead = ego.VEgo + 10
		aLead = 0
		m.aLeadTau = DefaultLeadTau
	}

	tr := m.selectTR(ego)

	solveStart := m.now()
	nIts := m.Solver.RunMPC(&m.curState, &m.solution, m.aLeadTau, aLead, tr)
	if nIts < 0 {
		nIts = 0
	}
	m.LastIterations = nIts
	m.LastSolveDuration = m.now().Sub(solveStart)
	telemetry.Tracef("longmpc[%d] solved: iters=%d duration=%s cost=%.3f tr=%.2f", m.ID, nIts, m.LastSolveDuration, m.solution.Cost, tr)

	m.VMPC = m.solution.VEgo[1]
	m.AMPC = m.solution.AEgo[1]
	m.VMPCFuture = m.solution.VEgo[10]

	m.recoverIfDiverged(ego)
}

// selectTR chooses the follow time for this tick's solve and, for the
// close/far fixed profiles, re-initializes the solver's distance cost when
// the profile has just changed; the dynamic profile re-initializes instead
// when the cost weight it implies has drifted meaningfully.
func (m *MPC) selectTR(ego ptypes.EgoState) float64 {
	if ego.VEgo < 2 {
		return 1.8
	}

	changed := ego.DistanceLines != m.lastDistanceLines
	defer func() { m.lastDistanceLines = ego.DistanceLines }()

	switch ego.DistanceLines {
	case 1:
		if changed {
			m.Solver.Init(DefaultCosts.TTC, 1.0, DefaultCosts.Accel, DefaultCosts.Jerk)
		}
		return 0.9
	case 2:
		tr := timegap.Generate(ego.VEgo, m.relVel)
		cost := timegap.Cost(tr)
		if math.Abs(cost-m.lastCost) > m.distanceLinesCostEpsilon {
			m.Solver.Init(DefaultCosts.TTC, cost, DefaultCosts.Accel, DefaultCosts.Jerk)
			m.lastCost = cost
		}
		return tr
	case 3:
		if changed {
			m.Solver.Init(DefaultCosts.TTC, 0.05, DefaultCosts.Accel, DefaultCosts.Jerk)
		}
		return 2.7
	default:
		return 1.8
	}
}

// recoverIfDiverged resets the solver to a clean state if the last
// trajectory went numerically unstable (NaN), predicts a rear-end crash
// with the lead, or predicts the ego vehicle rolling backwards.
func (m *MPC) recoverIfDiverged(ego ptypes.EgoState) {
	minDLS := math.Inf(1)
	minVEgo := math.Inf(1)
	nans := false
	for i := 0; i < HorizonNodes; i++ {
		if dls := m.solution.XLead[i] - m.solution.XEgo[i]; dls < minDLS {
			minDLS = dls
		}
		if v := m.solution.VEgo[i]; v < minVEgo {
			minVEgo = v
		}
		if math.IsNaN(m.solution.VEgo[i]) || math.IsNaN(m.solution.XEgo[i]) {
			nans = true
		}
	}
	crashing := minDLS < -50
	backwards := minVEgo < -0.01

	if nans || (m.prevLeadStatus && (backwards || crashing)) {
		now := m.now()
		if now.Sub(m.lastResetLog) >= resetLogInterval {
			m.lastResetLog = now
			telemetry.Opsf("longmpc[%d] reset: backwards=%v crashing=%v nan=%v", m.ID, backwards, crashing, nans)
		}
		m.Solver.Init(DefaultCosts.TTC, DefaultCosts.Distance, DefaultCosts.Accel, DefaultCosts.Jerk)
		m.curState = State{VEgo: ego.VEgo, AEgo: 0}
		m.VMPC = ego.VEgo
		m.AMPC = ego.AEgo
		m.VMPCFuture = ego.VEgo
		m.prevLeadStatus = false
	}
}
