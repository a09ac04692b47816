// Package planner implements the tick-driven longitudinal planning
// orchestrator: it drains the conflated input channels, maintains
// freshness watchdogs, drives the cruise smoother and both MPC wrappers,
// arbitrates between their solutions, runs the FCW detector, and emits one
// plan message per tick.
package planner

import (
	"math"
	"time"

	"github.com/doublecapcrimpin/openpilot/internal/accel"
	"github.com/doublecapcrimpin/openpilot/internal/arbiter"
	"github.com/doublecapcrimpin/openpilot/internal/config"
	"github.com/doublecapcrimpin/openpilot/internal/fcw"
	"github.com/doublecapcrimpin/openpilot/internal/longmpc"
	"github.com/doublecapcrimpin/openpilot/internal/ptypes"
	"github.com/doublecapcrimpin/openpilot/internal/smoother"
	"github.com/doublecapcrimpin/openpilot/internal/telemetry"
)

// freshnessTimeout is the watchdog window past which a stale model or
// radar stream is flagged as dead.
const freshnessTimeout = 500 * time.Millisecond

// LongCtrlState mirrors the downstream longitudinal controller's state
// machine; the planner only needs to know whether it is enabled and, if
// not, whether it is mid-start.
type LongCtrlState int

const (
	LongCtrlOff LongCtrlState = iota
	LongCtrlPID
	LongCtrlStopping
	LongCtrlStarting
)

// Config wires the orchestrator to its external collaborators: the
// driver-set cruise target, the downstream controller's enablement state,
// the distraction cue, and the static vehicle/tuning parameters. All of
// these stay pure accessors. Tick is otherwise a function of (now, ego,
// polled messages), except that the FCW detector's 5 s re-fire limit and
// the extrapolation anchor set by New read the wall clock.
type Config struct {
	Vehicle        ptypes.VehicleParams
	Params         config.ParamStore
	Tuning         *config.TuningConfig
	CruiseSetpoint func() float64
	LongCtrlState  func() LongCtrlState
	ForceSlowDecel func() bool
	FCWEnabled     bool
	SessionID      string
}

// Planner is the tick orchestrator. All fields are mutated only from Tick;
// there is no internal concurrency.
type Planner struct {
	cfg         Config
	source      Source
	mpc1, mpc2  *longmpc.MPC
	fcwDetector *fcw.Detector
	store       *telemetry.Store
	sessionID   string

	vAccStart, aAccStart float64
	accStartTime         time.Time
	vAcc, aAcc           float64
	vAccSol, aAccSol     float64
	vAccFuture           float64
	vCruise, aCruise     float64
	vCurvature           float64
	vSpeedLimit          float64
	decelForTurn         bool
	mapValid             bool
	gpsPlannerActive     bool

	longitudinalPlanSource string

	lastModelT, lastL20T            time.Time
	lastMDMonoTime, lastL20MonoTime int64
	modelDead, radarDead            bool
	fcw                             bool

	pathPlan     PathPlan
	gpsPlan      GPSPlanMsg
	lead1, lead2 ptypes.LeadTrack
	radarStatus  ptypes.RadarStatus
	latHint      ptypes.LateralHint
	mapSnapshot  ptypes.MapSnapshot
}

// New builds a Planner around two independent MPC solver instances (two
// longmpc.SimSolver doubles in the tests and in cmd/planner) and an input
// Source. store may be nil to disable persistence.
func New(cfg Config, mpc1Solver, mpc2Solver longmpc.Solver, src Source, store *telemetry.Store) *Planner {
	now := time.Now()
	p := &Planner{
		cfg:                    cfg,
		source:                 src,
		mpc1:                   longmpc.New(1, mpc1Solver, cfg.Vehicle, cfg.Tuning.GetDistanceLinesCostEpsilon()),
		mpc2:                   longmpc.New(2, mpc2Solver, cfg.Vehicle, cfg.Tuning.GetDistanceLinesCostEpsilon()),
		fcwDetector:            fcw.New(),
		store:                  store,
		sessionID:              cfg.SessionID,
		accStartTime:           now,
		longitudinalPlanSource: "cruise",
	}
	p.vCurvature = cfg.Tuning.GetNoCurvatureSpeed()
	p.vSpeedLimit = cfg.Tuning.GetNoCurvatureSpeed()
	return p
}

// Tick advances the planner by one cycle: it polls every input channel,
// dispatches each message in ascending ChannelID order (model before
// map/lat-control/GPS-plan before live20, so lane geometry is current
// before the MPCs run), and always emits a plan at the end regardless of
// what arrived.
func (p *Planner) Tick(now time.Time, ego ptypes.EgoState) ptypes.Plan {
	for _, msg := range p.source.Poll() {
		switch msg.Channel {
		case ChModel:
			p.onModel(msg.Payload.(ModelMsg), now, ego.VEgo)
		case ChMapData:
			p.mapSnapshot = msg.Payload.(ptypes.MapSnapshot)
		case ChLatControl:
			p.latHint = msg.Payload.(ptypes.LateralHint)
		case ChGPSPlan:
			p.onGPSPlan(msg.Payload.(GPSPlanMsg))
		case ChLive20:
			p.onLive20(msg.Payload.(Live20Msg), now, ego)
		}
	}
	return p.emitPlan(now, ego)
}

func (p *Planner) onModel(model ModelMsg, now time.Time, vEgo float64) {
	p.lastModelT = now
	p.lastMDMonoTime = now.UnixNano()
	p.pathPlan = updatePathPlan(vEgo, model, p.latHint)
	if p.gpsPlannerActive {
		p.pathPlan = applyGPSOverride(p.pathPlan, p.gpsPlan.Poly)
	}
}

func (p *Planner) onGPSPlan(msg GPSPlanMsg) {
	p.gpsPlan = msg
	p.gpsPlannerActive = msg.Valid
	if msg.Valid {
		p.pathPlan = applyGPSOverride(p.pathPlan, msg.Poly)
	}
}

// onLive20 is the bulk of a tick's work: it anchors the extrapolation
// base, updates speed-limit/curvature bounds, derives accel/jerk limits
// and runs the cruise smoother when enabled (or resets state when not),
// seeds and updates both MPCs, arbitrates, and runs the FCW detector.
func (p *Planner) onLive20(msg Live20Msg, now time.Time, ego ptypes.EgoState) {
	p.lastL20T = now
	p.lastL20MonoTime = now.UnixNano()
	p.radarStatus = msg.Radar

	p.vAccStart = p.vAccSol
	p.aAccStart = p.aAccSol
	p.accStartTime = now

	p.lead1 = msg.Lead1
	p.lead2 = msg.Lead2

	relVel := 0.0
	if msg.Lead1.Status {
		relVel = msg.Lead1.VRel
	}
	p.mpc1.SetRelativeVelocity(relVel)
	p.mpc2.SetRelativeVelocity(relVel)

	state := p.cfg.LongCtrlState()
	enabled := state == LongCtrlPID || state == LongCtrlStopping
	following := p.lead1.Status && p.lead1.DRel < 45 && p.lead1.VLeadK > ego.VEgo && p.lead1.ALeadK > 0

	noCurvatureSpeed := p.cfg.Tuning.GetNoCurvatureSpeed()
	if p.mapSnapshot.Valid && p.mapSnapshot.SpeedLimitValid && p.cfg.Params.LimitSetSpeedEnabled() {
		p.vSpeedLimit = p.mapSnapshot.SpeedLimit + p.cfg.Params.SpeedLimitOffset()
	} else {
		p.vSpeedLimit = noCurvatureSpeed
	}
	if p.mapSnapshot.Valid && p.mapSnapshot.CurvatureValid {
		p.vCurvature = accel.CurvatureSpeed(p.mapSnapshot.Curvature, p.cfg.Tuning.GetAYMax(), noCurvatureSpeed)
	} else {
		p.vCurvature = noCurvatureSpeed
	}
	p.mapValid = p.mapSnapshot.Valid

	cruiseSetpoint := p.cfg.CruiseSetpoint()
	p.decelForTurn = p.vCurvature < min3(cruiseSetpoint, p.vSpeedLimit, ego.VEgo+1)
	effectiveSetpoint := min3(cruiseSetpoint, p.vCurvature, p.vSpeedLimit)

	if enabled {
		aMin, aMax := accel.CruiseLimits(ego.VEgo, following)

		angleLater := 0.0
		if p.latHint.Fresh && ego.VEgo > 11 {
			angleLater = p.latHint.AngleLaterDeg * p.cfg.Vehicle.SteerRatio
		}
		aMin, aMax = accel.LimitForTurns(ego.VEgo, aMin, aMax, ego.SteeringAngleDeg, angleLater, p.cfg.Vehicle.SteerRatio, p.cfg.Vehicle.Wheelbase)

		jMin, jMax := accel.JerkLimits(aMin, aMax, p.cfg.Tuning.GetJerkFloor())

		if p.cfg.ForceSlowDecel() {
			forceSlowDecel := p.cfg.Tuning.GetForceSlowDecel()
			if aMax > forceSlowDecel {
				aMax = forceSlowDecel
			}
			if aMin > aMax {
				aMin = aMax
			}
		}

		if p.decelForTurn {
			distToTurn := math.Max(1, p.mapSnapshot.DistToTurn)
			requiredDecel := math.Min(0, (p.vCurvature-p.vCruise)/math.Max(1, distToTurn/math.Max(p.vCruise, 1)))
			aMin = math.Max(aMin, requiredDecel)
		}

		p.vCruise, p.aCruise = smoother.Step(p.vAccStart, p.aAccStart, effectiveSetpoint, aMin, aMax, jMin, jMax, longmpc.DtMPC)
		if p.vCruise < 0 {
			p.vCruise = 0
		}
	} else {
		starting := state == LongCtrlStarting
		resetSpeed := p.cfg.Tuning.GetMinCanSpeed()
		resetAccel := p.cfg.Vehicle.StartAccel
		if !starting {
			resetSpeed = ego.VEgo
			resetAccel = math.Min(ego.AEgo, 0)
		}
		p.vAcc, p.aAcc = resetSpeed, resetAccel
		p.vAccStart, p.aAccStart = resetSpeed, resetAccel
		p.vCruise, p.aCruise = resetSpeed, resetAccel
		p.vAccSol, p.aAccSol = resetSpeed, resetAccel
	}

	p.mpc1.SetCurState(p.vAccStart, p.aAccStart)
	p.mpc2.SetCurState(p.vAccStart, p.aAccStart)
	p.mpc1.Update(ego, &p.lead1, effectiveSetpoint)
	p.mpc2.Update(ego, &p.lead2, effectiveSetpoint)

	p.vAccFuture = arbiter.FutureSpeed(p.mpc1.VMPCFuture, p.mpc2.VMPCFuture, effectiveSetpoint)

	// The plan source tag is intentionally left unchanged while disabled;
	// only the numeric plan state resets in that branch.
	if enabled {
		result := arbiter.Select(p.vCruise, p.aCruise, mpcView(p.mpc1), mpcView(p.mpc2))
		p.vAcc, p.aAcc = result.V, result.A
		p.longitudinalPlanSource = result.Source
	}

	if p.mpc1.NewLead() {
		p.fcwDetector.Reset()
	}
	blinkersOn := ego.LeftBlinker || ego.RightBlinker
	fcwHit := p.fcwDetector.Update(p.mpc1.Solution(), ego, p.lead1, blinkersOn)
	p.fcw = fcwHit && !ego.BrakePressed
	if p.fcw && p.store != nil {
		if err := p.store.RecordFCW(now, p.sessionID, minOf(p.mpc1.Solution().AEgo[:])); err != nil {
			telemetry.Opsf("record fcw event failed: %v", err)
		}
	}
}

// emitPlan refreshes the freshness watchdogs, extrapolates the chosen
// solution to now, and assembles the plan message every tick emits,
// whether or not anything arrived on the input channels this cycle.
func (p *Planner) emitPlan(now time.Time, ego ptypes.EgoState) ptypes.Plan {
	p.modelDead = p.lastModelT.IsZero() || now.Sub(p.lastModelT) > freshnessTimeout
	p.radarDead = p.lastL20T.IsZero() || now.Sub(p.lastL20T) > freshnessTimeout

	p.vAccSol, p.aAccSol = arbiter.Extrapolate(p.vAccStart, p.aAccStart, p.vAcc, p.aAcc, now, p.accStartTime)

	events := p.buildEvents()
	state := p.cfg.LongCtrlState()
	fcwOut := p.fcw && (p.cfg.FCWEnabled || state != LongCtrlOff)

	plan := ptypes.Plan{
		MDMonoTime:  p.lastMDMonoTime,
		L20MonoTime: p.lastL20MonoTime,
		Events:      events,

		LateralValid: !p.modelDead,
		DPoly:        p.pathPlan.DPoly,
		LaneWidth:    p.pathPlan.LaneWidth,

		LongitudinalValid:      !p.radarDead,
		VCruise:                p.vCruise,
		ACruise:                p.aCruise,
		VTarget:                p.vAccSol,
		ATarget:                p.aAccSol,
		VTargetFuture:          p.vAccFuture,
		HasLead:                p.mpc1.PrevLeadStatus(),
		LongitudinalPlanSource: p.longitudinalPlanSource,

		HasLeftLane:        p.pathPlan.HasLeftLane,
		HasRightLane:       p.pathPlan.HasRightLane,
		HasLeftLaneDepart:  p.pathPlan.LPoly[3] < 1.15 && !ego.LeftBlinker,
		HasRightLaneDepart: p.pathPlan.RPoly[3] > -1.15 && !ego.RightBlinker,
		GPSPlannerActive:   p.gpsPlannerActive,

		VCurvature:   p.vCurvature,
		DecelForTurn: p.decelForTurn,
		MapValid:     p.mapValid,

		FCW: fcwOut,
	}

	if p.store != nil {
		if err := p.store.RecordTick(now, p.sessionID, plan, flattenEventTypes(events)); err != nil {
			telemetry.Opsf("record tick failed: %v", err)
		}
	}
	return plan
}

// buildEvents translates the freshness watchdogs and collaborator health
// flags into the no-entry/disable events the downstream controller acts on.
func (p *Planner) buildEvents() []ptypes.Event {
	var events []ptypes.Event
	if p.modelDead {
		events = append(events, ptypes.Event{Type: "modelCommIssue", SubEvents: []ptypes.EventType{ptypes.NoEntry, ptypes.ImmediateDisable}})
	}
	if p.radarDead || p.radarStatus.CommIssue {
		events = append(events, ptypes.Event{Type: "radarCommIssue", SubEvents: []ptypes.EventType{ptypes.NoEntry, ptypes.SoftDisable}})
	}
	if p.radarStatus.Fault {
		events = append(events, ptypes.Event{Type: "radarFault", SubEvents: []ptypes.EventType{ptypes.NoEntry, ptypes.SoftDisable}})
	}
	if p.latHint.Cost > 10000 || p.latHint.NaN {
		events = append(events, ptypes.Event{Type: "plannerError", SubEvents: []ptypes.EventType{ptypes.NoEntry, ptypes.ImmediateDisable}})
	}
	return events
}

func flattenEventTypes(events []ptypes.Event) []ptypes.EventType {
	var out []ptypes.EventType
	for _, e := range events {
		out = append(out, e.SubEvents...)
	}
	return out
}

func mpcView(m *longmpc.MPC) arbiter.MPCView {
	return arbiter.MPCView{
		PrevLeadStatus: m.PrevLeadStatus(),
		VMPC:           m.VMPC,
		AMPC:           m.AMPC,
		VMPCFuture:     m.VMPCFuture,
	}
}

func min3(a, b, c float64) float64 {
	return math.Min(a, math.Min(b, c))
}

func minOf(xs []float64) float64 {
	m := math.Inf(1)
	for _, x := range xs {
		if x < m {
			m = x
		}
	}
	return m
}
