package planner

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/doublecapcrimpin/openpilot/internal/config"
	"github.com/doublecapcrimpin/openpilot/internal/longmpc"
	"github.com/doublecapcrimpin/openpilot/internal/ptypes"
	"github.com/stretchr/testify/require"
)

type fakeParams struct {
	limitSetSpeed bool
	offset        float64
}

func (f fakeParams) LimitSetSpeedEnabled() bool { return f.limitSetSpeed }
func (f fakeParams) SpeedLimitOffset() float64  { return f.offset }

// stepSource replays a fixed sequence of per-tick message batches, letting
// tests drive the orchestrator deterministically instead of through real
// channels.
type stepSource struct {
	steps [][]RawMessage
	i     int
}

func (s *stepSource) Poll() []RawMessage {
	if s.i >= len(s.steps) {
		return nil
	}
	m := s.steps[s.i]
	s.i++
	return m
}

func newTestConfig(sessionID string) Config {
	return Config{
		Vehicle:        ptypes.VehicleParams{SteerRatio: 15, Wheelbase: 2.7, StartAccel: 0},
		Params:         fakeParams{},
		Tuning:         config.EmptyTuningConfig(),
		CruiseSetpoint: func() float64 { return 20 },
		LongCtrlState:  func() LongCtrlState { return LongCtrlPID },
		ForceSlowDecel: func() bool { return false },
		FCWEnabled:     true,
		SessionID:      sessionID,
	}
}

func liveTickSteps(n int, msg Live20Msg) *stepSource {
	src := &stepSource{}
	for i := 0; i < n; i++ {
		src.steps = append(src.steps, []RawMessage{{Channel: ChLive20, Payload: msg}})
	}
	return src
}

func TestNoLeadConvergesToCruiseSetpoint(t *testing.T) {
	cfg := newTestConfig("s1")
	cfg.CruiseSetpoint = func() float64 { return 30 }

	p := New(cfg, longmpc.NewSimSolver(), longmpc.NewSimSolver(), liveTickSteps(150, Live20Msg{}), nil)

	ego := ptypes.EgoState{VEgo: 0}
	now := time.Unix(1700000000, 0)
	var plan ptypes.Plan
	for i := 0; i < 150; i++ {
		plan = p.Tick(now, ego)
		now = now.Add(200 * time.Millisecond)
	}

	require.InDelta(t, 30, plan.VCruise, 2.0)
	require.Equal(t, "cruise", plan.LongitudinalPlanSource)
	require.False(t, plan.HasLead)
	require.False(t, plan.FCW)
}

func TestStationaryLeadSelectsMPC1(t *testing.T) {
	cfg := newTestConfig("s2")
	cfg.CruiseSetpoint = func() float64 { return 20 }

	lead := Live20Msg{Lead1: ptypes.LeadTrack{Status: true, DRel: 10, ALeadTau: 1.5}}
	p := New(cfg, longmpc.NewSimSolver(), longmpc.NewSimSolver(), liveTickSteps(40, lead), nil)

	ego := ptypes.EgoState{VEgo: 5, DistanceLines: 2}
	now := time.Unix(1700000000, 0)
	var plan ptypes.Plan
	for i := 0; i < 40; i++ {
		plan = p.Tick(now, ego)
		now = now.Add(200 * time.Millisecond)
	}

	require.True(t, plan.HasLead)
	require.Equal(t, "mpc1", plan.LongitudinalPlanSource)
	require.Less(t, plan.VTarget, 5.0)
}

func TestCurvatureLimitsCruise(t *testing.T) {
	cfg := newTestConfig("s4")
	cfg.CruiseSetpoint = func() float64 { return 40 }

	src := &stepSource{}
	for i := 0; i < 10; i++ {
		src.steps = append(src.steps, []RawMessage{
			{Channel: ChMapData, Payload: ptypes.MapSnapshot{Valid: true, CurvatureValid: true, Curvature: 0.01, DistToTurn: 100}},
			{Channel: ChLive20, Payload: Live20Msg{}},
		})
	}

	p := New(cfg, longmpc.NewSimSolver(), longmpc.NewSimSolver(), src, nil)
	ego := ptypes.EgoState{VEgo: 20}
	now := time.Unix(1700000000, 0)
	var plan ptypes.Plan
	for i := 0; i < 10; i++ {
		plan = p.Tick(now, ego)
		now = now.Add(200 * time.Millisecond)
	}

	require.InDelta(t, 13.6, plan.VCurvature, 0.2)
	require.True(t, plan.DecelForTurn)
	require.LessOrEqual(t, plan.VCruise, 13.6+1e-6)
}

func TestDistanceLinesSwitchReinitsMPC(t *testing.T) {
	cfg := newTestConfig("s5")
	cfg.CruiseSetpoint = func() float64 { return 20 }

	sim1 := longmpc.NewSimSolver()
	src := &stepSource{}
	for i := 0; i < 2; i++ {
		src.steps = append(src.steps, []RawMessage{{Channel: ChLive20, Payload: Live20Msg{}}})
	}

	p := New(cfg, sim1, longmpc.NewSimSolver(), src, nil)

	ego := ptypes.EgoState{VEgo: 10, DistanceLines: 1}
	now := time.Unix(1700000000, 0)
	_ = p.Tick(now, ego)
	initCallsAfterFirst := sim1.InitCalls

	ego.DistanceLines = 3
	plan := p.Tick(now.Add(200*time.Millisecond), ego)

	require.Greater(t, sim1.InitCalls, initCallsAfterFirst)
	require.False(t, math.IsNaN(plan.VTarget))
}

func TestSteadyStateHoldsCruiseSetpoint(t *testing.T) {
	cfg := newTestConfig("r1")
	cfg.CruiseSetpoint = func() float64 { return 25 }

	p := New(cfg, longmpc.NewSimSolver(), longmpc.NewSimSolver(), liveTickSteps(200, Live20Msg{}), nil)

	ego := ptypes.EgoState{VEgo: 25}
	now := time.Unix(1700000000, 0)
	var plan ptypes.Plan
	for i := 0; i < 200; i++ {
		plan = p.Tick(now, ego)
		now = now.Add(200 * time.Millisecond)
	}

	require.InDelta(t, 25, plan.VCruise, 3.0)
	require.Less(t, math.Abs(plan.ACruise), 0.5)
}

func TestDisablingResetsThenResumes(t *testing.T) {
	enabled := true
	cfg := newTestConfig("r2")
	cfg.CruiseSetpoint = func() float64 { return 20 }
	cfg.LongCtrlState = func() LongCtrlState {
		if enabled {
			return LongCtrlPID
		}
		return LongCtrlOff
	}

	src := &stepSource{}
	for i := 0; i < 3; i++ {
		src.steps = append(src.steps, []RawMessage{{Channel: ChLive20, Payload: Live20Msg{}}})
	}

	p := New(cfg, longmpc.NewSimSolver(), longmpc.NewSimSolver(), src, nil)
	now := time.Unix(1700000000, 0)
	ego := ptypes.EgoState{VEgo: 10, AEgo: -1}

	_ = p.Tick(now, ego)

	enabled = false
	plan := p.Tick(now.Add(200*time.Millisecond), ego)
	require.InDelta(t, ego.VEgo, plan.VCruise, 1e-6)
	require.InDelta(t, math.Min(ego.AEgo, 0), plan.ACruise, 1e-6)

	enabled = true
	plan2 := p.Tick(now.Add(400*time.Millisecond), ego)
	require.False(t, math.IsNaN(plan2.VCruise))
}

func TestGPSPlanOverridesPublishedPoly(t *testing.T) {
	cfg := newTestConfig("gps")
	src := &stepSource{steps: [][]RawMessage{
		{
			{Channel: ChModel, Payload: ModelMsg{DPoly: [4]float64{1, 2, 3, 4}}},
			{Channel: ChGPSPlan, Payload: GPSPlanMsg{Valid: true, Poly: [4]float64{9, 9, 9, 9}}},
			{Channel: ChLive20, Payload: Live20Msg{}},
		},
	}}

	p := New(cfg, longmpc.NewSimSolver(), longmpc.NewSimSolver(), src, nil)
	plan := p.Tick(time.Unix(1700000000, 0), ptypes.EgoState{})

	require.Equal(t, [4]float64{9, 9, 9, 9}, plan.DPoly)
	require.True(t, plan.GPSPlannerActive)
}

func TestModelAndRadarWatchdogsFireWhenStale(t *testing.T) {
	cfg := newTestConfig("watchdog")
	src := &stepSource{steps: [][]RawMessage{
		{{Channel: ChModel, Payload: ModelMsg{}}, {Channel: ChLive20, Payload: Live20Msg{}}},
		{},
	}}
	p := New(cfg, longmpc.NewSimSolver(), longmpc.NewSimSolver(), src, nil)
	now := time.Unix(1700000000, 0)
	_ = p.Tick(now, ptypes.EgoState{})
	plan := p.Tick(now.Add(1*time.Second), ptypes.EgoState{})

	require.False(t, plan.LateralValid)
	require.False(t, plan.LongitudinalValid)

	wantEvents := []ptypes.Event{
		{Type: "modelCommIssue", SubEvents: []ptypes.EventType{ptypes.NoEntry, ptypes.ImmediateDisable}},
		{Type: "radarCommIssue", SubEvents: []ptypes.EventType{ptypes.NoEntry, ptypes.SoftDisable}},
	}
	if diff := cmp.Diff(wantEvents, plan.Events); diff != "" {
		t.Errorf("stale-input events mismatch (-want +got):\n%s", diff)
	}
}
