package longmpc

import (
	"math"
	"testing"
	"time"

	"github.com/doublecapcrimpin/openpilot/internal/ptypes"
)

func newTestMPC() (*MPC, *SimSolver) {
	sim := NewSimSolver()
	params := ptypes.VehicleParams{SteerRatio: 15, Wheelbase: 2.7, StartAccel: 1.5}
	m := New(1, sim, params, DefaultDistanceLinesCostEpsilon)
	return m, sim
}

func TestNewCallsInitOnce(t *testing.T) {
	_, sim := newTestMPC()
	if sim.InitCalls != 1 {
		t.Fatalf("expected 1 Init call from New, got %d", sim.InitCalls)
	}
}

func TestUpdateNoLeadUsesFakeDistantLead(t *testing.T) {
	m, _ := newTestMPC()
	m.SetCurState(20, 0)
	ego := ptypes.EgoState{VEgo: 20, DistanceLines: 2}

	m.Update(ego, nil, 25)

	if m.PrevLeadStatus() {
		t.Error("no lead given, PrevLeadStatus should be false")
	}
	if m.curState.XLead != 50 {
		t.Errorf("no-lead x_lead should default to 50, got %v", m.curState.XLead)
	}
}

func TestUpdateWithLeadTracksStatus(t *testing.T) {
	m, sim := newTestMPC()
	m.SetCurState(10, 0)
	ego := ptypes.EgoState{VEgo: 10, DistanceLines: 2}
	lead := ptypes.LeadTrack{Status: true, DRel: 20, VLead: 5, VLeadK: 5, ALeadK: 0, ALeadTau: 1.5}

	m.Update(ego, &lead, 25)

	if !m.PrevLeadStatus() {
		t.Error("lead tracked, PrevLeadStatus should be true")
	}
	if !m.NewLead() {
		t.Error("first acquisition should report NewLead")
	}
	if sim.SimInitCalls != 1 {
		t.Errorf("expected one InitWithSimulation call, got %d", sim.SimInitCalls)
	}
	if m.LastIterations != HorizonNodes {
		t.Errorf("expected solver iteration count to be recorded, got %d", m.LastIterations)
	}
}

func TestStationaryLeadDecelerates(t *testing.T) {
	m, _ := newTestMPC()
	m.SetCurState(5, 0)
	ego := ptypes.EgoState{VEgo: 5, DistanceLines: 2}
	lead := ptypes.LeadTrack{Status: true, DRel: 10, VLead: 0, VLeadK: 0, ALeadK: 0, ALeadTau: 1.5}

	m.Update(ego, &lead, 25)

	if m.VMPC >= 5 {
		t.Errorf("VMPC should drop below 5 approaching a stationary lead at 10m, got %v", m.VMPC)
	}
	if m.AMPC >= 0 {
		t.Errorf("AMPC should be negative approaching a stationary lead, got %v", m.AMPC)
	}
}

func TestSelectTRBelowTwoAlwaysDefault(t *testing.T) {
	m, _ := newTestMPC()
	if got := m.selectTR(ptypes.EgoState{VEgo: 1, DistanceLines: 3}); got != 1.8 {
		t.Errorf("below 2 m/s should force TR=1.8 regardless of profile, got %v", got)
	}
}

func TestSelectTRReinitsOnProfileChange(t *testing.T) {
	m, sim := newTestMPC()
	initsBefore := sim.InitCalls
	m.selectTR(ptypes.EgoState{VEgo: 10, DistanceLines: 1})
	if sim.InitCalls != initsBefore+1 {
		t.Errorf("switching into distance_lines=1 should re-init once, got %d calls", sim.InitCalls-initsBefore)
	}
	initsBefore = sim.InitCalls
	m.selectTR(ptypes.EgoState{VEgo: 10, DistanceLines: 1})
	if sim.InitCalls != initsBefore {
		t.Errorf("staying in distance_lines=1 should not re-init, got %d extra calls", sim.InitCalls-initsBefore)
	}
	m.selectTR(ptypes.EgoState{VEgo: 10, DistanceLines: 3})
	if sim.InitCalls != initsBefore+1 {
		t.Errorf("switching 1->3 should re-init, got %d calls", sim.InitCalls-initsBefore)
	}
}

func TestRecoverIfDivergedOnNaN(t *testing.T) {
	m, sim := newTestMPC()
	m.now = func() time.Time { return time.Unix(0, 0) }
	m.prevLeadStatus = true
	m.solution.VEgo[5] = math.NaN()
	ego := ptypes.EgoState{VEgo: 12, AEgo: 0.5}

	initsBefore := sim.InitCalls
	m.recoverIfDiverged(ego)

	if sim.InitCalls != initsBefore+1 {
		t.Errorf("NaN trajectory should trigger a solver reset")
	}
	if m.PrevLeadStatus() {
		t.Error("reset should clear prevLeadStatus")
	}
	if m.VMPC != ego.VEgo {
		t.Errorf("reset should seed VMPC from ego speed, got %v want %v", m.VMPC, ego.VEgo)
	}
}

func TestRecoverIfDivergedRateLimited(t *testing.T) {
	m, sim := newTestMPC()
	now := time.Unix(1000, 0)
	m.now = func() time.Time { return now }
	m.prevLeadStatus = true
	m.solution.VEgo[0] = math.NaN()
	ego := ptypes.EgoState{VEgo: 12}

	m.recoverIfDiverged(ego)
	firstLog := m.lastResetLog

	m.prevLeadStatus = true
	m.solution.VEgo[0] = math.NaN()
	now = now.Add(1 * time.Second)
	m.recoverIfDiverged(ego)

	if m.lastResetLog != firstLog {
		t.Error("a second reset within 5s should not advance the rate-limited log timestamp")
	}
	_ = sim
}
