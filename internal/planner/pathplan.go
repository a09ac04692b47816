package planner

import "github.com/doublecapcrimpin/openpilot/internal/ptypes"

// PathPlan is the path-planner collaborator's output: lane polynomials and
// their selection probabilities. Lateral actuation and path planning
// beyond this polynomial pass-through are out of scope; this type only
// carries what the longitudinal planner and the published plan need.
type PathPlan struct {
	DPoly, PPoly, CPoly [4]float64
	LProb, RProb, CProb float64
	LaneWidth           float64
	HasLeftLane         bool
	HasRightLane        bool
	LPoly, RPoly        [4]float64
}

// updatePathPlan derives the published lane geometry from the latest model
// message. The real path planner is a pure function of (v_ego, model,
// lat_hint); this implementation passes the vision polynomial straight
// through, since lateral-trajectory optimization is out of scope. vEgo and
// lat are accepted to keep the collaborator's call shape, for when that
// scope is filled in.
func updatePathPlan(vEgo float64, model ModelMsg, lat ptypes.LateralHint) PathPlan {
	return PathPlan{
		DPoly:        model.DPoly,
		PPoly:        model.DPoly,
		CPoly:        model.DPoly,
		LProb:        1,
		RProb:        1,
		CProb:        0,
		LaneWidth:    model.LaneWidth,
		HasLeftLane:  model.HasLeftLane,
		HasRightLane: model.HasRightLane,
		LPoly:        model.LPoly,
		RPoly:        model.RPoly,
	}
}

// applyGPSOverride aliases all three polynomial slots to the GPS-planner's
// polynomial and hands full selection weight to the center slot. It is
// unclear whether aliasing all three slots is intentional or a workaround;
// the behavior is kept as observed (see DESIGN.md).
func applyGPSOverride(pp PathPlan, gpsPoly [4]float64) PathPlan {
	pp.DPoly = gpsPoly
	pp.PPoly = gpsPoly
	pp.CPoly = gpsPoly
	pp.LProb = 0
	pp.RProb = 0
	pp.CProb = 1
	return pp
}
