package planner

import (
	"testing"

	"github.com/doublecapcrimpin/openpilot/internal/ptypes"
	"github.com/stretchr/testify/require"
)

func TestUpdatePathPlanPassesThroughModelPoly(t *testing.T) {
	model := ModelMsg{
		DPoly:        [4]float64{1, 2, 3, 4},
		LaneWidth:    3.6,
		HasLeftLane:  true,
		HasRightLane: false,
	}
	pp := updatePathPlan(20, model, ptypes.LateralHint{})

	require.Equal(t, model.DPoly, pp.DPoly)
	require.Equal(t, model.DPoly, pp.PPoly)
	require.Equal(t, model.DPoly, pp.CPoly)
	require.Equal(t, 3.6, pp.LaneWidth)
	require.True(t, pp.HasLeftLane)
}

func TestApplyGPSOverrideAliasesAllThreePolys(t *testing.T) {
	pp := PathPlan{DPoly: [4]float64{1, 1, 1, 1}}
	gpsPoly := [4]float64{9, 8, 7, 6}

	pp = applyGPSOverride(pp, gpsPoly)

	require.Equal(t, gpsPoly, pp.DPoly)
	require.Equal(t, gpsPoly, pp.PPoly)
	require.Equal(t, gpsPoly, pp.CPoly)
	require.Equal(t, 0.0, pp.LProb)
	require.Equal(t, 0.0, pp.RProb)
	require.Equal(t, 1.0, pp.CProb)
}
