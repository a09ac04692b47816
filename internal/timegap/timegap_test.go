package timegap

import "testing"

func TestGenerateWithinBounds(t *testing.T) {
	cases := []struct{ vEgo, vRel float64 }{
		{0, 0},
		{30, -8},
		{15, 2},
		{-100, -100}, // out of range, must clamp
		{200, 200},
	}
	for _, c := range cases {
		tr := Generate(c.vEgo, c.vRel)
		if tr < trMin || tr > trMax {
			t.Errorf("Generate(%v, %v) = %v, want in [%v, %v]", c.vEgo, c.vRel, tr, trMin, trMax)
		}
	}
}

func TestGenerateMonotonicInClosingRate(t *testing.T) {
	// Closing faster on the lead (more negative v_rel) should never demand
	// a shorter follow time than closing slower, at fixed v_ego.
	slow := Generate(20, -1)
	fast := Generate(20, -5)
	if fast < slow {
		t.Errorf("faster closing gave smaller TR: fast=%v slow=%v", fast, slow)
	}
}

func TestCostMonotonicNonIncreasing(t *testing.T) {
	near := Cost(0.9)
	mid := Cost(1.8)
	far := Cost(2.7)
	if !(near >= mid && mid >= far) {
		t.Errorf("cost not non-increasing: near=%v mid=%v far=%v", near, mid, far)
	}
}

func TestCostClampsOutsideTable(t *testing.T) {
	if got := Cost(0); got != 1.0 {
		t.Errorf("Cost(0) = %v, want 1.0", got)
	}
	if got := Cost(10); got != 0.05 {
		t.Errorf("Cost(10) = %v, want 0.05", got)
	}
}
