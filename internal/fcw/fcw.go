// Package fcw implements the forward-collision-warning detector: an
// 8-counter debounce gate, a time-to-collision estimate, and a
// rate-limited firing decision driven by the lead MPC's own trajectory.
package fcw

import (
	"math"
	"time"

	"github.com/doublecapcrimpin/openpilot/internal/longmpc"
	"github.com/doublecapcrimpin/openpilot/internal/planmath"
	"github.com/doublecapcrimpin/openpilot/internal/ptypes"
)

const (
	maxTTC       = 5.0
	armThreshold = 10.0
	minFireGap   = 5 * time.Second
	aDeltaWindow = 15 // only the first 3s of the horizon counts toward a_delta
)

// Counters are the 8 debounce counters. Six count the consecutive ticks on
// which their condition held; LeadSeen grows by 0.33 every eligible tick and
// Blinkers by 1/6 every tick with no blinker on. FCW may fire only once all
// eight have reached armThreshold.
type Counters struct {
	VEgo, TTC, VLeadMax, VEgoLead, LeadSeen, YLead, VLatLead, Blinkers float64
}

func (c *Counters) allArmed() bool {
	return c.VEgo >= armThreshold &&
		c.TTC >= armThreshold &&
		c.VLeadMax >= armThreshold &&
		c.VEgoLead >= armThreshold &&
		c.LeadSeen >= armThreshold &&
		c.YLead >= armThreshold &&
		c.VLatLead >= armThreshold &&
		c.Blinkers >= armThreshold
}

// Detector holds the counters and firing-rate state across ticks.
type Detector struct {
	counters      Counters
	vLeadMax      float64
	lastFireAt    time.Time
	lastFiredMinA float64
	now           func() time.Time
}

// New returns a Detector with all counters at zero.
func New() *Detector {
	return &Detector{now: time.Now}
}

// Reset clears all counters and firing history; called whenever the
// leading MPC acquires a new lead.
func (d *Detector) Reset() {
	*d = Detector{now: d.now}
}

func bump(cond bool, ctr *float64) {
	if cond {
		*ctr++
	} else {
		*ctr = 0
	}
}

func calcTTC(vEgo, aEgo, xLead, vLead, aLead float64) float64 {
	vRel := vEgo - vLead
	aRel := math.Min(aEgo-aLead, vLead/2)
	delta := vRel*vRel + 2*xLead*aRel
	if delta < 0.1 {
		return maxTTC
	}
	sq := math.Sqrt(delta)
	if sq+vRel < 0.1 {
		return maxTTC
	}
	ttc := 2 * xLead / (sq + vRel)
	if ttc > maxTTC {
		return maxTTC
	}
	return ttc
}

// aThrBP/aThrV map the lead's speed onto the minimum commanded
// deceleration that's considered an FCW-worthy braking event.
var (
	aThrBP = []float64{0, 30}
	aThrV  = []float64{-3, -2}
)

// Update advances all counters from the current tick's measurements and
// returns whether FCW should fire. lead.FCWHint must be > 0.99 for the
// track to be FCW-eligible at all.
func (d *Detector) Update(sol *longmpc.Solution, ego ptypes.EgoState, lead ptypes.LeadTrack, blinkersOn bool) bool {
	if lead.FCWHint <= 0.99 {
		return false
	}

	xLead := lead.DRel
	vLead := lead.VLead
	aLead := lead.ALeadK

	if vLead > d.vLeadMax {
		d.vLeadMax = vLead
	}

	ttc := calcTTC(ego.VEgo, ego.AEgo, xLead, vLead, aLead)

	bump(ego.VEgo > 5, &d.counters.VEgo)
	bump(ttc < 2.5, &d.counters.TTC)
	bump(d.vLeadMax > 2.5, &d.counters.VLeadMax)
	bump(ego.VEgo > vLead, &d.counters.VEgoLead)
	bump(math.Abs(lead.YRel) < 1, &d.counters.YLead)
	bump(math.Abs(lead.VLat) < 0.4, &d.counters.VLatLead)

	d.counters.LeadSeen += 0.33

	if blinkersOn {
		d.counters.Blinkers = 0
	} else {
		d.counters.Blinkers += 10.0 / 60.0
	}

	lastMinA := math.Inf(1)
	for _, a := range sol.AEgo {
		if a < lastMinA {
			lastMinA = a
		}
	}
	aDelta := math.Inf(1)
	for i := 0; i < aDeltaWindow && i < len(sol.AEgo); i++ {
		if sol.AEgo[i] < aDelta {
			aDelta = sol.AEgo[i]
		}
	}
	aDelta -= math.Min(0, ego.AEgo)

	aThr := planmath.Interp(vLead, aThrBP, aThrV)

	now := d.now()
	if (lastMinA < -3 || aDelta < aThr) && d.counters.allArmed() && now.Sub(d.lastFireAt) >= minFireGap {
		d.lastFireAt = now
		d.lastFiredMinA = lastMinA
		return true
	}
	return false
}
