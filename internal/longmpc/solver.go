// Package longmpc wraps an external longitudinal MPC solver (an opaque
// native/FFI collaborator in production) behind a small Go interface, and
// owns the re-init and divergence-recovery bookkeeping layered on top of
// the raw solver calls.
package longmpc

// HorizonNodes is the number of samples in a solver trajectory, including
// the current state at index 0.
const HorizonNodes = 21

// DtMPC is the spacing between horizon nodes, in seconds.
const DtMPC = 0.2

// State is the solver's current-state input.
type State struct {
	XEgo, VEgo, AEgo float64
	XLead, VLead     float64
}

// Solution is the solver's trajectory output over the horizon.
type Solution struct {
	XEgo, VEgo, AEgo [HorizonNodes]float64
	XLead, VLead     [HorizonNodes]float64
	Cost             float64
}

// Solver is the contract an external MPC collaborator must satisfy.
// Costs and inputs mirror the native solver's C ABI.
type Solver interface {
	// Init (re)configures the solver's cost weights, discarding any
	// in-progress trajectory.
	Init(ttcCost, distanceCost, accelCost, jerkCost float64)

	// InitWithSimulation seeds the solver's internal trajectory from a
	// forward simulation of the given state, used when a lead vehicle is
	// newly acquired or has jumped discontinuously.
	InitWithSimulation(vEgo, xLead, vLead, aLead, aLeadTau float64)

	// RunMPC solves one step given state and (aLeadTau, aLead, tr),
	// writing the new trajectory into sol and returning the solver's
	// iteration count.
	RunMPC(state *State, sol *Solution, aLeadTau, aLead, tr float64) int
}

// Costs bundles the four solver cost weights.
type Costs struct {
	TTC, Distance, Accel, Jerk float64
}

// DefaultCosts are the weights used whenever the wrapper performs a full
// re-init that isn't driven by a specific distance_lines profile.
var DefaultCosts = Costs{TTC: 5.0, Distance: 0.1, Accel: 10.0, Jerk: 20.0}

// DefaultLeadTau is the lead-deceleration time constant assumed when no
// lead is tracked.
const DefaultLeadTau = 1.5
