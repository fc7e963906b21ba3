// Package opt declares the optimizer collaborator surface the coordination
// layer consumes. The construction of the optimization model, the primal
// algorithm's mathematics and solver invocation all live behind these
// interfaces; the hub and spokes only step, evaluate, cache and fix.
package opt

import "context"

// VarType classifies a decision variable for rounding purposes.
type VarType int

const (
	// Continuous variables are never rounded.
	Continuous VarType = iota
	// Binary variables round to 0/1.
	Binary
	// Integer variables round to the nearest integer.
	Integer
)

// Scenario is one realization's local view of the decision variables.
// Scenario identity is its name; probabilities are conditional on the
// rank's local partition.
type Scenario interface {
	// Name returns the scenario's identity.
	Name() string
	// Probability returns the scenario's probability within the local
	// partition.
	Probability() float64
	// Nonants returns the scenario's current nonanticipative variable
	// values. The returned slice is a copy.
	Nonants() []float64
	// FixNonant pins one nonant to a value for subsequent evaluation.
	FixNonant(i int, v float64)
	// VarType returns the type of nonant i.
	VarType(i int) VarType
	// IsSurrogate reports whether nonant i is a derived surrogate rather
	// than part of the canonical decision set.
	IsSurrogate(i int) bool
	// Objective returns the scenario's objective at its current nonant
	// values.
	Objective() float64
}

// Stepper advances the primal algorithm. The hub owns the only Stepper.
type Stepper interface {
	// Step advances the primal iteration once and returns the convergence
	// gap it observed. A Step error is fatal to the whole run.
	Step(ctx context.Context) (gap float64, err error)
	// Nonants returns the flattened per-scenario nonant matrix
	// (scenario-major) the hub publishes after each step.
	Nonants() []float64
	// NonantLen returns len(Nonants()), fixed for the whole run.
	NonantLen() int
}

// ScenarioSet exposes a rank's local scenario partition.
type ScenarioSet interface {
	// LocalScenarios returns the rank's scenarios in a stable order.
	LocalScenarios() []Scenario
	// NumVars returns the per-scenario nonant vector length.
	NumVars() int
	// Multistage reports whether the model has more than two stages.
	Multistage() bool
	// BundlesPerRank returns the scenario bundling factor; 0 means no
	// bundling.
	BundlesPerRank() int
}

// Evaluator is the feasible-objective evaluation entrypoint. Spokes that
// need it assert for it at setup; a missing Evaluator is a fatal
// configuration error, not a runtime one.
type Evaluator interface {
	// PrepareEvaluation performs one-time model preparation before the
	// first evaluation.
	PrepareEvaluation() error
	// CalculateIncumbent returns the probability-weighted objective over
	// the local scenarios at their current (fixed) nonant values. When
	// fixNonants is true the scenarios' current values are pinned first.
	CalculateIncumbent(fixNonants bool) (float64, error)
	// E1 returns the local scenario probability mass, which must be 1
	// within tolerance.
	E1() float64
}

// NonantCache is the save/restore pair for nonant values. It never touches
// persistent solver state.
type NonantCache interface {
	// SaveNonants snapshots every local scenario's nonant values as the
	// restore point.
	SaveNonants()
	// PutNonantCache replaces the snapshot with the given flattened
	// per-scenario values.
	PutNonantCache(vals []float64)
	// RestoreNonants copies the snapshot back into every local scenario.
	// updatePersistent is accepted for interface parity and ignored by
	// implementations without persistent solvers.
	RestoreNonants(updatePersistent bool)
}

// Optimizer is the full collaborator surface a rank's role wraps. Not every
// optimizer supports evaluation or caching; spokes check with a type
// assertion at setup.
type Optimizer interface {
	Stepper
	ScenarioSet
}

// Factory constructs the per-rank optimizer instance. Each rank gets its
// own: ranks share nothing except windows.
type Factory func(cylinder int) (Optimizer, error)
