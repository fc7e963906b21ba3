// Package farmer provides the bundled sample-average crop allocation model
// used by the CLI and the end-to-end tests. It is a stand-in for a real
// optimizer collaborator: deterministic, solver-free, and cheap, with the
// classic three-crop structure scaled by a crops multiplier.
package farmer

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/spinwheel-io/spinwheel/internal/opt"
)

// Base crop economics, repeated cropsMultiplier times.
var (
	cropNames  = []string{"wheat", "corn", "beets"}
	plantCost  = []float64{150, 230, 260} // per acre
	salePrice  = []float64{170, 150, 36}  // per unit yield
	baseYield  = []float64{2.5, 3.0, 20}  // units per acre, average scenario
	quadWeight = []float64{0.9, 1.1, 1.6} // diminishing-returns curvature
)

// Model is a deterministic sample-average farmer instance implementing the
// opt collaborator interfaces. Each rank constructs its own Model over its
// cylinder's scenario partition; models share nothing.
type Model struct {
	numVars    int
	useInteger bool
	scens      []*scenario
	cache      []float64
	iter       int
}

type scenario struct {
	m     *Model
	name  string
	prob  float64
	mult  float64 // yield multiplier for this realization
	vals  []float64
	ideal []float64
}

// Config parameterizes New.
type Config struct {
	// Scens is the total scenario count across all cylinders.
	Scens int
	// CropsMultiplier scales the crop set: 3x this many variables.
	CropsMultiplier int
	// UseInteger makes acreage integer-typed.
	UseInteger bool
	// Seed fixes the per-scenario yield randomization.
	Seed int64
	// Cylinder / Cylinders select this rank's round-robin partition.
	Cylinder  int
	Cylinders int
}

// New builds the model over the cylinder's scenario partition. Local
// probabilities are conditional on the partition and sum to 1.
func New(cfg Config) (*Model, error) {
	if cfg.Scens < 1 {
		return nil, fmt.Errorf("farmer: scenario count %d < 1", cfg.Scens)
	}
	if cfg.Cylinders < 1 || cfg.Cylinder < 0 || cfg.Cylinder >= cfg.Cylinders {
		return nil, fmt.Errorf("farmer: cylinder %d of %d out of range", cfg.Cylinder, cfg.Cylinders)
	}
	mult := cfg.CropsMultiplier
	if mult < 1 {
		mult = 1
	}

	m := &Model{
		numVars:    3 * mult,
		useInteger: cfg.UseInteger,
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	var local []*scenario
	for s := 0; s < cfg.Scens; s++ {
		// Yield multipliers span bad to good harvests, with seeded jitter.
		// Drawn for every scenario so the partition does not change them.
		jitter := rng.Float64() * 0.1
		ymult := 0.75 + 0.5*float64(s)/float64(maxInt(cfg.Scens-1, 1)) + jitter

		if s%cfg.Cylinders != cfg.Cylinder {
			continue
		}
		local = append(local, &scenario{
			m:     m,
			name:  fmt.Sprintf("Scenario%d", s+1),
			mult:  ymult,
			vals:  make([]float64, m.numVars),
			ideal: make([]float64, m.numVars),
		})
	}
	if len(local) == 0 {
		return nil, fmt.Errorf("farmer: cylinder %d received no scenarios", cfg.Cylinder)
	}
	for _, sc := range local {
		sc.prob = 1.0 / float64(len(local))
	}
	m.scens = local

	// Each scenario's unconstrained optimum; the consensus steps contract
	// every scenario toward their mean.
	for _, sc := range local {
		for i := 0; i < m.numVars; i++ {
			margin := sc.mult*baseYield[i%3]*salePrice[i%3] - plantCost[i%3]
			sc.ideal[i] = math.Max(0, margin/quadWeight[i%3])
		}
		copy(sc.vals, sc.ideal)
	}
	return m, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// -----------------------------------------------------------------------------
// Stepper
// -----------------------------------------------------------------------------

// Step pulls every scenario's acreage toward the cross-scenario mean with a
// growing blend factor and reports the remaining relative spread as the
// gap. The scheme contracts geometrically, which is all the coordination
// layer needs from a primal algorithm.
func (m *Model) Step(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.iter++

	mean := make([]float64, m.numVars)
	for _, sc := range m.scens {
		for i, v := range sc.vals {
			mean[i] += v * sc.prob
		}
	}

	gap := 0.0
	scale := 1.0
	for i, mv := range mean {
		if a := math.Abs(mv); a > scale {
			scale = a
		}
		for _, sc := range m.scens {
			if d := math.Abs(sc.vals[i] - mv); d > gap {
				gap = d
			}
		}
	}
	gap /= scale

	blend := float64(m.iter) / float64(m.iter+1)
	for _, sc := range m.scens {
		for i := range sc.vals {
			sc.vals[i] += blend * (mean[i] - sc.vals[i])
		}
	}
	return gap, nil
}

// Nonants returns the flattened scenario-major nonant matrix.
func (m *Model) Nonants() []float64 {
	out := make([]float64, 0, m.NonantLen())
	for _, sc := range m.scens {
		out = append(out, sc.vals...)
	}
	return out
}

// NonantLen returns local scenario count times the per-scenario width.
func (m *Model) NonantLen() int { return len(m.scens) * m.numVars }

// -----------------------------------------------------------------------------
// ScenarioSet
// -----------------------------------------------------------------------------

// LocalScenarios returns the cylinder's scenarios in partition order.
func (m *Model) LocalScenarios() []opt.Scenario {
	out := make([]opt.Scenario, len(m.scens))
	for i, sc := range m.scens {
		out[i] = sc
	}
	return out
}

// NumVars returns the per-scenario nonant width.
func (m *Model) NumVars() int { return m.numVars }

// Multistage is always false: farmer is two-stage.
func (m *Model) Multistage() bool { return false }

// BundlesPerRank is always 0: no bundling.
func (m *Model) BundlesPerRank() int { return 0 }

// -----------------------------------------------------------------------------
// Evaluator
// -----------------------------------------------------------------------------

// PrepareEvaluation is a no-op for the closed-form model.
func (m *Model) PrepareEvaluation() error { return nil }

// CalculateIncumbent returns the probability-weighted objective over the
// local scenarios at their current nonant values.
func (m *Model) CalculateIncumbent(fixNonants bool) (float64, error) {
	// Values are already in place; fixNonants would pin them, which the
	// closed-form objective does implicitly.
	obj := 0.0
	for _, sc := range m.scens {
		obj += sc.prob * sc.Objective()
	}
	return obj, nil
}

// E1 returns the local probability mass.
func (m *Model) E1() float64 {
	sum := 0.0
	for _, sc := range m.scens {
		sum += sc.prob
	}
	return sum
}

// -----------------------------------------------------------------------------
// NonantCache
// -----------------------------------------------------------------------------

// SaveNonants snapshots the current flattened nonant matrix.
func (m *Model) SaveNonants() {
	m.cache = m.Nonants()
}

// PutNonantCache replaces the snapshot.
func (m *Model) PutNonantCache(vals []float64) {
	m.cache = append([]float64(nil), vals...)
}

// RestoreNonants copies the snapshot back into the local scenarios.
func (m *Model) RestoreNonants(updatePersistent bool) {
	if m.cache == nil {
		return
	}
	for si, sc := range m.scens {
		base := si * m.numVars
		if base+m.numVars > len(m.cache) {
			break
		}
		copy(sc.vals, m.cache[base:base+m.numVars])
	}
}

// -----------------------------------------------------------------------------
// Scenario
// -----------------------------------------------------------------------------

func (s *scenario) Name() string         { return s.name }
func (s *scenario) Probability() float64 { return s.prob }

func (s *scenario) Nonants() []float64 {
	return append([]float64(nil), s.vals...)
}

func (s *scenario) FixNonant(i int, v float64) { s.vals[i] = v }

func (s *scenario) VarType(i int) opt.VarType {
	if s.m.useInteger {
		return opt.Integer
	}
	return opt.Continuous
}

// IsSurrogate is always false: every farmer variable is a canonical
// decision.
func (s *scenario) IsSurrogate(i int) bool { return false }

// Objective is planting cost minus scenario revenue plus a quadratic
// diminishing-returns term, summed over crops.
func (s *scenario) Objective() float64 {
	obj := 0.0
	for i, x := range s.vals {
		revenue := s.mult * baseYield[i%3] * salePrice[i%3] * x
		obj += plantCost[i%3]*x - revenue + 0.5*quadWeight[i%3]*x*x
	}
	return obj
}
