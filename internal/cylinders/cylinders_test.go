package cylinders

import (
	"context"

	"github.com/spinwheel-io/spinwheel/internal/config"
	"github.com/spinwheel-io/spinwheel/internal/event"
	"github.com/spinwheel-io/spinwheel/internal/logging"
	"github.com/spinwheel-io/spinwheel/internal/opt"
	"github.com/spinwheel-io/spinwheel/internal/topology"
	"github.com/spinwheel-io/spinwheel/internal/window"
)

// testComm builds a Communicator with quiet ambient collaborators.
func testComm(g *window.Group, role string, cylinder int, opts config.Options) Communicator {
	if opts == nil {
		opts = config.Options{}
	}
	return Communicator{
		Rank:  topology.Rank{Role: role, Stratum: cylinder, Cylinder: 0},
		Group: g,
		Opts:  opts,
		Log:   logging.NopLogger(),
		Bus:   event.NewBus(),
	}
}

// fakeScenario is a minimal opt.Scenario with a linear objective: the
// negated sum of its values, so larger acreage is "better" under Minimize.
type fakeScenario struct {
	name       string
	prob       float64
	vals       []float64
	vt         opt.VarType
	surrogates map[int]bool
}

func (s *fakeScenario) Name() string               { return s.name }
func (s *fakeScenario) Probability() float64       { return s.prob }
func (s *fakeScenario) Nonants() []float64         { return append([]float64(nil), s.vals...) }
func (s *fakeScenario) FixNonant(i int, v float64) { s.vals[i] = v }
func (s *fakeScenario) VarType(i int) opt.VarType  { return s.vt }
func (s *fakeScenario) IsSurrogate(i int) bool     { return s.surrogates[i] }

func (s *fakeScenario) Objective() float64 {
	sum := 0.0
	for _, v := range s.vals {
		sum += v
	}
	return -sum
}

// fakeModel implements the full collaborator surface with scripted gaps.
type fakeModel struct {
	scens      []*fakeScenario
	numVars    int
	gaps       []float64
	stepIdx    int
	multistage bool
	bundles    int
	e1Override float64
	cache      []float64
}

// newFakeModel builds scens scenarios of numVars values each, initialized
// to distinct values so the scenario axis is distinguishable.
func newFakeModel(scens, numVars int, gaps ...float64) *fakeModel {
	m := &fakeModel{numVars: numVars, gaps: gaps}
	for s := 0; s < scens; s++ {
		sc := &fakeScenario{
			name:       "S" + string(rune('A'+s)),
			prob:       1.0 / float64(scens),
			vals:       make([]float64, numVars),
			surrogates: map[int]bool{},
		}
		for i := range sc.vals {
			sc.vals[i] = float64(s*numVars + i + 1)
		}
		m.scens = append(m.scens, sc)
	}
	return m
}

func (m *fakeModel) Step(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if m.stepIdx < len(m.gaps) {
		g := m.gaps[m.stepIdx]
		m.stepIdx++
		return g, nil
	}
	return 0, nil
}

func (m *fakeModel) Nonants() []float64 {
	out := make([]float64, 0, m.NonantLen())
	for _, sc := range m.scens {
		out = append(out, sc.vals...)
	}
	return out
}

func (m *fakeModel) NonantLen() int { return len(m.scens) * m.numVars }

func (m *fakeModel) LocalScenarios() []opt.Scenario {
	out := make([]opt.Scenario, len(m.scens))
	for i, sc := range m.scens {
		out[i] = sc
	}
	return out
}

func (m *fakeModel) NumVars() int        { return m.numVars }
func (m *fakeModel) Multistage() bool    { return m.multistage }
func (m *fakeModel) BundlesPerRank() int { return m.bundles }

func (m *fakeModel) PrepareEvaluation() error { return nil }

func (m *fakeModel) CalculateIncumbent(fixNonants bool) (float64, error) {
	obj := 0.0
	for _, sc := range m.scens {
		obj += sc.prob * sc.Objective()
	}
	return obj, nil
}

func (m *fakeModel) E1() float64 {
	if m.e1Override != 0 {
		return m.e1Override
	}
	sum := 0.0
	for _, sc := range m.scens {
		sum += sc.prob
	}
	return sum
}

func (m *fakeModel) SaveNonants() { m.cache = m.Nonants() }

func (m *fakeModel) PutNonantCache(vals []float64) {
	m.cache = append([]float64(nil), vals...)
}

func (m *fakeModel) RestoreNonants(updatePersistent bool) {
	if m.cache == nil {
		return
	}
	for si, sc := range m.scens {
		base := si * m.numVars
		copy(sc.vals, m.cache[base:base+m.numVars])
	}
}

// stepOnlyModel strips the evaluation and caching surfaces off a fakeModel.
type stepOnlyModel struct{ m *fakeModel }

func (s stepOnlyModel) Step(ctx context.Context) (float64, error) { return s.m.Step(ctx) }
func (s stepOnlyModel) Nonants() []float64                        { return s.m.Nonants() }
func (s stepOnlyModel) NonantLen() int                            { return s.m.NonantLen() }
func (s stepOnlyModel) LocalScenarios() []opt.Scenario            { return s.m.LocalScenarios() }
func (s stepOnlyModel) NumVars() int                              { return s.m.NumVars() }
func (s stepOnlyModel) Multistage() bool                          { return s.m.Multistage() }
func (s stepOnlyModel) BundlesPerRank() int                       { return s.m.BundlesPerRank() }
