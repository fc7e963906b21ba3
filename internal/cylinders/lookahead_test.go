package cylinders

import (
	"testing"
	"time"

	"github.com/spinwheel-io/spinwheel/internal/config"
	"github.com/spinwheel-io/spinwheel/internal/errors"
	"github.com/spinwheel-io/spinwheel/internal/event"
	"github.com/spinwheel-io/spinwheel/internal/window"
)

func lookaheadConfig(g *window.Group, m *fakeModel, opts config.Options) LookaheadConfig {
	return LookaheadConfig{
		SpokeConfig: SpokeConfig{
			Communicator: testComm(g, "lookahead", 0, opts),
			NonantLen:    m.NonantLen(),
			PollInterval: 50 * time.Microsecond,
		},
		Optimizer: m,
	}
}

func lookaheadFixture(t *testing.T, m *fakeModel, opts config.Options) *LookaheadSpoke {
	t.Helper()
	g := window.NewGroup("star")
	if _, err := g.Allocate("hub", nonantWindowName("lookahead"), m.NonantLen()); err != nil {
		t.Fatalf("nonant allocate failed: %v", err)
	}
	if _, err := g.Allocate("hub", killWindowName, 1); err != nil {
		t.Fatalf("kill allocate failed: %v", err)
	}

	sp, err := NewLookahead(lookaheadConfig(g, m, opts))
	if err != nil {
		t.Fatalf("NewLookahead failed: %v", err)
	}
	if err := sp.AllocateWindows(); err != nil {
		t.Fatalf("AllocateWindows failed: %v", err)
	}
	if err := sp.WireReaders(); err != nil {
		t.Fatalf("WireReaders failed: %v", err)
	}
	return sp
}

func TestNewLookaheadValidation(t *testing.T) {
	g := window.NewGroup("star")

	if _, err := NewLookahead(lookaheadConfig(g, newFakeModel(2, 2), nil)); !errors.Is(err, errors.ErrMissingOption) {
		t.Errorf("missing scen_limit: got %v, want ErrMissingOption", err)
	}

	bundled := newFakeModel(2, 2)
	bundled.bundles = 3
	if _, err := NewLookahead(lookaheadConfig(g, bundled, config.Options{"scen_limit": 1})); !errors.Is(err, errors.ErrBundlingUnsupported) {
		t.Errorf("bundled: got %v, want ErrBundlingUnsupported", err)
	}

	multi := newFakeModel(2, 2)
	multi.multistage = true
	if _, err := NewLookahead(lookaheadConfig(g, multi, config.Options{"scen_limit": 1})); !errors.Is(err, errors.ErrMultistageUnsupported) {
		t.Errorf("multistage: got %v, want ErrMultistageUnsupported", err)
	}

	if _, err := NewLookahead(lookaheadConfig(g, newFakeModel(2, 2), config.Options{"scen_limit": 0})); err == nil {
		t.Error("scen_limit 0 should be rejected")
	}
}

func TestWarmUpRejectsBadProbabilityMass(t *testing.T) {
	m := newFakeModel(2, 2)
	m.e1Override = 0.8
	sp := lookaheadFixture(t, m, config.Options{"scen_limit": 1})

	if err := sp.warmUp(); !errors.Is(err, errors.ErrProbabilityMass) {
		t.Fatalf("warmUp with E1=0.8: got %v, want ErrProbabilityMass", err)
	}
}

func TestLookaheadPicksBestCandidateRow(t *testing.T) {
	// 3 scenarios x 2 vars. The objective is the negated weighted sum, so
	// the row with the largest sum wins under Minimize: row 1 ([9 9]).
	m := newFakeModel(3, 2)
	sp := lookaheadFixture(t, m, config.Options{"scen_limit": 3})

	var reports []event.SpokeReportEvent
	sp.Bus.Subscribe("spoke.report", func(e event.Event) {
		reports = append(reports, e.(event.SpokeReportEvent))
	})

	if err := sp.warmUp(); err != nil {
		t.Fatalf("warmUp failed: %v", err)
	}
	flat := []float64{
		1, 1, // SA
		9, 9, // SB
		4, 4, // SC
	}
	if err := sp.lookahead(flat); err != nil {
		t.Fatalf("lookahead failed: %v", err)
	}

	best, reported := sp.Best()
	if !reported {
		t.Fatal("no bound reported")
	}
	if want := -18.0; best != want {
		t.Errorf("best = %v, want %v", best, want)
	}
	if len(reports) != 1 {
		t.Fatalf("got %d report events, want 1", len(reports))
	}
	if reports[0].Source != "SB" {
		t.Errorf("report source = %q, want SB", reports[0].Source)
	}
}

func TestLookaheadHonorsScenLimit(t *testing.T) {
	m := newFakeModel(3, 2)
	sp := lookaheadFixture(t, m, config.Options{"scen_limit": 2})

	if err := sp.warmUp(); err != nil {
		t.Fatalf("warmUp failed: %v", err)
	}
	// The best row is the third, which is beyond the limit; only the first
	// two may be tried.
	flat := []float64{
		1, 1,
		2, 2,
		9, 9,
	}
	if err := sp.lookahead(flat); err != nil {
		t.Fatalf("lookahead failed: %v", err)
	}

	best, reported := sp.Best()
	if !reported {
		t.Fatal("no bound reported")
	}
	if want := -4.0; best != want {
		t.Errorf("best = %v, want %v (third row must not be tried)", best, want)
	}
}

func TestLookaheadRestoresCacheBetweenPasses(t *testing.T) {
	m := newFakeModel(2, 2)
	sp := lookaheadFixture(t, m, config.Options{"scen_limit": 1})

	if err := sp.warmUp(); err != nil {
		t.Fatalf("warmUp failed: %v", err)
	}
	flat := []float64{5, 6, 7, 8}
	if err := sp.lookahead(flat); err != nil {
		t.Fatalf("lookahead failed: %v", err)
	}

	// After the pass the scenarios hold the cached hub matrix again, not
	// the last fixed candidate.
	for si, sc := range m.scens {
		got := sc.Nonants()
		want := flat[si*2 : si*2+2]
		if got[0] != want[0] || got[1] != want[1] {
			t.Errorf("scenario %s = %v, want restored %v", sc.Name(), got, want)
		}
	}
}

func TestLookaheadReportsOnlyImprovements(t *testing.T) {
	m := newFakeModel(1, 2)
	sp := lookaheadFixture(t, m, config.Options{"scen_limit": 1})

	if err := sp.warmUp(); err != nil {
		t.Fatalf("warmUp failed: %v", err)
	}
	if err := sp.lookahead([]float64{10, 10}); err != nil {
		t.Fatalf("lookahead failed: %v", err)
	}
	best, _ := sp.Best()
	if best != -20 {
		t.Fatalf("best = %v, want -20", best)
	}

	// A worse matrix must not displace the running best.
	if err := sp.lookahead([]float64{1, 1}); err != nil {
		t.Fatalf("lookahead failed: %v", err)
	}
	if best, _ := sp.Best(); best != -20 {
		t.Errorf("best after worse pass = %v, want -20", best)
	}
}
