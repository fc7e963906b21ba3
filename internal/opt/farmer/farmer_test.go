package farmer

import (
	"context"
	"math"
	"testing"

	"github.com/spinwheel-io/spinwheel/internal/opt"
)

func TestNewPartitionsScenarios(t *testing.T) {
	// 5 scenarios over 2 cylinders: round-robin gives 3 and 2.
	m0, err := New(Config{Scens: 5, CropsMultiplier: 1, Cylinder: 0, Cylinders: 2})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	m1, err := New(Config{Scens: 5, CropsMultiplier: 1, Cylinder: 1, Cylinders: 2})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if got := len(m0.LocalScenarios()); got != 3 {
		t.Errorf("cylinder 0 has %d scenarios, want 3", got)
	}
	if got := len(m1.LocalScenarios()); got != 2 {
		t.Errorf("cylinder 1 has %d scenarios, want 2", got)
	}

	names := map[string]bool{}
	for _, sc := range append(m0.LocalScenarios(), m1.LocalScenarios()...) {
		if names[sc.Name()] {
			t.Errorf("scenario %s assigned twice", sc.Name())
		}
		names[sc.Name()] = true
	}
	if len(names) != 5 {
		t.Errorf("partition covers %d scenarios, want 5", len(names))
	}
}

func TestE1SumsToOne(t *testing.T) {
	m, err := New(Config{Scens: 7, CropsMultiplier: 2, Cylinder: 0, Cylinders: 1})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if e1 := m.E1(); math.Abs(1-e1) > 1e-12 {
		t.Errorf("E1 = %v, want 1", e1)
	}
}

func TestNonantLen(t *testing.T) {
	m, _ := New(Config{Scens: 4, CropsMultiplier: 2, Cylinder: 0, Cylinders: 1})
	if m.NumVars() != 6 {
		t.Errorf("NumVars = %d, want 6", m.NumVars())
	}
	if m.NonantLen() != 24 {
		t.Errorf("NonantLen = %d, want 24", m.NonantLen())
	}
	if got := len(m.Nonants()); got != 24 {
		t.Errorf("len(Nonants) = %d, want 24", got)
	}
}

func TestStepContracts(t *testing.T) {
	m, _ := New(Config{Scens: 5, CropsMultiplier: 1, Seed: 42, Cylinder: 0, Cylinders: 1})

	var prev float64 = math.Inf(1)
	for i := 0; i < 20; i++ {
		gap, err := m.Step(context.Background())
		if err != nil {
			t.Fatalf("Step failed: %v", err)
		}
		if gap < 0 {
			t.Fatalf("negative gap %v", gap)
		}
		if gap > prev+1e-9 {
			t.Errorf("gap increased: %v -> %v at iter %d", prev, gap, i)
		}
		prev = gap
	}
	if prev > 0.01 {
		t.Errorf("gap after 20 steps = %v, expected near-consensus", prev)
	}
}

func TestStepCancelled(t *testing.T) {
	m, _ := New(Config{Scens: 2, Cylinder: 0, Cylinders: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Step(ctx); err == nil {
		t.Error("Step with cancelled context should fail")
	}
}

func TestCacheRoundTrip(t *testing.T) {
	m, _ := New(Config{Scens: 2, CropsMultiplier: 1, Cylinder: 0, Cylinders: 1})

	m.SaveNonants()
	orig := m.Nonants()

	// Scribble over the scenarios, then restore.
	for _, sc := range m.LocalScenarios() {
		for i := 0; i < m.NumVars(); i++ {
			sc.FixNonant(i, -1)
		}
	}
	m.RestoreNonants(false)

	got := m.Nonants()
	for i := range orig {
		if got[i] != orig[i] {
			t.Fatalf("slot %d = %v, want %v after restore", i, got[i], orig[i])
		}
	}

	// PutNonantCache installs an external vector.
	ext := make([]float64, m.NonantLen())
	for i := range ext {
		ext[i] = float64(i)
	}
	m.PutNonantCache(ext)
	m.RestoreNonants(false)
	got = m.Nonants()
	for i := range ext {
		if got[i] != ext[i] {
			t.Fatalf("slot %d = %v, want %v after put+restore", i, got[i], ext[i])
		}
	}
}

func TestIncumbentRespondsToFixedValues(t *testing.T) {
	m, _ := New(Config{Scens: 3, Cylinder: 0, Cylinders: 1})

	for _, sc := range m.LocalScenarios() {
		for i := 0; i < m.NumVars(); i++ {
			sc.FixNonant(i, 0)
		}
	}
	zeroObj, err := m.CalculateIncumbent(false)
	if err != nil {
		t.Fatalf("CalculateIncumbent failed: %v", err)
	}
	if zeroObj != 0 {
		t.Errorf("objective at zero acreage = %v, want 0", zeroObj)
	}

	// A modest planting should be profitable (negative objective: the
	// model minimizes cost minus revenue).
	for _, sc := range m.LocalScenarios() {
		for i := 0; i < m.NumVars(); i++ {
			sc.FixNonant(i, 10)
		}
	}
	obj, err := m.CalculateIncumbent(false)
	if err != nil {
		t.Fatalf("CalculateIncumbent failed: %v", err)
	}
	if obj >= 0 {
		t.Errorf("objective at 10 acres = %v, expected profitable (< 0)", obj)
	}
}

func TestDeterministicAcrossRuns(t *testing.T) {
	a, _ := New(Config{Scens: 4, Seed: 7, Cylinder: 0, Cylinders: 1})
	b, _ := New(Config{Scens: 4, Seed: 7, Cylinder: 0, Cylinders: 1})

	av, bv := a.Nonants(), b.Nonants()
	for i := range av {
		if av[i] != bv[i] {
			t.Fatalf("same seed produced different models at slot %d", i)
		}
	}
}

func TestIntegerTyping(t *testing.T) {
	m, _ := New(Config{Scens: 1, UseInteger: true, Cylinder: 0, Cylinders: 1})
	sc := m.LocalScenarios()[0]
	for i := 0; i < m.NumVars(); i++ {
		if sc.VarType(i) != opt.Integer {
			t.Errorf("var %d should be integer-typed", i)
		}
		if sc.IsSurrogate(i) {
			t.Errorf("var %d should not be surrogate", i)
		}
	}
}
