package topology

import (
	"testing"
)

func TestDeriveSingleCylinder(t *testing.T) {
	top, err := Derive([]string{"slam_max", "lookahead"}, 1)
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}

	ranks := top.Ranks()
	if len(ranks) != 3 {
		t.Fatalf("got %d ranks, want 3", len(ranks))
	}

	hub := ranks[0]
	if !hub.IsHub() || hub.Cylinder != 0 || hub.Stratum != 0 || hub.Global != 0 {
		t.Errorf("unexpected hub rank: %+v", hub)
	}

	star := top.Star(0)
	if len(star) != 3 || star[0].Role != HubRole || star[1].Role != "slam_max" || star[2].Role != "lookahead" {
		t.Errorf("unexpected star: %+v", star)
	}
}

func TestDeriveMultipleCylinders(t *testing.T) {
	top, err := Derive([]string{"slam_max"}, 3)
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}

	if len(top.Ranks()) != 6 {
		t.Fatalf("got %d ranks, want 6", len(top.Ranks()))
	}

	stratum, err := top.Stratum("slam_max")
	if err != nil {
		t.Fatalf("Stratum failed: %v", err)
	}
	if len(stratum) != 3 {
		t.Fatalf("stratum spans %d cylinders, want 3", len(stratum))
	}
	for c, r := range stratum {
		if r.Stratum != c {
			t.Errorf("stratum rank %d has Stratum=%d", c, r.Stratum)
		}
		if r.Cylinder != 1 {
			t.Errorf("spoke rank should be cylinder rank 1, got %d", r.Cylinder)
		}
	}

	// Global ids dense and deterministic: hub first within each cylinder.
	for i, r := range top.Ranks() {
		if r.Global != i {
			t.Errorf("rank %d has Global=%d", i, r.Global)
		}
	}
}

func TestDeriveRejectsDuplicateRole(t *testing.T) {
	if _, err := Derive([]string{"slam_max", "slam_max"}, 1); err == nil {
		t.Error("duplicate spoke role should be rejected")
	}
	if _, err := Derive([]string{"hub"}, 1); err == nil {
		t.Error("reserved role name should be rejected")
	}
	if _, err := Derive([]string{"slam_max"}, 0); err == nil {
		t.Error("zero cylinders should be rejected")
	}
}

func TestUnknownStratum(t *testing.T) {
	top, _ := Derive([]string{"slam_max"}, 1)
	if _, err := top.Stratum("lagrangian"); err == nil {
		t.Error("unknown role should be rejected")
	}
}

func TestRankID(t *testing.T) {
	top, _ := Derive([]string{"slam_max"}, 2)
	stratum, _ := top.Stratum("slam_max")
	if got := stratum[1].ID(); got != "slam_max/c1" {
		t.Errorf("ID = %q, want slam_max/c1", got)
	}
}
