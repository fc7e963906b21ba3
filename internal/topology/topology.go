package topology

import (
	"fmt"

	"github.com/spinwheel-io/spinwheel/internal/errors"
)

// HubRole is the reserved role name for the hub stratum.
const HubRole = "hub"

// Rank identifies one worker within the three nested groups.
type Rank struct {
	// Global is the dense id within the whole run.
	Global int
	// Stratum is the id within this rank's role stratum. It equals the
	// cylinder index, since each cylinder contributes exactly one rank to
	// each stratum.
	Stratum int
	// Cylinder is the id within this rank's cylinder group: 0 for the hub,
	// 1..n for the spokes in spec order.
	Cylinder int
	// Role is the stratum name: HubRole or a spoke kind.
	Role string
}

// ID returns a stable human-readable identity, used for window ownership
// and log attribution.
func (r Rank) ID() string {
	return fmt.Sprintf("%s/c%d", r.Role, r.Stratum)
}

// IsHub reports whether this rank hosts a hub.
func (r Rank) IsHub() bool { return r.Role == HubRole }

// Topology is the full set of ranks for a run.
type Topology struct {
	// SpokeRoles are the spoke kinds in spec order.
	SpokeRoles []string
	// Cylinders is the replication factor.
	Cylinders int

	ranks  []Rank
	stars  [][]Rank          // cylinder index -> ranks, hub first
	strata map[string][]Rank // role -> ranks across cylinders
}

// Derive builds the topology for the given ordered spoke roles and cylinder
// replication factor. Every stratum spans the same factor. Duplicate or
// reserved spoke role names are rejected.
func Derive(spokeRoles []string, cylinders int) (*Topology, error) {
	if cylinders < 1 {
		return nil, fmt.Errorf("topology: cylinder count %d < 1", cylinders)
	}
	seen := map[string]bool{HubRole: true}
	for _, role := range spokeRoles {
		if seen[role] {
			return nil, fmt.Errorf("topology: duplicate or reserved role %q", role)
		}
		seen[role] = true
	}

	t := &Topology{
		SpokeRoles: append([]string(nil), spokeRoles...),
		Cylinders:  cylinders,
		stars:      make([][]Rank, cylinders),
		strata:     make(map[string][]Rank),
	}

	global := 0
	for c := 0; c < cylinders; c++ {
		roles := append([]string{HubRole}, spokeRoles...)
		star := make([]Rank, 0, len(roles))
		for i, role := range roles {
			r := Rank{Global: global, Stratum: c, Cylinder: i, Role: role}
			star = append(star, r)
			t.strata[role] = append(t.strata[role], r)
			t.ranks = append(t.ranks, r)
			global++
		}
		t.stars[c] = star
	}
	return t, nil
}

// Ranks returns every rank in global order.
func (t *Topology) Ranks() []Rank { return t.ranks }

// Star returns the ranks of one cylinder, hub first.
func (t *Topology) Star(cylinder int) []Rank { return t.stars[cylinder] }

// Stratum returns the ranks of one role across all cylinders.
func (t *Topology) Stratum(role string) ([]Rank, error) {
	ranks, ok := t.strata[role]
	if !ok {
		return nil, errors.NewProtocolError("stratum", fmt.Errorf("unknown role %q", role))
	}
	return ranks, nil
}

// NumSpokes returns the number of spoke kinds per cylinder.
func (t *Topology) NumSpokes() int { return len(t.SpokeRoles) }
