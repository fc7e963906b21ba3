package cylinders

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/spinwheel-io/spinwheel/internal/config"
	"github.com/spinwheel-io/spinwheel/internal/event"
	"github.com/spinwheel-io/spinwheel/internal/logging"
	"github.com/spinwheel-io/spinwheel/internal/topology"
	"github.com/spinwheel-io/spinwheel/internal/window"
)

// heartbeatEvery is the loop-iteration modulus for spoke debug heartbeats.
const heartbeatEvery = 10000

// defaultPollInterval is the idle backoff between polls when a loop has
// nothing to do. The protocol is best-effort, not real-time; a short sleep
// keeps spin-polling from pinning a core.
const defaultPollInterval = time.Millisecond

// Sense is the direction in which a bound improves.
type Sense int

const (
	// Minimize: a smaller value is an improvement.
	Minimize Sense = iota
	// Maximize: a larger value is an improvement.
	Maximize
)

// String returns "min" or "max".
func (s Sense) String() string {
	if s == Maximize {
		return "max"
	}
	return "min"
}

// BoundKind tags which side of the optimum a spoke's bound tightens.
type BoundKind int

const (
	// Inner bounds come from feasible incumbents.
	Inner BoundKind = iota
	// Outer bounds come from duals or relaxations.
	Outer
)

// String returns "inner" or "outer".
func (k BoundKind) String() string {
	if k == Outer {
		return "outer"
	}
	return "inner"
}

// initialBest returns the sentinel a tracker starts from: any finite value
// strictly improves on it.
func initialBest(sense Sense) float64 {
	if sense == Maximize {
		return math.Inf(-1)
	}
	return math.Inf(1)
}

// improves reports whether v strictly improves on best in the given sense.
// Ties never improve, preventing oscillation between equally good
// candidates.
func improves(sense Sense, v, best float64) bool {
	if sense == Maximize {
		return v > best
	}
	return v < best
}

// Role is the capability set every hub and spoke implements. The wheel
// drives Main on a dedicated goroutine; the remaining hooks are lifecycle
// points invoked outside the loop.
type Role interface {
	// Main runs the role's loop to termination. For spokes the sole
	// terminator is the hub's kill signal; for the hub it is convergence
	// or the iteration cap. A returned error is fatal to the whole run.
	Main(ctx context.Context) error

	// Sync flushes any role-local state between setup and the loop.
	Sync()

	// IsConverged reports the role's own convergence opinion; only the
	// hub's matters for termination.
	IsConverged() bool

	// Finalize returns the role's optional end-of-run summary value.
	Finalize() (float64, bool)
}

// Communicator is the base each role embeds: identity, window group,
// options and the ambient observers. It supplies no-op defaults for the
// optional Role hooks.
type Communicator struct {
	Rank  topology.Rank
	Group *window.Group
	Opts  config.Options
	Log   *logging.Logger
	Bus   *event.Bus
}

// Sync is a no-op by default.
func (c *Communicator) Sync() {}

// IsConverged is false by default.
func (c *Communicator) IsConverged() bool { return false }

// Finalize reports no summary by default.
func (c *Communicator) Finalize() (float64, bool) { return 0, false }

// FreeWindows releases every window this role owns. Idempotent; freeing
// without having allocated is a no-op.
func (c *Communicator) FreeWindows() {
	c.Group.FreeOwned(c.Rank.ID())
}

// Window names within a star group. The hub owns the nonant window for
// each spoke kind and the shared kill flag; each spoke owns its bound
// window.
func nonantWindowName(role string) string { return fmt.Sprintf("nonants[%s]", role) }
func boundWindowName(role string) string  { return fmt.Sprintf("bound[%s]", role) }

const killWindowName = "kill"
