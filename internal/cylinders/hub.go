package cylinders

import (
	"context"
	"sync"
	"time"

	"github.com/spinwheel-io/spinwheel/internal/errors"
	"github.com/spinwheel-io/spinwheel/internal/event"
	"github.com/spinwheel-io/spinwheel/internal/opt"
	"github.com/spinwheel-io/spinwheel/internal/window"
)

// HubState tracks the hub's lifecycle.
type HubState int

const (
	// StateSetup: windows allocated, loop not yet entered.
	StateSetup HubState = iota
	// StateIterating: the primal loop is running.
	StateIterating
	// StateConverged: termination decided, kill signal published.
	StateConverged
	// StateFinalized: teardown wait done, windows released.
	StateFinalized
)

// BoundSpec declares one spoke's reporting contract with the hub.
type BoundSpec struct {
	// Role is the spoke kind, matching the topology stratum name.
	Role string
	// Kind tags the bound as inner or outer.
	Kind BoundKind
	// Sense is the direction in which the spoke's bound improves.
	Sense Sense
}

// boundTracker is the hub-side monotonic ratchet for one spoke's channel.
// An incoming value overwrites the tracked best only on strict improvement
// in the spoke's configured sense.
type boundTracker struct {
	spec        BoundSpec
	best        float64
	lastCounter uint64
	reader      *window.Reader
	buf         []float64
}

// accept applies the ratchet. It returns the displaced best and whether v
// was an improvement.
func (t *boundTracker) accept(v float64) (float64, bool) {
	if !improves(t.spec.Sense, v, t.best) {
		return t.best, false
	}
	prev := t.best
	t.best = v
	return prev, true
}

// RhoSetter supplies per-scenario penalty weights to the primal algorithm.
// It is consulted only at setup; the coordination layer never calls it
// again.
type RhoSetter func(s opt.Scenario) []float64

// HubConfig holds required dependencies for creating a Hub.
type HubConfig struct {
	Communicator
	// Optimizer is the wrapped primal algorithm.
	Optimizer opt.Optimizer
	// Spokes declares the attached spoke kinds in star order.
	Spokes []BoundSpec
	// Converged is the injected convergence predicate over the iteration
	// and its gap. Required.
	Converged func(iter int, gap float64) bool
	// MaxIters caps the primal loop regardless of the predicate.
	MaxIters int
	// RhoSetter is optional; when nil, the "default_rho" option must be
	// present and positive.
	RhoSetter RhoSetter
	// PollInterval is the loop cadence. Zero means the default.
	PollInterval time.Duration
	// SpokesExited reports how many spokes of this cylinder have exited;
	// supplied by the wheel for the bounded teardown wait. Optional.
	SpokesExited func() int
}

// Hub drives the primal loop: step, publish, poll, decide. It owns the
// nonant window for every spoke and the kill flag.
type Hub struct {
	Communicator

	optimizer    opt.Optimizer
	converged    func(int, float64) bool
	maxIters     int
	pollInterval time.Duration
	gracePolls   int
	spokesExited func() int

	nonantWins map[string]*window.Window
	killWin    *window.Window
	trackers   []*boundTracker

	mu        sync.Mutex
	state     HubState
	iter      int
	gap       float64
	summaries map[string]float64
}

// NewHub validates static configuration and creates the hub in SETUP
// state. Invalid configuration is rejected here, never deferred to the
// loop.
func NewHub(cfg HubConfig) (*Hub, error) {
	if cfg.Optimizer == nil {
		return nil, errors.NewConfigError("hub", errors.New("optimizer is required"))
	}
	if cfg.Converged == nil {
		return nil, errors.NewConfigError("hub", errors.New("convergence predicate is required"))
	}
	if len(cfg.Spokes) == 0 {
		return nil, errors.NewConfigError("hub", errors.New("at least one spoke is required"))
	}
	if cfg.Optimizer.NonantLen() <= 0 {
		return nil, errors.NewConfigError("hub", errors.New("optimizer reports empty nonant vector"))
	}
	if cfg.MaxIters <= 0 {
		return nil, errors.NewConfigError("hub", errors.New("max iterations must be positive"))
	}
	if cfg.RhoSetter == nil {
		if rho := cfg.Opts.FloatOr("default_rho", 0); rho <= 0 {
			return nil, errors.NewConfigError("hub", errors.ErrNoRhoSetter)
		}
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	h := &Hub{
		Communicator: cfg.Communicator,
		optimizer:    cfg.Optimizer,
		converged:    cfg.Converged,
		maxIters:     cfg.MaxIters,
		pollInterval: pollInterval,
		gracePolls:   cfg.Opts.IntOr("shutdown_grace_polls", 100),
		spokesExited: cfg.SpokesExited,
		nonantWins:   make(map[string]*window.Window),
		summaries:    make(map[string]float64),
	}
	for _, spec := range cfg.Spokes {
		h.trackers = append(h.trackers, &boundTracker{
			spec: spec,
			best: initialBest(spec.Sense),
			buf:  make([]float64, 1),
		})
	}
	return h, nil
}

// AllocateWindows performs the hub's half of the collective allocation:
// one outbound nonant window per spoke plus the shared kill flag.
func (h *Hub) AllocateWindows() error {
	owner := h.Rank.ID()
	for _, t := range h.trackers {
		w, err := h.Group.Allocate(owner, nonantWindowName(t.spec.Role), h.optimizer.NonantLen())
		if err != nil {
			return err
		}
		h.nonantWins[t.spec.Role] = w
	}
	w, err := h.Group.Allocate(owner, killWindowName, 1)
	if err != nil {
		return err
	}
	h.killWin = w
	return nil
}

// WireReaders opens the hub's read handles on every spoke's bound window.
// Length disagreement surfaces here, once.
func (h *Hub) WireReaders() error {
	for _, t := range h.trackers {
		r, err := h.Group.Reader(boundWindowName(t.spec.Role), 1)
		if err != nil {
			return err
		}
		t.reader = r
	}
	return nil
}

// State returns the hub's lifecycle state.
func (h *Hub) State() HubState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Iterations returns the number of completed primal iterations.
func (h *Hub) Iterations() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.iter
}

// Gap returns the last gap reported by the primal step.
func (h *Hub) Gap() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.gap
}

// BestInner returns the hub's tracked best inner bound, improving in each
// inner tracker's own sense.
func (h *Hub) BestInner() float64 { return h.bestOfKind(Inner) }

// BestOuter returns the hub's tracked best outer bound.
func (h *Hub) BestOuter() float64 { return h.bestOfKind(Outer) }

func (h *Hub) bestOfKind(kind BoundKind) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	var best float64
	found := false
	for _, t := range h.trackers {
		if t.spec.Kind != kind {
			continue
		}
		if !found || improves(t.spec.Sense, t.best, best) {
			best = t.best
			found = true
		}
	}
	if !found {
		// No spoke of this kind: report the neutral sentinel for a
		// minimizing run.
		if kind == Outer {
			return initialBest(Maximize)
		}
		return initialBest(Minimize)
	}
	return best
}

// Optimizer exposes the wrapped primal algorithm for post-run inspection.
func (h *Hub) Optimizer() opt.Optimizer { return h.optimizer }

// Main runs SETUP → ITERATING → CONVERGED → FINALIZED. A step failure is
// fatal: it propagates immediately and the deferred teardown still
// broadcasts the kill signal so the spokes do not strand the run.
func (h *Hub) Main(ctx context.Context) error {
	h.setState(StateIterating)
	h.Log.Info("hub entering primal loop",
		"nonant_len", h.optimizer.NonantLen(), "max_iters", h.maxIters)

	runErr := h.iterate(ctx)

	// Termination is broadcast whether the loop converged or died; a
	// never-published kill would hang every spoke.
	h.setState(StateConverged)
	if err := h.killWin.Publish([]float64{1}); err != nil {
		h.Log.Error("kill publish failed", "error", err.Error())
	}
	h.Bus.Publish(event.NewKillBroadcastEvent(h.Rank.Stratum, h.Iterations()))
	h.Log.Info("kill signal broadcast", "iter", h.Iterations())

	h.waitForSpokes()
	h.FreeWindows()
	h.setState(StateFinalized)
	return runErr
}

// iterate is the ITERATING state: step, publish, poll, decide.
func (h *Hub) iterate(ctx context.Context) error {
	for iter := 1; ; iter++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		gap, err := h.optimizer.Step(ctx)
		if err != nil {
			return errors.NewSolveError(iter, err)
		}

		nonants := h.optimizer.Nonants()
		for role, w := range h.nonantWins {
			if err := w.Publish(nonants); err != nil {
				return errors.NewProtocolError("publish", err).WithWindow(nonantWindowName(role))
			}
		}

		h.pollSpokes()

		h.mu.Lock()
		h.iter, h.gap = iter, gap
		h.mu.Unlock()

		h.Bus.Publish(event.NewHubIterationEvent(
			h.Rank.Stratum, iter, gap, h.BestInner(), h.BestOuter()))

		if h.converged(iter, gap) {
			h.Log.Info("converged", "iter", iter, "gap", gap)
			return nil
		}
		if iter >= h.maxIters {
			h.Log.Info("iteration cap reached", "iter", iter, "gap", gap)
			return nil
		}

		time.Sleep(h.pollInterval)
	}
}

// pollSpokes performs the one-shot remote read of every spoke's bound
// window and applies the ratchet on fresh data.
func (h *Hub) pollSpokes() {
	for _, t := range h.trackers {
		ctr, err := t.reader.Poll(t.buf)
		if err != nil {
			h.Log.Error("bound poll failed", "role", t.spec.Role, "error", err.Error())
			continue
		}
		if ctr <= t.lastCounter {
			continue
		}
		t.lastCounter = ctr

		prev, improved := t.accept(t.buf[0])
		if improved {
			h.Log.Info("bound improved",
				"role", t.spec.Role, "kind", t.spec.Kind.String(),
				"bound", t.best, "previous", prev)
			h.Bus.Publish(event.NewBoundImprovedEvent(
				h.Rank.Stratum, t.spec.Role, t.spec.Kind.String(), t.best, prev))
		}
	}
}

// waitForSpokes blocks for at most gracePolls poll intervals, returning
// early once every spoke of this cylinder has exited. A slow spoke only
// delays this bounded wait; it can never extend it indefinitely.
func (h *Hub) waitForSpokes() {
	if h.spokesExited == nil {
		return
	}
	want := len(h.trackers)
	for i := 0; i < h.gracePolls; i++ {
		if h.spokesExited() >= want {
			return
		}
		time.Sleep(h.pollInterval)
	}
	h.Log.Warn("teardown grace expired with spokes still running",
		"exited", h.spokesExited(), "want", want)
}

// CollectSummary records one spoke's finalize-time summary.
func (h *Hub) CollectSummary(role string, value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.summaries[role] = value
}

// Summaries returns the collected finalize-time summaries by role.
func (h *Hub) Summaries() map[string]float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]float64, len(h.summaries))
	for k, v := range h.summaries {
		out[k] = v
	}
	return out
}

// IsConverged reports whether the hub has decided termination.
func (h *Hub) IsConverged() bool {
	return h.State() >= StateConverged
}

// Finalize returns the best inner bound as the hub's summary.
func (h *Hub) Finalize() (float64, bool) {
	return h.BestInner(), true
}

func (h *Hub) setState(s HubState) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}
