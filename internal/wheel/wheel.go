// Package wheel assembles and runs a full wheel: the topology is derived
// from the configured spoke kinds and replication factor, every rank gets
// its own optimizer instance and role, and Spin drives all role loops on
// dedicated goroutines until the hubs finalize and every spoke has exited.
package wheel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/spinwheel-io/spinwheel/internal/config"
	"github.com/spinwheel-io/spinwheel/internal/cylinders"
	"github.com/spinwheel-io/spinwheel/internal/errors"
	"github.com/spinwheel-io/spinwheel/internal/event"
	"github.com/spinwheel-io/spinwheel/internal/logging"
	"github.com/spinwheel-io/spinwheel/internal/opt"
	"github.com/spinwheel-io/spinwheel/internal/topology"
	"github.com/spinwheel-io/spinwheel/internal/window"
)

// Spoke kind names accepted by the spinner.
const (
	KindSlamMax   = "slam_max"
	KindSlamMin   = "slam_min"
	KindLookahead = "lookahead"
)

// Option configures a Spinner.
type Option func(*settings)

type settings struct {
	cylinders    int
	spokeKinds   []string
	maxIters     int
	relGap       float64
	pollInterval time.Duration
	sense        cylinders.Sense
	options      config.Options
	rhoSetter    cylinders.RhoSetter
	logger       *logging.Logger
	bus          *event.Bus
}

// WithCylinders sets the replication factor. Default 1.
func WithCylinders(n int) Option {
	return func(s *settings) { s.cylinders = n }
}

// WithSpokes sets the ordered spoke kinds attached to every hub.
// Default slam_max and lookahead.
func WithSpokes(kinds ...string) Option {
	return func(s *settings) { s.spokeKinds = kinds }
}

// WithMaxIters caps every hub's primal loop. Default 100.
func WithMaxIters(n int) Option {
	return func(s *settings) { s.maxIters = n }
}

// WithRelGap sets the convergence threshold on the step gap. Default 0.01.
func WithRelGap(g float64) Option {
	return func(s *settings) { s.relGap = g }
}

// WithPollInterval sets the loop cadence for every role.
func WithPollInterval(d time.Duration) Option {
	return func(s *settings) { s.pollInterval = d }
}

// WithSense sets the objective sense of the wrapped models. Default
// Minimize.
func WithSense(sense cylinders.Sense) Option {
	return func(s *settings) { s.sense = sense }
}

// WithOptions supplies the flat role options map (scen_limit,
// rounding_bias, default_rho, ...).
func WithOptions(o config.Options) Option {
	return func(s *settings) { s.options = o }
}

// WithRhoSetter supplies per-scenario penalty weights to the hubs.
func WithRhoSetter(r cylinders.RhoSetter) Option {
	return func(s *settings) { s.rhoSetter = r }
}

// WithLogger sets the run logger; every role gets a cylinder/role child.
func WithLogger(l *logging.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithBus sets the event bus shared by all roles.
func WithBus(b *event.Bus) Option {
	return func(s *settings) { s.bus = b }
}

// spokeRunner pairs a constructed spoke with its stratum reducer, if any,
// so the exit path can release peers blocked in a rendezvous.
type spokeRunner struct {
	role     cylinders.Role
	kind     string
	reducer  *topology.Reducer
	cylinder int
}

// Spinner holds a fully wired wheel: one hub per cylinder plus its spokes,
// all windows allocated and readers opened. Spin may be called once.
type Spinner struct {
	topo   *topology.Topology
	hubs   []*cylinders.Hub
	spokes []spokeRunner
	exited []atomic.Int32

	log *logging.Logger
	bus *event.Bus

	spun atomic.Bool
}

// NewSpinner derives the topology, constructs a fresh optimizer per rank
// via factory, wires every role's windows, and returns the ready-to-spin
// wheel. All static validation happens here; Spin itself cannot fail on
// configuration.
func NewSpinner(factory opt.Factory, opts ...Option) (*Spinner, error) {
	if factory == nil {
		return nil, errors.NewConfigError("wheel", errors.New("optimizer factory is required"))
	}

	st := settings{
		cylinders:  1,
		spokeKinds: []string{KindSlamMax, KindLookahead},
		maxIters:   100,
		relGap:     0.01,
		options:    config.Options{},
		logger:     logging.NopLogger(),
		bus:        event.NewBus(),
	}
	for _, o := range opts {
		o(&st)
	}

	topo, err := topology.Derive(st.spokeKinds, st.cylinders)
	if err != nil {
		return nil, errors.NewConfigError("wheel", err)
	}

	s := &Spinner{
		topo:   topo,
		exited: make([]atomic.Int32, st.cylinders),
		log:    st.logger,
		bus:    st.bus,
	}

	// One optimizer per rank: ranks share nothing but windows.
	numVars := 0
	optimizers := make(map[int]opt.Optimizer, len(topo.Ranks()))
	for _, r := range topo.Ranks() {
		o, err := factory(r.Stratum)
		if err != nil {
			return nil, errors.NewConfigError(r.ID(), err)
		}
		if numVars == 0 {
			numVars = o.NumVars()
		} else if o.NumVars() != numVars {
			return nil, errors.NewConfigError(r.ID(),
				fmt.Errorf("%w: factory produced %d vars, expected %d",
					errors.ErrWindowLengthMismatch, o.NumVars(), numVars))
		}
		optimizers[r.Global] = o
	}

	// One reducer per slam stratum, spanning all cylinders.
	reducers := make(map[string]*topology.Reducer)
	for _, kind := range st.spokeKinds {
		if kind == KindSlamMax || kind == KindSlamMin {
			reducers[kind] = topology.NewReducer(st.cylinders, numVars)
		}
	}

	specs := make([]cylinders.BoundSpec, len(st.spokeKinds))
	for i, kind := range st.spokeKinds {
		specs[i] = cylinders.BoundSpec{Role: kind, Kind: cylinders.Inner, Sense: st.sense}
	}
	converged := func(iter int, gap float64) bool { return gap < st.relGap }

	for c := 0; c < st.cylinders; c++ {
		group := window.NewGroup(fmt.Sprintf("cylinder-%d", c))
		star := topo.Star(c)

		cyl := c
		hub, err := cylinders.NewHub(cylinders.HubConfig{
			Communicator: s.comm(star[0], group, st.options),
			Optimizer:    optimizers[star[0].Global],
			Spokes:       specs,
			Converged:    converged,
			MaxIters:     st.maxIters,
			RhoSetter:    st.rhoSetter,
			PollInterval: st.pollInterval,
			SpokesExited: func() int { return int(s.exited[cyl].Load()) },
		})
		if err != nil {
			return nil, err
		}
		s.hubs = append(s.hubs, hub)

		for _, r := range star[1:] {
			runner, err := s.buildSpoke(r, group, st, optimizers[r.Global], reducers[r.Role])
			if err != nil {
				return nil, err
			}
			s.spokes = append(s.spokes, runner)
		}
	}

	// Collective wiring: every owner allocates before any reader opens.
	for c, hub := range s.hubs {
		if err := hub.AllocateWindows(); err != nil {
			return nil, fmt.Errorf("cylinder %d: %w", c, err)
		}
	}
	for _, sp := range s.spokes {
		if err := sp.role.(allocator).AllocateWindows(); err != nil {
			return nil, fmt.Errorf("cylinder %d: %w", sp.cylinder, err)
		}
	}
	for c, hub := range s.hubs {
		if err := hub.WireReaders(); err != nil {
			return nil, fmt.Errorf("cylinder %d: %w", c, err)
		}
	}
	for _, sp := range s.spokes {
		if err := sp.role.(allocator).WireReaders(); err != nil {
			return nil, fmt.Errorf("cylinder %d: %w", sp.cylinder, err)
		}
	}
	return s, nil
}

// allocator is the two-phase setup surface every role provides.
type allocator interface {
	AllocateWindows() error
	WireReaders() error
}

func (s *Spinner) comm(r topology.Rank, g *window.Group, opts config.Options) cylinders.Communicator {
	return cylinders.Communicator{
		Rank:  r,
		Group: g,
		Opts:  opts,
		Log:   s.log.WithCylinder(r.Stratum).WithRole(r.Role),
		Bus:   s.bus,
	}
}

func (s *Spinner) buildSpoke(r topology.Rank, g *window.Group, st settings, o opt.Optimizer, reducer *topology.Reducer) (spokeRunner, error) {
	base := cylinders.SpokeConfig{
		Communicator: s.comm(r, g, st.options),
		NonantLen:    o.NonantLen(),
		PollInterval: st.pollInterval,
	}

	var role cylinders.Role
	var err error
	switch r.Role {
	case KindSlamMax:
		role, err = cylinders.NewSlamMax(cylinders.SlamConfig{
			SpokeConfig: base, Optimizer: o, Reducer: reducer, Sense: st.sense,
		})
	case KindSlamMin:
		role, err = cylinders.NewSlamMin(cylinders.SlamConfig{
			SpokeConfig: base, Optimizer: o, Reducer: reducer, Sense: st.sense,
		})
	case KindLookahead:
		role, err = cylinders.NewLookahead(cylinders.LookaheadConfig{
			SpokeConfig: base, Optimizer: o, Sense: st.sense,
		})
	default:
		err = errors.NewConfigError(r.ID(), fmt.Errorf("unknown spoke kind %q", r.Role))
	}
	if err != nil {
		return spokeRunner{}, err
	}
	return spokeRunner{role: role, kind: r.Role, reducer: reducer, cylinder: r.Stratum}, nil
}

// Spin runs every rank loop concurrently and blocks until all hubs have
// finalized and all spokes have exited. The first fatal error cancels the
// remaining roles and is returned; teardown cancellation of the shared
// context is not reported as a failure of its own, but cancellation of the
// caller's context is.
func (s *Spinner) Spin(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var mu sync.Mutex
	var firstErr error
	record := func(err error) {
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	for _, hub := range s.hubs {
		hub.Sync()
	}
	for _, sp := range s.spokes {
		sp.role.Sync()
	}

	var wg conc.WaitGroup
	for _, hub := range s.hubs {
		h := hub
		wg.Go(func() { record(h.Main(ctx)) })
	}
	for _, sp := range s.spokes {
		sp := sp
		wg.Go(func() {
			err := sp.role.Main(ctx)
			// A departing slam spoke releases stratum peers still blocked
			// in the rendezvous; the run is over either way.
			if sp.reducer != nil {
				sp.reducer.Close()
			}
			if v, ok := sp.role.Finalize(); ok {
				s.hubs[sp.cylinder].CollectSummary(sp.kind, v)
			}
			s.exited[sp.cylinder].Add(1)
			record(err)
		})
	}
	wg.Wait()

	s.spun.Store(true)
	s.log.Info("wheel stopped", "cylinders", len(s.hubs), "spokes", len(s.spokes))
	if firstErr == nil {
		// Only the internally induced cancel is filtered above; an
		// interrupted caller still gets to see the interruption.
		firstErr = parent.Err()
	}
	return firstErr
}

// SpokesExited reports how many spokes of one cylinder have left their
// loops.
func (s *Spinner) SpokesExited(cylinder int) int {
	return int(s.exited[cylinder].Load())
}

// SolutionWriter receives one named nonant vector of the final solution.
type SolutionWriter func(name string, nonants []float64) error

// Solution is the post-run accessor surface, served exclusively by
// cylinder zero's hub: replica hubs may disagree transiently, cylinder
// zero is canonical.
type Solution struct {
	hub *cylinders.Hub
}

// Solution returns the accessor for the given cylinder's hub. Only
// cylinder zero holds the canonical solution; any other cylinder is
// rejected with ErrNotCylinderZero. Calling before Spin has finished is a
// protocol error.
func (s *Spinner) Solution(cylinder int) (*Solution, error) {
	if cylinder != 0 {
		return nil, errors.ErrNotCylinderZero
	}
	if !s.spun.Load() {
		return nil, errors.NewProtocolError("solution", errors.New("wheel has not spun"))
	}
	return &Solution{hub: s.hubs[0]}, nil
}

// BestInner returns the tracked best inner bound.
func (sol *Solution) BestInner() float64 { return sol.hub.BestInner() }

// BestOuter returns the tracked best outer bound.
func (sol *Solution) BestOuter() float64 { return sol.hub.BestOuter() }

// Iterations returns the hub's completed iteration count.
func (sol *Solution) Iterations() int { return sol.hub.Iterations() }

// Gap returns the final convergence gap.
func (sol *Solution) Gap() float64 { return sol.hub.Gap() }

// Converged reports whether the hub has decided termination.
func (sol *Solution) Converged() bool { return sol.hub.IsConverged() }

// SpokeSummaries returns the finalize-time summary each spoke handed in on
// exit, keyed by spoke kind. A spoke that never found a bound contributes
// no entry.
func (sol *Solution) SpokeSummaries() map[string]float64 {
	return sol.hub.Summaries()
}

// ExpectedObjective returns the probability-weighted objective of the
// final solution over cylinder zero's scenarios.
func (sol *Solution) ExpectedObjective() float64 {
	obj := 0.0
	for _, sc := range sol.hub.Optimizer().LocalScenarios() {
		obj += sc.Probability() * sc.Objective()
	}
	return obj
}

// Optimizer exposes the hub's primal algorithm for inspection.
func (sol *Solution) Optimizer() opt.Optimizer { return sol.hub.Optimizer() }

// FinalNonants returns the hub's flattened nonant matrix after the run.
func (sol *Solution) FinalNonants() []float64 {
	return sol.hub.Optimizer().Nonants()
}

// WriteFirstStageSolution hands the first-stage decision vector to w. The
// scenarios have contracted to consensus, so the first scenario's values
// are the shared first-stage solution.
func (sol *Solution) WriteFirstStageSolution(w SolutionWriter) error {
	scens := sol.hub.Optimizer().LocalScenarios()
	if len(scens) == 0 {
		return errors.NewProtocolError("write solution", errors.New("no local scenarios"))
	}
	return w("first_stage", scens[0].Nonants())
}

// WriteTreeSolution hands every scenario's vector to w, named by scenario.
func (sol *Solution) WriteTreeSolution(w SolutionWriter) error {
	for _, sc := range sol.hub.Optimizer().LocalScenarios() {
		if err := w(sc.Name(), sc.Nonants()); err != nil {
			return err
		}
	}
	return nil
}
