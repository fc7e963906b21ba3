package cylinders

import (
	"time"

	"github.com/spinwheel-io/spinwheel/internal/event"
	"github.com/spinwheel-io/spinwheel/internal/window"
)

// SpokeConfig holds the dependencies common to every spoke kind.
type SpokeConfig struct {
	Communicator
	// NonantLen is the expected length of the hub's nonant window, agreed
	// out of band from the model dimensions.
	NonantLen int
	// PollInterval is the idle backoff. Zero means the default.
	PollInterval time.Duration
}

// Spoke is the base every concrete spoke embeds. It owns the spoke's
// bound window, the read handles onto the hub's nonant and kill windows,
// and the counter bookkeeping that turns polling into an edge-triggered
// "new data" signal.
type Spoke struct {
	Communicator

	sense        Sense
	pollInterval time.Duration
	nonantLen    int

	boundWin     *window.Window
	nonantReader *window.Reader
	killReader   *window.Reader

	lastCounter uint64
	best        float64
	reported    bool
	iters       int
}

func newSpoke(cfg SpokeConfig, sense Sense) Spoke {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return Spoke{
		Communicator: cfg.Communicator,
		sense:        sense,
		pollInterval: pollInterval,
		nonantLen:    cfg.NonantLen,
		best:         initialBest(sense),
	}
}

// AllocateWindows performs the spoke's half of the collective allocation:
// the single-slot bound window it reports through.
func (s *Spoke) AllocateWindows() error {
	w, err := s.Group.Allocate(s.Rank.ID(), boundWindowName(s.Rank.Role), 1)
	if err != nil {
		return err
	}
	s.boundWin = w
	return nil
}

// WireReaders opens the spoke's read handles on the hub's nonant window
// for this role and on the shared kill flag.
func (s *Spoke) WireReaders() error {
	nr, err := s.Group.Reader(nonantWindowName(s.Rank.Role), s.nonantLen)
	if err != nil {
		return err
	}
	kr, err := s.Group.Reader(killWindowName, 1)
	if err != nil {
		return err
	}
	s.nonantReader = nr
	s.killReader = kr
	return nil
}

// GotKillSignal reports whether the hub has broadcast termination. Any
// nonzero counter on the kill window means dead; the payload is never
// inspected.
func (s *Spoke) GotKillSignal() bool {
	return s.killReader.Counter() > 0
}

// UpdateNonants polls the hub's nonant window into dst and reports whether
// the data is newer than the last accepted read. dst must have the agreed
// nonant length. A counter equal to the last seen one is stale and the
// payload must be ignored; re-observing the same publish never fires
// twice.
func (s *Spoke) UpdateNonants(dst []float64) (bool, error) {
	ctr, err := s.nonantReader.Poll(dst)
	if err != nil {
		return false, err
	}
	if ctr <= s.lastCounter {
		return false, nil
	}
	s.lastCounter = ctr
	return true, nil
}

// ReportIfImproving publishes v through the bound window only when it
// strictly improves on the spoke's own running best, keeping the hub's
// poll traffic to genuinely new information. source names the producing
// scenario when the heuristic has one.
func (s *Spoke) ReportIfImproving(v float64, source string) (bool, error) {
	if !improves(s.sense, v, s.best) {
		return false, nil
	}
	s.best = v
	s.reported = true
	if err := s.boundWin.Publish([]float64{v}); err != nil {
		return false, err
	}
	s.Log.Info("candidate reported", "bound", v, "source", source)
	s.Bus.Publish(event.NewSpokeReportEvent(s.Rank.Stratum, s.Rank.Role, v, source))
	return true, nil
}

// Best returns the spoke's running best and whether anything was ever
// reported.
func (s *Spoke) Best() (float64, bool) {
	return s.best, s.reported
}

// Finalize returns the spoke's best reported value, if any.
func (s *Spoke) Finalize() (float64, bool) {
	return s.Best()
}

// idle backs off between polls and emits the periodic heartbeat so a
// silent spoke is distinguishable from a wedged one.
func (s *Spoke) idle() {
	s.iters++
	if s.iters%heartbeatEvery == 0 {
		s.Log.Debug("spoke heartbeat", "polls", s.iters, "nonant_counter", s.lastCounter)
	}
	time.Sleep(s.pollInterval)
}

// exit emits the exit event after the loop terminates.
func (s *Spoke) exit() {
	s.Log.Info("spoke exiting", "polls", s.iters)
	s.Bus.Publish(event.NewSpokeExitedEvent(s.Rank.Stratum, s.Rank.Role, s.iters))
}
