package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "hub.iteration", "bound.improved")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Hub Events
// -----------------------------------------------------------------------------

// HubIterationEvent is emitted after each hub iteration: one primal step,
// one nonant publish, one poll pass over the spokes.
type HubIterationEvent struct {
	baseEvent
	Cylinder  int     // Cylinder index of the hub
	Iteration int     // 1-based hub iteration number
	Gap       float64 // Convergence gap reported by the primal step
	BestInner float64 // Hub's tracked best inner bound
	BestOuter float64 // Hub's tracked best outer bound
}

// NewHubIterationEvent creates a HubIterationEvent.
func NewHubIterationEvent(cylinder, iteration int, gap, bestInner, bestOuter float64) HubIterationEvent {
	return HubIterationEvent{
		baseEvent: newBaseEvent("hub.iteration"),
		Cylinder:  cylinder,
		Iteration: iteration,
		Gap:       gap,
		BestInner: bestInner,
		BestOuter: bestOuter,
	}
}

// BoundImprovedEvent is emitted when a spoke's reported value strictly
// improves the hub's tracked best in that spoke's configured sense.
type BoundImprovedEvent struct {
	baseEvent
	Cylinder int     // Cylinder index of the hub
	Role     string  // Spoke kind that produced the bound
	Kind     string  // "inner" or "outer"
	Bound    float64 // The new tracked best
	Previous float64 // The value it displaced
}

// NewBoundImprovedEvent creates a BoundImprovedEvent.
func NewBoundImprovedEvent(cylinder int, role, kind string, bound, previous float64) BoundImprovedEvent {
	return BoundImprovedEvent{
		baseEvent: newBaseEvent("bound.improved"),
		Cylinder:  cylinder,
		Role:      role,
		Kind:      kind,
		Bound:     bound,
		Previous:  previous,
	}
}

// KillBroadcastEvent is emitted when the hub publishes the kill signal.
type KillBroadcastEvent struct {
	baseEvent
	Cylinder  int // Cylinder index of the hub
	Iteration int // Hub iteration at which termination was decided
}

// NewKillBroadcastEvent creates a KillBroadcastEvent.
func NewKillBroadcastEvent(cylinder, iteration int) KillBroadcastEvent {
	return KillBroadcastEvent{
		baseEvent: newBaseEvent("hub.kill_broadcast"),
		Cylinder:  cylinder,
		Iteration: iteration,
	}
}

// -----------------------------------------------------------------------------
// Spoke Events
// -----------------------------------------------------------------------------

// SpokeReportEvent is emitted when a spoke publishes a candidate bound,
// whether or not the hub later accepts it.
type SpokeReportEvent struct {
	baseEvent
	Cylinder int     // Cylinder index of the spoke
	Role     string  // Spoke kind
	Bound    float64 // The reported value
	Source   string  // Producing scenario name, when the heuristic has one
}

// NewSpokeReportEvent creates a SpokeReportEvent.
func NewSpokeReportEvent(cylinder int, role string, bound float64, source string) SpokeReportEvent {
	return SpokeReportEvent{
		baseEvent: newBaseEvent("spoke.report"),
		Cylinder:  cylinder,
		Role:      role,
		Bound:     bound,
		Source:    source,
	}
}

// SpokeExitedEvent is emitted when a spoke's loop terminates after
// observing the kill signal.
type SpokeExitedEvent struct {
	baseEvent
	Cylinder   int    // Cylinder index of the spoke
	Role       string // Spoke kind
	Iterations int    // Total loop iterations the spoke performed
}

// NewSpokeExitedEvent creates a SpokeExitedEvent.
func NewSpokeExitedEvent(cylinder int, role string, iterations int) SpokeExitedEvent {
	return SpokeExitedEvent{
		baseEvent:  newBaseEvent("spoke.exited"),
		Cylinder:   cylinder,
		Role:       role,
		Iterations: iterations,
	}
}
