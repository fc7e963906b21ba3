// Package window implements the one-sided publish/poll buffers the hub and
// spokes communicate through.
//
// A Window is a fixed-length buffer of float64 slots plus one trailing write
// counter. Exactly one owner writes; any group peer may read. The owner
// publishes by storing every payload slot and then incrementing the counter.
// A reader detects new data solely by comparing the fetched counter against
// the last counter it acted on — never by diffing payload.
//
// # Consistency contract
//
// Slots are individually atomic, but a publish is not atomic as a whole: a
// concurrent reader may observe the incremented counter together with a
// partially updated payload. This tear is accepted by design of the
// protocol — every reported value is re-validated on the next full
// iteration, so a rare torn read is self-correcting rather than
// catastrophic. Consumers must not make irreversible decisions from a
// single poll. No lock or fence is added to close the gap; doing so would
// change the lock-free character of the hot path.
//
// # Lifecycle
//
// Windows are allocated once at setup through a Group, which plays the role
// of the collective allocation: the owner declares the buffer length and
// every reader re-declares the length it expects. A disagreement is a fatal
// configuration error surfaced at wiring time, not at runtime. Freeing is
// idempotent; publishing or polling a freed or never-allocated window is a
// protocol-misuse error.
package window
