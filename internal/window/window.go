package window

import (
	"math"
	"sync/atomic"

	"github.com/spinwheel-io/spinwheel/internal/errors"
)

// Window is a single-writer, multi-reader versioned buffer.
//
// The buffer layout is [value_0 ... value_{n-1}, write_counter]: n payload
// slots holding float64 bit patterns and a final slot holding the raw write
// counter. Payload slots are initialized to NaN (the "undefined" sentinel)
// and the counter to zero, so a reader that has never seen a publish
// observes counter == 0 and must not act on the payload.
type Window struct {
	name   string
	owner  string
	length int
	slots  []atomic.Uint64
	freed  atomic.Bool
}

// newWindow allocates a window with length payload slots plus the counter.
func newWindow(owner, name string, length int) *Window {
	w := &Window{
		name:   name,
		owner:  owner,
		length: length,
		slots:  make([]atomic.Uint64, length+1),
	}
	nan := math.Float64bits(math.NaN())
	for i := 0; i < length; i++ {
		w.slots[i].Store(nan)
	}
	// Counter slot is already zero.
	return w
}

// Name returns the window's name within its group.
func (w *Window) Name() string { return w.name }

// Owner returns the identity of the exclusive writer.
func (w *Window) Owner() string { return w.owner }

// Len returns the payload length (excluding the counter slot).
func (w *Window) Len() int { return w.length }

// Publish writes payload into the owner's slots and then increments the
// write counter. It is purely local: no message is sent to readers, who
// discover the new data on their next poll.
//
// Only the owner may call Publish; a second concurrent writer is outside
// the protocol's contract and must be prevented by construction.
func (w *Window) Publish(payload []float64) error {
	if w.freed.Load() {
		return errors.NewProtocolError("publish", errors.ErrWindowNotAllocated).WithWindow(w.name)
	}
	if len(payload) != w.length {
		return errors.NewProtocolError("publish", errors.ErrWindowLengthMismatch).WithWindow(w.name)
	}
	for i, v := range payload {
		w.slots[i].Store(math.Float64bits(v))
	}
	w.slots[w.length].Add(1)
	return nil
}

// Counter returns the current write counter without copying the payload.
func (w *Window) Counter() uint64 {
	return w.slots[w.length].Load()
}

// free marks the window released. Further publishes and polls fail.
func (w *Window) free() {
	w.freed.Store(true)
}

// Reader is a peer's read handle onto another rank's window. Obtaining a
// Reader validates the expected buffer length once, at wiring time.
type Reader struct {
	w *Window
}

// Len returns the payload length of the underlying window.
func (r *Reader) Len() int { return r.w.length }

// Poll copies the full payload into dst and returns the write counter
// observed during the read. dst must have the window's payload length.
//
// Poll never blocks and never waits for a publish. The caller compares the
// returned counter to its last-seen value; a strictly greater counter means
// new data. See the package documentation for the torn-read contract.
func (r *Reader) Poll(dst []float64) (uint64, error) {
	if r.w.freed.Load() {
		return 0, errors.NewProtocolError("poll", errors.ErrWindowNotAllocated).WithWindow(r.w.name)
	}
	if len(dst) != r.w.length {
		return 0, errors.NewProtocolError("poll", errors.ErrWindowLengthMismatch).WithWindow(r.w.name)
	}
	for i := range dst {
		dst[i] = math.Float64frombits(r.w.slots[i].Load())
	}
	return r.w.slots[r.w.length].Load(), nil
}

// Counter returns the write counter without copying payload. Useful for the
// cheap staleness check that gates a full poll.
func (r *Reader) Counter() uint64 {
	return r.w.Counter()
}
