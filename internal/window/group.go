package window

import (
	"fmt"
	"sync"

	"github.com/spinwheel-io/spinwheel/internal/errors"
)

// Group is the collective allocation scope for a set of windows: one star of
// cooperating ranks (a hub plus its spokes). Each window is allocated by its
// owner and then opened by readers, which re-declare the length they expect.
// The Group detects writer/reader length disagreement once, at wiring time.
//
// A Group is safe for concurrent use, but allocation and freeing are setup
// and teardown operations; the hot path (Publish/Poll) never touches the
// Group's lock.
type Group struct {
	name string

	mu      sync.Mutex
	windows map[string]*Window
	owned   map[string][]*Window // owner -> windows, for FreeOwned
}

// NewGroup creates an empty allocation group with the given name.
func NewGroup(name string) *Group {
	return &Group{
		name:    name,
		windows: make(map[string]*Window),
		owned:   make(map[string][]*Window),
	}
}

// Name returns the group's name.
func (g *Group) Name() string { return g.name }

// Allocate creates a window named name with length payload slots, owned by
// owner. Allocating the same name twice is a protocol-misuse error.
func (g *Group) Allocate(owner, name string, length int) (*Window, error) {
	if length <= 0 {
		return nil, errors.NewProtocolError("allocate",
			fmt.Errorf("window %q: non-positive length %d", name, length))
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.windows[name]; exists {
		return nil, errors.NewProtocolError("allocate", errors.ErrWindowAlreadyAllocated).WithWindow(name)
	}

	w := newWindow(owner, name, length)
	g.windows[name] = w
	g.owned[owner] = append(g.owned[owner], w)
	return w, nil
}

// Reader opens a read handle on the window named name. wantLen is the
// length the reader expects; a mismatch with the owner's declared length is
// a fatal configuration error, reported here and never again.
func (g *Group) Reader(name string, wantLen int) (*Reader, error) {
	g.mu.Lock()
	w, ok := g.windows[name]
	g.mu.Unlock()

	if !ok {
		return nil, errors.NewProtocolError("reader", errors.ErrWindowNotAllocated).WithWindow(name)
	}
	if w.length != wantLen {
		return nil, errors.NewProtocolError("reader",
			fmt.Errorf("%w: owner declared %d, reader expects %d",
				errors.ErrWindowLengthMismatch, w.length, wantLen)).WithWindow(name)
	}
	return &Reader{w: w}, nil
}

// FreeOwned releases every window owned by owner. It is idempotent, and
// freeing with nothing allocated is a no-op rather than an error.
func (g *Group) FreeOwned(owner string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, w := range g.owned[owner] {
		w.free()
		delete(g.windows, w.name)
	}
	delete(g.owned, owner)
}
