package topology

import (
	"context"
	"fmt"
	"sync"

	"github.com/spinwheel-io/spinwheel/internal/errors"
)

// ReduceOp is a commutative, associative elementwise combiner.
type ReduceOp func(a, b float64) float64

// ReduceMax keeps the larger of the two values.
func ReduceMax(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// ReduceMin keeps the smaller of the two values.
func ReduceMin(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// ErrReducerClosed is returned to members blocked in Allreduce when the
// reducer is torn down, typically because the kill signal ended the run
// while some replicas had not joined the rendezvous.
var ErrReducerClosed = errors.New("reducer closed")

// generation is one in-flight rendezvous.
type generation struct {
	acc    []float64
	joined int
	done   chan struct{}
}

// Reducer performs a blocking all-reduce across the members of one stratum.
// Every member must call Allreduce with the same operator for the same
// generation; the call returns once all members have joined, each receiving
// the fully combined vector. This is the only collective operation on the
// spoke hot path.
type Reducer struct {
	members int
	length  int

	mu      sync.Mutex
	current *generation
	closed  bool
	closeCh chan struct{}
}

// NewReducer creates a Reducer for a stratum of the given size, reducing
// vectors of the given fixed length.
func NewReducer(members, length int) *Reducer {
	return &Reducer{
		members: members,
		length:  length,
		closeCh: make(chan struct{}),
	}
}

// Allreduce combines local with every other member's contribution using op
// and returns the global result. It blocks until all members of the current
// generation have joined, the context is cancelled, or the reducer is
// closed.
//
// The result ordering is partition-invariant: op is commutative and
// associative, so any join order yields the same vector.
func (r *Reducer) Allreduce(ctx context.Context, local []float64, op ReduceOp) ([]float64, error) {
	if len(local) != r.length {
		return nil, errors.NewProtocolError("allreduce",
			fmt.Errorf("%w: reducer length %d, vector length %d",
				errors.ErrWindowLengthMismatch, r.length, len(local)))
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrReducerClosed
	}
	if r.current == nil {
		acc := make([]float64, r.length)
		copy(acc, local)
		r.current = &generation{acc: acc, joined: 1, done: make(chan struct{})}
	} else {
		for i, v := range local {
			r.current.acc[i] = op(r.current.acc[i], v)
		}
		r.current.joined++
	}
	g := r.current
	if g.joined == r.members {
		// Last member in: seal this generation and wake everyone.
		r.current = nil
		close(g.done)
	}
	r.mu.Unlock()

	select {
	case <-g.done:
		out := make([]float64, r.length)
		copy(out, g.acc)
		return out, nil
	case <-r.closeCh:
		return nil, ErrReducerClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close releases any members blocked in Allreduce. It is idempotent.
func (r *Reducer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		close(r.closeCh)
	}
}
