package window

import (
	"math"
	"sync"
	"testing"

	"github.com/spinwheel-io/spinwheel/internal/errors"
)

func TestAllocateInitializesSentinel(t *testing.T) {
	g := NewGroup("star-0")
	w, err := g.Allocate("hub", "nonants[0]", 3)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	if w.Counter() != 0 {
		t.Errorf("counter = %d, want 0 before first publish", w.Counter())
	}

	r, err := g.Reader("nonants[0]", 3)
	if err != nil {
		t.Fatalf("Reader failed: %v", err)
	}
	dst := make([]float64, 3)
	ctr, err := r.Poll(dst)
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if ctr != 0 {
		t.Errorf("polled counter = %d, want 0", ctr)
	}
	for i, v := range dst {
		if !math.IsNaN(v) {
			t.Errorf("slot %d = %v, want NaN sentinel", i, v)
		}
	}
}

func TestPublishIncrementsCounter(t *testing.T) {
	g := NewGroup("star-0")
	w, err := g.Allocate("hub", "nonants[0]", 2)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	r, err := g.Reader("nonants[0]", 2)
	if err != nil {
		t.Fatalf("Reader failed: %v", err)
	}

	dst := make([]float64, 2)
	for i := 1; i <= 5; i++ {
		if err := w.Publish([]float64{float64(i), float64(-i)}); err != nil {
			t.Fatalf("Publish %d failed: %v", i, err)
		}
		ctr, err := r.Poll(dst)
		if err != nil {
			t.Fatalf("Poll %d failed: %v", i, err)
		}
		if ctr != uint64(i) {
			t.Errorf("counter after publish %d = %d, want %d", i, ctr, i)
		}
		if dst[0] != float64(i) || dst[1] != float64(-i) {
			t.Errorf("payload after publish %d = %v", i, dst)
		}
	}
}

func TestNewDataFiresOncePerPublish(t *testing.T) {
	// For any sequence of publishes, a counter-delta check fires exactly
	// once per publish, never twice for the same counter value.
	g := NewGroup("star-0")
	w, _ := g.Allocate("hub", "nonants[0]", 1)
	r, _ := g.Reader("nonants[0]", 1)

	var lastSeen uint64
	dst := make([]float64, 1)
	fires := 0

	check := func() {
		ctr, err := r.Poll(dst)
		if err != nil {
			t.Fatalf("Poll failed: %v", err)
		}
		if ctr > lastSeen {
			fires++
			lastSeen = ctr
		}
	}

	check() // nothing published yet
	if fires != 0 {
		t.Fatalf("new-data fired before any publish")
	}

	for i := 0; i < 7; i++ {
		w.Publish([]float64{float64(i)})
		check()
		check() // second poll on the same counter must not fire
	}

	if fires != 7 {
		t.Errorf("new-data fired %d times for 7 publishes", fires)
	}
}

func TestReaderLengthMismatch(t *testing.T) {
	g := NewGroup("star-0")
	if _, err := g.Allocate("hub", "nonants[0]", 4); err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	_, err := g.Reader("nonants[0]", 5)
	if err == nil {
		t.Fatal("Reader with wrong length should fail")
	}
	if !errors.Is(err, errors.ErrWindowLengthMismatch) {
		t.Errorf("error = %v, want ErrWindowLengthMismatch", err)
	}
}

func TestDoubleAllocate(t *testing.T) {
	g := NewGroup("star-0")
	if _, err := g.Allocate("hub", "kill", 1); err != nil {
		t.Fatalf("first Allocate failed: %v", err)
	}
	_, err := g.Allocate("hub", "kill", 1)
	if !errors.Is(err, errors.ErrWindowAlreadyAllocated) {
		t.Errorf("error = %v, want ErrWindowAlreadyAllocated", err)
	}
}

func TestPublishAfterFree(t *testing.T) {
	g := NewGroup("star-0")
	w, _ := g.Allocate("hub", "nonants[0]", 1)
	r, _ := g.Reader("nonants[0]", 1)

	g.FreeOwned("hub")

	if err := w.Publish([]float64{1}); !errors.Is(err, errors.ErrWindowNotAllocated) {
		t.Errorf("Publish after free = %v, want ErrWindowNotAllocated", err)
	}
	if _, err := r.Poll(make([]float64, 1)); !errors.Is(err, errors.ErrWindowNotAllocated) {
		t.Errorf("Poll after free = %v, want ErrWindowNotAllocated", err)
	}
}

func TestFreeIsIdempotent(t *testing.T) {
	g := NewGroup("star-0")
	g.Allocate("hub", "nonants[0]", 1)

	g.FreeOwned("hub")
	g.FreeOwned("hub")    // second free is a no-op
	g.FreeOwned("spoke1") // freeing without allocating is a no-op
}

func TestReaderOfUnknownWindow(t *testing.T) {
	g := NewGroup("star-0")
	_, err := g.Reader("bound[3]", 1)
	if !errors.Is(err, errors.ErrWindowNotAllocated) {
		t.Errorf("error = %v, want ErrWindowNotAllocated", err)
	}
}

func TestConcurrentPublishPoll(t *testing.T) {
	// One writer, several pollers. The counter must be monotonic from every
	// reader's point of view and every fully-quiesced payload must match the
	// last publish.
	g := NewGroup("star-0")
	w, _ := g.Allocate("hub", "nonants[0]", 8)

	const publishes = 1000
	const readers = 4

	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		r, err := g.Reader("nonants[0]", 8)
		if err != nil {
			t.Fatalf("Reader failed: %v", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			var last uint64
			dst := make([]float64, 8)
			for {
				ctr, err := r.Poll(dst)
				if err != nil {
					t.Errorf("Poll failed: %v", err)
					return
				}
				if ctr < last {
					t.Errorf("counter regressed: %d -> %d", last, ctr)
					return
				}
				last = ctr
				if ctr == publishes {
					return
				}
			}
		}()
	}

	payload := make([]float64, 8)
	for i := 1; i <= publishes; i++ {
		for j := range payload {
			payload[j] = float64(i + j)
		}
		if err := w.Publish(payload); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}
	wg.Wait()

	// After quiescence every reader sees the final payload.
	r, _ := g.Reader("nonants[0]", 8)
	dst := make([]float64, 8)
	ctr, _ := r.Poll(dst)
	if ctr != publishes {
		t.Fatalf("final counter = %d, want %d", ctr, publishes)
	}
	for j := range dst {
		if dst[j] != float64(publishes+j) {
			t.Errorf("final slot %d = %v, want %v", j, dst[j], float64(publishes+j))
		}
	}
}
