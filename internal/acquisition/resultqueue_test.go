package acquisition

import (
	"sync"
	"testing"
	"time"

	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/model"
)

func TestResultQueue_BasicPushDrain(t *testing.T) {
	q := NewResultQueue(4)

	q.Push(model.ScanResult{SessionID: 1})
	q.Push(model.ScanResult{SessionID: 2})

	out := q.DrainAll()
	if len(out) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out))
	}
	if out[0].SessionID != 1 || out[1].SessionID != 2 {
		t.Fatalf("expected FIFO order, got %+v", out)
	}

	if out2 := q.DrainAll(); out2 != nil {
		t.Fatalf("expected nil after drain, got %+v", out2)
	}
}

func TestResultQueue_DropsOldestOnOverflow(t *testing.T) {
	q := NewResultQueue(2)

	q.Push(model.ScanResult{SessionID: 1})
	q.Push(model.ScanResult{SessionID: 2})
	q.Push(model.ScanResult{SessionID: 3}) // evicts 1

	out := q.DrainAll()
	if len(out) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out))
	}
	if out[0].SessionID != 2 || out[1].SessionID != 3 {
		t.Fatalf("expected oldest entry dropped, got %+v", out)
	}
	if q.Dropped() != 1 {
		t.Fatalf("expected 1 dropped, got %d", q.Dropped())
	}
}

func TestResultQueue_WraparoundAfterPartialDrain(t *testing.T) {
	q := NewResultQueue(3)

	q.Push(model.ScanResult{SessionID: 1})
	q.Push(model.ScanResult{SessionID: 2})
	q.DrainAll()

	q.Push(model.ScanResult{SessionID: 3})
	q.Push(model.ScanResult{SessionID: 4})
	q.Push(model.ScanResult{SessionID: 5})
	q.Push(model.ScanResult{SessionID: 6}) // overflow, evicts 3

	out := q.DrainAll()
	if len(out) != 3 {
		t.Fatalf("expected 3 results, got %d", len(out))
	}
	want := []uint64{4, 5, 6}
	for i, r := range out {
		if r.SessionID != want[i] {
			t.Errorf("index %d: expected session %d, got %d", i, want[i], r.SessionID)
		}
	}
}

func TestResultQueue_ConcurrentPushDrain(t *testing.T) {
	q := NewResultQueue(16)
	var wg sync.WaitGroup
	wg.Add(1)

	stop := make(chan struct{})
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				q.DrainAll()
			}
		}
	}()

	for i := 0; i < 1000; i++ {
		q.Push(model.ScanResult{SessionID: uint64(i)})
	}
	close(stop)
	wg.Wait()

	// Final drain should never panic and should report a consistent count.
	q.DrainAll()
	_ = time.Now()
}
