package seqwindow

import (
	"sync"
	"testing"
)

func TestAcquireCapsOutstanding(t *testing.T) {
	w := New(3)

	for i := 0; i < 3; i++ {
		seq, ok := w.Acquire("host-a")
		if !ok {
			t.Fatalf("acquire %d unexpectedly refused", i)
		}
		if seq != uint16(i) {
			t.Fatalf("expected sequence %d, got %d", i, seq)
		}
	}

	if _, ok := w.Acquire("host-a"); ok {
		t.Fatalf("fourth acquire should signal backpressure")
	}
	if got := w.Outstanding("host-a"); got != 3 {
		t.Fatalf("expected 3 outstanding, got %d", got)
	}

	if !w.Release("host-a", 1) {
		t.Fatalf("release of outstanding sequence failed")
	}
	seq, ok := w.Acquire("host-a")
	if !ok {
		t.Fatalf("acquire after release refused")
	}
	if seq != 3 {
		t.Fatalf("expected sequence 3 after release, got %d", seq)
	}
}

func TestHostsAreIndependent(t *testing.T) {
	w := New(1)

	if _, ok := w.Acquire("host-a"); !ok {
		t.Fatalf("host-a acquire refused")
	}
	if _, ok := w.Acquire("host-a"); ok {
		t.Fatalf("host-a should be at its window limit")
	}
	if _, ok := w.Acquire("host-b"); !ok {
		t.Fatalf("host-b must not be blocked by host-a's window")
	}
}

func TestReleaseUnknownSequence(t *testing.T) {
	w := New(3)
	if w.Release("host-a", 7) {
		t.Fatalf("release of never-acquired sequence reported true")
	}
	w.Acquire("host-a")
	if w.Release("host-a", 9) {
		t.Fatalf("release of wrong sequence reported true")
	}
	if !w.Release("host-a", 0) {
		t.Fatalf("release of acquired sequence reported false")
	}
	if w.Release("host-a", 0) {
		t.Fatalf("double release reported true")
	}
}

func TestSequenceWraparound(t *testing.T) {
	w := New(3)

	var prev uint16
	for i := 0; i < 65536*2; i++ {
		seq, ok := w.Acquire("host-a")
		if !ok {
			t.Fatalf("iteration %d: acquire refused with empty window", i)
		}
		want := uint16(i)
		if seq != want {
			t.Fatalf("iteration %d: expected sequence %d, got %d", i, want, seq)
		}
		if i > 0 && seq != prev+1 {
			t.Fatalf("iteration %d: gap after %d", i, prev)
		}
		prev = seq
		if !w.Release("host-a", seq) {
			t.Fatalf("iteration %d: release failed", i)
		}
	}
}

func TestConcurrentAcquireRelease(t *testing.T) {
	w := New(3)
	var wg sync.WaitGroup
	hosts := []string{"host-a", "host-b", "host-c", "host-d"}

	for _, host := range hosts {
		wg.Add(1)
		go func(host string) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				seq, ok := w.Acquire(host)
				if !ok {
					continue
				}
				if !w.Release(host, seq) {
					t.Errorf("host %s: release of %d failed", host, seq)
					return
				}
			}
		}(host)
	}
	wg.Wait()

	for _, host := range hosts {
		if got := w.Outstanding(host); got != 0 {
			t.Fatalf("host %s: %d sequences leaked", host, got)
		}
	}
}

func TestResetHost(t *testing.T) {
	w := New(2)
	w.Acquire("host-a")
	w.Acquire("host-b")

	w.ResetHost("host-a")
	if got := w.Outstanding("host-a"); got != 0 {
		t.Fatalf("expected host-a cleared, got %d outstanding", got)
	}
	if seq, ok := w.Acquire("host-a"); !ok || seq != 0 {
		t.Fatalf("expected counter restart for reset host, got %d/%v", seq, ok)
	}
	if got := w.Outstanding("host-b"); got != 1 {
		t.Fatalf("host-b disturbed by ResetHost: %d", got)
	}
}
