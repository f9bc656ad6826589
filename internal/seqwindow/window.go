// Package seqwindow issues 16-bit wrapping ICMP sequence numbers per host and
// caps the number of outstanding (acquired but not yet released) probes so a
// silent host cannot accumulate unbounded in-flight requests.
package seqwindow

import "sync"

const DefaultMaxOutstanding = 3

type Window struct {
	mu             sync.Mutex
	maxOutstanding int
	hosts          map[string]*hostState
}

type hostState struct {
	next        uint16
	outstanding map[uint16]struct{}
}

func New(maxOutstanding int) *Window {
	if maxOutstanding <= 0 {
		maxOutstanding = DefaultMaxOutstanding
	}
	return &Window{
		maxOutstanding: maxOutstanding,
		hosts:          make(map[string]*hostState),
	}
}

// Acquire allocates the host's next sequence number and marks it outstanding.
// When the host already has maxOutstanding probes in flight it returns false;
// that is backpressure, not an error, and callers skip the tick rather than
// block. The counter wraps from 65535 back to 0.
func (w *Window) Acquire(host string) (uint16, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	st := w.hosts[host]
	if st == nil {
		st = &hostState{outstanding: make(map[uint16]struct{})}
		w.hosts[host] = st
	}

	if len(st.outstanding) >= w.maxOutstanding {
		return 0, false
	}

	seq := st.next
	st.outstanding[seq] = struct{}{}
	st.next = seq + 1 // uint16 wraparound
	return seq, true
}

// Release removes a sequence from the host's outstanding set. Every acquired
// sequence must be released exactly once, whatever the probe's outcome. The
// return value reports whether the sequence was actually outstanding.
func (w *Window) Release(host string, seq uint16) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	st := w.hosts[host]
	if st == nil {
		return false
	}
	if _, ok := st.outstanding[seq]; !ok {
		return false
	}
	delete(st.outstanding, seq)
	return true
}

// Outstanding reports how many probes are in flight for the host.
func (w *Window) Outstanding(host string) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	if st := w.hosts[host]; st != nil {
		return len(st.outstanding)
	}
	return 0
}

// OutstandingSequences returns a copy of the host's in-flight sequence set.
func (w *Window) OutstandingSequences(host string) []uint16 {
	w.mu.Lock()
	defer w.mu.Unlock()

	st := w.hosts[host]
	if st == nil {
		return nil
	}
	seqs := make([]uint16, 0, len(st.outstanding))
	for seq := range st.outstanding {
		seqs = append(seqs, seq)
	}
	return seqs
}

// ResetHost drops all tracking for one host, including its sequence counter.
func (w *Window) ResetHost(host string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.hosts, host)
}

// Reset drops all tracking for every host.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.hosts = make(map[string]*hostState)
}
