package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
)

// Store maintains in-memory gauges and counters for engine telemetry.
type Store struct {
	probesSent     atomic.Uint64
	probesSucceed  atomic.Uint64
	probesTimedOut atomic.Uint64
	probesFailed   atomic.Uint64
	ticksSkipped   atomic.Uint64
	inFlight       atomic.Int64
	lastRTTMicros  atomic.Int64
}

// NewStore constructs a Store with zeroed metrics.
func NewStore() *Store {
	return &Store{}
}

// Snapshot captures the current metric values in a plain struct.
type Snapshot struct {
	ProbesSentTotal     uint64
	ProbesSucceedTotal  uint64
	ProbesTimedOutTotal uint64
	ProbesFailedTotal   uint64
	TicksSkippedTotal   uint64
	InFlight            int64
	LastRTTMilliseconds float64
}

// Snapshot returns a point-in-time copy of the metrics.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		ProbesSentTotal:     s.probesSent.Load(),
		ProbesSucceedTotal:  s.probesSucceed.Load(),
		ProbesTimedOutTotal: s.probesTimedOut.Load(),
		ProbesFailedTotal:   s.probesFailed.Load(),
		TicksSkippedTotal:   s.ticksSkipped.Load(),
		InFlight:            s.inFlight.Load(),
		LastRTTMilliseconds: float64(s.lastRTTMicros.Load()) / 1000.0,
	}
}

// ProbeRecorder returns an implementation of ProbeRecorder backed by the store.
func (s *Store) ProbeRecorder() ProbeRecorder {
	return probeRecorder{store: s}
}

type probeRecorder struct {
	store *Store
}

func (r probeRecorder) IncProbesSent() {
	r.store.probesSent.Add(1)
	r.store.inFlight.Add(1)
}

func (r probeRecorder) ObserveSuccess(rttMs float64) {
	r.store.probesSucceed.Add(1)
	r.store.inFlight.Add(-1)
	r.store.lastRTTMicros.Store(int64(rttMs * 1000))
}

func (r probeRecorder) ObserveTimeout() {
	r.store.probesTimedOut.Add(1)
	r.store.inFlight.Add(-1)
}

func (r probeRecorder) ObserveError() {
	r.store.probesFailed.Add(1)
	r.store.inFlight.Add(-1)
}

func (r probeRecorder) IncTicksSkipped() {
	r.store.ticksSkipped.Add(1)
}

// WritePrometheus renders the current metrics using the Prometheus text format.
func (s *Store) WritePrometheus(w io.Writer) error {
	snap := s.Snapshot()
	lines := []string{
		"# HELP prober_probes_sent_total Total echo requests dispatched to the helper.",
		"# TYPE prober_probes_sent_total counter",
		fmt.Sprintf("prober_probes_sent_total %d", snap.ProbesSentTotal),
		"# HELP prober_probes_succeeded_total Total probes that received a matching reply.",
		"# TYPE prober_probes_succeeded_total counter",
		fmt.Sprintf("prober_probes_succeeded_total %d", snap.ProbesSucceedTotal),
		"# HELP prober_probes_timed_out_total Total probes that expired with no matching reply.",
		"# TYPE prober_probes_timed_out_total counter",
		fmt.Sprintf("prober_probes_timed_out_total %d", snap.ProbesTimedOutTotal),
		"# HELP prober_probes_failed_total Total probes that resolved with an error outcome.",
		"# TYPE prober_probes_failed_total counter",
		fmt.Sprintf("prober_probes_failed_total %d", snap.ProbesFailedTotal),
		"# HELP prober_ticks_skipped_total Total scheduled ticks skipped due to backpressure.",
		"# TYPE prober_ticks_skipped_total counter",
		fmt.Sprintf("prober_ticks_skipped_total %d", snap.TicksSkippedTotal),
		"# HELP prober_probes_in_flight Probes currently awaiting resolution.",
		"# TYPE prober_probes_in_flight gauge",
		fmt.Sprintf("prober_probes_in_flight %d", snap.InFlight),
		"# HELP prober_last_rtt_milliseconds Round-trip time of the most recent successful probe.",
		"# TYPE prober_last_rtt_milliseconds gauge",
		fmt.Sprintf("prober_last_rtt_milliseconds %.3f", snap.LastRTTMilliseconds),
		"",
	}
	for _, line := range lines {
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// NewHTTPHandler returns an http.Handler that serves Prometheus formatted metrics.
func NewHTTPHandler(store *Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		if r.Method == http.MethodHead {
			return
		}
		if err := store.WritePrometheus(w); err != nil {
			http.Error(w, "metrics unavailable", http.StatusInternalServerError)
		}
	})
}
