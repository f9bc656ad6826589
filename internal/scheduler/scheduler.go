// Package scheduler computes wall-clock-anchored fire times for every
// registered host. Fire times are always derived from an absolute origin
// (the shared start time for a host's first probe, its last scheduled
// dispatch afterwards) so repeated sleep error never accumulates into drift.
package scheduler

import (
	"sync"
	"time"
)

type Scheduler struct {
	mu       sync.Mutex
	interval time.Duration
	stagger  time.Duration

	// startTime is captured on the first NextFireTimes call and anchors the
	// staggered first probes of every host registered before that call.
	startTime time.Time
	order     []string
	entries   map[string]*entry
}

type entry struct {
	index    int
	late     bool // registered after the schedule origin was captured
	lastFire time.Time
	fired    bool
}

type Option func(*Scheduler)

func WithStagger(d time.Duration) Option {
	return func(s *Scheduler) {
		if d >= 0 {
			s.stagger = d
		}
	}
}

func New(interval time.Duration, opts ...Option) *Scheduler {
	s := &Scheduler{
		interval: interval,
		entries:  make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddHost registers a host under the given identifier. Registration is
// idempotent: re-adding a known host is a no-op. Hosts added after the first
// NextFireTimes call are anchored to the moment of a later computation rather
// than the shared start time, which skews their stagger slot once.
func (s *Scheduler) AddHost(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; ok {
		return
	}
	e := &entry{index: len(s.order), late: !s.startTime.IsZero()}
	s.order = append(s.order, id)
	s.entries[id] = e
}

// NextFireTimes computes the next fire time for every registered host. The
// very first call captures now as the schedule origin. A host that has not
// fired yet gets origin + index*stagger; a host with a recorded dispatch gets
// lastFire + interval. A computed time that has already fallen behind now
// (after a long pause) re-anchors to now + index*stagger so inter-host
// spacing is preserved when probing resumes.
func (s *Scheduler) NextFireTimes(now time.Time) map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.startTime.IsZero() {
		s.startTime = now
	}

	times := make(map[string]time.Time, len(s.order))
	for _, id := range s.order {
		times[id] = s.nextFireLocked(s.entries[id], now)
	}
	return times
}

// NextFireTime computes the next fire time for a single host. The second
// return value is false when the host is not registered.
func (s *Scheduler) NextFireTime(id string, now time.Time) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return time.Time{}, false
	}
	if s.startTime.IsZero() {
		s.startTime = now
	}
	return s.nextFireLocked(e, now), true
}

func (s *Scheduler) nextFireLocked(e *entry, now time.Time) time.Time {
	offset := time.Duration(e.index) * s.stagger
	if !e.fired {
		anchor := s.startTime
		if e.late {
			anchor = now
		}
		return anchor.Add(offset)
	}
	next := e.lastFire.Add(s.interval)
	if next.Before(now) {
		next = now.Add(offset)
	}
	return next
}

// MarkDispatched records sentAt as the host's last fire time. Callers pass
// the scheduled time, not the wall-clock send time, so dispatch jitter does
// not propagate into the next cycle.
func (s *Scheduler) MarkDispatched(id string, sentAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[id]; ok {
		e.lastFire = sentAt
		e.fired = true
	}
}

// SetInterval changes the probe interval. Effective from the next computed
// fire time onward; already computed times are untouched.
func (s *Scheduler) SetInterval(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d > 0 {
		s.interval = d
	}
}

// SetStagger changes the inter-host offset applied to first probes and
// re-anchored schedules.
func (s *Scheduler) SetStagger(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d >= 0 {
		s.stagger = d
	}
}

func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// ResetTiming clears per-host timing and re-anchors the stagger schedule at
// now, so the next cycle starts fresh after a dormant pause. Host
// registrations are preserved.
func (s *Scheduler) ResetTiming(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.startTime = now
	for _, e := range s.entries {
		e.lastFire = time.Time{}
		e.fired = false
		e.late = false
	}
}

// Reset returns the scheduler to its pre-first-call state, dropping all host
// registrations and the schedule origin.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.startTime = time.Time{}
	s.order = nil
	s.entries = make(map[string]*entry)
}

// HostCount reports how many hosts are registered.
func (s *Scheduler) HostCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}
