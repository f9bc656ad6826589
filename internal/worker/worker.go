// Package worker runs the per-host probe loop: wait for the host's next
// scheduled fire time, draw a sequence number, dispatch one probe through the
// invoker, and publish the pending/resolved event pair.
package worker

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/hostpulsehq/prober/internal/metrics"
	"github.com/hostpulsehq/prober/internal/probe"
	"github.com/hostpulsehq/prober/internal/scheduler"
	"github.com/hostpulsehq/prober/internal/seqwindow"
	"github.com/hostpulsehq/prober/pkg/types"
)

// Invoker performs exactly one probe attempt per call.
type Invoker interface {
	Invoke(ctx context.Context, req probe.Request) types.Outcome
}

// Sink receives the worker's event stream. Emit may block until the consumer
// keeps up or the context is cancelled; per-host ordering follows from the
// worker emitting sequentially.
type Sink interface {
	Emit(ctx context.Context, event types.Event)
}

type Worker struct {
	host    types.Host
	timeout time.Duration
	sched   *scheduler.Scheduler
	window  *seqwindow.Window
	invoker Invoker
	sink    Sink

	limiter *rate.Limiter
	metrics metrics.ProbeRecorder
	now     func() time.Time
}

type Option func(*Worker)

// WithDispatchLimiter installs a shared limiter gating probe dispatch across
// all workers. A denied reservation is treated like a full window: the tick
// is skipped, not delayed.
func WithDispatchLimiter(limiter *rate.Limiter) Option {
	return func(w *Worker) {
		w.limiter = limiter
	}
}

func WithRecorder(rec metrics.ProbeRecorder) Option {
	return func(w *Worker) {
		if rec != nil {
			w.metrics = rec
		}
	}
}

func WithNow(now func() time.Time) Option {
	return func(w *Worker) {
		if now != nil {
			w.now = now
		}
	}
}

func New(host types.Host, timeout time.Duration, sched *scheduler.Scheduler, window *seqwindow.Window, invoker Invoker, sink Sink, opts ...Option) *Worker {
	w := &Worker{
		host:    host,
		timeout: timeout,
		sched:   sched,
		window:  window,
		invoker: invoker,
		sink:    sink,
		metrics: metrics.NoopProbeRecorder{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run executes the probe loop until the context is cancelled. Cancellation is
// observed at the top of each cycle and during waits; a probe already handed
// to the invoker completes before the worker exits.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		fireAt, ok := w.sched.NextFireTime(w.host.ID, w.now())
		if !ok {
			return
		}
		if !w.sleepUntil(ctx, fireAt) {
			return
		}

		if w.limiter != nil && !w.limiter.Allow() {
			if !w.skipTick(ctx, fireAt) {
				return
			}
			continue
		}

		seq, ok := w.window.Acquire(w.host.ID)
		if !ok {
			// Backpressure: the window is full, so this tick is forfeited and
			// retried one interval later. No event is emitted.
			if !w.skipTick(ctx, fireAt) {
				return
			}
			continue
		}

		w.sink.Emit(ctx, types.Event{
			Type:        types.EventPending,
			Host:        w.host,
			Sequence:    seq,
			ScheduledAt: fireAt,
		})
		w.metrics.IncProbesSent()

		outcome := w.invoker.Invoke(ctx, probe.Request{
			Host:     w.host,
			Timeout:  w.timeout,
			Sequence: seq,
		})

		w.window.Release(w.host.ID, seq)
		w.sched.MarkDispatched(w.host.ID, fireAt)
		w.recordOutcome(outcome)

		resolved := outcome
		w.sink.Emit(ctx, types.Event{
			Type:        types.EventResolved,
			Host:        w.host,
			Sequence:    seq,
			ScheduledAt: fireAt,
			Outcome:     &resolved,
		})
	}
}

func (w *Worker) skipTick(ctx context.Context, fireAt time.Time) bool {
	w.metrics.IncTicksSkipped()
	retry := fireAt.Add(w.sched.Interval())
	// A host that has never dispatched keeps its original fire time, so after
	// repeated skips the retry point can fall behind the clock. Push it one
	// interval out to avoid a hot loop while the window stays full.
	if now := w.now(); retry.Before(now) {
		retry = now.Add(w.sched.Interval())
	}
	return w.sleepUntil(ctx, retry)
}

func (w *Worker) recordOutcome(outcome types.Outcome) {
	switch outcome.Kind {
	case types.OutcomeSuccess:
		w.metrics.ObserveSuccess(outcome.RTTMilliseconds)
	case types.OutcomeTimeout:
		w.metrics.ObserveTimeout()
	default:
		w.metrics.ObserveError()
	}
}

func (w *Worker) sleepUntil(ctx context.Context, deadline time.Time) bool {
	remaining := deadline.Sub(w.now())
	if remaining <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
