// Package session wires the probing pipeline together: rate admission,
// scheduling, sequence windows, one worker per host, and a single ordered
// event stream for consumers.
package session

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hostpulsehq/prober/internal/logging"
	"github.com/hostpulsehq/prober/internal/metrics"
	"github.com/hostpulsehq/prober/internal/probe"
	"github.com/hostpulsehq/prober/internal/rateguard"
	"github.com/hostpulsehq/prober/internal/scheduler"
	"github.com/hostpulsehq/prober/internal/seqwindow"
	"github.com/hostpulsehq/prober/internal/worker"
	"github.com/hostpulsehq/prober/pkg/types"
)

const defaultEventBuffer = 256

// Config carries everything a session needs to start probing.
type Config struct {
	Hosts          []types.Host
	Interval       time.Duration
	Timeout        time.Duration
	MaxOutstanding int
	HelperPath     string
}

type Session struct {
	id       string
	cfg      Config
	logger   *log.Logger
	recorder metrics.ProbeRecorder
	invoker  worker.Invoker
	now      func() time.Time

	sched   *scheduler.Scheduler
	window  *seqwindow.Window
	limiter *rate.Limiter
	events  chan types.Event
}

type Option func(*Session)

func WithLogger(logger *log.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithRecorder(rec metrics.ProbeRecorder) Option {
	return func(s *Session) {
		if rec != nil {
			s.recorder = rec
		}
	}
}

// WithInvoker substitutes the probe invoker, mainly for tests.
func WithInvoker(inv worker.Invoker) Option {
	return func(s *Session) {
		if inv != nil {
			s.invoker = inv
		}
	}
}

func WithNow(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// New validates the host count against the global rate cap and assembles the
// session. The scheduler stagger is interval/hostCount so first probes spread
// evenly across one interval.
func New(cfg Config, opts ...Option) (*Session, error) {
	if err := rateguard.Validate(len(cfg.Hosts), cfg.Interval); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("session: timeout must be positive, got %s", cfg.Timeout)
	}
	seen := make(map[string]struct{}, len(cfg.Hosts))
	for _, h := range cfg.Hosts {
		if h.ID == "" {
			return nil, fmt.Errorf("session: host %q has no id", h.Address)
		}
		if _, dup := seen[h.ID]; dup {
			return nil, fmt.Errorf("session: duplicate host id %q", h.ID)
		}
		seen[h.ID] = struct{}{}
	}

	s := &Session{
		id:       uuid.NewString(),
		cfg:      cfg,
		logger:   logging.New(),
		recorder: metrics.NoopProbeRecorder{},
		now:      time.Now,
		window:   seqwindow.New(cfg.MaxOutstanding),
		events:   make(chan types.Event, defaultEventBuffer),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.invoker == nil {
		if cfg.HelperPath == "" {
			return nil, fmt.Errorf("session: helper path is required")
		}
		s.invoker = probe.NewInvoker(cfg.HelperPath)
	}

	stagger := cfg.Interval / time.Duration(len(cfg.Hosts))
	s.sched = scheduler.New(cfg.Interval, scheduler.WithStagger(stagger))
	for _, h := range cfg.Hosts {
		s.sched.AddHost(h.ID)
	}

	// Admission already bounds the steady-state rate; the limiter is a
	// runtime backstop against catch-up bursts after a long stall. Burst is
	// the host count so one aligned cycle always passes.
	s.limiter = rate.NewLimiter(rate.Limit(rateguard.MaxProbesPerSecond), len(cfg.Hosts))

	return s, nil
}

func (s *Session) ID() string {
	return s.id
}

// Events returns the stream of pending and resolved events. The channel is
// closed after Run returns and every worker has stopped.
func (s *Session) Events() <-chan types.Event {
	return s.events
}

// Run starts one worker per host and blocks until the context is cancelled
// and all workers have drained. It always returns the context's error.
func (s *Session) Run(ctx context.Context) error {
	s.logger.Printf("session %s: probing %d hosts every %s (timeout %s)",
		s.id, len(s.cfg.Hosts), s.cfg.Interval, s.cfg.Timeout)

	g, ctx := errgroup.WithContext(ctx)
	sink := &sessionSink{session: s}

	for _, h := range s.cfg.Hosts {
		w := worker.New(h, s.cfg.Timeout, s.sched, s.window, s.invoker, sink,
			worker.WithDispatchLimiter(s.limiter),
			worker.WithRecorder(s.recorder),
			worker.WithNow(s.now),
		)
		g.Go(func() error {
			w.Run(ctx)
			return nil
		})
	}

	err := g.Wait()
	close(s.events)
	s.logger.Printf("session %s: stopped", s.id)
	if err != nil {
		return err
	}
	return ctx.Err()
}

// sessionSink stamps events with the session id before delivery. Emit drops
// the event rather than blocking forever when the session is shutting down.
type sessionSink struct {
	session *Session
}

func (s *sessionSink) Emit(ctx context.Context, event types.Event) {
	event.SessionID = s.session.id
	select {
	case s.session.events <- event:
	case <-ctx.Done():
	}
}
