package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hostpulsehq/prober/internal/config"
	"github.com/hostpulsehq/prober/internal/logging"
	"github.com/hostpulsehq/prober/internal/metrics"
	"github.com/hostpulsehq/prober/internal/probe"
	"github.com/hostpulsehq/prober/internal/session"
	"github.com/hostpulsehq/prober/pkg/types"
)

const defaultMetricsAddr = "127.0.0.1:9815"

func main() {
	ctx := context.Background()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = run(ctx, os.Args[2:])
	case "check":
		err = check(ctx, os.Args[2:])
	case "-h", "--help", "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "command %s failed: %v\n", cmd, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultConfigPath, "Path to prober configuration file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(ctx, *configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.New()

	if cfg.Helper.VerifySignature {
		verifier, err := probe.NewHelperVerifier(cfg.Helper.PublicKey)
		if err != nil {
			return fmt.Errorf("init helper verifier: %w", err)
		}
		if err := verifier.Verify(ctx, cfg.Helper.Path, cfg.Helper.SignaturePath); err != nil {
			return fmt.Errorf("verify helper binary: %w", err)
		}
		logger.Printf("helper signature verified (%s)", cfg.Helper.Path)
	}

	metricsStore := metrics.NewStore()

	sess, err := session.New(session.Config{
		Hosts:          cfg.HostList(),
		Interval:       cfg.Interval(),
		Timeout:        cfg.Timeout(),
		MaxOutstanding: cfg.Probes.MaxOutstanding,
		HelperPath:     cfg.Helper.Path,
	},
		session.WithLogger(logger),
		session.WithRecorder(metricsStore.ProbeRecorder()),
	)
	if err != nil {
		return fmt.Errorf("init session: %w", err)
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	grp, groupCtx := errgroup.WithContext(runCtx)

	grp.Go(func() error {
		if err := sess.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	grp.Go(func() error {
		return printEvents(sess.Events(), logger)
	})

	metricsAddr := cfg.Run.MetricsAddr
	if metricsAddr == "" {
		metricsAddr = defaultMetricsAddr
	}
	grp.Go(func() error {
		return serveMonitoring(groupCtx, metricsAddr, metricsStore, logger)
	})

	if err := grp.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		stop()
		return err
	}

	logger.Printf("prober stopped")
	return nil
}

// check loads and validates the configuration without probing anything.
func check(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultConfigPath, "Path to prober configuration file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(ctx, *configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	fmt.Printf("config ok: %d hosts every %s (timeout %s)\n",
		len(cfg.HostList()), cfg.Interval(), cfg.Timeout())
	return nil
}

// printEvents writes each event as one JSON line on stdout and returns when
// the session closes its stream. Probe errors are additionally logged, rate
// limited so a dead network does not flood the log.
func printEvents(events <-chan types.Event, logger *log.Logger) error {
	enc := json.NewEncoder(os.Stdout)
	errLog := rate.NewLimiter(rate.Every(5*time.Second), 3)

	for ev := range events {
		if err := enc.Encode(ev); err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
		if ev.Type == types.EventResolved && ev.Outcome != nil &&
			ev.Outcome.Kind == types.OutcomeError && errLog.Allow() {
			logger.Printf("probe error host=%s seq=%d: %s", ev.Host.DisplayName(), ev.Sequence, ev.Outcome)
		}
	}
	return nil
}

func serveMonitoring(ctx context.Context, addr string, store *metrics.Store, logger *log.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.NewHTTPHandler(store))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("metrics listening on http://%s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func printUsage() {
	fmt.Println("HostPulse Prober CLI")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  prober run [--config /etc/hostpulse/prober.yaml]")
	fmt.Println("  prober check [--config /etc/hostpulse/prober.yaml]")
}
