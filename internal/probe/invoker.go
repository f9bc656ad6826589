// Package probe drives the privileged ping-helper process: one Invoke call
// launches the helper for one probe and maps its textual output and exit
// status onto the closed outcome variant.
package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/hostpulsehq/prober/internal/helper"
	"github.com/hostpulsehq/prober/pkg/types"
)

// defaultGracePeriod is added on top of the probe timeout when bounding the
// helper's wall-clock runtime, covering resolution and process startup.
const defaultGracePeriod = time.Second

// runner executes the helper binary and reports its captured output and exit
// status. A non-nil error means the process could not be run at all.
type runner func(name string, args []string, wait time.Duration) (stdout, stderr string, exitCode int, err error)

type Invoker struct {
	helperPath string
	grace      time.Duration
	run        runner
}

type InvokerOption func(*Invoker)

// WithGracePeriod overrides the extra wall-clock allowance granted to the
// helper beyond the probe timeout.
func WithGracePeriod(d time.Duration) InvokerOption {
	return func(inv *Invoker) {
		if d > 0 {
			inv.grace = d
		}
	}
}

// WithRunner substitutes the process launcher, used by tests to script
// helper behavior without executing a binary.
func WithRunner(run runner) InvokerOption {
	return func(inv *Invoker) {
		if run != nil {
			inv.run = run
		}
	}
}

func NewInvoker(helperPath string, opts ...InvokerOption) *Invoker {
	inv := &Invoker{
		helperPath: helperPath,
		grace:      defaultGracePeriod,
		run:        runHelper,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Invoke performs exactly one probe attempt and never retries. The call
// blocks up to the request timeout plus the grace period. The context is
// consulted only before launch: an in-flight helper is allowed to finish its
// probe rather than being killed mid-exchange.
func (inv *Invoker) Invoke(ctx context.Context, req Request) types.Outcome {
	if err := ctx.Err(); err != nil {
		return types.ProbeError(types.ErrHelperFailure, err.Error())
	}

	args := []string{
		req.Host.Address,
		strconv.Itoa(int(req.Timeout / time.Millisecond)),
		strconv.Itoa(int(req.Sequence)),
	}

	stdout, stderr, exitCode, err := inv.run(inv.helperPath, args, req.Timeout+inv.grace)
	if err != nil {
		return types.ProbeError(types.ErrHelperFailure, err.Error())
	}

	switch exitCode {
	case helper.ExitSuccess:
		rttMs, ttl, parseErr := parseSuccessLine(stdout)
		if parseErr != nil {
			return types.ProbeError(types.ErrHelperFailure, parseErr.Error())
		}
		return types.Success(rttMs, ttl)
	case helper.ExitTimeout:
		return types.Timeout()
	default:
		return types.ProbeError(errorKindForExit(exitCode), strings.TrimSpace(stderr))
	}
}

func errorKindForExit(exitCode int) types.ErrorKind {
	switch exitCode {
	case helper.ExitUsage:
		return types.ErrInvalidArguments
	case helper.ExitBadArgument:
		return types.ErrArgumentOutOfRange
	case helper.ExitResolveFailed:
		return types.ErrResolutionFailed
	case helper.ExitSocketFailed:
		return types.ErrSocketOrPrivilege
	case helper.ExitSendFailed:
		return types.ErrSendFailed
	case helper.ExitWaitFailed:
		return types.ErrWaitFailed
	case helper.ExitReceiveFailed:
		return types.ErrReceiveFailed
	default:
		return types.ErrHelperFailure
	}
}

// parseSuccessLine extracts rtt and ttl from the helper's result line,
// `rtt_ms=<float> ttl=<int>`.
func parseSuccessLine(stdout string) (rttMs float64, ttl int, err error) {
	for _, line := range strings.Split(stdout, "\n") {
		if !strings.HasPrefix(line, "rtt_ms=") {
			continue
		}
		var haveRTT, haveTTL bool
		for _, token := range strings.Fields(line) {
			switch {
			case strings.HasPrefix(token, "rtt_ms="):
				rttMs, err = strconv.ParseFloat(strings.TrimPrefix(token, "rtt_ms="), 64)
				if err != nil {
					return 0, 0, fmt.Errorf("parse rtt_ms in %q: %w", line, err)
				}
				haveRTT = true
			case strings.HasPrefix(token, "ttl="):
				ttl, err = strconv.Atoi(strings.TrimPrefix(token, "ttl="))
				if err != nil {
					return 0, 0, fmt.Errorf("parse ttl in %q: %w", line, err)
				}
				haveTTL = true
			}
		}
		if haveRTT && haveTTL {
			return rttMs, ttl, nil
		}
		return 0, 0, fmt.Errorf("incomplete result line %q", line)
	}
	return 0, 0, fmt.Errorf("no result line in helper output %q", stdout)
}

// runHelper executes the helper process, bounding its runtime so a wedged
// helper cannot stall a worker indefinitely. A helper killed for overrunning
// its allowance is reported as a timeout, matching the helper's own deadline
// semantics.
func runHelper(name string, args []string, wait time.Duration) (string, string, int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runErr == nil {
		return stdout.String(), stderr.String(), helper.ExitSuccess, nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return stdout.String(), stderr.String(), helper.ExitTimeout, nil
	}
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		return stdout.String(), stderr.String(), exitErr.ExitCode(), nil
	}
	return stdout.String(), stderr.String(), -1, runErr
}
