// Package helper implements the privileged ICMP echo exchange behind the
// ping-helper binary. One invocation sends exactly one echo request and waits
// for a matching reply or the deadline, reporting the result through the exit
// status so the unprivileged engine never needs raw socket access itself.
//
// CLI contract (bit-exact, relied on by the invoker):
//
//	ping-helper <host> <timeout_ms> [sequence]
//
// Exit statuses: 0 success (stdout "rtt_ms=<float> ttl=<int>"), 1 invalid
// argument count, 2 argument out of range, 3 resolution failed, 4 socket or
// privilege failure, 5 send failed, 6 wait primitive failed, 7 timeout (not
// an error, no output), 8 receive failed.
package helper

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"golang.org/x/sys/unix"
)

const (
	ExitSuccess       = 0
	ExitUsage         = 1
	ExitBadArgument   = 2
	ExitResolveFailed = 3
	ExitSocketFailed  = 4
	ExitSendFailed    = 5
	ExitWaitFailed    = 6
	ExitTimeout       = 7
	ExitReceiveFailed = 8
)

const (
	packetSize       = 64
	maxTimeoutMillis = 60000
	maxReadSize      = 1024
	defaultSequence  = 1
)

type params struct {
	host    string
	timeout time.Duration
	seq     uint16
}

// Run executes one probe with the given positional arguments and returns the
// process exit status. Diagnostics go to stderr; stdout carries only the
// success result line.
func Run(args []string, stdout, stderr io.Writer) int {
	p, code := parseArgs(args, stderr)
	if code != ExitSuccess {
		return code
	}

	target, err := resolveIPv4(p.host)
	if err != nil {
		fmt.Fprintf(stderr, "Error: cannot resolve host %s: %v\n", p.host, err)
		return ExitResolveFailed
	}

	fd, err := openSocket(target)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if errors.Is(err, unix.EPERM) || errors.Is(err, unix.EACCES) {
			fmt.Fprintln(stderr, "Note: sending raw ICMP requires cap_net_raw or root privileges")
		}
		return ExitSocketFailed
	}
	defer unix.Close(fd)

	id := uint16(os.Getpid() & 0xffff)
	request, err := buildEchoRequest(id, p.seq)
	if err != nil {
		fmt.Fprintf(stderr, "Error: build echo request: %v\n", err)
		return ExitSendFailed
	}

	sentAt := time.Now()
	if err := send(fd, request); err != nil {
		fmt.Fprintf(stderr, "Error: send failed: %v\n", err)
		return ExitSendFailed
	}

	deadline := sentAt.Add(p.timeout)
	buf := make([]byte, maxReadSize)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ExitTimeout
		}

		ready, err := waitReadable(fd, remaining)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			fmt.Fprintf(stderr, "Error: select failed: %v\n", err)
			return ExitWaitFailed
		}
		if !ready {
			return ExitTimeout
		}

		n, err := receive(fd, buf)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			fmt.Fprintf(stderr, "Error: receive failed: %v\n", err)
			return ExitReceiveFailed
		}

		// Anything that is not our reply is silently discarded and the wait
		// continues against the same deadline.
		ttl, ok := matchEchoReply(buf[:n], id, p.seq, target)
		if !ok {
			continue
		}

		rtt := time.Since(sentAt)
		fmt.Fprintf(stdout, "rtt_ms=%.3f ttl=%d\n", float64(rtt.Nanoseconds())/1e6, ttl)
		return ExitSuccess
	}
}

func parseArgs(args []string, stderr io.Writer) (params, int) {
	if len(args) < 2 || len(args) > 3 {
		fmt.Fprintln(stderr, "Usage: ping-helper <host> <timeout_ms> [sequence]")
		return params{}, ExitUsage
	}

	p := params{host: args[0], seq: defaultSequence}

	timeoutMillis, err := parseIntArg(args[1])
	if err != nil {
		fmt.Fprintln(stderr, "Error: timeout_ms must be an integer value")
		return params{}, ExitBadArgument
	}
	if timeoutMillis <= 0 {
		fmt.Fprintln(stderr, "Error: timeout_ms must be positive")
		return params{}, ExitBadArgument
	}
	if timeoutMillis > maxTimeoutMillis {
		fmt.Fprintf(stderr, "Error: timeout_ms must be %dms or less\n", maxTimeoutMillis)
		return params{}, ExitBadArgument
	}
	p.timeout = time.Duration(timeoutMillis) * time.Millisecond

	if len(args) == 3 {
		seq, err := parseIntArg(args[2])
		if err != nil {
			fmt.Fprintln(stderr, "Error: sequence must be an integer")
			return params{}, ExitBadArgument
		}
		if seq < 0 || seq > 65535 {
			fmt.Fprintln(stderr, "Error: sequence must be between 0 and 65535")
			return params{}, ExitBadArgument
		}
		p.seq = uint16(seq)
	}

	return p, ExitSuccess
}

func parseIntArg(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func resolveIPv4(host string) (net.IP, error) {
	addr, err := net.ResolveIPAddr("ip4", host)
	if err != nil {
		return nil, err
	}
	ip := addr.IP.To4()
	if ip == nil {
		return nil, fmt.Errorf("no IPv4 address for %s", host)
	}
	return ip, nil
}
