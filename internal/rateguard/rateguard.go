// Package rateguard validates a probing configuration against the global
// admission bound before any worker starts. The engine never sends more than
// MaxProbesPerSecond echo requests per second in aggregate; configurations
// that would exceed the bound are rejected outright rather than throttled.
package rateguard

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// MaxProbesPerSecond is the global admission cap: hostCount / interval must
// not exceed this rate.
const MaxProbesPerSecond = 50.0

// ErrInvalidParameters reports a host count or interval outside the domain of
// the admission check itself.
var ErrInvalidParameters = errors.New("rateguard: host count and interval must be positive")

// RejectionError reports a configuration whose aggregate probe rate exceeds
// MaxProbesPerSecond, along with the two remediations that would bring it
// back under the bound.
type RejectionError struct {
	HostCount int
	Interval  time.Duration
	// Rate is the observed aggregate rate in probes per second.
	Rate float64
	// MinInterval is the smallest interval that admits HostCount hosts.
	MinInterval time.Duration
	// MaxHosts is the largest host count that Interval admits.
	MaxHosts int
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf(
		"rateguard: %.1f probes/sec for %d hosts at %s exceeds the %.0f probes/sec cap: increase the interval to at least %s or probe at most %d hosts",
		e.Rate, e.HostCount, e.Interval, MaxProbesPerSecond, e.MinInterval, e.MaxHosts,
	)
}

// Validate accepts iff hostCount / interval <= MaxProbesPerSecond. It is pure
// and deterministic; callers run it exactly once before starting workers, and
// a rejection is fatal to the whole session.
func Validate(hostCount int, interval time.Duration) error {
	if hostCount <= 0 || interval <= 0 {
		return ErrInvalidParameters
	}

	rate := float64(hostCount) / interval.Seconds()
	if rate <= MaxProbesPerSecond {
		return nil
	}

	minInterval := time.Duration(float64(hostCount) / MaxProbesPerSecond * float64(time.Second))
	maxHosts := int(math.Floor(MaxProbesPerSecond * interval.Seconds()))
	return &RejectionError{
		HostCount:   hostCount,
		Interval:    interval,
		Rate:        rate,
		MinInterval: minInterval,
		MaxHosts:    maxHosts,
	}
}
