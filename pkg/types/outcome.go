package types

import "fmt"

// OutcomeKind discriminates the closed set of probe outcomes.
type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeTimeout OutcomeKind = "timeout"
	OutcomeError   OutcomeKind = "error"
)

// ErrorKind categorizes probe failures. The set mirrors the helper's exit
// taxonomy plus one local kind for launch failures on the invoking side.
type ErrorKind string

const (
	ErrInvalidArguments   ErrorKind = "invalid-arguments"
	ErrArgumentOutOfRange ErrorKind = "argument-out-of-range"
	ErrResolutionFailed   ErrorKind = "resolution-failed"
	ErrSocketOrPrivilege  ErrorKind = "socket-or-privilege"
	ErrSendFailed         ErrorKind = "send-failed"
	ErrWaitFailed         ErrorKind = "wait-primitive-failed"
	ErrReceiveFailed      ErrorKind = "receive-failed"
	ErrHelperFailure      ErrorKind = "helper-failure"
)

// Outcome is the resolved result of exactly one probe attempt.
// Kind selects which of the remaining fields are meaningful: RTT and TTL for
// success, Error and Detail for errors, neither for timeout.
type Outcome struct {
	Kind            OutcomeKind `json:"kind"`
	RTTMilliseconds float64     `json:"rtt_ms,omitempty"`
	TTL             int         `json:"ttl,omitempty"`
	Error           ErrorKind   `json:"error,omitempty"`
	Detail          string      `json:"detail,omitempty"`
}

// Success constructs a successful outcome with the measured round-trip time
// and the TTL extracted from the reply's IP header.
func Success(rttMs float64, ttl int) Outcome {
	return Outcome{Kind: OutcomeSuccess, RTTMilliseconds: rttMs, TTL: ttl}
}

// Timeout constructs a timeout outcome. Timeouts are expected under packet
// loss and are not errors.
func Timeout() Outcome {
	return Outcome{Kind: OutcomeTimeout}
}

// ProbeError constructs an error outcome. Detail carries any diagnostic text
// captured from the helper; it is informational and never parsed.
func ProbeError(kind ErrorKind, detail string) Outcome {
	return Outcome{Kind: OutcomeError, Error: kind, Detail: detail}
}

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeSuccess:
		return fmt.Sprintf("success rtt_ms=%.3f ttl=%d", o.RTTMilliseconds, o.TTL)
	case OutcomeTimeout:
		return "timeout"
	case OutcomeError:
		if o.Detail != "" {
			return fmt.Sprintf("error %s: %s", o.Error, o.Detail)
		}
		return fmt.Sprintf("error %s", o.Error)
	default:
		return string(o.Kind)
	}
}
