package types

import "time"

type EventType string

const (
	// EventPending is emitted the moment a sequence number has been acquired
	// for a scheduled tick, before the probe is dispatched.
	EventPending EventType = "pending"
	// EventResolved carries the outcome for a previously emitted pending
	// event with the same host and sequence.
	EventResolved EventType = "resolved"
)

// Event is the engine's externally visible surface. Consumers receive, for
// every dispatched probe, a pending event followed by its resolved event.
// Events for a single host arrive in sequence order; no ordering is promised
// across hosts.
type Event struct {
	Type        EventType `json:"type"`
	SessionID   string    `json:"session_id,omitempty"`
	Host        Host      `json:"host"`
	Sequence    uint16    `json:"seq"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Outcome     *Outcome  `json:"outcome,omitempty"`
}
