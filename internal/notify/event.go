// Package notify delivers state-change events to riders and filmers.
//
// Emitting is fire-and-forget: the Dispatcher queues events and fans them out to
// sinks (log, Kafka, Redis pub/sub, S3 archive, websocket hub) on worker goroutines.
// A failing or slow sink never affects the operation that emitted the event.
package notify

import (
	"context"
	"time"
)

// Kind identifies what happened
type Kind string

const (
	KindNewRequest           Kind = "new_request"
	KindRequestAccepted      Kind = "request_accepted"
	KindRequestDeclined      Kind = "request_declined"
	KindCounterOffer         Kind = "counter_offer"
	KindCounterOfferAccepted Kind = "counter_offer_accepted"
	KindSessionReminder      Kind = "session_reminder"
)

// Event is a notification addressed to one or more users
type Event struct {
	ID         string         `json:"id"`
	Kind       Kind           `json:"kind"`
	Recipients []string       `json:"recipients"`
	SessionID  string         `json:"session_id,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Emitter accepts events for asynchronous delivery. Emit never blocks on delivery
// and never reports delivery failures.
type Emitter interface {
	Emit(ctx context.Context, evt Event)
}

// Sink delivers a single event somewhere
type Sink interface {
	Name() string
	Deliver(ctx context.Context, evt Event) error
}

// Nop discards every event
type Nop struct{}

func (Nop) Emit(context.Context, Event) {}
