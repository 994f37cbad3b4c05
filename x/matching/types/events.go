package types

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types for the Matching module
// All event types use lowercase with underscore separator (module_action format)
const (
	// Resource events
	EventTypeResourceRegistered   = "matching_resource_registered"
	EventTypeResourceActivated    = "matching_resource_activated"
	EventTypeResourceDeactivated  = "matching_resource_deactivated"
	EventTypeResourcePriceUpdated = "matching_resource_price_updated"

	// Request events
	EventTypeRequestSubmitted = "matching_request_submitted"
	EventTypeRequestMatched   = "matching_request_matched"
	EventTypeRequestStarted   = "matching_request_started"
	EventTypeRequestCompleted = "matching_request_completed"
	EventTypeRequestFailed    = "matching_request_failed"
	EventTypeRequestCancelled = "matching_request_cancelled"

	// Ledger events
	EventTypeReputationUpdated = "matching_reputation_updated"
	EventTypeSettlement        = "matching_settlement"

	// Consistency events
	EventTypeConsistencyFault = "matching_consistency_fault"
)

// Event attribute keys
const (
	AttributeKeyResourceID     = "resource_id"
	AttributeKeyRequestID      = "request_id"
	AttributeKeyProvider       = "provider"
	AttributeKeyRequester      = "requester"
	AttributeKeyCaller         = "caller"
	AttributeKeyPrice          = "price_per_unit"
	AttributeKeyLocation       = "location"
	AttributeKeyStatus         = "status"
	AttributeKeyDuration       = "duration"
	AttributeKeyReputation     = "reputation"
	AttributeKeyTotalUsageTime = "total_usage_time"
	AttributeKeyAmount         = "amount"
	AttributeKeyActiveMatches  = "active_matches"
	AttributeKeyReason         = "reason"
)

// Attribute is a single key/value pair on an event.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Event records one observable state change.
type Event struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	Attributes []Attribute `json:"attributes"`
	Time       time.Time   `json:"time"`
}

// NewEvent builds an event with a fresh id. attrs are key/value pairs.
func NewEvent(eventType string, attrs ...string) Event {
	ev := Event{
		ID:   uuid.NewString(),
		Type: eventType,
		Time: time.Now().UTC(),
	}
	for i := 0; i+1 < len(attrs); i += 2 {
		ev.Attributes = append(ev.Attributes, Attribute{Key: attrs[i], Value: attrs[i+1]})
	}
	return ev
}

// Attribute returns the value for key, if present.
func (e Event) Attribute(key string) (string, bool) {
	for _, a := range e.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// EventSink receives events after the state change they describe is committed.
type EventSink interface {
	Emit(ctx context.Context, ev Event)
}

// NopEventSink discards events.
type NopEventSink struct{}

// Emit implements EventSink.
func (NopEventSink) Emit(context.Context, Event) {}

// EventBuffer keeps the most recent events in a fixed-size ring.
type EventBuffer struct {
	mu     sync.RWMutex
	events []Event
	next   int
	full   bool
}

var _ EventSink = (*EventBuffer)(nil)

// NewEventBuffer creates a buffer holding up to capacity events.
func NewEventBuffer(capacity int) *EventBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &EventBuffer{events: make([]Event, capacity)}
}

// Emit implements EventSink.
func (b *EventBuffer) Emit(_ context.Context, ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events[b.next] = ev
	b.next = (b.next + 1) % len(b.events)
	if b.next == 0 {
		b.full = true
	}
}

// Recent returns up to limit events, oldest first. A limit <= 0 returns all.
func (b *EventBuffer) Recent(limit int) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var ordered []Event
	if b.full {
		ordered = append(ordered, b.events[b.next:]...)
	}
	ordered = append(ordered, b.events[:b.next]...)

	if limit > 0 && len(ordered) > limit {
		ordered = ordered[len(ordered)-limit:]
	}
	return ordered
}

// MultiSink fans an event out to several sinks in order.
type MultiSink []EventSink

// Emit implements EventSink.
func (m MultiSink) Emit(ctx context.Context, ev Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, ev)
		}
	}
}
