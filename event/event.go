// Package event defines the immutable event record dispatched to
// handlers, plus the wire codecs used by transport sources.
package event

import (
	"time"

	"github.com/xraph/herald/id"
)

// Event is an immutable record describing something that happened.
// It is produced by domain logic or deserialized from a transport
// message, and consumed read-only by handlers. Events carry no
// behavior and are never mutated after creation.
type Event struct {
	ID         id.EventID        `json:"id" msgpack:"id"`
	Type       string            `json:"type" msgpack:"type"`
	Payload    []byte            `json:"payload,omitempty" msgpack:"payload,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty" msgpack:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at" msgpack:"occurred_at"`
}

// New creates an event of the given type with a fresh ID and the
// current UTC timestamp.
func New(eventType string, payload []byte) *Event {
	return &Event{
		ID:         id.NewEventID(),
		Type:       eventType,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}

// WithMetadata returns a copy of the event carrying the given metadata.
// The original event is left untouched.
func (e *Event) WithMetadata(md map[string]string) *Event {
	cp := *e
	cp.Metadata = make(map[string]string, len(md))
	for k, v := range md {
		cp.Metadata[k] = v
	}

	return &cp
}
