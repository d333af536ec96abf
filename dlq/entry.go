package dlq

import (
	"time"

	"github.com/xraph/herald/id"
)

// Entry represents one terminally failed handler execution moved to the
// dead letter queue for inspection or replay.
type Entry struct {
	ID          id.DLQID          `json:"id"`
	EventID     id.EventID        `json:"event_id"`
	EventType   string            `json:"event_type"`
	HandlerName string            `json:"handler_name"`
	Payload     []byte            `json:"payload,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Error       string            `json:"error"`
	Attempts    int               `json:"attempts"`
	MaxRetries  int               `json:"max_retries"`
	OccurredAt  time.Time         `json:"occurred_at"`
	FailedAt    time.Time         `json:"failed_at"`
	ReplayedAt  *time.Time        `json:"replayed_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}
