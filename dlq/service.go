package dlq

import (
	"context"
	"time"

	"github.com/xraph/herald/event"
	"github.com/xraph/herald/id"
)

// Service provides high-level DLQ operations over a Store.
type Service struct {
	store Store
}

// NewService creates a DLQ service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Push builds a DLQ Entry from a terminally failed handler execution
// and persists it. The error string is captured from the final handler
// error.
func (s *Service) Push(ctx context.Context, evt *event.Event, handlerName string, attempts, maxRetries int, handlerErr error) error {
	now := time.Now().UTC()
	entry := &Entry{
		ID:          id.NewDLQID(),
		EventID:     evt.ID,
		EventType:   evt.Type,
		HandlerName: handlerName,
		Payload:     evt.Payload,
		Metadata:    evt.Metadata,
		Error:       handlerErr.Error(),
		Attempts:    attempts,
		MaxRetries:  maxRetries,
		OccurredAt:  evt.OccurredAt,
		FailedAt:    now,
		CreatedAt:   now,
	}
	return s.store.PushDLQ(ctx, entry)
}

// Store returns the underlying DLQ store for direct access to List,
// Get, Purge, and Count operations.
func (s *Service) Store() Store {
	return s.store
}
