package event

import "context"

// Journal records dispatched events for later inspection. It is an
// observability surface, never part of dispatch control flow.
type Journal interface {
	// AppendEvent records one dispatched event.
	AppendEvent(ctx context.Context, evt *Event) error

	// ListEvents returns the most recently appended events, newest
	// first, up to limit. Zero means no limit.
	ListEvents(ctx context.Context, limit int) ([]*Event, error)
}
