package dlq

import (
	"context"
	"time"

	"github.com/xraph/herald/id"
)

// ListOpts controls pagination and filtering for DLQ list queries.
type ListOpts struct {
	// Limit is the maximum number of entries to return. Zero means no limit.
	Limit int
	// Offset is the number of entries to skip.
	Offset int
	// EventType filters by event type. Empty means all types.
	EventType string
	// OnlyUnreplayed restricts the listing to entries not yet replayed.
	OnlyUnreplayed bool
}

// Store defines the persistence contract for the dead letter queue.
type Store interface {
	// PushDLQ adds a terminally failed entry to the dead letter queue.
	PushDLQ(ctx context.Context, entry *Entry) error

	// ListDLQ returns DLQ entries matching the given options, newest
	// first.
	ListDLQ(ctx context.Context, opts ListOpts) ([]*Entry, error)

	// GetDLQ retrieves a DLQ entry by ID. Returns herald.ErrDLQNotFound
	// when no such entry exists.
	GetDLQ(ctx context.Context, entryID id.DLQID) (*Entry, error)

	// MarkReplayed stamps ReplayedAt on an entry. The re-dispatch itself
	// is handled by the Replayer.
	MarkReplayed(ctx context.Context, entryID id.DLQID) error

	// PurgeDLQ removes DLQ entries with FailedAt before the given time.
	// Returns the number of entries removed.
	PurgeDLQ(ctx context.Context, before time.Time) (int64, error)

	// CountDLQ returns the total number of entries in the dead letter queue.
	CountDLQ(ctx context.Context) (int64, error)
}
