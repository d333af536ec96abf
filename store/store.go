package store

import (
	"context"

	"github.com/xraph/herald/dlq"
	"github.com/xraph/herald/event"
)

// Store is the composite interface implemented by full backends.
type Store interface {
	dlq.Store
	event.Journal

	// Migrate prepares backend schema. No-op for schemaless backends.
	Migrate(ctx context.Context) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources owned by the store.
	Close() error
}
