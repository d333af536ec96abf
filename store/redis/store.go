// Package redis implements store.Store using Redis for high-throughput
// ephemeral workloads. DLQ entries are stored as Redis Hashes indexed
// by a Set of IDs; the event journal is a capped List.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/herald/dlq"
	"github.com/xraph/herald/event"
)

// Compile-time interface checks.
var (
	_ dlq.Store     = (*Store)(nil)
	_ event.Journal = (*Store)(nil)
)

const (
	dlqIDsKey  = "herald:dlq:ids"
	journalKey = "herald:events"

	// journalCap bounds the event journal length.
	journalCap = 10_000
)

func dlqKey(entryID string) string { return "herald:dlq:" + entryID }

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store implements the composite store.Store interface backed by Redis.
type Store struct {
	client redis.Cmdable
	logger *slog.Logger
}

// New creates a new Redis-backed store. The caller owns the Redis
// client lifecycle.
func New(client redis.Cmdable, opts ...Option) *Store {
	s := &Store{client: client, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() redis.Cmdable { return s.client }

// Migrate is a no-op for Redis (schemaless).
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close is a no-op — the caller owns the Redis client lifecycle.
func (s *Store) Close() error { return nil }
