// Package memory provides a fully in-memory store.Store implementation.
// Safe for concurrent access. Intended for unit testing and development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/herald"
	"github.com/xraph/herald/dlq"
	"github.com/xraph/herald/event"
	"github.com/xraph/herald/id"
)

// Compile-time interface checks. The composite store interface lives in
// the store package; verifying each subsystem avoids the import cycle.
var (
	_ dlq.Store     = (*Store)(nil)
	_ event.Journal = (*Store)(nil)
)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*dlq.Entry
	journal []*event.Event
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		entries: make(map[string]*dlq.Entry),
	}
}

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// PushDLQ adds a terminally failed entry to the dead letter queue.
func (m *Store) PushDLQ(_ context.Context, entry *dlq.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *entry
	m.entries[entry.ID.String()] = &cp
	return nil
}

// ListDLQ returns DLQ entries matching the given options, newest first.
func (m *Store) ListDLQ(_ context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]*dlq.Entry, 0, len(m.entries))
	for _, e := range m.entries {
		if opts.EventType != "" && e.EventType != opts.EventType {
			continue
		}
		if opts.OnlyUnreplayed && e.ReplayedAt != nil {
			continue
		}
		cp := *e
		entries = append(entries, &cp)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].FailedAt.After(entries[j].FailedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(entries) {
			return nil, nil
		}
		entries = entries[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(entries) {
		entries = entries[:opts.Limit]
	}
	return entries, nil
}

// GetDLQ retrieves a DLQ entry by ID.
func (m *Store) GetDLQ(_ context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[entryID.String()]
	if !ok {
		return nil, herald.ErrDLQNotFound
	}
	cp := *e
	return &cp, nil
}

// MarkReplayed stamps ReplayedAt on an entry.
func (m *Store) MarkReplayed(_ context.Context, entryID id.DLQID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[entryID.String()]
	if !ok {
		return herald.ErrDLQNotFound
	}
	now := time.Now().UTC()
	e.ReplayedAt = &now
	return nil
}

// PurgeDLQ removes DLQ entries with FailedAt before the given time.
func (m *Store) PurgeDLQ(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var purged int64
	for key, e := range m.entries {
		if e.FailedAt.Before(before) {
			delete(m.entries, key)
			purged++
		}
	}
	return purged, nil
}

// CountDLQ returns the total number of entries in the dead letter queue.
func (m *Store) CountDLQ(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.entries)), nil
}

// AppendEvent records one dispatched event in the journal.
func (m *Store) AppendEvent(_ context.Context, evt *event.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *evt
	m.journal = append(m.journal, &cp)
	return nil
}

// ListEvents returns the most recently appended events, newest first.
func (m *Store) ListEvents(_ context.Context, limit int) ([]*event.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*event.Event, 0, len(m.journal))
	for i := len(m.journal) - 1; i >= 0; i-- {
		cp := *m.journal[i]
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
