package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/herald/event"
	"github.com/xraph/herald/id"
)

// AppendEvent records one dispatched event in the journal.
func (s *Store) AppendEvent(ctx context.Context, evt *event.Event) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO herald_events (id, event_type, payload, metadata, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`,
		evt.ID.String(), evt.Type, evt.Payload, evt.Metadata, evt.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("herald/postgres: append event: %w", err)
	}
	return nil
}

// ListEvents returns the most recently appended events, newest first.
func (s *Store) ListEvents(ctx context.Context, limit int) ([]*event.Event, error) {
	query := `
		SELECT id, event_type, payload, metadata, occurred_at
		FROM herald_events
		ORDER BY appended_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("herald/postgres: list events: %w", err)
	}
	defer rows.Close()

	var events []*event.Event
	for rows.Next() {
		e, scanErr := scanEvent(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("herald/postgres: scan event row: %w", scanErr)
		}
		events = append(events, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("herald/postgres: iterate event rows: %w", err)
	}
	return events, nil
}

// scanEvent scans a single journal row.
func scanEvent(row pgx.Row) (*event.Event, error) {
	var (
		e     event.Event
		idStr string
	)
	err := row.Scan(&idStr, &e.Type, &e.Payload, &e.Metadata, &e.OccurredAt)
	if err != nil {
		return nil, err
	}

	parsedID, parseErr := id.Parse(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("herald/postgres: parse event id %q: %w", idStr, parseErr)
	}
	e.ID = parsedID

	return &e, nil
}
