package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/herald"
	"github.com/xraph/herald/dlq"
	"github.com/xraph/herald/id"
)

// PushDLQ adds a terminally failed entry to the dead letter queue.
func (s *Store) PushDLQ(ctx context.Context, entry *dlq.Entry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO herald_dlq (
			id, event_id, event_type, handler_name, payload, metadata,
			error, attempts, max_retries,
			occurred_at, failed_at, replayed_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		entry.ID.String(), entry.EventID.String(), entry.EventType,
		entry.HandlerName, entry.Payload, entry.Metadata,
		entry.Error, entry.Attempts, entry.MaxRetries,
		entry.OccurredAt, entry.FailedAt, entry.ReplayedAt, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("herald/postgres: push dlq: %w", err)
	}
	return nil
}

// ListDLQ returns DLQ entries matching the given options, newest first.
func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	query := `
		SELECT
			id, event_id, event_type, handler_name, payload, metadata,
			error, attempts, max_retries,
			occurred_at, failed_at, replayed_at, created_at
		FROM herald_dlq
		WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.EventType != "" {
		query += fmt.Sprintf(" AND event_type = $%d", argIdx)
		args = append(args, opts.EventType)
		argIdx++
	}
	if opts.OnlyUnreplayed {
		query += " AND replayed_at IS NULL"
	}

	query += " ORDER BY failed_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("herald/postgres: list dlq: %w", err)
	}
	defer rows.Close()

	var entries []*dlq.Entry
	for rows.Next() {
		e, scanErr := scanDLQ(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("herald/postgres: scan dlq row: %w", scanErr)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("herald/postgres: iterate dlq rows: %w", err)
	}
	return entries, nil
}

// GetDLQ retrieves a DLQ entry by ID.
func (s *Store) GetDLQ(ctx context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT
			id, event_id, event_type, handler_name, payload, metadata,
			error, attempts, max_retries,
			occurred_at, failed_at, replayed_at, created_at
		FROM herald_dlq
		WHERE id = $1`,
		entryID.String(),
	)

	e, err := scanDLQ(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, herald.ErrDLQNotFound
		}
		return nil, fmt.Errorf("herald/postgres: get dlq: %w", err)
	}
	return e, nil
}

// MarkReplayed stamps ReplayedAt on an entry.
func (s *Store) MarkReplayed(ctx context.Context, entryID id.DLQID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE herald_dlq SET replayed_at = NOW() WHERE id = $1`,
		entryID.String(),
	)
	if err != nil {
		return fmt.Errorf("herald/postgres: mark replayed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return herald.ErrDLQNotFound
	}
	return nil
}

// PurgeDLQ removes DLQ entries with FailedAt before the given time.
// Returns the number of entries removed.
func (s *Store) PurgeDLQ(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM herald_dlq WHERE failed_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("herald/postgres: purge dlq: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountDLQ returns the total number of entries in the dead letter queue.
func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM herald_dlq`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("herald/postgres: count dlq: %w", err)
	}
	return count, nil
}

// scanDLQ scans a single DLQ entry row.
func scanDLQ(row pgx.Row) (*dlq.Entry, error) {
	var (
		e          dlq.Entry
		idStr      string
		eventIDStr string
	)
	err := row.Scan(
		&idStr, &eventIDStr, &e.EventType, &e.HandlerName, &e.Payload, &e.Metadata,
		&e.Error, &e.Attempts, &e.MaxRetries,
		&e.OccurredAt, &e.FailedAt, &e.ReplayedAt, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsedID, parseErr := id.Parse(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("herald/postgres: parse dlq id %q: %w", idStr, parseErr)
	}
	e.ID = parsedID

	parsedEventID, evtParseErr := id.Parse(eventIDStr)
	if evtParseErr != nil {
		return nil, fmt.Errorf("herald/postgres: parse event id %q: %w", eventIDStr, evtParseErr)
	}
	e.EventID = parsedEventID

	return &e, nil
}
