package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/herald"
	"github.com/xraph/herald/dlq"
	"github.com/xraph/herald/id"
)

// PushDLQ adds a terminally failed entry to the dead letter queue.
func (s *Store) PushDLQ(ctx context.Context, entry *dlq.Entry) error {
	eID := entry.ID.String()
	key := dlqKey(eID)

	fields, err := dlqToMap(entry)
	if err != nil {
		return fmt.Errorf("herald/redis: encode dlq entry: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.SAdd(ctx, dlqIDsKey, eID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("herald/redis: push dlq: %w", err)
	}
	return nil
}

// ListDLQ returns DLQ entries matching the given options, newest first.
func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	ids, err := s.client.SMembers(ctx, dlqIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("herald/redis: list dlq: %w", err)
	}

	entries := make([]*dlq.Entry, 0, len(ids))
	for _, eID := range ids {
		vals, getErr := s.client.HGetAll(ctx, dlqKey(eID)).Result()
		if getErr != nil || len(vals) == 0 {
			continue
		}
		e, convErr := mapToDLQ(vals)
		if convErr != nil {
			continue
		}
		if opts.EventType != "" && e.EventType != opts.EventType {
			continue
		}
		if opts.OnlyUnreplayed && e.ReplayedAt != nil {
			continue
		}
		entries = append(entries, e)
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
func (s *Store) GetDLQ(ctx context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	vals, err := s.client.HGetAll(ctx, dlqKey(entryID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("herald/redis: get dlq: %w", err)
	}
	if len(vals) == 0 {
		return nil, herald.ErrDLQNotFound
	}
	return mapToDLQ(vals)
}

// MarkReplayed stamps ReplayedAt on an entry.
func (s *Store) MarkReplayed(ctx context.Context, entryID id.DLQID) error {
	key := dlqKey(entryID.String())
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("herald/redis: mark replayed exists: %w", err)
	}
	if exists == 0 {
		return herald.ErrDLQNotFound
	}

	_, err = s.client.HSet(ctx, key,
		"replayed_at", time.Now().UTC().Format(time.RFC3339Nano),
	).Result()
	if err != nil {
		return fmt.Errorf("herald/redis: mark replayed: %w", err)
	}
	return nil
}

// PurgeDLQ removes DLQ entries with FailedAt before the given time.
func (s *Store) PurgeDLQ(ctx context.Context, before time.Time) (int64, error) {
	ids, err := s.client.SMembers(ctx, dlqIDsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("herald/redis: purge dlq smembers: %w", err)
	}

	var purged int64
	for _, eID := range ids {
		key := dlqKey(eID)
		failedAtStr, getErr := s.client.HGet(ctx, key, "failed_at").Result()
		if getErr != nil {
			if errors.Is(getErr, goredis.Nil) {
				continue
			}
			return purged, fmt.Errorf("herald/redis: purge dlq get: %w", getErr)
		}

		failedAt, _ := time.Parse(time.RFC3339Nano, failedAtStr) //nolint:errcheck // best-effort parse from trusted Redis data
		if failedAt.Before(before) {
			pipe := s.client.TxPipeline()
			pipe.Del(ctx, key)
			pipe.SRem(ctx, dlqIDsKey, eID)
			if _, execErr := pipe.Exec(ctx); execErr != nil {
				return purged, fmt.Errorf("herald/redis: purge dlq del: %w", execErr)
			}
			purged++
		}
	}
	return purged, nil
}

// CountDLQ returns the total number of entries in the dead letter queue.
func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	n, err := s.client.SCard(ctx, dlqIDsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("herald/redis: count dlq: %w", err)
	}
	return n, nil
}

// dlqToMap flattens an entry into Redis hash fields.
func dlqToMap(e *dlq.Entry) (map[string]any, error) {
	md, err := json.Marshal(e.Metadata)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{
		"id":           e.ID.String(),
		"event_id":     e.EventID.String(),
		"event_type":   e.EventType,
		"handler_name": e.HandlerName,
		"payload":      string(e.Payload),
		"metadata":     string(md),
		"error":        e.Error,
		"attempts":     strconv.Itoa(e.Attempts),
		"max_retries":  strconv.Itoa(e.MaxRetries),
		"occurred_at":  e.OccurredAt.UTC().Format(time.RFC3339Nano),
		"failed_at":    e.FailedAt.UTC().Format(time.RFC3339Nano),
		"created_at":   e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if e.ReplayedAt != nil {
		fields["replayed_at"] = e.ReplayedAt.UTC().Format(time.RFC3339Nano)
	}
	return fields, nil
}

// mapToDLQ rebuilds an entry from Redis hash fields.
func mapToDLQ(vals map[string]string) (*dlq.Entry, error) {
	entryID, err := id.Parse(vals["id"])
	if err != nil {
		return nil, fmt.Errorf("herald/redis: decode dlq id: %w", err)
	}
	eventID, err := id.Parse(vals["event_id"])
	if err != nil {
		return nil, fmt.Errorf("herald/redis: decode dlq event id: %w", err)
	}

	attempts, _ := strconv.Atoi(vals["attempts"])       //nolint:errcheck // written by dlqToMap
	maxRetries, _ := strconv.Atoi(vals["max_retries"])  //nolint:errcheck // written by dlqToMap
	occurredAt, _ := time.Parse(time.RFC3339Nano, vals["occurred_at"]) //nolint:errcheck // written by dlqToMap
	failedAt, _ := time.Parse(time.RFC3339Nano, vals["failed_at"])     //nolint:errcheck // written by dlqToMap
	createdAt, _ := time.Parse(time.RFC3339Nano, vals["created_at"])   //nolint:errcheck // written by dlqToMap

	var metadata map[string]string
	if raw := vals["metadata"]; raw != "" && raw != "null" {
		if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
			return nil, fmt.Errorf("herald/redis: decode dlq metadata: %w", err)
		}
	}

	e := &dlq.Entry{
		ID:          entryID,
		EventID:     eventID,
		EventType:   vals["event_type"],
		HandlerName: vals["handler_name"],
		Metadata:    metadata,
		Error:       vals["error"],
		Attempts:    attempts,
		MaxRetries:  maxRetries,
		OccurredAt:  occurredAt,
		FailedAt:    failedAt,
		CreatedAt:   createdAt,
	}
	if payload := vals["payload"]; payload != "" {
		e.Payload = []byte(payload)
	}
	if replayedStr, ok := vals["replayed_at"]; ok && replayedStr != "" {
		replayedAt, parseErr := time.Parse(time.RFC3339Nano, replayedStr)
		if parseErr == nil {
			e.ReplayedAt = &replayedAt
		}
	}
	return e, nil
}
