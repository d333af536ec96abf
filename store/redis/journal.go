package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xraph/herald/event"
)

// AppendEvent records one dispatched event at the head of the journal
// list, trimming the list to its cap.
func (s *Store) AppendEvent(ctx context.Context, evt *event.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("herald/redis: encode journal event: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, journalKey, data)
	pipe.LTrim(ctx, journalKey, 0, journalCap-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("herald/redis: append journal event: %w", err)
	}
	return nil
}

// ListEvents returns the most recently appended events, newest first.
func (s *Store) ListEvents(ctx context.Context, limit int) ([]*event.Event, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	raw, err := s.client.LRange(ctx, journalKey, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("herald/redis: list journal events: %w", err)
	}

	events := make([]*event.Event, 0, len(raw))
	for _, item := range raw {
		var e event.Event
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			s.logger.Warn("skipping undecodable journal event")
			continue
		}
		events = append(events, &e)
	}
	return events, nil
}
