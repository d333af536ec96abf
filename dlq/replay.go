package dlq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/herald/backoff"
	"github.com/xraph/herald/event"
	"github.com/xraph/herald/id"
)

// Dispatcher re-executes an event. It is satisfied by the dispatch
// executor; the small local interface avoids an import cycle.
type Dispatcher interface {
	Execute(ctx context.Context, evt *event.Event) error
}

// Replayer re-dispatches dead-lettered events through a Dispatcher.
type Replayer struct {
	service    *Service
	dispatcher Dispatcher
	pause      backoff.Strategy
	logger     *slog.Logger
}

// NewReplayer creates a replayer. pause spaces consecutive replays so a
// burst of dead letters does not flood the executor; nil means no
// pause.
func NewReplayer(service *Service, dispatcher Dispatcher, pause backoff.Strategy, logger *slog.Logger) *Replayer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Replayer{
		service:    service,
		dispatcher: dispatcher,
		pause:      pause,
		logger:     logger,
	}
}

// ReplayEntry re-dispatches a single DLQ entry. The entry is marked
// replayed only after the dispatch returns without error; a failed
// replay leaves the entry untouched for a later attempt.
func (r *Replayer) ReplayEntry(ctx context.Context, entryID id.DLQID) error {
	entry, err := r.service.store.GetDLQ(ctx, entryID)
	if err != nil {
		return err
	}

	evt := &event.Event{
		ID:         entry.EventID,
		Type:       entry.EventType,
		Payload:    entry.Payload,
		Metadata:   entry.Metadata,
		OccurredAt: entry.OccurredAt,
	}

	if err := r.dispatcher.Execute(ctx, evt); err != nil {
		return fmt.Errorf("dlq: replay dispatch for entry %s: %w", entryID, err)
	}

	if err := r.service.store.MarkReplayed(ctx, entryID); err != nil {
		// The event was already dispatched; a marking failure only
		// risks a duplicate replay later, which handlers must tolerate
		// anyway under at-least-once delivery.
		r.logger.Warn("replayed entry could not be marked",
			slog.String("entry_id", entryID.String()),
			slog.String("error", err.Error()),
		)
	}

	return nil
}

// ReplayAll re-dispatches every un-replayed entry, oldest batch first,
// pacing consecutive entries with the replayer's backoff strategy.
// It returns the number of successfully replayed entries and the first
// error that stopped the run, if any.
func (r *Replayer) ReplayAll(ctx context.Context, opts ListOpts) (int, error) {
	opts.OnlyUnreplayed = true

	entries, err := r.service.store.ListDLQ(ctx, opts)
	if err != nil {
		return 0, err
	}

	replayed := 0
	for i, entry := range entries {
		if i > 0 && r.pause != nil {
			select {
			case <-time.After(r.pause.Delay(i)):
			case <-ctx.Done():
				return replayed, ctx.Err()
			}
		}

		if err := r.ReplayEntry(ctx, entry.ID); err != nil {
			return replayed, err
		}
		replayed++

		r.logger.Info("replayed dead-lettered event",
			slog.String("entry_id", entry.ID.String()),
			slog.String("event_type", entry.EventType),
			slog.String("handler", entry.HandlerName),
		)
	}

	return replayed, nil
}
