// Package kafka provides an event source over a Kafka consumer group
// using franz-go. Offsets are committed only after the sink returns
// nil for every record in the batch, honoring the at-least-once
// hand-off contract.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/xraph/herald/source"
)

// Config describes the consumer group.
type Config struct {
	// Brokers are the seed broker addresses. Required.
	Brokers []string

	// Topics to consume. Required.
	Topics []string

	// Group is the consumer group name. Required.
	Group string

	// ClientID identifies this consumer to the brokers.
	ClientID string
}

// Source consumes events from Kafka topics.
type Source struct {
	cfg    Config
	logger *slog.Logger
}

var _ source.Source = (*Source)(nil)

// Option configures the Source.
type Option func(*Source)

// WithLogger sets the source's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Source) { s.logger = l }
}

// New creates a Kafka source. Run builds a fresh client per attempt so
// the supervisor can reconnect after broker failures.
func New(cfg Config, opts ...Option) (*Source, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("herald/kafka: brokers are required")
	}
	if len(cfg.Topics) == 0 {
		return nil, errors.New("herald/kafka: topics are required")
	}
	if cfg.Group == "" {
		return nil, errors.New("herald/kafka: consumer group is required")
	}

	s := &Source{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Name identifies the source in logs.
func (s *Source) Name() string { return "kafka:" + s.cfg.Group }

// Run polls and dispatches records until ctx is cancelled or a fetch
// fails. A dispatch failure stops the poll loop with offsets of the
// failed record left uncommitted so the group redelivers it.
func (s *Source) Run(ctx context.Context, sink source.Sink) error {
	opts := []kgo.Opt{
		kgo.SeedBrokers(s.cfg.Brokers...),
		kgo.ConsumeTopics(s.cfg.Topics...),
		kgo.ConsumerGroup(s.cfg.Group),
		kgo.DisableAutoCommit(),
	}
	if s.cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(s.cfg.ClientID))
	}

	cl, err := kgo.NewClient(opts...)
	if err != nil {
		return fmt.Errorf("herald/kafka: client init: %w", err)
	}
	defer cl.Close()

	for {
		fetches := cl.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			return fmt.Errorf("herald/kafka: fetch %s: %w", errs[0].Topic, errs[0].Err)
		}

		var (
			processed []*kgo.Record
			sinkErr   error
		)
		fetches.EachRecord(func(rec *kgo.Record) {
			if sinkErr != nil {
				return
			}

			evt, decErr := source.Decode(contentType(rec), rec.Value)
			if decErr != nil {
				s.logger.Warn("skipping undecodable record",
					slog.String("source", s.Name()),
					slog.String("topic", rec.Topic),
					slog.Int64("offset", rec.Offset),
					slog.String("error", decErr.Error()),
				)
				processed = append(processed, rec)
				return
			}

			if err := sink(ctx, evt); err != nil {
				sinkErr = err
				return
			}
			processed = append(processed, rec)
		})

		if len(processed) > 0 {
			if commitErr := cl.CommitRecords(ctx, processed...); commitErr != nil {
				return fmt.Errorf("herald/kafka: commit offsets: %w", commitErr)
			}
		}
		if sinkErr != nil {
			return fmt.Errorf("herald/kafka: dispatch failed, offsets left uncommitted: %w", sinkErr)
		}
	}
}

// contentType reads the content-type record header if present.
func contentType(rec *kgo.Record) string {
	for _, h := range rec.Headers {
		if h.Key == "content-type" || h.Key == "Content-Type" {
			return string(h.Value)
		}
	}
	return ""
}
