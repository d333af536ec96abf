// Package amqp provides an event source over a RabbitMQ queue using
// manual acknowledgements: a delivery is acked only after the sink
// returns nil, and nacked with requeue otherwise, honoring the
// at-least-once hand-off contract.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/xraph/herald"
	"github.com/xraph/herald/source"
)

// Config describes the consumer.
type Config struct {
	// Queue to consume from. Required; must already exist — topology
	// management is out of scope.
	Queue string

	// Consumer is the consumer tag. Empty lets the broker generate one.
	Consumer string

	// Prefetch bounds unacked deliveries per channel. Zero means no
	// limit.
	Prefetch int
}

// Source consumes events from a RabbitMQ queue.
type Source struct {
	conn   *amqp.Connection
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

// New creates an AMQP source over an existing connection. The caller
// owns the connection lifecycle; Run opens a fresh channel per attempt
// so the supervisor can reconnect after channel failures.
func New(conn *amqp.Connection, cfg Config, opts ...Option) (*Source, error) {
	if conn == nil {
		return nil, errors.New("herald/amqp: connection is required")
	}
	if cfg.Queue == "" {
		return nil, errors.New("herald/amqp: queue is required")
	}

	s := &Source{conn: conn, cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Name identifies the source in logs.
func (s *Source) Name() string { return "amqp:" + s.cfg.Queue }

// Run consumes deliveries until ctx is cancelled or the channel fails.
// Undecodable deliveries are nacked without requeue; dispatch failures
// are nacked with requeue for transport-level redelivery.
func (s *Source) Run(ctx context.Context, sink source.Sink) error {
	ch, err := s.conn.Channel()
	if err != nil {
		return fmt.Errorf("herald/amqp: open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if s.cfg.Prefetch > 0 {
		if qosErr := ch.Qos(s.cfg.Prefetch, 0, false); qosErr != nil {
			return fmt.Errorf("herald/amqp: set qos: %w", qosErr)
		}
	}

	deliveries, err := ch.ConsumeWithContext(ctx, s.cfg.Queue, s.cfg.Consumer,
		false, // autoAck off: ack only after successful dispatch
		false, false, false, nil,
	)
	if err != nil {
		return fmt.Errorf("herald/amqp: consume %s: %w", s.cfg.Queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("herald/amqp: %w", herald.ErrSourceClosed)
			}
			s.handle(ctx, sink, d)
		}
	}
}

func (s *Source) handle(ctx context.Context, sink source.Sink, d amqp.Delivery) {
	evt, decErr := source.Decode(d.ContentType, d.Body)
	if decErr != nil {
		s.logger.Warn("rejecting undecodable delivery",
			slog.String("source", s.Name()),
			slog.String("error", decErr.Error()),
		)
		_ = d.Nack(false, false)
		return
	}

	if sinkErr := sink(ctx, evt); sinkErr != nil {
		s.logger.Warn("dispatch failed, requeueing delivery",
			slog.String("source", s.Name()),
			slog.String("event_id", evt.ID.String()),
			slog.String("error", sinkErr.Error()),
		)
		_ = d.Nack(false, true)
		return
	}

	_ = d.Ack(false)
}
