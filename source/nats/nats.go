// Package nats provides an event source over core NATS subscriptions.
//
// Core NATS delivers at most once — there is no ack or redelivery. Use
// the amqp or kafka sources when the at-least-once hand-off contract
// matters end to end.
package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/xraph/herald/source"
)

// Config describes the subscription.
type Config struct {
	// Subject to subscribe to. Required.
	Subject string

	// Queue is an optional queue group for load-balanced consumption.
	Queue string
}

// Source consumes events from a NATS subject.
type Source struct {
	conn   *nats.Conn
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

// New creates a NATS source over an existing connection. The caller
// owns the connection lifecycle.
func New(conn *nats.Conn, cfg Config, opts ...Option) (*Source, error) {
	if conn == nil {
		return nil, errors.New("herald/nats: connection is required")
	}
	if cfg.Subject == "" {
		return nil, errors.New("herald/nats: subject is required")
	}

	s := &Source{conn: conn, cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Name identifies the source in logs.
func (s *Source) Name() string { return "nats:" + s.cfg.Subject }

// Run consumes messages until ctx is cancelled or the subscription
// fails. Undecodable messages are logged and dropped.
func (s *Source) Run(ctx context.Context, sink source.Sink) error {
	var (
		sub *nats.Subscription
		err error
	)
	if s.cfg.Queue != "" {
		sub, err = s.conn.QueueSubscribeSync(s.cfg.Subject, s.cfg.Queue)
	} else {
		sub, err = s.conn.SubscribeSync(s.cfg.Subject)
	}
	if err != nil {
		return fmt.Errorf("herald/nats: subscribe %s: %w", s.cfg.Subject, err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	for {
		msg, nextErr := sub.NextMsgWithContext(ctx)
		if nextErr != nil {
			if errors.Is(nextErr, context.Canceled) || errors.Is(nextErr, context.DeadlineExceeded) {
				return nextErr
			}
			return fmt.Errorf("herald/nats: next message: %w", nextErr)
		}

		evt, decErr := source.Decode(msg.Header.Get("Content-Type"), msg.Data)
		if decErr != nil {
			s.logger.Warn("dropping undecodable message",
				slog.String("source", s.Name()),
				slog.String("error", decErr.Error()),
			)
			continue
		}

		if sinkErr := sink(ctx, evt); sinkErr != nil {
			// No redelivery in core NATS; the failure is already
			// funneled by the executor.
			s.logger.Error("dispatch failed for message",
				slog.String("source", s.Name()),
				slog.String("event_id", evt.ID.String()),
				slog.String("error", sinkErr.Error()),
			)
		}
	}
}
