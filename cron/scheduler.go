// Package cron emits synthetic events on cron schedules, feeding them
// to the same sink transport sources use. Typical use: periodic
// housekeeping events handled like any other domain event.
package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	cronlib "github.com/robfig/cron/v3"

	"github.com/xraph/herald/event"
	"github.com/xraph/herald/source"
)

// cronParser supports standard 5-field cron and descriptors like "@every 30s".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a cron expression and returns the schedule.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	return cronParser.Parse(expr)
}

// Schedule describes one recurring synthetic event.
type Schedule struct {
	// Name identifies the schedule in logs and event metadata.
	Name string

	// Expr is the cron expression (5-field or @-descriptor).
	Expr string

	// EventType is the type of the emitted events.
	EventType string

	// Payload is attached to every emitted event.
	Payload []byte
}

// Scheduler emits events on registered schedules. Add schedules before
// Start; a started scheduler rejects new schedules.
type Scheduler struct {
	runner *cronlib.Cron
	sink   source.Sink
	logger *slog.Logger

	mu      sync.Mutex
	baseCtx context.Context
	started bool
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithLogger sets the scheduler's logger.
func WithLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = l }
}

// NewScheduler creates a scheduler emitting into the given sink.
func NewScheduler(sink source.Sink, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		runner:  cronlib.New(cronlib.WithParser(cronParser)),
		sink:    sink,
		logger:  slog.Default(),
		baseCtx: context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers a schedule. The expression is validated up front.
func (s *Scheduler) Add(sched Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("cron: scheduler already started, cannot add %q", sched.Name)
	}
	if sched.EventType == "" {
		return fmt.Errorf("cron: schedule %q needs an event type", sched.Name)
	}
	if _, err := ParseSchedule(sched.Expr); err != nil {
		return fmt.Errorf("cron: invalid schedule %q for %q: %w", sched.Expr, sched.Name, err)
	}

	_, err := s.runner.AddFunc(sched.Expr, func() { s.emit(sched) })
	if err != nil {
		return fmt.Errorf("cron: add schedule %q: %w", sched.Name, err)
	}

	s.logger.Info("cron schedule registered",
		slog.String("name", sched.Name),
		slog.String("expr", sched.Expr),
		slog.String("event_type", sched.EventType),
	)
	return nil
}

// Start begins firing schedules. Emissions use a context derived from
// ctx that survives its cancellation; Stop ends them.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.started = true
	s.baseCtx = context.WithoutCancel(ctx)
	s.runner.Start()
	return nil
}

// Stop halts schedule firing and waits for in-flight emissions, up to
// the context deadline.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.mu.Unlock()

	done := s.runner.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// emit builds the synthetic event and hands it to the sink. Dispatch
// failures are logged; the schedule keeps firing.
func (s *Scheduler) emit(sched Schedule) {
	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()

	evt := event.New(sched.EventType, sched.Payload).
		WithMetadata(map[string]string{"scheduled_by": sched.Name})

	if err := s.sink(ctx, evt); err != nil {
		s.logger.Error("scheduled event dispatch failed",
			slog.String("schedule", sched.Name),
			slog.String("event_type", sched.EventType),
			slog.String("error", err.Error()),
		)
		return
	}

	s.logger.Debug("scheduled event emitted",
		slog.String("schedule", sched.Name),
		slog.String("event_id", evt.ID.String()),
	)
}
