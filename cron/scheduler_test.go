package cron_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/herald/cron"
	"github.com/xraph/herald/event"
)

func TestParseSchedule(t *testing.T) {
	if _, err := cron.ParseSchedule("@every 30s"); err != nil {
		t.Errorf("ParseSchedule(@every 30s): %v", err)
	}
	if _, err := cron.ParseSchedule("*/5 * * * *"); err != nil {
		t.Errorf("ParseSchedule(*/5 * * * *): %v", err)
	}
	if _, err := cron.ParseSchedule("not a schedule"); err == nil {
		t.Error("expected error for invalid expression")
	}
}

func TestScheduler_EmitsEvents(t *testing.T) {
	var emitted atomic.Int32
	var gotType atomic.Value

	sink := func(_ context.Context, evt *event.Event) error {
		gotType.Store(evt.Type)
		if evt.Metadata["scheduled_by"] != "heartbeat" {
			t.Errorf("metadata = %v", evt.Metadata)
		}
		emitted.Add(1)
		return nil
	}

	s := cron.NewScheduler(sink)
	err := s.Add(cron.Schedule{
		Name:      "heartbeat",
		Expr:      "@every 10ms",
		EventType: "system.heartbeat",
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for emitted.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("no event emitted")
		case <-time.After(5 * time.Millisecond):
		}
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if got := gotType.Load(); got != "system.heartbeat" {
		t.Errorf("event type = %v, want system.heartbeat", got)
	}
}

func TestScheduler_AddValidation(t *testing.T) {
	s := cron.NewScheduler(func(context.Context, *event.Event) error { return nil })

	if err := s.Add(cron.Schedule{Name: "bad-expr", Expr: "nope", EventType: "t"}); err == nil {
		t.Error("expected error for invalid expression")
	}
	if err := s.Add(cron.Schedule{Name: "no-type", Expr: "@every 1s"}); err == nil {
		t.Error("expected error for missing event type")
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Stop(context.Background()) }()

	if err := s.Add(cron.Schedule{Name: "late", Expr: "@every 1s", EventType: "t"}); err == nil {
		t.Error("expected error when adding after start")
	}
}
