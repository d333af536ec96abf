package redis_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/herald"
	"github.com/xraph/herald/dlq"
	"github.com/xraph/herald/event"
	"github.com/xraph/herald/id"
	redisstore "github.com/xraph/herald/store/redis"
)

func newTestStore(t *testing.T) *redisstore.Store {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return redisstore.New(client)
}

func newEntry(eventType string, failedAt time.Time) *dlq.Entry {
	return &dlq.Entry{
		ID:          id.NewDLQID(),
		EventID:     id.NewEventID(),
		EventType:   eventType,
		HandlerName: "h",
		Payload:     []byte(`{"n":1}`),
		Metadata:    map[string]string{"source": "test"},
		Error:       "boom",
		Attempts:    4,
		MaxRetries:  3,
		OccurredAt:  failedAt.Add(-time.Second),
		FailedAt:    failedAt,
		CreatedAt:   failedAt,
	}
}

func TestStore_PushGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry := newEntry("order.placed", time.Now().UTC())
	if err := s.PushDLQ(ctx, entry); err != nil {
		t.Fatalf("push: %v", err)
	}

	got, err := s.GetDLQ(ctx, entry.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.EventType != "order.placed" || got.Attempts != 4 || got.MaxRetries != 3 {
		t.Errorf("entry mismatch: %+v", got)
	}
	if string(got.Payload) != `{"n":1}` {
		t.Errorf("payload = %q", got.Payload)
	}
	if got.Metadata["source"] != "test" {
		t.Errorf("metadata = %v", got.Metadata)
	}
	if got.ReplayedAt != nil {
		t.Error("ReplayedAt should be nil for a fresh entry")
	}
}

func TestStore_GetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetDLQ(context.Background(), id.NewDLQID())
	if !errors.Is(err, herald.ErrDLQNotFound) {
		t.Errorf("err = %v, want ErrDLQNotFound", err)
	}
}

func TestStore_ListFiltersAndPaginates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC()

	for i := range 5 {
		if err := s.PushDLQ(ctx, newEntry("a", base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.PushDLQ(ctx, newEntry("b", base.Add(10*time.Second))); err != nil {
		t.Fatal(err)
	}

	all, err := s.ListDLQ(ctx, dlq.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 6 {
		t.Fatalf("len = %d, want 6", len(all))
	}
	if all[0].EventType != "b" {
		t.Errorf("first entry type = %q, want newest (b)", all[0].EventType)
	}

	page, err := s.ListDLQ(ctx, dlq.ListOpts{EventType: "a", Offset: 2, Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 {
		t.Errorf("page len = %d, want 2", len(page))
	}
}

func TestStore_MarkReplayedAndUnreplayedFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := newEntry("t", time.Now().UTC())
	second := newEntry("t", time.Now().UTC())
	for _, e := range []*dlq.Entry{first, second} {
		if err := s.PushDLQ(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.MarkReplayed(ctx, first.ID); err != nil {
		t.Fatalf("mark replayed: %v", err)
	}
	if err := s.MarkReplayed(ctx, id.NewDLQID()); !errors.Is(err, herald.ErrDLQNotFound) {
		t.Errorf("mark missing err = %v, want ErrDLQNotFound", err)
	}

	unreplayed, err := s.ListDLQ(ctx, dlq.ListOpts{OnlyUnreplayed: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(unreplayed) != 1 || unreplayed[0].ID.String() != second.ID.String() {
		t.Errorf("unreplayed = %v", unreplayed)
	}

	got, err := s.GetDLQ(ctx, first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ReplayedAt == nil {
		t.Error("ReplayedAt not stamped")
	}
}

func TestStore_PurgeAndCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.PushDLQ(ctx, newEntry("t", now.Add(-2*time.Hour))); err != nil {
		t.Fatal(err)
	}
	if err := s.PushDLQ(ctx, newEntry("t", now)); err != nil {
		t.Fatal(err)
	}

	purged, err := s.PurgeDLQ(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if purged != 1 {
		t.Errorf("purged = %d, want 1", purged)
	}

	count, err := s.CountDLQ(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestStore_JournalNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"first", "second", "third"} {
		evt := event.New(name, nil)
		if err := s.AppendEvent(ctx, evt); err != nil {
			t.Fatal(err)
		}
	}

	events, err := s.ListEvents(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].Type != "third" || events[1].Type != "second" {
		t.Errorf("order = [%s %s], want [third second]", events[0].Type, events[1].Type)
	}
}

func TestStore_Ping(t *testing.T) {
	s := newTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
