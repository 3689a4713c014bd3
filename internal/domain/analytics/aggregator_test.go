package analytics

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/matiasleandrokruk/agentdesk/internal/infra/eventbus"
	"github.com/matiasleandrokruk/agentdesk/internal/infra/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.NewDB(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("sqlite.NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}
	return db
}

func TestRecord_AccumulatesPerDay(t *testing.T) {
	t.Parallel()

	a := NewAggregator(setupDB(t), nil)
	ctx := context.Background()
	day := time.Date(2026, 6, 3, 10, 0, 0, 0, time.UTC)

	for _, tokens := range []int{40, 60} {
		if err := a.RecordCompleted(ctx, eventbus.TurnCompleted{
			BusinessID: "biz-1", AgentID: "agent-1", PromptTokens: tokens, Messages: 2, OccurredAt: day,
		}); err != nil {
			t.Fatalf("RecordCompleted: %v", err)
		}
	}
	if err := a.RecordFailed(ctx, eventbus.TurnFailed{
		BusinessID: "biz-1", AgentID: "agent-1", Step: "invoke", Messages: 1, OccurredAt: day.Add(time.Hour),
	}); err != nil {
		t.Fatalf("RecordFailed: %v", err)
	}
	// next day
	if err := a.RecordCompleted(ctx, eventbus.TurnCompleted{
		BusinessID: "biz-1", AgentID: "agent-1", PromptTokens: 5, Messages: 2, OccurredAt: day.Add(24 * time.Hour),
	}); err != nil {
		t.Fatal(err)
	}

	got, err := a.Get(ctx, "biz-1", "agent-1", day)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	want := DailyStats{AgentID: "agent-1", Day: "2026-06-03", TotalTurns: 3, TotalMessages: 5, FailedTurns: 1, PromptTokens: 100}
	if *got != want {
		t.Errorf("got %+v; want %+v", *got, want)
	}
}

func TestRecordFailed_SkipsAgentLookupFailures(t *testing.T) {
	t.Parallel()

	db := setupDB(t)
	a := NewAggregator(db, nil)
	if err := a.RecordFailed(context.Background(), eventbus.TurnFailed{
		BusinessID: "biz-1", AgentID: "ghost", Step: stepLoadAgent, Messages: 1, OccurredAt: time.Now(),
	}); err != nil {
		t.Fatalf("RecordFailed: %v", err)
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM analytics_daily`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("expected no rows, got %d", n)
	}
}

func TestGet_TenantScopedAndZeroDefault(t *testing.T) {
	t.Parallel()

	a := NewAggregator(setupDB(t), nil)
	ctx := context.Background()
	day := time.Date(2026, 6, 3, 0, 0, 0, 0, time.UTC)
	if err := a.RecordCompleted(ctx, eventbus.TurnCompleted{BusinessID: "biz-1", AgentID: "agent-1", Messages: 2, OccurredAt: day}); err != nil {
		t.Fatal(err)
	}

	got, err := a.Get(ctx, "biz-2", "agent-1", day)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.TotalTurns != 0 || got.Day != "2026-06-03" {
		t.Errorf("other business must see zero counters, got %+v", got)
	}
}

func TestStart_ConsumesBus(t *testing.T) {
	t.Parallel()

	a := NewAggregator(setupDB(t), nil)
	bus := eventbus.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := a.Start(ctx, bus)

	// Published right after Start returns, with no retry: the subscription
	// must already be in place.
	day := time.Date(2026, 6, 3, 12, 0, 0, 0, time.UTC)
	bus.Publish(eventbus.TopicTurnCompleted, eventbus.TurnCompleted{
		BusinessID: "biz-1", AgentID: "agent-1", Messages: 2, PromptTokens: 7, OccurredAt: day,
	})
	bus.Publish(eventbus.TopicTurnFailed, eventbus.TurnFailed{
		BusinessID: "biz-1", AgentID: "agent-1", Step: "invoke", Messages: 1, OccurredAt: day,
	})

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := a.Get(ctx, "biz-1", "agent-1", day)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.TotalTurns == 2 {
			if got.FailedTurns != 1 || got.TotalMessages != 3 || got.PromptTokens != 7 {
				t.Errorf("unexpected counters %+v", got)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("aggregator recorded %+v; want both events", got)
		}
		time.Sleep(10 * time.Millisecond)
	}

	bus.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("aggregator must stop once the bus is closed")
	}
}
