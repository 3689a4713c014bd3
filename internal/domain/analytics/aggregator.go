// Package analytics keeps per-agent daily usage counters fed by chat turn events.
package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/matiasleandrokruk/agentdesk/internal/infra/eventbus"
	"github.com/matiasleandrokruk/agentdesk/internal/infra/sqlite"
)

// DayLayout is the UTC calendar day key used for counters.
const DayLayout = "2006-01-02"

// failures at this step carry an agent id that may not exist or may belong
// to another business
const stepLoadAgent = "load_agent"

// DailyStats are one agent's counters for one UTC day.
type DailyStats struct {
	AgentID       string `json:"agentId"`
	Day           string `json:"day"`
	TotalTurns    int64  `json:"totalTurns"`
	TotalMessages int64  `json:"totalMessages"`
	FailedTurns   int64  `json:"failedTurns"`
	PromptTokens  int64  `json:"promptTokens"`
}

// Aggregator consumes turn events and upserts analytics_daily rows.
type Aggregator struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewAggregator creates an Aggregator. A nil logger uses slog.Default().
func NewAggregator(db *sql.DB, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{db: db, logger: logger, now: time.Now}
}

// Start subscribes to turn topics before returning, then records events in
// its own goroutine until ctx is done or the bus is closed. The returned
// channel is closed when that goroutine exits.
func (a *Aggregator) Start(ctx context.Context, bus eventbus.EventBus) <-chan struct{} {
	completedCh := bus.Subscribe(eventbus.TopicTurnCompleted)
	failedCh := bus.Subscribe(eventbus.TopicTurnFailed)

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.run(ctx, completedCh, failedCh)
	}()
	return done
}

func (a *Aggregator) run(ctx context.Context, completedCh, failedCh <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-completedCh:
			if !ok {
				return
			}
			if p, ok := evt.Payload.(eventbus.TurnCompleted); ok {
				a.logErr(a.RecordCompleted(ctx, p), evt.Topic)
			}
		case evt, ok := <-failedCh:
			if !ok {
				return
			}
			if p, ok := evt.Payload.(eventbus.TurnFailed); ok {
				a.logErr(a.RecordFailed(ctx, p), evt.Topic)
			}
		}
	}
}

func (a *Aggregator) logErr(err error, topic string) {
	if err != nil {
		a.logger.Warn("analytics update failed", "topic", topic, "error", err)
	}
}

// RecordCompleted counts one successful turn.
func (a *Aggregator) RecordCompleted(ctx context.Context, e eventbus.TurnCompleted) error {
	return a.upsert(ctx, e.BusinessID, e.AgentID, e.OccurredAt, DailyStats{
		TotalTurns:    1,
		TotalMessages: int64(e.Messages),
		PromptTokens:  int64(e.PromptTokens),
	})
}

// RecordFailed counts one failed turn. Agent lookup failures are skipped.
func (a *Aggregator) RecordFailed(ctx context.Context, e eventbus.TurnFailed) error {
	if e.Step == stepLoadAgent || e.BusinessID == "" {
		return nil
	}
	return a.upsert(ctx, e.BusinessID, e.AgentID, e.OccurredAt, DailyStats{
		TotalTurns:    1,
		TotalMessages: int64(e.Messages),
		FailedTurns:   1,
	})
}

func (a *Aggregator) upsert(ctx context.Context, businessID, agentID string, at time.Time, d DailyStats) error {
	if at.IsZero() {
		at = a.now()
	}
	day := at.UTC().Format(DayLayout)
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO analytics_daily
			(agent_id, day, business_id, total_turns, total_messages, failed_turns, prompt_tokens, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (agent_id, day) DO UPDATE SET
			total_turns    = total_turns + excluded.total_turns,
			total_messages = total_messages + excluded.total_messages,
			failed_turns   = failed_turns + excluded.failed_turns,
			prompt_tokens  = prompt_tokens + excluded.prompt_tokens,
			updated_at     = excluded.updated_at
	`, agentID, day, businessID, d.TotalTurns, d.TotalMessages, d.FailedTurns, d.PromptTokens, sqlite.FormatTime(a.now()))
	if err != nil {
		return fmt.Errorf("upsert analytics %s/%s: %w", agentID, day, err)
	}
	return nil
}

// Get returns the counters of agentID for the UTC day of day. A day without
// traffic yields zero counters.
func (a *Aggregator) Get(ctx context.Context, businessID, agentID string, day time.Time) (*DailyStats, error) {
	out := &DailyStats{AgentID: agentID, Day: day.UTC().Format(DayLayout)}
	err := a.db.QueryRowContext(ctx, `
		SELECT total_turns, total_messages, failed_turns, prompt_tokens
		FROM analytics_daily
		WHERE agent_id = ? AND day = ? AND business_id = ?
	`, agentID, out.Day, businessID).Scan(&out.TotalTurns, &out.TotalMessages, &out.FailedTurns, &out.PromptTokens)
	if errors.Is(err, sql.ErrNoRows) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get analytics: %w", err)
	}
	return out, nil
}
