// Package audit records the business-scoped activity log. The log is
// append-only: the table rejects UPDATE and DELETE.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/matiasleandrokruk/agentdesk/internal/infra/sqlite"
	"github.com/matiasleandrokruk/agentdesk/pkg/uuid"
)

// ErrEventNotFound is returned by GetByID for an unknown id.
var ErrEventNotFound = errors.New("activity event not found")

// Service provides activity logging.
type Service struct {
	db  *sql.DB
	now func() time.Time
}

// NewService creates a new activity log service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// Log appends event. Empty ID and CreatedAt are filled in.
func (s *Service) Log(ctx context.Context, event *Event) error {
	if event.ID == "" {
		event.ID = uuid.NewV7()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now()
	}
	details := event.Details
	if len(details) == 0 {
		details = json.RawMessage("{}")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_log (
			id, business_id, actor_id, actor_type, action, entity_type, entity_id,
			details, outcome, trace_id, ip_address, user_agent, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.ID, event.BusinessID, event.ActorID, string(event.ActorType), event.Action,
		event.EntityType, event.EntityID, string(details), string(event.Outcome),
		event.TraceID, event.IPAddress, event.UserAgent, sqlite.FormatTime(event.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("audit: insert %s: %w", event.Action, err)
	}
	return nil
}

// LogWithDetails is a helper for the common case with structured details.
func (s *Service) LogWithDetails(
	ctx context.Context,
	businessID string,
	actorID string,
	actorType ActorType,
	action string,
	entityType *string,
	entityID *string,
	details *EventDetails,
	outcome Outcome,
) error {
	var detailsJSON json.RawMessage
	if details != nil {
		var err error
		detailsJSON, err = json.Marshal(details)
		if err != nil {
			return err
		}
	}

	return s.Log(ctx, &Event{
		BusinessID: businessID,
		ActorID:    actorID,
		ActorType:  actorType,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    detailsJSON,
		Outcome:    outcome,
	})
}

// GetByID retrieves a single event by ID.
func (s *Service) GetByID(ctx context.Context, id string) (*Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM activity_log WHERE id = ?`, id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	return ev, err
}

// ListByBusiness returns a page of the business's events, newest first, and
// the total count.
func (s *Service) ListByBusiness(ctx context.Context, businessID string, limit, offset int) ([]*Event, int, error) {
	events, err := s.list(ctx, `WHERE business_id = ?`, []any{businessID}, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activity_log WHERE business_id = ?`, businessID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("audit: count: %w", err)
	}
	return events, total, nil
}

// ListByEntity returns a business's events for one entity, newest first.
func (s *Service) ListByEntity(ctx context.Context, businessID, entityType, entityID string, limit int) ([]*Event, error) {
	return s.list(ctx, `WHERE business_id = ? AND entity_type = ? AND entity_id = ?`,
		[]any{businessID, entityType, entityID}, limit, 0)
}

// ListByAction returns a business's events for one action, newest first.
func (s *Service) ListByAction(ctx context.Context, businessID, action string, limit, offset int) ([]*Event, error) {
	return s.list(ctx, `WHERE business_id = ? AND action = ?`, []any{businessID, action}, limit, offset)
}

const eventColumns = `id, business_id, actor_id, actor_type, action, entity_type, entity_id,
	details, outcome, trace_id, ip_address, user_agent, created_at`

func (s *Service) list(ctx context.Context, where string, args []any, limit, offset int) ([]*Event, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + eventColumns + ` FROM activity_log ` + where + ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, q, append(args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	events := make([]*Event, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(sc scanner) (*Event, error) {
	var (
		ev        Event
		actorType string
		outcome   string
		details   sql.NullString
		createdAt string
	)
	if err := sc.Scan(
		&ev.ID, &ev.BusinessID, &ev.ActorID, &actorType, &ev.Action, &ev.EntityType, &ev.EntityID,
		&details, &outcome, &ev.TraceID, &ev.IPAddress, &ev.UserAgent, &createdAt,
	); err != nil {
		return nil, err
	}
	ev.ActorType = ActorType(actorType)
	ev.Outcome = Outcome(outcome)
	if details.Valid && details.String != "" {
		ev.Details = json.RawMessage(details.String)
	}
	t, err := sqlite.ParseTime(createdAt)
	if err != nil {
		return nil, err
	}
	ev.CreatedAt = t
	return &ev, nil
}
