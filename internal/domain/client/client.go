// Package client manages the end users (clients) that talk to a business's agents.
package client

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matiasleandrokruk/agentdesk/internal/domain/agent"
	"github.com/matiasleandrokruk/agentdesk/internal/infra/sqlite"
	"github.com/matiasleandrokruk/agentdesk/pkg/uuid"
)

var ErrClientNotFound = errors.New("client not found")

// Client is an end user bound to one agent.
type Client struct {
	ID                string     `json:"id"`
	BusinessID        string     `json:"businessId"`
	AgentID           string     `json:"agentId"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	Phone             string     `json:"phone"`
	LastInteractionAt *time.Time `json:"lastInteractionAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// CreateInput defines the fields for client creation.
type CreateInput struct {
	BusinessID string
	AgentID    string
	Name       string
	Email      string
	Phone      string
}

// agentLookup is satisfied by *agent.Service.
type agentLookup interface {
	Get(ctx context.Context, businessID, agentID string) (*agent.Agent, error)
}

// Service provides client operations.
type Service struct {
	db     *sql.DB
	agents agentLookup
	now    func() time.Time
}

// NewService creates a Service. agents verifies ownership on Create.
func NewService(db *sql.DB, agents agentLookup) *Service {
	return &Service{db: db, agents: agents, now: time.Now}
}

// Create inserts a client for an agent the business owns.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Client, error) {
	if _, err := s.agents.Get(ctx, input.BusinessID, input.AgentID); err != nil {
		return nil, err
	}

	id := uuid.NewV7()
	now := sqlite.FormatTime(s.now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO client (id, business_id, agent_id, name, email, phone, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, input.BusinessID, input.AgentID, strings.TrimSpace(input.Name),
		strings.TrimSpace(input.Email), strings.TrimSpace(input.Phone), now, now)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return s.Get(ctx, input.BusinessID, id)
}

// Get retrieves a client owned by businessID.
func (s *Service) Get(ctx context.Context, businessID, clientID string) (*Client, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM client WHERE id = ? AND business_id = ?`, clientID, businessID)
	c, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrClientNotFound
	}
	return c, err
}

// GetClient retrieves a client by id regardless of business. The chat turn
// uses it to check the client belongs to the addressed agent.
func (s *Service) GetClient(ctx context.Context, clientID string) (*Client, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM client WHERE id = ?`, clientID)
	c, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrClientNotFound
	}
	return c, err
}

// ListByAgent returns an agent's clients, most recently active first.
// Clients that never interacted sort last.
func (s *Service) ListByAgent(ctx context.Context, businessID, agentID string, limit, offset int) ([]*Client, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+clientColumns+` FROM client
		WHERE business_id = ? AND agent_id = ?
		ORDER BY last_interaction_at IS NULL, last_interaction_at DESC, created_at DESC
		LIMIT ? OFFSET ?
	`, businessID, agentID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	out := make([]*Client, 0)
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// TouchLastInteraction sets last_interaction_at. An unknown id is not an
// error: the update matches zero rows.
func (s *Service) TouchLastInteraction(ctx context.Context, clientID string, at time.Time) error {
	ts := sqlite.FormatTime(at)
	_, err := s.db.ExecContext(ctx, `
		UPDATE client SET last_interaction_at = ?, updated_at = ? WHERE id = ?
	`, ts, ts, clientID)
	if err != nil {
		return fmt.Errorf("touch client %s: %w", clientID, err)
	}
	return nil
}

const clientColumns = `id, business_id, agent_id, name, email, phone, last_interaction_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(sc rowScanner) (*Client, error) {
	var (
		c                    Client
		lastInteraction      sql.NullString
		createdAt, updatedAt string
	)
	if err := sc.Scan(&c.ID, &c.BusinessID, &c.AgentID, &c.Name, &c.Email, &c.Phone,
		&lastInteraction, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var err error
	if c.LastInteractionAt, err = sqlite.ParseNullTime(lastInteraction); err != nil {
		return nil, err
	}
	if c.CreatedAt, err = sqlite.ParseTime(createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = sqlite.ParseTime(updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}
