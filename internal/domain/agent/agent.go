// Package agent manages the AI chat agents a business configures.
package agent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matiasleandrokruk/agentdesk/internal/infra/sqlite"
	"github.com/matiasleandrokruk/agentdesk/pkg/uuid"
)

var (
	ErrAgentNotFound = errors.New("agent not found")
	ErrNameRequired  = errors.New("agent name is required")
	ErrInvalidStatus = errors.New("invalid agent status")
)

// Agent status constants
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusArchived = "archived"
)

// Agent is a configured chat agent. An empty SystemPrompt means the chat
// service substitutes its default prompt.
type Agent struct {
	ID             string    `json:"id"`
	BusinessID     string    `json:"businessId"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	SystemPrompt   string    `json:"systemPrompt"`
	WelcomeMessage string    `json:"welcomeMessage"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// CreateInput defines the fields for agent creation. Status defaults to active.
type CreateInput struct {
	BusinessID     string
	Name           string
	Description    string
	SystemPrompt   string
	WelcomeMessage string
	Status         string
}

// UpdateInput carries the fields to change; nil leaves a field untouched.
type UpdateInput struct {
	Name           *string
	Description    *string
	SystemPrompt   *string
	WelcomeMessage *string
	Status         *string
}

// ListInput filters and paginates agent listings.
type ListInput struct {
	Status string
	Limit  int
	Offset int
}

// Service provides agent operations scoped to a business.
type Service struct {
	db  *sql.DB
	now func() time.Time
}

// NewService creates a Service instance.
func NewService(db *sql.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// Create inserts a new agent.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Agent, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	status := input.Status
	if status == "" {
		status = StatusActive
	}
	if !validStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	id := uuid.NewV7()
	now := sqlite.FormatTime(s.now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent (id, business_id, name, description, system_prompt, welcome_message, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, input.BusinessID, name, input.Description, input.SystemPrompt, input.WelcomeMessage, status, now, now)
	if err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}
	return s.Get(ctx, input.BusinessID, id)
}

// Get retrieves an agent owned by businessID.
func (s *Service) Get(ctx context.Context, businessID, agentID string) (*Agent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM agent WHERE id = ? AND business_id = ?`, agentID, businessID)
	return scanAgentRow(row)
}

// GetAgent retrieves an agent by id alone. The chat service applies the
// business check itself so that it can report a uniform not-found.
func (s *Service) GetAgent(ctx context.Context, agentID string) (*Agent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM agent WHERE id = ?`, agentID)
	return scanAgentRow(row)
}

// List returns the business's agents, oldest first.
func (s *Service) List(ctx context.Context, businessID string, input ListInput) ([]*Agent, error) {
	limit := input.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := `SELECT ` + agentColumns + ` FROM agent WHERE business_id = ?`
	args := []any{businessID}
	if input.Status != "" {
		q += ` AND status = ?`
		args = append(args, input.Status)
	}
	q += ` ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?`
	args = append(args, limit, input.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	out := make([]*Agent, 0)
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Update applies the non-nil fields of input.
func (s *Service) Update(ctx context.Context, businessID, agentID string, input UpdateInput) (*Agent, error) {
	current, err := s.Get(ctx, businessID, agentID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrNameRequired
		}
		current.Name = name
	}
	if input.Description != nil {
		current.Description = *input.Description
	}
	if input.SystemPrompt != nil {
		current.SystemPrompt = *input.SystemPrompt
	}
	if input.WelcomeMessage != nil {
		current.WelcomeMessage = *input.WelcomeMessage
	}
	if input.Status != nil {
		if !validStatus(*input.Status) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *input.Status)
		}
		current.Status = *input.Status
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE agent
		SET name = ?, description = ?, system_prompt = ?, welcome_message = ?, status = ?, updated_at = ?
		WHERE id = ? AND business_id = ?
	`, current.Name, current.Description, current.SystemPrompt, current.WelcomeMessage, current.Status,
		sqlite.FormatTime(s.now()), agentID, businessID)
	if err != nil {
		return nil, fmt.Errorf("update agent: %w", err)
	}
	return s.Get(ctx, businessID, agentID)
}

// Archive marks the agent archived. Its conversations are kept.
func (s *Service) Archive(ctx context.Context, businessID, agentID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE agent SET status = ?, updated_at = ? WHERE id = ? AND business_id = ?
	`, StatusArchived, sqlite.FormatTime(s.now()), agentID, businessID)
	if err != nil {
		return fmt.Errorf("archive agent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAgentNotFound
	}
	return nil
}

func validStatus(status string) bool {
	switch status {
	case StatusActive, StatusInactive, StatusArchived:
		return true
	}
	return false
}

const agentColumns = `id, business_id, name, description, system_prompt, welcome_message, status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgentRow(row *sql.Row) (*Agent, error) {
	a, err := scanAgent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAgentNotFound
	}
	return a, err
}

func scanAgent(sc rowScanner) (*Agent, error) {
	var a Agent
	var createdAt, updatedAt string
	if err := sc.Scan(&a.ID, &a.BusinessID, &a.Name, &a.Description, &a.SystemPrompt,
		&a.WelcomeMessage, &a.Status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var err error
	if a.CreatedAt, err = sqlite.ParseTime(createdAt); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = sqlite.ParseTime(updatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}
