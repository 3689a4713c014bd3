package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/matiasleandrokruk/agentdesk/internal/infra/sqlite"
	"github.com/matiasleandrokruk/agentdesk/pkg/uuid"
)

// Store is the SQLite ConversationStore.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ ConversationStore = (*Store)(nil)

// NewStore creates a Store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// AppendMessage inserts one message. Rows are never updated.
func (s *Store) AppendMessage(ctx context.Context, in AppendMessageInput) (*Message, error) {
	at := in.At
	if at.IsZero() {
		at = s.now()
	}
	msg := &Message{
		ID:        uuid.NewV7(),
		AgentID:   in.AgentID,
		ClientID:  in.ClientID,
		Role:      in.Role,
		Content:   in.Content,
		Metadata:  in.Metadata,
		CreatedAt: at.UTC(),
	}

	var metadata sql.NullString
	if len(in.Metadata) > 0 {
		metadata = sql.NullString{String: string(in.Metadata), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_message (id, agent_id, client_id, role, content, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.AgentID, msg.ClientID, msg.Role, msg.Content, metadata, sqlite.FormatTime(at))
	if err != nil {
		return nil, fmt.Errorf("append %s message: %w", in.Role, err)
	}
	return msg, nil
}

// RecentHistory returns the latest q.Limit messages, oldest first.
func (s *Store) RecentHistory(ctx context.Context, q HistoryQuery) ([]HistoryEntry, error) {
	msgs, err := s.recent(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]HistoryEntry, len(msgs))
	for i, m := range msgs {
		out[i] = HistoryEntry{Role: m.Role, Content: m.Content}
	}
	return out, nil
}

// History returns the latest limit messages of a conversation with full
// metadata, oldest first.
func (s *Store) History(ctx context.Context, agentID, clientID string, limit int) ([]*Message, error) {
	return s.recent(ctx, HistoryQuery{AgentID: agentID, ClientID: clientID, Limit: limit})
}

func (s *Store) recent(ctx context.Context, q HistoryQuery) ([]*Message, error) {
	if q.Limit <= 0 {
		return []*Message{}, nil
	}

	query := `
		SELECT id, agent_id, client_id, role, content, metadata, created_at
		FROM chat_message
		WHERE agent_id = ? AND client_id = ?`
	args := []any{q.AgentID, q.ClientID}
	if q.BeforeID != "" {
		query += ` AND seq < (SELECT seq FROM chat_message WHERE id = ?)`
		args = append(args, q.BeforeID)
	}
	query += ` ORDER BY created_at DESC, seq DESC LIMIT ?`
	args = append(args, q.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	msgs := make([]*Message, 0, q.Limit)
	for rows.Next() {
		var (
			m         Message
			metadata  sql.NullString
			createdAt string
		)
		if err := rows.Scan(&m.ID, &m.AgentID, &m.ClientID, &m.Role, &m.Content, &metadata, &createdAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if metadata.Valid && metadata.String != "" {
			m.Metadata = json.RawMessage(metadata.String)
		}
		if m.CreatedAt, err = sqlite.ParseTime(createdAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	slices.Reverse(msgs)
	return msgs, nil
}
