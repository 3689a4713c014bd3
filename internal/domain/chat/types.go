// Package chat runs one chat turn: store the user's message, build a bounded
// prompt for the agent, call the completion provider and store the reply.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/matiasleandrokruk/agentdesk/internal/domain/agent"
	"github.com/matiasleandrokruk/agentdesk/internal/domain/client"
	"github.com/matiasleandrokruk/agentdesk/internal/infra/llm"
)

// Message roles stored in the conversation log.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

const (
	// DefaultHistoryWindow is how many prior messages a prompt carries.
	DefaultHistoryWindow = 20
	// DefaultSystemPrompt is used when the agent has no prompt of its own.
	DefaultSystemPrompt = "You are a helpful customer service assistant."
	// FallbackReply replaces a completion whose first choice carries no text.
	FallbackReply = "I apologize, I could not generate a response."
)

var (
	ErrAgentNotFound  = errors.New("agent not found")
	ErrClientNotFound = errors.New("client not found")
	ErrEmptyMessage   = errors.New("message must not be empty")
	ErrMissingIDs     = errors.New("agentId and clientId are required")

	// ErrCompletionFailed wraps every error returned by the Completer.
	ErrCompletionFailed = errors.New("completion failed")
)

// Message is one row of the append-only conversation log.
type Message struct {
	ID        string          `json:"id"`
	AgentID   string          `json:"agentId"`
	ClientID  string          `json:"clientId"`
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// AppendMessageInput is one message to append. A zero At means now.
type AppendMessageInput struct {
	AgentID  string
	ClientID string
	Role     string
	Content  string
	Metadata json.RawMessage
	At       time.Time
}

// HistoryQuery selects the most recent Limit messages of one conversation.
// When BeforeID is set only messages stored before it are considered.
type HistoryQuery struct {
	AgentID  string
	ClientID string
	Limit    int
	BeforeID string
}

// HistoryEntry is a prior message as it is replayed into a prompt.
type HistoryEntry struct {
	Role    string
	Content string
}

// SendMessageInput is one inbound user message.
type SendMessageInput struct {
	BusinessID string
	AgentID    string
	ClientID   string
	Message    string
}

// SendMessageResult carries both halves of a completed turn.
type SendMessageResult struct {
	UserMessage      string `json:"userMessage"`
	AssistantMessage string `json:"assistantMessage"`
}

// ConversationStore appends to and reads the conversation log.
type ConversationStore interface {
	AppendMessage(ctx context.Context, in AppendMessageInput) (*Message, error)
	// RecentHistory returns matching messages oldest first.
	RecentHistory(ctx context.Context, q HistoryQuery) ([]HistoryEntry, error)
}

// AgentDirectory resolves agents by id.
type AgentDirectory interface {
	GetAgent(ctx context.Context, agentID string) (*agent.Agent, error)
}

// ClientRegistry resolves clients and records their recency.
type ClientRegistry interface {
	// GetClient returns client.ErrClientNotFound for an unknown id.
	GetClient(ctx context.Context, clientID string) (*client.Client, error)
	TouchLastInteraction(ctx context.Context, clientID string, at time.Time) error
}

// Completer performs one chat completion and returns the raw provider body.
type Completer interface {
	Complete(ctx context.Context, p llm.InvokeParams) (json.RawMessage, error)
}
