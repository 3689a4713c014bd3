package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/matiasleandrokruk/agentdesk/internal/domain/agent"
	domainaudit "github.com/matiasleandrokruk/agentdesk/internal/domain/audit"
	"github.com/matiasleandrokruk/agentdesk/internal/domain/client"
	"github.com/matiasleandrokruk/agentdesk/internal/infra/eventbus"
	"github.com/matiasleandrokruk/agentdesk/internal/infra/llm"
)

// Turn steps, as reported in logs, events and the activity log.
const (
	StepPersistInbound  = "persist_inbound"
	StepLoadAgent       = "load_agent"
	StepLoadHistory     = "load_history"
	StepInvoke          = "invoke"
	StepPersistOutbound = "persist_outbound"
	StepTouchClient     = "touch_client"
)

// ActionSendMessage is the activity log action for a chat turn.
const ActionSendMessage = "chat.send_message"

type activityLogger interface {
	LogWithDetails(
		ctx context.Context,
		businessID string,
		actorID string,
		actorType domainaudit.ActorType,
		action string,
		entityType *string,
		entityID *string,
		details *domainaudit.EventDetails,
		outcome domainaudit.Outcome,
	) error
}

// Service orchestrates chat turns. Turns are independent: there is no
// per-conversation lock and no retry.
type Service struct {
	store     ConversationStore
	agents    AgentDirectory
	clients   ClientRegistry
	completer Completer

	tokens        *llm.TokenCounter
	events        eventbus.Publisher
	activity      activityLogger
	logger        *slog.Logger
	historyWindow int
	now           func() time.Time
}

// Option configures optional Service collaborators.
type Option func(*Service)

// WithLogger sets the structured logger. nil keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEvents publishes turn outcomes to bus.
func WithEvents(bus eventbus.Publisher) Option {
	return func(s *Service) { s.events = bus }
}

// WithActivityLog records every turn that got past the inbound write.
func WithActivityLog(logger activityLogger) Option {
	return func(s *Service) { s.activity = logger }
}

// WithTokenCounter sets the prompt size estimator.
func WithTokenCounter(tc *llm.TokenCounter) Option {
	return func(s *Service) {
		if tc != nil {
			s.tokens = tc
		}
	}
}

// WithHistoryWindow overrides DefaultHistoryWindow. Values <= 0 are ignored.
func WithHistoryWindow(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.historyWindow = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires the four required collaborators.
func NewService(store ConversationStore, agents AgentDirectory, clients ClientRegistry, completer Completer, opts ...Option) *Service {
	s := &Service{
		store:         store,
		agents:        agents,
		clients:       clients,
		completer:     completer,
		tokens:        &llm.TokenCounter{},
		logger:        slog.Default(),
		historyWindow: DefaultHistoryWindow,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendMessage runs one turn. Steps run strictly in order and completed steps
// are never rolled back: an unknown agent or a provider failure leaves the
// user message stored without an assistant reply.
//
// An agent owned by another business, or a client bound to another agent, is
// rejected before anything is stored.
func (s *Service) SendMessage(ctx context.Context, in SendMessageInput) (*SendMessageResult, error) {
	if strings.TrimSpace(in.Message) == "" {
		return nil, ErrEmptyMessage
	}
	if in.AgentID == "" || in.ClientID == "" {
		return nil, ErrMissingIDs
	}
	log := s.logger.With("agent_id", in.AgentID, "client_id", in.ClientID)

	ag, agentErr := s.agents.GetAgent(ctx, in.AgentID)
	if agentErr == nil && ag == nil {
		agentErr = ErrAgentNotFound
	}
	if agentErr == nil {
		if err := s.checkOwnership(ctx, ag, in); err != nil {
			log.Warn("chat turn rejected", "business_id", in.BusinessID, "error", err)
			return nil, err
		}
	}

	userMsg, err := s.store.AppendMessage(ctx, AppendMessageInput{
		AgentID:  in.AgentID,
		ClientID: in.ClientID,
		Role:     RoleUser,
		Content:  in.Message,
		At:       s.now(),
	})
	if err != nil {
		log.Error("chat turn failed", "step", StepPersistInbound, "error", err)
		return nil, fmt.Errorf("store user message: %w", err)
	}

	if agentErr != nil {
		if errors.Is(agentErr, agent.ErrAgentNotFound) || errors.Is(agentErr, ErrAgentNotFound) {
			s.fail(ctx, log, in, StepLoadAgent, ErrAgentNotFound, 1, 0)
			return nil, ErrAgentNotFound
		}
		s.fail(ctx, log, in, StepLoadAgent, agentErr, 1, 0)
		return nil, fmt.Errorf("load agent: %w", agentErr)
	}
	if in.BusinessID == "" {
		in.BusinessID = ag.BusinessID
	}

	history, err := s.store.RecentHistory(ctx, HistoryQuery{
		AgentID:  in.AgentID,
		ClientID: in.ClientID,
		Limit:    s.historyWindow,
		BeforeID: userMsg.ID,
	})
	if err != nil {
		s.fail(ctx, log, in, StepLoadHistory, err, 1, 0)
		return nil, fmt.Errorf("load history: %w", err)
	}

	prompt := BuildPrompt(ag.SystemPrompt, history, in.Message)
	promptTokens := s.countTokens(prompt)

	raw, err := s.completer.Complete(ctx, llm.InvokeParams{Messages: prompt})
	if err != nil {
		s.fail(ctx, log, in, StepInvoke, err, 1, promptTokens)
		return nil, fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	}

	reply, ok := llm.FirstChoiceText(raw)
	if !ok {
		log.Warn("completion carried no text, using fallback reply")
		reply = FallbackReply
	}

	metadata, err := json.Marshal(turnMetadata{PromptTokens: promptTokens, History: len(history), Fallback: !ok})
	if err != nil {
		log.Warn("assistant metadata not encoded", "error", err)
		metadata = nil
	}
	if _, err := s.store.AppendMessage(ctx, AppendMessageInput{
		AgentID:  in.AgentID,
		ClientID: in.ClientID,
		Role:     RoleAssistant,
		Content:  reply,
		Metadata: metadata,
		At:       s.now(),
	}); err != nil {
		s.fail(ctx, log, in, StepPersistOutbound, err, 1, promptTokens)
		return nil, fmt.Errorf("store assistant message: %w", err)
	}

	if err := s.clients.TouchLastInteraction(ctx, in.ClientID, s.now()); err != nil {
		s.fail(ctx, log, in, StepTouchClient, err, 2, promptTokens)
		return nil, fmt.Errorf("update client recency: %w", err)
	}

	s.succeed(ctx, log, in, promptTokens, !ok)
	return &SendMessageResult{UserMessage: in.Message, AssistantMessage: reply}, nil
}

// checkOwnership rejects an agent of another business and a client bound to
// a different agent. An unknown client passes: recency touch is a no-op for it.
func (s *Service) checkOwnership(ctx context.Context, ag *agent.Agent, in SendMessageInput) error {
	if in.BusinessID != "" && ag.BusinessID != in.BusinessID {
		return ErrAgentNotFound
	}
	c, err := s.clients.GetClient(ctx, in.ClientID)
	switch {
	case errors.Is(err, client.ErrClientNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("load client: %w", err)
	case c.AgentID != ag.ID || c.BusinessID != ag.BusinessID:
		return ErrClientNotFound
	}
	return nil
}

// turnMetadata is stored alongside each assistant message.
type turnMetadata struct {
	PromptTokens int  `json:"prompt_tokens"`
	History      int  `json:"history"`
	Fallback     bool `json:"fallback"`
}

// BuildPrompt assembles [system] + history + [user]. History roles and text
// pass through unchanged. A blank system prompt becomes DefaultSystemPrompt.
func BuildPrompt(systemPrompt string, history []HistoryEntry, userText string) []llm.Message {
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = DefaultSystemPrompt
	}
	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: llm.Text(systemPrompt)})
	for _, h := range history {
		msgs = append(msgs, llm.Message{Role: h.Role, Content: llm.Text(h.Content)})
	}
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: llm.Text(userText)})
}

func (s *Service) countTokens(prompt []llm.Message) int {
	wire, err := llm.NormalizeMessages(prompt)
	if err != nil {
		return 0
	}
	return s.tokens.CountMessages(wire)
}

func (s *Service) succeed(ctx context.Context, log *slog.Logger, in SendMessageInput, promptTokens int, fallback bool) {
	log.Info("chat turn completed", "prompt_tokens", promptTokens, "fallback", fallback)
	if s.events != nil {
		s.events.Publish(eventbus.TopicTurnCompleted, eventbus.TurnCompleted{
			BusinessID:   in.BusinessID,
			AgentID:      in.AgentID,
			ClientID:     in.ClientID,
			PromptTokens: promptTokens,
			Messages:     2,
			Fallback:     fallback,
			OccurredAt:   s.now(),
		})
	}
	s.record(ctx, log, in, domainaudit.OutcomeSuccess, map[string]any{
		"prompt_tokens": promptTokens,
		"fallback":      fallback,
	})
}

// fail reports a turn that stopped after the inbound message was stored.
func (s *Service) fail(ctx context.Context, log *slog.Logger, in SendMessageInput, step string, err error, stored, promptTokens int) {
	log.Error("chat turn failed", "step", step, "error", err)
	if s.events != nil {
		s.events.Publish(eventbus.TopicTurnFailed, eventbus.TurnFailed{
			BusinessID: in.BusinessID,
			AgentID:    in.AgentID,
			ClientID:   in.ClientID,
			Step:       step,
			Err:        err.Error(),
			Messages:   stored,
			OccurredAt: s.now(),
		})
	}
	s.record(ctx, log, in, domainaudit.OutcomeError, map[string]any{
		"step":          step,
		"error":         err.Error(),
		"prompt_tokens": promptTokens,
	})
}

func (s *Service) record(ctx context.Context, log *slog.Logger, in SendMessageInput, outcome domainaudit.Outcome, meta map[string]any) {
	if s.activity == nil || in.BusinessID == "" {
		return
	}
	entityType := "client"
	meta["client_id"] = in.ClientID
	if err := s.activity.LogWithDetails(ctx, in.BusinessID, in.AgentID, domainaudit.ActorTypeAgent,
		ActionSendMessage, &entityType, &in.ClientID,
		&domainaudit.EventDetails{Metadata: meta}, outcome); err != nil {
		log.Warn("activity log write failed", "error", err)
	}
}
