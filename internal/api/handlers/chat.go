package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/matiasleandrokruk/agentdesk/internal/domain/agent"
	"github.com/matiasleandrokruk/agentdesk/internal/domain/chat"
	"github.com/matiasleandrokruk/agentdesk/internal/infra/llm"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// MessageSender runs one chat turn. *chat.Service satisfies it.
type MessageSender interface {
	SendMessage(ctx context.Context, in chat.SendMessageInput) (*chat.SendMessageResult, error)
}

type historyReader interface {
	History(ctx context.Context, agentID, clientID string, limit int) ([]*chat.Message, error)
}

type agentOwner interface {
	Get(ctx context.Context, businessID, agentID string) (*agent.Agent, error)
}

// ChatHandler serves chat turns and conversation history.
type ChatHandler struct {
	sender  MessageSender
	history historyReader
	agents  agentOwner
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(sender MessageSender, history historyReader, agents agentOwner) *ChatHandler {
	return &ChatHandler{sender: sender, history: history, agents: agents}
}

// SendMessageRequest is the body of POST /api/v1/chat/messages.
type SendMessageRequest struct {
	AgentID  string `json:"agentId"`
	ClientID string `json:"clientId"`
	Message  string `json:"message"`
}

// SendMessage handles POST /api/v1/chat/messages.
//
// Response codes:
//   - 200 OK: {userMessage, assistantMessage}
//   - 400 Bad Request: invalid body or malformed completion input
//   - 404 Not Found: unknown agent (the user message is already stored), or an
//     agent of another business or a client of another agent (nothing stored)
//   - 500 Internal Server Error: provider not configured or storage failure
//   - 502 Bad Gateway: provider or network failure
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromRequest(w, r)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidBody)
		return
	}

	res, err := h.sender.SendMessage(r.Context(), chat.SendMessageInput{
		BusinessID: businessID,
		AgentID:    req.AgentID,
		ClientID:   req.ClientID,
		Message:    req.Message,
	})
	if err != nil {
		status, msg := ChatErrorStatus(err)
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ChatErrorStatus maps a SendMessage error to an HTTP status and message.
func ChatErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, chat.ErrMissingIDs):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, llm.ErrMissingAPIKey):
		return http.StatusInternalServerError, "completion provider is not configured"
	case llm.IsInputError(err):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, chat.ErrAgentNotFound):
		return http.StatusNotFound, errAgentNotFound
	case errors.Is(err, chat.ErrClientNotFound):
		return http.StatusNotFound, "client not found"
	case errors.Is(err, chat.ErrCompletionFailed):
		return http.StatusBadGateway, err.Error()
	default:
		return http.StatusInternalServerError, "failed to process message"
	}
}

// History handles GET /api/v1/chat/history?agentId=&clientId=&limit=.
// Messages are returned oldest first.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromRequest(w, r)
	if !ok {
		return
	}

	agentID := r.URL.Query().Get("agentId")
	clientID := r.URL.Query().Get("clientId")
	if agentID == "" || clientID == "" {
		writeError(w, http.StatusBadRequest, "agentId and clientId are required")
		return
	}

	if _, err := h.agents.Get(r.Context(), businessID, agentID); err != nil {
		if errors.Is(err, agent.ErrAgentNotFound) {
			writeError(w, http.StatusNotFound, errAgentNotFound)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	page := parsePage(r, defaultHistoryLimit, maxHistoryLimit)
	msgs, err := h.history.History(r.Context(), agentID, clientID, page.Limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": msgs})
}
