package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/matiasleandrokruk/agentdesk/internal/domain/agent"
)

const errAgentNotFound = "agent not found"

// AgentHandler handles agent CRUD for the caller's business.
type AgentHandler struct {
	service *agent.Service
}

// NewAgentHandler creates a new AgentHandler.
func NewAgentHandler(service *agent.Service) *AgentHandler {
	return &AgentHandler{service: service}
}

// CreateAgentRequest is the body of POST /api/v1/agents.
type CreateAgentRequest struct {
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	SystemPrompt   string `json:"systemPrompt,omitempty"`
	WelcomeMessage string `json:"welcomeMessage,omitempty"`
	Status         string `json:"status,omitempty"`
}

// UpdateAgentRequest is the body of PUT /api/v1/agents/{id}. Omitted fields
// are left unchanged.
type UpdateAgentRequest struct {
	Name           *string `json:"name,omitempty"`
	Description    *string `json:"description,omitempty"`
	SystemPrompt   *string `json:"systemPrompt,omitempty"`
	WelcomeMessage *string `json:"welcomeMessage,omitempty"`
	Status         *string `json:"status,omitempty"`
}

// CreateAgent handles POST /api/v1/agents.
func (h *AgentHandler) CreateAgent(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromRequest(w, r)
	if !ok {
		return
	}

	var req CreateAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidBody)
		return
	}

	a, err := h.service.Create(r.Context(), agent.CreateInput{
		BusinessID:     businessID,
		Name:           req.Name,
		Description:    req.Description,
		SystemPrompt:   req.SystemPrompt,
		WelcomeMessage: req.WelcomeMessage,
		Status:         req.Status,
	})
	if err != nil {
		h.handleAgentError(w, err, "failed to create agent")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"data": a})
}

// ListAgents handles GET /api/v1/agents?status=&limit=&offset=.
func (h *AgentHandler) ListAgents(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromRequest(w, r)
	if !ok {
		return
	}

	page := parsePaginationParams(r)
	agents, err := h.service.List(r.Context(), businessID, agent.ListInput{
		Status: r.URL.Query().Get("status"),
		Limit:  page.Limit,
		Offset: page.Offset,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list agents")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": agents,
		"meta": map[string]any{"limit": page.Limit, "offset": page.Offset},
	})
}

// GetAgent handles GET /api/v1/agents/{id}.
func (h *AgentHandler) GetAgent(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromRequest(w, r)
	if !ok {
		return
	}

	a, err := h.service.Get(r.Context(), businessID, chi.URLParam(r, paramID))
	if err != nil {
		h.handleAgentError(w, err, "failed to get agent")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": a})
}

// UpdateAgent handles PUT /api/v1/agents/{id}.
func (h *AgentHandler) UpdateAgent(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromRequest(w, r)
	if !ok {
		return
	}

	var req UpdateAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidBody)
		return
	}

	a, err := h.service.Update(r.Context(), businessID, chi.URLParam(r, paramID), agent.UpdateInput{
		Name:           req.Name,
		Description:    req.Description,
		SystemPrompt:   req.SystemPrompt,
		WelcomeMessage: req.WelcomeMessage,
		Status:         req.Status,
	})
	if err != nil {
		h.handleAgentError(w, err, "failed to update agent")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": a})
}

// ArchiveAgent handles DELETE /api/v1/agents/{id}. The agent is archived,
// not removed.
func (h *AgentHandler) ArchiveAgent(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.service.Archive(r.Context(), businessID, chi.URLParam(r, paramID)); err != nil {
		h.handleAgentError(w, err, "failed to archive agent")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AgentHandler) handleAgentError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, agent.ErrAgentNotFound):
		writeError(w, http.StatusNotFound, errAgentNotFound)
	case errors.Is(err, agent.ErrNameRequired), errors.Is(err, agent.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, fallback)
	}
}
