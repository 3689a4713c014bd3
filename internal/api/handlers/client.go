package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/matiasleandrokruk/agentdesk/internal/domain/agent"
	"github.com/matiasleandrokruk/agentdesk/internal/domain/client"
)

// ClientHandler handles the end users bound to a business's agents.
type ClientHandler struct {
	service *client.Service
}

// NewClientHandler creates a new ClientHandler.
func NewClientHandler(service *client.Service) *ClientHandler {
	return &ClientHandler{service: service}
}

// CreateClientRequest is the body of POST /api/v1/clients.
type CreateClientRequest struct {
	AgentID string `json:"agentId"`
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// CreateClient handles POST /api/v1/clients. The agent must belong to the
// caller's business.
func (h *ClientHandler) CreateClient(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromRequest(w, r)
	if !ok {
		return
	}

	var req CreateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidBody)
		return
	}
	if req.AgentID == "" || strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "agentId and name are required")
		return
	}

	c, err := h.service.Create(r.Context(), client.CreateInput{
		BusinessID: businessID,
		AgentID:    req.AgentID,
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
	})
	if err != nil {
		if errors.Is(err, agent.ErrAgentNotFound) {
			writeError(w, http.StatusNotFound, errAgentNotFound)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create client")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"data": c})
}

// ListClients handles GET /api/v1/clients?agentId=, most recently active first.
func (h *ClientHandler) ListClients(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromRequest(w, r)
	if !ok {
		return
	}

	agentID := r.URL.Query().Get("agentId")
	if agentID == "" {
		writeError(w, http.StatusBadRequest, "agentId is required")
		return
	}

	page := parsePaginationParams(r)
	clients, err := h.service.ListByAgent(r.Context(), businessID, agentID, page.Limit, page.Offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list clients")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": clients,
		"meta": map[string]any{"limit": page.Limit, "offset": page.Offset},
	})
}

// GetClient handles GET /api/v1/clients/{id}.
func (h *ClientHandler) GetClient(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromRequest(w, r)
	if !ok {
		return
	}

	c, err := h.service.Get(r.Context(), businessID, chi.URLParam(r, paramID))
	if err != nil {
		if errors.Is(err, client.ErrClientNotFound) {
			writeError(w, http.StatusNotFound, "client not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get client")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": c})
}
