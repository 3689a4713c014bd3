package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/matiasleandrokruk/agentdesk/internal/domain/agent"
	"github.com/matiasleandrokruk/agentdesk/internal/domain/analytics"
)

type statsReader interface {
	Get(ctx context.Context, businessID, agentID string, day time.Time) (*analytics.DailyStats, error)
}

// AnalyticsHandler serves per-agent daily usage counters.
type AnalyticsHandler struct {
	stats  statsReader
	agents agentOwner
	now    func() time.Time
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(stats statsReader, agents agentOwner) *AnalyticsHandler {
	return &AnalyticsHandler{stats: stats, agents: agents, now: time.Now}
}

// AgentDaily handles GET /api/v1/analytics/agents/{id}?date=YYYY-MM-DD.
// date defaults to the current UTC day.
func (h *AnalyticsHandler) AgentDaily(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromRequest(w, r)
	if !ok {
		return
	}

	day := h.now().UTC()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse(analytics.DayLayout, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}

	agentID := chi.URLParam(r, paramID)
	if _, err := h.agents.Get(r.Context(), businessID, agentID); err != nil {
		if errors.Is(err, agent.ErrAgentNotFound) {
			writeError(w, http.StatusNotFound, errAgentNotFound)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load analytics")
		return
	}

	stats, err := h.stats.Get(r.Context(), businessID, agentID, day)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load analytics")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": stats})
}
