package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	domainaudit "github.com/matiasleandrokruk/agentdesk/internal/domain/audit"
	"github.com/matiasleandrokruk/agentdesk/pkg/uuid"
)

const errActivityNotFound = "activity not found"

// ActivityHandler exposes the business's append-only activity log.
type ActivityHandler struct {
	service *domainaudit.Service
}

// NewActivityHandler creates a new ActivityHandler.
func NewActivityHandler(service *domainaudit.Service) *ActivityHandler {
	return &ActivityHandler{service: service}
}

// ListActivity handles GET /api/v1/activity, newest first. Optional filters:
// action, or entityType together with entityId.
func (h *ActivityHandler) ListActivity(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromRequest(w, r)
	if !ok {
		return
	}

	page := parsePaginationParams(r)
	q := r.URL.Query()

	var (
		events []*domainaudit.Event
		total  int
		err    error
	)
	switch {
	case q.Get("entityType") != "" && q.Get("entityId") != "":
		events, err = h.service.ListByEntity(r.Context(), businessID, q.Get("entityType"), q.Get("entityId"), page.Limit)
		total = len(events)
	case q.Get("action") != "":
		events, err = h.service.ListByAction(r.Context(), businessID, q.Get("action"), page.Limit, page.Offset)
		total = len(events)
	default:
		events, total, err = h.service.ListByBusiness(r.Context(), businessID, page.Limit, page.Offset)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list activity")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": events,
		"meta": map[string]any{"total": total, "limit": page.Limit, "offset": page.Offset},
	})
}

// GetActivity handles GET /api/v1/activity/{id}.
func (h *ActivityHandler) GetActivity(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromRequest(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, paramID)
	if !uuid.Valid(id) {
		writeError(w, http.StatusNotFound, errActivityNotFound)
		return
	}

	event, err := h.service.GetByID(r.Context(), id)
	if errors.Is(err, domainaudit.ErrEventNotFound) || (err == nil && event.BusinessID != businessID) {
		writeError(w, http.StatusNotFound, errActivityNotFound)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get activity")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": event})
}
