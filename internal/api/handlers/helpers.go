// Package handlers translates HTTP requests into domain service calls and
// maps domain errors to status codes.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/matiasleandrokruk/agentdesk/internal/api/ctxkeys"
)

const (
	headerContentType = "Content-Type"
	mimeJSON          = "application/json"
	paramID           = "id"

	errInvalidBody            = "invalid request body"
	errMissingBusinessContext = "missing business context"
)

// paginationParams holds parsed limit and offset values.
type paginationParams struct {
	Limit  int
	Offset int
}

const (
	defaultPaginationLimit = 25
	maxPaginationLimit     = 100
)

// parsePaginationParams extracts limit/offset from the query string.
func parsePaginationParams(r *http.Request) paginationParams {
	return parsePage(r, defaultPaginationLimit, maxPaginationLimit)
}

func parsePage(r *http.Request, def, max int) paginationParams {
	limit := def
	offset := 0

	if lim, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && lim > 0 {
		if lim > max {
			lim = max
		}
		limit = lim
	}
	if off, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && off >= 0 {
		offset = off
	}
	return paginationParams{Limit: limit, Offset: offset}
}

// businessFromRequest writes a 401 and returns false when the request
// carries no authenticated business.
func businessFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	businessID, ok := ctxkeys.String(r.Context(), ctxkeys.BusinessID)
	if !ok {
		writeError(w, http.StatusUnauthorized, errMissingBusinessContext)
		return "", false
	}
	return businessID, true
}

// writeJSON writes v as a JSON body with statusCode.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set(headerContentType, mimeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set(headerContentType, mimeJSON)
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		http.Error(w, `{"error":"failed to encode error response"}`, http.StatusInternalServerError)
	}
}
