// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"errors"
	"net/http"
	"strconv"
)

// RankingHandler handles popularity ranking requests.
type RankingHandler struct {
	deps Dependencies
}

// NewRankingHandler creates a new ranking handler.
func NewRankingHandler(deps Dependencies) *RankingHandler {
	return &RankingHandler{deps: deps}
}

// HandleGetRanking handles GET /ranking requests. Query parameters: search
// filters by title or video id substring, limit caps each window list.
func (h *RankingHandler) HandleGetRanking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", errors.New("invalid limit"))
			return
		}
		limit = n
	}
	bundle, err := h.deps.GetRankings(r.Context(), r.URL.Query().Get("search"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}
