// Package api declares HTTP contracts and route registration helpers.
package api

import "net/http"

// StatsHandler handles service statistics requests.
type StatsHandler struct {
	deps Dependencies
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(deps Dependencies) *StatsHandler {
	return &StatsHandler{deps: deps}
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.GetStats(r.Context()))
}
