// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"errors"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"

	service "github.com/ucmao/parse-ucmao-backend/internal/app"
	"github.com/ucmao/parse-ucmao-backend/internal/domain/types"
)

// ScoreHandler handles engagement scoring requests.
type ScoreHandler struct {
	deps Dependencies
}

// NewScoreHandler creates a new score handler.
func NewScoreHandler(deps Dependencies) *ScoreHandler {
	return &ScoreHandler{deps: deps}
}

type scoreRequest struct {
	VideoIDs []string `json:"video_ids"`
	Action   string   `json:"action"`
}

func (req scoreRequest) validate() error {
	switch {
	case len(req.VideoIDs) == 0:
		return errors.New("missing video_ids")
	case strings.TrimSpace(req.Action) == "":
		return errors.New("missing action")
	}
	for _, id := range req.VideoIDs {
		if id == "" {
			return errors.New("empty video id")
		}
	}
	return nil
}

type scoreResponse struct {
	TotalAdded int                 `json:"total_added"`
	Results    []types.ScoreResult `json:"results"`
}

// HandlePostScore handles POST /score requests.
func (h *ScoreHandler) HandlePostScore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	total, results, err := h.deps.AddScore(r.Context(), req.VideoIDs, req.Action)
	if err != nil {
		if errors.Is(err, service.ErrInvalidArgument) {
			writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, scoreResponse{TotalAdded: total, Results: results})
}

type totalScoreResponse struct {
	VideoID    string `json:"video_id"`
	TotalScore int64  `json:"total_score"`
}

// HandleGetScore handles GET /score/{video_id} requests.
func (h *ScoreHandler) HandleGetScore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	videoID := strings.TrimPrefix(r.URL.Path, "/score/")
	if videoID == "" || strings.Contains(videoID, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	total, err := h.deps.VideoTotalScore(r.Context(), videoID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, totalScoreResponse{VideoID: videoID, TotalScore: total})
}
