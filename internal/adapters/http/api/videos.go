// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"errors"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/ucmao/parse-ucmao-backend/internal/adapters/repository"
)

// VideosHandler handles catalog ingestion requests.
type VideosHandler struct {
	deps Dependencies
}

// NewVideosHandler creates a new videos handler.
func NewVideosHandler(deps Dependencies) *VideosHandler {
	return &VideosHandler{deps: deps}
}

type videoPayload struct {
	VideoID  string `json:"video_id"`
	Platform string `json:"platform"`
	Title    string `json:"title"`
	VideoURL string `json:"video_url"`
	CoverURL string `json:"cover_url"`
}

type videosRequest struct {
	Videos   []videoPayload `json:"videos"`
	Keywords string         `json:"keywords"`
}

func (req videosRequest) validate() error {
	if len(req.Videos) == 0 {
		return errors.New("missing videos")
	}
	for _, v := range req.Videos {
		if v.VideoID == "" {
			return errors.New("missing video_id")
		}
	}
	return nil
}

type videoOutcome struct {
	VideoID string `json:"video_id"`
	Action  string `json:"action"`
	Error   string `json:"error,omitempty"`
}

type videosResponse struct {
	Outcomes []videoOutcome `json:"outcomes"`
}

// HandlePostVideos handles POST /videos requests, storing parsed videos and
// logging the lookup under the caller's identity.
func (h *VideosHandler) HandlePostVideos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	userID, ok := resolveCaller(w, r, h.deps)
	if !ok {
		return
	}
	var req videosRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	entries := make([]repository.CatalogEntry, 0, len(req.Videos))
	for _, v := range req.Videos {
		entries = append(entries, repository.CatalogEntry{
			VideoID:   v.VideoID,
			Platform:  v.Platform,
			Title:     v.Title,
			VideoURL:  v.VideoURL,
			CoverURL:  v.CoverURL,
			IsVisible: true,
		})
	}
	outcomes, err := h.deps.SaveVideos(r.Context(), entries, req.Keywords, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}

	resp := videosResponse{Outcomes: make([]videoOutcome, 0, len(outcomes))}
	for _, o := range outcomes {
		out := videoOutcome{VideoID: o.VideoID, Action: string(o.Action)}
		if o.Err != nil {
			out.Error = o.Err.Error()
		}
		resp.Outcomes = append(resp.Outcomes, out)
	}
	writeJSON(w, http.StatusOK, resp)
}
