// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"errors"
	"net/http"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/ucmao/parse-ucmao-backend/internal/domain/types"
)

// RecordsHandler handles watch history requests.
type RecordsHandler struct {
	deps Dependencies
}

// NewRecordsHandler creates a new records handler.
func NewRecordsHandler(deps Dependencies) *RecordsHandler {
	return &RecordsHandler{deps: deps}
}

type recordsRequest struct {
	VideoIDs []string `json:"video_ids"`
}

func (req recordsRequest) validate() error {
	if len(req.VideoIDs) == 0 {
		return errors.New("missing video_ids")
	}
	for _, id := range req.VideoIDs {
		if id == "" {
			return errors.New("empty video id")
		}
	}
	return nil
}

type statusResponse struct {
	Status string `json:"status"`
}

// HandleRecords dispatches /records by method: GET returns the windowed
// history bundle, POST records views, DELETE removes them.
func (h *RecordsHandler) HandleRecords(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleGet(w, r)
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodDelete:
		h.handleDelete(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *RecordsHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := resolveCaller(w, r, h.deps)
	if !ok {
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
	bundle, err := h.deps.GetHistory(r.Context(), userID, r.URL.Query().Get("search"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

// decodeRecordsRequest parses and validates the mutation body, writing the
// error response itself on failure.
func decodeRecordsRequest(w http.ResponseWriter, r *http.Request) (recordsRequest, bool) {
	var req recordsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return req, false
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return req, false
	}
	return req, true
}

func (h *RecordsHandler) handlePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := resolveCaller(w, r, h.deps)
	if !ok {
		return
	}
	req, ok := decodeRecordsRequest(w, r)
	if !ok {
		return
	}
	if err := h.deps.RecordViews(r.Context(), userID, req.VideoIDs); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

type removeResponse struct {
	Results []types.RemoveResult `json:"results"`
}

// handleDelete removes entries one by one and reports the per-video outcome;
// an id absent from the ledger is a result, not an error.
func (h *RecordsHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := resolveCaller(w, r, h.deps)
	if !ok {
		return
	}
	req, ok := decodeRecordsRequest(w, r)
	if !ok {
		return
	}
	results, err := h.deps.UnrecordBatch(r.Context(), userID, req.VideoIDs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, removeResponse{Results: results})
}

// HandleClear handles POST /records/clear requests.
func (h *RecordsHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	userID, ok := resolveCaller(w, r, h.deps)
	if !ok {
		return
	}
	if err := h.deps.ClearHistory(r.Context(), userID); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}
