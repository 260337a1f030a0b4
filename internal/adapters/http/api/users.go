// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"errors"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/ucmao/parse-ucmao-backend/internal/adapters/repository"
)

// UsersHandler handles user permission administration.
type UsersHandler struct {
	deps Dependencies
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(deps Dependencies) *UsersHandler {
	return &UsersHandler{deps: deps}
}

type permissionsRequest struct {
	OpenID      string         `json:"open_id"`
	Permissions map[string]int `json:"permissions"`
}

// HandlePutPermissions handles PUT /users/permissions requests.
func (h *UsersHandler) HandlePutPermissions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.NotFound(w, r)
		return
	}
	var req permissionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	if strings.TrimSpace(req.OpenID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("missing open_id"))
		return
	}
	err := h.deps.SetPermissions(r.Context(), req.OpenID, repository.Permissions(req.Permissions))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", err)
		case errors.Is(err, repository.ErrInvalidLimits):
			writeError(w, http.StatusBadRequest, "bad_request", err)
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}
