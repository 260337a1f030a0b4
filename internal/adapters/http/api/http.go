// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/ucmao/parse-ucmao-backend/internal/adapters/repository"
	"github.com/ucmao/parse-ucmao-backend/internal/domain/types"
)

// openIDHeader carries the caller's external identity.
const openIDHeader = "WX-OPEN-ID"

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// ResolveUser maps an external open id to a user id, creating on first sight.
	ResolveUser(ctx context.Context, openID string) (int64, error)

	// Ledger operations manage the per-user watch history.
	RecordViews(ctx context.Context, userID int64, videoIDs []string) error
	UnrecordBatch(ctx context.Context, userID int64, videoIDs []string) ([]types.RemoveResult, error)
	ClearHistory(ctx context.Context, userID int64) error
	GetHistory(ctx context.Context, userID int64, keyword string, limit int) (*types.RecordsBundle, error)

	// Scoring operations accumulate engagement points.
	AddScore(ctx context.Context, videoIDs []string, action string) (int, []types.ScoreResult, error)
	VideoTotalScore(ctx context.Context, videoID string) (int64, error)

	// Catalog operations expose and mutate the shared video library.
	GetRankings(ctx context.Context, keyword string, limit int) (*types.RankingBundle, error)
	SaveVideos(ctx context.Context, entries []repository.CatalogEntry, keywords string, userID int64) ([]repository.UpsertOutcome, error)

	// SetPermissions replaces a user's feature limits.
	SetPermissions(ctx context.Context, openID string, perms repository.Permissions) error

	// GetStats reports service-level counters.
	GetStats(ctx context.Context) map[string]any
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	recordsHandler *RecordsHandler
	scoreHandler   *ScoreHandler
	rankingHandler *RankingHandler
	videosHandler  *VideosHandler
	usersHandler   *UsersHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(deps),
		recordsHandler: NewRecordsHandler(deps),
		scoreHandler:   NewScoreHandler(deps),
		rankingHandler: NewRankingHandler(deps),
		videosHandler:  NewVideosHandler(deps),
		usersHandler:   NewUsersHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/records", MetricsMiddleware(s.recordsHandler.HandleRecords, "records"))
	mux.HandleFunc("/records/clear", MetricsMiddleware(s.recordsHandler.HandleClear, "records_clear"))
	mux.HandleFunc("/score", MetricsMiddleware(s.scoreHandler.HandlePostScore, "score"))
	mux.HandleFunc("/score/", MetricsMiddleware(s.scoreHandler.HandleGetScore, "score_get"))
	mux.HandleFunc("/ranking", MetricsMiddleware(s.rankingHandler.HandleGetRanking, "ranking"))
	mux.HandleFunc("/videos", MetricsMiddleware(s.videosHandler.HandlePostVideos, "videos"))
	mux.HandleFunc("/users/permissions", MetricsMiddleware(s.usersHandler.HandlePutPermissions, "permissions"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// resolveCaller turns the identity header into a user id, writing the error
// response itself when the header is missing or resolution fails.
func resolveCaller(w http.ResponseWriter, r *http.Request, deps Dependencies) (int64, bool) {
	openID := strings.TrimSpace(r.Header.Get(openIDHeader))
	if openID == "" {
		writeError(w, http.StatusUnauthorized, "missing_identity", ErrMissingIdentity)
		return 0, false
	}
	userID, err := deps.ResolveUser(r.Context(), openID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return 0, false
	}
	return userID, true
}
