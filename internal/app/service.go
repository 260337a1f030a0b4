// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ucmao/parse-ucmao-backend/internal/adapters/repository"
	"github.com/ucmao/parse-ucmao-backend/internal/domain/scoring"
	"github.com/ucmao/parse-ucmao-backend/internal/domain/types"
	"github.com/ucmao/parse-ucmao-backend/pkg/logger"
	"github.com/ucmao/parse-ucmao-backend/pkg/metrics"
)

// Service implements the engagement ledger and ranking engine on top of the
// injected stores. Each exported method is one request-scoped unit of work;
// the stores' own transactions provide all required atomicity, so the service
// holds no long-lived concurrency primitives.
type Service struct {
	mu sync.RWMutex

	// Core components
	catalog  repository.CatalogStore
	ledger   repository.LedgerStore
	users    repository.UserStore
	queryLog repository.QueryLogStore
	resolver *scoring.Resolver

	// Configuration
	scoreSource         scoring.Source
	actionWeights       map[string]int
	platformNames       map[string]string
	maxQueryLimit       int
	defaultStorageLimit int

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

// WithStores injects the storage implementations. Leaving them nil selects
// the in-memory backend.
func WithStores(catalog repository.CatalogStore, ledger repository.LedgerStore, users repository.UserStore) Option {
	return func(s *Service) {
		s.catalog = catalog
		s.ledger = ledger
		s.users = users
	}
}

// WithQueryLog injects the query log sink.
func WithQueryLog(ql repository.QueryLogStore) Option {
	return func(s *Service) {
		s.queryLog = ql
	}
}

// WithScoreSource sets the live action weight source.
func WithScoreSource(src scoring.Source) Option {
	return func(s *Service) {
		s.scoreSource = src
	}
}

// WithActionWeights sets the fallback action weights.
func WithActionWeights(weights map[string]int) Option {
	return func(s *Service) {
		if len(weights) > 0 {
			s.actionWeights = weights
		}
	}
}

// WithPlatformNames sets the platform display name map.
func WithPlatformNames(names map[string]string) Option {
	return func(s *Service) {
		if len(names) > 0 {
			s.platformNames = names
		}
	}
}

// WithMaxQueryLimit caps per-window result list sizes.
func WithMaxQueryLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.maxQueryLimit = limit
		}
	}
}

// WithDefaultStorageLimit sets the ledger capacity for users whose storage
// limit permission cannot be resolved. Only consulted when the service builds
// its own in-memory stores; injected stores carry their own default.
func WithDefaultStorageLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.defaultStorageLimit = limit
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		actionWeights:       map[string]int{},
		platformNames:       map[string]string{},
		maxQueryLimit:       100,
		defaultStorageLimit: repository.DefaultStorageLimit,
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting engagement service...")

	if s.catalog == nil || s.ledger == nil || s.users == nil {
		mem := repository.NewMemStore(repository.WithDefaultCapacity(s.defaultStorageLimit))
		s.catalog = mem
		s.ledger = mem
		s.users = mem
		s.queryLog = mem
		s.logger.Info(ctx, "using in-memory store")
	}

	s.resolver = scoring.NewResolver(
		scoring.WithSource(s.scoreSource),
		scoring.WithFallback(s.actionWeights),
		scoring.WithLogger(s.logger.Named("scoring")),
	)

	s.started = true
	s.logger.Info(ctx, "engagement service started",
		logger.Int("maxQueryLimit", s.maxQueryLimit),
		logger.Int("fallbackActions", len(s.actionWeights)),
	)

	return nil
}

// Stop shuts down the service. Store lifecycles belong to the caller.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.logger.Info(context.Background(), "engagement service stopped")
	s.started = false
}

// ResolveUser maps an external open id to a user id, creating the user with
// default permissions on first sight.
func (s *Service) ResolveUser(ctx context.Context, openID string) (int64, error) {
	if openID == "" {
		return 0, ErrInvalidArgument
	}
	return s.users.GetOrCreate(ctx, openID)
}

// RecordView touches the user's ledger for one video, evicting the oldest
// entry when the ledger is over capacity.
func (s *Service) RecordView(ctx context.Context, userID int64, videoID string) error {
	if videoID == "" {
		return ErrInvalidArgument
	}
	evicted, err := s.ledger.Touch(ctx, userID, videoID)
	if err != nil {
		return fmt.Errorf("record view: %w", err)
	}
	if evicted {
		s.logger.Debug(ctx, "ledger evicted oldest entry",
			logger.Int64("user_id", userID), logger.String("video_id", videoID))
	}
	return nil
}

// RecordViews touches the ledger for every id in order. One id per touch, so
// the capacity bound holds throughout.
func (s *Service) RecordViews(ctx context.Context, userID int64, videoIDs []string) error {
	if len(videoIDs) == 0 {
		return ErrInvalidArgument
	}
	for _, id := range videoIDs {
		if err := s.RecordView(ctx, userID, id); err != nil {
			return err
		}
	}
	return nil
}

// Unrecord removes one ledger entry; ErrNotFound when absent.
func (s *Service) Unrecord(ctx context.Context, userID int64, videoID string) error {
	if videoID == "" {
		return ErrInvalidArgument
	}
	if err := s.ledger.Remove(ctx, userID, videoID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return fmt.Errorf("unrecord: %w", err)
	}
	return nil
}

// UnrecordBatch removes ledger entries in order. An absent entry never aborts
// its siblings; each id reports its own outcome. Backend failures still
// escalate, since continuing past them would misreport the remaining ids.
func (s *Service) UnrecordBatch(ctx context.Context, userID int64, videoIDs []string) ([]types.RemoveResult, error) {
	if len(videoIDs) == 0 {
		return nil, ErrInvalidArgument
	}
	results := make([]types.RemoveResult, 0, len(videoIDs))
	for _, id := range videoIDs {
		err := s.Unrecord(ctx, userID, id)
		switch {
		case err == nil:
			results = append(results, types.RemoveResult{VideoID: id, Removed: true})
		case errors.Is(err, repository.ErrNotFound):
			results = append(results, types.RemoveResult{VideoID: id})
		default:
			return nil, err
		}
	}
	return results, nil
}

// ClearHistory empties the user's ledger.
func (s *Service) ClearHistory(ctx context.Context, userID int64) error {
	return s.ledger.Clear(ctx, userID)
}

// AddScore resolves the action's weight and applies it to every video id.
// Per-item outcomes are returned alongside the summed delta actually applied;
// a missing id never aborts its siblings.
func (s *Service) AddScore(ctx context.Context, videoIDs []string, action string) (int, []types.ScoreResult, error) {
	if len(videoIDs) == 0 {
		return 0, nil, ErrInvalidArgument
	}
	weight, err := s.resolver.Weight(ctx, action)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %s", ErrInvalidArgument, action)
	}

	outcomes, err := s.catalog.BatchAddScore(ctx, videoIDs, weight)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidDelta) || errors.Is(err, repository.ErrEmptyBatch) {
			return 0, nil, ErrInvalidArgument
		}
		return 0, nil, fmt.Errorf("add score: %w", err)
	}

	totalAdded := 0
	results := make([]types.ScoreResult, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Success {
			totalAdded += o.Added
			metrics.RecordScoreUpdate(int64(o.Added))
		} else {
			metrics.RecordScoreUpdateMiss()
		}
		results = append(results, types.ScoreResult{
			VideoID:    o.VideoID,
			AddedScore: o.Added,
			TotalScore: o.Total,
			Success:    o.Success,
		})
	}
	s.logger.Info(ctx, "score accumulated",
		logger.String("action", action),
		logger.Int("videos", len(videoIDs)),
		logger.Int("total_added", totalAdded),
	)
	return totalAdded, results, nil
}

// VideoTotalScore returns a video's cumulative score, 0 when absent.
func (s *Service) VideoTotalScore(ctx context.Context, videoID string) (int64, error) {
	return s.catalog.TotalScore(ctx, videoID)
}

// GetVideo returns the display projection for a video, nil when missing or
// hidden.
func (s *Service) GetVideo(ctx context.Context, videoID string) (*repository.CatalogEntry, error) {
	if videoID == "" {
		return nil, ErrInvalidArgument
	}
	return s.catalog.Get(ctx, videoID)
}

// SaveVideo upserts one parsed video into the catalog.
func (s *Service) SaveVideo(ctx context.Context, entry repository.CatalogEntry) error {
	if entry.VideoID == "" {
		return ErrInvalidArgument
	}
	return s.catalog.Upsert(ctx, entry)
}

// SaveVideos batch-upserts parsed videos and records the lookups in the query
// log. Partial failure is expected and reported per item.
func (s *Service) SaveVideos(ctx context.Context, entries []repository.CatalogEntry, keywords string, userID int64) ([]repository.UpsertOutcome, error) {
	if len(entries) == 0 {
		return nil, ErrInvalidArgument
	}
	outcomes, err := s.catalog.BatchUpsert(ctx, entries)
	if err != nil {
		return nil, fmt.Errorf("save videos: %w", err)
	}

	if s.queryLog != nil {
		logEntries := make([]repository.QueryLogEntry, 0, len(entries))
		for _, e := range entries {
			logEntries = append(logEntries, repository.QueryLogEntry{
				VideoID:  e.VideoID,
				Keywords: keywords,
				UserID:   userID,
			})
		}
		_ = s.queryLog.LogQueries(ctx, logEntries)
	}
	return outcomes, nil
}

// SetPermissions replaces a user's permission map.
func (s *Service) SetPermissions(ctx context.Context, openID string, perms repository.Permissions) error {
	if openID == "" {
		return ErrInvalidArgument
	}
	return s.users.SetPermissions(ctx, openID, perms)
}

// GetStats returns service-level statistics for the stats endpoint and the
// background metrics updater.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	stats := map[string]any{}
	if n, err := s.catalog.Count(ctx); err == nil {
		stats["totalVideos"] = n
		metrics.UpdateTotalVideos(n)
	}
	if n, err := s.users.UserCount(ctx); err == nil {
		stats["totalUsers"] = n
		metrics.UpdateTotalUsers(n)
	}
	return stats
}

func (s *Service) platformName(tag string) string {
	if name, ok := s.platformNames[tag]; ok {
		return name
	}
	return "Unknown"
}

func (s *Service) clampLimit(limit int) int {
	if limit <= 0 || limit > s.maxQueryLimit {
		return s.maxQueryLimit
	}
	return limit
}
