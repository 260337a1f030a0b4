package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ucmao/parse-ucmao-backend/internal/adapters/repository"
	"github.com/ucmao/parse-ucmao-backend/internal/domain/types"
	"github.com/ucmao/parse-ucmao-backend/internal/domain/window"
	"github.com/ucmao/parse-ucmao-backend/pkg/logger"
	"github.com/ucmao/parse-ucmao-backend/pkg/metrics"
)

// rankingDays are the sliding windows of the ranking bundle, in bundle order.
var rankingDays = []int{7, 30, 90, 180, 365}

// GetRankings computes the windowed popularity rankings from a single catalog
// snapshot, so every list in the bundle agrees on scores and membership.
// Videos enter a window by catalog creation time; ordering is score descending
// with video id as the deterministic tie-break.
func (s *Service) GetRankings(ctx context.Context, keyword string, limit int) (*types.RankingBundle, error) {
	limit = s.clampLimit(limit)

	entries, err := s.catalog.ListVisible(ctx, keyword)
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	now := time.Now()

	bundle := &types.RankingBundle{Search: keyword}
	bundle.All = s.rankWindow(entries, window.All(), now, limit)
	for i, days := range rankingDays {
		sel, err := window.LastNDays(days)
		if err != nil {
			return nil, err
		}
		ranked := s.rankWindow(entries, sel, now, limit)
		switch i {
		case 0:
			bundle.Days7 = ranked
		case 1:
			bundle.Days30 = ranked
		case 2:
			bundle.Days90 = ranked
		case 3:
			bundle.Days180 = ranked
		case 4:
			bundle.Days365 = ranked
		}
	}

	metrics.RecordRankingQuery()
	s.logger.Debug(ctx, "rankings computed",
		logger.String("keyword", keyword),
		logger.Int("candidates", len(entries)),
		logger.Int("limit", limit),
	)
	return bundle, nil
}

// rankWindow filters the already score-sorted snapshot by window membership
// and shapes the survivors for display.
func (s *Service) rankWindow(entries []repository.CatalogEntry, sel window.Selector, now time.Time, limit int) []types.VideoInfo {
	out := make([]types.VideoInfo, 0, limit)
	for _, e := range entries {
		if !sel.Contains(e.CreateAt, now) {
			continue
		}
		out = append(out, s.toVideoInfo(e))
		if len(out) == limit {
			break
		}
	}
	return out
}

func (s *Service) toVideoInfo(e repository.CatalogEntry) types.VideoInfo {
	return types.VideoInfo{
		VideoID:    e.VideoID,
		Platform:   s.platformName(e.Platform),
		Title:      e.Title,
		VideoURL:   e.VideoURL,
		CoverURL:   e.CoverURL,
		QueryCount: e.Score,
		ShowItem:   false,
	}
}
