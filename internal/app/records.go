package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ucmao/parse-ucmao-backend/internal/adapters/repository"
	"github.com/ucmao/parse-ucmao-backend/internal/domain/types"
	"github.com/ucmao/parse-ucmao-backend/internal/domain/window"
	"github.com/ucmao/parse-ucmao-backend/pkg/logger"
	"github.com/ucmao/parse-ucmao-backend/pkg/metrics"
)

// saveTimeLayout is the minute-granularity display format for history rows.
const saveTimeLayout = "2006-01-02 15:04"

// GetHistory computes the windowed watch history bundle from a single ledger
// snapshot. Ledger entries whose videos are missing or hidden in the catalog
// are dropped from every list; Length still reports the raw ledger size.
// Rows are ordered most recently watched first, video id breaking ties.
func (s *Service) GetHistory(ctx context.Context, userID int64, keyword string, limit int) (*types.RecordsBundle, error) {
	limit = s.clampLimit(limit)

	snapshot, err := s.ledger.Snapshot(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	ids := make([]string, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id)
	}
	catalog := map[string]repository.CatalogEntry{}
	if len(ids) > 0 {
		catalog, err = s.catalog.GetVisibleByIDs(ctx, ids, keyword)
		if err != nil {
			return nil, fmt.Errorf("resolve ledger videos: %w", err)
		}
	}
	now := time.Now()

	bundle := &types.RecordsBundle{Length: len(snapshot), Search: keyword}
	bundle.Today = s.historyWindow(snapshot, catalog, window.Today(), now, limit)
	bundle.Yesterday = s.historyWindow(snapshot, catalog, window.Yesterday(), now, limit)
	bundle.ThisMonth = s.historyWindow(snapshot, catalog, window.ThisMonth(), now, limit)
	bundle.LastMonth = s.historyWindow(snapshot, catalog, window.LastMonth(), now, limit)
	bundle.All = s.historyWindow(snapshot, catalog, window.All(), now, limit)
	for _, w := range []struct {
		days int
		dst  *[]types.RecordInfo
	}{
		{7, &bundle.Days7},
		{30, &bundle.Days30},
		{60, &bundle.Days60},
		{90, &bundle.Days90},
		{180, &bundle.Days180},
		{365, &bundle.Days365},
	} {
		sel, err := window.LastNDays(w.days)
		if err != nil {
			return nil, err
		}
		*w.dst = s.historyWindow(snapshot, catalog, sel, now, limit)
	}

	metrics.RecordRecordsQuery()
	s.logger.Debug(ctx, "history computed",
		logger.Int64("user_id", userID),
		logger.Int("ledger_size", len(snapshot)),
		logger.Int("resolved", len(catalog)),
	)
	return bundle, nil
}

type historyRow struct {
	id string
	ts time.Time
}

func (s *Service) historyWindow(snapshot map[string]time.Time, catalog map[string]repository.CatalogEntry, sel window.Selector, now time.Time, limit int) []types.RecordInfo {
	rows := make([]historyRow, 0, len(snapshot))
	for id, ts := range window.Filter(snapshot, sel, now) {
		if _, ok := catalog[id]; !ok {
			continue
		}
		rows = append(rows, historyRow{id: id, ts: ts})
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].ts.Equal(rows[j].ts) {
			return rows[i].ts.After(rows[j].ts)
		}
		return rows[i].id < rows[j].id
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}

	out := make([]types.RecordInfo, 0, len(rows))
	for _, r := range rows {
		e := catalog[r.id]
		out = append(out, types.RecordInfo{
			VideoID:  e.VideoID,
			SaveTime: r.ts.Format(saveTimeLayout),
			Title:    e.Title,
			VideoURL: e.VideoURL,
			CoverURL: e.CoverURL,
			Platform: s.platformName(e.Platform),
			ShowItem: false,
		})
	}
	return out
}
