package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ucmao/parse-ucmao-backend/pkg/logger"
	"github.com/ucmao/parse-ucmao-backend/pkg/metrics"
)

// allowedCatalogFields is the closed set of projectable parse_library columns.
// Caller-chosen field names are resolved against this set and never
// interpolated from free-form input.
var allowedCatalogFields = map[string]bool{
	"video_id":  true,
	"platform":  true,
	"title":     true,
	"video_url": true,
	"cover_url": true,
	"score":     true,
	"create_at": true,
}

// defaultCatalogFields is the display projection used when a caller asks for
// no specific fields.
var defaultCatalogFields = []string{"video_id", "platform", "title", "video_url", "cover_url"}

// PostgresCatalog implements CatalogStore and QueryLogStore over parse_library.
type PostgresCatalog struct {
	db  *sql.DB
	log logger.Logger
}

// NewPostgresCatalog creates a catalog store over an injected database handle.
func NewPostgresCatalog(db *sql.DB, log logger.Logger) *PostgresCatalog {
	return &PostgresCatalog{db: db, log: log}
}

// placeholders renders $start..$start+n-1 for IN lists. Only the placeholder
// count derives from input length, never the content.
func placeholders(start, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}

func toAnySlice(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

// Get returns the requested fields for a visible video, nil when the video is
// missing or hidden. The hidden/missing distinction is erased on purpose so
// regular callers re-resolve instead of special-casing.
func (c *PostgresCatalog) Get(ctx context.Context, videoID string, fields ...string) (*CatalogEntry, error) {
	if len(fields) == 0 {
		fields = defaultCatalogFields
	}
	for _, f := range fields {
		if !allowedCatalogFields[f] {
			return nil, fmt.Errorf("%w: %q", ErrInvalidField, f)
		}
	}

	query := fmt.Sprintf(
		"SELECT %s, is_visible FROM parse_library WHERE video_id = $1",
		strings.Join(fields, ", "),
	)

	entry := &CatalogEntry{}
	dests := make([]any, 0, len(fields)+1)
	for _, f := range fields {
		switch f {
		case "video_id":
			dests = append(dests, &entry.VideoID)
		case "platform":
			dests = append(dests, &entry.Platform)
		case "title":
			dests = append(dests, &entry.Title)
		case "video_url":
			dests = append(dests, &entry.VideoURL)
		case "cover_url":
			dests = append(dests, &entry.CoverURL)
		case "score":
			dests = append(dests, &entry.Score)
		case "create_at":
			dests = append(dests, &entry.CreateAt)
		}
	}
	dests = append(dests, &entry.IsVisible)

	err := c.db.QueryRowContext(ctx, query, videoID).Scan(dests...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		metrics.RecordStoreError("catalog")
		return nil, fmt.Errorf("get catalog entry: %w", err)
	}
	if !entry.IsVisible {
		return nil, nil
	}
	return entry, nil
}

const upsertCatalogQuery = `INSERT INTO parse_library (video_id, platform, title, video_url, cover_url, is_visible)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (video_id) DO UPDATE SET
    platform = EXCLUDED.platform,
    title = EXCLUDED.title,
    video_url = EXCLUDED.video_url,
    cover_url = EXCLUDED.cover_url,
    is_visible = EXCLUDED.is_visible`

// Upsert inserts or updates the full field set. Entries without a resolvable
// video_url are dropped so a failed re-parse never overwrites good data.
func (c *PostgresCatalog) Upsert(ctx context.Context, entry CatalogEntry) error {
	if entry.VideoURL == "" {
		c.log.Debug(ctx, "skipping catalog upsert without video_url",
			logger.String("video_id", entry.VideoID))
		return nil
	}
	_, err := c.db.ExecContext(ctx, upsertCatalogQuery,
		entry.VideoID, entry.Platform, entry.Title, entry.VideoURL, entry.CoverURL, entry.IsVisible)
	if err != nil {
		metrics.RecordStoreError("catalog")
		return fmt.Errorf("upsert catalog entry: %w", err)
	}
	return nil
}

const insertCatalogQuery = `INSERT INTO parse_library (video_id, platform, title, video_url, cover_url, is_visible)
VALUES ($1, $2, $3, $4, $5, $6)`

const updateCatalogQuery = `UPDATE parse_library SET
    platform = $2, title = $3, video_url = $4, cover_url = $5, is_visible = $6
WHERE video_id = $1`

// BatchUpsert partitions entries into inserts and updates and applies each
// item on its own; a failing item never rolls back its siblings.
func (c *PostgresCatalog) BatchUpsert(ctx context.Context, entries []CatalogEntry) ([]UpsertOutcome, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyBatch
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.VideoID
	}
	existing, err := c.existingIDs(ctx, ids)
	if err != nil {
		metrics.RecordStoreError("catalog")
		return nil, fmt.Errorf("partition upsert batch: %w", err)
	}

	outcomes := make([]UpsertOutcome, 0, len(entries))
	for _, e := range entries {
		out := UpsertOutcome{VideoID: e.VideoID}
		switch {
		case e.VideoURL == "" && existing[e.VideoID]:
			// An update lacking a resolvable URL is a no-op.
			out.Action = UpsertSkipped
		case existing[e.VideoID]:
			if _, err := c.db.ExecContext(ctx, updateCatalogQuery,
				e.VideoID, e.Platform, e.Title, e.VideoURL, e.CoverURL, e.IsVisible); err != nil {
				out.Action, out.Err = UpsertFailed, err
				metrics.RecordStoreError("catalog")
			} else {
				out.Action = UpsertUpdated
			}
		default:
			if _, err := c.db.ExecContext(ctx, insertCatalogQuery,
				e.VideoID, e.Platform, e.Title, e.VideoURL, e.CoverURL, e.IsVisible); err != nil {
				out.Action, out.Err = UpsertFailed, err
				metrics.RecordStoreError("catalog")
			} else {
				out.Action = UpsertInserted
			}
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

func (c *PostgresCatalog) existingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	query := fmt.Sprintf(
		"SELECT video_id FROM parse_library WHERE video_id IN (%s)",
		placeholders(1, len(ids)),
	)
	rows, err := c.db.QueryContext(ctx, query, toAnySlice(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	existing := make(map[string]bool, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		existing[id] = true
	}
	return existing, rows.Err()
}

const addScoreQuery = `UPDATE parse_library SET score = score + $1 WHERE video_id = $2`

// AddScore applies score += delta as one atomic statement. Existence is
// inferred from the affected-row count, not a prior read.
func (c *PostgresCatalog) AddScore(ctx context.Context, videoID string, delta int) (bool, error) {
	if delta <= 0 {
		return false, ErrInvalidDelta
	}

	start := time.Now()
	res, err := c.db.ExecContext(ctx, addScoreQuery, delta, videoID)
	if err != nil {
		metrics.RecordStoreError("score")
		return false, fmt.Errorf("add score: %w", err)
	}
	metrics.RecordStoreQueryLatency("score", float64(time.Since(start).Milliseconds()))

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add score affected rows: %w", err)
	}
	if affected == 0 {
		c.log.Warn(ctx, "score update matched no video", logger.String("video_id", videoID))
		return false, nil
	}
	return true, nil
}

// BatchAddScore applies the same delta to every id in one statement, then
// re-reads the resulting totals. The totals are a snapshot and may already be
// stale by the time the caller sees them.
func (c *PostgresCatalog) BatchAddScore(ctx context.Context, videoIDs []string, delta int) ([]ScoreOutcome, error) {
	if delta <= 0 {
		return nil, ErrInvalidDelta
	}
	if len(videoIDs) == 0 {
		return nil, ErrEmptyBatch
	}

	totals := make(map[string]int64, len(videoIDs))
	err := withTx(ctx, c.db, nil, func(ctx context.Context, tx DBTX) error {
		updateQuery := fmt.Sprintf(
			"UPDATE parse_library SET score = score + $1 WHERE video_id IN (%s)",
			placeholders(2, len(videoIDs)),
		)
		args := append([]any{delta}, toAnySlice(videoIDs)...)
		if _, err := tx.ExecContext(ctx, updateQuery, args...); err != nil {
			return fmt.Errorf("batch score update: %w", err)
		}

		selectQuery := fmt.Sprintf(
			"SELECT video_id, score FROM parse_library WHERE video_id IN (%s)",
			placeholders(1, len(videoIDs)),
		)
		rows, err := tx.QueryContext(ctx, selectQuery, toAnySlice(videoIDs)...)
		if err != nil {
			return fmt.Errorf("batch score read: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var id string
			var score int64
			if err := rows.Scan(&id, &score); err != nil {
				return fmt.Errorf("batch score scan: %w", err)
			}
			totals[id] = score
		}
		return rows.Err()
	})
	if err != nil {
		metrics.RecordStoreError("score")
		return nil, err
	}

	outcomes := make([]ScoreOutcome, 0, len(videoIDs))
	for _, id := range videoIDs {
		if total, ok := totals[id]; ok {
			t := total
			outcomes = append(outcomes, ScoreOutcome{VideoID: id, Added: delta, Total: &t, Success: true})
		} else {
			c.log.Warn(ctx, "batch score update matched no video", logger.String("video_id", id))
			outcomes = append(outcomes, ScoreOutcome{VideoID: id})
		}
	}
	return outcomes, nil
}

const totalScoreQuery = `SELECT score FROM parse_library WHERE video_id = $1`

// TotalScore returns a video's cumulative score, 0 when the video is absent.
func (c *PostgresCatalog) TotalScore(ctx context.Context, videoID string) (int64, error) {
	var score int64
	err := c.db.QueryRowContext(ctx, totalScoreQuery, videoID).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		metrics.RecordStoreError("score")
		return 0, fmt.Errorf("get total score: %w", err)
	}
	return score, nil
}

const listVisibleQuery = `SELECT video_id, platform, title, video_url, cover_url, score, create_at
FROM parse_library
WHERE is_visible AND ($1 = '' OR title LIKE '%' || $1 || '%' OR video_id LIKE '%' || $1 || '%')
ORDER BY score DESC, video_id ASC`

// ListVisible returns visible entries matching the keyword, score descending.
func (c *PostgresCatalog) ListVisible(ctx context.Context, keyword string) ([]CatalogEntry, error) {
	start := time.Now()
	rows, err := c.db.QueryContext(ctx, listVisibleQuery, keyword)
	if err != nil {
		metrics.RecordStoreError("catalog")
		return nil, fmt.Errorf("list visible catalog: %w", err)
	}
	defer rows.Close()

	var entries []CatalogEntry
	for rows.Next() {
		var e CatalogEntry
		if err := rows.Scan(&e.VideoID, &e.Platform, &e.Title, &e.VideoURL, &e.CoverURL, &e.Score, &e.CreateAt); err != nil {
			return nil, fmt.Errorf("scan catalog entry: %w", err)
		}
		e.IsVisible = true
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list visible catalog: %w", err)
	}
	metrics.RecordStoreQueryLatency("catalog", float64(time.Since(start).Milliseconds()))
	return entries, nil
}

// GetVisibleByIDs returns the visible entries among ids keyed by video id,
// optionally keyword-filtered on title. Missing and hidden ids are simply
// absent from the result.
func (c *PostgresCatalog) GetVisibleByIDs(ctx context.Context, ids []string, keyword string) (map[string]CatalogEntry, error) {
	if len(ids) == 0 {
		return map[string]CatalogEntry{}, nil
	}

	query := fmt.Sprintf(`SELECT video_id, platform, title, video_url, cover_url, score, create_at
FROM parse_library
WHERE is_visible AND video_id IN (%s) AND ($%d = '' OR title LIKE '%%' || $%d || '%%')`,
		placeholders(1, len(ids)), len(ids)+1, len(ids)+1)
	args := append(toAnySlice(ids), keyword)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		metrics.RecordStoreError("catalog")
		return nil, fmt.Errorf("get catalog entries: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]CatalogEntry, len(ids))
	for rows.Next() {
		var e CatalogEntry
		if err := rows.Scan(&e.VideoID, &e.Platform, &e.Title, &e.VideoURL, &e.CoverURL, &e.Score, &e.CreateAt); err != nil {
			return nil, fmt.Errorf("scan catalog entry: %w", err)
		}
		e.IsVisible = true
		entries[e.VideoID] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get catalog entries: %w", err)
	}
	return entries, nil
}

const countCatalogQuery = `SELECT COUNT(*) FROM parse_library`

// Count returns the catalog size.
func (c *PostgresCatalog) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, countCatalogQuery).Scan(&n); err != nil {
		return 0, fmt.Errorf("count catalog: %w", err)
	}
	return n, nil
}

const insertQueryLogQuery = `INSERT INTO user_query_log (video_id, keywords, user_id) VALUES ($1, $2, $3)`

// LogQueries records catalog lookups, best-effort: a failing insert is logged
// and skipped, never surfaced.
func (c *PostgresCatalog) LogQueries(ctx context.Context, entries []QueryLogEntry) error {
	for _, e := range entries {
		if _, err := c.db.ExecContext(ctx, insertQueryLogQuery, e.VideoID, e.Keywords, e.UserID); err != nil {
			c.log.Warn(ctx, "query log insert failed",
				logger.String("video_id", e.VideoID), logger.Error(err))
		}
	}
	return nil
}
