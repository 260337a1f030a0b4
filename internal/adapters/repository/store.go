// Package repository defines the engagement store interfaces and errors.
package repository

import (
	"context"
	"time"
)

// TimeLayout is the serialized ledger timestamp format, second granularity.
const TimeLayout = "2006-01-02 15:04:05"

// DefaultStorageLimit caps a ledger when no permission value resolves.
const DefaultStorageLimit = 100

// CatalogEntry is a shared video metadata row.
type CatalogEntry struct {
	VideoID   string
	Platform  string
	Title     string
	VideoURL  string
	CoverURL  string
	Score     int64
	IsVisible bool
	CreateAt  time.Time
}

// ScoreOutcome reports the per-video result of a batch score accumulation.
// Total is nil when the video matched no catalog row.
type ScoreOutcome struct {
	VideoID string
	Added   int
	Total   *int64
	Success bool
}

// UpsertAction classifies what a batch upsert did with one entry.
type UpsertAction string

const (
	UpsertInserted UpsertAction = "inserted"
	UpsertUpdated  UpsertAction = "updated"
	UpsertSkipped  UpsertAction = "skipped"
	UpsertFailed   UpsertAction = "failed"
)

// UpsertOutcome reports the per-video result of a batch upsert.
type UpsertOutcome struct {
	VideoID string
	Action  UpsertAction
	Err     error
}

// QueryLogEntry records one catalog lookup for the query log.
type QueryLogEntry struct {
	VideoID  string
	Keywords string
	UserID   int64
}

// CatalogStore provides access to the shared video catalog and its scores.
type CatalogStore interface {
	// Get returns the requested fields for a video, or nil when the video is
	// missing or hidden; regular readers cannot tell the two apart. With no
	// fields it returns the default display projection.
	Get(ctx context.Context, videoID string, fields ...string) (*CatalogEntry, error)

	// Upsert inserts or updates the full field set. An entry without a
	// video_url is a no-op so a failed re-parse never clobbers good data.
	Upsert(ctx context.Context, entry CatalogEntry) error

	// BatchUpsert partitions entries into inserts and updates and applies each
	// item independently; one failure never rolls back its siblings.
	BatchUpsert(ctx context.Context, entries []CatalogEntry) ([]UpsertOutcome, error)

	// AddScore applies score += delta atomically. Returns false when no row
	// matched; existence is inferred from the affected-row count.
	AddScore(ctx context.Context, videoID string, delta int) (bool, error)

	// BatchAddScore applies the same delta to every id in one statement, then
	// re-reads the resulting totals. Missing ids report Success=false.
	BatchAddScore(ctx context.Context, videoIDs []string, delta int) ([]ScoreOutcome, error)

	// TotalScore returns a video's cumulative score, 0 when absent.
	TotalScore(ctx context.Context, videoID string) (int64, error)

	// ListVisible returns all visible entries matching the keyword (substring
	// on title or video id; empty matches everything), ordered by score desc.
	ListVisible(ctx context.Context, keyword string) ([]CatalogEntry, error)

	// GetVisibleByIDs returns the visible entries among ids, optionally
	// keyword-filtered on title, keyed by video id.
	GetVisibleByIDs(ctx context.Context, ids []string, keyword string) (map[string]CatalogEntry, error)

	// Count returns the catalog size.
	Count(ctx context.Context) (int, error)
}

// LedgerStore provides access to per-user bounded watch ledgers.
type LedgerStore interface {
	// Touch sets last-access to now for (userID, videoID), inserting when
	// absent. When the ledger exceeds the user's capacity it evicts the single
	// oldest entry and reports the eviction.
	Touch(ctx context.Context, userID int64, videoID string) (evicted bool, err error)

	// Remove deletes the entry; ErrNotFound when absent.
	Remove(ctx context.Context, userID int64, videoID string) error

	// Clear empties the ledger unconditionally.
	Clear(ctx context.Context, userID int64) error

	// Snapshot returns a read-only copy of the ledger.
	Snapshot(ctx context.Context, userID int64) (map[string]time.Time, error)
}

// UserStore resolves external open ids to user rows and their permissions.
type UserStore interface {
	// GetOrCreate resolves an open id to a user id, creating the user with
	// default permissions on first sight.
	GetOrCreate(ctx context.Context, openID string) (int64, error)

	// Capacity returns the user's ledger capacity, DefaultStorageLimit when
	// the permission cannot be resolved.
	Capacity(ctx context.Context, userID int64) (int, error)

	// SetPermissions replaces the user's permission map; ErrNotFound when the
	// open id is unknown.
	SetPermissions(ctx context.Context, openID string, perms Permissions) error

	// UserCount returns the number of users.
	UserCount(ctx context.Context) (int, error)
}

// QueryLogStore records catalog lookups, best-effort.
type QueryLogStore interface {
	LogQueries(ctx context.Context, entries []QueryLogEntry) error
}
