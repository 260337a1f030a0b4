package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemStore is an in-memory implementation of CatalogStore, LedgerStore,
// UserStore and QueryLogStore. It backs the memory backend for local
// development and keeps service tests free of a database.
//
// Semantics mirror the Postgres implementation: per-user ledgers are bounded
// by the storageLimit permission, score accumulation checks existence, hidden
// entries are erased from reads.
type MemStore struct {
	mu sync.RWMutex

	catalog map[string]CatalogEntry
	ledgers map[int64]map[string]time.Time
	perms   map[int64]Permissions
	users   map[string]int64 // open_id -> user_id
	nextID  int64
	queries []QueryLogEntry

	nowFn           func() time.Time
	defaultCapacity int
}

// MemOption applies a configuration option to the MemStore.
type MemOption func(*MemStore)

// WithNowFunc overrides the clock, for deterministic tests.
func WithNowFunc(now func() time.Time) MemOption {
	return func(m *MemStore) {
		if now != nil {
			m.nowFn = now
		}
	}
}

// WithDefaultCapacity sets the ledger capacity granted to fresh users and used
// when a user's storage limit cannot be resolved.
func WithDefaultCapacity(capacity int) MemOption {
	return func(m *MemStore) {
		if capacity > 0 {
			m.defaultCapacity = capacity
		}
	}
}

// NewMemStore creates an empty in-memory store.
func NewMemStore(opts ...MemOption) *MemStore {
	m := &MemStore{
		catalog:         make(map[string]CatalogEntry),
		ledgers:         make(map[int64]map[string]time.Time),
		perms:           make(map[int64]Permissions),
		users:           make(map[string]int64),
		nowFn:           time.Now,
		defaultCapacity: DefaultStorageLimit,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the requested entry, nil when missing or hidden. The fields
// projection is validated but the full entry is returned; trimming columns
// buys nothing in memory.
func (m *MemStore) Get(_ context.Context, videoID string, fields ...string) (*CatalogEntry, error) {
	for _, f := range fields {
		if !allowedCatalogFields[f] {
			return nil, ErrInvalidField
		}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.catalog[videoID]
	if !ok || !e.IsVisible {
		return nil, nil
	}
	return &e, nil
}

// Upsert inserts or updates the entry; entries without a video_url are a no-op.
func (m *MemStore) Upsert(_ context.Context, entry CatalogEntry) error {
	if entry.VideoURL == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertLocked(entry)
	return nil
}

func (m *MemStore) upsertLocked(entry CatalogEntry) {
	if existing, ok := m.catalog[entry.VideoID]; ok {
		entry.Score = existing.Score
		entry.CreateAt = existing.CreateAt
	} else if entry.CreateAt.IsZero() {
		entry.CreateAt = m.nowFn()
	}
	m.catalog[entry.VideoID] = entry
}

// BatchUpsert applies each entry independently.
func (m *MemStore) BatchUpsert(_ context.Context, entries []CatalogEntry) ([]UpsertOutcome, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyBatch
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	outcomes := make([]UpsertOutcome, 0, len(entries))
	for _, e := range entries {
		out := UpsertOutcome{VideoID: e.VideoID}
		_, exists := m.catalog[e.VideoID]
		switch {
		case e.VideoURL == "" && exists:
			out.Action = UpsertSkipped
		case exists:
			m.upsertLocked(e)
			out.Action = UpsertUpdated
		default:
			m.upsertLocked(e)
			out.Action = UpsertInserted
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

// AddScore applies score += delta; false when the video is absent.
func (m *MemStore) AddScore(_ context.Context, videoID string, delta int) (bool, error) {
	if delta <= 0 {
		return false, ErrInvalidDelta
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.catalog[videoID]
	if !ok {
		return false, nil
	}
	e.Score += int64(delta)
	m.catalog[videoID] = e
	return true, nil
}

// BatchAddScore applies the same delta to every id with per-item outcomes.
func (m *MemStore) BatchAddScore(_ context.Context, videoIDs []string, delta int) ([]ScoreOutcome, error) {
	if delta <= 0 {
		return nil, ErrInvalidDelta
	}
	if len(videoIDs) == 0 {
		return nil, ErrEmptyBatch
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	// Duplicate ids count once, matching the SQL IN-list update.
	seen := make(map[string]bool, len(videoIDs))
	for _, id := range videoIDs {
		e, ok := m.catalog[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		e.Score += int64(delta)
		m.catalog[id] = e
	}
	outcomes := make([]ScoreOutcome, 0, len(videoIDs))
	for _, id := range videoIDs {
		e, ok := m.catalog[id]
		if !ok {
			outcomes = append(outcomes, ScoreOutcome{VideoID: id})
			continue
		}
		total := e.Score
		outcomes = append(outcomes, ScoreOutcome{VideoID: id, Added: delta, Total: &total, Success: true})
	}
	return outcomes, nil
}

// TotalScore returns the cumulative score, 0 when absent.
func (m *MemStore) TotalScore(_ context.Context, videoID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.catalog[videoID].Score, nil
}

func matchesKeyword(e CatalogEntry, keyword string, includeID bool) bool {
	if keyword == "" {
		return true
	}
	if strings.Contains(e.Title, keyword) {
		return true
	}
	return includeID && strings.Contains(e.VideoID, keyword)
}

// ListVisible returns visible entries matching the keyword, score descending
// with video id as the deterministic tie-break.
func (m *MemStore) ListVisible(_ context.Context, keyword string) ([]CatalogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var entries []CatalogEntry
	for _, e := range m.catalog {
		if e.IsVisible && matchesKeyword(e, keyword, true) {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].VideoID < entries[j].VideoID
	})
	return entries, nil
}

// GetVisibleByIDs returns the visible entries among ids keyed by video id.
func (m *MemStore) GetVisibleByIDs(_ context.Context, ids []string, keyword string) (map[string]CatalogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]CatalogEntry, len(ids))
	for _, id := range ids {
		if e, ok := m.catalog[id]; ok && e.IsVisible && matchesKeyword(e, keyword, false) {
			out[id] = e
		}
	}
	return out, nil
}

// Count returns the catalog size.
func (m *MemStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.catalog), nil
}

// Touch sets last-access to now, evicting the oldest entry over capacity.
func (m *MemStore) Touch(_ context.Context, userID int64, videoID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ledger, ok := m.ledgers[userID]
	if !ok {
		ledger = make(map[string]time.Time)
		m.ledgers[userID] = ledger
	}
	ledger[videoID] = m.nowFn()

	capacity := m.perms[userID].StorageLimitOr(m.defaultCapacity)
	if len(ledger) <= capacity {
		return false, nil
	}

	var oldestID string
	var oldestTS time.Time
	for id, ts := range ledger {
		if oldestID == "" || ts.Before(oldestTS) || (ts.Equal(oldestTS) && id < oldestID) {
			oldestID, oldestTS = id, ts
		}
	}
	delete(ledger, oldestID)
	return true, nil
}

// Remove deletes the entry; ErrNotFound when absent.
func (m *MemStore) Remove(_ context.Context, userID int64, videoID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ledger := m.ledgers[userID]
	if _, ok := ledger[videoID]; !ok {
		return ErrNotFound
	}
	delete(ledger, videoID)
	return nil
}

// Clear empties the ledger unconditionally.
func (m *MemStore) Clear(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledgers[userID] = make(map[string]time.Time)
	return nil
}

// Snapshot returns a copy of the ledger.
func (m *MemStore) Snapshot(_ context.Context, userID int64) (map[string]time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]time.Time, len(m.ledgers[userID]))
	for id, ts := range m.ledgers[userID] {
		out[id] = ts
	}
	return out, nil
}

// GetOrCreate resolves an open id, creating the user with default permissions.
func (m *MemStore) GetOrCreate(_ context.Context, openID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.users[openID]; ok {
		return id, nil
	}
	m.nextID++
	m.users[openID] = m.nextID
	perms := DefaultPermissions()
	perms[PermStorageLimit] = m.defaultCapacity
	m.perms[m.nextID] = perms
	return m.nextID, nil
}

// Capacity returns the user's ledger capacity.
func (m *MemStore) Capacity(_ context.Context, userID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.perms[userID].StorageLimitOr(m.defaultCapacity), nil
}

// SetPermissions replaces the user's permission map after validation.
func (m *MemStore) SetPermissions(_ context.Context, openID string, perms Permissions) error {
	if err := perms.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	userID, ok := m.users[openID]
	if !ok {
		return ErrNotFound
	}
	m.perms[userID] = perms
	return nil
}

// SetCapacity overrides a user's storage limit directly, for tests.
func (m *MemStore) SetCapacity(userID int64, capacity int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	perms := m.perms[userID]
	if perms == nil {
		perms = Permissions{}
		m.perms[userID] = perms
	}
	perms[PermStorageLimit] = capacity
}

// UserCount returns the number of users.
func (m *MemStore) UserCount(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}

// LogQueries records catalog lookups.
func (m *MemStore) LogQueries(_ context.Context, entries []QueryLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, entries...)
	return nil
}
