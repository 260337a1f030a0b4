package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/ucmao/parse-ucmao-backend/pkg/logger"
	"github.com/ucmao/parse-ucmao-backend/pkg/metrics"
)

// PostgresLedger implements LedgerStore and UserStore over the users table.
// The ledger lives in the users.video_records JSON blob; every mutation runs
// inside a SELECT ... FOR UPDATE transaction so concurrent touches on the same
// user never lose updates.
type PostgresLedger struct {
	db              *sql.DB
	log             logger.Logger
	nowFn           func() time.Time
	defaultCapacity int
}

// LedgerOption applies a configuration option to the PostgresLedger.
type LedgerOption func(*PostgresLedger)

// WithLedgerCapacity sets the ledger capacity granted to fresh users and used
// when a user's storage limit cannot be resolved.
func WithLedgerCapacity(capacity int) LedgerOption {
	return func(l *PostgresLedger) {
		if capacity > 0 {
			l.defaultCapacity = capacity
		}
	}
}

// NewPostgresLedger creates a ledger store over an injected database handle.
func NewPostgresLedger(db *sql.DB, log logger.Logger, opts ...LedgerOption) *PostgresLedger {
	l := &PostgresLedger{db: db, log: log, nowFn: time.Now, defaultCapacity: DefaultStorageLimit}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

const selectLedgerForUpdateQuery = `SELECT video_records, permissions FROM users WHERE user_id = $1 FOR UPDATE`
const updateLedgerQuery = `UPDATE users SET video_records = $1 WHERE user_id = $2`

func decodeRecords(raw []byte) (map[string]string, error) {
	records := make(map[string]string)
	if len(raw) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode ledger blob: %w", err)
	}
	return records, nil
}

func decodePermissions(raw []byte) Permissions {
	perms := Permissions{}
	if len(raw) == 0 {
		return perms
	}
	// A corrupt permissions blob degrades to defaults rather than failing the write.
	_ = json.Unmarshal(raw, &perms)
	return perms
}

// oldestRecord returns the key with the minimum timestamp. Ties on equal
// timestamps break by smallest video id so eviction stays deterministic at
// second granularity.
func oldestRecord(records map[string]string) string {
	var oldestID, oldestTS string
	for id, ts := range records {
		if oldestID == "" || ts < oldestTS || (ts == oldestTS && id < oldestID) {
			oldestID, oldestTS = id, ts
		}
	}
	return oldestID
}

// Touch sets last-access to now for (userID, videoID), creating the entry if
// absent. When the ledger exceeds the user's storage limit, the single oldest
// entry is evicted; one touch evicts at most one entry.
func (l *PostgresLedger) Touch(ctx context.Context, userID int64, videoID string) (bool, error) {
	evicted := false
	start := l.nowFn()
	err := withTx(ctx, l.db, nil, func(ctx context.Context, tx DBTX) error {
		var rawRecords, rawPerms []byte
		err := tx.QueryRowContext(ctx, selectLedgerForUpdateQuery, userID).Scan(&rawRecords, &rawPerms)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load ledger: %w", err)
		}

		records, err := decodeRecords(rawRecords)
		if err != nil {
			return err
		}
		records[videoID] = l.nowFn().Format(TimeLayout)

		capacity := decodePermissions(rawPerms).StorageLimitOr(l.defaultCapacity)
		if len(records) > capacity {
			if oldest := oldestRecord(records); oldest != "" {
				delete(records, oldest)
				evicted = true
			}
		}

		blob, err := json.Marshal(records)
		if err != nil {
			return fmt.Errorf("encode ledger blob: %w", err)
		}
		if _, err := tx.ExecContext(ctx, updateLedgerQuery, blob, userID); err != nil {
			return fmt.Errorf("store ledger: %w", err)
		}
		return nil
	})
	if err != nil {
		metrics.RecordStoreError("ledger")
		return false, err
	}
	metrics.RecordStoreQueryLatency("ledger", float64(time.Since(start).Milliseconds()))
	metrics.RecordLedgerTouch(evicted)
	return evicted, nil
}

// Remove deletes the ledger entry; ErrNotFound when the entry (or user) is absent.
func (l *PostgresLedger) Remove(ctx context.Context, userID int64, videoID string) error {
	err := withTx(ctx, l.db, nil, func(ctx context.Context, tx DBTX) error {
		var rawRecords, rawPerms []byte
		err := tx.QueryRowContext(ctx, selectLedgerForUpdateQuery, userID).Scan(&rawRecords, &rawPerms)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load ledger: %w", err)
		}

		records, err := decodeRecords(rawRecords)
		if err != nil {
			return err
		}
		if _, ok := records[videoID]; !ok {
			return ErrNotFound
		}
		delete(records, videoID)

		blob, err := json.Marshal(records)
		if err != nil {
			return fmt.Errorf("encode ledger blob: %w", err)
		}
		if _, err := tx.ExecContext(ctx, updateLedgerQuery, blob, userID); err != nil {
			return fmt.Errorf("store ledger: %w", err)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			metrics.RecordStoreError("ledger")
		}
		return err
	}
	metrics.RecordLedgerRemoval()
	return nil
}

const clearLedgerQuery = `UPDATE users SET video_records = '{}' WHERE user_id = $1`

// Clear empties the ledger unconditionally.
func (l *PostgresLedger) Clear(ctx context.Context, userID int64) error {
	if _, err := l.db.ExecContext(ctx, clearLedgerQuery, userID); err != nil {
		metrics.RecordStoreError("ledger")
		return fmt.Errorf("clear ledger: %w", err)
	}
	return nil
}

const selectLedgerQuery = `SELECT video_records FROM users WHERE user_id = $1`

// Snapshot returns a read-only copy of the ledger. Entries whose timestamps
// no longer parse are dropped and logged.
func (l *PostgresLedger) Snapshot(ctx context.Context, userID int64) (map[string]time.Time, error) {
	var raw []byte
	err := l.db.QueryRowContext(ctx, selectLedgerQuery, userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return map[string]time.Time{}, nil
	}
	if err != nil {
		metrics.RecordStoreError("ledger")
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	records, err := decodeRecords(raw)
	if err != nil {
		return nil, err
	}
	snapshot := make(map[string]time.Time, len(records))
	for id, ts := range records {
		parsed, err := time.ParseInLocation(TimeLayout, ts, time.Local)
		if err != nil {
			l.log.Warn(ctx, "dropping ledger entry with bad timestamp",
				logger.String("video_id", id), logger.String("ts", ts))
			continue
		}
		snapshot[id] = parsed
	}
	return snapshot, nil
}

const getOrCreateUserQuery = `INSERT INTO users (open_id, permissions)
VALUES ($1, $2)
ON CONFLICT (open_id) DO UPDATE SET open_id = EXCLUDED.open_id
RETURNING user_id`

// GetOrCreate resolves an open id to a user id, creating the user with default
// permissions on first sight. A single statement, so concurrent first sights
// of the same open id cannot race.
func (l *PostgresLedger) GetOrCreate(ctx context.Context, openID string) (int64, error) {
	defaults := DefaultPermissions()
	defaults[PermStorageLimit] = l.defaultCapacity
	perms, err := json.Marshal(defaults)
	if err != nil {
		return 0, fmt.Errorf("encode default permissions: %w", err)
	}
	var userID int64
	if err := l.db.QueryRowContext(ctx, getOrCreateUserQuery, openID, perms).Scan(&userID); err != nil {
		metrics.RecordStoreError("users")
		return 0, fmt.Errorf("get or create user: %w", err)
	}
	return userID, nil
}

const selectPermissionsQuery = `SELECT permissions FROM users WHERE user_id = $1`

// Capacity returns the user's ledger capacity, the configured default when the
// permission cannot be resolved.
func (l *PostgresLedger) Capacity(ctx context.Context, userID int64) (int, error) {
	var raw []byte
	err := l.db.QueryRowContext(ctx, selectPermissionsQuery, userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return l.defaultCapacity, nil
	}
	if err != nil {
		metrics.RecordStoreError("users")
		return 0, fmt.Errorf("load permissions: %w", err)
	}
	return decodePermissions(raw).StorageLimitOr(l.defaultCapacity), nil
}

const updatePermissionsQuery = `UPDATE users SET permissions = $1 WHERE open_id = $2`

// SetPermissions replaces the user's permission map after validation.
func (l *PostgresLedger) SetPermissions(ctx context.Context, openID string, perms Permissions) error {
	if err := perms.Validate(); err != nil {
		return err
	}
	blob, err := json.Marshal(perms)
	if err != nil {
		return fmt.Errorf("encode permissions: %w", err)
	}
	res, err := l.db.ExecContext(ctx, updatePermissionsQuery, blob, openID)
	if err != nil {
		metrics.RecordStoreError("users")
		return fmt.Errorf("set permissions: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set permissions affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

const countUsersQuery = `SELECT COUNT(*) FROM users`

// UserCount returns the number of users.
func (l *PostgresLedger) UserCount(ctx context.Context) (int, error) {
	var n int
	if err := l.db.QueryRowContext(ctx, countUsersQuery).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}
