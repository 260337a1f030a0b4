package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ucmao/parse-ucmao-backend/pkg/metrics"
)

// PostgresScoreConfig reads the live action->weight table. It satisfies
// scoring.Source.
type PostgresScoreConfig struct {
	db *sql.DB
}

// NewPostgresScoreConfig creates a score config source over an injected
// database handle.
func NewPostgresScoreConfig(db *sql.DB) *PostgresScoreConfig {
	return &PostgresScoreConfig{db: db}
}

const selectScoreConfigQuery = `SELECT config_key, config_value, is_enabled FROM score_config`

// ActionWeights returns the enabled action weights. Single attempt; the
// scoring resolver falls back to its configured defaults on error.
func (s *PostgresScoreConfig) ActionWeights(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, selectScoreConfigQuery)
	if err != nil {
		metrics.RecordStoreError("score_config")
		return nil, fmt.Errorf("load score config: %w", err)
	}
	defer rows.Close()

	weights := make(map[string]int)
	for rows.Next() {
		var key string
		var value int
		var enabled bool
		if err := rows.Scan(&key, &value, &enabled); err != nil {
			return nil, fmt.Errorf("scan score config: %w", err)
		}
		if enabled {
			weights[key] = value
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load score config: %w", err)
	}
	return weights, nil
}
