// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...) initializer to build a Config with defaults.
// - Load(ctx) layers defaults, optional YAML file, and environment variables.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"context"
	"fmt"
)

// Storage backend names.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":5001".
	Addr string `koanf:"addr"`

	// Backend selects the storage backend: postgres or memory.
	Backend string `koanf:"backend"`

	// Database connection settings, flat keys to match env names.
	DBHost     string `koanf:"db_host"`
	DBPort     int    `koanf:"db_port"`
	DBUser     string `koanf:"db_user"`
	DBPassword string `koanf:"db_password"`
	DBName     string `koanf:"db_name"`
	DBSSLMode  string `koanf:"db_sslmode"`

	// DefaultStorageLimit caps a user's ledger when no permission resolves.
	DefaultStorageLimit int `koanf:"default_storage_limit"`

	// MaxQueryLimit caps per-window result list sizes.
	MaxQueryLimit int `koanf:"max_query_limit"`

	// ActionWeights maps action types to score deltas. Used as the fallback
	// when the live score_config table cannot be read.
	ActionWeights map[string]int `koanf:"action_weights"`

	// PlatformNames maps platform tags to display names.
	PlatformNames map[string]string `koanf:"platform_names"`
}

// New creates a Config with defaults. Context is accepted first to satisfy the
// project-wide convention; it is reserved for future use and currently unused.
func New(_ ...context.Context) *Config {
	c := &Config{
		LogLevel:            "info",
		Addr:                ":5001",
		Backend:             BackendPostgres,
		DBHost:              "localhost",
		DBPort:              5432,
		DBUser:              "postgres",
		DBPassword:          "",
		DBName:              "parse_ucmao",
		DBSSLMode:           "disable",
		DefaultStorageLimit: 100,
		MaxQueryLimit:       100,
		ActionWeights: map[string]int{
			"parse":              10,
			"shareFriend":        8,
			"shareTimeline":      12,
			"videoDownload":      5,
			"imageDownload":      3,
			"copyAllInfo":        4,
			"copyTitle":          1,
			"copyCoverUrl":       2,
			"copyVideoUrl":       3,
			"batchCopyTitle":     1,
			"batchCopyImageLink": 1,
			"batchCopyVideoLink": 1,
			"batchCopyAllInfo":   2,
			"validPlay":          1,
		},
		PlatformNames: map[string]string{
			"douyin":      "抖音",
			"kuaishou":    "快手",
			"bilibili":    "哔哩哔哩",
			"xiaohongshu": "小红书",
			"weibo":       "微博",
		},
	}
	return c
}

// DSN renders the Postgres connection string for database/sql with the pgx driver.
func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}
