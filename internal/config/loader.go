package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New())
//  2. file (YAML) if UCMAO_CONFIG is set
//  3. env (prefix UCMAO_)
func Load(ctx context.Context) (*Config, error) {
	// Start with defaults
	base := New(ctx)

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("UCMAO_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: UCMAO_ADDR, UCMAO_DB_HOST, ...
	// Map env keys like UCMAO_DB_HOST -> db_host (flat keys).
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("UCMAO_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "ucmao_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Basic validation
	if cfg.Addr == "" {
		return nil, fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if cfg.Backend != BackendPostgres && cfg.Backend != BackendMemory {
		return nil, fmt.Errorf("%w: backend must be postgres or memory", ErrInvalidConfig)
	}
	if cfg.DefaultStorageLimit <= 0 {
		return nil, fmt.Errorf("%w: default_storage_limit must be positive", ErrInvalidConfig)
	}
	if cfg.MaxQueryLimit <= 0 {
		return nil, fmt.Errorf("%w: max_query_limit must be positive", ErrInvalidConfig)
	}
	return &cfg, nil
}
