package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// StorageConfig selects a storage backend. Defined here (not in config) so
// callers without HCL configuration can construct bundles directly.
type StorageConfig struct {
	Backend string // "memory", "sqlite" or "postgres"
	Path    string // sqlite database file
	DSN     string // postgres connection string
}

// NewBundle creates a store Bundle based on the storage configuration.
// A nil config means in-memory storage.
func NewBundle(ctx context.Context, cfg *StorageConfig) (*Bundle, error) {
	if cfg == nil {
		return NewMemoryBundle(), nil
	}

	switch cfg.Backend {
	case "sqlite":
		dir := filepath.Dir(cfg.Path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create storage directory %s: %w", dir, err)
		}
		return NewSQLiteBundle(cfg.Path)

	case "postgres":
		return NewPostgresBundle(ctx, cfg.DSN)

	case "memory", "":
		return NewMemoryBundle(), nil

	default:
		return nil, fmt.Errorf("unknown storage backend: %s (expected 'memory', 'sqlite' or 'postgres')", cfg.Backend)
	}
}
