package database

import (
	"fmt"
	"os"
	"path/filepath"

	"sereno-go/internal/config"
	"sereno-go/internal/field"
)

// NewStoreFromConfig creates a LocalStore implementation based on the database config type.
func NewStoreFromConfig(cfg config.DatabaseConfig) (field.LocalStore, error) {
	switch cfg.Type {
	case "sqlite", "":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return NewSQLiteStore(filepath.Join(cfg.DataDir, "sereno.db"))
	case "memory":
		return NewSQLiteStore(":memory:")
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
