package database

import (
	"fmt"

	"pacs2go/internal/config"
	"pacs2go/internal/pacs"
)

// NewStoreFromConfig creates a MetadataStore implementation based on the
// database config type.
func NewStoreFromConfig(cfg config.DatabaseConfig) (pacs.MetadataStore, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.Path == "" {
			return nil, fmt.Errorf("path required for sqlite database")
		}
		return NewSQLiteStore(cfg.Path)
	case "memory":
		return NewSQLiteStore(":memory:")
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
