package database

import (
	"path/filepath"
	"testing"

	"pacs2go/internal/config"
)

func TestNewStoreFromConfig(t *testing.T) {
	t.Run("memory store", func(t *testing.T) {
		cfg := config.DatabaseConfig{Type: "memory"}
		store, err := NewStoreFromConfig(cfg)
		if err != nil {
			t.Fatalf("NewStoreFromConfig() error = %v", err)
		}
		defer store.Close()

		if p, err := store.GetProject("nope"); err != nil || p != nil {
			t.Errorf("GetProject() = %v, %v, want nil, nil", p, err)
		}
	})

	t.Run("sqlite store", func(t *testing.T) {
		cfg := config.DatabaseConfig{
			Type: "sqlite",
			Path: filepath.Join(t.TempDir(), "pacs2go.db"),
		}
		store, err := NewStoreFromConfig(cfg)
		if err != nil {
			t.Fatalf("NewStoreFromConfig() error = %v", err)
		}
		defer store.Close()
	})

	t.Run("sqlite without path fails", func(t *testing.T) {
		if _, err := NewStoreFromConfig(config.DatabaseConfig{Type: "sqlite"}); err == nil {
			t.Fatal("NewStoreFromConfig() accepted sqlite without a path")
		}
	})

	t.Run("unknown type fails", func(t *testing.T) {
		if _, err := NewStoreFromConfig(config.DatabaseConfig{Type: "postgres"}); err == nil {
			t.Fatal("NewStoreFromConfig() accepted an unknown type")
		}
	})
}
