package testutil

import (
	"testing"

	"pacs2go/internal/database"
	"pacs2go/internal/pacs"
)

// NewTestStore creates an in-memory SQLite metadata store with the schema
// applied. The store is closed when the test completes.
func NewTestStore(t *testing.T) pacs.MetadataStore {
	t.Helper()

	store, err := database.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}
