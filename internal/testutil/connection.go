package testutil

import (
	"context"
	"testing"

	"pacs2go/internal/archive"
	"pacs2go/internal/pacs"
)

// NewTestConnection wires a facade over an in-memory store and archive,
// authenticated as the given user, with a fixed clock and sequential ids.
// The returned archive can be used to inject failures or inspect state.
func NewTestConnection(t *testing.T, user string) (*pacs.Connection, *archive.MemoryArchive, *StubClock) {
	t.Helper()

	store := NewTestStore(t)
	arch := NewTestArchive(user)
	clock := FixedClock()
	conn, err := pacs.NewConnection(context.Background(), store, arch,
		pacs.NewNopLogger(), clock, &SeqIDGenerator{})
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	return conn, arch, clock
}
