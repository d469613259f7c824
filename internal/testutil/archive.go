package testutil

import (
	"pacs2go/internal/archive"
)

// NewTestArchive creates an in-memory archive whose session reports the
// given username.
func NewTestArchive(user string) *archive.MemoryArchive {
	return archive.NewMemoryArchive(user)
}
