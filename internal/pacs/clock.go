package pacs

import (
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so timestamp handling is deterministic in
// tests. Timestamps written by the facade are always Clock-derived.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator abstracts unique ID generation so tests are deterministic.
// Used for throwaway object names when materializing empty directories.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }
