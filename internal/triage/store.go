package triage

import (
	"context"
	"time"
)

// Store is the persistence interface for triage records.
type Store interface {
	// Get retrieves a record by ID.
	Get(ctx context.Context, id string) (*Record, bool, error)

	// FindRecent returns the newest record with the same subject and sender
	// created at or after since. Used by the dedup gate.
	FindRecent(ctx context.Context, subject, from string, since time.Time) (*Record, bool, error)

	// Put inserts or updates a record by ID.
	Put(ctx context.Context, r *Record) error

	// SetMeta overwrites only the metadata blob of a record, scoped by ID.
	// The SLA sweeper uses this so flag writes never race record updates.
	SetMeta(ctx context.Context, id string, meta *Meta) error

	// ListUnresolved returns records whose status is pending or needs_review
	// and whose metadata is non-nil, oldest first. The sweeper relies on the
	// non-nil guarantee.
	ListUnresolved(ctx context.Context) ([]*Record, error)
}
