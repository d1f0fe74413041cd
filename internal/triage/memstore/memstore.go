// Package memstore provides an in-memory implementation of triage.Store.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/tekisho/mailtriage/internal/triage"
)

// Store holds triage records in memory. Suitable for dev/testing.
type Store struct {
	mu      sync.RWMutex
	records map[string]*triage.Record // record ID -> record
	order   []string                  // insertion order, for stable listing
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{records: make(map[string]*triage.Record)}
}

// Get retrieves a record by its ID. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*triage.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, false, nil
	}
	return clone(r), true, nil
}

// FindRecent retrieves the newest record matching subject and sender created
// at or after since. Returns a copy.
func (s *Store) FindRecent(_ context.Context, subject, from string, since time.Time) (*triage.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *triage.Record
	for _, id := range s.order {
		r := s.records[id]
		if r.Subject != subject || r.From != from || r.CreatedAt.Before(since) {
			continue
		}
		if found == nil || r.CreatedAt.After(found.CreatedAt) {
			found = r
		}
	}
	if found == nil {
		return nil, false, nil
	}
	return clone(found), true, nil
}

// Put stores a copy of the record, inserting or replacing by ID.
func (s *Store) Put(_ context.Context, r *triage.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[r.ID]; !ok {
		s.order = append(s.order, r.ID)
	}
	s.records[r.ID] = clone(r)
	return nil
}

// SetMeta replaces the metadata of an existing record. Unknown IDs are a
// silent no-op, matching the update semantics of the SQL store.
func (s *Store) SetMeta(_ context.Context, id string, meta *triage.Meta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil
	}
	cp := *meta
	r.Meta = &cp
	return nil
}

// ListUnresolved returns copies of all records in a non-terminal status with
// non-nil metadata, in insertion order.
func (s *Store) ListUnresolved(_ context.Context) ([]*triage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*triage.Record
	for _, id := range s.order {
		r := s.records[id]
		if r.Status.Terminal() || r.Meta == nil {
			continue
		}
		out = append(out, clone(r))
	}
	return out, nil
}

func clone(r *triage.Record) *triage.Record {
	cp := *r
	if r.DepartmentID != nil {
		d := *r.DepartmentID
		cp.DepartmentID = &d
	}
	if r.Meta != nil {
		m := *r.Meta
		m.UsedChunks = append([]string(nil), r.Meta.UsedChunks...)
		cp.Meta = &m
	}
	return &cp
}
