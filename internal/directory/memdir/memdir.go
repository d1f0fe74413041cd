// Package memdir provides an in-memory implementation of directory.Directory.
package memdir

import (
	"context"
	"strings"
	"sync"

	"github.com/tekisho/mailtriage/internal/directory"
)

// Dir holds departments in memory. Suitable for dev/testing.
type Dir struct {
	mu    sync.RWMutex
	byID  map[string]directory.Department
	order []string
}

// New initializes a Dir with the given departments.
func New(depts ...directory.Department) *Dir {
	d := &Dir{byID: make(map[string]directory.Department, len(depts))}
	for _, dept := range depts {
		if _, ok := d.byID[dept.ID]; !ok {
			d.order = append(d.order, dept.ID)
		}
		d.byID[dept.ID] = dept
	}
	return d
}

// Find matches a department by name: exact match first, then
// case-insensitive in insertion order.
func (d *Dir) Find(_ context.Context, name string) (*directory.Department, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, id := range d.order {
		if dept := d.byID[id]; dept.Name == name {
			cp := dept
			return &cp, true, nil
		}
	}
	for _, id := range d.order {
		if dept := d.byID[id]; strings.EqualFold(dept.Name, name) {
			cp := dept
			return &cp, true, nil
		}
	}
	return nil, false, nil
}

// Get retrieves a department by id.
func (d *Dir) Get(_ context.Context, id string) (*directory.Department, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	dept, ok := d.byID[id]
	if !ok {
		return nil, false, nil
	}
	cp := dept
	return &cp, true, nil
}
