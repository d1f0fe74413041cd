// Package directory exposes the department directory read by the triage core.
package directory

import "context"

// FallbackName is the designated catch-all department. It must exist in the
// directory; its absence is a configuration error surfaced per message.
const FallbackName = "Other"

// Department maps a classification label to its head contact.
type Department struct {
	ID        string
	Name      string
	HeadEmail string
}

// Directory resolves departments by name and id.
type Directory interface {
	// Find matches a department by name, trying exact match first and then
	// case-insensitive match. ok=false means neither matched.
	Find(ctx context.Context, name string) (*Department, bool, error)

	// Get retrieves a department by id.
	Get(ctx context.Context, id string) (*Department, bool, error)
}

// Resolve applies the three-step fallback chain: exact name match,
// case-insensitive match, then the "Other" department. ok=false means even
// the fallback is missing from the directory.
func Resolve(ctx context.Context, dir Directory, name string) (*Department, bool, error) {
	if d, ok, err := dir.Find(ctx, name); err != nil || ok {
		return d, ok, err
	}
	return dir.Find(ctx, FallbackName)
}
