package provider

import (
	"fmt"
	"strings"
	"sync"

	"github.com/polisai/phonescope/pkg/domain"
)

// Registry is an ordered, threadsafe catalog of providers. Registration order
// determines report order.
type Registry struct {
	mu      sync.RWMutex
	entries []Entry
	index   map[string]int
}

// NewRegistry constructs an empty Registry instance.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register appends entry. Names are unique; a second registration under the
// same name fails with domain.ErrDuplicateProvider.
func (r *Registry) Register(entry Entry) error {
	entry.Name = strings.TrimSpace(entry.Name)
	entry.Category = strings.TrimSpace(entry.Category)
	if entry.Name == "" {
		return fmt.Errorf("provider: name is required")
	}
	if entry.Category == "" {
		return fmt.Errorf("provider: %s missing category", entry.Name)
	}
	if entry.Category == domain.KeyTimestamp || entry.Category == domain.KeyTarget {
		return fmt.Errorf("provider: %s uses reserved category %q", entry.Name, entry.Category)
	}
	if entry.Provider == nil {
		return fmt.Errorf("provider: %s has no implementation", entry.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.index[entry.Name]; exists {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateProvider, entry.Name)
	}
	r.index[entry.Name] = len(r.entries)
	r.entries = append(r.entries, entry)
	return nil
}

// RegisterAll registers entries in order, stopping at the first error.
func (r *Registry) RegisterAll(entries []Entry) error {
	for _, e := range entries {
		if err := r.Register(e); err != nil {
			return err
		}
	}
	return nil
}

// All returns a snapshot of every entry in registration order.
func (r *Registry) All() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Lookup retrieves an entry by name.
func (r *Registry) Lookup(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[name]
	if !ok {
		return Entry{}, false
	}
	return r.entries[i], true
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Categories lists category names in order of first registration.
func (r *Registry) Categories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	var out []string
	for _, e := range r.entries {
		if _, ok := seen[e.Category]; ok {
			continue
		}
		seen[e.Category] = struct{}{}
		out = append(out, e.Category)
	}
	return out
}
