// Package registry manages the set of named collections: create, drop,
// list, stats, and a scoped lease for running an operation against one
// collection while other collections remain fully concurrent.
package registry

import (
	"errors"
	"sort"
	"sync"

	"github.com/vecdb/vecdb/collection"
)

// ErrAlreadyExists is returned by Create when the name is taken.
var ErrAlreadyExists = errors.New("collection already exists")

// ErrNotFound is returned when a named collection does not exist.
var ErrNotFound = errors.New("collection not found")

// Registry is the top-level directory of collections. Its own RWMutex
// guards only the map of names to collections: acquiring it briefly
// (read lock for lookups shared across many concurrent callers, write
// lock only for create/drop) never blocks work happening inside any one
// collection, which holds its own lock.
type Registry struct {
	mu          sync.RWMutex
	collections map[string]*collection.Collection
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{collections: make(map[string]*collection.Collection)}
}

// Create adds a new empty collection fixed at dimension.
func (r *Registry) Create(name string, dimension int) (*collection.Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.collections[name]; exists {
		return nil, ErrAlreadyExists
	}
	c := collection.New(name, dimension)
	r.collections[name] = c
	return c, nil
}

// Restore installs an already-built collection (used by recovery), same
// existence semantics as Create.
func (r *Registry) Restore(c *collection.Collection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.collections[c.Name()]; exists {
		return ErrAlreadyExists
	}
	r.collections[c.Name()] = c
	return nil
}

// Drop removes a collection entirely.
func (r *Registry) Drop(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.collections[name]; !exists {
		return ErrNotFound
	}
	delete(r.collections, name)
	return nil
}

// List returns collection names in lexicographic order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.collections))
	for name := range r.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the named collection without holding the registry lock any
// longer than the lookup itself — once returned, the caller operates on
// the collection's own lock.
func (r *Registry) Get(name string) (*collection.Collection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, exists := r.collections[name]
	if !exists {
		return nil, ErrNotFound
	}
	return c, nil
}

// WithCollection leases the named collection to fn. Many leases against
// different (or the same) collection may run concurrently; this only
// takes the registry's read lock to look the collection up, not to hold
// across fn's execution.
func (r *Registry) WithCollection(name string, fn func(*collection.Collection) error) error {
	c, err := r.Get(name)
	if err != nil {
		return err
	}
	return fn(c)
}

// All returns every collection currently registered, for snapshotting.
func (r *Registry) All() []*collection.Collection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*collection.Collection, 0, len(r.collections))
	for _, c := range r.collections {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
