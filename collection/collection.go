// Package collection implements a single named, fixed-dimension vector
// store: the unit the registry manages and the k-NN engine searches.
package collection

import (
	"sync"
	"time"

	"github.com/vecdb/vecdb/core"
)

// Stats summarizes a collection for the service's stats operation.
type Stats struct {
	Name       string
	Dimension  int
	NumVectors int
	CreatedAt  time.Time
}

// Collection holds the live records for one named vector set. All
// mutation goes through its own RWMutex: many concurrent readers (get,
// search, stats), one writer at a time (insert, delete). This is
// per-collection, distinct from the registry's map-level lock, so a
// write to one collection never blocks a read on another.
type Collection struct {
	name      string
	dimension int
	createdAt time.Time

	mu      sync.RWMutex
	records map[string]*core.VectorRecord
}

// New creates an empty collection fixed at dimension. The dimension is
// never revisited: it is not inferred or overwritten by the first
// insert.
func New(name string, dimension int) *Collection {
	return &Collection{
		name:      name,
		dimension: dimension,
		createdAt: time.Now(),
		records:   make(map[string]*core.VectorRecord),
	}
}

// Restore rebuilds a collection from records already known to be valid
// (used by snapshot recovery, which keeps each record's stored norm
// rather than re-validating user input that already passed once).
func Restore(name string, dimension int, createdAt time.Time, records []*core.VectorRecord) *Collection {
	m := make(map[string]*core.VectorRecord, len(records))
	for _, r := range records {
		m[r.ID] = r
	}
	return &Collection{
		name:      name,
		dimension: dimension,
		createdAt: createdAt,
		records:   m,
	}
}

func (c *Collection) Name() string { return c.name }

func (c *Collection) Dimension() int { return c.dimension }

func (c *Collection) CreatedAt() time.Time { return c.createdAt }

// Upsert validates and inserts or replaces a record by ID.
func (c *Collection) Upsert(id string, vector []float32, metadata map[string]any) error {
	if err := core.Validate(id, vector, c.dimension); err != nil {
		return err
	}

	rec := core.NewVectorRecord(id, vector, metadata)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[id] = rec
	return nil
}

// Delete removes a record by ID. Deleting an ID that does not exist is
// not an error at this layer; the service decides whether that should
// surface as RECORD_NOT_FOUND.
func (c *Collection) Delete(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.records[id]; !ok {
		return false
	}
	delete(c.records, id)
	return true
}

// Get returns the record for id, or false if it does not exist.
func (c *Collection) Get(id string) (*core.VectorRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.records[id]
	return r, ok
}

// Snapshot returns a point-in-time slice of every record currently in the
// collection, safe to read without holding any further lock: it is a
// consistent view taken under a single read lock, not a live view of the
// internal map. Callers that need deterministic scan order (snapshot
// persistence, deterministic test scenarios) should sort by ID
// themselves.
func (c *Collection) Snapshot() []*core.VectorRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*core.VectorRecord, 0, len(c.records))
	for _, r := range c.records {
		out = append(out, r)
	}
	return out
}

// Len returns the number of records currently stored.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Stats returns a point-in-time summary of the collection.
func (c *Collection) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Name:       c.name,
		Dimension:  c.dimension,
		NumVectors: len(c.records),
		CreatedAt:  c.createdAt,
	}
}
