package mockplatform

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("record not found")

// Store keeps the records of every collection the mock serves.
// Collections are keyed by schema name, or "name/action" for actions.
type Store interface {
	// Insert adds a record. The record must carry a string "id".
	Insert(ctx context.Context, collection string, rec map[string]any) error

	// Get retrieves a record by id.
	Get(ctx context.Context, collection, id string) (map[string]any, error)

	// List returns records in insertion order, filtered by exact match on
	// the given fields, skipping offset and returning at most limit.
	// The total number of matches is returned too.
	List(ctx context.Context, collection string, opts ListOptions) ([]map[string]any, int, error)

	// Update merges fields into an existing record and returns the result.
	Update(ctx context.Context, collection, id string, fields map[string]any) (map[string]any, error)

	// Delete removes a record.
	Delete(ctx context.Context, collection, id string) error

	// Close releases resources.
	Close() error
}

// ListOptions configures list queries.
type ListOptions struct {
	// Limit is the maximum number of records to return.
	Limit int

	// Offset is the number of records to skip.
	Offset int

	// Filters are field-value pairs compared as strings.
	Filters map[string]string
}

// MemoryStore implements Store in memory.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

type collection struct {
	order []string
	byID  map[string]map[string]any
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*collection)}
}

func (s *MemoryStore) coll(name string) *collection {
	c, ok := s.collections[name]
	if !ok {
		c = &collection{byID: make(map[string]map[string]any)}
		s.collections[name] = c
	}
	return c
}

// Insert adds a record.
func (s *MemoryStore) Insert(_ context.Context, name string, rec map[string]any) error {
	id, _ := rec["id"].(string)
	if id == "" {
		return fmt.Errorf("insert into %s: record has no id", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.coll(name)
	if _, exists := c.byID[id]; exists {
		return fmt.Errorf("insert into %s: duplicate id %q", name, id)
	}
	c.order = append(c.order, id)
	c.byID[id] = copyRecord(rec)
	return nil
}

// Get retrieves a record by id.
func (s *MemoryStore) Get(_ context.Context, name, id string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return nil, ErrNotFound
	}
	rec, ok := c.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRecord(rec), nil
}

// List returns matching records in insertion order.
func (s *MemoryStore) List(_ context.Context, name string, opts ListOptions) ([]map[string]any, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return nil, 0, nil
	}

	var matched []map[string]any
	for _, id := range c.order {
		rec := c.byID[id]
		if matches(rec, opts.Filters) {
			matched = append(matched, rec)
		}
	}

	total := len(matched)
	if opts.Offset >= total {
		return nil, total, nil
	}
	end := total
	if opts.Limit > 0 && opts.Offset+opts.Limit < end {
		end = opts.Offset + opts.Limit
	}

	out := make([]map[string]any, 0, end-opts.Offset)
	for _, rec := range matched[opts.Offset:end] {
		out = append(out, copyRecord(rec))
	}
	return out, total, nil
}

// Update merges fields into a record.
func (s *MemoryStore) Update(_ context.Context, name, id string, fields map[string]any) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		return nil, ErrNotFound
	}
	rec, ok := c.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	for k, v := range fields {
		if k == "id" {
			continue
		}
		rec[k] = v
	}
	return copyRecord(rec), nil
}

// Delete removes a record.
func (s *MemoryStore) Delete(_ context.Context, name, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		return ErrNotFound
	}
	if _, ok := c.byID[id]; !ok {
		return ErrNotFound
	}
	delete(c.byID, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

func matches(rec map[string]any, filters map[string]string) bool {
	for k, want := range filters {
		v, ok := rec[k]
		if !ok || fmt.Sprint(v) != want {
			return false
		}
	}
	return true
}

func copyRecord(rec map[string]any) map[string]any {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

var _ Store = (*MemoryStore)(nil)
