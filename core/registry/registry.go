// Package registry holds the object schemas known to a client.
// A Registry is built once at startup and passed explicitly to the
// dispatcher; it detects schemas that claim the same name or endpoint.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/artpar/restschema/core/schema"
)

// Registry manages registered object schemas.
type Registry struct {
	mu sync.RWMutex

	// schemas by name
	schemas map[string]*schema.ObjectSchema

	// endpoints to schema names
	endpoints map[string]string
}

// New creates a new registry.
func New() *Registry {
	return &Registry{
		schemas:   make(map[string]*schema.ObjectSchema),
		endpoints: make(map[string]string),
	}
}

// NewWith creates a registry and registers every schema, stopping at the
// first conflict.
func NewWith(objects ...*schema.ObjectSchema) (*Registry, error) {
	r := New()
	for _, obj := range objects {
		if err := r.Register(obj); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a schema.
// Returns an error if its name or endpoint is already claimed.
func (r *Registry) Register(obj *schema.ObjectSchema) error {
	if obj == nil {
		return fmt.Errorf("register: nil schema")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.schemas[obj.Name]; exists {
		return fmt.Errorf("schema %q already registered", obj.Name)
	}

	if existing, exists := r.endpoints[obj.Endpoint]; exists {
		return &ConflictError{Endpoint: obj.Endpoint, Claims: []string{existing, obj.Name}}
	}

	r.schemas[obj.Name] = obj
	r.endpoints[obj.Endpoint] = obj.Name

	return nil
}

// Unregister removes a schema from the registry.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	obj, exists := r.schemas[name]
	if !exists {
		return fmt.Errorf("schema %q not registered", name)
	}

	delete(r.endpoints, obj.Endpoint)
	delete(r.schemas, name)

	return nil
}

// Get returns a registered schema by name.
func (r *Registry) Get(name string) (*schema.ObjectSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	obj, ok := r.schemas[name]
	return obj, ok
}

// Resolve finds a schema by name or, failing that, by endpoint,
// so both "meeting" and "meetings" address the same resource.
func (r *Registry) Resolve(ref string) (*schema.ObjectSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if obj, ok := r.schemas[ref]; ok {
		return obj, true
	}
	if name, ok := r.endpoints[strings.Trim(ref, "/")]; ok {
		return r.schemas[name], true
	}
	return nil, false
}

// List returns all registered schemas sorted by name.
func (r *Registry) List() []*schema.ObjectSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	objects := make([]*schema.ObjectSchema, 0, len(r.schemas))
	for _, obj := range r.schemas {
		objects = append(objects, obj)
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].Name < objects[j].Name
	})

	return objects
}

// All returns all registered schemas keyed by name.
func (r *Registry) All() map[string]*schema.ObjectSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*schema.ObjectSchema, len(r.schemas))
	for name, obj := range r.schemas {
		result[name] = obj
	}
	return result
}

// Len returns the number of registered schemas.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.schemas)
}

// ConflictError reports two schemas claiming the same endpoint.
type ConflictError struct {
	Endpoint string
	Claims   []string
}

// Error returns the conflict error message.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("endpoint %q claimed by %s", e.Endpoint, strings.Join(e.Claims, " and "))
}
