package schema

import (
	"fmt"
	"sort"
	"sync"
)

// Provider resolves resource metadata by name
type Provider interface {
	Get(name string) (*ResourceSchema, bool)
}

// Catalog is a Provider that can enumerate its resources
type Catalog interface {
	Provider
	All() map[string]*ResourceSchema
}

// Registry manages all resource schemas in the application
type Registry struct {
	schemas   map[string]*ResourceSchema
	validator *SchemaValidator
	mu        sync.RWMutex
}

// NewRegistry creates a new schema registry
func NewRegistry() *Registry {
	return &Registry{
		schemas:   make(map[string]*ResourceSchema),
		validator: NewSchemaValidator(),
	}
}

// Register registers a new resource schema
func (r *Registry) Register(schema *ResourceSchema) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.schemas[schema.Name]; exists {
		return fmt.Errorf("resource %s is already registered", schema.Name)
	}

	// Relationship targets are checked in ValidateAll so forward references work
	if err := r.validator.ValidateStructural(schema); err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", schema.Name, err)
	}

	r.schemas[schema.Name] = schema
	return nil
}

// Get retrieves a resource schema by name
func (r *Registry) Get(name string) (*ResourceSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schema, exists := r.schemas[name]
	return schema, exists
}

// Lookup retrieves a resource schema by name or returns ErrUnknownResource
func (r *Registry) Lookup(name string) (*ResourceSchema, error) {
	schema, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, name)
	}
	return schema, nil
}

// All returns a copy of all registered schemas
func (r *Registry) All() map[string]*ResourceSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*ResourceSchema, len(r.schemas))
	for k, v := range r.schemas {
		result[k] = v
	}
	return result
}

// List returns the sorted names of all registered resources
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateAll checks cross-resource invariants: every association must
// resolve to exactly one registered target resource
func (r *Registry) ValidateAll() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		validator := NewSchemaValidator()
		if err := validator.Validate(r.schemas[name], r.schemas); err != nil {
			return fmt.Errorf("relationship validation failed: %w", err)
		}
	}
	return nil
}

// Count returns the number of registered schemas
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.schemas)
}

// Exists checks if a resource schema exists
func (r *Registry) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.schemas[name]
	return exists
}

// Target returns the resource a relationship of owner points at
func (r *Registry) Target(owner *ResourceSchema, association string) (*Relationship, *ResourceSchema, error) {
	rel, ok := owner.Relationships[association]
	if !ok {
		return nil, nil, &UnknownPropertyError{Resource: owner.Name, Path: association, Segment: association}
	}
	target, ok := r.Get(rel.TargetResource)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s (target of %s.%s)", ErrUnknownResource, rel.TargetResource, owner.Name, association)
	}
	return rel, target, nil
}
