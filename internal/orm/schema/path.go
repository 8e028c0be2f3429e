package schema

import (
	"strings"
	"sync"
)

// PropertyPath is a dotted property resolved against resource metadata.
// Associations is empty iff the path names a field of the root resource.
// An empty Field means the path ends on an association and compares the
// associated row as a whole.
type PropertyPath struct {
	Raw          string
	Associations []string
	Field        string

	Root   *ResourceSchema
	Target *ResourceSchema
}

// IsNested reports whether the path crosses at least one association
func (p *PropertyPath) IsNested() bool {
	return len(p.Associations) > 0
}

// IsWholeAssociation reports whether the path compares an associated row rather than one of its fields
func (p *PropertyPath) IsWholeAssociation() bool {
	return p.Field == ""
}

// TargetField returns the terminal field, or nil for whole-association paths
func (p *PropertyPath) TargetField() *Field {
	if p.Field == "" {
		return nil
	}
	return p.Target.Fields[p.Field]
}

// Column returns the column compared by the path on the target resource
func (p *PropertyPath) Column() string {
	if field := p.TargetField(); field != nil {
		return field.ColumnName()
	}
	return p.Target.PrimaryKeyColumn()
}

// Resolver resolves property paths against a registry. Results are memoized
// by resource and path; resolution itself has no side effects.
type Resolver struct {
	schemas Provider

	mu    sync.RWMutex
	cache map[string]*PropertyPath
}

// NewResolver creates a resolver over the given metadata provider
func NewResolver(schemas Provider) *Resolver {
	return &Resolver{
		schemas: schemas,
		cache:   make(map[string]*PropertyPath),
	}
}

// Resolve splits path into an association chain and a terminal field
func (r *Resolver) Resolve(path string, resource *ResourceSchema) (*PropertyPath, error) {
	key := resource.Name + "\x00" + path

	r.mu.RLock()
	cached, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	resolved, err := r.resolve(path, resource)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[key] = resolved
	r.mu.Unlock()

	return resolved, nil
}

func (r *Resolver) resolve(path string, resource *ResourceSchema) (*PropertyPath, error) {
	if path == "" {
		return nil, &UnknownPropertyError{Resource: resource.Name, Path: path, Segment: path}
	}

	segments := strings.Split(path, ".")
	current := resource
	associations := make([]string, 0, len(segments))

	for _, segment := range segments[:len(segments)-1] {
		target, err := r.follow(current, segment, path)
		if err != nil {
			return nil, err
		}
		associations = append(associations, segment)
		current = target
	}

	last := segments[len(segments)-1]
	result := &PropertyPath{Raw: path, Root: resource}

	switch {
	case last == "" && len(associations) > 0:
		// "node." compares the association itself
	case current.HasField(last):
		result.Field = last
	case current.HasRelationship(last):
		target, err := r.follow(current, last, path)
		if err != nil {
			return nil, err
		}
		associations = append(associations, last)
		current = target
	case len(current.Extensions) > 0:
		ext, target, err := r.extensionOf(current, last, path)
		if err != nil {
			return nil, err
		}
		result.Field = last
		associations = append(associations, ext)
		current = target
	default:
		return nil, &UnknownPropertyError{Resource: current.Name, Path: path, Segment: last}
	}

	result.Associations = associations
	result.Target = current
	return result, nil
}

func (r *Resolver) follow(current *ResourceSchema, segment, path string) (*ResourceSchema, error) {
	rel, ok := current.Relationships[segment]
	if !ok {
		return nil, &UnknownPropertyError{Resource: current.Name, Path: path, Segment: segment}
	}
	target, ok := r.schemas.Get(rel.TargetResource)
	if !ok {
		return nil, &UnknownPropertyError{Resource: rel.TargetResource, Path: path, Segment: segment}
	}
	return target, nil
}

// extensionOf finds the single extension of current declaring field
func (r *Resolver) extensionOf(current *ResourceSchema, field, path string) (string, *ResourceSchema, error) {
	var (
		matches []string
		target  *ResourceSchema
	)
	for _, ext := range current.Extensions {
		candidate, err := r.follow(current, ext, path)
		if err != nil {
			return "", nil, err
		}
		if candidate.HasField(field) {
			matches = append(matches, ext)
			target = candidate
		}
	}

	switch len(matches) {
	case 0:
		return "", nil, &UnknownPropertyError{Resource: current.Name, Path: path, Segment: field}
	case 1:
		return matches[0], target, nil
	default:
		return "", nil, &AmbiguousPropertyError{Resource: current.Name, Path: path, Segment: field, Candidates: matches}
	}
}
