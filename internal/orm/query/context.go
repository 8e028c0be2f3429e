// Package query holds the mutable state of one criteria compilation (joins,
// predicates and bound parameters) and renders the result as SQL.
package query

import (
	"fmt"
	"strings"

	"github.com/gosimple/slug"

	"github.com/conduit-lang/criteria/internal/orm/schema"
)

// DefaultRootAlias is the alias of the queried resource
const DefaultRootAlias = "o"

// JoinType represents the type of SQL join
type JoinType int

const (
	InnerJoin JoinType = iota
	LeftJoin
)

// String returns the string representation of the join type
func (j JoinType) String() string {
	switch j {
	case LeftJoin:
		return "LEFT"
	default:
		return "INNER"
	}
}

// Join is one association followed from an owner alias
type Join struct {
	Type        JoinType
	OwnerAlias  string
	Association string
	Alias       string

	Relationship *schema.Relationship
	Owner        *schema.ResourceSchema
	Target       *schema.ResourceSchema

	// Duplicate joins were requested explicitly and are never reused
	Duplicate bool
}

// String renders the join, e.g. "INNER JOIN o.node AS node"
func (j *Join) String() string {
	return fmt.Sprintf("%s JOIN %s.%s AS %s", j.Type, j.OwnerAlias, j.Association, j.Alias)
}

// Context is the compilation state of one query. It is created per compile
// call and must not be shared between goroutines.
type Context struct {
	schemas   schema.Provider
	root      *schema.ResourceSchema
	rootAlias string

	aliases    map[string]*schema.ResourceSchema
	joins      []*Join
	predicates []Predicate
	params     map[string]any
	paramOrder []string

	aliasCounter int
	paramCounter int
}

// NewContext creates a context rooted at resource. An empty rootAlias uses DefaultRootAlias.
func NewContext(schemas schema.Provider, root *schema.ResourceSchema, rootAlias string) *Context {
	if rootAlias == "" {
		rootAlias = DefaultRootAlias
	}
	return &Context{
		schemas:   schemas,
		root:      root,
		rootAlias: rootAlias,
		aliases:   map[string]*schema.ResourceSchema{rootAlias: root},
		joins:     make([]*Join, 0),
		params:    make(map[string]any),
	}
}

// Root returns the queried resource
func (c *Context) Root() *schema.ResourceSchema {
	return c.root
}

// RootAlias returns the alias of the queried resource
func (c *Context) RootAlias() string {
	return c.rootAlias
}

// ResourceOf returns the resource joined under alias
func (c *Context) ResourceOf(alias string) (*schema.ResourceSchema, bool) {
	r, ok := c.aliases[alias]
	return r, ok
}

// Joins returns the joins in creation order
func (c *Context) Joins() []*Join {
	out := make([]*Join, len(c.joins))
	copy(out, c.joins)
	return out
}

// EnsureJoin returns the join from ownerAlias via association. Unless
// allowDuplicate is set, an existing non-duplicate join is reused. Duplicate
// joins always get a fresh alias.
func (c *Context) EnsureJoin(ownerAlias, association string, kind JoinType, allowDuplicate bool) (*Join, error) {
	owner, ok := c.aliases[ownerAlias]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAlias, ownerAlias)
	}

	if !allowDuplicate {
		existing, err := c.lookup(ownerAlias, association)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	rel, ok := owner.Relationships[association]
	if !ok {
		return nil, &schema.UnknownPropertyError{Resource: owner.Name, Path: association, Segment: association}
	}
	target, ok := c.schemas.Get(rel.TargetResource)
	if !ok {
		return nil, fmt.Errorf("%w: %s (target of %s.%s)", schema.ErrUnknownResource, rel.TargetResource, owner.Name, association)
	}

	join := &Join{
		Type:         kind,
		OwnerAlias:   ownerAlias,
		Association:  association,
		Alias:        c.newAlias(association, allowDuplicate),
		Relationship: rel,
		Owner:        owner,
		Target:       target,
		Duplicate:    allowDuplicate,
	}
	c.joins = append(c.joins, join)
	c.aliases[join.Alias] = target
	return join, nil
}

// FindJoin returns the reusable join from ownerAlias via association, or nil
func (c *Context) FindJoin(ownerAlias, association string) (*Join, error) {
	return c.lookup(ownerAlias, association)
}

func (c *Context) lookup(ownerAlias, association string) (*Join, error) {
	var found []*Join
	for _, j := range c.joins {
		if !j.Duplicate && j.OwnerAlias == ownerAlias && j.Association == association {
			found = append(found, j)
		}
	}
	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		return found[0], nil
	default:
		return nil, &AmbiguousJoinError{OwnerAlias: ownerAlias, Association: association, Count: len(found)}
	}
}

// newAlias returns the association name for the first reusable join, and
// association_<n> from the context-local counter otherwise
func (c *Context) newAlias(association string, duplicate bool) string {
	if !duplicate {
		if _, taken := c.aliases[association]; !taken {
			return association
		}
	}
	for {
		c.aliasCounter++
		alias := fmt.Sprintf("%s_%d", association, c.aliasCounter)
		if _, taken := c.aliases[alias]; !taken {
			return alias
		}
	}
}

// JoinPath joins the association chain of path starting at alias and
// returns the alias and column the terminal field lives on.
//
// With allowDuplicate, to-one segments before the first to-many segment are
// reused and every segment from the first to-many one on is duplicated. A
// chain with no to-many segment duplicates only its last segment.
//
// A whole-association path ending on a belongs_to compares the owner's
// foreign key, so the last segment is not joined.
func (c *Context) JoinPath(alias string, path *schema.PropertyPath, kind JoinType, allowDuplicate bool) (string, string, error) {
	current, ok := c.aliases[alias]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnknownAlias, alias)
	}
	if current != path.Root {
		return "", "", fmt.Errorf("path %q is rooted at %s, alias %s is %s", path.Raw, path.Root.Name, alias, current.Name)
	}

	associations := path.Associations
	if path.IsWholeAssociation() && len(associations) > 0 {
		last := associations[len(associations)-1]
		owner, err := c.ownerOf(alias, associations[:len(associations)-1])
		if err != nil {
			return "", "", err
		}
		if rel := owner.Relationships[last]; rel != nil && rel.Type == schema.RelationshipBelongsTo {
			ownerAlias, err := c.joinChain(alias, associations[:len(associations)-1], kind, allowDuplicate)
			if err != nil {
				return "", "", err
			}
			return ownerAlias, rel.ForeignKey, nil
		}
	}

	terminal, err := c.joinChain(alias, associations, kind, allowDuplicate)
	if err != nil {
		return "", "", err
	}
	return terminal, path.Column(), nil
}

func (c *Context) joinChain(alias string, associations []string, kind JoinType, allowDuplicate bool) (string, error) {
	if len(associations) == 0 {
		return alias, nil
	}

	firstDuplicate := len(associations)
	if allowDuplicate {
		firstDuplicate = len(associations) - 1
		resource := c.aliases[alias]
		for i, name := range associations {
			rel := resource.Relationships[name]
			if rel == nil {
				return "", &schema.UnknownPropertyError{Resource: resource.Name, Path: strings.Join(associations, "."), Segment: name}
			}
			if rel.IsToMany() {
				firstDuplicate = i
				break
			}
			next, ok := c.schemas.Get(rel.TargetResource)
			if !ok {
				return "", fmt.Errorf("%w: %s", schema.ErrUnknownResource, rel.TargetResource)
			}
			resource = next
		}
	}

	current := alias
	for i, name := range associations {
		join, err := c.EnsureJoin(current, name, kind, i >= firstDuplicate)
		if err != nil {
			return "", err
		}
		current = join.Alias
	}
	return current, nil
}

// ownerOf follows associations from alias through metadata only
func (c *Context) ownerOf(alias string, associations []string) (*schema.ResourceSchema, error) {
	resource := c.aliases[alias]
	for _, name := range associations {
		rel := resource.Relationships[name]
		if rel == nil {
			return nil, &schema.UnknownPropertyError{Resource: resource.Name, Path: strings.Join(associations, "."), Segment: name}
		}
		next, ok := c.schemas.Get(rel.TargetResource)
		if !ok {
			return nil, fmt.Errorf("%w: %s", schema.ErrUnknownResource, rel.TargetResource)
		}
		resource = next
	}
	return resource, nil
}

// NewParam binds value to a fresh parameter named after hint, e.g.
// "node.visible" becomes "node_visible_3". Names never repeat within a context.
func (c *Context) NewParam(hint string, value any) string {
	c.paramCounter++
	base := strings.ReplaceAll(slug.Make(hint), "-", "_")
	if base == "" {
		base = "p"
	}
	name := fmt.Sprintf("%s_%d", base, c.paramCounter)
	c.params[name] = value
	c.paramOrder = append(c.paramOrder, name)
	return name
}

// Param returns the value bound to name
func (c *Context) Param(name string) (any, bool) {
	v, ok := c.params[name]
	return v, ok
}

// Where appends a top-level predicate. Top-level predicates are ANDed.
func (c *Context) Where(p Predicate) {
	c.predicates = append(c.predicates, p)
}

// Predicates returns the top-level predicates in insertion order
func (c *Context) Predicates() []Predicate {
	out := make([]Predicate, len(c.predicates))
	copy(out, c.predicates)
	return out
}

// Compare builds a condition on alias.column binding one parameter per
// value the operator needs
func (c *Context) Compare(alias, column string, op Operator, values ...any) *Condition {
	cond := &Condition{Alias: alias, Column: column, Operator: op}
	hint := alias + "." + column
	for i := 0; i < op.Arity() && i < len(values); i++ {
		cond.Params = append(cond.Params, c.NewParam(hint, values[i]))
	}
	return cond
}

// Compiled returns the accumulated query. The context may keep being used;
// the returned value does not change with it.
func (c *Context) Compiled() *CompiledQuery {
	params := make(map[string]any, len(c.params))
	for k, v := range c.params {
		params[k] = v
	}
	order := make([]string, len(c.paramOrder))
	copy(order, c.paramOrder)
	return &CompiledQuery{
		Resource:   c.root,
		RootAlias:  c.rootAlias,
		Joins:      c.Joins(),
		Predicates: c.Predicates(),
		Parameters: params,
		paramOrder: order,
	}
}
