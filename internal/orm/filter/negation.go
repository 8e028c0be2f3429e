package filter

import (
	"fmt"

	"github.com/conduit-lang/criteria/internal/orm/criteria"
	"github.com/conduit-lang/criteria/internal/orm/query"
)

const (
	notProperty       = "not"
	intersectProperty = "intersect"
)

// isBag reports whether property names a map of criteria owned by a bag
// rule rather than a field
func isBag(property string) bool {
	return property == notProperty || property == intersectProperty
}

// NotRule compiles not[field] = value into field != value, and
// not[field] = [values] into field NOT IN (values). A null value becomes
// IS NOT NULL.
type NotRule struct{}

// Name returns the rule name
func (NotRule) Name() string { return "not" }

// Subscriptions returns the rule priorities
func (NotRule) Subscriptions() map[Event]int {
	return map[Event]int{EventFilter: 20}
}

// Apply claims the not bag
func (NotRule) Apply(c *Compilation, _ Event, crit *Criterion) (Outcome, error) {
	if crit.Property != notProperty {
		return NotClaimed, nil
	}
	if !crit.Value.IsMap() {
		return NotClaimed, malformed(crit, "not expects a map of property to value")
	}

	for _, field := range crit.Value.Keys() {
		value, _ := crit.Value.Get(field)
		inner := crit.Rebase(crit.Alias, crit.Resource, field, value)

		alias, column, _, err := c.Join(inner, field, query.InnerJoin, false)
		if err != nil {
			return NotClaimed, err
		}

		switch value.Kind() {
		case criteria.KindNull:
			c.Query.Where(c.Query.Compare(alias, column, query.OpIsNotNull))
		case criteria.KindScalar:
			c.Query.Where(c.Query.Compare(alias, column, query.OpNotEqual, value.Raw()))
		case criteria.KindList:
			values, ok := value.Scalars()
			if !ok {
				return NotClaimed, malformed(inner, "not[] list items must be scalars")
			}
			c.Query.Where(c.Query.Compare(alias, column, query.OpNotIn, values))
		default:
			return NotClaimed, malformed(inner, "not[] expects a scalar or a list")
		}
	}
	return Claimed, nil
}

// IntersectRule compiles intersect[path] = [v1, v2] into one independent
// join per value, so the association must contain v1 AND v2
type IntersectRule struct{}

// Name returns the rule name
func (IntersectRule) Name() string { return "intersect" }

// Subscriptions returns the rule priorities
func (IntersectRule) Subscriptions() map[Event]int {
	return map[Event]int{EventFilter: 20}
}

// Apply claims the intersect bag
func (IntersectRule) Apply(c *Compilation, _ Event, crit *Criterion) (Outcome, error) {
	if crit.Property != intersectProperty {
		return NotClaimed, nil
	}
	if !crit.Value.IsMap() {
		return NotClaimed, malformed(crit, "intersect expects a map of property to values")
	}

	for _, field := range crit.Value.Keys() {
		value, _ := crit.Value.Get(field)
		inner := crit.Rebase(crit.Alias, crit.Resource, field, value)

		values, ok := value.Scalars()
		if !ok {
			return NotClaimed, malformed(inner, "intersect[] expects a scalar or a list of scalars")
		}
		path, err := c.Resolve(inner, field)
		if err != nil {
			return NotClaimed, err
		}
		if !path.IsNested() {
			return NotClaimed, malformed(inner, fmt.Sprintf("intersect[] needs an association path, %q is a field of %s", field, crit.Resource.Name))
		}

		for _, v := range values {
			alias, column, err := c.Query.JoinPath(inner.Alias, path, query.InnerJoin, true)
			if err != nil {
				return NotClaimed, err
			}
			c.Query.Where(c.Query.Compare(alias, column, query.OpEqual, v))
		}
	}
	return Claimed, nil
}
