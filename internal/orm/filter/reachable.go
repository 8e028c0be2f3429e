package filter

import (
	"fmt"

	"github.com/conduit-lang/criteria/internal/orm/contenttype"
	"github.com/conduit-lang/criteria/internal/orm/criteria"
)

// ReachableRule filters a polymorphic resource on the reachability of its
// content type: reachable = true keeps rows whose discriminator belongs to a
// reachable content type.
type ReachableRule struct{}

// Name returns the rule name
func (ReachableRule) Name() string { return "reachable" }

// Subscriptions returns the rule priorities
func (ReachableRule) Subscriptions() map[Event]int {
	return map[Event]int{EventRewrite: 50}
}

// Apply claims reachable (and the deprecated node.nodeType.reachable) when
// the value is boolean-coercible and the resource has a discriminator
func (ReachableRule) Apply(c *Compilation, _ Event, crit *Criterion) (Outcome, error) {
	if crit.Property != "reachable" && crit.Property != "node.nodeType.reachable" {
		return NotClaimed, nil
	}
	if !crit.Resource.IsPolymorphic() {
		return NotClaimed, nil
	}
	reachable, ok := crit.Value.AsBool()
	if !ok {
		return NotClaimed, nil
	}

	c.emitDiscriminator(crit, c.Types.SubtypesMatching(contenttype.Reachable(reachable)))
	return Claimed, nil
}

// NodeTypeRule filters a polymorphic resource on content type names:
// nodeType = "Page" or ["Page", "Article"]
type NodeTypeRule struct{}

// Name returns the rule name
func (NodeTypeRule) Name() string { return "node_type" }

// Subscriptions returns the rule priorities
func (NodeTypeRule) Subscriptions() map[Event]int {
	return map[Event]int{EventFilter: 40}
}

// Apply claims nodeType on polymorphic resources when the value names content types
func (NodeTypeRule) Apply(c *Compilation, _ Event, crit *Criterion) (Outcome, error) {
	if crit.Property != "nodeType" || !crit.Resource.IsPolymorphic() {
		return NotClaimed, nil
	}
	names, ok := typeNames(crit.Value)
	if !ok {
		return NotClaimed, nil
	}

	shapes := make([]contenttype.RowShape, 0, len(names))
	for _, name := range names {
		shape, err := c.Types.RowShapeFor(name)
		if err != nil {
			return NotClaimed, &MalformedValueError{
				Property: crit.Property,
				Value:    crit.Value,
				Reason:   fmt.Sprintf("content type %q is not registered", name),
				Err:      err,
			}
		}
		shapes = append(shapes, shape)
	}

	c.emitDiscriminator(crit, shapes)
	return Claimed, nil
}

func typeNames(v criteria.Value) ([]string, bool) {
	scalars, ok := v.Scalars()
	if !ok {
		return nil, false
	}
	names := make([]string, 0, len(scalars))
	for _, s := range scalars {
		name, ok := s.(string)
		if !ok {
			return nil, false
		}
		names = append(names, name)
	}
	return names, true
}
