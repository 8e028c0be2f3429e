package filter

import (
	"strings"

	"github.com/conduit-lang/criteria/internal/orm/criteria"
	"github.com/conduit-lang/criteria/internal/orm/query"
	"github.com/conduit-lang/criteria/internal/orm/schema"
)

// TagGroupRule compiles tagGroup = [[a, b], [c]] into "has a tag named a or
// b" AND "has a tag named c". Every group gets its own join chain.
type TagGroupRule struct {
	Property string
	// Path leads from the taggable resource to the tag name, e.g. nodesTags.tag.tagName
	Path string
	// Bridge is the association joined first on resources that are not
	// taggable themselves, e.g. node from a translated node source
	Bridge string
}

// TagGroups is the tag-group rule of nodes and node sources
func TagGroups() *TagGroupRule {
	return &TagGroupRule{
		Property: "tagGroup",
		Path:     "nodesTags.tag.tagName",
		Bridge:   "node",
	}
}

// Name returns the rule name
func (r *TagGroupRule) Name() string { return r.Property }

// Subscriptions returns the rule priorities
func (r *TagGroupRule) Subscriptions() map[Event]int {
	return map[Event]int{EventFilter: 50}
}

// Apply claims Property. Malformed group shapes fail the compilation rather
// than falling through to equality on a field named like the property. No
// groups at all is malformed; an empty group matches nothing.
func (r *TagGroupRule) Apply(c *Compilation, _ Event, crit *Criterion) (Outcome, error) {
	if crit.Property != r.Property {
		return NotClaimed, nil
	}
	groups, ok := criteria.TagGroups(crit.Value)
	if !ok {
		return NotClaimed, malformed(crit, "tag groups must be a string, a list of strings or a list of lists of strings")
	}
	if len(groups) == 0 {
		return NotClaimed, malformed(crit, "tag groups are empty")
	}

	alias, resource, err := r.taggable(c, crit)
	if err != nil {
		return NotClaimed, err
	}
	path, err := c.Resolver.Resolve(r.Path, resource)
	if err != nil {
		return NotClaimed, err
	}

	for _, group := range groups {
		if len(group) == 0 {
			c.Query.Where(query.Or())
			continue
		}
		tagAlias, column, err := c.Query.JoinPath(alias, path, query.InnerJoin, true)
		if err != nil {
			return NotClaimed, err
		}
		names := make([]any, len(group))
		for i, name := range group {
			names[i] = name
		}
		c.Query.Where(c.Query.Compare(tagAlias, column, query.OpIn, names))
	}
	return Claimed, nil
}

// taggable returns the alias tags are joined from: the criterion's own alias
// when its resource carries the tag association, else the bridge join
func (r *TagGroupRule) taggable(c *Compilation, crit *Criterion) (string, *schema.ResourceSchema, error) {
	first, _, _ := strings.Cut(r.Path, ".")
	if crit.Resource.HasRelationship(first) {
		return crit.Alias, crit.Resource, nil
	}
	if r.Bridge != "" && crit.Resource.HasRelationship(r.Bridge) {
		join, err := c.Query.EnsureJoin(crit.Alias, r.Bridge, query.InnerJoin, false)
		if err != nil {
			return "", nil, err
		}
		if join.Target.HasRelationship(first) {
			return join.Alias, join.Target, nil
		}
	}
	return "", nil, &schema.UnknownPropertyError{Resource: crit.Resource.Name, Path: crit.Property, Segment: crit.Property}
}
