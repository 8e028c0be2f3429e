// Package filter compiles criteria into a query.Context through a
// priority-ordered chain of rules.
//
// Each top-level criteria key is dispatched through EventRewrite, then, if
// no rule claimed it, through EventFilter, then to the default equality
// rule. The first rule that claims a criterion stops the dispatch: no later
// rule, default included, sees it.
package filter

import (
	"sort"

	"github.com/conduit-lang/criteria/internal/orm/criteria"
	"github.com/conduit-lang/criteria/internal/orm/schema"
)

// Event identifies a compilation phase
type Event int

const (
	// EventRewrite runs first and may rewrite prefixed paths into joins
	EventRewrite Event = iota
	// EventFilter runs on whatever the rewrite phase left unclaimed
	EventFilter
)

// String returns the string representation of the event
func (e Event) String() string {
	switch e {
	case EventRewrite:
		return "rewrite"
	case EventFilter:
		return "filter"
	default:
		return "unknown"
	}
}

// Outcome is the result of applying a rule to a criterion
type Outcome int

const (
	NotClaimed Outcome = iota
	Claimed
)

// String returns the string representation of the outcome
func (o Outcome) String() string {
	if o == Claimed {
		return "claimed"
	}
	return "not_claimed"
}

// Criterion is one property/value pair being compiled. Property is relative
// to Alias, whose resource is Resource.
type Criterion struct {
	// Key is the top-level criteria key the criterion came from
	Key      string
	Property string
	Value    criteria.Value

	Alias    string
	Resource *schema.ResourceSchema
}

// Rebase returns a criterion for property on another alias
func (c *Criterion) Rebase(alias string, resource *schema.ResourceSchema, property string, value criteria.Value) *Criterion {
	return &Criterion{
		Key:      c.Key,
		Property: property,
		Value:    value,
		Alias:    alias,
		Resource: resource,
	}
}

// Rule inspects a criterion for one event and either claims it, adding
// joins and predicates to the compilation, or leaves it alone.
//
// Rules are shared by concurrent compilations and must not keep per-call
// state: everything mutable lives in the Compilation.
type Rule interface {
	Name() string
	// Subscriptions returns the priority of the rule per event; higher runs first
	Subscriptions() map[Event]int
	Apply(c *Compilation, ev Event, crit *Criterion) (Outcome, error)
}

type entry struct {
	rule     Rule
	priority int
}

// Chain holds rules ordered by priority per event. It is immutable once built.
type Chain struct {
	byEvent map[Event][]entry
}

// NewChain orders rules per event, highest priority first. Ties keep
// registration order.
func NewChain(rules ...Rule) *Chain {
	ch := &Chain{byEvent: make(map[Event][]entry)}
	for _, r := range rules {
		for ev, priority := range r.Subscriptions() {
			ch.byEvent[ev] = append(ch.byEvent[ev], entry{rule: r, priority: priority})
		}
	}
	for ev := range ch.byEvent {
		entries := ch.byEvent[ev]
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].priority > entries[j].priority
		})
	}
	return ch
}

// Rules returns the rules subscribed to ev in dispatch order
func (ch *Chain) Rules(ev Event) []Rule {
	entries := ch.byEvent[ev]
	out := make([]Rule, len(entries))
	for i, e := range entries {
		out[i] = e.rule
	}
	return out
}

// Dispatch applies the rules subscribed to ev until one claims crit. It
// returns the claiming rule, or nil.
func (ch *Chain) Dispatch(c *Compilation, ev Event, crit *Criterion) (Rule, error) {
	for _, e := range ch.byEvent[ev] {
		outcome, err := e.rule.Apply(c, ev, crit)
		if err != nil {
			return e.rule, err
		}
		if outcome == Claimed {
			return e.rule, nil
		}
	}
	return nil, nil
}
