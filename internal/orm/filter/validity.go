package filter

import (
	"strings"

	"github.com/conduit-lang/criteria/internal/orm/query"
)

// ValidityRule filters on a validity window backed by two nullable
// timestamps, e.g. copyrightValid on documents:
//
//	true:  (since IS NULL OR since <= now) AND (until IS NULL OR until >= now)
//	false: since > now OR until < now
type ValidityRule struct {
	Property string
	Since    string
	Until    string
}

// CopyrightValid is the validity rule of documents
func CopyrightValid() *ValidityRule {
	return &ValidityRule{
		Property: "copyrightValid",
		Since:    "copyrightValidSince",
		Until:    "copyrightValidUntil",
	}
}

// Name returns the rule name
func (r *ValidityRule) Name() string { return r.Property }

// Subscriptions returns the rule priorities
func (r *ValidityRule) Subscriptions() map[Event]int {
	return map[Event]int{EventFilter: 30}
}

// Apply claims Property, optionally prefixed by an association path, when
// the value is boolean-coercible
func (r *ValidityRule) Apply(c *Compilation, _ Event, crit *Criterion) (Outcome, error) {
	var prefix string
	switch {
	case crit.Property == r.Property:
	case strings.HasSuffix(crit.Property, "."+r.Property):
		prefix = strings.TrimSuffix(crit.Property, r.Property)
	default:
		return NotClaimed, nil
	}

	valid, ok := crit.Value.AsBool()
	if !ok {
		return NotClaimed, nil
	}

	sinceAlias, sinceColumn, _, err := c.Join(crit, prefix+r.Since, query.InnerJoin, false)
	if err != nil {
		return NotClaimed, err
	}
	untilAlias, untilColumn, _, err := c.Join(crit, prefix+r.Until, query.InnerJoin, false)
	if err != nil {
		return NotClaimed, err
	}

	q := c.Query
	if valid {
		q.Where(query.And(
			query.Or(
				q.Compare(sinceAlias, sinceColumn, query.OpIsNull),
				q.Compare(sinceAlias, sinceColumn, query.OpLessThanOrEqual, c.Now),
			),
			query.Or(
				q.Compare(untilAlias, untilColumn, query.OpIsNull),
				q.Compare(untilAlias, untilColumn, query.OpGreaterThanOrEqual, c.Now),
			),
		))
	} else {
		q.Where(query.Or(
			q.Compare(sinceAlias, sinceColumn, query.OpGreaterThan, c.Now),
			q.Compare(untilAlias, untilColumn, query.OpLessThan, c.Now),
		))
	}
	return Claimed, nil
}
