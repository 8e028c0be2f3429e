package query

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/conduit-lang/criteria/internal/orm/schema"
)

// CompiledQuery is the output of a compilation: joins, ANDed top-level
// predicates and the values of their named parameters
type CompiledQuery struct {
	Resource   *schema.ResourceSchema
	RootAlias  string
	Joins      []*Join
	Predicates []Predicate
	Parameters map[string]any

	paramOrder []string
}

// ParameterNames returns the parameter names in binding order
func (q *CompiledQuery) ParameterNames() []string {
	if len(q.paramOrder) == len(q.Parameters) {
		out := make([]string, len(q.paramOrder))
		copy(out, q.paramOrder)
		return out
	}
	names := make([]string, 0, len(q.Parameters))
	for name := range q.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// JoinsTo returns the joins following association from any owner
func (q *CompiledQuery) JoinsTo(association string) []*Join {
	var out []*Join
	for _, j := range q.Joins {
		if j.Association == association {
			out = append(out, j)
		}
	}
	return out
}

// Conditions returns every condition of the predicate tree, depth first
func (q *CompiledQuery) Conditions() []*Condition {
	var out []*Condition
	var walk func(p Predicate)
	walk = func(p Predicate) {
		switch t := p.(type) {
		case *Condition:
			out = append(out, t)
		case *PredicateGroup:
			for _, child := range t.Predicates {
				walk(child)
			}
		}
	}
	for _, p := range q.Predicates {
		walk(p)
	}
	return out
}

// String renders a readable, deterministic description of the query
func (q *CompiledQuery) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "FROM %s AS %s\n", q.Resource.Name, q.RootAlias)
	for _, j := range q.Joins {
		b.WriteString(j.String())
		if j.Duplicate {
			b.WriteString(" (duplicate)")
		}
		b.WriteString("\n")
	}

	for i, p := range q.Predicates {
		if i == 0 {
			b.WriteString("WHERE ")
		} else {
			b.WriteString("  AND ")
		}
		b.WriteString(p.String())
		b.WriteString("\n")
	}

	for _, name := range q.ParameterNames() {
		fmt.Fprintf(&b, ":%s = %s\n", name, formatParam(q.Parameters[name]))
	}
	return b.String()
}

func formatParam(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case string:
		return fmt.Sprintf("%q", t)
	case time.Time:
		return t.Format(time.RFC3339)
	case []any:
		parts := make([]string, len(t))
		for i, item := range t {
			parts[i] = formatParam(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprint(t)
	}
}
