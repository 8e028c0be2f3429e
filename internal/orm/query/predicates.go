package query

import (
	"fmt"
	"strings"
)

// Operator represents a comparison operator
type Operator int

const (
	OpEqual Operator = iota
	OpNotEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpLessThan
	OpLessThanOrEqual
	OpIn
	OpNotIn
	OpIsNull
	OpIsNotNull
	OpBetween
)

// String returns the string representation of the operator
func (o Operator) String() string {
	switch o {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "!="
	case OpGreaterThan:
		return ">"
	case OpGreaterThanOrEqual:
		return ">="
	case OpLessThan:
		return "<"
	case OpLessThanOrEqual:
		return "<="
	case OpIn:
		return "IN"
	case OpNotIn:
		return "NOT IN"
	case OpIsNull:
		return "IS NULL"
	case OpIsNotNull:
		return "IS NOT NULL"
	case OpBetween:
		return "BETWEEN"
	default:
		return "UNKNOWN"
	}
}

// Arity returns the number of parameters the operator binds
func (o Operator) Arity() int {
	switch o {
	case OpIsNull, OpIsNotNull:
		return 0
	case OpBetween:
		return 2
	default:
		return 1
	}
}

// Predicate is a node of the WHERE tree: a *Condition or a *PredicateGroup
type Predicate interface {
	String() string
	predicate()
}

// Condition compares one column of a joined alias against named parameters.
// IN and NOT IN bind a single parameter holding the list.
type Condition struct {
	Alias    string
	Column   string
	Operator Operator
	Params   []string
}

func (*Condition) predicate() {}

// Field returns the qualified column, e.g. "node.visible"
func (c *Condition) Field() string {
	return c.Alias + "." + c.Column
}

// String renders the condition with named placeholders
func (c *Condition) String() string {
	switch c.Operator {
	case OpIsNull, OpIsNotNull:
		return fmt.Sprintf("%s %s", c.Field(), c.Operator)
	case OpBetween:
		return fmt.Sprintf("%s BETWEEN :%s AND :%s", c.Field(), param(c.Params, 0), param(c.Params, 1))
	case OpIn, OpNotIn:
		return fmt.Sprintf("%s %s (:%s)", c.Field(), c.Operator, param(c.Params, 0))
	default:
		return fmt.Sprintf("%s %s :%s", c.Field(), c.Operator, param(c.Params, 0))
	}
}

func param(params []string, i int) string {
	if i < len(params) {
		return params[i]
	}
	return "?"
}

// PredicateGroup represents a group of predicates combined with AND/OR.
// An empty OR group is always false and an empty AND group always true.
type PredicateGroup struct {
	Predicates []Predicate
	Or         bool
}

func (*PredicateGroup) predicate() {}

// NewPredicateGroup creates a new predicate group
func NewPredicateGroup(or bool, predicates ...Predicate) *PredicateGroup {
	return &PredicateGroup{
		Predicates: append(make([]Predicate, 0, len(predicates)), predicates...),
		Or:         or,
	}
}

// Add appends a predicate to the group
func (pg *PredicateGroup) Add(p Predicate) {
	pg.Predicates = append(pg.Predicates, p)
}

// String renders the group
func (pg *PredicateGroup) String() string {
	if len(pg.Predicates) == 0 {
		if pg.Or {
			return "FALSE"
		}
		return "TRUE"
	}

	parts := make([]string, len(pg.Predicates))
	for i, p := range pg.Predicates {
		parts[i] = p.String()
	}

	connector := " AND "
	if pg.Or {
		connector = " OR "
	}
	return "(" + strings.Join(parts, connector) + ")"
}

// And builds an AND group
func And(predicates ...Predicate) *PredicateGroup {
	return NewPredicateGroup(false, predicates...)
}

// Or builds an OR group
func Or(predicates ...Predicate) *PredicateGroup {
	return NewPredicateGroup(true, predicates...)
}
