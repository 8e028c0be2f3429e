package query

import (
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"

	"github.com/conduit-lang/criteria/internal/orm/schema"
)

// FlavorFor maps a configured dialect name to a SQL flavor
func FlavorFor(dialect string) (sqlbuilder.Flavor, error) {
	switch strings.ToLower(dialect) {
	case "postgres", "postgresql", "pgx":
		return sqlbuilder.PostgreSQL, nil
	case "sqlite", "sqlite3":
		return sqlbuilder.SQLite, nil
	case "mysql":
		return sqlbuilder.MySQL, nil
	default:
		return sqlbuilder.DefaultFlavor, fmt.Errorf("unsupported dialect: %s", dialect)
	}
}

// Render builds a SELECT of the distinct root rows matching q
func Render(q *CompiledQuery, flavor sqlbuilder.Flavor) (string, []any, error) {
	sb := flavor.NewSelectBuilder()
	sb.Select(q.RootAlias + ".*").Distinct()
	if err := build(sb, q); err != nil {
		return "", nil, err
	}
	sql, args := sb.Build()
	return sql, args, nil
}

// RenderCount builds a COUNT of the distinct root rows matching q
func RenderCount(q *CompiledQuery, flavor sqlbuilder.Flavor) (string, []any, error) {
	sb := flavor.NewSelectBuilder()
	sb.Select(fmt.Sprintf("COUNT(DISTINCT %s.%s)", q.RootAlias, q.Resource.PrimaryKeyColumn()))
	if err := build(sb, q); err != nil {
		return "", nil, err
	}
	sql, args := sb.Build()
	return sql, args, nil
}

func build(sb *sqlbuilder.SelectBuilder, q *CompiledQuery) error {
	sb.From(sb.As(q.Resource.TableName, q.RootAlias))

	for _, j := range q.Joins {
		if err := addJoin(sb, j); err != nil {
			return err
		}
	}

	exprs := make([]string, 0, len(q.Predicates))
	for _, p := range q.Predicates {
		expr, err := renderPredicate(sb, p, q.Parameters)
		if err != nil {
			return err
		}
		exprs = append(exprs, expr)
	}
	if len(exprs) > 0 {
		sb.Where(exprs...)
	}
	return nil
}

// addJoin emits the SQL joins for one association. has_many_through goes
// through its join table under the alias <alias>_link.
func addJoin(sb *sqlbuilder.SelectBuilder, j *Join) error {
	option := sqlbuilder.InnerJoin
	if j.Type == LeftJoin {
		option = sqlbuilder.LeftJoin
	}

	rel := j.Relationship
	ownerPK := j.OwnerAlias + "." + j.Owner.PrimaryKeyColumn()
	targetPK := j.Alias + "." + j.Target.PrimaryKeyColumn()

	switch rel.Type {
	case schema.RelationshipBelongsTo:
		sb.JoinWithOption(option, sb.As(j.Target.TableName, j.Alias),
			fmt.Sprintf("%s = %s.%s", targetPK, j.OwnerAlias, rel.ForeignKey))

	case schema.RelationshipHasOne, schema.RelationshipHasMany:
		sb.JoinWithOption(option, sb.As(j.Target.TableName, j.Alias),
			fmt.Sprintf("%s.%s = %s", j.Alias, rel.ForeignKey, ownerPK))

	case schema.RelationshipHasManyThrough:
		link := j.Alias + "_link"
		sb.JoinWithOption(option, sb.As(rel.JoinTable, link),
			fmt.Sprintf("%s.%s = %s", link, rel.ForeignKey, ownerPK))
		sb.JoinWithOption(option, sb.As(j.Target.TableName, j.Alias),
			fmt.Sprintf("%s = %s.%s", targetPK, link, rel.AssociationKey))

	default:
		return fmt.Errorf("cannot join %s.%s: unsupported relationship type %s", j.Owner.Name, j.Association, rel.Type)
	}
	return nil
}

func renderPredicate(sb *sqlbuilder.SelectBuilder, p Predicate, params map[string]any) (string, error) {
	switch t := p.(type) {
	case *Condition:
		return renderCondition(sb, t, params)

	case *PredicateGroup:
		if len(t.Predicates) == 0 {
			if t.Or {
				return "1 = 0", nil
			}
			return "1 = 1", nil
		}
		children := make([]string, 0, len(t.Predicates))
		for _, child := range t.Predicates {
			expr, err := renderPredicate(sb, child, params)
			if err != nil {
				return "", err
			}
			children = append(children, expr)
		}
		if t.Or {
			return sb.Or(children...), nil
		}
		return sb.And(children...), nil

	default:
		return "", fmt.Errorf("unsupported predicate %T", p)
	}
}

func renderCondition(sb *sqlbuilder.SelectBuilder, c *Condition, params map[string]any) (string, error) {
	values := make([]any, 0, len(c.Params))
	for _, name := range c.Params {
		v, ok := params[name]
		if !ok {
			return "", fmt.Errorf("condition %s references unbound parameter %s", c.Field(), name)
		}
		values = append(values, v)
	}
	if len(values) < c.Operator.Arity() {
		return "", fmt.Errorf("operator %s on %s needs %d parameters, got %d", c.Operator, c.Field(), c.Operator.Arity(), len(values))
	}

	field := c.Field()
	switch c.Operator {
	case OpEqual:
		return sb.Equal(field, values[0]), nil
	case OpNotEqual:
		return sb.NotEqual(field, values[0]), nil
	case OpGreaterThan:
		return sb.GreaterThan(field, values[0]), nil
	case OpGreaterThanOrEqual:
		return sb.GreaterEqualThan(field, values[0]), nil
	case OpLessThan:
		return sb.LessThan(field, values[0]), nil
	case OpLessThanOrEqual:
		return sb.LessEqualThan(field, values[0]), nil
	case OpIn:
		list := asList(values[0])
		if len(list) == 0 {
			// IN with an empty list never matches
			return "1 = 0", nil
		}
		return sb.In(field, list...), nil
	case OpNotIn:
		list := asList(values[0])
		if len(list) == 0 {
			return "1 = 1", nil
		}
		return sb.NotIn(field, list...), nil
	case OpIsNull:
		return sb.IsNull(field), nil
	case OpIsNotNull:
		return sb.IsNotNull(field), nil
	case OpBetween:
		return sb.Between(field, values[0], values[1]), nil
	default:
		return "", fmt.Errorf("unsupported operator: %v", c.Operator)
	}
}

func asList(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case nil:
		return nil
	default:
		return []any{t}
	}
}
