package filter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/criteria/internal/orm/criteria"
	"github.com/conduit-lang/criteria/internal/orm/query"
	"github.com/conduit-lang/criteria/internal/testutil"
)

var defaultNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestCompiler(t *testing.T, opts ...Option) *Compiler {
	t.Helper()
	base := []Option{WithClock(testutil.FixedClock(defaultNow))}
	return NewCompiler(testutil.Schemas(t), testutil.ContentTypes(t), append(base, opts...)...)
}

func crit(t *testing.T, m map[string]any) criteria.Criteria {
	t.Helper()
	c, err := criteria.FromMap(m)
	require.NoError(t, err)
	return c
}

func compile(t *testing.T, c *Compiler, resource string, m map[string]any) *query.CompiledQuery {
	t.Helper()
	q, err := c.Compile(context.Background(), resource, crit(t, m))
	require.NoError(t, err)
	return q
}

func compileErr(t *testing.T, c *Compiler, resource string, m map[string]any) error {
	t.Helper()
	q, err := c.Compile(context.Background(), resource, crit(t, m))
	require.Error(t, err)
	require.Nil(t, q)
	return err
}

func predicateStrings(q *query.CompiledQuery) []string {
	out := make([]string, len(q.Predicates))
	for i, p := range q.Predicates {
		out[i] = p.String()
	}
	return out
}

func aliases(joins []*query.Join) []string {
	out := make([]string, len(joins))
	for i, j := range joins {
		out[i] = j.Alias
	}
	return out
}
