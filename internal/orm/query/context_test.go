package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/criteria/internal/orm/schema"
	"github.com/conduit-lang/criteria/internal/testutil"
)

type fixture struct {
	registry *schema.Registry
	resolver *schema.Resolver
}

func newFixture(t *testing.T) *fixture {
	registry := testutil.Schemas(t)
	return &fixture{registry: registry, resolver: schema.NewResolver(registry)}
}

func (f *fixture) context(t *testing.T, resource string) *Context {
	root, err := f.registry.Lookup(resource)
	require.NoError(t, err)
	return NewContext(f.registry, root, "")
}

func (f *fixture) path(t *testing.T, ctx *Context, alias, raw string) *schema.PropertyPath {
	resource, ok := ctx.ResourceOf(alias)
	require.True(t, ok, "alias %s", alias)
	p, err := f.resolver.Resolve(raw, resource)
	require.NoError(t, err)
	return p
}

func TestEnsureJoinReusesExistingJoin(t *testing.T) {
	f := newFixture(t)
	ctx := f.context(t, "NodesSources")

	first, err := ctx.EnsureJoin("o", "node", InnerJoin, false)
	require.NoError(t, err)
	second, err := ctx.EnsureJoin("o", "node", InnerJoin, false)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, "node", first.Alias)
	assert.Len(t, ctx.Joins(), 1)

	target, ok := ctx.ResourceOf("node")
	require.True(t, ok)
	assert.Equal(t, "Node", target.Name)
}

func TestJoinPathIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := f.context(t, "NodesSources")
	path := f.path(t, ctx, "o", "node.nodeType.name")

	for i := 0; i < 3; i++ {
		alias, column, err := ctx.JoinPath("o", path, InnerJoin, false)
		require.NoError(t, err)
		assert.Equal(t, "nodeType", alias)
		assert.Equal(t, "name", column)
	}
	assert.Len(t, ctx.Joins(), 2)
}

func TestJoinPathDuplicatesFromFirstToManySegment(t *testing.T) {
	f := newFixture(t)
	ctx := f.context(t, "NodesSources")
	path := f.path(t, ctx, "o", "node.tags.tagName")

	first, _, err := ctx.JoinPath("o", path, InnerJoin, true)
	require.NoError(t, err)
	second, column, err := ctx.JoinPath("o", path, InnerJoin, true)
	require.NoError(t, err)

	assert.Equal(t, "tags_1", first)
	assert.Equal(t, "tags_2", second)
	assert.Equal(t, "tag_name", column)

	joins := ctx.Joins()
	require.Len(t, joins, 3)
	assert.Equal(t, "node", joins[0].Alias, "the to-one prefix is shared")
	assert.False(t, joins[0].Duplicate)
	assert.True(t, joins[1].Duplicate)
	assert.True(t, joins[2].Duplicate)
}

func TestJoinPathWithoutToManyDuplicatesLastSegment(t *testing.T) {
	f := newFixture(t)
	ctx := f.context(t, "NodesSources")
	path := f.path(t, ctx, "o", "node.nodeType.name")

	first, _, err := ctx.JoinPath("o", path, InnerJoin, true)
	require.NoError(t, err)
	second, _, err := ctx.JoinPath("o", path, InnerJoin, true)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Len(t, ctx.Joins(), 3)
	assert.Len(t, ctx.Compiled().JoinsTo("node"), 1)
	assert.Len(t, ctx.Compiled().JoinsTo("nodeType"), 2)
}

func TestDuplicateJoinsAreNotReused(t *testing.T) {
	f := newFixture(t)
	ctx := f.context(t, "Node")

	dup, err := ctx.EnsureJoin("o", "tags", InnerJoin, true)
	require.NoError(t, err)
	assert.Equal(t, "tags_1", dup.Alias)

	plain, err := ctx.EnsureJoin("o", "tags", InnerJoin, false)
	require.NoError(t, err)
	assert.NotSame(t, dup, plain)
	assert.Equal(t, "tags", plain.Alias)

	again, err := ctx.EnsureJoin("o", "tags", InnerJoin, false)
	require.NoError(t, err)
	assert.Same(t, plain, again)
}

func TestAliasCollisionGetsSuffix(t *testing.T) {
	f := newFixture(t)
	ctx := f.context(t, "Node")

	parent, err := ctx.EnsureJoin("o", "parent", InnerJoin, false)
	require.NoError(t, err)
	grandparent, err := ctx.EnsureJoin(parent.Alias, "parent", InnerJoin, false)
	require.NoError(t, err)

	assert.Equal(t, "parent", parent.Alias)
	assert.Equal(t, "parent_1", grandparent.Alias)
}

func TestWholeAssociationBelongsToComparesForeignKey(t *testing.T) {
	f := newFixture(t)
	ctx := f.context(t, "NodesSources")

	alias, column, err := ctx.JoinPath("o", f.path(t, ctx, "o", "node.parent"), InnerJoin, false)
	require.NoError(t, err)
	assert.Equal(t, "node", alias)
	assert.Equal(t, "parent_node_id", column)
	assert.Len(t, ctx.Joins(), 1)

	alias, column, err = ctx.JoinPath("o", f.path(t, ctx, "o", "node.tags"), InnerJoin, false)
	require.NoError(t, err)
	assert.Equal(t, "tags", alias)
	assert.Equal(t, "id", column)
}

func TestEnsureJoinErrors(t *testing.T) {
	f := newFixture(t)
	ctx := f.context(t, "NodesSources")

	_, err := ctx.EnsureJoin("missing", "node", InnerJoin, false)
	assert.ErrorIs(t, err, ErrUnknownAlias)

	_, err = ctx.EnsureJoin("o", "tags", InnerJoin, false)
	assert.ErrorIs(t, err, schema.ErrUnknownProperty)
}

func TestJoinPathRejectsForeignRoot(t *testing.T) {
	f := newFixture(t)
	ctx := f.context(t, "NodesSources")
	node, err := f.registry.Lookup("Node")
	require.NoError(t, err)
	path, err := f.resolver.Resolve("nodeName", node)
	require.NoError(t, err)

	_, _, err = ctx.JoinPath("o", path, InnerJoin, false)
	assert.Error(t, err)
}

func TestAmbiguousLookup(t *testing.T) {
	f := newFixture(t)
	ctx := f.context(t, "NodesSources")

	join, err := ctx.EnsureJoin("o", "node", InnerJoin, false)
	require.NoError(t, err)
	clone := *join
	clone.Alias = "node_9"
	ctx.joins = append(ctx.joins, &clone)

	_, err = ctx.EnsureJoin("o", "node", InnerJoin, false)
	require.Error(t, err)
	assert.True(t, IsAmbiguousJoin(err))

	var aje *AmbiguousJoinError
	require.ErrorAs(t, err, &aje)
	assert.Equal(t, 2, aje.Count)
	assert.Equal(t, "node", aje.Association)
}

func TestNewParamNames(t *testing.T) {
	f := newFixture(t)
	ctx := f.context(t, "NodesSources")

	a := ctx.NewParam("o.node_name", "home")
	b := ctx.NewParam("o.node_name", "about")
	c := ctx.NewParam("tags_1.tag_name", "news")
	d := ctx.NewParam("", 1)

	assert.Equal(t, "o_node_name_1", a)
	assert.Equal(t, "o_node_name_2", b)
	assert.Equal(t, "tags_1_tag_name_3", c)
	assert.Equal(t, "p_4", d)

	v, ok := ctx.Param(b)
	require.True(t, ok)
	assert.Equal(t, "about", v)
}

func TestCompareBindsOperatorArity(t *testing.T) {
	f := newFixture(t)
	ctx := f.context(t, "NodesSources")

	isNull := ctx.Compare("o", "title", OpIsNull)
	between := ctx.Compare("o", "published_at", OpBetween, 1, 2)
	in := ctx.Compare("o", "title", OpIn, []any{"a", "b"})

	assert.Empty(t, isNull.Params)
	assert.Len(t, between.Params, 2)
	assert.Len(t, in.Params, 1)
	assert.Equal(t, "o.title IS NULL", isNull.String())
	assert.Equal(t, "o.published_at BETWEEN :o_published_at_1 AND :o_published_at_2", between.String())
	assert.Equal(t, "o.title IN (:o_title_3)", in.String())
}

func TestPredicateGroupString(t *testing.T) {
	f := newFixture(t)
	ctx := f.context(t, "NodesSources")

	assert.Equal(t, "FALSE", Or().String())
	assert.Equal(t, "TRUE", And().String())

	g := Or(ctx.Compare("o", "discr", OpEqual, "page"), And(ctx.Compare("o", "title", OpNotEqual, "x")))
	assert.Equal(t, "(o.discr = :o_discr_1 OR (o.title != :o_title_2))", g.String())
}
