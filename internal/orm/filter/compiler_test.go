package filter

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/conduit-lang/criteria/internal/orm/contenttype"
	"github.com/conduit-lang/criteria/internal/orm/criteria"
	"github.com/conduit-lang/criteria/internal/orm/query"
	"github.com/conduit-lang/criteria/internal/orm/schema"
	"github.com/conduit-lang/criteria/internal/testutil"
)

func TestDefaultRule(t *testing.T) {
	c := newTestCompiler(t)

	tests := []struct {
		name       string
		resource   string
		criteria   map[string]any
		joins      []string
		predicates []string
		params     map[string]any
	}{
		{
			name:       "scalar equality",
			resource:   "NodesSources",
			criteria:   map[string]any{"title": "Home"},
			joins:      []string{},
			predicates: []string{"o.title = :o_title_1"},
			params:     map[string]any{"o_title_1": "Home"},
		},
		{
			name:       "null",
			resource:   "NodesSources",
			criteria:   map[string]any{"title": nil},
			joins:      []string{},
			predicates: []string{"o.title IS NULL"},
			params:     map[string]any{},
		},
		{
			name:       "list",
			resource:   "Node",
			criteria:   map[string]any{"nodeName": []string{"home", "about"}},
			joins:      []string{},
			predicates: []string{"o.node_name IN (:o_node_name_1)"},
			params:     map[string]any{"o_node_name_1": []any{"home", "about"}},
		},
		{
			name:       "whole belongs_to compares the foreign key",
			resource:   "NodesSources",
			criteria:   map[string]any{"node": 5},
			joins:      []string{},
			predicates: []string{"o.node_id = :o_node_id_1"},
			params:     map[string]any{"o_node_id_1": 5},
		},
		{
			name:       "nested path",
			resource:   "Node",
			criteria:   map[string]any{"parent.nodeName": "home"},
			joins:      []string{"parent"},
			predicates: []string{"parent.node_name = :parent_node_name_1"},
			params:     map[string]any{"parent_node_name_1": "home"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := compile(t, c, tt.resource, tt.criteria)
			assert.Equal(t, tt.joins, aliases(q.Joins))
			assert.Equal(t, tt.predicates, predicateStrings(q))
			assert.Equal(t, tt.params, q.Parameters)
		})
	}
}

func TestPrefixRewriting(t *testing.T) {
	c := newTestCompiler(t)

	tests := []struct {
		name       string
		resource   string
		criteria   map[string]any
		joins      []string
		predicates []string
	}{
		{
			name:       "node",
			resource:   "NodesSources",
			criteria:   map[string]any{"node.visible": true},
			joins:      []string{"node"},
			predicates: []string{"node.visible = :node_visible_1"},
		},
		{
			name:       "node foreign key",
			resource:   "NodesSources",
			criteria:   map[string]any{"node.parent": 42},
			joins:      []string{"node"},
			predicates: []string{"node.parent_node_id = :node_parent_node_id_1"},
		},
		{
			name:       "translation",
			resource:   "NodesSources",
			criteria:   map[string]any{"translation.locale": "fr"},
			joins:      []string{"translation"},
			predicates: []string{"translation.locale = :translation_locale_1"},
		},
		{
			name:       "node.nodeType",
			resource:   "NodesSources",
			criteria:   map[string]any{"node.nodeType.name": "page"},
			joins:      []string{"node", "nodeType"},
			predicates: []string{"nodeType.name = :nodetype_name_1"},
		},
		{
			name:       "nodeType from node",
			resource:   "Node",
			criteria:   map[string]any{"nodeType.publishable": true},
			joins:      []string{"nodeType"},
			predicates: []string{"nodeType.publishable = :nodetype_publishable_1"},
		},
		{
			name:       "aNodes reaches the related node",
			resource:   "Node",
			criteria:   map[string]any{"aNodes.nodeName": "home"},
			joins:      []string{"aNodes", "nodeA"},
			predicates: []string{"nodeA.node_name = :nodea_node_name_1"},
		},
		{
			name:       "aNodes relation field stays on the relation",
			resource:   "Node",
			criteria:   map[string]any{"aNodes.fieldName": "related"},
			joins:      []string{"aNodes"},
			predicates: []string{"aNodes.field_name = :anodes_field_name_1"},
		},
		{
			name:       "bNodes",
			resource:   "Node",
			criteria:   map[string]any{"bNodes.visible": false},
			joins:      []string{"bNodes", "nodeB"},
			predicates: []string{"nodeB.visible = :nodeb_visible_1"},
		},
		{
			name:       "prefix then bracket operator",
			resource:   "NodesSources",
			criteria:   map[string]any{"node.not[nodeName]": "home"},
			joins:      []string{"node"},
			predicates: []string{"node.node_name != :node_node_name_1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := compile(t, c, tt.resource, tt.criteria)
			assert.Equal(t, tt.joins, aliases(q.Joins))
			assert.Equal(t, tt.predicates, predicateStrings(q))
		})
	}
}

func TestCompileContentTypes(t *testing.T) {
	c := newTestCompiler(t)

	tests := []struct {
		name       string
		resource   string
		criteria   map[string]any
		joins      []string
		predicates []string
		params     map[string]any
	}{
		{
			name:       "content type field",
			resource:   "Article",
			criteria:   map[string]any{"readingTime": 5},
			joins:      []string{"Article"},
			predicates: []string{"o.discr = :o_discr_1", "Article.reading_time = :article_reading_time_2"},
			params:     map[string]any{"o_discr_1": "article", "article_reading_time_2": 5},
		},
		{
			name:       "content type alone",
			resource:   "Menu",
			criteria:   nil,
			joins:      []string{},
			predicates: []string{"o.discr = :o_discr_1"},
			params:     map[string]any{"o_discr_1": "menu"},
		},
		{
			name:       "inherited association",
			resource:   "Offer",
			criteria:   map[string]any{"price": 5, "node.visible": true},
			joins:      []string{"node", "Offer"},
			predicates: []string{"o.discr = :o_discr_1", "node.visible = :node_visible_2", "Offer.price = :offer_price_3"},
			params:     map[string]any{"o_discr_1": "offer", "node_visible_2": true, "offer_price_3": 5},
		},
		{
			name:       "parent filtered by a content type field",
			resource:   "NodesSources",
			criteria:   map[string]any{"readingTime": 5},
			joins:      []string{"Article"},
			predicates: []string{"Article.reading_time = :article_reading_time_1"},
			params:     map[string]any{"article_reading_time_1": 5},
		},
		{
			name:       "parent with an explicit content type",
			resource:   "NodesSources",
			criteria:   map[string]any{"Page.content": "x"},
			joins:      []string{"Page"},
			predicates: []string{"Page.content = :page_content_1"},
			params:     map[string]any{"page_content_1": "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := compile(t, c, tt.resource, tt.criteria)
			assert.Equal(t, tt.resource, q.Resource.Name)
			assert.Equal(t, tt.joins, aliases(q.Joins))
			assert.Equal(t, tt.predicates, predicateStrings(q))
			assert.Equal(t, tt.params, q.Parameters)
		})
	}

	t.Run("rendered", func(t *testing.T) {
		q := compile(t, c, "Article", map[string]any{"readingTime": 5})
		flavor, err := query.FlavorFor("sqlite")
		require.NoError(t, err)

		sql, args, err := query.Render(q, flavor)
		require.NoError(t, err)
		assert.Equal(t, "SELECT DISTINCT o.* FROM nodes_sources AS o "+
			"INNER JOIN ns_article AS Article ON Article.id = o.id "+
			"WHERE o.discr = ? AND Article.reading_time = ?", sql)
		assert.Equal(t, []any{"article", 5}, args)
	})

	t.Run("field of two content types", func(t *testing.T) {
		err := compileErr(t, c, "NodesSources", map[string]any{"content": "x"})
		assert.ErrorIs(t, err, ErrAmbiguousProperty)
		assert.True(t, IsClientError(err))
	})

	t.Run("field of another content type", func(t *testing.T) {
		err := compileErr(t, c, "Article", map[string]any{"price": 5})
		assert.ErrorIs(t, err, ErrUnknownProperty)
	})
}

func TestCompileFollowsContentTypeReloads(t *testing.T) {
	types := testutil.ContentTypes(t)
	c := NewCompiler(testutil.Schemas(t), types, WithClock(testutil.FixedClock(defaultNow)))

	compile(t, c, "Article", map[string]any{"readingTime": 5})

	snap, err := contenttype.NewSnapshot([]contenttype.RowShape{{
		Name: "Event", Discriminator: "event", Table: "ns_event",
		Fields: []contenttype.FieldSpec{{Name: "startsAt", Date: true}},
	}})
	require.NoError(t, err)
	types.Swap(snap)

	err = compileErr(t, c, "Article", nil)
	assert.ErrorIs(t, err, ErrUnknownResource)

	q := compile(t, c, "NodesSources", map[string]any{"startsAt": "2025-01-01"})
	assert.Equal(t, []string{"Event.starts_at = :event_starts_at_1"}, predicateStrings(q))

	resources, err := c.Resources()
	require.NoError(t, err)
	assert.True(t, resources.Exists("EventFields"))
	assert.False(t, resources.Exists("ArticleFields"))
}

func TestCompileRejectsContentTypesOutsideTheSchema(t *testing.T) {
	snap, err := contenttype.NewSnapshot([]contenttype.RowShape{{Name: "Page", Discriminator: "page", Resource: "Ghost"}})
	require.NoError(t, err)
	c := NewCompiler(testutil.Schemas(t), contenttype.NewRegistry(snap, nil))

	err = compileErr(t, c, "NodesSources", map[string]any{"title": "x"})
	assert.ErrorIs(t, err, ErrUnknownResource)
	assert.Contains(t, err.Error(), "failed to derive content-type resources")
	assert.False(t, IsClientError(err))
}

func TestJoinsAreReused(t *testing.T) {
	c := newTestCompiler(t)

	q := compile(t, c, "NodesSources", map[string]any{
		"node.visible":       true,
		"node.nodeName":      "home",
		"node.nodeType.name": "page",
		"not[node.locked]":   true,
	})

	assert.Equal(t, []string{"node", "nodeType"}, aliases(q.Joins))
	assert.Len(t, q.JoinsTo("node"), 1)
	assert.Equal(t, []string{
		"node.node_name = :node_node_name_1",
		"nodeType.name = :nodetype_name_2",
		"node.visible = :node_visible_3",
		"node.locked != :node_locked_4",
	}, predicateStrings(q))
}

func TestCompileErrors(t *testing.T) {
	c := newTestCompiler(t)

	tests := []struct {
		name     string
		resource string
		criteria map[string]any
		target   error
	}{
		{"unknown property", "NodesSources", map[string]any{"subtitle": "x"}, ErrUnknownProperty},
		{"unknown nested property", "NodesSources", map[string]any{"node.subtitle": "x"}, ErrUnknownProperty},
		{"field used as association", "NodesSources", map[string]any{"title.length": 3}, ErrUnknownProperty},
		{"map value on a plain field", "NodesSources", map[string]any{"title": map[string]any{"foo": "bar"}}, ErrMalformedValue},
		{"list of maps", "NodesSources", map[string]any{"title": []any{map[string]any{"a": 1}}}, ErrMalformedValue},
		{"reachable on a plain resource", "Node", map[string]any{"reachable": true}, ErrUnknownProperty},
		{"malformed key", "NodesSources", map[string]any{"not[title": "x"}, criteria.ErrMalformedKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := compileErr(t, c, tt.resource, tt.criteria)
			assert.ErrorIs(t, err, tt.target)
			assert.True(t, IsClientError(err))
		})
	}
}

func TestCompileUnknownResource(t *testing.T) {
	c := newTestCompiler(t)

	q, err := c.Compile(context.Background(), "Blog", nil)
	assert.Nil(t, q)
	assert.ErrorIs(t, err, ErrUnknownResource)
	assert.False(t, IsClientError(err))
}

func TestCompileErrorNamesTheKey(t *testing.T) {
	c := newTestCompiler(t)

	err := compileErr(t, c, "NodesSources", map[string]any{"title": "x", "subtitle": "y"})

	var unknown *schema.UnknownPropertyError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "subtitle", unknown.Segment)
	assert.Contains(t, err.Error(), `criteria "subtitle"`)
}

func TestCompileIsDeterministic(t *testing.T) {
	c := newTestCompiler(t)
	m := map[string]any{
		"reachable":                    true,
		"node.visible":                 true,
		"tagGroup":                     []any{[]string{"news", "sport"}, "featured"},
		"publishedAt[archive]":         "2024",
		"not[title]":                   []string{"draft", "tmp"},
		"translation.locale":           "en",
		"node.intersect[tags.tagName]": []string{"a", "b"},
	}

	first := compile(t, c, "NodesSources", m)
	second := compile(t, c, "NodesSources", m)

	assert.Equal(t, first.String(), second.String())
	assert.Equal(t, first.ParameterNames(), second.ParameterNames())
}

func TestCompileWithAppender(t *testing.T) {
	appender := AppenderFunc(func(_ context.Context, resource string, _ criteria.Criteria) (criteria.Criteria, error) {
		assert.Equal(t, "NodesSources", resource)
		return criteria.Criteria{"node.visible": criteria.Scalar(true)}, nil
	})
	c := newTestCompiler(t, WithAppender(appender))

	t.Run("appended criteria are compiled", func(t *testing.T) {
		q := compile(t, c, "NodesSources", map[string]any{"title": "Home"})
		assert.Equal(t, []string{"node.visible = :node_visible_1", "o.title = :o_title_2"}, predicateStrings(q))
	})

	t.Run("appended criteria win", func(t *testing.T) {
		q := compile(t, c, "NodesSources", map[string]any{"node.visible": false})
		require.Len(t, q.Predicates, 1)
		assert.Equal(t, true, q.Parameters["node_visible_1"])
	})

	t.Run("appender error aborts", func(t *testing.T) {
		denied := errors.New("denied")
		failing := newTestCompiler(t, WithAppender(AppenderFunc(
			func(context.Context, string, criteria.Criteria) (criteria.Criteria, error) {
				return nil, denied
			})))
		err := compileErr(t, failing, "NodesSources", map[string]any{"title": "Home"})
		assert.ErrorIs(t, err, denied)
	})
}

func TestCompileWithRootAlias(t *testing.T) {
	c := newTestCompiler(t, WithRootAlias("ns"))

	q := compile(t, c, "NodesSources", map[string]any{"title": "Home", "node.visible": true})

	assert.Equal(t, "ns", q.RootAlias)
	assert.Equal(t, "ns", q.Joins[0].OwnerAlias)
	assert.Equal(t, []string{"node.visible = :node_visible_1", "ns.title = :ns_title_2"}, predicateStrings(q))
}

func TestCompileMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	c := newTestCompiler(t, WithMetrics(m))

	compile(t, c, "NodesSources", map[string]any{"node.visible": true})
	compileErr(t, c, "NodesSources", map[string]any{"subtitle": "x"})

	assert.Equal(t, 1.0, promtest.ToFloat64(m.compiles.WithLabelValues("NodesSources", "success")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.compiles.WithLabelValues("NodesSources", "error")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.ruleClaims.WithLabelValues("node_prefix", "rewrite")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.ruleClaims.WithLabelValues("default", "filter")))
	assert.Equal(t, 1, promtest.CollectAndCount(m.duration))
}

func TestCompileMetricsLabelUnknownResources(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	c := newTestCompiler(t, WithMetrics(m))

	for _, resource := range []string{"NoSuchThing", "Blog"} {
		_, err := c.Compile(context.Background(), resource, nil)
		require.ErrorIs(t, err, ErrUnknownResource)
	}
	compile(t, c, "Article", map[string]any{"readingTime": 5})

	assert.Equal(t, 2, promtest.CollectAndCount(m.compiles))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.compiles.WithLabelValues(unknownResource, "error")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.compiles.WithLabelValues("Article", "success")))
}

func TestCompileLogsClaims(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	c := newTestCompiler(t, WithLogger(zap.New(core)))

	compile(t, c, "NodesSources", map[string]any{"node.visible": true})

	claims := logs.FilterMessage("criterion claimed").All()
	require.Len(t, claims, 2)
	assert.Equal(t, "default", claims[0].ContextMap()["rule"])
	assert.Equal(t, "node_prefix", claims[1].ContextMap()["rule"])

	finished := logs.FilterMessage("compilation finished").All()
	require.Len(t, finished, 1)
	ctx := finished[0].ContextMap()
	assert.Equal(t, "NodesSources", ctx["resource"])
	assert.NotEmpty(t, ctx["compile_id"])
}

func TestCompileConcurrently(t *testing.T) {
	types := testutil.ContentTypes(t)
	c := NewCompiler(testutil.Schemas(t), types, WithClock(testutil.FixedClock(defaultNow)))
	m := map[string]any{
		"reachable":          true,
		"node.nodeType.name": "page",
		"tagGroup":           "news, sport",
	}
	want := compile(t, c, "NodesSources", m).String()

	var wg sync.WaitGroup
	results := make(chan string, 64)
	errs := make(chan error, 64)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			snap, err := contenttype.Load(testutil.ContentTypesYAML(), "yaml")
			if err != nil {
				errs <- err
				return
			}
			types.Swap(snap)
		}
	}()

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 8; j++ {
				q, err := c.Compile(context.Background(), "NodesSources", crit(t, m))
				if err != nil {
					errs <- err
					return
				}
				results <- q.String()
			}
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Fatal(err)
	}
	count := 0
	for got := range results {
		assert.Equal(t, want, got)
		count++
	}
	assert.Equal(t, 64, count)
}

func TestCompiledQueryIsIndependentOfLaterCompiles(t *testing.T) {
	c := newTestCompiler(t)

	first := compile(t, c, "NodesSources", map[string]any{"title": "a"})
	compile(t, c, "NodesSources", map[string]any{"title": "b", "node.visible": true})

	assert.Empty(t, first.Joins)
	assert.Equal(t, map[string]any{"o_title_1": "a"}, first.Parameters)
	assert.Len(t, first.Conditions(), 1)
	assert.Equal(t, query.OpEqual, first.Conditions()[0].Operator)
}
