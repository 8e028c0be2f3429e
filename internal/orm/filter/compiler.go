package filter

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conduit-lang/criteria/internal/orm/contenttype"
	"github.com/conduit-lang/criteria/internal/orm/criteria"
	"github.com/conduit-lang/criteria/internal/orm/query"
	"github.com/conduit-lang/criteria/internal/orm/schema"
)

// SnapshotSource provides the content-type snapshot a compilation runs against
type SnapshotSource interface {
	Snapshot() *contenttype.Snapshot
}

// CriteriaAppender adds criteria before compilation, e.g. an authorization
// layer restricting results to a subtree. Appended criteria go through the
// same rules as the caller's and win on key collisions.
type CriteriaAppender interface {
	AppendCriteria(ctx context.Context, resource string, crit criteria.Criteria) (criteria.Criteria, error)
}

// AppenderFunc adapts a function to CriteriaAppender
type AppenderFunc func(ctx context.Context, resource string, crit criteria.Criteria) (criteria.Criteria, error)

// AppendCriteria calls f
func (f AppenderFunc) AppendCriteria(ctx context.Context, resource string, crit criteria.Criteria) (criteria.Criteria, error) {
	return f(ctx, resource, crit)
}

// unknownResource is the metrics label of compilations against resources
// that are not registered
const unknownResource = "unknown"

// Compiler turns criteria maps into compiled queries. It is safe for
// concurrent use; each Compile call gets its own query.Context.
//
// Compilations resolve against the static resources plus the resources
// derived from the current content-type snapshot. The derived metadata is
// rebuilt once per published snapshot.
type Compiler struct {
	schemas   schema.Catalog
	current   atomic.Pointer[metadata]
	types     SnapshotSource
	chain     *Chain
	appenders []CriteriaAppender
	rootAlias string

	logger  *zap.Logger
	metrics *Metrics
	now     func() time.Time
}

// Option configures a Compiler
type Option func(*Compiler)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Compiler) { c.logger = logger }
}

// WithMetrics sets the metrics collectors
func WithMetrics(m *Metrics) Option {
	return func(c *Compiler) { c.metrics = m }
}

// WithClock sets the source of the evaluation instant
func WithClock(now func() time.Time) Option {
	return func(c *Compiler) { c.now = now }
}

// WithChain replaces the built-in rule chain
func WithChain(chain *Chain) Option {
	return func(c *Compiler) { c.chain = chain }
}

// WithAppender adds a criteria appender. Appenders run in order.
func WithAppender(a CriteriaAppender) Option {
	return func(c *Compiler) { c.appenders = append(c.appenders, a) }
}

// WithRootAlias sets the alias of the queried resource
func WithRootAlias(alias string) Option {
	return func(c *Compiler) { c.rootAlias = alias }
}

// metadata is the resource metadata of one content-type snapshot
type metadata struct {
	snapshot *contenttype.Snapshot
	schemas  *schema.Registry
	resolver *schema.Resolver
}

// NewCompiler creates a compiler over resource metadata and content types
func NewCompiler(schemas schema.Catalog, types SnapshotSource, opts ...Option) *Compiler {
	c := &Compiler{
		schemas:   schemas,
		types:     types,
		chain:     DefaultChain(),
		rootAlias: query.DefaultRootAlias,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile compiles crit against resource. Keys are processed in sorted
// order so aliases and parameter names are deterministic. Any error aborts
// the compilation; no partial query is returned.
func (c *Compiler) Compile(ctx context.Context, resource string, crit criteria.Criteria) (*query.CompiledQuery, error) {
	start := time.Now()
	logger := c.logger.With(
		zap.String("compile_id", uuid.NewString()),
		zap.String("resource", resource))

	compiled, err := c.compile(ctx, logger, resource, crit)

	if c.metrics != nil {
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		label := c.resourceLabel(resource)
		c.metrics.compiles.WithLabelValues(label, outcome).Inc()
		c.metrics.duration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		logger.Debug("compilation failed", zap.Error(err))
		return nil, err
	}
	logger.Debug("compilation finished",
		zap.Int("joins", len(compiled.Joins)),
		zap.Int("predicates", len(compiled.Predicates)),
		zap.Duration("duration", time.Since(start)))
	return compiled, nil
}

func (c *Compiler) compile(ctx context.Context, logger *zap.Logger, resource string, crit criteria.Criteria) (*query.CompiledQuery, error) {
	meta, err := c.metadataFor(c.types.Snapshot())
	if err != nil {
		return nil, err
	}
	root, ok := meta.schemas.Get(resource)
	if !ok {
		return nil, fmt.Errorf("%w: %s", schema.ErrUnknownResource, resource)
	}

	for _, appender := range c.appenders {
		extra, err := appender.AppendCriteria(ctx, resource, crit)
		if err != nil {
			return nil, fmt.Errorf("failed to append criteria: %w", err)
		}
		crit = crit.Merge(extra)
	}

	normalized, err := criteria.Normalize(crit)
	if err != nil {
		return nil, err
	}

	comp := NewCompilation(query.NewContext(meta.schemas, root, c.rootAlias), meta.snapshot, meta.resolver, c.chain, c.now())
	comp.logger = logger
	comp.metrics = c.metrics

	if root.IsSubtype() {
		alias := comp.Query.RootAlias()
		comp.Query.Where(comp.Query.Compare(alias, root.Discriminator, query.OpEqual, root.DiscriminatorValue))
	}

	for _, key := range normalized.Keys() {
		err := comp.Process(&Criterion{
			Key:      key,
			Property: key,
			Value:    normalized[key],
			Alias:    comp.Query.RootAlias(),
			Resource: root,
		})
		if err != nil {
			return nil, fmt.Errorf("criteria %q: %w", key, err)
		}
	}
	return comp.Query.Compiled(), nil
}

// Chain returns the rule chain of the compiler
func (c *Compiler) Chain() *Chain {
	return c.chain
}

// Resources returns the resources compilations currently resolve against:
// the static ones plus those derived from the current content types
func (c *Compiler) Resources() (*schema.Registry, error) {
	meta, err := c.metadataFor(c.types.Snapshot())
	if err != nil {
		return nil, err
	}
	return meta.schemas, nil
}

// metadataFor returns the metadata of snap, deriving it when snap is not
// the snapshot the cached metadata was built from
func (c *Compiler) metadataFor(snap *contenttype.Snapshot) (*metadata, error) {
	if meta := c.current.Load(); meta != nil && meta.snapshot == snap {
		return meta, nil
	}

	schemas, err := snap.Resources(c.schemas.All())
	if err != nil {
		return nil, fmt.Errorf("failed to derive content-type resources (version %d): %w", snap.Version(), err)
	}
	meta := &metadata{
		snapshot: snap,
		schemas:  schemas,
		resolver: schema.NewResolver(schemas),
	}
	c.current.Store(meta)
	c.logger.Info("content-type resources derived",
		zap.Uint64("content_types_version", snap.Version()),
		zap.Int("resources", schemas.Count()))
	return meta, nil
}

// resourceLabel bounds the resource label of the metrics to resources that exist
func (c *Compiler) resourceLabel(resource string) string {
	if _, ok := c.schemas.Get(resource); ok {
		return resource
	}
	if meta := c.current.Load(); meta != nil {
		if _, ok := meta.schemas.Get(resource); ok {
			return resource
		}
	}
	return unknownResource
}
