package filter

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/conduit-lang/criteria/internal/orm/contenttype"
	"github.com/conduit-lang/criteria/internal/orm/criteria"
	"github.com/conduit-lang/criteria/internal/orm/query"
	"github.com/conduit-lang/criteria/internal/orm/schema"
)

// Compilation is the per-call state rules operate on
type Compilation struct {
	Query    *query.Context
	Types    *contenttype.Snapshot
	Resolver *schema.Resolver
	// Now is the evaluation instant used by time-relative rules
	Now time.Time

	chain   *Chain
	logger  *zap.Logger
	metrics *Metrics
}

// NewCompilation creates the state for one compile call
func NewCompilation(q *query.Context, types *contenttype.Snapshot, resolver *schema.Resolver, chain *Chain, now time.Time) *Compilation {
	return &Compilation{
		Query:    q,
		Types:    types,
		Resolver: resolver,
		Now:      now,
		chain:    chain,
		logger:   zap.NewNop(),
	}
}

// Logger returns the logger of the compilation
func (c *Compilation) Logger() *zap.Logger {
	return c.logger
}

// Process compiles one criterion: rewrite phase, filter phase, then the
// default rule if nothing claimed it
func (c *Compilation) Process(crit *Criterion) error {
	for _, ev := range []Event{EventRewrite, EventFilter} {
		rule, err := c.chain.Dispatch(c, ev, crit)
		if err != nil {
			return fmt.Errorf("%s rule %s: %w", ev, rule.Name(), err)
		}
		if rule != nil {
			c.claimed(rule.Name(), ev, crit)
			return nil
		}
	}
	return c.applyDefault(crit)
}

func (c *Compilation) claimed(rule string, ev Event, crit *Criterion) {
	c.logger.Debug("criterion claimed",
		zap.String("rule", rule),
		zap.String("event", ev.String()),
		zap.String("key", crit.Key),
		zap.String("property", crit.Property),
		zap.String("alias", crit.Alias))
	if c.metrics != nil {
		c.metrics.ruleClaims.WithLabelValues(rule, ev.String()).Inc()
	}
}

// Resolve resolves a property relative to the criterion's resource
func (c *Compilation) Resolve(crit *Criterion, property string) (*schema.PropertyPath, error) {
	return c.Resolver.Resolve(property, crit.Resource)
}

// Join resolves property and joins its association chain from the
// criterion's alias, returning the alias and column to compare
func (c *Compilation) Join(crit *Criterion, property string, kind query.JoinType, allowDuplicate bool) (string, string, *schema.PropertyPath, error) {
	path, err := c.Resolve(crit, property)
	if err != nil {
		return "", "", nil, err
	}
	alias, column, err := c.Query.JoinPath(crit.Alias, path, kind, allowDuplicate)
	if err != nil {
		return "", "", nil, err
	}
	return alias, column, path, nil
}

// applyDefault resolves the path, joins it without duplication and emits
// = for scalars, IN for lists and IS NULL for null
func (c *Compilation) applyDefault(crit *Criterion) error {
	alias, column, _, err := c.Join(crit, crit.Property, query.InnerJoin, false)
	if err != nil {
		return err
	}

	switch crit.Value.Kind() {
	case criteria.KindNull:
		c.Query.Where(c.Query.Compare(alias, column, query.OpIsNull))
	case criteria.KindScalar:
		c.Query.Where(c.Query.Compare(alias, column, query.OpEqual, crit.Value.Raw()))
	case criteria.KindList:
		values, ok := crit.Value.Scalars()
		if !ok {
			return malformed(crit, "list items must be scalars")
		}
		c.Query.Where(c.Query.Compare(alias, column, query.OpIn, values))
	default:
		return malformed(crit, "no rule accepts a nested map for this property")
	}
	c.claimed("default", EventFilter, crit)
	return nil
}

// emitDiscriminator adds an OR of "alias is an instance of shape" checks.
// No shapes yields an always-false empty OR: the filter is never dropped.
func (c *Compilation) emitDiscriminator(crit *Criterion, shapes []contenttype.RowShape) {
	discr := crit.Resource.Discriminator
	group := query.Or()
	for _, shape := range shapes {
		group.Add(c.Query.Compare(crit.Alias, discr, query.OpEqual, shape.Discriminator))
	}
	if len(shapes) == 0 {
		c.logger.Warn("empty discriminator set, criterion matches nothing",
			zap.String("key", crit.Key),
			zap.String("property", crit.Property),
			zap.Stringer("value", crit.Value),
			zap.Uint64("content_types_version", c.Types.Version()))
	}
	c.Query.Where(group)
}
