// Package exec runs compiled criteria queries against a database.
//
// The executor is a thin collaborator: it renders a query.CompiledQuery in
// the configured SQL flavor, runs it through database/sql and scans the
// distinct root rows into records keyed by column name.
package exec

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/huandu/go-sqlbuilder"
	"go.uber.org/zap"

	"github.com/conduit-lang/criteria/internal/orm/query"
)

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Record is one root row keyed by column name
type Record map[string]any

// Executor runs compiled queries
type Executor struct {
	db     Querier
	flavor sqlbuilder.Flavor
	logger *zap.Logger
}

// NewExecutor creates an executor for the given dialect
func NewExecutor(db Querier, dialect string, logger *zap.Logger) (*Executor, error) {
	flavor, err := query.FlavorFor(dialect)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{db: db, flavor: flavor, logger: logger}, nil
}

// Find returns the distinct root rows matching q
func (e *Executor) Find(ctx context.Context, q *query.CompiledQuery) ([]Record, error) {
	stmt, args, err := query.Render(q, e.flavor)
	if err != nil {
		return nil, fmt.Errorf("failed to render query: %w", err)
	}

	start := time.Now()
	rows, err := e.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.Resource.Name, ConvertDBError(err))
	}
	defer rows.Close()

	records, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s rows: %w", q.Resource.Name, ConvertDBError(err))
	}

	e.logger.Debug("query executed",
		zap.String("resource", q.Resource.Name),
		zap.String("sql", stmt),
		zap.Int("rows", len(records)),
		zap.Duration("duration", time.Since(start)))
	return records, nil
}

// FindOne returns the single root row matching q. ErrNotFound is returned
// when nothing matches; more than one match is an error.
func (e *Executor) FindOne(ctx context.Context, q *query.CompiledQuery) (Record, error) {
	records, err := e.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	switch len(records) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return records[0], nil
	default:
		return nil, fmt.Errorf("expected one %s, found %d", q.Resource.Name, len(records))
	}
}

// Count returns the number of distinct root rows matching q
func (e *Executor) Count(ctx context.Context, q *query.CompiledQuery) (int64, error) {
	stmt, args, err := query.RenderCount(q, e.flavor)
	if err != nil {
		return 0, fmt.Errorf("failed to render count query: %w", err)
	}

	var count int64
	if err := e.db.QueryRowContext(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", q.Resource.Name, ConvertDBError(err))
	}
	return count, nil
}

// scanRows scans rows into records. Driver byte slices become strings.
func scanRows(rows *sql.Rows) ([]Record, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []Record
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		record := make(Record, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				record[col] = string(b)
				continue
			}
			record[col] = values[i]
		}
		results = append(results, record)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
