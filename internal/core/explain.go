package core

import (
	"context"

	"github.com/coregx/eager/internal/analyzer"
)

// Plan is the EXPLAIN summary of a compiled query.
type Plan = analyzer.Plan

// Explain asks the database for the execution plan of q without running it.
// Joined tables read with a full scan are logged as warnings, since they
// usually mean the relation key has no index.
func (db *DB) Explain(ctx context.Context, q *CompiledQuery) (*Plan, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := analyzer.ForDialect(db.dialect.Name())
	if err != nil {
		return nil, err
	}
	plan, err := a.Explain(ctx, db.sqlDB, q.sql, q.params)
	if err != nil {
		return nil, newDriverError("explain", q.sql, err)
	}

	root := q.tree.Root.Alias
	for _, name := range plan.FullScans() {
		if name == root || name == q.tree.Root.Entity.Table {
			continue
		}
		db.logger.Warn("full scan on joined table",
			"table", name,
			"sql", q.sql,
		)
	}
	return plan, nil
}

// Explain compiles the query and returns its execution plan.
func (fq *FindQuery) Explain() (*Plan, error) {
	q, err := fq.Build()
	if err != nil {
		return nil, err
	}
	return fq.db.Explain(fq.ctx, q)
}

// Explain compiles the count and returns its execution plan.
func (cq *CountQuery) Explain() (*Plan, error) {
	q, err := cq.Build()
	if err != nil {
		return nil, err
	}
	return cq.db.Explain(cq.ctx, q)
}
