package core

import (
	"context"
	"database/sql"

	"github.com/coregx/eager/internal/tracer"
)

// FindQuery builds and runs a find query.
//
// Example:
//
//	authors, err := db.Find("Authors").
//	    Where(eager.Eq("name", "Ann")).
//	    Include(eager.Include{Relation: "books"}).
//	    OrderBy(eager.Asc("name")).
//	    All()
type FindQuery struct {
	db   *DB
	tx   *sql.Tx
	ctx  context.Context
	opts FindOptions
	err  error
}

func newFindQuery(db *DB, tx *sql.Tx, ctx context.Context, entity string) *FindQuery {
	return &FindQuery{db: db, tx: tx, ctx: ctx, opts: FindOptions{Entity: entity}}
}

func (fq *FindQuery) byID(id interface{}) *FindQuery {
	e, err := fq.db.provider.Entity(fq.opts.Entity)
	if err != nil {
		fq.err = err
		return fq
	}
	return fq.Where(Eq(e.PrimaryKey, id))
}

// WithContext sets the context used by All and One.
func (fq *FindQuery) WithContext(ctx context.Context) *FindQuery {
	fq.ctx = ctx
	return fq
}

// Where adds a root filter. Repeated calls are combined with AND.
func (fq *FindQuery) Where(f Filter) *FindQuery {
	if fq.opts.Where == nil {
		fq.opts.Where = f
	} else if f != nil {
		fq.opts.Where = And(fq.opts.Where, f)
	}
	return fq
}

// Include adds includes to the root.
func (fq *FindQuery) Include(includes ...Include) *FindQuery {
	fq.opts.Include = append(fq.opts.Include, includes...)
	return fq
}

// Select limits the root columns.
func (fq *FindQuery) Select(attrs ...string) *FindQuery {
	fq.opts.Attributes = append(fq.opts.Attributes, attrs...)
	return fq
}

// OrderBy appends sort orders.
func (fq *FindQuery) OrderBy(orders ...Order) *FindQuery {
	fq.opts.Order = append(fq.opts.Order, orders...)
	return fq
}

// Limit caps the number of root entities returned.
func (fq *FindQuery) Limit(n int) *FindQuery {
	fq.opts.Limit = n
	return fq
}

// Offset skips root entities.
func (fq *FindQuery) Offset(n int) *FindQuery {
	fq.opts.Offset = n
	return fq
}

// Build compiles the query without running it. The text is identical to
// what All executes.
func (fq *FindQuery) Build() (*CompiledQuery, error) {
	if fq.err != nil {
		return nil, fq.err
	}
	return fq.db.compiler.CompileFind(fq.opts)
}

// All runs the query and returns the root records in result order.
func (fq *FindQuery) All() ([]*Record, error) {
	q, err := fq.Build()
	if err != nil {
		return nil, err
	}

	var records []*Record
	err = fq.db.run(fq.ctx, fq.tx, q, tracer.SpanFindAll, func(rows [][]interface{}) (int, error) {
		var hErr error
		records, hErr = Hydrate(q.Tree(), rows)
		return len(records), hErr
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// One runs the query limited to one root entity. Has-many includes are
// still loaded completely. It returns ErrNoRows when nothing matched.
func (fq *FindQuery) One() (*Record, error) {
	opts := fq.opts
	opts.Limit = 1
	if fq.err != nil {
		return nil, fq.err
	}
	q, err := fq.db.compiler.CompileFind(opts)
	if err != nil {
		return nil, err
	}

	var record *Record
	err = fq.db.run(fq.ctx, fq.tx, q, tracer.SpanFindOne, func(rows [][]interface{}) (int, error) {
		var hErr error
		record, hErr = HydrateOne(q.Tree(), rows)
		if record == nil {
			return 0, hErr
		}
		return 1, hErr
	})
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrNoRows
	}
	return record, nil
}

// CountQuery builds and runs a count query.
type CountQuery struct {
	db   *DB
	tx   *sql.Tx
	ctx  context.Context
	opts CountOptions
}

func newCountQuery(db *DB, tx *sql.Tx, ctx context.Context, entity string) *CountQuery {
	return &CountQuery{db: db, tx: tx, ctx: ctx, opts: CountOptions{Entity: entity}}
}

// WithContext sets the context used by Value.
func (cq *CountQuery) WithContext(ctx context.Context) *CountQuery {
	cq.ctx = ctx
	return cq
}

// Where adds a root filter. Repeated calls are combined with AND.
func (cq *CountQuery) Where(f Filter) *CountQuery {
	if cq.opts.Where == nil {
		cq.opts.Where = f
	} else if f != nil {
		cq.opts.Where = And(cq.opts.Where, f)
	}
	return cq
}

// Include adds includes. Only required includes and their ancestors
// affect the count.
func (cq *CountQuery) Include(includes ...Include) *CountQuery {
	cq.opts.Include = append(cq.opts.Include, includes...)
	return cq
}

// Build compiles the count without running it.
func (cq *CountQuery) Build() (*CompiledQuery, error) {
	return cq.db.compiler.CompileCount(cq.opts)
}

// Value runs the count.
func (cq *CountQuery) Value() (int64, error) {
	q, err := cq.Build()
	if err != nil {
		return 0, err
	}

	var n int64
	err = cq.db.run(cq.ctx, cq.tx, q, tracer.SpanCount, func(rows [][]interface{}) (int, error) {
		if len(rows) != 1 {
			return 0, ErrRowShape
		}
		var cErr error
		n, cErr = toInt64(rows[0][0])
		return 1, cErr
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
