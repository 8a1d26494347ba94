package core

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/coregx/eager/internal/tracer"
)

// run executes q, passes the scanned rows to consume and reports the
// execution to the logger and tracer. consume returns the number of
// records it produced.
func (db *DB) run(ctx context.Context, tx *sql.Tx, q *CompiledQuery, spanName string, consume func([][]interface{}) (int, error)) error {
	if ctx == nil {
		ctx = context.Background()
	}

	queryID := uuid.NewString()
	ctx, span := db.tracer.StartSpan(ctx, spanName)
	defer span.End()

	start := time.Now()
	rows, failure, err := db.fetch(ctx, tx, q)
	records := 0
	if err == nil {
		failure = "hydration failed"
		records, err = consume(rows)
	}
	elapsed := time.Since(start)

	params := db.sanitizer.FormatParams(db.sanitizer.MaskParams(q.paramAttrs, q.params))
	if err != nil {
		db.logger.Error(failure,
			"query_id", queryID,
			"sql", q.sql,
			"params", params,
			"duration_ms", elapsed.Milliseconds(),
			"database", db.driverName,
			"error", err,
		)
	} else {
		db.logger.Info("query executed",
			"query_id", queryID,
			"sql", q.sql,
			"params", params,
			"duration_ms", elapsed.Milliseconds(),
			"rows", len(rows),
			"records", records,
			"database", db.driverName,
		)
	}

	operation := "find"
	if q.count {
		operation = "count"
	}
	db.invokeHook(ctx, QueryEvent{
		QueryID:   queryID,
		Entity:    q.tree.Root.Entity.Name,
		Operation: operation,
		SQL:       q.sql,
		Args:      q.Params(),
		Duration:  elapsed,
		Rows:      len(rows),
		Records:   records,
		Error:     err,
	})
	tracer.AddQueryAttributes(span, &tracer.QueryMetadata{
		QueryID:   queryID,
		SQL:       q.sql,
		Duration:  elapsed,
		Rows:      len(rows),
		Records:   records,
		Joins:     countJoins(q),
		Error:     err,
		Database:  db.driverName,
		Operation: operation,
		Table:     q.tree.Root.Entity.Table,
	})
	return err
}

// fetch prepares and runs q and scans every row positionally. On failure
// it also returns the log message describing the failed stage.
func (db *DB) fetch(ctx context.Context, tx *sql.Tx, q *CompiledQuery) ([][]interface{}, string, error) {
	stmt, needsClose, err := db.prepareStatement(ctx, tx, q.sql)
	if err != nil {
		return nil, "query preparation failed", newDriverError("prepare", q.sql, err)
	}
	if needsClose {
		defer func() { _ = stmt.Close() }()
	}

	rs, err := stmt.QueryContext(ctx, q.params...)
	if err != nil {
		return nil, "query execution failed", newDriverError("query", q.sql, err)
	}
	defer func() { _ = rs.Close() }()

	width := 1
	if !q.count {
		width = q.tree.Width()
	}
	cols, err := rs.Columns()
	if err != nil {
		return nil, "row scanning failed", newDriverError("columns", q.sql, err)
	}
	if len(cols) != width {
		return nil, "row scanning failed", fmt.Errorf("%w: statement returned %d columns, want %d", ErrRowShape, len(cols), width)
	}

	var rows [][]interface{}
	for rs.Next() {
		values := make([]interface{}, width)
		ptrs := make([]interface{}, width)
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rs.Scan(ptrs...); err != nil {
			return nil, "row scanning failed", newDriverError("scan", q.sql, err)
		}
		rows = append(rows, values)
	}
	if err := rs.Err(); err != nil {
		return nil, "query execution failed", newDriverError("query", q.sql, err)
	}
	return rows, "", nil
}

// prepareStatement prepares query through the statement cache. Statements
// prepared inside a transaction bypass the cache and must be closed.
func (db *DB) prepareStatement(ctx context.Context, tx *sql.Tx, query string) (*sql.Stmt, bool, error) {
	if tx != nil {
		stmt, err := tx.PrepareContext(ctx, query)
		return stmt, err == nil, err
	}
	stmt, err := db.stmtCache.Prepare(ctx, db.sqlDB, query)
	return stmt, false, err
}

func countJoins(q *CompiledQuery) int {
	if q.count {
		return len(planCount(q.tree).joins)
	}
	return len(q.tree.nodes) - 1
}

// toInt64 converts a scanned COUNT value.
func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	case string:
		return strconv.ParseInt(n, 10, 64)
	}
	return 0, fmt.Errorf("%w: unexpected count value %T", ErrRowShape, v)
}
