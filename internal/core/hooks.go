package core

import (
	"context"
	"time"
)

// QueryEvent describes one executed find or count query.
type QueryEvent struct {
	// QueryID matches the query_id of the log record and span.
	QueryID string
	// Entity is the root entity name.
	Entity string
	// Operation is "find" or "count".
	Operation string
	SQL       string
	// Args are the bound parameters, unmasked.
	Args     []interface{}
	Duration time.Duration
	// Rows is the number of flat rows scanned.
	Rows int
	// Records is the number of root records hydrated.
	Records int
	// Error is nil on success.
	Error error
}

// QueryHook is invoked after every execution, successful or not.
//
// Example:
//
//	db, _ := eager.Open("mysql", dsn, reg,
//	    eager.WithQueryHook(func(ctx context.Context, e eager.QueryEvent) {
//	        metrics.Observe(e.Operation, e.Duration)
//	    }))
type QueryHook func(ctx context.Context, event QueryEvent)

// WithQueryHook sets the hook invoked after each execution.
func WithQueryHook(hook QueryHook) Option {
	return func(db *DB) {
		db.queryHook = hook
	}
}

func (db *DB) invokeHook(ctx context.Context, event QueryEvent) {
	if db.queryHook != nil {
		db.queryHook(ctx, event)
	}
}
