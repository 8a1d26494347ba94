// Package analyzer runs EXPLAIN for compiled eager-load queries and reduces
// the output to one access entry per table, so that joins reaching an
// include table without an index on its key column are easy to spot.
package analyzer

import (
	"context"
	"database/sql"
	"fmt"
)

// Plan is a database independent summary of an EXPLAIN result.
type Plan struct {
	// Database is "mysql", "postgres" or "sqlite".
	Database string
	// Cost is the estimated total cost in database units. SQLite reports 0.
	Cost float64
	// EstimatedRows is the planner's row estimate for the whole statement.
	EstimatedRows int64
	// Accesses lists table accesses in plan order.
	Accesses []Access
	// Raw is the unparsed EXPLAIN output.
	Raw string
}

// Access is one table access within a plan.
type Access struct {
	Table string
	// Alias is the alias the table was accessed under, if the database reports one.
	Alias    string
	Index    string
	FullScan bool
	Rows     int64
}

// FullScans returns the aliases (or table names) read with a full scan.
func (p *Plan) FullScans() []string {
	var out []string
	for _, a := range p.Accesses {
		if !a.FullScan {
			continue
		}
		if a.Alias != "" {
			out = append(out, a.Alias)
		} else {
			out = append(out, a.Table)
		}
	}
	return out
}

// Queryer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Analyzer explains a statement without executing it.
type Analyzer interface {
	Explain(ctx context.Context, q Queryer, query string, args []interface{}) (*Plan, error)
}

// ForDialect returns the analyzer for the named dialect.
func ForDialect(name string) (Analyzer, error) {
	switch name {
	case "mysql":
		return MySQL{}, nil
	case "postgres":
		return Postgres{}, nil
	case "sqlite":
		return SQLite{}, nil
	}
	return nil, fmt.Errorf("analyzer: no EXPLAIN support for dialect %q", name)
}

// explainJSON runs a statement whose single row holds a JSON document.
func explainJSON(ctx context.Context, q Queryer, query string, args []interface{}) (string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return "", fmt.Errorf("explain: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var raw string
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return "", fmt.Errorf("explain: %w", err)
		}
		return "", fmt.Errorf("explain: no output")
	}
	if err := rows.Scan(&raw); err != nil {
		return "", fmt.Errorf("explain: scan: %w", err)
	}
	return raw, rows.Err()
}
