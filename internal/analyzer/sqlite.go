package analyzer

import (
	"context"
	"fmt"
	"strings"
)

// SQLite explains statements with EXPLAIN QUERY PLAN. It reports neither
// cost nor row estimates.
type SQLite struct{}

// Explain implements Analyzer.
func (SQLite) Explain(ctx context.Context, q Queryer, query string, args []interface{}) (*Plan, error) {
	rows, err := q.QueryContext(ctx, "EXPLAIN QUERY PLAN "+query, args...)
	if err != nil {
		return nil, fmt.Errorf("explain: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var lines []string
	for rows.Next() {
		var id, parent, notused int
		var detail string
		if err := rows.Scan(&id, &parent, &notused, &detail); err != nil {
			return nil, fmt.Errorf("explain: scan: %w", err)
		}
		lines = append(lines, detail)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("explain: %w", err)
	}

	plan := parseSQLite(lines)
	plan.Raw = strings.Join(lines, "\n")
	return plan, nil
}

// parseSQLite reads detail lines such as
//
//	SCAN authors
//	SEARCH books USING INDEX books_authors_id (authors_id=?)
//	SEARCH TABLE reviews AS r USING INTEGER PRIMARY KEY (rowid=?)
//
// Lines that are not table accesses (temp b-trees, co-routines) are skipped.
func parseSQLite(lines []string) *Plan {
	plan := &Plan{Database: "sqlite"}
	for _, line := range lines {
		if a, ok := parseSQLiteLine(line); ok {
			plan.Accesses = append(plan.Accesses, a)
		}
	}
	return plan
}

func parseSQLiteLine(line string) (Access, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Access{}, false
	}
	verb := strings.ToUpper(fields[0])
	if verb != "SCAN" && verb != "SEARCH" {
		return Access{}, false
	}
	fields = fields[1:]
	if strings.EqualFold(fields[0], "TABLE") && len(fields) > 1 {
		fields = fields[1:]
	}
	if strings.EqualFold(fields[0], "SUBQUERY") || strings.EqualFold(fields[0], "CONSTANT") {
		return Access{}, false
	}

	a := Access{Table: fields[0]}
	fields = fields[1:]
	if len(fields) >= 2 && strings.EqualFold(fields[0], "AS") {
		a.Alias = fields[1]
		fields = fields[2:]
	}

	rest := strings.ToUpper(strings.Join(fields, " "))
	switch {
	case strings.Contains(rest, "PRIMARY KEY"):
		a.Index = "PRIMARY KEY"
	case strings.Contains(rest, "AUTOMATIC"):
		a.Index = "AUTOMATIC"
	case strings.Contains(rest, "INDEX"):
		a.Index = indexName(fields)
	}
	a.FullScan = verb == "SCAN" && a.Index == ""
	return a, true
}

// indexName returns the word after INDEX.
func indexName(fields []string) string {
	for i, f := range fields {
		if strings.EqualFold(f, "INDEX") && i+1 < len(fields) {
			return strings.TrimSuffix(fields[i+1], "(")
		}
	}
	return ""
}
