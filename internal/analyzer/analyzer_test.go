package analyzer

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestForDialect(t *testing.T) {
	for _, name := range []string{"mysql", "postgres", "sqlite"} {
		a, err := ForDialect(name)
		require.NoError(t, err, name)
		assert.NotNil(t, a)
	}

	_, err := ForDialect("oracle")
	assert.Error(t, err)
}

func TestParseSQLiteLine(t *testing.T) {
	tests := []struct {
		line string
		want Access
		ok   bool
	}{
		{"SCAN authors", Access{Table: "authors", FullScan: true}, true},
		{"SCAN TABLE authors", Access{Table: "authors", FullScan: true}, true},
		{"SCAN books AS b", Access{Table: "books", Alias: "b", FullScan: true}, true},
		{"SEARCH books USING INDEX books_authors_id (authors_id=?)", Access{Table: "books", Index: "books_authors_id"}, true},
		{"SEARCH TABLE reviews AS r USING INTEGER PRIMARY KEY (rowid=?)", Access{Table: "reviews", Alias: "r", Index: "PRIMARY KEY"}, true},
		{"SEARCH books USING AUTOMATIC COVERING INDEX (authors_id=?)", Access{Table: "books", Index: "AUTOMATIC"}, true},
		{"SCAN authors USING COVERING INDEX authors_name", Access{Table: "authors", Index: "authors_name"}, true},
		{"USE TEMP B-TREE FOR ORDER BY", Access{}, false},
		{"CO-ROUTINE authors", Access{}, false},
		{"SCAN CONSTANT ROW", Access{}, false},
		{"", Access{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := parseSQLiteLine(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlan_FullScans(t *testing.T) {
	plan := &Plan{Accesses: []Access{
		{Table: "authors", FullScan: true},
		{Table: "books", Index: "books_authors_id"},
		{Table: "reviews", Alias: "r", FullScan: true},
	}}
	assert.Equal(t, []string{"authors", "r"}, plan.FullScans())
}

func TestParseMySQL(t *testing.T) {
	raw := `{
  "query_block": {
    "select_id": 1,
    "cost_info": {"query_cost": "12.50"},
    "ordering_operation": {
      "using_filesort": true,
      "nested_loop": [
        {"table": {"table_name": "authors", "access_type": "ALL", "rows_examined_per_scan": 3}},
        {"table": {"table_name": "books", "access_type": "ref", "key": "books_authors_id", "rows_examined_per_scan": 2}}
      ]
    }
  }
}`
	plan, err := parseMySQL(raw)
	require.NoError(t, err)

	assert.Equal(t, "mysql", plan.Database)
	assert.InDelta(t, 12.5, plan.Cost, 0.001)
	assert.Equal(t, int64(5), plan.EstimatedRows)
	require.Len(t, plan.Accesses, 2)
	assert.Equal(t, Access{Table: "authors", FullScan: true, Rows: 3}, plan.Accesses[0])
	assert.Equal(t, Access{Table: "books", Index: "books_authors_id", Rows: 2}, plan.Accesses[1])
}

func TestParseMySQL_DerivedTable(t *testing.T) {
	raw := `{
  "query_block": {
    "cost_info": {"query_cost": "4.00"},
    "table": {
      "table_name": "authors",
      "access_type": "ALL",
      "materialized_from_subquery": {
        "query_block": {
          "table": {"table_name": "authors", "access_type": "index", "key": "PRIMARY"}
        }
      }
    }
  }
}`
	plan, err := parseMySQL(raw)
	require.NoError(t, err)
	require.Len(t, plan.Accesses, 2)
	assert.True(t, plan.Accesses[0].FullScan)
	assert.Equal(t, "PRIMARY", plan.Accesses[1].Index)
}

func TestParseMySQL_Invalid(t *testing.T) {
	_, err := parseMySQL("not json")
	assert.Error(t, err)
}

func TestParsePostgres(t *testing.T) {
	raw := `[{"Plan": {
  "Node Type": "Hash Join", "Total Cost": 41.2, "Plan Rows": 120,
  "Plans": [
    {"Node Type": "Seq Scan", "Relation Name": "authors", "Alias": "authors", "Plan Rows": 60},
    {"Node Type": "Hash", "Plans": [
      {"Node Type": "Index Scan", "Relation Name": "books", "Alias": "books", "Index Name": "books_authors_id", "Plan Rows": 60}
    ]},
    {"Node Type": "Seq Scan", "Relation Name": "categories", "Alias": "parent", "Plan Rows": 4}
  ]
}}]`
	plan, err := parsePostgres(raw)
	require.NoError(t, err)

	assert.Equal(t, "postgres", plan.Database)
	assert.InDelta(t, 41.2, plan.Cost, 0.001)
	assert.Equal(t, int64(120), plan.EstimatedRows)
	assert.Equal(t, []Access{
		{Table: "authors", FullScan: true, Rows: 60},
		{Table: "books", Index: "books_authors_id", Rows: 60},
		{Table: "categories", Alias: "parent", FullScan: true, Rows: 4},
	}, plan.Accesses)
	assert.Equal(t, []string{"authors", "parent"}, plan.FullScans())
}

func TestParsePostgres_Empty(t *testing.T) {
	_, err := parsePostgres("[]")
	assert.Error(t, err)
}

func TestSQLite_Explain(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		`CREATE TABLE authors (id INTEGER PRIMARY KEY, name TEXT)`,
		`CREATE TABLE books (id INTEGER PRIMARY KEY, authors_id INTEGER, title TEXT)`,
		`CREATE INDEX books_authors_id ON books (authors_id)`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}

	plan, err := SQLite{}.Explain(context.Background(), db,
		`SELECT authors.id, books.id FROM authors LEFT OUTER JOIN books AS books ON books.authors_id = authors.id WHERE authors.name = ?`,
		[]interface{}{"Ann"})
	require.NoError(t, err)

	assert.Equal(t, "sqlite", plan.Database)
	assert.NotEmpty(t, plan.Raw)
	require.Len(t, plan.Accesses, 2)
	assert.Equal(t, "authors", plan.Accesses[0].Table)
	assert.True(t, plan.Accesses[0].FullScan)
	assert.Equal(t, "books", plan.Accesses[1].Table)
	assert.Equal(t, "books_authors_id", plan.Accesses[1].Index)
}

func TestSQLite_ExplainInvalid(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = SQLite{}.Explain(context.Background(), db, "SELECT * FROM missing", nil)
	assert.Error(t, err)
}
