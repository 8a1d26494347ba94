package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// MySQL explains statements with EXPLAIN FORMAT=JSON.
type MySQL struct{}

// Explain implements Analyzer.
func (MySQL) Explain(ctx context.Context, q Queryer, query string, args []interface{}) (*Plan, error) {
	raw, err := explainJSON(ctx, q, "EXPLAIN FORMAT=JSON "+query, args)
	if err != nil {
		return nil, err
	}
	plan, err := parseMySQL(raw)
	if err != nil {
		return nil, err
	}
	plan.Raw = raw
	return plan, nil
}

type mysqlRoot struct {
	QueryBlock mysqlBlock `json:"query_block"`
}

// mysqlBlock covers query_block and the wrappers MySQL nests around it.
type mysqlBlock struct {
	CostInfo   mysqlCost    `json:"cost_info"`
	Table      *mysqlTable  `json:"table"`
	NestedLoop []mysqlTable `json:"nested_loop"`
	Ordering   *mysqlBlock  `json:"ordering_operation"`
	Grouping   *mysqlBlock  `json:"grouping_operation"`
	Duplicates *mysqlBlock  `json:"duplicates_removal"`
}

type mysqlTable struct {
	Name         string        `json:"table_name"`
	AccessType   string        `json:"access_type"`
	Key          string        `json:"key"`
	RowsExamined int64         `json:"rows_examined_per_scan"`
	Materialized *mysqlDerived `json:"materialized_from_subquery"`
}

// nested_loop entries wrap the table in a "table" key.
func (t *mysqlTable) UnmarshalJSON(b []byte) error {
	type plain mysqlTable
	var wrapped struct {
		Table *plain `json:"table"`
	}
	if err := json.Unmarshal(b, &wrapped); err == nil && wrapped.Table != nil {
		*t = mysqlTable(*wrapped.Table)
		return nil
	}
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*t = mysqlTable(p)
	return nil
}

type mysqlDerived struct {
	QueryBlock mysqlBlock `json:"query_block"`
}

type mysqlCost struct {
	QueryCost string `json:"query_cost"`
}

func parseMySQL(raw string) (*Plan, error) {
	var root mysqlRoot
	if err := json.Unmarshal([]byte(raw), &root); err != nil {
		return nil, fmt.Errorf("explain: parse mysql output: %w", err)
	}
	plan := &Plan{Database: "mysql"}
	if cost, err := strconv.ParseFloat(root.QueryBlock.CostInfo.QueryCost, 64); err == nil {
		plan.Cost = cost
	}
	walkMySQL(&root.QueryBlock, plan)
	return plan, nil
}

func walkMySQL(b *mysqlBlock, plan *Plan) {
	if b == nil {
		return
	}
	if b.Table != nil {
		addMySQLTable(b.Table, plan)
	}
	for i := range b.NestedLoop {
		addMySQLTable(&b.NestedLoop[i], plan)
	}
	walkMySQL(b.Ordering, plan)
	walkMySQL(b.Grouping, plan)
	walkMySQL(b.Duplicates, plan)
}

func addMySQLTable(t *mysqlTable, plan *Plan) {
	plan.Accesses = append(plan.Accesses, Access{
		Table:    t.Name,
		Index:    t.Key,
		FullScan: t.AccessType == "ALL",
		Rows:     t.RowsExamined,
	})
	plan.EstimatedRows += t.RowsExamined
	if t.Materialized != nil {
		walkMySQL(&t.Materialized.QueryBlock, plan)
	}
}
