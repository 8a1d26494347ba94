package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
)

// Postgres explains statements with EXPLAIN (FORMAT JSON).
type Postgres struct{}

// Explain implements Analyzer.
func (Postgres) Explain(ctx context.Context, q Queryer, query string, args []interface{}) (*Plan, error) {
	raw, err := explainJSON(ctx, q, "EXPLAIN (FORMAT JSON) "+query, args)
	if err != nil {
		return nil, err
	}
	plan, err := parsePostgres(raw)
	if err != nil {
		return nil, err
	}
	plan.Raw = raw
	return plan, nil
}

type postgresRoot struct {
	Plan postgresNode `json:"Plan"`
}

type postgresNode struct {
	NodeType  string         `json:"Node Type"`
	Relation  string         `json:"Relation Name"`
	Alias     string         `json:"Alias"`
	IndexName string         `json:"Index Name"`
	TotalCost float64        `json:"Total Cost"`
	PlanRows  int64          `json:"Plan Rows"`
	Plans     []postgresNode `json:"Plans"`
}

func parsePostgres(raw string) (*Plan, error) {
	var roots []postgresRoot
	if err := json.Unmarshal([]byte(raw), &roots); err != nil {
		return nil, fmt.Errorf("explain: parse postgres output: %w", err)
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("explain: empty postgres output")
	}
	top := roots[0].Plan
	plan := &Plan{
		Database:      "postgres",
		Cost:          top.TotalCost,
		EstimatedRows: top.PlanRows,
	}
	walkPostgres(&top, plan)
	return plan, nil
}

func walkPostgres(n *postgresNode, plan *Plan) {
	if n.Relation != "" {
		alias := n.Alias
		if alias == n.Relation {
			alias = ""
		}
		plan.Accesses = append(plan.Accesses, Access{
			Table:    n.Relation,
			Alias:    alias,
			Index:    n.IndexName,
			FullScan: n.NodeType == "Seq Scan",
			Rows:     n.PlanRows,
		})
	}
	for i := range n.Plans {
		walkPostgres(&n.Plans[i], plan)
	}
}

