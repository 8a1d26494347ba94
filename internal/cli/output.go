package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/coregx/eager/internal/analyzer"
	"github.com/coregx/eager/internal/core"
	"github.com/coregx/eager/internal/logger"
	"github.com/coregx/eager/internal/schema"
)

var (
	headingColor = color.New(color.FgCyan, color.Bold)
	warnColor    = color.New(color.FgYellow)
	dimColor     = color.New(color.Faint)
)

func heading(w io.Writer, title string) {
	_, _ = headingColor.Fprintln(w, title)
}

// PrintQuery writes the SQL text and bound parameters of q. Parameters
// bound to sensitive attributes are masked with s.
func PrintQuery(w io.Writer, q *core.CompiledQuery, s *logger.Sanitizer) {
	heading(w, "SQL")
	fmt.Fprintln(w, q.SQL())
	fmt.Fprintln(w)
	heading(w, "Params")
	fmt.Fprintln(w, s.FormatParams(s.MaskParams(q.ParamAttributes(), q.Params())))
}

// PrintColumns writes the result column layout of a find query.
func PrintColumns(w io.Writer, t *core.Tree) {
	heading(w, "Columns")
	for i, c := range t.Columns() {
		fmt.Fprintf(w, "%3d  %s.%s\n", i, c.Node.Alias, c.Attr)
	}
}

// PrintRecords writes records as indented JSON.
func PrintRecords(w io.Writer, records []*core.Record) error {
	if records == nil {
		records = []*core.Record{}
	}
	out, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// PrintPlan writes an EXPLAIN summary, flagging full scans.
func PrintPlan(w io.Writer, p *analyzer.Plan) {
	heading(w, "Plan ("+p.Database+")")
	if p.Cost > 0 || p.EstimatedRows > 0 {
		fmt.Fprintf(w, "cost %.2f, estimated rows %d\n", p.Cost, p.EstimatedRows)
	}
	for _, a := range p.Accesses {
		name := a.Table
		if a.Alias != "" {
			name += " AS " + a.Alias
		}
		switch {
		case a.FullScan:
			_, _ = warnColor.Fprintf(w, "  %-30s full scan\n", name)
		case a.Index != "":
			fmt.Fprintf(w, "  %-30s index %s\n", name, a.Index)
		default:
			fmt.Fprintf(w, "  %s\n", name)
		}
	}
}

// PrintSchema writes every entity with its attributes and relations.
func PrintSchema(w io.Writer, reg *schema.Registry) {
	for _, e := range reg.Entities() {
		heading(w, fmt.Sprintf("%s (%s)", e.Name, e.Table))
		attrs := make([]string, 0, len(e.Attributes))
		for _, a := range e.Attributes {
			if a.Type != "" {
				attrs = append(attrs, a.Name+":"+string(a.Type))
			} else {
				attrs = append(attrs, a.Name)
			}
		}
		fmt.Fprintf(w, "  attributes: %s\n", strings.Join(attrs, ", "))
		for _, r := range reg.Relations(e.Name) {
			fmt.Fprintf(w, "  %-12s %-16s -> %s ", r.Kind, r.Name, r.Related.Name)
			_, _ = dimColor.Fprintf(w, "(fk %s, key %s)", r.ForeignKey, r.RelatedKey)
			fmt.Fprintln(w)
		}
	}
}

// PrintHealth writes the connection status and one line per entity table.
func PrintHealth(w io.Writer, r core.HealthReport) {
	heading(w, "Health")
	if r.Ping != nil {
		_, _ = warnColor.Fprintf(w, "  %-20s %v\n", "connection", r.Ping)
		return
	}
	fmt.Fprintf(w, "  %-20s ok\n", "connection")

	names := make([]string, 0, len(r.Tables))
	for name := range r.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := r.Tables[name]; err != nil {
			_, _ = warnColor.Fprintf(w, "  %-20s %v\n", name, err)
			continue
		}
		fmt.Fprintf(w, "  %-20s ok\n", name)
	}
}
