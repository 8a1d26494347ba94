package core

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/coregx/eager/internal/dialects"
	"github.com/coregx/eager/internal/schema"
)

// CompiledQuery is an immutable statement with its bind parameters and the
// include tree needed to hydrate its rows.
type CompiledQuery struct {
	sql        string
	params     []interface{}
	paramAttrs []string
	tree       *Tree
	count      bool
}

// SQL returns the statement text.
func (q *CompiledQuery) SQL() string {
	return q.sql
}

// Params returns a copy of the bind parameters in placeholder order.
func (q *CompiledQuery) Params() []interface{} {
	out := make([]interface{}, len(q.params))
	copy(out, q.params)
	return out
}

// ParamAttributes returns the attribute name behind each parameter.
func (q *CompiledQuery) ParamAttributes() []string {
	out := make([]string, len(q.paramAttrs))
	copy(out, q.paramAttrs)
	return out
}

// Tree returns the include tree the query was compiled from.
func (q *CompiledQuery) Tree() *Tree {
	return q.tree
}

// IsCount reports whether the query is a count statement.
func (q *CompiledQuery) IsCount() bool {
	return q.count
}

// String returns the SQL text.
func (q *CompiledQuery) String() string {
	return q.sql
}

// Order sorts by an attribute of the root (empty Alias) or of an include
// node addressed by its alias.
type Order struct {
	Alias string
	Attr  string
	Desc  bool
}

// Asc orders by a root attribute ascending.
func Asc(attr string) Order {
	return Order{Attr: attr}
}

// Desc orders by a root attribute descending.
func Desc(attr string) Order {
	return Order{Attr: attr, Desc: true}
}

type emitter struct {
	dialect dialects.Dialect
	tree    *Tree
	sb      strings.Builder
	params  []interface{}
	attrs   []string
}

func newEmitter(d dialects.Dialect, t *Tree) *emitter {
	return &emitter{dialect: d, tree: t}
}

func (e *emitter) quote(s string) string {
	return e.dialect.QuoteIdentifier(s)
}

func (e *emitter) column(alias, attr string) string {
	return e.quote(alias) + "." + e.quote(attr)
}

func (e *emitter) bind(f compiledFilter) {
	e.params = append(e.params, f.args...)
	e.attrs = append(e.attrs, f.attrs...)
}

func (e *emitter) finish(count bool) *CompiledQuery {
	sql := e.sb.String()
	if dialects.Numbered(e.dialect) {
		sql = renumberPlaceholders(sql)
	}
	return &CompiledQuery{
		sql:        sql,
		params:     e.params,
		paramAttrs: e.attrs,
		tree:       e.tree,
		count:      count,
	}
}

type pagination struct {
	order  []Order
	limit  int
	offset int
}

func (p pagination) paginated() bool {
	return p.limit > 0 || p.offset > 0
}

// emitFind renders the find statement.
func emitFind(d dialects.Dialect, t *Tree, plan findPlan, page pagination) (*CompiledQuery, error) {
	e := newEmitter(d, t)
	root := t.Root

	e.sb.WriteString("SELECT ")
	e.selectList()
	e.sb.WriteString(" FROM ")

	if plan.derived != nil {
		e.sb.WriteString("(")
		if err := e.derivedRoot(plan.derived, page); err != nil {
			return nil, err
		}
		e.sb.WriteString(") AS ")
		e.sb.WriteString(e.quote(root.Alias))
	} else {
		e.from()
	}

	for _, j := range plan.joins {
		e.join(j)
	}

	var where []compiledFilter
	if plan.derived == nil {
		where = append(where, root.where)
	}
	for _, j := range plan.joins {
		where = append(where, j.node.where)
	}
	e.where(where)

	if err := e.orderBy(page.order, false); err != nil {
		return nil, err
	}
	if plan.derived == nil {
		e.limit(page)
	}
	return e.finish(false), nil
}

// derivedRoot renders the inner select of a paginated fan-out find.
func (e *emitter) derivedRoot(d *derivedRoot, page pagination) error {
	root := e.tree.Root
	e.sb.WriteString("SELECT ")
	if d.distinct {
		e.sb.WriteString("DISTINCT ")
	}
	// Both ORDER BY clauses read root columns from this select.
	attrs := append([]string(nil), root.Attributes...)
	for _, o := range page.order {
		n, err := e.orderNode(o)
		if err != nil {
			return err
		}
		if n.IsRoot() && !slices.Contains(attrs, o.Attr) {
			attrs = append(attrs, o.Attr)
		}
	}
	for i, attr := range attrs {
		if i > 0 {
			e.sb.WriteString(", ")
		}
		e.sb.WriteString(e.column(root.Alias, attr))
	}
	e.sb.WriteString(" FROM ")
	e.from()
	for _, j := range d.joins {
		e.join(j)
	}

	where := []compiledFilter{root.where}
	for _, j := range d.joins {
		where = append(where, j.node.where)
	}
	e.where(where)

	if err := e.orderBy(page.order, true); err != nil {
		return err
	}
	e.limit(page)
	return nil
}

// emitCount renders the count statement.
func emitCount(d dialects.Dialect, t *Tree, plan countPlan) *CompiledQuery {
	e := newEmitter(d, t)
	root := t.Root

	if plan.distinct {
		e.sb.WriteString("SELECT COUNT(DISTINCT ")
		e.sb.WriteString(e.column(root.Alias, root.Entity.PrimaryKey))
		e.sb.WriteString(") AS ")
	} else {
		e.sb.WriteString("SELECT COUNT(*) AS ")
	}
	e.sb.WriteString(e.quote("count"))
	e.sb.WriteString(" FROM ")
	e.from()

	where := []compiledFilter{root.where}
	for _, j := range plan.joins {
		e.join(j)
		where = append(where, j.node.where)
	}
	e.where(where)
	return e.finish(true)
}

// selectList writes bare root columns when nothing is included, qualified
// root columns and aliased include columns otherwise.
func (e *emitter) selectList() {
	bare := !e.tree.HasIncludes()
	for i, c := range e.tree.columns {
		if i > 0 {
			e.sb.WriteString(", ")
		}
		switch {
		case bare:
			e.sb.WriteString(e.quote(c.Attr))
		case c.Node.IsRoot():
			e.sb.WriteString(e.column(c.Node.Alias, c.Attr))
		default:
			e.sb.WriteString(e.column(c.Node.Alias, c.Attr))
			e.sb.WriteString(" AS ")
			e.sb.WriteString(e.quote(c.Node.Alias + "." + c.Attr))
		}
	}
}

func (e *emitter) from() {
	root := e.tree.Root
	e.sb.WriteString(e.quote(root.Entity.Table))
	e.sb.WriteString(" AS ")
	e.sb.WriteString(e.quote(root.Alias))
}

func (e *emitter) join(j join) {
	n := j.node
	rel := n.Relation

	e.sb.WriteString(" ")
	e.sb.WriteString(j.kind.String())
	e.sb.WriteString(" ")
	e.sb.WriteString(e.quote(n.Entity.Table))
	e.sb.WriteString(" AS ")
	e.sb.WriteString(e.quote(n.Alias))
	e.sb.WriteString(" ON ")

	if rel.Kind == schema.BelongsTo {
		e.sb.WriteString(e.column(n.Alias, rel.RelatedKey))
		e.sb.WriteString(" = ")
		e.sb.WriteString(e.column(n.Parent.Alias, rel.ForeignKey))
		return
	}
	e.sb.WriteString(e.column(n.Alias, rel.ForeignKey))
	e.sb.WriteString(" = ")
	e.sb.WriteString(e.column(n.Parent.Alias, rel.RelatedKey))
}

func (e *emitter) where(filters []compiledFilter) {
	first := true
	for _, f := range filters {
		if f.sql == "" {
			continue
		}
		if first {
			e.sb.WriteString(" WHERE ")
			first = false
		} else {
			e.sb.WriteString(" AND ")
		}
		e.sb.WriteString(f.sql)
		e.bind(f)
	}
}

// orderBy writes the ORDER BY clause. rootOnly restricts it to root
// attributes, as needed inside a derived root table.
func (e *emitter) orderBy(order []Order, rootOnly bool) error {
	first := true
	for _, o := range order {
		n, err := e.orderNode(o)
		if err != nil {
			return err
		}
		if rootOnly && !n.IsRoot() {
			continue
		}
		if first {
			e.sb.WriteString(" ORDER BY ")
			first = false
		} else {
			e.sb.WriteString(", ")
		}
		e.sb.WriteString(e.column(n.Alias, o.Attr))
		if o.Desc {
			e.sb.WriteString(" DESC")
		} else {
			e.sb.WriteString(" ASC")
		}
	}
	return nil
}

func (e *emitter) orderNode(o Order) (*Node, error) {
	var node *Node
	if o.Alias == "" || o.Alias == e.tree.Root.Alias {
		node = e.tree.Root
	} else {
		for _, n := range e.tree.nodes {
			if n.Alias == o.Alias {
				node = n
				break
			}
		}
	}
	if node == nil {
		return nil, fmt.Errorf("%w: order by unknown alias %q", ErrMalformedFilter, o.Alias)
	}
	if !node.Entity.HasAttribute(o.Attr) {
		return nil, fmt.Errorf("%w: order by %s has no attribute %q", ErrMalformedFilter, node.Entity.Name, o.Attr)
	}
	return node, nil
}

// limit writes LIMIT/OFFSET. An offset without a limit still needs a LIMIT
// in MySQL and SQLite, so the largest signed value is used.
func (e *emitter) limit(p pagination) {
	switch {
	case p.limit > 0:
		e.sb.WriteString(" LIMIT ")
		e.sb.WriteString(strconv.Itoa(p.limit))
	case p.offset > 0:
		e.sb.WriteString(" LIMIT ")
		e.sb.WriteString(strconv.FormatInt(math.MaxInt64, 10))
	}
	if p.offset > 0 {
		e.sb.WriteString(" OFFSET ")
		e.sb.WriteString(strconv.Itoa(p.offset))
	}
}
