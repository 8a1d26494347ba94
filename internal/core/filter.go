package core

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/coregx/eager/internal/dialects"
	"github.com/coregx/eager/internal/schema"
)

// Filter is a predicate over the attributes of one include node (or the root).
// Filters are compiled against a table alias; parameters are appended in
// pre-order, left-to-right traversal order.
//
// Example:
//
//	eager.And(
//	    eager.Eq("status", 1),
//	    eager.Or(eager.GreaterThan("year", 1900), eager.Eq("year", nil)),
//	)
type Filter interface {
	compile(c *filterCompiler) (string, error)
}

// Operator is a comparison operator accepted by Op.
type Operator string

// Supported operators.
const (
	OpEq   Operator = "="
	OpNe   Operator = "!="
	OpLt   Operator = "<"
	OpLte  Operator = "<="
	OpGt   Operator = ">"
	OpGte  Operator = ">="
	OpIn   Operator = "in"
	OpLike Operator = "like"
)

// operatorAliases maps accepted spellings onto supported operators.
var operatorAliases = map[string]Operator{
	"=": OpEq, "eq": OpEq,
	"!=": OpNe, "<>": OpNe, "ne": OpNe,
	"<": OpLt, "lt": OpLt,
	"<=": OpLte, "lte": OpLte,
	">": OpGt, "gt": OpGt,
	">=": OpGte, "gte": OpGte,
	"in":   OpIn,
	"like": OpLike,
}

// ParseOperator resolves an operator spelling ("=", "gte", "LIKE", ...).
func ParseOperator(s string) (Operator, error) {
	if op, ok := operatorAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return op, nil
	}
	return "", fmt.Errorf("%w: unsupported operator %q", ErrMalformedFilter, s)
}

// filterCompiler accumulates bind parameters while a filter tree is rendered.
type filterCompiler struct {
	alias   string
	entity  *schema.Entity
	dialect dialects.Dialect
	args    []interface{}
	attrs   []string
}

// compiledFilter is the rendered form of a filter for one node.
type compiledFilter struct {
	sql   string
	args  []interface{}
	attrs []string // attribute behind each arg
}

// compileFilter renders f against the given alias. A nil filter renders as the empty string.
func compileFilter(f Filter, alias string, entity *schema.Entity, d dialects.Dialect) (compiledFilter, error) {
	if f == nil {
		return compiledFilter{}, nil
	}
	c := &filterCompiler{alias: alias, entity: entity, dialect: d}
	sql, err := f.compile(c)
	if err != nil {
		return compiledFilter{}, err
	}
	return compiledFilter{sql: sql, args: c.args, attrs: c.attrs}, nil
}

func (c *filterCompiler) column(attr string) (string, error) {
	if !c.entity.HasAttribute(attr) {
		return "", fmt.Errorf("%w: %s has no attribute %q", ErrMalformedFilter, c.entity.Name, attr)
	}
	return c.dialect.QuoteIdentifier(c.alias) + "." + c.dialect.QuoteIdentifier(attr), nil
}

func (c *filterCompiler) bind(attr string, v interface{}) {
	c.args = append(c.args, v)
	c.attrs = append(c.attrs, attr)
}

// CompareExp compares one attribute with a value.
type CompareExp struct {
	Attr  string
	Op    Operator
	Value interface{}
}

// Eq generates an equality expression (attr = value).
// If value is nil, generates "attr IS NULL" instead.
func Eq(attr string, value interface{}) Filter {
	return &CompareExp{Attr: attr, Op: OpEq, Value: value}
}

// NotEq generates an inequality expression (attr != value).
// If value is nil, generates "attr IS NOT NULL" instead.
func NotEq(attr string, value interface{}) Filter {
	return &CompareExp{Attr: attr, Op: OpNe, Value: value}
}

// LessThan generates attr < value.
func LessThan(attr string, value interface{}) Filter {
	return &CompareExp{Attr: attr, Op: OpLt, Value: value}
}

// LessOrEqual generates attr <= value.
func LessOrEqual(attr string, value interface{}) Filter {
	return &CompareExp{Attr: attr, Op: OpLte, Value: value}
}

// GreaterThan generates attr > value.
func GreaterThan(attr string, value interface{}) Filter {
	return &CompareExp{Attr: attr, Op: OpGt, Value: value}
}

// GreaterOrEqual generates attr >= value.
func GreaterOrEqual(attr string, value interface{}) Filter {
	return &CompareExp{Attr: attr, Op: OpGte, Value: value}
}

// In generates attr IN (v1, v2, ...). An empty list never matches.
func In(attr string, values ...interface{}) Filter {
	return &CompareExp{Attr: attr, Op: OpIn, Value: values}
}

// Like generates attr LIKE pattern. The pattern is bound as-is.
func Like(attr, pattern string) Filter {
	return &CompareExp{Attr: attr, Op: OpLike, Value: pattern}
}

// Op generates a comparison with an operator given by name.
// Unsupported operators fail at compile time with ErrMalformedFilter.
func Op(attr, op string, value interface{}) Filter {
	if parsed, err := ParseOperator(op); err == nil {
		return &CompareExp{Attr: attr, Op: parsed, Value: value}
	}
	return &CompareExp{Attr: attr, Op: Operator(op), Value: value}
}

func (e *CompareExp) compile(c *filterCompiler) (string, error) {
	col, err := c.column(e.Attr)
	if err != nil {
		return "", err
	}

	switch e.Op {
	case OpEq, OpNe:
		if e.Value == nil {
			if e.Op == OpEq {
				return col + " IS NULL", nil
			}
			return col + " IS NOT NULL", nil
		}
	case OpLt, OpLte, OpGt, OpGte, OpLike:
		if e.Value == nil {
			return "", fmt.Errorf("%w: %s %s NULL", ErrMalformedFilter, e.Attr, e.Op)
		}
	case OpIn:
		return e.compileIn(c, col)
	default:
		return "", fmt.Errorf("%w: unsupported operator %q", ErrMalformedFilter, string(e.Op))
	}

	c.bind(e.Attr, e.Value)
	if e.Op == OpLike {
		return col + " LIKE ?", nil
	}
	return col + " " + string(e.Op) + " ?", nil
}

func (e *CompareExp) compileIn(c *filterCompiler, col string) (string, error) {
	rv := reflect.ValueOf(e.Value)
	if e.Value == nil || rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Uint8 {
		return "", fmt.Errorf("%w: %s in expects a list, got %T", ErrMalformedFilter, e.Attr, e.Value)
	}
	if rv.Len() == 0 {
		return "0=1", nil
	}

	placeholders := make([]string, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		v := rv.Index(i).Interface()
		if v == nil {
			placeholders[i] = "NULL"
			continue
		}
		placeholders[i] = "?"
		c.bind(e.Attr, v)
	}
	return col + " IN (" + strings.Join(placeholders, ", ") + ")", nil
}

// AndOrExp combines filters with AND or OR.
type AndOrExp struct {
	Exps []Filter
	Op   string // "AND" or "OR"
}

// And generates a conjunction. Nil filters are skipped; an empty
// conjunction renders nothing.
func And(exps ...Filter) Filter {
	return &AndOrExp{Exps: exps, Op: "AND"}
}

// Or generates a disjunction. Nil filters are skipped.
func Or(exps ...Filter) Filter {
	return &AndOrExp{Exps: exps, Op: "OR"}
}

func (e *AndOrExp) compile(c *filterCompiler) (string, error) {
	parts := make([]string, 0, len(e.Exps))
	for _, exp := range e.Exps {
		if exp == nil {
			continue
		}
		sql, err := exp.compile(c)
		if err != nil {
			return "", err
		}
		if sql != "" {
			parts = append(parts, sql)
		}
	}

	switch len(parts) {
	case 0:
		return "", nil
	case 1:
		return parts[0], nil
	}
	return "(" + strings.Join(parts, " "+e.Op+" ") + ")", nil
}

// HashExp is a flat attribute → value mapping combined with AND.
// Keys are sorted so the generated SQL is deterministic.
//
// Special value handling:
//   - nil → "attr IS NULL"
//   - any slice except []byte → "attr IN (...)"
//   - anything else → "attr = ?"
type HashExp map[string]interface{}

func (e HashExp) compile(c *filterCompiler) (string, error) {
	if len(e) == 0 {
		return "", nil
	}
	keys := getKeys(e)
	exps := make([]Filter, len(keys))
	for i, k := range keys {
		if list, ok := toList(e[k]).([]interface{}); ok {
			exps[i] = In(k, list...)
			continue
		}
		exps[i] = Eq(k, e[k])
	}
	return And(exps...).compile(c)
}
