package core

import (
	"github.com/coregx/eager/internal/dialects"
)

// FindOptions describes a find query.
type FindOptions struct {
	// Entity is the root entity name.
	Entity string
	// Where filters root rows.
	Where Filter
	// Include lists the relations to eager-load.
	Include []Include
	// Attributes limits the root columns. The primary key is always selected.
	Attributes []string
	// Order sorts the result.
	Order []Order
	// Limit caps the number of root entities; zero means no limit.
	Limit int
	// Offset skips root entities.
	Offset int
}

// CountOptions describes a count query.
type CountOptions struct {
	Entity  string
	Where   Filter
	Include []Include
}

// Compiler turns find and count options into SQL. It holds no mutable
// state and is safe for concurrent use.
type Compiler struct {
	provider Provider
	dialect  dialects.Dialect
}

// CompilerOption configures a Compiler.
type CompilerOption func(*Compiler)

// WithCompilerDialect sets the dialect used for quoting and placeholders.
func WithCompilerDialect(d dialects.Dialect) CompilerOption {
	return func(c *Compiler) {
		if d != nil {
			c.dialect = d
		}
	}
}

// NewCompiler creates a compiler for the given schema. MySQL quoting is
// used unless another dialect is configured.
func NewCompiler(p Provider, opts ...CompilerOption) *Compiler {
	c := &Compiler{
		provider: p,
		dialect:  dialects.GetDialect(dialects.Default),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dialect returns the compiler's dialect.
func (c *Compiler) Dialect() dialects.Dialect {
	return c.dialect
}

// CompileFind compiles a find query.
//
// Example:
//
//	q, err := compiler.CompileFind(eager.FindOptions{
//	    Entity:  "Authors",
//	    Where:   eager.Eq("id", 1),
//	    Include: []eager.Include{{Relation: "books"}},
//	})
func (c *Compiler) CompileFind(opts FindOptions) (*CompiledQuery, error) {
	tree, err := buildTree(c.provider, c.dialect, opts.Entity, opts.Where, opts.Attributes, opts.Include)
	if err != nil {
		return nil, err
	}

	page := pagination{order: opts.Order, limit: opts.Limit, offset: opts.Offset}
	return emitFind(c.dialect, tree, planFind(tree, page.paginated()), page)
}

// CompileCount compiles a count of the distinct root entities a find with
// the same filter and includes would return.
func (c *Compiler) CompileCount(opts CountOptions) (*CompiledQuery, error) {
	tree, err := buildTree(c.provider, c.dialect, opts.Entity, opts.Where, nil, opts.Include)
	if err != nil {
		return nil, err
	}
	return emitCount(c.dialect, tree, planCount(tree)), nil
}
