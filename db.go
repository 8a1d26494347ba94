// Package eager compiles eager-load requests over a registered schema into a
// single SQL SELECT with joins, runs it, and folds the flat result rows back
// into nested records. Required includes become INNER joins, optional ones
// LEFT OUTER joins, and counts honor the same required chains as finds.
package eager

import (
	"github.com/coregx/eager/internal/cache"
	"github.com/coregx/eager/internal/core"
	"github.com/coregx/eager/internal/logger"
	"github.com/coregx/eager/internal/schema"
	"github.com/coregx/eager/internal/tracer"
)

type (
	// DB runs compiled queries with statement caching, logging and tracing.
	DB = core.DB
	// Option is a functional option for configuring DB.
	Option = core.Option
	// Tx represents a database transaction.
	Tx = core.Tx
	// TxOptions represents transaction options including isolation level.
	TxOptions = core.TxOptions

	// Compiler turns find and count requests into SQL.
	Compiler = core.Compiler
	// CompilerOption configures a Compiler.
	CompilerOption = core.CompilerOption
	// FindOptions describes a find request.
	FindOptions = core.FindOptions
	// CountOptions describes a count request.
	CountOptions = core.CountOptions
	// CompiledQuery is the SQL text, parameters and column layout of a request.
	CompiledQuery = core.CompiledQuery
	// FindQuery builds and runs a find.
	FindQuery = core.FindQuery
	// CountQuery builds and runs a count.
	CountQuery = core.CountQuery
	// Include requests a related entity.
	Include = core.Include
	// Order is one ORDER BY term.
	Order = core.Order
	// Tree is the include tree of a compiled query.
	Tree = core.Tree
	// Node is one entity in an include tree.
	Node = core.Node
	// Record is a hydrated entity.
	Record = core.Record
	// Plan is the EXPLAIN summary of a compiled query.
	Plan = core.Plan
	// DriverError wraps an error returned by the database driver.
	DriverError = core.DriverError
	// QueryEvent describes one executed query.
	QueryEvent = core.QueryEvent
	// HealthReport is the outcome of DB.CheckHealth.
	HealthReport = core.HealthReport
	// QueryHook observes executed queries.
	QueryHook = core.QueryHook

	// Filter is a condition on one entity's attributes.
	Filter = core.Filter
	// Operator is a comparison operator.
	Operator = core.Operator
	// CompareExp compares one attribute with a value.
	CompareExp = core.CompareExp
	// AndOrExp combines filters with AND or OR.
	AndOrExp = core.AndOrExp
	// HashExp is an attribute to value map combined with AND.
	HashExp = core.HashExp

	// Registry holds entities and relations.
	Registry = schema.Registry
	// Entity describes one table.
	Entity = schema.Entity
	// Attribute is one entity column.
	Attribute = schema.Attribute
	// Relation links two entities.
	Relation = schema.Relation
	// RelationKind is has-one, has-many or belongs-to.
	RelationKind = schema.RelationKind

	// Logger is the structured logging interface used by DB.
	Logger = logger.Logger
	// Tracer starts spans for executed queries.
	Tracer = tracer.Tracer
	// Invalidator is notified by DB.Invalidate.
	Invalidator = cache.Invalidator
)

// Relation kinds.
const (
	HasOne    = schema.HasOne
	HasMany   = schema.HasMany
	BelongsTo = schema.BelongsTo
)

// Errors.
var (
	ErrNoRows          = core.ErrNoRows
	ErrUnknownEntity   = core.ErrUnknownEntity
	ErrUnknownRelation = core.ErrUnknownRelation
	ErrMalformedFilter = core.ErrMalformedFilter
	ErrAliasCollision  = core.ErrAliasCollision
	ErrRowShape        = core.ErrRowShape
	ErrInvalidSchema   = schema.ErrInvalidSchema
)

// Re-export core functions.
var (
	Open   = core.Open
	NewDB  = core.NewDB
	WrapDB = core.WrapDB

	WithMaxOpenConns      = core.WithMaxOpenConns
	WithMaxIdleConns      = core.WithMaxIdleConns
	WithStmtCacheCapacity = core.WithStmtCacheCapacity
	WithLogger            = core.WithLogger
	WithTracer            = core.WithTracer
	WithDialect           = core.WithDialect
	WithInvalidator       = core.WithInvalidator
	WithSensitiveFields   = core.WithSensitiveFields
	WithHealthCheck       = core.WithHealthCheck
	WithQueryHook         = core.WithQueryHook

	NewCompiler         = core.NewCompiler
	WithCompilerDialect = core.WithCompilerDialect
	Hydrate             = core.Hydrate
	HydrateOne          = core.HydrateOne

	Asc  = core.Asc
	Desc = core.Desc

	// Filter builders
	Eq             = core.Eq
	NotEq          = core.NotEq
	LessThan       = core.LessThan
	LessOrEqual    = core.LessOrEqual
	GreaterThan    = core.GreaterThan
	GreaterOrEqual = core.GreaterOrEqual
	In             = core.In
	Like           = core.Like
	Op             = core.Op
	And            = core.And
	Or             = core.Or
	ParseFilter    = core.ParseFilter
	ParseOperator  = core.ParseOperator

	// Schema
	NewRegistry    = schema.NewRegistry
	LoadFile       = schema.LoadFile
	LoadYAML       = schema.LoadYAML
	WithForeignKey = schema.WithForeignKey
	WithRelatedKey = schema.WithRelatedKey
	As             = schema.As

	// Ambient collaborators
	NewSlogAdapter      = logger.NewSlogAdapter
	NewOtelTracer       = tracer.NewOtelTracer
	NewRedisInvalidator = cache.NewRedisInvalidator
)
