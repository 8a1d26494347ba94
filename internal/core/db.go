// Package core compiles eager-load find and count queries, executes them
// through database/sql and hydrates the flat rows into nested records.
package core

import (
	"context"
	"database/sql"
	"time"

	"github.com/coregx/eager/internal/cache"
	"github.com/coregx/eager/internal/dialects"
	"github.com/coregx/eager/internal/logger"
	"github.com/coregx/eager/internal/tracer"
)

// DB executes compiled queries against a database/sql connection pool.
type DB struct {
	sqlDB       *sql.DB
	driverName  string
	provider    Provider
	dialect     dialects.Dialect
	compiler    *Compiler
	stmtCache   *cache.StmtCache
	logger      logger.Logger
	sanitizer   *logger.Sanitizer
	tracer      tracer.Tracer
	invalidator cache.Invalidator
	queryHook   QueryHook
	ctx         context.Context

	healthInterval time.Duration
	health         *healthChecker
}

// Tx runs find and count queries inside a database transaction.
type Tx struct {
	tx  *sql.Tx
	db  *DB
	ctx context.Context
}

// TxOptions represents transaction options including isolation level.
type TxOptions struct {
	Isolation sql.IsolationLevel
	ReadOnly  bool
}

// Option is a functional option for configuring DB.
type Option func(*DB)

// WithMaxOpenConns sets the maximum number of open connections.
func WithMaxOpenConns(n int) Option {
	return func(db *DB) {
		db.sqlDB.SetMaxOpenConns(n)
	}
}

// WithMaxIdleConns sets the maximum number of idle connections.
func WithMaxIdleConns(n int) Option {
	return func(db *DB) {
		db.sqlDB.SetMaxIdleConns(n)
	}
}

// WithStmtCacheCapacity sets the prepared statement cache capacity.
func WithStmtCacheCapacity(capacity int) Option {
	return func(db *DB) {
		db.stmtCache = cache.NewStmtCacheWithCapacity(capacity)
	}
}

// WithLogger enables logging of executed queries. Bound parameters are
// masked according to the configured sensitive fields.
func WithLogger(l logger.Logger) Option {
	return func(db *DB) {
		if l == nil {
			l = &logger.NoopLogger{}
		}
		db.logger = l
	}
}

// WithTracer enables tracing of executed queries.
func WithTracer(t tracer.Tracer) Option {
	return func(db *DB) {
		if t == nil {
			t = &tracer.NoopTracer{}
		}
		db.tracer = t
	}
}

// WithDialect overrides the dialect derived from the driver name. Unknown
// names are ignored.
func WithDialect(name string) Option {
	return func(db *DB) {
		if d, ok := dialects.Lookup(name); ok {
			db.dialect = d
		}
	}
}

// WithInvalidator sets the collaborator notified by Invalidate.
func WithInvalidator(inv cache.Invalidator) Option {
	return func(db *DB) {
		if inv == nil {
			inv = cache.NoopInvalidator{}
		}
		db.invalidator = inv
	}
}

// WithSensitiveFields replaces the attribute name fragments whose bound
// values are masked in logs.
func WithSensitiveFields(fields ...string) Option {
	return func(db *DB) {
		db.sanitizer = logger.NewSanitizer(fields)
	}
}

// NewDB creates a new DB instance.
func NewDB(driverName, dsn string, p Provider) (*DB, error) {
	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	return newDB(sqlDB, driverName, p), nil
}

// Open creates a new DB instance with options.
func Open(driverName, dsn string, p Provider, opts ...Option) (*DB, error) {
	db, err := NewDB(driverName, dsn, p)
	if err != nil {
		return nil, err
	}
	db.apply(opts)
	return db, nil
}

// WrapDB wraps an existing *sql.DB. Close closes the wrapped pool as well.
func WrapDB(sqlDB *sql.DB, driverName string, p Provider, opts ...Option) *DB {
	db := newDB(sqlDB, driverName, p)
	db.apply(opts)
	return db
}

func newDB(sqlDB *sql.DB, driverName string, p Provider) *DB {
	dialect, ok := dialects.Lookup(driverName)
	if !ok {
		dialect = dialects.GetDialect(dialects.Default)
	}
	return &DB{
		sqlDB:       sqlDB,
		driverName:  driverName,
		provider:    p,
		dialect:     dialect,
		stmtCache:   cache.NewStmtCache(),
		logger:      &logger.NoopLogger{},
		sanitizer:   logger.NewSanitizer(nil),
		tracer:      &tracer.NoopTracer{},
		invalidator: cache.NoopInvalidator{},
	}
}

func (db *DB) apply(opts []Option) {
	for _, opt := range opts {
		opt(db)
	}
	db.compiler = NewCompiler(db.provider, WithCompilerDialect(db.dialect))
	if db.healthInterval > 0 && db.health == nil {
		db.health = newHealthChecker(db.CheckHealth, db.logger, db.healthInterval)
		db.health.start()
	}
}

// Close releases all database resources.
func (db *DB) Close() error {
	if db.health != nil {
		db.health.shutdown()
		db.health = nil
	}
	db.stmtCache.Clear()
	return db.sqlDB.Close()
}

// WithContext returns a new DB with the given context.
func (db *DB) WithContext(ctx context.Context) *DB {
	newDB := *db
	newDB.ctx = ctx
	return &newDB
}

// Compiler returns the compiler used for this database's dialect.
func (db *DB) Compiler() *Compiler {
	return db.compiler
}

// DriverName returns the driver the DB was opened with.
func (db *DB) DriverName() string {
	return db.driverName
}

// SQLDB returns the underlying connection pool.
func (db *DB) SQLDB() *sql.DB {
	return db.sqlDB
}

// StmtCacheStats returns prepared statement cache statistics.
func (db *DB) StmtCacheStats() cache.Stats {
	return db.stmtCache.Stats()
}

// Find starts a find query on the named root entity.
func (db *DB) Find(entity string) *FindQuery {
	return newFindQuery(db, nil, db.ctx, entity)
}

// FindByID starts a find query matching one root entity by primary key.
func (db *DB) FindByID(entity string, id interface{}) *FindQuery {
	return newFindQuery(db, nil, db.ctx, entity).byID(id)
}

// FindWith starts a find query from prepared options.
func (db *DB) FindWith(opts FindOptions) *FindQuery {
	fq := newFindQuery(db, nil, db.ctx, opts.Entity)
	fq.opts = opts
	return fq
}

// CountWith starts a count query from prepared options.
func (db *DB) CountWith(opts CountOptions) *CountQuery {
	cq := newCountQuery(db, nil, db.ctx, opts.Entity)
	cq.opts = opts
	return cq
}

// Count starts a count query on the named root entity.
func (db *DB) Count(entity string) *CountQuery {
	return newCountQuery(db, nil, db.ctx, entity)
}

// Invalidate notifies the configured invalidator that rows of the entity's
// table changed. It is meant to be called by the write path.
func (db *DB) Invalidate(ctx context.Context, entity string) error {
	e, err := db.provider.Entity(entity)
	if err != nil {
		return err
	}
	if err := db.invalidator.Invalidate(ctx, e.Table); err != nil {
		db.logger.Warn("cache invalidation failed",
			"table", e.Table,
			"error", err,
		)
		return err
	}
	db.logger.Debug("cache invalidated", "table", e.Table)
	return nil
}

// Begin starts a transaction with default options.
func (db *DB) Begin(ctx context.Context) (*Tx, error) {
	return db.BeginTx(ctx, nil)
}

// BeginTx starts a transaction with specified options.
func (db *DB) BeginTx(ctx context.Context, opts *TxOptions) (*Tx, error) {
	var sqlOpts *sql.TxOptions
	if opts != nil {
		sqlOpts = &sql.TxOptions{
			Isolation: opts.Isolation,
			ReadOnly:  opts.ReadOnly,
		}
	}

	tx, err := db.sqlDB.BeginTx(ctx, sqlOpts)
	if err != nil {
		return nil, newDriverError("begin", "", err)
	}
	return &Tx{tx: tx, db: db, ctx: ctx}, nil
}

// Find starts a find query executed inside the transaction.
func (tx *Tx) Find(entity string) *FindQuery {
	return newFindQuery(tx.db, tx.tx, tx.ctx, entity)
}

// Count starts a count query executed inside the transaction.
func (tx *Tx) Count(entity string) *CountQuery {
	return newCountQuery(tx.db, tx.tx, tx.ctx, entity)
}

// Commit commits the transaction.
func (tx *Tx) Commit() error {
	return WrapError(tx.tx.Commit(), "commit transaction")
}

// Rollback rolls back the transaction.
func (tx *Tx) Rollback() error {
	return WrapError(tx.tx.Rollback(), "rollback transaction")
}

// ExecContext executes a raw statement. It is not part of the eager-load
// path and is provided for schema setup and the write path.
func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return db.sqlDB.ExecContext(ctx, query, args...)
}
