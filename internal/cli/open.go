package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/afero"

	"github.com/coregx/eager/internal/core"
	"github.com/coregx/eager/internal/dialects"
	"github.com/coregx/eager/internal/logger"
	"github.com/coregx/eager/internal/schema"
)

// LoadSchema reads the schema file named by the config.
func LoadSchema(fs afero.Fs, cfg *Config) (*schema.Registry, error) {
	f, err := fs.Open(cfg.Schema)
	if err != nil {
		return nil, SchemaError("opening schema", err)
	}
	defer func() { _ = f.Close() }()

	reg, err := schema.LoadYAML(f)
	if err != nil {
		return nil, SchemaError("loading schema "+cfg.Schema, err)
	}
	return reg, nil
}

// NewLogger builds the query logger described by cfg, writing to w.
func NewLogger(cfg LogConfig, w io.Writer) (logger.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		h = slog.NewTextHandler(w, opts)
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("log.format: unknown format %q", cfg.Format)
	}
	return logger.NewSlogAdapter(slog.New(h)), nil
}

// Sanitizer returns the parameter sanitizer configured by cfg.
func (c *Config) Sanitizer() *logger.Sanitizer {
	return logger.NewSanitizer(c.SensitiveFields)
}

// NewCompiler returns a compiler for the configured dialect, which is
// database.dialect when set and database.driver otherwise.
func (c *Config) NewCompiler(reg *schema.Registry) (*core.Compiler, error) {
	name := c.Database.Dialect
	if name == "" {
		name = c.Database.Driver
	}
	d, ok := dialects.Lookup(name)
	if !ok {
		return nil, ConfigError(fmt.Sprintf("unknown dialect %q", name), nil)
	}
	return core.NewCompiler(reg, core.WithCompilerDialect(d)), nil
}

// OpenDB connects to the configured database.
func OpenDB(cfg *Config, reg *schema.Registry, logw io.Writer) (*core.DB, error) {
	if cfg.Database.DSN == "" {
		return nil, ConfigError("database.dsn is required (set EAGER_DATABASE_DSN or database.dsn)", nil)
	}
	log, err := NewLogger(cfg.Log, logw)
	if err != nil {
		return nil, ConfigError("logging", err)
	}

	opts := []core.Option{core.WithLogger(log)}
	if cfg.Database.Dialect != "" {
		opts = append(opts, core.WithDialect(cfg.Database.Dialect))
	}
	if len(cfg.SensitiveFields) > 0 {
		opts = append(opts, core.WithSensitiveFields(cfg.SensitiveFields...))
	}
	if cfg.StmtCacheCapacity > 0 {
		opts = append(opts, core.WithStmtCacheCapacity(cfg.StmtCacheCapacity))
	}

	db, err := core.Open(cfg.Database.Driver, cfg.Database.DSN, reg, opts...)
	if err != nil {
		return nil, DBConnectError("opening database", err)
	}
	if err := db.SQLDB().Ping(); err != nil {
		_ = db.Close()
		return nil, DBConnectError("connecting to database", err)
	}
	return db, nil
}
