// Package dialects provides the identifier quoting and placeholder rules used when
// emitting SQL. MySQL is the reference dialect; SQLite and PostgreSQL are registered
// so compiled queries can run against them unchanged apart from quoting and placeholders.
package dialects

import "sync"

// Default is the driver name of the dialect used when none is configured.
const Default = "mysql"

// Dialect defines database-specific behaviors.
type Dialect interface {
	// Name returns the canonical dialect name.
	Name() string
	QuoteIdentifier(string) string
	Placeholder(int) string
}

var (
	mu       sync.RWMutex
	dialects = make(map[string]Dialect)
)

// RegisterDialect registers a database dialect by driver name.
func RegisterDialect(name string, d Dialect) {
	mu.Lock()
	defer mu.Unlock()
	dialects[name] = d
}

// Lookup retrieves a registered dialect by driver name.
func Lookup(name string) (Dialect, bool) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := dialects[name]
	return d, ok
}

// GetDialect retrieves a registered dialect by driver name, panics if not found.
func GetDialect(name string) Dialect {
	if d, ok := Lookup(name); ok {
		return d
	}
	panic("unsupported dialect: " + name)
}

// Numbered reports whether the dialect uses numbered placeholders ($1, $2, ...)
// instead of the positional "?" the compiler emits.
func Numbered(d Dialect) bool {
	return d.Placeholder(1) != "?"
}
