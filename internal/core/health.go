package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/coregx/eager/internal/logger"
	"github.com/coregx/eager/internal/schema"
)

const healthCheckTimeout = 5 * time.Second

// HealthReport is the outcome of one health check.
type HealthReport struct {
	CheckedAt time.Time
	// Ping is the connection error, if any. Tables are not probed when it is set.
	Ping error
	// Tables maps each registered entity to the error of reading its table
	// with every declared attribute, nil when the read succeeded.
	Tables map[string]error
}

// Healthy reports whether the ping and every table read succeeded.
func (r HealthReport) Healthy() bool {
	return r.Err() == nil
}

// Err joins the ping error and the table errors in entity name order.
func (r HealthReport) Err() error {
	if r.Ping != nil {
		return r.Ping
	}
	var errs []error
	for _, name := range r.Failing() {
		errs = append(errs, fmt.Errorf("%s: %w", name, r.Tables[name]))
	}
	return errors.Join(errs...)
}

// Failing returns the sorted names of entities whose table read failed.
func (r HealthReport) Failing() []string {
	var names []string
	for name, err := range r.Tables {
		if err != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// entityLister is implemented by providers that can enumerate their entities,
// such as *schema.Registry.
type entityLister interface {
	Entities() []*schema.Entity
}

// CheckHealth pings the database, then reads one row of every registered
// entity through a compiled find so a table or column missing from the
// database shows up as a failure of that entity.
func (db *DB) CheckHealth(ctx context.Context) HealthReport {
	if ctx == nil {
		ctx = context.Background()
	}
	report := HealthReport{CheckedAt: time.Now()}
	if err := db.sqlDB.PingContext(ctx); err != nil {
		report.Ping = newDriverError("ping", "", err)
		return report
	}

	lister, ok := db.provider.(entityLister)
	if !ok {
		return report
	}
	report.Tables = make(map[string]error)
	for _, e := range lister.Entities() {
		report.Tables[e.Name] = db.readTable(ctx, e)
	}
	return report
}

func (db *DB) readTable(ctx context.Context, e *schema.Entity) error {
	q, err := db.compiler.CompileFind(FindOptions{Entity: e.Name, Limit: 1})
	if err != nil {
		return err
	}
	rows, err := db.sqlDB.QueryContext(ctx, q.sql, q.params...)
	if err != nil {
		return newDriverError("health", q.sql, err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
	}
	if err := rows.Err(); err != nil {
		return newDriverError("health", q.sql, err)
	}
	return nil
}

// healthChecker runs CheckHealth at a fixed interval and keeps the last report.
type healthChecker struct {
	check    func(context.Context) HealthReport
	logger   logger.Logger
	interval time.Duration
	stop     chan struct{}
	wg       sync.WaitGroup

	mu   sync.RWMutex
	last HealthReport
}

func newHealthChecker(check func(context.Context) HealthReport, log logger.Logger, interval time.Duration) *healthChecker {
	return &healthChecker{
		check:    check,
		logger:   log,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

func (h *healthChecker) start() {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				h.runOnce()
			case <-h.stop:
				return
			}
		}
	}()
}

func (h *healthChecker) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()

	report := h.check(ctx)
	h.mu.Lock()
	h.last = report
	h.mu.Unlock()

	switch {
	case report.Ping != nil:
		h.logger.Warn("database health check failed", "error", report.Ping)
	case !report.Healthy():
		h.logger.Warn("entity tables unreadable",
			"entities", report.Failing(),
			"error", report.Err())
	default:
		h.logger.Debug("database health check passed", "entities", len(report.Tables))
	}
}

func (h *healthChecker) shutdown() {
	close(h.stop)
	h.wg.Wait()
}

func (h *healthChecker) report() HealthReport {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.last
}

// WithHealthCheck runs CheckHealth every interval in the background.
// Results are reported by IsHealthy and LastHealth and logged.
func WithHealthCheck(interval time.Duration) Option {
	return func(db *DB) {
		if interval > 0 {
			db.healthInterval = interval
		}
	}
}

// IsHealthy reports whether the most recent background check succeeded and
// when it ran. Without WithHealthCheck, or before the first check, it
// reports true and a zero time.
func (db *DB) IsHealthy() (bool, time.Time) {
	r, ok := db.LastHealth()
	if !ok {
		return true, time.Time{}
	}
	return r.Healthy(), r.CheckedAt
}

// LastHealth returns the most recent background report. ok is false when
// no background check has completed.
func (db *DB) LastHealth() (report HealthReport, ok bool) {
	if db.health == nil {
		return HealthReport{}, false
	}
	r := db.health.report()
	return r, !r.CheckedAt.IsZero()
}
