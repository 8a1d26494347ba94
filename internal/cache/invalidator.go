package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Invalidator is told when rows of a table change so that cached results
// built from that table can be dropped.
type Invalidator interface {
	Invalidate(ctx context.Context, table string) error
}

// NoopInvalidator ignores invalidations. It is the default.
type NoopInvalidator struct{}

// Invalidate does nothing.
func (NoopInvalidator) Invalidate(context.Context, string) error { return nil }

// GenerationStore is the subset of the go-redis client used by
// RedisInvalidator. *redis.Client and *redis.ClusterClient implement it.
type GenerationStore interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// DefaultKeyPrefix prefixes generation keys when no prefix is configured.
const DefaultKeyPrefix = "eager"

// RedisInvalidator keeps a generation counter per table in Redis. Result
// caches include the generation in their keys; bumping it orphans every
// entry built from the old data.
type RedisInvalidator struct {
	store  GenerationStore
	prefix string
}

// NewRedisInvalidator creates an invalidator over a Redis client.
func NewRedisInvalidator(store GenerationStore, prefix string) *RedisInvalidator {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisInvalidator{store: store, prefix: prefix}
}

// Key returns the generation key of table.
func (r *RedisInvalidator) Key(table string) string {
	return r.prefix + ":gen:" + table
}

// Invalidate bumps the generation of table.
func (r *RedisInvalidator) Invalidate(ctx context.Context, table string) error {
	if err := r.store.Incr(ctx, r.Key(table)).Err(); err != nil {
		return fmt.Errorf("invalidate %s: %w", table, err)
	}
	return nil
}

// Generation returns the current generation of table; zero when the table
// was never invalidated.
func (r *RedisInvalidator) Generation(ctx context.Context, table string) (int64, error) {
	gen, err := r.store.Get(ctx, r.Key(table)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("generation %s: %w", table, err)
	}
	return gen, nil
}
