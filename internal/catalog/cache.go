package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"pps/pkg/domain"
)

const cacheKeyPrefix = "catalog:objective:"

var cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pps_catalog_cache_lookups_total",
	Help: "Catalog cache lookups by result (hit, miss, error)",
}, []string{"result"})

// cachedEntry is the Redis value. Misses are cached too so unknown ids do
// not reach the source on every request.
type cachedEntry struct {
	Found       bool   `json:"found"`
	Description string `json:"description,omitempty"`
	Points      int64  `json:"points,omitempty"`
}

// Cache is a Redis read-through decorator for a Catalog. Redis failures are
// logged and the lookup falls through to the source.
type Cache struct {
	next   Catalog
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

type CacheOption func(*Cache)

func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *Cache) {
		c.logger = logger
	}
}

// NewCache wraps next. A nil client disables caching.
func NewCache(next Catalog, client *redis.Client, ttl time.Duration, opts ...CacheOption) *Cache {
	c := &Cache{next: next, client: client, ttl: ttl, logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *Cache) Lookup(ctx context.Context, stage domain.Stage, area domain.Area, subline string) (Entry, bool, error) {
	if c.client == nil {
		return c.next.Lookup(ctx, stage, area, subline)
	}
	key := cacheKeyPrefix + domain.JoinKey(string(stage), string(area), subline)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var ce cachedEntry
		if jsonErr := json.Unmarshal(raw, &ce); jsonErr == nil {
			cacheLookups.WithLabelValues("hit").Inc()
			return Entry{Description: ce.Description, Points: ce.Points}, ce.Found, nil
		}
		c.logger.WarnContext(ctx, "discarding malformed catalog cache entry", "key", key)
	case errors.Is(err, redis.Nil):
		cacheLookups.WithLabelValues("miss").Inc()
	default:
		cacheLookups.WithLabelValues("error").Inc()
		c.logger.WarnContext(ctx, "catalog cache read failed", "key", key, "error", err)
	}

	entry, found, err := c.next.Lookup(ctx, stage, area, subline)
	if err != nil {
		return Entry{}, false, err
	}
	value, _ := json.Marshal(cachedEntry{Found: found, Description: entry.Description, Points: entry.Points})
	if err := c.client.Set(ctx, key, value, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "catalog cache write failed", "key", key, "error", err)
	}
	return entry, found, nil
}

// Invalidate drops every cached objective, e.g. after a catalog reload.
func (c *Cache) Invalidate(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	iter := c.client.Scan(ctx, 0, cacheKeyPrefix+"*", 100).Iterator()
	pipe := c.client.Pipeline()
	for iter.Next(ctx) {
		pipe.Del(ctx, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	_, err := pipe.Exec(ctx)
	return err
}
