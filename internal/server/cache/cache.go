// Package cache is a Redis-backed search-result cache. Keys embed a random
// per-instance ID and the index epoch, so any mutation, and any restart of
// the process, makes earlier entries unreachable; they expire on their TTL.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/search"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/server/executor"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docindex/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/tracing"
)

const keyPrefix = "search:"

// Store is the subset of the Redis client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Key identifies one cacheable search request.
type Key struct {
	Query   string
	Options search.Options
	Limit   int
}

type QueryCache struct {
	store    Store
	instance string
	ttl      time.Duration
	epoch    func() uint64
	group    singleflight.Group
	breaker  *resilience.Breaker
	metrics  *metrics.Metrics
	logger   *slog.Logger
	hits     atomic.Int64
	misses   atomic.Int64
}

// New creates a cache over store. epoch reports the current index epoch.
// After repeated store failures the cache stops calling the store for a
// while and every lookup misses.
func New(store Store, ttl time.Duration, epoch func() uint64, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		store:    store,
		instance: strconv.FormatUint(rand.Uint64(), 36),
		ttl:      ttl,
		epoch:    epoch,
		breaker:  resilience.NewBreaker("query-cache", resilience.BreakerConfig{FailureThreshold: 5, Cooldown: 10 * time.Second}),
		metrics:  m,
		logger:   slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) Get(ctx context.Context, k Key) (*executor.SearchResult, bool) {
	return c.get(ctx, c.buildKey(k))
}

func (c *QueryCache) Set(ctx context.Context, k Key, result *executor.SearchResult) {
	c.set(ctx, c.buildKey(k), result)
}

// GetOrCompute returns the cached result for k or computes it once, however
// many callers ask concurrently. cached reports whether the result came
// from Redis.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	k Key,
	computeFn func() (*executor.SearchResult, error),
) (result *executor.SearchResult, cached bool, err error) {
	key := c.buildKey(k)
	if result, ok := c.get(ctx, key); ok {
		return result, true, nil
	}
	val, err, _ := c.group.Do(key, func() (any, error) {
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*executor.SearchResult), false, nil
}

// Invalidate deletes every cached result.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return deleted, nil
}

// Check reports an error while the store circuit is open.
func (c *QueryCache) Check(context.Context) error {
	if state := c.breaker.State(); state != resilience.StateClosed {
		return fmt.Errorf("store circuit %s", state)
	}
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) get(ctx context.Context, key string) (*executor.SearchResult, bool) {
	_, span := tracing.Start(ctx, "cache.get")
	defer span.End()

	var data string
	var found bool
	err := c.breaker.Do(func() error {
		v, err := c.store.Get(ctx, key)
		data, found = v, err == nil
		if pkgredis.IsNilError(err) || ctx.Err() != nil {
			return nil
		}
		return err
	})
	if err != nil {
		c.logStoreError("cache get failed", key, err)
	}
	span.SetAttr("hit", found)
	if !found {
		c.miss()
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	c.metrics.ObserveCache(true)
	c.logger.Debug("cache hit", "key", key)
	return &result, true
}

func (c *QueryCache) set(ctx context.Context, key string, result *executor.SearchResult) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.breaker.Do(func() error { return c.store.Set(ctx, key, data, c.ttl) }); err != nil {
		c.logStoreError("cache set failed", key, err)
	}
}

func (c *QueryCache) logStoreError(msg, key string, err error) {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Debug(msg, "key", key, "error", err)
		return
	}
	c.logger.Error(msg, "key", key, "error", err)
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	c.metrics.ObserveCache(false)
}

func (c *QueryCache) buildKey(k Key) string {
	raw := fmt.Sprintf("%s|%s|limit=%d", normalizeQuery(k.Query), k.Options, k.Limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%s:%d:%x", keyPrefix, c.instance, c.epoch(), hash[:16])
}

// normalizeQuery collapses whitespace. Case is kept because analysis may
// be case-sensitive.
func normalizeQuery(query string) string {
	return strings.Join(strings.Fields(query), " ")
}
