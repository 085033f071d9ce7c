package cache

import (
	"context"
	"encoding/json"

	"founder-scheduler/internal/common/logger"
	"founder-scheduler/internal/common/metrics"

	"golang.org/x/sync/singleflight"
)

// Cache memoizes the results of fn per key on top of a Store. Concurrent
// callers for the same key share one computation. Errors are never cached.
type Cache[V any] struct {
	name   string
	store  Store
	group  singleflight.Group
	logger logger.Logger
}

func New[V any](name string, store Store, log logger.Logger) *Cache[V] {
	return &Cache[V]{
		name:   name,
		store:  store,
		logger: log.With(map[string]interface{}{"cache": name}),
	}
}

// GetOrCompute returns the cached value for key or computes, stores and
// returns it. Store failures are logged and treated as misses.
func (c *Cache[V]) GetOrCompute(ctx context.Context, key string, fn func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := c.lookup(ctx, key); ok {
		metrics.CacheLookups.WithLabelValues(c.name, "hit").Inc()
		return v, nil
	}

	res, err, shared := c.group.Do(key, func() (interface{}, error) {
		// a previous flight may have finished between lookup and Do
		if v, ok := c.lookup(ctx, key); ok {
			return v, nil
		}

		v, err := fn(ctx)
		if err != nil {
			return v, err
		}

		data, err := json.Marshal(v)
		if err == nil {
			err = c.store.Set(ctx, key, data)
		}
		if err != nil {
			c.logger.Warn("cache write failed", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
		return v, nil
	})

	if shared {
		metrics.CacheLookups.WithLabelValues(c.name, "shared").Inc()
	} else {
		metrics.CacheLookups.WithLabelValues(c.name, "miss").Inc()
	}

	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

func (c *Cache[V]) lookup(ctx context.Context, key string) (V, bool) {
	var v V
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache read failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return v, false
	}
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(data, &v); err != nil {
		c.logger.Warn("discarding undecodable cache entry", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		if err := c.store.Delete(ctx, key); err != nil {
			c.logger.Warn("cache delete failed", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
		return v, false
	}
	return v, true
}
