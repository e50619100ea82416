// Package memo provides a process-lifetime memoizing cache with a
// single-flight guarantee: concurrent requests for the same uncomputed key
// collapse into one underlying computation. It amortizes reference-data
// lookups whose results are stable for the life of the process, even when
// computing one means a full paginated fetch.
package memo

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"
)

// Prometheus metrics for memoized lookups.
var (
	memoHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pagefetch_memo_hits_total",
		Help: "Total number of memoized lookups served from cache",
	})

	memoComputes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pagefetch_memo_computes_total",
		Help: "Total number of underlying computations performed",
	})

	memoFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pagefetch_memo_failures_total",
		Help: "Total number of failed computations (not cached)",
	})
)

// Cache memoizes computed values by key for the lifetime of the process.
// Values are computed at most once per key; entries are never invalidated.
type Cache[V any] struct {
	group  singleflight.Group
	mu     sync.RWMutex
	values map[string]V
}

// NewCache creates an empty memoizing cache.
func NewCache[V any]() *Cache[V] {
	return &Cache[V]{
		values: make(map[string]V),
	}
}

// GetOrCompute returns the cached value for key, computing it first if
// needed. Concurrent callers for the same uncomputed key share one
// computation and observe the same result. A failed computation is not
// cached; a later call runs compute again.
func (c *Cache[V]) GetOrCompute(key string, compute func() (V, error)) (V, error) {
	c.mu.RLock()
	value, ok := c.values[key]
	c.mu.RUnlock()
	if ok {
		memoHits.Inc()
		return value, nil
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		// A previous flight may have stored the value between our read and
		// joining the group.
		c.mu.RLock()
		value, ok := c.values[key]
		c.mu.RUnlock()
		if ok {
			return value, nil
		}

		memoComputes.Inc()
		computed, err := compute()
		if err != nil {
			memoFailures.Inc()
			return nil, err
		}

		c.mu.Lock()
		c.values[key] = computed
		c.mu.Unlock()
		return computed, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return result.(V), nil
}

// Len returns the number of computed entries.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}
