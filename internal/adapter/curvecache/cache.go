// Package curvecache keeps recently used rating curves in memory in front of
// the curve registry.
package curvecache

import (
	"context"
	"sync"

	"github.com/couchcryptid/streamflow-engine/internal/domain"
	"github.com/couchcryptid/streamflow-engine/internal/observability"
)

// Store is the registry the cache decorates.
type Store interface {
	SaveCurve(ctx context.Context, c domain.RatingCurve) error
	ListCurves(ctx context.Context, station string) ([]domain.RatingCurve, error)
}

// CachedStore wraps a Store with an in-memory LRU cache of each station's curves.
type CachedStore struct {
	inner   Store
	cache   *lruCache[[]domain.RatingCurve]
	metrics *observability.Metrics

	// generations counts saves per station. A lookup only fills the cache
	// if no save for its station completed while it read the store.
	mu          sync.Mutex
	generations map[string]uint64
}

// New creates a cache decorator around a curve store. metrics may be nil.
func New(inner Store, maxEntries int, metrics *observability.Metrics) *CachedStore {
	return &CachedStore{
		inner:   inner,
		cache:       newLRUCache[[]domain.RatingCurve](maxEntries),
		metrics:     metrics,
		generations: make(map[string]uint64),
	}
}

// SaveCurve writes through to the store and drops the station's cached curves.
func (c *CachedStore) SaveCurve(ctx context.Context, curve domain.RatingCurve) error {
	if err := c.inner.SaveCurve(ctx, curve); err != nil {
		return err
	}
	c.mu.Lock()
	c.generations[curve.Station]++
	c.cache.delete(curve.Station)
	c.mu.Unlock()
	return nil
}

func (c *CachedStore) ListCurves(ctx context.Context, station string) ([]domain.RatingCurve, error) {
	if curves, ok := c.cache.get(station); ok {
		c.observe("hit")
		return curves, nil
	}
	c.observe("miss")

	c.mu.Lock()
	gen := c.generations[station]
	c.mu.Unlock()

	curves, err := c.inner.ListCurves(ctx, station)
	if err != nil {
		return nil, err
	}
	// Stations without curves are not cached so a curve saved by another
	// instance is found on the next lookup.
	if len(curves) == 0 {
		return curves, nil
	}

	c.mu.Lock()
	if c.generations[station] == gen {
		c.cache.put(station, curves)
	}
	c.mu.Unlock()
	return curves, nil
}

func (c *CachedStore) observe(result string) {
	if c.metrics != nil {
		c.metrics.CurveCache.WithLabelValues(result).Inc()
	}
}

// lruCache is a simple thread-safe LRU cache.
type lruCache[V any] struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry[V]
	head       *entry[V] // most recently used
	tail       *entry[V] // least recently used
}

type entry[V any] struct {
	key   string
	value V
	prev  *entry[V]
	next  *entry[V]
}

func newLRUCache[V any](maxEntries int) *lruCache[V] {
	return &lruCache[V]{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry[V]),
	}
}

func (c *lruCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache[V]) put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry[V]{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache[V]) delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		delete(c.entries, key)
		c.remove(e)
	}
}

func (c *lruCache[V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache[V]) moveToFront(e *entry[V]) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache[V]) addToFront(e *entry[V]) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache[V]) remove(e *entry[V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache[V]) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
