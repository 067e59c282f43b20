// Package flight coordinates concurrent analysis requests for the same
// vehicle. Identical keys share one in-progress execution, and completed
// results are served from a TTL cache until they expire. Failed executions
// are never cached.
package flight

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a completed result stays servable.
const DefaultTTL = 15 * time.Minute

const shardCount = 16

// Fn produces a value for a key. It runs at most once per key across all
// concurrent callers.
type Fn[V any] func(ctx context.Context) (V, error)

// Group deduplicates and caches keyed executions.
type Group[V any] struct {
	ttl    time.Duration
	now    func() time.Time
	shards [shardCount]shard[V]
}

type shard[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	sf      singleflight.Group
}

type entry[V any] struct {
	value   V
	expires time.Time
}

// Option configures the group.
type Option[V any] func(*Group[V])

// WithTTL overrides the cache lifetime for completed results.
func WithTTL[V any](ttl time.Duration) Option[V] {
	return func(g *Group[V]) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// withClock replaces the time source. Test hook.
func withClock[V any](now func() time.Time) Option[V] {
	return func(g *Group[V]) {
		g.now = now
	}
}

// NewGroup creates a Group with the default TTL.
func NewGroup[V any](opts ...Option[V]) *Group[V] {
	g := &Group[V]{ttl: DefaultTTL, now: time.Now}
	for i := range g.shards {
		g.shards[i].entries = make(map[string]entry[V])
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Do returns the cached value for key, or runs fn to produce one. The bool
// result reports whether the value was served from cache. Concurrent callers
// with the same key share a single fn execution and all receive its result.
func (g *Group[V]) Do(ctx context.Context, key string, fn Fn[V]) (V, bool, error) {
	sh := g.shard(key)

	if v, ok := sh.lookup(key, g.now()); ok {
		return v, true, nil
	}

	res, err, shared := sh.sf.Do(key, func() (any, error) {
		// Re-check under the flight: a racing caller may have finished
		// and populated the cache between our lookup and this call.
		if v, ok := sh.lookup(key, g.now()); ok {
			return cached[V]{value: v, fromCache: true}, nil
		}

		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		sh.put(key, entry[V]{value: v, expires: g.now().Add(g.ttl)})
		return cached[V]{value: v}, nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}

	c := res.(cached[V])
	if shared {
		zap.L().Debug("flight: shared in-progress execution", zap.String("key", key))
	}
	return c.value, c.fromCache, nil
}

// Forget drops any cached value for key, forcing the next Do to recompute.
func (g *Group[V]) Forget(key string) {
	sh := g.shard(key)
	sh.mu.Lock()
	delete(sh.entries, key)
	sh.mu.Unlock()
	sh.sf.Forget(key)
}

// Len reports the number of unexpired cached entries.
func (g *Group[V]) Len() int {
	now := g.now()
	total := 0
	for i := range g.shards {
		sh := &g.shards[i]
		sh.mu.RLock()
		for _, e := range sh.entries {
			if now.Before(e.expires) {
				total++
			}
		}
		sh.mu.RUnlock()
	}
	return total
}

type cached[V any] struct {
	value     V
	fromCache bool
}

func (g *Group[V]) shard(key string) *shard[V] {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &g.shards[h.Sum32()%shardCount]
}

func (s *shard[V]) lookup(key string, now time.Time) (V, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		var zero V
		return zero, false
	}
	if !now.Before(e.expires) {
		s.mu.Lock()
		// Lazy expiry: drop the entry only if it is still the stale one.
		if cur, ok := s.entries[key]; ok && !now.Before(cur.expires) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		var zero V
		return zero, false
	}
	return e.value, true
}

func (s *shard[V]) put(key string, e entry[V]) {
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
}
