package reach

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/SNTSVV/Extended-Gator/pkg/graph"
)

// Cache memoizes forward closures for the duration of one solver pass.
// It must be discarded once the graph grows.
type Cache struct {
	engine *Engine

	mu   sync.Mutex
	sets map[int64]graph.NodeSet
	hits int
}

// NewCache creates an empty per-pass cache
func (e *Engine) NewCache() *Cache {
	return &Cache{
		engine: e,
		sets:   make(map[int64]graph.NodeSet),
	}
}

// Reachable returns the forward closure of n, computing it at most once.
// The returned set is shared and must not be modified.
func (c *Cache) Reachable(n int64) graph.NodeSet {
	c.mu.Lock()
	if set, ok := c.sets[n]; ok {
		c.hits++
		c.mu.Unlock()
		return set
	}
	c.mu.Unlock()

	set := c.engine.Reachable(n)

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.sets[n]; ok {
		return existing
	}
	c.sets[n] = set
	return set
}

// Precompute fills the cache for every source using up to workers
// goroutines. Closures are independent, so sources are processed in any
// order; results are identical to sequential computation.
func (c *Cache) Precompute(ctx context.Context, sources []int64, workers int) error {
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, src := range sources {
		if gctx.Err() != nil {
			break
		}
		src := src
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c.Reachable(src)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Len returns the number of cached closures
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sets)
}

// Hits returns how many lookups were served from the cache
func (c *Cache) Hits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits
}
