package service

import (
	"context"
	"maps"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Harshitk-cp/beliefgraph/internal/domain"
	"golang.org/x/sync/singleflight"
)

const defaultStatsCacheTTL = 60 * time.Second

type statsEntry struct {
	stats     domain.GraphStatistics
	expiresAt time.Time
}

// StatsCache memoizes per-agent graph statistics for a fixed TTL.
// Concurrent misses for one agent share a single computation.
type StatsCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]statsEntry
	// generation is bumped on invalidation. Computations are shared per agent and
	// generation, so a reader arriving after a mutation never joins a stale flight.
	generation map[string]uint64
	group      singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

func NewStatsCache(ttl time.Duration, now func() time.Time) *StatsCache {
	if ttl <= 0 {
		ttl = defaultStatsCacheTTL
	}
	if now == nil {
		now = time.Now
	}
	return &StatsCache{
		ttl:        ttl,
		now:        now,
		entries:    make(map[string]statsEntry),
		generation: make(map[string]uint64),
	}
}

// Get returns the cached statistics for agentID or computes and stores them.
func (c *StatsCache) Get(ctx context.Context, agentID string, compute func(ctx context.Context) (domain.GraphStatistics, error)) (domain.GraphStatistics, error) {
	c.mu.Lock()
	if e, ok := c.entries[agentID]; ok && c.now().Before(e.expiresAt) {
		c.mu.Unlock()
		c.hits.Add(1)
		statsCacheLookups.WithLabelValues("hit").Inc()
		return cloneStats(e.stats), nil
	}
	gen := c.generation[agentID]
	c.mu.Unlock()

	c.misses.Add(1)
	statsCacheLookups.WithLabelValues("miss").Inc()

	key := agentID + "#" + strconv.FormatUint(gen, 10)
	v, err, _ := c.group.Do(key, func() (any, error) {
		stats, err := compute(ctx)
		if err != nil {
			return domain.GraphStatistics{}, err
		}
		c.mu.Lock()
		if c.generation[agentID] == gen {
			c.entries[agentID] = statsEntry{stats: stats, expiresAt: c.now().Add(c.ttl)}
		}
		c.mu.Unlock()
		return stats, nil
	})
	if err != nil {
		return domain.GraphStatistics{}, err
	}
	return cloneStats(v.(domain.GraphStatistics)), nil
}

// Invalidate drops the entry for one agent.
func (c *StatsCache) Invalidate(agentID string) {
	c.mu.Lock()
	delete(c.entries, agentID)
	c.generation[agentID]++
	c.mu.Unlock()
}

func (c *StatsCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *StatsCache) Hits() int64   { return c.hits.Load() }
func (c *StatsCache) Misses() int64 { return c.misses.Load() }

func cloneStats(s domain.GraphStatistics) domain.GraphStatistics {
	s.RelationshipTypeDistribution = maps.Clone(s.RelationshipTypeDistribution)
	return s
}
