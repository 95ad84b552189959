package service

import (
	"time"

	"github.com/Harshitk-cp/beliefgraph/internal/domain"
	"go.uber.org/zap"
)

type EngineOptions struct {
	StatsCacheTTL    time.Duration
	CleanupInterval  time.Duration
	CleanupRetention time.Duration
	// Clock overrides time.Now for every service. Tests use it to pin effectiveness checks.
	Clock func() time.Time
}

// Engine wires the graph services around one relationship store and one statistics cache.
type Engine struct {
	Relationships *RelationshipService
	Query         *GraphQueryService
	Traversal     *TraversalService
	Validation    *ValidationService
	Snapshots     *SnapshotService
	Cleanup       *CleanupService

	Store   domain.RelationshipStore
	Beliefs domain.BeliefStore
	Cache   *StatsCache
}

func NewEngine(rs domain.RelationshipStore, bs domain.BeliefStore, logger *zap.Logger, opts EngineOptions) *Engine {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	cache := NewStatsCache(opts.StatsCacheTTL, clock)
	e := &Engine{
		Relationships: NewRelationshipService(rs, cache, logger),
		Query:         NewGraphQueryService(rs, bs, cache, logger),
		Traversal:     NewTraversalService(rs, bs, logger),
		Validation:    NewValidationService(rs, bs, logger),
		Snapshots:     NewSnapshotService(rs, bs, logger),
		Store:         rs,
		Beliefs:       bs,
		Cache:         cache,
	}
	e.Relationships.SetClock(clock)
	e.Query.SetClock(clock)
	e.Traversal.SetClock(clock)
	e.Validation.SetClock(clock)
	e.Snapshots.SetClock(clock)

	e.Cleanup = NewCleanupService(e.Relationships, logger)
	e.Cleanup.SetInterval(opts.CleanupInterval)
	if opts.CleanupRetention > 0 {
		e.Cleanup.SetRetention(opts.CleanupRetention)
	}
	return e
}
