package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
	"time"

	"github.com/Harshitk-cp/beliefgraph/internal/domain"
	"github.com/Harshitk-cp/beliefgraph/internal/store"
	"go.uber.org/zap"
)

// GraphQueryService answers read queries against the relationship indices and the belief store.
type GraphQueryService struct {
	rels    domain.RelationshipStore
	beliefs domain.BeliefStore
	cache   *StatsCache
	logger  *zap.Logger
	now     func() time.Time
}

func NewGraphQueryService(rs domain.RelationshipStore, bs domain.BeliefStore, cache *StatsCache, logger *zap.Logger) *GraphQueryService {
	return &GraphQueryService{
		rels:    rs,
		beliefs: bs,
		cache:   cache,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *GraphQueryService) SetClock(now func() time.Time) {
	s.now = now
}

// typeFilter reports whether t is permitted. An empty list permits everything.
func typeFilter(types []domain.RelationshipType) func(domain.RelationshipType) bool {
	if len(types) == 0 {
		return func(domain.RelationshipType) bool { return true }
	}
	allowed := make(map[domain.RelationshipType]struct{}, len(types))
	for _, t := range types {
		allowed[t] = struct{}{}
	}
	return func(t domain.RelationshipType) bool {
		_, ok := allowed[t]
		return ok
	}
}

func (s *GraphQueryService) agentBeliefs(ctx context.Context, agentID string) ([]domain.Belief, error) {
	beliefs, err := s.beliefs.ListByAgent(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("list beliefs for agent %s: %w", agentID, err)
	}
	return beliefs, nil
}

// StreamBeliefs yields the agent's beliefs. Each range re-reads the belief store.
func (s *GraphQueryService) StreamBeliefs(ctx context.Context, agentID string, includeInactive bool, pageSize int) iter.Seq2[domain.Belief, error] {
	return func(yield func(domain.Belief, error) bool) {
		beliefs, err := s.agentBeliefs(ctx, agentID)
		if err != nil {
			yield(domain.Belief{}, err)
			return
		}
		n := 0
		for _, b := range beliefs {
			if !includeInactive && !b.Active {
				continue
			}
			if pageSize > 0 && n >= pageSize {
				return
			}
			n++
			if !yield(b, nil) {
				return
			}
		}
	}
}

// StreamRelationships yields the agent's relationships one record at a time in creation order.
// Without includeInactive only currently effective relationships are yielded.
func (s *GraphQueryService) StreamRelationships(ctx context.Context, agentID string, includeInactive bool, pageSize int) iter.Seq[domain.BeliefRelationship] {
	return func(yield func(domain.BeliefRelationship) bool) {
		now := s.now()
		n := 0
		for _, id := range s.rels.AgentRelationshipIDs(agentID) {
			r, ok := s.rels.Get(id)
			if !ok {
				continue
			}
			if !includeInactive && !r.IsCurrentlyEffective(now) {
				continue
			}
			if pageSize > 0 && n >= pageSize {
				return
			}
			n++
			if !yield(r) {
				return
			}
		}
	}
}

func (s *GraphQueryService) BeliefsCount(ctx context.Context, agentID string, includeInactive bool) (int, error) {
	n := 0
	for _, err := range s.StreamBeliefs(ctx, agentID, includeInactive, 0) {
		if err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

func (s *GraphQueryService) RelationshipsCount(ctx context.Context, agentID string, includeInactive bool) int {
	now := s.now()
	n := 0
	s.rels.ScanAgent(agentID, func(r *domain.BeliefRelationship) bool {
		if includeInactive || r.IsCurrentlyEffective(now) {
			n++
		}
		return true
	})
	return n
}

func (s *GraphQueryService) DeprecatedBeliefsCount(ctx context.Context, agentID string) int {
	return len(s.DeprecatedBeliefIDs(ctx, agentID, 0))
}

// RelationshipTypeDistribution counts every relationship of the agent, active or not, by type.
func (s *GraphQueryService) RelationshipTypeDistribution(ctx context.Context, agentID string) map[domain.RelationshipType]int {
	dist := make(map[domain.RelationshipType]int)
	s.rels.ScanAgent(agentID, func(r *domain.BeliefRelationship) bool {
		dist[r.Type]++
		return true
	})
	return dist
}

func (s *GraphQueryService) AverageRelationshipStrength(ctx context.Context, agentID string, includeInactive bool) float64 {
	var sum float64
	n := 0
	s.rels.ScanAgent(agentID, func(r *domain.BeliefRelationship) bool {
		if includeInactive || r.Active {
			sum += r.Strength
			n++
		}
		return true
	})
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Statistics returns the agent's graph statistics, served from the TTL cache when fresh.
func (s *GraphQueryService) Statistics(ctx context.Context, agentID string) (domain.GraphStatistics, error) {
	if s.cache == nil {
		return s.computeStatistics(ctx, agentID)
	}
	return s.cache.Get(ctx, agentID, func(ctx context.Context) (domain.GraphStatistics, error) {
		return s.computeStatistics(ctx, agentID)
	})
}

func (s *GraphQueryService) computeStatistics(ctx context.Context, agentID string) (domain.GraphStatistics, error) {
	beliefs, err := s.agentBeliefs(ctx, agentID)
	if err != nil {
		return domain.GraphStatistics{}, err
	}
	activeBeliefs := 0
	for _, b := range beliefs {
		if b.Active {
			activeBeliefs++
		}
	}

	now := s.now()
	stats := domain.GraphStatistics{
		TotalBeliefs:                 len(beliefs),
		ActiveBeliefs:                activeBeliefs,
		RelationshipTypeDistribution: make(map[domain.RelationshipType]int),
		ComputedAt:                   now,
	}

	var strengthSum float64
	strengthCount := 0
	s.rels.ScanAgent(agentID, func(r *domain.BeliefRelationship) bool {
		stats.TotalRelationships++
		stats.RelationshipTypeDistribution[r.Type]++
		if r.IsCurrentlyEffective(now) {
			stats.ActiveRelationships++
		}
		if r.Active {
			strengthSum += r.Strength
			strengthCount++
		}
		return true
	})
	if strengthCount > 0 {
		stats.AverageRelationshipStrength = strengthSum / float64(strengthCount)
	}
	stats.DeprecatedBeliefs = s.DeprecatedBeliefsCount(ctx, agentID)
	if activeBeliefs > 1 {
		stats.GraphDensity = float64(stats.ActiveRelationships) / float64(activeBeliefs*(activeBeliefs-1))
	}
	return stats, nil
}

// InvalidateStatistics drops the agent's cached statistics.
func (s *GraphQueryService) InvalidateStatistics(agentID string) {
	if s.cache != nil {
		s.cache.Invalidate(agentID)
	}
}

// FindRelationshipByID reads the live record, never the cache.
func (s *GraphQueryService) FindRelationshipByID(ctx context.Context, id, agentID string) (domain.BeliefRelationship, bool) {
	r, ok := s.rels.Get(id)
	if !ok || r.AgentID != agentID {
		return domain.BeliefRelationship{}, false
	}
	return r, true
}

func (s *GraphQueryService) RelationshipsByID(ctx context.Context, ids []string, agentID string) map[string]domain.BeliefRelationship {
	out := make(map[string]domain.BeliefRelationship, len(ids))
	for _, id := range ids {
		if r, ok := s.FindRelationshipByID(ctx, id, agentID); ok {
			out[id] = r
		}
	}
	return out
}

// RelationshipsForBelief returns every relationship of the agent touching beliefID, active or not.
func (s *GraphQueryService) RelationshipsForBelief(ctx context.Context, beliefID, agentID string, dir domain.Direction) []domain.BeliefRelationship {
	var out []domain.BeliefRelationship
	s.rels.ScanBelief(beliefID, dir, func(r *domain.BeliefRelationship) bool {
		if r.AgentID == agentID {
			out = append(out, r.Clone())
		}
		return true
	})
	return out
}

func (s *GraphQueryService) RelationshipsByType(ctx context.Context, t domain.RelationshipType, agentID string) []domain.BeliefRelationship {
	var out []domain.BeliefRelationship
	for _, r := range s.rels.ByType(t) {
		if r.AgentID == agentID {
			out = append(out, r)
		}
	}
	return out
}

func (s *GraphQueryService) RelationshipsBetween(ctx context.Context, sourceID, targetID, agentID string) []domain.BeliefRelationship {
	var out []domain.BeliefRelationship
	s.rels.ScanBelief(sourceID, domain.DirectionOutgoing, func(r *domain.BeliefRelationship) bool {
		if r.TargetBeliefID == targetID && r.AgentID == agentID {
			out = append(out, r.Clone())
		}
		return true
	})
	return out
}

// liveEdges visits the agent's currently effective relationships incident to beliefID.
func (s *GraphQueryService) liveEdges(beliefID, agentID string, dir domain.Direction, fn func(r *domain.BeliefRelationship) bool) {
	now := s.now()
	s.rels.ScanBelief(beliefID, dir, func(r *domain.BeliefRelationship) bool {
		if r.AgentID != agentID || !r.IsCurrentlyEffective(now) {
			return true
		}
		return fn(r)
	})
}

// RelationshipIDs lists ids of currently effective relationships touching beliefID.
func (s *GraphQueryService) RelationshipIDs(ctx context.Context, beliefID, agentID string, dir domain.Direction, limit int) []string {
	var ids []string
	s.liveEdges(beliefID, agentID, dir, func(r *domain.BeliefRelationship) bool {
		ids = append(ids, r.ID)
		return limit <= 0 || len(ids) < limit
	})
	return ids
}

// ConnectedBeliefIDs lists distinct neighbors of beliefID reached over currently effective relationships.
func (s *GraphQueryService) ConnectedBeliefIDs(ctx context.Context, beliefID, agentID string, dir domain.Direction, types []domain.RelationshipType, limit int) []string {
	permitted := typeFilter(types)
	seen := make(map[string]struct{})
	var ids []string
	s.liveEdges(beliefID, agentID, dir, func(r *domain.BeliefRelationship) bool {
		if !permitted(r.Type) {
			return true
		}
		var other string
		switch dir {
		case domain.DirectionOutgoing:
			other = r.TargetBeliefID
		case domain.DirectionIncoming:
			other = r.SourceBeliefID
		default:
			other = r.OtherEnd(beliefID)
		}
		if _, dup := seen[other]; dup {
			return true
		}
		seen[other] = struct{}{}
		ids = append(ids, other)
		return limit <= 0 || len(ids) < limit
	})
	return ids
}

// RelationshipCount counts currently effective relationships. For DirectionBoth the two sides
// are summed, so a self-reference counts twice.
func (s *GraphQueryService) RelationshipCount(ctx context.Context, beliefID, agentID string, dir domain.Direction) int {
	switch dir {
	case domain.DirectionOutgoing, domain.DirectionIncoming:
		return len(s.RelationshipIDs(ctx, beliefID, agentID, dir, 0))
	default:
		return len(s.RelationshipIDs(ctx, beliefID, agentID, domain.DirectionOutgoing, 0)) +
			len(s.RelationshipIDs(ctx, beliefID, agentID, domain.DirectionIncoming, 0))
	}
}

func (s *GraphQueryService) BeliefDegrees(ctx context.Context, beliefIDs []string, agentID string) map[string]domain.BeliefDegree {
	out := make(map[string]domain.BeliefDegree, len(beliefIDs))
	for _, id := range beliefIDs {
		out[id] = domain.BeliefDegree{
			Incoming: s.RelationshipCount(ctx, id, agentID, domain.DirectionIncoming),
			Outgoing: s.RelationshipCount(ctx, id, agentID, domain.DirectionOutgoing),
		}
	}
	return out
}

func (s *GraphQueryService) AreBeliefsDirectlyConnected(ctx context.Context, sourceID, targetID, agentID string, types []domain.RelationshipType) bool {
	permitted := typeFilter(types)
	found := false
	s.liveEdges(sourceID, agentID, domain.DirectionOutgoing, func(r *domain.BeliefRelationship) bool {
		if r.TargetBeliefID == targetID && permitted(r.Type) {
			found = true
			return false
		}
		return true
	})
	return found
}

// DeprecatedBeliefIDs lists beliefs targeted by a deprecating, currently effective relationship.
func (s *GraphQueryService) DeprecatedBeliefIDs(ctx context.Context, agentID string, limit int) []string {
	now := s.now()
	var ids []string
	for _, target := range s.rels.DeprecatedTargets(agentID) {
		for _, r := range s.rels.DeprecatingIncoming(agentID, target) {
			if r.IsCurrentlyEffective(now) {
				ids = append(ids, target)
				break
			}
		}
		if limit > 0 && len(ids) >= limit {
			break
		}
	}
	return ids
}

func (s *GraphQueryService) IsBeliefDeprecated(ctx context.Context, beliefID, agentID string) bool {
	now := s.now()
	for _, r := range s.rels.DeprecatingIncoming(agentID, beliefID) {
		if r.IsCurrentlyEffective(now) {
			return true
		}
	}
	return false
}

// FindSupersedingBeliefIDs returns sources of currently effective SUPERSEDES relationships into beliefID.
func (s *GraphQueryService) FindSupersedingBeliefIDs(ctx context.Context, beliefID, agentID string) []string {
	return s.ConnectedBeliefIDs(ctx, beliefID, agentID, domain.DirectionIncoming,
		[]domain.RelationshipType{domain.RelationshipSupersedes}, 0)
}

// SupersedingBeliefIDs widens FindSupersedingBeliefIDs to every deprecating type.
func (s *GraphQueryService) SupersedingBeliefIDs(ctx context.Context, beliefID, agentID string) []string {
	return s.ConnectedBeliefIDs(ctx, beliefID, agentID, domain.DirectionIncoming, domain.DeprecatingRelationshipTypes, 0)
}

func (s *GraphQueryService) SupersedingBeliefs(ctx context.Context, beliefID, agentID string) ([]domain.Belief, error) {
	ids := s.FindSupersedingBeliefIDs(ctx, beliefID, agentID)
	var out []domain.Belief
	for _, id := range ids {
		b, err := s.beliefs.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, *b)
	}
	return out, nil
}

func (s *GraphQueryService) BeliefExists(ctx context.Context, beliefID, agentID string) (bool, error) {
	b, err := s.beliefs.GetByID(ctx, beliefID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return b.AgentID == agentID, nil
}

func (s *GraphQueryService) BeliefsByID(ctx context.Context, beliefIDs []string, agentID string) (map[string]domain.Belief, error) {
	out := make(map[string]domain.Belief, len(beliefIDs))
	for _, id := range beliefIDs {
		b, err := s.beliefs.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if b.AgentID == agentID {
			out[id] = *b
		}
	}
	return out, nil
}

func (s *GraphQueryService) activeBeliefs(ctx context.Context, agentID string, keep func(domain.Belief) bool) ([]domain.Belief, error) {
	var out []domain.Belief
	for b, err := range s.StreamBeliefs(ctx, agentID, false, 0) {
		if err != nil {
			return nil, err
		}
		if keep(b) {
			out = append(out, b)
		}
	}
	return out, nil
}

func limitBeliefs(beliefs []domain.Belief, limit int) []domain.Belief {
	if limit > 0 && len(beliefs) > limit {
		return beliefs[:limit]
	}
	return beliefs
}

// SearchBeliefsByContent matches active beliefs whose statement contains text, ignoring case.
func (s *GraphQueryService) SearchBeliefsByContent(ctx context.Context, agentID, text string, limit int) ([]domain.Belief, error) {
	needle := strings.ToLower(text)
	out, err := s.activeBeliefs(ctx, agentID, func(b domain.Belief) bool {
		return strings.Contains(strings.ToLower(b.Statement), needle)
	})
	if err != nil {
		return nil, err
	}
	return limitBeliefs(out, limit), nil
}

func (s *GraphQueryService) HighConfidenceBeliefs(ctx context.Context, agentID string, threshold float64, limit int) ([]domain.Belief, error) {
	out, err := s.activeBeliefs(ctx, agentID, func(b domain.Belief) bool {
		return b.Confidence >= threshold
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(out, func(a, b domain.Belief) int {
		return cmp.Compare(b.Confidence, a.Confidence)
	})
	return limitBeliefs(out, limit), nil
}

func (s *GraphQueryService) RecentBeliefs(ctx context.Context, agentID string, limit int) ([]domain.Belief, error) {
	out, err := s.activeBeliefs(ctx, agentID, func(domain.Belief) bool { return true })
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(out, func(a, b domain.Belief) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return limitBeliefs(out, limit), nil
}

func (s *GraphQueryService) BeliefsByCategory(ctx context.Context, agentID, category string, limit int) ([]domain.Belief, error) {
	out, err := s.activeBeliefs(ctx, agentID, func(b domain.Belief) bool {
		return b.Category == category
	})
	if err != nil {
		return nil, err
	}
	return limitBeliefs(out, limit), nil
}

func (s *GraphQueryService) incidentTypes(beliefID, agentID string) map[domain.RelationshipType]struct{} {
	types := make(map[domain.RelationshipType]struct{})
	s.liveEdges(beliefID, agentID, domain.DirectionBoth, func(r *domain.BeliefRelationship) bool {
		types[r.Type] = struct{}{}
		return true
	})
	return types
}

func jaccard(a, b map[domain.RelationshipType]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// SimilarBeliefIDs ranks the agent's other beliefs by Jaccard similarity of incident relationship types.
func (s *GraphQueryService) SimilarBeliefIDs(ctx context.Context, beliefID, agentID string, threshold float64, limit int) ([]domain.SimilarBelief, error) {
	beliefs, err := s.agentBeliefs(ctx, agentID)
	if err != nil {
		return nil, err
	}

	target := s.incidentTypes(beliefID, agentID)
	var out []domain.SimilarBelief
	for _, b := range beliefs {
		if b.ID == beliefID {
			continue
		}
		sim := jaccard(target, s.incidentTypes(b.ID, agentID))
		if sim >= threshold {
			out = append(out, domain.SimilarBelief{BeliefID: b.ID, Similarity: sim})
		}
	}
	slices.SortFunc(out, func(a, b domain.SimilarBelief) int {
		if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
			return c
		}
		return cmp.Compare(a.BeliefID, b.BeliefID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// EstimateMemoryUsage gives a rough byte count for the agent's share of the graph.
func (s *GraphQueryService) EstimateMemoryUsage(ctx context.Context, agentID string) (int64, error) {
	beliefs, err := s.BeliefsCount(ctx, agentID, true)
	if err != nil {
		return 0, err
	}
	rels := int64(s.RelationshipsCount(ctx, agentID, true))
	b := int64(beliefs)
	return b*512 + rels*256 + (b+rels)*64, nil
}

func (s *GraphQueryService) Health(ctx context.Context) domain.GraphHealth {
	sizes := s.rels.IndexSizes()
	h := domain.GraphHealth{
		Relationships:     s.rels.Len(),
		Agents:            sizes.Agents,
		OutgoingBuckets:   sizes.Outgoing,
		IncomingBuckets:   sizes.Incoming,
		TypeBuckets:       sizes.Types,
		DeprecatedTargets: sizes.Deprecated,
		CheckedAt:         s.now(),
	}
	if s.cache != nil {
		h.CachedStatistics = s.cache.Len()
		h.CacheHits = s.cache.Hits()
		h.CacheMisses = s.cache.Misses()
	}
	return h
}
