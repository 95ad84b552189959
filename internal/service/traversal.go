package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/Harshitk-cp/beliefgraph/internal/domain"
	"github.com/Harshitk-cp/beliefgraph/internal/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("beliefgraph/service")

// TraversalService runs bounded walks over one agent's relationships.
// Candidate edges are always expanded in creation order and every walk keeps a visited set.
type TraversalService struct {
	rels    domain.RelationshipStore
	beliefs domain.BeliefStore
	logger  *zap.Logger
	now     func() time.Time
}

func NewTraversalService(rs domain.RelationshipStore, bs domain.BeliefStore, logger *zap.Logger) *TraversalService {
	return &TraversalService{
		rels:    rs,
		beliefs: bs,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *TraversalService) SetClock(now func() time.Time) {
	s.now = now
}

type hop struct {
	relationshipID string
	belief         string
	strength       float64
}

// hops lists neighbors of beliefID over the agent's relationships accepted by keep.
func (s *TraversalService) hops(beliefID, agentID string, dir domain.Direction, keep func(r *domain.BeliefRelationship) bool) []hop {
	var out []hop
	s.rels.ScanBelief(beliefID, dir, func(r *domain.BeliefRelationship) bool {
		if r.AgentID != agentID || !keep(r) {
			return true
		}
		next := r.TargetBeliefID
		switch dir {
		case domain.DirectionIncoming:
			next = r.SourceBeliefID
		case domain.DirectionBoth:
			next = r.OtherEnd(beliefID)
		}
		out = append(out, hop{relationshipID: r.ID, belief: next, strength: r.Strength})
		return true
	})
	return out
}

func startSpan(ctx context.Context, name, agentID string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	attrs = append(attrs, attribute.String("agent_id", agentID))
	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, span, time.Now()
}

func finishSpan(span trace.Span, algorithm string, started time.Time, results int) {
	traversalDuration.WithLabelValues(algorithm).Observe(time.Since(started).Seconds())
	span.SetAttributes(attribute.Int("results", results))
	span.End()
}

// ReachableBeliefIDs returns beliefs within maxDepth hops of startID over currently effective
// relationships followed in either direction. The start belief is excluded and the result is sorted.
func (s *TraversalService) ReachableBeliefIDs(ctx context.Context, startID, agentID string, maxDepth int, types []domain.RelationshipType) []string {
	_, span, started := startSpan(ctx, "traversal.reachable", agentID,
		attribute.String("belief_id", startID), attribute.Int("max_depth", maxDepth))

	var reached []string
	defer func() { finishSpan(span, "reachable", started, len(reached)) }()

	if maxDepth <= 0 {
		return reached
	}

	now := s.now()
	permitted := typeFilter(types)
	keep := func(r *domain.BeliefRelationship) bool {
		return r.IsCurrentlyEffective(now) && permitted(r.Type)
	}

	visited := map[string]struct{}{startID: {}}
	frontier := []string{startID}
	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			for _, h := range s.hops(id, agentID, domain.DirectionBoth, keep) {
				if _, seen := visited[h.belief]; seen {
					continue
				}
				visited[h.belief] = struct{}{}
				next = append(next, h.belief)
				reached = append(reached, h.belief)
			}
		}
		frontier = next
	}
	slices.Sort(reached)
	return reached
}

// ShortestPathIDs returns the relationship ids of a fewest-hop path from sourceID to targetID
// following outgoing, currently effective relationships. It is empty when no path of at most
// maxDepth hops exists or when the endpoints are equal.
func (s *TraversalService) ShortestPathIDs(ctx context.Context, sourceID, targetID, agentID string, maxDepth int) []string {
	_, span, started := startSpan(ctx, "traversal.shortest_path", agentID,
		attribute.String("source_belief_id", sourceID),
		attribute.String("target_belief_id", targetID),
		attribute.Int("max_depth", maxDepth))

	var path []string
	defer func() { finishSpan(span, "shortest_path", started, len(path)) }()

	if sourceID == targetID || maxDepth <= 0 {
		return path
	}

	now := s.now()
	keep := func(r *domain.BeliefRelationship) bool { return r.IsCurrentlyEffective(now) }

	type queued struct {
		belief string
		depth  int
	}
	parent := make(map[string]hop)
	visited := map[string]struct{}{sourceID: {}}
	queue := []queued{{belief: sourceID}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}
		for _, h := range s.hops(cur.belief, agentID, domain.DirectionOutgoing, keep) {
			if _, seen := visited[h.belief]; seen {
				continue
			}
			visited[h.belief] = struct{}{}
			parent[h.belief] = hop{relationshipID: h.relationshipID, belief: cur.belief}
			if h.belief == targetID {
				for node := targetID; node != sourceID; node = parent[node].belief {
					path = append(path, parent[node].relationshipID)
				}
				slices.Reverse(path)
				return path
			}
			queue = append(queue, queued{belief: h.belief, depth: cur.depth + 1})
		}
	}
	return path
}

// FindShortestPath resolves ShortestPathIDs to records, bounded by the agent's relationship count.
func (s *TraversalService) FindShortestPath(ctx context.Context, sourceID, targetID, agentID string) []domain.BeliefRelationship {
	maxDepth := len(s.rels.AgentRelationshipIDs(agentID))
	ids := s.ShortestPathIDs(ctx, sourceID, targetID, agentID, maxDepth)
	path := make([]domain.BeliefRelationship, 0, len(ids))
	for _, id := range ids {
		if r, ok := s.rels.Get(id); ok {
			path = append(path, r)
		}
	}
	return path
}

// strongComponent collects every belief reachable from startID over active relationships
// whose strength meets threshold, in either direction. Effective windows are not consulted.
func (s *TraversalService) strongComponent(startID, agentID string, threshold float64, visited map[string]struct{}) ([]string, float64) {
	keep := func(r *domain.BeliefRelationship) bool { return r.Active && r.Strength >= threshold }

	var members []string
	edges := make(map[string]float64)
	stack := []string{startID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := visited[id]; seen {
			continue
		}
		visited[id] = struct{}{}
		members = append(members, id)

		hops := s.hops(id, agentID, domain.DirectionBoth, keep)
		for i := len(hops) - 1; i >= 0; i-- {
			h := hops[i]
			edges[h.relationshipID] = h.strength
			if _, seen := visited[h.belief]; !seen {
				stack = append(stack, h.belief)
			}
		}
	}
	slices.Sort(members)

	var avg float64
	if len(edges) > 0 {
		var sum float64
		for _, strength := range edges {
			sum += strength
		}
		avg = sum / float64(len(edges))
	}
	return members, avg
}

func (s *TraversalService) clusters(ctx context.Context, agentID string, threshold float64, minSize int) ([]domain.BeliefCluster, error) {
	beliefs, err := s.beliefs.ListByAgent(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("list beliefs for agent %s: %w", agentID, err)
	}
	ids := make([]string, len(beliefs))
	for i, b := range beliefs {
		ids[i] = b.ID
	}
	slices.Sort(ids)

	visited := make(map[string]struct{})
	var out []domain.BeliefCluster
	for _, id := range ids {
		if _, seen := visited[id]; seen {
			continue
		}
		members, avg := s.strongComponent(id, agentID, threshold, visited)
		if len(members) < minSize {
			continue
		}
		out = append(out, domain.BeliefCluster{
			Label:           fmt.Sprintf("cluster-%d", len(out)),
			BeliefIDs:       members,
			AverageStrength: avg,
		})
	}
	return out, nil
}

// StronglyConnectedClusters groups the agent's beliefs joined by strong active relationships.
// Only clusters with more than one belief are returned.
func (s *TraversalService) StronglyConnectedClusters(ctx context.Context, agentID string, threshold float64) ([]domain.BeliefCluster, error) {
	ctx, span, started := startSpan(ctx, "traversal.clusters", agentID, attribute.Float64("threshold", threshold))
	out, err := s.clusters(ctx, agentID, threshold, 2)
	finishSpan(span, "clusters", started, len(out))
	if err != nil {
		return nil, err
	}
	s.logger.Debug("belief clusters computed",
		zap.String("agent_id", agentID),
		zap.Float64("threshold", threshold),
		zap.Int("count", len(out)))
	return out, nil
}

// ClusterIDs is StronglyConnectedClusters with a caller-chosen minimum size, keyed by label.
func (s *TraversalService) ClusterIDs(ctx context.Context, agentID string, threshold float64, minClusterSize int) (map[string][]string, error) {
	ctx, span, started := startSpan(ctx, "traversal.cluster_ids", agentID,
		attribute.Float64("threshold", threshold), attribute.Int("min_cluster_size", minClusterSize))
	clusters, err := s.clusters(ctx, agentID, threshold, max(minClusterSize, 1))
	finishSpan(span, "cluster_ids", started, len(clusters))
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(clusters))
	for _, c := range clusters {
		out[c.Label] = c.BeliefIDs
	}
	return out, nil
}

// deprecationWalk follows incoming deprecating, currently effective relationships from beliefID
// to their sources in depth-first preorder. maxDepth <= 0 means unbounded.
func (s *TraversalService) deprecationWalk(beliefID, agentID string, maxDepth int) []string {
	now := s.now()
	keep := func(r *domain.BeliefRelationship) bool {
		return r.IsDeprecating() && r.IsCurrentlyEffective(now)
	}

	type frame struct {
		belief string
		depth  int
	}
	var order []string
	visited := make(map[string]struct{})
	stack := []frame{{belief: beliefID}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if maxDepth > 0 && f.depth >= maxDepth {
			continue
		}
		if _, seen := visited[f.belief]; seen {
			continue
		}
		visited[f.belief] = struct{}{}
		order = append(order, f.belief)

		hops := s.hops(f.belief, agentID, domain.DirectionIncoming, keep)
		for i := len(hops) - 1; i >= 0; i-- {
			stack = append(stack, frame{belief: hops[i].belief, depth: f.depth + 1})
		}
	}
	return order
}

// DeprecationChain returns the beliefs that transitively supersede beliefID, starting with
// beliefID itself. Ids unknown to the belief store are walked through but omitted.
func (s *TraversalService) DeprecationChain(ctx context.Context, beliefID, agentID string) ([]domain.Belief, error) {
	ctx, span, started := startSpan(ctx, "traversal.deprecation_chain", agentID, attribute.String("belief_id", beliefID))
	var chain []domain.Belief
	defer func() { finishSpan(span, "deprecation_chain", started, len(chain)) }()

	for _, id := range s.deprecationWalk(beliefID, agentID, 0) {
		b, err := s.beliefs.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		chain = append(chain, *b)
	}
	return chain, nil
}

// DeprecationChainIDs returns ids along the deprecation walk, including beliefID, within maxDepth levels.
func (s *TraversalService) DeprecationChainIDs(ctx context.Context, beliefID, agentID string, maxDepth int) []string {
	_, span, started := startSpan(ctx, "traversal.deprecation_chain_ids", agentID,
		attribute.String("belief_id", beliefID), attribute.Int("max_depth", maxDepth))
	var ids []string
	if maxDepth > 0 {
		ids = s.deprecationWalk(beliefID, agentID, maxDepth)
	}
	finishSpan(span, "deprecation_chain_ids", started, len(ids))
	return ids
}
