package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/Harshitk-cp/beliefgraph/internal/domain"
	"go.uber.org/zap"
)

// SnapshotService materializes bounded subgraphs and serializes them.
type SnapshotService struct {
	rels    domain.RelationshipStore
	beliefs domain.BeliefStore
	logger  *zap.Logger
	now     func() time.Time
}

func NewSnapshotService(rs domain.RelationshipStore, bs domain.BeliefStore, logger *zap.Logger) *SnapshotService {
	return &SnapshotService{
		rels:    rs,
		beliefs: bs,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *SnapshotService) SetClock(now func() time.Time) {
	s.now = now
}

// SnapshotFilter narrows a filtered snapshot. Nil BeliefIDs or empty Types mean no restriction
// and MaxBeliefs <= 0 means unbounded.
type SnapshotFilter struct {
	BeliefIDs  []string
	Types      []domain.RelationshipType
	MaxBeliefs int
}

func (s *SnapshotService) snapshot(ctx context.Context, agentID string, keepBelief func(domain.Belief) bool, keepRel func(*domain.BeliefRelationship) bool) (*domain.KnowledgeGraph, error) {
	beliefs, err := s.beliefs.ListByAgent(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("list beliefs for agent %s: %w", agentID, err)
	}

	g := &domain.KnowledgeGraph{
		AgentID:       agentID,
		Beliefs:       []domain.Belief{},
		Relationships: []domain.BeliefRelationship{},
		CreatedAt:     s.now(),
	}
	slices.SortFunc(beliefs, func(a, b domain.Belief) int { return cmp.Compare(a.ID, b.ID) })
	for _, b := range beliefs {
		if keepBelief(b) {
			g.Beliefs = append(g.Beliefs, b)
		}
	}
	s.rels.ScanAgent(agentID, func(r *domain.BeliefRelationship) bool {
		if keepRel(r) {
			g.Relationships = append(g.Relationships, r.Clone())
		}
		return true
	})
	return g, nil
}

// SnapshotGraph copies the agent's graph. Without includeInactive only active beliefs and
// active relationships are kept.
func (s *SnapshotService) SnapshotGraph(ctx context.Context, agentID string, includeInactive bool) (*domain.KnowledgeGraph, error) {
	return s.snapshot(ctx, agentID,
		func(b domain.Belief) bool { return includeInactive || b.Active },
		func(r *domain.BeliefRelationship) bool { return includeInactive || r.Active })
}

// ActiveGraph keeps active beliefs and currently effective relationships.
func (s *SnapshotService) ActiveGraph(ctx context.Context, agentID string) (*domain.KnowledgeGraph, error) {
	now := s.now()
	return s.snapshot(ctx, agentID,
		func(b domain.Belief) bool { return b.Active },
		func(r *domain.BeliefRelationship) bool { return r.IsCurrentlyEffective(now) })
}

// FilteredSnapshotGraph keeps beliefs passing the filter and relationships of a permitted type
// whose endpoints both survived.
func (s *SnapshotService) FilteredSnapshotGraph(ctx context.Context, agentID string, f SnapshotFilter) (*domain.KnowledgeGraph, error) {
	var wanted map[string]struct{}
	if f.BeliefIDs != nil {
		wanted = make(map[string]struct{}, len(f.BeliefIDs))
		for _, id := range f.BeliefIDs {
			wanted[id] = struct{}{}
		}
	}

	included := make(map[string]struct{})
	keepBelief := func(b domain.Belief) bool {
		if wanted != nil {
			if _, ok := wanted[b.ID]; !ok {
				return false
			}
		}
		if f.MaxBeliefs > 0 && len(included) >= f.MaxBeliefs {
			return false
		}
		included[b.ID] = struct{}{}
		return true
	}

	permitted := typeFilter(f.Types)
	keepRel := func(r *domain.BeliefRelationship) bool {
		if !permitted(r.Type) {
			return false
		}
		_, src := included[r.SourceBeliefID]
		_, dst := included[r.TargetBeliefID]
		return src && dst
	}
	return s.snapshot(ctx, agentID, keepBelief, keepRel)
}

// ExportGraph chooses the snapshot for a format: JSON carries inactive data, other formats do not.
func (s *SnapshotService) ExportGraph(ctx context.Context, agentID string, format ExportFormat) (*domain.KnowledgeGraph, error) {
	return s.SnapshotGraph(ctx, agentID, format == ExportJSON)
}

// Export renders the agent's graph in the requested format.
func (s *SnapshotService) Export(ctx context.Context, agentID, format string) ([]byte, error) {
	f, ok := ParseExportFormat(format)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedExportFormat, format)
	}
	g, err := s.ExportGraph(ctx, agentID, f)
	if err != nil {
		return nil, err
	}
	out, err := exporters[f](g)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", f, err)
	}
	s.logger.Debug("graph exported",
		zap.String("agent_id", agentID),
		zap.String("format", string(f)),
		zap.Int("beliefs", len(g.Beliefs)),
		zap.Int("relationships", len(g.Relationships)))
	return out, nil
}
