package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Harshitk-cp/beliefgraph/internal/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ValidationService audits an agent's graph. Issues are reported, never repaired.
type ValidationService struct {
	rels    domain.RelationshipStore
	beliefs domain.BeliefStore
	logger  *zap.Logger
	now     func() time.Time
}

func NewValidationService(rs domain.RelationshipStore, bs domain.BeliefStore, logger *zap.Logger) *ValidationService {
	return &ValidationService{
		rels:    rs,
		beliefs: bs,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *ValidationService) SetClock(now func() time.Time) {
	s.now = now
}

func orphanedIssue(id string) domain.ValidationIssue {
	return domain.ValidationIssue{
		Kind:           domain.IssueOrphanedRelationship,
		RelationshipID: id,
		Message:        "Orphaned relationship: " + id,
	}
}

func selfReferenceIssue(id string) domain.ValidationIssue {
	return domain.ValidationIssue{
		Kind:           domain.IssueSelfReference,
		RelationshipID: id,
		Message:        "Self-referential relationship: " + id,
	}
}

func temporalIssue(id string) domain.ValidationIssue {
	return domain.ValidationIssue{
		Kind:           domain.IssueTemporallyInvalid,
		RelationshipID: id,
		Message:        "Temporally invalid relationship: " + id,
	}
}

func (s *ValidationService) agentBeliefIDs(ctx context.Context, agentID string) (map[string]struct{}, error) {
	beliefs, err := s.beliefs.ListByAgent(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("list beliefs for agent %s: %w", agentID, err)
	}
	ids := make(map[string]struct{}, len(beliefs))
	for _, b := range beliefs {
		ids[b.ID] = struct{}{}
	}
	return ids, nil
}

// ValidateGraphStructure runs the orphan, self-reference and temporal checks and returns one
// flat list ordered by check, then by relationship creation order.
func (s *ValidationService) ValidateGraphStructure(ctx context.Context, agentID string) ([]domain.ValidationIssue, error) {
	ctx, span, started := startSpan(ctx, "validation.graph_structure", agentID)
	defer span.End()

	orphans, err := s.OrphanedRelationships(ctx, agentID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	issues := append(orphans, s.SelfReferencingRelationships(ctx, agentID)...)
	issues = append(issues, s.TemporallyInvalidRelationships(ctx, agentID)...)

	for _, issue := range issues {
		validationIssues.WithLabelValues(string(issue.Kind)).Inc()
	}
	span.SetAttributes(attribute.Int("issues", len(issues)))
	traversalDuration.WithLabelValues("validate").Observe(time.Since(started).Seconds())

	if len(issues) > 0 {
		s.logger.Info("graph validation found issues",
			zap.String("agent_id", agentID),
			zap.Int("count", len(issues)))
	}
	return issues, nil
}

// OrphanedRelationships reports relationships whose source or target is not one of the agent's beliefs.
func (s *ValidationService) OrphanedRelationships(ctx context.Context, agentID string) ([]domain.ValidationIssue, error) {
	known, err := s.agentBeliefIDs(ctx, agentID)
	if err != nil {
		return nil, err
	}
	var issues []domain.ValidationIssue
	s.rels.ScanAgent(agentID, func(r *domain.BeliefRelationship) bool {
		_, src := known[r.SourceBeliefID]
		_, dst := known[r.TargetBeliefID]
		if !src || !dst {
			issues = append(issues, orphanedIssue(r.ID))
		}
		return true
	})
	return issues, nil
}

// SelfReferencingRelationships catches records that bypassed creation checks through bulk or import.
func (s *ValidationService) SelfReferencingRelationships(ctx context.Context, agentID string) []domain.ValidationIssue {
	var issues []domain.ValidationIssue
	s.rels.ScanAgent(agentID, func(r *domain.BeliefRelationship) bool {
		if r.SourceBeliefID == r.TargetBeliefID {
			issues = append(issues, selfReferenceIssue(r.ID))
		}
		return true
	})
	return issues
}

func (s *ValidationService) TemporallyInvalidRelationships(ctx context.Context, agentID string) []domain.ValidationIssue {
	var issues []domain.ValidationIssue
	s.rels.ScanAgent(agentID, func(r *domain.BeliefRelationship) bool {
		if r.HasInvalidWindow() {
			issues = append(issues, temporalIssue(r.ID))
		}
		return true
	})
	return issues
}

// conflicts visits active, currently effective contradiction edges in creation order.
func (s *ValidationService) conflicts(agentID string, limit int, fn func(r *domain.BeliefRelationship)) {
	now := s.now()
	n := 0
	s.rels.ScanAgent(agentID, func(r *domain.BeliefRelationship) bool {
		if !r.Type.IsConflict() || !r.IsCurrentlyEffective(now) {
			return true
		}
		fn(r)
		n++
		return limit <= 0 || n < limit
	})
}

// PotentialConflicts surfaces recorded CONTRADICTS and CONFLICTS_WITH relationships.
func (s *ValidationService) PotentialConflicts(ctx context.Context, agentID string) []domain.ConflictCandidate {
	var out []domain.ConflictCandidate
	s.conflicts(agentID, 0, func(r *domain.BeliefRelationship) {
		out = append(out, domain.ConflictCandidate{
			RelationshipID: r.ID,
			SourceBeliefID: r.SourceBeliefID,
			TargetBeliefID: r.TargetBeliefID,
			Type:           r.Type,
			Strength:       r.Strength,
			Description:    "Contradictory beliefs detected",
		})
	})
	return out
}

func (s *ValidationService) ConflictingRelationshipIDs(ctx context.Context, agentID string, limit int) []string {
	var ids []string
	s.conflicts(agentID, limit, func(r *domain.BeliefRelationship) {
		ids = append(ids, r.ID)
	})
	return ids
}

func (s *ValidationService) ContradictoryBeliefPairs(ctx context.Context, agentID string, limit int) []domain.BeliefPair {
	var pairs []domain.BeliefPair
	s.conflicts(agentID, limit, func(r *domain.BeliefRelationship) {
		pairs = append(pairs, domain.BeliefPair{SourceBeliefID: r.SourceBeliefID, TargetBeliefID: r.TargetBeliefID})
	})
	return pairs
}
