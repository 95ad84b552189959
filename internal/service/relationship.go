package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Harshitk-cp/beliefgraph/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const relationshipIDPrefix = "rel_"

// CreateRelationshipInput carries everything needed to record a new relationship.
type CreateRelationshipInput struct {
	SourceBeliefID string
	TargetBeliefID string
	Type           domain.RelationshipType
	Strength       float64
	AgentID        string
	EffectiveFrom  *time.Time
	EffectiveUntil *time.Time
	Metadata       map[string]any
}

type RelationshipService struct {
	store  domain.RelationshipStore
	cache  *StatsCache
	logger *zap.Logger
	now    func() time.Time
}

func NewRelationshipService(rs domain.RelationshipStore, cache *StatsCache, logger *zap.Logger) *RelationshipService {
	return &RelationshipService{
		store:  rs,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

func (s *RelationshipService) SetClock(now func() time.Time) {
	s.now = now
}

func newRelationshipID() string {
	return relationshipIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func validateRelationship(sourceID, targetID string, t domain.RelationshipType, agentID string) error {
	if strings.TrimSpace(sourceID) == "" {
		return ErrSourceBeliefIDMissing
	}
	if strings.TrimSpace(targetID) == "" {
		return ErrTargetBeliefIDMissing
	}
	if sourceID == targetID {
		return ErrSelfReference
	}
	if !domain.ValidRelationshipType(string(t)) {
		return fmt.Errorf("%w: %q", ErrUnknownRelationshipType, t)
	}
	if strings.TrimSpace(agentID) == "" {
		return ErrAgentIDMissing
	}
	return nil
}

// Create validates and stores a new relationship.
func (s *RelationshipService) Create(ctx context.Context, in CreateRelationshipInput) (*domain.BeliefRelationship, error) {
	return s.create(in, "")
}

func (s *RelationshipService) create(in CreateRelationshipInput, deprecationReason string) (*domain.BeliefRelationship, error) {
	if err := validateRelationship(in.SourceBeliefID, in.TargetBeliefID, in.Type, in.AgentID); err != nil {
		return nil, err
	}

	now := s.now()
	rel := domain.BeliefRelationship{
		ID:             newRelationshipID(),
		SourceBeliefID: in.SourceBeliefID,
		TargetBeliefID: in.TargetBeliefID,
		Type:           in.Type,
		Strength:       domain.ClampStrength(in.Strength),
		AgentID:        in.AgentID,
		Active:         true,
		EffectiveFrom:  in.EffectiveFrom,
		EffectiveUntil: in.EffectiveUntil,
		Metadata:       in.Metadata,
		CreatedAt:      now,
		LastUpdated:    now,
	}
	rel.DeprecationReason = deprecationReason
	if err := s.store.Insert(rel); err != nil {
		return nil, fmt.Errorf("store relationship: %w", err)
	}
	s.mutated("create", rel.AgentID)

	s.logger.Debug("relationship created",
		zap.String("relationship_id", rel.ID),
		zap.String("relationship_type", string(rel.Type)),
		zap.String("agent_id", rel.AgentID))
	out := rel.Clone()
	return &out, nil
}

func (s *RelationshipService) CreateRelationship(ctx context.Context, sourceID, targetID string, t domain.RelationshipType, strength float64, agentID string) (*domain.BeliefRelationship, error) {
	return s.Create(ctx, CreateRelationshipInput{
		SourceBeliefID: sourceID,
		TargetBeliefID: targetID,
		Type:           t,
		Strength:       strength,
		AgentID:        agentID,
	})
}

func (s *RelationshipService) CreateWithMetadata(ctx context.Context, sourceID, targetID string, t domain.RelationshipType, strength float64, agentID string, metadata map[string]any) (*domain.BeliefRelationship, error) {
	return s.Create(ctx, CreateRelationshipInput{
		SourceBeliefID: sourceID,
		TargetBeliefID: targetID,
		Type:           t,
		Strength:       strength,
		AgentID:        agentID,
		Metadata:       metadata,
	})
}

// CreateTemporal records a relationship bounded in time. The window is not checked for
// ordering here; inverted windows are reported by validation.
func (s *RelationshipService) CreateTemporal(ctx context.Context, sourceID, targetID string, t domain.RelationshipType, strength float64, agentID string, effectiveFrom, effectiveUntil *time.Time) (*domain.BeliefRelationship, error) {
	return s.Create(ctx, CreateRelationshipInput{
		SourceBeliefID: sourceID,
		TargetBeliefID: targetID,
		Type:           t,
		Strength:       strength,
		AgentID:        agentID,
		EffectiveFrom:  effectiveFrom,
		EffectiveUntil: effectiveUntil,
	})
}

// DeprecateBeliefWith records that newBeliefID supersedes oldBeliefID.
func (s *RelationshipService) DeprecateBeliefWith(ctx context.Context, oldBeliefID, newBeliefID, reason, agentID string) (*domain.BeliefRelationship, error) {
	now := s.now()
	rel, err := s.create(CreateRelationshipInput{
		SourceBeliefID: newBeliefID,
		TargetBeliefID: oldBeliefID,
		Type:           domain.RelationshipSupersedes,
		Strength:       1.0,
		AgentID:        agentID,
		EffectiveFrom:  &now,
		Metadata: map[string]any{
			"deprecation_reason": reason,
			"deprecated_at":      now.UTC().Format(time.RFC3339Nano),
		},
	}, reason)
	if err != nil {
		return nil, err
	}

	s.logger.Info("belief deprecated",
		zap.String("agent_id", agentID),
		zap.String("old_belief_id", oldBeliefID),
		zap.String("new_belief_id", newBeliefID),
		zap.String("relationship_id", rel.ID))
	return rel, nil
}

// Update overwrites strength and, when metadata is non-nil, metadata.
// Unlike the ownership-scoped mutations it fails for unknown ids.
func (s *RelationshipService) Update(ctx context.Context, id string, strength float64, metadata map[string]any) (*domain.BeliefRelationship, error) {
	updated, ok := s.store.Update(id, func(r *domain.BeliefRelationship) {
		r.Strength = domain.ClampStrength(strength)
		if metadata != nil {
			r.Metadata = metadata
		}
		r.LastUpdated = s.now()
	})
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRelationshipNotFound, id)
	}
	s.mutated("update", updated.AgentID)
	return &updated, nil
}

func (s *RelationshipService) Deactivate(ctx context.Context, id, agentID string) bool {
	return s.setActive(id, agentID, false)
}

func (s *RelationshipService) Reactivate(ctx context.Context, id, agentID string) bool {
	return s.setActive(id, agentID, true)
}

func (s *RelationshipService) setActive(id, agentID string, active bool) bool {
	current, ok := s.store.Get(id)
	if !ok || current.AgentID != agentID {
		return false
	}
	_, ok = s.store.Update(id, func(r *domain.BeliefRelationship) {
		r.Active = active
		r.LastUpdated = s.now()
	})
	if !ok {
		return false
	}
	op := "deactivate"
	if active {
		op = "reactivate"
	}
	s.mutated(op, agentID)
	return true
}

// Delete removes the relationship from the arena and every index.
func (s *RelationshipService) Delete(ctx context.Context, id, agentID string) bool {
	current, ok := s.store.Get(id)
	if !ok || current.AgentID != agentID {
		return false
	}
	if _, ok := s.store.Delete(id); !ok {
		return false
	}
	s.mutated("delete", agentID)
	return true
}

// CreateBulk stores records belonging to agentID under fresh ids. Records for other agents
// are skipped. Creation validation is not applied, so structural problems surface in validation.
func (s *RelationshipService) CreateBulk(ctx context.Context, rels []domain.BeliefRelationship, agentID string) ([]domain.BeliefRelationship, error) {
	var created []domain.BeliefRelationship
	now := s.now()
	for _, r := range rels {
		if r.AgentID != agentID {
			continue
		}
		r.ID = newRelationshipID()
		r.Strength = domain.ClampStrength(r.Strength)
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		r.LastUpdated = now
		if err := s.store.Insert(r); err != nil {
			return created, fmt.Errorf("store relationship: %w", err)
		}
		created = append(created, r.Clone())
	}
	if len(created) > 0 {
		s.mutated("bulk_create", agentID)
	}
	s.logger.Info("bulk relationships created",
		zap.String("agent_id", agentID),
		zap.Int("requested", len(rels)),
		zap.Int("count", len(created)))
	return created, nil
}

// importedRelationship is the wire shape accepted by Import.
type importedRelationship struct {
	SourceBeliefID string         `json:"source_belief_id"`
	TargetBeliefID string         `json:"target_belief_id"`
	Type           string         `json:"relationship_type"`
	Strength       float64        `json:"strength"`
	AgentID        string         `json:"agent_id"`
	Active         *bool          `json:"active"`
	EffectiveFrom  *time.Time     `json:"effective_from"`
	EffectiveUntil *time.Time     `json:"effective_until"`
	Metadata       map[string]any `json:"metadata"`
}

// Import decodes serialized relationships and stores them through the bulk path.
// Records without an agent are attributed to agentID.
func (s *RelationshipService) Import(ctx context.Context, data []byte, format, agentID string) (int, error) {
	if !strings.EqualFold(format, "json") {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedImportFormat, format)
	}

	var records []importedRelationship
	if err := json.Unmarshal(data, &records); err != nil {
		return 0, fmt.Errorf("%w: decode relationships: %v", ErrInvalidArgument, err)
	}

	rels := make([]domain.BeliefRelationship, 0, len(records))
	for _, rec := range records {
		t, ok := domain.ParseRelationshipType(rec.Type)
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrUnknownRelationshipType, rec.Type)
		}
		if rec.AgentID == "" {
			rec.AgentID = agentID
		}
		active := true
		if rec.Active != nil {
			active = *rec.Active
		}
		rels = append(rels, domain.BeliefRelationship{
			SourceBeliefID: rec.SourceBeliefID,
			TargetBeliefID: rec.TargetBeliefID,
			Type:           t,
			Strength:       rec.Strength,
			AgentID:        rec.AgentID,
			Active:         active,
			EffectiveFrom:  rec.EffectiveFrom,
			EffectiveUntil: rec.EffectiveUntil,
			Metadata:       rec.Metadata,
		})
	}

	created, err := s.CreateBulk(ctx, rels, agentID)
	return len(created), err
}

// Cleanup hard-deletes the agent's inactive relationships last updated before the retention window.
// A negative window removes nothing.
func (s *RelationshipService) Cleanup(ctx context.Context, agentID string, olderThan time.Duration) int {
	if olderThan < 0 {
		return 0
	}
	cutoff := s.now().Add(-olderThan)

	var stale []string
	s.store.ScanAgent(agentID, func(r *domain.BeliefRelationship) bool {
		if !r.Active && r.LastUpdated.Before(cutoff) {
			stale = append(stale, r.ID)
		}
		return true
	})

	removed := 0
	for _, id := range stale {
		if _, ok := s.store.Delete(id); ok {
			removed++
		}
	}
	if removed > 0 {
		s.mutated("cleanup", agentID)
		cleanupRemoved.Add(float64(removed))
	}
	return removed
}

// CleanupAll runs Cleanup for every agent that owns relationships.
func (s *RelationshipService) CleanupAll(ctx context.Context, olderThan time.Duration) int {
	total := 0
	for _, agentID := range s.store.AgentIDs() {
		if ctx.Err() != nil {
			break
		}
		total += s.Cleanup(ctx, agentID, olderThan)
	}
	return total
}

func (s *RelationshipService) mutated(op, agentID string) {
	relationshipMutations.WithLabelValues(op).Inc()
	if s.cache != nil {
		s.cache.Invalidate(agentID)
	}
}
