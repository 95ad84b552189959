package domain

import (
	"maps"
	"math"
	"strings"
	"time"
)

type RelationshipType string

const (
	// Temporal
	RelationshipSupersedes RelationshipType = "supersedes"
	RelationshipUpdates    RelationshipType = "updates"
	RelationshipDeprecates RelationshipType = "deprecates"
	RelationshipReplaces   RelationshipType = "replaces"

	// Logical
	RelationshipSupports    RelationshipType = "supports"
	RelationshipContradicts RelationshipType = "contradicts"
	RelationshipImplies     RelationshipType = "implies"
	RelationshipReinforces  RelationshipType = "reinforces"
	RelationshipWeakens     RelationshipType = "weakens"

	// Semantic
	RelationshipRelatesTo   RelationshipType = "relates_to"
	RelationshipSpecializes RelationshipType = "specializes"
	RelationshipGeneralizes RelationshipType = "generalizes"
	RelationshipExtends     RelationshipType = "extends"
	RelationshipDerivesFrom RelationshipType = "derives_from"

	// Causal
	RelationshipCauses   RelationshipType = "causes"
	RelationshipCausedBy RelationshipType = "caused_by"
	RelationshipEnables  RelationshipType = "enables"
	RelationshipPrevents RelationshipType = "prevents"

	// Contextual
	RelationshipDependsOn  RelationshipType = "depends_on"
	RelationshipPrecedes   RelationshipType = "precedes"
	RelationshipFollows    RelationshipType = "follows"
	RelationshipContextFor RelationshipType = "context_for"

	// Evidence
	RelationshipEvidencedBy         RelationshipType = "evidenced_by"
	RelationshipProvidesEvidenceFor RelationshipType = "provides_evidence_for"
	RelationshipConflictsWith       RelationshipType = "conflicts_with"

	// Similarity
	RelationshipSimilarTo     RelationshipType = "similar_to"
	RelationshipAnalogousTo   RelationshipType = "analogous_to"
	RelationshipContrastsWith RelationshipType = "contrasts_with"

	RelationshipCustom RelationshipType = "custom"
)

type RelationshipCategory string

const (
	CategoryTemporal   RelationshipCategory = "temporal"
	CategoryLogical    RelationshipCategory = "logical"
	CategorySemantic   RelationshipCategory = "semantic"
	CategoryCausal     RelationshipCategory = "causal"
	CategoryContextual RelationshipCategory = "contextual"
	CategoryEvidence   RelationshipCategory = "evidence"
	CategorySimilarity RelationshipCategory = "similarity"
	CategoryCustom     RelationshipCategory = "custom"
)

// RelationshipTypeInfo describes the static properties of a relationship type.
type RelationshipTypeInfo struct {
	Type          RelationshipType     `json:"type"`
	Category      RelationshipCategory `json:"category"`
	Description   string               `json:"description"`
	Deprecating   bool                 `json:"deprecating"`
	Bidirectional bool                 `json:"bidirectional"`
}

// relationshipTypes is ordered the way types are listed to callers.
var relationshipTypes = []RelationshipTypeInfo{
	{RelationshipSupersedes, CategoryTemporal, "Source belief supersedes target belief", true, false},
	{RelationshipUpdates, CategoryTemporal, "Source belief updates target belief", true, false},
	{RelationshipDeprecates, CategoryTemporal, "Source belief deprecates target belief", true, false},
	{RelationshipReplaces, CategoryTemporal, "Source belief replaces target belief", true, false},

	{RelationshipSupports, CategoryLogical, "Source belief supports target belief", false, false},
	{RelationshipContradicts, CategoryLogical, "Source belief contradicts target belief", false, false},
	{RelationshipImplies, CategoryLogical, "Source belief implies target belief", false, false},
	{RelationshipReinforces, CategoryLogical, "Source belief reinforces target belief", false, false},
	{RelationshipWeakens, CategoryLogical, "Source belief weakens target belief", false, false},

	{RelationshipRelatesTo, CategorySemantic, "Source belief is related to target belief", false, true},
	{RelationshipSpecializes, CategorySemantic, "Source belief is a specialization of target belief", false, false},
	{RelationshipGeneralizes, CategorySemantic, "Source belief is a generalization of target belief", false, false},
	{RelationshipExtends, CategorySemantic, "Source belief extends target belief", false, false},
	{RelationshipDerivesFrom, CategorySemantic, "Source belief is derived from target belief", false, false},

	{RelationshipCauses, CategoryCausal, "Source belief causes target belief", false, false},
	{RelationshipCausedBy, CategoryCausal, "Source belief is caused by target belief", false, false},
	{RelationshipEnables, CategoryCausal, "Source belief enables target belief", false, false},
	{RelationshipPrevents, CategoryCausal, "Source belief prevents target belief", false, false},

	{RelationshipDependsOn, CategoryContextual, "Source belief depends on target belief", false, false},
	{RelationshipPrecedes, CategoryContextual, "Source belief precedes target belief", false, false},
	{RelationshipFollows, CategoryContextual, "Source belief follows target belief", false, false},
	{RelationshipContextFor, CategoryContextual, "Source belief provides context for target belief", false, false},

	{RelationshipEvidencedBy, CategoryEvidence, "Source belief is evidenced by target belief", false, false},
	{RelationshipProvidesEvidenceFor, CategoryEvidence, "Source belief provides evidence for target belief", false, false},
	{RelationshipConflictsWith, CategoryEvidence, "Source belief conflicts with target belief", false, false},

	{RelationshipSimilarTo, CategorySimilarity, "Source belief is similar to target belief", false, true},
	{RelationshipAnalogousTo, CategorySimilarity, "Source belief is analogous to target belief", false, true},
	{RelationshipContrastsWith, CategorySimilarity, "Source belief contrasts with target belief", false, false},

	{RelationshipCustom, CategoryCustom, "Custom relationship type", false, false},
}

var relationshipTypeIndex = func() map[RelationshipType]RelationshipTypeInfo {
	idx := make(map[RelationshipType]RelationshipTypeInfo, len(relationshipTypes))
	for _, info := range relationshipTypes {
		idx[info.Type] = info
	}
	return idx
}()

var inverseRelationships = map[RelationshipType]RelationshipType{
	RelationshipCauses:              RelationshipCausedBy,
	RelationshipCausedBy:            RelationshipCauses,
	RelationshipSpecializes:         RelationshipGeneralizes,
	RelationshipGeneralizes:         RelationshipSpecializes,
	RelationshipPrecedes:            RelationshipFollows,
	RelationshipFollows:             RelationshipPrecedes,
	RelationshipEvidencedBy:         RelationshipProvidesEvidenceFor,
	RelationshipProvidesEvidenceFor: RelationshipEvidencedBy,
	RelationshipDerivesFrom:         RelationshipExtends,
	RelationshipSupports:            RelationshipReinforces,
}

// DeprecatingRelationshipTypes lists the types that mark their target as deprecated.
var DeprecatingRelationshipTypes = []RelationshipType{
	RelationshipSupersedes,
	RelationshipUpdates,
	RelationshipDeprecates,
	RelationshipReplaces,
}

// ConflictRelationshipTypes lists the types surfaced as potential conflicts.
var ConflictRelationshipTypes = []RelationshipType{
	RelationshipContradicts,
	RelationshipConflictsWith,
}

func ValidRelationshipType(t string) bool {
	_, ok := relationshipTypeIndex[RelationshipType(t)]
	return ok
}

// ParseRelationshipType accepts a type code in any letter case.
func ParseRelationshipType(s string) (RelationshipType, bool) {
	t := RelationshipType(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := relationshipTypeIndex[t]; !ok {
		return "", false
	}
	return t, true
}

// RelationshipTypes returns every known type in its canonical order.
func RelationshipTypes() []RelationshipTypeInfo {
	out := make([]RelationshipTypeInfo, len(relationshipTypes))
	copy(out, relationshipTypes)
	return out
}

func (t RelationshipType) Info() (RelationshipTypeInfo, bool) {
	info, ok := relationshipTypeIndex[t]
	return info, ok
}

func (t RelationshipType) Category() RelationshipCategory {
	return relationshipTypeIndex[t].Category
}

func (t RelationshipType) IsDeprecating() bool {
	return relationshipTypeIndex[t].Deprecating
}

func (t RelationshipType) IsBidirectional() bool {
	return relationshipTypeIndex[t].Bidirectional
}

func (t RelationshipType) IsConflict() bool {
	return t == RelationshipContradicts || t == RelationshipConflictsWith
}

// Inverse returns the type that reads the same relationship from the target's side.
func (t RelationshipType) Inverse() (RelationshipType, bool) {
	inv, ok := inverseRelationships[t]
	return inv, ok
}

// Direction selects which side of a belief's adjacency a query inspects.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
	DirectionBoth     Direction = "both"
)

func ParseDirection(s string) (Direction, bool) {
	switch Direction(strings.ToLower(s)) {
	case DirectionOutgoing:
		return DirectionOutgoing, true
	case DirectionIncoming:
		return DirectionIncoming, true
	case DirectionBoth, "":
		return DirectionBoth, true
	}
	return "", false
}

// MaxRetentionDays is the longest retention window expressible as a time.Duration.
const MaxRetentionDays = math.MaxInt64 / int64(24*time.Hour)

// RetentionWindow converts a day count into a duration, saturating at MaxRetentionDays.
// Negative counts yield zero.
func RetentionWindow(days int) time.Duration {
	d := int64(days)
	if d < 0 {
		d = 0
	}
	if d > MaxRetentionDays {
		d = MaxRetentionDays
	}
	return time.Duration(d) * 24 * time.Hour
}

// BeliefRelationship is a typed, weighted, temporally scoped edge between two beliefs.
type BeliefRelationship struct {
	ID                string           `json:"id"`
	SourceBeliefID    string           `json:"source_belief_id"`
	TargetBeliefID    string           `json:"target_belief_id"`
	Type              RelationshipType `json:"relationship_type"`
	Strength          float64          `json:"strength"`
	AgentID           string           `json:"agent_id"`
	Active            bool             `json:"active"`
	EffectiveFrom     *time.Time       `json:"effective_from,omitempty"`
	EffectiveUntil    *time.Time       `json:"effective_until,omitempty"`
	DeprecationReason string           `json:"deprecation_reason,omitempty"`
	Metadata          map[string]any   `json:"metadata,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	LastUpdated       time.Time        `json:"last_updated"`
}

// ClampStrength bounds a strength value to [0,1].
func ClampStrength(s float64) float64 {
	if s < 0 || math.IsNaN(s) {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// IsEffectiveAt reports whether t falls inside the effective window. An absent bound is open.
func (r *BeliefRelationship) IsEffectiveAt(t time.Time) bool {
	if r.EffectiveFrom != nil && t.Before(*r.EffectiveFrom) {
		return false
	}
	if r.EffectiveUntil != nil && t.After(*r.EffectiveUntil) {
		return false
	}
	return true
}

// IsCurrentlyEffective requires the relationship to be active and its window to contain now.
func (r *BeliefRelationship) IsCurrentlyEffective(now time.Time) bool {
	return r.Active && r.IsEffectiveAt(now)
}

func (r *BeliefRelationship) IsDeprecating() bool {
	return r.Type.IsDeprecating()
}

// HasInvalidWindow reports an effective window that closes before it opens.
func (r *BeliefRelationship) HasInvalidWindow() bool {
	return r.EffectiveFrom != nil && r.EffectiveUntil != nil && r.EffectiveFrom.After(*r.EffectiveUntil)
}

// OtherEnd returns the endpoint opposite to beliefID.
func (r *BeliefRelationship) OtherEnd(beliefID string) string {
	if r.SourceBeliefID == beliefID {
		return r.TargetBeliefID
	}
	return r.SourceBeliefID
}

// Clone returns a copy that shares no mutable state with r.
func (r *BeliefRelationship) Clone() BeliefRelationship {
	c := *r
	if r.EffectiveFrom != nil {
		t := *r.EffectiveFrom
		c.EffectiveFrom = &t
	}
	if r.EffectiveUntil != nil {
		t := *r.EffectiveUntil
		c.EffectiveUntil = &t
	}
	if r.Metadata != nil {
		c.Metadata = maps.Clone(r.Metadata)
	}
	return c
}
