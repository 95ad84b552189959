package domain

import "time"

// KnowledgeGraph is a point-in-time subgraph of one agent's beliefs and relationships.
type KnowledgeGraph struct {
	AgentID       string               `json:"agent_id"`
	Beliefs       []Belief             `json:"beliefs"`
	Relationships []BeliefRelationship `json:"relationships"`
	CreatedAt     time.Time            `json:"created_at"`
}

func (g *KnowledgeGraph) BeliefIDs() []string {
	ids := make([]string, len(g.Beliefs))
	for i, b := range g.Beliefs {
		ids[i] = b.ID
	}
	return ids
}

func (g *KnowledgeGraph) RelationshipIDs() []string {
	ids := make([]string, len(g.Relationships))
	for i, r := range g.Relationships {
		ids[i] = r.ID
	}
	return ids
}

type GraphStatistics struct {
	TotalBeliefs                 int                      `json:"total_beliefs"`
	ActiveBeliefs                int                      `json:"active_beliefs"`
	TotalRelationships           int                      `json:"total_relationships"`
	ActiveRelationships          int                      `json:"active_relationships"`
	DeprecatedBeliefs            int                      `json:"deprecated_beliefs"`
	RelationshipTypeDistribution map[RelationshipType]int `json:"relationship_type_distribution"`
	AverageRelationshipStrength  float64                  `json:"average_relationship_strength"`
	GraphDensity                 float64                  `json:"graph_density"`
	ComputedAt                   time.Time                `json:"computed_at"`
}

// BeliefCluster is a group of beliefs joined by strong relationships.
type BeliefCluster struct {
	Label           string   `json:"label"`
	BeliefIDs       []string `json:"belief_ids"`
	AverageStrength float64  `json:"average_strength"`
}

type ConflictCandidate struct {
	RelationshipID string           `json:"relationship_id"`
	SourceBeliefID string           `json:"source_belief_id"`
	TargetBeliefID string           `json:"target_belief_id"`
	Type           RelationshipType `json:"relationship_type"`
	Strength       float64          `json:"strength"`
	Description    string           `json:"description"`
}

type ValidationIssueKind string

const (
	IssueOrphanedRelationship ValidationIssueKind = "orphaned_relationship"
	IssueSelfReference        ValidationIssueKind = "self_reference"
	IssueTemporallyInvalid    ValidationIssueKind = "temporally_invalid"
)

type ValidationIssue struct {
	Kind           ValidationIssueKind `json:"kind"`
	RelationshipID string              `json:"relationship_id"`
	Message        string              `json:"message"`
}

type SimilarBelief struct {
	BeliefID   string  `json:"belief_id"`
	Similarity float64 `json:"similarity"`
}

// BeliefPair is an unordered pair of beliefs as recorded by a relationship.
type BeliefPair struct {
	SourceBeliefID string `json:"source_belief_id"`
	TargetBeliefID string `json:"target_belief_id"`
}

type BeliefDegree struct {
	Incoming int `json:"incoming"`
	Outgoing int `json:"outgoing"`
}

func (d BeliefDegree) Total() int {
	return d.Incoming + d.Outgoing
}

// GraphHealth summarizes the engine's internal state.
type GraphHealth struct {
	Relationships     int       `json:"relationships"`
	Agents            int       `json:"agents"`
	OutgoingBuckets   int       `json:"outgoing_buckets"`
	IncomingBuckets   int       `json:"incoming_buckets"`
	TypeBuckets       int       `json:"type_buckets"`
	DeprecatedTargets int       `json:"deprecated_targets"`
	CachedStatistics  int       `json:"cached_statistics"`
	CacheHits         int64     `json:"cache_hits"`
	CacheMisses       int64     `json:"cache_misses"`
	CheckedAt         time.Time `json:"checked_at"`
}
