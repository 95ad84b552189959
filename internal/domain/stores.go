package domain

import "context"

// BeliefStore is the read side of the external belief repository.
type BeliefStore interface {
	GetByID(ctx context.Context, id string) (*Belief, error)
	ListByAgent(ctx context.Context, agentID string) ([]Belief, error)
}

// RelationshipStore owns relationship records and the indices over them.
// Slices returned by the store are copies ordered by insertion sequence.
type RelationshipStore interface {
	Insert(r BeliefRelationship) error
	Get(id string) (BeliefRelationship, bool)
	Update(id string, fn func(r *BeliefRelationship)) (BeliefRelationship, bool)
	Delete(id string) (BeliefRelationship, bool)

	ByType(t RelationshipType) []BeliefRelationship
	AgentRelationshipIDs(agentID string) []string

	// ScanAgent visits the agent's relationships in place; fn must not retain r or call back into the store.
	ScanAgent(agentID string, fn func(r *BeliefRelationship) bool)
	// ScanBelief visits relationships incident to beliefID in the given direction.
	ScanBelief(beliefID string, dir Direction, fn func(r *BeliefRelationship) bool)
	DeprecatedTargets(agentID string) []string
	// DeprecatingIncoming returns active deprecating relationships that target beliefID.
	DeprecatingIncoming(agentID, beliefID string) []BeliefRelationship
	AgentIDs() []string
	Len() int
	IndexSizes() IndexSizes
}

type IndexSizes struct {
	Outgoing   int
	Incoming   int
	Agents     int
	Types      int
	Deprecated int
}
