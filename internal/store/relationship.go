package store

import (
	"cmp"
	"slices"
	"sync"

	"github.com/Harshitk-cp/beliefgraph/internal/domain"
)

type idSet map[string]struct{}

type relationshipEntry struct {
	seq uint64
	rel domain.BeliefRelationship
}

// RelationshipStore keeps relationships in one arena keyed by id. Every index holds ids only,
// and the arena plus all indices change together under mu.
type RelationshipStore struct {
	mu      sync.RWMutex
	nextSeq uint64
	arena   map[string]*relationshipEntry

	outgoing map[string]idSet
	incoming map[string]idSet
	byAgent  map[string]idSet
	byType   map[domain.RelationshipType]idSet
	// deprecated maps agent -> target belief -> active deprecating relationship ids.
	deprecated map[string]map[string]idSet
}

func NewRelationshipStore() *RelationshipStore {
	return &RelationshipStore{
		arena:      make(map[string]*relationshipEntry),
		outgoing:   make(map[string]idSet),
		incoming:   make(map[string]idSet),
		byAgent:    make(map[string]idSet),
		byType:     make(map[domain.RelationshipType]idSet),
		deprecated: make(map[string]map[string]idSet),
	}
}

func (s *RelationshipStore) Insert(r domain.BeliefRelationship) error {
	if r.ID == "" {
		return ErrEmptyID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.arena[r.ID]; exists {
		return ErrDuplicateID
	}
	s.nextSeq++
	e := &relationshipEntry{seq: s.nextSeq, rel: r.Clone()}
	s.arena[r.ID] = e
	s.index(&e.rel)
	return nil
}

func (s *RelationshipStore) Get(id string) (domain.BeliefRelationship, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.arena[id]
	if !ok {
		return domain.BeliefRelationship{}, false
	}
	return e.rel.Clone(), true
}

// Update applies fn to the stored record and re-indexes it. The id cannot be changed by fn.
func (s *RelationshipStore) Update(id string, fn func(r *domain.BeliefRelationship)) (domain.BeliefRelationship, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.arena[id]
	if !ok {
		return domain.BeliefRelationship{}, false
	}
	s.unindex(&e.rel)
	fn(&e.rel)
	e.rel.ID = id
	s.index(&e.rel)
	return e.rel.Clone(), true
}

func (s *RelationshipStore) Delete(id string) (domain.BeliefRelationship, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.arena[id]
	if !ok {
		return domain.BeliefRelationship{}, false
	}
	s.unindex(&e.rel)
	delete(s.arena, id)
	return e.rel, true
}

func (s *RelationshipStore) ByType(t domain.RelationshipType) []domain.BeliefRelationship {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.byType[t])
}

func (s *RelationshipStore) AgentRelationshipIDs(agentID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orderedIDs(s.byAgent[agentID])
}

func (s *RelationshipStore) ScanAgent(agentID string, fn func(r *domain.BeliefRelationship) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.ordered(s.byAgent[agentID]) {
		if !fn(&e.rel) {
			return
		}
	}
}

func (s *RelationshipStore) ScanBelief(beliefID string, dir domain.Direction, fn func(r *domain.BeliefRelationship) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []*relationshipEntry
	switch dir {
	case domain.DirectionOutgoing:
		entries = s.ordered(s.outgoing[beliefID])
	case domain.DirectionIncoming:
		entries = s.ordered(s.incoming[beliefID])
	default:
		// A self-referencing relationship sits in both buckets and is visited once.
		entries = s.ordered(s.outgoing[beliefID], s.incoming[beliefID])
	}
	for _, e := range entries {
		if !fn(&e.rel) {
			return
		}
	}
}

// DeprecatedTargets returns the belief ids targeted by at least one active deprecating relationship.
func (s *RelationshipStore) DeprecatedTargets(agentID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	targets := make([]string, 0, len(s.deprecated[agentID]))
	for id := range s.deprecated[agentID] {
		targets = append(targets, id)
	}
	slices.Sort(targets)
	return targets
}

func (s *RelationshipStore) DeprecatingIncoming(agentID, beliefID string) []domain.BeliefRelationship {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.deprecated[agentID][beliefID])
}

func (s *RelationshipStore) AgentIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.byAgent))
	for id := range s.byAgent {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (s *RelationshipStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.arena)
}

func (s *RelationshipStore) IndexSizes() domain.IndexSizes {
	s.mu.RLock()
	defer s.mu.RUnlock()

	deprecated := 0
	for _, targets := range s.deprecated {
		deprecated += len(targets)
	}
	return domain.IndexSizes{
		Outgoing:   len(s.outgoing),
		Incoming:   len(s.incoming),
		Agents:     len(s.byAgent),
		Types:      len(s.byType),
		Deprecated: deprecated,
	}
}

// index and unindex must be called with mu held for writing.
func (s *RelationshipStore) index(r *domain.BeliefRelationship) {
	addTo(s.outgoing, r.SourceBeliefID, r.ID)
	addTo(s.incoming, r.TargetBeliefID, r.ID)
	addTo(s.byAgent, r.AgentID, r.ID)
	addTo(s.byType, r.Type, r.ID)
	if r.Active && r.IsDeprecating() {
		targets, ok := s.deprecated[r.AgentID]
		if !ok {
			targets = make(map[string]idSet)
			s.deprecated[r.AgentID] = targets
		}
		addTo(targets, r.TargetBeliefID, r.ID)
	}
}

func (s *RelationshipStore) unindex(r *domain.BeliefRelationship) {
	removeFrom(s.outgoing, r.SourceBeliefID, r.ID)
	removeFrom(s.incoming, r.TargetBeliefID, r.ID)
	removeFrom(s.byAgent, r.AgentID, r.ID)
	removeFrom(s.byType, r.Type, r.ID)
	if targets, ok := s.deprecated[r.AgentID]; ok {
		removeFrom(targets, r.TargetBeliefID, r.ID)
		if len(targets) == 0 {
			delete(s.deprecated, r.AgentID)
		}
	}
}

// ordered resolves id sets to arena entries sorted by insertion sequence.
func (s *RelationshipStore) ordered(sets ...idSet) []*relationshipEntry {
	n := 0
	for _, set := range sets {
		n += len(set)
	}
	entries := make([]*relationshipEntry, 0, n)
	seen := make(map[string]struct{}, n)
	for _, set := range sets {
		for id := range set {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if e, ok := s.arena[id]; ok {
				entries = append(entries, e)
			}
		}
	}
	slices.SortFunc(entries, func(a, b *relationshipEntry) int {
		return cmp.Compare(a.seq, b.seq)
	})
	return entries
}

func (s *RelationshipStore) collect(set idSet) []domain.BeliefRelationship {
	entries := s.ordered(set)
	out := make([]domain.BeliefRelationship, len(entries))
	for i, e := range entries {
		out[i] = e.rel.Clone()
	}
	return out
}

func (s *RelationshipStore) orderedIDs(set idSet) []string {
	entries := s.ordered(set)
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.rel.ID
	}
	return ids
}

func addTo[K comparable](m map[K]idSet, key K, id string) {
	set, ok := m[key]
	if !ok {
		set = make(idSet)
		m[key] = set
	}
	set[id] = struct{}{}
}

func removeFrom[K comparable](m map[K]idSet, key K, id string) {
	set, ok := m[key]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(m, key)
	}
}
