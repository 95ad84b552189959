package store

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/Harshitk-cp/beliefgraph/internal/domain"
)

// InMemoryBeliefStore serves beliefs from a map. It backs local runs and tests.
type InMemoryBeliefStore struct {
	mu      sync.RWMutex
	beliefs map[string]domain.Belief
}

func NewInMemoryBeliefStore(beliefs ...domain.Belief) *InMemoryBeliefStore {
	s := &InMemoryBeliefStore{beliefs: make(map[string]domain.Belief, len(beliefs))}
	for _, b := range beliefs {
		s.beliefs[b.ID] = b
	}
	return s
}

func (s *InMemoryBeliefStore) GetByID(ctx context.Context, id string) (*domain.Belief, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.beliefs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

// ListByAgent returns the agent's beliefs ordered by id.
func (s *InMemoryBeliefStore) ListByAgent(ctx context.Context, agentID string) ([]domain.Belief, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Belief
	for _, b := range s.beliefs {
		if b.AgentID == agentID {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b domain.Belief) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *InMemoryBeliefStore) Put(b domain.Belief) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beliefs[b.ID] = b
}

func (s *InMemoryBeliefStore) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.beliefs, id)
}

// Replace swaps the whole belief set.
func (s *InMemoryBeliefStore) Replace(beliefs []domain.Belief) {
	next := make(map[string]domain.Belief, len(beliefs))
	for _, b := range beliefs {
		next[b.ID] = b
	}
	s.mu.Lock()
	s.beliefs = next
	s.mu.Unlock()
}
