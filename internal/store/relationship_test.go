package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Harshitk-cp/beliefgraph/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRel(id, src, dst string, t domain.RelationshipType) domain.BeliefRelationship {
	now := time.Now()
	return domain.BeliefRelationship{
		ID:             id,
		SourceBeliefID: src,
		TargetBeliefID: dst,
		Type:           t,
		Strength:       0.5,
		AgentID:        "agent-1",
		Active:         true,
		CreatedAt:      now,
		LastUpdated:    now,
	}
}

func scannedIDs(s *RelationshipStore, beliefID string, dir domain.Direction) []string {
	var ids []string
	s.ScanBelief(beliefID, dir, func(r *domain.BeliefRelationship) bool {
		ids = append(ids, r.ID)
		return true
	})
	return ids
}

func TestRelationshipStore_InsertAndGet(t *testing.T) {
	s := NewRelationshipStore()

	require.NoError(t, s.Insert(newRel("r1", "a", "b", domain.RelationshipSupports)))

	got, ok := s.Get("r1")
	require.True(t, ok)
	assert.Equal(t, "a", got.SourceBeliefID)
	assert.Equal(t, "b", got.TargetBeliefID)

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestRelationshipStore_InsertRejectsDuplicateAndEmptyID(t *testing.T) {
	s := NewRelationshipStore()
	require.NoError(t, s.Insert(newRel("r1", "a", "b", domain.RelationshipSupports)))

	assert.ErrorIs(t, s.Insert(newRel("r1", "c", "d", domain.RelationshipSupports)), ErrDuplicateID)
	assert.ErrorIs(t, s.Insert(newRel("", "c", "d", domain.RelationshipSupports)), ErrEmptyID)
	assert.Equal(t, 1, s.Len())
}

func TestRelationshipStore_IndicesStayConsistent(t *testing.T) {
	s := NewRelationshipStore()
	require.NoError(t, s.Insert(newRel("r1", "a", "b", domain.RelationshipSupports)))
	require.NoError(t, s.Insert(newRel("r2", "a", "c", domain.RelationshipSupersedes)))
	require.NoError(t, s.Insert(newRel("r3", "c", "a", domain.RelationshipContradicts)))

	assert.Equal(t, []string{"r1", "r2"}, scannedIDs(s, "a", domain.DirectionOutgoing))
	assert.Equal(t, []string{"r3"}, scannedIDs(s, "a", domain.DirectionIncoming))
	assert.Len(t, s.AgentRelationshipIDs("agent-1"), 3)
	assert.Len(t, s.ByType(domain.RelationshipSupersedes), 1)
	assert.Equal(t, []string{"c"}, s.DeprecatedTargets("agent-1"))

	_, ok := s.Delete("r2")
	require.True(t, ok)

	assert.Equal(t, []string{"r1"}, scannedIDs(s, "a", domain.DirectionOutgoing))
	assert.Empty(t, scannedIDs(s, "c", domain.DirectionIncoming))
	assert.Empty(t, s.ByType(domain.RelationshipSupersedes))
	assert.Empty(t, s.DeprecatedTargets("agent-1"))

	sizes := s.IndexSizes()
	assert.Equal(t, 0, sizes.Deprecated)
	assert.Equal(t, 2, sizes.Types)
}

func TestRelationshipStore_DeleteLastPrunesBuckets(t *testing.T) {
	s := NewRelationshipStore()
	require.NoError(t, s.Insert(newRel("r1", "a", "b", domain.RelationshipReplaces)))

	_, ok := s.Delete("r1")
	require.True(t, ok)

	assert.Equal(t, domain.IndexSizes{}, s.IndexSizes())
	assert.Empty(t, s.AgentIDs())

	_, ok = s.Delete("r1")
	assert.False(t, ok)
}

func TestRelationshipStore_UpdateReindexesDeprecation(t *testing.T) {
	s := NewRelationshipStore()
	require.NoError(t, s.Insert(newRel("r1", "new", "old", domain.RelationshipSupersedes)))
	require.Equal(t, []string{"old"}, s.DeprecatedTargets("agent-1"))

	updated, ok := s.Update("r1", func(r *domain.BeliefRelationship) {
		r.Active = false
		r.ID = "hijacked"
	})
	require.True(t, ok)
	assert.Equal(t, "r1", updated.ID)
	assert.False(t, updated.Active)
	assert.Empty(t, s.DeprecatedTargets("agent-1"))

	_, ok = s.Update("r1", func(r *domain.BeliefRelationship) { r.Active = true })
	require.True(t, ok)
	assert.Equal(t, []string{"old"}, s.DeprecatedTargets("agent-1"))
	assert.Len(t, s.DeprecatingIncoming("agent-1", "old"), 1)

	_, ok = s.Update("missing", func(r *domain.BeliefRelationship) {})
	assert.False(t, ok)
}

func TestRelationshipStore_ReturnsCopies(t *testing.T) {
	s := NewRelationshipStore()
	r := newRel("r1", "a", "b", domain.RelationshipSupports)
	r.Metadata = map[string]any{"k": "v"}
	require.NoError(t, s.Insert(r))

	got, _ := s.Get("r1")
	got.Metadata["k"] = "changed"
	got.Strength = 0.9

	again, _ := s.Get("r1")
	assert.Equal(t, "v", again.Metadata["k"])
	assert.Equal(t, 0.5, again.Strength)
}

func TestRelationshipStore_ScanBeliefVisitsSelfReferenceOnce(t *testing.T) {
	s := NewRelationshipStore()
	require.NoError(t, s.Insert(newRel("loop", "a", "a", domain.RelationshipRelatesTo)))
	require.NoError(t, s.Insert(newRel("r2", "b", "a", domain.RelationshipSupports)))

	var seen []string
	s.ScanBelief("a", domain.DirectionBoth, func(r *domain.BeliefRelationship) bool {
		seen = append(seen, r.ID)
		return true
	})
	assert.Equal(t, []string{"loop", "r2"}, seen)
}

func TestRelationshipStore_ScanAgentStopsEarly(t *testing.T) {
	s := NewRelationshipStore()
	for i := range 5 {
		require.NoError(t, s.Insert(newRel(fmt.Sprintf("r%d", i), "a", fmt.Sprintf("b%d", i), domain.RelationshipSupports)))
	}

	count := 0
	s.ScanAgent("agent-1", func(r *domain.BeliefRelationship) bool {
		count++
		return count < 2
	})
	assert.Equal(t, 2, count)
}

func TestRelationshipStore_ConcurrentWritersAndReaders(t *testing.T) {
	s := NewRelationshipStore()

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				id := fmt.Sprintf("w%d-%d", w, i)
				_ = s.Insert(newRel(id, "hub", id, domain.RelationshipSupports))
				_ = scannedIDs(s, "hub", domain.DirectionOutgoing)
				if i%2 == 0 {
					s.Delete(id)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 8*25, s.Len())
	assert.Len(t, scannedIDs(s, "hub", domain.DirectionOutgoing), s.Len())
	assert.Len(t, s.AgentRelationshipIDs("agent-1"), s.Len())
}
