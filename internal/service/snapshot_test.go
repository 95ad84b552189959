package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/Harshitk-cp/beliefgraph/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshotFixture struct {
	*testEngine
	ab, bc, cd, expired domain.BeliefRelationship
}

func newSnapshotFixture(t *testing.T) snapshotFixture {
	t.Helper()
	d := belief("d", "retired")
	d.Active = false
	e := newTestEngine(t,
		belief("c", `He said "hi"`),
		belief("a", "The quick brown fox jumps over the lazy dog"),
		belief("b", "short"),
		d,
	)
	f := snapshotFixture{testEngine: e}
	f.ab = e.link(t, "a", "b", domain.RelationshipSupports, 0.9)
	f.bc = e.link(t, "b", "c", domain.RelationshipContradicts, 0.5)
	f.cd = e.link(t, "c", "d", domain.RelationshipImplies, 0.5)
	require.True(t, e.Relationships.Deactivate(context.Background(), f.cd.ID, testAgent))
	until := testNow.Add(-time.Hour)
	rel, err := e.Relationships.CreateTemporal(context.Background(), "a", "c", domain.RelationshipRelatesTo, 0.3, testAgent, nil, &until)
	require.NoError(t, err)
	f.expired = *rel
	return f
}

func TestSnapshotGraph(t *testing.T) {
	f := newSnapshotFixture(t)
	ctx := context.Background()

	g, err := f.Snapshots.SnapshotGraph(ctx, testAgent, false)
	require.NoError(t, err)
	assert.Equal(t, testAgent, g.AgentID)
	assert.Equal(t, testNow, g.CreatedAt)
	assert.Equal(t, []string{"a", "b", "c"}, g.BeliefIDs())
	assert.Equal(t, []string{f.ab.ID, f.bc.ID, f.expired.ID}, g.RelationshipIDs())

	g, err = f.Snapshots.SnapshotGraph(ctx, testAgent, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, g.BeliefIDs())
	assert.Equal(t, []string{f.ab.ID, f.bc.ID, f.cd.ID, f.expired.ID}, g.RelationshipIDs())

	g, err = f.Snapshots.ActiveGraph(ctx, testAgent)
	require.NoError(t, err)
	assert.Equal(t, []string{f.ab.ID, f.bc.ID}, g.RelationshipIDs())

	g, err = f.Snapshots.SnapshotGraph(ctx, "nobody", true)
	require.NoError(t, err)
	assert.NotNil(t, g.Beliefs)
	assert.Empty(t, g.Beliefs)
	assert.Empty(t, g.Relationships)
}

func TestSnapshotGraph_ReturnsCopies(t *testing.T) {
	f := newSnapshotFixture(t)
	ctx := context.Background()

	g, err := f.Snapshots.SnapshotGraph(ctx, testAgent, true)
	require.NoError(t, err)
	g.Relationships[0].Strength = 0
	g.Relationships[3].EffectiveUntil = nil

	stored, ok := f.Store.Get(f.ab.ID)
	require.True(t, ok)
	assert.Equal(t, 0.9, stored.Strength)
	stored, ok = f.Store.Get(f.expired.ID)
	require.True(t, ok)
	assert.NotNil(t, stored.EffectiveUntil)
}

func TestFilteredSnapshotGraph(t *testing.T) {
	f := newSnapshotFixture(t)
	ctx := context.Background()

	tests := []struct {
		name        string
		filter      SnapshotFilter
		wantBeliefs []string
		wantRels    []string
	}{
		{
			name:        "no restriction",
			filter:      SnapshotFilter{},
			wantBeliefs: []string{"a", "b", "c", "d"},
			wantRels:    []string{f.ab.ID, f.bc.ID, f.cd.ID, f.expired.ID},
		},
		{
			name:        "belief ids drop dangling relationships",
			filter:      SnapshotFilter{BeliefIDs: []string{"a", "b"}},
			wantBeliefs: []string{"a", "b"},
			wantRels:    []string{f.ab.ID},
		},
		{
			name:        "empty belief id list keeps nothing",
			filter:      SnapshotFilter{BeliefIDs: []string{}},
			wantBeliefs: []string{},
			wantRels:    []string{},
		},
		{
			name:        "type filter",
			filter:      SnapshotFilter{Types: []domain.RelationshipType{domain.RelationshipContradicts}},
			wantBeliefs: []string{"a", "b", "c", "d"},
			wantRels:    []string{f.bc.ID},
		},
		{
			name:        "max beliefs",
			filter:      SnapshotFilter{MaxBeliefs: 2},
			wantBeliefs: []string{"a", "b"},
			wantRels:    []string{f.ab.ID},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := f.Snapshots.FilteredSnapshotGraph(ctx, testAgent, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.wantBeliefs, g.BeliefIDs())
			assert.Equal(t, tt.wantRels, g.RelationshipIDs())
		})
	}
}

func TestExportJSON(t *testing.T) {
	f := newSnapshotFixture(t)

	out, err := f.Snapshots.Export(context.Background(), testAgent, "JSON")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, testAgent, got["agentId"])
	assert.EqualValues(t, 4, got["beliefCount"])
	assert.EqualValues(t, 4, got["relationshipCount"])
	assert.Equal(t, []any{"a", "b", "c", "d"}, got["beliefIds"])
	assert.Len(t, got["relationshipIds"], 4)
}

func TestExportDOT(t *testing.T) {
	f := newSnapshotFixture(t)

	out, err := f.Snapshots.Export(context.Background(), testAgent, "dot")
	require.NoError(t, err)
	dot := string(out)

	assert.True(t, strings.HasPrefix(dot, "digraph KnowledgeGraph {\n"))
	assert.True(t, strings.HasSuffix(dot, "}\n"))
	assert.Contains(t, dot, `"a" [label="The quick brown fox jumps over..."];`)
	assert.Contains(t, dot, `"b" [label="short..."];`)
	assert.Contains(t, dot, `"c" [label="He said \"hi\"..."];`)
	assert.NotContains(t, dot, `"d" [label=`, "inactive beliefs are not exported")
	assert.Contains(t, dot, `"a" -> "b" [label="supports"];`)
	assert.Contains(t, dot, `"b" -> "c" [label="contradicts"];`)
	assert.NotContains(t, dot, `"c" -> "d"`)
	assert.Contains(t, dot, `"a" -> "c" [label="relates_to"];`, "active edges are drawn regardless of window")
}

func TestExport_UnsupportedFormat(t *testing.T) {
	f := newSnapshotFixture(t)

	_, err := f.Snapshots.Export(context.Background(), testAgent, "graphml")
	assert.ErrorIs(t, err, ErrUnsupportedExportFormat)
}

func TestParseExportFormat(t *testing.T) {
	got, ok := ParseExportFormat(" Dot ")
	assert.True(t, ok)
	assert.Equal(t, ExportDOT, got)
	assert.Equal(t, "text/vnd.graphviz", ExportFormats[got].MIMEType)

	_, ok = ParseExportFormat("yaml")
	assert.False(t, ok)
}

func TestDotLabel(t *testing.T) {
	assert.Equal(t, "...", dotLabel(""))
	assert.Equal(t, `a\\b...`, dotLabel(`a\b`))
	assert.Equal(t, strings.Repeat("é", 30)+"...", dotLabel(strings.Repeat("é", 40)))
}
