package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Harshitk-cp/beliefgraph/internal/domain"
	"github.com/Harshitk-cp/beliefgraph/internal/service"
	"github.com/Harshitk-cp/beliefgraph/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const agent = "agent-1"

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func newTestApp(t *testing.T, opts Options) *App {
	t.Helper()
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	beliefs := store.NewInMemoryBeliefStore(
		domain.Belief{ID: "a", AgentID: agent, Statement: "The sky is blue", Confidence: 0.9, Active: true, CreatedAt: created},
		domain.Belief{ID: "b", AgentID: agent, Statement: "The sky is grey", Confidence: 0.6, Active: true, CreatedAt: created},
		domain.Belief{ID: "c", AgentID: agent, Statement: "Clouds make the sky grey", Confidence: 0.7, Active: true, CreatedAt: created},
	)
	engine := service.NewEngine(store.NewRelationshipStore(), beliefs, zap.NewNop(), service.EngineOptions{})
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	opts.RateLimitRPS = 1000
	opts.RateLimitBurst = 1000
	return NewApp(engine, zap.NewNop(), opts)
}

func do(t *testing.T, app *App, method, path string, body any, agentID string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if agentID != "" {
		req.Header.Set("X-Agent-ID", agentID)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

func createRelationship(t *testing.T, app *App, source, target, typ string) domain.BeliefRelationship {
	t.Helper()
	rec := do(t, app, http.MethodPost, "/v1/relationships", map[string]any{
		"source_belief_id":  source,
		"target_belief_id":  target,
		"relationship_type": typ,
		"strength":          0.9,
	}, agent)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var rel domain.BeliefRelationship
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rel))
	return rel
}

func TestCreateRelationship(t *testing.T) {
	app := newTestApp(t, Options{})

	rel := createRelationship(t, app, "a", "b", "supports")
	assert.True(t, strings.HasPrefix(rel.ID, "rel_"))
	assert.Equal(t, agent, rel.AgentID)
	assert.Equal(t, domain.RelationshipSupports, rel.Type)
	assert.InDelta(t, 0.9, rel.Strength, 1e-9)
	assert.True(t, rel.Active)

	rec := do(t, app, http.MethodGet, "/v1/relationships/"+rel.ID, nil, agent)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateRelationship_DefaultStrength(t *testing.T) {
	app := newTestApp(t, Options{})

	rec := do(t, app, http.MethodPost, "/v1/relationships", map[string]any{
		"source_belief_id":  "a",
		"target_belief_id":  "b",
		"relationship_type": "relates_to",
	}, agent)
	require.Equal(t, http.StatusCreated, rec.Code)

	var rel domain.BeliefRelationship
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rel))
	assert.Equal(t, 1.0, rel.Strength)
}

func TestCreateRelationship_BadRequests(t *testing.T) {
	app := newTestApp(t, Options{})

	tests := []struct {
		name string
		body any
	}{
		{"self reference", map[string]any{"source_belief_id": "a", "target_belief_id": "a", "relationship_type": "supports"}},
		{"unknown type", map[string]any{"source_belief_id": "a", "target_belief_id": "b", "relationship_type": "loves"}},
		{"missing source", map[string]any{"target_belief_id": "b", "relationship_type": "supports"}},
		{"not json", "{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, app, http.MethodPost, "/v1/relationships", tt.body, agent)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestMissingAgentHeader(t *testing.T) {
	app := newTestApp(t, Options{})

	rec := do(t, app, http.MethodGet, "/v1/graph/statistics", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "X-Agent-ID")
}

func TestRelationshipLifecycle(t *testing.T) {
	app := newTestApp(t, Options{})
	rel := createRelationship(t, app, "a", "b", "supports")

	rec := do(t, app, http.MethodGet, "/v1/relationships/"+rel.ID, nil, "agent-2")
	assert.Equal(t, http.StatusNotFound, rec.Code, "other agents cannot see the relationship")

	rec = do(t, app, http.MethodPatch, "/v1/relationships/"+rel.ID, map[string]any{"metadata": map[string]any{"source": "test"}}, agent)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated domain.BeliefRelationship
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.InDelta(t, 0.9, updated.Strength, 1e-9)
	assert.Equal(t, "test", updated.Metadata["source"])

	rec = do(t, app, http.MethodPost, "/v1/relationships/"+rel.ID+"/deactivate", nil, agent)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"`+rel.ID+`","active":false}`, rec.Body.String())

	rec = do(t, app, http.MethodGet, "/v1/relationships", nil, agent)
	assert.JSONEq(t, `{"relationships":[],"count":0}`, rec.Body.String())

	rec = do(t, app, http.MethodGet, "/v1/relationships?include_inactive=true", nil, agent)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = do(t, app, http.MethodPost, "/v1/relationships/"+rel.ID+"/reactivate", nil, agent)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, app, http.MethodDelete, "/v1/relationships/"+rel.ID, nil, agent)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, app, http.MethodDelete, "/v1/relationships/"+rel.ID, nil, agent)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetUnknownRelationship(t *testing.T) {
	app := newTestApp(t, Options{})

	rec := do(t, app, http.MethodGet, "/v1/relationships/rel_missing", nil, agent)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeprecateAndChain(t *testing.T) {
	app := newTestApp(t, Options{})

	rec := do(t, app, http.MethodPost, "/v1/relationships/deprecate", map[string]any{
		"old_belief_id": "b",
		"new_belief_id": "c",
		"reason":        "better explanation",
	}, agent)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, app, http.MethodGet, "/v1/graph/deprecated", nil, agent)
	assert.JSONEq(t, `{"belief_ids":["b"],"count":1}`, rec.Body.String())

	rec = do(t, app, http.MethodGet, "/v1/beliefs/b/superseding", nil, agent)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"c"`)

	rec = do(t, app, http.MethodGet, "/v1/beliefs/b/chain", nil, agent)
	require.Equal(t, http.StatusOK, rec.Code)
	var chain struct {
		Beliefs []domain.Belief `json:"beliefs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chain))
	require.Len(t, chain.Beliefs, 2)
	assert.Equal(t, "b", chain.Beliefs[0].ID)
	assert.Equal(t, "c", chain.Beliefs[1].ID)
}

func TestTraversalEndpoints(t *testing.T) {
	app := newTestApp(t, Options{})
	ab := createRelationship(t, app, "a", "b", "supports")
	bc := createRelationship(t, app, "b", "c", "implies")

	rec := do(t, app, http.MethodGet, "/v1/beliefs/a/reachable?depth=2", nil, agent)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"belief_id":"a","belief_ids":["b","c"],"count":2}`, rec.Body.String())

	rec = do(t, app, http.MethodGet, "/v1/beliefs/a/reachable?types=implies", nil, agent)
	assert.JSONEq(t, `{"belief_id":"a","belief_ids":[],"count":0}`, rec.Body.String())

	rec = do(t, app, http.MethodGet, "/v1/beliefs/a/reachable?types=bogus", nil, agent)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, app, http.MethodGet, "/v1/beliefs/a/path/c", nil, agent)
	require.Equal(t, http.StatusOK, rec.Code)
	var path struct {
		RelationshipIDs []string `json:"relationship_ids"`
		Found           bool     `json:"found"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &path))
	assert.True(t, path.Found)
	assert.Equal(t, []string{ab.ID, bc.ID}, path.RelationshipIDs)

	rec = do(t, app, http.MethodGet, "/v1/beliefs/b/degree", nil, agent)
	assert.JSONEq(t, `{"belief_id":"b","incoming":1,"outgoing":1,"total":2}`, rec.Body.String())

	rec = do(t, app, http.MethodGet, "/v1/beliefs/b/relationships?direction=sideways", nil, agent)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExport(t *testing.T) {
	app := newTestApp(t, Options{})
	createRelationship(t, app, "a", "b", "supports")

	rec := do(t, app, http.MethodGet, "/v1/graph/export?format=dot", nil, agent)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/vnd.graphviz", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "knowledge-graph.dot")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "digraph KnowledgeGraph {"))
	assert.Contains(t, rec.Body.String(), `"a" -> "b" [label="supports"];`)

	rec = do(t, app, http.MethodGet, "/v1/graph/export", nil, agent)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	rec = do(t, app, http.MethodGet, "/v1/graph/export?format=xml", nil, agent)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBulkAndImport(t *testing.T) {
	app := newTestApp(t, Options{})

	rec := do(t, app, http.MethodPost, "/v1/relationships/bulk", map[string]any{
		"relationships": []map[string]any{
			{"source_belief_id": "a", "target_belief_id": "b", "relationship_type": "supports"},
			{"source_belief_id": "b", "target_belief_id": "c", "relationship_type": "causes", "strength": 0.5},
		},
	}, agent)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":2`)

	payload := `[{"source_belief_id":"c","target_belief_id":"a","relationship_type":"weakens","strength":0.3}]`
	req := httptest.NewRequest(http.MethodPost, "/v1/relationships/import", strings.NewReader(payload))
	req.Header.Set("X-Agent-ID", agent)
	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"imported":1}`, rec.Body.String())

	rec = do(t, app, http.MethodGet, "/v1/graph/statistics", nil, agent)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats domain.GraphStatistics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.TotalRelationships)
	assert.Equal(t, 3, stats.TotalBeliefs)
}

func TestGraphViews(t *testing.T) {
	app := newTestApp(t, Options{})
	createRelationship(t, app, "a", "b", "contradicts")

	rec := do(t, app, http.MethodGet, "/v1/graph/validate", nil, agent)
	assert.JSONEq(t, `{"valid":true,"issues":[],"count":0}`, rec.Body.String())

	rec = do(t, app, http.MethodGet, "/v1/graph/conflicts", nil, agent)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = do(t, app, http.MethodGet, "/v1/graph/snapshot", nil, agent)
	require.Equal(t, http.StatusOK, rec.Code)
	var g domain.KnowledgeGraph
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &g))
	assert.Equal(t, agent, g.AgentID)
	assert.Len(t, g.Beliefs, 3)
	assert.Len(t, g.Relationships, 1)

	rec = do(t, app, http.MethodPost, "/v1/graph/snapshot/filtered", map[string]any{"belief_ids": []string{"a"}}, agent)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, app, http.MethodGet, "/v1/graph/search?q=grey", nil, agent)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":2`)

	rec = do(t, app, http.MethodGet, "/v1/graph/search", nil, agent)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, app, http.MethodPost, "/v1/graph/cleanup?older_than_days=abc", nil, agent)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, app, http.MethodPost, "/v1/graph/cleanup", nil, agent)
	assert.JSONEq(t, `{"removed":0}`, rec.Body.String())

	rec = do(t, app, http.MethodGet, "/v1/relationship-types", nil, agent)
	require.Equal(t, http.StatusOK, rec.Code)
	var types struct {
		Types []struct {
			Type          string `json:"type"`
			Inverse       string `json:"inverse"`
			Bidirectional bool   `json:"bidirectional"`
		} `json:"types"`
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &types))
	assert.Equal(t, 29, types.Count)
	byType := make(map[string]int)
	for i, ty := range types.Types {
		byType[ty.Type] = i
	}
	assert.Equal(t, "supersedes", types.Types[0].Type)
	assert.Equal(t, "caused_by", types.Types[byType["causes"]].Inverse)
	assert.Empty(t, types.Types[byType["contradicts"]].Inverse)
	assert.True(t, types.Types[byType["similar_to"]].Bidirectional)
}

func TestCleanupRejectsOverflowingRetention(t *testing.T) {
	app := newTestApp(t, Options{})
	rel := createRelationship(t, app, "a", "b", "supports")
	rec := do(t, app, http.MethodPost, "/v1/relationships/"+rel.ID+"/deactivate", nil, agent)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, app, http.MethodPost, "/v1/graph/cleanup?older_than_days=200000", nil, agent)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, app, http.MethodPost, "/v1/graph/cleanup?older_than_days=-1", nil, agent)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, app, http.MethodPost, "/v1/graph/cleanup?older_than_days=106751", nil, agent)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"removed":0}`, rec.Body.String())

	_, ok := app.Engine.Store.Get(rel.ID)
	assert.True(t, ok, "a freshly deactivated relationship is kept")
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, Options{})

	rec := do(t, app, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "dev", resp.Build.Version)
}

func TestHealth_DatabaseDown(t *testing.T) {
	app := newTestApp(t, Options{DB: fakePinger{err: errors.New("connection refused")}})

	rec := do(t, app, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t, Options{})
	createRelationship(t, app, "a", "b", "supports")

	rec := do(t, app, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "beliefgraph_http_requests_total")
	assert.Contains(t, rec.Body.String(), `method="POST"`)
}

func TestRequestIDHeader(t *testing.T) {
	app := newTestApp(t, Options{})

	rec := do(t, app, http.MethodGet, "/health", nil, "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
