package handlers

import (
	"net/http"

	"github.com/Harshitk-cp/beliefgraph/internal/api/middleware"
	"github.com/Harshitk-cp/beliefgraph/internal/domain"
	"github.com/Harshitk-cp/beliefgraph/internal/service"
	"go.uber.org/zap"
)

const (
	defaultClusterThreshold = 0.8
	defaultMaxBeliefs       = 1000
	defaultCleanupDays      = 365
)

// GraphHandler serves whole-graph views of one agent.
type GraphHandler struct {
	engine *service.Engine
	logger *zap.Logger
}

func NewGraphHandler(engine *service.Engine, logger *zap.Logger) *GraphHandler {
	return &GraphHandler{engine: engine, logger: logger}
}

func (h *GraphHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	agentID := middleware.AgentIDFromContext(r.Context())

	stats, err := h.engine.Query.Statistics(r.Context(), agentID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *GraphHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Query.Health(r.Context()))
}

type validationResponse struct {
	Valid  bool                     `json:"valid"`
	Issues []domain.ValidationIssue `json:"issues"`
	Count  int                      `json:"count"`
}

func (h *GraphHandler) Validate(w http.ResponseWriter, r *http.Request) {
	agentID := middleware.AgentIDFromContext(r.Context())

	issues, err := h.engine.Validation.ValidateGraphStructure(r.Context(), agentID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if issues == nil {
		issues = []domain.ValidationIssue{}
	}
	writeJSON(w, http.StatusOK, validationResponse{Valid: len(issues) == 0, Issues: issues, Count: len(issues)})
}

func (h *GraphHandler) Conflicts(w http.ResponseWriter, r *http.Request) {
	agentID := middleware.AgentIDFromContext(r.Context())

	conflicts := h.engine.Validation.PotentialConflicts(r.Context(), agentID)
	if conflicts == nil {
		conflicts = []domain.ConflictCandidate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"conflicts": conflicts, "count": len(conflicts)})
}

func (h *GraphHandler) Clusters(w http.ResponseWriter, r *http.Request) {
	agentID := middleware.AgentIDFromContext(r.Context())

	threshold, ok := queryFloat(r, "threshold", defaultClusterThreshold)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid threshold")
		return
	}

	clusters, err := h.engine.Traversal.StronglyConnectedClusters(r.Context(), agentID, threshold)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if clusters == nil {
		clusters = []domain.BeliefCluster{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"clusters": clusters, "count": len(clusters)})
}

func (h *GraphHandler) Deprecated(w http.ResponseWriter, r *http.Request) {
	agentID := middleware.AgentIDFromContext(r.Context())

	limit, ok := queryInt(r, "limit", 0)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	ids := h.engine.Query.DeprecatedBeliefIDs(r.Context(), agentID, limit)
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"belief_ids": ids, "count": len(ids)})
}

func (h *GraphHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	agentID := middleware.AgentIDFromContext(r.Context())

	g, err := h.engine.Snapshots.SnapshotGraph(r.Context(), agentID, queryBool(r, "include_inactive"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// Active returns active beliefs with their currently effective relationships.
func (h *GraphHandler) Active(w http.ResponseWriter, r *http.Request) {
	agentID := middleware.AgentIDFromContext(r.Context())

	g, err := h.engine.Snapshots.ActiveGraph(r.Context(), agentID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

type filteredSnapshotRequest struct {
	BeliefIDs         []string `json:"belief_ids"`
	RelationshipTypes []string `json:"relationship_types"`
	MaxBeliefs        *int     `json:"max_beliefs,omitempty"`
}

func (h *GraphHandler) FilteredSnapshot(w http.ResponseWriter, r *http.Request) {
	agentID := middleware.AgentIDFromContext(r.Context())

	var req filteredSnapshotRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	filter := service.SnapshotFilter{BeliefIDs: req.BeliefIDs, MaxBeliefs: defaultMaxBeliefs}
	if req.MaxBeliefs != nil {
		filter.MaxBeliefs = *req.MaxBeliefs
	}
	for _, raw := range req.RelationshipTypes {
		t, ok := domain.ParseRelationshipType(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown relationship type: "+raw)
			return
		}
		filter.Types = append(filter.Types, t)
	}

	g, err := h.engine.Snapshots.FilteredSnapshotGraph(r.Context(), agentID, filter)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *GraphHandler) Export(w http.ResponseWriter, r *http.Request) {
	agentID := middleware.AgentIDFromContext(r.Context())

	format := r.URL.Query().Get("format")
	if format == "" {
		format = string(service.ExportJSON)
	}
	out, err := h.engine.Snapshots.Export(r.Context(), agentID, format)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	f, _ := service.ParseExportFormat(format)
	info := service.ExportFormats[f]
	w.Header().Set("Content-Type", info.MIMEType)
	w.Header().Set("Content-Disposition", `attachment; filename="knowledge-graph`+info.Extension+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func (h *GraphHandler) Search(w http.ResponseWriter, r *http.Request) {
	agentID := middleware.AgentIDFromContext(r.Context())

	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit, ok := queryInt(r, "limit", 20)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	beliefs, err := h.engine.Query.SearchBeliefsByContent(r.Context(), agentID, q, limit)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, beliefList(beliefs))
}

func (h *GraphHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	agentID := middleware.AgentIDFromContext(r.Context())

	days, ok := queryInt(r, "older_than_days", defaultCleanupDays)
	if !ok || days < 0 || int64(days) > domain.MaxRetentionDays {
		writeError(w, http.StatusBadRequest, "invalid older_than_days")
		return
	}

	removed := h.engine.Relationships.Cleanup(r.Context(), agentID, domain.RetentionWindow(days))
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}
