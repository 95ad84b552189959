package handlers

import (
	"net/http"

	"github.com/Harshitk-cp/beliefgraph/internal/api/middleware"
	"github.com/Harshitk-cp/beliefgraph/internal/domain"
	"github.com/Harshitk-cp/beliefgraph/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BeliefHandler serves graph queries anchored on one belief.
type BeliefHandler struct {
	engine       *service.Engine
	logger       *zap.Logger
	defaultDepth int
}

func NewBeliefHandler(engine *service.Engine, logger *zap.Logger, defaultDepth int) *BeliefHandler {
	if defaultDepth <= 0 {
		defaultDepth = 5
	}
	return &BeliefHandler{engine: engine, logger: logger, defaultDepth: defaultDepth}
}

type beliefIDsResponse struct {
	BeliefID  string   `json:"belief_id"`
	BeliefIDs []string `json:"belief_ids"`
	Count     int      `json:"count"`
}

func idsResponse(beliefID string, ids []string) beliefIDsResponse {
	if ids == nil {
		ids = []string{}
	}
	return beliefIDsResponse{BeliefID: beliefID, BeliefIDs: ids, Count: len(ids)}
}

type beliefsResponse struct {
	Beliefs []domain.Belief `json:"beliefs"`
	Count   int             `json:"count"`
}

func beliefList(beliefs []domain.Belief) beliefsResponse {
	if beliefs == nil {
		beliefs = []domain.Belief{}
	}
	return beliefsResponse{Beliefs: beliefs, Count: len(beliefs)}
}

func (h *BeliefHandler) Relationships(w http.ResponseWriter, r *http.Request) {
	agentID := middleware.AgentIDFromContext(r.Context())

	dir, ok := domain.ParseDirection(r.URL.Query().Get("direction"))
	if !ok {
		writeError(w, http.StatusBadRequest, "direction must be outgoing, incoming or both")
		return
	}
	rels := h.engine.Query.RelationshipsForBelief(r.Context(), chi.URLParam(r, "id"), agentID, dir)
	writeJSON(w, http.StatusOK, listResponse(rels))
}

func (h *BeliefHandler) Degree(w http.ResponseWriter, r *http.Request) {
	agentID := middleware.AgentIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	degree := h.engine.Query.BeliefDegrees(r.Context(), []string{id}, agentID)[id]
	writeJSON(w, http.StatusOK, map[string]any{
		"belief_id": id,
		"incoming":  degree.Incoming,
		"outgoing":  degree.Outgoing,
		"total":     degree.Total(),
	})
}

func (h *BeliefHandler) Reachable(w http.ResponseWriter, r *http.Request) {
	agentID := middleware.AgentIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	depth, ok := queryInt(r, "depth", h.defaultDepth)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid depth")
		return
	}
	types, ok := queryTypes(r, "types")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid types")
		return
	}

	ids := h.engine.Traversal.ReachableBeliefIDs(r.Context(), id, agentID, depth, types)
	writeJSON(w, http.StatusOK, idsResponse(id, ids))
}

type pathResponse struct {
	SourceBeliefID  string                      `json:"source_belief_id"`
	TargetBeliefID  string                      `json:"target_belief_id"`
	RelationshipIDs []string                    `json:"relationship_ids"`
	Relationships   []domain.BeliefRelationship `json:"relationships"`
	Found           bool                        `json:"found"`
}

func (h *BeliefHandler) Path(w http.ResponseWriter, r *http.Request) {
	agentID := middleware.AgentIDFromContext(r.Context())
	source, target := chi.URLParam(r, "id"), chi.URLParam(r, "target")

	depth, ok := queryInt(r, "depth", h.defaultDepth)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid depth")
		return
	}

	ids := h.engine.Traversal.ShortestPathIDs(r.Context(), source, target, agentID, depth)
	byID := h.engine.Query.RelationshipsByID(r.Context(), ids, agentID)
	resp := pathResponse{
		SourceBeliefID:  source,
		TargetBeliefID:  target,
		RelationshipIDs: []string{},
		Relationships:   []domain.BeliefRelationship{},
		Found:           len(ids) > 0,
	}
	for _, id := range ids {
		resp.RelationshipIDs = append(resp.RelationshipIDs, id)
		if rel, ok := byID[id]; ok {
			resp.Relationships = append(resp.Relationships, rel)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *BeliefHandler) Chain(w http.ResponseWriter, r *http.Request) {
	agentID := middleware.AgentIDFromContext(r.Context())

	chain, err := h.engine.Traversal.DeprecationChain(r.Context(), chi.URLParam(r, "id"), agentID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, beliefList(chain))
}

func (h *BeliefHandler) Similar(w http.ResponseWriter, r *http.Request) {
	agentID := middleware.AgentIDFromContext(r.Context())

	threshold, ok := queryFloat(r, "threshold", 0.5)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid threshold")
		return
	}
	limit, ok := queryInt(r, "limit", 10)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	similar, err := h.engine.Query.SimilarBeliefIDs(r.Context(), chi.URLParam(r, "id"), agentID, threshold, limit)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if similar == nil {
		similar = []domain.SimilarBelief{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"similar": similar, "count": len(similar)})
}

func (h *BeliefHandler) Superseding(w http.ResponseWriter, r *http.Request) {
	agentID := middleware.AgentIDFromContext(r.Context())

	beliefs, err := h.engine.Query.SupersedingBeliefs(r.Context(), chi.URLParam(r, "id"), agentID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, beliefList(beliefs))
}
