package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/Harshitk-cp/beliefgraph/internal/api/middleware"
	"github.com/Harshitk-cp/beliefgraph/internal/domain"
	"github.com/Harshitk-cp/beliefgraph/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type RelationshipHandler struct {
	engine *service.Engine
	logger *zap.Logger
}

func NewRelationshipHandler(engine *service.Engine, logger *zap.Logger) *RelationshipHandler {
	return &RelationshipHandler{engine: engine, logger: logger}
}

type relationshipRequest struct {
	SourceBeliefID string         `json:"source_belief_id"`
	TargetBeliefID string         `json:"target_belief_id"`
	Type           string         `json:"relationship_type"`
	Strength       *float64       `json:"strength,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	EffectiveFrom  *time.Time     `json:"effective_from,omitempty"`
	EffectiveUntil *time.Time     `json:"effective_until,omitempty"`
}

// relationshipType keeps unknown codes as given so the service reports them.
func (req relationshipRequest) relationshipType() domain.RelationshipType {
	if t, ok := domain.ParseRelationshipType(req.Type); ok {
		return t
	}
	return domain.RelationshipType(req.Type)
}

func (req relationshipRequest) strength() float64 {
	if req.Strength == nil {
		return 1.0
	}
	return *req.Strength
}

type relationshipListResponse struct {
	Relationships []domain.BeliefRelationship `json:"relationships"`
	Count         int                         `json:"count"`
}

func listResponse(rels []domain.BeliefRelationship) relationshipListResponse {
	if rels == nil {
		rels = []domain.BeliefRelationship{}
	}
	return relationshipListResponse{Relationships: rels, Count: len(rels)}
}

func (h *RelationshipHandler) Create(w http.ResponseWriter, r *http.Request) {
	agentID := middleware.AgentIDFromContext(r.Context())

	var req relationshipRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rel, err := h.engine.Relationships.Create(r.Context(), service.CreateRelationshipInput{
		SourceBeliefID: req.SourceBeliefID,
		TargetBeliefID: req.TargetBeliefID,
		Type:           req.relationshipType(),
		Strength:       req.strength(),
		AgentID:        agentID,
		EffectiveFrom:  req.EffectiveFrom,
		EffectiveUntil: req.EffectiveUntil,
		Metadata:       req.Metadata,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, rel)
}

type bulkRequest struct {
	Relationships []relationshipRequest `json:"relationships"`
}

// CreateBulk stores many relationships at once. Creation checks are skipped; use the
// validation endpoint to audit the result.
func (h *RelationshipHandler) CreateBulk(w http.ResponseWriter, r *http.Request) {
	agentID := middleware.AgentIDFromContext(r.Context())

	var req bulkRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rels := make([]domain.BeliefRelationship, 0, len(req.Relationships))
	for _, item := range req.Relationships {
		t, ok := domain.ParseRelationshipType(item.Type)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown relationship type: "+item.Type)
			return
		}
		rels = append(rels, domain.BeliefRelationship{
			SourceBeliefID: item.SourceBeliefID,
			TargetBeliefID: item.TargetBeliefID,
			Type:           t,
			Strength:       item.strength(),
			AgentID:        agentID,
			Active:         true,
			EffectiveFrom:  item.EffectiveFrom,
			EffectiveUntil: item.EffectiveUntil,
			Metadata:       item.Metadata,
		})
	}

	created, err := h.engine.Relationships.CreateBulk(r.Context(), rels, agentID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, listResponse(created))
}

func (h *RelationshipHandler) Import(w http.ResponseWriter, r *http.Request) {
	agentID := middleware.AgentIDFromContext(r.Context())

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	n, err := h.engine.Relationships.Import(r.Context(), data, format, agentID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"imported": n})
}

type deprecateRequest struct {
	OldBeliefID string `json:"old_belief_id"`
	NewBeliefID string `json:"new_belief_id"`
	Reason      string `json:"reason"`
}

func (h *RelationshipHandler) Deprecate(w http.ResponseWriter, r *http.Request) {
	agentID := middleware.AgentIDFromContext(r.Context())

	var req deprecateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rel, err := h.engine.Relationships.DeprecateBeliefWith(r.Context(), req.OldBeliefID, req.NewBeliefID, req.Reason, agentID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, rel)
}

// List returns the agent's relationships, optionally narrowed to one type.
// Without include_inactive only currently effective relationships are listed.
func (h *RelationshipHandler) List(w http.ResponseWriter, r *http.Request) {
	agentID := middleware.AgentIDFromContext(r.Context())

	if raw := r.URL.Query().Get("type"); raw != "" {
		t, ok := domain.ParseRelationshipType(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown relationship type: "+raw)
			return
		}
		writeJSON(w, http.StatusOK, listResponse(h.engine.Query.RelationshipsByType(r.Context(), t, agentID)))
		return
	}

	limit, ok := queryInt(r, "limit", 0)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	var rels []domain.BeliefRelationship
	for rel := range h.engine.Query.StreamRelationships(r.Context(), agentID, queryBool(r, "include_inactive"), limit) {
		rels = append(rels, rel)
	}
	writeJSON(w, http.StatusOK, listResponse(rels))
}

func (h *RelationshipHandler) Between(w http.ResponseWriter, r *http.Request) {
	agentID := middleware.AgentIDFromContext(r.Context())
	rels := h.engine.Query.RelationshipsBetween(r.Context(), chi.URLParam(r, "source"), chi.URLParam(r, "target"), agentID)
	writeJSON(w, http.StatusOK, listResponse(rels))
}

type relationshipTypeResponse struct {
	domain.RelationshipTypeInfo
	Inverse domain.RelationshipType `json:"inverse,omitempty"`
}

func (h *RelationshipHandler) Types(w http.ResponseWriter, r *http.Request) {
	infos := domain.RelationshipTypes()
	types := make([]relationshipTypeResponse, 0, len(infos))
	for _, info := range infos {
		t := relationshipTypeResponse{RelationshipTypeInfo: info}
		t.Bidirectional = info.Type.IsBidirectional()
		if inv, ok := info.Type.Inverse(); ok {
			t.Inverse = inv
		}
		types = append(types, t)
	}
	writeJSON(w, http.StatusOK, map[string]any{"types": types, "count": len(types)})
}

func (h *RelationshipHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	agentID := middleware.AgentIDFromContext(r.Context())

	rel, ok := h.engine.Query.FindRelationshipByID(r.Context(), chi.URLParam(r, "id"), agentID)
	if !ok {
		writeError(w, http.StatusNotFound, "relationship not found")
		return
	}
	writeJSON(w, http.StatusOK, rel)
}

type updateRequest struct {
	Strength *float64       `json:"strength,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (h *RelationshipHandler) Update(w http.ResponseWriter, r *http.Request) {
	agentID := middleware.AgentIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req updateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	current, ok := h.engine.Query.FindRelationshipByID(r.Context(), id, agentID)
	if !ok {
		writeError(w, http.StatusNotFound, "relationship not found")
		return
	}
	strength := current.Strength
	if req.Strength != nil {
		strength = *req.Strength
	}

	rel, err := h.engine.Relationships.Update(r.Context(), id, strength, req.Metadata)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rel)
}

func (h *RelationshipHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *RelationshipHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *RelationshipHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	agentID := middleware.AgentIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var ok bool
	if active {
		ok = h.engine.Relationships.Reactivate(r.Context(), id, agentID)
	} else {
		ok = h.engine.Relationships.Deactivate(r.Context(), id, agentID)
	}
	if !ok {
		writeError(w, http.StatusNotFound, "relationship not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "active": active})
}

func (h *RelationshipHandler) Delete(w http.ResponseWriter, r *http.Request) {
	agentID := middleware.AgentIDFromContext(r.Context())

	if !h.engine.Relationships.Delete(r.Context(), chi.URLParam(r, "id"), agentID) {
		writeError(w, http.StatusNotFound, "relationship not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
