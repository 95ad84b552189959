package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKey string

const (
	// AgentIDHeader names the header that scopes every graph request to one agent.
	AgentIDHeader = "X-Agent-ID"

	agentContextKey contextKey = "agent_id"
)

func AgentIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(agentContextKey).(string)
	return id
}

// WithAgentID returns a copy of ctx carrying agentID.
func WithAgentID(ctx context.Context, agentID string) context.Context {
	return context.WithValue(ctx, agentContextKey, agentID)
}

// AgentScope rejects requests without an X-Agent-ID header and stores the agent in the request context.
func AgentScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agentID := strings.TrimSpace(r.Header.Get(AgentIDHeader))
		if agentID == "" {
			writeError(w, http.StatusUnauthorized, "missing "+AgentIDHeader+" header")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithAgentID(r.Context(), agentID)))
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
