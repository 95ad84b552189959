package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func statusHandler(status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte("ok"))
	})
}

func TestAgentScope(t *testing.T) {
	var seen string
	h := AgentScope(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = AgentIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(AgentIDHeader, "  agent-7 ")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "agent-7", seen)

	for _, header := range []string{"", "   "} {
		req = httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(AgentIDHeader, header)
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"missing X-Agent-ID header"}`, rec.Body.String())
	}
}

func TestRequestID(t *testing.T) {
	var fromCtx string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = RequestIDFromContext(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		id := rec.Header().Get(RequestIDHeader)
		assert.Len(t, id, 32)
		assert.NotContains(t, id, "-")
		assert.Equal(t, id, fromCtx)
	})

	t.Run("client supplied", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "trace-abc")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, "trace-abc", rec.Header().Get(RequestIDHeader))
	})

	for name, id := range map[string]string{
		"oversized":      strings.Repeat("x", maxRequestIDLength+1),
		"contains space": "two words",
		"control chars":  "id\x01",
	} {
		t.Run(name+" is replaced", func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(RequestIDHeader, id)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Len(t, rec.Header().Get(RequestIDHeader), 32)
		})
	}
}

func TestLogging(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	for _, status := range []int{http.StatusCreated, http.StatusTooManyRequests, http.StatusBadGateway} {
		req := httptest.NewRequest(http.MethodPost, "/v1/relationships?x=1", nil)
		req.Header.Set(AgentIDHeader, "agent-1")
		RequestID(Logging(logger)(statusHandler(status))).ServeHTTP(httptest.NewRecorder(), req)
	}

	entries := logs.All()
	require.Len(t, entries, 3)

	first := entries[0]
	assert.Equal(t, zapcore.InfoLevel, first.Level)
	fields := first.ContextMap()
	assert.Equal(t, int64(http.StatusCreated), fields["status"])
	assert.Equal(t, "agent-1", fields["agent_id"])
	assert.Equal(t, "x=1", fields["query"])
	assert.Equal(t, int64(2), fields["bytes"])
	assert.Equal(t, "unmatched", fields["route"])
	assert.NotEmpty(t, fields["request_id"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("agent:a"))
	assert.True(t, rl.Allow("agent:a"))
	assert.False(t, rl.Allow("agent:a"), "burst exhausted")
	assert.True(t, rl.Allow("agent:b"), "keys are limited independently")
	assert.Equal(t, 2, rl.Len())

	now = now.Add(5 * time.Minute)
	rl.Allow("agent:b")
	rl.Cleanup(time.Minute)
	assert.Equal(t, 1, rl.Len(), "idle limiter removed")
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	h := rl.Middleware(statusHandler(http.StatusOK))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(AgentIDHeader, "agent-1")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestRateLimitKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:4242"
	assert.Equal(t, "ip:10.0.0.1:4242", rateLimitKey(req))

	req.Header.Set("X-Real-IP", "192.168.1.9")
	assert.Equal(t, "ip:192.168.1.9", rateLimitKey(req))

	req.Header.Set(AgentIDHeader, "agent-1")
	assert.Equal(t, "agent:agent-1", rateLimitKey(req))
}

func TestMetricsCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	mc := NewMetricsCollector("test", reg)

	h := mc.Middleware(statusHandler(http.StatusNotFound))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/relationships/rel_1", nil))

	families, err := reg.Gather()
	require.NoError(t, err)
	byName := make(map[string]int)
	for _, f := range families {
		byName[f.GetName()] = len(f.GetMetric())
	}
	assert.Equal(t, 1, byName["test_http_requests_total"])
	assert.Equal(t, 1, byName["test_http_request_duration_seconds"])
	assert.Equal(t, 1, byName["test_http_requests_in_flight"])

	for _, f := range families {
		if f.GetName() != "test_http_requests_total" {
			continue
		}
		m := f.GetMetric()[0]
		assert.Equal(t, 1.0, m.GetCounter().GetValue())
		labels := make(map[string]string)
		for _, lp := range m.GetLabel() {
			labels[lp.GetName()] = lp.GetValue()
		}
		assert.Equal(t, map[string]string{"method": "GET", "route": "unmatched", "status": "404"}, labels)
	}
}

func TestTracingPassesStatusThrough(t *testing.T) {
	rec := httptest.NewRecorder()
	Tracing(statusHandler(http.StatusAccepted)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}
