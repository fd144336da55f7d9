// Copyright (C) 2025 Candor Labs (dev@candorlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/candorlabs-ai/northstar/pkg/extensions"
	"github.com/candorlabs-ai/northstar/services/advisor/analysis"
	"github.com/candorlabs-ai/northstar/services/advisor/conversation"
	"github.com/candorlabs-ai/northstar/services/advisor/middleware"
	"github.com/candorlabs-ai/northstar/services/advisor/store"
)

// ============================================================================
// Test Setup
// ============================================================================

func init() {
	gin.SetMode(gin.TestMode)
}

// lightweightDeps builds a Deps without Weaviate, the way the advisor
// runs when WEAVIATE_SERVICE_URL is unset.
func lightweightDeps(t *testing.T) Deps {
	t.Helper()
	sessions, err := store.NewInMemorySessionStore()
	require.NoError(t, err)
	t.Cleanup(func() { sessions.Close() })

	return Deps{
		ConversationEngine: conversation.NewEngine(),
		AnalysisEngine:     analysis.NewEngine(nil),
		Sessions:           sessions,
		Limiter:            middleware.NewRateLimiter(nil, nil),
		Auth:               &extensions.NopAuthProvider{},
		SessionTTL:         time.Hour,
		AnalysisTTL:        time.Hour,
		Capabilities: map[string]bool{
			"evidence_store":  false,
			"semantic_search": false,
		},
	}
}

// ============================================================================
// SetupRoutes Tests
// ============================================================================

func TestSetupRoutes_CoreRoutesRegistered(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, lightweightDeps(t))

	coreRoutes := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/metrics"},
		{"POST", "/v1/conversation/start"},
		{"POST", "/v1/conversation/message"},
		{"GET", "/v1/conversation/ws"},
		{"GET", "/v1/conversation/sessions/:sessionID"},
		{"POST", "/v1/analysis"},
		{"POST", "/v1/analysis/background"},
		{"GET", "/v1/analysis/:analysisID"},
		{"POST", "/v1/gates/evaluate"},
		{"GET", "/v1/insights/search"},
	}

	routes := router.Routes()
	for _, expected := range coreRoutes {
		found := false
		for _, r := range routes {
			if r.Method == expected.method && r.Path == expected.path {
				found = true
				break
			}
		}
		assert.True(t, found, "expected route %s %s", expected.method, expected.path)
	}
}

func TestSetupRoutes_HealthEndpoint(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, lightweightDeps(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.Contains(t, w.Body.String(), "northstar-advisor")
}

func TestSetupRoutes_MetricsEndpoint(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, lightweightDeps(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	// Prometheus exposition format includes go runtime collectors
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestSetupRoutes_GatesUnavailableWithoutEvidenceStore(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, lightweightDeps(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/gates/evaluate",
		strings.NewReader(`{"project_id":"proj_1","stage":"DESIRABILITY"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "evidence store not configured")
}

func TestSetupRoutes_InsightSearchUnavailableWithoutWeaviate(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, lightweightDeps(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/insights/search?q=pricing", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "semantic search not configured")
}

func TestSetupRoutes_ConversationFlow(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, lightweightDeps(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/conversation/start",
		strings.NewReader(`{"plan_type":"founder"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "session_id")
	assert.Equal(t, "1", w.Header().Get("X-Conversation-Stage"))
}

func TestSetupRoutes_AuthRejectsBadToken(t *testing.T) {
	deps := lightweightDeps(t)
	deps.Auth = &extensions.StaticTokenProvider{Token: "secret"}

	router := gin.New()
	SetupRoutes(router, deps)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/conversation/start",
		strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer wrong")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)

	// Health stays public
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSetupRoutes_RateLimitHeadersPresent(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, lightweightDeps(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/conversation/start",
		strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
}
