// Copyright (C) 2025 Candor Labs (dev@candorlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package routes assembles the advisor HTTP routing table.
package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/candorlabs-ai/northstar/pkg/extensions"
	"github.com/candorlabs-ai/northstar/services/advisor/analysis"
	"github.com/candorlabs-ai/northstar/services/advisor/capability"
	"github.com/candorlabs-ai/northstar/services/advisor/config"
	"github.com/candorlabs-ai/northstar/services/advisor/conversation"
	"github.com/candorlabs-ai/northstar/services/advisor/handlers"
	"github.com/candorlabs-ai/northstar/services/advisor/middleware"
	"github.com/candorlabs-ai/northstar/services/advisor/observability"
)

// Deps is everything the routing table needs. EvidenceRepo and
// InsightSearch may be nil when no Weaviate instance is configured; the
// corresponding endpoints then answer 503 instead of being absent, so
// clients get a clear signal rather than a 404.
type Deps struct {
	ConversationEngine *conversation.Engine
	AnalysisEngine     *analysis.Engine

	EvidenceRepo  capability.EvidenceRepository
	InsightSearch capability.SemanticSearch
	Sessions      capability.SessionStore

	Criteria config.CriteriaSource
	Metrics  *observability.AdvisorMetrics
	Limiter  *middleware.RateLimiter
	Auth     extensions.AuthProvider

	SessionTTL  time.Duration
	AnalysisTTL time.Duration

	Capabilities map[string]bool
}

// SetupRoutes registers every advisor endpoint on the router.
func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/health", handlers.HealthCheck(deps.Capabilities))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(deps.Auth))
	{
		conv := v1.Group("/conversation")
		{
			conv.POST("/start",
				middleware.RateLimitMiddleware(deps.Limiter, middleware.BucketConversationStart),
				handlers.HandleConversationStart(deps.ConversationEngine, deps.Sessions, deps.SessionTTL, deps.Metrics))
			conv.POST("/message",
				middleware.RateLimitMiddleware(deps.Limiter, middleware.BucketConversationMessage),
				handlers.HandleConversationMessage(deps.ConversationEngine, deps.Sessions, deps.SessionTTL, deps.Metrics))
			conv.GET("/ws",
				handlers.HandleConversationWebSocket(deps.ConversationEngine, deps.Sessions, deps.SessionTTL, deps.Metrics))
			conv.GET("/sessions/:sessionID",
				handlers.HandleConversationSession(deps.Sessions))
		}

		v1.POST("/analysis",
			middleware.RateLimitMiddleware(deps.Limiter, middleware.BucketAnalysis),
			handlers.HandleAnalysisRun(deps.AnalysisEngine, deps.Sessions, deps.AnalysisTTL, deps.Metrics))
		v1.POST("/analysis/background",
			middleware.RateLimitMiddleware(deps.Limiter, middleware.BucketAnalysis),
			handlers.HandleAnalysisSubmit(deps.AnalysisEngine, deps.Sessions, deps.AnalysisTTL, deps.Metrics))
		v1.GET("/analysis/:analysisID", handlers.HandleAnalysisGet(deps.Sessions))

		if deps.EvidenceRepo != nil {
			v1.POST("/gates/evaluate",
				handlers.HandleGateEvaluate(deps.EvidenceRepo, deps.Criteria, deps.Metrics))
		} else {
			v1.POST("/gates/evaluate", unavailable("evidence store not configured"))
		}

		if deps.InsightSearch != nil {
			v1.GET("/insights/search", handlers.HandleInsightSearch(deps.InsightSearch))
		} else {
			v1.GET("/insights/search", unavailable("semantic search not configured"))
		}
	}
}

func unavailable(reason string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": reason})
	}
}
