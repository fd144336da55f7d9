// Copyright (C) 2025 Candor Labs (dev@candorlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"

	"github.com/candorlabs-ai/northstar/services/advisor/capability"
)

// HealthStatus reports which capabilities this deployment is running with.
type HealthStatus struct {
	Status       string          `json:"status"`
	Service      string          `json:"service"`
	Capabilities map[string]bool `json:"capabilities"`
}

// HealthCheck reports service liveness and the configured capability set.
// A deployment without Weaviate or a crew runner is still healthy - it just
// answers in lightweight mode.
func HealthCheck(capabilities map[string]bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, HealthStatus{
			Status:       "ok",
			Service:      "northstar-advisor",
			Capabilities: capabilities,
		})
	}
}

// HandleInsightSearch serves semantic lookups over stored insights.
//
// Query parameters: q (required), limit (optional, default 5).
func HandleInsightSearch(search capability.SemanticSearch) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleInsightSearch")
		defer span.End()

		query := c.Query("q")
		if query == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
			return
		}

		limit := 5
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = n
		}

		hits, err := search.Search(ctx, query, limit)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "insight search failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"query": query, "results": hits})
	}
}
