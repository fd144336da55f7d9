// Copyright (C) 2025 Candor Labs (dev@candorlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"

	"github.com/candorlabs-ai/northstar/services/advisor/analysis"
	"github.com/candorlabs-ai/northstar/services/advisor/capability"
	"github.com/candorlabs-ai/northstar/services/advisor/middleware"
	"github.com/candorlabs-ai/northstar/services/advisor/observability"
)

// backgroundAnalysisTimeout bounds a detached crew run. Five sequential
// model calls at worst-case latency still fit comfortably.
const backgroundAnalysisTimeout = 10 * time.Minute

// AnalysisRequest is the body of the analysis endpoints. Only the strategic
// question is required; everything else shapes the crew prompts.
type AnalysisRequest struct {
	StrategicQuestion string `json:"strategic_question" binding:"required"`
	ProjectID         string `json:"project_id"`
	ProjectContext    string `json:"project_context"`
	TargetSources     string `json:"target_sources"`
	ReportFormat      string `json:"report_format"`
	ProjectDeadline   string `json:"project_deadline"`
	PriorityLevel     string `json:"priority_level"`
	SessionID         string `json:"session_id"`
}

func (r AnalysisRequest) inputs() analysis.Inputs {
	return analysis.Inputs{
		StrategicQuestion: r.StrategicQuestion,
		ProjectID:         r.ProjectID,
		ProjectContext:    r.ProjectContext,
		TargetSources:     r.TargetSources,
		ReportFormat:      r.ReportFormat,
		ProjectDeadline:   r.ProjectDeadline,
		PriorityLevel:     r.PriorityLevel,
		SessionID:         r.SessionID,
	}
}

// HandleAnalysisRun executes a strategic analysis synchronously.
//
// # Description
//
// Runs the crew pipeline (or its offline fallback) and returns the
// structured payload in one round trip. The X-Analysis-Mode header reports
// which path produced the result. The record is also persisted so the
// result stays retrievable by ID.
func HandleAnalysisRun(engine *analysis.Engine, store capability.SessionStore,
	analysisTTL time.Duration, metrics *observability.AdvisorMetrics) gin.HandlerFunc {

	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleAnalysisRun")
		defer span.End()

		var req AnalysisRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.JSON(http.StatusBadRequest, gin.H{"error": "strategic_question is required"})
			return
		}

		userID := middleware.UserID(c)
		analysisID, payload, metadata := engine.Run(ctx, req.inputs(), userID)

		record := &capability.AnalysisRecord{
			AnalysisID:  analysisID,
			UserID:      userID,
			Status:      capability.AnalysisStatusComplete,
			Payload:     payload,
			Metadata:    metadata,
			CreatedAt:   time.Now().UTC(),
			CompletedAt: time.Now().UTC(),
		}
		if err := store.PutAnalysis(ctx, record, analysisTTL); err != nil {
			slog.Warn("could not persist analysis result",
				"analysis_id", analysisID, "error", err)
		}

		if metrics != nil {
			metrics.RecordAnalysisRun(metadata.Mode)
		}
		slog.Info("analysis complete",
			"analysis_id", analysisID,
			"user_id", userID,
			"mode", metadata.Mode)

		c.Header("X-Analysis-Mode", metadata.Mode)
		c.JSON(http.StatusOK, gin.H{
			"analysis_id": analysisID,
			"payload":     payload,
			"metadata":    metadata,
		})
	}
}

// HandleAnalysisSubmit queues a strategic analysis and returns immediately.
//
// # Description
//
// Persists a running record, kicks off the crew pipeline in a goroutine,
// and responds 202 with the analysis_id for polling. The background run is
// detached from the request context so a client disconnect does not abort
// it; it carries its own timeout instead.
func HandleAnalysisSubmit(engine *analysis.Engine, store capability.SessionStore,
	analysisTTL time.Duration, metrics *observability.AdvisorMetrics) gin.HandlerFunc {

	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleAnalysisSubmit")
		defer span.End()

		var req AnalysisRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.JSON(http.StatusBadRequest, gin.H{"error": "strategic_question is required"})
			return
		}

		userID := middleware.UserID(c)
		analysisID := analysis.NewAnalysisID()
		createdAt := time.Now().UTC()

		running := &capability.AnalysisRecord{
			AnalysisID: analysisID,
			UserID:     userID,
			Status:     capability.AnalysisStatusRunning,
			CreatedAt:  createdAt,
		}
		if err := store.PutAnalysis(ctx, running, analysisTTL); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("could not persist running analysis", "analysis_id", analysisID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not queue analysis"})
			return
		}

		go func() {
			runCtx, cancel := context.WithTimeout(context.Background(), backgroundAnalysisTimeout)
			defer cancel()

			payload, metadata := engine.RunAs(runCtx, req.inputs(), userID, analysisID)
			record := &capability.AnalysisRecord{
				AnalysisID:  analysisID,
				UserID:      userID,
				Status:      capability.AnalysisStatusComplete,
				Payload:     payload,
				Metadata:    metadata,
				CreatedAt:   createdAt,
				CompletedAt: time.Now().UTC(),
			}
			if err := store.PutAnalysis(runCtx, record, analysisTTL); err != nil {
				slog.Error("could not persist background analysis",
					"analysis_id", analysisID, "error", err)
			}
			if metrics != nil {
				metrics.RecordAnalysisRun(metadata.Mode)
			}
		}()

		c.JSON(http.StatusAccepted, gin.H{
			"analysis_id": analysisID,
			"status":      capability.AnalysisStatusRunning,
		})
	}
}

// HandleAnalysisGet returns a stored analysis by ID.
func HandleAnalysisGet(store capability.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleAnalysisGet")
		defer span.End()

		record, err := store.GetAnalysis(ctx, c.Param("analysisID"))
		if err != nil {
			if errors.Is(err, capability.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
				return
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "analysis lookup failed"})
			return
		}
		c.JSON(http.StatusOK, record)
	}
}
