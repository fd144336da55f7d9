// Copyright (C) 2025 Candor Labs (dev@candorlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the advisor HTTP surface.
//
// Handlers are closure constructors: each takes the capabilities it needs
// and returns a gin.HandlerFunc. Engines stay pure; all I/O, validation,
// and persistence sits here.
package handlers

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/candorlabs-ai/northstar/pkg/validation"
	"github.com/candorlabs-ai/northstar/services/advisor/capability"
	"github.com/candorlabs-ai/northstar/services/advisor/config"
	"github.com/candorlabs-ai/northstar/services/advisor/gate"
	"github.com/candorlabs-ai/northstar/services/advisor/observability"
)

var tracer = otel.Tracer("northstar.advisor.handlers")

// GateEvaluateRequest is the body of POST /v1/gates/evaluate.
type GateEvaluateRequest struct {
	ProjectID string `json:"project_id"`
	Stage     string `json:"stage"`
}

// GateEvaluateResponse is the verdict returned to the client.
type GateEvaluateResponse struct {
	ProjectID        string   `json:"project_id"`
	Stage            string   `json:"stage"`
	Status           string   `json:"status"`
	Reasons          []string `json:"reasons"`
	ReadinessScore   float64  `json:"readiness_score"`
	EvidenceCount    int      `json:"evidence_count"`
	ExperimentsCount int      `json:"experiments_count"`
	CanProgress      bool     `json:"can_progress"`
}

// HandleGateEvaluate scores a project's evidence against a stage gate.
//
// # Description
//
// Fetches the project's evidence, skips malformed records with a warning,
// evaluates the gate, and writes the verdict back onto the project record.
// Persistence failure is logged but never fails the request - the caller
// still gets the verdict.
//
// # Edge Cases
//
//   - Missing project_id or stage: 400 with a combined message.
//   - Unknown stage key: 400, never silently defaulted.
//   - No evidence at all: 200 Pending with "No evidence collected yet".
func HandleGateEvaluate(repo capability.EvidenceRepository, criteria config.CriteriaSource,
	metrics *observability.AdvisorMetrics) gin.HandlerFunc {

	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleGateEvaluate")
		defer span.End()

		var req GateEvaluateRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		if req.ProjectID == "" || req.Stage == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Missing required fields: project_id, stage",
			})
			return
		}

		projectID, err := validation.SanitizeProjectID(req.ProjectID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		req.ProjectID = projectID

		stage, err := gate.ParseStage(req.Stage)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf(
					"Invalid stage: %s. Must be DESIRABILITY, FEASIBILITY, VIABILITY, or SCALE",
					req.Stage),
			})
			return
		}

		records, err := repo.ListByProject(ctx, req.ProjectID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("evidence lookup failed", "project_id", req.ProjectID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "evidence lookup failed"})
			return
		}

		evidence := convertEvidence(records, req.ProjectID)

		if len(evidence) == 0 {
			resp := GateEvaluateResponse{
				ProjectID:        req.ProjectID,
				Stage:            string(stage),
				Status:           string(gate.StatusPending),
				Reasons:          []string{"No evidence collected yet"},
				ReadinessScore:   0.0,
				EvidenceCount:    0,
				ExperimentsCount: 0,
			}
			if metrics != nil {
				metrics.RecordGateEvaluation(string(stage), resp.Status, 0.0)
			}
			c.JSON(http.StatusOK, resp)
			return
		}

		crit := criteria.CriteriaFor(stage)
		status, reasons := gate.Evaluate(stage, evidence, &crit)
		readiness := round3(gate.Readiness(stage, evidence))
		experiments := gate.CountExperiments(evidence)

		update := capability.ProjectGateUpdate{
			GateStatus:       string(status),
			EvidenceQuality:  readiness,
			EvidenceCount:    len(evidence),
			ExperimentsCount: experiments,
		}
		if err := repo.UpdateProjectGate(ctx, req.ProjectID, update); err != nil {
			slog.Warn("could not persist gate verdict",
				"project_id", req.ProjectID, "stage", stage, "error", err)
		}

		if metrics != nil {
			metrics.RecordGateEvaluation(string(stage), string(status), readiness)
		}

		slog.Info("gate evaluated",
			"project_id", req.ProjectID,
			"stage", stage,
			"status", status,
			"readiness", readiness,
			"evidence_count", len(evidence))

		c.JSON(http.StatusOK, GateEvaluateResponse{
			ProjectID:        req.ProjectID,
			Stage:            string(stage),
			Status:           string(status),
			Reasons:          reasons,
			ReadinessScore:   readiness,
			EvidenceCount:    len(evidence),
			ExperimentsCount: experiments,
			CanProgress:      gate.CanProgress(stage, status),
		})
	}
}

// convertEvidence maps stored records onto scoring input, skipping rows the
// engine would misread. Each skip is logged; a few bad rows must not block a
// verdict over the rest.
func convertEvidence(records []capability.EvidenceRecord, projectID string) []gate.Evidence {
	evidence := make([]gate.Evidence, 0, len(records))
	for i, rec := range records {
		if rec.Type == "" {
			slog.Warn("skipping evidence record without type",
				"project_id", projectID, "index", i)
			continue
		}
		strength, ok := gate.NormalizeStrength(rec.Strength)
		if !ok {
			slog.Warn("skipping evidence record with unknown strength",
				"project_id", projectID, "index", i, "strength", rec.Strength)
			continue
		}
		evidence = append(evidence, gate.Evidence{
			Type:         rec.Type,
			Strength:     strength,
			QualityScore: rec.QualityScore,
		})
	}
	return evidence
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
