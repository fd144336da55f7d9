// Copyright (C) 2025 Candor Labs (dev@candorlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"

	"github.com/candorlabs-ai/northstar/services/advisor/capability"
	"github.com/candorlabs-ai/northstar/services/advisor/conversation"
	"github.com/candorlabs-ai/northstar/services/advisor/middleware"
	"github.com/candorlabs-ai/northstar/services/advisor/observability"
)

// ConversationStartRequest is the body of POST /v1/conversation/start.
// All fields are optional; plan type falls back to the authenticated user's
// subscription tier.
type ConversationStartRequest struct {
	PlanType    string         `json:"plan_type"`
	UserContext map[string]any `json:"user_context"`
}

// ConversationMessageRequest is the body of POST /v1/conversation/message.
type ConversationMessageRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Message   string `json:"message" binding:"required"`
}

// HandleConversationStart opens a new onboarding session.
//
// # Description
//
// Builds the session opener from the user's plan type, persists a fresh
// session record, and returns the opener plus the new session_id. The
// X-Conversation-Stage header mirrors the starting stage.
func HandleConversationStart(engine *conversation.Engine, store capability.SessionStore,
	sessionTTL time.Duration, metrics *observability.AdvisorMetrics) gin.HandlerFunc {

	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleConversationStart")
		defer span.End()

		var req ConversationStartRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		planType := req.PlanType
		if planType == "" {
			planType = middleware.PlanType(c)
		}

		start := engine.StartSession(planType, req.UserContext)

		now := time.Now().UTC()
		session := &capability.Session{
			SessionID:    uuid.NewString(),
			UserID:       middleware.UserID(c),
			PlanType:     planType,
			CurrentStage: start.StageState.CurrentStage,
			StageData:    map[string]any{},
			History:      []conversation.Turn{},
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := store.PutSession(ctx, session, sessionTTLFor(sessionTTL, planType)); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("could not persist new session", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create session"})
			return
		}

		if metrics != nil {
			metrics.SessionOpened()
		}
		slog.Info("conversation session started",
			"session_id", session.SessionID,
			"user_id", session.UserID,
			"plan_type", planType)

		c.Header("X-Conversation-Stage", strconv.Itoa(start.StageState.CurrentStage))
		c.Header("X-Conversation-Progress", strconv.Itoa(start.StageState.OverallProgress))
		c.JSON(http.StatusOK, gin.H{
			"session_id": session.SessionID,
			"session":    start,
		})
	}
}

// HandleConversationMessage processes one onboarding message.
//
// # Description
//
// Loads the session, runs the message through the stage engine, merges any
// captured brief fields into the session's stage data, appends both turns to
// the history, and persists the updated session. Stage and overall progress
// are mirrored in response headers so thin clients can track position
// without parsing the body.
//
// # Edge Cases
//
//   - Unknown session_id: 404.
//   - Session store read/write failure: 500; the engine result is discarded
//     rather than returned against stale state.
func HandleConversationMessage(engine *conversation.Engine, store capability.SessionStore,
	sessionTTL time.Duration, metrics *observability.AdvisorMetrics) gin.HandlerFunc {

	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleConversationMessage")
		defer span.End()

		var req ConversationMessageRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		session, err := store.GetSession(ctx, req.SessionID)
		if err != nil {
			if errors.Is(err, capability.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
				return
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("session lookup failed", "session_id", req.SessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "session lookup failed"})
			return
		}

		previousStage := session.CurrentStage
		result := engine.ProcessMessage(req.Message, session.CurrentStage, session.History)

		if session.StageData == nil {
			session.StageData = map[string]any{}
		}
		for k, v := range result.BriefUpdate {
			session.StageData[k] = v
		}
		session.History = append(session.History,
			conversation.Turn{Role: "user", Content: req.Message},
			conversation.Turn{Role: "assistant", Content: result.AgentResponse},
		)
		session.CurrentStage = result.StageState.CurrentStage
		session.UpdatedAt = time.Now().UTC()

		if err := store.PutSession(ctx, session, sessionTTLFor(sessionTTL, session.PlanType)); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("could not persist session", "session_id", session.SessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not persist session"})
			return
		}

		if metrics != nil {
			metrics.RecordConversationMessage(previousStage, result.StageState.IsStageComplete)
			if result.StageState.CurrentStage > previousStage {
				metrics.RecordStageAdvance(previousStage, result.StageState.CurrentStage)
			}
		}

		c.Header("X-Conversation-Stage", strconv.Itoa(result.StageState.CurrentStage))
		c.Header("X-Conversation-Progress", strconv.Itoa(int(result.StageState.OverallProgress)))
		c.JSON(http.StatusOK, gin.H{
			"session_id": session.SessionID,
			"result":     result,
		})
	}
}

// HandleConversationSession returns the persisted state of a session.
func HandleConversationSession(store capability.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleConversationSession")
		defer span.End()

		session, err := store.GetSession(ctx, c.Param("sessionID"))
		if err != nil {
			if errors.Is(err, capability.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
				return
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "session lookup failed"})
			return
		}
		c.JSON(http.StatusOK, session)
	}
}

// paidSessionTTL is the retention floor for paid-plan sessions.
const paidSessionTTL = 7 * 24 * time.Hour

// sessionTTLFor extends session retention for paid plans. Trial sessions keep
// the configured base TTL; sprint, founder, and enterprise sessions are held
// for at least a week so onboarding can resume across visits.
func sessionTTLFor(base time.Duration, planType string) time.Duration {
	switch planType {
	case "", "trial":
		return base
	default:
		if base < paidSessionTTL {
			return paidSessionTTL
		}
		return base
	}
}
