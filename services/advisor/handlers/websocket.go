// Copyright (C) 2025 Candor Labs (dev@candorlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/candorlabs-ai/northstar/services/advisor/capability"
	"github.com/candorlabs-ai/northstar/services/advisor/conversation"
	"github.com/candorlabs-ai/northstar/services/advisor/middleware"
	"github.com/candorlabs-ai/northstar/services/advisor/observability"
)

// WSRequest is one client frame on the conversation socket.
type WSRequest struct {
	Message string `json:"message"`
	Action  string `json:"action,omitempty"` // "ping" keeps the connection warm
}

// WSResponse wraps one engine result for the socket.
type WSResponse struct {
	SessionID string                      `json:"session_id"`
	Result    *conversation.MessageResult `json:"result,omitempty"`
	Error     string                      `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
}

func sendJSON(ws *websocket.Conn, v interface{}) error {
	err := ws.WriteJSON(v)
	if err != nil {
		slog.Warn("Failed to write WebSocket JSON", "error", err)
	}
	return err
}

// HandleConversationWebSocket runs a full onboarding conversation over one
// websocket connection.
//
// # Description
//
// On connect, a fresh session opens and the session opener is sent to the
// client. Each subsequent frame runs through the stage engine; state is
// persisted after every turn so the session survives a dropped connection
// and can resume over the REST endpoints.
func HandleConversationWebSocket(engine *conversation.Engine, store capability.SessionStore,
	sessionTTL time.Duration, metrics *observability.AdvisorMetrics) gin.HandlerFunc {

	return func(c *gin.Context) {
		planType := middleware.PlanType(c)
		userID := middleware.UserID(c)

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("failed to upgrade the websocket", "error", err)
			return
		}
		defer ws.Close()

		if metrics != nil {
			metrics.SessionOpened()
			defer metrics.SessionClosed()
		}

		sessionID := uuid.NewString()
		start := engine.StartSession(planType, nil)
		now := time.Now().UTC()
		session := &capability.Session{
			SessionID:    sessionID,
			UserID:       userID,
			PlanType:     planType,
			CurrentStage: start.StageState.CurrentStage,
			StageData:    map[string]any{},
			History:      []conversation.Turn{},
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		ctx := c.Request.Context()
		if err := store.PutSession(ctx, session, sessionTTLFor(sessionTTL, planType)); err != nil {
			slog.Error("could not persist websocket session", "error", err)
			sendJSON(ws, WSResponse{Error: "could not create session"})
			return
		}
		slog.Info("websocket session started", "session_id", sessionID, "user_id", userID)

		if err := sendJSON(ws, map[string]interface{}{
			"action":     "session_created",
			"session_id": sessionID,
			"session":    start,
		}); err != nil {
			return
		}

		for {
			var req WSRequest
			if err := ws.ReadJSON(&req); err != nil {
				slog.Info("websocket client disconnected", "session_id", sessionID, "error", err.Error())
				break
			}
			if req.Action == "ping" {
				sendJSON(ws, map[string]interface{}{"action": "pong"})
				continue
			}
			if req.Message == "" {
				sendJSON(ws, WSResponse{SessionID: sessionID, Error: "message is required"})
				continue
			}

			previousStage := session.CurrentStage
			result := engine.ProcessMessage(req.Message, session.CurrentStage, session.History)

			for k, v := range result.BriefUpdate {
				session.StageData[k] = v
			}
			session.History = append(session.History,
				conversation.Turn{Role: "user", Content: req.Message},
				conversation.Turn{Role: "assistant", Content: result.AgentResponse},
			)
			session.CurrentStage = result.StageState.CurrentStage
			session.UpdatedAt = time.Now().UTC()

			if err := store.PutSession(ctx, session, sessionTTLFor(sessionTTL, planType)); err != nil {
				slog.Error("could not persist websocket turn",
					"session_id", sessionID, "error", err)
				sendJSON(ws, WSResponse{SessionID: sessionID, Error: "could not persist session"})
				continue
			}

			if metrics != nil {
				metrics.RecordConversationMessage(previousStage, result.StageState.IsStageComplete)
				if result.StageState.CurrentStage > previousStage {
					metrics.RecordStageAdvance(previousStage, result.StageState.CurrentStage)
				}
			}

			if err := sendJSON(ws, WSResponse{SessionID: sessionID, Result: &result}); err != nil {
				return
			}
		}
	}
}
