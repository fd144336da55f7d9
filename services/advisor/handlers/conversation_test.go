// Copyright (C) 2025 Candor Labs (dev@candorlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/candorlabs-ai/northstar/services/advisor/capability"
	"github.com/candorlabs-ai/northstar/services/advisor/conversation"
	"github.com/candorlabs-ai/northstar/services/advisor/store"
)

func testSessionStore(t *testing.T) capability.SessionStore {
	t.Helper()
	s, err := store.NewInMemorySessionStore()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func conversationRouter(t *testing.T) (*gin.Engine, capability.SessionStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := conversation.NewEngine()
	sessions := testSessionStore(t)

	router := gin.New()
	router.POST("/start", HandleConversationStart(engine, sessions, time.Hour, nil))
	router.POST("/message", HandleConversationMessage(engine, sessions, time.Hour, nil))
	router.GET("/sessions/:sessionID", HandleConversationSession(sessions))
	return router, sessions
}

func TestConversationStart(t *testing.T) {
	router, sessions := conversationRouter(t)

	rec := postJSON(t, router, "/start", map[string]any{
		"plan_type":    "founder",
		"user_context": map[string]any{"referrer": "landing"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Conversation-Stage"))

	var resp struct {
		SessionID string                    `json:"session_id"`
		Session   conversation.SessionStart `json:"session"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.SessionID)
	assert.Equal(t, "Morgan", resp.Session.Context.AgentPersonality.Name)
	assert.Equal(t, 1, resp.Session.StageState.CurrentStage)
	assert.Equal(t, "landing", resp.Session.UserContext["referrer"])

	stored, err := sessions.GetSession(context.Background(), resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "founder", stored.PlanType)
	assert.Equal(t, 1, stored.CurrentStage)
	assert.Empty(t, stored.History)
}

func TestConversationStartDefaultsToTrialPersona(t *testing.T) {
	router, _ := conversationRouter(t)

	rec := postJSON(t, router, "/start", map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Alex"`)
}

func TestConversationMessageFlow(t *testing.T) {
	router, sessions := conversationRouter(t)

	start := postJSON(t, router, "/start", map[string]any{"plan_type": "trial"})
	require.Equal(t, http.StatusOK, start.Code)
	var started struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(start.Body.Bytes(), &started))

	rec := postJSON(t, router, "/message", map[string]string{
		"session_id": started.SessionID,
		"message":    "I'm building a SaaS product for small restaurants, specifically an inventory planner.",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		SessionID string                     `json:"session_id"`
		Result    conversation.MessageResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Result.AgentResponse)

	// headers render the stage state as whole numbers, truncating the
	// fractional overall progress
	assert.Equal(t, strconv.Itoa(resp.Result.StageState.CurrentStage),
		rec.Header().Get("X-Conversation-Stage"))
	assert.Equal(t, strconv.Itoa(int(resp.Result.StageState.OverallProgress)),
		rec.Header().Get("X-Conversation-Progress"))

	stored, err := sessions.GetSession(context.Background(), started.SessionID)
	require.NoError(t, err)
	require.Len(t, stored.History, 2)
	assert.Equal(t, "user", stored.History[0].Role)
	assert.Equal(t, "assistant", stored.History[1].Role)
	assert.Equal(t, resp.Result.StageState.CurrentStage, stored.CurrentStage)
	// the welcome stage captures business fields into the brief
	assert.Contains(t, stored.StageData, "business_stage")
}

func TestConversationMessageValidation(t *testing.T) {
	router, _ := conversationRouter(t)

	rec := postJSON(t, router, "/message", map[string]string{"message": "hi"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, router, "/message", map[string]string{
		"session_id": "missing", "message": "hi",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConversationSessionLookup(t *testing.T) {
	router, sessions := conversationRouter(t)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, sessions.PutSession(context.Background(), &capability.Session{
		SessionID:    "sess-1",
		UserID:       "u-1",
		PlanType:     "sprint",
		CurrentStage: 3,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, time.Hour))

	rec := getPath(t, router, "/sessions/sess-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"plan_type":"sprint"`)

	rec = getPath(t, router, "/sessions/absent")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionTTLFor(t *testing.T) {
	base := 24 * time.Hour

	assert.Equal(t, base, sessionTTLFor(base, "trial"))
	assert.Equal(t, base, sessionTTLFor(base, ""))
	assert.Equal(t, 7*24*time.Hour, sessionTTLFor(base, "sprint"))
	assert.Equal(t, 7*24*time.Hour, sessionTTLFor(base, "founder"))
	assert.Equal(t, 7*24*time.Hour, sessionTTLFor(base, "enterprise"))

	// A longer configured TTL is never shortened
	long := 30 * 24 * time.Hour
	assert.Equal(t, long, sessionTTLFor(long, "founder"))
}
