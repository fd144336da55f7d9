// Copyright (C) 2025 Candor Labs (dev@candorlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/candorlabs-ai/northstar/services/advisor/analysis"
	"github.com/candorlabs-ai/northstar/services/advisor/capability"
	"github.com/candorlabs-ai/northstar/services/advisor/conversation"
)

func openTestStore(t *testing.T) *BadgerSessionStore {
	t.Helper()
	s, err := NewInMemorySessionStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSessionRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	session := &capability.Session{
		SessionID:    "sess-1",
		UserID:       "user-1",
		PlanType:     "founder",
		CurrentStage: 3,
		StageData:    map[string]any{"customer_type": "b2b"},
		History: []conversation.Turn{
			{Role: "user", Content: "hello"},
			{Role: "assistant", Content: "hi"},
		},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}

	require.NoError(t, s.PutSession(ctx, session, 0))

	got, err := s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "founder", got.PlanType)
	assert.Equal(t, 3, got.CurrentStage)
	assert.Equal(t, "b2b", got.StageData["customer_type"])
	require.Len(t, got.History, 2)
	assert.Equal(t, "assistant", got.History[1].Role)
}

func TestSessionNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, capability.ErrNotFound)
}

func TestSessionOverwrite(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutSession(ctx, &capability.Session{SessionID: "sess-1", CurrentStage: 1}, 0))
	require.NoError(t, s.PutSession(ctx, &capability.Session{SessionID: "sess-1", CurrentStage: 2}, 0))

	got, err := s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentStage)
}

func TestAnalysisRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	record := &capability.AnalysisRecord{
		AnalysisID: "analysis_abc",
		UserID:     "user-1",
		Status:     capability.AnalysisStatusComplete,
		Payload: analysis.StructuredPayload{
			AnalysisID: "analysis_abc",
			Summary:    "A finding.",
		},
		Metadata: analysis.Metadata{Mode: analysis.ModeCrew},
	}

	require.NoError(t, s.PutAnalysis(ctx, record, time.Hour))

	got, err := s.GetAnalysis(ctx, "analysis_abc")
	require.NoError(t, err)
	assert.Equal(t, capability.AnalysisStatusComplete, got.Status)
	assert.Equal(t, analysis.ModeCrew, got.Metadata.Mode)
	assert.Equal(t, "A finding.", got.Payload.Summary)

	_, err = s.GetAnalysis(ctx, "analysis_other")
	assert.ErrorIs(t, err, capability.ErrNotFound)
}

func TestExpiredEntriesAreGone(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutSession(ctx, &capability.Session{SessionID: "sess-ttl"}, 50*time.Millisecond))

	time.Sleep(120 * time.Millisecond)

	_, err := s.GetSession(ctx, "sess-ttl")
	assert.ErrorIs(t, err, capability.ErrNotFound)
}

func TestContextCancellation(t *testing.T) {
	s := openTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.PutSession(ctx, &capability.Session{SessionID: "sess-1"}, 0)
	assert.Error(t, err)
}
