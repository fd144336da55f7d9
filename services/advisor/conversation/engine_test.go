// Copyright (C) 2025 Candor Labs (dev@candorlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package conversation

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEngine() *Engine {
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return NewEngineWithClock(func() time.Time { return fixed })
}

// longHistory returns n prior turns so stage progress starts at n*15.
func longHistory(n int) []Turn {
	turns := make([]Turn, n)
	for i := range turns {
		turns[i] = Turn{Role: "user", Content: "earlier message"}
	}
	return turns
}

// =============================================================================
// StartSession
// =============================================================================

func TestStartSession(t *testing.T) {
	e := testEngine()

	t.Run("persona by plan", func(t *testing.T) {
		for plan, name := range map[string]string{
			"trial": "Alex", "sprint": "Jordan", "founder": "Morgan", "enterprise": "Taylor",
		} {
			start := e.StartSession(plan, nil)
			assert.Contains(t, start.Introduction, name, "plan %q", plan)
			assert.Equal(t, name, start.Context.AgentPersonality.Name)
		}
	})

	t.Run("unknown plan falls back to trial", func(t *testing.T) {
		start := e.StartSession("platinum", nil)
		assert.Equal(t, "Alex", start.Context.AgentPersonality.Name)
	})

	t.Run("baseline quality signals", func(t *testing.T) {
		start := e.StartSession("trial", nil)
		assert.Equal(t, "medium", start.QualitySignals.Clarity.Label)
		assert.Equal(t, 0.68, start.QualitySignals.Clarity.Score)
		assert.Equal(t, "partial", start.QualitySignals.Completeness.Label)
		assert.Equal(t, 0.66, start.QualitySignals.Completeness.Score)
		assert.Equal(t, 0.05, start.QualitySignals.DetailScore)
		assert.Equal(t, []string{"needs_detail"}, start.QualitySignals.QualityTags)
	})

	t.Run("initial stage state", func(t *testing.T) {
		start := e.StartSession("trial", nil)
		assert.Equal(t, 1, start.StageState.CurrentStage)
		assert.Equal(t, "Welcome & Introduction", start.StageState.StageName)
		assert.Equal(t, TotalStages, start.StageState.TotalStages)
		assert.Zero(t, start.StageState.StageProgress)
		assert.Equal(t, "20-25 minutes", start.EstimatedDuration)
	})

	t.Run("user context is echoed and never nil", func(t *testing.T) {
		start := e.StartSession("trial", map[string]any{"source": "landing"})
		assert.Equal(t, "landing", start.UserContext["source"])

		start = e.StartSession("trial", nil)
		assert.NotNil(t, start.UserContext)
	})
}

// =============================================================================
// Quality signals
// =============================================================================

func TestClarityLabels(t *testing.T) {
	e := testEngine()

	t.Run("short message without markers is low", func(t *testing.T) {
		res := e.ProcessMessage("an app for dog walkers", 1, nil)
		assert.Equal(t, "low", res.QualitySignals.Clarity.Label)
		assert.Equal(t, 0.38, res.QualitySignals.Clarity.Score)
		assert.Contains(t, res.QualitySignals.QualityTags, "clarity_low")
	})

	t.Run("long message with marker is high", func(t *testing.T) {
		msg := "Specifically, I want to build a scheduling platform for independent dog walkers in dense urban areas."
		res := e.ProcessMessage(msg, 1, nil)
		assert.Equal(t, "high", res.QualitySignals.Clarity.Label)
		assert.Equal(t, 0.92, res.QualitySignals.Clarity.Score)
	})

	t.Run("long message without marker is medium", func(t *testing.T) {
		msg := "I want to build a scheduling platform for independent dog walkers in dense urban areas."
		res := e.ProcessMessage(msg, 1, nil)
		assert.Equal(t, "medium", res.QualitySignals.Clarity.Label)
	})

	t.Run("marker matching is case-insensitive and word-bounded", func(t *testing.T) {
		msg := strings.Repeat("x", 51) + " EXACTLY"
		res := e.ProcessMessage(msg, 1, nil)
		assert.Equal(t, "high", res.QualitySignals.Clarity.Label)

		// "exactly" embedded in a longer word must not count.
		msg = strings.Repeat("x", 51) + " inexactlyish"
		res = e.ProcessMessage(msg, 1, nil)
		assert.Equal(t, "medium", res.QualitySignals.Clarity.Label)
	})
}

func TestOverallQualityIsMeanOfThree(t *testing.T) {
	e := testEngine()
	res := e.ProcessMessage("short", 1, nil)
	// progress = 0*15 + 10 = 10 → detail 0.10, clarity low, completeness insufficient
	assert.Equal(t, 0.1, res.QualitySignals.DetailScore)
	want := (0.38 + 0.35 + 0.10) / 3
	assert.InDelta(t, want, res.QualitySignals.Overall, 0.005)
}

// =============================================================================
// Progress and stage advancement
// =============================================================================

func TestStageProgress(t *testing.T) {
	e := testEngine()

	t.Run("clamped at 100", func(t *testing.T) {
		msg := "Specifically, " + strings.Repeat("detail ", 20)
		res := e.ProcessMessage(msg, 5, longHistory(20))
		assert.Equal(t, 1.0, res.QualitySignals.DetailScore)
		assert.LessOrEqual(t, res.StageState.OverallProgress, 100.0)
	})

	t.Run("advancing resets progress and suppresses follow-up", func(t *testing.T) {
		msg := "Specifically, our target customers are independent veterinary clinics with fewer than five staff."
		res := e.ProcessMessage(msg, 2, longHistory(3))
		// 3*15 + 20 + 15 = 80 ≥ threshold 75
		require.True(t, res.StageState.IsStageComplete)
		assert.Equal(t, 3, res.StageState.CurrentStage)
		assert.Equal(t, 2, res.StageState.PreviousStage)
		assert.Equal(t, "Problem Definition", res.StageState.NextStageName)
		assert.Zero(t, res.StageState.StageProgress)
		assert.Empty(t, res.FollowUpQuestion)
		assert.True(t, res.SystemActions.SaveCheckpoint)
	})

	t.Run("incomplete stage keeps its follow-up", func(t *testing.T) {
		res := e.ProcessMessage("a few small businesses", 2, nil)
		assert.False(t, res.StageState.IsStageComplete)
		assert.Equal(t, 2, res.StageState.CurrentStage)
		assert.NotEmpty(t, res.FollowUpQuestion)
	})

	t.Run("final stage completion triggers the workflow", func(t *testing.T) {
		msg := "Specifically, I want 100 paying customers and $10,000 in monthly recurring revenue within three months."
		res := e.ProcessMessage(msg, 7, longHistory(4))
		// 4*15 + 20 + 15 = 95 ≥ threshold 85
		require.True(t, res.StageState.IsStageComplete)
		assert.Equal(t, 7, res.StageState.CurrentStage, "stage 7 is terminal")
		assert.True(t, res.SystemActions.TriggerWorkflow)
		// terminal stage keeps its closing follow-up question
		assert.NotEmpty(t, res.FollowUpQuestion)
	})

	t.Run("out-of-range stage falls back to stage 1", func(t *testing.T) {
		res := e.ProcessMessage("hello", 42, nil)
		assert.Equal(t, 1, res.StageState.PreviousStage)
		assert.Equal(t, "Welcome & Introduction", res.StageState.StageName)
	})
}

func TestOverallProgressBlendsStages(t *testing.T) {
	e := testEngine()
	res := e.ProcessMessage("short", 3, nil)
	// (3-1)*14 + 10*0.14 = 29.4
	assert.InDelta(t, 29.4, res.StageState.OverallProgress, 1e-9)
}

// =============================================================================
// Per-stage branching
// =============================================================================

func TestStageBranches(t *testing.T) {
	e := testEngine()

	t.Run("stage 1 software detection", func(t *testing.T) {
		res := e.ProcessMessage("I want to build an app for scheduling", 1, nil)
		assert.Equal(t, "software", res.BriefUpdate["solution_type"])
		assert.Equal(t, "idea", res.BriefUpdate["business_stage"])
		assert.Contains(t, res.AgentResponse, "software solution")
	})

	t.Run("stage 1 service detection", func(t *testing.T) {
		res := e.ProcessMessage("a consulting practice for restaurants", 1, nil)
		assert.Equal(t, "service", res.BriefUpdate["solution_type"])
	})

	t.Run("stage 2 b2b and b2c", func(t *testing.T) {
		res := e.ProcessMessage("small business owners mostly", 2, nil)
		assert.Equal(t, "b2b", res.BriefUpdate["customer_type"])

		res = e.ProcessMessage("individual consumers at home", 2, nil)
		assert.Equal(t, "b2c", res.BriefUpdate["customer_type"])
	})

	t.Run("stage 3 pain language raises pain level", func(t *testing.T) {
		res := e.ProcessMessage("it is incredibly frustrating and expensive for them", 3, nil)
		assert.Equal(t, 8, res.BriefUpdate["problem_pain_level"])

		res = e.ProcessMessage("they sometimes lose a bit of time", 3, nil)
		assert.Equal(t, 6, res.BriefUpdate["problem_pain_level"])
		assert.Equal(t, "they sometimes lose a bit of time", res.BriefUpdate["problem_description"])
	})

	t.Run("stage 4 captures solution description", func(t *testing.T) {
		res := e.ProcessMessage("we automate the scheduling entirely", 4, nil)
		assert.Equal(t, "we automate the scheduling entirely", res.BriefUpdate["solution_description"])
		assert.Contains(t, res.AgentResponse, "solid approach")

		res = e.ProcessMessage("our approach is unique because of the data", 4, nil)
		assert.Contains(t, res.AgentResponse, "differentiation")
	})

	t.Run("stage 5 challenges no-competition claims", func(t *testing.T) {
		res := e.ProcessMessage("there is no competition at all", 5, nil)
		assert.Contains(t, res.AgentResponse, "customers are always solving this problem somehow")
	})

	t.Run("stage 6 extracts budget figure", func(t *testing.T) {
		res := e.ProcessMessage("I have $25,000 saved for this", 6, nil)
		assert.Equal(t, "$25,000", res.BriefUpdate["budget_range"])

		res = e.ProcessMessage("a few thousand at most", 6, nil)
		assert.Equal(t, "specified", res.BriefUpdate["budget_range"])

		res = e.ProcessMessage("not sure yet", 6, nil)
		_, ok := res.BriefUpdate["budget_range"]
		assert.False(t, ok)
	})

	t.Run("stage 7 captures goals list", func(t *testing.T) {
		res := e.ProcessMessage("get to 100 users", 7, nil)
		assert.Equal(t, []string{"get to 100 users"}, res.BriefUpdate["three_month_goals"])
	})
}

// =============================================================================
// Snapshots and system actions
// =============================================================================

func TestStageSnapshot(t *testing.T) {
	e := testEngine()
	res := e.ProcessMessage("I want to build an app for scheduling", 1, nil)

	snap := res.StageSnapshot
	assert.Equal(t, 1, snap.Stage)
	assert.Equal(t, []string{"business_stage", "solution_type"}, snap.BriefFields, "brief fields sorted")
	assert.Equal(t, "I want to build an app for scheduling", snap.LastMessageExcerpt)
	assert.Equal(t, "2025-06-01T12:00:00Z", snap.UpdatedAt)
	assert.Equal(t, "Additional detail captured", snap.Notes)
	assert.GreaterOrEqual(t, snap.Coverage, 0.0)
	assert.LessOrEqual(t, snap.Coverage, 1.0)
}

func TestSystemActions(t *testing.T) {
	e := testEngine()

	t.Run("low progress requests clarification", func(t *testing.T) {
		res := e.ProcessMessage("short", 2, nil)
		assert.True(t, res.SystemActions.RequestClarification)
		assert.True(t, res.SystemActions.NeedsReview)
		assert.False(t, res.SystemActions.SaveCheckpoint)
		assert.False(t, res.SystemActions.TriggerWorkflow)
	})

	t.Run("clear detailed turn mid-stage needs no review", func(t *testing.T) {
		msg := "Specifically, the clinics spend two hours a day on manual scheduling and double-bookings."
		res := e.ProcessMessage(msg, 3, longHistory(2))
		// 2*15 + 20 + 15 = 65 < threshold 80, clarity high, completeness partial
		assert.False(t, res.SystemActions.NeedsReview)
		assert.False(t, res.SystemActions.SaveCheckpoint)
	})
}

func TestTruncate(t *testing.T) {
	t.Run("short strings pass through", func(t *testing.T) {
		assert.Equal(t, "hello", truncate("hello", 10))
	})

	t.Run("long strings are cut", func(t *testing.T) {
		assert.Equal(t, "abcde", truncate("abcdefgh", 5))
	})

	t.Run("multibyte text stays valid after the cut", func(t *testing.T) {
		msg := strings.Repeat("ökonomisch skalieren ", 30)
		got := truncate(msg, 200)
		assert.True(t, utf8.ValidString(got))
		assert.True(t, strings.HasPrefix(msg, got))
	})
}

func TestStageTableShape(t *testing.T) {
	for n := 1; n <= TotalStages; n++ {
		cfg, ok := StageByNumber(n)
		require.True(t, ok, "stage %d missing", n)
		assert.NotEmpty(t, cfg.Name)
		assert.Len(t, cfg.KeyQuestions, 3)
		assert.Len(t, cfg.DataToCollect, 3)
		assert.Greater(t, cfg.ProgressThreshold, 0)
		assert.LessOrEqual(t, cfg.ProgressThreshold, 100)
	}
	_, ok := StageByNumber(8)
	assert.False(t, ok)
}
