// Copyright (C) 2025 Candor Labs (dev@candorlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	result any
	err    error
}

func (s *stubRunner) Run(_ context.Context, _ Inputs) (any, error) {
	return s.result, s.err
}

type rawValue struct{ text string }

func (r rawValue) Raw() string { return r.text }

func fixedClock() func() time.Time {
	t := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

// =============================================================================
// NormalizeResult
// =============================================================================

func TestNormalizeResult(t *testing.T) {
	assert.Equal(t, "", NormalizeResult(nil))
	assert.Equal(t, "plain text", NormalizeResult("plain text"))
	assert.Equal(t, "from raw", NormalizeResult(rawValue{text: "from raw"}))

	encoded := NormalizeResult(map[string]string{"key": "value"})
	assert.Contains(t, encoded, `"key"`)
}

// =============================================================================
// Text extraction
// =============================================================================

func TestExtractSentences(t *testing.T) {
	t.Run("caps at max", func(t *testing.T) {
		text := "First sentence. Second sentence! Third sentence? Fourth sentence."
		got := ExtractSentences(text, 3)
		assert.Equal(t, "First sentence. Second sentence! Third sentence?", got)
	})

	t.Run("fewer sentences than max", func(t *testing.T) {
		assert.Equal(t, "Only one.", ExtractSentences("Only one.", 3))
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Equal(t, "", ExtractSentences("", 3))
		assert.Equal(t, "", ExtractSentences("   ", 3))
	})
}

func TestExtractBullets(t *testing.T) {
	t.Run("dashes stars and numbers", func(t *testing.T) {
		text := "Intro line\n- first point\n* second point\n1. third point\n2) fourth point\nplain line"
		got := ExtractBullets(text, 6)
		assert.Equal(t, []string{"first point", "second point", "third point", "fourth point"}, got)
	})

	t.Run("limit applies", func(t *testing.T) {
		text := "- a\n- b\n- c\n- d"
		assert.Len(t, ExtractBullets(text, 2), 2)
	})

	t.Run("no bullets", func(t *testing.T) {
		assert.Empty(t, ExtractBullets("just prose with no list", 6))
	})
}

// =============================================================================
// BuildStructuredPayload
// =============================================================================

func TestBuildStructuredPayload(t *testing.T) {
	raw := "Summary one. Summary two. Summary three. Extra sentence.\n" +
		"- Validate with customers\n- Build a prototype\n- Study competitors\n- Set metrics\n"
	inputs := Inputs{StrategicQuestion: "Should we go B2B first?"}
	now := fixedClock()()

	p := BuildStructuredPayload(raw, inputs, "user-1", "analysis_x", now)

	t.Run("summary and identifiers", func(t *testing.T) {
		assert.Equal(t, "analysis_x", p.AnalysisID)
		assert.Equal(t, "user-1", p.UserID)
		assert.Equal(t, "Summary one. Summary two. Summary three.", p.Summary)
		assert.Equal(t, "2025-06-01T12:00:00Z", p.RunStartedAt)
	})

	t.Run("insights mirror bullets, evidence capped at three", func(t *testing.T) {
		require.Len(t, p.InsightSummaries, 4)
		assert.Equal(t, "Validate with customers", p.InsightSummaries[0].Headline)
		require.Len(t, p.EvidenceItems, 3)
		assert.Equal(t, []string{"ai_generated", "crew_analysis"}, p.EvidenceItems[0].Tags)
	})

	t.Run("report and brief", func(t *testing.T) {
		assert.Equal(t, "Strategic Analysis – Should we go B2B first?", p.Report.Title)
		assert.Equal(t, "recommendation", p.Report.ReportType)
		assert.Equal(t, raw, p.Report.Content)
		assert.Equal(t, "Validate with customers", p.EntrepreneurBrief.UniqueValueProposition)
		assert.Len(t, p.EntrepreneurBrief.DifferentiationFactors, 3)
		assert.Equal(t, "validation", p.EntrepreneurBrief.BusinessStage)
	})

	t.Run("quality signals", func(t *testing.T) {
		// 3 evidence items: 0.55 + 0.3 = 0.85; 4 insights: 0.6 + 0.2 = 0.8
		assert.Equal(t, 0.85, p.QualitySignals.EvidenceStrength)
		assert.Equal(t, 0.8, p.QualitySignals.InsightDepth)
		assert.Equal(t, 0.83, p.QualitySignals.AnalysisConfidence)
		assert.Contains(t, p.QualitySignals.QualityTags, "high_value_insights")
		assert.NotContains(t, p.QualitySignals.QualityTags, "needs_more_evidence")
	})

	t.Run("stage metrics", func(t *testing.T) {
		require.Len(t, p.StageMetrics, 3)
		assert.Equal(t, "Entrepreneur Brief", p.StageMetrics[0].Stage)
		assert.Equal(t, 0.83, p.StageMetrics[0].Quality)
		assert.Equal(t, 0.82, p.StageMetrics[1].Quality) // capped at 0.82
		assert.Equal(t, 0.8, p.StageMetrics[2].Quality)  // capped at 0.8
	})

	t.Run("prose-only text falls back to summary bullet", func(t *testing.T) {
		p := BuildStructuredPayload("A single finding without lists.", inputs, "u", "id", now)
		require.Len(t, p.InsightSummaries, 1)
		assert.Equal(t, p.Summary, p.InsightSummaries[0].Headline)
		// 1 evidence item → 0.55 + 0.1 = 0.65, no needs_more_evidence tag
		assert.Equal(t, 0.65, p.QualitySignals.EvidenceStrength)
	})

	t.Run("empty text yields empty collections", func(t *testing.T) {
		p := BuildStructuredPayload("", inputs, "u", "id", now)
		assert.Empty(t, p.Summary)
		assert.Empty(t, p.InsightSummaries)
		assert.Empty(t, p.EvidenceItems)
		// 0 evidence items → 0.55 < 0.6
		assert.Contains(t, p.QualitySignals.QualityTags, "needs_more_evidence")
	})
}

// =============================================================================
// Engine
// =============================================================================

func TestEngineRun(t *testing.T) {
	inputs := Inputs{StrategicQuestion: "Where should we focus?"}

	t.Run("successful run is tagged crew", func(t *testing.T) {
		raw := "Finding one. Finding two. Finding three. More detail.\n- do this\n- do that"
		e := NewEngineWithClock(&stubRunner{result: raw}, fixedClock())
		id, payload, meta := e.Run(context.Background(), inputs, "user-1")

		assert.True(t, len(id) > len("analysis_"), "id %q", id)
		assert.Contains(t, id, "analysis_")
		assert.Equal(t, ModeCrew, meta.Mode)
		assert.Empty(t, meta.Error)
		assert.Equal(t, "Finding one. Finding two. Finding three.", payload.Summary)
		assert.Equal(t, id, payload.AnalysisID)
	})

	t.Run("runner error degrades to fallback", func(t *testing.T) {
		e := NewEngineWithClock(&stubRunner{err: errors.New("upstream unavailable")}, fixedClock())
		_, payload, meta := e.Run(context.Background(), inputs, "user-1")

		assert.Equal(t, ModeFallback, meta.Mode)
		assert.Equal(t, "upstream unavailable", meta.Error)
		assert.Contains(t, payload.RawOutput, "Key Recommendations:")
		assert.Contains(t, payload.RawOutput, "Where should we focus?")
	})

	t.Run("nil runner is fallback without error", func(t *testing.T) {
		e := NewEngineWithClock(nil, fixedClock())
		_, payload, meta := e.Run(context.Background(), inputs, "user-1")

		assert.Equal(t, ModeFallback, meta.Mode)
		assert.Empty(t, meta.Error)
		assert.NotEmpty(t, payload.InsightSummaries)
	})

	t.Run("raw result values are normalized", func(t *testing.T) {
		e := NewEngineWithClock(&stubRunner{result: rawValue{text: "Raw body."}}, fixedClock())
		_, payload, meta := e.Run(context.Background(), inputs, "user-1")
		assert.Equal(t, ModeCrew, meta.Mode)
		assert.Equal(t, "Raw body.", payload.RawOutput)
	})
}

func TestFirstN(t *testing.T) {
	t.Run("short strings pass through", func(t *testing.T) {
		assert.Equal(t, "insight", firstN("insight", 90))
	})

	t.Run("multibyte text stays valid after the cut", func(t *testing.T) {
		text := strings.Repeat("市場の検証が必要です。", 20)
		got := firstN(text, 90)
		assert.True(t, utf8.ValidString(got))
		assert.True(t, strings.HasPrefix(text, got))
	})
}

func TestFallbackText(t *testing.T) {
	t.Run("includes question and context excerpt", func(t *testing.T) {
		text := FallbackText(Inputs{StrategicQuestion: "Q?", ProjectContext: "some context"})
		assert.Contains(t, text, "Q?")
		assert.Contains(t, text, "Context considered: some context...")
	})

	t.Run("defaults when question missing", func(t *testing.T) {
		text := FallbackText(Inputs{})
		assert.Contains(t, text, "your strategic question")
		assert.NotContains(t, text, "Context considered")
	})
}
