// Copyright (C) 2025 Candor Labs (dev@candorlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package conversation

import (
	"math"
	"sort"
	"strings"
	"time"
)

// QualityScore pairs a categorical label with its numeric score.
type QualityScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// QualitySignals are recomputed from scratch on every turn. They are derived
// data, never stored authoritatively.
type QualitySignals struct {
	Clarity       QualityScore `json:"clarity"`
	Completeness  QualityScore `json:"completeness"`
	DetailScore   float64      `json:"detail_score"`
	Overall       float64      `json:"overall"`
	Suggestions   []string     `json:"suggestions,omitempty"`
	Encouragement string       `json:"encouragement"`
	QualityTags   []string     `json:"quality_tags"`
}

// SnapshotQuality is the quality block embedded in a StageSnapshot.
type SnapshotQuality struct {
	Clarity      QualityScore `json:"clarity"`
	Completeness QualityScore `json:"completeness"`
	DetailScore  float64      `json:"detail_score"`
}

// StageSnapshot captures the state of the active stage after a turn, suitable
// for checkpointing alongside the session record.
type StageSnapshot struct {
	Stage              int             `json:"stage"`
	Coverage           float64         `json:"coverage"`
	Quality            SnapshotQuality `json:"quality"`
	BriefFields        []string        `json:"brief_fields"`
	LastMessageExcerpt string          `json:"last_message_excerpt"`
	UpdatedAt          string          `json:"updated_at"`
	Notes              string          `json:"notes"`
}

// StageState reports the stage transition resulting from a processed message.
// CurrentStage may exceed PreviousStage by one when the turn completed the
// stage; StageProgress resets to zero on advancement.
type StageState struct {
	PreviousStage   int     `json:"previous_stage"`
	CurrentStage    int     `json:"current_stage"`
	StageName       string  `json:"stage_name"`
	NextStageName   string  `json:"next_stage_name"`
	StageProgress   int     `json:"stage_progress"`
	OverallProgress float64 `json:"overall_progress"`
	IsStageComplete bool    `json:"is_stage_complete"`
	TotalStages     int     `json:"total_stages"`
}

// SystemActions tells the caller which side effects to trigger for this turn.
type SystemActions struct {
	TriggerWorkflow      bool `json:"trigger_workflow"`
	SaveCheckpoint       bool `json:"save_checkpoint"`
	RequestClarification bool `json:"request_clarification"`
	NeedsReview          bool `json:"needs_review"`
}

// ConversationMetrics is a compact progress readout for dashboards.
type ConversationMetrics struct {
	StageProgress     int     `json:"stage_progress"`
	OverallProgress   float64 `json:"overall_progress"`
	ClarityLabel      string  `json:"clarity_label"`
	CompletenessLabel string  `json:"completeness_label"`
}

// Turn is one entry in a session's conversation history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MessageResult is the full delta produced by processing one user message.
type MessageResult struct {
	AgentResponse       string              `json:"agent_response"`
	FollowUpQuestion    string              `json:"follow_up_question"`
	BriefUpdate         map[string]any      `json:"brief_update"`
	QualitySignals      QualitySignals      `json:"quality_signals"`
	StageState          StageState          `json:"stage_state"`
	StageSnapshot       StageSnapshot       `json:"stage_snapshot"`
	SystemActions       SystemActions       `json:"system_actions"`
	ConversationMetrics ConversationMetrics `json:"conversation_metrics"`
}

// SessionContext is the static context block returned when a session starts.
type SessionContext struct {
	AgentPersonality Persona  `json:"agentPersonality"`
	ExpectedOutcomes []string `json:"expectedOutcomes"`
	PrivacyNotice    string   `json:"privacyNotice"`
}

// SessionStageState is the initial stage readout for a fresh session.
type SessionStageState struct {
	CurrentStage    int    `json:"current_stage"`
	StageName       string `json:"stage_name"`
	TotalStages     int    `json:"total_stages"`
	StageProgress   int    `json:"stage_progress"`
	OverallProgress int    `json:"overall_progress"`
	Summary         string `json:"summary"`
}

// SessionStart is everything needed to open a new onboarding session.
type SessionStart struct {
	Introduction      string            `json:"introduction"`
	FirstQuestion     string            `json:"first_question"`
	Context           SessionContext    `json:"context"`
	StageState        SessionStageState `json:"stage_state"`
	StageSnapshot     StageSnapshot     `json:"stage_snapshot"`
	QualitySignals    QualitySignals    `json:"quality_signals"`
	EstimatedDuration string            `json:"estimated_duration"`
	UserContext       map[string]any    `json:"user_context"`
}

// =============================================================================
// Engine
// =============================================================================

// Engine derives stage progression and quality signals from conversation
// turns. It holds no session state and is safe for concurrent use; the clock
// is injectable so tests get deterministic snapshot timestamps.
type Engine struct {
	now func() time.Time
}

// NewEngine returns an Engine using the wall clock.
func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// NewEngineWithClock returns an Engine whose snapshot timestamps come from
// the supplied clock.
func NewEngineWithClock(now func() time.Time) *Engine {
	return &Engine{now: now}
}

// StartSession produces the stage-1 introduction, the first question, and a
// seeded baseline quality snapshot. No message has been processed yet, so the
// signals are fixed defaults rather than computed values.
func (e *Engine) StartSession(planType string, userContext map[string]any) SessionStart {
	persona := PersonaForPlan(planType)

	introduction := "Hi! I'm " + persona.Name + ", your " + persona.Role + ". " +
		"I'm here to help you develop a comprehensive strategic analysis of your business idea. " +
		"I'll guide you through a structured conversation to understand your vision, validate your assumptions, " +
		"and create actionable insights."
	firstQuestion := "Let's start with the big picture. What's the business idea or opportunity you're most excited about right now? " +
		"Don't worry about having all the details figured out - I'm here to help you think through everything systematically."

	const baselineDetail = 0.05
	stage1 := stageTable[1]

	if userContext == nil {
		userContext = map[string]any{}
	}

	return SessionStart{
		Introduction:  introduction,
		FirstQuestion: firstQuestion,
		Context: SessionContext{
			AgentPersonality: persona,
			ExpectedOutcomes: []string{
				"Comprehensive entrepreneur brief",
				"Strategic recommendations",
				"Validation plan with specific next steps",
				"Business model canvas",
				"Competitive analysis",
				"Resource allocation strategy",
			},
			PrivacyNotice: "Your conversation is private and secure. All information shared will be used solely to provide personalized " +
				"strategic guidance and will not be shared with third parties.",
		},
		StageState: SessionStageState{
			CurrentStage:    1,
			StageName:       stage1.Name,
			TotalStages:     TotalStages,
			StageProgress:   0,
			OverallProgress: 0,
			Summary:         stage1.Description,
		},
		StageSnapshot: e.buildStageSnapshot(1, 0.0, "medium", "partial", baselineDetail, map[string]any{}, ""),
		QualitySignals: QualitySignals{
			Clarity:       QualityScore{Label: "medium", Score: clarityScores["medium"]},
			Completeness:  QualityScore{Label: "partial", Score: completenessScores["partial"]},
			DetailScore:   baselineDetail,
			Overall:       round2((clarityScores["medium"] + completenessScores["partial"] + baselineDetail) / 3),
			Encouragement: "Let's explore your vision together and capture the details that matter.",
			QualityTags:   []string{"needs_detail"},
		},
		EstimatedDuration: "20-25 minutes",
		UserContext:       userContext,
	}
}

// ProcessMessage scores one user message against the session's current stage
// and derives the resulting transition.
//
// # Description
//
// Stage progress is a deterministic function of the history length, the
// message length, and the presence of specificity markers, clamped to 100.
// When progress reaches the stage's threshold the stage completes: the
// follow-up question is suppressed (the next stage opens with its own), the
// stage advances, and stage progress resets to zero. Overall progress blends
// completed stages with progress inside the current one, capped at 100.
//
// # Inputs
//
//   - message: the raw user message; leading/trailing whitespace is ignored.
//   - currentStage: the session's stage (1..TotalStages). Out-of-range values
//     fall back to stage 1.
//   - history: prior turns in the session, used only for its length.
//
// # Thread Safety
//
// Safe for concurrent use. The engine never retains the inputs.
func (e *Engine) ProcessMessage(message string, currentStage int, history []Turn) MessageResult {
	stageID := currentStage
	stageConfig, ok := stageTable[stageID]
	if !ok {
		stageID = 1
		stageConfig = stageTable[1]
	}

	messageClean := strings.TrimSpace(message)
	messageLower := strings.ToLower(messageClean)
	hasDetails := len(messageClean) > 50
	hasSpecifics := specificityPattern.MatchString(messageClean)

	stageProgress := len(history) * 15
	if hasDetails {
		stageProgress += 20
	} else {
		stageProgress += 10
	}
	if hasSpecifics {
		stageProgress += 15
	}
	if stageProgress > 100 {
		stageProgress = 100
	}

	overallProgress := math.Min(100.0, float64((stageID-1)*14)+float64(stageProgress)*0.14)
	isStageComplete := stageProgress >= stageConfig.ProgressThreshold
	nextStage := stageID
	if isStageComplete && stageID < TotalStages {
		nextStage = stageID + 1
	}

	turn := &stageTurn{
		message:       messageClean,
		messageLower:  messageLower,
		stageComplete: isStageComplete,
		brief:         map[string]any{},
	}
	agentResponse, followUp := stageHandlers[stageID](turn)

	clarityLabel := "low"
	switch {
	case hasDetails && hasSpecifics:
		clarityLabel = "high"
	case hasDetails:
		clarityLabel = "medium"
	}

	completenessLabel := "insufficient"
	switch {
	case isStageComplete:
		completenessLabel = "complete"
	case stageProgress > 50:
		completenessLabel = "partial"
	}

	var suggestions []string
	if !hasDetails {
		suggestions = append(suggestions, "Try to provide more specific details to help me understand your situation better.")
	}
	if stageProgress < 50 {
		suggestions = append(suggestions, "Consider sharing examples or specific scenarios to illustrate your points.")
	}

	qualityTags := []string{}
	if clarityLabel == "low" {
		qualityTags = append(qualityTags, "clarity_low")
	}
	if completenessLabel == "insufficient" {
		qualityTags = append(qualityTags, "incomplete")
	}

	detailScore := round2(float64(stageProgress) / 100)
	signals := QualitySignals{
		Clarity:       QualityScore{Label: clarityLabel, Score: clarityScores[clarityLabel]},
		Completeness:  QualityScore{Label: completenessLabel, Score: completenessScores[completenessLabel]},
		DetailScore:   detailScore,
		Overall:       round2((clarityScores[clarityLabel] + completenessScores[completenessLabel] + detailScore) / 3),
		Suggestions:   suggestions,
		Encouragement: "You're making great progress! Your insights are helping build a comprehensive picture of your business opportunity.",
		QualityTags:   qualityTags,
	}

	nextStageName := stageConfig.Name
	if nextStage > stageID {
		nextStageName = stageTable[nextStage].Name
	}
	reportedProgress := stageProgress
	if nextStage > stageID {
		reportedProgress = 0
		followUp = ""
	}

	return MessageResult{
		AgentResponse:    agentResponse,
		FollowUpQuestion: followUp,
		BriefUpdate:      turn.brief,
		QualitySignals:   signals,
		StageState: StageState{
			PreviousStage:   stageID,
			CurrentStage:    nextStage,
			StageName:       stageConfig.Name,
			NextStageName:   nextStageName,
			StageProgress:   reportedProgress,
			OverallProgress: overallProgress,
			IsStageComplete: isStageComplete,
			TotalStages:     TotalStages,
		},
		StageSnapshot: e.buildStageSnapshot(stageID, detailScore, clarityLabel, completenessLabel, detailScore, turn.brief, messageClean),
		SystemActions: SystemActions{
			TriggerWorkflow:      stageID == TotalStages && isStageComplete,
			SaveCheckpoint:       isStageComplete,
			RequestClarification: stageProgress < 30 || clarityLabel == "low",
			NeedsReview:          clarityLabel == "low" || completenessLabel == "insufficient",
		},
		ConversationMetrics: ConversationMetrics{
			StageProgress:     reportedProgress,
			OverallProgress:   overallProgress,
			ClarityLabel:      clarityLabel,
			CompletenessLabel: completenessLabel,
		},
	}
}

func (e *Engine) buildStageSnapshot(
	stageID int,
	coverage float64,
	clarityLabel, completenessLabel string,
	detailScore float64,
	briefUpdate map[string]any,
	rawMessage string,
) StageSnapshot {
	fields := make([]string, 0, len(briefUpdate))
	for k := range briefUpdate {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	notes := "Additional detail captured"
	if completenessLabel == "complete" {
		notes = "Stage advanced"
	}

	return StageSnapshot{
		Stage:    stageID,
		Coverage: clamp(coverage, 0.0, 1.0),
		Quality: SnapshotQuality{
			Clarity:      QualityScore{Label: clarityLabel, Score: clarityScores[clarityLabel]},
			Completeness: QualityScore{Label: completenessLabel, Score: completenessScores[completenessLabel]},
			DetailScore:  detailScore,
		},
		BriefFields:        fields,
		LastMessageExcerpt: truncate(rawMessage, 240),
		UpdatedAt:          e.now().UTC().Format(time.RFC3339),
		Notes:              notes,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
