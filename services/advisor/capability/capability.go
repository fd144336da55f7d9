// Copyright (C) 2025 Candor Labs (dev@candorlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package capability declares the external collaborator interfaces the
// advisor service depends on. The engines themselves are pure; everything
// with I/O lives behind one of these interfaces so handlers can be tested
// with in-memory fakes.
package capability

import (
	"context"
	"errors"
	"time"

	"github.com/candorlabs-ai/northstar/services/advisor/analysis"
	"github.com/candorlabs-ai/northstar/services/advisor/conversation"
)

// ErrNotFound is returned by stores when the requested record does not exist.
var ErrNotFound = errors.New("not found")

// Clock abstracts time for components that need testable scheduling, such as
// the rate limiter.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall-clock Clock used outside tests.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// =============================================================================
// Evidence
// =============================================================================

// EvidenceRecord is a raw evidence row as stored. Strength is the stored
// string, not yet validated; conversion to the scoring types happens at the
// evaluation boundary so malformed rows can be skipped individually.
type EvidenceRecord struct {
	Type         string  `json:"type"`
	Strength     string  `json:"strength"`
	QualityScore float64 `json:"quality_score"`
}

// ProjectGateUpdate is the four-field gate summary persisted onto a project
// after each evaluation.
type ProjectGateUpdate struct {
	GateStatus       string  `json:"gate_status"`
	EvidenceQuality  float64 `json:"evidence_quality"`
	EvidenceCount    int     `json:"evidence_count"`
	ExperimentsCount int     `json:"experiments_count"`
}

// EvidenceRepository provides access to a project's evidence rows and its
// gate summary fields.
type EvidenceRepository interface {
	// ListByProject returns all evidence rows for the project. An empty
	// slice (not an error) means no evidence has been collected.
	ListByProject(ctx context.Context, projectID string) ([]EvidenceRecord, error)

	// UpdateProjectGate merges the gate summary into the project record.
	UpdateProjectGate(ctx context.Context, projectID string, update ProjectGateUpdate) error
}

// =============================================================================
// Search
// =============================================================================

// SearchHit is one semantic search result.
type SearchHit struct {
	Content   string  `json:"content"`
	Source    string  `json:"source"`
	Certainty float64 `json:"certainty"`
}

// SemanticSearch finds stored evidence and insights near a natural-language
// query.
type SemanticSearch interface {
	Search(ctx context.Context, query string, limit int) ([]SearchHit, error)
}

// WebSearch runs an external web search and returns a text digest of the
// results.
type WebSearch interface {
	Search(ctx context.Context, query string) (string, error)
}

// =============================================================================
// Sessions
// =============================================================================

// Session is the per-conversation mutable record owned by the session store.
// The engine only ever sees snapshots of it.
type Session struct {
	SessionID    string              `json:"session_id"`
	UserID       string              `json:"user_id"`
	PlanType     string              `json:"plan_type"`
	CurrentStage int                 `json:"current_stage"`
	StageData    map[string]any      `json:"stage_data"`
	History      []conversation.Turn `json:"history"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// Analysis run states for background execution.
const (
	AnalysisStatusRunning  = "running"
	AnalysisStatusComplete = "complete"
	AnalysisStatusFailed   = "failed"
)

// AnalysisRecord tracks one background analysis run.
type AnalysisRecord struct {
	AnalysisID  string                     `json:"analysis_id"`
	UserID      string                     `json:"user_id"`
	Status      string                     `json:"status"`
	Payload     analysis.StructuredPayload `json:"payload"`
	Metadata    analysis.Metadata          `json:"metadata"`
	CreatedAt   time.Time                  `json:"created_at"`
	CompletedAt time.Time                  `json:"completed_at,omitempty"`
}

// SessionStore persists sessions and background analysis records with a TTL.
// Implementations must be safe for concurrent use.
type SessionStore interface {
	PutSession(ctx context.Context, session *Session, ttl time.Duration) error
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	PutAnalysis(ctx context.Context, record *AnalysisRecord, ttl time.Duration) error
	GetAnalysis(ctx context.Context, analysisID string) (*AnalysisRecord, error)
	Close() error
}
