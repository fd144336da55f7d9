// Copyright (C) 2025 Candor Labs (dev@candorlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package gate implements the evidence-led stage gate model.
//
// A project moves through four validation stages (DESIRABILITY, FEASIBILITY,
// VIABILITY, SCALE). Each stage has a gate: a numeric and categorical bar the
// project's accumulated evidence must clear before the project may advance.
// This package is the pure decision core - it takes an evidence collection
// plus criteria and produces a verdict. It performs no I/O, holds no state,
// and is safe for concurrent use.
//
// Callers are responsible for fetching evidence, skipping malformed records,
// and persisting results. A failing gate is a normal return value, never an
// error.
package gate

import (
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// Stages
// =============================================================================

// Stage is one of the four validation stages, in order.
type Stage string

const (
	StageDesirability Stage = "DESIRABILITY"
	StageFeasibility  Stage = "FEASIBILITY"
	StageViability    Stage = "VIABILITY"
	StageScale        Stage = "SCALE"
)

// stageOrder defines the progression sequence. SCALE is terminal.
var stageOrder = []Stage{StageDesirability, StageFeasibility, StageViability, StageScale}

// Stages returns all stages in progression order.
func Stages() []Stage {
	out := make([]Stage, len(stageOrder))
	copy(out, stageOrder)
	return out
}

// ParseStage converts a stage key into a Stage.
//
// Unknown keys are a validation error surfaced to the caller - they are never
// silently defaulted. Matching is case-insensitive.
func ParseStage(s string) (Stage, error) {
	switch Stage(strings.ToUpper(strings.TrimSpace(s))) {
	case StageDesirability:
		return StageDesirability, nil
	case StageFeasibility:
		return StageFeasibility, nil
	case StageViability:
		return StageViability, nil
	case StageScale:
		return StageScale, nil
	}
	return "", fmt.Errorf("invalid stage: %s. Must be DESIRABILITY, FEASIBILITY, VIABILITY, or SCALE", s)
}

// NextStage returns the successor of a stage.
// ok is false for SCALE, which has no successor.
func NextStage(stage Stage) (next Stage, ok bool) {
	for i, s := range stageOrder {
		if s == stage && i+1 < len(stageOrder) {
			return stageOrder[i+1], true
		}
	}
	return "", false
}

// =============================================================================
// Status
// =============================================================================

// Status is the verdict of a gate evaluation.
//
// Pending is only produced for an empty evidence collection; everything else
// is Passed or Failed. The string values are an external contract - other
// systems read them off the project record verbatim.
type Status string

const (
	StatusPassed  Status = "Passed"
	StatusFailed  Status = "Failed"
	StatusPending Status = "Pending"
)

// =============================================================================
// Evidence
// =============================================================================

// Strength is the categorical strength rating of an evidence item.
type Strength string

const (
	StrengthWeak   Strength = "weak"
	StrengthMedium Strength = "medium"
	StrengthStrong Strength = "strong"
)

// NormalizeStrength maps a raw strength value onto the canonical label.
//
// Upstream records carry strength either as the enum value or as a free-form
// string ("Strong", "STRONG", " strong "). All counting functions normalize
// through this single point rather than ad hoc. Unknown values return ok=false
// so the caller can skip the record with a warning.
func NormalizeStrength(raw string) (Strength, bool) {
	switch Strength(strings.ToLower(strings.TrimSpace(raw))) {
	case StrengthWeak:
		return StrengthWeak, true
	case StrengthMedium:
		return StrengthMedium, true
	case StrengthStrong:
		return StrengthStrong, true
	}
	return "", false
}

// EvidenceTypeExperiment is the type tag counted by the experiment minimum.
const EvidenceTypeExperiment = "experiment"

// Evidence is one collected fact supporting a project's validation claim.
//
// Records are created externally and are immutable once scored. The engine
// assumes well-formed input: malformed rows (missing type, unparseable
// strength) are the caller's responsibility to skip.
type Evidence struct {
	// Type is an open tag set: "interview", "analytics", "experiment",
	// "desk", plus whatever new sources the collectors introduce.
	Type string `json:"type"`

	// Strength is the categorical weak/medium/strong rating.
	Strength Strength `json:"strength"`

	// QualityScore is in [0,1].
	QualityScore float64 `json:"quality_score"`
}

// =============================================================================
// Criteria
// =============================================================================

// Criteria is the bar one stage's evidence must clear.
type Criteria struct {
	// MinExperiments is the minimum count of evidence with type "experiment".
	MinExperiments int `json:"min_experiments" yaml:"min_experiments"`

	// MinEvidenceQuality is the inclusive mean-quality threshold in [0,1].
	// A collection whose mean equals the threshold passes.
	MinEvidenceQuality float64 `json:"min_evidence_quality" yaml:"min_evidence_quality"`

	// MinTotalEvidence is the minimum total number of records.
	MinTotalEvidence int `json:"min_total_evidence" yaml:"min_total_evidence"`

	// RequiredEvidenceTypes must each appear at least once.
	RequiredEvidenceTypes []string `json:"required_evidence_types" yaml:"required_evidence_types"`

	// StrengthMix maps a strength label to its minimum required count.
	StrengthMix map[Strength]int `json:"strength_mix" yaml:"strength_mix"`
}

// DefaultCriteria is the stock pass bar per stage.
//
// Later stages are strictly stricter than earlier ones on MinExperiments,
// MinEvidenceQuality and MinTotalEvidence; that escalation is a tested
// invariant, not a convention. Deployments may override per stage via the
// criteria config file.
var DefaultCriteria = map[Stage]Criteria{
	StageDesirability: {
		MinExperiments:        5,
		MinEvidenceQuality:    0.7,
		MinTotalEvidence:      10,
		RequiredEvidenceTypes: []string{"interview", "analytics", "experiment"},
		StrengthMix:           map[Strength]int{StrengthMedium: 2, StrengthStrong: 1},
	},
	StageFeasibility: {
		MinExperiments:        8,
		MinEvidenceQuality:    0.75,
		MinTotalEvidence:      15,
		RequiredEvidenceTypes: []string{"interview", "analytics", "experiment"},
		StrengthMix:           map[Strength]int{StrengthMedium: 4, StrengthStrong: 2},
	},
	StageViability: {
		MinExperiments:        12,
		MinEvidenceQuality:    0.8,
		MinTotalEvidence:      20,
		RequiredEvidenceTypes: []string{"interview", "analytics", "experiment", "desk"},
		StrengthMix:           map[Strength]int{StrengthMedium: 6, StrengthStrong: 4},
	},
	StageScale: {
		MinExperiments:        15,
		MinEvidenceQuality:    0.85,
		MinTotalEvidence:      30,
		RequiredEvidenceTypes: []string{"interview", "analytics", "experiment", "desk"},
		StrengthMix:           map[Strength]int{StrengthMedium: 8, StrengthStrong: 6},
	},
}

// CriteriaFor returns the effective criteria for a stage: the override when
// non-nil, otherwise the stock table entry.
func CriteriaFor(stage Stage, override *Criteria) Criteria {
	if override != nil {
		return *override
	}
	return DefaultCriteria[stage]
}

// missingTypes returns required types not present, in sorted order so reason
// strings are deterministic.
func missingTypes(required []string, present map[string]struct{}) []string {
	var missing []string
	for _, t := range required {
		if _, ok := present[t]; !ok {
			missing = append(missing, t)
		}
	}
	sort.Strings(missing)
	return missing
}
