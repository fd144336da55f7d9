// Copyright (C) 2025 Candor Labs (dev@candorlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeEvidenceFile writes an evidence JSON array to a temp file and
// returns its path.
func writeEvidenceFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "evidence.json")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

const passingEvidence = `[
  {"type": "interview", "strength": "medium", "quality_score": 0.8},
  {"type": "interview", "strength": "medium", "quality_score": 0.8},
  {"type": "interview", "strength": "medium", "quality_score": 0.8},
  {"type": "analytics", "strength": "medium", "quality_score": 0.75},
  {"type": "analytics", "strength": "medium", "quality_score": 0.75},
  {"type": "experiment", "strength": "strong", "quality_score": 0.85},
  {"type": "experiment", "strength": "strong", "quality_score": 0.85},
  {"type": "experiment", "strength": "strong", "quality_score": 0.85},
  {"type": "experiment", "strength": "strong", "quality_score": 0.85},
  {"type": "experiment", "strength": "strong", "quality_score": 0.85}
]`

func TestEvaluateGateFile_Passing(t *testing.T) {
	path := writeEvidenceFile(t, passingEvidence)

	report, err := evaluateGateFile("DESIRABILITY", path, "")
	if err != nil {
		t.Fatalf("evaluateGateFile() error = %v", err)
	}
	if report.Status != "Passed" {
		t.Errorf("Status = %q (reasons %v), want Passed", report.Status, report.Reasons)
	}
	if report.Stage != "DESIRABILITY" {
		t.Errorf("Stage = %q", report.Stage)
	}
	if report.EvidenceCount != 10 {
		t.Errorf("EvidenceCount = %d, want 10", report.EvidenceCount)
	}
	if report.ReadinessScore <= 0 || report.ReadinessScore > 1 {
		t.Errorf("ReadinessScore = %v, want (0, 1]", report.ReadinessScore)
	}
}

func TestEvaluateGateFile_EmptyEvidence(t *testing.T) {
	path := writeEvidenceFile(t, `[]`)

	report, err := evaluateGateFile("FEASIBILITY", path, "")
	if err != nil {
		t.Fatalf("evaluateGateFile() error = %v", err)
	}
	if report.Status != "Pending" {
		t.Errorf("Status = %q, want Pending", report.Status)
	}
	if report.ReadinessScore != 0 {
		t.Errorf("ReadinessScore = %v, want 0", report.ReadinessScore)
	}
}

func TestEvaluateGateFile_InvalidStage(t *testing.T) {
	path := writeEvidenceFile(t, `[]`)

	_, err := evaluateGateFile("LAUNCH", path, "")
	if err == nil {
		t.Fatal("expected error for unknown stage")
	}
	if !strings.Contains(err.Error(), "invalid stage") {
		t.Errorf("error = %v, want invalid stage message", err)
	}
}

func TestEvaluateGateFile_MissingFile(t *testing.T) {
	_, err := evaluateGateFile("DESIRABILITY", filepath.Join(t.TempDir(), "nope.json"), "")
	if err == nil {
		t.Fatal("expected error for missing evidence file")
	}
}

func TestEvaluateGateFile_MalformedJSON(t *testing.T) {
	path := writeEvidenceFile(t, `{"not": "an array"}`)

	_, err := evaluateGateFile("DESIRABILITY", path, "")
	if err == nil || !strings.Contains(err.Error(), "parse evidence file") {
		t.Errorf("error = %v, want parse failure", err)
	}
}

func TestEvaluateGateFile_CriteriaOverride(t *testing.T) {
	evidencePath := writeEvidenceFile(t, `[
	  {"type": "interview", "strength": "medium", "quality_score": 0.9}
	]`)

	criteriaPath := filepath.Join(t.TempDir(), "criteria.yaml")
	relaxed := `stages:
  DESIRABILITY:
    min_experiments: 0
    min_evidence_quality: 0.5
    min_total_evidence: 1
    required_evidence_types: [interview]
    strength_mix:
      medium: 1
`
	if err := os.WriteFile(criteriaPath, []byte(relaxed), 0600); err != nil {
		t.Fatal(err)
	}

	report, err := evaluateGateFile("DESIRABILITY", evidencePath, criteriaPath)
	if err != nil {
		t.Fatalf("evaluateGateFile() error = %v", err)
	}
	if report.Status != "Passed" {
		t.Errorf("Status = %q (reasons %v), want Passed under relaxed criteria", report.Status, report.Reasons)
	}
}
