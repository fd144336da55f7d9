// Copyright (C) 2025 Candor Labs (dev@candorlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/candorlabs-ai/northstar/services/advisor/config"
	"github.com/candorlabs-ai/northstar/services/advisor/gate"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	gateStage        string // Stage to evaluate
	gateCriteriaPath string // Optional criteria override YAML
)

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// gateReport is the JSON output of `northstar gate evaluate`.
type gateReport struct {
	Stage          string   `json:"stage"`
	Status         string   `json:"status"`
	Reasons        []string `json:"reasons"`
	ReadinessScore float64  `json:"readiness_score"`
	EvidenceCount  int      `json:"evidence_count"`
}

// runGateEvaluate evaluates a stage gate against a local evidence file
// and prints the result as JSON. This mirrors the /v1/gates/evaluate
// endpoint but needs no running service or Weaviate instance.
func runGateEvaluate(cmd *cobra.Command, args []string) error {
	report, err := evaluateGateFile(gateStage, args[0], gateCriteriaPath)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

// evaluateGateFile loads evidence from a JSON file (an array of evidence
// records) and evaluates the given stage against it, applying criteria
// overrides from criteriaPath when provided.
func evaluateGateFile(stageName, evidencePath, criteriaPath string) (gateReport, error) {
	stage, err := gate.ParseStage(stageName)
	if err != nil {
		return gateReport{}, err
	}

	data, err := os.ReadFile(evidencePath)
	if err != nil {
		return gateReport{}, fmt.Errorf("read evidence file: %w", err)
	}

	var evidence []gate.Evidence
	if err := json.Unmarshal(data, &evidence); err != nil {
		return gateReport{}, fmt.Errorf("parse evidence file: %w", err)
	}

	var criteria *gate.Criteria
	if criteriaPath != "" {
		overrides, err := config.LoadCriteria(criteriaPath)
		if err != nil {
			return gateReport{}, fmt.Errorf("load criteria overrides: %w", err)
		}
		if c, ok := overrides[stage]; ok {
			criteria = &c
		}
	}

	status, reasons := gate.Evaluate(stage, evidence, criteria)
	return gateReport{
		Stage:          string(stage),
		Status:         string(status),
		Reasons:        reasons,
		ReadinessScore: gate.Readiness(stage, evidence),
		EvidenceCount:  len(evidence),
	}, nil
}
