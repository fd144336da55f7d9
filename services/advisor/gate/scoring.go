// Copyright (C) 2025 Candor Labs (dev@candorlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gate

import (
	"fmt"
	"strings"
)

// Quality returns the arithmetic mean of QualityScore over the collection.
// An empty collection scores 0.0 - there is nothing to average.
func Quality(evidence []Evidence) float64 {
	if len(evidence) == 0 {
		return 0.0
	}
	var sum float64
	for _, e := range evidence {
		sum += e.QualityScore
	}
	return sum / float64(len(evidence))
}

// CountExperiments returns the number of records tagged "experiment".
func CountExperiments(evidence []Evidence) int {
	n := 0
	for _, e := range evidence {
		if e.Type == EvidenceTypeExperiment {
			n++
		}
	}
	return n
}

// TypesPresent returns the set of distinct type tags in the collection.
func TypesPresent(evidence []Evidence) map[string]struct{} {
	types := make(map[string]struct{}, len(evidence))
	for _, e := range evidence {
		types[e.Type] = struct{}{}
	}
	return types
}

// StrengthCounts tallies the collection by normalized strength label.
// All three labels are always present in the result, zero-valued when absent.
// Records with an unrecognized strength are not counted.
func StrengthCounts(evidence []Evidence) map[Strength]int {
	counts := map[Strength]int{
		StrengthWeak:   0,
		StrengthMedium: 0,
		StrengthStrong: 0,
	}
	for _, e := range evidence {
		if s, ok := NormalizeStrength(string(e.Strength)); ok {
			counts[s]++
		}
	}
	return counts
}

// Evaluate classifies an evidence collection against a stage's criteria.
//
// When criteria is nil the stage's DefaultCriteria entry applies. Every check
// runs independently and every failing check contributes one human-readable
// reason - reasons are never short-circuited, so a caller sees the full gap
// at once. The verdict is:
//
//   - Pending when the collection is empty (nothing to judge yet),
//   - Passed when every check holds,
//   - Failed otherwise, with one reason per failing check.
//
// The mean-quality threshold is inclusive: a collection sitting exactly on
// the bar passes.
func Evaluate(stage Stage, evidence []Evidence, criteria *Criteria) (Status, []string) {
	if len(evidence) == 0 {
		return StatusPending, []string{}
	}

	c := CriteriaFor(stage, criteria)
	reasons := []string{}

	if len(evidence) < c.MinTotalEvidence {
		reasons = append(reasons, fmt.Sprintf(
			"Insufficient total evidence: needed %d, got %d", c.MinTotalEvidence, len(evidence)))
	}

	if n := CountExperiments(evidence); n < c.MinExperiments {
		reasons = append(reasons, fmt.Sprintf(
			"Insufficient experiments: needed %d, got %d", c.MinExperiments, n))
	}

	if q := Quality(evidence); q < c.MinEvidenceQuality {
		reasons = append(reasons, fmt.Sprintf(
			"Evidence quality too low: needed %.2f, got %.2f", c.MinEvidenceQuality, q))
	}

	if missing := missingTypes(c.RequiredEvidenceTypes, TypesPresent(evidence)); len(missing) > 0 {
		reasons = append(reasons, fmt.Sprintf(
			"Missing required evidence types: %s", strings.Join(missing, ", ")))
	}

	counts := StrengthCounts(evidence)
	for _, label := range []Strength{StrengthWeak, StrengthMedium, StrengthStrong} {
		min, ok := c.StrengthMix[label]
		if !ok || counts[label] >= min {
			continue
		}
		reasons = append(reasons, fmt.Sprintf(
			"Insufficient %s evidence: needed %d, got %d", label, min, counts[label]))
	}

	if len(reasons) > 0 {
		return StatusFailed, reasons
	}
	return StatusPassed, reasons
}

// Readiness is a continuous [0,1] proxy for how close a project is to passing
// its gate, usable for progress bars while the boolean verdict stays strict.
//
// It is the equal-weight mean of four sub-scores:
//
//  1. fraction of the total-evidence threshold met, capped at 1.0
//  2. fraction of the experiment threshold met, capped at 1.0
//  3. the mean quality score itself
//  4. fraction of required evidence types covered
//
// Equal weighting keeps the metric monotone in evidence count at constant
// quality and puts a fully satisfying collection at >= 0.9. Empty evidence
// scores 0.0.
func Readiness(stage Stage, evidence []Evidence) float64 {
	if len(evidence) == 0 {
		return 0.0
	}

	c := DefaultCriteria[stage]

	totalScore := capRatio(len(evidence), c.MinTotalEvidence)
	experimentScore := capRatio(CountExperiments(evidence), c.MinExperiments)
	qualityScore := Quality(evidence)

	typeScore := 1.0
	if len(c.RequiredEvidenceTypes) > 0 {
		present := TypesPresent(evidence)
		covered := len(c.RequiredEvidenceTypes) - len(missingTypes(c.RequiredEvidenceTypes, present))
		typeScore = float64(covered) / float64(len(c.RequiredEvidenceTypes))
	}

	return (totalScore + experimentScore + qualityScore + typeScore) / 4.0
}

// CanProgress reports whether a project may advance past a stage: the gate
// must have Passed and the stage must have a successor. SCALE never
// progresses, whatever its status.
func CanProgress(stage Stage, status Status) bool {
	if status != StatusPassed {
		return false
	}
	_, ok := NextStage(stage)
	return ok
}

func capRatio(have, want int) float64 {
	if want <= 0 {
		return 1.0
	}
	r := float64(have) / float64(want)
	if r > 1.0 {
		return 1.0
	}
	return r
}
