// Copyright (C) 2025 Candor Labs (dev@candorlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analysis

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Mode tags how an analysis result was produced.
const (
	ModeCrew     = "crew"
	ModeFallback = "fallback"
)

// Metadata describes the provenance of one analysis run.
type Metadata struct {
	Mode  string `json:"mode"`
	Error string `json:"error,omitempty"`
}

// Engine orchestrates one analysis run: execute the runner, normalize its
// output, and shape the structured payload. A nil runner is legal and always
// produces fallback results.
type Engine struct {
	runner Runner
	now    func() time.Time
}

// NewEngine builds an analysis engine. runner may be nil.
func NewEngine(runner Runner) *Engine {
	return &Engine{runner: runner, now: time.Now}
}

// NewEngineWithClock is NewEngine with an injected clock for deterministic
// payload timestamps.
func NewEngineWithClock(runner Runner, now func() time.Time) *Engine {
	return &Engine{runner: runner, now: now}
}

// NewAnalysisID mints a fresh analysis identifier.
func NewAnalysisID() string {
	return "analysis_" + uuid.NewString()
}

// Run executes one analysis and returns the identifier, the structured
// payload, and provenance metadata. Runner failures are not fatal: the run
// degrades to the fallback text and the error is recorded in the metadata.
func (e *Engine) Run(ctx context.Context, inputs Inputs, userID string) (string, StructuredPayload, Metadata) {
	analysisID := NewAnalysisID()
	payload, metadata := e.RunAs(ctx, inputs, userID, analysisID)
	return analysisID, payload, metadata
}

// RunAs is Run with a caller-assigned identifier, for flows that must hand
// the ID to a client before the run completes.
func (e *Engine) RunAs(ctx context.Context, inputs Inputs, userID, analysisID string) (StructuredPayload, Metadata) {
	metadata := Metadata{Mode: ModeFallback}
	var rawText string

	if e.runner != nil {
		result, err := e.runner.Run(ctx, inputs)
		if err != nil {
			slog.Warn("Analysis run failed, using fallback", "analysis_id", analysisID, "error", err)
			metadata.Error = err.Error()
			rawText = FallbackText(inputs)
		} else {
			rawText = NormalizeResult(result)
			metadata.Mode = ModeCrew
		}
	} else {
		rawText = FallbackText(inputs)
	}

	payload := BuildStructuredPayload(rawText, inputs, userID, analysisID, e.now())
	return payload, metadata
}
