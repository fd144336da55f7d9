// Copyright (C) 2025 Candor Labs (dev@candorlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package analysis runs the strategic analysis pipeline and shapes its output
// into the structured payload clients consume. The pipeline itself is
// pluggable behind the Runner interface; when no runner is available the
// engine degrades to a deterministic fallback text and tags the result
// accordingly.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// Inputs is the flat parameter block an analysis run receives.
type Inputs struct {
	StrategicQuestion string `json:"strategic_question"`
	ProjectID         string `json:"project_id,omitempty"`
	ProjectContext    string `json:"project_context,omitempty"`
	TargetSources     string `json:"target_sources,omitempty"`
	ReportFormat      string `json:"report_format,omitempty"`
	ProjectDeadline   string `json:"project_deadline,omitempty"`
	PriorityLevel     string `json:"priority_level,omitempty"`
	SessionID         string `json:"session_id,omitempty"`
}

// Runner executes one analysis over the inputs. The result may be a plain
// string or any value exposing Raw() string; NormalizeResult handles both.
type Runner interface {
	Run(ctx context.Context, inputs Inputs) (any, error)
}

// RawResult is the optional shape a Runner result may take instead of a
// plain string.
type RawResult interface {
	Raw() string
}

// NormalizeResult converts a runner result into a plain string. Strings pass
// through, RawResult values yield their Raw() text, and anything else is
// JSON-encoded as a last resort.
func NormalizeResult(result any) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	}
	if r, ok := result.(RawResult); ok {
		return r.Raw()
	}
	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", result)
	}
	return string(encoded)
}

// =============================================================================
// OpenAI-backed runner
// =============================================================================

// crewRole is one step of the sequential analysis pipeline.
type crewRole struct {
	name   string
	system string
	task   string
}

// crewRoles run in order; each receives the accumulated output of the
// previous steps as context.
var crewRoles = []crewRole{
	{
		name:   "research",
		system: "You are a startup research specialist focused on evidence discovery and collection.",
		task:   "Collect the most relevant market and customer evidence bearing on the strategic question. List concrete findings as bullet points.",
	},
	{
		name:   "analysis",
		system: "You are a business analyst focused on pattern recognition and insight extraction.",
		task:   "Identify the patterns and insights in the collected evidence. List each insight as a bullet point with its supporting evidence.",
	},
	{
		name:   "validation",
		system: "You are an evidence quality reviewer verifying credibility and coverage.",
		task:   "Assess the strength and credibility of each insight. Flag weak or unsupported claims.",
	},
	{
		name:   "synthesis",
		system: "You are a strategy synthesizer combining validated insights into a coherent narrative.",
		task:   "Combine the validated insights into a short strategic narrative with clear recommendations.",
	},
	{
		name:   "reporting",
		system: "You are a professional report writer for startup advisory deliverables.",
		task:   "Write the final strategic analysis: a 2-3 sentence summary followed by 4-6 recommendation bullet points, each starting with '-'.",
	},
}

// DeskResearcher fetches external material seeding the research step.
// Implemented by the web search capability; nil disables desk research.
type DeskResearcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// OpenAIRunner walks the five-role pipeline as sequential chat completions.
type OpenAIRunner struct {
	client *openai.Client
	model  string
	desk   DeskResearcher
}

// NewOpenAIRunner builds a runner from OPENAI_API_KEY and OPENAI_MODEL. It
// returns an error when no API key is available, so callers can fall back.
func NewOpenAIRunner() (*OpenAIRunner, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
		slog.Warn("OPENAI_MODEL not set, defaulting to gpt-4o-mini")
	}
	return &OpenAIRunner{client: openai.NewClient(apiKey), model: model}, nil
}

// WithDeskResearch returns the runner with a desk research source attached.
// The research step then sees live search results alongside the inputs.
func (r *OpenAIRunner) WithDeskResearch(desk DeskResearcher) *OpenAIRunner {
	r.desk = desk
	return r
}

// Run executes the role sequence. Each step sees the strategic question, the
// project context, and everything produced so far. The reporting step's
// output is the result.
func (r *OpenAIRunner) Run(ctx context.Context, inputs Inputs) (any, error) {
	var transcript strings.Builder
	var final string

	if r.desk != nil {
		results, err := r.desk.Search(ctx, inputs.StrategicQuestion)
		if err != nil {
			slog.Warn("Desk research failed, continuing without it", "error", err)
		} else if results != "" {
			transcript.WriteString("## desk_research\n" + results + "\n\n")
		}
	}

	for _, role := range crewRoles {
		prompt := buildRolePrompt(role, inputs, transcript.String())
		resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: r.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: role.system},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("%s step failed: %w", role.name, err)
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("%s step returned no choices", role.name)
		}
		content := resp.Choices[0].Message.Content
		transcript.WriteString("## " + role.name + "\n" + content + "\n\n")
		final = content
		slog.Debug("Analysis step complete", "role", role.name, "model", r.model)
	}
	return final, nil
}

func buildRolePrompt(role crewRole, inputs Inputs, transcript string) string {
	var b strings.Builder
	b.WriteString("Strategic question: " + inputs.StrategicQuestion + "\n")
	if inputs.ProjectContext != "" {
		b.WriteString("Project context: " + inputs.ProjectContext + "\n")
	}
	if inputs.PriorityLevel != "" {
		b.WriteString("Priority: " + inputs.PriorityLevel + "\n")
	}
	if transcript != "" {
		b.WriteString("\nWork so far:\n" + transcript + "\n")
	}
	b.WriteString("\nTask: " + role.task)
	return b.String()
}

// FallbackText builds the canned recommendation block used when no runner is
// available or a run fails.
func FallbackText(inputs Inputs) string {
	question := inputs.StrategicQuestion
	if question == "" {
		question = "your strategic question"
	}
	parts := []string{
		"Strategic analysis focused on: " + question + ".",
		"Key Recommendations:",
		"- Validate the problem with direct customer conversations within the next two weeks.",
		"- Prototype a minimal solution and measure engagement to confirm demand.",
		"- Map the competitive landscape and identify differentiation angles based on evidence.",
		"- Define success metrics tied to acquisition, activation, and validation milestones.",
	}
	if inputs.ProjectContext != "" {
		parts = append(parts, "Context considered: "+firstN(inputs.ProjectContext, 160)+"...")
	}
	return strings.Join(parts, "\n")
}
