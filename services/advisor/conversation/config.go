// Copyright (C) 2025 Candor Labs (dev@candorlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package conversation implements the onboarding interview state machine.
//
// The engine walks a founder through seven sequential topics, scoring each
// turn for clarity, completeness, and detail, and extracting structured brief
// fields from free text. It is a pure state machine: it receives a snapshot
// of the session (current stage, history, accumulated data) and returns a
// delta. Persistence belongs to the caller.
package conversation

import "regexp"

// TotalStages is the number of interview topics a session walks through.
const TotalStages = 7

// StageConfig describes one interview topic.
type StageConfig struct {
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	KeyQuestions      []string `json:"key_questions"`
	DataToCollect     []string `json:"data_to_collect"`
	ProgressThreshold int      `json:"progress_threshold"`
}

// stageTable is indexed by stage number (1..TotalStages).
var stageTable = map[int]StageConfig{
	1: {
		Name:        "Welcome & Introduction",
		Description: "Getting to know you and your business idea",
		KeyQuestions: []string{
			"What business idea are you most excited about?",
			"What inspired this idea?",
			"What stage is your business currently in?",
		},
		DataToCollect:     []string{"business_concept", "inspiration", "current_stage"},
		ProgressThreshold: 80,
	},
	2: {
		Name:        "Customer Discovery",
		Description: "Understanding your target customers",
		KeyQuestions: []string{
			"Who do you think would be most interested in this solution?",
			"What specific group of people have this problem most acutely?",
			"How do these customers currently solve this problem?",
		},
		DataToCollect:     []string{"target_customers", "customer_segments", "current_solutions"},
		ProgressThreshold: 75,
	},
	3: {
		Name:        "Problem Definition",
		Description: "Defining the core problem you're solving",
		KeyQuestions: []string{
			"What specific problem does your solution address?",
			"How painful is this problem for your customers?",
			"How often do they encounter this problem?",
		},
		DataToCollect:     []string{"problem_description", "pain_level", "frequency"},
		ProgressThreshold: 80,
	},
	4: {
		Name:        "Solution Validation",
		Description: "Exploring your proposed solution",
		KeyQuestions: []string{
			"How does your solution solve this problem?",
			"What makes your approach unique?",
			"What's your key differentiator?",
		},
		DataToCollect:     []string{"solution_description", "unique_value_prop", "differentiation"},
		ProgressThreshold: 75,
	},
	5: {
		Name:        "Competitive Analysis",
		Description: "Understanding the competitive landscape",
		KeyQuestions: []string{
			"Who else is solving this problem?",
			"What alternatives do customers have?",
			"What would make customers switch to your solution?",
		},
		DataToCollect:     []string{"competitors", "alternatives", "switching_barriers"},
		ProgressThreshold: 70,
	},
	6: {
		Name:        "Resources & Constraints",
		Description: "Assessing your available resources",
		KeyQuestions: []string{
			"What's your budget for getting started?",
			"What skills and resources do you have available?",
			"What are your main constraints?",
		},
		DataToCollect:     []string{"budget_range", "available_resources", "constraints"},
		ProgressThreshold: 75,
	},
	7: {
		Name:        "Goals & Next Steps",
		Description: "Setting strategic goals and priorities",
		KeyQuestions: []string{
			"What do you want to achieve in the next 3 months?",
			"How will you measure success?",
			"What's your biggest priority right now?",
		},
		DataToCollect:     []string{"short_term_goals", "success_metrics", "priorities"},
		ProgressThreshold: 85,
	},
}

// StageByNumber returns the configuration for a stage, and false when the
// number is outside 1..TotalStages.
func StageByNumber(n int) (StageConfig, bool) {
	cfg, ok := stageTable[n]
	return cfg, ok
}

// Persona is the advisor identity presented to the user, selected by plan.
type Persona struct {
	Name      string `json:"name"`
	Role      string `json:"role"`
	Tone      string `json:"tone"`
	Expertise string `json:"expertise"`
}

var personaByPlan = map[string]Persona{
	"trial": {
		Name:      "Alex",
		Role:      "Strategic Consultant",
		Tone:      "encouraging and supportive",
		Expertise: "early-stage validation",
	},
	"sprint": {
		Name:      "Jordan",
		Role:      "Business Strategist",
		Tone:      "focused and analytical",
		Expertise: "rapid validation and testing",
	},
	"founder": {
		Name:      "Morgan",
		Role:      "Senior Strategy Advisor",
		Tone:      "experienced and insightful",
		Expertise: "scaling and growth strategies",
	},
	"enterprise": {
		Name:      "Taylor",
		Role:      "Executive Consultant",
		Tone:      "sophisticated and comprehensive",
		Expertise: "enterprise-level strategic planning",
	},
}

// PersonaForPlan resolves the advisor persona for a plan type, falling back
// to the trial persona for unknown plans.
func PersonaForPlan(plan string) Persona {
	if p, ok := personaByPlan[plan]; ok {
		return p
	}
	return personaByPlan["trial"]
}

// Heuristic text signals. Specificity markers bump clarity; budget figures and
// pain vocabulary feed brief extraction in their respective stages.
var (
	specificityPattern = regexp.MustCompile(`(?i)\b(specifically|exactly|particularly|mainly|primarily)\b`)
	budgetPattern      = regexp.MustCompile(`\$[\d,]+`)
	painWords          = []string{"painful", "frustrating", "difficult", "expensive", "time-consuming", "annoying"}
)

// Label scores used for quality signals.
var (
	clarityScores      = map[string]float64{"high": 0.92, "medium": 0.68, "low": 0.38}
	completenessScores = map[string]float64{"complete": 1.0, "partial": 0.66, "insufficient": 0.35}
)

func clamp(v, lower, upper float64) float64 {
	if v < lower {
		return lower
	}
	if v > upper {
		return upper
	}
	return v
}
