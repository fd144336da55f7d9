// Copyright (C) 2025 Candor Labs (dev@candorlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package conversation

import "strings"

// stageTurn carries the per-message signals each stage handler needs.
type stageTurn struct {
	message       string // trimmed user message
	messageLower  string
	stageComplete bool
	brief         map[string]any // handlers write extracted fields here
}

// stageHandler produces the agent response and follow-up question for one
// stage. Handlers may populate turn.brief with extracted fields.
type stageHandler func(turn *stageTurn) (response, followUp string)

var stageHandlers = map[int]stageHandler{
	1: handleWelcome,
	2: handleCustomerDiscovery,
	3: handleProblemDefinition,
	4: handleSolutionValidation,
	5: handleCompetitiveAnalysis,
	6: handleResources,
	7: handleGoals,
}

// =============================================================================
// Stage 1: Welcome & Introduction
// =============================================================================

func handleWelcome(turn *stageTurn) (string, string) {
	var response string
	switch {
	case strings.Contains(turn.messageLower, "app") || strings.Contains(turn.messageLower, "software"):
		response = "A software solution - that's exciting! The digital space offers incredible opportunities for scalability and impact. "
		turn.brief["business_stage"] = "idea"
		turn.brief["solution_type"] = "software"
	case strings.Contains(turn.messageLower, "service") || strings.Contains(turn.messageLower, "consulting"):
		response = "A service-based business can be a great way to start with lower upfront costs and direct customer feedback. "
		turn.brief["business_stage"] = "idea"
		turn.brief["solution_type"] = "service"
	default:
		response = "Thank you for sharing that with me! I can hear the passion in your description. "
	}

	var followUp string
	if turn.stageComplete {
		response += "Now that I understand your core concept, let's dive deeper into who this would serve. "
		followUp = "Who do you envision as your ideal customer? Think about the specific type of person or business that would " +
			"get the most value from what you're creating."
	} else {
		followUp = "Can you tell me more about what inspired this idea? What problem or opportunity did you notice that led you here?"
	}
	return response, followUp
}

// =============================================================================
// Stage 2: Customer Discovery
// =============================================================================

func handleCustomerDiscovery(turn *stageTurn) (string, string) {
	var response string
	switch {
	case strings.Contains(turn.messageLower, "business") || strings.Contains(turn.messageLower, "company"):
		response = "B2B customers can be fantastic - they often have bigger budgets and longer-term relationships. "
		turn.brief["customer_type"] = "b2b"
	case strings.Contains(turn.messageLower, "people") || strings.Contains(turn.messageLower, "individual"):
		response = "Consumer markets offer great opportunities for scale and direct impact. "
		turn.brief["customer_type"] = "b2c"
	}
	response += "Understanding your customers deeply is crucial for success. "

	var followUp string
	if turn.stageComplete {
		followUp = "Perfect! Now let's get specific about the problem you're solving. What exact pain point or challenge do these customers face " +
			"that your solution addresses?"
	} else {
		followUp = "Can you be more specific about this customer segment? What characteristics do they share? What's their situation that makes them need your solution?"
	}
	return response, followUp
}

// =============================================================================
// Stage 3: Problem Definition
// =============================================================================

func handleProblemDefinition(turn *stageTurn) (string, string) {
	hasPainLanguage := false
	for _, word := range painWords {
		if strings.Contains(turn.messageLower, word) {
			hasPainLanguage = true
			break
		}
	}

	var response string
	if hasPainLanguage {
		response = "I can tell this is a real pain point - that emotional language tells me customers would be motivated to find a solution. "
		turn.brief["problem_pain_level"] = 8
	} else {
		response = "Thanks for explaining that. Understanding the problem clearly is essential for building the right solution. "
		turn.brief["problem_pain_level"] = 6
	}
	turn.brief["problem_description"] = truncate(turn.message, 500)

	var followUp string
	if turn.stageComplete {
		followUp = "Excellent! Now I'd love to understand your solution. How exactly do you plan to solve this problem? What's your approach?"
	} else {
		followUp = "Help me understand the impact of this problem. How often do your customers encounter it, and what does it cost them when they do?"
	}
	return response, followUp
}

// =============================================================================
// Stage 4: Solution Validation
// =============================================================================

func handleSolutionValidation(turn *stageTurn) (string, string) {
	turn.brief["solution_description"] = truncate(turn.message, 500)

	var response string
	if strings.Contains(turn.messageLower, "unique") || strings.Contains(turn.messageLower, "different") {
		response = "I love that you're thinking about differentiation! That's what will make customers choose you over alternatives. "
	} else {
		response = "That's a solid approach to solving the problem. "
	}

	var followUp string
	if turn.stageComplete {
		followUp = "Great solution! Now let's look at the competitive landscape. Who else is trying to solve this problem, and how are customers handling it today?"
	} else {
		followUp = "What makes your solution unique? Why would customers choose your approach over other ways of solving this problem?"
	}
	return response, followUp
}

// =============================================================================
// Stage 5: Competitive Analysis
// =============================================================================

func handleCompetitiveAnalysis(turn *stageTurn) (string, string) {
	response := "Understanding the competition helps you position yourself effectively and identify opportunities. "
	if strings.Contains(turn.messageLower, "no competition") || strings.Contains(turn.messageLower, "no one else") {
		response += "While it might seem like there's no direct competition, customers are always solving this problem somehow - " +
			"even if it's manual processes or workarounds. "
	}

	var followUp string
	if turn.stageComplete {
		followUp = "Perfect! Now let's talk resources. What's your budget range for getting this business started, and what skills or assets do you already have?"
	} else {
		followUp = "What would convince a customer to switch from their current solution to yours? What's the compelling reason to change?"
	}
	return response, followUp
}

// =============================================================================
// Stage 6: Resources & Constraints
// =============================================================================

func handleResources(turn *stageTurn) (string, string) {
	var response string
	budget := budgetPattern.FindString(turn.message)
	if budget != "" || strings.Contains(turn.messageLower, "thousand") || strings.Contains(turn.messageLower, "budget") {
		response = "Having a clear budget helps with planning and prioritization. "
		if budget != "" {
			turn.brief["budget_range"] = budget
		} else {
			turn.brief["budget_range"] = "specified"
		}
	}
	response += "Understanding your resources helps us create a realistic roadmap. "

	var followUp string
	if turn.stageComplete {
		followUp = "Excellent! For our final topic, let's set some strategic goals. What do you want to achieve with this business in the next 3 months?"
	} else {
		followUp = "What skills, connections, or assets do you already have that could help with this business? " +
			"And what are your biggest constraints or limitations?"
	}
	return response, followUp
}

// =============================================================================
// Stage 7: Goals & Next Steps
// =============================================================================

func handleGoals(turn *stageTurn) (string, string) {
	response := "Setting clear, measurable goals is crucial for making progress and staying motivated. "
	turn.brief["three_month_goals"] = []string{truncate(turn.message, 200)}

	var followUp string
	if turn.stageComplete {
		response += "Fantastic! We've covered all the key areas. I have everything I need to create your comprehensive strategic analysis. "
		followUp = "Before I generate your personalized strategic report, is there anything else about your business idea that you think is important for me to know?"
	} else {
		followUp = "How will you measure success? What specific metrics or milestones will tell you that you're making progress?"
	}
	return response, followUp
}

func truncate(s string, n int) string {
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
