package resolution

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/resolvd/internal/retriever"
)

// systemPrompt is the fixed system role for resolution completions.
const systemPrompt = "You are an expert DevOps engineer specializing in log analysis and error resolution."

// maxPromptMatches caps how many similar matches appear in the prompt.
const maxPromptMatches = 5

// truncationMarker is appended when the assembled prompt exceeds the
// configured maximum length.
const truncationMarker = "...[truncated]"

// BuildPrompt assembles the user prompt: a fixed analyst preamble, the
// current error, up to five similar historical errors, and optional
// free-text context, closing with an instruction to answer in JSON.
// Prompts longer than the configured maximum are truncated; no smarter
// summarization is attempted.
func (e *Engine) BuildPrompt(errorMessage string, matches []retriever.SimilarMatch, extraContext string) string {
	parts := []string{
		"You are an expert DevOps engineer analyzing application logs and errors.",
		"Your task is to provide root cause analysis and recommended fixes based on the current error and similar historical errors.",
		"",
		"CURRENT ERROR:",
		errorMessage,
		"",
	}

	if len(matches) > 0 {
		parts = append(parts, "SIMILAR HISTORICAL ERRORS:")
		for i, match := range matches {
			if i == maxPromptMatches {
				break
			}
			service := match.ServiceName
			if service == "" {
				service = "unknown"
			}
			level := match.ErrorLevel
			if level == "" {
				level = "UNKNOWN"
			}
			message := match.ErrorMessage
			if message == "" {
				message = match.Document
			}
			parts = append(parts, fmt.Sprintf("%d. [Similarity: %.2f] [%s] [%s]: %s",
				i+1, match.Similarity, service, level, message))
		}
		parts = append(parts, "")
	}

	if extraContext != "" {
		parts = append(parts, "ADDITIONAL CONTEXT: "+extraContext, "")
	}

	parts = append(parts,
		"Please provide:",
		"1. ROOT CAUSE: A brief explanation of the likely root cause",
		"2. RECOMMENDED FIX: Specific actionable steps to resolve the issue",
		"3. CONFIDENCE: A confidence score from 0.0 to 1.0",
		"",
		"Format your response as JSON with keys: 'root_cause', 'recommended_fix', 'confidence'",
	)

	prompt := strings.Join(parts, "\n")
	if len(prompt) > e.maxContextLength {
		prompt = prompt[:e.maxContextLength] + truncationMarker
	}
	return prompt
}
