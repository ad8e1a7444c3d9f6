package resolution

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Placeholder values for fields the model failed to produce.
const (
	defaultRootCause      = "Unable to determine root cause"
	defaultRecommendedFix = "No specific fix recommended"
	defaultConfidence     = 0.5
)

// resolutionPayload is the expected JSON response from the model.
// RecommendedFix stays untyped because models answer with either a
// string or a list of steps.
type resolutionPayload struct {
	RootCause      string `json:"root_cause"`
	RecommendedFix any    `json:"recommended_fix"`
	Confidence     any    `json:"confidence"`
}

// parseResolution parses model output into a Resolution, degrading
// through: fenced-block extraction, strict JSON, line-oriented section
// scan, blank-line paragraph split, fixed-length halves.
func parseResolution(content string) Resolution {
	candidate := extractFencedBlock(content)

	var payload resolutionPayload
	if err := json.Unmarshal([]byte(candidate), &payload); err == nil {
		return Resolution{
			RootCause:      payload.RootCause,
			RecommendedFix: payload.RecommendedFix,
			Confidence:     coerceConfidence(payload.Confidence),
		}
	}

	return parseUnstructured(candidate)
}

// extractFencedBlock returns the interior of the first ``` fence
// (optionally tagged json), or the input unchanged when no fence is
// present. Models routinely wrap JSON answers in markdown fences.
func extractFencedBlock(content string) string {
	content = strings.TrimSpace(content)

	if idx := strings.Index(content, "```json"); idx != -1 {
		rest := content[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end != -1 {
			return strings.TrimSpace(rest[:end])
		}
		return strings.TrimSpace(rest)
	}

	if idx := strings.Index(content, "```"); idx != -1 {
		rest := content[idx+3:]
		if end := strings.Index(rest, "```"); end != -1 {
			return strings.TrimSpace(rest[:end])
		}
		return strings.TrimSpace(rest)
	}

	return content
}

// parseUnstructured scans free-form output for root cause / fix /
// confidence sections. A line naming a section starts it, seeded with
// the text after the first colon; following non-empty lines accumulate
// into the active section. When no section was found the response is
// split on blank lines, or failing that into fixed-length halves.
func parseUnstructured(content string) Resolution {
	var rootParts, fixParts []string
	confidence := defaultConfidence
	section := ""

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		lower := strings.ToLower(trimmed)

		switch {
		case strings.Contains(lower, "root cause"):
			section = "root_cause"
			rootParts = nil
			if seed := textAfterColon(trimmed); seed != "" {
				rootParts = append(rootParts, seed)
			}
		case strings.Contains(lower, "fix"), strings.Contains(lower, "solution"):
			section = "recommended_fix"
			fixParts = nil
			if seed := textAfterColon(trimmed); seed != "" {
				fixParts = append(fixParts, seed)
			}
		case strings.Contains(lower, "confidence"):
			// Trailing number after the last colon, if parseable.
			fields := strings.Split(trimmed, ":")
			if f, err := strconv.ParseFloat(strings.TrimSpace(fields[len(fields)-1]), 64); err == nil {
				confidence = f
			}
		case trimmed != "" && section == "root_cause":
			rootParts = append(rootParts, trimmed)
		case trimmed != "" && section == "recommended_fix":
			fixParts = append(fixParts, trimmed)
		}
	}

	rootCause := strings.Join(rootParts, " ")
	fix := strings.Join(fixParts, " ")

	if rootCause == "" && fix == "" {
		paragraphs := splitParagraphs(content)
		if len(paragraphs) >= 2 {
			rootCause = paragraphs[0]
			fix = paragraphs[1]
		} else {
			// Last resort: fixed-length halves of the raw text.
			rootCause = sliceBounded(content, 0, 200)
			fix = sliceBounded(content, 200, 400)
		}
	}

	return Resolution{
		RootCause:      rootCause,
		RecommendedFix: fix,
		Confidence:     confidence,
	}
}

// textAfterColon returns the trimmed text after the first colon, or ""
// when the line has none.
func textAfterColon(line string) string {
	if i := strings.Index(line, ":"); i != -1 {
		return strings.TrimSpace(line[i+1:])
	}
	return ""
}

// splitParagraphs splits on blank lines, dropping empty paragraphs.
func splitParagraphs(content string) []string {
	var paragraphs []string
	for _, p := range strings.Split(content, "\n\n") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			paragraphs = append(paragraphs, trimmed)
		}
	}
	return paragraphs
}

// sliceBounded returns content[from:to] clipped to the string length.
func sliceBounded(content string, from, to int) string {
	if from >= len(content) {
		return ""
	}
	if to > len(content) {
		to = len(content)
	}
	return content[from:to]
}

// coerceConfidence turns the model's confidence value into a float,
// accepting numbers and numeric strings. Anything else defaults.
func coerceConfidence(value any) float64 {
	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return defaultConfidence
		}
		return v
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return defaultConfidence
		}
		return f
	default:
		return defaultConfidence
	}
}

// finalizeResolution applies placeholder defaults and the confidence
// clamp. Confidence is always in [0,1] after this, no matter what the
// model produced.
func finalizeResolution(res Resolution) Resolution {
	if strings.TrimSpace(res.RootCause) == "" {
		res.RootCause = defaultRootCause
	}

	switch v := res.RecommendedFix.(type) {
	case nil:
		res.RecommendedFix = defaultRecommendedFix
	case string:
		if strings.TrimSpace(v) == "" {
			res.RecommendedFix = defaultRecommendedFix
		}
	}

	if res.Confidence < 0 {
		res.Confidence = 0
	}
	if res.Confidence > 1 {
		res.Confidence = 1
	}

	return res
}
