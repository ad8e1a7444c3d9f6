package lognorm

import (
	"regexp"
	"strings"
)

// substitution replaces every match of pattern with a fixed placeholder.
// Substitutions run in declaration order on lowercased input.
type substitution struct {
	pattern     *regexp.Regexp
	placeholder string
}

// substitutions is the ordered placeholder table. Long hex runs must be
// replaced before timestamps so a 16+ digit number is treated as an
// opaque id, not a time.
var substitutions = []substitution{
	{regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`), "<uuid>"},
	{regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`), "<ip>"},
	{regexp.MustCompile(`\b[0-9a-f]{16,}\b`), "<hex_id>"},
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}[t ]\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:z|[+-]\d{2}:\d{2})?`), "<timestamp>"},
	{regexp.MustCompile(`\b\d{10}\.\d+\b`), "<timestamp>"},
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// Normalize lowercases text, replaces volatile tokens with placeholders,
// collapses whitespace runs to single spaces and trims. Empty input
// yields empty output. Idempotent: applying Normalize to its own output
// is a no-op.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	normalized := strings.ToLower(text)
	for _, sub := range substitutions {
		normalized = sub.pattern.ReplaceAllString(normalized, sub.placeholder)
	}

	normalized = whitespaceRun.ReplaceAllString(normalized, " ")
	return strings.TrimSpace(normalized)
}
