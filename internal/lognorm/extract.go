package lognorm

import (
	"regexp"
	"strings"
)

// DefaultMaxMessageLength caps extracted error messages.
const DefaultMaxMessageLength = 500

// servicePatterns are tried in order against the raw text; the first
// capture group of the first matching pattern is the service name.
var servicePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)service[=:]\s*([a-zA-Z0-9_-]+)`),
	regexp.MustCompile(`(?i)service_name[=:]\s*([a-zA-Z0-9_-]+)`),
	regexp.MustCompile(`\[([a-zA-Z0-9_-]+)\]`),
	regexp.MustCompile(`<([a-zA-Z0-9_-]+)>`),
}

// serviceKeywords are scanned in priority order when no pattern matches.
var serviceKeywords = []string{"api", "auth", "db", "cache", "worker", "scheduler", "web"}

// ExtractServiceName guesses the emitting service from log text.
//
// Explicit markers (service=..., service_name:..., [bracketed], <angled>)
// win over keyword inference. Keyword inference scans whitespace-split
// lowercase words for each keyword in priority order; a hit that is not
// the first word is qualified with its preceding word ("payment-api").
// Falls back to "unknown".
func ExtractServiceName(text string) string {
	for _, pattern := range servicePatterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}

	words := strings.Fields(strings.ToLower(text))
	for _, keyword := range serviceKeywords {
		for i, word := range words {
			if word != keyword {
				continue
			}
			if i > 0 {
				return words[i-1] + "-" + keyword
			}
			return keyword
		}
	}

	return "unknown"
}

// levelRule maps a canonical level to the substrings that signal it.
type levelRule struct {
	level    string
	keywords []string
}

// levelRules is evaluated top to bottom; the first rule with any keyword
// present anywhere in the uppercased text wins, regardless of position.
var levelRules = []levelRule{
	{"CRITICAL", []string{"CRITICAL", "FATAL", "PANIC"}},
	{"ERROR", []string{"ERROR", "ERR"}},
	{"WARN", []string{"WARN", "WARNING"}},
	{"DEBUG", []string{"DEBUG"}},
	{"INFO", []string{"INFO"}},
}

// ExtractErrorLevel classifies log text by severity keyword. Matching is
// case-insensitive substring containment, so "CRITICAL: disk full" and
// "task panicked" both classify as CRITICAL. Defaults to INFO.
func ExtractErrorLevel(text string) string {
	upper := strings.ToUpper(text)
	for _, rule := range levelRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(upper, keyword) {
				return rule.level
			}
		}
	}
	return "INFO"
}

// messagePrefixes are stripped from every line before the first line is
// taken as the message: date prefixes, [bracketed] tags, and leading
// all-caps level words.
var messagePrefixes = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^\d{4}-\d{2}-\d{2}[^\s]*\s+`),
	regexp.MustCompile(`(?m)^\[[^\]]+\]\s+`),
	regexp.MustCompile(`(?m)^[A-Z]+\s+`),
}

// ExtractErrorMessage pulls the human-relevant message out of log text:
// common prefixes are stripped line-anchored, the first surviving line is
// taken, and the result is truncated to maxLength with an ellipsis
// marker. If stripping leaves nothing, the raw input is truncated
// instead. maxLength <= 0 uses DefaultMaxMessageLength.
func ExtractErrorMessage(text string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultMaxMessageLength
	}

	cleaned := text
	for _, pattern := range messagePrefixes {
		cleaned = pattern.ReplaceAllString(cleaned, "")
	}

	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return truncate(strings.TrimSpace(text), maxLength)
	}

	line, _, _ := strings.Cut(cleaned, "\n")
	return truncate(strings.TrimSpace(line), maxLength)
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
