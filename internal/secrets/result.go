package secrets

import (
	"fmt"
	"time"
)

// Result contains the scrubbing result.
type Result struct {
	// Original is the original input content.
	Original string `json:"-"`

	// Scrubbed is the content with secrets redacted.
	Scrubbed string `json:"scrubbed"`

	// Findings contains the detected secrets (without actual values).
	Findings []Finding `json:"findings,omitempty"`

	// Duration is how long scrubbing took.
	Duration time.Duration `json:"duration"`

	// TotalFindings is the count of secrets found.
	TotalFindings int `json:"total_findings"`

	// ByRule maps rule IDs to finding counts.
	ByRule map[string]int `json:"by_rule,omitempty"`
}

// Finding represents a detected secret. The matched value is never
// carried here so findings are safe to log and serialize.
type Finding struct {
	// RuleID identifies which gitleaks rule matched (e.g. "github-pat").
	RuleID string `json:"rule_id"`

	// Description explains what was found.
	Description string `json:"description"`

	// Line is the line number (1-indexed).
	Line int `json:"line,omitempty"`
}

// HasFindings returns true if any secrets were found.
func (r *Result) HasFindings() bool {
	return r.TotalFindings > 0
}

// RuleIDs returns the unique rule IDs that matched.
func (r *Result) RuleIDs() []string {
	ids := make([]string, 0, len(r.ByRule))
	for id := range r.ByRule {
		ids = append(ids, id)
	}
	return ids
}

// Summary returns a brief summary of findings.
func (r *Result) Summary() string {
	if !r.HasFindings() {
		return "no secrets detected"
	}
	return fmt.Sprintf("%d secrets redacted", r.TotalFindings)
}
