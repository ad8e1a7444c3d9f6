package secrets

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	gitleaksConfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksRegexp "github.com/zricethezav/gitleaks/v8/regexp"
	"github.com/zricethezav/gitleaks/v8/report"
)

// Config configures the scrubber.
type Config struct {
	// Enabled controls whether scrubbing is active (default: true).
	Enabled bool `koanf:"enabled"`

	// AllowlistPaths are TOML allowlist files merged into the detector
	// config. Missing files are skipped.
	AllowlistPaths []string `koanf:"allowlist_paths"`
}

// DefaultConfig returns a configuration with scrubbing enabled and no
// allowlists.
func DefaultConfig() *Config {
	return &Config{Enabled: true}
}

// Scrubber detects and redacts secrets from content.
type Scrubber interface {
	// Scrub redacts secrets from the content.
	Scrub(content string) *Result

	// ScrubBytes redacts secrets from byte content.
	ScrubBytes(content []byte) *Result

	// IsEnabled returns whether scrubbing is enabled.
	IsEnabled() bool
}

// scrubber runs the gitleaks default ruleset over content. The detector
// is built once at construction; fragment scans do not mutate it, so a
// single scrubber serves concurrent ingests.
type scrubber struct {
	detector *detect.Detector
}

// New creates a Scrubber with the given configuration. If config is nil,
// DefaultConfig() is used. A disabled config yields a NoopScrubber.
func New(cfg *Config) (Scrubber, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if !cfg.Enabled {
		return &NoopScrubber{}, nil
	}

	allowlist, err := LoadAllowlists(cfg.AllowlistPaths...)
	if err != nil {
		return nil, fmt.Errorf("loading allowlists: %w", err)
	}

	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("creating detector: %w", err)
	}
	applyAllowlist(&detector.Config, allowlist)

	return &scrubber{detector: detector}, nil
}

// MustNew creates a new Scrubber, panicking on error.
func MustNew(cfg *Config) Scrubber {
	s, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return s
}

// Scrub redacts secrets from the content.
func (s *scrubber) Scrub(content string) *Result {
	start := time.Now()
	result := &Result{
		Original: content,
		Scrubbed: content,
		Findings: make([]Finding, 0),
		ByRule:   make(map[string]int),
	}

	detected := s.detector.DetectString(content)
	for _, f := range detected {
		result.Findings = append(result.Findings, Finding{
			RuleID:      f.RuleID,
			Description: f.Description,
			Line:        f.StartLine,
		})
		result.ByRule[f.RuleID]++
	}
	result.TotalFindings = len(detected)

	if len(detected) > 0 {
		result.Scrubbed = replaceFindings(content, detected)
	}

	result.Duration = time.Since(start)
	return result
}

// ScrubBytes redacts secrets from byte content.
func (s *scrubber) ScrubBytes(content []byte) *Result {
	return s.Scrub(string(content))
}

// IsEnabled returns true.
func (s *scrubber) IsEnabled() bool {
	return true
}

// replaceFindings replaces each detected secret value with a
// [REDACTED:rule-id] marker. Replacement is by matched value rather than
// line/column arithmetic so multi-line findings (private key blocks)
// redact fully; when two rules flag the same value the first marker wins
// and the second replace is a no-op.
func replaceFindings(content string, findings []report.Finding) string {
	for _, f := range findings {
		if f.Secret == "" {
			continue
		}
		marker := "[REDACTED:" + f.RuleID + "]"
		content = strings.Replace(content, f.Secret, marker, 1)
	}
	return content
}

// applyAllowlist merges allowlist patterns into the gitleaks config.
// Patterns are pre-validated in loadTOML; a compile failure here is a
// programming error.
func applyAllowlist(cfg *gitleaksConfig.Config, allowlist *Allowlist) {
	if allowlist == nil || len(allowlist.Regexes) == 0 {
		return
	}

	global := &gitleaksConfig.Allowlist{
		Description: "resolvd operator allowlist",
	}

	for _, pattern := range allowlist.Regexes {
		re, err := regexp.Compile(pattern)
		if err != nil {
			panic("BUG: pre-validated regex pattern failed to compile: " + pattern + ": " + err.Error())
		}
		global.Regexes = append(global.Regexes, (*gitleaksRegexp.Regexp)(re))
	}
	global.StopWords = append(global.StopWords, allowlist.Regexes...)

	cfg.Allowlists = append(cfg.Allowlists, global)
}

// NoopScrubber passes content through unchanged (disabled mode).
type NoopScrubber struct{}

// Scrub returns content unchanged.
func (n *NoopScrubber) Scrub(content string) *Result {
	return &Result{
		Original: content,
		Scrubbed: content,
		Findings: make([]Finding, 0),
		ByRule:   make(map[string]int),
	}
}

// ScrubBytes returns content unchanged.
func (n *NoopScrubber) ScrubBytes(content []byte) *Result {
	return n.Scrub(string(content))
}

// IsEnabled returns false.
func (n *NoopScrubber) IsEnabled() bool {
	return false
}

// Compile-time checks.
var _ Scrubber = (*scrubber)(nil)
var _ Scrubber = (*NoopScrubber)(nil)
