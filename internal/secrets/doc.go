// Package secrets detects and redacts credentials in raw log content
// using the gitleaks ruleset.
//
// Every raw log passes through scrubbing before it is persisted, embedded,
// or placed into an LLM prompt. Findings are replaced with
// [REDACTED:rule-id] markers so the surrounding context stays meaningful
// for embeddings while the secret value never leaves the process. TOML
// allowlists exclude known-benign patterns.
package secrets
