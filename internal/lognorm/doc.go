// Package lognorm normalizes raw application log text and extracts
// structured fields (service name, error level, error message) from it.
//
// Normalization strips volatile tokens (UUIDs, IPs, timestamps, long hex
// ids) so that two occurrences of the same underlying error embed to
// nearby vectors regardless of when or where they happened:
//
//	lognorm.Normalize("2024-01-15 10:30:45 ERROR [api] request 550e8400-... failed")
//	// "error [api] request <uuid> failed"
//
// Extraction is driven by ordered rule tables evaluated top to bottom,
// first match wins. The tables are package-level vars kept separate from
// the matching loops so priority order is testable on its own.
package lognorm
