// Package resolver orchestrates the resolution pipeline: heuristic
// extraction for ad-hoc text, similarity retrieval, generative
// resolution, fix normalization, and resolution-history persistence.
//
// Two entry points cover the two request modes. ResolveText handles
// raw log text and never persists anything. ResolveLogEntry resolves
// an existing log entry, excludes the entry from its own similar-log
// set, and records a ResolutionRecord; a persistence failure there is
// logged and absorbed so the caller still gets the full result.
package resolver
