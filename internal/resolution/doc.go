// Package resolution turns an error message plus similar historical
// errors into a root cause, recommended fix, and confidence score using
// a generative model.
//
// The Engine assembles a bounded-length prompt from the current error
// and up to five similar matches, calls a CompletionClient, and parses
// the possibly-malformed output defensively: fenced JSON extraction,
// strict JSON, then line-oriented heuristics down to a fixed-split last
// resort. Confidence is always clamped to [0,1] and missing fields get
// placeholder values, so callers never see a partial resolution.
//
// The production CompletionClient speaks the OpenAI chat-completions
// protocol and works against OpenRouter, OpenAI, or any compatible
// gateway. There is no automatic retry: the request timeout fails the
// whole resolution attempt.
package resolution
