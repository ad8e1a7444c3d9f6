// Package embeddings provides embedding generation via multiple providers.
//
// Supports FastEmbed (local ONNX, default), TEI (HuggingFace Text
// Embeddings Inference over HTTP) and OpenAI-compatible endpoints.
// Factory pattern enables provider selection at runtime with automatic
// dimension detection for common models.
//
// All providers reject empty input with ErrEmptyInput so that blank log
// text never reaches the vector index.
package embeddings
