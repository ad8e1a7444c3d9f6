// Package vectorstore stores normalized-log embeddings and answers
// nearest-neighbor queries over them.
//
// Records arrive with precomputed vectors (the embeddings provider runs
// upstream) and string-only metadata; queries are by vector and return
// hits in ascending cosine distance. Two backends implement Store:
//
//   - ChromemStore: embedded chromem-go with gob persistence (default,
//     zero external services)
//   - QdrantStore: external Qdrant over gRPC for larger deployments
//
// Both backends use cosine distance, so a hit's Distance round-trips
// with the similarity reported to callers as 1 - Distance.
package vectorstore
