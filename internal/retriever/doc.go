// Package retriever bridges embedding generation and the vector index
// for similarity retrieval over ingested logs.
//
// RetrieveSimilar embeds the query text and returns the nearest stored
// log vectors; FormatResults reshapes raw index hits into SimilarMatch
// values using the string metadata written at ingestion time, excluding
// the querying log's own entry so a log never matches itself.
package retriever
