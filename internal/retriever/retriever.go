package retriever

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/resolvd/internal/embeddings"
	"github.com/fyrsmithlabs/resolvd/internal/vectorstore"
)

var tracer = otel.Tracer("resolvd.retriever")

// ErrRetrieval indicates similarity retrieval failure at either the
// embedding or the index query stage.
var ErrRetrieval = errors.New("retrieval failed")

// SimilarMatch is a historical log matched by similarity retrieval,
// reshaped from index metadata for prompt building and API responses.
type SimilarMatch struct {
	// SourceID is the matched log's id: metadata log_id when present,
	// the index record id otherwise.
	SourceID string `json:"source_id"`

	// Similarity is 1 - cosine distance. Not clamped.
	Similarity float64 `json:"similarity"`

	// Document is the normalized text stored in the index.
	Document string `json:"document"`

	ServiceName  string `json:"service_name"`
	ErrorLevel   string `json:"error_level"`
	ErrorMessage string `json:"error_message"`
}

// Retriever embeds query text and searches the vector index.
type Retriever struct {
	provider embeddings.Provider
	store    vectorstore.Store
	logger   *zap.Logger
}

// New creates a Retriever over an embedding provider and a vector store.
func New(provider embeddings.Provider, store vectorstore.Store, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{
		provider: provider,
		store:    store,
		logger:   logger,
	}
}

// RetrieveSimilar embeds queryText and returns the topK nearest hits,
// optionally restricted by exact-match metadata filters. Hits come back
// in ascending distance order, nearest first.
func (r *Retriever) RetrieveSimilar(ctx context.Context, queryText string, topK int, filter map[string]string) ([]vectorstore.Hit, error) {
	ctx, span := tracer.Start(ctx, "Retriever.RetrieveSimilar")
	defer span.End()

	span.SetAttributes(
		attribute.Int("top_k", topK),
		attribute.Int("filter_count", len(filter)),
	)

	vector, err := r.provider.EmbedQuery(ctx, queryText)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding failed")
		return nil, fmt.Errorf("%w: embedding query: %v", ErrRetrieval, err)
	}

	hits, err := r.store.Query(ctx, vector, topK, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "index query failed")
		return nil, fmt.Errorf("%w: querying index: %v", ErrRetrieval, err)
	}

	r.logger.Debug("similarity retrieval complete",
		zap.Int("top_k", topK),
		zap.Int("hits", len(hits)),
	)

	span.SetAttributes(attribute.Int("hits", len(hits)))
	span.SetStatus(codes.Ok, "success")
	return hits, nil
}

// FormatResults reshapes index hits into SimilarMatch values using the
// string metadata written at ingestion. The metadata log_id is preferred
// over the index record id; hits whose resolved id equals excludeID are
// skipped so a log never matches itself. Input order is preserved.
func FormatResults(hits []vectorstore.Hit, excludeID string) []SimilarMatch {
	matches := make([]SimilarMatch, 0, len(hits))
	for _, hit := range hits {
		id := hit.Metadata["log_id"]
		if id == "" {
			id = hit.ID
		}
		if excludeID != "" && id == excludeID {
			continue
		}

		matches = append(matches, SimilarMatch{
			SourceID:     id,
			Similarity:   1 - float64(hit.Distance),
			Document:     hit.Document,
			ServiceName:  hit.Metadata["service_name"],
			ErrorLevel:   hit.Metadata["error_level"],
			ErrorMessage: hit.Metadata["error_message"],
		})
	}
	return matches
}
