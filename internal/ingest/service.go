// Package ingest turns raw log input into stored, embedded, searchable
// log entries.
//
// Both entry points share one pipeline: scrub secrets, normalize the
// error message, store the entry, embed the normalized text, upsert the
// vector record, and attach the embedding id back onto the entry. The
// database write is the commit point — embedding or index failure after
// it is logged and absorbed, leaving the entry stored without an
// embedding id rather than failing the ingestion.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/resolvd/internal/embeddings"
	"github.com/fyrsmithlabs/resolvd/internal/events"
	"github.com/fyrsmithlabs/resolvd/internal/lognorm"
	"github.com/fyrsmithlabs/resolvd/internal/secrets"
	"github.com/fyrsmithlabs/resolvd/internal/store"
	"github.com/fyrsmithlabs/resolvd/internal/vectorstore"
)

var tracer = otel.Tracer("resolvd.ingest")

// metadataMessageLimit caps the error_message copy stored in vector
// metadata. The full message lives in the database.
const metadataMessageLimit = lognorm.DefaultMaxMessageLength

// LogWriter persists log entries and attaches embedding ids.
type LogWriter interface {
	Create(ctx context.Context, entry *store.LogEntry) error
	AttachEmbedding(ctx context.Context, id uint, embeddingID string) error
}

// Embedder computes the vector for a normalized document.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Indexer writes vector records to the similarity index.
type Indexer interface {
	Upsert(ctx context.Context, records []vectorstore.Record) error
}

var (
	_ LogWriter = (*store.LogRepository)(nil)
	_ Embedder  = (embeddings.Provider)(nil)
	_ Indexer   = (vectorstore.Store)(nil)
)

// StructuredLog is pre-parsed input from a caller that already knows
// the service, level, and message. RawLog falls back to ErrorMessage
// when empty.
type StructuredLog struct {
	ServiceName  string
	ErrorLevel   string
	ErrorMessage string
	RawLog       string
	Metadata     map[string]any
}

// Service ingests logs: scrub, normalize, store, embed, index.
type Service struct {
	logs      LogWriter
	embedder  Embedder
	index     Indexer
	scrubber  secrets.Scrubber
	publisher events.Publisher
	logger    *zap.Logger
}

// New creates an ingestion service. The scrubber and publisher may be
// nil, disabling secret scrubbing and event publication respectively.
func New(logs LogWriter, embedder Embedder, index Indexer, scrubber secrets.Scrubber, publisher events.Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		logs:      logs,
		embedder:  embedder,
		index:     index,
		scrubber:  scrubber,
		publisher: publisher,
		logger:    logger,
	}
}

// Ingest stores a structured log entry and indexes its embedding. The
// error level is uppercased and validated against the known set.
func (s *Service) Ingest(ctx context.Context, input StructuredLog) (*store.LogEntry, error) {
	ctx, span := tracer.Start(ctx, "Service.Ingest")
	defer span.End()

	if strings.TrimSpace(input.ServiceName) == "" {
		return nil, fmt.Errorf("%w: service name is required", ErrParse)
	}
	if strings.TrimSpace(input.ErrorMessage) == "" {
		return nil, fmt.Errorf("%w: error message is required", ErrParse)
	}
	level := strings.ToUpper(input.ErrorLevel)
	if !store.ValidErrorLevel(level) {
		return nil, fmt.Errorf("%w: invalid error level %q", ErrParse, input.ErrorLevel)
	}

	raw := input.RawLog
	if raw == "" {
		raw = input.ErrorMessage
	}

	entry := &store.LogEntry{
		ServiceName:  input.ServiceName,
		ErrorLevel:   level,
		ErrorMessage: s.scrub(input.ErrorMessage),
		RawLog:       s.scrub(raw),
		Metadata:     encodeMetadata(input.Metadata),
	}
	entry.NormalizedText = lognorm.Normalize(entry.ErrorMessage)

	return s.commit(ctx, span, entry)
}

// IngestText stores an unstructured log line, extracting the service,
// level, and message heuristically. serviceName overrides extraction
// when non-empty.
func (s *Service) IngestText(ctx context.Context, logText, serviceName string, metadata map[string]any) (*store.LogEntry, error) {
	ctx, span := tracer.Start(ctx, "Service.IngestText")
	defer span.End()

	if strings.TrimSpace(logText) == "" {
		return nil, fmt.Errorf("%w: log text is required", ErrParse)
	}

	// Scrub before extraction so nothing derived from the text can
	// carry a secret.
	scrubbed := s.scrub(logText)

	service := serviceName
	if service == "" {
		service = lognorm.ExtractServiceName(scrubbed)
	}
	message := lognorm.ExtractErrorMessage(scrubbed, lognorm.DefaultMaxMessageLength)

	entry := &store.LogEntry{
		ServiceName:  service,
		ErrorLevel:   lognorm.ExtractErrorLevel(scrubbed),
		ErrorMessage: message,
		RawLog:       scrubbed,
		Metadata:     encodeMetadata(metadata),
	}
	entry.NormalizedText = lognorm.Normalize(message)

	return s.commit(ctx, span, entry)
}

// commit runs the shared tail of both ingestion paths: the database
// write, then the best-effort embed/index/attach sequence.
func (s *Service) commit(ctx context.Context, span trace.Span, entry *store.LogEntry) (*store.LogEntry, error) {
	if err := s.logs.Create(ctx, entry); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "database write failed")
		return nil, fmt.Errorf("storing log entry: %w", err)
	}
	span.SetAttributes(attribute.Int64("log_id", int64(entry.ID)))

	embeddingID := fmt.Sprintf("log_%d", entry.ID)
	if err := s.indexEntry(ctx, entry, embeddingID); err != nil {
		// The entry is committed; only the similarity index is behind.
		s.logger.Error("log stored without embedding",
			zap.Uint("log_id", entry.ID),
			zap.Error(err),
		)
		span.RecordError(err)
	} else {
		entry.EmbeddingID = embeddingID
	}

	s.publishIngested(entry)

	s.logger.Info("log ingested",
		zap.Uint("log_id", entry.ID),
		zap.String("service_name", entry.ServiceName),
		zap.String("error_level", entry.ErrorLevel),
		zap.Bool("indexed", entry.EmbeddingID != ""),
	)
	span.SetStatus(codes.Ok, "success")
	return entry, nil
}

// indexEntry embeds the normalized text, upserts the vector record,
// and attaches the embedding id to the stored entry.
func (s *Service) indexEntry(ctx context.Context, entry *store.LogEntry, embeddingID string) error {
	vector, err := s.embedder.EmbedQuery(ctx, entry.NormalizedText)
	if err != nil {
		return fmt.Errorf("embedding normalized text: %w", err)
	}

	record := vectorstore.Record{
		ID:       embeddingID,
		Vector:   vector,
		Document: entry.NormalizedText,
		Metadata: map[string]string{
			"log_id":        strconv.FormatUint(uint64(entry.ID), 10),
			"service_name":  entry.ServiceName,
			"error_level":   entry.ErrorLevel,
			"error_message": truncateForMetadata(entry.ErrorMessage, metadataMessageLimit),
		},
	}
	if err := s.index.Upsert(ctx, []vectorstore.Record{record}); err != nil {
		return fmt.Errorf("indexing embedding: %w", err)
	}

	if err := s.logs.AttachEmbedding(ctx, entry.ID, embeddingID); err != nil {
		return fmt.Errorf("attaching embedding id: %w", err)
	}
	return nil
}

// publishIngested emits the ingestion event when a publisher is wired.
func (s *Service) publishIngested(entry *store.LogEntry) {
	if s.publisher == nil {
		return
	}
	s.publisher.LogIngested(events.LogIngestedEvent{
		LogID:       entry.ID,
		ServiceName: entry.ServiceName,
		ErrorLevel:  entry.ErrorLevel,
		EmbeddingID: entry.EmbeddingID,
	})
}

// scrub redacts secrets when a scrubber is wired and enabled.
func (s *Service) scrub(value string) string {
	if s.scrubber == nil || !s.scrubber.IsEnabled() {
		return value
	}
	return s.scrubber.Scrub(value).Scrubbed
}

// encodeMetadata serializes caller metadata for the text column. Empty
// input stays an empty string.
func encodeMetadata(metadata map[string]any) string {
	if len(metadata) == 0 {
		return ""
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return ""
	}
	return string(data)
}

// truncateForMetadata bounds a string for vector metadata storage.
func truncateForMetadata(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
