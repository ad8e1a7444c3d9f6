package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// chromemTracer for OpenTelemetry instrumentation.
var chromemTracer = otel.Tracer("resolvd.vectorstore.chromem")

// ChromemConfig holds configuration for the chromem-go embedded backend.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	// Default: "~/.config/resolvd/vectorstore"
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool

	// Collection is the collection name.
	// Default: "resolvd_logs"
	Collection string

	// VectorSize is the expected embedding dimension.
	// Must match the embedding provider's output dimension.
	// Default: 384 (all-MiniLM-L6-v2)
	VectorSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "~/.config/resolvd/vectorstore"
	}
	if c.Collection == "" {
		c.Collection = "resolvd_logs"
	}
	if c.VectorSize == 0 {
		c.VectorSize = 384
	}
}

// Validate validates the configuration.
func (c *ChromemConfig) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	return ValidateCollectionName(c.Collection)
}

// ChromemStore implements Store using chromem-go.
//
// chromem-go is an embeddable vector database with zero third-party
// dependencies: pure Go, no external service, persistence to gob files.
// All records live in a single collection created at construction.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	config     ChromemConfig
	logger     *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// NewChromemStore creates a ChromemStore with the given configuration.
func NewChromemStore(config ChromemConfig, logger *zap.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	expandedPath, err := expandChromemPath(config.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}

	if err := os.MkdirAll(expandedPath, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", expandedPath, err)
	}

	db, err := chromem.NewPersistentDB(expandedPath, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("creating chromem DB: %w", err)
	}

	// Records arrive with precomputed vectors and queries are by vector,
	// so the collection's embedding func must never run. Never pass nil:
	// chromem installs its OpenAI default for nil funcs on persisted
	// collections.
	collection, err := db.GetOrCreateCollection(config.Collection, nil, rejectEmbedding)
	if err != nil {
		return nil, fmt.Errorf("getting/creating collection %s: %w", config.Collection, err)
	}

	store := &ChromemStore{
		db:         db,
		collection: collection,
		config:     config,
		logger:     logger,
	}

	logger.Info("chromem store initialized",
		zap.String("path", expandedPath),
		zap.Bool("compress", config.Compress),
		zap.Int("vector_size", config.VectorSize),
		zap.String("collection", config.Collection),
	)

	return store, nil
}

// rejectEmbedding is the collection embedding func; it must never be
// reached because every code path supplies vectors explicitly.
func rejectEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("store only accepts precomputed vectors")
}

// expandChromemPath expands ~ to home directory.
func expandChromemPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

func (s *ChromemStore) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Upsert writes records to the index. chromem keys documents by ID, so
// re-upserting an ID replaces the stored record.
func (s *ChromemStore) Upsert(ctx context.Context, records []Record) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Upsert")
	defer span.End()

	span.SetAttributes(attribute.Int("record_count", len(records)))

	if s.isClosed() {
		return ErrStoreClosed
	}
	if len(records) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(records))
	for i, record := range records {
		id := record.ID
		if id == "" {
			id = uuid.New().String()
			s.logger.Warn("auto-generated record id, caller should provide explicit ids",
				zap.String("generated_id", id),
			)
		}
		if len(record.Vector) != s.config.VectorSize {
			return fmt.Errorf("%w: record %s has vector size %d, want %d",
				ErrUpsertFailed, id, len(record.Vector), s.config.VectorSize)
		}
		docs[i] = chromem.Document{
			ID:        id,
			Content:   record.Document,
			Metadata:  record.Metadata,
			Embedding: record.Vector,
		}
	}

	// Concurrency 1: vectors are precomputed, nothing to parallelize.
	if err := s.collection.AddDocuments(ctx, docs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: %v", ErrUpsertFailed, err)
	}

	span.SetStatus(codes.Ok, "success")
	s.logger.Debug("upserted records to chromem",
		zap.String("collection", s.config.Collection),
		zap.Int("count", len(records)),
	)
	return nil
}

// Query returns up to k nearest hits in ascending cosine distance.
func (s *ChromemStore) Query(ctx context.Context, vector []float32, k int, filter map[string]string) ([]Hit, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Query")
	defer span.End()

	span.SetAttributes(attribute.Int("k", k))

	if s.isClosed() {
		return nil, ErrStoreClosed
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", ErrQueryFailed, k)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: query vector is empty", ErrQueryFailed)
	}

	// Cap k at collection size (chromem requires nResults <= doc count).
	count := s.collection.Count()
	if count == 0 {
		return []Hit{}, nil
	}
	if k > count {
		k = count
	}

	results, err := s.collection.QueryEmbedding(ctx, vector, k, filter, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}

	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{
			ID:       r.ID,
			Distance: 1 - r.Similarity,
			Document: r.Content,
			Metadata: r.Metadata,
		}
	}

	span.SetAttributes(attribute.Int("hit_count", len(hits)))
	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("queried chromem collection",
		zap.String("collection", s.config.Collection),
		zap.Int("k", k),
		zap.Int("hits", len(hits)),
	)

	return hits, nil
}

// Get returns the record with the given id.
func (s *ChromemStore) Get(ctx context.Context, id string) (*Record, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Get")
	defer span.End()

	span.SetAttributes(attribute.String("id", id))

	if s.isClosed() {
		return nil, ErrStoreClosed
	}

	doc, err := s.collection.GetByID(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, "not found")
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	span.SetStatus(codes.Ok, "success")
	return &Record{
		ID:       doc.ID,
		Vector:   doc.Embedding,
		Document: doc.Content,
		Metadata: doc.Metadata,
	}, nil
}

// Delete removes records by id. Missing ids are ignored.
func (s *ChromemStore) Delete(ctx context.Context, ids []string) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Delete")
	defer span.End()

	span.SetAttributes(attribute.Int("id_count", len(ids)))

	if s.isClosed() {
		return ErrStoreClosed
	}
	if len(ids) == 0 {
		return nil
	}

	if err := s.collection.Delete(ctx, nil, nil, ids...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting records: %w", err)
	}

	span.SetStatus(codes.Ok, "success")
	s.logger.Debug("deleted records from chromem",
		zap.String("collection", s.config.Collection),
		zap.Int("count", len(ids)),
	)
	return nil
}

// Count returns the number of stored records.
func (s *ChromemStore) Count(ctx context.Context) (int, error) {
	if s.isClosed() {
		return 0, ErrStoreClosed
	}
	return s.collection.Count(), nil
}

// Close marks the store closed. chromem persists on every write, so
// there is nothing to flush.
func (s *ChromemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Info("chromem store closed")
	return nil
}

// Ensure ChromemStore implements Store.
var _ Store = (*ChromemStore)(nil)
