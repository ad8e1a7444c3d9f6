package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Sentinel errors for vector store operations.
var (
	// ErrQueryFailed indicates a similarity query could not be executed.
	ErrQueryFailed = errors.New("vector query failed")

	// ErrUpsertFailed indicates records could not be written to the index.
	ErrUpsertFailed = errors.New("vector upsert failed")

	// ErrNotFound is returned when a record id does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrStoreClosed is returned for operations after Close.
	ErrStoreClosed = errors.New("vector store closed")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// Record is a stored vector with its source document and metadata.
type Record struct {
	// ID is the unique identifier (ingestion uses "log_<id>"). Upserting
	// an existing ID replaces the record.
	ID string

	// Vector is the precomputed embedding. Its length must match the
	// store's configured vector size.
	Vector []float32

	// Document is the normalized text the vector was computed from.
	Document string

	// Metadata holds string key-value pairs for exact-match filtering.
	// Values are strings across this boundary; callers stringify on the
	// way in and parse on the way out.
	Metadata map[string]string
}

// Hit is a single query result.
type Hit struct {
	// ID is the matched record's identifier.
	ID string

	// Distance is the cosine distance to the query vector (lower is
	// closer). Similarity reported to callers is 1 - Distance.
	Distance float32

	// Document is the stored normalized text.
	Document string

	// Metadata holds the record's string metadata.
	Metadata map[string]string
}

// Store is the interface for vector index operations.
//
// Implementations are safe for concurrent use and are constructed once at
// process start.
type Store interface {
	// Upsert writes records to the index, replacing any existing records
	// with the same IDs. Empty input is a no-op.
	Upsert(ctx context.Context, records []Record) error

	// Query returns up to k hits nearest to vector, ordered by ascending
	// distance. filter restricts results to records whose metadata
	// exactly matches every given key-value pair; nil means no filter.
	Query(ctx context.Context, vector []float32, k int, filter map[string]string) ([]Hit, error)

	// Get returns the record with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)

	// Delete removes the records with the given ids. Missing ids are
	// ignored.
	Delete(ctx context.Context, ids []string) error

	// Count returns the number of records in the index.
	Count(ctx context.Context) (int, error)

	// Close releases resources. Operations after Close return
	// ErrStoreClosed.
	Close() error
}

// collectionNamePattern validates collection names.
// Pattern: lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName validates a collection name against security rules.
// Rejects: uppercase, special chars, path traversal, spaces.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match pattern ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}
