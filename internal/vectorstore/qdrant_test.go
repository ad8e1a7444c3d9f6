package vectorstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fyrsmithlabs/resolvd/internal/vectorstore"
)

func TestValidateCollectionName(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantError bool
	}{
		{
			name:      "valid default collection",
			input:     "resolvd_logs",
			wantError: false,
		},
		{
			name:      "valid with digits",
			input:     "logs_v2",
			wantError: false,
		},
		{
			name:      "empty name",
			input:     "",
			wantError: true,
		},
		{
			name:      "uppercase letters",
			input:     "Resolvd_Logs",
			wantError: true,
		},
		{
			name:      "hyphens",
			input:     "resolvd-logs",
			wantError: true,
		},
		{
			name:      "spaces",
			input:     "resolvd logs",
			wantError: true,
		},
		{
			name:      "path traversal attempt",
			input:     "../logs",
			wantError: true,
		},
		{
			name:      "too long",
			input:     "a123456789012345678901234567890123456789012345678901234567890123456789",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := vectorstore.ValidateCollectionName(tt.input)
			if tt.wantError {
				assert.ErrorIs(t, err, vectorstore.ErrInvalidCollectionName)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestQdrantConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		config    vectorstore.QdrantConfig
		wantError bool
	}{
		{
			name: "valid config",
			config: vectorstore.QdrantConfig{
				Host:       "localhost",
				Port:       6334,
				Collection: "resolvd_logs",
				VectorSize: 384,
			},
			wantError: false,
		},
		{
			name: "missing host",
			config: vectorstore.QdrantConfig{
				Port:       6334,
				Collection: "resolvd_logs",
				VectorSize: 384,
			},
			wantError: true,
		},
		{
			name: "invalid port",
			config: vectorstore.QdrantConfig{
				Host:       "localhost",
				Port:       70000,
				Collection: "resolvd_logs",
				VectorSize: 384,
			},
			wantError: true,
		},
		{
			name: "zero vector size",
			config: vectorstore.QdrantConfig{
				Host:       "localhost",
				Port:       6334,
				Collection: "resolvd_logs",
			},
			wantError: true,
		},
		{
			name: "invalid collection name",
			config: vectorstore.QdrantConfig{
				Host:       "localhost",
				Port:       6334,
				Collection: "Resolvd-Logs",
				VectorSize: 384,
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestQdrantConfig_ApplyDefaults(t *testing.T) {
	config := vectorstore.QdrantConfig{}
	config.ApplyDefaults()

	assert.Equal(t, "localhost", config.Host)
	assert.Equal(t, 6334, config.Port)
	assert.Equal(t, "resolvd_logs", config.Collection)
	assert.Equal(t, uint64(384), config.VectorSize)
	assert.Equal(t, 3, config.MaxRetries)
	assert.Equal(t, time.Second, config.RetryBackoff)
	assert.Equal(t, 50*1024*1024, config.MaxMessageSize)
}

func TestIsTransientError(t *testing.T) {
	tests := []struct {
		name          string
		code          codes.Code
		wantTransient bool
	}{
		{
			name:          "unavailable is transient",
			code:          codes.Unavailable,
			wantTransient: true,
		},
		{
			name:          "deadline exceeded is transient",
			code:          codes.DeadlineExceeded,
			wantTransient: true,
		},
		{
			name:          "aborted is transient",
			code:          codes.Aborted,
			wantTransient: true,
		},
		{
			name:          "resource exhausted is transient",
			code:          codes.ResourceExhausted,
			wantTransient: true,
		},
		{
			name:          "invalid argument is not transient",
			code:          codes.InvalidArgument,
			wantTransient: false,
		},
		{
			name:          "not found is not transient",
			code:          codes.NotFound,
			wantTransient: false,
		},
		{
			name:          "permission denied is not transient",
			code:          codes.PermissionDenied,
			wantTransient: false,
		},
		{
			name:          "unauthenticated is not transient",
			code:          codes.Unauthenticated,
			wantTransient: false,
		},
		{
			name:          "unknown code defaults to not transient",
			code:          codes.Unknown,
			wantTransient: false,
		},
		{
			name:          "canceled is not transient",
			code:          codes.Canceled,
			wantTransient: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := status.Error(tt.code, "test error")
			assert.Equal(t, tt.wantTransient, vectorstore.IsTransientError(err))
		})
	}

	t.Run("non-grpc error is not transient", func(t *testing.T) {
		assert.False(t, vectorstore.IsTransientError(errors.New("regular error")))
	})

	t.Run("nil error is not transient", func(t *testing.T) {
		assert.False(t, vectorstore.IsTransientError(nil))
	})
}

// TestQdrantStore_Integration requires Qdrant on localhost:6334.
func TestQdrantStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	config := vectorstore.QdrantConfig{
		Host:       "localhost",
		Port:       6334,
		Collection: "test_resolvd_integration",
		VectorSize: 4,
	}

	store, err := vectorstore.NewQdrantStore(config, zap.NewNop())
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}
	defer store.Close()

	ids := []string{"log_1", "log_2"}
	defer func() { _ = store.Delete(ctx, ids) }()

	t.Run("upsert and query", func(t *testing.T) {
		records := []vectorstore.Record{
			{ID: "log_1", Vector: []float32{1, 0, 0, 0}, Document: "connection refused", Metadata: map[string]string{"service_name": "api"}},
			{ID: "log_2", Vector: []float32{0, 1, 0, 0}, Document: "out of memory", Metadata: map[string]string{"service_name": "worker"}},
		}
		require.NoError(t, store.Upsert(ctx, records))

		hits, err := store.Query(ctx, []float32{1, 0, 0, 0}, 2, nil)
		require.NoError(t, err)
		require.NotEmpty(t, hits)

		assert.Equal(t, "log_1", hits[0].ID)
		assert.Equal(t, "connection refused", hits[0].Document)
		assert.Equal(t, "api", hits[0].Metadata["service_name"])
		assert.InDelta(t, 0, hits[0].Distance, 1e-4)
	})

	t.Run("upsert same id replaces point", func(t *testing.T) {
		before, err := store.Count(ctx)
		require.NoError(t, err)

		record := vectorstore.Record{ID: "log_1", Vector: []float32{0, 0, 1, 0}, Document: "updated"}
		require.NoError(t, store.Upsert(ctx, []vectorstore.Record{record}))

		after, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, before, after)

		got, err := store.Get(ctx, "log_1")
		require.NoError(t, err)
		assert.Equal(t, "updated", got.Document)
	})

	t.Run("filtered query", func(t *testing.T) {
		hits, err := store.Query(ctx, []float32{0, 1, 0, 0}, 5, map[string]string{"service_name": "worker"})
		require.NoError(t, err)
		for _, hit := range hits {
			assert.Equal(t, "worker", hit.Metadata["service_name"])
		}
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, []string{"log_2"}))

		_, err := store.Get(ctx, "log_2")
		assert.ErrorIs(t, err, vectorstore.ErrNotFound)
	})
}
