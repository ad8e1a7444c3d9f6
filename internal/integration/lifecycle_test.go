//go:build integration

// Package integration exercises the full resolvd pipeline in-process:
// real sqlite store, real chromem index, the HTTP layer, and the
// ingestion and resolution services wired together the way cmd/resolvd
// wires them. Only the embedder and the completion client are
// deterministic stand-ins, so no model download or API key is needed.
//
// Run with:
//
//	go test -tags=integration ./internal/integration
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/resolvd/internal/ingest"
	"github.com/fyrsmithlabs/resolvd/internal/resolution"
	"github.com/fyrsmithlabs/resolvd/internal/resolver"
	"github.com/fyrsmithlabs/resolvd/internal/retriever"
	"github.com/fyrsmithlabs/resolvd/internal/server"
	"github.com/fyrsmithlabs/resolvd/internal/store"
	"github.com/fyrsmithlabs/resolvd/internal/vectorstore"
)

const embedDim = 64

// hashEmbedder is a deterministic bag-of-words embedder: tokens hash
// into a fixed number of buckets and the vector is L2-normalized.
// Texts sharing tokens land close in cosine space, so retrieval
// behaves like production. Normalization folds IPs and numbers into
// placeholders, which makes a failure family embed identically.
type hashEmbedder struct{}

func (hashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, embedDim)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		vec[h.Sum32()%embedDim]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

func (e hashEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := e.EmbedQuery(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (hashEmbedder) Dimension() int { return embedDim }
func (hashEmbedder) Close() error   { return nil }

// cannedCompletion returns a fixed, well-formed resolution payload.
type cannedCompletion struct{}

func (cannedCompletion) Complete(ctx context.Context, system, user string) (string, error) {
	return `{"root_cause": "The postgres connection pool is exhausted during traffic spikes.",
		"recommended_fix": ["Raise max_connections on the primary", "Add pgbouncer in transaction pooling mode"],
		"confidence": 0.82}`, nil
}

func setupPipeline(t *testing.T) *server.Server {
	t.Helper()
	logger := zap.NewNop()

	db, err := store.Open(store.Config{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "logs.db"),
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	index, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		Path:       t.TempDir(),
		Collection: "lifecycle_logs",
		VectorSize: embedDim,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	logs := store.NewLogRepository(db, logger)
	resolutions := store.NewResolutionRepository(db, logger)
	embedder := hashEmbedder{}

	searcher := retriever.New(embedder, index, logger)
	engine := resolution.NewEngine(cannedCompletion{}, 0, logger)

	srv, err := server.New(server.Deps{
		Resolver:    resolver.New(searcher, engine, resolutions, nil, resolver.Config{}, logger),
		Ingestor:    ingest.New(logs, embedder, index, nil, nil, logger),
		Logs:        logs,
		Resolutions: resolutions,
		Searcher:    searcher,
		Probes: server.Probes{
			DB:            db,
			Index:         index,
			Embedder:      embedder,
			LLMConfigured: true,
		},
	}, &server.Config{Port: 0, Version: "integration"}, logger)
	require.NoError(t, err)
	return srv
}

func do(t *testing.T, srv *server.Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)
	return rec
}

func TestPipelineLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	srv := setupPipeline(t)

	// Three connection-refused failures across two services plus one
	// unrelated disk error. The family normalizes to identical text, so
	// pattern detection has something real to find.
	structured := []string{
		`{"service_name": "payment-api", "error_level": "ERROR", "error_message": "dial tcp 10.0.3.12:5432: connect: connection refused"}`,
		`{"service_name": "payment-api", "error_level": "ERROR", "error_message": "dial tcp 10.0.9.41:5432: connect: connection refused"}`,
		`{"service_name": "checkout-worker", "error_level": "ERROR", "error_message": "dial tcp 10.1.2.3:5432: connect: connection refused"}`,
		`{"service_name": "search-indexer", "error_level": "ERROR", "error_message": "write /var/lib/search/segments/seg_0451.tmp: no space left on device"}`,
	}

	ids := make([]uint, 0, len(structured))
	for _, body := range structured {
		rec := do(t, srv, http.MethodPost, "/api/v1/logs", body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var entry struct {
			ID             uint   `json:"id"`
			EmbeddingID    string `json:"embedding_id"`
			NormalizedText string `json:"normalized_text"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
		assert.Equal(t, fmt.Sprintf("log_%d", entry.ID), entry.EmbeddingID)
		assert.NotEmpty(t, entry.NormalizedText)
		ids = append(ids, entry.ID)
	}

	t.Run("unstructured ingestion", func(t *testing.T) {
		body := `{"log_text": "2025-08-12T09:14:02Z ERROR payment-api dial tcp 10.0.77.8:5432: connect: connection refused", "service_name": "payment-api"}`
		rec := do(t, srv, http.MethodPost, "/api/v1/logs/unstructured", body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var entry struct {
			ID          uint   `json:"id"`
			ServiceName string `json:"service_name"`
			ErrorLevel  string `json:"error_level"`
			EmbeddingID string `json:"embedding_id"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
		assert.Equal(t, "payment-api", entry.ServiceName)
		assert.Equal(t, "ERROR", entry.ErrorLevel)
		assert.NotEmpty(t, entry.EmbeddingID)
	})

	t.Run("similarity analysis detects the pattern", func(t *testing.T) {
		rec := do(t, srv, http.MethodGet, fmt.Sprintf("/api/v1/analysis/%d/similar?top_k=3", ids[0]), "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp struct {
			LogID            uint `json:"log_id"`
			PatternDetected  bool `json:"pattern_detected"`
			PatternFrequency *int `json:"pattern_frequency"`
			SimilarLogs      []struct {
				ID         uint    `json:"id"`
				Similarity float64 `json:"similarity_score"`
			} `json:"similar_logs"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

		assert.Equal(t, ids[0], resp.LogID)
		require.Len(t, resp.SimilarLogs, 3)
		for _, similar := range resp.SimilarLogs {
			assert.NotEqual(t, ids[0], similar.ID, "entry must not match itself")
			assert.NotEqual(t, ids[3], similar.ID, "disk error is not part of the family")
			assert.Greater(t, similar.Similarity, 0.9)
		}
		assert.True(t, resp.PatternDetected)
		require.NotNil(t, resp.PatternFrequency)
		assert.Equal(t, 3, *resp.PatternFrequency)
	})

	t.Run("resolution by log id persists a record", func(t *testing.T) {
		rec := do(t, srv, http.MethodPost, "/api/v1/resolve",
			fmt.Sprintf(`{"log_id": %d, "top_k": 3}`, ids[0]))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp struct {
			LogID          uint     `json:"log_id"`
			RootCause      string   `json:"root_cause"`
			RecommendedFix []string `json:"recommended_fix"`
			Confidence     float64  `json:"confidence"`
			ResolutionID   *uint    `json:"resolution_id"`
			SimilarLogs    []struct {
				ServiceName string `json:"service_name"`
			} `json:"similar_logs"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

		assert.Equal(t, ids[0], resp.LogID)
		assert.Equal(t, "The postgres connection pool is exhausted during traffic spikes.", resp.RootCause)
		assert.Equal(t, []string{
			"Raise max_connections on the primary",
			"Add pgbouncer in transaction pooling mode",
		}, resp.RecommendedFix)
		assert.InDelta(t, 0.82, resp.Confidence, 1e-9)
		require.NotNil(t, resp.ResolutionID)
		require.NotEmpty(t, resp.SimilarLogs)
		assert.NotEmpty(t, resp.SimilarLogs[0].ServiceName)

		history := do(t, srv, http.MethodGet, fmt.Sprintf("/api/v1/logs/%d/resolutions", ids[0]), "")
		require.Equal(t, http.StatusOK, history.Code)

		var records []struct {
			LogEntryID    uint     `json:"log_entry_id"`
			RootCause     string   `json:"root_cause"`
			Confidence    float64  `json:"confidence_score"`
			SimilarLogIDs []string `json:"similar_log_ids"`
		}
		require.NoError(t, json.Unmarshal(history.Body.Bytes(), &records))
		require.Len(t, records, 1)
		assert.Equal(t, ids[0], records[0].LogEntryID)
		assert.Equal(t, resp.RootCause, records[0].RootCause)
		assert.InDelta(t, 0.82, records[0].Confidence, 1e-9)
		assert.NotEmpty(t, records[0].SimilarLogIDs)
	})

	t.Run("ad-hoc text resolution persists nothing", func(t *testing.T) {
		body := `{"log_text": "ERROR dial tcp 10.0.0.9:5432: connect: connection refused", "service_name": "payment-api"}`
		rec := do(t, srv, http.MethodPost, "/api/v1/resolve", body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp struct {
			LogID        uint   `json:"log_id"`
			RootCause    string `json:"root_cause"`
			ResolutionID *uint  `json:"resolution_id"`
			SimilarLogs  []struct {
				ID uint `json:"id"`
			} `json:"similar_logs"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

		assert.Zero(t, resp.LogID)
		assert.Nil(t, resp.ResolutionID)
		assert.NotEmpty(t, resp.RootCause)
		assert.NotEmpty(t, resp.SimilarLogs, "family entries should be retrieved for ad-hoc text")
	})

	t.Run("listing filters by service", func(t *testing.T) {
		rec := do(t, srv, http.MethodGet, "/api/v1/logs?service_name=payment-api", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Logs []struct {
				ID          uint   `json:"id"`
				ServiceName string `json:"service_name"`
			} `json:"logs"`
			Total int64 `json:"total"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

		// Two structured payment-api entries plus the unstructured one.
		assert.Equal(t, int64(3), resp.Total)
		require.Len(t, resp.Logs, 3)
		for _, entry := range resp.Logs {
			assert.Equal(t, "payment-api", entry.ServiceName)
		}
		assert.Greater(t, resp.Logs[0].ID, resp.Logs[2].ID, "newest first")
	})

	t.Run("get by id", func(t *testing.T) {
		rec := do(t, srv, http.MethodGet, fmt.Sprintf("/api/v1/logs/%d", ids[3]), "")
		require.Equal(t, http.StatusOK, rec.Code)

		var entry struct {
			ServiceName string `json:"service_name"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
		assert.Equal(t, "search-indexer", entry.ServiceName)

		missing := do(t, srv, http.MethodGet, "/api/v1/logs/999999", "")
		assert.Equal(t, http.StatusNotFound, missing.Code)
	})

	t.Run("health reflects live components", func(t *testing.T) {
		rec := do(t, srv, http.MethodGet, "/health", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Status           string `json:"status"`
			Database         string `json:"database"`
			VectorStore      string `json:"vector_store"`
			EmbeddingService string `json:"embedding_service"`
			LLMService       string `json:"llm_service"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, "healthy", resp.Database)
		assert.Contains(t, resp.VectorStore, "embeddings")
		assert.Equal(t, fmt.Sprintf("healthy (dim=%d)", embedDim), resp.EmbeddingService)
		assert.Equal(t, "configured", resp.LLMService)
	})
}
