package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/resolvd/internal/embeddings"
	"github.com/fyrsmithlabs/resolvd/internal/store"
	"github.com/fyrsmithlabs/resolvd/internal/vectorstore"
)

// Pinger reports primary-store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// IndexCounter reports how many records the vector index holds.
type IndexCounter interface {
	Count(ctx context.Context) (int, error)
}

// ProbeEmbedder produces one embedding to verify the provider end to end.
type ProbeEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

var (
	_ Pinger        = (*store.Store)(nil)
	_ IndexCounter  = (vectorstore.Store)(nil)
	_ ProbeEmbedder = (embeddings.Provider)(nil)
)

// Probes carries the capabilities the health endpoint checks.
// LLMConfigured reflects whether a completion endpoint is set; the
// health check never spends tokens on a probe completion.
type Probes struct {
	DB            Pinger
	Index         IndexCounter
	Embedder      ProbeEmbedder
	LLMConfigured bool
}

// handleHealth reports component health. The endpoint always answers
// 200; degraded components are visible in the body so dashboards can
// alert without treating the API itself as down.
func (s *Server) handleHealth(c echo.Context) error {
	ctx := c.Request().Context()
	resp := HealthResponse{
		Status:    "ok",
		Version:   s.config.Version,
		Timestamp: time.Now().UTC(),
	}

	if err := s.deps.Probes.DB.Ping(ctx); err != nil {
		s.logger.Warn("health probe failed", zap.String("component", "database"), zap.Error(err))
		resp.Database = "unhealthy"
		resp.Status = "degraded"
	} else {
		resp.Database = "healthy"
	}

	if count, err := s.deps.Probes.Index.Count(ctx); err != nil {
		s.logger.Warn("health probe failed", zap.String("component", "vector_store"), zap.Error(err))
		resp.VectorStore = "unhealthy"
		resp.Status = "degraded"
	} else {
		resp.VectorStore = fmt.Sprintf("healthy (%d embeddings)", count)
	}

	// A real embedding, not a reachability check: the probe fails when
	// the model is missing or the backing service rejects input.
	if vec, err := s.deps.Probes.Embedder.EmbedQuery(ctx, "test"); err != nil {
		s.logger.Warn("health probe failed", zap.String("component", "embedding_service"), zap.Error(err))
		resp.EmbeddingService = "unhealthy"
		resp.Status = "degraded"
	} else {
		resp.EmbeddingService = fmt.Sprintf("healthy (dim=%d)", len(vec))
	}

	if s.deps.Probes.LLMConfigured {
		resp.LLMService = "configured"
	} else {
		resp.LLMService = "not_configured"
		resp.Status = "degraded"
	}

	return c.JSON(http.StatusOK, resp)
}
