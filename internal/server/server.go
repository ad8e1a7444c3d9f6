// Package server exposes the resolvd pipeline over a REST API: log
// ingestion, resolution, similarity analysis, and health.
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/resolvd/internal/ingest"
	"github.com/fyrsmithlabs/resolvd/internal/resolver"
	"github.com/fyrsmithlabs/resolvd/internal/retriever"
	"github.com/fyrsmithlabs/resolvd/internal/store"
	"github.com/fyrsmithlabs/resolvd/internal/vectorstore"
)

// Top-k bounds for resolve and analysis requests.
const (
	defaultTopK = 5
	maxTopK     = 20
)

const (
	defaultPort             = 8000
	defaultPatternThreshold = 0.7
)

// Resolver runs the resolution pipeline.
type Resolver interface {
	ResolveText(ctx context.Context, logText, serviceName string, topK int) (*resolver.Result, error)
	ResolveLogEntry(ctx context.Context, entry *store.LogEntry, topK int) (*resolver.Result, error)
}

// Ingestor stores logs through the ingestion pipeline.
type Ingestor interface {
	Ingest(ctx context.Context, input ingest.StructuredLog) (*store.LogEntry, error)
	IngestText(ctx context.Context, logText, serviceName string, metadata map[string]any) (*store.LogEntry, error)
}

// LogReader loads stored log entries.
type LogReader interface {
	Get(ctx context.Context, id uint) (*store.LogEntry, error)
	List(ctx context.Context, filter store.LogFilter) ([]store.LogEntry, error)
	Count(ctx context.Context, filter store.LogFilter) (int64, error)
}

// ResolutionReader loads stored resolution history.
type ResolutionReader interface {
	ListByLogEntry(ctx context.Context, logEntryID uint) ([]store.ResolutionRecord, error)
}

// Searcher finds similar historical logs for analysis.
type Searcher interface {
	RetrieveSimilar(ctx context.Context, queryText string, topK int, filter map[string]string) ([]vectorstore.Hit, error)
}

var (
	_ Resolver         = (*resolver.Service)(nil)
	_ Ingestor         = (*ingest.Service)(nil)
	_ LogReader        = (*store.LogRepository)(nil)
	_ ResolutionReader = (*store.ResolutionRepository)(nil)
	_ Searcher         = (*retriever.Retriever)(nil)
)

// Deps carries the capabilities behind the HTTP surface.
type Deps struct {
	Resolver    Resolver
	Ingestor    Ingestor
	Logs        LogReader
	Resolutions ResolutionReader
	Searcher    Searcher
	Probes      Probes
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// RateLimit is the per-client request budget in requests per
	// second. Zero disables rate limiting.
	RateLimit float64
	// PatternThreshold is the similarity above which an analysis match
	// counts toward a recurring pattern.
	PatternThreshold float64
	// Version is reported by the health endpoint.
	Version string
}

// Server exposes the resolvd REST API.
type Server struct {
	echo    *echo.Echo
	deps    Deps
	metrics *Metrics
	logger  *zap.Logger
	config  Config
}

// New creates the HTTP server with its middleware and routes.
func New(deps Deps, cfg *Config, logger *zap.Logger) (*Server, error) {
	if deps.Resolver == nil {
		return nil, fmt.Errorf("resolver cannot be nil")
	}
	if deps.Ingestor == nil {
		return nil, fmt.Errorf("ingestor cannot be nil")
	}
	if deps.Logs == nil {
		return nil, fmt.Errorf("log reader cannot be nil")
	}
	if deps.Resolutions == nil {
		return nil, fmt.Errorf("resolution reader cannot be nil")
	}
	if deps.Searcher == nil {
		return nil, fmt.Errorf("searcher cannot be nil")
	}
	if deps.Probes.DB == nil || deps.Probes.Index == nil || deps.Probes.Embedder == nil {
		return nil, fmt.Errorf("health probes are incomplete")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}

	conf := Config{Port: defaultPort}
	if cfg != nil {
		conf = *cfg
	}
	if conf.PatternThreshold == 0 {
		conf.PatternThreshold = defaultPatternThreshold
	}
	if conf.Version == "" {
		conf.Version = "dev"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	metrics := NewMetrics(logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(metrics.Middleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})
	if conf.RateLimit > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(conf.RateLimit))))
	}

	s := &Server{
		echo:    e,
		deps:    deps,
		metrics: metrics,
		logger:  logger,
		config:  conf,
	}
	s.registerRoutes()

	return s, nil
}

// Start begins serving and blocks until Shutdown or a listener error.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Echo returns the underlying Echo instance, for serving requests
// directly in tests or mounting additional routes.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
