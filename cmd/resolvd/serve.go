package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/resolvd/internal/config"
	"github.com/fyrsmithlabs/resolvd/internal/embeddings"
	"github.com/fyrsmithlabs/resolvd/internal/events"
	"github.com/fyrsmithlabs/resolvd/internal/ingest"
	"github.com/fyrsmithlabs/resolvd/internal/resolution"
	"github.com/fyrsmithlabs/resolvd/internal/resolver"
	"github.com/fyrsmithlabs/resolvd/internal/retriever"
	"github.com/fyrsmithlabs/resolvd/internal/server"
	"github.com/fyrsmithlabs/resolvd/internal/store"
	"github.com/fyrsmithlabs/resolvd/internal/telemetry"
	"github.com/fyrsmithlabs/resolvd/internal/vectorstore"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the resolvd HTTP server",
	Long: `Start the resolvd daemon: the REST API, health and metrics endpoints,
and the optional spool-directory watcher for dropped log files.

Examples:
  # Start with defaults (sqlite + embedded vector store)
  resolvd serve

  # Override the port
  SERVER_HTTP_PORT=9000 resolvd serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return run(ctx)
}

// run starts the resolvd server and blocks until the context is
// cancelled.
//
// This function initializes all dependencies explicitly:
//  1. Loads and validates configuration
//  2. Initializes telemetry and the structured logger
//  3. Opens the log database and vector index
//  4. Creates the embedding provider and completion engine
//  5. Wires the ingestion and resolution pipelines
//  6. Starts the HTTP server and the spool watcher
//  7. Performs graceful shutdown on context cancellation
func run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Create the config directory up front so the embedded database and
	// vector store land under owner-only permissions.
	if err := config.EnsureConfigDir(); err != nil {
		return fmt.Errorf("preparing config directory: %w", err)
	}

	tel, err := initTelemetry(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tel.Shutdown(shutdownCtx)
	}()

	logger, err := initLogger(cfg, tel.LoggerProvider())
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()
	zlog := serviceLogger(logger)

	zlog.Info("starting resolvd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout))

	deps, err := initDependencies(cfg, zlog)
	if err != nil {
		return fmt.Errorf("initializing dependencies: %w", err)
	}
	defer deps.Close()

	zlog.Info("dependencies initialized",
		zap.String("database", cfg.Database.Driver),
		zap.String("vector_store", cfg.VectorStore.Provider),
		zap.String("embeddings", cfg.Embeddings.Provider),
		zap.Bool("events_connected", deps.publisher != nil),
		zap.Bool("llm_configured", cfg.LLM.APIKey.IsSet()))

	srv, err := server.New(server.Deps{
		Resolver:    deps.resolverSvc,
		Ingestor:    deps.ingestSvc,
		Logs:        deps.logs,
		Resolutions: deps.resolutions,
		Searcher:    deps.searcher,
		Probes: server.Probes{
			DB:            deps.store,
			Index:         deps.index,
			Embedder:      deps.provider,
			LLMConfigured: cfg.LLM.APIKey.IsSet(),
		},
	}, &server.Config{
		Port:             cfg.Server.Port,
		RateLimit:        cfg.Server.RateLimit,
		PatternThreshold: cfg.Analysis.PatternThreshold,
		Version:          version,
	}, zlog)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	if cfg.Ingest.SpoolDir != "" && cfg.Ingest.Watch {
		watcher, err := ingest.NewWatcher(cfg.Ingest.SpoolDir, 0, deps.ingestSvc, zlog)
		if err != nil {
			return fmt.Errorf("creating spool watcher: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("starting spool watcher: %w", err)
		}
		defer watcher.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	zlog.Info("server configured",
		zap.String("health_endpoint", fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port)),
		zap.String("api_prefix", "/api/v1"),
		zap.String("metrics_endpoint", "/metrics"))

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	zlog.Info("shutting down", zap.Duration("timeout", cfg.Server.ShutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// dependencies holds the infrastructure and pipeline services behind
// the HTTP server.
type dependencies struct {
	store     *store.Store
	provider  embeddings.Provider
	index     vectorstore.Store
	publisher events.Publisher

	logs        *store.LogRepository
	resolutions *store.ResolutionRepository
	searcher    *retriever.Retriever
	ingestSvc   *ingest.Service
	resolverSvc *resolver.Service
}

// Close releases infrastructure resources in reverse construction
// order.
func (d *dependencies) Close() {
	if d.publisher != nil {
		d.publisher.Close()
	}
	if d.index != nil {
		_ = d.index.Close()
	}
	if d.provider != nil {
		_ = d.provider.Close()
	}
	if d.store != nil {
		_ = d.store.Close()
	}
}

// initDependencies opens the stores and wires the ingestion and
// resolution pipelines.
func initDependencies(cfg *config.Config, logger *zap.Logger) (*dependencies, error) {
	d := &dependencies{}

	st, err := store.Open(store.Config{
		Driver: cfg.Database.Driver,
		Path:   cfg.Database.Path,
		DSN:    cfg.Database.DSN.Value(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	d.store = st
	d.logs = store.NewLogRepository(st, logger)
	d.resolutions = store.NewResolutionRepository(st, logger)

	provider, err := newEmbeddingProvider(cfg, logger)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.provider = provider

	// A mismatch here means queries and stored vectors live in different
	// spaces; surfaced at startup instead of as empty search results.
	if dim := provider.Dimension(); dim != cfg.VectorStore.VectorSize {
		logger.Warn("embedding dimension does not match vector store configuration",
			zap.Int("model_dimension", dim),
			zap.Int("configured_vector_size", cfg.VectorStore.VectorSize))
	}

	index, err := newVectorStore(cfg, logger)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.index = index

	if cfg.Events.Enabled {
		publisher, err := events.NewNATSPublisher(events.Config{URL: cfg.Events.URL}, logger)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("connecting event publisher: %w", err)
		}
		d.publisher = publisher
	}

	scrubber, err := newScrubber(cfg)
	if err != nil {
		d.Close()
		return nil, err
	}

	engine, err := newResolutionEngine(cfg, logger)
	if err != nil {
		d.Close()
		return nil, err
	}

	d.searcher = retriever.New(provider, index, logger)
	d.ingestSvc = ingest.New(d.logs, provider, index, scrubber, d.publisher, logger)
	d.resolverSvc = resolver.New(d.searcher, engine, d.resolutions, d.publisher, resolver.Config{
		TopK:          cfg.Resolver.TopK,
		MinSimilarity: cfg.Resolver.MinSimilarity,
	}, logger)

	return d, nil
}

// newResolutionEngine builds the completion engine. Without an API key
// the server still starts: health reports the llm as not_configured
// and resolution requests fail with a generation error.
func newResolutionEngine(cfg *config.Config, logger *zap.Logger) (*resolution.Engine, error) {
	if !cfg.LLM.APIKey.IsSet() {
		logger.Warn("llm api_key not set, resolution requests will fail until one is configured")
		return resolution.NewEngine(unconfiguredCompletion{}, cfg.Resolver.MaxContextLength, logger), nil
	}

	client, err := resolution.NewOpenAIClient(resolution.OpenAIClientConfig{
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey.Value(),
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout.Duration(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating completion client: %w", err)
	}
	return resolution.NewEngine(client, cfg.Resolver.MaxContextLength, logger), nil
}

// unconfiguredCompletion fails every completion until an LLM API key
// is configured.
type unconfiguredCompletion struct{}

func (unconfiguredCompletion) Complete(ctx context.Context, system, user string) (string, error) {
	return "", errors.New("llm api_key not configured")
}

// initTelemetry builds the OTEL providers from the observability
// section. Export needs a collector endpoint; without one the no-op
// global providers stay installed.
func initTelemetry(ctx context.Context, cfg *config.Config) (*telemetry.Telemetry, error) {
	telCfg := telemetry.NewDefaultConfig()
	telCfg.Enabled = cfg.Observability.EnableTelemetry && cfg.Observability.OTLPEndpoint != ""
	if cfg.Observability.OTLPEndpoint != "" {
		telCfg.Endpoint = cfg.Observability.OTLPEndpoint
	}
	if cfg.Observability.ServiceName != "" {
		telCfg.ServiceName = cfg.Observability.ServiceName
	}
	telCfg.ServiceVersion = version
	telCfg.Insecure = cfg.Observability.Insecure
	telCfg.Sampling.Rate = cfg.Observability.SampleRate

	switch cfg.Observability.OTLPProtocol {
	case "http":
		telCfg.Protocol = "http/protobuf"
	default:
		telCfg.Protocol = "grpc"
	}

	return telemetry.New(ctx, telCfg)
}
