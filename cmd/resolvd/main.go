// Resolvd is a retrieval-augmented resolution daemon for application
// error logs.
//
// The serve command starts the HTTP API: logs are ingested, scrubbed,
// normalized, embedded, and indexed; resolution requests retrieve
// similar historical failures and ask a completion model for a root
// cause and fix. The resolve and seed commands run slices of the same
// pipeline from the command line.
//
// Configuration is loaded from ~/.config/resolvd/config.yaml with
// environment variable overrides. See internal/config for details.
//
// Usage:
//
//	# Start the server with defaults (sqlite + embedded vector store)
//	resolvd serve
//
//	# Configure via environment
//	SERVER_HTTP_PORT=9000 LLM_API_KEY=sk-... resolvd serve
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/resolvd/internal/config"
	"github.com/fyrsmithlabs/resolvd/internal/embeddings"
	"github.com/fyrsmithlabs/resolvd/internal/logging"
	"github.com/fyrsmithlabs/resolvd/internal/secrets"
	"github.com/fyrsmithlabs/resolvd/internal/vectorstore"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// configPath is the --config flag value. Empty uses the default path.
var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "resolvd",
	Short: "Retrieval-augmented resolution for application error logs",
	Long: `resolvd ingests application error logs, indexes them for similarity
search, and uses a completion model to propose root causes and fixes
grounded in similar historical failures.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/resolvd/config.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(versionCmd)
}

// versionCmd prints full version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("resolvd by Fyrsmith Labs\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
	},
}

// loadConfig loads configuration from the --config file (or the
// default path) with environment overrides applied.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, nil
}

// initLogger builds the structured logger from the logging section.
// otelProvider can be nil to disable the OTEL log bridge.
func initLogger(cfg *config.Config, otelProvider log.LoggerProvider) (*logging.Logger, error) {
	level, err := logging.LevelFromString(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Logging.Level, err)
	}
	return buildLogger(cfg, level, otelProvider)
}

// quietLogger clamps the configured level to warn. One-shot commands
// print their result on stdout, so routine pipeline logs stay out of
// the stream.
func quietLogger(cfg *config.Config) (*logging.Logger, error) {
	level, err := logging.LevelFromString(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Logging.Level, err)
	}
	if level < zapcore.WarnLevel {
		level = zapcore.WarnLevel
	}
	return buildLogger(cfg, level, nil)
}

func buildLogger(cfg *config.Config, level zapcore.Level, otelProvider log.LoggerProvider) (*logging.Logger, error) {
	logCfg := logging.NewDefaultConfig()
	logCfg.Level = level
	logCfg.Format = cfg.Logging.Format
	logCfg.Output.OTEL = otelProvider != nil

	logger, err := logging.NewLogger(logCfg, otelProvider)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	return logger, nil
}

// serviceLogger returns the bare zap logger handed to services. The
// wrapper's caller skip is unwound because services log through zap
// directly rather than through the logging.Logger methods.
func serviceLogger(l *logging.Logger) *zap.Logger {
	return l.Underlying().WithOptions(zap.AddCallerSkip(-1))
}

// newEmbeddingProvider builds the configured embedding provider.
func newEmbeddingProvider(cfg *config.Config, logger *zap.Logger) (embeddings.Provider, error) {
	provider, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider: cfg.Embeddings.Provider,
		Model:    cfg.Embeddings.Model,
		BaseURL:  cfg.Embeddings.BaseURL,
		APIKey:   cfg.Embeddings.APIKey.Value(),
		CacheDir: cfg.Embeddings.CacheDir,
		Timeout:  cfg.Embeddings.Timeout.Duration(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}
	return provider, nil
}

// newVectorStore builds the configured vector index backend.
func newVectorStore(cfg *config.Config, logger *zap.Logger) (vectorstore.Store, error) {
	switch cfg.VectorStore.Provider {
	case config.VectorStoreChromem:
		s, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
			Path:       cfg.VectorStore.Chromem.Path,
			Compress:   cfg.VectorStore.Chromem.Compress,
			Collection: cfg.VectorStore.Collection,
			VectorSize: cfg.VectorStore.VectorSize,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("creating chromem store: %w", err)
		}
		return s, nil
	case config.VectorStoreQdrant:
		s, err := vectorstore.NewQdrantStore(vectorstore.QdrantConfig{
			Host:       cfg.VectorStore.Qdrant.Host,
			Port:       cfg.VectorStore.Qdrant.Port,
			APIKey:     cfg.VectorStore.Qdrant.APIKey.Value(),
			UseTLS:     cfg.VectorStore.Qdrant.UseTLS,
			Collection: cfg.VectorStore.Collection,
			VectorSize: uint64(cfg.VectorStore.VectorSize),
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("creating qdrant store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown vector store provider: %q", cfg.VectorStore.Provider)
	}
}

// newScrubber builds the secret scrubber applied to ingested logs.
func newScrubber(cfg *config.Config) (secrets.Scrubber, error) {
	scrubCfg := &secrets.Config{Enabled: !cfg.Scrubber.Disabled}
	if cfg.Scrubber.AllowlistPath != "" {
		scrubCfg.AllowlistPaths = []string{cfg.Scrubber.AllowlistPath}
	}

	scrubber, err := secrets.New(scrubCfg)
	if err != nil {
		return nil, fmt.Errorf("creating secret scrubber: %w", err)
	}
	return scrubber, nil
}
