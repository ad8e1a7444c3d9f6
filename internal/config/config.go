// Package config provides configuration loading for resolvd.
//
// Configuration is loaded from a YAML file with environment variable
// overrides and hardcoded defaults. It covers the HTTP server, the log
// database, the vector store, embedding and completion providers, and the
// resolution pipeline itself.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Vector store providers supported by the vectorstore section.
const (
	VectorStoreChromem = "chromem"
	VectorStoreQdrant  = "qdrant"
)

// Embedding providers supported by the embeddings section.
const (
	EmbeddingsFastEmbed = "fastembed"
	EmbeddingsTEI       = "tei"
	EmbeddingsOpenAI    = "openai"
)

// Database drivers supported by the database section.
const (
	DatabaseSQLite   = "sqlite"
	DatabasePostgres = "postgres"
)

// Config holds the complete resolvd configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Database      DatabaseConfig      `koanf:"database"`
	VectorStore   VectorStoreConfig   `koanf:"vectorstore"`
	Embeddings    EmbeddingsConfig    `koanf:"embeddings"`
	LLM           LLMConfig           `koanf:"llm"`
	Resolver      ResolverConfig      `koanf:"resolver"`
	Analysis      AnalysisConfig      `koanf:"analysis"`
	Ingest        IngestConfig        `koanf:"ingest"`
	Events        EventsConfig        `koanf:"events"`
	Scrubber      ScrubberConfig      `koanf:"scrubber"`
	Logging       LoggingConfig       `koanf:"logging"`
	Observability ObservabilityConfig `koanf:"observability"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// RateLimit is the per-second request budget enforced by the HTTP
	// layer. Zero disables rate limiting.
	RateLimit float64 `koanf:"rate_limit"`
}

// DatabaseConfig holds relational database configuration for log entries
// and resolution history.
type DatabaseConfig struct {
	// Driver selects the GORM driver: "sqlite" (default) or "postgres".
	Driver string `koanf:"driver"`
	// Path is the SQLite database file. Ignored for postgres.
	Path string `koanf:"path"`
	// DSN is the postgres connection string. Ignored for sqlite.
	DSN Secret `koanf:"dsn"`
}

// VectorStoreConfig holds vector database configuration.
type VectorStoreConfig struct {
	// Provider selects the backend: "chromem" (embedded, default) or
	// "qdrant" (external server).
	Provider   string        `koanf:"provider"`
	Collection string        `koanf:"collection"`
	VectorSize int           `koanf:"vector_size"`
	Chromem    ChromemConfig `koanf:"chromem"`
	Qdrant     QdrantConfig  `koanf:"qdrant"`
}

// ChromemConfig holds configuration for the embedded chromem-go store.
type ChromemConfig struct {
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`
}

// QdrantConfig holds configuration for an external Qdrant server.
type QdrantConfig struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	APIKey Secret `koanf:"api_key"`
	UseTLS bool   `koanf:"use_tls"`
}

// EmbeddingsConfig holds embedding provider configuration.
type EmbeddingsConfig struct {
	// Provider selects the embedder: "fastembed" (local ONNX, default),
	// "tei" (HuggingFace Text Embeddings Inference) or "openai"
	// (OpenAI-compatible embeddings endpoint).
	Provider string   `koanf:"provider"`
	BaseURL  string   `koanf:"base_url"`
	Model    string   `koanf:"model"`
	APIKey   Secret   `koanf:"api_key"`
	CacheDir string   `koanf:"cache_dir"`
	Timeout  Duration `koanf:"timeout"`
}

// LLMConfig holds completion provider configuration for resolution
// generation. Any OpenAI-compatible chat completions endpoint works.
type LLMConfig struct {
	BaseURL     string   `koanf:"base_url"`
	Model       string   `koanf:"model"`
	APIKey      Secret   `koanf:"api_key"`
	MaxTokens   int      `koanf:"max_tokens"`
	Temperature float64  `koanf:"temperature"`
	Timeout     Duration `koanf:"timeout"`
}

// ResolverConfig holds resolution pipeline configuration.
type ResolverConfig struct {
	// TopK is the default number of similar log entries retrieved as
	// context for resolution. Requests may override it within 1-20.
	TopK int `koanf:"top_k"`
	// MinSimilarity filters retrieved matches below this score.
	MinSimilarity float64 `koanf:"min_similarity"`
	// MaxContextLength caps the prompt context block in characters.
	MaxContextLength int `koanf:"max_context_length"`
}

// AnalysisConfig holds similarity analysis configuration.
type AnalysisConfig struct {
	// PatternThreshold is the similarity above which matches count as a
	// recurring pattern.
	PatternThreshold float64 `koanf:"pattern_threshold"`
}

// IngestConfig holds log ingestion configuration.
type IngestConfig struct {
	// SpoolDir is a directory watched for dropped log files. Empty
	// disables the watcher.
	SpoolDir string `koanf:"spool_dir"`
	Watch    bool   `koanf:"watch"`
}

// EventsConfig holds NATS event publishing configuration.
type EventsConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`
}

// ScrubberConfig holds secret scrubbing configuration for ingested logs.
// Scrubbing is on unless explicitly disabled.
type ScrubberConfig struct {
	Disabled bool `koanf:"disabled"`
	// AllowlistPath points to an optional TOML file with paths, regexes
	// and stop words excluded from detection.
	AllowlistPath string `koanf:"allowlist_path"`
}

// LoggingConfig holds structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum level emitted: debug, info, warn or error.
	Level string `koanf:"level"`
	// Format selects the encoder: "json" or "console".
	Format string `koanf:"format"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	ServiceName     string `koanf:"service_name"`
	// OTLPEndpoint is the collector endpoint (host:port). Empty keeps
	// telemetry local (no export).
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	// OTLPProtocol selects the exporter transport: "grpc" or "http".
	OTLPProtocol string  `koanf:"otlp_protocol"`
	Insecure     bool    `koanf:"insecure"`
	SampleRate   float64 `koanf:"sample_rate"`
}

// Validate checks the configuration for values that would fail at runtime.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("rate limit must be non-negative, got %v", c.Server.RateLimit)
	}

	switch c.Database.Driver {
	case DatabaseSQLite:
		if c.Database.Path == "" {
			return errors.New("database path required for sqlite driver")
		}
	case DatabasePostgres:
		if !c.Database.DSN.IsSet() {
			return errors.New("database dsn required for postgres driver")
		}
	default:
		return fmt.Errorf("unknown database driver: %q", c.Database.Driver)
	}

	switch c.VectorStore.Provider {
	case VectorStoreChromem:
		if c.VectorStore.Chromem.Path == "" {
			return errors.New("chromem path required")
		}
	case VectorStoreQdrant:
		if c.VectorStore.Qdrant.Host == "" {
			return errors.New("qdrant host required")
		}
		if c.VectorStore.Qdrant.Port < 1 || c.VectorStore.Qdrant.Port > 65535 {
			return fmt.Errorf("invalid qdrant port: %d", c.VectorStore.Qdrant.Port)
		}
	default:
		return fmt.Errorf("unknown vector store provider: %q", c.VectorStore.Provider)
	}
	if c.VectorStore.Collection == "" {
		return errors.New("vector store collection required")
	}
	if c.VectorStore.VectorSize <= 0 {
		return fmt.Errorf("vector size must be positive, got %d", c.VectorStore.VectorSize)
	}

	switch c.Embeddings.Provider {
	case EmbeddingsFastEmbed:
		// Local provider, base URL not required.
	case EmbeddingsTEI, EmbeddingsOpenAI:
		if c.Embeddings.BaseURL == "" {
			return fmt.Errorf("embeddings base_url required for %s provider", c.Embeddings.Provider)
		}
	default:
		return fmt.Errorf("unknown embeddings provider: %q", c.Embeddings.Provider)
	}
	if c.Embeddings.Model == "" {
		return errors.New("embeddings model required")
	}

	if c.LLM.BaseURL == "" {
		return errors.New("llm base_url required")
	}
	if c.LLM.Model == "" {
		return errors.New("llm model required")
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm max_tokens must be positive, got %d", c.LLM.MaxTokens)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm temperature must be in [0, 2], got %v", c.LLM.Temperature)
	}

	if c.Resolver.TopK < 1 || c.Resolver.TopK > 20 {
		return fmt.Errorf("resolver top_k must be in [1, 20], got %d", c.Resolver.TopK)
	}
	if c.Resolver.MinSimilarity < 0 || c.Resolver.MinSimilarity > 1 {
		return fmt.Errorf("resolver min_similarity must be in [0, 1], got %v", c.Resolver.MinSimilarity)
	}
	if c.Resolver.MaxContextLength <= 0 {
		return fmt.Errorf("resolver max_context_length must be positive, got %d", c.Resolver.MaxContextLength)
	}

	if c.Analysis.PatternThreshold < 0 || c.Analysis.PatternThreshold > 1 {
		return fmt.Errorf("analysis pattern_threshold must be in [0, 1], got %v", c.Analysis.PatternThreshold)
	}

	if c.Events.Enabled && c.Events.URL == "" {
		return errors.New("events url required when events are enabled")
	}

	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}
	if c.Observability.SampleRate < 0 || c.Observability.SampleRate > 1 {
		return fmt.Errorf("sample rate must be in [0, 1], got %v", c.Observability.SampleRate)
	}

	return nil
}
