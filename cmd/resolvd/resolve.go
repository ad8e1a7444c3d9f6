package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/resolvd/internal/resolution"
	"github.com/fyrsmithlabs/resolvd/internal/resolver"
	"github.com/fyrsmithlabs/resolvd/internal/retriever"
)

var (
	resolveText    string
	resolveService string
	resolveTopK    int
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve an error log from the command line",
	Long: `Run the resolution pipeline once against raw log text and print the
result as JSON.

The text is embedded, similar historical logs are retrieved from the
vector index, and the completion model proposes a root cause and fix
grounded in those matches. Nothing is persisted.

Examples:
  # Resolve pasted text
  resolvd resolve --text "ERROR: connection refused to db-primary:5432"

  # Pipe a log line in
  tail -n 1 /var/log/app/error.log | resolvd resolve --service payment-api

  # Wider retrieval context
  resolvd resolve --text "..." --top-k 10`,
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolveText, "text", "", "raw log text to resolve (reads stdin when empty)")
	resolveCmd.Flags().StringVar(&resolveService, "service", "", "service name hint for the resolution context")
	resolveCmd.Flags().IntVar(&resolveTopK, "top-k", 0, "similar logs to retrieve, 1-20 (config default when 0)")
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	text := resolveText
	if text == "" {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading log text from stdin: %w", err)
		}
		text = strings.TrimSpace(string(raw))
	}
	if text == "" {
		return fmt.Errorf("no log text to resolve: pass --text or pipe input")
	}

	if !cfg.LLM.APIKey.IsSet() {
		return fmt.Errorf("llm api_key is required: set LLM_API_KEY or llm.api_key in the config file")
	}

	logger, err := quietLogger(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()
	zlog := serviceLogger(logger)

	provider, err := newEmbeddingProvider(cfg, zlog)
	if err != nil {
		return err
	}
	defer provider.Close()

	index, err := newVectorStore(cfg, zlog)
	if err != nil {
		return err
	}
	defer index.Close()

	client, err := resolution.NewOpenAIClient(resolution.OpenAIClientConfig{
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey.Value(),
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout.Duration(),
	})
	if err != nil {
		return fmt.Errorf("creating completion client: %w", err)
	}
	engine := resolution.NewEngine(client, cfg.Resolver.MaxContextLength, zlog)

	// Ad-hoc resolution: no resolution store, no event publisher.
	svc := resolver.New(retriever.New(provider, index, zlog), engine, nil, nil, resolver.Config{
		TopK:          cfg.Resolver.TopK,
		MinSimilarity: cfg.Resolver.MinSimilarity,
	}, zlog)

	result, err := svc.ResolveText(ctx, text, resolveService, resolveTopK)
	if err != nil {
		return fmt.Errorf("resolving log text: %w", err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
