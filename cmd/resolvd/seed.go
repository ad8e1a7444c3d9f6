package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/resolvd/internal/config"
	"github.com/fyrsmithlabs/resolvd/internal/ingest"
	"github.com/fyrsmithlabs/resolvd/internal/store"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Ingest a demo corpus of DevOps failures",
	Long: `Ingest a small corpus of realistic DevOps error logs through the full
pipeline: scrub, normalize, store, embed, index.

The corpus gives retrieval something to match against on a fresh
install, so resolve and analysis requests return meaningful similar
logs immediately.

Examples:
  resolvd seed`,
	RunE: runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := config.EnsureConfigDir(); err != nil {
		return fmt.Errorf("preparing config directory: %w", err)
	}

	logger, err := quietLogger(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()
	zlog := serviceLogger(logger)

	st, err := store.Open(store.Config{
		Driver: cfg.Database.Driver,
		Path:   cfg.Database.Path,
		DSN:    cfg.Database.DSN.Value(),
	}, zlog)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

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

	scrubber, err := newScrubber(cfg)
	if err != nil {
		return err
	}

	svc := ingest.New(store.NewLogRepository(st, zlog), provider, index, scrubber, nil, zlog)

	for _, input := range seedCorpus {
		entry, err := svc.Ingest(ctx, input)
		if err != nil {
			return fmt.Errorf("seeding %s log: %w", input.ServiceName, err)
		}
		fmt.Printf("%4d  %-20s  %-8s  %s\n",
			entry.ID, entry.ServiceName, entry.ErrorLevel, truncate(entry.ErrorMessage, 64))
	}

	fmt.Printf("\nSeeded %d log entries.\n", len(seedCorpus))
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// seedCorpus is a demo set of production-shaped failures across a
// handful of services: connectivity, resource exhaustion, locking,
// TLS, and DNS. Several entries share a failure family so similarity
// retrieval has patterns to find.
var seedCorpus = []ingest.StructuredLog{
	{
		ServiceName:  "payment-api",
		ErrorLevel:   "ERROR",
		ErrorMessage: "dial tcp 10.0.3.12:5432: connect: connection refused",
		RawLog:       "2025-08-12T09:14:02Z ERROR payment-api dial tcp 10.0.3.12:5432: connect: connection refused",
		Metadata:     map[string]any{"pod": "payment-api-6d9f4b7c9-xklm2", "namespace": "prod"},
	},
	{
		ServiceName:  "payment-api",
		ErrorLevel:   "ERROR",
		ErrorMessage: "pq: sorry, too many clients already",
		Metadata:     map[string]any{"pool_size": 20, "namespace": "prod"},
	},
	{
		ServiceName:  "auth-service",
		ErrorLevel:   "CRITICAL",
		ErrorMessage: "x509: certificate has expired or is not yet valid: verifying idp.internal",
		Metadata:     map[string]any{"endpoint": "idp.internal:443"},
	},
	{
		ServiceName:  "auth-service",
		ErrorLevel:   "ERROR",
		ErrorMessage: "redis: connection pool timeout after 4.001s",
		Metadata:     map[string]any{"cluster": "sessions", "attempt": 3},
	},
	{
		ServiceName:  "checkout-worker",
		ErrorLevel:   "FATAL",
		ErrorMessage: "runtime: out of memory: cannot allocate 1073741824-byte block",
		RawLog:       "2025-08-13T02:41:17Z FATAL checkout-worker runtime: out of memory: cannot allocate 1073741824-byte block (have 2147483648)",
		Metadata:     map[string]any{"memory_limit": "2Gi", "pod": "checkout-worker-28"},
	},
	{
		ServiceName:  "checkout-worker",
		ErrorLevel:   "ERROR",
		ErrorMessage: "context deadline exceeded calling inventory-service: Post \"http://inventory-service:8080/api/v1/reserve\": context deadline exceeded",
		Metadata:     map[string]any{"timeout": "5s", "upstream": "inventory-service"},
	},
	{
		ServiceName:  "inventory-service",
		ErrorLevel:   "ERROR",
		ErrorMessage: "deadlock detected: process 4182 waits for ShareLock on transaction 9812, blocked by process 4187",
		Metadata:     map[string]any{"table": "stock_levels"},
	},
	{
		ServiceName:  "inventory-service",
		ErrorLevel:   "WARNING",
		ErrorMessage: "slow query (12.4s): SELECT sku, quantity FROM stock_levels WHERE warehouse_id = $1 FOR UPDATE",
		Metadata:     map[string]any{"duration_ms": 12400},
	},
	{
		ServiceName:  "notification-service",
		ErrorLevel:   "ERROR",
		ErrorMessage: "dial tcp: lookup smtp.internal on 10.96.0.10:53: no such host",
		Metadata:     map[string]any{"resolver": "cluster-dns"},
	},
	{
		ServiceName:  "api-gateway",
		ErrorLevel:   "ERROR",
		ErrorMessage: "upstream connect error or disconnect/reset before headers. reset reason: connection failure",
		Metadata:     map[string]any{"upstream": "payment-api", "route": "/v1/charge"},
	},
	{
		ServiceName:  "search-indexer",
		ErrorLevel:   "ERROR",
		ErrorMessage: "write /var/lib/search/segments/seg_0451.tmp: no space left on device",
		Metadata:     map[string]any{"volume": "search-data", "usage_pct": 100},
	},
	{
		ServiceName:  "billing-cron",
		ErrorLevel:   "ERROR",
		ErrorMessage: "failed to acquire advisory lock 7421: another run is still active",
		Metadata:     map[string]any{"job": "invoice-rollup", "schedule": "hourly"},
	},
}
