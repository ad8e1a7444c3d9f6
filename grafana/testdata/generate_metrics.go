// Generates sample metrics for exercising the Grafana dashboards
// without a live resolvd deployment. It serves a /metrics endpoint with
// the same families the daemon exports and keeps them moving so rate()
// panels have something to show.
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Ingestion metrics
	ingestLogs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolvd_ingest_logs_total",
			Help: "Total log entries ingested",
		},
		[]string{"service_name", "error_level", "source"},
	)
	ingestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resolvd_ingest_duration_seconds",
			Help:    "Ingestion pipeline duration (scrub, normalize, embed, index)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service_name"},
	)
	ingestErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolvd_ingest_errors_total",
			Help: "Total ingestion failures by pipeline stage",
		},
		[]string{"stage", "reason"},
	)
	logEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "resolvd_log_entries",
			Help: "Current number of stored log entries",
		},
		[]string{"service_name"},
	)

	// Retrieval metrics
	retrievalSearches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolvd_retrieval_searches_total",
			Help: "Total similarity searches",
		},
		[]string{"result_count"},
	)
	retrievalSimilarity = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "resolvd_retrieval_similarity_score",
			Help:    "Similarity score distribution of returned matches",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)
	retrievalDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "resolvd_retrieval_duration_seconds",
			Help:    "Similarity search latency including query embedding",
			Buckets: prometheus.DefBuckets,
		},
	)
	vectorIndexSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "resolvd_vector_index_size",
			Help: "Current number of embeddings in the vector index",
		},
	)

	// Resolution metrics
	resolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolvd_resolutions_total",
			Help: "Total resolution requests by outcome",
		},
		[]string{"service_name", "status"},
	)
	resolutionConfidence = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "resolvd_resolution_confidence",
			Help:    "Confidence score distribution of generated resolutions",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)
	resolutionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "resolvd_resolution_duration_seconds",
			Help:    "End-to-end resolution latency including the LLM round trip",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
	)
	llmTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolvd_llm_tokens_total",
			Help: "Total LLM tokens consumed",
		},
		[]string{"direction"},
	)
	patternDetections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolvd_pattern_detections_total",
			Help: "Total recurring-pattern detections during similarity analysis",
		},
		[]string{"service_name"},
	)

	// Event metrics
	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolvd_events_published_total",
			Help: "Total pipeline events published to NATS",
		},
		[]string{"subject", "status"},
	)

	// HTTP server metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolvd_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resolvd_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
	httpActiveRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "resolvd_http_active_requests",
			Help: "Number of currently active HTTP requests",
		},
	)
)

var (
	services = []string{"payment-api", "checkout-worker", "auth-service", "inventory-service", "search-indexer"}
	levels   = []string{"ERROR", "ERROR", "ERROR", "WARNING", "CRITICAL", "FATAL"}
	sources  = []string{"structured", "unstructured", "spool"}
)

func init() {
	prometheus.MustRegister(
		// Ingestion
		ingestLogs,
		ingestDuration,
		ingestErrors,
		logEntries,
		// Retrieval
		retrievalSearches,
		retrievalSimilarity,
		retrievalDuration,
		vectorIndexSize,
		// Resolution
		resolutions,
		resolutionConfidence,
		resolutionDuration,
		llmTokens,
		patternDetections,
		// Events
		eventsPublished,
		// HTTP
		httpRequestsTotal,
		httpRequestDuration,
		httpActiveRequests,
	)
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "9090"
	}

	generateSampleData()

	ctx, cancel := context.WithCancel(context.Background())
	go generateContinuousData(ctx)

	http.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    ":" + port,
		Handler: nil,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		cancel()
		server.Shutdown(context.Background())
	}()

	fmt.Printf("Sample metrics server running on http://localhost:%s/metrics\n", port)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println("\nTo use with Prometheus, add this to prometheus.yml:")
	fmt.Printf("  - job_name: 'resolvd-test'\n    static_configs:\n      - targets: ['localhost:%s']\n", port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal(err)
	}
}

func generateSampleData() {
	stages := []string{"parse", "store", "embed", "index"}
	reasons := []string{"invalid_level", "db_locked", "provider_timeout", "dimension_mismatch"}

	// Ingestion traffic per service
	for i := 0; i < 200; i++ {
		service := randomChoice(services)
		ingestLogs.WithLabelValues(service, randomChoice(levels), randomChoice(sources)).Inc()
		ingestDuration.WithLabelValues(service).Observe(0.02 + rand.Float64()*0.3)
	}
	for i := 0; i < 6; i++ {
		ingestErrors.WithLabelValues(randomChoice(stages), randomChoice(reasons)).Inc()
	}

	// Stored entries and index size track each other loosely
	total := 0
	for _, service := range services {
		n := rand.Intn(400) + 50
		logEntries.WithLabelValues(service).Set(float64(n))
		total += n
	}
	vectorIndexSize.Set(float64(total))

	// Retrieval traffic; most matches cluster high because normalized
	// duplicates dominate real corpora
	for i := 0; i < 120; i++ {
		retrievalSearches.WithLabelValues(fmt.Sprintf("%d", rand.Intn(6))).Inc()
		retrievalDuration.Observe(0.01 + rand.Float64()*0.2)
		retrievalSimilarity.Observe(0.4 + rand.Float64()*0.6)
	}

	// Resolution traffic
	for i := 0; i < 60; i++ {
		service := randomChoice(services)
		status := randomChoice([]string{"success", "success", "success", "parse_fallback", "failure"})
		resolutions.WithLabelValues(service, status).Inc()
		resolutionDuration.Observe(1.0 + rand.Float64()*15.0)
		if status != "failure" {
			resolutionConfidence.Observe(0.3 + rand.Float64()*0.7)
		}
		llmTokens.WithLabelValues("prompt").Add(float64(rand.Intn(2500) + 500))
		llmTokens.WithLabelValues("completion").Add(float64(rand.Intn(400) + 100))
	}
	for i := 0; i < 25; i++ {
		patternDetections.WithLabelValues(randomChoice(services)).Inc()
	}

	// Event stream
	for i := 0; i < 150; i++ {
		subject := randomChoice([]string{"logs.ingested", "logs.ingested", "resolutions.completed"})
		eventsPublished.WithLabelValues(subject, randomChoice([]string{"ok", "ok", "ok", "error"})).Inc()
	}

	// HTTP traffic
	endpoints := []string{"/api/v1/logs", "/api/v1/logs/:id", "/api/v1/resolve", "/api/v1/analysis/:id/similar", "/health"}
	methods := []string{"GET", "POST"}
	statuses := []string{"200", "201", "400", "404", "500"}
	for i := 0; i < 300; i++ {
		endpoint := randomChoice(endpoints)
		method := randomChoice(methods)
		httpRequestsTotal.WithLabelValues(method, endpoint, randomChoice(statuses)).Inc()
		httpRequestDuration.WithLabelValues(method, endpoint).Observe(rand.Float64() * 0.5)
	}
	httpActiveRequests.Set(float64(rand.Intn(5)))
}

func generateContinuousData(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Steady ingestion trickle
			if rand.Float64() > 0.3 {
				service := randomChoice(services)
				ingestLogs.WithLabelValues(service, randomChoice(levels), randomChoice(sources)).Inc()
				ingestDuration.WithLabelValues(service).Observe(0.02 + rand.Float64()*0.3)
				logEntries.WithLabelValues(service).Inc()
				vectorIndexSize.Inc()
			}
			// Occasional search
			if rand.Float64() > 0.5 {
				retrievalSearches.WithLabelValues(fmt.Sprintf("%d", rand.Intn(6))).Inc()
				retrievalDuration.Observe(0.01 + rand.Float64()*0.2)
				retrievalSimilarity.Observe(0.4 + rand.Float64()*0.6)
			}
			// Resolutions arrive in bursts after incidents
			if rand.Float64() > 0.7 {
				service := randomChoice(services)
				status := randomChoice([]string{"success", "success", "success", "parse_fallback", "failure"})
				resolutions.WithLabelValues(service, status).Inc()
				resolutionDuration.Observe(1.0 + rand.Float64()*15.0)
				if status != "failure" {
					resolutionConfidence.Observe(0.3 + rand.Float64()*0.7)
				}
				llmTokens.WithLabelValues("prompt").Add(float64(rand.Intn(2500) + 500))
				llmTokens.WithLabelValues("completion").Add(float64(rand.Intn(400) + 100))
			}
			if rand.Float64() > 0.85 {
				patternDetections.WithLabelValues(randomChoice(services)).Inc()
			}
			if rand.Float64() > 0.4 {
				subject := randomChoice([]string{"logs.ingested", "logs.ingested", "resolutions.completed"})
				eventsPublished.WithLabelValues(subject, "ok").Inc()
			}
			// Background HTTP noise
			if rand.Float64() > 0.2 {
				endpoints := []string{"/api/v1/logs", "/api/v1/resolve", "/health"}
				endpoint := randomChoice(endpoints)
				method := randomChoice([]string{"GET", "POST"})
				httpRequestsTotal.WithLabelValues(method, endpoint, "200").Inc()
				httpRequestDuration.WithLabelValues(method, endpoint).Observe(rand.Float64() * 0.5)
			}
			httpActiveRequests.Set(float64(rand.Intn(5)))
		}
	}
}

func randomChoice(choices []string) string {
	return choices[rand.Intn(len(choices))]
}
