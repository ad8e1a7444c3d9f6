package resolver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/resolvd/internal/events"
	"github.com/fyrsmithlabs/resolvd/internal/lognorm"
	"github.com/fyrsmithlabs/resolvd/internal/resolution"
	"github.com/fyrsmithlabs/resolvd/internal/retriever"
	"github.com/fyrsmithlabs/resolvd/internal/store"
	"github.com/fyrsmithlabs/resolvd/internal/vectorstore"
)

var tracer = otel.Tracer("resolvd.resolver")

// ErrResolution indicates the resolution pipeline failed at the
// retrieval or generation stage. Persistence failures never carry it;
// they are absorbed.
var ErrResolution = errors.New("resolution failed")

// Top-k bounds for similar-log retrieval.
const (
	defaultTopK = 5
	maxTopK     = 20
)

// Searcher finds the nearest historical logs for a query text.
type Searcher interface {
	RetrieveSimilar(ctx context.Context, queryText string, topK int, filter map[string]string) ([]vectorstore.Hit, error)
}

// Generator produces a resolution from an error message and its
// similar historical matches.
type Generator interface {
	Generate(ctx context.Context, errorMessage string, matches []retriever.SimilarMatch, extraContext string) (resolution.Resolution, error)
}

// ResolutionWriter persists finished resolutions.
type ResolutionWriter interface {
	Create(ctx context.Context, rec *store.ResolutionRecord) error
}

var (
	_ Searcher         = (*retriever.Retriever)(nil)
	_ Generator        = (*resolution.Engine)(nil)
	_ ResolutionWriter = (*store.ResolutionRepository)(nil)
)

// Config tunes resolution orchestration.
type Config struct {
	// TopK is the similar-log count used when a caller passes 0.
	TopK int
	// MinSimilarity drops matches below this similarity before they
	// reach the prompt. Zero keeps everything.
	MinSimilarity float64
}

// Result is the outcome of one resolution run. LogEntryID is zero and
// ResolutionID nil for ad-hoc text resolutions.
type Result struct {
	LogEntryID     uint                     `json:"log_id"`
	ServiceName    string                   `json:"service_name"`
	ErrorLevel     string                   `json:"error_level"`
	ErrorMessage   string                   `json:"error_message"`
	RootCause      string                   `json:"root_cause"`
	RecommendedFix []string                 `json:"recommended_fix"`
	Confidence     float64                  `json:"confidence"`
	SimilarLogs    []retriever.SimilarMatch `json:"similar_logs"`
	ResolutionID   *uint                    `json:"resolution_id,omitempty"`
}

// Service runs the resolution pipeline over injected capabilities.
type Service struct {
	searcher    Searcher
	generator   Generator
	resolutions ResolutionWriter
	publisher   events.Publisher
	config      Config
	logger      *zap.Logger
}

// New creates a Service. resolutions may be nil, in which case log-id
// resolutions are never persisted; publisher may be nil to disable
// eventing.
func New(searcher Searcher, generator Generator, resolutions ResolutionWriter, publisher events.Publisher, cfg Config, logger *zap.Logger) *Service {
	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		searcher:    searcher,
		generator:   generator,
		resolutions: resolutions,
		publisher:   publisher,
		config:      cfg,
		logger:      logger,
	}
}

// ResolveText resolves raw log text ad hoc: heuristic extraction,
// retrieval without self-exclusion, generation. Nothing is persisted;
// ResolutionID is always nil.
func (s *Service) ResolveText(ctx context.Context, logText, serviceName string, topK int) (*Result, error) {
	ctx, span := tracer.Start(ctx, "Service.ResolveText")
	defer span.End()

	if strings.TrimSpace(logText) == "" {
		err := fmt.Errorf("%w: log text is empty", ErrResolution)
		span.RecordError(err)
		span.SetStatus(codes.Error, "empty log text")
		return nil, err
	}
	topK = s.clampTopK(topK)
	span.SetAttributes(attribute.Int("top_k", topK))

	service := serviceName
	if service == "" {
		service = lognorm.ExtractServiceName(logText)
	}
	level := lognorm.ExtractErrorLevel(logText)
	message := lognorm.ExtractErrorMessage(logText, lognorm.DefaultMaxMessageLength)
	normalized := lognorm.Normalize(message)

	matches, err := s.retrieve(ctx, normalized, topK, "")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieval failed")
		return nil, err
	}

	res, err := s.generate(ctx, message, matches, service, level)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return nil, err
	}

	result := &Result{
		ServiceName:    service,
		ErrorLevel:     level,
		ErrorMessage:   message,
		RootCause:      res.RootCause,
		RecommendedFix: NormalizeFix(res.RecommendedFix),
		Confidence:     res.Confidence,
		SimilarLogs:    matches,
	}

	s.publishCompleted(result)
	s.logger.Info("ad-hoc resolution complete",
		zap.String("service_name", service),
		zap.Float64("confidence", result.Confidence),
		zap.Int("similar_logs", len(matches)),
	)
	span.SetAttributes(attribute.Float64("confidence", result.Confidence))
	span.SetStatus(codes.Ok, "success")
	return result, nil
}

// ResolveLogEntry resolves an existing log entry. The entry is excluded
// from its own similar-log set, and on success a ResolutionRecord is
// written in its own transaction; if that write fails the error is
// logged and the result returned with a nil ResolutionID.
func (s *Service) ResolveLogEntry(ctx context.Context, entry *store.LogEntry, topK int) (*Result, error) {
	ctx, span := tracer.Start(ctx, "Service.ResolveLogEntry")
	defer span.End()

	if entry == nil {
		err := fmt.Errorf("%w: nil log entry", ErrResolution)
		span.RecordError(err)
		span.SetStatus(codes.Error, "nil log entry")
		return nil, err
	}
	topK = s.clampTopK(topK)
	span.SetAttributes(
		attribute.Int("log_id", int(entry.ID)),
		attribute.Int("top_k", topK),
	)

	queryText := entry.NormalizedText
	if queryText == "" {
		queryText = entry.ErrorMessage
	}

	// Fetch one extra hit so the entry's own vector record can be
	// dropped without shrinking the candidate set.
	excludeID := strconv.FormatUint(uint64(entry.ID), 10)
	matches, err := s.retrieve(ctx, queryText, topK, excludeID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieval failed")
		return nil, err
	}

	res, err := s.generate(ctx, entry.ErrorMessage, matches, entry.ServiceName, entry.ErrorLevel)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return nil, err
	}

	result := &Result{
		LogEntryID:     entry.ID,
		ServiceName:    entry.ServiceName,
		ErrorLevel:     entry.ErrorLevel,
		ErrorMessage:   entry.ErrorMessage,
		RootCause:      res.RootCause,
		RecommendedFix: NormalizeFix(res.RecommendedFix),
		Confidence:     res.Confidence,
		SimilarLogs:    matches,
	}
	result.ResolutionID = s.persist(ctx, entry.ID, result, topK)

	s.publishCompleted(result)
	s.logger.Info("log entry resolution complete",
		zap.Uint("log_id", entry.ID),
		zap.Float64("confidence", result.Confidence),
		zap.Int("similar_logs", len(matches)),
		zap.Bool("persisted", result.ResolutionID != nil),
	)
	span.SetAttributes(attribute.Float64("confidence", result.Confidence))
	span.SetStatus(codes.Ok, "success")
	return result, nil
}

func (s *Service) clampTopK(topK int) int {
	if topK <= 0 {
		return s.config.TopK
	}
	if topK > maxTopK {
		return maxTopK
	}
	return topK
}

// retrieve runs similarity search and reshapes the hits. When
// excludeID is set, one extra hit is fetched to cover the excluded
// entry; the result is filtered by MinSimilarity and truncated to topK.
func (s *Service) retrieve(ctx context.Context, queryText string, topK int, excludeID string) ([]retriever.SimilarMatch, error) {
	fetch := topK
	if excludeID != "" {
		fetch++
	}

	hits, err := s.searcher.RetrieveSimilar(ctx, queryText, fetch, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResolution, err)
	}

	matches := retriever.FormatResults(hits, excludeID)
	if s.config.MinSimilarity > 0 {
		kept := make([]retriever.SimilarMatch, 0, len(matches))
		for _, m := range matches {
			if m.Similarity >= s.config.MinSimilarity {
				kept = append(kept, m)
			}
		}
		matches = kept
	}
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *Service) generate(ctx context.Context, errorMessage string, matches []retriever.SimilarMatch, service, level string) (resolution.Resolution, error) {
	extra := fmt.Sprintf("Service: %s, Level: %s", service, level)
	res, err := s.generator.Generate(ctx, errorMessage, matches, extra)
	if err != nil {
		return resolution.Resolution{}, fmt.Errorf("%w: %v", ErrResolution, err)
	}
	return res, nil
}

// publishCompleted emits a resolution.completed event when eventing is
// enabled. The publisher absorbs its own failures.
func (s *Service) publishCompleted(result *Result) {
	if s.publisher == nil {
		return
	}
	s.publisher.ResolutionCompleted(events.ResolutionCompletedEvent{
		LogID:        result.LogEntryID,
		ResolutionID: result.ResolutionID,
		Confidence:   result.Confidence,
		SimilarLogs:  len(result.SimilarLogs),
	})
}

// persist writes the resolution record. Failures are logged and
// absorbed; the returned id is nil when nothing was stored.
func (s *Service) persist(ctx context.Context, logEntryID uint, result *Result, topK int) *uint {
	if s.resolutions == nil {
		return nil
	}

	ids := make([]string, 0, len(result.SimilarLogs))
	for _, m := range result.SimilarLogs {
		if m.SourceID != "" {
			ids = append(ids, m.SourceID)
		}
	}

	rec, err := store.NewResolutionRecord(
		logEntryID,
		result.RootCause,
		result.RecommendedFix,
		result.Confidence,
		ids,
		map[string]any{
			"similar_logs_count": len(result.SimilarLogs),
			"top_k":              topK,
		},
	)
	if err == nil {
		err = s.resolutions.Create(ctx, rec)
	}
	if err != nil {
		s.logger.Error("failed to store resolution",
			zap.Uint("log_id", logEntryID),
			zap.Error(err),
		)
		return nil
	}
	return &rec.ID
}
