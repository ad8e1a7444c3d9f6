package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/resolvd/internal/ingest"
	"github.com/fyrsmithlabs/resolvd/internal/resolver"
	"github.com/fyrsmithlabs/resolvd/internal/retriever"
	"github.com/fyrsmithlabs/resolvd/internal/store"
)

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/logs", s.handleIngestLog)
	v1.POST("/logs/unstructured", s.handleIngestText)
	v1.GET("/logs", s.handleListLogs)
	v1.GET("/logs/:id", s.handleGetLog)
	v1.GET("/logs/:id/resolutions", s.handleListResolutions)
	v1.POST("/resolve", s.handleResolve)
	v1.GET("/analysis/:id/similar", s.handleAnalyzeSimilar)
}

// handleIngestLog stores a structured log entry.
func (s *Server) handleIngestLog(c echo.Context) error {
	var req IngestLogRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid ingest request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	entry, err := s.deps.Ingestor.Ingest(c.Request().Context(), ingest.StructuredLog{
		ServiceName:  req.ServiceName,
		ErrorLevel:   req.ErrorLevel,
		ErrorMessage: req.ErrorMessage,
		RawLog:       req.RawLog,
		Metadata:     req.Metadata,
	})
	if errors.Is(err, ingest.ErrParse) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		s.logger.Error("failed to store log entry", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to store log entry")
	}

	return c.JSON(http.StatusCreated, newLogEntryResponse(entry))
}

// handleIngestText stores an unstructured log line, extracting service,
// level, and message heuristically.
func (s *Server) handleIngestText(c echo.Context) error {
	var req IngestTextRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid ingest request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	entry, err := s.deps.Ingestor.IngestText(c.Request().Context(), req.LogText, req.ServiceName, req.Metadata)
	if errors.Is(err, ingest.ErrParse) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		s.logger.Error("failed to store log entry", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to store log entry")
	}

	return c.JSON(http.StatusCreated, newLogEntryResponse(entry))
}

// handleGetLog returns one stored log entry.
func (s *Server) handleGetLog(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid log id")
	}

	entry, err := s.getLogEntry(c.Request().Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, newLogEntryResponse(entry))
}

// handleListLogs returns stored entries newest first, narrowed by
// optional service_name and error_level filters.
func (s *Server) handleListLogs(c echo.Context) error {
	filter := store.LogFilter{
		ServiceName: c.QueryParam("service_name"),
		// Levels are stored uppercase.
		ErrorLevel: strings.ToUpper(c.QueryParam("error_level")),
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		filter.Limit = n
	}
	if v := c.QueryParam("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "offset must be a non-negative integer")
		}
		filter.Offset = n
	}

	ctx := c.Request().Context()
	entries, err := s.deps.Logs.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list log entries", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list log entries")
	}
	total, err := s.deps.Logs.Count(ctx, filter)
	if err != nil {
		s.logger.Error("failed to count log entries", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to count log entries")
	}

	logs := make([]LogEntryResponse, 0, len(entries))
	for i := range entries {
		logs = append(logs, newLogEntryResponse(&entries[i]))
	}

	return c.JSON(http.StatusOK, LogListResponse{Logs: logs, Total: total})
}

// handleListResolutions returns the resolution history for one log
// entry, newest first.
func (s *Server) handleListResolutions(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid log id")
	}

	ctx := c.Request().Context()
	if _, err := s.getLogEntry(ctx, id); err != nil {
		return err
	}

	records, err := s.deps.Resolutions.ListByLogEntry(ctx, id)
	if err != nil {
		s.logger.Error("failed to list resolutions", zap.Uint("log_id", id), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list resolutions")
	}

	resp := make([]ResolutionRecordResponse, 0, len(records))
	for i := range records {
		resp = append(resp, newResolutionRecordResponse(&records[i]))
	}

	return c.JSON(http.StatusOK, resp)
}

// handleResolve runs the resolution pipeline for an existing entry or
// ad-hoc log text.
func (s *Server) handleResolve(c echo.Context) error {
	var req ResolveRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid resolve request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.TopK < 0 || req.TopK > maxTopK {
		return echo.NewHTTPError(http.StatusBadRequest, "top_k must be between 1 and 20")
	}

	hasID := req.LogID != 0
	hasText := strings.TrimSpace(req.LogText) != ""
	switch {
	case hasID && hasText:
		return echo.NewHTTPError(http.StatusBadRequest, "only one of log_id or log_text may be provided")
	case !hasID && !hasText:
		return echo.NewHTTPError(http.StatusBadRequest, "Either log_id or log_text must be provided")
	}

	ctx := c.Request().Context()
	var result *resolver.Result
	if hasID {
		entry, err := s.getLogEntry(ctx, req.LogID)
		if err != nil {
			return err
		}
		result, err = s.deps.Resolver.ResolveLogEntry(ctx, entry, req.TopK)
		if err != nil {
			s.logger.Error("resolution failed", zap.Uint("log_id", req.LogID), zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to resolve error")
		}
	} else {
		var err error
		result, err = s.deps.Resolver.ResolveText(ctx, req.LogText, req.ServiceName, req.TopK)
		if err != nil {
			s.logger.Error("resolution failed", zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to resolve error")
		}
	}

	return c.JSON(http.StatusOK, ResolveResponse{
		LogID:          result.LogEntryID,
		RootCause:      result.RootCause,
		RecommendedFix: result.RecommendedFix,
		Confidence:     result.Confidence,
		SimilarLogs:    s.enrichSimilar(ctx, result.SimilarLogs),
		ResolutionID:   result.ResolutionID,
	})
}

// handleAnalyzeSimilar retrieves similar historical logs for an entry
// and reports whether they look like a recurring pattern.
func (s *Server) handleAnalyzeSimilar(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid log id")
	}
	topK := defaultTopK
	if v := c.QueryParam("top_k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxTopK {
			return echo.NewHTTPError(http.StatusBadRequest, "top_k must be between 1 and 20")
		}
		topK = n
	}

	ctx := c.Request().Context()
	entry, err := s.getLogEntry(ctx, id)
	if err != nil {
		return err
	}

	queryText := entry.NormalizedText
	if queryText == "" {
		queryText = entry.ErrorMessage
	}

	// One extra hit covers the entry's own vector record.
	hits, err := s.deps.Searcher.RetrieveSimilar(ctx, queryText, topK+1, nil)
	if err != nil {
		s.logger.Error("similarity analysis failed", zap.Uint("log_id", id), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to retrieve similar logs")
	}

	matches := retriever.FormatResults(hits, strconv.FormatUint(uint64(entry.ID), 10))
	if len(matches) > topK {
		matches = matches[:topK]
	}

	// Pattern stats come from the raw matches, before enrichment drops
	// ids that no longer resolve in the primary store.
	patternCount := 0
	for _, m := range matches {
		if m.Similarity > s.config.PatternThreshold {
			patternCount++
		}
	}

	resp := AnalysisResponse{
		LogID:           entry.ID,
		SimilarLogs:     s.enrichSimilar(ctx, matches),
		PatternDetected: patternCount > 0,
	}
	if patternCount > 0 {
		resp.PatternFrequency = &patternCount
	}

	return c.JSON(http.StatusOK, resp)
}

// getLogEntry loads an entry, mapping not-found onto 404.
func (s *Server) getLogEntry(ctx context.Context, id uint) (*store.LogEntry, error) {
	entry, err := s.deps.Logs.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("Log entry with id %d not found", id))
	}
	if err != nil {
		s.logger.Error("failed to load log entry", zap.Uint("log_id", id), zap.Error(err))
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to load log entry")
	}
	return entry, nil
}

// enrichSimilar looks matched ids up in the primary store so responses
// carry stored fields rather than index metadata. Matches whose id is
// not an integer or no longer resolves to a row are skipped.
func (s *Server) enrichSimilar(ctx context.Context, matches []retriever.SimilarMatch) []SimilarLogResponse {
	out := make([]SimilarLogResponse, 0, len(matches))
	for _, m := range matches {
		id, err := strconv.ParseUint(m.SourceID, 10, 64)
		if err != nil {
			continue
		}
		entry, err := s.deps.Logs.Get(ctx, uint(id))
		if err != nil {
			continue
		}
		out = append(out, SimilarLogResponse{
			ID:           entry.ID,
			ServiceName:  entry.ServiceName,
			ErrorLevel:   entry.ErrorLevel,
			ErrorMessage: entry.ErrorMessage,
			Similarity:   m.Similarity,
			CreatedAt:    entry.CreatedAt,
		})
	}
	return out
}

// parseID parses a positive integer path parameter.
func parseID(value string) (uint, error) {
	id, err := strconv.ParseUint(value, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", value)
	}
	return uint(id), nil
}
