package server

import (
	"time"

	"github.com/fyrsmithlabs/resolvd/internal/store"
)

// IngestLogRequest is the request body for POST /api/v1/logs.
type IngestLogRequest struct {
	ServiceName  string         `json:"service_name"`
	ErrorLevel   string         `json:"error_level"`
	ErrorMessage string         `json:"error_message"`
	RawLog       string         `json:"raw_log,omitempty"`
	Metadata     map[string]any `json:"log_metadata,omitempty"`
}

// IngestTextRequest is the request body for POST /api/v1/logs/unstructured.
type IngestTextRequest struct {
	LogText     string         `json:"log_text"`
	ServiceName string         `json:"service_name,omitempty"`
	Metadata    map[string]any `json:"log_metadata,omitempty"`
}

// ResolveRequest is the request body for POST /api/v1/resolve. Exactly
// one of LogID and LogText must be set; TopK zero means the pipeline
// default.
type ResolveRequest struct {
	LogID       uint   `json:"log_id,omitempty"`
	LogText     string `json:"log_text,omitempty"`
	ServiceName string `json:"service_name,omitempty"`
	TopK        int    `json:"top_k,omitempty"`
}

// LogEntryResponse is one stored log entry with its metadata decoded.
type LogEntryResponse struct {
	ID             uint           `json:"id"`
	ServiceName    string         `json:"service_name"`
	ErrorLevel     string         `json:"error_level"`
	ErrorMessage   string         `json:"error_message"`
	RawLog         string         `json:"raw_log"`
	NormalizedText string         `json:"normalized_text,omitempty"`
	EmbeddingID    string         `json:"embedding_id,omitempty"`
	Metadata       map[string]any `json:"log_metadata"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func newLogEntryResponse(entry *store.LogEntry) LogEntryResponse {
	return LogEntryResponse{
		ID:             entry.ID,
		ServiceName:    entry.ServiceName,
		ErrorLevel:     entry.ErrorLevel,
		ErrorMessage:   entry.ErrorMessage,
		RawLog:         entry.RawLog,
		NormalizedText: entry.NormalizedText,
		EmbeddingID:    entry.EmbeddingID,
		Metadata:       entry.DecodeMetadata(),
		CreatedAt:      entry.CreatedAt,
		UpdatedAt:      entry.UpdatedAt,
	}
}

// LogListResponse is the response body for GET /api/v1/logs. Total
// counts every entry matching the filter, ignoring paging.
type LogListResponse struct {
	Logs  []LogEntryResponse `json:"logs"`
	Total int64              `json:"total"`
}

// SimilarLogResponse is one similar historical log. Fields other than
// the similarity score come from the primary store, not the index
// metadata, so they reflect the entry as stored.
type SimilarLogResponse struct {
	ID           uint      `json:"id"`
	ServiceName  string    `json:"service_name"`
	ErrorLevel   string    `json:"error_level"`
	ErrorMessage string    `json:"error_message"`
	Similarity   float64   `json:"similarity_score"`
	CreatedAt    time.Time `json:"created_at"`
}

// ResolveResponse is the response body for POST /api/v1/resolve. LogID
// is zero and ResolutionID absent for ad-hoc text resolutions.
type ResolveResponse struct {
	LogID          uint                 `json:"log_id"`
	RootCause      string               `json:"root_cause"`
	RecommendedFix []string             `json:"recommended_fix"`
	Confidence     float64              `json:"confidence"`
	SimilarLogs    []SimilarLogResponse `json:"similar_logs"`
	ResolutionID   *uint                `json:"resolution_id,omitempty"`
}

// AnalysisResponse is the response body for GET /api/v1/analysis/:id/similar.
// PatternFrequency is present only when a pattern was detected.
type AnalysisResponse struct {
	LogID            uint                 `json:"log_id"`
	SimilarLogs      []SimilarLogResponse `json:"similar_logs"`
	PatternDetected  bool                 `json:"pattern_detected"`
	PatternFrequency *int                 `json:"pattern_frequency,omitempty"`
}

// ResolutionRecordResponse is one stored resolution with its JSON
// columns decoded.
type ResolutionRecordResponse struct {
	ID              uint           `json:"id"`
	LogEntryID      uint           `json:"log_entry_id"`
	RootCause       string         `json:"root_cause"`
	RecommendedFix  []string       `json:"recommended_fix"`
	Confidence      float64        `json:"confidence_score"`
	SimilarLogIDs   []string       `json:"similar_log_ids"`
	ContextSnapshot map[string]any `json:"context_snapshot"`
	CreatedAt       time.Time      `json:"created_at"`
}

func newResolutionRecordResponse(rec *store.ResolutionRecord) ResolutionRecordResponse {
	return ResolutionRecordResponse{
		ID:              rec.ID,
		LogEntryID:      rec.LogEntryID,
		RootCause:       rec.RootCause,
		RecommendedFix:  rec.DecodeFix(),
		Confidence:      rec.ConfidenceScore,
		SimilarLogIDs:   rec.DecodeSimilarLogIDs(),
		ContextSnapshot: rec.DecodeContextSnapshot(),
		CreatedAt:       rec.CreatedAt,
	}
}

// HealthResponse is the response body for GET /health. Component
// fields carry short probe summaries; Status is "ok" until any probe
// degrades it.
type HealthResponse struct {
	Status           string    `json:"status"`
	Version          string    `json:"version"`
	Timestamp        time.Time `json:"timestamp"`
	Database         string    `json:"database"`
	VectorStore      string    `json:"vector_store"`
	EmbeddingService string    `json:"embedding_service"`
	LLMService       string    `json:"llm_service"`
}
