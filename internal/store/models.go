package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// Error levels accepted on ingestion. lognorm.ExtractErrorLevel maps
// free-form text onto a subset of these.
const (
	LevelDebug    = "DEBUG"
	LevelInfo     = "INFO"
	LevelWarn     = "WARN"
	LevelWarning  = "WARNING"
	LevelError    = "ERROR"
	LevelCritical = "CRITICAL"
	LevelFatal    = "FATAL"
)

// ErrorLevels lists every accepted error level.
var ErrorLevels = []string{
	LevelError,
	LevelWarn,
	LevelWarning,
	LevelCritical,
	LevelFatal,
	LevelInfo,
	LevelDebug,
}

// ValidErrorLevel reports whether level is one of ErrorLevels.
// Comparison is exact; callers uppercase first.
func ValidErrorLevel(level string) bool {
	for _, l := range ErrorLevels {
		if level == l {
			return true
		}
	}
	return false
}

// LogEntry is one ingested error log. NormalizedText is filled during
// ingestion. EmbeddingID is attached after the vector record is
// written, so a row without one marks an entry whose embedding step
// failed and that is invisible to similarity search.
//
// Metadata holds a JSON-serialized string-keyed map; it is excluded
// from direct JSON marshaling so the raw column text never leaks
// double-encoded. Use DecodeMetadata.
type LogEntry struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ServiceName    string    `gorm:"size:255;not null;index" json:"service_name"`
	ErrorLevel     string    `gorm:"size:50;not null;index" json:"error_level"`
	ErrorMessage   string    `gorm:"type:text;not null" json:"error_message"`
	RawLog         string    `gorm:"type:text;not null" json:"raw_log"`
	NormalizedText string    `gorm:"type:text" json:"normalized_text,omitempty"`
	EmbeddingID    string    `gorm:"size:255;index" json:"embedding_id,omitempty"`
	Metadata       string    `gorm:"type:text" json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (LogEntry) TableName() string { return "log_entries" }

// DecodeMetadata returns the metadata map. Empty or malformed column
// data decodes to an empty map.
func (e *LogEntry) DecodeMetadata() map[string]any {
	meta := map[string]any{}
	if e.Metadata == "" {
		return meta
	}
	if err := json.Unmarshal([]byte(e.Metadata), &meta); err != nil {
		return map[string]any{}
	}
	return meta
}

// ResolutionRecord is one generated resolution for a log entry.
// RecommendedFix, SimilarLogIDs, and ContextSnapshot are JSON-serialized
// columns; use the Decode helpers or NewResolutionRecord rather than
// touching the raw strings.
type ResolutionRecord struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	LogEntryID      uint      `gorm:"not null;index" json:"log_entry_id"`
	RootCause       string    `gorm:"type:text;not null" json:"root_cause"`
	RecommendedFix  string    `gorm:"type:text;not null" json:"-"`
	ConfidenceScore float64   `gorm:"not null" json:"confidence_score"`
	SimilarLogIDs   string    `gorm:"type:text" json:"-"`
	ContextSnapshot string    `gorm:"type:text" json:"-"`
	CreatedAt       time.Time `json:"created_at"`
}

func (ResolutionRecord) TableName() string { return "resolution_records" }

// NewResolutionRecord assembles a record from a finished resolution,
// serializing the fix list, similar-log ids, and context snapshot into
// their JSON column forms. Nil slices encode as empty JSON arrays.
func NewResolutionRecord(logEntryID uint, rootCause string, fix []string, confidence float64, similarIDs []string, snapshot map[string]any) (*ResolutionRecord, error) {
	if fix == nil {
		fix = []string{}
	}
	if similarIDs == nil {
		similarIDs = []string{}
	}

	fixJSON, err := json.Marshal(fix)
	if err != nil {
		return nil, fmt.Errorf("encoding recommended fix: %w", err)
	}
	idsJSON, err := json.Marshal(similarIDs)
	if err != nil {
		return nil, fmt.Errorf("encoding similar log ids: %w", err)
	}
	snapJSON, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("encoding context snapshot: %w", err)
	}

	return &ResolutionRecord{
		LogEntryID:      logEntryID,
		RootCause:       rootCause,
		RecommendedFix:  string(fixJSON),
		ConfidenceScore: confidence,
		SimilarLogIDs:   string(idsJSON),
		ContextSnapshot: string(snapJSON),
	}, nil
}

// DecodeFix returns the recommended fix steps. Empty or malformed
// column data decodes to an empty slice.
func (r *ResolutionRecord) DecodeFix() []string {
	var fix []string
	if r.RecommendedFix != "" {
		_ = json.Unmarshal([]byte(r.RecommendedFix), &fix)
	}
	if fix == nil {
		return []string{}
	}
	return fix
}

// DecodeSimilarLogIDs returns the ids of the similar logs the
// resolution actually used.
func (r *ResolutionRecord) DecodeSimilarLogIDs() []string {
	var ids []string
	if r.SimilarLogIDs != "" {
		_ = json.Unmarshal([]byte(r.SimilarLogIDs), &ids)
	}
	if ids == nil {
		return []string{}
	}
	return ids
}

// DecodeContextSnapshot returns the retrieval context captured at
// resolution time, e.g. similar-log count and the top_k in effect.
func (r *ResolutionRecord) DecodeContextSnapshot() map[string]any {
	snap := map[string]any{}
	if r.ContextSnapshot == "" {
		return snap
	}
	if err := json.Unmarshal([]byte(r.ContextSnapshot), &snap); err != nil {
		return map[string]any{}
	}
	return snap
}
