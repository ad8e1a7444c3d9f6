package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	st, err := Open(Config{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "resolvd.db"),
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedEntry(t *testing.T, repo *LogRepository, service, level, message string) *LogEntry {
	t.Helper()

	entry := &LogEntry{
		ServiceName:    service,
		ErrorLevel:     level,
		ErrorMessage:   message,
		RawLog:         message,
		NormalizedText: message,
	}
	require.NoError(t, repo.Create(context.Background(), entry))
	return entry
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown database driver")
}

func TestOpen_MissingSQLitePath(t *testing.T) {
	_, err := Open(Config{Driver: "sqlite"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path is required")
}

func TestOpen_MissingPostgresDSN(t *testing.T) {
	_, err := Open(Config{Driver: "postgres"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DSN is required")
}

func TestStorePing(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.Ping(context.Background()))
}

func TestLogRepositoryCreateAndGet(t *testing.T) {
	st := newTestStore(t)
	repo := NewLogRepository(st, zap.NewNop())

	entry := &LogEntry{
		ServiceName:    "payment-api",
		ErrorLevel:     LevelError,
		ErrorMessage:   "connection refused to db",
		RawLog:         "2024-01-15 ERROR connection refused to db",
		NormalizedText: "connection refused to db",
		Metadata:       `{"region":"us-east-1"}`,
	}
	require.NoError(t, repo.Create(context.Background(), entry))
	require.NotZero(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())

	got, err := repo.Get(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "payment-api", got.ServiceName)
	assert.Equal(t, LevelError, got.ErrorLevel)
	assert.Equal(t, "connection refused to db", got.ErrorMessage)
	assert.Empty(t, got.EmbeddingID)
	assert.Equal(t, map[string]any{"region": "us-east-1"}, got.DecodeMetadata())
}

func TestLogRepositoryGetNotFound(t *testing.T) {
	st := newTestStore(t)
	repo := NewLogRepository(st, nil)

	_, err := repo.Get(context.Background(), 9999)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLogRepositoryList(t *testing.T) {
	st := newTestStore(t)
	repo := NewLogRepository(st, nil)

	seedEntry(t, repo, "api", LevelError, "first")
	seedEntry(t, repo, "db", LevelWarn, "second")
	seedEntry(t, repo, "api", LevelError, "third")

	all, err := repo.List(context.Background(), LogFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Newest first.
	assert.Equal(t, "third", all[0].ErrorMessage)
	assert.Equal(t, "first", all[2].ErrorMessage)

	byService, err := repo.List(context.Background(), LogFilter{ServiceName: "api"})
	require.NoError(t, err)
	require.Len(t, byService, 2)
	for _, e := range byService {
		assert.Equal(t, "api", e.ServiceName)
	}

	byLevel, err := repo.List(context.Background(), LogFilter{ErrorLevel: LevelWarn})
	require.NoError(t, err)
	require.Len(t, byLevel, 1)
	assert.Equal(t, "second", byLevel[0].ErrorMessage)

	paged, err := repo.List(context.Background(), LogFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, "second", paged[0].ErrorMessage)
}

func TestLogRepositoryCount(t *testing.T) {
	st := newTestStore(t)
	repo := NewLogRepository(st, nil)

	seedEntry(t, repo, "api", LevelError, "first")
	seedEntry(t, repo, "db", LevelWarn, "second")

	total, err := repo.Count(context.Background(), LogFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	filtered, err := repo.Count(context.Background(), LogFilter{ServiceName: "db"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), filtered)
}

func TestLogRepositoryAttachEmbedding(t *testing.T) {
	st := newTestStore(t)
	repo := NewLogRepository(st, nil)

	entry := seedEntry(t, repo, "api", LevelError, "boom")
	require.NoError(t, repo.AttachEmbedding(context.Background(), entry.ID, "log_1"))

	got, err := repo.Get(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "log_1", got.EmbeddingID)
}

func TestLogRepositoryAttachEmbeddingNotFound(t *testing.T) {
	st := newTestStore(t)
	repo := NewLogRepository(st, nil)

	err := repo.AttachEmbedding(context.Background(), 424242, "log_424242")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolutionRepositoryCreateAndList(t *testing.T) {
	st := newTestStore(t)
	logs := NewLogRepository(st, nil)
	resolutions := NewResolutionRepository(st, zap.NewNop())

	entry := seedEntry(t, logs, "api", LevelError, "boom")

	rec, err := NewResolutionRecord(
		entry.ID,
		"connection pool exhausted",
		[]string{"increase max_connections", "add retry logic"},
		0.85,
		[]string{"2", "7"},
		map[string]any{"similar_logs_count": 2, "top_k": 5},
	)
	require.NoError(t, err)
	require.NoError(t, resolutions.Create(context.Background(), rec))
	require.NotZero(t, rec.ID)

	second, err := NewResolutionRecord(entry.ID, "still broken", nil, 0.5, nil, nil)
	require.NoError(t, err)
	require.NoError(t, resolutions.Create(context.Background(), second))

	records, err := resolutions.ListByLogEntry(context.Background(), entry.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Newest first.
	assert.Equal(t, "still broken", records[0].RootCause)
	assert.Equal(t, "connection pool exhausted", records[1].RootCause)

	assert.Equal(t, []string{"increase max_connections", "add retry logic"}, records[1].DecodeFix())
	assert.Equal(t, []string{"2", "7"}, records[1].DecodeSimilarLogIDs())
	snap := records[1].DecodeContextSnapshot()
	assert.EqualValues(t, 2, snap["similar_logs_count"])
	assert.EqualValues(t, 5, snap["top_k"])

	none, err := resolutions.ListByLogEntry(context.Background(), entry.ID+100)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestNewResolutionRecordNilSlices(t *testing.T) {
	rec, err := NewResolutionRecord(1, "cause", nil, 0.5, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", rec.RecommendedFix)
	assert.Equal(t, "[]", rec.SimilarLogIDs)
	assert.Equal(t, []string{}, rec.DecodeFix())
	assert.Equal(t, []string{}, rec.DecodeSimilarLogIDs())
}

func TestResolutionRecordDecodeMalformed(t *testing.T) {
	rec := &ResolutionRecord{
		RecommendedFix:  "{not json",
		SimilarLogIDs:   "also not json",
		ContextSnapshot: "[]",
	}
	assert.Equal(t, []string{}, rec.DecodeFix())
	assert.Equal(t, []string{}, rec.DecodeSimilarLogIDs())
	assert.Equal(t, map[string]any{}, rec.DecodeContextSnapshot())
}

func TestLogEntryDecodeMetadata(t *testing.T) {
	empty := &LogEntry{}
	assert.Equal(t, map[string]any{}, empty.DecodeMetadata())

	malformed := &LogEntry{Metadata: "{oops"}
	assert.Equal(t, map[string]any{}, malformed.DecodeMetadata())
}

func TestValidErrorLevel(t *testing.T) {
	for _, level := range ErrorLevels {
		assert.True(t, ValidErrorLevel(level), level)
	}
	assert.False(t, ValidErrorLevel("TRACE"))
	assert.False(t, ValidErrorLevel("error"))
}
