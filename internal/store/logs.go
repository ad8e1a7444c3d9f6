package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// List paging bounds.
const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// LogFilter narrows List and Count results. Zero fields are ignored.
type LogFilter struct {
	ServiceName string
	ErrorLevel  string
	Limit       int
	Offset      int
}

func (f LogFilter) apply(q *gorm.DB) *gorm.DB {
	if f.ServiceName != "" {
		q = q.Where("service_name = ?", f.ServiceName)
	}
	if f.ErrorLevel != "" {
		q = q.Where("error_level = ?", f.ErrorLevel)
	}
	return q
}

// LogRepository persists log entries.
type LogRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewLogRepository binds a repository to the store's database handle.
func NewLogRepository(s *Store, logger *zap.Logger) *LogRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogRepository{db: s.db, logger: logger}
}

// Create inserts a log entry in its own transaction and fills in the
// generated ID and timestamps.
func (r *LogRepository) Create(ctx context.Context, entry *LogEntry) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(entry).Error
	})
	if err != nil {
		return fmt.Errorf("%w: creating log entry: %v", ErrPersistence, err)
	}

	r.logger.Debug("log entry created",
		zap.Uint("id", entry.ID),
		zap.String("service_name", entry.ServiceName),
		zap.String("error_level", entry.ErrorLevel),
	)
	return nil
}

// Get loads one log entry by id.
func (r *LogRepository) Get(ctx context.Context, id uint) (*LogEntry, error) {
	var entry LogEntry
	err := r.db.WithContext(ctx).First(&entry, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: log entry %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: loading log entry %d: %v", ErrPersistence, id, err)
	}
	return &entry, nil
}

// List returns entries newest first, narrowed by the filter. Limit
// defaults to 100 and is capped at 1000.
func (r *LogRepository) List(ctx context.Context, filter LogFilter) ([]LogEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	var entries []LogEntry
	err := filter.apply(r.db.WithContext(ctx).Model(&LogEntry{})).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("%w: listing log entries: %v", ErrPersistence, err)
	}
	return entries, nil
}

// Count reports how many entries match the filter, ignoring paging.
func (r *LogRepository) Count(ctx context.Context, filter LogFilter) (int64, error) {
	var n int64
	err := filter.apply(r.db.WithContext(ctx).Model(&LogEntry{})).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("%w: counting log entries: %v", ErrPersistence, err)
	}
	return n, nil
}

// AttachEmbedding records the vector-store id for an entry after its
// embedding has been written. The update runs in its own transaction,
// after (never inside) the one that created the entry, so an embedding
// failure leaves a committed row with an empty embedding id.
func (r *LogRepository) AttachEmbedding(ctx context.Context, id uint, embeddingID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&LogEntry{}).
			Where("id = ?", id).
			Update("embedding_id", embeddingID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: log entry %d", ErrNotFound, id)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: attaching embedding id to log entry %d: %v", ErrPersistence, id, err)
	}

	r.logger.Debug("embedding id attached",
		zap.Uint("id", id),
		zap.String("embedding_id", embeddingID),
	)
	return nil
}
