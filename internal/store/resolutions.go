package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ResolutionRepository persists resolution history.
type ResolutionRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewResolutionRepository binds a repository to the store's database
// handle.
func NewResolutionRepository(s *Store, logger *zap.Logger) *ResolutionRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResolutionRepository{db: s.db, logger: logger}
}

// Create inserts a resolution record in its own transaction, scoped to
// this single insert. The log entry it references was committed
// earlier; a failure here rolls back only the resolution.
func (r *ResolutionRepository) Create(ctx context.Context, rec *ResolutionRecord) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(rec).Error
	})
	if err != nil {
		return fmt.Errorf("%w: creating resolution record: %v", ErrPersistence, err)
	}

	r.logger.Debug("resolution record created",
		zap.Uint("id", rec.ID),
		zap.Uint("log_entry_id", rec.LogEntryID),
		zap.Float64("confidence", rec.ConfidenceScore),
	)
	return nil
}

// ListByLogEntry returns resolutions for one log entry, newest first.
func (r *ResolutionRepository) ListByLogEntry(ctx context.Context, logEntryID uint) ([]ResolutionRecord, error) {
	var records []ResolutionRecord
	err := r.db.WithContext(ctx).
		Where("log_entry_id = ?", logEntryID).
		Order("id DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("%w: listing resolutions for log entry %d: %v", ErrPersistence, logEntryID, err)
	}
	return records, nil
}
