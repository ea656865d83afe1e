package repository

import (
	"context"

	"github.com/sahil/voxpert/internal/domain"
	"gorm.io/gorm"
)

// ProgressRepository handles processing_progress table access.
type ProgressRepository struct {
	db *gorm.DB
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// Create inserts a new progress record.
func (r *ProgressRepository) Create(ctx context.Context, progress *domain.ProcessingProgress) error {
	return r.db.WithContext(ctx).Create(progress).Error
}

// GetByExpertID retrieves the expert's progress record.
// Returns gorm.ErrRecordNotFound if none exists.
func (r *ProgressRepository) GetByExpertID(ctx context.Context, expertID string) (*domain.ProcessingProgress, error) {
	var progress domain.ProcessingProgress
	if err := r.db.WithContext(ctx).First(&progress, "expert_id = ?", expertID).Error; err != nil {
		return nil, err
	}
	return &progress, nil
}

// Save persists all fields of an existing progress record.
func (r *ProgressRepository) Save(ctx context.Context, progress *domain.ProcessingProgress) error {
	return r.db.WithContext(ctx).Save(progress).Error
}

// Updates merges the given column map into the expert's record.
// Reports the number of affected rows so soft-failure callers can tell
// whether a record existed.
func (r *ProgressRepository) Updates(ctx context.Context, expertID string, fields map[string]interface{}) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.ProcessingProgress{}).
		Where("expert_id = ?", expertID).
		Updates(fields)
	return result.RowsAffected, result.Error
}

// DeleteByExpertID removes the expert's progress record once consumed.
func (r *ProgressRepository) DeleteByExpertID(ctx context.Context, expertID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expert_id = ?", expertID).
		Delete(&domain.ProcessingProgress{})
	return result.RowsAffected, result.Error
}

// ListActive returns all records still pending or in progress.
func (r *ProgressRepository) ListActive(ctx context.Context) ([]domain.ProcessingProgress, error) {
	var records []domain.ProcessingProgress
	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{domain.ProgressStatusPending, domain.ProgressStatusInProgress}).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
